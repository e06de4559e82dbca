// Package wire defines the serialized template format consumed by the
// compiler, with JSON and canonical CBOR codecs and a content hash.
package wire

import "math"

// ---------------------------------------------------------------------------
// Template format
//
// Every statement and expression is a tuple [discriminant, fields...]. The
// discriminant is either the string name or its integer code. Nested
// blocks live in the Blocks side table and are addressed by index.
// ---------------------------------------------------------------------------

// Template is one serialized template.
type Template struct {
	Statements []any          `json:"statements"`
	Locals     []string       `json:"locals,omitempty"`
	Named      []string       `json:"named,omitempty"`
	Yields     []string       `json:"yields,omitempty"`
	Blocks     []Block        `json:"blocks,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Block is a nested block in a template's side table. Locals are the
// block's positional parameters.
type Block struct {
	Statements []any    `json:"statements"`
	Locals     []string `json:"locals,omitempty"`
}

// Statement discriminants.
const (
	OpText         = "text"
	OpAppend       = "append"
	OpComment      = "comment"
	OpBlock        = "block"
	OpOpenElement  = "open-element"
	OpCloseElement = "close-element"
	OpStaticAttr   = "static-attr"
	OpDynamicAttr  = "dynamic-attr"
	OpDynamicProp  = "dynamic-prop"
	OpAddClass     = "add-class"
	OpYield        = "yield"
)

// Expression discriminants.
const (
	OpUndefined = "undefined"
	OpGet       = "get"
	OpAttr      = "attr"
	OpUnknown   = "unknown"
	OpHelper    = "helper"
	OpConcat    = "concat"
)

// opCodes maps integer codes to discriminants; the index is the code.
var opCodes = []string{
	OpText,
	OpAppend,
	OpComment,
	OpBlock,
	OpOpenElement,
	OpCloseElement,
	OpStaticAttr,
	OpDynamicAttr,
	OpDynamicProp,
	OpAddClass,
	OpYield,
	OpUndefined,
	OpGet,
	OpAttr,
	OpUnknown,
	OpHelper,
	OpConcat,
}

var opNames = func() map[string]int {
	m := make(map[string]int, len(opCodes))
	for i, name := range opCodes {
		m[name] = i
	}
	return m
}()

// Code returns the integer code of a discriminant.
func Code(op string) (int, bool) {
	c, ok := opNames[op]
	return c, ok
}

// Op returns the discriminant of a tuple, accepting either form. ok is
// false when tuple is not a tuple or its head is not a known discriminant.
func Op(tuple any) (op string, ok bool) {
	t, isTuple := tuple.([]any)
	if !isTuple || len(t) == 0 {
		return "", false
	}
	switch h := t[0].(type) {
	case string:
		_, ok = opNames[h]
		return h, ok
	default:
		i, isInt := AsInt(h)
		if !isInt || i < 0 || i >= len(opCodes) {
			return "", false
		}
		return opCodes[i], true
	}
}

// AsInt converts a decoded number to int. JSON decodes numbers as float64
// and CBOR as int64 or uint64; all are accepted when integral.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
