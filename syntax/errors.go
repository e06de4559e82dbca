package syntax

import (
	"errors"
	"fmt"
)

// Compile-time failures. Every one of them aborts the whole compile.
var (
	ErrMalformed        = errors.New("malformed template")
	ErrNotAHelper       = errors.New("not a helper")
	ErrUnclosedElement  = errors.New("unclosed element")
	ErrUnmatchedClose   = errors.New("close-element without a matching open-element")
	ErrStrayAttribute   = errors.New("attribute not directly after an open-element")
	ErrUnknownBlock     = errors.New("unknown block")
	ErrUnknownComponent = errors.New("unknown component")
)

// Error locates a compile-time failure: the kind of the statement that
// failed, the template or block it belongs to, and its index there.
type Error struct {
	Kind  string
	Block string
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: statement %d (%s): %v", e.Block, e.Index, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// locate wraps err with a location unless it already carries one from a
// nested block.
func locate(err error, kind, block string, index int) error {
	var located *Error
	if errors.As(err, &located) {
		return err
	}
	return &Error{Kind: kind, Block: block, Index: index, Err: err}
}

// DecodeError is a malformed wire tuple.
type DecodeError struct {
	Block  string
	Index  int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: statement %d: %s", e.Block, e.Index, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}
