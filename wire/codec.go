package wire

import (
	"crypto/sha256"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
)

// HashVersion is the first byte of every hashed encoding. Bump it when
// the normalization rules change.
const HashVersion byte = 0x01

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// DecodeJSON parses a JSON template.
func DecodeJSON(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("wire: decode json: %w", err)
	}
	return &t, nil
}

// EncodeJSON serializes a template as JSON.
func EncodeJSON(t *Template) ([]byte, error) {
	return json.Marshal(t)
}

// MarshalCBOR serializes a template to canonical CBOR.
func MarshalCBOR(t *Template) ([]byte, error) {
	return cborEncMode.Marshal(t)
}

// UnmarshalCBOR deserializes a template from CBOR.
func UnmarshalCBOR(data []byte) (*Template, error) {
	var t Template
	if err := cborDecMode.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("wire: unmarshal cbor: %w", err)
	}
	return &t, nil
}

// Hash computes the SHA-256 content hash of a template. Templates that
// differ only in number representation (42 vs 42.0, int64 vs uint64)
// hash the same.
func Hash(t *Template) ([32]byte, error) {
	data, err := cborEncMode.Marshal(normalizeTemplate(t))
	if err != nil {
		return [32]byte{}, fmt.Errorf("wire: hash: %w", err)
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, HashVersion)
	buf = append(buf, data...)
	return sha256.Sum256(buf), nil
}

func normalizeTemplate(t *Template) *Template {
	out := &Template{
		Statements: normalizeStatements(t.Statements),
		Locals:     t.Locals,
		Named:      t.Named,
		Yields:     t.Yields,
		Meta:       normalizeValue(t.Meta).(map[string]any),
	}
	for _, b := range t.Blocks {
		out.Blocks = append(out.Blocks, Block{
			Statements: normalizeStatements(b.Statements),
			Locals:     b.Locals,
		})
	}
	return out
}

func normalizeStatements(stmts []any) []any {
	out := make([]any, len(stmts))
	for i, s := range stmts {
		out[i] = normalizeValue(s)
	}
	return out
}

// normalizeValue rewrites integral numbers to int64.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		if x == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	}
	return v
}
