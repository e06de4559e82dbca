package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleJSON = `{
	"statements": [
		["open-element", "div", []],
		["static-attr", "class", "box", null],
		["append", ["get", ["name"]], false],
		["close-element"],
		["block", ["if"], [["get", ["ok"]]], null, 0, null]
	],
	"locals": ["name", "ok"],
	"blocks": [
		{"statements": [["text", "yes"]]}
	]
}`

func TestDecodeJSON(t *testing.T) {
	tpl, err := DecodeJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(tpl.Statements) != 5 {
		t.Fatalf("len(Statements) = %d, want 5", len(tpl.Statements))
	}
	if diff := cmp.Diff([]string{"name", "ok"}, tpl.Locals); diff != "" {
		t.Errorf("Locals mismatch (-want +got):\n%s", diff)
	}
	if len(tpl.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(tpl.Blocks))
	}
	if op, ok := Op(tpl.Blocks[0].Statements[0]); !ok || op != OpText {
		t.Errorf("Op(block stmt) = %q, %v, want %q", op, ok, OpText)
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"statements": [`)); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestTemplate_CBORRoundTrip(t *testing.T) {
	tpl, err := DecodeJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}

	data, err := MarshalCBOR(tpl)
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	got, err := UnmarshalCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}

	if diff := cmp.Diff(tpl.Locals, got.Locals); diff != "" {
		t.Errorf("Locals mismatch (-want +got):\n%s", diff)
	}
	if len(got.Statements) != len(tpl.Statements) {
		t.Fatalf("len(Statements) = %d, want %d", len(got.Statements), len(tpl.Statements))
	}
	for i := range got.Statements {
		wantOp, _ := Op(tpl.Statements[i])
		gotOp, _ := Op(got.Statements[i])
		if gotOp != wantOp {
			t.Errorf("statement %d op = %q, want %q", i, gotOp, wantOp)
		}
	}

	h1, err := Hash(tpl)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(got)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Error("hash changed across a CBOR round trip")
	}
}

func TestHash(t *testing.T) {
	a := &Template{Statements: []any{[]any{"append", float64(42), false}}}
	b := &Template{Statements: []any{[]any{"append", int64(42), false}}}
	c := &Template{Statements: []any{[]any{"append", int64(43), false}}}

	ha, _ := Hash(a)
	hb, _ := Hash(b)
	hc, _ := Hash(c)
	if ha != hb {
		t.Error("42.0 and 42 should hash the same")
	}
	if ha == hc {
		t.Error("different templates should hash differently")
	}

	empty, _ := Hash(&Template{})
	emptyList, _ := Hash(&Template{Statements: []any{}})
	if empty != emptyList {
		t.Error("nil and empty statement lists should hash the same")
	}
}

func TestOp(t *testing.T) {
	tests := []struct {
		tuple  any
		want   string
		wantOK bool
	}{
		{[]any{"text", "x"}, OpText, true},
		{[]any{float64(0), "x"}, OpText, true},
		{[]any{int64(12), []any{"a"}}, OpGet, true},
		{[]any{uint64(16), []any{}}, OpConcat, true},
		{[]any{"bogus"}, "bogus", false},
		{[]any{float64(99)}, "", false},
		{[]any{1.5}, "", false},
		{[]any{}, "", false},
		{"text", "", false},
	}
	for _, tt := range tests {
		got, ok := Op(tt.tuple)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Op(%v) = %q, %v, want %q, %v", tt.tuple, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCode(t *testing.T) {
	for i, name := range opCodes {
		c, ok := Code(name)
		if !ok || c != i {
			t.Errorf("Code(%q) = %d, %v, want %d", name, c, ok, i)
		}
	}
	if _, ok := Code("nope"); ok {
		t.Error("Code(nope) should fail")
	}
}
