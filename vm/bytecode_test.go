package vm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpKind_Names(t *testing.T) {
	tests := []struct {
		op   OpKind
		want string
	}{
		{OpText, "TEXT"},
		{OpPutValue, "PUT_VALUE"},
		{OpJumpUnless, "JUMP_UNLESS"},
		{OpEach, "EACH"},
		{OpFlushElement, "FLUSH_ELEMENT"},
		{OpOpenComponent, "OPEN_COMPONENT"},
		{OpKind(0xFF), "UNKNOWN_FF"},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("OpKind(%#x).String() = %q, want %q", byte(tc.op), got, tc.want)
		}
	}
}

func TestBuilder_ForwardAndBackwardLabels(t *testing.T) {
	b := NewBuilder()
	top := b.NewLabel()
	end := b.NewLabel()

	b.Mark(top)
	b.Emit(Text{Text: "a"})
	b.JumpUnless(end)
	b.Jump(top)
	b.Mark(end)
	b.Enter(top, end)

	ops, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []Opcode{
		Text{Text: "a"},
		JumpUnless{Target: 3},
		Jump{Target: 0},
		Enter{Begin: 0, End: 3},
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_UnresolvedLabel(t *testing.T) {
	b := NewBuilder()
	b.Jump(b.NewLabel())
	if _, err := b.Build(); !errors.Is(err, ErrUnresolvedLabel) {
		t.Errorf("got %v, want ErrUnresolvedLabel", err)
	}

	b = NewBuilder()
	begin := b.NewLabel()
	b.Mark(begin)
	b.Enter(begin, b.NewLabel())
	if _, err := b.Build(); !errors.Is(err, ErrUnresolvedLabel) {
		t.Errorf("got %v, want ErrUnresolvedLabel", err)
	}
}

func TestBuilder_DoubleMarkPanics(t *testing.T) {
	b := NewBuilder()
	l := b.NewLabel()
	b.Mark(l)
	defer func() {
		if recover() == nil {
			t.Error("marking a label twice should panic")
		}
	}()
	b.Mark(l)
}
