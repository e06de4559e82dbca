package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymbolTable_DeclaredNamesFirst(t *testing.T) {
	st := NewSymbolTable([]string{"a"}, []string{"title"}, []string{"default"})

	if slot, ok := st.Local("a"); !ok || slot != 1 {
		t.Errorf("Local(a): got %d, %v; want 1, true", slot, ok)
	}
	if slot, _ := st.Named("@title"); slot != 2 {
		t.Errorf("Named(@title): got %d, want 2", slot)
	}
	if slot, _ := st.Named("title"); slot != 2 {
		t.Errorf("Named(title) should resolve to the @title slot, got %d", slot)
	}
	if slot, _ := st.Yield("default"); slot != 3 {
		t.Errorf("Yield(default): got %d, want 3", slot)
	}
	if st.Size() != 3 {
		t.Errorf("Size: got %d, want 3", st.Size())
	}
}

func TestSymbolTable_OnDemandSlots(t *testing.T) {
	st := NewSymbolTable(nil, nil, nil)
	if st.NamedSlots() != nil || st.YieldSlots() != nil {
		t.Error("a fresh table should report no named or yield slots")
	}

	child, _ := st.Child([]string{"x"})
	named, _ := child.Named("@late")
	yield, _ := child.Yield("inverse")

	if diff := cmp.Diff(map[string]int{"@late": named}, st.NamedSlots()); diff != "" {
		t.Errorf("NamedSlots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"inverse": yield}, st.YieldSlots()); diff != "" {
		t.Errorf("YieldSlots mismatch (-want +got):\n%s", diff)
	}
	if st.Size() != 3 {
		t.Errorf("Size: got %d, want 3", st.Size())
	}
}

func TestSymbolTable_BlockParamsShadow(t *testing.T) {
	st := NewSymbolTable(nil, nil, nil)
	outer, outerSlots := st.Child([]string{"item", "i"})
	inner, innerSlots := outer.Child([]string{"item"})

	if diff := cmp.Diff([]int{1, 2}, outerSlots); diff != "" {
		t.Errorf("outer slots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, innerSlots); diff != "" {
		t.Errorf("inner slots mismatch (-want +got):\n%s", diff)
	}

	if slot, _ := inner.Local("item"); slot != 3 {
		t.Errorf("inner item: got %d, want 3", slot)
	}
	if slot, _ := inner.Local("i"); slot != 2 {
		t.Errorf("inner i should resolve through the parent, got %d", slot)
	}
	if slot, _ := outer.Local("item"); slot != 1 {
		t.Errorf("outer item: got %d, want 1", slot)
	}
	if _, ok := st.Local("item"); ok {
		t.Error("block params must not leak into the root table")
	}
}

func TestSymbolTable_RepeatedParam(t *testing.T) {
	st := NewSymbolTable(nil, nil, nil)
	_, slots := st.Child([]string{"x", "x"})
	if diff := cmp.Diff([]int{1, 1}, slots); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}
