package component

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/tessera/reference"
	"github.com/chazu/tessera/vm"
)

func TestManager_Lifecycle(t *testing.T) {
	hooks := &Hooks{}
	m := NewManager(hooks)
	layout := &vm.Program{}
	def := m.Definition("x-card", layout)

	args := vm.NewEvaluatedArgs(nil, []string{"@title"}, []reference.PathReference{reference.Const("T")})
	c, err := m.Create(def, args, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := m.LayoutFor(def, c, nil)
	if err != nil || got != layout {
		t.Fatalf("LayoutFor: got %v, %v", got, err)
	}
	if !c.(*Component).HasBlock {
		t.Error("HasBlock should be true")
	}

	m.DidCreateElement(c, nil)
	m.DidRenderLayout(c, nil)
	m.DidCreate(c)
	if err := m.Update(c, args); err != nil {
		t.Fatalf("Update: %v", err)
	}
	m.DidUpdateLayout(c, nil)
	m.DidUpdate(c)
	m.GetDestructor(c).Destroy()

	want := []string{
		"create x-card",
		"didCreateElement x-card",
		"didRenderLayout x-card",
		"didCreate x-card",
		"update x-card",
		"didUpdateLayout x-card",
		"didUpdate x-card",
		"destroy x-card",
	}
	if diff := cmp.Diff(want, hooks.Calls()); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
	if !c.(*Component).Destroyed {
		t.Error("Destroyed should be set")
	}

	hooks.Reset()
	if len(hooks.Calls()) != 0 {
		t.Error("Reset should clear the calls")
	}
}

func TestManager_Self(t *testing.T) {
	m := NewManager(nil)
	title := reference.NewRoot("T")
	args := vm.NewEvaluatedArgs(nil, []string{"@title"}, []reference.PathReference{title})
	c, err := m.Create(m.Definition("x", &vm.Program{}), args, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	self := m.GetSelf(c)
	if diff := cmp.Diff(map[string]any{"title": "T"}, self.Value()); diff != "" {
		t.Errorf("self value mismatch (-want +got):\n%s", diff)
	}
	ref, err := self.Get("title")
	if err != nil || ref.Value() != "T" {
		t.Errorf("self.title: got %v, %v", ref, err)
	}
	missing, _ := self.Get("nope")
	if !reference.IsUndefined(missing.Value()) {
		t.Errorf("self.nope: got %v, want undefined", missing.Value())
	}

	snap := reference.Current()
	title.Update("U")
	if m.GetTag(c).Validate(snap) {
		t.Error("component tag should invalidate with its arguments")
	}
}

func TestManager_NoLayout(t *testing.T) {
	m := NewManager(nil)
	def := vm.ComponentDefinition{Name: "x", Manager: m}
	if _, err := m.LayoutFor(def, &Component{}, nil); !errors.Is(err, ErrNoLayout) {
		t.Errorf("got %v, want ErrNoLayout", err)
	}
}
