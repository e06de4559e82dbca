package vm_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/tessera/compiler"
	"github.com/chazu/tessera/component"
	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
	"github.com/chazu/tessera/registry"
	"github.com/chazu/tessera/vm"
	"github.com/chazu/tessera/wire"
)

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	reg   *registry.Registry
	hooks *component.Hooks
	mgr   *component.Manager
	comp  *compiler.Compiler
}

func newFixture() *fixture {
	reg := registry.New()
	hooks := &component.Hooks{}
	return &fixture{
		reg:   reg,
		hooks: hooks,
		mgr:   component.NewManager(hooks),
		comp:  compiler.New(reg),
	}
}

func (f *fixture) compile(t *testing.T, name, src string) *vm.Program {
	t.Helper()
	w, err := wire.DecodeJSON([]byte(src))
	if err != nil {
		t.Fatalf("DecodeJSON(%s): %v", name, err)
	}
	p, err := f.comp.Compile(w, name)
	if err != nil {
		t.Fatalf("Compile(%s): %v", name, err)
	}
	return p
}

// define registers a component whose layout is the given wire template.
// Components must be defined before the templates that invoke them are
// compiled.
func (f *fixture) define(t *testing.T, name, layout string) {
	t.Helper()
	f.reg.RegisterComponent(name, f.mgr.Definition(name, f.compile(t, name, layout)))
}

func (f *fixture) render(t *testing.T, p *vm.Program, self reference.PathReference, opts ...vm.Option) (*dom.SimpleNode, *vm.RenderResult) {
	t.Helper()
	doc := dom.NewDocument()
	root := doc.NewElement("body")
	r, err := vm.New(f.reg, doc, opts...).Render(p, self, root)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return root, r
}

func rerender(t *testing.T, r *vm.RenderResult) vm.UpdateStats {
	t.Helper()
	stats, err := r.Rerender()
	if err != nil {
		t.Fatalf("Rerender: %v", err)
	}
	return stats
}

func checkHTML(t *testing.T, root *dom.SimpleNode, want string) {
	t.Helper()
	if got := dom.InnerHTML(root); got != want {
		t.Errorf("html: got %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Content and updates
// ---------------------------------------------------------------------------

func TestRender_StaticContent(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "static", `{"statements": [
		["open-element", "div", null],
		["static-attr", "id", "a", null],
		["text", "hi & bye"],
		["close-element"],
		["comment", "c"]
	]}`)
	root, _ := f.render(t, p, nil)
	checkHTML(t, root, `<div id="a">hi &amp; bye</div><!--c-->`)
}

func TestRender_IdempotentRerender(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "hello", `{"statements": [
		["text", "Hello "],
		["append", ["unknown", ["name"]]],
		["text", "!"]
	]}`)
	self := reference.NewMap(map[string]any{"name": "World"})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "Hello World!")

	first := root.FirstChild()
	stats := rerender(t, r)
	checkHTML(t, root, "Hello World!")
	if root.FirstChild() != first {
		t.Error("rerender without changes should keep the same nodes")
	}
	if diff := cmp.Diff(vm.UpdateStats{Skipped: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	self.Set("name", "Tessera")
	stats = rerender(t, r)
	checkHTML(t, root, "Hello Tessera!")
	if diff := cmp.Diff(vm.UpdateStats{Evaluated: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_SelectiveUpdate(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "selective", `{
		"statements": [
			["block", ["if"], [["get", ["show"]]], null, 0, null],
			["open-element", "i", null],
			["append", ["get", ["b"]]],
			["close-element"]
		],
		"blocks": [
			{"statements": [["open-element", "b", null], ["append", ["get", ["a"]]], ["close-element"]]}
		]
	}`)
	self := reference.NewMap(map[string]any{"show": true, "a": "A", "b": "B"})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "<b>A</b><i>B</i>")

	bold := root.FirstChild()
	self.Set("b", "C")
	stats := rerender(t, r)
	checkHTML(t, root, "<b>A</b><i>C</i>")
	if root.FirstChild() != bold {
		t.Error("the untouched region should keep its nodes")
	}
	if diff := cmp.Diff(vm.UpdateStats{Evaluated: 1, Skipped: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ConditionalFlip(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "flip", `{
		"statements": [
			["text", "["],
			["block", ["if"], [["get", ["show"]]], null, 0, 1],
			["text", "]"]
		],
		"blocks": [
			{"statements": [["text", "yes"]]},
			{"statements": [["text", "no"]]}
		]
	}`)
	self := reference.NewMap(map[string]any{"show": true})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "[yes]")

	self.Set("show", false)
	stats := rerender(t, r)
	checkHTML(t, root, "[no]")
	if diff := cmp.Diff(vm.UpdateStats{Evaluated: 2, Reexecuted: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	self.Set("show", "truthy")
	rerender(t, r)
	checkHTML(t, root, "[yes]")

	// Same truthiness: the guard holds and nothing re-executes.
	self.Set("show", true)
	stats = rerender(t, r)
	checkHTML(t, root, "[yes]")
	if stats.Reexecuted != 0 {
		t.Errorf("Reexecuted: got %d, want 0", stats.Reexecuted)
	}
}

func TestRender_EmptyRegionPlaceholder(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "placeholder", `{
		"statements": [["block", ["if"], [["get", ["show"]]], null, 0, null]],
		"blocks": [{"statements": [["text", "x"]]}]
	}`)
	self := reference.NewMap(map[string]any{"show": false})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "<!---->")

	self.Set("show", true)
	rerender(t, r)
	checkHTML(t, root, "x")
}

func TestRender_Unless(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "unless", `{
		"statements": [["block", ["unless"], [["get", ["busy"]]], null, 0, 1]],
		"blocks": [
			{"statements": [["text", "idle"]]},
			{"statements": [["text", "busy"]]}
		]
	}`)
	self := reference.NewMap(map[string]any{"busy": false})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "idle")

	self.Set("busy", true)
	rerender(t, r)
	checkHTML(t, root, "busy")
}

func TestRender_With(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "with", `{
		"statements": [["block", ["with"], [["get", ["user"]]], null, 0, 1]],
		"blocks": [
			{"statements": [["append", ["get", ["u", "name"]]]], "locals": ["u"]},
			{"statements": [["text", "anon"]]}
		]
	}`)
	self := reference.NewMap(map[string]any{"user": map[string]any{"name": "Ann"}})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "Ann")

	self.Set("user", nil)
	rerender(t, r)
	checkHTML(t, root, "anon")
}

func TestRender_Each(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "each", `{
		"statements": [
			["open-element", "ul", null],
			["block", ["each"], [["get", ["items"]]], null, 0, 1],
			["close-element"]
		],
		"blocks": [
			{"statements": [
				["open-element", "li", null],
				["append", ["get", ["item"]]],
				["text", ":"],
				["append", ["get", ["i"]]],
				["close-element"]
			], "locals": ["item", "i"]},
			{"statements": [["open-element", "li", null], ["text", "none"], ["close-element"]]}
		]
	}`)
	self := reference.NewMap(map[string]any{"items": []any{"a", "b"}})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "<ul><li>a:0</li><li>b:1</li></ul>")

	self.Set("items", []any{})
	rerender(t, r)
	checkHTML(t, root, "<ul><li>none</li></ul>")

	self.Set("items", []string{"c"})
	rerender(t, r)
	checkHTML(t, root, "<ul><li>c:0</li></ul>")
}

func TestRender_Attributes(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "attrs", `{"statements": [
		["open-element", "div", null],
		["static-attr", "class", "a", null],
		["add-class", ["get", ["k"]]],
		["dynamic-attr", "title", ["get", ["t"]], null],
		["dynamic-attr", "hidden", ["get", ["h"]], null],
		["dynamic-prop", "checked", ["get", ["c"]]],
		["close-element"]
	]}`)
	self := reference.NewMap(map[string]any{"k": "b", "t": "T", "h": false, "c": true})
	root, r := f.render(t, p, self)
	checkHTML(t, root, `<div class="a b" title="T"></div>`)
	if got := root.FirstChild().Props["checked"]; got != true {
		t.Errorf("checked property: got %v, want true", got)
	}

	self.Set("t", nil)
	rerender(t, r)
	checkHTML(t, root, `<div class="a b"></div>`)

	self.Set("h", "yes")
	self.Set("k", nil)
	self.Set("c", false)
	rerender(t, r)
	checkHTML(t, root, `<div class="a" hidden="yes"></div>`)
	if got := root.FirstChild().Props["checked"]; got != false {
		t.Errorf("checked property: got %v, want false", got)
	}
}

func TestRender_TrustingAppend(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "raw", `{"statements": [
		["text", "<"],
		["append", ["get", ["markup"]], true],
		["text", ">"]
	]}`)
	self := reference.NewMap(map[string]any{"markup": "<b>x</b>"})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "&lt;<b>x</b>&gt;")

	self.Set("markup", "<i>y</i>")
	rerender(t, r)
	checkHTML(t, root, "&lt;<i>y</i>&gt;")
}

func TestRender_Helpers(t *testing.T) {
	f := newFixture()
	calls := 0
	f.reg.RegisterHelper("upper", func(pos []any, named map[string]any) any {
		calls++
		return strings.ToUpper(reference.ToString(pos[0])) + reference.ToString(named["suffix"])
	})
	f.reg.RegisterHelper("year", func(pos []any, named map[string]any) any { return 2026 })

	p := f.compile(t, "helpers", `{"statements": [
		["append", ["helper", ["upper"], [["get", ["name"]]], {"suffix": "!"}]],
		["text", " "],
		["append", ["unknown", ["year"]]],
		["text", " "],
		["append", ["concat", [["get", ["name"]], "-", ["unknown", ["year"]]]]]
	]}`)
	self := reference.NewMap(map[string]any{"name": "ann"})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "ANN! 2026 ann-2026")

	self.Set("name", "bob")
	before := calls
	rerender(t, r)
	checkHTML(t, root, "BOB! 2026 bob-2026")
	if calls <= before {
		t.Error("helper should be called again after its arguments changed")
	}
}

func TestRender_HelperPathUnsupported(t *testing.T) {
	f := newFixture()
	f.reg.RegisterHelper("h", func(pos []any, named map[string]any) any { return map[string]any{"foo": 1} })
	f.define(t, "x-yield", `{"statements": [["yield", null, [["helper", ["h"], null, null]]]]}`)
	p := f.compile(t, "main", `{
		"statements": [["block", ["x-yield"], null, null, 0, null]],
		"blocks": [{"statements": [["append", ["get", ["yielded", "foo"]]]], "locals": ["yielded"]}]
	}`)

	for i := 0; i < 2; i++ {
		doc := dom.NewDocument()
		_, err := vm.New(f.reg, doc).Render(p, nil, doc.NewElement("body"))
		if !errors.Is(err, reference.ErrHelperPath) {
			t.Fatalf("attempt %d: got %v, want ErrHelperPath", i, err)
		}
		var re *vm.RuntimeError
		if !errors.As(err, &re) || re.Op != "PUT_VALUE" {
			t.Errorf("attempt %d: got %v, want a PUT_VALUE RuntimeError", i, err)
		}
	}
}

func TestRender_FrameDepth(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "deep", `{
		"statements": [["block", ["if"], [true], null, 0, null]],
		"blocks": [
			{"statements": [["block", ["if"], [true], null, 1, null]]},
			{"statements": [["text", "x"]]}
		]
	}`)

	doc := dom.NewDocument()
	_, err := vm.New(f.reg, doc, vm.WithMaxFrameDepth(2)).Render(p, nil, doc.NewElement("body"))
	if !errors.Is(err, vm.ErrFrameDepth) {
		t.Errorf("got %v, want ErrFrameDepth", err)
	}

	root, _ := f.render(t, p, nil, vm.WithMaxFrameDepth(3), vm.WithTrace(true))
	checkHTML(t, root, "x")
}

// ---------------------------------------------------------------------------
// Components
// ---------------------------------------------------------------------------

func TestComponent_YieldToMissingBlock(t *testing.T) {
	f := newFixture()
	f.define(t, "x-layout", `{"statements": [["text", "Before-"], ["yield", null, null], ["text", "-After"]]}`)

	curly := f.compile(t, "curly", `{"statements": [["block", ["x-layout"], null, null, null, null]]}`)
	root, _ := f.render(t, curly, nil)
	checkHTML(t, root, "Before--After")

	element := f.compile(t, "element", `{"statements": [["open-element", "x-layout", null], ["close-element"]]}`)
	root, _ = f.render(t, element, nil)
	checkHTML(t, root, "Before--After")
}

func TestComponent_ConditionalYield(t *testing.T) {
	f := newFixture()
	f.define(t, "x-cond", `{
		"statements": [["block", ["if"], [["attr", ["predicate"]]], null, 0, 1]],
		"blocks": [
			{"statements": [["text", "Yes:"], ["yield", "default", [["attr", ["someValue"]]]]]},
			{"statements": [["text", "No:"], ["yield", "inverse", null]]}
		]
	}`)

	tests := []struct {
		predicate bool
		want      string
	}{
		{true, "Yes:Hello42outer"},
		{false, "No:Goodbye"},
	}
	for _, tc := range tests {
		p := f.compile(t, "main", fmt.Sprintf(`{
			"statements": [["block", ["x-cond"], null, {"predicate": %v, "someValue": "42"}, 0, 1]],
			"blocks": [
				{"statements": [["text", "Hello"], ["append", ["get", ["result"]]], ["append", ["unknown", ["outer"]]]], "locals": ["result"]},
				{"statements": [["text", "Goodbye"]]}
			]
		}`, tc.predicate))
		root, _ := f.render(t, p, reference.NewMap(map[string]any{"outer": "outer"}))
		checkHTML(t, root, tc.want)
	}
}

func TestComponent_PrimitiveYields(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{`true`, "true-"},
		{`false`, "false-"},
		{`null`, "-"},
		{`["undefined"]`, "-"},
		{`1`, "1-"},
		{`"foo"`, "foo-"},
	}
	for _, tc := range tests {
		f := newFixture()
		f.define(t, "x-prim", `{"statements": [["yield", null, [`+tc.value+`]]]}`)
		p := f.compile(t, "main", `{
			"statements": [["block", ["x-prim"], null, null, 0, null]],
			"blocks": [{"statements": [
				["append", ["get", ["yielded"]]],
				["text", "-"],
				["append", ["get", ["yielded", "foo", "bar"]]]
			], "locals": ["yielded"]}]
		}`)
		root, _ := f.render(t, p, nil)
		if got := dom.InnerHTML(root); got != tc.want {
			t.Errorf("yield %s: got %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestComponent_YieldedLength(t *testing.T) {
	f := newFixture()
	f.define(t, "x-len", `{"statements": [["yield", null, ["foo"]], ["text", "-"], ["yield", null, [""]]]}`)
	p := f.compile(t, "main", `{
		"statements": [["block", ["x-len"], null, null, 0, null]],
		"blocks": [{"statements": [
			["append", ["get", ["yielded"]]],
			["text", "-"],
			["append", ["get", ["yielded", "length"]]]
		], "locals": ["yielded"]}]
	}`)
	root, _ := f.render(t, p, nil)
	checkHTML(t, root, "foo-3--0")
}

func TestComponent_ArgumentsAndShadowAttributes(t *testing.T) {
	f := newFixture()
	f.define(t, "x-card", `{"statements": [
		["open-element", "div", null],
		["static-attr", "title", "inner", null],
		["static-attr", "class", "card", null],
		["append", ["attr", ["baz"]]],
		["close-element"]
	]}`)
	p := f.compile(t, "main", `{"statements": [
		["open-element", "x-card", null],
		["static-attr", "title", "outer", null],
		["static-attr", "foo", "bar", null],
		["dynamic-attr", "@baz", ["get", ["v"]], null],
		["close-element"]
	]}`)

	dis := vm.Disassemble(p)
	for _, want := range []string{"OPEN_COMPONENT x-card shadow=[title foo]", `@foo="bar"`, "@baz=self.v"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %q:\n%s", want, dis)
		}
	}

	self := reference.NewMap(map[string]any{"v": "V"})
	root, r := f.render(t, p, self)
	checkHTML(t, root, `<div title="outer" class="card" foo="bar">V</div>`)
	if diff := cmp.Diff([]string{
		"create x-card",
		"didCreateElement x-card",
		"didRenderLayout x-card",
		"didCreate x-card",
	}, f.hooks.Calls()); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}

	f.hooks.Reset()
	self.Set("v", "W")
	rerender(t, r)
	checkHTML(t, root, `<div title="outer" class="card" foo="bar">W</div>`)
	if diff := cmp.Diff([]string{
		"update x-card",
		"didUpdateLayout x-card",
		"didUpdate x-card",
	}, f.hooks.Calls()); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
}

func TestComponent_MergedClassArgument(t *testing.T) {
	f := newFixture()
	f.define(t, "x-box", `{"statements": [
		["open-element", "span", null],
		["append", ["attr", ["class"]]],
		["close-element"]
	]}`)
	p := f.compile(t, "main", `{"statements": [
		["open-element", "x-box", null],
		["static-attr", "class", "a", null],
		["add-class", ["get", ["k"]]],
		["close-element"]
	]}`)
	root, _ := f.render(t, p, reference.NewMap(map[string]any{"k": "b"}))
	checkHTML(t, root, `<span class="a b">a b</span>`)
}

func TestComponent_BlockInLayoutFlips(t *testing.T) {
	f := newFixture()
	f.define(t, "x-c", `{
		"statements": [["text", "In layout -- "], ["block", ["if"], [["attr", ["predicate"]]], null, 0, null]],
		"blocks": [{"statements": [["yield", null, null]]}]
	}`)
	p := f.compile(t, "main", `{
		"statements": [["block", ["x-c"], null, {"predicate": ["get", ["activated"]]}, 0, null]],
		"blocks": [{"statements": [["text", "In template"]]}]
	}`)
	self := reference.NewMap(map[string]any{"activated": true})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "In layout -- In template")
	layoutText := root.FirstChild()

	self.Set("activated", false)
	stats := rerender(t, r)
	checkHTML(t, root, "In layout -- <!---->")
	if diff := cmp.Diff(vm.UpdateStats{Evaluated: 3, Reexecuted: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	self.Set("activated", true)
	rerender(t, r)
	checkHTML(t, root, "In layout -- In template")
	if root.FirstChild() != layoutText {
		t.Error("static layout text should survive the flips")
	}
}

func TestComponent_Destroy(t *testing.T) {
	f := newFixture()
	f.define(t, "x-d", `{"statements": [["text", "d"]]}`)
	p := f.compile(t, "main", `{
		"statements": [
			["block", ["if"], [["get", ["show"]]], null, 0, null],
			["open-element", "x-d", null],
			["close-element"]
		],
		"blocks": [{"statements": [["open-element", "x-d", null], ["close-element"]]}]
	}`)
	self := reference.NewMap(map[string]any{"show": true})
	root, r := f.render(t, p, self)
	checkHTML(t, root, "dd")

	f.hooks.Reset()
	self.Set("show", false)
	rerender(t, r)
	checkHTML(t, root, "<!---->d")
	if diff := cmp.Diff([]string{"destroy x-d"}, f.hooks.Calls()); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}

	f.hooks.Reset()
	r.Destroy()
	checkHTML(t, root, "")
	if diff := cmp.Diff([]string{"destroy x-d"}, f.hooks.Calls()); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_SharedProgramConcurrently(t *testing.T) {
	f := newFixture()
	f.define(t, "x-row", `{"statements": [
		["open-element", "li", null],
		["append", ["attr", ["label"]]],
		["close-element"]
	]}`)
	p := f.compile(t, "list", `{
		"statements": [
			["open-element", "ul", null],
			["block", ["each"], [["get", ["items"]]], null, 0, null],
			["close-element"],
			["block", ["if"], [["get", ["show"]]], null, 1, null]
		],
		"blocks": [
			{"statements": [["block", ["x-row"], null, {"label": ["get", ["item"]]}, null, null]], "locals": ["item"]},
			{"statements": [["text", "shown"]]}
		]
	}`)

	const workers, passes = 8, 20
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			self := reference.NewMap(map[string]any{"items": []any{"a", "b"}, "show": true})
			doc := dom.NewDocument()
			root := doc.NewElement("body")
			r, err := vm.New(f.reg, doc).Render(p, self, root)
			if err != nil {
				t.Errorf("worker %d: Render: %v", w, err)
				return
			}
			for i := 0; i < passes; i++ {
				want := "<ul><li>a</li><li>b</li></ul>shown"
				if i%2 == 0 {
					self.Set("items", []any{fmt.Sprint(w)})
					self.Set("show", false)
					want = fmt.Sprintf("<ul><li>%d</li></ul><!---->", w)
				} else {
					self.Set("items", []any{"a", "b"})
					self.Set("show", true)
				}
				if _, err := r.Rerender(); err != nil {
					t.Errorf("worker %d pass %d: Rerender: %v", w, i, err)
					return
				}
				if got := dom.InnerHTML(root); got != want {
					t.Errorf("worker %d pass %d: got %q, want %q", w, i, got, want)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

func TestDisassemble_Conditional(t *testing.T) {
	f := newFixture()
	p := f.compile(t, "cond", `{
		"statements": [["block", ["if"], [["get", ["ok"]]], null, 0, null]],
		"blocks": [{"statements": [["text", "ok"]]}]
	}`)
	dis := vm.Disassemble(p)
	for _, want := range []string{"program cond", "ENTER", "TEST", "JUMP_UNLESS", "INVOKE_BLOCK", "EXIT", "block cond/block[0]", `TEXT "ok"`} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %q:\n%s", want, dis)
		}
	}
}
