package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/tessera/config"
	"github.com/chazu/tessera/registry"
	"github.com/chazu/tessera/wire"
)

func writeTemplate(t *testing.T, dir, file, src string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProgramSource_CacheToggle(t *testing.T) {
	tpl, err := wire.DecodeJSON([]byte(`{"statements": [["text", "hi"]]}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}

	tests := []struct {
		name    string
		enabled bool
		shared  bool
	}{
		{"enabled", true, true},
		{"disabled", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache.Enabled = tc.enabled
			src := newProgramSource(cfg, registry.New())

			a, err := src.Compile(tpl, "page")
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			b, err := src.Compile(tpl, "page")
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := a == b; got != tc.shared {
				t.Errorf("same program on second compile: got %v, want %v", got, tc.shared)
			}
		})
	}
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	header := writeTemplate(t, dir, "header.json", `{"statements": [["text", "h"]]}`)
	footer := writeTemplate(t, dir, "footer.tpl.json", `{"statements": [["text", "f"]]}`)

	inputs, err := loadTemplates(nil, "", "main", []string{header})
	if err != nil {
		t.Fatalf("loadTemplates: %v", err)
	}
	if len(inputs) != 1 || inputs[0].name != "main" {
		t.Errorf("single template: got %+v, want name main", inputs)
	}

	inputs, err = loadTemplates(nil, "", "main", []string{header, footer})
	if err != nil {
		t.Fatalf("loadTemplates: %v", err)
	}
	var names []string
	for _, in := range inputs {
		names = append(names, in.name)
	}
	if len(names) != 2 || names[0] != "header" || names[1] != "footer.tpl" {
		t.Errorf("names: got %v, want [header footer.tpl]", names)
	}

	bad := writeTemplate(t, dir, "bad.json", `{"statements": [`)
	if _, err := loadTemplates(nil, "", "main", []string{bad}); err == nil {
		t.Error("malformed template should fail to load")
	}
	if _, err := loadTemplates(nil, "stored", "main", nil); err == nil {
		t.Error("-store-get without a store should fail")
	}
}
