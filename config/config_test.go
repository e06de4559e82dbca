package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/tessera/vm"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[render]
max-frame-depth = 64
trace = true

[log]
verbosity = 2
file = "tessera.log"

[store]
path = "templates.db"

[cache]
enabled = false
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Render.MaxFrameDepth != 64 {
		t.Errorf("max-frame-depth = %d, want 64", c.Render.MaxFrameDepth)
	}
	if !c.Render.Trace {
		t.Error("trace = false, want true")
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if got := c.LogFile(); got == nil || *got != filepath.Join(c.Dir, "tessera.log") {
		t.Errorf("log file = %v, want tessera.log under %s", got, c.Dir)
	}
	if got := c.StorePath(); got != filepath.Join(c.Dir, "templates.db") {
		t.Errorf("store path = %q", got)
	}
	if c.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if len(c.VMOptions()) != 2 {
		t.Errorf("VMOptions returned %d options, want 2", len(c.VMOptions()))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[log]
verbosity = 1
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Render.MaxFrameDepth != vm.DefaultMaxFrameDepth {
		t.Errorf("max-frame-depth = %d, want %d", c.Render.MaxFrameDepth, vm.DefaultMaxFrameDepth)
	}
	if !c.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if c.StorePath() != "" || c.LogFile() != nil {
		t.Error("store and log file should be unset by default")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		desc    string
		content string
		want    string
	}{
		{"zero frame depth", "[render]\nmax-frame-depth = 0\n", "invalid config"},
		{"verbosity out of range", "[log]\nverbosity = 9\n", "invalid config"},
		{"wrong type", "[cache]\nenabled = \"yes\"\n", "parse error"},
		{"not toml", "[render\n", "parse error"},
	}
	for _, tc := range tests {
		dir := t.TempDir()
		writeConfig(t, dir, tc.content)
		_, err := Load(dir)
		if err == nil {
			t.Errorf("%s: expected an error", tc.desc)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q should mention %q", tc.desc, err, tc.want)
		}
	}
}

func TestValidateDefault(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[render]\ntrace = true\n")

	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil {
		t.Fatal("expected a config, got nil")
	}
	if !c.Render.Trace {
		t.Error("trace = false, want true")
	}
	if want, _ := filepath.Abs(dir); c.Dir != want {
		t.Errorf("dir = %q, want %q", c.Dir, want)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil, got %+v", c)
	}
}
