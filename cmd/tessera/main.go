// tessera compiles a wire template and renders it to HTML.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tliron/commonlog"

	"github.com/chazu/tessera/compiler"
	"github.com/chazu/tessera/config"
	"github.com/chazu/tessera/dom"
	"github.com/chazu/tessera/reference"
	"github.com/chazu/tessera/registry"
	"github.com/chazu/tessera/store"
	"github.com/chazu/tessera/vm"
	"github.com/chazu/tessera/wire"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tessera.cmd")

func main() {
	dataPath := flag.String("data", "", "JSON file with the template's self value")
	name := flag.String("name", "main", "Template name")
	dump := flag.Bool("dump", false, "Print the disassembled program instead of rendering")
	storePut := flag.String("store-put", "", "Save the template in the configured store under this name")
	storeGet := flag.String("store-get", "", "Render the template stored under this name")
	verbose := flag.Int("v", -1, "Log verbosity (overrides tessera.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tessera [options] template.json...\n\n")
		fmt.Fprintf(os.Stderr, "Compiles wire templates and prints the rendered HTML of each.\n")
		fmt.Fprintf(os.Stderr, "Templates with identical content share one compiled program\n")
		fmt.Fprintf(os.Stderr, "unless [cache] enabled = false.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tessera -data page-data.json page.json\n")
		fmt.Fprintf(os.Stderr, "  tessera header.json page.json footer.json\n")
		fmt.Fprintf(os.Stderr, "  tessera -dump page.json\n")
		fmt.Fprintf(os.Stderr, "  tessera -store-put page page.json\n")
		fmt.Fprintf(os.Stderr, "  tessera -store-get page -data page-data.json\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fatal(err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	verbosity := cfg.Log.Verbosity
	if *verbose >= 0 {
		verbosity = *verbose
	}
	commonlog.Configure(verbosity, cfg.LogFile())

	var st *store.Store
	if path := cfg.StorePath(); path != "" {
		if st, err = store.Open(path); err != nil {
			fatal(err)
		}
		defer st.Close()
	}

	inputs, err := loadTemplates(st, *storeGet, *name, flag.Args())
	if err != nil {
		fatal(err)
	}

	if *storePut != "" {
		if st == nil {
			fatal(fmt.Errorf("-store-put: no [store] path in %s", config.FileName))
		}
		if len(inputs) != 1 {
			fatal(fmt.Errorf("-store-put: expected one template, got %d", len(inputs)))
		}
		h, err := st.Put(*storePut, inputs[0].tpl)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("stored %s %x\n", *storePut, h)
		return
	}

	self, err := loadData(*dataPath)
	if err != nil {
		fatal(err)
	}

	reg := registry.New()
	src := newProgramSource(cfg, reg)
	for _, in := range inputs {
		p, err := src.Compile(in.tpl, in.name)
		if err != nil {
			fatal(err)
		}
		if *dump {
			fmt.Print(vm.Disassemble(p))
			continue
		}

		doc := dom.NewDocument()
		root := doc.NewElement("body")
		if _, err := vm.New(reg, doc, cfg.VMOptions()...).Render(p, self, root); err != nil {
			fatal(err)
		}
		fmt.Println(dom.InnerHTML(root))
	}
	if c, ok := src.(*compiler.Cache); ok {
		hits, misses := c.Stats()
		log.Infof("program cache: %d hits, %d misses", hits, misses)
	}
}

type input struct {
	name string
	tpl  *wire.Template
}

func loadTemplates(st *store.Store, stored, name string, args []string) ([]input, error) {
	if stored != "" {
		if st == nil {
			return nil, fmt.Errorf("-store-get: no [store] path in %s", config.FileName)
		}
		tpl, err := st.Get(stored)
		if err != nil {
			return nil, err
		}
		return []input{{name: stored, tpl: tpl}}, nil
	}
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	inputs := make([]input, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		tpl, err := wire.DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		inputs = append(inputs, input{name: templateName(path, name, len(args)), tpl: tpl})
	}
	return inputs, nil
}

// templateName is -name for a single template, else the file's base name.
func templateName(path, name string, count int) string {
	if count == 1 {
		return name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// programSource compiles wire templates, either directly or through a
// content-addressed cache.
type programSource interface {
	Compile(t *wire.Template, name string) (*vm.Program, error)
}

// newProgramSource returns the compiler front for one run. With [cache]
// enabled, every template of the run goes through one shared cache.
func newProgramSource(cfg *config.Config, env vm.Environment) programSource {
	c := compiler.New(env)
	if !cfg.Cache.Enabled {
		return c
	}
	return compiler.NewCache(c)
}

func loadData(path string) (reference.PathReference, error) {
	if path == "" {
		return reference.NewMap(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reference.NewMap(values), nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
