package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/term"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/bootstrap"
	"github.com/hexpatch/lua-injector/inject"
	"github.com/hexpatch/lua-injector/testbed"
)

func main() {
	var (
		modDir      = flag.String("mods", "", "Directory of .lua module files to inject")
		script      = flag.String("script", "", "Host script to run through the hooked compiler")
		eval        = flag.String("eval", "", "Inline chunk to run through the hooked compiler")
		list        = flag.Bool("list", false, "List registered preload modules and exit")
		strict      = flag.Bool("strict", false, "Install the hook but pass every compile through untouched")
		verbose     = flag.Bool("v", false, "Log every compile request")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *modDir == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: injector -mods <dir> [-script file.lua] [-eval chunk] [-list]")
		fmt.Fprintln(os.Stderr, "       injector [flags] module1.lua module2.lua ...")
		fmt.Fprintln(os.Stderr, "       injector -mods <dir> -i  (interactive mode)")
		os.Exit(1)
	}

	sources, err := collectSources(*modDir, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(sources, *strict); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(sources, *script, *eval, *list, *strict, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// collectSources gathers module sources from a directory of .lua files plus
// explicit file arguments. Module names come from the file names.
func collectSources(dir string, files []string) (inject.SliceSources, error) {
	var sources inject.SliceSources

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read mods dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read module: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		sources = append(sources, inject.Module{Name: name, Body: body})
	}
	return sources, nil
}

// newLogger picks console output for terminals, JSON otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg := zap.NewDevelopmentConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func run(sources inject.SliceSources, script, eval string, list, strict, verbose bool) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng := testbed.New()
	rt, err := bootstrap.Init(bootstrap.Options{
		Library:             eng,
		Installer:           eng.Installer(),
		Sources:             sources,
		Logger:              log,
		StrictMode:          strict,
		EmitFullDiagnostics: verbose,
	})
	if err != nil {
		return err
	}

	l := eng.NewState()
	defer eng.CloseState(l)

	var chunks []chunk
	if script != "" {
		body, err := os.ReadFile(script)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		chunks = append(chunks, chunk{name: "@" + script, body: body})
	}
	if eval != "" {
		chunks = append(chunks, chunk{name: "@eval", body: []byte(eval)})
	}
	if len(chunks) == 0 {
		// Seeding only happens on a compile call, so drive one even when
		// there is nothing to run.
		chunks = append(chunks, chunk{name: "@noop", body: []byte("return 0")})
	}

	lib := rt.Lib()
	for _, c := range chunks {
		f := lib.Begin(l)
		if st := eng.HostCompile(l, c.body, c.name, ""); st != luainject.OK {
			msg := lib.ToString(l, -1)
			f.Restore()
			return fmt.Errorf("compile %s: %s", c.name, msg)
		}
		if st := lib.PCall(l, 0, -1, 0); st != luainject.OK {
			msg := lib.ToString(l, -1)
			f.Restore()
			return fmt.Errorf("run %s: %s", c.name, msg)
		}
		for i := f.Depth() + 1; i <= lib.GetTop(l); i++ {
			fmt.Println(renderValue(eng.LState(l).Get(int(i))))
		}
		f.Restore()
	}

	if list {
		names := eng.PreloadNames(l)
		fmt.Printf("Registered modules: %d\n", len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

type chunk struct {
	name string
	body []byte
}

func renderValue(v lua.LValue) string {
	if v == lua.LNil {
		return "nil"
	}
	return v.String()
}
