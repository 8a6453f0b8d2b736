// lox CLI - compiles and runs lox expressions
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"github.com/chazu/lox/cache"
	"github.com/chazu/lox/manifest"
	"github.com/chazu/lox/pkg/bytecode"
	"github.com/chazu/lox/server"
	"github.com/chazu/lox/vm"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes from sysexits.h.
const (
	exitOK          = 0
	exitUsage       = 64
	exitDataErr     = 65
	exitSoftware    = 70
	exitIOErr       = 74
	exitConfigError = 78
)

const imageExt = ".loxc"

var errColor = color.New(color.FgRed)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lox", flag.ContinueOnError)
	fs.SetOutput(stderr)

	output := fs.String("c", "", "Compile to a chunk image at this path instead of running")
	disasm := fs.Bool("d", false, "Print the disassembled chunk before running it")
	trace := fs.Bool("trace", false, "Trace the stack and each instruction while running")
	lspMode := fs.Bool("lsp", false, "Start the language server on stdio")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides lox.toml)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lox [options] [path]\n\n")
		fmt.Fprintf(stderr, "Runs a lox source file or %s image. Without a path, starts a REPL.\n\n", imageExt)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  lox                      # Start REPL\n")
		fmt.Fprintf(stderr, "  lox expr.lox             # Compile and run expr.lox\n")
		fmt.Fprintf(stderr, "  lox -c expr.loxc expr.lox  # Compile to an image\n")
		fmt.Fprintf(stderr, "  lox -d expr.loxc         # Disassemble and run an image\n")
		fmt.Fprintf(stderr, "  lox -lsp                 # Language server on stdio\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return exitUsage
	}
	path := fs.Arg(0)

	configDir := "."
	if path != "" {
		configDir = filepath.Dir(path)
	}
	m, err := manifest.FindAndLoad(configDir)
	if err != nil {
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return exitConfigError
	}

	// Flags override lox.toml
	if *trace {
		m.VM.Trace = true
	}
	if *disasm {
		m.Compiler.PrintCode = true
	}
	if *verbosity >= 0 {
		m.Log.Verbosity = *verbosity
	}

	var logPath *string
	if p := m.LogPath(); p != "" {
		logPath = &p
	}
	commonlog.Configure(m.Log.Verbosity, logPath)

	opts := []vm.Option{
		vm.WithStackSize(m.VM.StackSize),
		vm.WithStdout(stdout),
		vm.WithStderr(stderr),
	}
	if m.VM.Trace {
		opts = append(opts, vm.WithTrace(stdout))
	}

	if *lspMode {
		if err := server.NewLSP(opts...).Run(); err != nil {
			errColor.Fprintf(stderr, "Error: %v\n", err)
			return exitIOErr
		}
		return exitOK
	}

	if path == "" {
		if *output != "" {
			fmt.Fprintln(stderr, "Error: -c needs a source path")
			return exitUsage
		}
		machine := vm.New(append(opts, vm.WithPrintCode(m.Compiler.PrintCode))...)
		defer machine.Free()
		if err := runREPL(machine, stdout, stderr); err != nil {
			errColor.Fprintf(stderr, "Error: %v\n", err)
			return exitIOErr
		}
		return exitOK
	}

	chunk, code := load(path, m, stderr)
	if chunk == nil {
		return code
	}
	defer chunk.Free()

	if *output != "" {
		return writeImage(*output, chunk, stderr)
	}

	if m.Compiler.PrintCode {
		fmt.Fprint(stdout, chunk.Disassemble(filepath.Base(path)))
	}

	machine := vm.New(opts...)
	defer machine.Free()

	result, err := machine.Execute(chunk)
	if err != nil {
		errColor.Fprintln(stderr, err)
		return exitSoftware
	}
	fmt.Fprintln(stdout, result)
	return exitOK
}

// load reads path as a chunk image or compiles it as source, going through
// the compile cache when one is configured. On failure it reports the
// problem and returns a nil chunk with the exit code to use.
func load(path string, m *manifest.Manifest, stderr io.Writer) (*bytecode.Chunk, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		errColor.Fprintf(stderr, "Could not read file %q: %v\n", path, err)
		return nil, exitIOErr
	}

	if filepath.Ext(path) == imageExt {
		chunk, err := bytecode.UnmarshalImage(data)
		if err != nil {
			errColor.Fprintf(stderr, "Could not load image %q: %v\n", path, err)
			return nil, exitDataErr
		}
		return chunk, exitOK
	}

	var c *cache.Cache
	if p := m.CachePath(); p != "" {
		c, err = cache.Open(p)
		if err != nil {
			// A broken cache must not stop the program from running.
			errColor.Fprintf(stderr, "Warning: compile cache disabled: %v\n", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	chunk, err := cache.CompileCached(c, string(data))
	if err != nil {
		errColor.Fprintln(stderr, err)
		return nil, exitDataErr
	}
	return chunk, exitOK
}

func writeImage(path string, chunk *bytecode.Chunk, stderr io.Writer) int {
	data, err := bytecode.MarshalImage(chunk)
	if err != nil {
		errColor.Fprintf(stderr, "Error: %v\n", err)
		return exitSoftware
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		errColor.Fprintf(stderr, "Could not write image %q: %v\n", path, err)
		return exitIOErr
	}
	return exitOK
}
