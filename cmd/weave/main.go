package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/compile"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/runtime"
	"github.com/weave-lang/weave/internal/value"
)

const sourceExt = ".wv"

const usage = `Usage: weave [command] [flags] <file...>

Commands:
  <file...>            compile the files and run main
  check <file...>      compile only and report diagnostics
  test <file...>       compile with test discovery and run every #[test] fn
  -c, --compile <file> compile a source file to a .wvbc bytecode file
  -r, --run <file>     run a compiled .wvbc bytecode file
  help                 show this message

Flags:
  -O, --optimize       enable constant folding
  --disasm             print the compiled instruction listing to stderr
  --yaml               (check) emit diagnostics as YAML instead of rendered text

With no file argument, source is read from stdin and evaluated in script
mode (top-level statements allowed, trailing expression printed).
`

var (
	optimize bool
	disasm   bool
	yamlOut  bool
)

// stripFlags consumes the host-level flags from args and returns what is
// left, so every handler sees only its command word and file operands.
func stripFlags(args []string) []string {
	var rest []string
	for _, arg := range args {
		switch arg {
		case "-O", "--optimize":
			optimize = true
		case "--disasm":
			disasm = true
		case "--yaml":
			yamlOut = true
		default:
			rest = append(rest, arg)
		}
	}
	return rest
}

func baseOptions() compile.Options {
	return compile.Options{Optimize: optimize, EmitInstructions: disasm}
}

// readSources loads each path into a sources map keyed by base name, the
// stem of which becomes the file's module name.
func readSources(paths []string) map[string]string {
	sources := make(map[string]string, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		sources[filepath.Base(p)] = string(content)
	}
	return sources
}

// expandDirs replaces directory operands with the source files they
// contain, one level deep.
func expandDirs(args []string) []string {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading directory: %s\n", err)
			os.Exit(1)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), sourceExt) {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths
}

func compileOrExit(sources map[string]string, opts compile.Options) *bytecode.Unit {
	unit, diags := compile.Compile(sources, nil, opts)
	reportWarnings(diags)
	if diags.HasErrors() {
		diags.Render(os.Stderr)
		os.Exit(1)
	}
	if disasm && unit.Disassembly != "" {
		fmt.Fprint(os.Stderr, unit.Disassembly)
	}
	return unit
}

// reportWarnings renders a bundle that carries only warnings; an error
// bundle is rendered whole by the caller, warnings included.
func reportWarnings(diags *diag.Bundle) {
	if diags.HasErrors() || len(diags.Diagnostics) == 0 {
		return
	}
	diags.Render(os.Stderr)
}

func runUnit(unit *bytecode.Unit, entry string) value.Value {
	v, rerr, susp := runtime.Run(context.Background(), unit, entry, nil)
	if rerr == nil && susp != nil {
		if susp.Generator != nil {
			return value.FromObject(susp.Generator)
		}
		v, rerr = runtime.AwaitSuspension(susp)
	}
	if rerr != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %s\n", rerr.Error())
		os.Exit(1)
	}
	return v
}

func handleHelp() bool {
	if len(os.Args) < 2 {
		return false
	}
	if os.Args[1] != "help" && os.Args[1] != "-help" && os.Args[1] != "--help" {
		return false
	}
	fmt.Print(usage)
	return true
}

func handleCheck(args []string) bool {
	if len(args) == 0 || args[0] != "check" {
		return false
	}
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s check <file> [file2...]\n", os.Args[0])
		os.Exit(1)
	}

	sources := readSources(expandDirs(args[1:]))
	_, diags := compile.Compile(sources, nil, baseOptions())

	if yamlOut {
		if err := diags.EncodeYAML(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	} else {
		diags.Render(os.Stderr)
	}
	if diags.HasErrors() {
		os.Exit(1)
	}
	return true
}

func handleTest(args []string) bool {
	if len(args) == 0 || args[0] != "test" {
		return false
	}
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s test <file> [file2...]\n", os.Args[0])
		os.Exit(1)
	}

	paths := expandDirs(args[1:])
	if len(paths) == 0 {
		fmt.Println("No test files found")
		return true
	}

	opts := baseOptions()
	opts.Test = true

	passed, failed := 0, 0
	for _, path := range paths {
		fmt.Printf("\n=== %s ===\n", path)
		sources := readSources([]string{path})
		unit, diags := compile.Compile(sources, nil, opts)
		if diags.HasErrors() {
			diags.Render(os.Stderr)
			failed++
			continue
		}
		if len(unit.Tests) == 0 {
			fmt.Println("  (no tests)")
			continue
		}
		for _, testPath := range unit.Tests {
			_, rerr, susp := runtime.Run(context.Background(), unit, testPath, nil)
			if rerr == nil && susp != nil && susp.Generator == nil {
				_, rerr = runtime.AwaitSuspension(susp)
			}
			if rerr != nil {
				fmt.Printf("  FAIL %s\n       %s\n", testPath, strings.ReplaceAll(rerr.Error(), "\n", "\n       "))
				failed++
			} else {
				fmt.Printf("  ok   %s\n", testPath)
				passed++
			}
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
	return true
}

func handleCompile(args []string) bool {
	if len(args) < 1 || (args[0] != "-c" && args[0] != "--compile") {
		return false
	}
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s -c <file>\n", os.Args[0])
		os.Exit(1)
	}

	sourcePath := args[1]
	sources := readSources([]string{sourcePath})
	unit := compileOrExit(sources, baseOptions())

	data := bytecode.Encode(unit)
	outputPath := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".wvbc"
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing bytecode file: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("Compiled %s -> %s\n", sourcePath, outputPath)
	fmt.Printf("Bytecode size: %d bytes\n", len(data))
	return true
}

func handleRunCompiled(args []string) bool {
	if len(args) < 1 || (args[0] != "-r" && args[0] != "--run") {
		return false
	}
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s -r <file.wvbc>\n", os.Args[0])
		os.Exit(1)
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading bytecode file: %s\n", err)
		os.Exit(1)
	}
	unit, err := bytecode.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deserialization error: %s\n", err)
		os.Exit(1)
	}

	printResult(runUnit(unit, "main"))
	return true
}

func printResult(v value.Value) {
	if !v.IsNil() {
		fmt.Println(v.Inspect())
	}
}

func readInputFromArgs(args []string) (string, error) {
	if len(args) == 0 {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return "", fmt.Errorf("Usage: %s <file> or pipe from stdin", os.Args[0])
		}
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("Error reading input: %w", err)
		}
		return string(input), nil
	}
	return "", nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(2)
		}
	}()

	if handleHelp() {
		return
	}

	args := stripFlags(os.Args[1:])

	if handleCheck(args) {
		return
	}
	if handleTest(args) {
		return
	}
	if handleCompile(args) {
		return
	}
	if handleRunCompiled(args) {
		return
	}

	if len(args) == 0 {
		code, err := readInputFromArgs(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		opts := baseOptions()
		opts.Script = true
		unit := compileOrExit(map[string]string{"<stdin>": code}, opts)
		printResult(runUnit(unit, "main"))
		return
	}

	sources := readSources(expandDirs(args))
	unit := compileOrExit(sources, baseOptions())
	printResult(runUnit(unit, "main"))
}
