// Package compile is the compilation entry point: it runs
// the full pipeline — lex/parse, name resolution, arity/shape checking,
// IR lowering, bytecode assembly — over a set of in-memory sources keyed
// by virtual path, against a host module registry, and returns a linked
// Unit plus the diagnostics bundle. The pipeline is a plain function,
// not a processor chain: there is exactly one fixed stage order and no
// third-party stages.
package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/hir"
	"github.com/weave-lang/weave/internal/modreg"
	"github.com/weave-lang/weave/internal/parser"
	"github.com/weave-lang/weave/internal/resolve"
	"github.com/weave-lang/weave/internal/token"
	"github.com/weave-lang/weave/internal/typesystem"
)

// Options are the recognized compiler options.
type Options struct {
	// Test enables #[test] discovery into Unit.Tests.
	Test bool
	// Bench enables #[bench] discovery into Unit.Benches.
	Bench bool
	// EmitInstructions attaches a full disassembly to Unit.Disassembly.
	EmitInstructions bool
	// Optimize enables constant folding during IR lowering.
	Optimize bool
	// Script treats the root source's top level as an implicit `main`
	// function body: statements are legal between item declarations.
	Script bool
}

// Hash returns a stable digest of the option set, for keying
// modreg.Cache entries: the same source compiled under different options
// yields different bytecode and must not collide in the cache.
func (o Options) Hash() string {
	repr := fmt.Sprintf("test=%t;bench=%t;emit=%t;opt=%t;script=%t",
		o.Test, o.Bench, o.EmitInstructions, o.Optimize, o.Script)
	sum := sha256.Sum256([]byte(repr))
	return hex.EncodeToString(sum[:8])
}

// HashSources digests a source set for modreg.Cache keying: virtual
// paths and contents both participate, in sorted-path order, so renaming
// a file or editing any byte misses the cache.
func HashSources(sources map[string]string) string {
	paths := sortedPaths(sources)
	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s\x00%d\x00", p, len(sources[p]))
		h.Write([]byte(sources[p]))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Compile compiles sources into one Unit. The root source — the file
// whose stem is "main", or the lexicographically first file otherwise —
// contributes top-level items; every other file's items live in a module
// named after its path stem, so `util.wv`'s `fn helper` is reachable as
// `util::helper`. host may be nil; when present its registered item
// paths resolve like script-declared fns and its values are linked into
// the returned Unit's Natives table. On any error-severity diagnostic
// the Unit is nil and the bundle carries the full report.
func Compile(sources map[string]string, host *modreg.Registry, opts Options) (*bytecode.Unit, *diag.Bundle) {
	diags := &diag.Bundle{}
	if len(sources) == 0 {
		diags.Errorf(diag.ErrParseUnexpected, "", token.Span{}, "no sources to compile")
		return nil, diags
	}

	paths := sortedPaths(sources)
	root := rootPath(paths)

	var merged *ast.Program
	if opts.Script {
		merged = parser.ParseScript(root, sources[root], diags)
	} else {
		merged = parser.Parse(root, sources[root], diags)
	}
	for _, p := range paths {
		if p == root {
			continue
		}
		prog := parser.Parse(p, sources[p], diags)
		merged.Items = append(merged.Items, &ast.ModItem{
			Name:  stem(p),
			Items: prog.Items,
			Sp:    prog.Sp,
		})
	}
	if diags.HasErrors() {
		diags.Sort()
		return nil, diags
	}

	var external []string
	if host != nil {
		external = host.Paths()
	}
	res := resolve.ResolveWithExternal(merged, diags, external)
	if diags.HasErrors() {
		diags.Sort()
		return nil, diags
	}

	reg := typesystem.Build(merged)
	typesystem.Check(merged, res, diags)
	if diags.HasErrors() {
		diags.Sort()
		return nil, diags
	}

	lowered := hir.LowerWith(merged, res, diags, hir.Config{Fold: opts.Optimize})
	if diags.HasErrors() {
		diags.Sort()
		return nil, diags
	}

	unit := bytecode.Assemble(lowered, reg)
	unit.SourceFile = root
	if opts.Test {
		unit.Tests = discoverAttr(merged.Items, "", "test")
	}
	if opts.Bench {
		unit.Benches = discoverAttr(merged.Items, "", "bench")
	}
	if opts.EmitInstructions {
		unit.Disassembly = disassembleUnit(unit)
	}
	if host != nil {
		host.Link(unit)
	}
	diags.Sort()
	return unit, diags
}

// CompileOne is the single-source convenience form most callers
// (pkg/weave's Eval, the unit-cache fill path) actually use.
func CompileOne(file, src string, host *modreg.Registry, opts Options) (*bytecode.Unit, *diag.Bundle) {
	return Compile(map[string]string{file: src}, host, opts)
}

func sortedPaths(sources map[string]string) []string {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func rootPath(paths []string) string {
	for _, p := range paths {
		if stem(p) == "main" {
			return p
		}
	}
	return paths[0]
}

func stem(p string) string {
	base := path.Base(p)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// discoverAttr collects the canonical paths of functions carrying the
// named attribute, walking nested modules the way the resolver's pass 1
// joins paths.
func discoverAttr(items []ast.Item, prefix, attr string) []string {
	var out []string
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			if hasAttr(node.AttrList, attr) {
				out = append(out, joinPath(prefix, node.Name))
			}
		case *ast.ModItem:
			out = append(out, discoverAttr(node.Items, joinPath(prefix, node.Name), attr)...)
		}
	}
	return out
}

func hasAttr(attrs []*ast.Attribute, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

func disassembleUnit(u *bytecode.Unit) string {
	var sb strings.Builder
	for _, fn := range u.Functions {
		chunk, ok := fn.Chunk.(*bytecode.Chunk)
		if !ok {
			continue
		}
		sb.WriteString(bytecode.Disassemble(u, chunk, fn.Name))
		sb.WriteByte('\n')
	}
	return sb.String()
}
