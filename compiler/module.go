package compiler

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/chigraph/chi/gmodule"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/result"
	"github.com/chigraph/chi/validate"
)

// Loader resolves a dependency module path to its in-memory GraphModule,
// used by LowerModule to walk a module's declared dependency set.
type Loader interface {
	Load(path string) (*gmodule.Module, error)
}

// CSourceCompiler compiles a module's attached C source tree (§6.4/C
// interop) into a linkable *ir.Module. The ccall package implements this;
// it is accepted as an interface here rather than imported directly, so
// this package never depends on ccall's clang subprocess machinery.
type CSourceCompiler interface {
	Compile(sourceDir string) (*ir.Module, error)
}

// LineNumbers assigns each node in mod a stable DWARF line number: nodes
// are sorted lexicographically by (function name, uuid string) and
// numbered 1..N, per the determinism guarantee in §4.5 -- this is
// independent of the order any FunctionCompiler actually visits nodes
// in, which is what lets node compilation be driven recursively off
// ExecOut instead of an explicit scheduling queue.
func LineNumbers(mod *gmodule.Module) map[uuid.UUID]int {
	type key struct {
		fn string
		id uuid.UUID
	}
	var keys []key
	for _, fn := range mod.Functions() {
		for _, n := range fn.Nodes() {
			keys = append(keys, key{fn: fn.Name(), id: n.ID})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].fn != keys[j].fn {
			return keys[i].fn < keys[j].fn
		}
		return keys[i].id.String() < keys[j].id.String()
	})
	out := make(map[uuid.UUID]int, len(keys))
	for i, k := range keys {
		out[k.id] = i + 1
	}
	return out
}

// LowerModule implements GraphModule lowering (§4.6): it recursively
// lowers and links mod's dependencies (erroring on a dependency cycle),
// links in the module's compiled C sources if attached, validates every
// function, forward-declares every function so intra-module calls
// resolve regardless of compile order, compiles each function, stamps
// debug-info version and compile unit, and verifies the result.
//
// Following the split documented for this layer: error is non-nil only
// for EINT-class invariant violations (a malformed Loader/CSourceCompiler
// contract, a dependency cycle, a link conflict, an internal codegen
// bug) -- plumbing failures a caller cannot route around. Validation
// failures are ordinary, recoverable outcomes surfaced entirely through
// the returned *result.Result; a caller checks r.Success() before trusting
// the returned module.
func LowerModule(irctx *ir.Context, mod *gmodule.Module, loader Loader, cCompiler CSourceCompiler) (*ir.Module, *result.Result, error) {
	ctx, span := startModuleSpan(mod.Path())
	r := result.New()
	out, err := lowerModuleRec(ctx, irctx, mod, loader, cCompiler, make(map[string]*ir.Module), make(map[string]bool), r)
	endSpan(span, err)
	return out, r, err
}

func lowerModuleRec(ctx context.Context, irctx *ir.Context, mod *gmodule.Module, loader Loader, cCompiler CSourceCompiler, cache map[string]*ir.Module, visiting map[string]bool, r *result.Result) (*ir.Module, error) {
	if out, ok := cache[mod.Path()]; ok {
		return out, nil
	}
	if visiting[mod.Path()] {
		return nil, fmt.Errorf("compiler: dependency cycle involving module %q", mod.Path())
	}
	visiting[mod.Path()] = true
	defer delete(visiting, mod.Path())

	out := irctx.NewModule(mod.Path(), mod.Path())
	out.SetCompileUnit()

	for _, depPath := range mod.Dependencies() {
		if loader == nil {
			return nil, fmt.Errorf("compiler: module %q declares dependency %q but no Loader was supplied", mod.Path(), depPath)
		}
		depMod, err := loader.Load(depPath)
		if err != nil {
			return nil, fmt.Errorf("compiler: loading dependency %q of %q: %w", depPath, mod.Path(), err)
		}
		depIR, err := lowerModuleRec(ctx, irctx, depMod, loader, cCompiler, cache, visiting, r)
		if err != nil {
			return nil, err
		}
		if depIR == nil {
			// Dependency failed validation; r already carries its
			// diagnostics, nothing further to build on top of it.
			return nil, nil
		}
		if err := out.Link(depIR, false); err != nil {
			return nil, fmt.Errorf("compiler: linking dependency %q into %q: %w", depPath, mod.Path(), err)
		}
	}

	if mod.CEnabled() {
		if cCompiler == nil {
			return nil, fmt.Errorf("compiler: module %q has attached C sources but no CSourceCompiler was supplied", mod.Path())
		}
		cIR, err := cCompiler.Compile(mod.CSourceDir())
		if err != nil {
			return nil, fmt.Errorf("compiler: compiling C sources for %q: %w", mod.Path(), err)
		}
		if err := out.Link(cIR, false); err != nil {
			return nil, fmt.Errorf("compiler: linking C sources into %q: %w", mod.Path(), err)
		}
	}

	scope := r.AddScopedContext(map[string]any{"module": mod.Path()})
	for _, fn := range mod.Functions() {
		r.Append(validate.Function(mod.Path(), fn))
	}
	scope.Close()
	if !r.Success() {
		return nil, nil
	}

	for _, fn := range mod.Functions() {
		out.DeclareFunction(fn.Name(), fn.BackendFuncType(), backendParamNames(fn))
	}

	lineOf := LineNumbers(mod)
	for _, fn := range mod.Functions() {
		_, fnSpan := startFunctionSpan(ctx, mod.Path(), fn.Name())
		fc := NewFunctionCompiler(out, fn, lineOf)
		err := fc.Compile()
		endSpan(fnSpan, err)
		if err != nil {
			return nil, fmt.Errorf("compiler: compiling %s:%s: %w", mod.Path(), fn.Name(), err)
		}
	}

	out.SetDebugInfoVersionIfAbsent()
	if err := out.Verify(); err != nil {
		return nil, fmt.Errorf("compiler: verifying %q: %w", mod.Path(), err)
	}

	cache[mod.Path()] = out
	return out, nil
}
