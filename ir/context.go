// Package ir is Chigraph's backend: a small, from-scratch intermediate
// representation standing in for the real project's LLVM IR builder.
//
// No Go LLVM binding appears anywhere in the retrieved reference corpus,
// so rather than fabricate a dependency on a package nobody in the corpus
// imports, this package implements the pieces the compiler layer actually
// needs — typed SSA-ish values, basic blocks, an indirect-branch op, a
// DWARF-shaped debug-info side table, module linking, and a bitcode-
// equivalent binary encoding — entirely on the standard library. Its
// shape (Context owns process-wide state; Module owns Functions; Function
// owns BasicBlocks; an explicit IndirectBr op with lazily-added
// destinations) mirrors what the compiler package expects from a real
// backend, so swapping in a genuine LLVM binding later only touches this
// package.
package ir

import "sync"

var nativeInitOnce sync.Once

// EnsureNativeTargetInit performs process-wide backend initialization
// exactly once, no matter how many Contexts are constructed. Real LLVM
// bindings require native-target/asm-printer init to run once per
// process; this is the equivalent one-shot guard.
func EnsureNativeTargetInit() {
	nativeInitOnce.Do(func() {
		// No process-wide native backend to initialize in this from-scratch
		// IR; the guard exists so Context construction always goes through
		// the same one-time-init seam a real backend would require.
	})
}

// Context owns one backend's worth of process state: its type cache and
// the set of modules built against it. A Context is not safe for
// concurrent use from multiple goroutines (matches the single-threaded
// scheduling model of the real backend); independent Contexts may be
// used concurrently from separate goroutines.
type Context struct {
	types    map[string]Type
	dropped  bool
	mu       sync.Mutex // guards types; Context itself is still single-writer by contract
}

// NewContext creates a new backend context, running the process-wide
// one-time init if it has not already run.
func NewContext() *Context {
	EnsureNativeTargetInit()
	return &Context{types: make(map[string]Type)}
}

// Drop releases this Context's resources. After Drop, the Context must
// not be used. Mirrors the teardown-bound-to-construction lifecycle
// described for the real backend context.
func (c *Context) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = nil
	c.dropped = true
}

// intern caches named types (primarily structs) so repeated lookups by
// name return the identical Type value.
func (c *Context) intern(name string, t Type) Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return t
	}
	if existing, ok := c.types[name]; ok {
		return existing
	}
	c.types[name] = t
	return t
}

// NewModule creates an empty Module owned by this Context.
func (c *Context) NewModule(name, sourcePath string) *Module {
	return &Module{
		ctx:        c,
		Name:       name,
		SourcePath: sourcePath,
		functions:  make(map[string]*Function),
	}
}

// StructType returns (creating if needed) the named struct type for this
// context, so two lookups of the same struct name return the same Type.
func (c *Context) StructType(name string, fields []NamedType) *StructType {
	st := &StructType{StructName: name, Fields: fields}
	interned := c.intern("struct:"+name, st)
	return interned.(*StructType)
}
