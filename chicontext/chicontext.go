// Package chicontext implements Context: the backend lifetime owner, the
// set of loaded GraphModules, and the single-hop type-converter registry
// (§3, §4.8). It is the top of the dependency graph among the domain
// packages -- gmodule/gfunction/gstruct never import it, avoiding the
// cycle documented in gmodule.go's package doc.
package chicontext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gmodule"
	"github.com/chigraph/chi/gstruct"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/langmodule"
	"github.com/chigraph/chi/nodetype"
)

var (
	// ErrModuleAlreadyLoaded is returned by RegisterModule for a path
	// already present.
	ErrModuleAlreadyLoaded = errors.New("chicontext: module already loaded")
	// ErrModuleNotLoaded is returned by Load when no Provider can resolve
	// a requested path.
	ErrModuleNotLoaded = errors.New("chicontext: module not loaded and no provider configured")
)

// converterKey identifies a single-hop (from, to) converter registration.
type converterKey struct{ from, to string }

// Provider resolves a module path not yet loaded into this Context --
// workspace.Workspace implements this against the on-disk layout (§6.2).
// Context depends on it only through this narrow interface, so chicontext
// itself never imports workspace.
type Provider interface {
	Provide(path string) (*gmodule.Module, error)
}

// Context owns one backend's worth of process state: the ir.Context type
// cache, the built-in lang module, every loaded GraphModule, and the
// converter registry. A Context is not safe for concurrent use, matching
// ir.Context's own single-writer contract.
type Context struct {
	backend *ir.Context
	lang    *langmodule.Module

	modules map[string]*gmodule.Module
	order   []string

	converters map[converterKey]*nodetype.NodeType

	provider Provider
}

// New constructs a Context with a fresh backend and the built-in lang
// module, and registers lang's int<->float conversions as the only
// built-in converters.
func New(provider Provider) *Context {
	c := &Context{
		backend:    ir.NewContext(),
		lang:       langmodule.New(),
		modules:    make(map[string]*gmodule.Module),
		converters: make(map[converterKey]*nodetype.NodeType),
		provider:   provider,
	}
	_ = c.RegisterConverter(c.lang.I32, c.lang.Float, c.lang.IntToFloat)
	_ = c.RegisterConverter(c.lang.Float, c.lang.I32, c.lang.FloatToInt)
	return c
}

// Backend returns the shared ir.Context every loaded module's GraphModule
// is built against.
func (c *Context) Backend() *ir.Context { return c.backend }

// Lang returns the built-in lang module.
func (c *Context) Lang() *langmodule.Module { return c.lang }

// RegisterModule adds an already-constructed GraphModule under its own
// path. Returns ErrModuleAlreadyLoaded for a duplicate path.
func (c *Context) RegisterModule(m *gmodule.Module) error {
	if _, exists := c.modules[m.Path()]; exists {
		return fmt.Errorf("%w: %s", ErrModuleAlreadyLoaded, m.Path())
	}
	c.modules[m.Path()] = m
	c.order = append(c.order, m.Path())
	return nil
}

// Module returns the module at path, if already loaded.
func (c *Context) Module(path string) (*gmodule.Module, bool) {
	m, ok := c.modules[path]
	return m, ok
}

// Modules returns every loaded module in registration order.
func (c *Context) Modules() []*gmodule.Module {
	out := make([]*gmodule.Module, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, c.modules[p])
	}
	return out
}

// Load returns the module at path, loading it through the configured
// Provider (and registering it) if not already present. Satisfies
// compiler.Loader, so a Context can be passed directly as LowerModule's
// dependency resolver.
func (c *Context) Load(path string) (*gmodule.Module, error) {
	if m, ok := c.modules[path]; ok {
		return m, nil
	}
	if c.provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotLoaded, path)
	}
	m, err := c.provider.Provide(path)
	if err != nil {
		return nil, fmt.Errorf("chicontext: loading %q: %w", path, err)
	}
	if err := c.RegisterModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterConverter records nt as the single-hop converter from from's
// type to to's type. A second registration for the same (from, to) pair
// overwrites the first -- last registration wins.
func (c *Context) RegisterConverter(from, to *datatype.DataType, nt *nodetype.NodeType) error {
	if !nt.IsWellFormedConverter() {
		return fmt.Errorf("chicontext: node type %q is not a well-formed converter", nt.Qualified())
	}
	c.converters[converterKey{from: from.Qualified(), to: to.Qualified()}] = nt
	return nil
}

// Converter looks up the single-hop converter from from's type to to's
// type, per §4.8 -- no multi-hop search, one map access.
func (c *Context) Converter(from, to *datatype.DataType) (*nodetype.NodeType, bool) {
	nt, ok := c.converters[converterKey{from: from.Qualified(), to: to.Qualified()}]
	return nt, ok
}

// splitQualified splits a "module:name" reference, as it appears in a
// .chimod file's type/struct/function position (§6.1), on its first
// colon. Module paths never contain one.
func splitQualified(qualified string) (module, name string, ok bool) {
	module, name, ok = strings.Cut(qualified, ":")
	return module, name, ok
}

// ResolveType resolves a qualified type name to a usable DataType
// handle: a lang primitive ("lang:i32", or the bare "i32" form accepted
// for backward compatibility) is tried against the built-in module
// first; anything else must be a "module:StructName" pair naming an
// already-loaded (or loadable) module's struct.
func (c *Context) ResolveType(qualified string) (*datatype.DataType, error) {
	if dt := c.lang.ByName(qualified); dt != nil {
		return dt, nil
	}
	st, err := c.ResolveStruct(qualified)
	if err != nil {
		return nil, err
	}
	return st.DataType(), nil
}

// ResolveStruct resolves a "module:StructName" reference, loading the
// named module through Load if it isn't already registered.
func (c *Context) ResolveStruct(qualified string) (*gstruct.Struct, error) {
	modPath, name, ok := splitQualified(qualified)
	if !ok {
		return nil, fmt.Errorf("chicontext: %q is not a qualified module:name reference", qualified)
	}
	m, err := c.Load(modPath)
	if err != nil {
		return nil, err
	}
	st := m.Struct(name)
	if st == nil {
		return nil, fmt.Errorf("chicontext: module %q has no struct named %q", modPath, name)
	}
	return st, nil
}

// ResolveFunction resolves a "module:FunctionName" reference, loading
// the named module through Load if it isn't already registered.
func (c *Context) ResolveFunction(qualified string) (*gfunction.Function, error) {
	modPath, name, ok := splitQualified(qualified)
	if !ok {
		return nil, fmt.Errorf("chicontext: %q is not a qualified module:name reference", qualified)
	}
	m, err := c.Load(modPath)
	if err != nil {
		return nil, err
	}
	fn := m.Function(name)
	if fn == nil {
		return nil, fmt.Errorf("chicontext: module %q has no function named %q", modPath, name)
	}
	return fn, nil
}
