// Package gmodule implements GraphModule: a namespace holding graph
// functions and structs, its dependency set, and the last_edit_time
// logical clock cache invalidation depends on. The lowering pipeline
// itself (§4.6) lives in the compiler package, which depends on both
// gmodule and chicontext; keeping it there avoids a gmodule<->chicontext
// import cycle (chicontext holds the set of loaded gmodule.Modules).
package gmodule

import (
	"errors"
	"fmt"

	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gstruct"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/nodetype"
)

var (
	ErrDuplicateFunction = errors.New("gmodule: function name already in use")
	ErrDuplicateStruct   = errors.New("gmodule: struct name already in use")
)

// Module is a single graph module/namespace.
type Module struct {
	path string
	ctx  *ir.Context

	functions     map[string]*gfunction.Function
	functionOrder []string
	structs       map[string]*gstruct.Struct
	structOrder   []string

	dependencies []string
	cEnabled     bool
	cSourceDir   string

	lastEditTime int64
}

// New constructs an empty module at path, backed by ctx.
func New(path string, ctx *ir.Context) *Module {
	return &Module{
		path: path, ctx: ctx,
		functions: make(map[string]*gfunction.Function),
		structs:   make(map[string]*gstruct.Struct),
	}
}

// Path returns the module's path-like qualified name.
func (m *Module) Path() string { return m.path }

// BackendContext returns the shared backend type context, satisfying
// gstruct.Module.
func (m *Module) BackendContext() *ir.Context { return m.ctx }

// Touch bumps the logical edit clock. Mutators on this module and on
// its functions, their nodes and locals call it; gstruct's AddField and
// RemoveField do not (gstruct's Module view has no Touch). The
// workspace bitcode cache is keyed on the source file's mtime and does
// not read this clock.
func (m *Module) Touch() { m.lastEditTime++ }

// LastEditTime returns the current value of the logical edit clock.
func (m *Module) LastEditTime() int64 { return m.lastEditTime }

// CEnabled reports whether this module has an attached C source tree.
func (m *Module) CEnabled() bool { return m.cEnabled }

// CSourceDir returns the directory holding this module's embedded C
// sources (only meaningful when CEnabled).
func (m *Module) CSourceDir() string { return m.cSourceDir }

// SetCSource enables C support and records the source directory.
func (m *Module) SetCSource(dir string) {
	m.cEnabled = true
	m.cSourceDir = dir
	m.Touch()
}

// Dependencies returns the module paths this module depends on.
func (m *Module) Dependencies() []string {
	return append([]string(nil), m.dependencies...)
}

// AddDependency records a dependency module path, if not already present.
func (m *Module) AddDependency(path string) {
	for _, d := range m.dependencies {
		if d == path {
			return
		}
	}
	m.dependencies = append(m.dependencies, path)
	m.Touch()
}

// Functions returns all functions in insertion order.
func (m *Module) Functions() []*gfunction.Function {
	out := make([]*gfunction.Function, 0, len(m.functionOrder))
	for _, name := range m.functionOrder {
		out = append(out, m.functions[name])
	}
	return out
}

// Function looks up a function by unqualified name.
func (m *Module) Function(name string) *gfunction.Function { return m.functions[name] }

// AddFunction registers fn under name; names must be unique within the
// module.
func (m *Module) AddFunction(name string, fn *gfunction.Function) error {
	if _, exists := m.functions[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	m.functions[name] = fn
	m.functionOrder = append(m.functionOrder, name)
	m.Touch()
	return nil
}

// RemoveFunction removes the named function, if present.
func (m *Module) RemoveFunction(name string) {
	if _, exists := m.functions[name]; !exists {
		return
	}
	delete(m.functions, name)
	for i, n := range m.functionOrder {
		if n == name {
			m.functionOrder = append(m.functionOrder[:i], m.functionOrder[i+1:]...)
			break
		}
	}
	m.Touch()
}

// Structs returns all structs in insertion order.
func (m *Module) Structs() []*gstruct.Struct {
	out := make([]*gstruct.Struct, 0, len(m.structOrder))
	for _, name := range m.structOrder {
		out = append(out, m.structs[name])
	}
	return out
}

// Struct looks up a struct by unqualified name.
func (m *Module) Struct(name string) *gstruct.Struct { return m.structs[name] }

// AddStruct registers st under name; names must be unique within the
// module.
func (m *Module) AddStruct(name string, st *gstruct.Struct) error {
	if _, exists := m.structs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStruct, name)
	}
	m.structs[name] = st
	m.structOrder = append(m.structOrder, name)
	m.Touch()
	return nil
}

// NewCallNode builds a function-call NodeType invoking target (declared
// under calleeModule as calleeName). Codegen resolves the callee
// through the backend module at each compile rather than holding a
// pointer to target itself -- the cross-module reference is the
// qualified name, resolved fresh every time, per the arena-ownership
// design note ("cross-module function-call nodes store the qualified
// name and resolve through Context on each compile").
func NewCallNode(target *gfunction.Function, calleeModule, calleeName string) *nodetype.NodeType {
	dataInputs := target.DataInputs()
	dataOutputs := target.DataOutputs()
	execOutputs := target.ExecOutputs()

	nt := &nodetype.NodeType{
		ModulePath: calleeModule, Name: calleeName, Kind: nodetype.KindFunctionCall,
		CalleeModule: calleeModule, CalleeName: calleeName,
		DataInputs:  dataInputs,
		DataOutputs: dataOutputs,
		ExecInputs:  target.ExecInputs(),
		ExecOutputs: execOutputs,
	}
	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		callee := ctx.Module().Function(calleeName)
		if callee == nil {
			return fmt.Errorf("gmodule: call to undeclared function %q", calleeName)
		}
		bb := ctx.Block()

		args := make([]ir.Value, 0, 1+len(dataInputs)+len(dataOutputs))
		args = append(args, &ir.ConstInt{Ty: ir.I32, Val: int64(ctx.ExecInSlot())})
		for i := range dataInputs {
			args = append(args, ctx.Input(i))
		}
		outAllocas := make([]*ir.Alloca, len(dataOutputs))
		for i, out := range dataOutputs {
			outAllocas[i] = bb.Alloca(ctx.FreshName("call."+calleeName+"."+out.Name), out.Type.Backend())
			args = append(args, outAllocas[i])
		}

		selector := bb.Call(ctx.FreshName("call."+calleeName), callee, args)
		for i := range dataOutputs {
			v := bb.Load(ctx.FreshName("call."+calleeName+".out"), outAllocas[i])
			ctx.SetOutput(i, v)
		}
		nodetype.EmitSwitch(bb, ctx, selector, len(execOutputs))
		return nil
	}
	return nt
}
