// Package gfunction implements GraphFunction: a function's graph of
// NodeInstances keyed by identity, its typed signature, local
// variables, and the synthesized entry/exit node shape.
package gfunction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

var (
	// ErrDuplicateEntry is returned when a second lang:entry node is
	// attempted; entry uniqueness is rejected at construction time
	// rather than deferred to validation (resolves the spec's open
	// question on when to enforce this).
	ErrDuplicateEntry  = errors.New("gfunction: function already has an entry node")
	ErrDuplicateLocal  = errors.New("gfunction: local variable name already in use")
	ErrUnknownLocal    = errors.New("gfunction: no such local variable")
	ErrUnknownNode     = errors.New("gfunction: no such node")
)

// Module is the owning GraphModule's view a GraphFunction needs: enough
// to bump the module's edit clock on every mutation (the node package's
// Owner contract flows through here).
type Module interface {
	Touch()
}

// Function is a single graph function.
type Function struct {
	module Module
	name   string

	description string
	dataInputs  []datatype.NamedDataType
	dataOutputs []datatype.NamedDataType
	execInputs  []string
	execOutputs []string

	locals []datatype.NamedDataType

	nodes   map[uuid.UUID]*node.Instance
	order   []uuid.UUID // insertion order, for deterministic iteration
	entryID *uuid.UUID
}

// New constructs a Function with the given signature and immediately
// places its unique entry node.
func New(module Module, name string, dataInputs, dataOutputs []datatype.NamedDataType, execInputs, execOutputs []string) *Function {
	f := &Function{
		module: module, name: name,
		dataInputs: dataInputs, dataOutputs: dataOutputs,
		execInputs: execInputs, execOutputs: execOutputs,
		nodes: make(map[uuid.UUID]*node.Instance),
	}
	entryType := nodetype.NewEntry(dataInputs, execInputs)
	n := node.New(entryType, f, 0, 0)
	f.nodes[n.ID] = n
	f.order = append(f.order, n.ID)
	f.entryID = &n.ID
	return f
}

// Touch forwards a mutation signal to the owning module, satisfying
// node.Owner for every NodeInstance this function places.
func (f *Function) Touch() { f.module.Touch() }

// Name returns the function's unqualified name.
func (f *Function) Name() string { return f.name }

// Description returns the function's human-readable description.
func (f *Function) Description() string { return f.description }

// SetDescription records a human-readable description.
func (f *Function) SetDescription(s string) {
	f.description = s
	f.Touch()
}

// DataInputs, DataOutputs, ExecInputs, ExecOutputs return the function's
// typed signature.
func (f *Function) DataInputs() []datatype.NamedDataType  { return f.dataInputs }
func (f *Function) DataOutputs() []datatype.NamedDataType { return f.dataOutputs }
func (f *Function) ExecInputs() []string                  { return f.execInputs }
func (f *Function) ExecOutputs() []string                 { return f.execOutputs }

// Entry returns the function's unique entry node.
func (f *Function) Entry() *node.Instance {
	if f.entryID == nil {
		return nil
	}
	return f.nodes[*f.entryID]
}

// Nodes returns all placed nodes in insertion order.
func (f *Function) Nodes() []*node.Instance {
	out := make([]*node.Instance, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.nodes[id])
	}
	return out
}

// Node looks up a node by id.
func (f *Function) Node(id uuid.UUID) *node.Instance { return f.nodes[id] }

// AddNode places a new node of the given type. A second lang:entry is
// rejected outright per ErrDuplicateEntry.
func (f *Function) AddNode(nt *nodetype.NodeType, x, y float64) (*node.Instance, error) {
	if nt.Kind == nodetype.KindEntry && f.entryID != nil {
		return nil, ErrDuplicateEntry
	}
	n := node.New(nt, f, x, y)
	f.nodes[n.ID] = n
	f.order = append(f.order, n.ID)
	if nt.Kind == nodetype.KindEntry {
		f.entryID = &n.ID
	}
	f.Touch()
	return n, nil
}

// RemoveNode disconnects and removes the node with the given id. The
// function's entry node may not be removed directly.
func (f *Function) RemoveNode(id uuid.UUID) error {
	n, ok := f.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if f.entryID != nil && *f.entryID == id {
		return fmt.Errorf("gfunction: cannot remove the entry node")
	}
	for i := range n.Type.DataInputs {
		_ = node.DisconnectData(n, i)
	}
	for i := range n.Type.ExecOutputs {
		_ = node.DisconnectExecOutput(n, i)
	}
	for i := range n.Type.DataOutputs {
		for _, consumer := range n.OutputDataConnections(i) {
			_ = node.DisconnectData(consumer.Node, consumer.Slot)
		}
	}
	for i := range n.Type.ExecInputs {
		for _, upstream := range n.InputExecConnections(i) {
			_ = node.DisconnectExecOutput(upstream.Node, upstream.Slot)
		}
	}
	delete(f.nodes, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.Touch()
	return nil
}

// Locals returns the ordered local-variable list.
func (f *Function) Locals() []datatype.NamedDataType {
	return append([]datatype.NamedDataType(nil), f.locals...)
}

func (f *Function) localIndex(name string) int {
	for i, l := range f.locals {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// AddLocal declares a new function-local variable; names must be unique
// within the function.
func (f *Function) AddLocal(name string, ty *datatype.DataType) error {
	if f.localIndex(name) != -1 {
		return fmt.Errorf("%w: %s", ErrDuplicateLocal, name)
	}
	f.locals = append(f.locals, datatype.NamedDataType{Name: name, Type: ty})
	f.Touch()
	return nil
}

// RemoveLocal removes the named local and cascades to remove every
// _get_/_set_ node instance referencing it, since those node types
// carry no meaning once their local is gone.
func (f *Function) RemoveLocal(name string) error {
	idx := f.localIndex(name)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrUnknownLocal, name)
	}
	f.locals = append(f.locals[:idx], f.locals[idx+1:]...)

	var toRemove []uuid.UUID
	for _, id := range f.order {
		n := f.nodes[id]
		if (n.Type.Kind == nodetype.KindGetLocal || n.Type.Kind == nodetype.KindSetLocal) && n.Type.LocalName == name {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		_ = f.RemoveNode(id)
	}
	f.Touch()
	return nil
}

// BackendFuncType produces the ABI signature described in §3: an
// initial i32 selecting the entered exec-input, the graph's data
// inputs, trailing output pointers, and an i32 return selecting the
// exec-output taken.
func (f *Function) BackendFuncType() *ir.FuncType {
	params := make([]ir.Type, 0, 1+len(f.dataInputs)+len(f.dataOutputs))
	params = append(params, ir.I32)
	for _, in := range f.dataInputs {
		params = append(params, in.Type.Backend())
	}
	for _, out := range f.dataOutputs {
		params = append(params, &ir.PointerType{Elem: out.Type.Backend()})
	}
	return &ir.FuncType{Params: params, Return: ir.I32}
}

// NewExitNode builds a new lang:exit NodeType instance sized to this
// function's data outputs and exec outputs; callers place it via
// AddNode like any other node.
func (f *Function) NewExitNode() *nodetype.NodeType {
	return nodetype.NewExit(f.dataOutputs, f.execOutputs)
}

// NewGetLocalNode builds the pure _get_<name> NodeType reading the named
// local variable, per §3's "get is pure" rule.
func (f *Function) NewGetLocalNode(name string) (*nodetype.NodeType, error) {
	idx := f.localIndex(name)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocal, name)
	}
	ty := f.locals[idx].Type
	nt := &nodetype.NodeType{
		Name: "_get_" + name, Kind: nodetype.KindGetLocal, Pure: true,
		LocalName:   name,
		DataOutputs: []datatype.NamedDataType{{Name: name, Type: ty}},
	}
	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		alloca := ctx.Local(name)
		if alloca == nil {
			return fmt.Errorf("gfunction: local %q has no backing alloca", name)
		}
		v := ctx.Block().Load(ctx.FreshName("get."+name), alloca)
		ctx.SetOutput(0, v)
		return nil
	}
	return nt, nil
}

// NewSetLocalNode builds the impure _set_<name> NodeType writing the
// named local variable, per §3's "set has one exec-in/out" rule.
func (f *Function) NewSetLocalNode(name string) (*nodetype.NodeType, error) {
	idx := f.localIndex(name)
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocal, name)
	}
	ty := f.locals[idx].Type
	nt := &nodetype.NodeType{
		Name: "_set_" + name, Kind: nodetype.KindSetLocal,
		LocalName:   name,
		DataInputs:  []datatype.NamedDataType{{Name: name, Type: ty}},
		ExecInputs:  []string{"in"},
		ExecOutputs: []string{"out"},
	}
	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		alloca := ctx.Local(name)
		if alloca == nil {
			return fmt.Errorf("gfunction: local %q has no backing alloca", name)
		}
		ctx.Block().Store(alloca, ctx.Input(0))
		target := ctx.ExecOut(0)
		if target == nil {
			return fmt.Errorf("gfunction: _set_%s node missing its exec-out target", name)
		}
		ctx.Block().Br(target)
		return nil
	}
	return nt, nil
}
