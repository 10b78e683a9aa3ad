// Package gstruct implements GraphStruct: a user-defined aggregate type
// owning an ordered list of (name, DataType) fields, producing a
// matching backend struct type and debug descriptor.
package gstruct

import (
	"fmt"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/nodetype"
)

// Module is the owning module's view a GraphStruct needs to qualify
// its own backend struct name and build field debug info.
type Module interface {
	Path() string
	BackendContext() *ir.Context
}

// Struct is a user-defined aggregate type.
type Struct struct {
	module Module
	name   string
	fields []datatype.NamedDataType

	dataType *datatype.DataType
}

// New constructs an empty struct named name within module. Fields are
// added with AddField; a Struct with zero fields is legal until its
// owning module is compiled (an empty aggregate is still a valid, if
// useless, backend type).
func New(module Module, name string) *Struct {
	return &Struct{module: module, name: name}
}

// Name returns the unqualified struct name.
func (s *Struct) Name() string { return s.name }

// Fields returns the ordered field list.
func (s *Struct) Fields() []datatype.NamedDataType {
	return append([]datatype.NamedDataType(nil), s.fields...)
}

// FieldIndex returns the index of the named field, or -1.
func (s *Struct) FieldIndex(name string) int {
	for i, f := range s.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// AddField appends a new field. Field names must be unique within the
// struct; mutating a struct invalidates any previously produced
// DataType (callers should discard it and call DataType again).
func (s *Struct) AddField(name string, ty *datatype.DataType) error {
	if s.FieldIndex(name) != -1 {
		return fmt.Errorf("gstruct: struct %q already has a field named %q", s.name, name)
	}
	s.fields = append(s.fields, datatype.NamedDataType{Name: name, Type: ty})
	s.dataType = nil
	return nil
}

// RemoveField removes the named field, if present.
func (s *Struct) RemoveField(name string) {
	idx := s.FieldIndex(name)
	if idx == -1 {
		return
	}
	s.fields = append(s.fields[:idx], s.fields[idx+1:]...)
	s.dataType = nil
}

// DataType lazily builds (and caches) the DataType for this struct: a
// backend aggregate of its fields' backend types, with a debug
// descriptor computed on first access.
func (s *Struct) DataType() *datatype.DataType {
	if s.dataType != nil {
		return s.dataType
	}
	named := make([]ir.NamedType, 0, len(s.fields))
	for _, f := range s.fields {
		named = append(named, ir.NamedType{Name: f.Name, Type: f.Type.Backend()})
	}
	backend := s.module.BackendContext().StructType(s.module.Path()+":"+s.name, named)
	// The backend context interns struct types by name, so the interned
	// type's body is reset to the current field list.
	backend.Fields = named
	s.dataType = datatype.New(s.module, s.name, backend, func() *ir.DebugType {
		return &ir.DebugType{Name: s.name, Bits: backend.Bits()}
	})
	return s.dataType
}

// NewMakeNode builds the pure _make_<Name> NodeType constructing a
// value of this struct from its ordered fields.
func (s *Struct) NewMakeNode() *nodetype.NodeType {
	fields := s.Fields()
	dt := s.DataType()
	st := dt.Backend().(*ir.StructType)

	nt := &nodetype.NodeType{
		ModulePath: s.module.Path(), Name: "_make_" + s.name, Kind: nodetype.KindMakeStruct, Pure: true,
		StructModule: s.module.Path(), StructName: s.name,
		DataInputs:  fields,
		DataOutputs: []datatype.NamedDataType{{Name: s.name, Type: dt}},
	}
	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		bb := ctx.Block()
		tmp := bb.Alloca(ctx.FreshName("make."+s.name), st)
		for i := range fields {
			bb.StoreField(tmp, i, ctx.Input(i))
		}
		v := bb.Load(ctx.FreshName("make."+s.name+".val"), tmp)
		ctx.SetOutput(0, v)
		return nil
	}
	return nt
}

// NewBreakNode builds the pure _break_<Name> NodeType destructuring a
// value of this struct back into its ordered fields.
func (s *Struct) NewBreakNode() *nodetype.NodeType {
	fields := s.Fields()
	dt := s.DataType()
	st := dt.Backend().(*ir.StructType)

	nt := &nodetype.NodeType{
		ModulePath: s.module.Path(), Name: "_break_" + s.name, Kind: nodetype.KindBreakStruct, Pure: true,
		StructModule: s.module.Path(), StructName: s.name,
		DataInputs:  []datatype.NamedDataType{{Name: s.name, Type: dt}},
		DataOutputs: fields,
	}
	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		bb := ctx.Block()
		tmp := bb.Alloca(ctx.FreshName("break."+s.name), st)
		bb.Store(tmp, ctx.Input(0))
		for i := range fields {
			v := bb.LoadField(ctx.FreshName("break."+s.name+"."+fields[i].Name), tmp, st, i)
			ctx.SetOutput(i, v)
		}
		return nil
	}
	return nt
}
