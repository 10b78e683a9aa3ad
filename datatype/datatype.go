// Package datatype implements Chigraph's DataType and NamedDataType: the
// handles that bind a qualified type name to a backend (ir) type and its
// lazily computed debug-info descriptor.
package datatype

import (
	"fmt"

	"github.com/chigraph/chi/ir"
)

// Module is the minimal view of an owning module a DataType needs:
// enough to produce a qualified name. Primitive types carry the
// built-in lang module's path view, whose Path is "lang".
type Module interface {
	Path() string
}

// DataType is immutable once constructed. Equality is by qualified name.
type DataType struct {
	module  Module // the lang module's path view for language primitives
	name    string
	backend ir.Type

	debugInfo     *ir.DebugType
	debugComputed bool
	debugFn       func() *ir.DebugType
}

// New constructs a DataType. debugFn is invoked at most once, lazily, the
// first time DebugInfo is called; it may be nil if no debug-info is ever
// needed for this type (e.g. in tests).
func New(module Module, name string, backend ir.Type, debugFn func() *ir.DebugType) *DataType {
	return &DataType{module: module, name: name, backend: backend, debugFn: debugFn}
}

// Name returns the unqualified name.
func (d *DataType) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Module returns the owning module (the lang module's path view for a
// language primitive), or nil for a DataType built with New(nil, ...).
func (d *DataType) Module() Module {
	if d == nil {
		return nil
	}
	return d.module
}

// Qualified returns "module:name" -- for a language primitive, module
// is the built-in lang module's own path ("lang"), so this renders
// "lang:i32" per §3/§6.4. A nil Module (only ever seen in tests that
// build a DataType directly with New(nil, ...)) falls back to the bare
// name.
func (d *DataType) Qualified() string {
	if d == nil {
		return ""
	}
	if d.module == nil {
		return d.name
	}
	return fmt.Sprintf("%s:%s", d.module.Path(), d.name)
}

// Backend returns the ir.Type handle used to build values of this type.
func (d *DataType) Backend() ir.Type {
	if d == nil {
		return nil
	}
	return d.backend
}

// Valid reports whether this DataType carries a non-nil backend type.
func (d *DataType) Valid() bool {
	return d != nil && d.backend != nil
}

// DebugInfo lazily computes and caches the DWARF-equivalent debug type.
func (d *DataType) DebugInfo() *ir.DebugType {
	if d == nil {
		return nil
	}
	if !d.debugComputed {
		if d.debugFn != nil {
			d.debugInfo = d.debugFn()
		}
		d.debugComputed = true
	}
	return d.debugInfo
}

// Equal compares two DataTypes by qualified name, per spec.
func (d *DataType) Equal(other *DataType) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Qualified() == other.Qualified()
}

func (d *DataType) String() string {
	return d.Qualified()
}

// NamedDataType pairs a documentation/port name with a DataType; used for
// parameters, struct fields, and data ports.
type NamedDataType struct {
	Name string
	Type *DataType
}
