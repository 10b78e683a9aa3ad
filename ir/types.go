package ir

import (
	"strconv"
	"strings"
)

// Type is a backend type handle: an integer width, the double-precision
// float, a pointer, a struct aggregate, or a function signature.
type Type interface {
	// String renders the type for diagnostics and the textual IR dump.
	String() string
	// Bits returns the in-memory width for scalar types, 64 for a
	// pointer, and 0 for aggregates (whose size is computed from fields).
	Bits() int
}

// IntType is an integer of the given bit width (1 for booleans, 32 for
// lang:i32).
type IntType struct{ Width int }

func (t *IntType) String() string { return "i" + strconv.Itoa(t.Width) }
func (t *IntType) Bits() int      { return t.Width }

// FloatType is IEEE-754 double precision (the historical "lang:float").
type FloatType struct{}

func (t *FloatType) String() string { return "double" }
func (t *FloatType) Bits() int      { return 64 }

// PointerType points to Elem.
type PointerType struct{ Elem Type }

func (t *PointerType) String() string { return t.Elem.String() + "*" }
func (t *PointerType) Bits() int      { return 64 }

// NamedType pairs a field name with its Type, used by StructType.
type NamedType struct {
	Name string
	Type Type
}

// StructType is a named aggregate of ordered fields.
type StructType struct {
	StructName string
	Fields     []NamedType
}

func (t *StructType) String() string {
	var b strings.Builder
	b.WriteString("%")
	b.WriteString(t.StructName)
	b.WriteString(" = type {")
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Type.String())
	}
	b.WriteString("}")
	return b.String()
}

func (t *StructType) Bits() int {
	total := 0
	for _, f := range t.Fields {
		total += f.Type.Bits()
	}
	return total
}

// FieldIndex returns the index of a field by name, or -1.
func (t *StructType) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FuncType is a function signature: an initial i32 selecting the entry
// exec-input, the graph's data inputs, trailing output pointers, and an
// i32 return selecting the taken exec-output — see GraphFunction in the
// spec for why the signature takes this shape.
type FuncType struct {
	Params []Type
	Return Type
}

func (t *FuncType) String() string {
	var b strings.Builder
	b.WriteString(t.Return.String())
	b.WriteString(" (")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(")")
	return b.String()
}

func (t *FuncType) Bits() int { return 0 }

// Well-known primitive types, shared by every Context (they carry no
// per-context state, so allocating them fresh is cheap and avoids a
// global singleton).
var (
	I1     Type = &IntType{Width: 1}
	I8Ptr  Type = &PointerType{Elem: &IntType{Width: 8}}
	I32    Type = &IntType{Width: 32}
	Double Type = &FloatType{}
)
