// Package langmodule implements LangModule: Chigraph's built-in module
// providing the primitive types (i32, i1, float, i8*) and the shared
// arithmetic/compare/convert/if node types every graph module can place
// nodes of without declaring its own.
package langmodule

import (
	"fmt"
	"strings"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/nodetype"
)

// pathSentinel implements datatype.Module for the built-in module
// itself; its Path is "lang" so DataType.Qualified renders the
// primitives the way §6.4 names them ("lang:i32", "lang:i1",
// "lang:float", "lang:i8*").
type pathSentinel struct{}

func (pathSentinel) Path() string { return "lang" }

// Module is the built-in lang module: a fixed catalog of primitive
// types and shared stateless node types, built by New
// once for each Context (see chicontext.Context's built-in-modules set).
type Module struct {
	I1    *datatype.DataType
	I32   *datatype.DataType
	Float *datatype.DataType
	I8Ptr *datatype.DataType

	// arithmetic[T][op] and compare[T][op] are shared NodeType
	// singletons: two "i32 + i32" nodes anywhere in any function are
	// interchangeable, since the node carries no payload beyond Op.
	arithmetic map[string]map[ir.BinOp]*nodetype.NodeType
	compare    map[string]map[ir.BinOp]*nodetype.NodeType

	IntToFloat *nodetype.NodeType
	FloatToInt *nodetype.NodeType
	If         *nodetype.NodeType
}

// New builds a fresh built-in module; chicontext.New calls it once for
// each Context it creates.
func New() *Module {
	m := &Module{}
	m.I1 = datatype.New(pathSentinel{}, "i1", ir.I1, func() *ir.DebugType { return &ir.DebugType{Name: "i1", Bits: 1} })
	m.I32 = datatype.New(pathSentinel{}, "i32", ir.I32, func() *ir.DebugType { return &ir.DebugType{Name: "i32", Bits: 32} })
	m.Float = datatype.New(pathSentinel{}, "float", ir.Double, func() *ir.DebugType { return &ir.DebugType{Name: "float", Bits: 64} })
	m.I8Ptr = datatype.New(pathSentinel{}, "i8*", ir.I8Ptr, func() *ir.DebugType { return &ir.DebugType{Name: "i8*", Bits: 64} })

	arithOps := []ir.BinOp{ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv}
	compareOps := []ir.BinOp{ir.OpLT, ir.OpGT, ir.OpLE, ir.OpGE, ir.OpEQ, ir.OpNE}

	m.arithmetic = map[string]map[ir.BinOp]*nodetype.NodeType{
		"i32":   {},
		"float": {},
	}
	m.compare = map[string]map[ir.BinOp]*nodetype.NodeType{
		"i32":   {},
		"float": {},
	}
	for _, op := range arithOps {
		m.arithmetic["i32"][op] = nodetype.NewArithmeticOrCompare(op, m.I32, m.I1)
		m.arithmetic["float"][op] = nodetype.NewArithmeticOrCompare(op, m.Float, m.I1)
	}
	for _, op := range compareOps {
		m.compare["i32"][op] = nodetype.NewArithmeticOrCompare(op, m.I32, m.I1)
		m.compare["float"][op] = nodetype.NewArithmeticOrCompare(op, m.Float, m.I1)
	}

	m.IntToFloat = nodetype.NewConvert(nodetype.KindIntToFloat, m.I32, m.Float)
	m.FloatToInt = nodetype.NewConvert(nodetype.KindFloatToInt, m.Float, m.I32)
	m.If = nodetype.NewIf(m.I1)

	return m
}

// Path identifies this module in qualified names -- "lang", so the
// primitives resolve and render as "lang:i32" and so the module itself
// is addressable for e.g. converter registry lookups against user types.
func (m *Module) Path() string { return "lang" }

// ByName returns the primitive DataType for name, which may be either
// the qualified form ("lang:i32", per §6.4) or, for backward
// compatibility with older .chimod documents, the bare unqualified
// form ("i32"); returns nil if name isn't one of the four lang
// primitives under either spelling. Used by a loader resolving a
// .chimod type reference.
func (m *Module) ByName(name string) *datatype.DataType {
	name = strings.TrimPrefix(name, "lang:")
	switch name {
	case "i1":
		return m.I1
	case "i32":
		return m.I32
	case "float":
		return m.Float
	case "i8*":
		return m.I8Ptr
	}
	return nil
}

// Arithmetic returns the shared node type for operandTypeName ("i32"/
// "lang:i32" or "float"/"lang:float") and op, or an error if the
// combination isn't one of the closed set in §3.
func (m *Module) Arithmetic(operandTypeName string, op ir.BinOp) (*nodetype.NodeType, error) {
	if ops, ok := m.arithmetic[strings.TrimPrefix(operandTypeName, "lang:")]; ok {
		if nt, ok := ops[op]; ok {
			return nt, nil
		}
	}
	return nil, fmt.Errorf("langmodule: no arithmetic node for %s %s", operandTypeName, op)
}

// Compare returns the shared node type for operandTypeName and a
// comparison op.
func (m *Module) Compare(operandTypeName string, op ir.BinOp) (*nodetype.NodeType, error) {
	if ops, ok := m.compare[strings.TrimPrefix(operandTypeName, "lang:")]; ok {
		if nt, ok := ops[op]; ok {
			return nt, nil
		}
	}
	return nil, fmt.Errorf("langmodule: no compare node for %s %s", operandTypeName, op)
}

// NewConstInt, NewConstFloat, NewConstBool, NewStrLiteral build a fresh
// literal NodeType carrying val as its payload (literals are not shared
// singletons -- each placed instance has its own value).
func (m *Module) NewConstInt(val int64) *nodetype.NodeType     { return nodetype.NewConstInt(m.I32, val) }
func (m *Module) NewConstFloat(val float64) *nodetype.NodeType { return nodetype.NewConstFloat(m.Float, val) }
func (m *Module) NewConstBool(val bool) *nodetype.NodeType     { return nodetype.NewConstBool(m.I1, val) }
func (m *Module) NewStrLiteral(val string) *nodetype.NodeType  { return nodetype.NewStrLiteral(m.I8Ptr, val) }
