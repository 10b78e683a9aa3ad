// Package nodetype implements Chigraph's NodeType: a closed set of
// tagged variants describing a node's signature and codegen behavior.
// The source models this polymorphically (virtual dispatch over a node
// kind hierarchy); here each variant is a Kind tag plus the payload
// fields it needs, with Codegen a plain function value so dispatch is
// just a field read, not an interface switch.
package nodetype

import (
	"fmt"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
)

// Kind is the closed set of NodeType variants.
type Kind string

const (
	KindEntry        Kind = "lang:entry"
	KindExit         Kind = "lang:exit"
	KindIf           Kind = "lang:if"
	KindConstInt     Kind = "lang:const-int"
	KindConstFloat   Kind = "lang:const-float"
	KindConstBool    Kind = "lang:const-bool"
	KindStrLiteral   Kind = "lang:strliteral"
	KindArithmetic   Kind = "lang:arithmetic"
	KindCompare      Kind = "lang:compare"
	KindIntToFloat   Kind = "lang:inttofloat"
	KindFloatToInt   Kind = "lang:floattoint"
	KindFunctionCall Kind = "function-call"
	KindMakeStruct   Kind = "_make_"
	KindBreakStruct  Kind = "_break_"
	KindGetLocal     Kind = "_get_"
	KindSetLocal     Kind = "_set_"
	KindCCall        Kind = "c-call"
)

// CodegenContext is the view of an in-progress node lowering that a
// Codegen function needs. The compiler package implements it; nodetype
// depends only on ir and datatype so that compiler (and the node-kind
// packages building specific NodeTypes) can depend on nodetype without
// a cycle.
type CodegenContext interface {
	// Block is the code block this node's logic should emit into.
	Block() *ir.BasicBlock
	// Input returns the already-loaded value for data-input slot i.
	Input(slot int) ir.Value
	// SetOutput records the value produced for data-output slot i, for
	// downstream nodes to read via their own Input.
	SetOutput(slot int, v ir.Value)
	// ExecOut returns the block to branch to for exec-output slot i, or
	// nil if that slot has no downstream connection (validator already
	// guarantees this can't happen for a successfully-validated function,
	// but Codegen should still treat nil defensively in tests).
	ExecOut(slot int) *ir.BasicBlock
	// ExecInSlot is the index of the exec-input this invocation of the
	// node was reached through (§4.4's input_exec_id). Always 0 for pure
	// nodes and for lang:entry, which has no exec-input ports at all.
	ExecInSlot() int
	// Function is the backend function currently being built.
	Function() *ir.Function
	// Module is the backend module the function belongs to.
	Module() *ir.Module
	// FreshName returns a unique SSA name derived from hint, scoped to
	// the enclosing function.
	FreshName(hint string) string
	// Local returns the alloca backing the enclosing function's named
	// local variable, for _get_/_set_ node codegen.
	Local(name string) *ir.Alloca
}

// NodeType is the shared, reusable description every NodeInstance of a
// given kind points to. It is immutable after construction except for
// the C-call variant's one-time compiled-module cache.
type NodeType struct {
	ModulePath  string // "" for lang/builtin kinds
	Name        string
	Description string

	DataInputs  []datatype.NamedDataType
	DataOutputs []datatype.NamedDataType
	ExecInputs  []string
	ExecOutputs []string

	Pure      bool
	Converter bool
	Kind      Kind

	// Payload, variant-specific:
	IntLiteral    int64
	FloatLiteral  float64
	BoolLiteral   bool
	StringLiteral string
	Op            ir.BinOp
	CalleeModule  string // function-call: qualified module path of the callee
	CalleeName    string // function-call: callee function name
	StructModule  string // make/break: qualified module path of the struct
	StructName    string // make/break
	LocalName     string // get/set

	// C-call payload.
	CSource     string
	CFunction   string
	CExtraFlags []string

	// Codegen emits this node's body. Assigned by the constructor for
	// self-contained variants (entry/exit/if/literals/arithmetic/convert);
	// assigned by the owning package (gfunction, gstruct, ccall) for
	// variants that need cross-package state.
	Codegen func(nt *NodeType, ctx CodegenContext) error
}

// Qualified returns "module:name", matching DataType's convention.
func (nt *NodeType) Qualified() string {
	if nt.ModulePath == "" {
		return nt.Name
	}
	return fmt.Sprintf("%s:%s", nt.ModulePath, nt.Name)
}

// IsWellFormedConverter reports whether nt satisfies the converter
// invariant: pure, exactly one data input, one data output, no execs.
func (nt *NodeType) IsWellFormedConverter() bool {
	return nt.Pure && len(nt.DataInputs) == 1 && len(nt.DataOutputs) == 1 &&
		len(nt.ExecInputs) == 0 && len(nt.ExecOutputs) == 0
}

// ToJSON produces the payload map needed to reconstruct this node,
// varying by Kind per §3/§6.1.
func (nt *NodeType) ToJSON() map[string]any {
	switch nt.Kind {
	case KindConstInt:
		return map[string]any{"value": nt.IntLiteral}
	case KindConstFloat:
		return map[string]any{"value": nt.FloatLiteral}
	case KindConstBool:
		return map[string]any{"value": nt.BoolLiteral}
	case KindStrLiteral:
		return map[string]any{"value": nt.StringLiteral}
	case KindFunctionCall:
		return map[string]any{"module": nt.CalleeModule, "function": nt.CalleeName}
	case KindMakeStruct, KindBreakStruct:
		return map[string]any{"module": nt.StructModule, "struct": nt.StructName}
	case KindGetLocal, KindSetLocal:
		return map[string]any{"local": nt.LocalName}
	case KindArithmetic, KindCompare:
		// lang:+ is shared by every operand type the lang module offers
		// arithmetic for; operand_type disambiguates which singleton a
		// loader must look up, and op is redundant with Name but kept
		// explicit so a loader never has to parse it back out of a
		// "lang:+"-shaped qualified name.
		return map[string]any{"op": string(nt.Op), "operand_type": nt.DataInputs[0].Type.Qualified()}
	case KindCCall:
		inputs := make([]map[string]any, 0, len(nt.DataInputs))
		for _, in := range nt.DataInputs {
			inputs = append(inputs, map[string]any{in.Name: in.Type.Qualified()})
		}
		var output any
		if len(nt.DataOutputs) == 1 {
			output = nt.DataOutputs[0].Type.Qualified()
		}
		return map[string]any{
			"code":       nt.CSource,
			"function":   nt.CFunction,
			"extraflags": nt.CExtraFlags,
			"inputs":     inputs,
			"output":     output,
		}
	default:
		return map[string]any{}
	}
}
