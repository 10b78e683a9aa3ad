package nodetype

import (
	"fmt"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
)

// NewEntry builds the unique lang:entry NodeType for a function whose
// data inputs and exec-input labels are dataOuts/execOuts respectively
// (entry mirrors the function's own inputs as its outputs, per §3).
func NewEntry(dataOuts []datatype.NamedDataType, execOuts []string) *NodeType {
	nt := &NodeType{
		Name: "lang:entry", Kind: KindEntry,
		DataOutputs: dataOuts, ExecOutputs: execOuts,
	}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		bb := ctx.Block()
		for i := range dataOuts {
			ctx.SetOutput(i, ctx.Function().Param(i+1))
		}
		if len(execOuts) == 0 {
			return fmt.Errorf("nodetype: entry has no exec outputs to dispatch to")
		}
		selector := ctx.Function().Param(0)
		EmitSwitch(bb, ctx, selector, len(execOuts))
		return nil
	}
	return nt
}

// NewExit builds one lang:exit NodeType instance per distinct
// combination the function declares; dataIns/execIns mirror the
// function's data/exec outputs.
func NewExit(dataIns []datatype.NamedDataType, execIns []string) *NodeType {
	nt := &NodeType{
		Name: "lang:exit", Kind: KindExit,
		DataInputs: dataIns, ExecInputs: execIns,
	}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		bb := ctx.Block()
		fn := ctx.Function()
		outParamOffset := len(fn.Type.Params) - len(dataIns)
		for i := range dataIns {
			val := ctx.Input(i)
			ptr := fn.Param(outParamOffset + i)
			// This IR models writes-through-a-pointer as a Store to a
			// named Alloca rather than a first-class pointer Value; an
			// out-parameter is addressed by reusing its name as the slot.
			outAlloca := &ir.Alloca{Name: ptr.Name, Elem: dataIns[i].Type.Backend()}
			bb.Store(outAlloca, val)
		}
		bb.Ret(&ir.ConstInt{Ty: ir.I32, Val: int64(ctx.ExecInSlot())})
		return nil
	}
	return nt
}

// EmitSwitch synthesizes a chain of equality comparisons branching to
// ExecOut(i) for the first i whose selector constant matches, mirroring
// what a real backend's `switch` instruction would do, since this IR
// has no dedicated multi-way branch. Exported so cross-package node
// builders (gmodule's function-call node, dispatching on a callee's
// returned exec-output selector) can reuse it too.
func EmitSwitch(bb *ir.BasicBlock, ctx CodegenContext, selector ir.Value, n int) {
	for i := 0; i < n; i++ {
		target := ctx.ExecOut(i)
		if target == nil {
			continue
		}
		if i == n-1 {
			bb.Br(target)
			return
		}
		cmpName := ctx.FreshName("sel.eq")
		cmp := bb.BinOpEmit(cmpName, ir.OpEQ, selector, &ir.ConstInt{Ty: ir.I32, Val: int64(i)})
		nextBB := ir.NewBlock(bb.Parent, ctx.FreshName("sel.next"))
		bb.CondBr(cmp, target, nextBB)
		bb = nextBB
	}
}

// NewIf builds the lang:if NodeType: one i1 data input, two exec
// outputs labeled True/False.
func NewIf(boolType *datatype.DataType) *NodeType {
	nt := &NodeType{
		Name: "lang:if", Kind: KindIf,
		DataInputs:  []datatype.NamedDataType{{Name: "condition", Type: boolType}},
		ExecInputs:  []string{"in"},
		ExecOutputs: []string{"True", "False"},
	}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		cond := ctx.Input(0)
		trueBB, falseBB := ctx.ExecOut(0), ctx.ExecOut(1)
		if trueBB == nil || falseBB == nil {
			return fmt.Errorf("nodetype: if node missing a branch target")
		}
		ctx.Block().CondBr(cond, trueBB, falseBB)
		return nil
	}
	return nt
}

func newLiteral(kind Kind, name string, out datatype.NamedDataType, emit func(ctx CodegenContext) ir.Value) *NodeType {
	nt := &NodeType{Name: name, Kind: kind, Pure: true, DataOutputs: []datatype.NamedDataType{out}}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		ctx.SetOutput(0, emit(ctx))
		return nil
	}
	return nt
}

// NewConstInt builds a pure lang:const-int literal node.
func NewConstInt(i32Type *datatype.DataType, val int64) *NodeType {
	nt := newLiteral(KindConstInt, "lang:const-int", datatype.NamedDataType{Name: "value", Type: i32Type},
		func(ctx CodegenContext) ir.Value { return &ir.ConstInt{Ty: ir.I32, Val: val} })
	nt.IntLiteral = val
	return nt
}

// NewConstFloat builds a pure lang:const-float literal node.
func NewConstFloat(floatType *datatype.DataType, val float64) *NodeType {
	nt := newLiteral(KindConstFloat, "lang:const-float", datatype.NamedDataType{Name: "value", Type: floatType},
		func(ctx CodegenContext) ir.Value { return &ir.ConstFloat{Val: val} })
	nt.FloatLiteral = val
	return nt
}

// NewConstBool builds a pure lang:const-bool literal node.
func NewConstBool(boolType *datatype.DataType, val bool) *NodeType {
	iv := int64(0)
	if val {
		iv = 1
	}
	nt := newLiteral(KindConstBool, "lang:const-bool", datatype.NamedDataType{Name: "value", Type: boolType},
		func(ctx CodegenContext) ir.Value { return &ir.ConstInt{Ty: ir.I1, Val: iv} })
	nt.BoolLiteral = val
	return nt
}

// NewStrLiteral builds a pure lang:strliteral node.
func NewStrLiteral(strType *datatype.DataType, val string) *NodeType {
	nt := newLiteral(KindStrLiteral, "lang:strliteral", datatype.NamedDataType{Name: "value", Type: strType},
		func(ctx CodegenContext) ir.Value { return &ir.ConstString{Val: val} })
	nt.StringLiteral = val
	return nt
}

// NewArithmeticOrCompare builds a pure lang:<T><op><T> node. op must be
// one of ir's BinOp constants; the result type is operandType for
// arithmetic ops and resultBoolType for comparisons.
func NewArithmeticOrCompare(op ir.BinOp, operandType, resultBoolType *datatype.DataType) *NodeType {
	kind := KindArithmetic
	resultType := operandType
	if op.IsCompare() {
		kind = KindCompare
		resultType = resultBoolType
	}
	nt := &NodeType{
		Name: "lang:" + string(op), Kind: kind, Pure: true, Op: op,
		DataInputs:  []datatype.NamedDataType{{Name: "lhs", Type: operandType}, {Name: "rhs", Type: operandType}},
		DataOutputs: []datatype.NamedDataType{{Name: "result", Type: resultType}},
	}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		lhs, rhs := ctx.Input(0), ctx.Input(1)
		name := ctx.FreshName("binop")
		inst := ctx.Block().BinOpEmit(name, op, lhs, rhs)
		ctx.SetOutput(0, inst)
		return nil
	}
	return nt
}

// NewConvert builds lang:inttofloat or lang:floattoint, both pure
// converters.
func NewConvert(kind Kind, from, to *datatype.DataType) *NodeType {
	nt := &NodeType{
		Name: string(kind), Kind: kind, Pure: true, Converter: true,
		DataInputs:  []datatype.NamedDataType{{Name: "in", Type: from}},
		DataOutputs: []datatype.NamedDataType{{Name: "out", Type: to}},
	}
	nt.Codegen = func(nt *NodeType, ctx CodegenContext) error {
		name := ctx.FreshName("convert")
		inst := ctx.Block().Convert(name, ctx.Input(0), to.Backend())
		ctx.SetOutput(0, inst)
		return nil
	}
	return nt
}
