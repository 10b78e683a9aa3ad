package nodetype

import (
	"testing"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
)

// fakeCtx is a minimal CodegenContext for exercising built-in Codegen
// funcs directly, without a real compiler package.
type fakeCtx struct {
	fn      *ir.Function
	mod     *ir.Module
	block   *ir.BasicBlock
	inputs  []ir.Value
	outputs map[int]ir.Value
	execOut map[int]*ir.BasicBlock
	execIn  int
	counter int
	locals  map[string]*ir.Alloca
}

func (f *fakeCtx) Block() *ir.BasicBlock           { return f.block }
func (f *fakeCtx) Input(slot int) ir.Value         { return f.inputs[slot] }
func (f *fakeCtx) SetOutput(slot int, v ir.Value)  { f.outputs[slot] = v }
func (f *fakeCtx) ExecOut(slot int) *ir.BasicBlock { return f.execOut[slot] }
func (f *fakeCtx) ExecInSlot() int                 { return f.execIn }
func (f *fakeCtx) Function() *ir.Function          { return f.fn }
func (f *fakeCtx) Module() *ir.Module               { return f.mod }
func (f *fakeCtx) FreshName(hint string) string {
	f.counter++
	return hint + "." + string(rune('0'+f.counter))
}
func (f *fakeCtx) Local(name string) *ir.Alloca { return f.locals[name] }

func newFakeCtx(fn *ir.Function, bb *ir.BasicBlock) *fakeCtx {
	return &fakeCtx{fn: fn, block: bb, outputs: map[int]ir.Value{}, execOut: map[int]*ir.BasicBlock{}}
}

func i32DataType() *datatype.DataType { return datatype.New(nil, "i32", ir.I32, nil) }

func TestArithmeticAddCodegenEmitsBinOp(t *testing.T) {
	nt := NewArithmeticOrCompare(ir.OpAdd, i32DataType(), nil)
	if !nt.Pure {
		t.Fatal("arithmetic node must be pure")
	}

	ctx := NewContextForTest()
	ctx.inputs = []ir.Value{&ir.ConstInt{Ty: ir.I32, Val: 2}, &ir.ConstInt{Ty: ir.I32, Val: 3}}

	if err := nt.Codegen(nt, ctx); err != nil {
		t.Fatalf("Codegen returned error: %v", err)
	}
	out, ok := ctx.outputs[0].(*ir.BinOpInst)
	if !ok {
		t.Fatalf("expected output 0 to be a BinOpInst, got %T", ctx.outputs[0])
	}
	if out.Op != ir.OpAdd {
		t.Fatalf("expected OpAdd, got %v", out.Op)
	}
}

func TestCompareMarksResultAsCompareKind(t *testing.T) {
	nt := NewArithmeticOrCompare(ir.OpLT, i32DataType(), i32DataType())
	if nt.Kind != KindCompare {
		t.Fatalf("expected KindCompare, got %v", nt.Kind)
	}
}

func TestIfCodegenBranchesOnCondition(t *testing.T) {
	nt := NewIf(i32DataType())
	ctx := NewContextForTest()
	ctx.inputs = []ir.Value{&ir.ConstInt{Ty: ir.I1, Val: 1}}
	trueBB := ir.NewBlock(ctx.fn, "true")
	falseBB := ir.NewBlock(ctx.fn, "false")
	ctx.execOut[0] = trueBB
	ctx.execOut[1] = falseBB

	if err := nt.Codegen(nt, ctx); err != nil {
		t.Fatalf("Codegen returned error: %v", err)
	}
	cb, ok := ctx.block.Terminator.(ir.CondBrInst)
	if !ok {
		t.Fatalf("expected a CondBrInst terminator, got %T", ctx.block.Terminator)
	}
	if cb.TrueBB != trueBB || cb.FalseBB != falseBB {
		t.Fatal("expected CondBr to target the True/False exec-out blocks")
	}
}

func TestIfCodegenFailsWithoutBothTargets(t *testing.T) {
	nt := NewIf(i32DataType())
	ctx := NewContextForTest()
	ctx.inputs = []ir.Value{&ir.ConstInt{Ty: ir.I1, Val: 1}}
	if err := nt.Codegen(nt, ctx); err == nil {
		t.Fatal("expected an error when exec-out targets are missing")
	}
}

func TestConstIntCodegenProducesLiteralValue(t *testing.T) {
	nt := NewConstInt(i32DataType(), 42)
	ctx := NewContextForTest()
	if err := nt.Codegen(nt, ctx); err != nil {
		t.Fatalf("Codegen returned error: %v", err)
	}
	ci, ok := ctx.outputs[0].(*ir.ConstInt)
	if !ok || ci.Val != 42 {
		t.Fatalf("expected ConstInt(42), got %#v", ctx.outputs[0])
	}
}

func TestConvertIsMarkedAsConverter(t *testing.T) {
	nt := NewConvert(KindIntToFloat, i32DataType(), datatype.New(nil, "float", ir.Double, nil))
	if !nt.Converter || !nt.Pure {
		t.Fatal("inttofloat must be both pure and a converter")
	}
	if !nt.IsWellFormedConverter() {
		t.Fatal("expected IsWellFormedConverter to hold for a 1-in-1-out pure node")
	}
}

func TestToJSONForConstInt(t *testing.T) {
	nt := NewConstInt(i32DataType(), 7)
	payload := nt.ToJSON()
	if payload["value"] != int64(7) {
		t.Fatalf("expected payload value 7, got %#v", payload["value"])
	}
}

// NewContextForTest builds a throwaway function/block pair so built-in
// Codegen funcs have somewhere to emit into.
func NewContextForTest() *fakeCtx {
	ctx := ir.NewContext()
	mod := ctx.NewModule("test", "test.chimod")
	fn := mod.DeclareFunction("f", &ir.FuncType{Params: []ir.Type{ir.I32}, Return: ir.I32}, []string{"sel"})
	fn.Define()
	bb := ir.NewBlock(fn, "entry")
	fc := newFakeCtx(fn, bb)
	fc.mod = mod
	return fc
}
