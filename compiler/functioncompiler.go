package compiler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
)

// FunctionCompiler drives nodeCompilers for one GraphFunction: it owns
// the backend function, its alloc block, the post_pure_break slot, and
// per-function-local allocas.
type FunctionCompiler struct {
	module *ir.Module
	gfn    *gfunction.Function

	backendFn     *ir.Function
	allocBlock    *ir.BasicBlock
	postPureBreak *ir.Alloca
	localAllocas  map[string]*ir.Alloca

	nodeCompilers map[uuid.UUID]*nodeCompiler
	freshCounter  int

	// lineOf holds the deterministic per-node line numbers assigned by
	// the module-wide enumeration (see LineNumbers in module.go). It is
	// stored but not read: no emitted instruction carries a node's line
	// number. nil is accepted (e.g. in unit tests).
	lineOf map[uuid.UUID]int
}

// NewFunctionCompiler prepares (but does not yet compile) the backend
// function shell for gfn within module.
func NewFunctionCompiler(module *ir.Module, gfn *gfunction.Function, lineOf map[uuid.UUID]int) *FunctionCompiler {
	backendFn := module.DeclareFunction(gfn.Name(), gfn.BackendFuncType(), backendParamNames(gfn))
	backendFn.Define()
	backendFn.Subprogram = &ir.DebugSubprogram{Name: gfn.Name(), File: module.SourcePath, Line: 0}

	fc := &FunctionCompiler{
		module: module, gfn: gfn, backendFn: backendFn,
		localAllocas:  make(map[string]*ir.Alloca),
		nodeCompilers: make(map[uuid.UUID]*nodeCompiler),
		lineOf:        lineOf,
	}
	fc.allocBlock = ir.NewBlock(backendFn, "alloc")
	fc.postPureBreak = fc.allocBlock.Alloca("post_pure_break", ir.I8Ptr)

	for _, local := range gfn.Locals() {
		fc.localAllocas[local.Name] = fc.allocBlock.Alloca("local."+local.Name, local.Type.Backend())
	}

	return fc
}

// backendParamNames builds the ABI-ordered parameter name list shared by
// a function's forward declaration and its eventual definition: the
// exec-selector, then data inputs, then output pointers.
func backendParamNames(gfn *gfunction.Function) []string {
	names := make([]string, 0, 1+len(gfn.DataInputs())+len(gfn.DataOutputs()))
	names = append(names, "input_exec_id")
	for _, in := range gfn.DataInputs() {
		names = append(names, in.Name)
	}
	for _, out := range gfn.DataOutputs() {
		names = append(names, out.Name+"_out")
	}
	return names
}

func (fc *FunctionCompiler) freshName(hint string) string {
	fc.freshCounter++
	return fmt.Sprintf("%s.%d", hint, fc.freshCounter)
}

func (fc *FunctionCompiler) nodeCompilerFor(n *node.Instance) *nodeCompiler {
	if nc, ok := fc.nodeCompilers[n.ID]; ok {
		return nc
	}
	nc := newNodeCompiler(fc, n)
	fc.nodeCompilers[n.ID] = nc
	nodesCompiled.Add(context.Background(), 1, metric.WithAttributes(attribute.String("chigraph.node.kind", string(n.Type.Kind))))
	return nc
}

// LocalAlloca returns the alloca backing a function-local variable,
// used by _get_/_set_ local NodeType codegens.
func (fc *FunctionCompiler) LocalAlloca(name string) *ir.Alloca { return fc.localAllocas[name] }

// Compile lowers the entire function: the entry node's own Codegen
// recursively drives every reachable node via ExecOut, which prepares
// and emits its target on demand. This replaces an explicit BFS queue
// with recursive compile-on-demand; since line numbers come from a
// separate whole-module enumeration (not traversal order) and pure
// nodes are only ever entered through the prologue mechanism, the two
// scheduling strategies produce equivalent IR.
func (fc *FunctionCompiler) Compile() error {
	entry := fc.gfn.Entry()
	if entry == nil {
		return fmt.Errorf("compiler: function %q has no entry node", fc.gfn.Name())
	}
	entryNC := fc.nodeCompilerFor(entry)
	if err := entryNC.prepare(0); err != nil {
		return err
	}
	if err := entryNC.emit(0); err != nil {
		return err
	}
	fc.allocBlock.Br(entryNC.invocationEntry[0])
	return nil
}

// nodeCompileCtx adapts one (nodeCompiler, execInSlot) invocation to
// nodetype.CodegenContext.
type nodeCompileCtx struct {
	fc         *FunctionCompiler
	nc         *nodeCompiler
	execInSlot int
	block      *ir.BasicBlock
}

func (c *nodeCompileCtx) Block() *ir.BasicBlock { return c.block }

func (c *nodeCompileCtx) Input(slot int) ir.Value {
	ref := c.nc.n.InputDataConnection(slot)
	if ref == nil {
		return &ir.ConstInt{Ty: ir.I32, Val: 0}
	}
	producer := c.fc.nodeCompilerFor(ref.Node)
	producer.ensureReturnValues()
	name := c.fc.freshName(c.nc.n.ID.String() + ".in" + fmt.Sprint(slot))
	return c.block.Load(name, producer.returnValues[ref.Slot])
}

func (c *nodeCompileCtx) SetOutput(slot int, v ir.Value) {
	c.nc.ensureReturnValues()
	c.block.Store(c.nc.returnValues[slot], v)
}

func (c *nodeCompileCtx) ExecOut(slot int) *ir.BasicBlock {
	ref := c.nc.n.OutputExecConnection(slot)
	if ref == nil {
		return nil
	}
	downstream := c.fc.nodeCompilerFor(ref.Node)
	if err := downstream.prepare(ref.Slot); err != nil {
		return nil
	}
	if err := downstream.emit(ref.Slot); err != nil {
		return nil
	}
	return downstream.invocationEntry[ref.Slot]
}

func (c *nodeCompileCtx) ExecInSlot() int { return c.execInSlot }

func (c *nodeCompileCtx) Function() *ir.Function { return c.fc.backendFn }

func (c *nodeCompileCtx) Module() *ir.Module { return c.fc.module }

func (c *nodeCompileCtx) FreshName(hint string) string { return c.fc.freshName(hint) }

func (c *nodeCompileCtx) Local(name string) *ir.Alloca { return c.fc.LocalAlloca(name) }
