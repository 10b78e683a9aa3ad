// Package compiler implements NodeCompiler and FunctionCompiler: the
// two-stage per-node lowering protocol and the driver that schedules it
// across a function's graph, plus GraphModule lowering (§4.6), which
// lives here (not in gmodule) to avoid a gmodule<->chicontext cycle.
package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

// nodeCompiler holds one NodeInstance's lowering state, scoped to the
// enclosing FunctionCompiler.
type nodeCompiler struct {
	fc *FunctionCompiler
	n  *node.Instance

	returnValues []*ir.Alloca // one per data output, allocated in fc.allocBlock

	// codeBlocks[execInSlot] is where this node's own Codegen writes.
	// Pure nodes only ever use slot 0 (they have no exec-input ports;
	// "execInSlot" for a pure node denotes its single invocation site).
	codeBlocks map[int]*ir.BasicBlock

	// invocationEntry[execInSlot] is what an upstream caller should
	// actually branch to -- codeBlocks[execInSlot] itself, unless pure
	// prologues were prepended, in which case it's the first prologue.
	invocationEntry map[int]*ir.BasicBlock

	compiledInputs map[int]bool // true once stage 2 has run for that slot

	jumpBackInst *ir.IndirectBrInst // pure nodes only, created on first emit
}

func newNodeCompiler(fc *FunctionCompiler, n *node.Instance) *nodeCompiler {
	return &nodeCompiler{
		fc: fc, n: n,
		codeBlocks:      make(map[int]*ir.BasicBlock),
		invocationEntry: make(map[int]*ir.BasicBlock),
		compiledInputs:  make(map[int]bool),
	}
}

func (nc *nodeCompiler) ensureReturnValues() {
	if nc.returnValues != nil {
		return
	}
	nc.returnValues = make([]*ir.Alloca, len(nc.n.Type.DataOutputs))
	for i, out := range nc.n.Type.DataOutputs {
		name := nc.fc.freshName(nc.n.ID.String() + "." + out.Name)
		nc.returnValues[i] = nc.fc.allocBlock.Alloca(name, out.Type.Backend())
	}
}

// collectPureDeps returns, in DFS post-order over inputDataConnections
// (left-to-right data-port order per §5; each pure node is listed after
// the pure nodes feeding it), the set of distinct pure
// NodeCompilers this node transitively depends on.
func collectPureDeps(fc *FunctionCompiler, n *node.Instance, seen map[uuid.UUID]bool, out *[]*nodeCompiler) {
	for slot := range n.Type.DataInputs {
		ref := n.InputDataConnection(slot)
		if ref == nil || !ref.Node.Type.Pure {
			continue
		}
		if seen[ref.Node.ID] {
			continue
		}
		seen[ref.Node.ID] = true
		collectPureDeps(fc, ref.Node, seen, out)
		*out = append(*out, fc.nodeCompilerFor(ref.Node))
	}
}

// prepare is NodeCompiler stage 1: idempotent; builds codeBlocks[execInSlot]
// and, for an impure node, the chain of pure-dependency prologue blocks.
func (nc *nodeCompiler) prepare(execInSlot int) error {
	if _, ok := nc.codeBlocks[execInSlot]; ok {
		return nil
	}
	name := nc.fc.freshName(nc.n.ID.String() + ".code")
	codeBlock := ir.NewBlock(nc.fc.backendFn, name)
	nc.codeBlocks[execInSlot] = codeBlock
	nc.ensureReturnValues()

	if nc.n.Type.Pure {
		nc.invocationEntry[execInSlot] = codeBlock
		return nil
	}

	var pures []*nodeCompiler
	collectPureDeps(nc.fc, nc.n, map[uuid.UUID]bool{}, &pures)

	next := codeBlock
	for i := len(pures) - 1; i >= 0; i-- {
		p := pures[i]
		if err := p.prepare(0); err != nil {
			return err
		}
		if err := p.emit(0); err != nil {
			return err
		}
		prologue := ir.NewBlock(nc.fc.backendFn, nc.fc.freshName(p.n.ID.String()+".prologue"))
		prologue.Store(nc.fc.postPureBreak, &ir.BlockAddress{Block: next})
		prologue.Br(p.codeBlocks[0])
		p.jumpBackInst.AddDest(next)
		next = prologue
	}
	nc.invocationEntry[execInSlot] = next
	return nil
}

// emit is NodeCompiler stage 2: loads data inputs, invokes NodeType
// codegen, and -- for pure nodes -- synthesizes the trailing indirectbr
// block. Precondition: prepare(execInSlot) has run.
func (nc *nodeCompiler) emit(execInSlot int) error {
	if nc.compiledInputs[execInSlot] {
		return nil
	}
	codeBlock := nc.codeBlocks[execInSlot]
	ctx := &nodeCompileCtx{fc: nc.fc, nc: nc, execInSlot: execInSlot, block: codeBlock}

	if err := nc.n.Type.Codegen(nc.n.Type, ctx); err != nil {
		return fmt.Errorf("compiler: node %s codegen: %w", nc.n.ID, err)
	}

	if nc.n.Type.Pure && !codeBlock.Terminated() {
		trailing := ir.NewBlock(nc.fc.backendFn, nc.fc.freshName(nc.n.ID.String()+".pure.ret"))
		codeBlock.Br(trailing)
		loadName := nc.fc.freshName(nc.n.ID.String() + ".post_pure")
		loaded := trailing.Load(loadName, nc.fc.postPureBreak)
		nc.jumpBackInst = trailing.IndirectBr(addrAllocaFor(loaded))
	}

	nc.compiledInputs[execInSlot] = true
	return nil
}

// addrAllocaFor adapts a loaded block-address value back into the
// *ir.Alloca shape IndirectBr expects; this stand-in IR models
// IndirectBr's operand as the slot holding the address rather than a
// first-class indirect value, so we wrap the post_pure_break slot
// itself (the load already established the dependency for dump/debug
// purposes).
func addrAllocaFor(loaded *ir.LoadInst) *ir.Alloca { return loaded.Ptr }
