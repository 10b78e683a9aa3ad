package ir

import "fmt"

// Stmt is one emitted instruction within a BasicBlock, in program order.
// It is an opaque marker type; the concrete Value types above carry all
// the information a consumer (dump, verify, codec) needs.
type Stmt struct {
	// Value is the instruction itself; nil for StoreInst and terminators
	// that produce no usable value.
	Value any
}

// Terminator is the set of instructions that may end a BasicBlock.
type Terminator interface {
	isTerminator()
}

// BrInst is an unconditional branch.
type BrInst struct{ Target *BasicBlock }

func (BrInst) isTerminator() {}

// CondBrInst is a two-way conditional branch (lang:if lowering).
type CondBrInst struct {
	Cond              Value
	TrueBB, FalseBB   *BasicBlock
}

func (CondBrInst) isTerminator() {}

// IndirectBrInst is the pure-node "return" trick: branch to whichever
// block address was last stored into Addr. Destinations are added
// lazily, one per consumer site, per §4.4/§9.
type IndirectBrInst struct {
	Addr  *Alloca
	Dests []*BasicBlock
}

func (i *IndirectBrInst) AddDest(bb *BasicBlock) {
	for _, d := range i.Dests {
		if d == bb {
			return
		}
	}
	i.Dests = append(i.Dests, bb)
}

func (*IndirectBrInst) isTerminator() {}

// RetInst returns Val (the i32 selecting which exit exec-output was
// taken, per the GraphFunction ABI) from the enclosing Function.
type RetInst struct{ Val Value }

func (RetInst) isTerminator() {}

// BasicBlock is a straight-line sequence of instructions ending in
// exactly one Terminator.
type BasicBlock struct {
	Name       string
	Parent     *Function
	Stmts      []Stmt
	Terminator Terminator
}

// NewBlock creates and appends a fresh, unterminated block to fn.
func NewBlock(fn *Function, name string) *BasicBlock {
	bb := &BasicBlock{Name: uniqueBlockName(fn, name), Parent: fn}
	fn.Blocks = append(fn.Blocks, bb)
	return bb
}

func uniqueBlockName(fn *Function, base string) string {
	name := base
	n := 0
	taken := func(candidate string) bool {
		for _, b := range fn.Blocks {
			if b.Name == candidate {
				return true
			}
		}
		return false
	}
	for taken(name) {
		n++
		name = fmt.Sprintf("%s.%d", base, n)
	}
	return name
}

func (b *BasicBlock) push(v any) { b.Stmts = append(b.Stmts, Stmt{Value: v}) }

// Alloca allocates a stack slot. By convention callers put these in the
// function's dedicated alloc block, but the method is available on any
// block.
func (b *BasicBlock) Alloca(name string, elem Type) *Alloca {
	a := &Alloca{Name: name, Elem: elem}
	b.push(a)
	return a
}

// Store writes val to ptr.
func (b *BasicBlock) Store(ptr *Alloca, val Value) {
	b.push(&StoreInst{Ptr: ptr, Val: val})
}

// Load reads the current value at ptr.
func (b *BasicBlock) Load(name string, ptr *Alloca) *LoadInst {
	l := &LoadInst{Name: name, Ptr: ptr}
	b.push(l)
	return l
}

// BinOpEmit emits an arithmetic or comparison instruction.
func (b *BasicBlock) BinOpEmit(name string, op BinOp, lhs, rhs Value) *BinOpInst {
	resultTy := lhs.Type()
	if op.IsCompare() {
		resultTy = I1
	}
	inst := &BinOpInst{Name: name, Op: op, Lhs: lhs, Rhs: rhs, ResultTy: resultTy}
	b.push(inst)
	return inst
}

// Convert emits lang:inttofloat / lang:floattoint.
func (b *BasicBlock) Convert(name string, src Value, resultTy Type) *ConvertInst {
	inst := &ConvertInst{Name: name, Src: src, ResultTy: resultTy}
	b.push(inst)
	return inst
}

// Call emits a call to callee.
func (b *BasicBlock) Call(name string, callee *Function, args []Value) *CallInst {
	inst := &CallInst{Name: name, Callee: callee, Args: args}
	b.push(inst)
	return inst
}

// LoadField reads struct field fieldIdx out of base.
func (b *BasicBlock) LoadField(name string, base *Alloca, st *StructType, fieldIdx int) *LoadFieldInst {
	inst := &LoadFieldInst{Name: name, Base: base, FieldIdx: fieldIdx, FieldType: st.Fields[fieldIdx].Type}
	b.push(inst)
	return inst
}

// StoreField writes val into struct field fieldIdx of base.
func (b *BasicBlock) StoreField(base *Alloca, fieldIdx int, val Value) {
	b.push(&StoreFieldInst{Base: base, FieldIdx: fieldIdx, Val: val})
}

// Br terminates the block with an unconditional branch.
func (b *BasicBlock) Br(target *BasicBlock) {
	b.Terminator = BrInst{Target: target}
}

// CondBr terminates the block with a two-way branch.
func (b *BasicBlock) CondBr(cond Value, trueBB, falseBB *BasicBlock) {
	b.Terminator = CondBrInst{Cond: cond, TrueBB: trueBB, FalseBB: falseBB}
}

// IndirectBr terminates the block with an indirect branch through addr.
// Additional destinations may be registered later via the returned
// instruction's AddDest, since pure nodes gain consumers incrementally.
func (b *BasicBlock) IndirectBr(addr *Alloca, dests ...*BasicBlock) *IndirectBrInst {
	inst := &IndirectBrInst{Addr: addr, Dests: dests}
	b.Terminator = inst
	return inst
}

// Ret terminates the block, returning val from the enclosing function.
func (b *BasicBlock) Ret(val Value) {
	b.Terminator = RetInst{Val: val}
}

// BlockAddr produces the address-of value for target, to be stored into
// a post-pure-break alloca ahead of an eventual IndirectBr through it.
func (b *BasicBlock) BlockAddr(target *BasicBlock) *BlockAddress {
	return &BlockAddress{Block: target}
}

// Terminated reports whether this block already has a terminator.
func (b *BasicBlock) Terminated() bool { return b.Terminator != nil }
