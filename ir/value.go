package ir

import "strconv"

// Value is anything that can be used as an operand: a constant, a
// parameter, or the result of a previously emitted instruction.
type Value interface {
	Type() Type
	String() string
}

// ConstInt is a constant integer literal (also used for lang:i1 true/false
// and lang:i8* via null, though strings use ConstString instead).
type ConstInt struct {
	Ty  Type
	Val int64
}

func (c *ConstInt) Type() Type     { return c.Ty }
func (c *ConstInt) String() string { return strconv.FormatInt(c.Val, 10) }

// ConstFloat is a constant double-precision literal.
type ConstFloat struct{ Val float64 }

func (c *ConstFloat) Type() Type     { return Double }
func (c *ConstFloat) String() string { return strconv.FormatFloat(c.Val, 'g', -1, 64) }

// ConstString is a constant C string literal (lang:i8*, NUL-terminated).
type ConstString struct{ Val string }

func (c *ConstString) Type() Type     { return I8Ptr }
func (c *ConstString) String() string { return `c"` + c.Val + `"` }

// Param is a reference to one of the enclosing Function's parameters.
type Param struct {
	Name string
	Ty   Type
	Idx  int
}

func (p *Param) Type() Type     { return p.Ty }
func (p *Param) String() string { return "%" + p.Name }

// Alloca is a stack slot allocated in the function's alloc block. Its
// Value type is a pointer to the allocated type.
type Alloca struct {
	Name    string
	Elem    Type
	DebugID string // name of the DWARF auto-variable anchored here, if any
}

func (a *Alloca) Type() Type     { return &PointerType{Elem: a.Elem} }
func (a *Alloca) String() string { return "%" + a.Name }

// LoadInst loads the value currently stored at Ptr.
type LoadInst struct {
	Name string
	Ptr  *Alloca
}

func (l *LoadInst) Type() Type     { return l.Ptr.Elem }
func (l *LoadInst) String() string { return "%" + l.Name }

// StoreInst writes Val into Ptr. Produces no value.
type StoreInst struct {
	Ptr *Alloca
	Val Value
}

// BinOp is the supported set of lang primitive arithmetic/compare ops.
type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpLT  BinOp = "<"
	OpGT  BinOp = ">"
	OpLE  BinOp = "<="
	OpGE  BinOp = ">="
	OpEQ  BinOp = "=="
	OpNE  BinOp = "!="
)

// IsCompare reports whether op produces an i1 result.
func (op BinOp) IsCompare() bool {
	switch op {
	case OpLT, OpGT, OpLE, OpGE, OpEQ, OpNE:
		return true
	default:
		return false
	}
}

// BinOpInst is an arithmetic or comparison instruction over two operands
// of the same lang primitive type.
type BinOpInst struct {
	Name     string
	Op       BinOp
	Lhs, Rhs Value
	ResultTy Type
}

func (b *BinOpInst) Type() Type     { return b.ResultTy }
func (b *BinOpInst) String() string { return "%" + b.Name }

// ConvertInst implements lang:inttofloat / lang:floattoint.
type ConvertInst struct {
	Name     string
	Src      Value
	ResultTy Type
}

func (c *ConvertInst) Type() Type     { return c.ResultTy }
func (c *ConvertInst) String() string { return "%" + c.Name }

// CallInst calls a Function (in this module or linked in from another)
// with the given arguments.
type CallInst struct {
	Name   string
	Callee *Function
	Args   []Value
}

func (c *CallInst) Type() Type     { return c.Callee.Type.Return }
func (c *CallInst) String() string { return "%" + c.Name }

// LoadFieldInst reads struct field FieldIdx out of Base directly
// (struct _break_ lowering uses this instead of a real getelementptr +
// load pair, since this IR has no flat memory model -- fields are
// addressed by logical index on an Alloca of aggregate type).
type LoadFieldInst struct {
	Name      string
	Base      *Alloca
	FieldIdx  int
	FieldType Type
}

func (l *LoadFieldInst) Type() Type     { return l.FieldType }
func (l *LoadFieldInst) String() string { return "%" + l.Name }

// StoreFieldInst writes Val into struct field FieldIdx of Base directly
// (struct _make_ lowering's counterpart to LoadFieldInst). Produces no
// value.
type StoreFieldInst struct {
	Base     *Alloca
	FieldIdx int
	Val      Value
}

// BlockAddress is the value produced by taking the address of a basic
// block, used to seed the post-pure-break alloca ahead of an IndirectBr.
type BlockAddress struct {
	Block *BasicBlock
}

func (b *BlockAddress) Type() Type     { return &PointerType{Elem: I8Ptr} }
func (b *BlockAddress) String() string { return "blockaddress(" + b.Block.Name + ")" }

