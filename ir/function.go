package ir

// Function is a backend function: a typed parameter list, a return type,
// an ordered list of basic blocks, and an optional debug subprogram.
type Function struct {
	Name       string
	Type       *FuncType
	ParamNames []string
	Blocks     []*BasicBlock
	Subprogram *DebugSubprogram

	// Declared marks a forward declaration with no body yet (produced
	// while building the cross-module call graph before any function is
	// lowered; see GraphModule lowering step 3 in the spec).
	Declared bool
}

// NewFunction creates a function declaration (no blocks yet) with the
// given signature. paramNames must have the same length as ty.Params.
func NewFunction(name string, ty *FuncType, paramNames []string) *Function {
	return &Function{Name: name, Type: ty, ParamNames: paramNames, Declared: true}
}

// Param returns a Value referencing the i-th parameter.
func (f *Function) Param(i int) *Param {
	name := ""
	if i < len(f.ParamNames) {
		name = f.ParamNames[i]
	}
	return &Param{Name: name, Ty: f.Type.Params[i], Idx: i}
}

// Block looks up a block by name.
func (f *Function) Block(name string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// EntryBlock returns the first block, conventionally the alloc block.
func (f *Function) EntryBlock() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Define marks the function as having a body (called once the first
// block is appended via NewBlock).
func (f *Function) Define() { f.Declared = false }
