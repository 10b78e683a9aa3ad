package ir

import "fmt"

// Module is a backend compilation unit: a set of functions (declared
// and/or defined), an optional debug compile unit, and the flags needed
// to treat this module as a cache-able, linkable artifact.
type Module struct {
	ctx        *Context
	Name       string
	SourcePath string

	functions map[string]*Function
	order     []string

	CompileUnit      *DebugCompileUnit
	DebugInfoVersion bool
}

// SetCompileUnit attaches a module-level debug compile unit pointing at
// the module's source path (GraphModule lowering step 2).
func (m *Module) SetCompileUnit() {
	m.CompileUnit = &DebugCompileUnit{SourcePath: m.SourcePath, Producer: "chigraph"}
}

// SetDebugInfoVersionIfAbsent sets the "Debug Info Version" flag the
// first time it's called, matching GraphModule lowering step 5.
func (m *Module) SetDebugInfoVersionIfAbsent() {
	m.DebugInfoVersion = true
}

// DeclareFunction registers (or returns the existing) forward
// declaration for name.
func (m *Module) DeclareFunction(name string, ty *FuncType, paramNames []string) *Function {
	if fn, ok := m.functions[name]; ok {
		return fn
	}
	fn := NewFunction(name, ty, paramNames)
	m.functions[name] = fn
	m.order = append(m.order, name)
	return fn
}

// Function returns the named function, or nil.
func (m *Module) Function(name string) *Function {
	return m.functions[name]
}

// Functions returns all functions in declaration order.
func (m *Module) Functions() []*Function {
	out := make([]*Function, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.functions[name])
	}
	return out
}

// Link merges other's defined functions into m. If overrideOnConflict is
// false and a name collides with an existing defined function in m,
// Link returns an error; if true, other's definition wins (GraphModule
// lowering step 1's "override-on-conflict" semantics, and also used by
// the C-interop node compiler to merge a clang-compiled module in).
func (m *Module) Link(other *Module, overrideOnConflict bool) error {
	for _, name := range other.order {
		fn := other.functions[name]
		existing, exists := m.functions[name]
		if exists && !existing.Declared && !fn.Declared && !overrideOnConflict {
			return fmt.Errorf("ir: link conflict on function %q between modules %q and %q", name, m.Name, other.Name)
		}
		if !exists {
			m.order = append(m.order, name)
		}
		m.functions[name] = fn
	}
	return nil
}

// Verify performs the structural checks a real IR verifier would:
// every defined function has at least one block, every block is
// terminated, and every branch target lies in the same function. Call
// targets are not checked.
func (m *Module) Verify() error {
	for _, name := range m.order {
		fn := m.functions[name]
		if fn.Declared {
			continue
		}
		if len(fn.Blocks) == 0 {
			return fmt.Errorf("ir: function %q has no blocks", name)
		}
		for _, bb := range fn.Blocks {
			if bb.Terminator == nil {
				return fmt.Errorf("ir: block %q in function %q is not terminated", bb.Name, name)
			}
			if err := m.verifyTerminatorTargets(fn, bb); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Module) verifyTerminatorTargets(fn *Function, bb *BasicBlock) error {
	inSameFunc := func(target *BasicBlock) bool {
		for _, b := range fn.Blocks {
			if b == target {
				return true
			}
		}
		return false
	}
	switch t := bb.Terminator.(type) {
	case BrInst:
		if !inSameFunc(t.Target) {
			return fmt.Errorf("ir: br target %q not in function %q", t.Target.Name, fn.Name)
		}
	case CondBrInst:
		if !inSameFunc(t.TrueBB) || !inSameFunc(t.FalseBB) {
			return fmt.Errorf("ir: condbr target not in function %q", fn.Name)
		}
	case *IndirectBrInst:
		for _, d := range t.Dests {
			if !inSameFunc(d) {
				return fmt.Errorf("ir: indirectbr destination not in function %q", fn.Name)
			}
		}
	case RetInst:
		// no targets to check
	}
	return nil
}
