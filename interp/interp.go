// Package interp implements a tree-walking interpreter over
// gfunction/gmodule: it runs a GraphFunction directly against its
// NodeInstance graph, without lowering through compiler/ir, so the
// `run` CLI subcommand and the clang-free end-to-end scenarios can
// execute a module without an external C toolchain.
package interp

import (
	"fmt"

	"github.com/chigraph/chi/chicontext"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

// StructValue is the runtime representation of a graph struct value: a
// list of field values in the owning Struct's Fields() order, mirroring
// how _make_/_break_ NodeTypes order their data ports.
type StructValue struct {
	Struct string
	Fields []any
}

// Extern is a Go-native stand-in for one C function a c-call node
// invokes. Externs let scenarios like "hello world" (puts) and the
// pure-memoization counter run without a real clang subprocess.
type Extern func(args []any) (any, error)

// Machine runs GraphFunctions. A Machine is reusable across calls but
// not safe for concurrent Call invocations, matching Context's own
// single-writer contract.
type Machine struct {
	ctx     *chicontext.Context
	externs map[string]Extern
	tracer  func(Span)
}

// New builds a Machine that resolves cross-module function-call nodes
// through ctx and dispatches c-call nodes to externs. A nil externs map
// is treated as empty (any c-call encountered then fails at eval time).
func New(ctx *chicontext.Context, externs map[string]Extern) *Machine {
	if externs == nil {
		externs = map[string]Extern{}
	}
	return &Machine{ctx: ctx, externs: externs}
}

// frame is one function invocation's mutable state: the output cache
// for already-executed impure nodes (computed once, read many times by
// downstream pure nodes) and the current local-variable bindings.
type frame struct {
	locals map[string]any
	cache  map[string][]any
}

// Call invokes fn by entering through the named exec input with args,
// and returns the exec output it exited through along with the
// function's data outputs.
func (m *Machine) Call(fn *gfunction.Function, execInput string, args []any) (string, []any, error) {
	inIdx := indexOf(fn.ExecInputs(), execInput)
	if inIdx == -1 {
		return "", nil, fmt.Errorf("interp: %q has no exec input %q", fn.Name(), execInput)
	}
	if len(args) != len(fn.DataInputs()) {
		return "", nil, fmt.Errorf("interp: %q expects %d data inputs, got %d", fn.Name(), len(fn.DataInputs()), len(args))
	}

	fr := &frame{locals: make(map[string]any), cache: make(map[string][]any)}
	entry := fn.Entry()
	if entry == nil {
		return "", nil, fmt.Errorf("interp: %q has no entry node", fn.Name())
	}
	fr.cache[entry.ID.String()] = args
	m.emitSpan(entry, inIdx)

	ref := entry.OutputExecConnection(inIdx)
	if ref == nil {
		return "", nil, fmt.Errorf("interp: %q's entry exec output %q is not connected", fn.Name(), execInput)
	}
	return m.run(fr, fn, ref.Node, ref.Slot)
}

// run walks impure nodes starting at n (entered through its exec-input
// slot inSlot) until fn's exit node is reached.
func (m *Machine) run(fr *frame, fn *gfunction.Function, n *node.Instance, inSlot int) (string, []any, error) {
	for {
		m.emitSpan(n, inSlot)
		switch n.Type.Kind {
		case nodetype.KindExit:
			outs, err := m.evalInputs(fr, n)
			if err != nil {
				return "", nil, err
			}
			execOutputs := fn.ExecOutputs()
			if inSlot < 0 || inSlot >= len(execOutputs) {
				return "", nil, fmt.Errorf("interp: %q exit reached via out-of-range exec input %d", fn.Name(), inSlot)
			}
			return execOutputs[inSlot], outs, nil

		case nodetype.KindIf:
			cond, err := m.evalSlot(fr, n, 0)
			if err != nil {
				return "", nil, err
			}
			b, ok := cond.(bool)
			if !ok {
				return "", nil, fmt.Errorf("interp: lang:if condition evaluated to %T, want bool", cond)
			}
			outSlot := 1
			if b {
				outSlot = 0
			}
			next := n.OutputExecConnection(outSlot)
			if next == nil {
				return "", nil, fmt.Errorf("interp: lang:if exec output %d is not connected", outSlot)
			}
			n, inSlot = next.Node, next.Slot

		case nodetype.KindSetLocal:
			val, err := m.evalSlot(fr, n, 0)
			if err != nil {
				return "", nil, err
			}
			fr.locals[n.Type.LocalName] = val
			next := n.OutputExecConnection(0)
			if next == nil {
				return "", nil, fmt.Errorf("interp: _set_%s exec output is not connected", n.Type.LocalName)
			}
			n, inSlot = next.Node, next.Slot

		case nodetype.KindFunctionCall:
			callee, err := m.resolveCallee(n.Type)
			if err != nil {
				return "", nil, err
			}
			args, err := m.evalInputs(fr, n)
			if err != nil {
				return "", nil, err
			}
			if inSlot < 0 || inSlot >= len(n.Type.ExecInputs) {
				return "", nil, fmt.Errorf("interp: call to %q entered via out-of-range exec input %d", n.Type.CalleeName, inSlot)
			}
			execOutName, results, err := m.Call(callee, n.Type.ExecInputs[inSlot], args)
			if err != nil {
				return "", nil, fmt.Errorf("interp: calling %s:%s: %w", n.Type.CalleeModule, n.Type.CalleeName, err)
			}
			fr.cache[n.ID.String()] = results
			outIdx := indexOf(n.Type.ExecOutputs, execOutName)
			if outIdx == -1 {
				return "", nil, fmt.Errorf("interp: callee %q returned unknown exec output %q", n.Type.CalleeName, execOutName)
			}
			next := n.OutputExecConnection(outIdx)
			if next == nil {
				return "", nil, fmt.Errorf("interp: call to %q exec output %q is not connected", n.Type.CalleeName, execOutName)
			}
			n, inSlot = next.Node, next.Slot

		default:
			return "", nil, fmt.Errorf("interp: unexpected node kind %q in exec walk", n.Type.Kind)
		}
	}
}

func (m *Machine) resolveCallee(nt *nodetype.NodeType) (*gfunction.Function, error) {
	qualified := nt.CalleeModule + ":" + nt.CalleeName
	fn, err := m.ctx.ResolveFunction(qualified)
	if err != nil {
		return nil, fmt.Errorf("interp: resolving call target %q: %w", qualified, err)
	}
	return fn, nil
}

// evalInputs evaluates every data-input slot of n, in order.
func (m *Machine) evalInputs(fr *frame, n *node.Instance) ([]any, error) {
	out := make([]any, len(n.Type.DataInputs))
	for i := range n.Type.DataInputs {
		v, err := m.evalSlot(fr, n, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalSlot evaluates the value feeding n's data-input slot.
func (m *Machine) evalSlot(fr *frame, n *node.Instance, slot int) (any, error) {
	ref := n.InputDataConnection(slot)
	if ref == nil {
		return nil, fmt.Errorf("interp: %s data input %d is not connected", n.Type.Qualified(), slot)
	}
	return m.evalOutput(fr, ref.Node, ref.Slot)
}

// evalOutput produces the value at n's data-output slot outSlot: a
// cache lookup for an already-executed impure node, or a fresh
// computation for a pure one (pure nodes are never cached, so a pure
// node feeding several impure consumers runs once per consumer, per
// the pure-memoization property).
func (m *Machine) evalOutput(fr *frame, n *node.Instance, outSlot int) (any, error) {
	if !n.Type.Pure {
		cached, ok := fr.cache[n.ID.String()]
		if !ok {
			return nil, fmt.Errorf("interp: %s has not executed yet on this path", n.Type.Qualified())
		}
		if outSlot < 0 || outSlot >= len(cached) {
			return nil, fmt.Errorf("interp: %s output slot %d out of range", n.Type.Qualified(), outSlot)
		}
		return cached[outSlot], nil
	}

	switch n.Type.Kind {
	case nodetype.KindConstInt:
		return n.Type.IntLiteral, nil
	case nodetype.KindConstFloat:
		return n.Type.FloatLiteral, nil
	case nodetype.KindConstBool:
		return n.Type.BoolLiteral, nil
	case nodetype.KindStrLiteral:
		return n.Type.StringLiteral, nil

	case nodetype.KindArithmetic, nodetype.KindCompare:
		lhs, err := m.evalSlot(fr, n, 0)
		if err != nil {
			return nil, err
		}
		rhs, err := m.evalSlot(fr, n, 1)
		if err != nil {
			return nil, err
		}
		return applyBinOp(n.Type.Op, lhs, rhs)

	case nodetype.KindIntToFloat:
		v, err := m.evalSlot(fr, n, 0)
		if err != nil {
			return nil, err
		}
		i, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("interp: inttofloat expected int64, got %T", v)
		}
		return float64(i), nil

	case nodetype.KindFloatToInt:
		v, err := m.evalSlot(fr, n, 0)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("interp: floattoint expected float64, got %T", v)
		}
		return int64(f), nil

	case nodetype.KindGetLocal:
		return fr.locals[n.Type.LocalName], nil

	case nodetype.KindMakeStruct:
		fields, err := m.evalInputs(fr, n)
		if err != nil {
			return nil, err
		}
		return StructValue{Struct: n.Type.StructName, Fields: fields}, nil

	case nodetype.KindBreakStruct:
		v, err := m.evalSlot(fr, n, 0)
		if err != nil {
			return nil, err
		}
		sv, ok := v.(StructValue)
		if !ok {
			return nil, fmt.Errorf("interp: _break_%s expected a StructValue, got %T", n.Type.StructName, v)
		}
		if outSlot < 0 || outSlot >= len(sv.Fields) {
			return nil, fmt.Errorf("interp: _break_%s field slot %d out of range", n.Type.StructName, outSlot)
		}
		return sv.Fields[outSlot], nil

	case nodetype.KindCCall:
		extern, ok := m.externs[n.Type.CFunction]
		if !ok {
			return nil, fmt.Errorf("interp: no extern registered for C function %q", n.Type.CFunction)
		}
		args, err := m.evalInputs(fr, n)
		if err != nil {
			return nil, err
		}
		result, err := extern(args)
		if err != nil {
			return nil, fmt.Errorf("interp: extern %q: %w", n.Type.CFunction, err)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("interp: unsupported pure node kind %q", n.Type.Kind)
	}
}

func applyBinOp(op ir.BinOp, lhs, rhs any) (any, error) {
	switch l := lhs.(type) {
	case int64:
		r, ok := rhs.(int64)
		if !ok {
			return nil, fmt.Errorf("interp: operand type mismatch: %T vs %T", lhs, rhs)
		}
		switch op {
		case ir.OpAdd:
			return l + r, nil
		case ir.OpSub:
			return l - r, nil
		case ir.OpMul:
			return l * r, nil
		case ir.OpDiv:
			if r == 0 {
				return nil, fmt.Errorf("interp: integer division by zero")
			}
			return l / r, nil
		case ir.OpLT:
			return l < r, nil
		case ir.OpGT:
			return l > r, nil
		case ir.OpLE:
			return l <= r, nil
		case ir.OpGE:
			return l >= r, nil
		case ir.OpEQ:
			return l == r, nil
		case ir.OpNE:
			return l != r, nil
		}
	case float64:
		r, ok := rhs.(float64)
		if !ok {
			return nil, fmt.Errorf("interp: operand type mismatch: %T vs %T", lhs, rhs)
		}
		switch op {
		case ir.OpAdd:
			return l + r, nil
		case ir.OpSub:
			return l - r, nil
		case ir.OpMul:
			return l * r, nil
		case ir.OpDiv:
			if r == 0 {
				return nil, fmt.Errorf("interp: float division by zero")
			}
			return l / r, nil
		case ir.OpLT:
			return l < r, nil
		case ir.OpGT:
			return l > r, nil
		case ir.OpLE:
			return l <= r, nil
		case ir.OpGE:
			return l >= r, nil
		case ir.OpEQ:
			return l == r, nil
		case ir.OpNE:
			return l != r, nil
		}
	}
	return nil, fmt.Errorf("interp: unsupported operand type %T for op %q", lhs, op)
}

func indexOf(xs []string, x string) int {
	for i, s := range xs {
		if s == x {
			return i
		}
	}
	return -1
}
