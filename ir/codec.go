package ir

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"strings"
)

// Encode serializes m to a self-contained byte stream — the bitcode
// equivalent written to <workspace>/lib/<module>.bc and cached by mtime
// per §4.6. The format is a private gob encoding of a flattened
// snapshot, not a textual IR or any standard bitcode: there is no real
// LLVM binding in this module's dependency set (see the `ir` package
// doc), so this is what "compiled, cacheable artifact" means here.
func (m *Module) Encode() ([]byte, error) {
	snap := snapshotModule(m)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("ir: encoding module %q: %w", m.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a Module previously produced by Encode, under the
// given Context (struct types are interned against it so two functions
// referencing the "same" struct resolve to one Type).
func Decode(ctx *Context, data []byte) (*Module, error) {
	var snap snapModule
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("ir: decoding module: %w", err)
	}
	return rebuildModule(ctx, snap), nil
}

// --- snapshot DTOs -----------------------------------------------------

type snapModule struct {
	Name             string
	SourcePath       string
	HasCompileUnit   bool
	DebugInfoVersion bool
	StructDefs       []snapStructDef
	Functions        []snapFunction
	Order            []string
}

type snapStructDef struct {
	Name   string
	Fields []snapNamedType
}

type snapNamedType struct {
	Name string
	Type string
}

type snapFunction struct {
	Name       string
	ParamTypes []string
	ParamNames []string
	ReturnType string
	Declared   bool
	Blocks     []snapBlock
}

type snapBlock struct {
	Name  string
	Stmts []snapStmt
	Term  snapTerm
}

type snapStmt struct {
	Kind       string
	Name       string
	ElemType   string
	Ptr        string
	Val        snapOperand
	Op         string
	Lhs, Rhs   snapOperand
	ResultType string
	Src        snapOperand
	Callee     string
	Args       []snapOperand
	FieldIdx   int
	FieldType  string
	BaseStruct string
}

type snapOperand struct {
	Kind     string // "ref", "const_int", "const_float", "const_string"
	Ref      string
	Ty       string
	IntVal   int64
	FloatVal float64
	StrVal   string
}

type snapTerm struct {
	Kind      string
	Target    string
	Cond      snapOperand
	TrueBB    string
	FalseBB   string
	Addr      string
	Dests     []string
	RetVal    snapOperand
	HasRetVal bool
}

// --- encode -------------------------------------------------------------

func snapshotModule(m *Module) snapModule {
	structs := map[string]*StructType{}
	collectStruct := func(t Type) {
		if pt, ok := t.(*PointerType); ok {
			if st, ok := pt.Elem.(*StructType); ok {
				structs[st.StructName] = st
			}
		}
		if st, ok := t.(*StructType); ok {
			structs[st.StructName] = st
		}
	}

	snap := snapModule{
		Name:             m.Name,
		SourcePath:       m.SourcePath,
		HasCompileUnit:   m.CompileUnit != nil,
		DebugInfoVersion: m.DebugInfoVersion,
		Order:            append([]string(nil), m.order...),
	}

	for _, name := range m.order {
		fn := m.functions[name]
		sf := snapFunction{
			Name:       fn.Name,
			ParamNames: append([]string(nil), fn.ParamNames...),
			ReturnType: typeToString(fn.Type.Return),
			Declared:   fn.Declared,
		}
		for _, p := range fn.Type.Params {
			collectStruct(p)
			sf.ParamTypes = append(sf.ParamTypes, typeToString(p))
		}
		collectStruct(fn.Type.Return)
		for _, bb := range fn.Blocks {
			sf.Blocks = append(sf.Blocks, snapshotBlock(bb, collectStruct))
		}
		snap.Functions = append(snap.Functions, sf)
	}

	for name, st := range structs {
		def := snapStructDef{Name: name}
		for _, f := range st.Fields {
			def.Fields = append(def.Fields, snapNamedType{Name: f.Name, Type: typeToString(f.Type)})
		}
		snap.StructDefs = append(snap.StructDefs, def)
	}

	return snap
}

func snapshotBlock(bb *BasicBlock, collectStruct func(Type)) snapBlock {
	sb := snapBlock{Name: bb.Name}
	for _, st := range bb.Stmts {
		sb.Stmts = append(sb.Stmts, snapshotStmt(st.Value, collectStruct))
	}
	sb.Term = snapshotTerm(bb.Terminator)
	return sb
}

func snapshotOperand(v Value) snapOperand {
	switch val := v.(type) {
	case *ConstInt:
		return snapOperand{Kind: "const_int", IntVal: val.Val, Ty: typeToString(val.Ty)}
	case *ConstFloat:
		return snapOperand{Kind: "const_float", FloatVal: val.Val}
	case *ConstString:
		return snapOperand{Kind: "const_string", StrVal: val.Val}
	default:
		return snapOperand{Kind: "ref", Ref: valueRefName(v)}
	}
}

// valueRefName returns the bare name (no sigil) a named Value is keyed
// under in a function's name table.
func valueRefName(v Value) string {
	switch val := v.(type) {
	case *Param:
		return val.Name
	case *Alloca:
		return val.Name
	case *LoadInst:
		return val.Name
	case *BinOpInst:
		return val.Name
	case *ConvertInst:
		return val.Name
	case *CallInst:
		return val.Name
	case *LoadFieldInst:
		return val.Name
	default:
		return v.String()
	}
}

func snapshotStmt(v any, collectStruct func(Type)) snapStmt {
	switch inst := v.(type) {
	case *Alloca:
		collectStruct(inst.Elem)
		return snapStmt{Kind: "alloca", Name: inst.Name, ElemType: typeToString(inst.Elem)}
	case *StoreInst:
		return snapStmt{Kind: "store", Ptr: inst.Ptr.Name, Val: snapshotOperand(inst.Val)}
	case *LoadInst:
		return snapStmt{Kind: "load", Name: inst.Name, Ptr: inst.Ptr.Name}
	case *BinOpInst:
		collectStruct(inst.ResultTy)
		return snapStmt{
			Kind: "binop", Name: inst.Name, Op: string(inst.Op),
			Lhs: snapshotOperand(inst.Lhs), Rhs: snapshotOperand(inst.Rhs),
			ResultType: typeToString(inst.ResultTy),
		}
	case *ConvertInst:
		collectStruct(inst.ResultTy)
		return snapStmt{Kind: "convert", Name: inst.Name, Src: snapshotOperand(inst.Src), ResultType: typeToString(inst.ResultTy)}
	case *CallInst:
		s := snapStmt{Kind: "call", Name: inst.Name, Callee: inst.Callee.Name}
		for _, a := range inst.Args {
			s.Args = append(s.Args, snapshotOperand(a))
		}
		return s
	case *LoadFieldInst:
		return snapStmt{
			Kind: "loadfield", Name: inst.Name, Ptr: inst.Base.Name,
			FieldIdx: inst.FieldIdx, FieldType: typeToString(inst.FieldType),
		}
	case *StoreFieldInst:
		return snapStmt{
			Kind: "storefield", Ptr: inst.Base.Name,
			FieldIdx: inst.FieldIdx, Val: snapshotOperand(inst.Val),
		}
	default:
		return snapStmt{Kind: "unknown"}
	}
}

func snapshotTerm(t Terminator) snapTerm {
	switch term := t.(type) {
	case BrInst:
		return snapTerm{Kind: "br", Target: term.Target.Name}
	case CondBrInst:
		return snapTerm{Kind: "condbr", Cond: snapshotOperand(term.Cond), TrueBB: term.TrueBB.Name, FalseBB: term.FalseBB.Name}
	case *IndirectBrInst:
		st := snapTerm{Kind: "indirectbr", Addr: term.Addr.Name}
		for _, d := range term.Dests {
			st.Dests = append(st.Dests, d.Name)
		}
		return st
	case RetInst:
		if term.Val == nil {
			return snapTerm{Kind: "ret", HasRetVal: false}
		}
		return snapTerm{Kind: "ret", RetVal: snapshotOperand(term.Val), HasRetVal: true}
	default:
		return snapTerm{Kind: "none"}
	}
}

// --- type <-> string -----------------------------------------------------

func typeToString(t Type) string {
	switch ty := t.(type) {
	case *IntType:
		return "i" + strconv.Itoa(ty.Width)
	case *FloatType:
		return "double"
	case *PointerType:
		return typeToString(ty.Elem) + "*"
	case *StructType:
		return "%" + ty.StructName
	default:
		return "?"
	}
}

func parseType(ctx *Context, structDefs map[string]snapStructDef, s string) Type {
	if strings.HasSuffix(s, "*") {
		return &PointerType{Elem: parseType(ctx, structDefs, strings.TrimSuffix(s, "*"))}
	}
	if strings.HasPrefix(s, "%") {
		name := strings.TrimPrefix(s, "%")
		def := structDefs[name]
		var fields []NamedType
		for _, f := range def.Fields {
			fields = append(fields, NamedType{Name: f.Name, Type: parseType(ctx, structDefs, f.Type)})
		}
		return ctx.StructType(name, fields)
	}
	switch s {
	case "double":
		return Double
	}
	if strings.HasPrefix(s, "i") {
		if w, err := strconv.Atoi(strings.TrimPrefix(s, "i")); err == nil {
			return &IntType{Width: w}
		}
	}
	return Double
}

// --- decode ---------------------------------------------------------------

func rebuildModule(ctx *Context, snap snapModule) *Module {
	structDefs := make(map[string]snapStructDef, len(snap.StructDefs))
	for _, d := range snap.StructDefs {
		structDefs[d.Name] = d
	}

	m := ctx.NewModule(snap.Name, snap.SourcePath)
	if snap.HasCompileUnit {
		m.SetCompileUnit()
	}
	m.DebugInfoVersion = snap.DebugInfoVersion

	// Pass 1: declare every function's signature first, so calls between
	// functions in this module (in either declaration order) resolve.
	for _, sf := range snap.Functions {
		params := make([]Type, 0, len(sf.ParamTypes))
		for _, pt := range sf.ParamTypes {
			params = append(params, parseType(ctx, structDefs, pt))
		}
		ret := parseType(ctx, structDefs, sf.ReturnType)
		m.DeclareFunction(sf.Name, &FuncType{Params: params, Return: ret}, sf.ParamNames)
	}

	// Pass 2: rebuild bodies.
	for _, sf := range snap.Functions {
		fn := m.functions[sf.Name]
		fn.Declared = sf.Declared
		for _, sb := range sf.Blocks {
			rebuildBlock(m, fn, sb, structDefs, ctx)
		}
		linkTerminators(fn, snap, structDefs)
	}
	return m
}

// rebuildBlock creates the block and its non-terminator statements;
// operand references to values from earlier blocks within the same
// function are resolved via a whole-function name table, so blocks are
// rebuilt in two passes (this one, then linkTerminators) to allow
// forward references in branch targets.
func rebuildBlock(m *Module, fn *Function, sb snapBlock, structDefs map[string]snapStructDef, ctx *Context) {
	bb := NewBlock(fn, sb.Name)
	bb.Name = sb.Name // NewBlock may have deduped; restore exact original name

	names := functionNameTable(fn)

	resolveOperand := func(op snapOperand) Value {
		switch op.Kind {
		case "const_int":
			return &ConstInt{Ty: parseType(ctx, structDefs, op.Ty), Val: op.IntVal}
		case "const_float":
			return &ConstFloat{Val: op.FloatVal}
		case "const_string":
			return &ConstString{Val: op.StrVal}
		default:
			if v, ok := names[op.Ref]; ok {
				return v
			}
			return &ConstString{Val: op.Ref}
		}
	}

	for _, s := range sb.Stmts {
		switch s.Kind {
		case "alloca":
			a := bb.Alloca(s.Name, parseType(ctx, structDefs, s.ElemType))
			names[a.Name] = a
		case "store":
			ptr, _ := names[s.Ptr].(*Alloca)
			bb.Store(ptr, resolveOperand(s.Val))
		case "load":
			ptr, _ := names[s.Ptr].(*Alloca)
			l := bb.Load(s.Name, ptr)
			names[l.Name] = l
		case "binop":
			inst := bb.BinOpEmit(s.Name, BinOp(s.Op), resolveOperand(s.Lhs), resolveOperand(s.Rhs))
			names[inst.Name] = inst
		case "convert":
			inst := bb.Convert(s.Name, resolveOperand(s.Src), parseType(ctx, structDefs, s.ResultType))
			names[inst.Name] = inst
		case "call":
			callee := m.Function(s.Callee)
			if callee == nil {
				// Callee lives in a module linked in after decode (e.g. a
				// clang-compiled C module); declare a stand-in so the
				// instruction is well-formed until Link resolves it.
				callee = NewFunction(s.Callee, &FuncType{}, nil)
			}
			args := make([]Value, 0, len(s.Args))
			for _, a := range s.Args {
				args = append(args, resolveOperand(a))
			}
			inst := bb.Call(s.Name, callee, args)
			names[inst.Name] = inst
		case "loadfield":
			ptr, _ := names[s.Ptr].(*Alloca)
			if st, ok := ptr.Elem.(*StructType); ok {
				inst := bb.LoadField(s.Name, ptr, st, s.FieldIdx)
				names[inst.Name] = inst
			}
		case "storefield":
			ptr, _ := names[s.Ptr].(*Alloca)
			bb.StoreField(ptr, s.FieldIdx, resolveOperand(s.Val))
		}
	}
}

func functionNameTable(fn *Function) map[string]Value {
	table := make(map[string]Value)
	for i, pn := range fn.ParamNames {
		table[pn] = fn.Param(i)
	}
	for _, bb := range fn.Blocks {
		for _, s := range bb.Stmts {
			switch inst := s.Value.(type) {
			case *Alloca:
				table[inst.Name] = inst
			case *LoadInst:
				table[inst.Name] = inst
			case *BinOpInst:
				table[inst.Name] = inst
			case *ConvertInst:
				table[inst.Name] = inst
			case *CallInst:
				table[inst.Name] = inst
			case *LoadFieldInst:
				table[inst.Name] = inst
			}
		}
	}
	return table
}

func linkTerminators(fn *Function, snap snapModule, structDefs map[string]snapStructDef) {
	var sf *snapFunction
	for i := range snap.Functions {
		if snap.Functions[i].Name == fn.Name {
			sf = &snap.Functions[i]
			break
		}
	}
	if sf == nil {
		return
	}
	names := functionNameTable(fn)
	for bi, sb := range sf.Blocks {
		bb := fn.Blocks[bi]
		switch sb.Term.Kind {
		case "br":
			bb.Br(fn.Block(sb.Term.Target))
		case "condbr":
			cond := resolveTermOperand(names, sb.Term.Cond)
			bb.CondBr(cond, fn.Block(sb.Term.TrueBB), fn.Block(sb.Term.FalseBB))
		case "indirectbr":
			addr, _ := names[sb.Term.Addr].(*Alloca)
			var dests []*BasicBlock
			for _, d := range sb.Term.Dests {
				dests = append(dests, fn.Block(d))
			}
			bb.IndirectBr(addr, dests...)
		case "ret":
			if sb.Term.HasRetVal {
				bb.Ret(resolveTermOperand(names, sb.Term.RetVal))
			} else {
				bb.Ret(nil)
			}
		}
	}
}

func resolveTermOperand(names map[string]Value, op snapOperand) Value {
	switch op.Kind {
	case "const_int":
		return &ConstInt{Ty: I32, Val: op.IntVal}
	case "const_float":
		return &ConstFloat{Val: op.FloatVal}
	case "const_string":
		return &ConstString{Val: op.StrVal}
	default:
		if v, ok := names[op.Ref]; ok {
			return v
		}
		return &ConstString{Val: op.Ref}
	}
}

func init() {
	gob.Register(snapOperand{})
}
