package chijson

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/chigraph/chi/ccall"
	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gmodule"
	"github.com/chigraph/chi/gstruct"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

// Decode parses a .chimod document into a *gmodule.Module named
// modulePath. cCompiler is consulted only if the document declares a
// c-call node or has_c_support; cSourceDir names the module's own C
// source directory (the workspace layer's job to resolve -- chijson
// just records whatever it's given via SetCSource).
func Decode(resolver Resolver, modulePath string, data []byte, cCompiler *ccall.Compiler, cSourceDir string) (*gmodule.Module, error) {
	var doc ModuleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("chijson: parsing %q: %w", modulePath, err)
	}

	mod := gmodule.New(modulePath, resolver.Backend())
	for _, dep := range doc.Dependencies {
		mod.AddDependency(dep)
	}
	if doc.HasCSupport {
		mod.SetCSource(cSourceDir)
	}

	mr := &moduleResolver{
		Resolver:   resolver,
		modulePath: modulePath,
		structs:    make(map[string]*gstruct.Struct),
		functions:  make(map[string]*gfunction.Function),
	}

	if err := decodeStructs(mod, mr, doc.Types); err != nil {
		return nil, err
	}

	functions := make([]*gfunction.Function, len(doc.Graphs))
	for i, gj := range doc.Graphs {
		dataIn, err := namedRefsToTypes(mr, gj.DataInputs)
		if err != nil {
			return nil, fmt.Errorf("chijson: function %q data_inputs: %w", gj.Name, err)
		}
		dataOut, err := namedRefsToTypes(mr, gj.DataOutputs)
		if err != nil {
			return nil, fmt.Errorf("chijson: function %q data_outputs: %w", gj.Name, err)
		}
		fn := gfunction.New(mod, gj.Name, dataIn, dataOut, gj.ExecInputs, gj.ExecOutputs)
		fn.SetDescription(gj.Description)
		if err := mod.AddFunction(gj.Name, fn); err != nil {
			return nil, fmt.Errorf("chijson: %w", err)
		}

		localNames := make([]string, 0, len(gj.LocalVariables))
		for name := range gj.LocalVariables {
			localNames = append(localNames, name)
		}
		sort.Strings(localNames)
		for _, name := range localNames {
			ty, err := mr.ResolveType(gj.LocalVariables[name])
			if err != nil {
				return nil, fmt.Errorf("chijson: function %q local %q: %w", gj.Name, name, err)
			}
			if err := fn.AddLocal(name, ty); err != nil {
				return nil, fmt.Errorf("chijson: %w", err)
			}
		}

		mr.functions[gj.Name] = fn
		functions[i] = fn
	}

	for i, gj := range doc.Graphs {
		if err := decodeFunctionBody(mr, cCompiler, modulePath, functions[i], gj); err != nil {
			return nil, fmt.Errorf("chijson: function %q: %w", gj.Name, err)
		}
	}

	return mod, nil
}

func namedRefsToTypes(mr *moduleResolver, refs []NamedRef) ([]datatype.NamedDataType, error) {
	out := make([]datatype.NamedDataType, len(refs))
	for i, r := range refs {
		ty, err := mr.ResolveType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", r.Type, err)
		}
		out[i] = datatype.NamedDataType{Name: r.Name, Type: ty}
	}
	return out, nil
}

// decodeStructs builds every struct named in types. Shells are
// registered before any field is resolved so sibling structs can
// reference one another regardless of JSON object key order; fields
// are then populated in repeated passes, since a struct's own fields
// may reference a struct processed later in lexical key order.
func decodeStructs(mod *gmodule.Module, mr *moduleResolver, types map[string][]NamedRef) error {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := gstruct.New(mod, name)
		if err := mod.AddStruct(name, st); err != nil {
			return fmt.Errorf("chijson: %w", err)
		}
		mr.structs[name] = st
	}

	pending := append([]string(nil), names...)
	for len(pending) > 0 {
		var stillPending []string
		progressed := false
		for _, name := range pending {
			ok, err := tryAddFields(mr.structs[name], mr, types[name])
			if err != nil {
				return fmt.Errorf("chijson: struct %q: %w", name, err)
			}
			if ok {
				progressed = true
			} else {
				stillPending = append(stillPending, name)
			}
		}
		if !progressed {
			return fmt.Errorf("chijson: could not resolve field types for struct(s) %v (unknown or cyclic dependency)", stillPending)
		}
		pending = stillPending
	}
	return nil
}

// tryAddFields resolves every field type before adding any, so a
// not-yet-ready struct (ok=false) is left untouched for a later pass.
func tryAddFields(st *gstruct.Struct, mr *moduleResolver, fields []NamedRef) (ok bool, err error) {
	resolved := make([]*datatype.DataType, len(fields))
	for i, f := range fields {
		ty, resolveErr := mr.ResolveType(f.Type)
		if resolveErr != nil {
			return false, nil
		}
		resolved[i] = ty
	}
	for i, f := range fields {
		if err := st.AddField(f.Name, resolved[i]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func decodeFunctionBody(mr *moduleResolver, cCompiler *ccall.Compiler, modulePath string, fn *gfunction.Function, gj FunctionJSON) error {
	ids := make([]string, 0, len(gj.Nodes))
	for id := range gj.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	instances := make(map[string]*node.Instance, len(gj.Nodes))
	for _, id := range ids {
		nj := gj.Nodes[id]
		if nj.Type == string(nodetype.KindEntry) {
			instances[id] = fn.Entry()
			continue
		}
		nt, err := buildNodeType(mr, cCompiler, modulePath, fn, nj)
		if err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		inst, err := fn.AddNode(nt, nj.Location[0], nj.Location[1])
		if err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		instances[id] = inst
	}

	for _, c := range gj.Connections {
		src, ok := instances[c.Input.NodeID]
		if !ok {
			return fmt.Errorf("connection references unknown node %q", c.Input.NodeID)
		}
		dst, ok := instances[c.Output.NodeID]
		if !ok {
			return fmt.Errorf("connection references unknown node %q", c.Output.NodeID)
		}
		switch c.Type {
		case "data":
			if err := connectDataWithConversion(mr, fn, src, c.Input.Slot, dst, c.Output.Slot); err != nil {
				return err
			}
		case "exec":
			if err := node.ConnectExec(src, c.Input.Slot, dst, c.Output.Slot); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown connection type %q", c.Type)
		}
	}
	return nil
}

// connectDataWithConversion wires src's output slot srcOut to dst's
// input slot dstIn, inserting the registered single-hop converter node
// between them when their types don't match exactly, per the load-time
// converter-insertion invariant (§3, §4.8). A mismatch with no
// registered converter is reported as node.ErrTypeMismatch, unchanged.
func connectDataWithConversion(mr *moduleResolver, fn *gfunction.Function, src *node.Instance, srcOut int, dst *node.Instance, dstIn int) error {
	if err := node.ConnectData(src, srcOut, dst, dstIn); err == nil {
		return nil
	} else if !errors.Is(err, node.ErrTypeMismatch) {
		return err
	}

	srcType := src.Type.DataOutputs[srcOut].Type
	dstType := dst.Type.DataInputs[dstIn].Type
	conv, ok := mr.Converter(srcType, dstType)
	if !ok {
		return fmt.Errorf("no registered converter from %s to %s", srcType.Qualified(), dstType.Qualified())
	}

	convInst, err := fn.AddNode(conv, (src.X+dst.X)/2, (src.Y+dst.Y)/2)
	if err != nil {
		return fmt.Errorf("inserting converter node: %w", err)
	}
	if err := node.ConnectData(src, srcOut, convInst, 0); err != nil {
		return fmt.Errorf("connecting converter input: %w", err)
	}
	if err := node.ConnectData(convInst, 0, dst, dstIn); err != nil {
		return fmt.Errorf("connecting converter output: %w", err)
	}
	return nil
}

// buildNodeType reconstructs a NodeType from its wire Kind tag and data
// payload, mirroring nodetype.NodeType.ToJSON in reverse.
func buildNodeType(mr *moduleResolver, cCompiler *ccall.Compiler, modulePath string, fn *gfunction.Function, nj NodeJSON) (*nodetype.NodeType, error) {
	lang := mr.Lang()
	switch nodetype.Kind(nj.Type) {
	case nodetype.KindExit:
		return fn.NewExitNode(), nil
	case nodetype.KindIf:
		return lang.If, nil
	case nodetype.KindIntToFloat:
		return lang.IntToFloat, nil
	case nodetype.KindFloatToInt:
		return lang.FloatToInt, nil
	case nodetype.KindConstInt:
		var d struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return lang.NewConstInt(d.Value), nil
	case nodetype.KindConstFloat:
		var d struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return lang.NewConstFloat(d.Value), nil
	case nodetype.KindConstBool:
		var d struct {
			Value bool `json:"value"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return lang.NewConstBool(d.Value), nil
	case nodetype.KindStrLiteral:
		var d struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return lang.NewStrLiteral(d.Value), nil
	case nodetype.KindArithmetic, nodetype.KindCompare:
		var d struct {
			Op          string `json:"op"`
			OperandType string `json:"operand_type"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		op := ir.BinOp(d.Op)
		if op.IsCompare() {
			return lang.Compare(d.OperandType, op)
		}
		return lang.Arithmetic(d.OperandType, op)
	case nodetype.KindFunctionCall:
		var d struct {
			Module   string `json:"module"`
			Function string `json:"function"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		callee, err := mr.ResolveFunction(d.Module + ":" + d.Function)
		if err != nil {
			return nil, err
		}
		return gmodule.NewCallNode(callee, d.Module, d.Function), nil
	case nodetype.KindMakeStruct, nodetype.KindBreakStruct:
		var d struct {
			Module string `json:"module"`
			Struct string `json:"struct"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		st, err := mr.ResolveStruct(d.Module + ":" + d.Struct)
		if err != nil {
			return nil, err
		}
		if nodetype.Kind(nj.Type) == nodetype.KindMakeStruct {
			return st.NewMakeNode(), nil
		}
		return st.NewBreakNode(), nil
	case nodetype.KindGetLocal:
		var d struct {
			Local string `json:"local"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return fn.NewGetLocalNode(d.Local)
	case nodetype.KindSetLocal:
		var d struct {
			Local string `json:"local"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		return fn.NewSetLocalNode(d.Local)
	case nodetype.KindCCall:
		if cCompiler == nil {
			return nil, fmt.Errorf("c-call node present but no C compiler configured")
		}
		var d struct {
			Code       string   `json:"code"`
			Function   string   `json:"function"`
			ExtraFlags []string   `json:"extraflags"`
			Inputs     []NamedRef `json:"inputs"`
			Output     *string    `json:"output"`
		}
		if err := json.Unmarshal(nj.Data, &d); err != nil {
			return nil, err
		}
		inputs, err := namedRefsToTypes(mr, d.Inputs)
		if err != nil {
			return nil, fmt.Errorf("c-call inputs: %w", err)
		}
		var output *datatype.NamedDataType
		if d.Output != nil {
			ty, err := mr.ResolveType(*d.Output)
			if err != nil {
				return nil, fmt.Errorf("c-call output: %w", err)
			}
			output = &datatype.NamedDataType{Name: d.Function, Type: ty}
		}
		return ccall.NewCCallNode(cCompiler, modulePath, d.Function, d.Code, d.ExtraFlags, inputs, output), nil
	default:
		return nil, fmt.Errorf("unrecognized node type %q", nj.Type)
	}
}
