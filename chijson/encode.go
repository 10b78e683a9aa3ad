package chijson

import (
	"encoding/json"
	"fmt"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gmodule"
)

// Encode serializes mod to its .chimod JSON form, the inverse of
// Decode.
func Encode(mod *gmodule.Module) ([]byte, error) {
	doc := ModuleJSON{
		Dependencies: mod.Dependencies(),
		HasCSupport:  mod.CEnabled(),
		Types:        make(map[string][]NamedRef),
	}
	if doc.Dependencies == nil {
		doc.Dependencies = []string{}
	}

	for _, st := range mod.Structs() {
		doc.Types[st.Name()] = namedDataTypesToRefs(st.Fields())
	}

	for _, fn := range mod.Functions() {
		gj, err := encodeFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("chijson: function %q: %w", fn.Name(), err)
		}
		doc.Graphs = append(doc.Graphs, gj)
	}

	return json.MarshalIndent(doc, "", "  ")
}

func namedDataTypesToRefs(fields []datatype.NamedDataType) []NamedRef {
	out := make([]NamedRef, len(fields))
	for i, f := range fields {
		out[i] = NamedRef{Name: f.Name, Type: f.Type.Qualified()}
	}
	return out
}

func encodeFunction(fn *gfunction.Function) (FunctionJSON, error) {
	gj := FunctionJSON{
		Type:           "function",
		Name:           fn.Name(),
		Description:    fn.Description(),
		DataInputs:     namedDataTypesToRefs(fn.DataInputs()),
		DataOutputs:    namedDataTypesToRefs(fn.DataOutputs()),
		ExecInputs:     fn.ExecInputs(),
		ExecOutputs:    fn.ExecOutputs(),
		LocalVariables: make(map[string]string),
		Nodes:          make(map[string]NodeJSON),
	}
	for _, l := range fn.Locals() {
		gj.LocalVariables[l.Name] = l.Type.Qualified()
	}

	for _, n := range fn.Nodes() {
		payload, err := json.Marshal(n.Type.ToJSON())
		if err != nil {
			return FunctionJSON{}, fmt.Errorf("node %s: %w", n.ID, err)
		}
		gj.Nodes[n.ID.String()] = NodeJSON{
			Type:     string(n.Type.Kind),
			Location: [2]float64{n.X, n.Y},
			Data:     payload,
		}

		for slot := range n.Type.DataInputs {
			ref := n.InputDataConnection(slot)
			if ref == nil {
				continue
			}
			gj.Connections = append(gj.Connections, ConnectionJSON{
				Type:   "data",
				Input:  SlotRef{NodeID: ref.Node.ID.String(), Slot: ref.Slot},
				Output: SlotRef{NodeID: n.ID.String(), Slot: slot},
			})
		}
		for slot := range n.Type.ExecOutputs {
			ref := n.OutputExecConnection(slot)
			if ref == nil {
				continue
			}
			gj.Connections = append(gj.Connections, ConnectionJSON{
				Type:   "exec",
				Input:  SlotRef{NodeID: n.ID.String(), Slot: slot},
				Output: SlotRef{NodeID: ref.Node.ID.String(), Slot: ref.Slot},
			})
		}
	}
	if gj.Connections == nil {
		gj.Connections = []ConnectionJSON{}
	}
	return gj, nil
}
