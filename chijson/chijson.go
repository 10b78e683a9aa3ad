// Package chijson implements the .chimod JSON (de)serializer (§6.1): the
// on-disk shape of a GraphModule, its structs, functions, nodes, and
// connections, and the YAML-to-JSON normalization used for
// .chigraph.yaml workspace overlays -- the same toJSON/detect.go
// strategy the teacher's loader package uses for its own two input
// schemas (YAML -> map[string]any -> JSON bytes -> typed struct).
package chijson

import (
	"encoding/json"
	"fmt"
)

// ModuleJSON is the root .chimod document.
type ModuleJSON struct {
	Dependencies []string              `json:"dependencies"`
	HasCSupport  bool                  `json:"has_c_support"`
	Types        map[string][]NamedRef `json:"types"`
	Graphs       []FunctionJSON        `json:"graphs"`
}

// FunctionJSON is one entry of ModuleJSON.Graphs.
type FunctionJSON struct {
	Type           string              `json:"type"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	DataInputs     []NamedRef          `json:"data_inputs"`
	DataOutputs    []NamedRef          `json:"data_outputs"`
	ExecInputs     []string            `json:"exec_inputs"`
	ExecOutputs    []string            `json:"exec_outputs"`
	LocalVariables map[string]string   `json:"local_variables"`
	Nodes          map[string]NodeJSON `json:"nodes"`
	Connections    []ConnectionJSON    `json:"connections"`
}

// NodeJSON is one entry of FunctionJSON.Nodes, keyed by the node's
// canonical UUID string.
type NodeJSON struct {
	Type     string          `json:"type"`
	Location [2]float64      `json:"location"`
	Data     json.RawMessage `json:"data"`
}

// ConnectionJSON is one entry of FunctionJSON.Connections. Per §6.1,
// Input names the edge's source (upstream node id, output slot) and
// Output names its destination (downstream node id, input slot).
type ConnectionJSON struct {
	Type   string  `json:"type"`
	Input  SlotRef `json:"input"`
	Output SlotRef `json:"output"`
}

// NamedRef is the single-entry `{"<doc>": "<module:type>"}` object
// convention used throughout .chimod for documented type references
// (struct fields, data ports).
type NamedRef struct {
	Name string
	Type string
}

func (n NamedRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{n.Name: n.Type})
}

func (n *NamedRef) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("chijson: expected an object with exactly one entry, got %d", len(m))
	}
	for k, v := range m {
		n.Name, n.Type = k, v
	}
	return nil
}

// SlotRef is a `["<uuid>", <slot-index>]` pair.
type SlotRef struct {
	NodeID string
	Slot   int
}

func (s SlotRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.NodeID, s.Slot})
}

func (s *SlotRef) UnmarshalJSON(data []byte) error {
	var pair [2]any
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	id, ok := pair[0].(string)
	if !ok {
		return fmt.Errorf("chijson: expected a uuid string as the first element of a slot reference")
	}
	idx, ok := pair[1].(float64)
	if !ok {
		return fmt.Errorf("chijson: expected a numeric slot index as the second element of a slot reference")
	}
	s.NodeID, s.Slot = id, int(idx)
	return nil
}
