package chijson

import (
	"strings"
	"testing"

	"github.com/chigraph/chi/chicontext"
	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gmodule"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

func TestNamedRefJSONRoundTrip(t *testing.T) {
	ref := NamedRef{Name: "a", Type: "i32"}
	data, err := ref.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `{"a":"i32"}` {
		t.Fatalf("expected single-pair object, got %s", data)
	}
	var back NamedRef
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if back != ref {
		t.Fatalf("expected %+v, got %+v", ref, back)
	}
}

func TestNamedRefUnmarshalRejectsMultiEntryObject(t *testing.T) {
	var ref NamedRef
	if err := ref.UnmarshalJSON([]byte(`{"a":"i32","b":"i32"}`)); err == nil {
		t.Fatal("expected an error for a multi-entry object")
	}
}

func TestSlotRefJSONRoundTrip(t *testing.T) {
	ref := SlotRef{NodeID: "abc", Slot: 2}
	data, err := ref.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var back SlotRef
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if back != ref {
		t.Fatalf("expected %+v, got %+v", ref, back)
	}
}

func TestNormalizeToJSONPassesThroughJSON(t *testing.T) {
	in := []byte(`{"a":1}`)
	out, err := NormalizeToJSON(in, "mod.chimod")
	if err != nil {
		t.Fatalf("NormalizeToJSON: %v", err)
	}
	if string(out) != string(in) {
		t.Fatalf("expected JSON passed through unchanged, got %s", out)
	}
}

func TestNormalizeToJSONConvertsYAML(t *testing.T) {
	in := []byte("dependencies: []\nhas_c_support: false\n")
	out, err := NormalizeToJSON(in, "overlay.chigraph.yaml")
	if err != nil {
		t.Fatalf("NormalizeToJSON: %v", err)
	}
	if !strings.Contains(string(out), `"dependencies":[]`) {
		t.Fatalf("expected converted JSON to contain dependencies, got %s", out)
	}
}

// chimodFixture is a small but complete module: struct Pair{a,b:i32},
// and main:main wiring entry -> _make_Pair(3,4) -> _break_Pair -> exit(a).
const chimodFixture = `{
  "dependencies": [],
  "has_c_support": false,
  "types": { "Pair": [ {"a": "i32"}, {"b": "i32"} ] },
  "graphs": [
    {
      "type": "function",
      "name": "main",
      "description": "",
      "data_inputs": [],
      "data_outputs": [ {"result": "i32"} ],
      "exec_inputs": ["in"],
      "exec_outputs": ["out"],
      "local_variables": {},
      "nodes": {
        "00000000-0000-0000-0000-000000000001": {"type": "lang:entry", "location": [0,0], "data": {}},
        "00000000-0000-0000-0000-000000000002": {"type": "_make_", "location": [0,0], "data": {"module": "main", "struct": "Pair"}},
        "00000000-0000-0000-0000-000000000003": {"type": "lang:const-int", "location": [0,0], "data": {"value": 3}},
        "00000000-0000-0000-0000-000000000004": {"type": "lang:const-int", "location": [0,0], "data": {"value": 4}},
        "00000000-0000-0000-0000-000000000005": {"type": "_break_", "location": [0,0], "data": {"module": "main", "struct": "Pair"}},
        "00000000-0000-0000-0000-000000000006": {"type": "lang:exit", "location": [0,0], "data": {}}
      },
      "connections": [
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000003", 0], "output": ["00000000-0000-0000-0000-000000000002", 0]},
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000004", 0], "output": ["00000000-0000-0000-0000-000000000002", 1]},
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000002", 0], "output": ["00000000-0000-0000-0000-000000000005", 0]},
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000005", 0], "output": ["00000000-0000-0000-0000-000000000006", 0]},
        {"type": "exec", "input": ["00000000-0000-0000-0000-000000000001", 0], "output": ["00000000-0000-0000-0000-000000000006", 0]}
      ]
    }
  ]
}`

func TestDecodeBuildsAStructMakeBreakModule(t *testing.T) {
	ctx := chicontext.New(nil)
	mod, err := Decode(ctx, "main", []byte(chimodFixture), nil, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	st := mod.Struct("Pair")
	if st == nil {
		t.Fatal("expected struct Pair to be declared")
	}
	if len(st.Fields()) != 2 {
		t.Fatalf("expected 2 fields on Pair, got %d", len(st.Fields()))
	}

	fn := mod.Function("main")
	if fn == nil {
		t.Fatal("expected function main to be declared")
	}
	if len(fn.Nodes()) != 6 {
		t.Fatalf("expected 6 nodes, got %d", len(fn.Nodes()))
	}

	var makeNode *node.Instance
	for _, n := range fn.Nodes() {
		if n.Type.Name == "_make_Pair" {
			makeNode = n
		}
	}
	if makeNode == nil {
		t.Fatal("expected a _make_Pair node instance")
	}
	if ref := makeNode.OutputDataConnections(0); len(ref) != 1 {
		t.Fatalf("expected the make node's output to feed exactly one consumer, got %d", len(ref))
	}
}

func TestDecodeRejectsUnresolvableType(t *testing.T) {
	ctx := chicontext.New(nil)
	bad := `{"dependencies": [], "has_c_support": false, "types": {}, "graphs": [
		{"type":"function","name":"main","description":"","data_inputs":[{"x":"bogus:Nope"}],
		 "data_outputs":[],"exec_inputs":["in"],"exec_outputs":["out"],
		 "local_variables":{},"nodes":{},"connections":[]}
	]}`
	if _, err := Decode(ctx, "main", []byte(bad), nil, ""); err == nil {
		t.Fatal("expected an error resolving an unknown type")
	}
}

func TestEncodeThenDecodeRoundTripsArithmeticAndLocals(t *testing.T) {
	irctx := ir.NewContext()
	ctx := chicontext.New(nil)
	mod := gmodule.New("main", irctx)
	lang := ctx.Lang()

	fn := gfunction.New(mod, "main", nil,
		[]datatype.NamedDataType{{Name: "result", Type: lang.I32}},
		[]string{"in"}, []string{"out"})
	if err := mod.AddFunction("main", fn); err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	if err := fn.AddLocal("counter", lang.I32); err != nil {
		t.Fatalf("AddLocal: %v", err)
	}

	addNT, err := lang.Arithmetic("i32", ir.OpAdd)
	if err != nil {
		t.Fatalf("Arithmetic: %v", err)
	}
	addNode, err := fn.AddNode(addNT, 0, 0)
	if err != nil {
		t.Fatalf("AddNode(add): %v", err)
	}
	oneNode, err := fn.AddNode(lang.NewConstInt(1), 0, 0)
	if err != nil {
		t.Fatalf("AddNode(1): %v", err)
	}
	twoNode, err := fn.AddNode(lang.NewConstInt(2), 0, 0)
	if err != nil {
		t.Fatalf("AddNode(2): %v", err)
	}
	if err := node.ConnectData(oneNode, 0, addNode, 0); err != nil {
		t.Fatalf("ConnectData: %v", err)
	}
	if err := node.ConnectData(twoNode, 0, addNode, 1); err != nil {
		t.Fatalf("ConnectData: %v", err)
	}
	exitNode, err := fn.AddNode(fn.NewExitNode(), 0, 0)
	if err != nil {
		t.Fatalf("AddNode(exit): %v", err)
	}
	if err := node.ConnectData(addNode, 0, exitNode, 0); err != nil {
		t.Fatalf("ConnectData: %v", err)
	}
	if err := node.ConnectExec(fn.Entry(), 0, exitNode, 0); err != nil {
		t.Fatalf("ConnectExec: %v", err)
	}

	data, err := Encode(mod)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decodeCtx := chicontext.New(nil)
	back, err := Decode(decodeCtx, "main", data, nil, "")
	if err != nil {
		t.Fatalf("Decode(Encode(mod)): %v\n%s", err, data)
	}

	backFn := back.Function("main")
	if backFn == nil {
		t.Fatal("expected function main to round-trip")
	}
	if len(backFn.Locals()) != 1 || backFn.Locals()[0].Name != "counter" {
		t.Fatalf("expected local 'counter' to round-trip, got %+v", backFn.Locals())
	}
	if len(backFn.Nodes()) != len(fn.Nodes()) {
		t.Fatalf("expected %d nodes, got %d", len(fn.Nodes()), len(backFn.Nodes()))
	}

	var gotAdd *node.Instance
	for _, n := range backFn.Nodes() {
		if n.Type.Kind == nodetype.KindArithmetic {
			gotAdd = n
		}
	}
	if gotAdd == nil {
		t.Fatal("expected an arithmetic node to round-trip")
	}
}

func TestDecodeSupportsForwardFunctionCallReference(t *testing.T) {
	ctx := chicontext.New(nil)
	doc := `{
		"dependencies": [], "has_c_support": false, "types": {},
		"graphs": [
			{"type":"function","name":"caller","description":"",
			 "data_inputs":[],"data_outputs":[{"r":"i32"}],
			 "exec_inputs":["in"],"exec_outputs":["out"],"local_variables":{},
			 "nodes": {
			   "00000000-0000-0000-0000-0000000000a1": {"type":"lang:entry","location":[0,0],"data":{}},
			   "00000000-0000-0000-0000-0000000000a2": {"type":"function-call","location":[0,0],"data":{"module":"main","function":"callee"}},
			   "00000000-0000-0000-0000-0000000000a3": {"type":"lang:exit","location":[0,0],"data":{}}
			 },
			 "connections": [
			   {"type":"exec","input":["00000000-0000-0000-0000-0000000000a1",0],"output":["00000000-0000-0000-0000-0000000000a2",0]},
			   {"type":"exec","input":["00000000-0000-0000-0000-0000000000a2",0],"output":["00000000-0000-0000-0000-0000000000a3",0]},
			   {"type":"data","input":["00000000-0000-0000-0000-0000000000a2",0],"output":["00000000-0000-0000-0000-0000000000a3",0]}
			 ]
			},
			{"type":"function","name":"callee","description":"",
			 "data_inputs":[],"data_outputs":[{"r":"i32"}],
			 "exec_inputs":["in"],"exec_outputs":["out"],"local_variables":{},
			 "nodes": {
			   "00000000-0000-0000-0000-0000000000b1": {"type":"lang:entry","location":[0,0],"data":{}},
			   "00000000-0000-0000-0000-0000000000b2": {"type":"lang:const-int","location":[0,0],"data":{"value":7}},
			   "00000000-0000-0000-0000-0000000000b3": {"type":"lang:exit","location":[0,0],"data":{}}
			 },
			 "connections": [
			   {"type":"exec","input":["00000000-0000-0000-0000-0000000000b1",0],"output":["00000000-0000-0000-0000-0000000000b3",0]},
			   {"type":"data","input":["00000000-0000-0000-0000-0000000000b2",0],"output":["00000000-0000-0000-0000-0000000000b3",0]}
			 ]
			}
		]
	}`
	mod, err := Decode(ctx, "main", []byte(doc), nil, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	caller := mod.Function("caller")
	if caller == nil {
		t.Fatal("expected function caller")
	}
	var callNode *node.Instance
	for _, n := range caller.Nodes() {
		if n.Type.CalleeName == "callee" {
			callNode = n
		}
	}
	if callNode == nil {
		t.Fatal("expected a function-call node resolved against the not-yet-declared callee")
	}
}

func TestDecodeInsertsConverterNodeOnTypeMismatch(t *testing.T) {
	ctx := chicontext.New(nil)
	doc := `{
		"dependencies": [], "has_c_support": false, "types": {},
		"graphs": [
			{"type":"function","name":"main","description":"",
			 "data_inputs":[],"data_outputs":[{"r":"lang:float"}],
			 "exec_inputs":["in"],"exec_outputs":["out"],"local_variables":{},
			 "nodes": {
			   "00000000-0000-0000-0000-0000000000c1": {"type":"lang:entry","location":[0,0],"data":{}},
			   "00000000-0000-0000-0000-0000000000c2": {"type":"lang:const-int","location":[0,0],"data":{"value":5}},
			   "00000000-0000-0000-0000-0000000000c3": {"type":"lang:exit","location":[0,0],"data":{}}
			 },
			 "connections": [
			   {"type":"exec","input":["00000000-0000-0000-0000-0000000000c1",0],"output":["00000000-0000-0000-0000-0000000000c3",0]},
			   {"type":"data","input":["00000000-0000-0000-0000-0000000000c2",0],"output":["00000000-0000-0000-0000-0000000000c3",0]}
			 ]
			}
		]
	}`
	mod, err := Decode(ctx, "main", []byte(doc), nil, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fn := mod.Function("main")
	if fn == nil {
		t.Fatal("expected function main")
	}

	var convNode *node.Instance
	for _, n := range fn.Nodes() {
		if n.Type.Kind == nodetype.KindIntToFloat {
			convNode = n
		}
	}
	if convNode == nil {
		t.Fatal("expected an int-to-float converter node inserted between the mismatched const-int and exit")
	}

	var exitNode *node.Instance
	for _, n := range fn.Nodes() {
		if n.Type.Kind == nodetype.KindExit {
			exitNode = n
		}
	}
	ref := exitNode.InputDataConnection(0)
	if ref == nil || ref.Node != convNode {
		t.Fatalf("expected exit's data input to be fed by the converter node, got %+v", ref)
	}
}

func TestDecodeFailsOnTypeMismatchWithNoRegisteredConverter(t *testing.T) {
	ctx := chicontext.New(nil)
	doc := `{
		"dependencies": [], "has_c_support": false, "types": {},
		"graphs": [
			{"type":"function","name":"main","description":"",
			 "data_inputs":[],"data_outputs":[{"r":"lang:i1"}],
			 "exec_inputs":["in"],"exec_outputs":["out"],"local_variables":{},
			 "nodes": {
			   "00000000-0000-0000-0000-0000000000d1": {"type":"lang:entry","location":[0,0],"data":{}},
			   "00000000-0000-0000-0000-0000000000d2": {"type":"lang:const-int","location":[0,0],"data":{"value":5}},
			   "00000000-0000-0000-0000-0000000000d3": {"type":"lang:exit","location":[0,0],"data":{}}
			 },
			 "connections": [
			   {"type":"exec","input":["00000000-0000-0000-0000-0000000000d1",0],"output":["00000000-0000-0000-0000-0000000000d3",0]},
			   {"type":"data","input":["00000000-0000-0000-0000-0000000000d2",0],"output":["00000000-0000-0000-0000-0000000000d3",0]}
			 ]
			}
		]
	}`
	if _, err := Decode(ctx, "main", []byte(doc), nil, ""); err == nil {
		t.Fatal("expected an error: no registered converter from i32 to i1")
	}
}

