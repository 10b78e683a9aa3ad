package validate

import (
	"testing"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

type fakeModule struct{}

func (fakeModule) Touch() {}

func i32() *datatype.DataType { return datatype.New(nil, "i32", ir.I32, nil) }

// buildAddOneFunction builds: entry(a) --exec--> exit(r), where the
// exit's data input is fed by an add(a, const-1) pure expression, fully
// wired and exec-covered.
func buildAddOneFunction() *gfunction.Function {
	f := gfunction.New(fakeModule{}, "addOne",
		[]datatype.NamedDataType{{Name: "a", Type: i32()}},
		[]datatype.NamedDataType{{Name: "r", Type: i32()}},
		[]string{"in"}, []string{"out"})

	exitType := f.NewExitNode()
	exitNode, _ := f.AddNode(exitType, 100, 0)

	one := nodetype.NewConstInt(i32(), 1)
	oneNode, _ := f.AddNode(one, 0, 50)

	add := nodetype.NewArithmeticOrCompare(ir.OpAdd, i32(), nil)
	addNode, _ := f.AddNode(add, 50, 0)

	entry := f.Entry()
	_ = node.ConnectData(entry, 0, addNode, 0)
	_ = node.ConnectData(oneNode, 0, addNode, 1)
	_ = node.ConnectData(addNode, 0, exitNode, 0)
	_ = node.ConnectExec(entry, 0, exitNode, 0)

	return f
}

func TestWellFormedFunctionProducesNoErrors(t *testing.T) {
	f := buildAddOneFunction()
	r := Function("widgets", f)
	if !r.Success() {
		t.Fatalf("expected a successful Result, got errors: %v", r.Errors())
	}
}

func TestMissingExecOutputConnectionIsReported(t *testing.T) {
	f := gfunction.New(fakeModule{}, "broken", nil, nil, []string{"in"}, []string{"out"})
	r := Function("widgets", f)
	if r.Success() {
		t.Fatal("expected an unsuccessful Result for an unconnected entry exec-output")
	}
	found := false
	for _, e := range r.Errors() {
		if e.Overview == "Node is missing an output exec connection" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the missing-exec-output diagnostic")
	}
}

func TestImpurePredecessorNotYetExecutedIsReported(t *testing.T) {
	f := gfunction.New(fakeModule{}, "f",
		[]datatype.NamedDataType{{Name: "a", Type: i32()}},
		[]datatype.NamedDataType{{Name: "r", Type: i32()}},
		[]string{"in"}, []string{"out"})

	// An impure node standing in for "side-effecting" (set-local)
	// feeding another impure node's data input directly, without first
	// executing on this exec path: validator must flag this.
	impureA := &nodetype.NodeType{
		Name: "impureA", ExecInputs: []string{"in"}, ExecOutputs: []string{"out"},
		DataOutputs: []datatype.NamedDataType{{Name: "v", Type: i32()}},
	}
	impureB := &nodetype.NodeType{
		Name: "impureB", ExecInputs: []string{"in"}, ExecOutputs: []string{"out"},
		DataInputs: []datatype.NamedDataType{{Name: "v", Type: i32()}},
	}
	exitType := f.NewExitNode()
	exitNode, _ := f.AddNode(exitType, 0, 0)
	nodeA, _ := f.AddNode(impureA, 0, 0)
	nodeB, _ := f.AddNode(impureB, 0, 0)

	entry := f.Entry()
	_ = node.ConnectExec(entry, 0, nodeB, 0) // B reached directly, A never executes first
	_ = node.ConnectExec(nodeB, 0, exitNode, 0)
	_ = node.ConnectData(nodeA, 0, nodeB, 0) // but B's data input comes from impure A
	_ = node.ConnectData(entry, 0, exitNode, 0)

	r := Function("widgets", f)
	if r.Success() {
		t.Fatal("expected an unsuccessful Result when an impure predecessor hasn't executed yet")
	}
	found := false
	for _, e := range r.Errors() {
		if e.Overview == "Node that accepts data from another node is called first" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the impure-reachability diagnostic")
	}
}

func TestMainMainSignatureIsEnforced(t *testing.T) {
	f := gfunction.New(fakeModule{}, "main",
		[]datatype.NamedDataType{{Name: "a", Type: i32()}}, // main must take no data inputs
		nil, []string{"in"}, []string{"out"})
	r := Function("main", f)
	if r.Success() {
		t.Fatal("expected an unsuccessful Result for a malformed main:main signature")
	}
}
