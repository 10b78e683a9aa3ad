package node

import (
	"errors"
	"testing"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/nodetype"
)

type fakeOwner struct{ touched int }

func (f *fakeOwner) Touch() { f.touched++ }

func i32() *datatype.DataType { return datatype.New(nil, "i32", ir.I32, nil) }

func oneOutNodeType() *nodetype.NodeType {
	return &nodetype.NodeType{
		Name:        "source",
		DataOutputs: []datatype.NamedDataType{{Name: "out", Type: i32()}},
		ExecOutputs: []string{"out"},
	}
}

func oneInNodeType() *nodetype.NodeType {
	return &nodetype.NodeType{
		Name:       "sink",
		DataInputs: []datatype.NamedDataType{{Name: "in", Type: i32()}},
		ExecInputs: []string{"in"},
	}
}

func TestConnectDataMirrorsBothEndpoints(t *testing.T) {
	owner := &fakeOwner{}
	src := New(oneOutNodeType(), owner, 0, 0)
	dst := New(oneInNodeType(), owner, 10, 0)

	if err := ConnectData(src, 0, dst, 0); err != nil {
		t.Fatalf("ConnectData failed: %v", err)
	}
	if ref := dst.InputDataConnection(0); ref == nil || ref.Node != src {
		t.Fatal("expected dst's input slot to reference src")
	}
	consumers := src.OutputDataConnections(0)
	if len(consumers) != 1 || consumers[0].Node != dst {
		t.Fatal("expected src's output slot to list dst as a consumer")
	}
	if owner.touched == 0 {
		t.Fatal("expected ConnectData to bump the owner's edit clock")
	}
}

func TestConnectDataRejectsTypeMismatch(t *testing.T) {
	owner := &fakeOwner{}
	src := New(oneOutNodeType(), owner, 0, 0)
	mismatched := &nodetype.NodeType{
		Name:       "sink",
		DataInputs: []datatype.NamedDataType{{Name: "in", Type: datatype.New(nil, "float", ir.Double, nil)}},
	}
	dst := New(mismatched, owner, 10, 0)

	err := ConnectData(src, 0, dst, 0)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestConnectDataReplacesPriorOccupant(t *testing.T) {
	owner := &fakeOwner{}
	src1 := New(oneOutNodeType(), owner, 0, 0)
	src2 := New(oneOutNodeType(), owner, 0, 10)
	dst := New(oneInNodeType(), owner, 10, 0)

	if err := ConnectData(src1, 0, dst, 0); err != nil {
		t.Fatalf("first ConnectData failed: %v", err)
	}
	if err := ConnectData(src2, 0, dst, 0); err != nil {
		t.Fatalf("second ConnectData failed: %v", err)
	}
	if ref := dst.InputDataConnection(0); ref == nil || ref.Node != src2 {
		t.Fatal("expected dst's input to now reference src2")
	}
	if len(src1.OutputDataConnections(0)) != 0 {
		t.Fatal("expected src1 to have been disconnected when replaced")
	}
}

func TestConnectDataRejectsOutOfRangeSlot(t *testing.T) {
	owner := &fakeOwner{}
	src := New(oneOutNodeType(), owner, 0, 0)
	dst := New(oneInNodeType(), owner, 10, 0)
	if err := ConnectData(src, 5, dst, 0); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
}

func TestConnectExecAllowsMultipleIncomingButSingleOutgoing(t *testing.T) {
	owner := &fakeOwner{}
	src1 := New(oneOutNodeType(), owner, 0, 0)
	src2 := New(oneOutNodeType(), owner, 0, 10)
	dst := New(oneInNodeType(), owner, 10, 0)

	if err := ConnectExec(src1, 0, dst, 0); err != nil {
		t.Fatalf("ConnectExec failed: %v", err)
	}
	if err := ConnectExec(src2, 0, dst, 0); err != nil {
		t.Fatalf("ConnectExec failed: %v", err)
	}
	if got := len(dst.InputExecConnections(0)); got != 2 {
		t.Fatalf("expected 2 incoming exec connections, got %d", got)
	}

	other := New(oneInNodeType(), owner, 20, 0)
	if err := ConnectExec(src1, 0, other, 0); err != nil {
		t.Fatalf("re-wiring src1's single exec output failed: %v", err)
	}
	if got := len(dst.InputExecConnections(0)); got != 1 {
		t.Fatalf("expected src1 to be removed from dst's incoming list, got %d entries", got)
	}
	if ref := other.InputExecConnections(0); len(ref) != 1 || ref[0].Node != src1 {
		t.Fatal("expected other to now receive src1's exec output")
	}
}

func TestDisconnectExecOutputIsIdempotentWhenAlreadyUnconnected(t *testing.T) {
	owner := &fakeOwner{}
	src := New(oneOutNodeType(), owner, 0, 0)
	if err := DisconnectExecOutput(src, 0); err != nil {
		t.Fatalf("expected no error disconnecting an already-unconnected slot, got %v", err)
	}
}
