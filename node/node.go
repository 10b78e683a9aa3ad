// Package node implements Chigraph's NodeInstance: a placed node within
// a GraphFunction, its connection slots, and the connect/disconnect
// primitives that keep both endpoints of every edge mirrored.
package node

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chigraph/chi/nodetype"
)

// Sentinel errors, matching the project convention of wrapping a
// specific sentinel with fmt.Errorf("%w: ...") for caller inspection
// via errors.Is.
var (
	ErrSlotOutOfRange = errors.New("node: slot index out of range")
	ErrTypeMismatch   = errors.New("node: data types do not match")
	ErrSlotOccupied   = errors.New("node: single-occupancy slot already connected")
)

// Owner is the minimal view of an enclosing GraphFunction a NodeInstance
// needs: enough to bump the module's edit clock on every mutation.
type Owner interface {
	Touch()
}

// ExecRef is one endpoint of an exec edge.
type ExecRef struct {
	Node *Instance
	Slot int
}

// DataRef is one endpoint of a data edge.
type DataRef struct {
	Node *Instance
	Slot int
}

// Instance is a placed node: identity, editor position, its NodeType,
// and connection slots. Position is preserved across load/save but
// never consulted by the compiler.
type Instance struct {
	ID   uuid.UUID
	X, Y float64

	Type  *nodetype.NodeType
	Owner Owner

	inputExecConnections  [][]ExecRef // multiple incoming exec edges allowed per slot
	outputExecConnections []*ExecRef  // at most one outgoing exec edge per slot
	inputDataConnections  []*DataRef  // exactly one required, enforced by validation not construction
	outputDataConnections [][]DataRef // multiple downstream data consumers allowed
}

// New places a fresh, unconnected Instance of nt within owner.
func New(nt *nodetype.NodeType, owner Owner, x, y float64) *Instance {
	return &Instance{
		ID:                    uuid.New(),
		X:                     x,
		Y:                     y,
		Type:                  nt,
		Owner:                 owner,
		inputExecConnections:  make([][]ExecRef, len(nt.ExecInputs)),
		outputExecConnections: make([]*ExecRef, len(nt.ExecOutputs)),
		inputDataConnections:  make([]*DataRef, len(nt.DataInputs)),
		outputDataConnections: make([][]DataRef, len(nt.DataOutputs)),
	}
}

// InputExecConnections returns the (possibly empty) list of upstream
// exec refs feeding input slot i.
func (n *Instance) InputExecConnections(slot int) []ExecRef {
	if slot < 0 || slot >= len(n.inputExecConnections) {
		return nil
	}
	return n.inputExecConnections[slot]
}

// OutputExecConnection returns the downstream exec ref for output slot
// i, or nil if unconnected.
func (n *Instance) OutputExecConnection(slot int) *ExecRef {
	if slot < 0 || slot >= len(n.outputExecConnections) {
		return nil
	}
	return n.outputExecConnections[slot]
}

// InputDataConnection returns the upstream data ref for input slot i, or
// nil if unconnected.
func (n *Instance) InputDataConnection(slot int) *DataRef {
	if slot < 0 || slot >= len(n.inputDataConnections) {
		return nil
	}
	return n.inputDataConnections[slot]
}

// OutputDataConnections returns the (possibly empty) list of downstream
// data refs fed by output slot i.
func (n *Instance) OutputDataConnections(slot int) []DataRef {
	if slot < 0 || slot >= len(n.outputDataConnections) {
		return nil
	}
	return n.outputDataConnections[slot]
}

func touch(owners ...Owner) {
	for _, o := range owners {
		if o != nil {
			o.Touch()
		}
	}
}

// ConnectData wires src's data-output srcOut to dst's data-input dstIn,
// disconnecting any prior occupant of dst's single-occupancy input slot
// first. Out-of-range slots on either end return ErrSlotOutOfRange; type
// match is exact by qualified name (mismatches are the caller's -- e.g.
// Context's -- responsibility to bridge with a converter, per §4.8).
func ConnectData(src *Instance, srcOut int, dst *Instance, dstIn int) error {
	if srcOut < 0 || srcOut >= len(src.Type.DataOutputs) {
		return fmt.Errorf("%w: source output slot %d", ErrSlotOutOfRange, srcOut)
	}
	if dstIn < 0 || dstIn >= len(dst.Type.DataInputs) {
		return fmt.Errorf("%w: destination input slot %d", ErrSlotOutOfRange, dstIn)
	}
	srcType := src.Type.DataOutputs[srcOut].Type
	dstType := dst.Type.DataInputs[dstIn].Type
	if !srcType.Equal(dstType) {
		return fmt.Errorf("%w: %s feeds %s", ErrTypeMismatch, srcType.Qualified(), dstType.Qualified())
	}
	if existing := dst.inputDataConnections[dstIn]; existing != nil {
		if err := DisconnectData(dst, dstIn); err != nil {
			return err
		}
	}
	dst.inputDataConnections[dstIn] = &DataRef{Node: src, Slot: srcOut}
	src.outputDataConnections[srcOut] = append(src.outputDataConnections[srcOut], DataRef{Node: dst, Slot: dstIn})
	touch(src.Owner, dst.Owner)
	return nil
}

// DisconnectData removes the data connection feeding dst's input slot
// dstIn, if any, mirroring the removal on the upstream output slot.
func DisconnectData(dst *Instance, dstIn int) error {
	if dstIn < 0 || dstIn >= len(dst.inputDataConnections) {
		return fmt.Errorf("%w: destination input slot %d", ErrSlotOutOfRange, dstIn)
	}
	ref := dst.inputDataConnections[dstIn]
	if ref == nil {
		return nil
	}
	src := ref.Node
	consumers := src.outputDataConnections[ref.Slot]
	for i, c := range consumers {
		if c.Node == dst && c.Slot == dstIn {
			src.outputDataConnections[ref.Slot] = append(consumers[:i], consumers[i+1:]...)
			break
		}
	}
	dst.inputDataConnections[dstIn] = nil
	touch(src.Owner, dst.Owner)
	return nil
}

// ConnectExec wires src's exec-output srcOut to dst's exec-input dstIn.
// src's output slot is single-occupancy (disconnected first if already
// wired); dst's input slot accepts multiple incoming edges.
func ConnectExec(src *Instance, srcOut int, dst *Instance, dstIn int) error {
	if srcOut < 0 || srcOut >= len(src.Type.ExecOutputs) {
		return fmt.Errorf("%w: source exec output slot %d", ErrSlotOutOfRange, srcOut)
	}
	if dstIn < 0 || dstIn >= len(dst.Type.ExecInputs) {
		return fmt.Errorf("%w: destination exec input slot %d", ErrSlotOutOfRange, dstIn)
	}
	if src.outputExecConnections[srcOut] != nil {
		if err := DisconnectExecOutput(src, srcOut); err != nil {
			return err
		}
	}
	src.outputExecConnections[srcOut] = &ExecRef{Node: dst, Slot: dstIn}
	dst.inputExecConnections[dstIn] = append(dst.inputExecConnections[dstIn], ExecRef{Node: src, Slot: srcOut})
	touch(src.Owner, dst.Owner)
	return nil
}

// DisconnectExecOutput removes src's (at most one) outgoing exec edge on
// output slot srcOut, mirroring the removal on the downstream input
// slot's list.
func DisconnectExecOutput(src *Instance, srcOut int) error {
	if srcOut < 0 || srcOut >= len(src.outputExecConnections) {
		return fmt.Errorf("%w: source exec output slot %d", ErrSlotOutOfRange, srcOut)
	}
	ref := src.outputExecConnections[srcOut]
	if ref == nil {
		return nil
	}
	dst := ref.Node
	incoming := dst.inputExecConnections[ref.Slot]
	for i, c := range incoming {
		if c.Node == src && c.Slot == srcOut {
			dst.inputExecConnections[ref.Slot] = append(incoming[:i], incoming[i+1:]...)
			break
		}
	}
	src.outputExecConnections[srcOut] = nil
	touch(src.Owner, dst.Owner)
	return nil
}
