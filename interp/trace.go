package interp

import (
	"github.com/oklog/ulid/v2"

	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
)

// Span records one impure-node step of a run, in the order execution
// visited it. SpanID is a ULID rather than a uuid.UUID: run traces are
// read back in execution order, and ULIDs sort lexicographically by
// creation time the way node identity (uuid.UUID, assigned once at
// placement and never reordered) does not need to.
type Span struct {
	SpanID ulid.ULID
	NodeID string
	Kind   nodetype.Kind
	ExecIn int
}

// SetTracer installs fn to receive one Span per impure node the run
// loop steps through, in order. A nil tracer (the default) disables
// tracing with no overhead beyond a nil check.
func (m *Machine) SetTracer(fn func(Span)) {
	m.tracer = fn
}

func (m *Machine) emitSpan(n *node.Instance, execIn int) {
	if m.tracer == nil {
		return
	}
	m.tracer(Span{SpanID: ulid.Make(), NodeID: n.ID.String(), Kind: n.Type.Kind, ExecIn: execIn})
}
