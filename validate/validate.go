// Package validate implements FunctionValidator: the five ordered
// structural passes a function must clear before it can be lowered.
package validate

import (
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/node"
	"github.com/chigraph/chi/nodetype"
	"github.com/chigraph/chi/result"
)

// Function runs all five passes over fn in order and returns the
// accumulated Result. Passes after a structural failure still run --
// the caller decides whether to stop at the first unsuccessful Result
// (the function compiler should) -- each pass documents its own codes.
func Function(moduleName string, fn *gfunction.Function) *result.Result {
	r := result.New()
	scope := r.AddScopedContext(map[string]any{"function": fn.Name(), "module": moduleName})
	defer scope.Close()

	checkTwoWayConnectivity(r, fn)
	checkImpureReachability(r, fn)
	checkExecOutputCoverage(r, fn)
	checkDataInputCoverage(r, fn)
	checkEntryExitConsistency(r, fn, moduleName)

	return r
}

// checkTwoWayConnectivity verifies every stored connection is mirrored
// on its other endpoint.
func checkTwoWayConnectivity(r *result.Result, fn *gfunction.Function) {
	for _, n := range fn.Nodes() {
		for slot := range n.Type.ExecOutputs {
			ref := n.OutputExecConnection(slot)
			if ref == nil {
				continue
			}
			if !hasIncomingExec(ref.Node, ref.Slot, n, slot) {
				r.AddEntry("EUKN", "Data/Exec connection doesn't connect back", map[string]any{
					"node": n.ID.String(), "slot": slot, "kind": "exec-out",
				})
			}
		}
		for slot := range n.Type.DataInputs {
			ref := n.InputDataConnection(slot)
			if ref == nil {
				continue
			}
			if !hasOutgoingData(ref.Node, ref.Slot, n, slot) {
				r.AddEntry("EUKN", "Data/Exec connection doesn't connect back", map[string]any{
					"node": n.ID.String(), "slot": slot, "kind": "data-in",
				})
			}
		}
	}
}

func hasIncomingExec(target *node.Instance, targetSlot int, from *node.Instance, fromSlot int) bool {
	for _, ref := range target.InputExecConnections(targetSlot) {
		if ref.Node == from && ref.Slot == fromSlot {
			return true
		}
	}
	return false
}

func hasOutgoingData(target *node.Instance, targetSlot int, to *node.Instance, toSlot int) bool {
	for _, ref := range target.OutputDataConnections(targetSlot) {
		if ref.Node == to && ref.Slot == toSlot {
			return true
		}
	}
	return false
}

// visitKey identifies one (node, exec-input-slot) arrival during the
// impure-reachability walk.
type visitKey struct {
	id   string
	slot int
}

// checkImpureReachability walks exec edges depth-first from entry; for
// every impure node reached via exec-input slot e, every data input
// must be either pure (recomputed at this call site) or a node already
// visited (its impure side already executed on this path).
func checkImpureReachability(r *result.Result, fn *gfunction.Function) {
	visited := make(map[visitKey]bool)
	entry := fn.Entry()
	if entry == nil {
		return
	}
	for slot := range entry.Type.ExecOutputs {
		walkExec(r, fn, entry, slot, visited)
	}
}

func walkExec(r *result.Result, fn *gfunction.Function, n *node.Instance, execInSlot int, visited map[visitKey]bool) {
	key := visitKey{id: n.ID.String(), slot: execInSlot}
	if visited[key] {
		return
	}
	visited[key] = true

	if !n.Type.Pure {
		for slot, in := range n.Type.DataInputs {
			_ = in
			ref := n.InputDataConnection(slot)
			if ref == nil {
				continue // exactly-one-connection is checked elsewhere by data-input-coverage logic
			}
			if ref.Node.Type.Pure {
				continue // legal: recomputed at this call site
			}
			if !nodeAlreadyVisited(visited, ref.Node) {
				r.AddEntry("EUKN", "Node that accepts data from another node is called first", map[string]any{
					"node": n.ID.String(), "predecessor": ref.Node.ID.String(), "slot": slot,
				})
			}
		}
	}

	for slot := range n.Type.ExecOutputs {
		out := n.OutputExecConnection(slot)
		if out == nil {
			continue
		}
		walkExec(r, fn, out.Node, out.Slot, visited)
	}
}

func nodeAlreadyVisited(visited map[visitKey]bool, n *node.Instance) bool {
	for key := range visited {
		if key.id == n.ID.String() {
			return true
		}
	}
	return false
}

// checkExecOutputCoverage requires every exec-output slot of every node
// to be connected.
func checkExecOutputCoverage(r *result.Result, fn *gfunction.Function) {
	for _, n := range fn.Nodes() {
		for slot := range n.Type.ExecOutputs {
			if n.OutputExecConnection(slot) == nil {
				r.AddEntry("EUKN", "Node is missing an output exec connection", map[string]any{
					"node": n.ID.String(), "slot": slot,
				})
			}
		}
	}
}

// checkDataInputCoverage enforces the §3 invariant that every data
// input is connected exactly once (connection primitives only allow at
// most one occupant per slot, so "exactly once" reduces to "not nil").
func checkDataInputCoverage(r *result.Result, fn *gfunction.Function) {
	for _, n := range fn.Nodes() {
		for slot := range n.Type.DataInputs {
			if n.InputDataConnection(slot) == nil {
				r.AddEntry("EUKN", "Node is missing a required data connection", map[string]any{
					"node": n.ID.String(), "slot": slot,
				})
			}
		}
	}
}

// checkEntryExitConsistency enforces the entry/exit type-mirroring
// invariant and, for a module named "main", the main:main signature.
func checkEntryExitConsistency(r *result.Result, fn *gfunction.Function, moduleName string) {
	entry := fn.Entry()
	if entry == nil {
		r.AddEntry("EUKN", "function has no entry node", nil)
		return
	}
	if len(entry.Type.DataOutputs) != len(fn.DataInputs()) || len(entry.Type.ExecOutputs) != len(fn.ExecInputs()) {
		r.AddEntry("EUKN", "entry node does not mirror the function's inputs", map[string]any{"function": fn.Name()})
	}

	for _, n := range fn.Nodes() {
		if n.Type.Kind != nodetype.KindExit {
			continue
		}
		if len(n.Type.DataInputs) != len(fn.DataOutputs()) || len(n.Type.ExecInputs) != len(fn.ExecOutputs()) {
			r.AddEntry("EUKN", "exit node does not mirror the function's outputs", map[string]any{
				"function": fn.Name(), "node": n.ID.String(),
			})
		}
	}

	if moduleName == "main" && fn.Name() == "main" {
		if len(fn.ExecInputs()) != 1 || len(fn.ExecOutputs()) != 1 || len(fn.DataInputs()) != 0 {
			r.AddEntry("EUKN", "main:main must have exactly one exec input, one exec output, and no data inputs", nil)
		}
		if len(fn.DataOutputs()) != 1 || fn.DataOutputs()[0].Type.Qualified() != "lang:i32" {
			r.AddEntry("EUKN", "main:main must have exactly one data output of type lang:i32", nil)
		}
	}
}
