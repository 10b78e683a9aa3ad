package ccall

import (
	"context"
	"fmt"
	"sync"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/nodetype"
)

// NewCCallNode builds a c-call NodeType invoking the C function named
// function out of source. Per §4.7, source is compiled exactly once
// (cached on this NodeType instance via the once/cached closure
// variables below, not stored as a NodeType field -- only the compiled
// result is cached, never the Compiler itself); every subsequent
// codegen clones the cached module (ir.Module.Encode/Decode doubling as
// the deep-copy primitive, since nothing in this from-scratch IR
// addresses values by pointer identity -- see ir/codec.go) and
// link-merges the clone into the function's enclosing backend module. A
// c-call node has no exec ports: a plain C function has no notion of a
// returned exec-output selector, so it is modeled pure like
// _make_/_break_/_get_ rather than threading a synthetic selector
// through it.
func NewCCallNode(c *Compiler, owningModule, function, source string, extraFlags []string, dataInputs []datatype.NamedDataType, dataOutput *datatype.NamedDataType) *nodetype.NodeType {
	nt := &nodetype.NodeType{
		ModulePath: owningModule, Name: function, Kind: nodetype.KindCCall, Pure: true,
		DataInputs:  dataInputs,
		CSource:     source,
		CFunction:   function,
		CExtraFlags: extraFlags,
	}
	if dataOutput != nil {
		nt.DataOutputs = []datatype.NamedDataType{*dataOutput}
	}

	var once sync.Once
	var cached *ir.Module
	var compileErr error

	nt.Codegen = func(nt *nodetype.NodeType, ctx nodetype.CodegenContext) error {
		once.Do(func() {
			cached, compileErr = c.compile(context.Background(), "", source, extraFlags)
		})
		if compileErr != nil {
			return compileErr
		}

		data, err := cached.Encode()
		if err != nil {
			return fmt.Errorf("ccall: cloning compiled module for %q: %w", function, err)
		}
		clone, err := ir.Decode(c.IRContext, data)
		if err != nil {
			return fmt.Errorf("ccall: cloning compiled module for %q: %w", function, err)
		}

		// overrideOnConflict: true -- a second c-call node codegen call
		// compiling the same source re-links the same function name; that
		// is a harmless re-link; a conflict instead only matters against
		// user graph-function names, in gmodule's own dependency linking.
		target := ctx.Module()
		if err := target.Link(clone, true); err != nil {
			return fmt.Errorf("ccall: linking compiled C for %q: %w", function, err)
		}
		callee := target.Function(function)
		if callee == nil {
			return fmt.Errorf("ccall: function %q not found after linking its compiled source", function)
		}

		args := make([]ir.Value, len(dataInputs))
		for i := range dataInputs {
			args[i] = ctx.Input(i)
		}
		result := ctx.Block().Call(ctx.FreshName("ccall."+function), callee, args)
		if dataOutput != nil {
			ctx.SetOutput(0, result)
		}
		return nil
	}
	return nt
}
