package chijson

import (
	"fmt"
	"strings"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/gstruct"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/langmodule"
	"github.com/chigraph/chi/nodetype"
)

// Resolver is the dependency-loading, cross-module lookup view Decode
// needs. *chicontext.Context satisfies this; Decode depends on it only
// through this interface so chijson never imports chicontext (which
// would otherwise need to import chijson back, to decode a Provider's
// module files -- see workspace.Workspace).
type Resolver interface {
	Backend() *ir.Context
	Lang() *langmodule.Module
	ResolveType(qualified string) (*datatype.DataType, error)
	ResolveStruct(qualified string) (*gstruct.Struct, error)
	ResolveFunction(qualified string) (*gfunction.Function, error)
	Converter(from, to *datatype.DataType) (*nodetype.NodeType, bool)
}

// splitQualified splits a "module:name" reference on its first colon.
func splitQualified(qualified string) (module, name string, ok bool) {
	return strings.Cut(qualified, ":")
}

// moduleResolver wraps a Resolver, preferring structs declared earlier
// in the very .chimod file currently being decoded over a round trip
// through the outer Resolver -- the module being built isn't registered
// there yet, so a self-referencing field ("main:Pair" while decoding
// module "main") would otherwise fail to resolve.
type moduleResolver struct {
	Resolver
	modulePath string
	structs    map[string]*gstruct.Struct
	functions  map[string]*gfunction.Function
}

func (r *moduleResolver) ResolveStruct(qualified string) (*gstruct.Struct, error) {
	modPath, name, ok := splitQualified(qualified)
	if ok && modPath == r.modulePath {
		if st, found := r.structs[name]; found {
			return st, nil
		}
		return nil, fmt.Errorf("chijson: %q: no struct named %q declared in this module", qualified, name)
	}
	return r.Resolver.ResolveStruct(qualified)
}

func (r *moduleResolver) ResolveType(qualified string) (*datatype.DataType, error) {
	if dt := r.Lang().ByName(qualified); dt != nil {
		return dt, nil
	}
	st, err := r.ResolveStruct(qualified)
	if err != nil {
		return nil, err
	}
	return st.DataType(), nil
}

func (r *moduleResolver) ResolveFunction(qualified string) (*gfunction.Function, error) {
	modPath, name, ok := splitQualified(qualified)
	if ok && modPath == r.modulePath {
		if fn, found := r.functions[name]; found {
			return fn, nil
		}
		return nil, fmt.Errorf("chijson: %q: no function named %q declared in this module", qualified, name)
	}
	return r.Resolver.ResolveFunction(qualified)
}
