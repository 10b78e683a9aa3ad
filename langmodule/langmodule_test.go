package langmodule

import (
	"testing"

	"github.com/chigraph/chi/ir"
)

func TestPrimitiveTypesRenderQualifiedUnderLang(t *testing.T) {
	m := New()
	if got, want := m.I32.Qualified(), "lang:i32"; got != want {
		t.Fatalf("Qualified() = %q, want %q", got, want)
	}
}

func TestArithmeticReturnsSharedSingleton(t *testing.T) {
	m := New()
	a, err := m.Arithmetic("i32", ir.OpAdd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.Arithmetic("i32", ir.OpAdd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected repeated lookups to return the identical NodeType singleton")
	}
	if !a.Pure {
		t.Fatal("arithmetic nodes must be pure")
	}
}

func TestCompareRejectsUnknownType(t *testing.T) {
	m := New()
	if _, err := m.Compare("i8*", ir.OpEQ); err == nil {
		t.Fatal("expected an error for a type outside the closed arithmetic/compare set")
	}
}

func TestLiteralsAreNotShared(t *testing.T) {
	m := New()
	a := m.NewConstInt(1)
	b := m.NewConstInt(1)
	if a == b {
		t.Fatal("expected distinct literal NodeType instances even with equal values")
	}
}

func TestConvertNodesAreConverters(t *testing.T) {
	m := New()
	if !m.IntToFloat.Converter || !m.FloatToInt.Converter {
		t.Fatal("expected both convert node types to be marked as converters")
	}
}
