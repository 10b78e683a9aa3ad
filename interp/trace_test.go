package interp

import (
	"testing"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
)

func TestTracerReceivesOneSpanPerImpureStep(t *testing.T) {
	ctx, mod := newTestContext()
	lang := ctx.Lang()

	fn := gfunction.New(mod, "identity",
		[]datatype.NamedDataType{{Name: "a", Type: lang.I32}},
		[]datatype.NamedDataType{{Name: "a", Type: lang.I32}},
		[]string{"in"}, []string{"out"})
	mustAddFn(t, mod, fn)

	exitNode, err := fn.AddNode(fn.NewExitNode(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	mustConnectData(t, fn.Entry(), 0, exitNode, 0)
	mustConnectExec(t, fn.Entry(), 0, exitNode, 0)

	var spans []Span
	m := New(ctx, nil)
	m.SetTracer(func(s Span) { spans = append(spans, s) })

	if _, _, err := m.Call(fn, "in", []any{int64(1)}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2 (entry, exit)", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].SpanID.Compare(spans[i-1].SpanID) <= 0 {
			t.Fatalf("span IDs not monotonically increasing: %v then %v", spans[i-1].SpanID, spans[i].SpanID)
		}
	}
}
