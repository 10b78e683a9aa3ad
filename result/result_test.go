package result_test

import (
	"testing"

	"github.com/chigraph/chi/result"
)

func TestNewResultIsSuccessful(t *testing.T) {
	r := result.New()
	if !r.Success() {
		t.Fatalf("empty result should be successful")
	}
}

func TestErrorEntryMarksUnsuccessful(t *testing.T) {
	r := result.New()
	r.AddEntry("E1", "something broke", nil)
	if r.Success() {
		t.Fatalf("result with E-entry should be unsuccessful")
	}
	if len(r.Errors()) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(r.Errors()))
	}
}

func TestWarningAndInfoDoNotFail(t *testing.T) {
	r := result.New()
	r.AddEntry("W1", "a warning", nil)
	r.AddEntry("I1", "an info", nil)
	if !r.Success() {
		t.Fatalf("warnings/info should not fail a result")
	}
	if len(r.Warnings()) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(r.Warnings()))
	}
}

func TestScopedContextMergedAndRemoved(t *testing.T) {
	r := result.New()
	func() {
		defer r.AddScopedContext(map[string]any{"module": "main"}).Close()
		r.AddEntry("EUKN", "inside scope", map[string]any{"extra": 1})
	}()
	r.AddEntry("EUKN", "outside scope", nil)

	entries := r.Entries()
	if entries[0].Data["module"] != "main" {
		t.Fatalf("expected scoped context merged into first entry, got %v", entries[0].Data)
	}
	if _, ok := entries[1].Data["module"]; ok {
		t.Fatalf("context should not leak past scope close, got %v", entries[1].Data)
	}
}

func TestAppendCrossAppliesContexts(t *testing.T) {
	a := result.New()
	defer a.AddScopedContext(map[string]any{"side": "a"}).Close()
	a.AddEntry("EUKN", "from a", nil)

	b := result.New()
	defer b.AddScopedContext(map[string]any{"side": "b"}).Close()
	b.AddEntry("EUKN", "from b", nil)

	a.Append(b)

	entries := a.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after append, got %d", len(entries))
	}
	if entries[0].Data["side"] != "b" {
		t.Fatalf("expected a's pre-existing entry to gain b's context, got %v", entries[0].Data)
	}
	if entries[1].Data["side"] != "a" {
		t.Fatalf("expected appended b entry to gain a's context, got %v", entries[1].Data)
	}
}

func TestSeverityClassification(t *testing.T) {
	r := result.New()
	r.AddEntry("E42", "err", nil)
	r.AddEntry("W3", "warn", nil)
	r.AddEntry("I9", "info", nil)
	r.AddEntry("EUKN", "unknown err", nil)

	if got := r.Entries()[0].Severity; got != result.SeverityError {
		t.Fatalf("expected error severity, got %v", got)
	}
	if got := r.Entries()[1].Severity; got != result.SeverityWarning {
		t.Fatalf("expected warning severity, got %v", got)
	}
	if got := r.Entries()[2].Severity; got != result.SeverityInfo {
		t.Fatalf("expected info severity, got %v", got)
	}
	if got := r.Entries()[3].Severity; got != result.SeverityError {
		t.Fatalf("expected EUKN to classify as error, got %v", got)
	}
}
