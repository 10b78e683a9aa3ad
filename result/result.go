// Package result implements Chigraph's diagnostic accumulator.
//
// A Result collects entries produced while loading, validating, or
// compiling a module. Each entry carries a code (classifying it as an
// error, warning, or info entry by its leading letter), a short overview
// that should not vary between instances of the same condition, and a
// free-form data payload for the specifics of this particular occurrence.
// Scoped context values are merged into every entry added while the
// context is active, and are automatically removed when the scope that
// added them ends.
package result

import (
	"fmt"
	"log/slog"
)

// Severity classifies an entry's Code by its leading character.
type Severity int

const (
	// SeverityInfo entries never affect success.
	SeverityInfo Severity = iota
	// SeverityWarning entries never affect success.
	SeverityWarning
	// SeverityError entries make the owning Result unsuccessful.
	SeverityError
)

// String renders the severity for logging.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// severityOf classifies a code by its leading byte, per spec: E = error,
// W = warning, I = info. Anything else is treated as an error to be safe.
func severityOf(code string) Severity {
	if len(code) == 0 {
		return SeverityError
	}
	switch code[0] {
	case 'E':
		return SeverityError
	case 'W':
		return SeverityWarning
	case 'I':
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Entry is a single diagnostic: a code, a stable overview, and merged
// context plus instance-specific data.
type Entry struct {
	Code     string
	Overview string
	Data     map[string]any
	Severity Severity
}

// Attrs renders the entry as slog attributes, for ambient structured
// logging wherever a Result is produced.
func (e Entry) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.Data)+2)
	attrs = append(attrs, slog.String("code", e.Code), slog.String("overview", e.Overview))
	for k, v := range e.Data {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s %v", e.Code, e.Overview, e.Data)
}

// Result accumulates diagnostics for one logical operation (loading a
// module, validating or compiling a function, and so on). The zero value
// is a successful, empty Result.
type Result struct {
	entries  []Entry
	contexts []scopedContext
	nextCtx  int
}

type scopedContext struct {
	id   int
	data map[string]any
}

// New returns an empty, successful Result.
func New() *Result {
	return &Result{}
}

// AddEntry appends a diagnostic entry, merging in any active scoped
// context data. The severity is derived from the code's leading
// character (E/W/I); see severityOf.
func (r *Result) AddEntry(code, overview string, data map[string]any) {
	merged := make(map[string]any, len(data))
	for _, ctx := range r.contexts {
		for k, v := range ctx.data {
			merged[k] = v
		}
	}
	for k, v := range data {
		merged[k] = v
	}
	r.entries = append(r.entries, Entry{
		Code:     code,
		Overview: overview,
		Data:     merged,
		Severity: severityOf(code),
	})
}

// AddContext pushes context data that will be merged into every entry
// added (by this Result, or appended into it) until RemoveContext is
// called with the returned ID.
func (r *Result) AddContext(data map[string]any) int {
	r.nextCtx++
	id := r.nextCtx
	r.contexts = append(r.contexts, scopedContext{id: id, data: data})
	return id
}

// RemoveContext pops a context previously added by AddContext.
func (r *Result) RemoveContext(id int) {
	for i, ctx := range r.contexts {
		if ctx.id == id {
			r.contexts = append(r.contexts[:i], r.contexts[i+1:]...)
			return
		}
	}
}

// ScopedContext is a guard object returned by AddScopedContext; call
// Close (typically via defer) to remove the context on every exit path.
type ScopedContext struct {
	result *Result
	id     int
}

// Close removes the scoped context from its owning Result.
func (s ScopedContext) Close() {
	s.result.RemoveContext(s.id)
}

// AddScopedContext pushes context data and returns a guard that removes
// it when closed. Usage: `defer res.AddScopedContext(data).Close()`.
func (r *Result) AddScopedContext(data map[string]any) ScopedContext {
	return ScopedContext{result: r, id: r.AddContext(data)}
}

// Entries returns all accumulated entries in insertion order.
func (r *Result) Entries() []Entry {
	return r.entries
}

// Success reports whether no entry has SeverityError.
func (r *Result) Success() bool {
	for _, e := range r.entries {
		if e.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the error-severity entries.
func (r *Result) Errors() []Entry {
	return r.filter(SeverityError)
}

// Warnings returns only the warning-severity entries.
func (r *Result) Warnings() []Entry {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(sev Severity) []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Severity == sev {
			out = append(out, e)
		}
	}
	return out
}

// Append merges other into r: each side's active context data is
// cross-applied to the other side's entries before they are concatenated,
// matching the teacher semantics of operator+= on Result. A cross-applied
// context value replaces any value the entry already holds for that key.
func (r *Result) Append(other *Result) {
	if other == nil {
		return
	}

	otherCtxData := mergeContexts(other.contexts)
	selfCtxData := mergeContexts(r.contexts)

	for _, e := range r.entries {
		for k, v := range otherCtxData {
			e.Data[k] = v
		}
	}

	for _, e := range other.entries {
		merged := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			merged[k] = v
		}
		for k, v := range selfCtxData {
			merged[k] = v
		}
		e.Data = merged
		r.entries = append(r.entries, e)
	}
}

func mergeContexts(ctxs []scopedContext) map[string]any {
	out := make(map[string]any)
	for _, ctx := range ctxs {
		for k, v := range ctx.data {
			out[k] = v
		}
	}
	return out
}

// Log emits every entry through logger at the level matching its
// severity. Callers that produce a Result from a long-lived operation
// typically call this once the operation completes; logger may be nil,
// in which case slog.Default() is used.
func (r *Result) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range r.entries {
		attrs := e.Attrs()
		args := make([]any, 0, len(attrs))
		for _, a := range attrs {
			args = append(args, a)
		}
		switch e.Severity {
		case SeverityError:
			logger.Error(e.Overview, args...)
		case SeverityWarning:
			logger.Warn(e.Overview, args...)
		default:
			logger.Info(e.Overview, args...)
		}
	}
}
