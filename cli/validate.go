package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chigraph/chi/result"
	"github.com/chigraph/chi/validate"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <module-path>",
		Short: "Validate every function in a module without compiling it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	modulePath := args[0]
	format, _ := cmd.Flags().GetString("format")

	ws, ctx, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	mod, err := ctx.Load(modulePath)
	if err != nil {
		return exitError(exitRuntime, "loading %s: %s", modulePath, err)
	}

	r := result.New()
	for _, fn := range mod.Functions() {
		r.Append(validate.Function(mod.Path(), fn))
	}

	printResult(cmd, r, format)

	if !r.Success() {
		return exitError(exitValidation, "validation of %s failed with %d error(s)", modulePath, len(r.Errors()))
	}
	return nil
}

// printResult writes a Result's entries to cmd's error stream in the
// requested format. Diagnostics go to stderr regardless of command so a
// caller piping a command's stdout (e.g. run's printed outputs) never
// mixes diagnostics into it.
func printResult(cmd *cobra.Command, r *result.Result, format string) {
	w := cmd.ErrOrStderr()
	if format == "json" {
		printDiagnosticsJSON(w, r.Entries())
		return
	}
	printDiagnosticsText(w, r.Entries())
}

// printDiagnosticsText writes entries as formatted text lines followed
// by a summary. Used by validate, compile, and run.
func printDiagnosticsText(w io.Writer, entries []result.Entry) {
	for _, e := range entries {
		sev := strings.ToUpper(e.Severity.String())
		fmt.Fprintf(w, "%s [%s]: %s %v\n", sev, e.Code, e.Overview, e.Data)
	}

	var errs, warns int
	for _, e := range entries {
		switch e.Severity {
		case result.SeverityError:
			errs++
		case result.SeverityWarning:
			warns++
		}
	}

	switch {
	case errs == 0 && warns == 0:
		fmt.Fprintln(w, "Valid!")
	case errs == 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", warns, pluralize("warning", warns))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			errs, pluralize("error", errs),
			warns, pluralize("warning", warns))
	}
}

func printDiagnosticsJSON(w io.Writer, entries []result.Entry) {
	// Output an empty array rather than null when there are no entries.
	if entries == nil {
		entries = []result.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(entries)
}

// pluralize returns the singular or plural form of a word based on count.
func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
