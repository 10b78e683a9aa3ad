package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chigraph/chi/datatype"
	"github.com/chigraph/chi/gfunction"
	"github.com/chigraph/chi/interp"
	"github.com/chigraph/chi/validate"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <module-path> <function> [args...]",
		Short: "Interpret a function's graph directly, without compiling to bitcode",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRun,
	}

	cmd.Flags().String("exec-input", "", "Name of the exec input to enter through (default: the function's only exec input)")
	cmd.Flags().Bool("trace", false, "Print one line per impure node stepped through during the run")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	modulePath, fnName, rawArgs := args[0], args[1], args[2:]
	execInputFlag, _ := cmd.Flags().GetString("exec-input")

	ws, ctx, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	mod, err := ctx.Load(modulePath)
	if err != nil {
		return exitError(exitRuntime, "loading %s: %s", modulePath, err)
	}
	fn := mod.Function(fnName)
	if fn == nil {
		return exitError(exitRuntime, "module %s has no function %q", modulePath, fnName)
	}

	r := validate.Function(mod.Path(), fn)
	if !r.Success() {
		printResult(cmd, r, "text")
		return exitError(exitValidation, "%s:%s failed validation with %d error(s)", modulePath, fnName, len(r.Errors()))
	}

	execInput := execInputFlag
	if execInput == "" {
		ins := fn.ExecInputs()
		if len(ins) != 1 {
			return exitError(exitInputParse, "%s:%s has %d exec inputs; pass --exec-input to choose one", modulePath, fnName, len(ins))
		}
		execInput = ins[0]
	}

	inputArgs, err := parseArgs(fn.DataInputs(), rawArgs)
	if err != nil {
		return exitError(exitInputParse, "%s", err)
	}

	m := interp.New(ctx, nil)
	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		stderr := cmd.ErrOrStderr()
		m.SetTracer(func(s interp.Span) {
			fmt.Fprintf(stderr, "trace: %s node=%s kind=%v exec-in=%d\n", s.SpanID, s.NodeID, s.Kind, s.ExecIn)
		})
	}
	execOutput, outputs, err := m.Call(fn, execInput, inputArgs)
	if err != nil {
		return exitError(exitRuntime, "running %s:%s: %s", modulePath, fnName, err)
	}

	printOutputs(cmd.OutOrStdout(), fn, execOutput, outputs)

	// main:main's returned exec-output maps directly to the process
	// exit code, per the interpreted-run convention -- the function's
	// choice of exec output IS its exit status, the way the compiled
	// path lowers it to a process return value.
	if modulePath == "main" && fnName == "main" {
		idx := execOutputIndex(fn, execOutput)
		if idx != 0 {
			return exitError(idx, "%s:%s exited via %q", modulePath, fnName, execOutput)
		}
	}
	return nil
}

func execOutputIndex(fn *gfunction.Function, name string) int {
	for i, out := range fn.ExecOutputs() {
		if out == name {
			return i
		}
	}
	return 0
}

func printOutputs(w io.Writer, fn *gfunction.Function, execOutput string, outputs []any) {
	fmt.Fprintf(w, "-> %s\n", execOutput)
	for i, out := range fn.DataOutputs() {
		if i < len(outputs) {
			fmt.Fprintf(w, "  %s = %v\n", out.Name, outputs[i])
		}
	}
}

// parseArgs converts the CLI's raw positional arguments into the Go
// values interp.Machine.Call expects, one per declared data input, using
// each parameter's qualified type name to pick a parser.
func parseArgs(params []datatype.NamedDataType, raw []string) ([]any, error) {
	if len(raw) != len(params) {
		return nil, fmt.Errorf("expected %d argument(s), got %d", len(params), len(raw))
	}
	out := make([]any, len(raw))
	for i, p := range params {
		v, err := parseArg(p.Type.Qualified(), raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i+1, p.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(qualified, raw string) (any, error) {
	switch qualified {
	case "lang:i32":
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("not a valid i32: %w", err)
		}
		return v, nil
	case "lang:i1":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("not a valid i1 (bool): %w", err)
		}
		return v, nil
	case "lang:float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a valid float: %w", err)
		}
		return v, nil
	case "lang:i8*":
		return raw, nil
	default:
		return nil, fmt.Errorf("cannot parse a command-line argument of struct type %q; pass it through a wrapper function instead", qualified)
	}
}
