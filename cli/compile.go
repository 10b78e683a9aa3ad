package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCompileCmd creates the "compile" subcommand.
func NewCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <module-path>",
		Short: "Compile a module to linked, verified bitcode",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}

	cmd.Flags().String("format", "text", "Diagnostic output format: text | json")

	return cmd
}

// runCompile implements the compile pipeline: discover the workspace,
// load the module, and lower it (Workspace.Compile preferring a valid
// bitcode cache entry over a full recompile), printing Result
// diagnostics and writing the cache on success.
func runCompile(cmd *cobra.Command, args []string) error {
	modulePath := args[0]
	format, _ := cmd.Flags().GetString("format")

	ws, _, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	_, r, err := ws.Compile(modulePath)
	if err != nil {
		return exitError(exitRuntime, "compiling %s: %s", modulePath, err)
	}

	printResult(cmd, r, format)

	if !r.Success() {
		return exitError(exitValidation, "compilation of %s failed with %d error(s)", modulePath, len(r.Errors()))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "compiled %s\n", modulePath)
	return nil
}
