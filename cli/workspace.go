package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chigraph/chi/ccall"
	"github.com/chigraph/chi/chicontext"
	"github.com/chigraph/chi/workspace"
)

// openWorkspace discovers the workspace root containing the current
// directory (or --workspace, if set) and opens its module provider and
// bitcode cache, wiring a clang-compatible C compiler per --clang. The
// caller is responsible for closing the returned Workspace.
func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, *chicontext.Context, error) {
	root, _ := cmd.Flags().GetString("workspace")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("determining working directory: %w", err)
		}
		root, err = workspace.Discover(wd)
		if err != nil {
			return nil, nil, exitError(exitNoWorkspace, "%s", err)
		}
	}

	clangPath, _ := cmd.Flags().GetString("clang")
	runner := ccall.NewExecRunner(clangPath)
	// IRContext is filled in once Open has built the backend this
	// workspace's modules are loaded against -- a compiler constructed
	// before that point would decode C translation units into the wrong
	// *ir.Context and their struct types would never intern with the
	// rest of the module.
	cCompiler := ccall.New(runner, nil)

	ws, ctx, err := workspace.Open(root, cCompiler)
	if err != nil {
		return nil, nil, exitError(exitRuntime, "opening workspace %q: %s", root, err)
	}
	cCompiler.IRContext = ctx.Backend()

	return ws, ctx, nil
}
