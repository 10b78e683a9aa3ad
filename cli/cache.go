package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the parent "cache" command and its stat/clear
// subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the workspace bitcode cache",
	}
	cmd.AddCommand(newCacheStatCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <module-path>",
		Short: "Report the cached bitcode path and source mtime recorded for a module",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheStat,
	}
}

func runCacheStat(cmd *cobra.Command, args []string) error {
	modulePath := args[0]

	ws, _, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	bcPath, mtime, ok := ws.StatCache(modulePath)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not cached\n", modulePath)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (source mtime %s)\n", modulePath, bcPath, mtime.Format(time.RFC3339))
	return nil
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <module-path>",
		Short: "Drop a module's cache entry and bitcode file, forcing a recompile from source",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheClear,
	}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	modulePath := args[0]

	ws, _, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.ClearCache(modulePath); err != nil {
		return exitError(exitRuntime, "clearing cache for %s: %s", modulePath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared cache for %s\n", modulePath)
	return nil
}
