package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/chigraph/chi/workspace"
)

// newTestRoot creates a fresh cobra root command wired to all
// subcommands. Each test gets an isolated command tree to avoid shared
// state.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "chigraph",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("workspace", "", "")
	root.PersistentFlags().String("clang", "", "")
	root.AddCommand(NewCompileCmd())
	root.AddCommand(NewValidateCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewCacheCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures
// stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// mainChimodFixture declares main:main as an identity-ish constant
// function: entry -> const-int(42) -> exit, satisfying the main:main
// signature validate.Function enforces (no data inputs, one i32 data
// output, one exec input/output).
const mainChimodFixture = `{
  "dependencies": [],
  "has_c_support": false,
  "types": {},
  "graphs": [
    {
      "type": "function",
      "name": "main",
      "description": "",
      "data_inputs": [],
      "data_outputs": [ {"result": "i32"} ],
      "exec_inputs": ["in"],
      "exec_outputs": ["out"],
      "local_variables": {},
      "nodes": {
        "00000000-0000-0000-0000-000000000001": {"type": "lang:entry", "location": [0,0], "data": {}},
        "00000000-0000-0000-0000-000000000002": {"type": "lang:const-int", "location": [0,0], "data": {"value": 42}},
        "00000000-0000-0000-0000-000000000003": {"type": "lang:exit", "location": [0,0], "data": {}}
      },
      "connections": [
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000002", 0], "output": ["00000000-0000-0000-0000-000000000003", 0]},
        {"type": "exec", "input": ["00000000-0000-0000-0000-000000000001", 0], "output": ["00000000-0000-0000-0000-000000000003", 0]}
      ]
    }
  ]
}`

// newTestWorkspace lays out a minimal on-disk workspace at t.TempDir()
// containing one module, "main", built from mainChimodFixture, and
// returns its root.
func newTestWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, workspace.MarkerFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "main.chimod"), []byte(mainChimodFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestValidateCmdSucceedsOnAWellFormedModule(t *testing.T) {
	root := newTestWorkspace(t)
	_, errOut, err := executeCommand(newTestRoot(), "--workspace", root, "validate", "main")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(errOut, "Valid!") {
		t.Fatalf("expected a \"Valid!\" summary on stderr, got %q", errOut)
	}
}

func TestRunCmdInterpretsMainAndPrintsOutputs(t *testing.T) {
	root := newTestWorkspace(t)
	out, _, err := executeCommand(newTestRoot(), "--workspace", root, "run", "main", "main")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "-> out") {
		t.Fatalf("expected the exec output name in the printed trace, got %q", out)
	}
	if !strings.Contains(out, "result = 42") {
		t.Fatalf("expected result = 42 in the printed outputs, got %q", out)
	}
}

func TestRunCmdTracePrintsOneSpanPerImpureNode(t *testing.T) {
	root := newTestWorkspace(t)
	_, errOut, err := executeCommand(newTestRoot(), "--workspace", root, "run", "--trace", "main", "main")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(errOut), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 trace lines (entry, exit), got %d: %q", len(lines), errOut)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "trace: ") {
			t.Fatalf("expected every trace line to start with \"trace: \", got %q", l)
		}
	}
}

func TestRunCmdRejectsUnknownFunction(t *testing.T) {
	root := newTestWorkspace(t)
	_, _, err := executeCommand(newTestRoot(), "--workspace", root, "run", "main", "nope")
	if err == nil {
		t.Fatal("expected an error for an unknown function")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected an *ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != exitRuntime {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, exitRuntime)
	}
}

func TestCacheStatReportsNotCachedBeforeAnyCompile(t *testing.T) {
	root := newTestWorkspace(t)
	out, _, err := executeCommand(newTestRoot(), "--workspace", root, "cache", "stat", "main")
	if err != nil {
		t.Fatalf("cache stat: %v", err)
	}
	if !strings.Contains(out, "not cached") {
		t.Fatalf("expected \"not cached\", got %q", out)
	}
}

func TestCompileCmdWritesCacheThenCacheStatReportsIt(t *testing.T) {
	root := newTestWorkspace(t)
	rt := newTestRoot()
	if _, _, err := executeCommand(rt, "--workspace", root, "compile", "main"); err != nil {
		t.Fatalf("compile: %v", err)
	}

	out, _, err := executeCommand(newTestRoot(), "--workspace", root, "cache", "stat", "main")
	if err != nil {
		t.Fatalf("cache stat: %v", err)
	}
	if strings.Contains(out, "not cached") {
		t.Fatalf("expected the compile to have populated the cache, got %q", out)
	}

	if _, _, err := executeCommand(newTestRoot(), "--workspace", root, "cache", "clear", "main"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	out, _, err = executeCommand(newTestRoot(), "--workspace", root, "cache", "stat", "main")
	if err != nil {
		t.Fatalf("cache stat after clear: %v", err)
	}
	if !strings.Contains(out, "not cached") {
		t.Fatalf("expected \"not cached\" after clear, got %q", out)
	}
}
