// Package ccall implements C-interop node compilation (§4.7): compiling
// a node's embedded C source through an external clang-compatible
// subprocess and linking the result into a GraphModule's backend
// module. No Go LLVM/clang binding appears anywhere in the retrieved
// reference corpus, so the subprocess boundary is modeled the same way
// the teacher models its own external-process integrations (see
// tool/mcp's stdio transport): source goes out on stdin, the compiled
// result comes back on stdout, diagnostics on stderr, read concurrently
// so neither pipe can back up and deadlock the other.
package ccall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chigraph/chi/ir"
)

// ErrClangFailed is returned when the subprocess exits non-zero or its
// stdout cannot be decoded as a compiled module, per §4.7's
// "EUKN: Failed to Generate IR with clang".
var ErrClangFailed = errors.New("ccall: failed to generate IR with clang")

// Runner invokes the external C-to-IR subprocess once: args are the
// compiler flags, source is streamed to stdin, and the resulting
// bitcode-equivalent bytes arrive on stdout. Satisfied by execRunner in
// production; unit tests supply a fake, isolating them from an actual
// clang dependency per the testing note in SPEC_FULL.md §8.
type Runner interface {
	Run(ctx context.Context, args []string, source string) (stdout, stderr []byte, err error)
}

// execRunner shells out to a real clang-compatible binary.
type execRunner struct {
	path string
}

// NewExecRunner builds a Runner invoking the named binary (defaulting
// to "clang" on PATH if path is empty).
func NewExecRunner(path string) Runner {
	if strings.TrimSpace(path) == "" {
		path = "clang"
	}
	return execRunner{path: path}
}

func (r execRunner) Run(ctx context.Context, args []string, source string) ([]byte, []byte, error) {
	// #nosec G204 -- path/args come from workspace-level compiler
	// configuration, not untrusted external input.
	cmd := exec.CommandContext(ctx, r.path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ccall: open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ccall: open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ccall: open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("ccall: start: %w", err)
	}

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = io.Copy(&outBuf, stdout) }()
	go func() { defer wg.Done(); _, _ = io.Copy(&errBuf, stderr) }()

	writeErr := writeAndClose(stdin, source)
	wg.Wait()
	waitErr := cmd.Wait()

	if writeErr != nil {
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("ccall: write source: %w", writeErr)
	}
	return outBuf.Bytes(), errBuf.Bytes(), waitErr
}

func writeAndClose(w io.WriteCloser, source string) error {
	_, err := io.WriteString(w, source)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Compiler compiles C source into a linkable *ir.Module by invoking a
// Runner with the §4.7 argument shape: -nostdlib, the module's own C
// source directory (if any), each configured standard-include path,
// then any node-supplied extraflags.
type Compiler struct {
	Runner      Runner
	IRContext   *ir.Context
	IncludeDirs []string // standard C include search paths, in order
}

// New builds a Compiler decoding compiled modules into irctx -- the
// same Context the consuming GraphModule is lowered against, so linked
// struct types intern identically.
func New(runner Runner, irctx *ir.Context, includeDirs ...string) *Compiler {
	return &Compiler{Runner: runner, IRContext: irctx, IncludeDirs: includeDirs}
}

// compile runs source through the configured Runner and decodes the
// resulting bytes as a compiled *ir.Module.
func (c *Compiler) compile(ctx context.Context, sourceDir, source string, extraFlags []string) (*ir.Module, error) {
	args := make([]string, 0, 2+len(c.IncludeDirs)+len(extraFlags))
	args = append(args, "-nostdlib")
	if sourceDir != "" {
		args = append(args, "-I"+sourceDir)
	}
	for _, inc := range c.IncludeDirs {
		args = append(args, "-I"+inc)
	}
	args = append(args, extraFlags...)

	stdout, stderr, err := c.Runner.Run(ctx, args, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrClangFailed, strings.TrimSpace(string(stderr)))
	}
	mod, err := ir.Decode(c.IRContext, stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding compiler output: %v", ErrClangFailed, err)
	}
	return mod, nil
}

// Compile implements compiler.CSourceCompiler: it compiles every *.c
// file in sourceDir as one translation unit and returns the resulting
// module, satisfying a module's attached C-source tree (distinct from a
// single c-call node's embedded source, handled by NewCCallNode below).
func (c *Compiler) Compile(sourceDir string) (*ir.Module, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("ccall: reading C source directory %q: %w", sourceDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".c") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var unit strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(sourceDir, name))
		if err != nil {
			return nil, fmt.Errorf("ccall: reading %q: %w", name, err)
		}
		unit.Write(data)
		unit.WriteByte('\n')
	}

	return c.compile(context.Background(), sourceDir, unit.String(), nil)
}
