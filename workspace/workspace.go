// Package workspace implements the on-disk module provider and bitcode
// cache described by §6.2/§4.6: locating a workspace root by its marker
// file, loading a module's .chimod source through chijson, and caching
// the compiled IR keyed on the source file's mtime so an unchanged
// module need not be lowered twice.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chigraph/chi/ccall"
	"github.com/chigraph/chi/chicontext"
	"github.com/chigraph/chi/chijson"
	"github.com/chigraph/chi/compiler"
	"github.com/chigraph/chi/gmodule"
	"github.com/chigraph/chi/ir"
	"github.com/chigraph/chi/result"
)

// MarkerFile is the empty marker a directory must contain to be a
// workspace root, per §6.2.
const MarkerFile = ".chigraphworkspace"

// ErrNoWorkspace is returned by Discover when no ancestor of the
// starting directory contains MarkerFile.
var ErrNoWorkspace = errors.New("workspace: no .chigraphworkspace found in any parent directory")

// Discover walks the parents of dir (inclusive) until it finds a
// directory containing MarkerFile, per §6.2's "a workspace root is
// located by walking parents of any child path."
func Discover(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("workspace: resolving %q: %w", dir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, MarkerFile)); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNoWorkspace
		}
		abs = parent
	}
}

// Workspace is the on-disk module provider and bitcode cache for one
// workspace root. It implements chicontext.Provider, so a Context
// configured with a Workspace resolves any not-yet-loaded module path
// by reading <root>/src/<path>.chimod.
type Workspace struct {
	Root string

	ctx       *chicontext.Context
	cCompiler *ccall.Compiler
	cache     *Cache
}

// Open opens (creating if absent) the bitcode cache index for the
// workspace at root and returns it alongside a fresh *chicontext.Context
// wired to use it as a Provider. cCompiler may be nil if no module in
// this workspace declares C support.
func Open(root string, cCompiler *ccall.Compiler) (*Workspace, *chicontext.Context, error) {
	if _, err := os.Stat(filepath.Join(root, MarkerFile)); err != nil {
		return nil, nil, fmt.Errorf("workspace: %q is not a workspace root (missing %s): %w", root, MarkerFile, err)
	}
	cache, err := OpenCache(filepath.Join(root, "lib", ".cache.sqlite"))
	if err != nil {
		return nil, nil, err
	}
	ws := &Workspace{Root: root, cCompiler: cCompiler, cache: cache}
	ws.ctx = chicontext.New(ws)
	return ws, ws.ctx, nil
}

func (w *Workspace) modulePath(path string) string {
	return filepath.Join(w.Root, "src", filepath.FromSlash(path)+".chimod")
}

func (w *Workspace) cSourceDir(path string) string {
	return filepath.Join(w.Root, "src", filepath.FromSlash(path)+".c")
}

func (w *Workspace) bitcodePath(path string) string {
	return filepath.Join(w.Root, "lib", filepath.FromSlash(path)+".bc")
}

// modulePathFromFile maps an on-disk path under <root>/src back to the
// module path it belongs to, recognizing both a module's own .chimod
// file and any file inside its attached .c/ source directory -- used by
// Watch to translate a raw fsnotify event into a module to recompile.
func (w *Workspace) modulePathFromFile(file string) (string, bool) {
	rel, err := filepath.Rel(filepath.Join(w.Root, "src"), file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	switch {
	case strings.HasSuffix(rel, ".chimod"):
		return strings.TrimSuffix(rel, ".chimod"), true
	case strings.Contains(rel, ".c/"):
		return rel[:strings.Index(rel, ".c/")], true
	default:
		return "", false
	}
}

// Provide implements chicontext.Provider: it reads and decodes the
// .chimod source for path, satisfying a Context.Load call the Context
// couldn't resolve from its already-loaded module set.
func (w *Workspace) Provide(path string) (*gmodule.Module, error) {
	file := w.modulePath(path)
	data, err := os.ReadFile(file) // #nosec G304 -- path built from a workspace-relative module path
	if err != nil {
		return nil, fmt.Errorf("workspace: reading module %q: %w", path, err)
	}
	jsonData, err := chijson.NormalizeToJSON(data, file)
	if err != nil {
		return nil, err
	}
	mod, err := chijson.Decode(w.ctx, path, jsonData, w.cCompiler, w.cSourceDir(path))
	if err != nil {
		return nil, fmt.Errorf("workspace: decoding module %q: %w", path, err)
	}
	return mod, nil
}

// csourceCompiler adapts w.cCompiler to compiler.CSourceCompiler,
// passing a true nil interface when unconfigured -- compiler.LowerModule
// guards on cCompiler == nil, which a nil *ccall.Compiler boxed directly
// into the interface would defeat.
func (w *Workspace) csourceCompiler() compiler.CSourceCompiler {
	if w.cCompiler == nil {
		return nil
	}
	return w.cCompiler
}

// Compile produces the linked, verified *ir.Module for path (§4.6),
// preferring a valid bitcode cache entry over re-running the lowering
// pipeline. The cache is keyed on the source .chimod file's on-disk
// mtime, not GraphModule's in-memory logical edit clock, so it remains
// valid across process restarts.
func (w *Workspace) Compile(path string) (*ir.Module, *result.Result, error) {
	mod, err := w.ctx.Load(path)
	if err != nil {
		return nil, nil, err
	}

	srcInfo, err := os.Stat(w.modulePath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("workspace: stat-ing source of %q: %w", path, err)
	}

	if bcPath, ok := w.cache.Lookup(path, srcInfo.ModTime()); ok {
		if data, err := os.ReadFile(bcPath); err == nil { // #nosec G304 -- path recorded by this workspace's own cache index
			if out, err := ir.Decode(w.ctx.Backend(), data); err == nil {
				return out, result.New(), nil
			}
		}
		// A stale or unreadable cache entry just means wasted work, not
		// a hard failure -- fall through to a full recompile.
	}

	out, r, err := compiler.LowerModule(w.ctx.Backend(), mod, w.ctx, w.csourceCompiler())
	if err != nil {
		return nil, r, err
	}
	if r == nil {
		r = result.New()
	}
	if !r.Success() || out == nil {
		return out, r, nil
	}

	if err := w.writeCache(path, out, srcInfo.ModTime()); err != nil {
		r.AddEntry("WUKN", "failed to write bitcode cache", map[string]any{"module": path, "error": err.Error()})
	}
	return out, r, nil
}

func (w *Workspace) writeCache(path string, mod *ir.Module, srcMTime time.Time) error {
	data, err := mod.Encode()
	if err != nil {
		return fmt.Errorf("encoding bitcode cache: %w", err)
	}
	bcPath := w.bitcodePath(path)
	if err := os.MkdirAll(filepath.Dir(bcPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(bcPath, data, 0o644); err != nil { // #nosec G306 -- cache artifacts are not secrets
		return err
	}
	if err := os.Chtimes(bcPath, srcMTime, srcMTime); err != nil {
		return err
	}
	return w.cache.Record(path, srcMTime, bcPath)
}

// StatCache reports the cached bitcode path and source mtime recorded
// for path, for `chigraph cache stat`.
func (w *Workspace) StatCache(path string) (bitcodePath string, srcMTime time.Time, ok bool) {
	return w.cache.Stat(path)
}

// ClearCache drops path's cache entry and bitcode file, for
// `chigraph cache clear`. The next Compile of path recompiles from
// source.
func (w *Workspace) ClearCache(path string) error {
	return w.cache.Clear(path)
}

// Close releases the workspace's cache index handle.
func (w *Workspace) Close() error {
	return w.cache.Close()
}
