package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const fixtureModule = `{
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
        "00000000-0000-0000-0000-000000000002": {"type": "lang:const-int", "location": [0,0], "data": {"value": 7}},
        "00000000-0000-0000-0000-000000000003": {"type": "lang:exit", "location": [0,0], "data": {}}
      },
      "connections": [
        {"type": "data", "input": ["00000000-0000-0000-0000-000000000002", 0], "output": ["00000000-0000-0000-0000-000000000003", 0]},
        {"type": "exec", "input": ["00000000-0000-0000-0000-000000000001", 0], "output": ["00000000-0000-0000-0000-000000000003", 0]}
      ]
    }
  ]
}`

// setupFixture builds a minimal workspace at a temp directory containing
// one module, "app", with the JSON document above as its source.
func setupFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, MarkerFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "app.chimod"), []byte(fixtureModule), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestDiscoverWalksParentDirectories(t *testing.T) {
	root := setupFixture(t)
	nested := filepath.Join(root, "src", "sub", "dir")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Fatalf("Discover returned %q, want %q", got, want)
	}
}

func TestDiscoverReturnsErrNoWorkspaceOutsideAnyWorkspace(t *testing.T) {
	dir := t.TempDir()
	if _, err := Discover(dir); err == nil {
		t.Fatal("expected ErrNoWorkspace for a directory with no marker in any parent")
	}
}

func TestOpenRejectsNonWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Open(dir, nil); err == nil {
		t.Fatal("expected Open to reject a directory with no .chigraphworkspace marker")
	}
}

func TestProvideLoadsModuleFromSource(t *testing.T) {
	root := setupFixture(t)
	ws, _, err := Open(root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	mod, err := ws.Provide("app")
	if err != nil {
		t.Fatalf("Provide: %v", err)
	}
	if mod.Function("main") == nil {
		t.Fatal("expected function main to be decoded")
	}
}

func TestCompileCachesAcrossCalls(t *testing.T) {
	root := setupFixture(t)
	ws, _, err := Open(root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	out1, r1, err := ws.Compile("app")
	if err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	if r1 == nil || !r1.Success() {
		t.Fatalf("expected first compile to succeed, got %+v", r1)
	}
	if out1 == nil {
		t.Fatal("expected a non-nil compiled module")
	}

	bcPath := ws.bitcodePath("app")
	if _, err := os.Stat(bcPath); err != nil {
		t.Fatalf("expected bitcode cache file to be written: %v", err)
	}

	out2, r2, err := ws.Compile("app")
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if r2 == nil || !r2.Success() {
		t.Fatalf("expected second compile to succeed, got %+v", r2)
	}
	if out2 == nil {
		t.Fatal("expected a non-nil module from the cached path")
	}
}

func TestCompileRecompilesAfterSourceChanges(t *testing.T) {
	root := setupFixture(t)
	ws, _, err := Open(root, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	if _, r, err := ws.Compile("app"); err != nil || !r.Success() {
		t.Fatalf("initial compile: err=%v result=%+v", err, r)
	}

	srcFile := filepath.Join(root, "src", "app.chimod")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(srcFile, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok := ws.cache.Lookup("app", future); ok {
		t.Fatal("expected the cache to miss once the source mtime changed")
	}
}

func TestModulePathFromFile(t *testing.T) {
	root := setupFixture(t)
	ws := &Workspace{Root: root}

	path, ok := ws.modulePathFromFile(filepath.Join(root, "src", "app.chimod"))
	if !ok || path != "app" {
		t.Fatalf("modulePathFromFile(.chimod) = (%q, %v), want (\"app\", true)", path, ok)
	}

	path, ok = ws.modulePathFromFile(filepath.Join(root, "src", "app.c", "extra.c"))
	if !ok || path != "app" {
		t.Fatalf("modulePathFromFile(.c source) = (%q, %v), want (\"app\", true)", path, ok)
	}

	if _, ok := ws.modulePathFromFile(filepath.Join(root, "README.md")); ok {
		t.Fatal("expected a file outside src/ to not resolve to a module path")
	}
}
