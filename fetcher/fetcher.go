// Package fetcher resolves a module path to the Git URL it would be
// fetched from, and clones it, per §6.3. Nothing in gmodule, compiler,
// or workspace depends on this package -- a Workspace only ever reads
// a module that already exists under its src/ tree; fetching a missing
// one in is an operator action, and no cli command calls this package.
package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
)

// UnknownURL is ResolveURL's result for a module path whose provider it
// does not recognize.
const UnknownURL = "unknown"

// ResolveURL maps a module path to the Git URL it is fetched from. A
// path whose first two components are "github.com/<owner>/<repo>"
// resolves to "https://github.com/<owner>/<repo>"; every other shape
// resolves to UnknownURL.
func ResolveURL(modulePath string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 3 || parts[0] != "github.com" {
		return UnknownURL
	}
	return fmt.Sprintf("https://github.com/%s/%s", parts[1], parts[2])
}

// Clone fetches the repository backing modulePath into dest, the
// conventional "<workspace>/src/github.com/<owner>/<repo>" location.
// Returns an error naming the module path if no provider recognizes
// it.
func Clone(ctx context.Context, modulePath, dest string) error {
	url := ResolveURL(modulePath)
	if url == UnknownURL {
		return fmt.Errorf("fetcher: no known provider for module path %q", modulePath)
	}
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL: url,
	})
	if err != nil {
		return fmt.Errorf("fetcher: cloning %s: %w", url, err)
	}
	return nil
}
