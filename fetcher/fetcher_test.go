package fetcher

import "testing"

func TestResolveURLGitHub(t *testing.T) {
	got := ResolveURL("github.com/chigraph/stdlib")
	want := "https://github.com/chigraph/stdlib"
	if got != want {
		t.Fatalf("ResolveURL = %q, want %q", got, want)
	}
}

func TestResolveURLGitHubIgnoresTrailingPathComponents(t *testing.T) {
	got := ResolveURL("github.com/chigraph/stdlib/strings")
	want := "https://github.com/chigraph/stdlib"
	if got != want {
		t.Fatalf("ResolveURL = %q, want %q", got, want)
	}
}

func TestResolveURLUnknownProvider(t *testing.T) {
	cases := []string{
		"gitlab.com/chigraph/stdlib",
		"main",
		"github.com",
		"github.com/onlyowner",
	}
	for _, c := range cases {
		if got := ResolveURL(c); got != UnknownURL {
			t.Errorf("ResolveURL(%q) = %q, want %q", c, got, UnknownURL)
		}
	}
}
