package dflat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stevegt/readercomp"
)

func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

// fixture is the content the home in setup starts with.
var fixture = map[string]string{
	"a":   "the",
	"b":   "sun",
	"c/1": "will",
	"c/2": "shine",
	"d b": "and",
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(buf)
}

// sameFile reports whether two files hold the same bytes.
func sameFile(t *testing.T, a, b string) bool {
	t.Helper()
	fa, err := os.Open(a)
	if err != nil {
		t.Fatal(err)
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		t.Fatal(err)
	}
	defer fb.Close()
	ok, err := readercomp.Equal(fa, fb, 4096)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

// setup initializes a home over a fresh directory holding fixture.
func setup(t *testing.T) (h *Home) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range fixture {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	}
	h, err := Home{Dir: dir, Workers: 2}.Init()
	if err != nil {
		t.Fatal(err)
	}
	tassert(t, h != nil, "home is nil")
	return
}

// dataPath returns the path of a data file inside version v.
func dataPath(h *Home, v Version, rel string) string {
	return filepath.Join(h.FullPath(v), DataDir, filepath.FromSlash(rel))
}
