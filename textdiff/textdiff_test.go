package textdiff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	a := []byte("the\nsun\nwill\nshine\n")
	b := []byte("the\nmoon\nwill\nshine\n")
	body, oversize := Unified("v001/data/foo", "v002/data/foo", a, b, Options{})
	require.False(t, oversize)
	require.True(t, strings.HasPrefix(body, "--- v001/data/foo"))
	require.Contains(t, body, "+++ v002/data/foo")
	require.Contains(t, body, "-sun\n")
	require.Contains(t, body, "+moon\n")
	require.Contains(t, body, " the\n")
}

func TestUnifiedIdentical(t *testing.T) {
	body, oversize := Unified("a", "b", []byte("same\n"), []byte("same\n"), Options{})
	require.False(t, oversize)
	require.Equal(t, "", body)
}

func TestAddedDeleted(t *testing.T) {
	body, _ := Added("data/new", []byte("and\n"), Options{})
	require.Contains(t, body, "--- "+DevNull)
	require.Contains(t, body, "+++ data/new")
	require.Contains(t, body, "+and\n")

	body, _ = Deleted("data/old", []byte("foo\n"), Options{})
	require.Contains(t, body, "--- data/old")
	require.Contains(t, body, "+++ "+DevNull)
	require.Contains(t, body, "-foo\n")
}

func TestOversize(t *testing.T) {
	a := []byte(strings.Repeat("x\n", 100))
	b := []byte(strings.Repeat("y\n", 100))
	body, oversize := Unified("a", "b", a, b, Options{MaxBytes: 50})
	require.True(t, oversize)
	require.Contains(t, body, "diff omitted (oversize)")
}

func TestBinary(t *testing.T) {
	body, oversize := Unified("a", "b", []byte{0, 1, 2}, []byte{0, 1, 3}, Options{})
	require.False(t, oversize)
	require.Equal(t, "Binary files a and b differ\n", body)
}
