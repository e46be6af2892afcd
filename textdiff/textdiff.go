// Package textdiff renders unified diffs of version entries using
// github.com/pmezard/go-difflib.
package textdiff

import (
	"bytes"
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DevNull stands in for the missing side of an added or deleted entry.
const DevNull = "/dev/null"

type Options struct {
	// MaxBytes caps the combined input size; larger inputs get a
	// placeholder.  0 means no limit.
	MaxBytes int

	// Context is the number of context lines per hunk, 3 if 0.
	Context int
}

// Unified returns a unified diff turning a into b.  oversize is set
// when the inputs were too big to diff.  Identical inputs give "".
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	if bytes.Equal(a, b) {
		return "", false
	}
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return placeholder(aName, bName, "oversize"), true
	}
	if binary(a) || binary(b) {
		return fmt.Sprintf("Binary files %s and %s differ\n", aName, bName), false
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	u := difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return placeholder(aName, bName, "failed"), false
	}
	return s, false
}

// Added diffs an entry that only exists on the new side.
func Added(bName string, b []byte, opt Options) (string, bool) {
	return Unified(DevNull, bName, nil, b, opt)
}

// Deleted diffs an entry that only exists on the old side.
func Deleted(aName string, a []byte, opt Options) (string, bool) {
	return Unified(aName, DevNull, a, nil, opt)
}

// splitLines keeps each line's newline so hunks reproduce the input.
func splitLines(buf []byte) []string {
	if len(buf) == 0 {
		return []string{}
	}
	lines := strings.SplitAfter(string(buf), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// XXX crude: same test diff(1) uses
func binary(buf []byte) bool {
	n := len(buf)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

func placeholder(aName, bName, why string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (%s)\n", aName, bName, why)
}
