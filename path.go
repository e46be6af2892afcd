package dflat

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// safe reports whether c can appear unescaped in a manifest key.
func safe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}

// EncodePath turns a path relative to a version's full dir into a
// manifest key.  Every byte outside [A-Za-z0-9_.~/-] becomes %XX, so
// keys never contain whitespace.
func EncodePath(rel string) (key string) {
	rel = filepath.ToSlash(rel)
	var b strings.Builder
	for i := 0; i < len(rel); i++ {
		c := rel[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// DecodePath is the inverse of EncodePath.  The result uses the OS
// path separator.  Keys that are absolute or climb out of the tree
// with ".." are rejected.
func DecodePath(key string) (rel string, err error) {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(key) {
			return "", fmt.Errorf("truncated escape in key %q", key)
		}
		hi, ok1 := unhex(key[i+1])
		lo, ok2 := unhex(key[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("bad escape %q in key %q", key[i:i+3], key)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	rel = b.String()
	clean := path.Clean(rel)
	if path.IsAbs(rel) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("key %q escapes the tree", key)
	}
	return filepath.FromSlash(rel), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
