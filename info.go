package dflat

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// InfoFile is the store descriptor; its presence marks a home.
const InfoFile = "dflat-info.txt"

// scheme names written by Init
const (
	ThisScheme     = "Dflat/0.10"
	ManifestScheme = "Checkm/0.1"
	DeltaScheme    = "ReDD/0.1"
)

// Descriptor is the store descriptor: ANVL "Key: value" lines naming the
// schemes a home was written with.
type Descriptor struct {
	This     string
	Manifest string
	Delta    string
	// any other keys, kept so a rewrite doesn't lose them
	Extra map[string]string
}

// DefaultInfo describes the schemes this package writes.
func DefaultInfo() Descriptor {
	return Descriptor{This: ThisScheme, Manifest: ManifestScheme, Delta: DeltaScheme}
}

func anvl(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, "%s: %s\n", name, value)
}

func (info Descriptor) Bytes() []byte {
	var buf bytes.Buffer
	anvl(&buf, "This-scheme", info.This)
	anvl(&buf, "Manifest-scheme", info.Manifest)
	anvl(&buf, "Delta-scheme", info.Delta)
	keys := make([]string, 0, len(info.Extra))
	for k := range info.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		anvl(&buf, k, info.Extra[k])
	}
	return buf.Bytes()
}

// WriteInfo atomically writes the descriptor into dir.
func WriteInfo(dir string, info Descriptor) (err error) {
	path := filepath.Join(dir, InfoFile)
	err = renameio.WriteFile(path, info.Bytes(), 0644)
	if err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return
}

// ReadInfo parses the descriptor in dir.  A missing descriptor, or one
// without a Dflat This-scheme, is a *NotDflatError.
func ReadInfo(dir string) (info Descriptor, err error) {
	path := filepath.Join(dir, InfoFile)
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return info, &NotDflatError{Dir: dir}
	}
	if err != nil {
		return info, errors.Wrapf(err, "read %s", path)
	}

	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "This-scheme", "This":
			info.This = val
		case "Manifest-scheme":
			info.Manifest = val
		case "Delta-scheme":
			info.Delta = val
		default:
			if info.Extra == nil {
				info.Extra = make(map[string]string)
			}
			info.Extra[key] = val
		}
	}
	if !strings.HasPrefix(info.This, "Dflat/") {
		return info, &NotDflatError{Dir: dir}
	}
	return info, nil
}
