package dflat

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	ManifestFile      = "manifest.txt"
	RelationshipsFile = "relationships.ttl"
	SplashFile        = "splash.txt"
	LockFile          = "lock.txt"
)

// Manifest maps an encoded path key to the md5 hex digest of the file
// content.
type Manifest map[string]string

// Keys returns the manifest keys in sorted order.
func (m Manifest) Keys() (keys []string) {
	keys = make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// excluded reports whether a file at rel (relative to full) is left
// out of manifests.  A manifest never lists itself.
func excluded(rel string) bool {
	return rel == ManifestFile || rel == LockFile
}

// BuildManifest walks fullDir and fingerprints every regular file in
// it, using up to workers concurrent hashes.  workers < 1 means
// runtime.NumCPU().
func BuildManifest(fullDir string, workers int) (m Manifest, err error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var rels []string
	err = filepath.WalkDir(fullDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "walk %s", path)
		}
		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink != 0 {
				log.Debugf("skipping symlink %s", path)
			}
			return nil
		}
		rel, err := filepath.Rel(fullDir, path)
		if err != nil {
			return err
		}
		if excluded(filepath.ToSlash(rel)) {
			return nil
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	digests := make([]string, len(rels))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, rel := range rels {
		i, rel := i, rel
		g.Go(func() error {
			digest, err := Fingerprint(filepath.Join(fullDir, rel))
			if err != nil {
				return err
			}
			digests[i] = digest
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, err
	}

	m = make(Manifest, len(rels))
	for i, rel := range rels {
		m[EncodePath(rel)] = digests[i]
	}
	log.Debugf("built manifest of %d entries for %s", len(m), fullDir)
	return m, nil
}

// Bytes renders the manifest in its on-disk form, one
// "<key> md5 <digest>" line per entry, sorted by key.
func (m Manifest) Bytes() []byte {
	var buf bytes.Buffer
	for _, k := range m.Keys() {
		fmt.Fprintf(&buf, "%s %s %s\n", k, ManifestAlgo, m[k])
	}
	return buf.Bytes()
}

// WriteManifest atomically replaces the manifest file at path.
func WriteManifest(path string, m Manifest) (err error) {
	err = renameio.WriteFile(path, m.Bytes(), 0644)
	if err != nil {
		return errors.Wrapf(err, "write manifest %s", path)
	}
	return
}

// ReadManifest parses the manifest file at path.  Blank lines and
// lines starting with '#' are skipped; anything else that isn't
// exactly "<key> md5 <digest>" is a *ManifestCorruptError.
func ReadManifest(path string) (m Manifest, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	defer fh.Close()

	m = make(Manifest)
	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		corrupt := &ManifestCorruptError{File: path, Line: lineno, Text: line}
		cols := strings.Fields(trimmed)
		if len(cols) != 3 || cols[1] != ManifestAlgo || !validDigest(cols[2]) {
			return nil, corrupt
		}
		if _, err := DecodePath(cols[0]); err != nil {
			return nil, corrupt
		}
		if _, dup := m[cols[0]]; dup {
			return nil, corrupt
		}
		m[cols[0]] = cols[2]
	}
	err = scanner.Err()
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	return m, nil
}
