package dflat

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Reconstruct writes the full tree of version v into dest, which must
// be empty or not exist.  Versions that still have a full tree (the
// current one, uncommitted checkouts, abandoned ones) are copied as
// they are.  A superseded version is rebuilt from the current tree by
// replaying RedD packages backward, newest first, and gets a freshly
// generated manifest.
func (h *Home) Reconstruct(v Version, dest string) (err error) {
	err = h.withLock(func() (err error) {
		err = h.recover()
		if err != nil {
			return
		}
		return h.reconstruct(v, dest)
	})
	return
}

func (h *Home) reconstruct(v Version, dest string) (err error) {
	if !exists(h.versionDir(v)) {
		return fmt.Errorf("no such version: %s", v)
	}
	entries, err := os.ReadDir(dest)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "list %s", dest)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s is not empty", dest)
	}

	if exists(h.FullPath(v)) {
		h.logger().Debugf("copying %s as is", v)
		return copyTree(h.FullPath(v), dest)
	}
	if !exists(filepath.Join(h.ReddPath(v), DeleteFile)) {
		return &RepairError{Reason: fmt.Sprintf("%s has neither a full tree nor a redd package", v)}
	}
	cur, err := h.Current()
	if err != nil {
		return
	}
	if v > cur {
		return &RepairError{Reason: fmt.Sprintf("%s has a redd package but is newer than current %s", v, cur)}
	}
	chain, err := h.reddChain(v, cur)
	if err != nil {
		return
	}

	err = copyTree(h.FullPath(cur), dest)
	if err != nil {
		return
	}
	for _, w := range chain {
		err = h.replay(w, dest)
		if err != nil {
			return
		}
	}
	m, err := BuildManifest(dest, h.Workers)
	if err != nil {
		return
	}
	return WriteManifest(filepath.Join(dest, ManifestFile), m)
}

// reddChain lists, newest first, the versions from v up to (not
// including) cur that were once current.  Only those have a RedD
// package; each package leads to the next version in the chain, and
// the newest one leads to cur.  Checkouts that were never committed
// are skipped.
func (h *Home) reddChain(v, cur Version) (chain []Version, err error) {
	versions, err := h.Versions()
	if err != nil {
		return
	}
	for i := len(versions) - 1; i >= 0; i-- {
		w := versions[i]
		if w < v || w >= cur {
			continue
		}
		if exists(filepath.Join(h.ReddPath(w), DeleteFile)) {
			chain = append(chain, w)
		}
	}
	return
}

// replay turns a tree of the version committed after w back into one
// of version w using w's RedD package.
func (h *Home) replay(w Version, dest string) (err error) {
	redd := h.ReddPath(w)
	keys, err := readDeleteList(filepath.Join(redd, DeleteFile))
	if os.IsNotExist(errors.Cause(err)) {
		return &RepairError{Reason: fmt.Sprintf("%s has no redd package", w)}
	}
	if err != nil {
		return
	}
	for _, key := range keys {
		rel, err := DecodePath(key)
		if err != nil {
			return &RepairError{Reason: fmt.Sprintf("%s delete list: bad key %q: %v", w, key, err)}
		}
		err = os.Remove(filepath.Join(dest, rel))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "replay %s", w)
		}
		pruneEmpty(dest, filepath.Dir(rel))
	}
	add := filepath.Join(redd, AddDir)
	if exists(add) {
		err = copyTree(add, dest)
		if err != nil {
			return
		}
	}
	h.logger().Debugf("replayed %s: %d removed", w, len(keys))
	return
}

// pruneEmpty removes dir (relative to root) and its parents while they
// are empty.  Top-level directories such as the partitions stay.
func pruneEmpty(root, dir string) {
	for ; strings.Contains(filepath.ToSlash(dir), "/"); dir = filepath.Dir(dir) {
		err := os.Remove(filepath.Join(root, dir))
		if err != nil && !os.IsNotExist(err) {
			// not empty
			return
		}
	}
}

func readDeleteList(path string) (keys []string, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	defer fh.Close()
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	err = scanner.Err()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return
}
