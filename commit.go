package dflat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// RedD package contents
const (
	AddDir     = "add"
	DeleteFile = "delete.txt"
	ReddMarker = "0=redd_0.1"
)

// Change describes the difference between the current version and the
// latest one.  A Change with From == To, or an empty Delta, means there
// is nothing to commit.
type Change struct {
	From  Version
	To    Version
	Delta Delta
}

// NoChange reports whether committing c would do nothing.
func (c *Change) NoChange() bool {
	return c.From == c.To || c.Delta.Empty()
}

func (c *Change) String() string {
	return fmt.Sprintf("%s -> %s: %d added, %d modified, %d deleted",
		c.From, c.To, len(c.Delta.Added), len(c.Delta.Modified), len(c.Delta.Deleted))
}

// Commit makes the latest version current.  The superseded version
// keeps only a RedD package: the bytes of everything the new version
// deleted or modified, plus the list of paths to remove to get back to
// it.  If latest has no changes against current, nothing is touched.
func (h *Home) Commit() (change *Change, err error) {
	err = h.withLock(func() (err error) {
		err = h.recover()
		if err != nil {
			return
		}
		change, err = h.pending(true)
		if err != nil {
			return
		}
		if change.NoChange() {
			h.logger().Debugf("nothing to commit: %s", change)
			return
		}
		j := &journal{From: change.From, To: change.To, Delta: change.Delta}
		err = h.writeJournal(j)
		if err != nil {
			return
		}
		return h.apply(j)
	})
	if err != nil {
		return nil, err
	}
	return
}

// pending computes the change from current to latest, building both
// manifests fresh.  With persist set, latest's manifest.txt is
// rewritten.
func (h *Home) pending(persist bool) (change *Change, err error) {
	v1, err := h.Current()
	if err != nil {
		return
	}
	v2, err := h.Latest()
	if err != nil {
		return
	}
	change = &Change{From: v1, To: v2}
	if v1 == v2 {
		return
	}
	m1, err := BuildManifest(h.FullPath(v1), h.Workers)
	if err != nil {
		return nil, err
	}
	m2, err := BuildManifest(h.FullPath(v2), h.Workers)
	if err != nil {
		return nil, err
	}
	if persist {
		err = WriteManifest(filepath.Join(h.FullPath(v2), ManifestFile), m2)
		if err != nil {
			return nil, err
		}
	}
	change.Delta = Diff(m1, m2)
	return
}

// Recover cleans up after interrupted operations: it removes
// half-built versions and finishes any commit whose journal is still
// present.
func (h *Home) Recover() (err error) {
	return h.withLock(h.recover)
}

// recover is Recover for callers already holding the lock.
func (h *Home) recover() (err error) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		return errors.Wrapf(err, "list %s", h.Dir)
	}
	for _, entry := range entries {
		if !stagingRe.MatchString(entry.Name()) {
			continue
		}
		h.logger().Warnf("removing unfinished version %s", entry.Name())
		err = os.RemoveAll(filepath.Join(h.Dir, entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "remove %s", entry.Name())
		}
	}

	j, err := h.readJournal()
	if err != nil {
		return
	}
	if j == nil {
		return
	}
	h.logger().Warnf("rolling forward interrupted commit %s -> %s", j.From, j.To)
	return h.apply(j)
}

// apply carries out a journaled commit.  Every step can be repeated,
// so apply also finishes a commit that was cut short at any point.
func (h *Home) apply(j *journal) (err error) {
	if !exists(h.versionDir(j.To)) {
		return &RepairError{Reason: fmt.Sprintf("journal names missing %s", j.To)}
	}
	full := h.FullPath(j.From)
	redd := h.ReddPath(j.From)
	add := filepath.Join(redd, AddDir)
	logger := h.logger().WithFields(log.Fields{"from": j.From, "to": j.To})

	if exists(full) {
		err = mkRedd(redd)
		if err != nil {
			return
		}
		// old bytes of deleted and modified paths go into add/
		var moved []string
		moved = append(moved, j.Delta.Deleted...)
		moved = append(moved, j.Delta.Modified...)
		for _, key := range moved {
			err = relocate(full, add, key)
			if err != nil {
				return
			}
		}
		logger.Debugf("archived %d paths", len(moved))

		// paths to delete to get back from To to From
		var del strings.Builder
		for _, key := range j.Delta.Added {
			del.WriteString(key + "\n")
		}
		for _, key := range j.Delta.Modified {
			del.WriteString(key + "\n")
		}
		path := filepath.Join(redd, DeleteFile)
		err = renameio.WriteFile(path, []byte(del.String()), 0644)
		if err != nil {
			return errors.Wrapf(err, "write %s", path)
		}

		err = os.RemoveAll(full)
		if err != nil {
			return errors.Wrapf(err, "remove %s", full)
		}
		logger.Debugf("removed %s", full)
	} else if !exists(filepath.Join(redd, DeleteFile)) {
		return &RepairError{Reason: fmt.Sprintf("%s has neither full nor a complete redd", j.From)}
	}

	err = h.setCurrent(j.To)
	if err != nil {
		return
	}
	err = h.removeJournal()
	if err != nil {
		return
	}
	logger.Infof("committed %d changes", j.Delta.Len())
	return
}

func mkRedd(redd string) (err error) {
	defer Return(&err)
	err = os.MkdirAll(filepath.Join(redd, AddDir), 0755)
	Ck(err)
	err = os.WriteFile(filepath.Join(redd, ReddMarker), []byte("redd 0.1"), 0644)
	Ck(err)
	return
}

// relocate moves the file named by key from full into add.  A file
// already in add and gone from full was moved by an earlier run.
func relocate(full, add, key string) (err error) {
	rel, err := DecodePath(key)
	if err != nil {
		return &RepairError{Reason: fmt.Sprintf("bad key %q: %v", key, err)}
	}
	src := filepath.Join(full, rel)
	dst := filepath.Join(add, rel)
	switch {
	case exists(src):
		err = moveFile(src, dst)
		if err != nil {
			return errors.Wrapf(err, "archive %s", key)
		}
	case exists(dst):
		log.Debugf("%s already archived", key)
	default:
		return &RepairError{Reason: fmt.Sprintf("%s is missing from both %s and %s", key, full, add)}
	}
	return
}
