package dflat

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
)

const LogDir = "log"

// Home is one dflat store.  Dir is the home directory.  Workers bounds
// concurrent hashing when manifests are built (0 means one per CPU).
// LockTimeout is how long mutating operations wait for the home lock
// (0 means fail at once if it is held).
type Home struct {
	Dir         string
	Workers     int
	LockTimeout time.Duration
}

// Open loads an existing home from dir.
func Open(dir string) (h *Home, err error) {
	dir, err = filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return
	}
	_, err = ReadInfo(dir)
	if err != nil {
		return nil, err
	}
	return &Home{Dir: dir}, nil
}

// Find walks upward from dir until it finds a directory holding the
// store descriptor.  Reaching the filesystem root is a *NotDflatError.
func Find(dir string) (home string, err error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	dir = start
	for {
		if exists(filepath.Join(dir, InfoFile)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &NotDflatError{Dir: start}
		}
		dir = parent
	}
}

// Init turns h.Dir into a home.  Whatever the directory already holds
// becomes the data of v001, which is made current.  The descriptor is
// written last, so an interrupted Init never leaves something that
// looks like a home.
func (h Home) Init() (out *Home, err error) {
	h.Dir, err = filepath.Abs(filepath.Clean(h.Dir))
	if err != nil {
		return
	}
	err = mkdir(h.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", h.Dir)
	}
	err = h.withLock(h.init)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// init runs under the lock; another Init may have finished while
// this one waited for it.
func (h *Home) init() (err error) {
	if exists(filepath.Join(h.Dir, InfoFile)) {
		return &ExistsError{Dir: h.Dir}
	}
	dirents, err := os.ReadDir(h.Dir)
	if err != nil {
		return errors.Wrapf(err, "list %s", h.Dir)
	}
	var entries []string
	for _, entry := range dirents {
		if entry.Name() == LockFile {
			continue
		}
		if stagingRe.MatchString(entry.Name()) {
			// an earlier Init died after moving files into the stage
			return &RepairError{Reason: "interrupted init left " + entry.Name()}
		}
		entries = append(entries, entry.Name())
	}

	// existing entries become v001 data
	seed := func(stage string) (err error) {
		defer Return(&err)
		full := filepath.Join(stage, FullDir)
		err = mkSkeleton(full)
		Ck(err)
		for _, name := range entries {
			err = os.Rename(filepath.Join(h.Dir, name), filepath.Join(full, DataDir, name))
			Ck(err)
		}
		m, err := BuildManifest(full, h.Workers)
		Ck(err)
		err = WriteManifest(filepath.Join(full, ManifestFile), m)
		Ck(err)
		return
	}
	v, err := h.newVersion(seed)
	if err != nil {
		return
	}
	err = h.setCurrent(v)
	if err != nil {
		return
	}
	err = mkdir(filepath.Join(h.Dir, LogDir))
	if err != nil {
		return errors.Wrap(err, "mkdir log")
	}
	err = WriteInfo(h.Dir, DefaultInfo())
	if err != nil {
		return
	}
	h.logger().Debugf("initialized with %d entries in %s", len(entries), v)
	return
}
