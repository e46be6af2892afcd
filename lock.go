package dflat

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// how often Acquire retries a held lock
const lockPoll = 50 * time.Millisecond

// Lock is an exclusive advisory lock on a home, held via flock(2) on
// <home>/lock.txt.  The lock belongs to the open file description, so
// it is released when the process dies.
type Lock struct {
	Path string
	fh   *os.File
}

// Acquire takes the home lock on dir.  With timeout 0 it fails at
// once with ErrLockHeld if another holder exists; otherwise it retries
// until timeout and then fails with ErrLockTimeout.
func Acquire(dir string, timeout time.Duration) (lock *Lock, err error) {
	path := filepath.Join(dir, LockFile)
	fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open lock %s", path)
	}

	deadline := time.Now().Add(timeout)
	for {
		err = unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			log.Debugf("locked %s", path)
			return &Lock{Path: path, fh: fh}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EINTR {
			fh.Close()
			return nil, errors.Wrapf(err, "flock %s", path)
		}
		if timeout <= 0 {
			fh.Close()
			return nil, errors.Wrap(ErrLockHeld, path)
		}
		if time.Now().After(deadline) {
			fh.Close()
			return nil, errors.Wrapf(ErrLockTimeout, "%s after %v", path, timeout)
		}
		time.Sleep(lockPoll)
	}
}

// Release drops the lock.  The lock file itself stays in place;
// removing it would let a waiter lock an unlinked inode.
func (lock *Lock) Release() (err error) {
	if lock == nil || lock.fh == nil {
		return
	}
	err = unix.Flock(int(lock.fh.Fd()), unix.LOCK_UN)
	err = multierr.Append(err, lock.fh.Close())
	lock.fh = nil
	log.Debugf("unlocked %s", lock.Path)
	return
}

// withLock runs fn while holding the home lock, releasing it on every
// exit path.
func (h *Home) withLock(fn func() error) (err error) {
	lock, err := Acquire(h.Dir, h.LockTimeout)
	if err != nil {
		return
	}
	defer func() {
		err = multierr.Append(err, lock.Release())
	}()
	return fn()
}
