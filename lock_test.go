package dflat

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestLock(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, 0)
	tassert(t, err == nil, "%v", err)

	_, err = Acquire(dir, 0)
	tassert(t, errors.Is(err, ErrLockHeld), "expected ErrLockHeld, got %v", err)

	start := time.Now()
	_, err = Acquire(dir, 120*time.Millisecond)
	tassert(t, errors.Is(err, ErrLockTimeout), "expected ErrLockTimeout, got %v", err)
	tassert(t, time.Since(start) >= 120*time.Millisecond, "gave up too early")

	err = lock.Release()
	tassert(t, err == nil, "%v", err)
	// a second release is harmless
	err = lock.Release()
	tassert(t, err == nil, "%v", err)

	lock, err = Acquire(dir, 0)
	tassert(t, err == nil, "%v", err)
	err = lock.Release()
	tassert(t, err == nil, "%v", err)
}

func TestLockWaits(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, 0)
	tassert(t, err == nil, "%v", err)
	go func() {
		time.Sleep(100 * time.Millisecond)
		lock.Release()
	}()
	lock2, err := Acquire(dir, 5*time.Second)
	tassert(t, err == nil, "%v", err)
	err = lock2.Release()
	tassert(t, err == nil, "%v", err)
}

func TestMutationsNeedLock(t *testing.T) {
	h := setup(t)
	lock, err := Acquire(h.Dir, 0)
	tassert(t, err == nil, "%v", err)
	defer lock.Release()

	_, err = h.CheckoutNew()
	tassert(t, errors.Is(err, ErrLockHeld), "checkout: expected ErrLockHeld, got %v", err)
	_, err = h.Commit()
	tassert(t, errors.Is(err, ErrLockHeld), "commit: expected ErrLockHeld, got %v", err)
	_, err = h.BeginVersion()
	tassert(t, errors.Is(err, ErrLockHeld), "begin: expected ErrLockHeld, got %v", err)

	// status is lock-free
	change, err := h.Status()
	tassert(t, err == nil, "%v", err)
	tassert(t, change.NoChange(), "unexpected change %v", change)
}
