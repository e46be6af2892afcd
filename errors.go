package dflat

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrLockHeld means another process holds the home lock.
	ErrLockHeld = errors.New("dflat is locked by another process")
	// ErrLockTimeout means the home lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for dflat lock")
)

type NotDflatError struct {
	Dir string
}

func (e *NotDflatError) Error() string {
	return fmt.Sprintf("not a dflat: %s", e.Dir)
}

type ExistsError struct {
	Dir string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("already a dflat: %s", e.Dir)
}

// ManifestCorruptError reports a manifest (or journal) line that
// doesn't parse.  Line is 1-based.
type ManifestCorruptError struct {
	File string
	Line int
	Text string
}

func (e *ManifestCorruptError) Error() string {
	return fmt.Sprintf("corrupt manifest %s line %d: %q", e.File, e.Line, e.Text)
}

// PendingCommitError means a commit journal is present: a commit is
// running right now or was interrupted and needs recovery.
type PendingCommitError struct {
	From Version
	To   Version
}

func (e *PendingCommitError) Error() string {
	return fmt.Sprintf("commit %s -> %s in progress or interrupted; run recover", e.From, e.To)
}

// RepairError means the home can't be rolled forward automatically.
type RepairError struct {
	Reason string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("dflat needs manual repair: %s", e.Reason)
}
