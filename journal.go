package dflat

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// JournalFile holds the plan of a commit that is in flight.  It is
// written before the first mutation and removed after the last one.
const JournalFile = "journal.txt"

// journal is the write-ahead record of one commit:
//
//	from v001
//	to v002
//	added data/new
//	modified data/changed
//	deleted data/gone
type journal struct {
	From  Version
	To    Version
	Delta Delta
}

func (h *Home) journalPath() string {
	return filepath.Join(h.Dir, JournalFile)
}

func (j *journal) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "from %s\n", j.From)
	fmt.Fprintf(&buf, "to %s\n", j.To)
	for _, key := range j.Delta.Added {
		fmt.Fprintf(&buf, "added %s\n", key)
	}
	for _, key := range j.Delta.Modified {
		fmt.Fprintf(&buf, "modified %s\n", key)
	}
	for _, key := range j.Delta.Deleted {
		fmt.Fprintf(&buf, "deleted %s\n", key)
	}
	return buf.Bytes()
}

func (h *Home) writeJournal(j *journal) (err error) {
	path := h.journalPath()
	err = renameio.WriteFile(path, j.Bytes(), 0644)
	if err != nil {
		return errors.Wrapf(err, "write journal %s", path)
	}
	return
}

// readJournal returns nil, nil when no commit is in flight.  A journal
// that doesn't parse is a *RepairError.
func (h *Home) readJournal() (j *journal, err error) {
	path := h.journalPath()
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read journal %s", path)
	}

	j = &journal{}
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" {
			continue
		}
		bad := &RepairError{Reason: fmt.Sprintf("%s line %d: %q", path, lineno, line)}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return nil, bad
		}
		word, arg := parts[0], parts[1]
		switch word {
		case "from", "to":
			v, err := ParseVersion(arg)
			if err != nil {
				return nil, bad
			}
			if word == "from" {
				j.From = v
			} else {
				j.To = v
			}
			continue
		}
		if _, err := DecodePath(arg); err != nil {
			return nil, bad
		}
		switch word {
		case "added":
			j.Delta.Added = append(j.Delta.Added, arg)
		case "modified":
			j.Delta.Modified = append(j.Delta.Modified, arg)
		case "deleted":
			j.Delta.Deleted = append(j.Delta.Deleted, arg)
		default:
			return nil, bad
		}
	}
	err = scanner.Err()
	if err != nil {
		return nil, errors.Wrapf(err, "read journal %s", path)
	}
	if j.From == NoVersion || j.To == NoVersion || j.From >= j.To {
		return nil, &RepairError{Reason: fmt.Sprintf("%s: bad versions %s -> %s", path, j.From, j.To)}
	}
	return j, nil
}

func (h *Home) removeJournal() (err error) {
	path := h.journalPath()
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove journal %s", path)
	}
	return nil
}
