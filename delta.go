package dflat

import (
	"sort"
)

// Delta classifies manifest keys between a source and a target
// manifest.  The three sets are disjoint and sorted.
type Delta struct {
	Added    []string // in target only
	Modified []string // in both, digest differs
	Deleted  []string // in source only
}

// Diff compares source against target.  It does no I/O.
func Diff(source, target Manifest) (delta Delta) {
	for key, digest := range target {
		old, ok := source[key]
		switch {
		case !ok:
			delta.Added = append(delta.Added, key)
		case old != digest:
			delta.Modified = append(delta.Modified, key)
		}
	}
	for key := range source {
		if _, ok := target[key]; !ok {
			delta.Deleted = append(delta.Deleted, key)
		}
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)
	return
}

// Empty reports whether the delta has no changes at all.
func (d Delta) Empty() bool {
	return d.Len() == 0
}

func (d Delta) Len() int {
	return len(d.Added) + len(d.Modified) + len(d.Deleted)
}
