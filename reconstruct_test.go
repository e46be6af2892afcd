package dflat

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReconstruct(t *testing.T) {
	h := setup(t)
	manifests := map[Version]Manifest{}
	m, err := BuildManifest(h.FullPath(1), 1)
	tassert(t, err == nil, "%v", err)
	manifests[1] = m

	// v002 edits, v003 edits again and drops a directory
	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	edit(t, h, 2)
	m, err = BuildManifest(h.FullPath(2), 1)
	tassert(t, err == nil, "%v", err)
	manifests[2] = m
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)

	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 3, "a"), "sun")
	writeFile(t, dataPath(h, 3, "e/f"), "shine")
	err = os.RemoveAll(dataPath(h, 3, "c"))
	tassert(t, err == nil, "%v", err)
	m, err = BuildManifest(h.FullPath(3), 1)
	tassert(t, err == nil, "%v", err)
	manifests[3] = m
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)

	for v := Version(1); v <= 3; v++ {
		dest := filepath.Join(t.TempDir(), v.String())
		err = h.Reconstruct(v, dest)
		tassert(t, err == nil, "%s: %v", v, err)
		got, err := BuildManifest(dest, 1)
		tassert(t, err == nil, "%v", err)
		tassert(t, reflect.DeepEqual(manifests[v], got), "%s: expect %v got %v", v, manifests[v], got)
		persisted, err := ReadManifest(filepath.Join(dest, ManifestFile))
		tassert(t, err == nil, "%v", err)
		tassert(t, reflect.DeepEqual(manifests[v], persisted), "%s: manifest.txt %v", v, persisted)
	}
	tassert(t, readFile(t, filepath.Join(h.ReddPath(1), DeleteFile)) == "data/d\ndata/b\n", "v001 redd changed")
}

func TestReconstructUncommitted(t *testing.T) {
	h := setup(t)
	_, err := h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 2, "a"), "draft")
	dest := t.TempDir()
	err = h.Reconstruct(2, dest)
	tassert(t, err == nil, "%v", err)
	tassert(t, readFile(t, filepath.Join(dest, DataDir, "a")) == "draft", "uncommitted content not copied")
}

func TestReconstructErrors(t *testing.T) {
	h := setup(t)
	err := h.Reconstruct(5, t.TempDir())
	tassert(t, err != nil, "missing version reconstructed")

	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "x"), "busy")
	err = h.Reconstruct(1, dest)
	tassert(t, err != nil, "non-empty dest accepted")

	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	edit(t, h, 2)
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)
	err = os.RemoveAll(h.ReddPath(1))
	tassert(t, err == nil, "%v", err)
	err = h.Reconstruct(1, filepath.Join(t.TempDir(), "out"))
	var repair *RepairError
	tassert(t, errors.As(err, &repair), "expected RepairError, got %v", err)
}

func TestReconstructSkipsAbandoned(t *testing.T) {
	h := setup(t)
	m1, err := BuildManifest(h.FullPath(1), 1)
	tassert(t, err == nil, "%v", err)

	// v002 is checked out and left alone; v003 is edited and committed
	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 2, "a"), "abandoned")
	m2, err := BuildManifest(h.FullPath(2), 1)
	tassert(t, err == nil, "%v", err)
	v, err := h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	tassert(t, v == 3, "expect v003 got %s", v)
	edit(t, h, 3)
	change, err := h.Commit()
	tassert(t, err == nil, "%v", err)
	tassert(t, change.From == 1 && change.To == 3, "got %v", change)
	tassert(t, !exists(h.ReddPath(2)), "abandoned v002 got a redd package")

	for v, expect := range map[Version]Manifest{1: m1, 2: m2} {
		dest := filepath.Join(t.TempDir(), v.String())
		err = h.Reconstruct(v, dest)
		tassert(t, err == nil, "%s: %v", v, err)
		got, err := BuildManifest(dest, 1)
		tassert(t, err == nil, "%v", err)
		tassert(t, reflect.DeepEqual(expect, got), "%s: expect %v got %v", v, expect, got)
	}

	// the chain still works across a later commit
	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 4, "a"), "later")
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)
	dest := filepath.Join(t.TempDir(), "v001")
	err = h.Reconstruct(1, dest)
	tassert(t, err == nil, "%v", err)
	got, err := BuildManifest(dest, 1)
	tassert(t, err == nil, "%v", err)
	tassert(t, reflect.DeepEqual(m1, got), "after v004: expect %v got %v", m1, got)
}

func TestReconstructFileBecomesDir(t *testing.T) {
	h := setup(t)
	m1, err := BuildManifest(h.FullPath(1), 1)
	tassert(t, err == nil, "%v", err)

	// data/a turns into a directory, data/c into a file
	_, err = h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	err = os.Remove(dataPath(h, 2, "a"))
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 2, "a/inner/deep"), "foo")
	err = os.RemoveAll(dataPath(h, 2, "c"))
	tassert(t, err == nil, "%v", err)
	writeFile(t, dataPath(h, 2, "c"), "flat")
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)

	dest := filepath.Join(t.TempDir(), "out")
	err = h.Reconstruct(1, dest)
	tassert(t, err == nil, "%v", err)
	got, err := BuildManifest(dest, 1)
	tassert(t, err == nil, "%v", err)
	tassert(t, reflect.DeepEqual(m1, got), "expect %v got %v", m1, got)
	tassert(t, readFile(t, filepath.Join(dest, DataDir, "a")) == "the", "data/a not restored as a file")
	fi, err := os.Stat(filepath.Join(dest, DataDir, "c"))
	tassert(t, err == nil && fi.IsDir(), "data/c not restored as a directory")
}

func TestReconstructStaysInDest(t *testing.T) {
	h := setup(t)
	_, err := h.CheckoutNew()
	tassert(t, err == nil, "%v", err)
	edit(t, h, 2)
	_, err = h.Commit()
	tassert(t, err == nil, "%v", err)

	parent := t.TempDir()
	outside := filepath.Join(parent, "outside")
	writeFile(t, outside, "keep")
	writeFile(t, filepath.Join(h.ReddPath(1), DeleteFile), "data/d\n../outside\n")
	err = h.Reconstruct(1, filepath.Join(parent, "out"))
	var repair *RepairError
	tassert(t, errors.As(err, &repair), "expected RepairError, got %v", err)
	tassert(t, readFile(t, outside) == "keep", "file outside dest removed")
}
