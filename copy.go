package dflat

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/fileutils"
	. "github.com/stevegt/goadapt"
)

// copyTree recursively copies src into dst, overwriting files dst
// already has.  Regular files keep their permission bits; symlinks are
// recreated as symlinks.
func copyTree(src, dst string) (err error) {
	defer Return(&err)
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		Ck(err)
		rel, err := filepath.Rel(src, path)
		Ck(err)
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		Ck(err)
		// a path that changed between file and directory
		if old, lerr := os.Lstat(target); lerr == nil && old.IsDir() != d.IsDir() {
			err = os.RemoveAll(target)
			Ck(err)
		}
		switch {
		case d.IsDir():
			err = os.MkdirAll(target, info.Mode().Perm()|0700)
			Ck(err)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			Ck(err)
			err = os.Remove(target)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			err = os.Symlink(link, target)
			Ck(err)
		case d.Type().IsRegular():
			err = fileutils.CopyFile(target, path)
			Ck(err)
			err = os.Chmod(target, info.Mode().Perm())
			Ck(err)
		default:
			// devices, sockets and fifos have no place in a version
			return fmt.Errorf("unsupported file type %v: %s", d.Type(), path)
		}
		return nil
	})
	Ck(err)
	return
}

// moveFile renames src to dst, creating dst's parent directories.
func moveFile(src, dst string) (err error) {
	defer Return(&err)
	err = os.MkdirAll(filepath.Dir(dst), 0755)
	Ck(err)
	err = os.Rename(src, dst)
	Ck(err)
	return
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func mkdir(dir string) (err error) {
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
	}
	return
}
