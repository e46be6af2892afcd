package dflat

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
)

// names inside a home and a version
const (
	CurrentLink   = "current"
	FullDir       = "full"
	ReddDir       = "redd"
	AdminDir      = "admin"
	AnnotationDir = "annotation"
	DataDir       = "data"
	EnrichmentDir = "enrichment"
)

// Partitions are the fixed subdirectories of every version's full dir.
var Partitions = []string{AdminDir, AnnotationDir, DataDir, EnrichmentDir}

var (
	versionRe = regexp.MustCompile(`^v(\d+)$`)
	stagingRe = regexp.MustCompile(`^\.v\d+\.partial$`)
)

// Version is a version number.  Versions start at 1; NoVersion means
// there is none.
type Version int

const NoVersion Version = 0

// String renders v as "v" plus at least three zero-padded digits.
func (v Version) String() string {
	return fmt.Sprintf("v%03d", int(v))
}

// ParseVersion parses names like "v001" or "v1234".
func ParseVersion(s string) (v Version, err error) {
	match := versionRe.FindStringSubmatch(s)
	if match == nil {
		return NoVersion, fmt.Errorf("not a version: %q", s)
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return NoVersion, errors.Wrapf(err, "version %q", s)
	}
	if n < 1 {
		return NoVersion, fmt.Errorf("not a version: %q", s)
	}
	return Version(n), nil
}

func (h *Home) versionDir(v Version) string {
	return filepath.Join(h.Dir, v.String())
}

// FullPath returns the content tree of version v.
func (h *Home) FullPath(v Version) string {
	return filepath.Join(h.versionDir(v), FullDir)
}

// ReddPath returns where version v's RedD package lives once v has
// been superseded.
func (h *Home) ReddPath(v Version) string {
	return filepath.Join(h.versionDir(v), ReddDir)
}

func stagingName(v Version) string {
	return "." + v.String() + ".partial"
}

// Current returns the version the current symlink names.
func (h *Home) Current() (v Version, err error) {
	link := filepath.Join(h.Dir, CurrentLink)
	target, err := os.Readlink(link)
	if os.IsNotExist(err) {
		return NoVersion, &NotDflatError{Dir: h.Dir}
	}
	if err != nil {
		return NoVersion, errors.Wrapf(err, "readlink %s", link)
	}
	v, err = ParseVersion(filepath.Base(target))
	if err != nil {
		return NoVersion, &RepairError{Reason: fmt.Sprintf("%s points at %q", link, target)}
	}
	if !exists(h.versionDir(v)) {
		return NoVersion, &RepairError{Reason: fmt.Sprintf("%s points at missing %s", link, v)}
	}
	return
}

// Versions lists every version directory in numeric order.
func (h *Home) Versions() (versions []Version, err error) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", h.Dir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := ParseVersion(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return
}

// Latest returns the numerically greatest version, or NoVersion.
func (h *Home) Latest() (v Version, err error) {
	versions, err := h.Versions()
	if err != nil {
		return
	}
	if len(versions) == 0 {
		return NoVersion, nil
	}
	return versions[len(versions)-1], nil
}

// NextVersion returns the id the next created version will get.
func (h *Home) NextVersion() (v Version, err error) {
	latest, err := h.Latest()
	if err != nil {
		return
	}
	return latest + 1, nil
}

// BeginVersion creates the next version with an empty skeleton and
// makes it current.
func (h *Home) BeginVersion() (v Version, err error) {
	err = h.withLock(func() (err error) {
		err = h.recover()
		if err != nil {
			return
		}
		v, err = h.newVersion(func(stage string) error {
			return mkSkeleton(filepath.Join(stage, FullDir))
		})
		if err != nil {
			return
		}
		return h.setCurrent(v)
	})
	return
}

// CheckoutNew creates the next version as a full copy of the current
// one.  The current pointer doesn't move: the new version is the
// uncommitted working copy until Commit.
func (h *Home) CheckoutNew() (v Version, err error) {
	err = h.withLock(func() (err error) {
		err = h.recover()
		if err != nil {
			return
		}
		cur, err := h.Current()
		if err != nil {
			return
		}
		v, err = h.newVersion(func(stage string) error {
			return copyTree(h.FullPath(cur), filepath.Join(stage, FullDir))
		})
		if err != nil {
			return
		}
		h.logger().Debugf("checked out %s from %s", v, cur)
		return
	})
	return
}

// newVersion allocates the next version id and builds it in a hidden
// staging directory that seed populates.  Only a fully seeded version
// is renamed into place, so a crash leaves a .partial dir behind and
// never a half-built version.
func (h *Home) newVersion(seed func(stage string) error) (v Version, err error) {
	defer Return(&err)
	v, err = h.NextVersion()
	Ck(err)
	stage := filepath.Join(h.Dir, stagingName(v))
	err = os.RemoveAll(stage)
	Ck(err)
	err = os.Mkdir(stage, 0755)
	Ck(err)
	err = seed(stage)
	if err != nil {
		return NoVersion, err
	}
	err = os.Rename(stage, h.versionDir(v))
	Ck(err)
	h.logger().Debugf("created %s", v)
	return
}

// setCurrent atomically repoints the current symlink at v.  The link
// is relative so the home can be moved.
func (h *Home) setCurrent(v Version) (err error) {
	link := filepath.Join(h.Dir, CurrentLink)
	err = renameio.Symlink(v.String(), link)
	if err != nil {
		return errors.Wrapf(err, "repoint %s to %s", link, v)
	}
	h.logger().Debugf("current is now %s", v)
	return
}

// mkSkeleton creates an empty full dir: the four partitions and the
// three top-level files.
func mkSkeleton(full string) (err error) {
	defer Return(&err)
	for _, part := range Partitions {
		err = os.MkdirAll(filepath.Join(full, part), 0755)
		Ck(err)
	}
	for _, name := range []string{ManifestFile, RelationshipsFile, SplashFile} {
		err = os.WriteFile(filepath.Join(full, name), nil, 0644)
		Ck(err)
	}
	return
}
