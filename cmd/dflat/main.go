package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	df "github.com/t7a/dflat"
	"github.com/t7a/dflat/config"
	"github.com/t7a/dflat/textdiff"
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportCaller(true)
	log.SetFormatter(&log.TextFormatter{
		CallerPrettyfier: logSource,
		FieldMap:         log.FieldMap{log.FieldKeyFile: "at"},
		TimestampFormat:  "15:04:05.000000",
	})
}

// logSource shortens the reported caller to "commit.go:150 g7", the
// file's base name plus the goroutine that logged.
func logSource(f *runtime.Frame) (function string, file string) {
	return "", fmt.Sprintf("%s:%d g%d", filepath.Base(f.File), f.Line, df.GetGID())
}

type Opts struct {
	Init     bool
	Checkout bool
	Commit   bool
	Status   bool
	Diff     bool
	Versions bool
	Export   bool
	Recover  bool
	Dir      string
	Path     []string
	Vid      string
	Config   string
}

// exit codes
const (
	rcUsage    = 22
	rcFail     = 42
	rcNotDflat = 43
)

// largest pair of files dflat diff will show
const maxDiffBytes = 1 << 20

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {

	usage := `dflat

Usage:
  dflat [--config=<file>] init [<dir>]
  dflat [--config=<file>] checkout
  dflat [--config=<file>] commit
  dflat [--config=<file>] status
  dflat [--config=<file>] diff [<path>...]
  dflat [--config=<file>] versions
  dflat [--config=<file>] export <vid> <dir>
  dflat [--config=<file>] recover

Options:
  -h --help          Show this screen.
  --version          Show version.
  --config=<file>    YAML settings file (default: $DFLAT_CONFIG).

The home is $DFLAT_HOME, or the nearest directory at or above the
working directory that holds dflat-info.txt.
`
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpOnly}
	o, err := parser.ParseArgs(usage, os.Args[1:], "0.10")
	if err != nil {
		return rcUsage
	}
	if len(o) == 0 {
		// help or version was printed
		return 0
	}
	var opts Opts
	err = o.Bind(&opts)
	if err != nil {
		log.Error(err)
		return rcUsage
	}
	log.Debug(opts)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Error(err)
		return rcUsage
	}
	log.SetLevel(cfg.Level(log.GetLevel()))

	switch true {
	case opts.Init:
		err = initHome(cfg, opts.Dir)
	case opts.Checkout:
		err = checkout(cfg)
	case opts.Commit:
		err = commit(cfg)
	case opts.Status:
		err = status(cfg)
	case opts.Diff:
		err = diff(cfg, opts.Path)
	case opts.Versions:
		err = versions(cfg)
	case opts.Export:
		err = export(cfg, opts.Vid, opts.Dir)
	case opts.Recover:
		err = recoverHome(cfg)
	}
	if err != nil {
		log.Error(err)
		var notDflat *df.NotDflatError
		if errors.As(err, &notDflat) {
			return rcNotDflat
		}
		return rcFail
	}
	return 0
}

func homedir() (dir string, err error) {
	dir = os.Getenv("DFLAT_HOME")
	if dir != "" {
		return
	}
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	return df.Find(cwd)
}

func openHome(cfg *config.Config) (h *df.Home, err error) {
	dir, err := homedir()
	if err != nil {
		return
	}
	h, err = df.Open(dir)
	if err != nil {
		return
	}
	h.Workers = cfg.Workers
	h.LockTimeout = cfg.LockTimeout
	log.WithField("home", h.Dir).Debug("opened")
	return
}

func initHome(cfg *config.Config, dir string) (err error) {
	if dir == "" {
		dir = os.Getenv("DFLAT_HOME")
	}
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return
		}
	}
	h, err := df.Home{Dir: dir, Workers: cfg.Workers, LockTimeout: cfg.LockTimeout}.Init()
	if err != nil {
		return
	}
	cur, err := h.Current()
	if err != nil {
		return
	}
	fmt.Printf("initialized %s\n", cur)
	return
}

func checkout(cfg *config.Config) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	v, err := h.CheckoutNew()
	if err != nil {
		return
	}
	fmt.Printf("checked out %s\n", v)
	return
}

func commit(cfg *config.Config) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	change, err := h.Commit()
	if err != nil {
		return
	}
	if change.NoChange() {
		fmt.Println("nothing to commit")
		return
	}
	fmt.Printf("committed %s\n", change)
	return
}

func status(cfg *config.Config) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	change, err := h.Status()
	if err != nil {
		return
	}
	if change.NoChange() {
		fmt.Println("nothing to commit")
		return
	}
	fmt.Printf("%s -> %s\n", change.From, change.To)
	for _, line := range statusLines(change.Delta) {
		fmt.Println(line)
	}
	return
}

// statusLines lists changed keys in key order, flagged A, M or D.
func statusLines(delta df.Delta) (lines []string) {
	for _, key := range delta.Added {
		lines = append(lines, "A "+key)
	}
	for _, key := range delta.Modified {
		lines = append(lines, "M "+key)
	}
	for _, key := range delta.Deleted {
		lines = append(lines, "D "+key)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i][2:] < lines[j][2:] })
	return
}

func diff(cfg *config.Config, paths []string) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	change, err := h.Status()
	if err != nil {
		return
	}
	if change.NoChange() {
		return
	}
	from, to := h.FullPath(change.From), h.FullPath(change.To)
	opt := textdiff.Options{MaxBytes: maxDiffBytes}
	for _, line := range statusLines(change.Delta) {
		flag, key := line[0], line[2:]
		if !wanted(key, paths) {
			continue
		}
		rel, err := df.DecodePath(key)
		if err != nil {
			return err
		}
		aName := change.From.String() + "/" + key
		bName := change.To.String() + "/" + key
		var body string
		switch flag {
		case 'A':
			b, err := os.ReadFile(filepath.Join(to, rel))
			if err != nil {
				return err
			}
			body, _ = textdiff.Added(bName, b, opt)
		case 'D':
			a, err := os.ReadFile(filepath.Join(from, rel))
			if err != nil {
				return err
			}
			body, _ = textdiff.Deleted(aName, a, opt)
		default:
			a, err := os.ReadFile(filepath.Join(from, rel))
			if err != nil {
				return err
			}
			b, err := os.ReadFile(filepath.Join(to, rel))
			if err != nil {
				return err
			}
			body, _ = textdiff.Unified(aName, bName, a, b, opt)
		}
		fmt.Print(body)
	}
	return
}

// wanted reports whether key is one of paths or lies under one of
// them.  No paths means everything.
func wanted(key string, paths []string) bool {
	if len(paths) == 0 {
		return true
	}
	for _, path := range paths {
		prefix := strings.TrimSuffix(df.EncodePath(filepath.Clean(path)), "/")
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			return true
		}
	}
	return false
}

func versions(cfg *config.Config) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	cur, err := h.Current()
	if err != nil {
		return
	}
	vs, err := h.Versions()
	if err != nil {
		return
	}
	for _, v := range vs {
		if v == cur {
			fmt.Printf("%s (current)\n", v)
		} else {
			fmt.Println(v)
		}
	}
	return
}

func export(cfg *config.Config, vid, dest string) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	v, err := df.ParseVersion(vid)
	if err != nil {
		return
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return
	}
	err = h.Reconstruct(v, dest)
	if err != nil {
		return
	}
	fmt.Printf("exported %s\n", v)
	return
}

func recoverHome(cfg *config.Config) (err error) {
	h, err := openHome(cfg)
	if err != nil {
		return
	}
	err = h.Recover()
	if err != nil {
		return
	}
	cur, err := h.Current()
	if err != nil {
		return
	}
	fmt.Printf("current is %s\n", cur)
	return
}
