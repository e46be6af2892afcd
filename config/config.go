// Package config loads the runtime settings of the dflat command.
//
// Settings come from one YAML file named by the --config flag or the
// DFLAT_CONFIG environment variable.  With neither set, Default
// applies.  Unknown keys are an error.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "DFLAT_CONFIG"

type Config struct {
	// Workers bounds concurrent hashing while manifests are built.
	Workers int `yaml:"workers"`

	// LockTimeout is how long mutating commands wait for the home lock.
	// Zero fails at once when the lock is held.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// LogLevel is a logrus level name.  Empty leaves the level alone.
	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
	}
}

// Load reads the file at path, or the one DFLAT_CONFIG names when
// path is empty.  Values the file doesn't set keep their defaults.
func Load(path string) (cfg *Config, err error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg = Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err = dec.Decode(cfg)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() (err error) {
	if c.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.LockTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("lock_timeout must not be negative, got %v", c.LockTimeout))
	}
	if c.LogLevel != "" {
		if _, lerr := log.ParseLevel(c.LogLevel); lerr != nil {
			err = multierr.Append(err, lerr)
		}
	}
	return
}

// Level returns the configured log level, or fallback if none is set.
func (c *Config) Level(fallback log.Level) log.Level {
	if c.LogLevel == "" {
		return fallback
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fallback
	}
	return level
}
