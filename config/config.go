// Package config loads runtime options from defaults, an optional YAML file and the
// environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/on-the-ground/modelstore/log"
	"gopkg.in/yaml.v3"
)

// Options configures a runtime.
type Options struct {
	// NamespacePrefixWarning warns when an effect puts an action already prefixed with
	// its own namespace.
	NamespacePrefixWarning bool `yaml:"namespace_prefix_warning" env:"MODELSTORE_NAMESPACE_PREFIX_WARNING"`

	LogLevel       string `yaml:"log_level"       env:"MODELSTORE_LOG_LEVEL"`
	LogDevelopment bool   `yaml:"log_development" env:"MODELSTORE_LOG_DEVELOPMENT"`

	ActionLog ActionLog `yaml:"action_log"`
}

// ActionLog sizes the asynchronous action log.
type ActionLog struct {
	BufferSize int `yaml:"buffer_size" env:"MODELSTORE_ACTION_LOG_BUFFER_SIZE"`
	NumWorkers int `yaml:"num_workers" env:"MODELSTORE_ACTION_LOG_NUM_WORKERS"`
}

func Default() Options {
	return Options{
		NamespacePrefixWarning: true,
		LogLevel:               "info",
		ActionLog: ActionLog{
			BufferSize: 64,
			NumWorkers: 4,
		},
	}
}

// Load returns Default overridden by the YAML file at path, if path is not empty, and
// then by MODELSTORE_* environment variables.
func Load(path string) (Options, error) {
	opts := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Options{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &opts); err != nil {
			return Options{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

var ErrInvalidOptions = errors.New("invalid options")

func (o Options) Validate() error {
	if _, err := log.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.ActionLog.BufferSize < 0 {
		return fmt.Errorf("%w: action log buffer size %d", ErrInvalidOptions, o.ActionLog.BufferSize)
	}
	if o.ActionLog.NumWorkers < 0 {
		return fmt.Errorf("%w: action log workers %d", ErrInvalidOptions, o.ActionLog.NumWorkers)
	}
	return nil
}
