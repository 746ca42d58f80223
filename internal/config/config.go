// Package config loads the rxq configuration file.
//
// The file is YAML and decoded strictly: unknown keys are errors. Every
// field has a default, so an empty file is a valid configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Engine kinds.
const (
	EngineJournal = "journal"
	EngineNATS    = "nats"
)

// Config is the root of the configuration file.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	Catalog CatalogConfig `yaml:"catalog"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// EngineConfig selects where operations are dispatched.
type EngineConfig struct {
	Kind string `yaml:"kind"` // journal | nats
	// IRVersion is a semver constraint the current IR version must satisfy,
	// e.g. "^1.0". Empty accepts any version.
	IRVersion string        `yaml:"ir_version"`
	Journal   JournalConfig `yaml:"journal"`
	NATS      NATSConfig    `yaml:"nats"`
}

// JournalConfig configures the SQLite journal engine.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS engine.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CatalogConfig points at the CUE binding catalog.
type CatalogConfig struct {
	Dir string `yaml:"dir"`
}

// MetricsConfig toggles dispatch metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			Kind:      EngineJournal,
			IRVersion: "^1.0",
			Journal:   JournalConfig{Path: "rxq.db"},
			NATS: NATSConfig{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "rxq.ops",
				Timeout:       5 * time.Second,
			},
		},
		Catalog: CatalogConfig{Dir: "catalog"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	switch c.Engine.Kind {
	case EngineJournal:
		if c.Engine.Journal.Path == "" {
			errs = append(errs, errors.New("engine.journal.path is required"))
		}
	case EngineNATS:
		if c.Engine.NATS.URL == "" {
			errs = append(errs, errors.New("engine.nats.url is required"))
		}
		if c.Engine.NATS.SubjectPrefix == "" || strings.ContainsAny(c.Engine.NATS.SubjectPrefix, " *>") {
			errs = append(errs, fmt.Errorf("engine.nats.subject_prefix: invalid subject %q", c.Engine.NATS.SubjectPrefix))
		}
		if c.Engine.NATS.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("engine.nats.timeout must be positive, got %s", c.Engine.NATS.Timeout))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind: must be %q or %q, got %q", EngineJournal, EngineNATS, c.Engine.Kind))
	}

	if c.Engine.IRVersion != "" {
		if _, err := semver.NewConstraint(c.Engine.IRVersion); err != nil {
			errs = append(errs, fmt.Errorf("engine.ir_version: %w", err))
		}
	}
	return errors.Join(errs...)
}
