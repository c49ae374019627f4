// Package config loads the syncctl configuration file.
//
// The file is YAML. Missing keys keep their defaults, command line flags
// override file values.
//
//	replica_id: laptop
//	db_path: /var/lib/synccore/replica.db
//	hub_path: /srv/synccore/hub.sqlite
//	workers: 4
//	strategies:
//	  default: field_level_merge
//	  kinds:
//	    note: keep_both
//	  custom:
//	    stock: numeric_max
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/resolver"
	"github.com/iudanet/synccore/internal/validation"
)

const (
	// DefaultDBPath is the local replica file used when none is configured
	DefaultDBPath = "synccore.db"
	// DefaultWorkers bounds concurrent reconciliations
	DefaultWorkers = 4
	// MaxWorkers is the upper bound for workers
	MaxWorkers = 64
)

// Config is the syncctl configuration.
type Config struct {
	Strategies  Strategies `yaml:"strategies"`
	ReplicaID   string     `yaml:"replica_id,omitempty"`
	DBPath      string     `yaml:"db_path"`
	HubPath     string     `yaml:"hub_path,omitempty"`
	LogLevel    string     `yaml:"log_level"`
	MetricsFile string     `yaml:"metrics_file,omitempty"`
	Workers     int        `yaml:"workers"`
	Sealed      bool       `yaml:"sealed"`
}

// Strategies maps record kinds to conflict resolution strategies.
type Strategies struct {
	Kinds   map[string]string `yaml:"kinds,omitempty"`
	Custom  map[string]string `yaml:"custom,omitempty"`
	Default string            `yaml:"default"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DBPath:   DefaultDBPath,
		LogLevel: "info",
		Workers:  DefaultWorkers,
		Strategies: Strategies{
			Default: resolver.FieldLevelMerge.String(),
		},
	}
}

// Load reads the configuration file at path.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks every value without building the resolver.
func (c *Config) Validate() error {
	if c.ReplicaID != "" {
		if err := validation.ValidateReplicaID(c.ReplicaID); err != nil {
			return err
		}
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	_, err := c.ResolverConfig()
	return err
}

// Level parses the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ResolverConfig builds the resolver configuration for records.
func (c *Config) ResolverConfig() (*resolver.Config, error) {
	rc := resolver.NewConfig()

	if c.Strategies.Default != "" {
		s, err := resolver.ParseStrategy(c.Strategies.Default)
		if err != nil {
			return nil, fmt.Errorf("strategies.default: %w", err)
		}
		if err := rc.SetDefault(s); err != nil {
			return nil, fmt.Errorf("strategies.default: %w", err)
		}
	}

	for _, kind := range sortedKeys(c.Strategies.Kinds) {
		if err := validation.ValidateKind(kind); err != nil {
			return nil, fmt.Errorf("strategies.kinds: %w", err)
		}
		s, err := resolver.ParseStrategy(c.Strategies.Kinds[kind])
		if err != nil {
			return nil, fmt.Errorf("strategies.kinds.%s: %w", kind, err)
		}
		if err := resolver.ConfigureKind[*models.Record](rc, kind, s); err != nil {
			return nil, fmt.Errorf("strategies.kinds.%s: %w", kind, err)
		}
	}

	for _, kind := range sortedKeys(c.Strategies.Custom) {
		if err := validation.ValidateKind(kind); err != nil {
			return nil, fmt.Errorf("strategies.custom: %w", err)
		}
		if _, dup := c.Strategies.Kinds[kind]; dup {
			return nil, fmt.Errorf("strategies.custom.%s: kind already has a strategy", kind)
		}
		merge, err := LookupMerge(c.Strategies.Custom[kind])
		if err != nil {
			return nil, fmt.Errorf("strategies.custom.%s: %w", kind, err)
		}
		if err := resolver.ConfigureKindCustom(rc, kind, merge); err != nil {
			return nil, fmt.Errorf("strategies.custom.%s: %w", kind, err)
		}
	}

	return rc, nil
}

// Resolver builds a resolver from the configured strategies.
func (c *Config) Resolver() (*resolver.Resolver, error) {
	rc, err := c.ResolverConfig()
	if err != nil {
		return nil, err
	}
	return resolver.New(rc)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
