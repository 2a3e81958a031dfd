package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Store describes the remote document collection for one environment.
type Store struct {
	Kind       string `yaml:"kind"`       // "postgres", "sqlite", "mssql"
	DSN        string `yaml:"dsn"`        // may reference env vars ($VAR / ${VAR})
	Collection string `yaml:"collection"` // table holding the documents
}

// Upload bounds a single run's remote writes.
type Upload struct {
	BatchSize    int  `yaml:"batch_size"`
	Workers      int  `yaml:"workers"`
	SkipExisting bool `yaml:"skip_existing"`
}

// Config is the full pipeline configuration: one store block per environment
// plus shared upload settings.
type Config struct {
	Envs   map[string]Store `yaml:"envs"`
	Upload Upload           `yaml:"upload"`

	// Dataset points at the local tabular dataset consumed by `ingest local`.
	Dataset struct {
		Path    string  `yaml:"path"`
		Options Options `yaml:"options"`
	} `yaml:"dataset"`
}

const (
	defaultBatchSize = 50
	defaultWorkers   = 1
)

// Load reads and decodes a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Absent fields keep the pre-seeded value, so skipping existing
	// documents is the default.
	var cfg Config
	cfg.Upload.SkipExisting = true
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Upload.BatchSize <= 0 {
		cfg.Upload.BatchSize = defaultBatchSize
	}
	if cfg.Upload.Workers <= 0 {
		cfg.Upload.Workers = defaultWorkers
	}

	return &cfg, nil
}

// Env resolves the store block for the named environment. The DSN is
// expanded against the process environment so credentials can stay out of
// the config file.
func (c *Config) Env(name string) (Store, error) {
	st, ok := c.Envs[name]
	if !ok {
		names := make([]string, 0, len(c.Envs))
		for k := range c.Envs {
			names = append(names, k)
		}
		sort.Strings(names)
		return Store{}, fmt.Errorf("environment %q not found in config (available: %v)", name, names)
	}

	st.DSN = os.ExpandEnv(st.DSN)
	if st.Collection == "" {
		st.Collection = "recipes"
	}
	return st, nil
}

// Severity levels for configuration issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one finding from Validate.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Validate checks a loaded config for problems that would fail a run later.
// It reports everything it finds rather than stopping at the first problem.
func Validate(c *Config) []Issue {
	var issues []Issue

	if len(c.Envs) == 0 {
		issues = append(issues, Issue{SeverityError, "envs", "no environments defined"})
	}
	for name, st := range c.Envs {
		if st.Kind == "" {
			issues = append(issues, Issue{SeverityError, "envs." + name + ".kind", "store kind must be set"})
		}
		if st.DSN == "" {
			issues = append(issues, Issue{SeverityError, "envs." + name + ".dsn", "store dsn must be set"})
		}
	}
	if c.Upload.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "upload.batch_size", "batch_size must be positive"})
	}
	if c.Upload.Workers > 16 {
		issues = append(issues, Issue{SeverityWarning, "upload.workers", "more than 16 upload workers is rarely useful"})
	}

	return issues
}
