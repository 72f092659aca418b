// Package config loads docgraph settings from docgraph.yml and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/docgraph/internal/graph"
)

// Backend names a graph.Database implementation.
type Backend string

const (
	BackendArango Backend = "arango"
	BackendKuzu   Backend = "kuzu"
	BackendMemory Backend = "memory"
)

// Defaults used when neither the file nor the environment set a value.
const (
	DefaultURL       = "http://localhost:8529"
	DefaultDatabase  = "aragog_test"
	DefaultUser      = "test"
	DefaultPassword  = "test"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 100
)

// Config holds connection and execution settings.
type Config struct {
	Backend   Backend             `yaml:"backend,omitempty"`
	Arango    ArangoConfig        `yaml:"arango,omitempty"`
	Kuzu      KuzuConfig          `yaml:"kuzu,omitempty"`
	BatchSize int                 `yaml:"batchSize,omitempty"`
	LogLevel  string              `yaml:"logLevel,omitempty"`
	Schema    []graph.TableSchema `yaml:"schema,omitempty"`
}

// ArangoConfig addresses an ArangoDB server. Token wins over User/Password.
type ArangoConfig struct {
	URL      string        `yaml:"url,omitempty"`
	Database string        `yaml:"database,omitempty"`
	User     string        `yaml:"user,omitempty"`
	Password string        `yaml:"password,omitempty"`
	Token    string        `yaml:"token,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// KuzuConfig locates the embedded database. An empty Path opens an
// in-memory one.
type KuzuConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load attempts to read docgraph.yml or docgraph.yaml from the given
// directory. A missing file is not an error: the defaults are returned.
// Environment overrides are applied in both cases.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"docgraph.yml", "docgraph.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}
	cfg := &Config{}
	return cfg, cfg.finish()
}

// LoadFile reads the config at path. Unlike Load, a missing file is an
// error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.applyDefaults()
	return c.Validate()
}

// applyEnv overrides file settings with DB_HOST, DB_NAME, DB_USER,
// DB_PWD, DB_TOKEN, DB_TIMEOUT and DOCGRAPH_BACKEND.
func (c *Config) applyEnv() error {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Arango.URL, "DB_HOST")
	set(&c.Arango.Database, "DB_NAME")
	set(&c.Arango.User, "DB_USER")
	set(&c.Arango.Password, "DB_PWD")
	set(&c.Arango.Token, "DB_TOKEN")
	if v := os.Getenv("DOCGRAPH_BACKEND"); v != "" {
		c.Backend = Backend(v)
	}
	if v := os.Getenv("DB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			secs, nerr := strconv.Atoi(v)
			if nerr != nil {
				return fmt.Errorf("DB_TIMEOUT %q: %w", v, err)
			}
			d = time.Duration(secs) * time.Second
		}
		c.Arango.Timeout = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendArango
	}
	if c.Arango.URL == "" {
		c.Arango.URL = DefaultURL
	}
	if c.Arango.Database == "" {
		c.Arango.Database = DefaultDatabase
	}
	if c.Arango.Token == "" {
		if c.Arango.User == "" {
			c.Arango.User = DefaultUser
		}
		if c.Arango.Password == "" {
			c.Arango.Password = DefaultPassword
		}
	}
	if c.Arango.Timeout <= 0 {
		c.Arango.Timeout = DefaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate rejects unknown backends.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendArango, BackendKuzu, BackendMemory:
		return nil
	}
	return fmt.Errorf("unknown backend %q (want arango, kuzu or memory)", c.Backend)
}
