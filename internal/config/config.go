// Package config handles configuration loading and validation for syncly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syncly/syncly/pkg/bytesize"
)

// Backend types.
const (
	TypeLocal  = "local"
	TypeS3     = "s3"
	TypeMemory = "memory"
)

// BackendConfig holds the configuration for one pooled backend.
type BackendConfig struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`            // "local", "s3" or "memory"
	Quota string `yaml:"quota,omitempty"` // size string, e.g. "15GB"

	// Local backend
	Path string `yaml:"path,omitempty"`

	// S3 backend
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

// QuotaBytes parses the quota size string.
func (b *BackendConfig) QuotaBytes() (int64, error) {
	if b.Quota == "" {
		return 0, fmt.Errorf("backend %q has no quota", b.ID)
	}
	return bytesize.Parse(b.Quota)
}

// Config is the root syncly configuration.
type Config struct {
	MetadataFile string          `yaml:"metadata_file"` // persisted FileRecord directory
	DownloadDir  string          `yaml:"download_dir"`  // default download destination
	OpTimeout    string          `yaml:"op_timeout"`    // per backend call, e.g. "30s"
	Backends     []BackendConfig `yaml:"backends"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".syncly", "config.yaml")
	}
	return "syncly.yaml"
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(configDir string) {
	if c.MetadataFile == "" {
		c.MetadataFile = filepath.Join(configDir, "metadata.json")
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "downloads"
	}
	if c.OpTimeout == "" {
		c.OpTimeout = "30s"
	}
	c.MetadataFile = expandHome(c.MetadataFile)
	c.DownloadDir = expandHome(c.DownloadDir)
	for i := range c.Backends {
		c.Backends[i].Path = expandHome(c.Backends[i].Path)
	}
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Validate checks the configuration for missing or conflicting values.
func (c *Config) Validate() error {
	if _, err := c.Timeout(); err != nil {
		return fmt.Errorf("invalid op_timeout: %w", err)
	}

	seen := make(map[string]bool)
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.ID == "" {
			return fmt.Errorf("backend %d has no id", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate backend id %q", b.ID)
		}
		seen[b.ID] = true

		if _, err := b.QuotaBytes(); err != nil {
			return fmt.Errorf("backend %q: invalid quota: %w", b.ID, err)
		}

		switch b.Type {
		case TypeLocal:
			if b.Path == "" {
				return fmt.Errorf("backend %q: local backend needs a path", b.ID)
			}
		case TypeS3:
			if b.Endpoint == "" || b.Bucket == "" {
				return fmt.Errorf("backend %q: s3 backend needs endpoint and bucket", b.ID)
			}
		case TypeMemory:
			// nothing beyond the quota
		default:
			return fmt.Errorf("backend %q: unknown type %q", b.ID, b.Type)
		}
	}
	return nil
}

// Timeout parses the per-call timeout.
func (c *Config) Timeout() (time.Duration, error) {
	return time.ParseDuration(c.OpTimeout)
}

// Save writes the configuration back to path, creating the parent
// directory if needed. Used by `syncly backends add`.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
