package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for moments.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Store    StoreConfig    `toml:"store"`
	Cache    CacheConfig    `toml:"cache"`
	Session  SessionConfig  `toml:"session"`
	Registry RegistryConfig `toml:"registry"`
	Stories  StoriesConfig  `toml:"stories"`
}

// StoreConfig represents configuration for the object store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
// Credentials for the github type live in the session, not here.
type StoreConfig struct {
	Type string `toml:"type"` // "github" (default), "memory", "filesystem" or "s3"

	// GitHub-specific fields (only used when Type == "github")
	Owner      string `toml:"owner,omitempty"`
	Repo       string `toml:"repo,omitempty"`
	Branch     string `toml:"branch,omitempty"`
	APIBaseURL string `toml:"api_base_url,omitempty"`
	PagesHost  string `toml:"pages_host,omitempty"`
	UserAgent  string `toml:"user_agent,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// IsGitHub reports whether the store is the GitHub contents API, which is
// also what an unset type selects.
func (s StoreConfig) IsGitHub() bool {
	return s.Type == "" || s.Type == "github"
}

// CacheConfig represents configuration for the version token cache.
type CacheConfig struct {
	Type    string `toml:"type"`               // "sqlite" (default) or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SessionConfig controls where the encrypted session file lives and how
// its passphrase is obtained.
type SessionConfig struct {
	Path             string `toml:"path"`
	PassphraseEnv    string `toml:"passphrase_env"`
	ScryptWorkFactor int    `toml:"scrypt_work_factor"`
}

// RegistryConfig bounds the registration retry loop.
type RegistryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BackoffMS   int `toml:"backoff_ms"`
}

// Backoff returns BackoffMS as a duration.
func (r RegistryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMS) * time.Millisecond
}

// StoriesConfig holds story settings.
type StoriesConfig struct {
	TTLHours int `toml:"ttl_hours"`
}

// TTL returns TTLHours as a duration.
func (s StoriesConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

const (
	DefaultPassphraseEnv    = "MOMENTS_PASSPHRASE"
	DefaultScryptWorkFactor = 18
	DefaultMaxAttempts      = 3
	DefaultBackoffMS        = 300
	DefaultStoryTTLHours    = 48
)

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default. Paths are
// derived from BaseDir.
func (c *Config) ApplyDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Store.Type == "" {
		c.Store.Type = "github"
	}
	if c.Store.IsGitHub() && c.Store.Branch == "" {
		c.Store.Branch = "main"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "sqlite"
	}
	if c.Cache.Type == "sqlite" && c.Cache.DataDir == "" && c.BaseDir != "" {
		c.Cache.DataDir = filepath.Join(c.BaseDir, "cache")
	}
	if c.Session.Path == "" && c.BaseDir != "" {
		c.Session.Path = filepath.Join(c.BaseDir, "session.age")
	}
	if c.Session.PassphraseEnv == "" {
		c.Session.PassphraseEnv = DefaultPassphraseEnv
	}
	if c.Session.ScryptWorkFactor == 0 {
		c.Session.ScryptWorkFactor = DefaultScryptWorkFactor
	}
	if c.Registry.MaxAttempts == 0 {
		c.Registry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Registry.BackoffMS == 0 {
		c.Registry.BackoffMS = DefaultBackoffMS
	}
	if c.Stories.TTLHours == 0 {
		c.Stories.TTLHours = DefaultStoryTTLHours
	}
}

// Validate checks the values a backend cannot start without.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "", "github", "memory":
	case "filesystem":
		if c.Store.FSRoot == "" {
			return fmt.Errorf("filesystem store requires fs_root to be set")
		}
	case "s3":
		if c.Store.S3Bucket == "" {
			return fmt.Errorf("s3 store requires s3_bucket to be set")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}
	switch c.Cache.Type {
	case "memory":
	case "sqlite":
		if c.Cache.DataDir == "" {
			return fmt.Errorf("sqlite cache requires data_dir to be set")
		}
	default:
		return fmt.Errorf("unknown cache type: %s", c.Cache.Type)
	}
	if c.Registry.MaxAttempts < 1 {
		return fmt.Errorf("registry max_attempts must be positive, got %d", c.Registry.MaxAttempts)
	}
	if c.Stories.TTLHours < 1 {
		return fmt.Errorf("stories ttl_hours must be positive, got %d", c.Stories.TTLHours)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
