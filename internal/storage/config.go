// Manages server configuration stored in a YAML file.

package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/maruel/flatdb/internal/jsondb"
	"gopkg.in/yaml.v3"
)

// ServerConfig stores all server-wide configuration.
// Loaded from the config file, created with defaults if missing.
type ServerConfig struct {
	// JWTSecret is the hex encoded secret used to sign JWT tokens.
	// Auto-generated if empty on first load.
	JWTSecret string `yaml:"jwt_secret"`

	// AdminPasswordHash is the bcrypt hash of the password exchanged for a
	// write token. Empty disables all write commands.
	AdminPasswordHash string `yaml:"admin_password_hash"`

	// DataDir is the directory relative collection paths are resolved
	// against. Relative to the config file directory when not absolute.
	DataDir string `yaml:"data_dir"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `yaml:"rate_limits"`

	// Collections lists the served collections.
	Collections []CollectionConfig `yaml:"collections"`

	// path is where the file was loaded from.
	path string
}

// CollectionConfig describes one collection in the config file.
type CollectionConfig struct {
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	Default       string `yaml:"default,omitempty"`
	AutoKey       bool   `yaml:"auto_key"`
	AutoIncrement bool   `yaml:"auto_increment"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// AuthRatePerMin limits token requests. 0 means unlimited.
	AuthRatePerMin int `yaml:"auth_rate_per_min"`

	// WriteRatePerMin limits write commands. 0 means unlimited.
	WriteRatePerMin int `yaml:"write_rate_per_min"`

	// ReadRatePerMin limits read commands. 0 means unlimited.
	ReadRatePerMin int `yaml:"read_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.AuthRatePerMin < 0 {
		return errors.New("auth_rate_per_min must be non-negative")
	}
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.ReadRatePerMin < 0 {
		return errors.New("read_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		AuthRatePerMin:  5,    // 5 req/min for token requests
		WriteRatePerMin: 120,  // 120 req/min for writes
		ReadRatePerMin:  6000, // 6k req/min for reads
	}
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	secret, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return fmt.Errorf("jwt_secret must be hex encoded: %w", err)
	}
	if len(secret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	return c.validateSettings()
}

// validateSettings checks everything but the secret.
func (c *ServerConfig) validateSettings() error {
	if c.MaxRequestBodyBytes < 0 {
		return errors.New("max_request_body_bytes must be non-negative")
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	seen := make(map[string]bool, len(c.Collections))
	for i := range c.Collections {
		cc := &c.Collections[i]
		if !collectionName.MatchString(cc.Name) {
			return fmt.Errorf("collections[%d]: invalid name %q", i, cc.Name)
		}
		if seen[cc.Name] {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, cc.Name)
		}
		seen[cc.Name] = true
		if cc.Path == "" {
			return fmt.Errorf("collection %q: path is required", cc.Name)
		}
		if cc.AutoIncrement && !cc.AutoKey {
			return fmt.Errorf("collection %q: auto_increment requires auto_key", cc.Name)
		}
		if cc.Default != "" {
			if _, err := jsondb.ParseDocument([]byte(cc.Default)); err != nil {
				return fmt.Errorf("collection %q: invalid default: %w", cc.Name, err)
			}
		}
	}
	return nil
}

// Secret returns the decoded JWT secret.
func (c *ServerConfig) Secret() []byte {
	b, _ := hex.DecodeString(c.JWTSecret)
	return b
}

// Path returns the file the configuration was loaded from.
func (c *ServerConfig) Path() string {
	return c.path
}

// CollectionConfigs returns the engine configuration of every collection,
// with paths resolved against the data directory.
func (c *ServerConfig) CollectionConfigs() []jsondb.Config {
	dataDir := c.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(filepath.Dir(c.path), dataDir)
	}
	out := make([]jsondb.Config, len(c.Collections))
	for i, cc := range c.Collections {
		p := cc.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(dataDir, p)
		}
		out[i] = jsondb.Config{
			Name:          cc.Name,
			Path:          p,
			Default:       cc.Default,
			AutoKey:       cc.AutoKey,
			AutoIncrement: cc.AutoIncrement,
		}
	}
	return out
}

// defaultServerConfig is written when no config file exists.
func defaultServerConfig() ServerConfig {
	return ServerConfig{
		DataDir:             "data",
		MaxRequestBodyBytes: 10 * 1024 * 1024, // 10 MiB
		RateLimits:          DefaultRateLimits(),
		Collections: []CollectionConfig{
			{Name: "items", Path: "items.json", AutoKey: true, AutoIncrement: true},
		},
	}
}

// LoadServerConfig loads configuration from path.
// Creates the file with defaults if it doesn't exist.
// Auto-generates JWTSecret if empty.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg, err := parseServerConfig(path)
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return nil, err
	}

	// Auto-generate JWT secret if missing
	modified := false
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		modified = true
	}

	// Save if we created defaults or generated a secret
	if modified || missing {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// ReadServerConfig loads configuration from path without ever writing it.
// The file must exist. The JWT secret is only checked when present, since a
// running server keeps the secret it started with.
func ReadServerConfig(path string) (*ServerConfig, error) {
	cfg, err := parseServerConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret != "" {
		err = cfg.Validate()
	} else {
		err = cfg.validateSettings()
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// parseServerConfig returns the defaults overlaid with the file at path. When
// the file does not exist it returns the defaults and an error matching
// os.ErrNotExist.
func parseServerConfig(path string) (*ServerConfig, error) {
	cfg := defaultServerConfig()
	cfg.path = path
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the -config flag
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, fmt.Errorf("%s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	// Explicit values in the file replace the defaults, including the
	// collection list.
	cfg.Collections = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *ServerConfig) Save() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for config directories
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	return nil
}
