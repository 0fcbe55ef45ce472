package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.cadenza/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8098
// database:
//   path: ~/.cadenza/cadenza.db
// redis:
//   addr: 127.0.0.1:6379
// auth:
//   token_hashes:
//     - $2a$10$...
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Memory   MemoryConfig   `yaml:"memory"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

// DatabaseConfig selects the sqlite file backing conversations and messages.
type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

// RedisConfig is optional; when Addr is empty the presence store is disabled.
type RedisConfig struct {
	Addr     *string `yaml:"addr"`
	Password *string `yaml:"password"`
	DB       *int    `yaml:"db"`
}

// AuthConfig holds bcrypt hashes of accepted bearer tokens.
// An empty list disables authentication (local single-user mode).
type AuthConfig struct {
	TokenHashes []string `yaml:"token_hashes"`
}

// MemoryConfig configures the vector memory store.
type MemoryConfig struct {
	VectorStorePath   *string `yaml:"vector_store_path"`
	EmbeddingProvider *string `yaml:"embedding_provider"`
	EmbeddingModel    *string `yaml:"embedding_model"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8098
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".cadenza")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.cadenza/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DatabasePath returns the sqlite path, defaulting to ~/.cadenza/cadenza.db.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "cadenza.db"
	}
	return filepath.Join(home, ".cadenza", "cadenza.db")
}

// RedisAddr returns the redis address or "" when the presence store is disabled.
func (c *AppConfig) RedisAddr() string {
	if c == nil || c.Redis.Addr == nil {
		return ""
	}
	return strings.TrimSpace(*c.Redis.Addr)
}

func (c *AppConfig) RedisPassword() string {
	if c == nil || c.Redis.Password == nil {
		return ""
	}
	return *c.Redis.Password
}

func (c *AppConfig) RedisDB() int {
	if c == nil || c.Redis.DB == nil {
		return 0
	}
	return *c.Redis.DB
}

// VectorStorePath returns the chromem persistence dir, or "" for in-memory.
func (c *AppConfig) VectorStorePath() string {
	if c == nil || c.Memory.VectorStorePath == nil {
		return ""
	}
	return strings.TrimSpace(*c.Memory.VectorStorePath)
}

func (c *AppConfig) EmbeddingProvider() string {
	if c == nil || c.Memory.EmbeddingProvider == nil {
		return ""
	}
	return *c.Memory.EmbeddingProvider
}

func (c *AppConfig) EmbeddingModel() string {
	if c == nil || c.Memory.EmbeddingModel == nil {
		return ""
	}
	return *c.Memory.EmbeddingModel
}

func ptr[T any](v T) *T { return &v }
