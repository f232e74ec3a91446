package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".bing4"
	fileName = "config.yaml"

	// Storage backends for downloaded images
	StorageDir   = "dir"
	StorageMinio = "minio"
)

// Config is the client configuration
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	DataDir        string        `yaml:"data_dir"` // logs and local.db live here
	Poll           PollConfig    `yaml:"poll"`
	Storage        StorageConfig `yaml:"storage"`
}

// PollConfig controls session status polling
type PollConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MaxRetries int           `yaml:"max_retries"`
}

// StorageConfig selects where downloaded images are written
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig holds S3-compatible object storage settings
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Default returns the built-in configuration
func Default() *Config {
	dataDir := dirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, dirName)
	}
	return &Config{
		BaseURL:        "http://localhost:8001",
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		DataDir:        dataDir,
		Poll: PollConfig{
			Interval:   10 * time.Second,
			MaxRetries: 60,
		},
		Storage: StorageConfig{
			Backend: StorageDir,
			Minio:   MinioConfig{Bucket: "pixel-images"},
		},
	}
}

// globalConfigPath returns ~/.bing4/config.yaml
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName, fileName), nil
}

// projectConfigPath returns .bing4/config.yaml in the working directory
func projectConfigPath() string {
	return filepath.Join(dirName, fileName)
}

// Load reads the project config, falling back to the global one, then
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	global, err := globalConfigPath()
	if err != nil {
		global = ""
	}
	return load(projectConfigPath(), global)
}

func load(paths ...string) (*Config, error) {
	cfg := Default()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = envStr("BING4_BASE_URL", c.BaseURL)
	c.RequestTimeout = envDuration("BING4_REQUEST_TIMEOUT", c.RequestTimeout)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.DataDir = envStr("BING4_DATA_DIR", c.DataDir)
	c.Poll.Interval = envDuration("BING4_POLL_INTERVAL", c.Poll.Interval)
	c.Poll.MaxRetries = envInt("BING4_POLL_MAX_RETRIES", c.Poll.MaxRetries)
	c.Storage.Backend = envStr("BING4_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Minio.Endpoint = envStr("BING4_MINIO_ENDPOINT", c.Storage.Minio.Endpoint)
	c.Storage.Minio.AccessKey = envStr("BING4_MINIO_ACCESS_KEY", c.Storage.Minio.AccessKey)
	c.Storage.Minio.SecretKey = envStr("BING4_MINIO_SECRET_KEY", c.Storage.Minio.SecretKey)
	c.Storage.Minio.Bucket = envStr("BING4_MINIO_BUCKET", c.Storage.Minio.Bucket)
	c.Storage.Minio.UseSSL = envBool("BING4_MINIO_USE_SSL", c.Storage.Minio.UseSSL)
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxRetries < 0 {
		return fmt.Errorf("poll.max_retries must not be negative, got %d", c.Poll.MaxRetries)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	switch c.Storage.Backend {
	case StorageDir:
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint must not be empty")
		}
		if c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio.bucket must not be empty")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageDir, StorageMinio, c.Storage.Backend)
	}
	return nil
}

// LogPath is where the TUI writes its log file
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "bing4.log")
}

// LocalDBPath is the client-local settings database
func (c *Config) LocalDBPath() string {
	return filepath.Join(c.DataDir, "local.db")
}

// SaveDefaultToGlobal writes the built-in defaults to ~/.bing4/config.yaml
// and returns the path. An existing file is kept unless overwrite is set.
func SaveDefaultToGlobal(overwrite bool) (string, error) {
	path, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists", path)
		}
	}
	return path, save(Default(), path)
}

func save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// may hold storage credentials
	return os.WriteFile(path, data, 0600)
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
