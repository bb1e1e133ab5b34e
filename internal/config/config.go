package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAppID    = "com.github.danhigham.multigram"
	DefaultLogLevel = "warn"

	// EnvPrefix prefixes the environment variables that override the file.
	EnvPrefix = "multigram"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	LogLevel string         `yaml:"log_level"`
	DataDir  string         `yaml:"data_dir"`
	AppID    string         `yaml:"app_id"`
}

type TelegramConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
}

// env holds the MULTIGRAM_* overrides. Unset variables leave the file value.
type env struct {
	APIID    int    `envconfig:"API_ID"`
	APIHash  string `envconfig:"API_HASH"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	DataDir  string `envconfig:"DATA_DIR"`
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "multigram")
}

// DefaultDataDir is where the account databases live unless configured.
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(dataDir, "multigram")
}

// Load reads the YAML file at path, then applies a .env file next to it and
// the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.apply(e)

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}

	return &cfg, nil
}

func (c *Config) apply(e env) {
	if e.APIID != 0 {
		c.Telegram.APIID = e.APIID
	}
	if e.APIHash != "" {
		c.Telegram.APIHash = e.APIHash
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.DataDir != "" {
		c.DataDir = e.DataDir
	}
}
