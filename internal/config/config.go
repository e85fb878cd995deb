package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration, resolved from the environment with an
// optional YAML overlay (UPDRAFT_CONFIG).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig configures the ops HTTP listener (health and metrics).
type ServerConfig struct {
	Host string `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port int    `env:"SERVER_PORT,default=8080" yaml:"port"`
}

// LoggingConfig configures pkg/logger.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=text" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=" yaml:"file_prefix"`
}

// DatabaseConfig configures the pooled relational store handle.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres" yaml:"driver"`
	DSN             string `env:"DATABASE_URL,default=" yaml:"dsn"`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=10" yaml:"max_open_conns"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300" yaml:"conn_max_lifetime"` // seconds
}

// StorageConfig configures the object store backing blob payloads.
type StorageConfig struct {
	Root    string `env:"STORAGE_ROOT,default=./data/blobs" yaml:"root"`
	BaseURL string `env:"STORAGE_BASE_URL,default=http://localhost:8080/blobs" yaml:"base_url"`
}

// Load reads configuration: .env (best effort), then the environment, then
// the optional YAML file named by UPDRAFT_CONFIG.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("UPDRAFT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	return &cfg, nil
}
