/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/db2kit/pkg/wdc"
)

// Config represents the db2kit configuration
type Config struct {
	SchemaDir   string   `yaml:"schema_dir"`
	SnapshotDir string   `yaml:"snapshot_dir"`
	Keys        []string `yaml:"keys,omitempty"`
	Decoder     Decoder  `yaml:"decoder"`
	Server      Server   `yaml:"server"`
	Logging     Logging  `yaml:"logging"`
}

// Decoder contains table decoding configuration
type Decoder struct {
	// Workers bounds the sections decoded concurrently; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Server contains the query API configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		SchemaDir:   "./schemas",
		SnapshotDir: "./data",
		Server: Server{
			Port: 8080,
			Bind: "127.0.0.1",
		},
		Logging: Logging{
			Level:  "info",
			Format: "logfmt",
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "invalid config path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if _, err := config.KeyRing(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// The API key is a secret.
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// KeyRing returns the content encryption keys listed in the configuration.
// Keys are 64-bit identifiers written in hex, with or without a 0x prefix.
func (c *Config) KeyRing() (wdc.StaticKeyRing, error) {
	ids := make([]uint64, 0, len(c.Keys))
	for _, k := range c.Keys {
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(k), "0x"), 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid key id %q", k)
		}
		ids = append(ids, id)
	}
	return wdc.NewStaticKeyRing(ids...), nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./db2kit.yaml"
	}

	// ~/.config/db2kit/config.yaml
	configDir := filepath.Join(homeDir, ".config", "db2kit")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
