package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Voting   VotingConfig   `yaml:"voting"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// StorageConfig selects the persistence backend.
// "postgres" is the durable backend; "memory" keeps everything in-process
// (no TTL enforcement) and is intended for development and tests.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// VotingConfig holds poll and hotel-voting defaults
type VotingConfig struct {
	DefaultPollDurationSec int `yaml:"default_poll_duration_sec"`
	HotelVotingDurationSec int `yaml:"hotel_voting_duration_sec"`
	SweepIntervalMillis    int `yaml:"sweep_interval_millis"`
	LinkValidityMinutes    int `yaml:"link_validity_minutes"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Storage.Backend != "postgres" && cfg.Storage.Backend != "memory" {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "postgres"
	}
	if c.Voting.DefaultPollDurationSec == 0 {
		c.Voting.DefaultPollDurationSec = 300
	}
	if c.Voting.HotelVotingDurationSec == 0 {
		c.Voting.HotelVotingDurationSec = 300
	}
	if c.Voting.SweepIntervalMillis == 0 {
		c.Voting.SweepIntervalMillis = 1000
	}
	if c.Voting.LinkValidityMinutes == 0 {
		c.Voting.LinkValidityMinutes = 30
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
