package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	// Autoload reads a local .env file (if present) when this package is
	// imported, the same convention rayboyd-phase4-server's config
	// package uses for its own environment overrides.
	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v2"
)

// Config tunes the pingpong demo's Engine and the exchange count it
// drives through it. It is intentionally smaller than echoserver's
// Config — this demo exercises only package actor, not the reactor.
type Config struct {
	ProcessCapacity     int `yaml:"process_capacity" validate:"required,min=2"`
	WorkerCount         int `yaml:"worker_count" validate:"required,min=1"`
	MailboxCapacity     int `yaml:"mailbox_capacity" validate:"required,min=1"`
	MaxMessagesPerCycle int `yaml:"max_messages_per_cycle" validate:"required,min=1"`
	Exchanges           int `yaml:"exchanges" validate:"required,min=1"`
}

func defaultConfig() *Config {
	return &Config{
		ProcessCapacity:     4,
		WorkerCount:         2,
		MailboxCapacity:     16,
		MaxMessagesPerCycle: 4,
		Exchanges:           1000,
	}
}

// loadConfig reads pingpong.yaml from the current directory when present,
// otherwise falls back to defaultConfig. PINGPONG_EXCHANGES in the
// environment (or a local .env file, via godotenv/autoload above)
// overrides the file value when it parses as a positive integer, and is
// ignored otherwise, mirroring env.go's applyEnvOverides pattern.
func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile("pingpong.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("pingpong: parse pingpong.yaml: %w", err)
		}
	}

	if val, ok := os.LookupEnv("PINGPONG_EXCHANGES"); ok {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil && n > 0 {
			cfg.Exchanges = n
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("pingpong: invalid config: %w", err)
	}
	return cfg, nil
}
