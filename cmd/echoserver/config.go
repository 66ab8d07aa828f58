package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EngineConfig tunes the actor.Engine backing the connection counter
// (spec section 2's data-flow paragraph: TCP components and actors
// compose through Pids even though they live on different goroutines).
type EngineConfig struct {
	ProcessCapacity     int `mapstructure:"process_capacity" validate:"required,min=1"`
	WorkerCount         int `mapstructure:"worker_count" validate:"required,min=1"`
	MailboxCapacity     int `mapstructure:"mailbox_capacity" validate:"required,min=1"`
	MaxMessagesPerCycle int `mapstructure:"max_messages_per_cycle" validate:"required,min=1"`
}

// ReactorConfig tunes the listener the reactor runs.
type ReactorConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
	StatsAddr  string `mapstructure:"stats_addr" validate:"required"`
}

// Config is the top-level echoserver configuration, loaded from YAML via
// viper with ECHOSERVER_-prefixed environment variable overrides, then
// struct-tag validated — the heavier of the two config idioms this
// repository's demos use (cmd/pingpong's is the lighter yaml.v2 one).
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Reactor ReactorConfig `mapstructure:"reactor"`
}

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ProcessCapacity:     16,
			WorkerCount:         2,
			MailboxCapacity:     64,
			MaxMessagesPerCycle: 8,
		},
		Reactor: ReactorConfig{
			ListenAddr: "127.0.0.1:0",
			StatsAddr:  "127.0.0.1:8089",
		},
	}
}

// loadConfig reads configPath (if non-empty) as YAML on top of the
// defaults, applies ECHOSERVER_*-prefixed environment overrides, and
// validates the result.
func loadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ECHOSERVER")
	v.AutomaticEnv()

	v.SetDefault("engine.process_capacity", cfg.Engine.ProcessCapacity)
	v.SetDefault("engine.worker_count", cfg.Engine.WorkerCount)
	v.SetDefault("engine.mailbox_capacity", cfg.Engine.MailboxCapacity)
	v.SetDefault("engine.max_messages_per_cycle", cfg.Engine.MaxMessagesPerCycle)
	v.SetDefault("reactor.listen_addr", cfg.Reactor.ListenAddr)
	v.SetDefault("reactor.stats_addr", cfg.Reactor.StatsAddr)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("echoserver: read config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("echoserver: decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("echoserver: invalid config: %w", err)
	}
	return cfg, nil
}
