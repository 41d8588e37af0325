// Package config loads flowmesh runtime configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the flowmesh.yaml file. Zero values fall back to
// the defaults applied in applyDefaults.
type Config struct {
	Router  RouterConfig  `yaml:"router"`
	Store   StoreConfig   `yaml:"store"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Sweeper SweeperConfig `yaml:"sweeper"`
}

type RouterConfig struct {
	// ChannelCapacity bounds each subject channel.
	ChannelCapacity int `yaml:"channel_capacity"`

	// DeadLetterCapacity, when positive, enables the dead-letter channel.
	DeadLetterCapacity int `yaml:"dead_letter_capacity"`
}

type StoreConfig struct {
	// Type selects the event store backend: memory, file, or redis.
	Type string `yaml:"type"`

	// Dir is the stream directory for the file backend.
	Dir string `yaml:"dir"`

	// URL is the connection URL for the redis backend.
	URL string `yaml:"url"`
}

type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"` // gochannel or kafka
	Topic   string `yaml:"topic"`
	Pattern string `yaml:"pattern"`
	Brokers string `yaml:"brokers"`
}

type SweeperConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

// Load reads and parses the configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()

	return cfg
}

func (c *Config) applyDefaults() {
	if c.Router.ChannelCapacity <= 0 {
		c.Router.ChannelCapacity = 10000
	}

	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}

	if c.Store.Dir == "" {
		c.Store.Dir = "./data/events"
	}

	if c.Bridge.Channel == "" {
		c.Bridge.Channel = "gochannel"
	}

	if c.Bridge.Topic == "" {
		c.Bridge.Topic = "flowmesh.events"
	}

	if c.Bridge.Pattern == "" {
		c.Bridge.Pattern = "event.>"
	}

	if c.Sweeper.Spec == "" {
		c.Sweeper.Spec = "@every 30s"
	}
}
