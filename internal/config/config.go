// Package config loads and persists the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration, mirroring the [network],
// [transfer] and [ui] sections of config.toml.
type Config struct {
	Network  NetworkConfig  `toml:"network"`
	Transfer TransferConfig `toml:"transfer"`
	UI       UIConfig       `toml:"ui"`
}

type NetworkConfig struct {
	DiscoveryPort     int `toml:"discovery_port"`
	TransferPort      int `toml:"transfer_port"`
	WebPort           int `toml:"web_port"`
	BroadcastInterval int `toml:"broadcast_interval"`
}

type TransferConfig struct {
	ChunkSize     int `toml:"chunk_size"`
	MaxConcurrent int `toml:"max_concurrent"`
}

type UIConfig struct {
	Theme string `toml:"theme"`
}

var mu sync.Mutex

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			DiscoveryPort:     7878,
			TransferPort:      7879,
			WebPort:           3030,
			BroadcastInterval: 2,
		},
		Transfer: TransferConfig{
			ChunkSize:     65536,
			MaxConcurrent: 5,
		},
		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// Load reads configuration from path, generating it with defaults if
// absent, then applies LANSHARE_-prefixed environment overrides.
func Load(path string) (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := save(path, cfg); err != nil {
			return Config{}, fmt.Errorf("failed to write default config: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	overrideWithEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("LANSHARE_DISCOVERY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.DiscoveryPort = n
		}
	}
	if v := os.Getenv("LANSHARE_TRANSFER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.TransferPort = n
		}
	}
	if v := os.Getenv("LANSHARE_WEB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.WebPort = n
		}
	}
	if v := os.Getenv("LANSHARE_BROADCAST_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Network.BroadcastInterval = n
		}
	}
	if v := os.Getenv("LANSHARE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transfer.ChunkSize = n
		}
	}
	if v := os.Getenv("LANSHARE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transfer.MaxConcurrent = n
		}
	}
	if v := os.Getenv("LANSHARE_THEME"); v != "" {
		cfg.UI.Theme = strings.TrimSpace(v)
	}
}

func validate(cfg Config) error {
	for name, port := range map[string]int{
		"discovery_port": cfg.Network.DiscoveryPort,
		"transfer_port":  cfg.Network.TransferPort,
		"web_port":       cfg.Network.WebPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}
	if cfg.Network.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	if cfg.Transfer.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if cfg.Transfer.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	return nil
}

// Save persists cfg to path as TOML.
func Save(path string, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	return save(path, cfg)
}

func save(path string, cfg Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
