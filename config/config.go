package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	// AllowMerkleFallback enables proof-based fallback for whitelist checks
	// that carry a proof. Proof-verified addresses are not stored and cannot
	// resolve permissions; enable only when callers understand that split.
	AllowMerkleFallback bool `toml:"AllowMerkleFallback"`
	// StrictSnapshots makes snapshot creation cross-check the attested root
	// and entry count against registry state.
	StrictSnapshots bool `toml:"StrictSnapshots"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("config file %s: DataDir must not be empty", path)
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "tiergate-local"
	}

	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:          ":8545",
		DataDir:             "./tiergate-data",
		NetworkName:         "tiergate-local",
		AllowMerkleFallback: false,
		StrictSnapshots:     false,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
