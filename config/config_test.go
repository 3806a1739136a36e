package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" {
		t.Fatalf("unexpected default RPC address: %q", cfg.RPCAddress)
	}
	if cfg.AllowMerkleFallback || cfg.StrictSnapshots {
		t.Fatalf("policy toggles must default to off: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":9000"
DataDir = "/var/lib/tiergate"
NetworkName = "tiergate-test"
AllowMerkleFallback = true
StrictSnapshots = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.DataDir != "/var/lib/tiergate" || cfg.NetworkName != "tiergate-test" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.AllowMerkleFallback || !cfg.StrictSnapshots {
		t.Fatalf("policy toggles not decoded: %+v", cfg)
	}
}

func TestLoadRejectsEmptyDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty DataDir")
	}
}
