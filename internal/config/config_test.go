package config

import (
	"os"
	"path/filepath"
	"testing"

	"pricefeed.mini/pfo/internal/oracle"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.json")} {
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%q): %v", path, err)
		}
		if cfg.Port != 8080 || cfg.Seed != oracle.DefaultSeed || cfg.Mode != ModeLocal {
			t.Errorf("LoadConfig(%q) = %+v, want defaults", path, cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should validate: %v", err)
		}
	}
}

func TestLoadJSONMergesDefaults(t *testing.T) {
	path := writeTempFile(t, "pfo.json", `{"port": 9090, "data_file": "/var/lib/pfo/pfo.db"}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.DataFile != "/var/lib/pfo/pfo.db" {
		t.Errorf("DataFile = %q", cfg.DataFile)
	}
	if cfg.ProgramID != oracle.DefaultProgramID {
		t.Errorf("ProgramID = %q, want default", cfg.ProgramID)
	}
	if cfg.LogBuffer != 200 {
		t.Errorf("LogBuffer = %d, want default 200", cfg.LogBuffer)
	}
}

func TestLoadYAML(t *testing.T) {
	yaml := `
mode: tendermint
seed: price_feed_v2
tendermint_rpc: http://10.0.0.5:26657
spawn_tendermint: true
log_level: debug
`
	path := writeTempFile(t, "pfo.yaml", yaml)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != ModeTendermint {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.Seed != "price_feed_v2" {
		t.Errorf("Seed = %q", cfg.Seed)
	}
	if !cfg.SpawnTendermint {
		t.Error("SpawnTendermint should be true")
	}
	if cfg.TendermintRPC != "http://10.0.0.5:26657" {
		t.Errorf("TendermintRPC = %q", cfg.TendermintRPC)
	}
	if cfg.DataFile != "pfo.db" {
		t.Errorf("DataFile = %q, want default", cfg.DataFile)
	}

	oc, err := cfg.Oracle()
	if err != nil {
		t.Fatalf("Oracle: %v", err)
	}
	if string(oc.Seed) != "price_feed_v2" {
		t.Errorf("oracle seed = %q", oc.Seed)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeTempFile(t, "pfo.json", `{"port": "not a number"`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad program id", mutate: func(c *Config) { c.ProgramID = "nope" }, wantErr: true},
		{name: "empty seed", mutate: func(c *Config) { c.Seed = "" }, wantErr: true},
		{name: "long seed", mutate: func(c *Config) { c.Seed = "this_seed_is_much_longer_than_32_bytes" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "cluster" }, wantErr: true},
		{name: "tendermint mode", mutate: func(c *Config) { c.Mode = ModeTendermint }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}
