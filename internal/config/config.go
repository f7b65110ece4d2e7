// Package config centralizes runtime configuration for pfo. It loads a
// JSON or YAML configuration file and fills unset fields with defaults.
// Development builds run with defaults when no file is present. Operators
// point the node at a file via the CONFIG_FILE env var.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pricefeed.mini/pfo/internal/address"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

const (
	ModeLocal      = "local"
	ModeTendermint = "tendermint"
)

// Config holds configurable options for the pfo node.
type Config struct {
	DataFile        string `json:"data_file" yaml:"data_file"`
	Port            int    `json:"port" yaml:"port"`
	ProgramID       string `json:"program_id" yaml:"program_id"`
	Seed            string `json:"seed" yaml:"seed"`
	Mode            string `json:"mode" yaml:"mode"`
	SocketAddress   string `json:"socket_address" yaml:"socket_address"`
	TendermintRPC   string `json:"tendermint_rpc" yaml:"tendermint_rpc"`
	TendermintHome  string `json:"tendermint_home" yaml:"tendermint_home"`
	SpawnTendermint bool   `json:"spawn_tendermint" yaml:"spawn_tendermint"`
	LogLevel        string `json:"log_level" yaml:"log_level"`
	LogBuffer       int    `json:"log_buffer" yaml:"log_buffer"`
	MaxBackups      int    `json:"max_backups" yaml:"max_backups"`
	Announce        bool   `json:"announce" yaml:"announce"`
}

// Defaults returns the development configuration.
func Defaults() *Config {
	return &Config{
		DataFile:      "pfo.db",
		Port:          8080,
		ProgramID:     oracle.DefaultProgramID,
		Seed:          oracle.DefaultSeed,
		Mode:          ModeLocal,
		SocketAddress: "unix://pfo.sock",
		TendermintRPC: "http://localhost:26657",
		LogLevel:      "info",
		LogBuffer:     200,
		MaxBackups:    20,
	}
}

// LoadConfig reads the file at path, choosing YAML for .yaml/.yml and JSON
// otherwise. An empty path or a missing file yields defaults; a file that
// exists but does not parse is an error.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()
	if path == "" {
		return def, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &c)
	default:
		err = json.Unmarshal(b, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	c.merge(def)
	return &c, nil
}

// merge fills zero-value fields from def
func (c *Config) merge(def *Config) {
	if c.DataFile == "" {
		c.DataFile = def.DataFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.ProgramID == "" {
		c.ProgramID = def.ProgramID
	}
	if c.Seed == "" {
		c.Seed = def.Seed
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.SocketAddress == "" {
		c.SocketAddress = def.SocketAddress
	}
	if c.TendermintRPC == "" {
		c.TendermintRPC = def.TendermintRPC
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogBuffer == 0 {
		c.LogBuffer = def.LogBuffer
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := types.ParsePubkey(c.ProgramID); err != nil {
		return fmt.Errorf("program_id: %w", err)
	}
	if c.Seed == "" {
		return errors.New("seed is required")
	}
	if len(c.Seed) > address.MaxSeedLength {
		return fmt.Errorf("seed is %d bytes, maximum is %d", len(c.Seed), address.MaxSeedLength)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Mode {
	case ModeLocal, ModeTendermint:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeLocal, ModeTendermint, c.Mode)
	}
	if c.LogBuffer < 0 {
		return fmt.Errorf("log_buffer %d cannot be negative", c.LogBuffer)
	}
	return nil
}

// Oracle returns the program configuration. Call Validate first.
func (c *Config) Oracle() (oracle.Config, error) {
	programID, err := types.ParsePubkey(c.ProgramID)
	if err != nil {
		return oracle.Config{}, fmt.Errorf("program_id: %w", err)
	}
	return oracle.Config{ProgramID: programID, Seed: []byte(c.Seed)}, nil
}
