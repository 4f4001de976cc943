// Package config loads the server configuration from an HCL file, filling
// defaults for any attribute the file leaves out. A missing file is not an
// error; the defaults describe a complete single-node server.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains listener and infrastructure options.
type ServerSettings struct {
	ListenPort int    `hcl:"listen_port,optional"`
	LogLevel   string `hcl:"log_level,optional"`
	BrokerURL  string `hcl:"broker_url,optional"`
}

// GameSettings contains the table rules and timing knobs shared by every
// room on this node.
type GameSettings struct {
	SmallBlind        int `hcl:"small_blind,optional"`
	BigBlind          int `hcl:"big_blind,optional"`
	StartingTiles     int `hcl:"starting_tiles,optional"`
	TurnTimeoutMs     int `hcl:"turn_timeout_ms,optional"`
	RevealDelayMs     int `hcl:"reveal_delay_ms,optional"`
	DisconnectGraceMs int `hcl:"disconnect_grace_ms,optional"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			ListenPort: 3001,
			LogLevel:   "info",
		},
		Game: GameSettings{
			SmallBlind:        10,
			BigBlind:          20,
			StartingTiles:     1000,
			TurnTimeoutMs:     30000,
			RevealDelayMs:     5000,
			DisconnectGraceMs: 60000,
		},
	}
}

// Load reads configuration from an HCL file. A missing file yields the
// defaults. An existing file must contain both a server block and a game
// block; attributes left out of either block take their default values.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.ListenPort == 0 {
		cfg.Server.ListenPort = def.Server.ListenPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Game.SmallBlind == 0 {
		cfg.Game.SmallBlind = def.Game.SmallBlind
	}
	if cfg.Game.BigBlind == 0 {
		cfg.Game.BigBlind = def.Game.BigBlind
	}
	if cfg.Game.StartingTiles == 0 {
		cfg.Game.StartingTiles = def.Game.StartingTiles
	}
	if cfg.Game.TurnTimeoutMs == 0 {
		cfg.Game.TurnTimeoutMs = def.Game.TurnTimeoutMs
	}
	if cfg.Game.RevealDelayMs == 0 {
		cfg.Game.RevealDelayMs = def.Game.RevealDelayMs
	}
	if cfg.Game.DisconnectGraceMs == 0 {
		cfg.Game.DisconnectGraceMs = def.Game.DisconnectGraceMs
	}
}

// Validate rejects configurations the machine cannot run with.
func (c *Config) Validate() error {
	if c.Server.ListenPort < 1 || c.Server.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port: %d", c.Server.ListenPort)
	}
	if c.Game.SmallBlind <= 0 {
		return fmt.Errorf("small_blind must be positive")
	}
	if c.Game.BigBlind <= c.Game.SmallBlind {
		return fmt.Errorf("big_blind must be greater than small_blind")
	}
	if c.Game.StartingTiles < c.Game.BigBlind {
		return fmt.Errorf("starting_tiles must cover the big blind")
	}
	if c.Game.TurnTimeoutMs <= 0 || c.Game.RevealDelayMs <= 0 || c.Game.DisconnectGraceMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// ListenAddr returns the listener address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.ListenPort)
}

// TurnTimeout returns turn_timeout_ms as a duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.Game.TurnTimeoutMs) * time.Millisecond
}

// RevealDelay returns reveal_delay_ms as a duration.
func (c *Config) RevealDelay() time.Duration {
	return time.Duration(c.Game.RevealDelayMs) * time.Millisecond
}

// DisconnectGrace returns disconnect_grace_ms as a duration.
func (c *Config) DisconnectGrace() time.Duration {
	return time.Duration(c.Game.DisconnectGraceMs) * time.Millisecond
}
