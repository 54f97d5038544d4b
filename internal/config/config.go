// SPDX-License-Identifier: MIT
// Package config holds the YAML application configuration and the JSON
// settings store for user-facing state that must survive restarts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"reactive/pkg/bitint"
)

// Config is the main application configuration, loaded from YAML.
type Config struct {
	Debug    bool   `yaml:"debug"`     // Verbose logging and debug features.
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error".

	Audio     AudioConfig     `yaml:"audio"`     // Capture and analysis settings.
	Server    ServerConfig    `yaml:"server"`    // Event transport settings.
	Recording RecordingConfig `yaml:"recording"` // Capture-tap recording settings.

	// SettingsPath is where the JSON settings store lives. Empty means
	// "settings.json" next to the config file.
	SettingsPath string `yaml:"settings_path"`
}

// AudioConfig holds capture and spectral-analysis settings.
type AudioConfig struct {
	BlockFrames         int    `yaml:"block_frames"`          // Samples per capture block (power of 2).
	Bars                int    `yaml:"bars"`                  // Number of log-spaced band levels.
	PreferredDeviceID   string `yaml:"preferred_device_id"`   // Overrides the settings store when set.
	PreferredDeviceName string `yaml:"preferred_device_name"` // Overrides the settings store when set.
}

// ServerConfig holds event-emission transport settings.
type ServerConfig struct {
	WebSocketPort    string        `yaml:"websocket_port"`     // Port for the event WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable the binary band-level publisher.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// RecordingConfig holds capture-tap WAV recording settings.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// LoadConfig loads configuration from a YAML file. If path is empty it
// searches default locations; if no file is found the built-in defaults are
// used. Environment overrides are applied after loading, then the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			BlockFrames: 2048,
			Bars:        10,
		},
		Server: ServerConfig{
			WebSocketPort:    "8765",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
		},
		SettingsPath: "settings.json",
	}

	if path == "" {
		candidates := []string{"config.yaml"}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values the engine cannot
// work with.
func (c *Config) Validate() error {
	if !bitint.IsPowerOfTwo(c.Audio.BlockFrames) {
		return fmt.Errorf("audio.block_frames must be a power of 2, got %d", c.Audio.BlockFrames)
	}
	if c.Audio.Bars < 1 {
		return fmt.Errorf("audio.bars must be at least 1, got %d", c.Audio.Bars)
	}
	if c.Server.UDPEnabled {
		if c.Server.UDPTargetAddress == "" {
			return fmt.Errorf("server.udp_target_address must be set when UDP is enabled")
		}
		if c.Server.UDPSendInterval <= 0 {
			return fmt.Errorf("server.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// applyEnvOverrides applies ENV_* variable overrides on top of the loaded
// file or defaults.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("ENV_WS_PORT"); ok {
		c.Server.WebSocketPort = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Server.UDPEnabled = b
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Server.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Server.UDPSendInterval = dur
		}
	}
}
