// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Audio.BlockFrames != 2048 {
		t.Errorf("default block frames = %d, expected 2048", cfg.Audio.BlockFrames)
	}
	if cfg.Audio.Bars != 10 {
		t.Errorf("default bars = %d, expected 10", cfg.Audio.Bars)
	}
	if cfg.Server.WebSocketPort != "8765" {
		t.Errorf("default websocket port = %q, expected 8765", cfg.Server.WebSocketPort)
	}
	if cfg.Server.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("default UDP interval = %s, expected 33ms", cfg.Server.UDPSendInterval)
	}
	if cfg.Debug {
		t.Error("debug should default to false")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
debug: true
log_level: debug
audio:
  block_frames: 4096
  bars: 16
server:
  websocket_port: "9000"
  udp_enabled: true
  udp_target_address: "127.0.0.1:7000"
  udp_send_interval: 16ms
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Audio.BlockFrames != 4096 {
		t.Errorf("block frames = %d, expected 4096", cfg.Audio.BlockFrames)
	}
	if cfg.Audio.Bars != 16 {
		t.Errorf("bars = %d, expected 16", cfg.Audio.Bars)
	}
	if !cfg.Server.UDPEnabled || cfg.Server.UDPTargetAddress != "127.0.0.1:7000" {
		t.Errorf("UDP settings not loaded: %+v", cfg.Server)
	}
	if cfg.Server.UDPSendInterval != 16*time.Millisecond {
		t.Errorf("UDP interval = %s, expected 16ms", cfg.Server.UDPSendInterval)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_WS_PORT", "9999")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.1:5000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "20ms")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.Debug {
		t.Error("ENV_DEBUG should override debug")
	}
	if cfg.Server.WebSocketPort != "9999" {
		t.Errorf("ENV_WS_PORT override failed, got %q", cfg.Server.WebSocketPort)
	}
	if !cfg.Server.UDPEnabled {
		t.Error("ENV_UDP_ENABLED should override")
	}
	if cfg.Server.UDPTargetAddress != "10.0.0.1:5000" {
		t.Errorf("ENV_UDP_TARGET_ADDRESS override failed, got %q", cfg.Server.UDPTargetAddress)
	}
	if cfg.Server.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("ENV_UDP_SEND_INTERVAL override failed, got %s", cfg.Server.UDPSendInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"non power of two block", func(c *Config) { c.Audio.BlockFrames = 1000 }, true},
		{"zero bars", func(c *Config) { c.Audio.Bars = 0 }, true},
		{"udp without target", func(c *Config) {
			c.Server.UDPEnabled = true
			c.Server.UDPTargetAddress = ""
		}, true},
		{"udp without interval", func(c *Config) {
			c.Server.UDPEnabled = true
			c.Server.UDPSendInterval = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config path")
	}
}
