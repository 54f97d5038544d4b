// SPDX-License-Identifier: MIT
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings is the user-facing state persisted across restarts. Unknown keys
// in the file are ignored; missing keys fall back to defaults.
type Settings struct {
	AudioEnabled    bool   `json:"audioEnabled"`
	AudioDeviceID   string `json:"audioDeviceId"`
	AudioDeviceName string `json:"audioDeviceName"`
	AnimMode        string `json:"animMode"`
	NoteGridEnabled bool   `json:"noteGridEnabled"`
	NoteGridMode    string `json:"noteGridMode"`
	NoteGridLayout  string `json:"noteGridLayout"`
}

// DefaultSettings returns the settings used when no store exists yet.
func DefaultSettings() Settings {
	return Settings{
		AudioEnabled:   false,
		AnimMode:       "focus",
		NoteGridMode:   "pitch-class",
		NoteGridLayout: "auto",
	}
}

// SettingsStore reads and writes the JSON settings file. Load never fails:
// a missing or corrupt file yields the defaults.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Load returns the persisted settings merged over the defaults.
func (s *SettingsStore) Load() Settings {
	settings := DefaultSettings()

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return settings
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings()
	}
	settings.AnimMode = strings.ToLower(strings.TrimSpace(settings.AnimMode))
	switch settings.AnimMode {
	case "focus", "hyper", "minimal":
	default:
		settings.AnimMode = "focus"
	}
	return settings
}

// Save writes the settings file, creating parent directories as needed.
func (s *SettingsStore) Save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}
