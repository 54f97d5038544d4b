// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	settings := store.Load()
	if settings.AudioEnabled {
		t.Error("audio should default to disabled")
	}
	if settings.AnimMode != "focus" {
		t.Errorf("default anim mode = %q, expected focus", settings.AnimMode)
	}
	if settings.NoteGridMode != "pitch-class" {
		t.Errorf("default note grid mode = %q, expected pitch-class", settings.NoteGridMode)
	}
	if settings.NoteGridLayout != "auto" {
		t.Errorf("default note grid layout = %q, expected auto", settings.NoteGridLayout)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "nested", "settings.json"))

	saved := Settings{
		AudioEnabled:    true,
		AudioDeviceID:   "uid-42",
		AudioDeviceName: "USB DAC",
		AnimMode:        "hyper",
		NoteGridEnabled: true,
		NoteGridMode:    "piano",
		NoteGridLayout:  "grid",
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := store.Load()
	if loaded != saved {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, saved)
	}
}

func TestSettingsCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	settings := NewSettingsStore(path).Load()
	if settings != DefaultSettings() {
		t.Errorf("corrupt file should yield defaults, got %+v", settings)
	}
}

func TestSettingsInvalidAnimModeNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"animMode": "WARP"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	settings := NewSettingsStore(path).Load()
	if settings.AnimMode != "focus" {
		t.Errorf("invalid anim mode should normalize to focus, got %q", settings.AnimMode)
	}
}

func TestSettingsAnimModeCaseFolded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"animMode": " Hyper "}`), 0o644); err != nil {
		t.Fatal(err)
	}

	settings := NewSettingsStore(path).Load()
	if settings.AnimMode != "hyper" {
		t.Errorf("anim mode should fold to hyper, got %q", settings.AnimMode)
	}
}
