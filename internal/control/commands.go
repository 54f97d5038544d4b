// SPDX-License-Identifier: MIT
package control

import (
	"fmt"
	"strings"

	"reactive/internal/analysis"
	"reactive/internal/mapper"
)

// HandleCommand dispatches one named command with its argument map and
// returns the response map. Unknown commands yield {ok:false, error}. Every
// state-changing command answers with an (ok, message) pair and mirrors it
// through an audio_status event so passive listeners stay in sync.
func (c *Controller) HandleCommand(name string, args map[string]any) map[string]any {
	switch strings.TrimSpace(name) {
	case "audio.enable":
		return c.cmdAudioEnable(args)
	case "audio.device.select":
		return c.cmdAudioDeviceSelect(args)
	case "audio.peek":
		return c.cmdAudioPeek(args)
	case "anim.mode":
		return c.cmdAnimMode(args)
	case "note.grid":
		return c.cmdNoteGrid(args)
	case "state.get":
		return c.cmdStateGet()
	default:
		return map[string]any{"ok": false, "error": fmt.Sprintf("Unknown command: %s", name)}
	}
}

func (c *Controller) cmdAudioEnable(args map[string]any) map[string]any {
	enabled := boolArg(args, "enabled", false)

	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled {
		ok, message := c.startAnalyzerLocked()
		c.enabled = ok
		if !ok {
			c.publishLocked(mapper.ResetPayload())
		}
		c.persistSettingsLocked()
		c.emitter.Emit("audio_status", map[string]any{"message": message, "ok": ok})
		c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
		return map[string]any{"ok": ok, "message": message, "enabled": c.enabled}
	}

	c.enabled = false
	c.stopAnalyzerLocked()
	c.lastMessage = "Audio off"
	c.publishLocked(mapper.ResetPayload())
	c.persistSettingsLocked()
	c.emitter.Emit("audio_status", map[string]any{"message": "Audio off", "ok": true})
	c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
	return map[string]any{"ok": true, "message": "Audio off", "enabled": false}
}

func (c *Controller) cmdAudioDeviceSelect(args map[string]any) map[string]any {
	index := intArg(args, "index", -1)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.selectedIndex = index
	c.refreshDevicesLocked()
	ok, message := true, "Device selected"
	c.rememberSelectedDeviceLocked()
	if c.enabled {
		ok, message = c.startAnalyzerLocked()
		c.enabled = ok
		if !ok {
			c.publishLocked(mapper.ResetPayload())
		}
		c.emitter.Emit("audio_status", map[string]any{"message": message, "ok": ok})
	} else {
		c.lastMessage = message
	}
	c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
	return map[string]any{"ok": ok, "message": message, "enabled": c.enabled}
}

// cmdAudioPeek answers the polling fallback for clients without a WebSocket
// connection. The payload is included only when the sequence advanced past
// the caller's since value.
func (c *Controller) cmdAudioPeek(args map[string]any) map[string]any {
	since := intArg(args, "since", -1)

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := int(c.seq) != since && c.latestPayload != nil
	var payload any
	if changed {
		payload = c.latestPayload
	}
	return map[string]any{
		"ok":      true,
		"enabled": c.enabled,
		"seq":     c.seq,
		"changed": changed,
		"payload": payload,
	}
}

func (c *Controller) cmdAnimMode(args map[string]any) map[string]any {
	mode := strings.ToLower(strings.TrimSpace(stringArg(args, "mode")))

	c.mu.Lock()
	defer c.mu.Unlock()

	switch mode {
	case "focus", "hyper", "minimal":
		c.animMode = mapper.ParseMode(mode)
		c.persistSettingsLocked()
	}
	return map[string]any{"ok": true, "mode": c.animMode.String()}
}

func (c *Controller) cmdNoteGrid(args map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.noteGridEnabled = boolArg(args, "enabled", false)
	if mode := strings.TrimSpace(stringArg(args, "mode")); mode != "" {
		c.noteGridMode = analysis.NoteMode(mode)
	}
	if layout := strings.TrimSpace(stringArg(args, "layout")); layout != "" {
		c.noteGridLayout = layout
	}
	c.persistSettingsLocked()
	return map[string]any{
		"ok":      true,
		"enabled": c.noteGridEnabled,
		"mode":    string(c.noteGridMode),
		"layout":  c.noteGridLayout,
	}
}

func (c *Controller) cmdStateGet() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshDevicesLocked()
	return map[string]any{"ok": true, "state": c.stateLocked()}
}

// Argument coercion mirrors loosely-typed JSON command payloads: numbers
// arrive as float64, flags may be missing.

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}
