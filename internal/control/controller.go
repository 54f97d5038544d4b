// SPDX-License-Identifier: MIT
/*
Package control owns the reactive publish loop and the command surface.

The Controller is the consumer half of the capture pipeline: a polling
goroutine that pulls the freshest analysis snapshot each tick, runs the
parameter mapper, and publishes sequenced payloads through the event
emitter. It also resolves and remembers the capture device and persists
user-facing state through the settings store.
*/
package control

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"reactive/internal/analysis"
	"reactive/internal/audio"
	"reactive/internal/config"
	applog "reactive/internal/log"
	"reactive/internal/mapper"
	"reactive/internal/transport"
)

const (
	captureTick = 16 * time.Millisecond  // ~62.5 Hz while capturing
	idleTick    = 200 * time.Millisecond // 5 Hz while idle or faulted

	// restartDebounce bounds how often a failed capture session is retried.
	restartDebounce = time.Second
)

// Messages that refreshDevices may overwrite with the selected device name.
var genericMessages = map[string]bool{
	"":                          true,
	"Audio capture unavailable": true,
	"No audio output devices":   true,
	"Ready":                     true,
}

// Controller drives the capture engine, analyzer and mapper, publishes
// sequenced payloads, and answers commands. All mutable state is guarded by
// one mutex; the publish goroutine and the command handlers both take it.
type Controller struct {
	provider audio.DeviceProvider
	analyzer *analysis.Analyzer
	engine   *audio.Engine
	mapper   *mapper.Mapper
	store    *config.SettingsStore
	emitter  *transport.Emitter

	mu sync.Mutex

	devices       []audio.Device
	deviceNames   []string
	selectedIndex int
	ready         bool
	captureReady  bool
	enabled       bool
	lastMessage   string

	preferredDeviceID   string
	preferredDeviceName string

	animMode        mapper.Mode
	noteGridEnabled bool
	noteGridMode    analysis.NoteMode
	noteGridLayout  string

	latestPayload *mapper.Payload
	seq           uint64
	lastTick      time.Time

	restartAttemptAt time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewController wires the pipeline together. The settings store provides the
// persisted enabled flag, device preference and animation mode; cfg may
// override the device preference.
func NewController(provider audio.DeviceProvider, cfg *config.Config, store *config.SettingsStore, emitter *transport.Emitter) *Controller {
	settings := store.Load()

	c := &Controller{
		provider:            provider,
		analyzer:            analysis.NewAnalyzer(cfg.Audio.Bars),
		mapper:              mapper.NewMapper(),
		store:               store,
		emitter:             emitter,
		selectedIndex:       -1,
		enabled:             settings.AudioEnabled,
		preferredDeviceID:   settings.AudioDeviceID,
		preferredDeviceName: settings.AudioDeviceName,
		animMode:            mapper.ParseMode(settings.AnimMode),
		noteGridEnabled:     settings.NoteGridEnabled,
		noteGridMode:        analysis.NoteMode(settings.NoteGridMode),
		noteGridLayout:      settings.NoteGridLayout,
	}
	if cfg.Audio.PreferredDeviceID != "" {
		c.preferredDeviceID = cfg.Audio.PreferredDeviceID
	}
	if cfg.Audio.PreferredDeviceName != "" {
		c.preferredDeviceName = cfg.Audio.PreferredDeviceName
	}
	if c.noteGridMode == "" {
		c.noteGridMode = analysis.NotePitchClass
	}
	if c.noteGridLayout == "" {
		c.noteGridLayout = "auto"
	}

	c.engine = audio.NewEngine(provider, cfg.Audio.BlockFrames, c.analyzer.Process)
	return c
}

// Engine exposes the capture engine for the recording tap.
func (c *Controller) Engine() *audio.Engine { return c.engine }

// Start refreshes the device list, resumes capture if the persisted enabled
// flag is set, and launches the publish loop. Emits happen under the state
// mutex; Transport.Send never blocks.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshDevicesLocked()
	if c.enabled {
		ok, message := c.startAnalyzerLocked()
		c.enabled = ok
		if !ok {
			c.publishLocked(mapper.ResetPayload())
		}
		c.emitter.Emit("audio_status", map[string]any{"message": message, "ok": ok})
	}
	c.persistSettingsLocked()
	c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})

	if c.stopChan == nil {
		c.stopChan = make(chan struct{})
		c.doneChan = make(chan struct{})
		go c.run(c.stopChan, c.doneChan)
	}
}

// Stop halts the publish loop and the capture session.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop, done := c.stopChan, c.doneChan
	c.stopChan, c.doneChan = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	c.engine.Stop()
}

// run is the publish loop: fast ticks while capturing, slow ticks while idle
// or waiting out restart backoff.
func (c *Controller) run(stop, done chan struct{}) {
	defer close(done)
	applog.Infof("Control: publish loop started")

	for {
		interval := c.tick()
		select {
		case <-stop:
			applog.Infof("Control: publish loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// tick performs one iteration and returns the sleep interval before the
// next. Processing panics are contained here so a single bad frame cannot
// kill the loop.
func (c *Controller) tick() (interval time.Duration) {
	interval = captureTick
	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("Audio processing error: %v", r)
			applog.Errorf("Control: %s", message)
			c.mu.Lock()
			c.lastMessage = message
			c.emitter.Emit("audio_status", map[string]any{"message": message, "ok": false})
			c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
			c.mu.Unlock()
			interval = idleTick
		}
	}()

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return idleTick
	}

	if !c.engine.Active() {
		c.handleInactiveLocked()
		c.mu.Unlock()
		return idleTick
	}
	c.restartAttemptAt = time.Time{}

	mode := c.animMode
	noteGrid := c.noteGridEnabled
	noteMode := c.noteGridMode

	now := time.Now()
	dt := 0.0
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick).Seconds()
	}
	c.lastTick = now
	c.mu.Unlock()

	levels := c.analyzer.Levels()
	feat := c.analyzer.FeatureVector()
	var noteLevels []float64
	if noteGrid {
		noteLevels = c.analyzer.NoteLevels(noteMode)
	}

	payload := c.mapper.Compute(levels, feat, noteLevels, mode, dt)
	if payload != nil {
		c.mu.Lock()
		c.publishLocked(payload)
		c.mu.Unlock()
	}
	return captureTick
}

// handleInactiveLocked surfaces a capture error once and retries the session
// at most once per second.
func (c *Controller) handleInactiveLocked() {
	if errText := strings.TrimSpace(c.engine.TakeError()); errText != "" {
		c.lastMessage = "Capture error: " + errText
		c.emitter.Emit("audio_status", map[string]any{"message": c.lastMessage, "ok": false})
		c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
	}

	now := time.Now()
	if c.restartAttemptAt.IsZero() || now.Sub(c.restartAttemptAt) >= restartDebounce {
		c.restartAttemptAt = now
		ok, message := c.startAnalyzerLocked()
		if ok {
			c.emitter.Emit("audio_status", map[string]any{"message": message, "ok": true})
			c.emitter.Emit("state", map[string]any{"state": c.stateLocked()})
		}
	}
}

// publishLocked assigns the next sequence number, stores the latest payload
// slot, and emits the event. Callers hold the mutex.
func (c *Controller) publishLocked(payload *mapper.Payload) {
	c.seq++
	c.latestPayload = payload
	c.emitter.Emit("audio", payload)
}

// refreshDevicesLocked re-enumerates output devices and re-resolves the
// selection when it has become invalid.
func (c *Controller) refreshDevicesLocked() {
	c.captureReady = c.provider != nil && c.provider.Ready()
	if !c.captureReady {
		c.ready = false
		c.devices = nil
		c.deviceNames = nil
		c.selectedIndex = -1
		c.lastMessage = "Audio capture unavailable"
		return
	}

	devices, err := c.provider.OutputDevices()
	if err != nil || len(devices) == 0 {
		c.ready = false
		c.devices = nil
		c.deviceNames = nil
		c.selectedIndex = -1
		c.lastMessage = "No audio output devices"
		return
	}

	c.ready = true
	c.devices = devices
	c.deviceNames = audio.DeviceNames(devices)
	if c.selectedIndex < 0 || c.selectedIndex >= len(devices) {
		c.selectedIndex = audio.ResolveDeviceIndex(c.provider, devices, c.preferredDeviceID, c.preferredDeviceName)
	}

	if genericMessages[c.lastMessage] {
		if c.enabled && c.selectedIndex >= 0 && c.selectedIndex < len(devices) {
			c.lastMessage = devices[c.selectedIndex].Name
		} else {
			c.lastMessage = "Ready"
		}
	}
}

// startAnalyzerLocked resolves the selected device and (re)starts capture on
// it. Returns the (ok, message) pair every state-changing command reports.
func (c *Controller) startAnalyzerLocked() (bool, string) {
	c.refreshDevicesLocked()
	if !c.ready || !c.captureReady {
		return false, c.lastMessage
	}
	if c.selectedIndex < 0 || c.selectedIndex >= len(c.devices) {
		c.lastMessage = "Select output device"
		return false, c.lastMessage
	}

	device := c.devices[c.selectedIndex]

	// Tear down any previous session and clear the pipeline before the new
	// capture goroutine starts feeding the analyzer.
	c.engine.Stop()
	c.analyzer.Reset()
	c.mapper.Reset()
	c.lastTick = time.Time{}

	if err := c.engine.Start(device); err != nil {
		c.lastMessage = err.Error()
		return false, c.lastMessage
	}
	c.lastMessage = device.Name
	c.rememberSelectedDeviceLocked()
	return true, c.lastMessage
}

// stopAnalyzerLocked tears down capture and clears all smoothing state so a
// later session starts neutral.
func (c *Controller) stopAnalyzerLocked() {
	c.engine.Stop()
	c.analyzer.Reset()
	c.mapper.Reset()
	c.lastTick = time.Time{}
}

// rememberSelectedDeviceLocked persists the current selection as the
// preferred device.
func (c *Controller) rememberSelectedDeviceLocked() {
	if c.selectedIndex < 0 || c.selectedIndex >= len(c.devices) {
		return
	}
	device := c.devices[c.selectedIndex]
	c.preferredDeviceID = strings.TrimSpace(device.UID)
	c.preferredDeviceName = device.Name
	c.persistSettingsLocked()
}

// persistSettingsLocked writes the current user-facing state to the settings
// store. Save errors are logged, never propagated; the in-memory state stays
// authoritative.
func (c *Controller) persistSettingsLocked() {
	settings := config.Settings{
		AudioEnabled:    c.enabled,
		AudioDeviceID:   c.preferredDeviceID,
		AudioDeviceName: c.preferredDeviceName,
		AnimMode:        c.animMode.String(),
		NoteGridEnabled: c.noteGridEnabled,
		NoteGridMode:    string(c.noteGridMode),
		NoteGridLayout:  c.noteGridLayout,
	}
	if err := c.store.Save(settings); err != nil {
		applog.Warnf("Control: failed to persist settings: %v", err)
	}
}

// stateLocked builds the state.get snapshot. Callers hold the mutex.
func (c *Controller) stateLocked() map[string]any {
	devices := make([]string, len(c.deviceNames))
	copy(devices, c.deviceNames)
	return map[string]any{
		"audio": map[string]any{
			"ready":          c.ready,
			"captureReady":   c.captureReady,
			"devices":        devices,
			"selected":       c.selectedIndex,
			"enabled":        c.enabled,
			"message":        c.lastMessage,
			"seq":            c.seq,
			"analyzerActive": c.engine.Active(),
		},
		"anim": map[string]any{"mode": c.animMode.String()},
		"note": map[string]any{
			"enabled": c.noteGridEnabled,
			"mode":    string(c.noteGridMode),
			"layout":  c.noteGridLayout,
		},
	}
}

// Sequence returns the sequence number of the latest published payload.
func (c *Controller) Sequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// BandLevels returns a copy of the band levels from the latest published
// payload. Empty when nothing has been published or audio is reset.
func (c *Controller) BandLevels() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latestPayload == nil || len(c.latestPayload.Bands) == 0 {
		return nil
	}
	out := make([]float64, len(c.latestPayload.Bands))
	copy(out, c.latestPayload.Bands)
	return out
}
