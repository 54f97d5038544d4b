package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"reactive/cmd"
	"reactive/internal/audio"
	"reactive/internal/config"
	"reactive/internal/control"
	applog "reactive/internal/log"
	"reactive/internal/transport"
	"reactive/internal/transport/udp"
	"reactive/internal/tui"
	"reactive/pkg/build"
)

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Load build information
//   - Configure runtime settings
//   - Initialize PortAudio
//   - Parse command line arguments, execute one-off commands
//
// 2. Concurrent Phase (Hot Path):
//   - Start the reactive controller (capture + publish loop)
//   - Start the WebSocket event server
//   - Start the UDP band publisher if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop publishers, the controller, and the capture tap
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// One thread for the capture loop, one for publishing and I/O.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("Main: failed to initialize audio subsystem: %v", err)
	}
	defer audio.Terminate()

	options, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("Main: %v", err)
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		applog.Fatalf("Main: %v", err)
	}
	applyOptions(cfg, options)

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	provider := audio.NewPortAudioProvider()
	store := config.NewSettingsStore(cfg.SettingsPath)

	switch options.Command {
	case "list":
		if err := audio.ListDevices(provider); err != nil {
			applog.Fatalf("Main: %v", err)
		}
		return
	case "pick":
		name, err := tui.StartDevicePickerUI(provider, store)
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		if name != "" {
			fmt.Printf("Loopback source set to: %s\n", name)
		}
		return
	}
	if !options.ServeMode {
		return
	}

	if options.Mode != "" {
		settings := store.Load()
		settings.AnimMode = options.Mode
		if err := store.Save(settings); err != nil {
			applog.Warnf("Main: failed to persist mode override: %v", err)
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	wsTransport := transport.NewWebSocketTransport(cfg.Server.WebSocketPort)
	emitter := transport.NewEmitter(wsTransport)

	controller := control.NewController(provider, cfg, store, emitter)
	wsTransport.SetCommandHandler(controller.HandleCommand)
	controller.Start()

	var publisher *udp.Publisher
	if cfg.Server.UDPEnabled {
		sender, err := udp.NewSender(cfg.Server.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		defer sender.Close()

		publisher, err = udp.NewPublisher(cfg.Server.UDPSendInterval, sender, controller)
		if err != nil {
			applog.Fatalf("Main: %v", err)
		}
		publisher.Start()
	}

	recordingFile := ""
	if cfg.Recording.Enabled {
		recordingFile = filepath.Join(cfg.Recording.OutputDir,
			"capture-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			applog.Warnf("Main: cannot create recording directory: %v", err)
		} else if err := controller.Engine().StartRecording(recordingFile); err != nil {
			// Needs an active capture session; enable audio first.
			applog.Warnf("Main: recording not started: %v", err)
			recordingFile = ""
		}
	}

	applog.Infof("Main: %s %s running, press Ctrl+C to stop",
		build.GetBuildFlags().Name, build.GetBuildFlags().Version)

	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if recordingFile != "" {
		if err := controller.Engine().StopRecording(); err != nil {
			applog.Errorf("Main: error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", recordingFile)
		}
	}

	if publisher != nil {
		publisher.Stop()
	}
	controller.Stop()
	wsTransport.Close()
}

// applyOptions layers CLI flag overrides on top of the loaded config.
func applyOptions(cfg *config.Config, options *cmd.Options) {
	if options.Verbose {
		cfg.Debug = true
	}
	if options.Bars > 0 {
		cfg.Audio.Bars = options.Bars
	}
	if options.DeviceName != "" {
		cfg.Audio.PreferredDeviceName = options.DeviceName
	}
	if options.Record {
		cfg.Recording.Enabled = true
	}
	if options.OutputDir != "" {
		cfg.Recording.OutputDir = options.OutputDir
	}
}
