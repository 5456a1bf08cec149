// Command practicecore-demo is a headless-capable reference harness: it
// wires the coordinator to the ebiten audio backend, a gomidi input
// backend, JSON-file settings, and the SMF score importer, loads a score
// if one is given, and runs the control-thread tick loop until the
// timeout (or Ctrl-C) arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadenzapiano/practicecore/pkg/cli"
	"github.com/cadenzapiano/practicecore/pkg/coordinator"
	"github.com/cadenzapiano/practicecore/pkg/logger"
	"github.com/cadenzapiano/practicecore/pkg/ports"
	"github.com/cadenzapiano/practicecore/pkg/synth"
)

const (
	tickInterval      = 10 * time.Millisecond
	defaultSampleRate = 48000
)

func main() {
	cfg, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "practicecore-demo: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowHelp {
		cli.PrintHelp()
		return
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "practicecore-demo: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.GetLogger().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *cli.Config) error {
	log := logger.GetLogger()

	synthBackend := synth.NewFallbackSynth(defaultSampleRate)
	audioPort := newEbitenAudioOutput()
	midiPort := newGomidiInput()
	storage := newJSONFileStorage(defaultSettingsPath())
	importer := ports.NewSMFScoreImporter()

	coord := coordinator.New(audioPort, midiPort, storage, importer, synthBackend)

	if cfg.SoundFontPath != "" {
		if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdLoadSoundFont, Path: cfg.SoundFontPath}); err != nil {
			return fmt.Errorf("load soundfont: %w", err)
		}
		log.Info("soundfont loaded", "path", cfg.SoundFontPath)
	}

	if cfg.ScorePath != "" {
		source := ports.ScoreSource{Kind: ports.ScoreSourceMidiFile, Path: cfg.ScorePath}
		if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdLoadScore, ScoreSource: source}); err != nil {
			return fmt.Errorf("load score: %w", err)
		}
		log.Info("score loaded", "path", cfg.ScorePath)
	}

	if !cfg.Headless {
		openDefaultDevices(coord, log)
	}

	if cfg.ScorePath != "" {
		if cfg.Headless {
			log.Info("headless: skipping Start (no audio output was opened)")
		} else if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdStartPractice}); err != nil {
			return fmt.Errorf("start practice: %w", err)
		}
	}

	return runLoop(coord, log, cfg.Timeout)
}

// openDefaultDevices selects the first reported audio output and MIDI
// input, logging and continuing (not failing) if either list is empty —
// the coordinator still judges a loaded score against a silent/deviceless
// session.
func openDefaultDevices(coord *coordinator.Coordinator, log *slog.Logger) {
	if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdListAudioOutputs}); err != nil {
		log.Warn("failed to list audio outputs", "error", err)
	}
	if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdListMidiInputs}); err != nil {
		log.Warn("failed to list midi inputs", "error", err)
	}

	var audioDeviceID ports.DeviceID
	var midiDeviceID ports.DeviceID
	haveAudio, haveMidi := false, false

	for _, evt := range coord.DrainEvents() {
		switch evt.Kind {
		case coordinator.EvtAudioOutputsUpdated:
			if len(evt.AudioOutputs) > 0 {
				audioDeviceID = evt.AudioOutputs[0].ID
				haveAudio = true
			}
		case coordinator.EvtMidiInputsUpdated:
			if len(evt.MidiInputs) > 0 {
				midiDeviceID = evt.MidiInputs[0].ID
				haveMidi = true
			}
		}
	}

	if haveAudio {
		config := ports.AudioConfig{SampleRateHz: defaultSampleRate, Channels: 2}
		if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdSelectAudioOutput, DeviceID: audioDeviceID, AudioConfig: config}); err != nil {
			log.Warn("failed to open audio output", "error", err)
		} else {
			log.Info("audio output opened", "device", audioDeviceID)
		}
	} else {
		log.Warn("no audio output devices available")
	}

	if haveMidi {
		if err := coord.HandleCommand(coordinator.Command{Kind: coordinator.CmdSelectMidiInput, DeviceID: midiDeviceID}); err != nil {
			log.Warn("failed to open midi input", "error", err)
		} else {
			log.Info("midi input opened", "device", midiDeviceID)
		}
	} else {
		log.Warn("no midi input devices available")
	}
}

// runLoop supervises the demo's three logical threads — control-tick,
// MIDI-input, and audio-callback — as an errgroup, cancelling all of them
// together on timeout, SIGINT/SIGTERM, or the first goroutine's error.
// The MIDI-input and audio-callback device threads themselves are owned
// by their respective backends (gomidi's listener, ebiten's player); the
// goroutines here supervise that traffic on the shared context so the
// whole group can be torn down as one unit.
func runLoop(coord *coordinator.Coordinator, log *slog.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	go func() {
		select {
		case <-deadline:
			log.Info("timeout reached, stopping")
			cancel()
		case <-sigCh:
			log.Info("interrupt received, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return controlTickLoop(gctx, coord, log) })
	g.Go(func() error { return midiInputWatchdog(gctx, coord, log) })
	g.Go(func() error { return audioCallbackWatchdog(gctx, coord, log) })
	return g.Wait()
}

// controlTickLoop drives the coordinator's Tick at tickInterval, logging
// every drained event at debug level, until gctx is cancelled.
func controlTickLoop(gctx context.Context, coord *coordinator.Coordinator, log *slog.Logger) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			coord.Tick()
			for _, evt := range coord.DrainEvents() {
				logEvent(log, evt)
			}
		case <-gctx.Done():
			return nil
		}
	}
}

// midiInputWatchdog logs a debug heartbeat once a second until gctx is
// cancelled. It does not read the MIDI input queue or measure its backlog:
// processMidiInputs, driven by controlTickLoop, is the only reader.
func midiInputWatchdog(gctx context.Context, coord *coordinator.Coordinator, log *slog.Logger) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug("midi input watchdog tick")
		case <-gctx.Done():
			return nil
		}
	}
}

// audioCallbackWatchdog polls the shared audio clock and logs at debug
// level if it hasn't advanced between polls, which means the render callback has
// stalled or the stream was never opened.
func audioCallbackWatchdog(gctx context.Context, coord *coordinator.Coordinator, log *slog.Logger) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSample int64
	for {
		select {
		case <-ticker.C:
			sample := int64(coord.AudioClock().Get())
			if sample == lastSample {
				log.Debug("audio callback idle", "sample", sample)
			}
			lastSample = sample
		case <-gctx.Done():
			return nil
		}
	}
}

func logEvent(log *slog.Logger, evt coordinator.Event) {
	switch evt.Kind {
	case coordinator.EvtJudgeFeedback:
		log.Debug("judge feedback", "target", evt.TargetID, "grade", evt.Grade)
	case coordinator.EvtScoreSummaryUpdated:
		log.Debug("score summary", "combo", evt.Combo, "score", evt.Score, "accuracy", evt.Accuracy)
	case coordinator.EvtSessionStateUpdated:
		log.Info("session state", "state", evt.SessionState)
	case coordinator.EvtTransportUpdated:
		log.Debug("transport", "tick", evt.Tick, "playing", evt.Playing)
	}
}
