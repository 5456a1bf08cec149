// Package coordinator is the control-thread application core: it owns the
// transport, scheduler, and judge, dispatches host commands, and drives the
// per-tick sequence that keeps musical time, player input, and judging in
// sync with the audio thread. It never touches audio buffers directly —
// those are the audio graph's job, reached only through the control->audio
// SPSC queue, the atomic AudioParams, and the AudioClock it shares with it.
package coordinator

import (
	"fmt"
	"sort"
	"time"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/graph"
	"github.com/cadenzapiano/practicecore/pkg/judge"
	"github.com/cadenzapiano/practicecore/pkg/logger"
	"github.com/cadenzapiano/practicecore/pkg/ports"
	"github.com/cadenzapiano/practicecore/pkg/scheduler"
	"github.com/cadenzapiano/practicecore/pkg/score"
	"github.com/cadenzapiano/practicecore/pkg/synth"
)

// SessionState is the lifecycle state a host surfaces to its UI.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionReady
	SessionRunning
	SessionPaused
)

// CommandKind discriminates the host-facing Command variants.
type CommandKind int

const (
	CmdListMidiInputs CommandKind = iota
	CmdSelectMidiInput
	CmdListAudioOutputs
	CmdSelectAudioOutput
	CmdSetMonitorEnabled
	CmdSetBusVolume
	CmdSetMasterVolume
	CmdLoadSoundFont
	CmdSetProgram
	CmdLoadScore
	CmdSetPracticeRange
	CmdStartPractice
	CmdPausePractice
	CmdStopPractice
	CmdSeek
	CmdSetLoop
	CmdSetTempoMultiplier
	CmdSetPlaybackMode
	CmdSetAccompanimentRoute
	CmdSetInputOffsetMs
	CmdExportDiagnostics
)

// Command is a tagged union of every host-issued instruction. Only the
// fields relevant to Kind are read.
type Command struct {
	Kind CommandKind

	DeviceID    ports.DeviceID
	AudioConfig ports.AudioConfig
	Bus         core.Bus
	Volume      core.Volume01
	Enabled     bool
	Path        string
	Program     uint8
	ScoreSource ports.ScoreSource
	LoopRange   *core.LoopRange
	Tick        core.Tick
	TempoMultiplier float32
	Mode            scheduler.Mode
	PlayLeft        bool
	PlayRight       bool
	InputOffsetMs   int32
}

// EventKind discriminates the Event variants a Coordinator emits.
type EventKind int

const (
	EvtMidiInputsUpdated EventKind = iota
	EvtAudioOutputsUpdated
	EvtSessionStateUpdated
	EvtTransportUpdated
	EvtJudgeFeedback
	EvtScoreSummaryUpdated
	EvtRecentInputEvents
	EvtDiagnosticsExported
)

// RecentInput is one entry of the throttled recent-input batch.
type RecentInput struct {
	At    core.SampleTime
	Event core.MidiLikeEvent
}

// Event is a tagged union of everything a host can observe.
type Event struct {
	Kind EventKind

	MidiInputs   []ports.MidiInputDevice
	AudioOutputs []ports.AudioOutputDevice

	SessionState SessionState
	Settings     ports.Settings

	Tick            core.Tick
	SampleTime      core.SampleTime
	Playing         bool
	TempoMultiplier float32
	LoopRange       *core.LoopRange

	TargetID      uint64
	Grade         judge.Grade
	DeltaTick     core.Tick
	ExpectedNotes []uint8
	PlayedNotes   []uint8

	Combo    uint32
	Score    int64
	Accuracy float64

	RecentInputs []RecentInput

	Diagnostics string
}

const (
	recentInputCapacity   = 20
	transportEmitInterval = 33 * time.Millisecond
	inputEmitInterval     = 50 * time.Millisecond
	defaultPpq            = 480
	defaultSampleRateHz   = 48000
)

// Coordinator is the control-thread application core. One instance per
// practice session; it is not safe for concurrent command dispatch.
type Coordinator struct {
	audioPort ports.AudioOutputPort
	midiPort  ports.MidiInputPort
	storage   ports.StoragePort
	importer  ports.ScoreImporter
	synth     synth.Synth

	settings ports.Settings
	session  SessionState

	transport    *core.Transport
	scheduler    *scheduler.Scheduler
	judge        *judge.Judge
	targets      map[uint64]core.TargetEvent
	currentScore *score.Score

	audioParams *core.AudioParams
	audioClock  *core.AudioClock
	audioQueue  *core.ScheduledEventQueue
	audioStream ports.StreamHandle

	midiQueue  *core.PlayerEventQueue
	midiStream ports.StreamHandle

	inputOffsetMs int32

	events       []Event
	recentInputs []RecentInput

	hasLastTransportEmit bool
	lastTransportEmit    time.Time
	hasLastInputEmit     bool
	lastInputEmit        time.Time
}

// New builds a Coordinator, seeding settings from storage (falling back to
// ports.DefaultSettings on load failure) and starting Idle with an empty
// transport and judge.
func New(audioPort ports.AudioOutputPort, midiPort ports.MidiInputPort, storage ports.StoragePort, importer ports.ScoreImporter, synthBackend synth.Synth) *Coordinator {
	settings, err := storage.LoadSettings()
	if err != nil {
		logger.GetLogger().Warn("falling back to default settings", "error", err)
		settings = ports.DefaultSettings()
	}

	return &Coordinator{
		audioPort: audioPort,
		midiPort:  midiPort,
		storage:   storage,
		importer:  importer,
		synth:     synthBackend,

		settings: settings,
		session:  SessionIdle,

		transport: core.NewTransport(defaultPpq, defaultSampleRateHz, nil),
		scheduler: scheduler.New(defaultSampleRateHz, scheduler.DefaultConfig()),
		judge:     judge.New(defaultJudgeConfig()),
		targets:   make(map[uint64]core.TargetEvent),

		audioParams: core.NewAudioParams(settings.MasterVolume, settings.BusUserVolume, settings.BusAutopilotVolume, settings.BusMetronomeVolume, settings.MonitorEnabled),
		audioClock:  &core.AudioClock{},
		audioQueue:  core.NewScheduledEventQueue(),

		midiQueue: core.NewPlayerEventQueue(),

		inputOffsetMs: settings.InputOffsetMs,
	}
}

// defaultJudgeConfig matches the documented default tuning: a narrow
// perfect window inside a wider good window, a short chord-roll tolerance,
// and wrong notes degrading an otherwise-perfect chord rather than just
// being recorded.
func defaultJudgeConfig() judge.Config {
	return judge.Config{
		PerfectWindowTicks: 30,
		GoodWindowTicks:    80,
		ChordRollTicks:     24,
		WrongNotePolicy:    judge.DegradePerfect,
		Advance:            judge.AdvanceOnResolve,
	}
}

// AudioQueue exposes the control->audio queue the coordinator produces
// into, so a host can wire its consumer side into an AudioGraph built over
// the same Synth, clock, and params.
func (c *Coordinator) AudioQueue() *core.ScheduledEventQueue { return c.audioQueue }

// AudioParams exposes the shared atomic volume/enable bundle.
func (c *Coordinator) AudioParams() *core.AudioParams { return c.audioParams }

// AudioClock exposes the shared audio-thread clock the coordinator reads
// on every tick to stay in sync with the render callback.
func (c *Coordinator) AudioClock() *core.AudioClock { return c.audioClock }

// MidiQueue exposes the device->control queue the coordinator consumes
// from, so a host's MIDI backend callback can push onto its producer side
// via TryPush.
func (c *Coordinator) MidiQueue() *core.PlayerEventQueue { return c.midiQueue }

// HandleCommand dispatches one host command, mutating transport/scheduler/
// judge/settings state and queuing any resulting Events for DrainEvents.
func (c *Coordinator) HandleCommand(cmd Command) error {
	switch cmd.Kind {
	case CmdListMidiInputs:
		devices, err := c.midiPort.ListInputs()
		if err != nil {
			return &ports.MidiError{Kind: ports.MidiErrBackend, Message: err.Error(), Cause: err}
		}
		c.emit(Event{Kind: EvtMidiInputsUpdated, MidiInputs: devices})

	case CmdSelectMidiInput:
		return c.openMidiInput(cmd.DeviceID)

	case CmdListAudioOutputs:
		devices, err := c.audioPort.ListOutputs()
		if err != nil {
			return &ports.AudioError{Kind: ports.AudioErrBackend, Message: err.Error(), Cause: err}
		}
		c.emit(Event{Kind: EvtAudioOutputsUpdated, AudioOutputs: devices})

	case CmdSelectAudioOutput:
		return c.openAudioOutput(cmd.DeviceID, cmd.AudioConfig)

	case CmdSetMonitorEnabled:
		c.settings.MonitorEnabled = cmd.Enabled
		c.audioParams.SetMonitorEnabled(cmd.Enabled)
		c.saveSettings()

	case CmdSetBusVolume:
		c.audioParams.SetBus(cmd.Bus, cmd.Volume)
		switch cmd.Bus {
		case core.BusUserMonitor:
			c.settings.BusUserVolume = cmd.Volume
		case core.BusAutopilot:
			c.settings.BusAutopilotVolume = cmd.Volume
		case core.BusMetronomeFx:
			c.settings.BusMetronomeVolume = cmd.Volume
		}
		c.saveSettings()

	case CmdSetMasterVolume:
		c.audioParams.SetMaster(cmd.Volume)
		c.settings.MasterVolume = cmd.Volume
		c.saveSettings()

	case CmdLoadSoundFont:
		if _, err := c.synth.LoadSoundFontFromPath(cmd.Path); err != nil {
			return err
		}
		path := cmd.Path
		c.settings.DefaultSf2Path = &path
		c.saveSettings()

	case CmdSetProgram:
		return c.synth.SetProgram(cmd.Bus, cmd.Program)

	case CmdLoadScore:
		return c.loadScore(cmd.ScoreSource)

	case CmdSetPracticeRange:
		c.setLoop(cmd.LoopRange)

	case CmdStartPractice:
		if c.currentScore == nil {
			return &InvalidStateError{Message: "start without a loaded score"}
		}
		if c.audioStream == nil {
			return &InvalidStateError{Message: "start without an open audio output"}
		}
		c.transport.Play()
		c.transport.AlignToSampleTime(c.audioClock.Get())
		c.scheduler.Seek(c.transport.NowTick())
		c.flushAudioNotes()
		c.session = SessionRunning
		c.audioParams.SetPlaybackEnabled(true)
		c.scheduleAutopilot()
		c.emitSessionState()
		c.emitTransport(true)

	case CmdPausePractice:
		c.transport.Pause()
		c.audioParams.SetPlaybackEnabled(false)
		c.session = SessionPaused
		c.emitSessionState()
		c.emitTransport(true)
		c.flushAudioNotes()

	case CmdStopPractice:
		c.transport.Stop()
		c.audioParams.SetPlaybackEnabled(false)
		c.scheduler.Seek(c.transport.NowTick())
		c.flushAudioNotes()
		c.session = SessionReady
		c.emitSessionState()
		c.emitTransport(true)

	case CmdSeek:
		c.transport.Seek(cmd.Tick)
		c.scheduler.Seek(cmd.Tick)
		c.flushAudioNotes()
		c.emitTransport(true)

	case CmdSetLoop:
		c.setLoop(cmd.LoopRange)

	case CmdSetTempoMultiplier:
		c.transport.SetTempoMultiplier(cmd.TempoMultiplier)
		c.emitTransport(true)

	case CmdSetPlaybackMode:
		c.scheduler.SetMode(cmd.Mode)

	case CmdSetAccompanimentRoute:
		c.scheduler.SetAccompanimentRoute(cmd.PlayLeft, cmd.PlayRight)

	case CmdSetInputOffsetMs:
		c.inputOffsetMs = cmd.InputOffsetMs
		c.settings.InputOffsetMs = cmd.InputOffsetMs
		c.saveSettings()

	case CmdExportDiagnostics:
		c.emit(Event{Kind: EvtDiagnosticsExported, Diagnostics: c.diagnostics()})
	}
	return nil
}

// Tick runs one control-thread pass: pull the audio clock, drain player
// input, resolve timeouts, push newly in-window autopilot events, and emit
// throttled transport/recent-input updates.
func (c *Coordinator) Tick() {
	c.syncTransport()
	c.processMidiInputs()
	c.advanceJudge()
	c.scheduleAutopilot()
	c.emitTransport(false)
	c.emitRecentInputs()
}

// DrainEvents removes and returns every Event queued since the last call.
func (c *Coordinator) DrainEvents() []Event {
	events := c.events
	c.events = nil
	return events
}

func (c *Coordinator) emit(e Event) { c.events = append(c.events, e) }

func (c *Coordinator) openAudioOutput(id ports.DeviceID, config ports.AudioConfig) error {
	if c.audioStream != nil {
		_ = c.audioStream.Close()
		c.audioStream = nil
	}

	c.scheduler = scheduler.New(config.SampleRateHz, scheduler.DefaultConfig())
	c.transport.SetSampleRate(config.SampleRateHz)
	c.synth.SetSampleRate(config.SampleRateHz)
	if c.currentScore != nil {
		c.scheduler.SetScore(c.currentScore.SortedPlaybackEvents())
		c.scheduler.Seek(c.transport.NowTick())
	}

	c.audioQueue = core.NewScheduledEventQueue()
	audioGraph := graph.New(c.synth, c.audioParams, c.audioQueue, c.audioClock)

	stream, err := c.audioPort.OpenOutput(id, config, audioGraph.Render)
	if err != nil {
		return &ports.AudioError{Kind: ports.AudioErrBackend, Message: err.Error(), Cause: err}
	}
	c.audioStream = stream
	c.settings.SelectedAudioOut = &id
	c.saveSettings()
	return nil
}

func (c *Coordinator) openMidiInput(id ports.DeviceID) error {
	if c.midiStream != nil {
		_ = c.midiStream.Close()
		c.midiStream = nil
	}

	callback := func(raw []byte) {
		event, ok := ports.DecodeStatusBytes(raw)
		if !ok {
			return
		}
		c.midiQueue.TryPush(core.PlayerEvent{At: c.audioClock.Get(), Event: event})
	}

	stream, err := c.midiPort.OpenInput(id, callback)
	if err != nil {
		return &ports.MidiError{Kind: ports.MidiErrBackend, Message: err.Error(), Cause: err}
	}
	c.midiStream = stream
	c.settings.SelectedMidiIn = &id
	c.saveSettings()
	return nil
}

func (c *Coordinator) loadScore(source ports.ScoreSource) error {
	loaded, err := c.importer.Import(source)
	if err != nil {
		return err
	}
	c.applyScore(loaded)
	return nil
}

func (c *Coordinator) applyScore(loaded score.Score) {
	c.currentScore = &loaded
	c.transport.UpdateTempoMap(loaded.TempoMap)
	c.transport.Seek(0)
	c.scheduler.Seek(0)

	c.scheduler.SetScore(loaded.SortedPlaybackEvents())

	targets := loaded.SortedTargets()
	c.targets = make(map[uint64]core.TargetEvent, len(targets))
	for _, target := range targets {
		c.targets[target.ID] = target
	}
	for _, evt := range c.judge.LoadTargets(targets) {
		c.handleJudgeEvent(evt)
	}

	c.session = SessionReady
	c.emitSessionState()
	c.emitTransport(true)
}

func (c *Coordinator) setLoop(r *core.LoopRange) {
	c.scheduler.SetLoop(r)
	c.transport.SetLoop(r)
	c.emitTransport(true)
}

func (c *Coordinator) syncTransport() {
	if c.transport.State() != core.TransportPlaying {
		return
	}
	c.transport.SyncToSampleTime(c.audioClock.Get())
}

func (c *Coordinator) scheduleAutopilot() {
	if c.transport.State() != core.TransportPlaying {
		return
	}
	for _, event := range c.scheduler.Schedule(c.transport) {
		c.audioQueue.Push(event)
	}
}

func (c *Coordinator) processMidiInputs() {
	for {
		playerEvent, ok := c.midiQueue.Pop()
		if !ok {
			break
		}
		c.recordRecentInput(playerEvent)
		judgeTick, monitorSampleTime := c.mapPlayerEvent(playerEvent)
		c.routePlayerEvent(judgeTick, monitorSampleTime, playerEvent.Event)
	}
}

// mapPlayerEvent resolves both the judge tick and the monitor-bus sample
// time for an inbound player event. input_offset_ms corrects judging only
// and must never shift what the player actually hears, so the two are
// derived independently: monitorSampleTime stays anchored to the
// transport's unoffset current sample time, while judgeTick applies the
// configured offset before resolving the judge window.
func (c *Coordinator) mapPlayerEvent(playerEvent core.PlayerEvent) (judgeTick core.Tick, monitorSampleTime core.SampleTime) {
	monitorSampleTime = c.transport.NowSample()
	offsetTicks := c.transport.MsToTicks(c.inputOffsetMs)
	judgeTick = c.transport.NowTick() + offsetTicks
	return judgeTick, monitorSampleTime
}

func (c *Coordinator) routePlayerEvent(judgeTick core.Tick, monitorSampleTime core.SampleTime, event core.MidiLikeEvent) {
	if c.audioParams.MonitorEnabled() {
		c.audioQueue.Push(core.ScheduledEvent{SampleTime: monitorSampleTime, Bus: core.BusUserMonitor, Event: event})
	}
	if event.Kind == core.EventNoteOn {
		for _, evt := range c.judge.OnNoteOn(judgeTick, event.Note) {
			c.handleJudgeEvent(evt)
		}
	}
}

func (c *Coordinator) advanceJudge() {
	if c.transport.State() != core.TransportPlaying {
		return
	}
	for _, evt := range c.judge.AdvanceTo(c.transport.NowTick()) {
		c.handleJudgeEvent(evt)
	}
}

// handleJudgeEvent translates a judge.Event into a host-facing Event.
// FocusChanged carries no UI-visible information by itself and is dropped.
func (c *Coordinator) handleJudgeEvent(evt judge.Event) {
	switch evt.Kind {
	case judge.EventHit:
		c.emit(Event{
			Kind:          EvtJudgeFeedback,
			TargetID:      evt.TargetID,
			Grade:         evt.Grade,
			DeltaTick:     evt.DeltaTick,
			ExpectedNotes: sortedNotes(c.targets[evt.TargetID]),
		})
	case judge.EventMiss:
		c.emit(Event{
			Kind:          EvtJudgeFeedback,
			TargetID:      evt.TargetID,
			Grade:         judge.GradeMiss,
			ExpectedNotes: sortedNotes(c.targets[evt.TargetID]),
		})
	case judge.EventStats:
		var accuracy float64
		if total := evt.Hit + evt.Miss; total > 0 {
			accuracy = float64(evt.Hit) / float64(total)
		}
		c.emit(Event{Kind: EvtScoreSummaryUpdated, Combo: evt.Combo, Score: evt.Score, Accuracy: accuracy})
	case judge.EventFocusChanged:
	}
}

func (c *Coordinator) recordRecentInput(playerEvent core.PlayerEvent) {
	c.recentInputs = append(c.recentInputs, RecentInput{At: playerEvent.At, Event: playerEvent.Event})
	if len(c.recentInputs) > recentInputCapacity {
		c.recentInputs = c.recentInputs[len(c.recentInputs)-recentInputCapacity:]
	}
}

// emitRecentInputs batches queued inputs behind a 50ms throttle. This batch
// is the only input event the coordinator emits: there is no separate
// per-note input event. routePlayerEvent's JudgeFeedback and
// ScoreSummaryUpdated events appear only when an input resolves a target.
func (c *Coordinator) emitRecentInputs() {
	if len(c.recentInputs) == 0 {
		return
	}
	if c.hasLastInputEmit && time.Since(c.lastInputEmit) < inputEmitInterval {
		return
	}
	c.lastInputEmit = time.Now()
	c.hasLastInputEmit = true

	batch := append([]RecentInput(nil), c.recentInputs...)
	c.recentInputs = c.recentInputs[:0]
	c.emit(Event{Kind: EvtRecentInputEvents, RecentInputs: batch})
}

func (c *Coordinator) emitSessionState() {
	c.emit(Event{Kind: EvtSessionStateUpdated, SessionState: c.session, Settings: c.settings})
}

// emitTransport emits a TransportUpdated event, throttled to once per
// transportEmitInterval unless force is set (state-changing commands
// always force an immediate emission).
func (c *Coordinator) emitTransport(force bool) {
	if !force && c.hasLastTransportEmit && time.Since(c.lastTransportEmit) < transportEmitInterval {
		return
	}
	c.lastTransportEmit = time.Now()
	c.hasLastTransportEmit = true

	c.emit(Event{
		Kind:            EvtTransportUpdated,
		Tick:            c.transport.NowTick(),
		SampleTime:      c.transport.NowSample(),
		Playing:         c.transport.State() == core.TransportPlaying,
		TempoMultiplier: c.transport.TempoMultiplier(),
		LoopRange:       c.transport.LoopRange(),
	})
}

// flushAudioNotes pushes an all-notes-off plus pedal-up onto the
// Autopilot and UserMonitor buses at the transport's current sample time,
// so a Seek or Stop can't leave a voice ringing from before the jump.
func (c *Coordinator) flushAudioNotes() {
	now := c.transport.NowSample()
	for _, bus := range [2]core.Bus{core.BusAutopilot, core.BusUserMonitor} {
		for note := 0; note < 128; note++ {
			c.audioQueue.Push(core.ScheduledEvent{SampleTime: now, Bus: bus, Event: core.NoteOff(uint8(note))})
		}
		c.audioQueue.Push(core.ScheduledEvent{SampleTime: now, Bus: bus, Event: core.Cc64(0)})
	}
}

func (c *Coordinator) saveSettings() {
	if err := c.storage.SaveSettings(c.settings); err != nil {
		logger.GetLogger().Warn("failed to persist settings", "error", err)
	}
}

func (c *Coordinator) diagnostics() string {
	stats := c.judge.Stats()
	return fmt.Sprintf(
		"session=%d tick=%d sample=%d tempo_x=%.3f hit=%d miss=%d wrong=%d combo=%d score=%d",
		c.session, c.transport.NowTick(), c.transport.NowSample(), c.transport.TempoMultiplier(),
		stats.Hit, stats.Miss, stats.Wrong, stats.Combo, stats.Score,
	)
}

func sortedNotes(target core.TargetEvent) []uint8 {
	notes := make([]uint8, 0, len(target.Notes))
	for note := range target.Notes {
		notes = append(notes, note)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })
	return notes
}
