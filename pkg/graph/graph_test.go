package graph

import (
	"testing"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/synth"
)

// recordingSynth captures every HandleEvent call in arrival order and
// reports a constant tone from Render so tests can assert on call order
// and frame counts without depending on real DSP.
type recordingSynth struct {
	calls []core.MidiLikeEvent
}

func (r *recordingSynth) LoadSoundFontFromPath(string) (synth.SoundFontInfo, error) {
	return synth.SoundFontInfo{}, nil
}
func (r *recordingSynth) SetSampleRate(uint32)              {}
func (r *recordingSynth) SetProgram(core.Bus, uint8) error { return nil }
func (r *recordingSynth) HandleEvent(bus core.Bus, event core.MidiLikeEvent, at core.SampleTime) {
	r.calls = append(r.calls, event)
}
func (r *recordingSynth) Render(bus core.Bus, frames int, outL, outR []float32) {
	for i := 0; i < frames && i < len(outL); i++ {
		outL[i] = 1
		outR[i] = 1
	}
}

func newParams() *core.AudioParams {
	return core.NewAudioParams(core.ClampVolume(1), core.ClampVolume(1), core.ClampVolume(1), core.ClampVolume(1), true)
}

// E6 — audio-graph ordering at identical sample_time: NoteOn, NoteOff,
// Cc64(127) queued at sample 0 must be observed in rank order
// Cc64(pedal-down), NoteOff, NoteOn.
func TestE6OrderingAtIdenticalSampleTime(t *testing.T) {
	rec := &recordingSynth{}
	params := newParams()
	params.SetPlaybackEnabled(true)
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}

	queue.Push(core.ScheduledEvent{SampleTime: 0, Bus: core.BusAutopilot, Event: core.NoteOn(60, 100)})
	queue.Push(core.ScheduledEvent{SampleTime: 0, Bus: core.BusAutopilot, Event: core.NoteOff(60)})
	queue.Push(core.ScheduledEvent{SampleTime: 0, Bus: core.BusAutopilot, Event: core.Cc64(127)})

	g := New(rec, params, queue, clock)
	outL := make([]float32, 64)
	outR := make([]float32, 64)
	g.Render(0, outL, outR)

	if len(rec.calls) != 3 {
		t.Fatalf("expected 3 handle_event calls, got %d", len(rec.calls))
	}
	if rec.calls[0].Kind != core.EventCc64 || !rec.calls[0].PedalDown() {
		t.Fatalf("expected pedal-down Cc64 first, got %+v", rec.calls[0])
	}
	if rec.calls[1].Kind != core.EventNoteOff {
		t.Fatalf("expected NoteOff second, got %+v", rec.calls[1])
	}
	if rec.calls[2].Kind != core.EventNoteOn {
		t.Fatalf("expected NoteOn third, got %+v", rec.calls[2])
	}
}

// Invariant 3: for a block with N queued events all within [start,end),
// handle_event is called exactly N times.
func TestHandleEventCallCountMatchesQueuedEvents(t *testing.T) {
	rec := &recordingSynth{}
	params := newParams()
	params.SetPlaybackEnabled(true)
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}

	const n = 20
	for i := 0; i < n; i++ {
		queue.Push(core.ScheduledEvent{SampleTime: core.SampleTime(i * 10), Bus: core.BusAutopilot, Event: core.NoteOn(uint8(60+i), 100)})
	}

	g := New(rec, params, queue, clock)
	outL := make([]float32, 256)
	outR := make([]float32, 256)
	g.Render(0, outL, outR)

	if len(rec.calls) != n {
		t.Fatalf("expected %d handle_event calls, got %d", n, len(rec.calls))
	}
}

// Invariant 4: the audio clock after a block equals start+frames, and is
// monotonically non-decreasing across successive blocks.
func TestAudioClockAdvancesByFrameCountAndIsMonotonic(t *testing.T) {
	rec := &recordingSynth{}
	params := newParams()
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}
	g := New(rec, params, queue, clock)

	outL := make([]float32, 128)
	outR := make([]float32, 128)

	var lastClock core.SampleTime
	start := core.SampleTime(0)
	for i := 0; i < 10; i++ {
		g.Render(start, outL, outR)
		got := clock.Get()
		want := start + core.SampleTime(len(outL))
		if got != want {
			t.Fatalf("block %d: expected clock %d, got %d", i, want, got)
		}
		if got < lastClock {
			t.Fatalf("block %d: clock went backwards: %d < %d", i, got, lastClock)
		}
		lastClock = got
		start = got
	}
}

func TestRenderAppliesMasterAndBusVolumes(t *testing.T) {
	rec := &recordingSynth{}
	params := core.NewAudioParams(core.ClampVolume(0.5), core.ClampVolume(0.5), core.ClampVolume(1), core.ClampVolume(1), true)
	params.SetPlaybackEnabled(true)
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}

	g := New(rec, params, queue, clock)
	outL := make([]float32, 8)
	outR := make([]float32, 8)
	g.Render(0, outL, outR)

	// master 0.5 * (user 0.5 + autopilot 1 + metronome 1) = 1.25; the
	// limiter can only pull samples down from there.
	const want = float32(0.5 * (0.5 + 1 + 1))
	for i, v := range outL {
		if v <= 0 || v > want {
			t.Fatalf("sample %d: expected non-zero output no louder than %v, got %v", i, want, v)
		}
	}
}

// TestSoftLimitEnvelopePersistsAndConvergesToCeiling pins the one-pole
// peak-follower's behavior: the envelope state persists across separate
// Render callbacks (not reset per block), so a sustained loud signal's
// gain keeps converging toward the 0.98 ceiling instead of resetting to
// unclamped output at every block boundary.
func TestSoftLimitEnvelopePersistsAndConvergesToCeiling(t *testing.T) {
	rec := &recordingSynth{}
	params := newParams()
	params.SetPlaybackEnabled(true)
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}

	g := New(rec, params, queue, clock)
	outL := make([]float32, 4)
	outR := make([]float32, 4)

	var lastSample float32
	for i := 0; i < 200; i++ {
		g.Render(clock.Get(), outL, outR)
		lastSample = outL[len(outL)-1]
	}

	if lastSample >= 3 {
		t.Fatalf("expected sustained loud input to be pulled down well below the raw 3.0 sum, got %v", lastSample)
	}
	if lastSample < 0.9 || lastSample > 1.0 {
		t.Fatalf("expected the envelope to have converged near the 0.98 ceiling, got %v", lastSample)
	}
}

func TestUserMonitorMutedWhenMonitorDisabled(t *testing.T) {
	rec := &recordingSynth{}
	params := newParams()
	params.SetMonitorEnabled(false)
	params.SetPlaybackEnabled(true)
	queue := core.NewScheduledEventQueue()
	clock := &core.AudioClock{}

	g := New(rec, params, queue, clock)
	outL := make([]float32, 8)
	outR := make([]float32, 8)
	g.Render(0, outL, outR)

	for i, v := range outL {
		if v == 0 {
			t.Fatalf("sample %d: expected Autopilot/MetronomeFx still audible, got silence", i)
		}
	}
	if outL[0] != 2 {
		t.Fatalf("expected only Autopilot+MetronomeFx (2.0) in the mix, got %v", outL[0])
	}
}
