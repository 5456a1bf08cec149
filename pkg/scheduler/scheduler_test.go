package scheduler

import (
	"testing"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

func events(ticks ...core.Tick) []core.PlaybackMidiEvent {
	out := make([]core.PlaybackMidiEvent, len(ticks))
	for i, tick := range ticks {
		out[i] = core.PlaybackMidiEvent{Tick: tick, Event: core.NoteOn(60, 100)}
	}
	return out
}

// E5 — loop edge: after scheduling past the loop end, the transport is
// seeked back to the loop start and the next scheduled NoteOn is at the
// loop start tick again.
func TestE5LoopEdge(t *testing.T) {
	tr := core.NewTransport(480, 48000, []core.TempoPoint{{Tick: 0, UsPerQuarter: 500_000}})
	tr.Play()

	s := New(48000, Config{LookaheadMs: 30})
	s.SetScore(events(0, 240, 480, 720, 960))
	s.SetLoop(&core.LoopRange{Start: 240, End: 720})
	s.Seek(240)

	var sawWraparound bool
	var lastSample core.SampleTime
	for i := 0; i < 2000; i++ {
		emitted := s.Schedule(tr)
		for _, e := range emitted {
			if e.SampleTime < lastSample {
				t.Fatalf("sample_time must be monotonic within a pass, got %d after %d", e.SampleTime, lastSample)
			}
			lastSample = e.SampleTime
		}
		if tr.NowTick() == 240 && i > 0 {
			sawWraparound = true
			break
		}
		tr.AdvanceBySamples(512)
	}
	if !sawWraparound {
		t.Fatalf("expected the transport to wrap back to loop start 240")
	}
	next := s.Schedule(tr)
	if len(next) == 0 || next[0].SampleTime != tr.TickToSample(240) {
		t.Fatalf("expected the next scheduled NoteOn at loop start tick 240, got %+v", next)
	}
}

// Invariant 9: the scheduler never emits an event with tick >= loop end
// without first seeking the transport to the loop start.
func TestLoopNeverEmitsPastEndWithoutSeeking(t *testing.T) {
	tr := core.NewTransport(480, 48000, []core.TempoPoint{{Tick: 0, UsPerQuarter: 500_000}})
	tr.Play()

	s := New(48000, Config{LookaheadMs: 30})
	s.SetScore(events(0, 100, 200, 300, 400, 500))
	s.SetLoop(&core.LoopRange{Start: 0, End: 300})

	for i := 0; i < 500; i++ {
		emitted := s.Schedule(tr)
		for _, e := range emitted {
			tick := tr.SampleToTick(e.SampleTime)
			if tick >= 300 {
				t.Fatalf("emitted event at tick %d >= loop end 300 without a prior seek", tick)
			}
		}
		tr.AdvanceBySamples(512)
	}
}

func TestAccompanimentRouteDropsMutedHand(t *testing.T) {
	tr := core.NewTransport(480, 48000, nil)
	tr.Play()

	s := New(48000, Config{LookaheadMs: 1000})
	ev := []core.PlaybackMidiEvent{
		{Tick: 0, Event: core.NoteOn(60, 100), Hand: core.HandLeft, HasHand: true},
		{Tick: 0, Event: core.NoteOn(64, 100), Hand: core.HandRight, HasHand: true},
	}
	s.SetScore(ev)
	s.SetMode(ModeAccompaniment)
	s.SetAccompanimentRoute(false, true)

	emitted := s.Schedule(tr)
	if len(emitted) != 1 {
		t.Fatalf("expected only the right-hand event to pass, got %d events", len(emitted))
	}
	if emitted[0].Event.Note != 64 {
		t.Fatalf("expected note 64 (right hand), got %d", emitted[0].Event.Note)
	}
}

func TestDemoModeAlwaysRoutesToAutopilot(t *testing.T) {
	tr := core.NewTransport(480, 48000, nil)
	tr.Play()

	s := New(48000, Config{LookaheadMs: 1000})
	s.SetScore([]core.PlaybackMidiEvent{
		{Tick: 0, Event: core.NoteOn(60, 100), Hand: core.HandLeft, HasHand: true},
	})
	s.SetMode(ModeDemo)
	s.SetAccompanimentRoute(false, false)

	emitted := s.Schedule(tr)
	if len(emitted) != 1 || emitted[0].Bus != core.BusAutopilot {
		t.Fatalf("Demo mode must route every event to Autopilot regardless of hand mutes, got %+v", emitted)
	}
}
