package score

import (
	"testing"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

func TestSortedPlaybackEventsStableByTick(t *testing.T) {
	s := New(Meta{Title: "demo"}, 480)
	s.Tracks = []Track{{
		PlaybackEvents: []core.PlaybackMidiEvent{
			{Tick: 480, Event: core.NoteOn(64, 90)},
			{Tick: 0, Event: core.NoteOn(60, 100)},
			{Tick: 0, Event: core.Cc64(127)},
		},
	}}
	events := s.SortedPlaybackEvents()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Tick != 0 || events[1].Tick != 0 || events[2].Tick != 480 {
		t.Fatalf("events not sorted by tick: %+v", events)
	}
	// stable: the two tick-0 events keep their input order
	if events[0].Event.Kind != core.EventNoteOn || events[1].Event.Kind != core.EventCc64 {
		t.Fatalf("expected stable order preserved at equal ticks, got %+v", events[:2])
	}
}

func TestPrimaryTrackOnEmptyScore(t *testing.T) {
	s := New(Meta{}, 480)
	if got := s.PrimaryTrack(); len(got.Targets) != 0 || len(got.PlaybackEvents) != 0 {
		t.Fatalf("expected zero-value track for empty score, got %+v", got)
	}
}
