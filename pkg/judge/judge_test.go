package judge

import (
	"testing"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

func notes(ns ...uint8) map[uint8]struct{} {
	m := make(map[uint8]struct{}, len(ns))
	for _, n := range ns {
		m[n] = struct{}{}
	}
	return m
}

func lastHit(events []Event) (Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventHit {
			return events[i], true
		}
	}
	return Event{}, false
}

func lastStats(events []Event) (Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventStats {
			return events[i], true
		}
	}
	return Event{}, false
}

// E1 — single perfect hit.
func TestE1SinglePerfectHit(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 5, GoodWindowTicks: 10, ChordRollTicks: 4, WrongNotePolicy: RecordOnly})
	j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: 100, Notes: notes(60)}})

	events := j.OnNoteOn(100, 60)

	hit, ok := lastHit(events)
	if !ok || hit.TargetID != 1 || hit.Grade != GradePerfect || hit.DeltaTick != 0 {
		t.Fatalf("expected Perfect hit on target 1 delta 0, got %+v ok=%v", hit, ok)
	}
	stats := j.Stats()
	if stats.Hit != 1 || stats.Combo != 1 || stats.Score != 100 {
		t.Fatalf("expected stats {hit:1 combo:1 score:100}, got %+v", stats)
	}
}

// E2 — wrong note degrades Perfect under DegradePerfect.
func TestE2WrongNoteDegradesPerfect(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 3, GoodWindowTicks: 8, ChordRollTicks: 4, WrongNotePolicy: DegradePerfect})
	j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: 200, Notes: notes(64)}})

	j.OnNoteOn(200, 65)
	events := j.OnNoteOn(200, 64)

	hit, ok := lastHit(events)
	if !ok || hit.TargetID != 1 || hit.Grade != GradeGood || hit.DeltaTick != 0 || hit.WrongNotes != 1 {
		t.Fatalf("expected Good hit with 1 wrong note, got %+v ok=%v", hit, ok)
	}
}

// E3 — chord roll within tolerance still resolves Perfect.
func TestE3ChordRoll(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 2, GoodWindowTicks: 6, ChordRollTicks: 3, WrongNotePolicy: RecordOnly})
	j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: 300, Notes: notes(60, 64)}})

	j.OnNoteOn(300, 60)
	events := j.OnNoteOn(302, 64)

	hit, ok := lastHit(events)
	if !ok || hit.TargetID != 1 || hit.Grade != GradePerfect || hit.DeltaTick != 0 {
		t.Fatalf("expected Perfect hit via chord roll, got %+v ok=%v", hit, ok)
	}
}

// E4 — miss by timeout.
func TestE4MissByTimeout(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 2, GoodWindowTicks: 6, ChordRollTicks: 3, WrongNotePolicy: RecordOnly})
	j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: 100, Notes: notes(60)}})

	events := j.AdvanceTo(200)

	var missEvent Event
	var foundMiss bool
	for _, e := range events {
		if e.Kind == EventMiss {
			missEvent = e
			foundMiss = true
		}
	}
	if !foundMiss || missEvent.TargetID != 1 || missEvent.Reason != MissTimeout {
		t.Fatalf("expected Miss{Timeout} for target 1, got %+v found=%v", missEvent, foundMiss)
	}
	stats, ok := lastStats(events)
	if !ok || stats.Combo != 0 || stats.Miss != 1 {
		t.Fatalf("expected stats {combo:0 miss:1}, got %+v", stats)
	}
}

func TestFocusChangedEmittedOnLoadAndAdvance(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 5, GoodWindowTicks: 10, ChordRollTicks: 4})
	loadEvents := j.LoadTargets([]core.TargetEvent{
		{ID: 1, Tick: 0, Notes: notes(60)},
		{ID: 2, Tick: 100, Notes: notes(62)},
	})
	if len(loadEvents) != 1 || loadEvents[0].Kind != EventFocusChanged || loadEvents[0].TargetID != 1 {
		t.Fatalf("expected initial FocusChanged(1), got %+v", loadEvents)
	}

	events := j.OnNoteOn(0, 60)
	var sawFocus2 bool
	for _, e := range events {
		if e.Kind == EventFocusChanged && e.HasTargetID && e.TargetID == 2 {
			sawFocus2 = true
		}
	}
	if !sawFocus2 {
		t.Fatalf("expected FocusChanged(2) after resolving target 1, got %+v", events)
	}
}

func TestEmptyExpectedSetNeverResolves(t *testing.T) {
	j := New(Config{PerfectWindowTicks: 5, GoodWindowTicks: 10, ChordRollTicks: 4})
	j.LoadTargets([]core.TargetEvent{{ID: 1, Tick: 50, Notes: notes()}})
	events := j.OnNoteOn(50, 60)
	for _, e := range events {
		if e.Kind == EventHit {
			t.Fatalf("target with empty expected set must never resolve a Hit, got %+v", e)
		}
	}
}
