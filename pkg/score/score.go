// Package score models a loaded score: its tempo map, target list, and
// flattened playback event list. The core consumes only track 0; scores
// are produced by a ports.ScoreImporter. The package's own SMFImporter
// reads Standard MIDI Files for the reference importer.
package score

import (
	"sort"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// Source records where a Score came from, for display only.
type Source int

const (
	SourceMidi Source = iota
	SourceMusicXml
	SourcePdfOmr
	SourceInternal
)

// Meta is display-only metadata about a loaded score.
type Meta struct {
	Title  string
	Source Source
}

// Track is one part of a score: its own targets (for the judge) and its
// own flattened playback events (for the scheduler).
type Track struct {
	ID             uint32
	Name           string
	Hand           core.Hand
	HasHand        bool
	Targets        []core.TargetEvent
	PlaybackEvents []core.PlaybackMidiEvent
}

// Score is the importer's output shape. The core only ever reads
// Tracks[0].
type Score struct {
	Meta     Meta
	Ppq      uint16
	TempoMap []core.TempoPoint
	Tracks   []Track
}

// New builds an empty score with the synthetic default tempo point, the
// same default a TempoMap synthesizes when none is supplied.
func New(meta Meta, ppq uint16) Score {
	return Score{
		Meta:     meta,
		Ppq:      ppq,
		TempoMap: []core.TempoPoint{{Tick: 0, UsPerQuarter: 500_000}},
	}
}

// PrimaryTrack returns Tracks[0], or a zero Track if the score has none.
func (s Score) PrimaryTrack() Track {
	if len(s.Tracks) == 0 {
		return Track{}
	}
	return s.Tracks[0]
}

// SortedPlaybackEvents returns the primary track's playback events stably
// sorted by tick, matching Scheduler.set_score's contract.
func (s Score) SortedPlaybackEvents() []core.PlaybackMidiEvent {
	events := append([]core.PlaybackMidiEvent(nil), s.PrimaryTrack().PlaybackEvents...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	return events
}

// SortedTargets returns the primary track's targets stably sorted by
// tick, matching Judge.load_targets's expectation of an ordered list.
func (s Score) SortedTargets() []core.TargetEvent {
	targets := append([]core.TargetEvent(nil), s.PrimaryTrack().Targets...)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Tick < targets[j].Tick })
	return targets
}
