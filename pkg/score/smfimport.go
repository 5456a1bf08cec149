package score

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// SMFImporter is a Standard MIDI File reader; ports.SMFScoreImporter wraps
// it as the reference ports.ScoreImporter. It is exercised by this module's own
// tests and demo harness; a host application is free to substitute its
// own importer.
type SMFImporter struct{}

func NewSMFImporter() SMFImporter { return SMFImporter{} }

// ImportFile reads a Standard MIDI File into a Score. Track 0's note and
// sustain-pedal events become both the track's playback events and its
// targets (one target per distinct NoteOn tick, aggregating all notes
// struck at that tick); tempo meta-events across every track are merged
// into the tempo map rather than scanning only track 0, since tempo
// changes are conventionally authored on a dedicated track.
func (SMFImporter) ImportFile(path string) (Score, error) {
	smfFile, err := smf.ReadFile(path)
	if err != nil {
		return Score{}, fmt.Errorf("practicecore/score: read %q: %w", path, err)
	}

	ppq := uint16(480)
	if mt, ok := smfFile.TimeFormat.(smf.MetricTicks); ok {
		ppq = uint16(mt)
	}

	var tempoPoints []core.TempoPoint
	var playback []core.PlaybackMidiEvent
	targetsByTick := map[core.Tick]*core.TargetEvent{}
	var targetOrder []core.Tick
	var nextTargetID uint64

	for trackIdx, track := range smfFile.Tracks {
		var absTick uint32
		for _, te := range track {
			absTick += te.Delta
			tick := core.Tick(absTick)

			var bpm float64
			if te.Message.GetMetaTempo(&bpm) && bpm > 0 {
				usPerQuarter := uint32(60_000_000.0 / bpm)
				tempoPoints = append(tempoPoints, core.TempoPoint{Tick: tick, UsPerQuarter: usPerQuarter})
				continue
			}
			if trackIdx != 0 {
				continue
			}

			var channel, key, velocity, controller, value uint8
			switch {
			case te.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				ev := core.NoteOn(key, velocity)
				playback = append(playback, core.PlaybackMidiEvent{Tick: tick, Event: ev})
				target, ok := targetsByTick[tick]
				if !ok {
					target = &core.TargetEvent{ID: nextTargetID, Tick: tick, Notes: map[uint8]struct{}{}}
					nextTargetID++
					targetsByTick[tick] = target
					targetOrder = append(targetOrder, tick)
				}
				target.Notes[key] = struct{}{}
			case te.Message.GetNoteOn(&channel, &key, &velocity):
				playback = append(playback, core.PlaybackMidiEvent{Tick: tick, Event: core.NoteOff(key)})
			case te.Message.GetNoteOff(&channel, &key, &velocity):
				playback = append(playback, core.PlaybackMidiEvent{Tick: tick, Event: core.NoteOff(key)})
			case te.Message.GetControlChange(&channel, &controller, &value) && controller == 64:
				playback = append(playback, core.PlaybackMidiEvent{Tick: tick, Event: core.Cc64(value)})
			}
		}
	}

	targets := make([]core.TargetEvent, 0, len(targetOrder))
	for _, tick := range targetOrder {
		targets = append(targets, *targetsByTick[tick])
	}

	s := New(Meta{Title: path, Source: SourceMidi}, ppq)
	if len(tempoPoints) > 0 {
		s.TempoMap = tempoPoints
	}
	s.Tracks = []Track{{
		ID:             0,
		Name:           "track 0",
		Targets:        targets,
		PlaybackEvents: playback,
	}}
	return s, nil
}
