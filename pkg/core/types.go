// Package core provides the tempo map, transport, atomic parameter bundle,
// audio clock, and lock-free queues shared between the control thread and
// the audio thread.
package core

// Tick is musical time measured in pulses-per-quarter-note units. It is
// score-only and monotonic within a single score.
type Tick int64

// SampleTime is an audio frame index counted from stream start.
type SampleTime uint64

// Bus names an independent mix path with its own synth voice state.
type Bus int

const (
	BusUserMonitor Bus = iota
	BusAutopilot
	BusMetronomeFx
)

func (b Bus) String() string {
	switch b {
	case BusUserMonitor:
		return "UserMonitor"
	case BusAutopilot:
		return "Autopilot"
	case BusMetronomeFx:
		return "MetronomeFx"
	default:
		return "Bus(?)"
	}
}

// Hand tags a scored event to the left or right hand part, used by the
// scheduler's accompaniment routing.
type Hand int

const (
	HandLeft Hand = iota
	HandRight
)

// MidiEventKind discriminates the variants of MidiLikeEvent.
type MidiEventKind int

const (
	EventNoteOn MidiEventKind = iota
	EventNoteOff
	EventCc64
)

// MidiLikeEvent is a tagged union mirroring the three message shapes the
// core cares about. Note and Velocity are meaningful for NoteOn/NoteOff;
// Value is meaningful for Cc64 (>=64 means pedal down).
type MidiLikeEvent struct {
	Kind     MidiEventKind
	Note     uint8
	Velocity uint8
	Value    uint8
}

// NoteOn builds a NoteOn event.
func NoteOn(note, velocity uint8) MidiLikeEvent {
	return MidiLikeEvent{Kind: EventNoteOn, Note: note, Velocity: velocity}
}

// NoteOff builds a NoteOff event.
func NoteOff(note uint8) MidiLikeEvent {
	return MidiLikeEvent{Kind: EventNoteOff, Note: note}
}

// Cc64 builds a sustain-pedal controller event.
func Cc64(value uint8) MidiLikeEvent {
	return MidiLikeEvent{Kind: EventCc64, Value: value}
}

// PedalDown reports whether a Cc64 event represents the pedal going down.
func (e MidiLikeEvent) PedalDown() bool {
	return e.Kind == EventCc64 && e.Value >= 64
}

// Rank orders same-sample-time events for a deterministic tie-break:
// pedal-down(0) < NoteOff(1) < NoteOn(2) < pedal-up(3).
func (e MidiLikeEvent) Rank() int {
	switch e.Kind {
	case EventCc64:
		if e.PedalDown() {
			return 0
		}
		return 3
	case EventNoteOff:
		return 1
	case EventNoteOn:
		return 2
	default:
		return 2
	}
}

// NoteKey is the tie-break's third key: the note number, or the value for
// a CC event, so that identical-rank events still sort deterministically.
func (e MidiLikeEvent) NoteKey() uint8 {
	if e.Kind == EventCc64 {
		return e.Value
	}
	return e.Note
}

// LessForAudioOrder totally orders two ScheduledEvents: ascending
// sample_time, then ascending Rank, then ascending NoteKey.
func LessForAudioOrder(a, b ScheduledEvent) bool {
	if a.SampleTime != b.SampleTime {
		return a.SampleTime < b.SampleTime
	}
	ra, rb := a.Event.Rank(), b.Event.Rank()
	if ra != rb {
		return ra < rb
	}
	return a.Event.NoteKey() < b.Event.NoteKey()
}

// Volume01 is a real clamped to [0,1].
type Volume01 float32

// ClampVolume clamps v into [0,1].
func ClampVolume(v float32) Volume01 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return Volume01(v)
	}
}

func (v Volume01) Float32() float32 { return float32(v) }

// ScheduledEvent is the unit carried on the control->audio SPSC queue.
type ScheduledEvent struct {
	SampleTime SampleTime
	Bus        Bus
	Event      MidiLikeEvent
}

// PlaybackMidiEvent is one entry of a score's flattened note/cc list.
type PlaybackMidiEvent struct {
	Tick  Tick
	Event MidiLikeEvent
	Hand  Hand
	HasHand bool
}

// TargetEvent aggregates all NoteOn pitches at a single tick in a track —
// the unit the judge resolves.
type TargetEvent struct {
	ID      uint64
	Tick    Tick
	Notes   map[uint8]struct{}
	Hand    Hand
	HasHand bool
}

// LoopRange is a half-open tick interval [Start, End).
type LoopRange struct {
	Start Tick
	End   Tick
}

// PlayerEvent is a raw player input carried on the device->control SPSC
// queue, timestamped by the device backend's own clock.
type PlayerEvent struct {
	At    SampleTime
	Event MidiLikeEvent
}
