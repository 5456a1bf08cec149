// Package synth declares the synth backend contract and ships two
// implementations: a physically-modeled waveguide piano (always
// available) and a soundfont-sample player (active once a .sf2 is
// loaded).
package synth

import (
	"github.com/cadenzapiano/practicecore/pkg/core"
)

// SoundFontInfo describes a successfully loaded soundfont.
type SoundFontInfo struct {
	Path          string
	PresetCount   int
	DefaultBankMs uint8
}

// ErrorKind discriminates SynthError's variants.
type ErrorKind int

const (
	ErrSoundFontLoad ErrorKind = iota
	ErrUnsupportedFormat
	ErrBackend
)

// SynthError is the synth backend's tagged error.
type SynthError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SynthError) Error() string {
	switch e.Kind {
	case ErrSoundFontLoad:
		return "soundfont load failed: " + e.Message
	case ErrUnsupportedFormat:
		return "unsupported soundfont format: " + e.Message
	default:
		return "synth backend error: " + e.Message
	}
}

func (e *SynthError) Unwrap() error { return e.Cause }

// Synth is the per-bus synth backend contract. HandleEvent and Render are
// called from the audio render thread and never block beyond a
// best-effort try-lock; LoadSoundFontFromPath, SetSampleRate and
// SetProgram are control-thread calls that may lock or read files.
type Synth interface {
	LoadSoundFontFromPath(path string) (SoundFontInfo, error)
	SetSampleRate(sampleRateHz uint32)
	SetProgram(bus core.Bus, gmProgram uint8) error
	HandleEvent(bus core.Bus, event core.MidiLikeEvent, at core.SampleTime)
	Render(bus core.Bus, frames int, outL, outR []float32)
}

func busIndex(bus core.Bus) int {
	switch bus {
	case core.BusUserMonitor:
		return 0
	case core.BusAutopilot:
		return 1
	case core.BusMetronomeFx:
		return 2
	default:
		return 1
	}
}
