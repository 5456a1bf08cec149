// Package ports declares the capability interfaces the coordinator
// consumes: audio output, MIDI input, storage, and score import. Besides
// the interfaces it holds DecodeStatusBytes and SMFScoreImporter; the
// device and storage backends live in cmd/practicecore-demo (ebiten audio,
// gomidi input, JSON-file settings).
package ports

import (
	"io"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/score"
)

// DeviceID identifies an audio or MIDI device as reported by a backend.
type DeviceID string

// AudioConfig describes the stream configuration a backend opened.
type AudioConfig struct {
	SampleRateHz       uint32
	Channels           uint16
	BufferSizeFrames   uint32
	HasBufferSizeFrames bool
}

// AudioOutputDevice is one entry of an audio backend's device list.
type AudioOutputDevice struct {
	ID            DeviceID
	Name          string
	DefaultConfig AudioConfig
}

// MidiInputDevice is one entry of a MIDI backend's device list.
type MidiInputDevice struct {
	ID          DeviceID
	Name        string
	IsAvailable bool
}

// RenderCallback is invoked by the audio backend on a single dedicated
// thread with a constant buffer size and non-overlapping frames. It must
// never allocate, lock, or block.
type RenderCallback func(startSample core.SampleTime, outL, outR []float32)

// StreamHandle is closed (io.Closer) to signal the backend thread to stop.
type StreamHandle interface {
	io.Closer
}

// AudioOutputPort is the audio backend contract a host implements.
type AudioOutputPort interface {
	ListOutputs() ([]AudioOutputDevice, error)
	OpenOutput(id DeviceID, config AudioConfig, render RenderCallback) (StreamHandle, error)
}

// MidiInputCallback is invoked by the MIDI backend on a dedicated thread
// per message, with the message's raw 1-3 status bytes.
type MidiInputCallback func(raw []byte)

// MidiInputPort is the MIDI backend contract a host implements.
type MidiInputPort interface {
	ListInputs() ([]MidiInputDevice, error)
	OpenInput(id DeviceID, callback MidiInputCallback) (StreamHandle, error)
}

// Settings is the persisted configuration contract a host stores.
type Settings struct {
	SelectedMidiIn            *DeviceID
	SelectedAudioOut          *DeviceID
	AudioBufferSizeFrames     *uint32
	MonitorEnabled            bool
	MasterVolume              core.Volume01
	BusUserVolume             core.Volume01
	BusAutopilotVolume        core.Volume01
	BusMetronomeVolume        core.Volume01
	InputOffsetMs             int32
	DefaultSf2Path            *string
	AudiverisPath             *string
}

// DefaultSettings returns the documented defaults for unknown/missing
// fields: 0.8 volumes, 0.6 metronome, monitor enabled.
func DefaultSettings() Settings {
	return Settings{
		MonitorEnabled:     true,
		MasterVolume:       core.ClampVolume(0.8),
		BusUserVolume:      core.ClampVolume(0.8),
		BusAutopilotVolume: core.ClampVolume(0.8),
		BusMetronomeVolume: core.ClampVolume(0.6),
	}
}

// StoragePort persists settings. Failures are non-fatal to the core.
type StoragePort interface {
	LoadSettings() (Settings, error)
	SaveSettings(Settings) error
}

// ScoreSource names where a score comes from.
type ScoreSourceKind int

const (
	ScoreSourceMidiFile ScoreSourceKind = iota
	ScoreSourceMusicXmlFile
	ScoreSourceInternalDemo
)

type ScoreSource struct {
	Kind ScoreSourceKind
	Path string // MidiFile/MusicXmlFile path, or InternalDemo id
}

// ScoreImporter turns an external score source into the core's Score
// model. The core only ever reads tracks[0] of the result.
type ScoreImporter interface {
	Import(source ScoreSource) (score.Score, error)
}

// DecodeStatusBytes parses a raw 1-3 byte MIDI message into a
// MidiLikeEvent: 0x80 NoteOff, 0x90 vel==0 NoteOff, 0x90 vel>0 NoteOn,
// 0xB0 cc==64 Cc64. Any other message is dropped (ok=false).
func DecodeStatusBytes(raw []byte) (core.MidiLikeEvent, bool) {
	if len(raw) == 0 {
		return core.MidiLikeEvent{}, false
	}
	status := raw[0] & 0xF0
	switch status {
	case 0x80:
		if len(raw) < 2 {
			return core.MidiLikeEvent{}, false
		}
		return core.NoteOff(raw[1]), true
	case 0x90:
		if len(raw) < 3 {
			return core.MidiLikeEvent{}, false
		}
		if raw[2] == 0 {
			return core.NoteOff(raw[1]), true
		}
		return core.NoteOn(raw[1], raw[2]), true
	case 0xB0:
		if len(raw) < 3 || raw[1] != 64 {
			return core.MidiLikeEvent{}, false
		}
		return core.Cc64(raw[2]), true
	default:
		return core.MidiLikeEvent{}, false
	}
}
