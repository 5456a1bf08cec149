package synth

import (
	"bytes"
	"os"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

// SoundFontSynth is the sample-playback backend: a go-meltysynth
// synthesizer per bus, all sharing one parsed SoundFont, selected once a
// .sf2 has been loaded via LoadSoundFontFromPath. Until a SoundFont is
// loaded HandleEvent does nothing, Render produces no sound and SetProgram
// returns an error; callers fall back to WaveguidePianoSynth for sound in
// that state.
type SoundFontSynth struct {
	mu           sync.Mutex
	sampleRateHz uint32
	soundFont    *meltysynth.SoundFont
	path         string
	voices       [3]*meltysynth.Synthesizer
}

// NewSoundFontSynth builds an unloaded backend at the given sample rate.
func NewSoundFontSynth(sampleRateHz uint32) *SoundFontSynth {
	return &SoundFontSynth{sampleRateHz: sampleRateHz}
}

// Loaded reports whether a SoundFont has been parsed successfully.
func (s *SoundFontSynth) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.soundFont != nil
}

func (s *SoundFontSynth) LoadSoundFontFromPath(path string) (SoundFontInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SoundFontInfo{}, &SynthError{Kind: ErrSoundFontLoad, Message: err.Error(), Cause: err}
	}

	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return SoundFontInfo{}, &SynthError{Kind: ErrSoundFontLoad, Message: err.Error(), Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := meltysynth.NewSynthesizerSettings(int32(s.sampleRateHz))
	var voices [3]*meltysynth.Synthesizer
	for i := range voices {
		synth, err := meltysynth.NewSynthesizer(sf, settings)
		if err != nil {
			return SoundFontInfo{}, &SynthError{Kind: ErrBackend, Message: err.Error(), Cause: err}
		}
		voices[i] = synth
	}

	s.soundFont = sf
	s.path = path
	s.voices = voices

	return SoundFontInfo{Path: path, PresetCount: len(sf.GetPresets())}, nil
}

func (s *SoundFontSynth) SetSampleRate(sampleRateHz uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sampleRateHz = sampleRateHz
	if s.soundFont == nil {
		return
	}

	settings := meltysynth.NewSynthesizerSettings(int32(sampleRateHz))
	for i := range s.voices {
		if synth, err := meltysynth.NewSynthesizer(s.soundFont, settings); err == nil {
			s.voices[i] = synth
		}
	}
}

func (s *SoundFontSynth) SetProgram(bus core.Bus, gmProgram uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	synth := s.voices[busIndex(bus)]
	if synth == nil {
		return &SynthError{Kind: ErrBackend, Message: "no SoundFont loaded"}
	}
	synth.ProcessMidiMessage(0, 0xC0, int32(gmProgram), 0)
	return nil
}

// HandleEvent forwards a MidiLikeEvent to the bus's synthesizer. Like
// the waveguide backend, a contended TryLock drops the event rather than
// blocking the audio render thread.
func (s *SoundFontSynth) HandleEvent(bus core.Bus, event core.MidiLikeEvent, _ core.SampleTime) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	synth := s.voices[busIndex(bus)]
	if synth == nil {
		return
	}

	const channel = 0
	switch event.Kind {
	case core.EventNoteOn:
		synth.NoteOn(channel, int32(event.Note), int32(event.Velocity))
	case core.EventNoteOff:
		synth.NoteOff(channel, int32(event.Note))
	case core.EventCc64:
		synth.ProcessMidiMessage(channel, 0xB0, 64, int32(event.Value))
	}
}

func (s *SoundFontSynth) Render(bus core.Bus, frames int, outL, outR []float32) {
	for i := range outL {
		outL[i] = 0
	}
	for i := range outR {
		outR[i] = 0
	}

	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	synth := s.voices[busIndex(bus)]
	if synth == nil {
		return
	}
	n := frames
	if n > len(outL) {
		n = len(outL)
	}
	if n > len(outR) {
		n = len(outR)
	}
	synth.Render(outL[:n], outR[:n])
}

var _ Synth = (*SoundFontSynth)(nil)

// FallbackSynth routes to a SoundFontSynth once a SoundFont is loaded,
// and otherwise to a WaveguidePianoSynth, so a session can start and
// sound playable before any .sf2 file is ever selected.
type FallbackSynth struct {
	sf2       *SoundFontSynth
	waveguide *WaveguidePianoSynth
}

// NewFallbackSynth builds both backends at the given sample rate.
func NewFallbackSynth(sampleRateHz uint32) *FallbackSynth {
	return &FallbackSynth{
		sf2:       NewSoundFontSynth(sampleRateHz),
		waveguide: NewWaveguidePianoSynth(sampleRateHz),
	}
}

func (f *FallbackSynth) LoadSoundFontFromPath(path string) (SoundFontInfo, error) {
	return f.sf2.LoadSoundFontFromPath(path)
}

func (f *FallbackSynth) SetSampleRate(sampleRateHz uint32) {
	f.sf2.SetSampleRate(sampleRateHz)
	f.waveguide.SetSampleRate(sampleRateHz)
}

func (f *FallbackSynth) SetProgram(bus core.Bus, gmProgram uint8) error {
	if f.sf2.Loaded() {
		return f.sf2.SetProgram(bus, gmProgram)
	}
	return f.waveguide.SetProgram(bus, gmProgram)
}

func (f *FallbackSynth) HandleEvent(bus core.Bus, event core.MidiLikeEvent, at core.SampleTime) {
	if f.sf2.Loaded() {
		f.sf2.HandleEvent(bus, event, at)
		return
	}
	f.waveguide.HandleEvent(bus, event, at)
}

func (f *FallbackSynth) Render(bus core.Bus, frames int, outL, outR []float32) {
	if f.sf2.Loaded() {
		f.sf2.Render(bus, frames, outL, outR)
		return
	}
	f.waveguide.Render(bus, frames, outL, outR)
}

var _ Synth = (*FallbackSynth)(nil)
