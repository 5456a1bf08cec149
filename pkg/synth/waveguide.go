package synth

import (
	"sync"

	"github.com/cadenzapiano/practicecore/pkg/core"
)

const maxVoices = 64

// WaveguidePianoSynth is a physically-modeled grand piano: each active
// note drives a hammer-spring excitation into one to three digital
// waveguide strings, summed per bus through that bus's own soundboard.
// It never depends on a soundfont and is the fallback backend whenever
// none is loaded.
type WaveguidePianoSynth struct {
	mu    sync.Mutex
	inner waveguideInner
}

type waveguideInner struct {
	sampleRateHz uint32
	buses        [3]busState
}

type busState struct {
	sustainDown bool
	noteCounter uint64
	voices      [maxVoices]voice
	soundboard  *soundboard
}

func newBusState(sampleRateHz uint32) busState {
	bs := busState{soundboard: newSoundboard(sampleRateHz)}
	for i := range bs.voices {
		bs.voices[i] = newVoice()
	}
	return bs
}

func (bs *busState) reset(sampleRateHz uint32) {
	bs.sustainDown = false
	bs.noteCounter = 0
	for i := range bs.voices {
		bs.voices[i].reset()
	}
	bs.soundboard.reset(sampleRateHz)
}

func (bs *busState) allocateVoice() *voice {
	for i := range bs.voices {
		if !bs.voices[i].active {
			return &bs.voices[i]
		}
	}

	bestIdx := 0
	bestGain := bs.voices[0].gain
	for i := 1; i < len(bs.voices); i++ {
		if bs.voices[i].gain < bestGain {
			bestIdx = i
			bestGain = bs.voices[i].gain
		}
	}
	return &bs.voices[bestIdx]
}

func (bs *busState) noteOn(sampleRateHz uint32, note, velocity uint8) {
	vel := clamp32(float32(velocity)/127.0, 0.02, 1.0)
	bs.noteCounter++
	age := bs.noteCounter

	v := bs.allocateVoice()
	v.reset()
	v.active = true
	v.note = note
	v.velocity = vel
	v.keyDown = true
	v.sustained = false
	v.age = age

	v.pan = noteToPan(note)
	v.outGain = powf(vel, 1.25) * 0.32

	stringCount, detunes := stringPlan(note)
	v.stringCount = stringCount

	baseFreq := midiNoteToHz(note)
	seed := uint32(0xA5A51234) ^ (uint32(note) << 8) ^ uint32(velocity)

	v.hammer.start(sampleRateHz, note, vel, seed)

	for idx := range v.strings {
		if idx >= stringCount {
			v.strings[idx].clear()
			continue
		}
		detune := detunes[idx]
		freq := baseFreq * (1.0 + detune)
		delayLen := clamp32(float32(sampleRateHz)/freq, 8.0, float32(maxDelaySamples-1))
		v.strings[idx].init(delayLen, vel, note)
	}
}

func (bs *busState) noteOff(note uint8) {
	for i := range bs.voices {
		v := &bs.voices[i]
		if !v.active || v.note != note || !v.keyDown {
			continue
		}
		v.keyDown = false
		if bs.sustainDown {
			v.sustained = true
		}
	}
}

func (bs *busState) sustain(down bool) {
	bs.sustainDown = down
	if down {
		return
	}
	for i := range bs.voices {
		v := &bs.voices[i]
		if v.active && !v.keyDown && v.sustained {
			v.sustained = false
		}
	}
}

func (bs *busState) render(frames int, outL, outR []float32) {
	for i := range outL {
		outL[i] = 0
	}
	for i := range outR {
		outR[i] = 0
	}

	if frames > len(outL) {
		frames = len(outL)
	}
	if frames > len(outR) {
		frames = len(outR)
	}
	if frames <= 0 {
		return
	}

	for i := range bs.voices {
		v := &bs.voices[i]
		if !v.active {
			continue
		}
		v.render(frames, outL, outR)
	}

	bs.soundboard.process(frames, outL, outR)

	for i := range bs.voices {
		v := &bs.voices[i]
		if v.active && !v.keyDown && !v.sustained && v.gain < 0.0008 {
			v.reset()
		}
	}
}

// NewWaveguidePianoSynth builds the backend at the given sample rate.
func NewWaveguidePianoSynth(sampleRateHz uint32) *WaveguidePianoSynth {
	return &WaveguidePianoSynth{inner: waveguideInner{
		sampleRateHz: sampleRateHz,
		buses: [3]busState{
			newBusState(sampleRateHz),
			newBusState(sampleRateHz),
			newBusState(sampleRateHz),
		},
	}}
}

func (w *WaveguidePianoSynth) LoadSoundFontFromPath(_ string) (SoundFontInfo, error) {
	return SoundFontInfo{}, &SynthError{Kind: ErrUnsupportedFormat, Message: "waveguide backend has no soundfont support"}
}

func (w *WaveguidePianoSynth) SetSampleRate(sampleRateHz uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inner.sampleRateHz = sampleRateHz
	for i := range w.inner.buses {
		w.inner.buses[i].reset(sampleRateHz)
	}
}

func (w *WaveguidePianoSynth) SetProgram(_ core.Bus, _ uint8) error {
	return nil
}

// HandleEvent applies a NoteOn/NoteOff/Cc64 to the named bus's voice
// pool. It uses TryLock so a contended render call on the audio thread
// never blocks on a control-thread mutation; a dropped event under
// contention is the accepted cost of never blocking the audio thread.
func (w *WaveguidePianoSynth) HandleEvent(bus core.Bus, event core.MidiLikeEvent, _ core.SampleTime) {
	if !w.mu.TryLock() {
		return
	}
	defer w.mu.Unlock()

	sampleRateHz := w.inner.sampleRateHz
	bs := &w.inner.buses[busIndex(bus)]
	switch event.Kind {
	case core.EventNoteOn:
		bs.noteOn(sampleRateHz, event.Note, event.Velocity)
	case core.EventNoteOff:
		bs.noteOff(event.Note)
	case core.EventCc64:
		bs.sustain(event.Value >= 64)
	}
}

// Render fills outL/outR with this bus's mix. Like HandleEvent, it
// never blocks: a contended TryLock yields silence for this block
// rather than stalling the audio callback.
func (w *WaveguidePianoSynth) Render(bus core.Bus, frames int, outL, outR []float32) {
	for i := range outL {
		outL[i] = 0
	}
	for i := range outR {
		outR[i] = 0
	}

	if !w.mu.TryLock() {
		return
	}
	defer w.mu.Unlock()

	w.inner.buses[busIndex(bus)].render(frames, outL, outR)
}

var _ Synth = (*WaveguidePianoSynth)(nil)
