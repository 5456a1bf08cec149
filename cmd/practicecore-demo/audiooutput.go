package main

import (
	"encoding/binary"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cadenzapiano/practicecore/pkg/core"
	"github.com/cadenzapiano/practicecore/pkg/ports"
)

// ebitenAudioOutput is the reference ports.AudioOutputPort backend: one
// ebiten audio.Context per process, feeding a RenderCallback through an
// io.Reader shim the way ebiten's audio.Player expects.
type ebitenAudioOutput struct {
	mu  sync.Mutex
	ctx *audio.Context
}

func newEbitenAudioOutput() *ebitenAudioOutput {
	return &ebitenAudioOutput{}
}

func (a *ebitenAudioOutput) ListOutputs() ([]ports.AudioOutputDevice, error) {
	return []ports.AudioOutputDevice{{
		ID:   "default",
		Name: "System default output",
		DefaultConfig: ports.AudioConfig{
			SampleRateHz: 48000,
			Channels:     2,
		},
	}}, nil
}

func (a *ebitenAudioOutput) OpenOutput(id ports.DeviceID, config ports.AudioConfig, render ports.RenderCallback) (ports.StreamHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sampleRate := int(config.SampleRateHz)
	if a.ctx == nil {
		a.ctx = audio.NewContext(sampleRate)
	}

	stream := &renderStream{render: render}
	player, err := a.ctx.NewPlayer(stream)
	if err != nil {
		return nil, err
	}
	player.Play()

	return &ebitenStreamHandle{stream: stream, player: player}, nil
}

// renderStream adapts a ports.RenderCallback to io.Reader the way
// MIDIStream adapts a meltysynth sequencer: every call renders
// len(p)/4 stereo frames and packs them as little-endian int16 pairs.
type renderStream struct {
	mu      sync.Mutex
	render  ports.RenderCallback
	stopped bool
	sample  core.SampleTime
}

func (s *renderStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}

	left := make([]float32, frames)
	right := make([]float32, frames)
	s.render(s.sample, left, right)
	s.sample += core.SampleTime(frames)

	for i := 0; i < frames; i++ {
		l := int16(clampSample(left[i]) * 32767)
		r := int16(clampSample(right[i]) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return frames * 4, nil
}

func clampSample(v float32) float32 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}

type ebitenStreamHandle struct {
	stream *renderStream
	player *audio.Player
}

func (h *ebitenStreamHandle) Close() error {
	h.stream.mu.Lock()
	h.stream.stopped = true
	h.stream.mu.Unlock()
	return h.player.Close()
}
