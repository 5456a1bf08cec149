package core

import "sync/atomic"

// AudioClock is a single atomic sample-time counter. Only the audio
// callback writes it, storing the end-of-block sample time; any thread
// may read it.
type AudioClock struct {
	sampleTime atomic.Uint64
}

func (c *AudioClock) Set(t SampleTime) { c.sampleTime.Store(uint64(t)) }
func (c *AudioClock) Get() SampleTime  { return SampleTime(c.sampleTime.Load()) }
