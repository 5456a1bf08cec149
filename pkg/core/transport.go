package core

// TransportState is the lifecycle state of a Transport.
type TransportState int

const (
	TransportStopped TransportState = iota
	TransportPlaying
	TransportPaused
)

// Transport converts between Tick and SampleTime under a piecewise-constant
// tempo map, a runtime tempo multiplier, and an audio-clock origin. It is
// owned exclusively by the control thread (the coordinator).
type Transport struct {
	state           TransportState
	ppq             uint16
	sampleRateHz    uint32
	originSample    SampleTime
	tempoMap        TempoMap
	tempoMultiplier float32
	positionTick    Tick
	positionSample  SampleTime
	loopRange       *LoopRange
}

// NewTransport builds a Transport at tick 0, Stopped, with tempo
// multiplier 1.0.
func NewTransport(ppq uint16, sampleRateHz uint32, tempoPoints []TempoPoint) *Transport {
	return &Transport{
		state:           TransportStopped,
		ppq:             ppq,
		sampleRateHz:    sampleRateHz,
		tempoMap:        NewTempoMap(ppq, tempoPoints),
		tempoMultiplier: 1.0,
	}
}

func (t *Transport) State() TransportState { return t.state }

func (t *Transport) Play()  { t.state = TransportPlaying }
func (t *Transport) Pause() { t.state = TransportPaused }

// Stop sets Stopped and seeks to the loop start (or tick 0).
func (t *Transport) Stop() {
	t.state = TransportStopped
	target := Tick(0)
	if t.loopRange != nil {
		target = t.loopRange.Start
	}
	t.Seek(target)
}

// Seek recomputes position_sample from tick under the current origin.
func (t *Transport) Seek(tick Tick) {
	t.positionTick = tick
	t.positionSample = t.TickToSample(tick)
}

// saturatingSub mirrors Rust's SampleTime::saturating_sub (unsigned,
// clamps to 0 instead of wrapping).
func saturatingSub(a, b SampleTime) SampleTime {
	if b > a {
		return 0
	}
	return a - b
}

func saturatingAdd(a SampleTime, b uint64) SampleTime {
	sum := a + SampleTime(b)
	if sum < a {
		return ^SampleTime(0)
	}
	return sum
}

// AlignToSampleTime sets origin so that `now` corresponds to the current
// position_tick — used at Start to bind musical time to the audio clock.
func (t *Transport) AlignToSampleTime(now SampleTime) {
	relative := t.tickToSampleRelative(t.positionTick)
	t.originSample = saturatingSub(now, relative)
	t.positionSample = now
}

// SetOriginSample rebinds the origin directly and recomputes
// position_sample from the (unchanged) position_tick.
func (t *Transport) SetOriginSample(origin SampleTime) {
	t.originSample = origin
	t.positionSample = t.TickToSample(t.positionTick)
}

func (t *Transport) SetLoop(r *LoopRange) { t.loopRange = r }
func (t *Transport) LoopRange() *LoopRange { return t.loopRange }

// SetTempoMultiplier clamps to >= 0.1 and recomputes origin so
// position_sample is preserved under the new multiplier.
func (t *Transport) SetTempoMultiplier(multiplier float32) {
	if multiplier < 0.1 {
		multiplier = 0.1
	}
	t.tempoMultiplier = multiplier
	t.recalculateOrigin()
}

func (t *Transport) TempoMultiplier() float32 { return t.tempoMultiplier }

// SetSampleRate updates the sample rate and recomputes origin so
// position_sample is preserved under the new rate.
func (t *Transport) SetSampleRate(hz uint32) {
	t.sampleRateHz = hz
	t.recalculateOrigin()
}

func (t *Transport) SampleRateHz() uint32 { return t.sampleRateHz }

// UpdateTempoMap replaces the tempo map and recomputes origin so
// position_sample is preserved.
func (t *Transport) UpdateTempoMap(points []TempoPoint) {
	t.tempoMap = NewTempoMap(t.ppq, points)
	t.recalculateOrigin()
}

// AdvanceBySamples bumps position_sample only if Playing; if a loop range
// is set and position_tick has reached its end, seeks to the loop start.
func (t *Transport) AdvanceBySamples(frames uint32) {
	if t.state != TransportPlaying {
		return
	}
	t.positionSample = saturatingAdd(t.positionSample, uint64(frames))
	t.positionTick = t.SampleToTick(t.positionSample)

	if t.loopRange != nil && t.positionTick >= t.loopRange.End {
		t.Seek(t.loopRange.Start)
	}
}

func (t *Transport) NowTick() Tick           { return t.positionTick }
func (t *Transport) NowSample() SampleTime   { return t.positionSample }

// SyncToSampleTime sets position_sample=now and recomputes position_tick —
// called every control tick while Playing.
func (t *Transport) SyncToSampleTime(now SampleTime) {
	t.positionSample = now
	t.positionTick = t.SampleToTick(now)
}

// MsToTicks converts a millisecond duration to ticks using the
// us-per-quarter value in effect at the current position.
func (t *Transport) MsToTicks(ms int32) Tick {
	us := int64(ms) * 1000
	usPerQuarter := t.tempoMap.usPerQuarterAt(t.positionTick)
	return usToTicks(us, usPerQuarter, t.ppq)
}

// TickToSample = origin_sample + micros_to_samples(tick_to_micros(tick) /
// tempo_multiplier).
func (t *Transport) TickToSample(tick Tick) SampleTime {
	micros := t.tickToMicrosScaled(tick)
	return saturatingAdd(t.originSample, uint64(microsToSamples(micros, t.sampleRateHz)))
}

// SampleToTick = micros_to_tick(samples_to_micros(sample - origin) *
// tempo_multiplier).
func (t *Transport) SampleToTick(sample SampleTime) Tick {
	relative := saturatingSub(sample, t.originSample)
	micros := samplesToMicros(relative, t.sampleRateHz)
	scaled := int64(round(float64(micros) * float64(t.tempoMultiplier)))
	return t.tempoMap.MicrosToTick(scaled)
}

func (t *Transport) tickToMicrosScaled(tick Tick) int64 {
	base := float64(t.tempoMap.TickToMicros(tick))
	return int64(round(base / float64(t.tempoMultiplier)))
}

func (t *Transport) tickToSampleRelative(tick Tick) SampleTime {
	micros := t.tickToMicrosScaled(tick)
	return SampleTime(microsToSamples(micros, t.sampleRateHz))
}

func (t *Transport) recalculateOrigin() {
	current := t.positionSample
	relative := t.tickToSampleRelative(t.positionTick)
	t.originSample = saturatingSub(current, relative)
}

// microsToSamples rounds to nearest; negative/zero micros saturate to 0.
func microsToSamples(micros int64, sampleRateHz uint32) int64 {
	if micros <= 0 {
		return 0
	}
	samples := float64(micros) * float64(sampleRateHz) / 1_000_000.0
	return int64(round(samples))
}

func samplesToMicros(sample SampleTime, sampleRateHz uint32) int64 {
	micros := float64(sample) * 1_000_000.0 / float64(sampleRateHz)
	return int64(round(micros))
}

// round performs round-half-away-from-zero, matching Rust's f64::round.
func round(x float64) float64 {
	if x >= 0 {
		return float64(int64(x + 0.5))
	}
	return float64(int64(x - 0.5))
}
