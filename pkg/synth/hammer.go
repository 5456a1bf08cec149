package synth

import "math"

const hammerShaperMax = 512

// hammerModel is the nonlinear hammer-spring contact model: a felt
// hammer mass colliding with a string, producing a force impulse shaped
// by a moving-average contact-time filter plus a short noise click for
// the initial impact transient.
type hammerModel struct {
	active    bool
	pos       float32
	vel       float32
	mass      float32
	k         float32
	p         float32
	dt        float32
	prevForce float32
	excGain   float32
	shaper    hammerShaper
	click     hammerClick
}

func newHammerModel() hammerModel {
	return hammerModel{mass: 1, p: 2.5, dt: 1.0 / 48000.0, shaper: newHammerShaper(), click: newHammerClick()}
}

func (h *hammerModel) reset() {
	h.active = false
	h.pos = 0
	h.vel = 0
	h.k = 0
	h.p = 2.5
	h.prevForce = 0
	h.excGain = 0
	h.shaper.reset(1)
	h.click.reset()
}

func (h *hammerModel) start(sampleRateHz uint32, note uint8, velocity float32, seed uint32) {
	sr := float32(sampleRateHz)
	if sr < 1 {
		sr = 1
	}
	h.dt = 1.0 / sr
	h.mass = 1
	h.pos = 0

	vel := clamp32(velocity, 0.02, 1.0)
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)

	v0 := 60.0 + 260.0*powf(vel, 1.5)
	k := lerp(6.0e6, 2.4e7, powf(vel, 1.7))
	p := lerp(2.15, 3.25, powf(vel, 0.7))

	h.vel = v0
	h.k = k
	h.p = p
	h.prevForce = 0
	h.excGain = clamp32((0.010+0.030*powf(vel, 1.2))*(0.75+0.55*t), 0.003, 0.08)

	contactMs := hammerContactMs(note, vel)
	delay := int(roundF32(sr * (contactMs / 1000.0)))
	if delay < 1 {
		delay = 1
	}
	if delay > hammerShaperMax-1 {
		delay = hammerShaperMax - 1
	}
	h.shaper.reset(delay)
	h.click.start(sampleRateHz, note, vel, seed)

	h.active = true
}

func (h *hammerModel) tick(stringDisp float32) float32 {
	if !h.active {
		return 0
	}

	if h.pos <= stringDisp && h.vel <= 0 && absf32(h.prevForce) < 1.0e-6 {
		h.active = false
		h.prevForce = 0
		return 0
	}

	compression := h.pos - stringDisp
	if compression < 0 {
		compression = 0
	}
	force := h.k * powf(compression, h.p)

	acc := -force / h.mass
	h.vel += acc * h.dt
	h.vel *= 0.9996
	h.pos += h.vel * h.dt

	df := force - h.prevForce
	h.prevForce = force

	exc := clamp32(df*h.excGain, -0.6, 0.6)
	return h.shaper.process(exc)
}

func (h *hammerModel) clickTick() float32 {
	return h.click.tick()
}

// hammerShaper is a delay-line moving average approximating the hammer
// felt's finite contact time, turning the force-derivative impulse into a
// short broadened pulse.
type hammerShaper struct {
	buf   [hammerShaperMax]float32
	idx   int
	delay int
	sum   float32
}

func newHammerShaper() hammerShaper {
	return hammerShaper{delay: 1}
}

func (s *hammerShaper) reset(delay int) {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.idx = 0
	if delay < 1 {
		delay = 1
	}
	if delay > hammerShaperMax-1 {
		delay = hammerShaperMax - 1
	}
	s.delay = delay
	s.sum = 0
}

func (s *hammerShaper) process(x float32) float32 {
	length := len(s.buf)
	readIdx := (s.idx + length - s.delay) % length
	outgoing := s.buf[readIdx]
	s.sum += x - outgoing
	s.buf[s.idx] = x
	s.idx++
	if s.idx >= length {
		s.idx = 0
	}
	return s.sum / float32(s.delay)
}

// hammerClick is a brief filtered-noise burst layered under the hammer
// excitation to carry the percussive attack transient.
type hammerClick struct {
	rng      uint32
	lp       float32
	remaining uint32
	total     uint32
	amp       float32
	lpCoeff   float32
}

func newHammerClick() hammerClick {
	return hammerClick{rng: 0x12345678, lpCoeff: 0.1}
}

func (c *hammerClick) reset() {
	c.lp = 0
	c.remaining = 0
	c.total = 0
	c.amp = 0
}

func (c *hammerClick) start(sampleRateHz uint32, note uint8, velocity float32, seed uint32) {
	vel := clamp32(velocity, 0.02, 1.0)
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)

	c.rng = seed ^ (uint32(note) * 0x9E3779B9)

	sr := float32(sampleRateHz)
	if sr < 1 {
		sr = 1
	}
	fc := 1200.0 + 2400.0*t
	a := float32(math.Exp(float64(-2.0 * math.Pi * fc / sr)))
	c.lpCoeff = clamp32(1-a, 0.01, 0.35)
	c.lp = 0

	clickMs := 0.6 + 1.0*(1.0-vel)
	total := int(roundF32(sr * (clickMs / 1000.0)))
	if total < 16 {
		total = 16
	}
	if total > 256 {
		total = 256
	}
	c.total = uint32(total)
	c.remaining = c.total

	c.amp = (0.008 + 0.015*t) * powf(vel, 2.2)
}

func (c *hammerClick) tick() float32 {
	if c.remaining == 0 || c.total == 0 {
		return 0
	}

	n := c.whiteNoise()
	c.lp += c.lpCoeff * (n - c.lp)
	hp := n - c.lp

	t := float32(c.remaining) / float32(c.total)
	env := t * t

	if c.remaining > 0 {
		c.remaining--
	}
	return hp * env * c.amp
}

func (c *hammerClick) whiteNoise() float32 {
	c.rng = c.rng*1664525 + 1013904223
	bits := (c.rng >> 9) | 0x3F800000
	f := math.Float32frombits(bits) - 1.0
	return clamp32(f*2.0-1.0, -1, 1)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*clamp32(t, 0, 1)
}

func powf(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func hammerContactMs(note uint8, velocity float32) float32 {
	vel := clamp32(velocity, 0.02, 1.0)
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)

	base := lerp(2.8, 0.85, powf(vel, 0.65))
	noteScale := lerp(1.25, 0.75, t)
	return clamp32(base*noteScale, 0.5, 4.0)
}
