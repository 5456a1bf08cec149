package synth

const maxDelaySamples = 4096

// stringModel is a digital waveguide string: a fractional-delay loop with
// a one-pole low-pass crossfading from a bright attack filter to a darker
// sustain filter as the tone envelope decays, two allpass dispersion
// stages, and a feedback coefficient that sets the decay rate.
type stringModel struct {
	delay        []float32
	idx          int
	frac         float32
	strikeOffset int
	lpState      float32
	lpAttack     float32
	lpSustain    float32
	feedback     float32
	last         float32
	gain         float32
	tone         float32
	toneDecay    float32
	avgCoeff     float32
	pickupMix    float32
	ap1X1, ap1Y1, ap1Coeff float32
	ap2X1, ap2Y1, ap2Coeff float32
}

func newStringModel() stringModel {
	return stringModel{toneDecay: 0.99995, avgCoeff: 0.3, pickupMix: 0.6, strikeOffset: 1}
}

func (s *stringModel) clear() {
	*s = stringModel{toneDecay: 0.99995, avgCoeff: 0.3, pickupMix: 0.6, strikeOffset: 1, delay: s.delay[:0]}
}

func (s *stringModel) init(delayLen, velocity float32, note uint8) {
	lenInt := int(delayLen)
	if lenInt < 8 {
		lenInt = 8
	}
	if lenInt > maxDelaySamples-1 {
		lenInt = maxDelaySamples - 1
	}
	s.frac = clamp32(delayLen-float32(lenInt), 0, 0.999)
	s.delay = make([]float32, lenInt)
	s.idx = 0

	strikePos := stringStrikePosition(note)
	strikeOffset := int(roundF32(delayLen * strikePos))
	maxOffset := lenInt - 1
	if maxOffset < 1 {
		maxOffset = 1
	}
	s.strikeOffset = clampInt(strikeOffset, 1, maxOffset)

	s.lpState = 0
	s.last = 0
	s.ap1X1, s.ap1Y1 = 0, 0
	s.ap2X1, s.ap2Y1 = 0, 0

	vel := clamp32(velocity, 0.02, 1.0)
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)

	brightness := clamp32(0.18+0.82*vel, 0.05, 1.0)
	noteLp := clamp32(0.95+0.25*t, 0.85, 1.35)
	baseLp := (0.018 + 0.22*brightness) * noteLp

	s.lpAttack = clamp32(baseLp*(1.18+0.22*vel), 0.01, 0.55)
	s.lpSustain = clamp32(baseLp*0.55, 0.005, 0.35)

	decay := noteDecayCoeff(note)
	s.feedback = clamp32(decay*(0.994+0.005*vel), 0.965, 0.99995)

	s.tone = 1
	s.toneDecay = clamp32(0.99997-0.00005*vel-0.00002*t, 0.99985, 0.99999)

	s.avgCoeff = clamp32(0.38-0.28*t, 0.04, 0.42)
	s.pickupMix = clamp32(0.75-0.4*t, 0.25, 0.85)

	s.ap1Coeff = clamp32(0.03+0.24*t, 0, 0.6)
	s.ap2Coeff = clamp32(0.01+0.12*t, 0, 0.6)

	s.gain = 0.85
}

func (s *stringModel) strikeDisp() float32 {
	length := len(s.delay)
	if length == 0 {
		return 0
	}
	idx := (s.idx + s.strikeOffset) % length
	return s.delay[idx]
}

func (s *stringModel) injectStrike(amount float32) {
	length := len(s.delay)
	if length == 0 {
		return
	}
	idx := (s.idx + s.strikeOffset) % length
	s.delay[idx] = clamp32(s.delay[idx]+amount, -1, 1)
}

func (s *stringModel) tick(damper float32) float32 {
	length := len(s.delay)
	if length < 2 {
		return 0
	}

	idx0 := s.idx
	idx1 := idx0 + 1
	if idx1 >= length {
		idx1 = 0
	}
	read := s.delay[idx0]*(1-s.frac) + s.delay[idx1]*s.frac

	x := read
	damper = clamp32(damper, 0, 1)

	lpCoeff := s.lpSustain + (s.lpAttack-s.lpSustain)*s.tone
	lpCoeff *= 1 - 0.85*damper
	lpCoeff = clamp32(lpCoeff, 0.002, 0.6)

	s.lpState += lpCoeff * (x - s.lpState)
	y := s.lpState

	avg := s.avgCoeff
	y = y*(1-avg) + s.last*avg
	s.last = y

	y = stringAllpass(y, s.ap1Coeff, &s.ap1X1, &s.ap1Y1)
	y = stringAllpass(y, s.ap2Coeff, &s.ap2X1, &s.ap2Y1)

	feedback := clamp32(s.feedback-0.02*damper, 0, 0.99995)
	s.delay[s.idx] = y * feedback
	s.idx++
	if s.idx >= length {
		s.idx = 0
	}

	s.tone *= s.toneDecay

	out := read + (y-read)*s.pickupMix
	return out * s.gain
}

func stringAllpass(x, coeff float32, x1, y1 *float32) float32 {
	if absf32(coeff) <= 0.0001 {
		return x
	}
	y := -coeff*x + *x1 + coeff**y1
	*x1 = x
	*y1 = y
	return y
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stringStrikePosition(note uint8) float32 {
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)
	return clamp32(0.16-0.05*t, 0.10, 0.18)
}

func midiNoteToHz(note uint8) float32 {
	return 440.0 * powf(2.0, (float32(note)-69.0)/12.0)
}

func noteToPan(note uint8) float32 {
	t := (float32(note) - 60.0) / 48.0
	return clamp32(clamp32(t, -1, 1)*0.5, -0.6, 0.6)
}

func noteDecayCoeff(note uint8) float32 {
	t := clamp32((float32(note)-21.0)/87.0, 0, 1)
	return 0.9996 - t*0.0014
}

const maxStringsPerNote = 3

// stringPlan returns the number of sympathetic/unison strings a note
// drives and their detune ratios, mirroring a real piano's monochord bass
// strings, bichord tenor pairs, and trichord treble unisons.
func stringPlan(note uint8) (int, [maxStringsPerNote]float32) {
	switch {
	case note >= 55:
		return 3, [maxStringsPerNote]float32{-0.0026, 0.0, 0.0019}
	case note >= 35:
		return 2, [maxStringsPerNote]float32{-0.0018, 0.0013, 0.0}
	default:
		return 1, [maxStringsPerNote]float32{0, 0, 0}
	}
}
