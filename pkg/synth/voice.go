package synth

// voice is one sounding note: a hammer exciting up to three unison
// strings, mixed to stereo through a pan law and a slow-decaying output
// gain used for voice-stealing priority.
type voice struct {
	active      bool
	note        uint8
	velocity    float32
	keyDown     bool
	sustained   bool
	gain        float32
	outGain     float32
	damper      float32
	age         uint64
	pan         float32
	hammer      hammerModel
	strings     [maxStringsPerNote]stringModel
	stringCount int
}

func newVoice() voice {
	return voice{
		hammer:  newHammerModel(),
		strings: [maxStringsPerNote]stringModel{newStringModel(), newStringModel(), newStringModel()},
	}
}

func (v *voice) reset() {
	v.active = false
	v.keyDown = false
	v.sustained = false
	v.gain = 0
	v.outGain = 0
	v.damper = 0
	v.hammer.reset()
	v.stringCount = 0
	for i := range v.strings {
		v.strings[i].clear()
	}
}

func (v *voice) render(frames int, outL, outR []float32) {
	const damperCoeff = 0.02
	const ampCoeff = 0.01
	amp := v.gain

	pan := v.pan
	leftGain := clamp32(0.5-pan*0.5, 0, 1)
	rightGain := clamp32(0.5+pan*0.5, 0, 1)

	for i := 0; i < frames; i++ {
		target := float32(1.0)
		if v.keyDown || v.sustained {
			target = 0
		}
		v.damper += (target - v.damper) * damperCoeff

		var strikeDisp float32
		for idx := 0; idx < v.stringCount; idx++ {
			strikeDisp += v.strings[idx].strikeDisp()
		}
		if v.stringCount > 0 {
			strikeDisp /= float32(v.stringCount)
		}

		hammerExc := v.hammer.tick(strikeDisp)
		var perString float32
		if v.stringCount > 0 {
			perString = hammerExc / float32(v.stringCount)
		}

		for idx := 0; idx < v.stringCount; idx++ {
			v.strings[idx].injectStrike(perString)
		}

		var raw float32
		for idx := 0; idx < v.stringCount; idx++ {
			raw += v.strings[idx].tick(v.damper)
		}
		raw += v.hammer.clickTick()

		amp += (absf32(raw) - amp) * ampCoeff

		sample := raw * v.outGain
		outL[i] += sample * leftGain
		outR[i] += sample * rightGain
	}

	v.gain = amp
}
