package sequencer

import "math"

// voice is a decaying sine. It is owned by the audio goroutine.
type voice struct {
	phase float64
	inc   float64 // radians per sample
	env   float64
	decay float64 // per-sample envelope multiplier
}

const (
	voiceGain  = 0.125
	decayTime  = 0.18 // seconds to fall to 1/e
	silentEnv  = 1e-4
	twoPi      = 2 * math.Pi
)

func newVoice(freq, sampleRate float64) voice {
	return voice{
		inc:   twoPi * freq / sampleRate,
		decay: math.Exp(-1 / (decayTime * sampleRate)),
	}
}

func (v *voice) strike() {
	v.phase = 0
	v.env = 1
}

func (v *voice) next() float32 {
	if v.env < silentEnv {
		return 0
	}
	s := math.Sin(v.phase) * v.env * voiceGain
	v.phase += v.inc
	if v.phase >= twoPi {
		v.phase -= twoPi
	}
	v.env *= v.decay
	return float32(s)
}
