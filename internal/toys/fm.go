package toys

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

const (
	synthRatio = synthCutoff + 1 + iota
	synthIndex
	synthFeedback
)

// NewFMSynth returns a synth whose voices are a sine carrier phase-modulated
// by a sine modulator. The modulator runs at "ratio" times the note
// frequency and its output is scaled by "index"; "feedback" feeds the
// modulator back into itself.
func NewFMSynth(polyphony int) *Synth {
	s := newSynth(polyphony,
		entity.ParamSpec{Name: "ratio", Min: 0.25, Max: 16, Default: 2},
		entity.ParamSpec{Name: "index", Min: 0, Max: 10, Default: 1.6},
		entity.ParamSpec{Name: "feedback", Min: 0, Max: 1, Default: 0},
	)
	s.fm = true
	return s
}

// operators renders one frame of the voice's two-operator pair.
func (s *Synth) operators(v *voice) float64 {
	fb := v.modOut * s.Value(synthFeedback)
	v.modOut = math.Sin(v.modPhase + fb)
	sig := math.Sin(v.carPhase + v.modOut*s.Value(synthIndex))

	v.carPhase += twoPi * v.freq / s.rate
	v.modPhase += twoPi * v.freq * s.Value(synthRatio) / s.rate
	v.carPhase = math.Mod(v.carPhase, twoPi)
	v.modPhase = math.Mod(v.modPhase, twoPi)
	return sig
}
