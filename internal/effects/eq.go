package effects

import (
	"github.com/cbegin/groove-go/internal/entity"
)

const (
	eqLow = iota
	eqMid
	eqHigh
	eqLowFreq
	eqHighFreq
)

// EQ3Band splits the signal at two crossovers and applies a gain to each
// band.
type EQ3Band struct {
	settings
	gains            [3]float32
	lpAlpha, hpAlpha float32
	lpL, lpR         float32
	hpL, hpR         float32
}

// NewEQ3Band creates a 3-band EQ. Gains are linear, 1 is unity.
func NewEQ3Band(low, mid, high, lowFreq, highFreq float64) *EQ3Band {
	eq := &EQ3Band{settings: newSettings(
		entity.ParamSpec{Name: "low", Min: 0, Max: 4, Default: 1},
		entity.ParamSpec{Name: "mid", Min: 0, Max: 4, Default: 1},
		entity.ParamSpec{Name: "high", Min: 0, Max: 4, Default: 1},
		entity.ParamSpec{Name: "low-freq", Min: 20, Max: 2000, Default: 300},
		entity.ParamSpec{Name: "high-freq", Min: 500, Max: 16000, Default: 3000},
	)}
	eq.SetParam("low", low)
	eq.SetParam("mid", mid)
	eq.SetParam("high", high)
	eq.SetParam("low-freq", lowFreq)
	eq.SetParam("high-freq", highFreq)
	return eq
}

// Transform implements entity.Transformer.
func (eq *EQ3Band) Transform(span entity.Span, in, dst entity.Buffer) error {
	if eq.changed(span) {
		rate := float64(span.SampleRate.Hz())
		for i := range eq.gains {
			eq.gains[i] = float32(eq.Value(eqLow + i))
		}
		eq.lpAlpha = onePole(eq.Value(eqLowFreq), rate)
		eq.hpAlpha = onePole(eq.Value(eqHighFreq), rate)
	}
	process(eq, in, dst)
	return nil
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	eq.lpL += eq.lpAlpha * (l - eq.lpL)
	eq.lpR += eq.lpAlpha * (r - eq.lpR)
	lowL, lowR := eq.lpL, eq.lpR

	eq.hpL += eq.hpAlpha * (l - eq.hpL)
	eq.hpR += eq.hpAlpha * (r - eq.hpR)
	highL := l - eq.hpL
	highR := r - eq.hpR

	midL := l - lowL - highL
	midR := r - lowR - highR

	g := eq.gains
	return lowL*g[0] + midL*g[1] + highL*g[2], lowR*g[0] + midR*g[1] + highR*g[2]
}

func (eq *EQ3Band) Reset() {
	eq.lpL, eq.lpR = 0, 0
	eq.hpL, eq.hpR = 0, 0
}
