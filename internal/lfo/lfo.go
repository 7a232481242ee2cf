package lfo

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

// Waveform constants.
const (
	WaveSaw      = 0
	WaveSquare   = 1
	WaveTriangle = 2
	WaveRandom   = 3
)

// LFO is a low-frequency oscillator used as a graph controller. Each tick it
// emits a normalized value that the orchestrator writes to every linked
// parameter.
//
// The value depends only on the span's start frame, so seeking and
// re-rendering give identical results.
type LFO struct {
	*entity.ParamSet
}

const (
	paramRate = iota
	paramDepth
	paramWaveform
)

// New creates an LFO at rateHz with full depth.
func New(rateHz float64, waveform int) *LFO {
	l := &LFO{ParamSet: entity.NewParamSet(
		entity.ParamSpec{Name: "rate", Min: 0, Max: 50, Default: 1},
		entity.ParamSpec{Name: "depth", Min: 0, Max: 1, Default: 1},
		entity.ParamSpec{Name: "waveform", Min: WaveSaw, Max: WaveRandom, Default: WaveTriangle},
	)}
	l.SetParam("rate", rateHz)
	l.SetParam("waveform", float64(waveform))
	return l
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.Value(paramDepth) != 0 && l.Value(paramRate) != 0
}

// Control implements entity.Controller. The result lies in
// [0.5-depth/2, 0.5+depth/2].
func (l *LFO) Control(span entity.Span) (float64, bool) {
	if !l.Active() {
		return 0, false
	}
	return 0.5 + 0.5*l.Depth()*l.At(span.Seconds(0)), true
}

// Depth returns the modulation depth in [0, 1].
func (l *LFO) Depth() float64 { return l.Value(paramDepth) }

// At returns the raw waveform value in [-1, 1] at time sec.
func (l *LFO) At(sec float64) float64 {
	cycles := sec * l.Value(paramRate)
	phase := cycles - math.Floor(cycles)
	switch int(math.Round(l.Value(paramWaveform))) {
	case WaveSaw:
		return 1.0 - 2.0*phase
	case WaveSquare:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveRandom:
		// Sample and hold: one value per cycle, hashed from the cycle index.
		v := math.Sin(math.Floor(cycles)*12345.6789+67890.1234) * 2.0
		v -= math.Floor(v)
		return v*2.0 - 1.0
	default:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	}
}
