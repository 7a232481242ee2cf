// Package toys holds small entities for demos and tests: fixed sources, a
// sine generator, a gain stage, and a polyphonic wavetable synth.
package toys

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

const twoPi = 2 * math.Pi

// Constant produces the same stereo frame forever.
type Constant struct {
	L, R float32
}

func NewConstant(v float32) *Constant { return &Constant{L: v, R: v} }

// Produce implements entity.Producer.
func (c *Constant) Produce(_ entity.Span, dst entity.Buffer) error {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = c.L, c.R
	}
	return nil
}

// Sine is a sine oscillator whose phase is derived from the frame index,
// so any span can be rendered in any order.
type Sine struct {
	*entity.ParamSet
}

func NewSine(hz float64) *Sine {
	s := &Sine{ParamSet: entity.NewParamSet(
		entity.ParamSpec{Name: "frequency", Min: 20, Max: 20000, Default: 440},
		entity.ParamSpec{Name: "amplitude", Min: 0, Max: 1, Default: 0.5},
	)}
	s.SetParam("frequency", hz)
	return s
}

// Produce implements entity.Producer.
func (s *Sine) Produce(span entity.Span, dst entity.Buffer) error {
	hz := s.Value(0)
	amp := s.Value(1)
	rate := float64(span.SampleRate.Hz())
	// Reduce the frame modulo one period to keep precision late in a song.
	period := rate / hz
	for i := 0; i < span.Frames; i++ {
		frame := math.Mod(float64(span.StartFrame+uint64(i)), period)
		v := float32(amp * math.Sin(twoPi*frame/period))
		dst[2*i], dst[2*i+1] = v, v
	}
	return nil
}

// Gain scales its input by ceiling.
type Gain struct {
	*entity.ParamSet
}

func NewGain(ceiling float64) *Gain {
	g := &Gain{ParamSet: entity.NewParamSet(
		entity.ParamSpec{Name: "ceiling", Min: 0, Max: 1, Default: 1},
	)}
	g.SetParam("ceiling", ceiling)
	return g
}

// Transform implements entity.Transformer.
func (g *Gain) Transform(_ entity.Span, in, dst entity.Buffer) error {
	c := float32(g.Value(0))
	for i := range dst {
		dst[i] = in[i] * c
	}
	return nil
}

// Inverter flips the polarity of its input.
type Inverter struct{}

// Transform implements entity.Transformer.
func (Inverter) Transform(_ entity.Span, in, dst entity.Buffer) error {
	for i := range dst {
		dst[i] = -in[i]
	}
	return nil
}
