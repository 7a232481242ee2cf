package effects

import (
	"github.com/cbegin/groove-go/internal/entity"
)

const (
	delayTime = iota
	delayFeedback
	delayCross
	delayWet
)

// delayLine is one channel's circular buffer.
type delayLine []float32

func (d delayLine) tap(pos int) float32 { return d[pos] }

// lerp reads between frames; at must be non-negative.
func (d delayLine) lerp(at float32) float32 {
	i := int(at)
	frac := at - float32(i)
	return d[i%len(d)]*(1-frac) + d[(i+1)%len(d)]*frac
}

// Delay is a stereo feedback delay. Cross routes part of each channel's
// feedback into the other channel.
type Delay struct {
	settings
	left, right delayLine
	pos         int
	feedback    float32
	cross       float32
	wet         float32
}

// NewDelay returns a delay of delayMs milliseconds.
func NewDelay(delayMs, feedback, cross, wet float64) *Delay {
	d := &Delay{settings: newSettings(
		entity.ParamSpec{Name: "time", Min: 1, Max: 2000, Default: 250},
		entity.ParamSpec{Name: "feedback", Min: 0, Max: 0.95, Default: 0.4},
		entity.ParamSpec{Name: "cross", Min: 0, Max: 1, Default: 0},
		entity.ParamSpec{Name: "wet", Min: 0, Max: 1, Default: 0.3},
	)}
	d.SetParam("time", delayMs)
	d.SetParam("feedback", feedback)
	d.SetParam("cross", cross)
	d.SetParam("wet", wet)
	return d
}

// Transform implements entity.Transformer.
func (d *Delay) Transform(span entity.Span, in, dst entity.Buffer) error {
	if d.changed(span) {
		d.configure(span.SampleRate.Hz())
	}
	process(d, in, dst)
	return nil
}

func (d *Delay) configure(rate uint64) {
	n := max(int(d.Value(delayTime)*float64(rate)/1000), 1)
	if n != len(d.left) {
		d.left, d.right = make(delayLine, n), make(delayLine, n)
		d.pos = 0
	}
	d.feedback = float32(d.Value(delayFeedback))
	d.cross = float32(d.Value(delayCross))
	d.wet = float32(d.Value(delayWet))
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	outL, outR := d.left.tap(d.pos), d.right.tap(d.pos)
	straight, crossed := d.feedback*(1-d.cross), d.feedback*d.cross
	d.left[d.pos] = l + outL*straight + outR*crossed
	d.right[d.pos] = r + outR*straight + outL*crossed
	if d.pos++; d.pos == len(d.left) {
		d.pos = 0
	}
	dry := 1 - d.wet
	return l*dry + outL*d.wet, r*dry + outR*d.wet
}

func (d *Delay) Reset() {
	clear(d.left)
	clear(d.right)
	d.pos = 0
}
