package effects

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

const (
	chorusDelay = iota
	chorusFeedback
	chorusDepth
	chorusRate
	chorusWet
)

// Chorus is a sine-modulated delay. Short delays with feedback give a
// flanger.
type Chorus struct {
	settings
	left, right delayLine
	pos         int
	depth       float32 // frames
	step        float64 // radians per frame
	phase       float64
	feedback    float32
	wet         float32
}

// NewChorus returns a chorus sweeping depthMs around delayMs at rateHz.
func NewChorus(delayMs, feedback, depthMs, rateHz, wet float64) *Chorus {
	c := &Chorus{settings: newSettings(
		entity.ParamSpec{Name: "delay", Min: 1, Max: 50, Default: 15},
		entity.ParamSpec{Name: "feedback", Min: 0, Max: 0.9, Default: 0.2},
		entity.ParamSpec{Name: "depth", Min: 0, Max: 20, Default: 3},
		entity.ParamSpec{Name: "rate", Min: 0.01, Max: 10, Default: 0.5},
		entity.ParamSpec{Name: "wet", Min: 0, Max: 1, Default: 0.5},
	)}
	c.SetParam("delay", delayMs)
	c.SetParam("feedback", feedback)
	c.SetParam("depth", depthMs)
	c.SetParam("rate", rateHz)
	c.SetParam("wet", wet)
	return c
}

// Transform implements entity.Transformer.
func (c *Chorus) Transform(span entity.Span, in, dst entity.Buffer) error {
	if c.changed(span) {
		c.configure(float64(span.SampleRate.Hz()))
	}
	process(c, in, dst)
	return nil
}

func (c *Chorus) configure(rate float64) {
	base := int(c.Value(chorusDelay) * rate / 1000.0)
	depth := c.Value(chorusDepth) * rate / 1000.0
	size := max(base+int(depth)+2, 4)
	if size != len(c.left) {
		c.left, c.right = make(delayLine, size), make(delayLine, size)
		c.pos = 0
	}
	c.depth = float32(depth)
	c.step = 2.0 * math.Pi * c.Value(chorusRate) / rate
	c.feedback = float32(c.Value(chorusFeedback))
	c.wet = float32(c.Value(chorusWet))
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	size := float32(len(c.left))
	at := float32(c.pos) - float32(len(c.left)/2) - float32(math.Sin(c.phase))*c.depth
	for at < 0 {
		at += size
	}
	if c.phase += c.step; c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}

	c.left[c.pos], c.right[c.pos] = l, r
	outL, outR := c.left.lerp(at), c.right.lerp(at)
	c.left[c.pos] += outL * c.feedback
	c.right[c.pos] += outR * c.feedback
	if c.pos++; c.pos == len(c.left) {
		c.pos = 0
	}
	dry := 1 - c.wet
	return l*dry + outL*c.wet, r*dry + outR*c.wet
}

func (c *Chorus) Reset() {
	clear(c.left)
	clear(c.right)
	c.pos = 0
	c.phase = 0
}
