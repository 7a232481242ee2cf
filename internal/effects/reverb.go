package effects

import (
	"github.com/cbegin/groove-go/internal/entity"
)

const (
	revRoom = iota
	revFeedback
	revWet
)

// Reverb is a Schroeder-style reverb: four parallel comb filters into two
// allpass filters, summed to mono and mixed back into both channels.
type Reverb struct {
	settings
	combs   [4]feedbackLine
	allpass [2]feedbackLine
	wet     float32
}

type feedbackLine struct {
	buf []float32
	pos int
	fb  float32
}

var (
	combRatios    = [4]int{1000, 1117, 1271, 1437}
	allpassRatios = [2]int{347, 213}
)

// NewReverb creates a reverb effect.
// room: 0.1..1 scales the delay lengths
// feedback: 0..0.95 controls decay time
// wet: wet/dry mix 0..1
func NewReverb(room, feedback, wet float64) *Reverb {
	r := &Reverb{settings: newSettings(
		entity.ParamSpec{Name: "room", Min: 0.1, Max: 1, Default: 0.5},
		entity.ParamSpec{Name: "feedback", Min: 0, Max: 0.95, Default: 0.7},
		entity.ParamSpec{Name: "wet", Min: 0, Max: 1, Default: 0.3},
	)}
	r.SetParam("room", room)
	r.SetParam("feedback", feedback)
	r.SetParam("wet", wet)
	return r
}

// Transform implements entity.Transformer.
func (r *Reverb) Transform(span entity.Span, in, dst entity.Buffer) error {
	if r.changed(span) {
		r.configure(float64(span.SampleRate.Hz()))
	}
	process(r, in, dst)
	return nil
}

func (r *Reverb) configure(rate float64) {
	base := int(rate * r.Value(revRoom) * 0.05)
	if base < 10 {
		base = 10
	}
	fb := float32(r.Value(revFeedback))
	for i := range r.combs {
		r.combs[i].resize(base*combRatios[i]/1000, fb)
	}
	for i := range r.allpass {
		r.allpass[i].resize(base*allpassRatios[i]/1000, 0.5)
	}
	r.wet = float32(r.Value(revWet))
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := (l + r2) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].comb(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].allpass(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].clear()
	}
	for i := range r.allpass {
		r.allpass[i].clear()
	}
}

// resize keeps the buffer when the length is unchanged so a feedback
// change does not cut the tail.
func (d *feedbackLine) resize(n int, fb float32) {
	n = max(n, 1)
	if n != len(d.buf) {
		d.buf = make([]float32, n)
		d.pos = 0
	}
	d.fb = fb
}

func (d *feedbackLine) clear() {
	clear(d.buf)
	d.pos = 0
}

func (d *feedbackLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *feedbackLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *feedbackLine) allpass(in float32) float32 {
	bufOut := d.buf[d.pos]
	d.buf[d.pos] = in + bufOut*d.fb
	d.advance()
	return -in + bufOut
}
