package effects

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

const (
	distDrive = iota
	distLevel
	distTone
)

// Distortion is a tanh waveshaper with input drive, output level and an
// optional one-pole lowpass on the result.
type Distortion struct {
	settings
	drive, level float32
	lpfAlpha     float32
	lpfL, lpfR   float32
}

// NewDistortion creates a distortion effect. A tone of 0 disables the
// lowpass.
func NewDistortion(drive, level, toneHz float64) *Distortion {
	d := &Distortion{settings: newSettings(
		entity.ParamSpec{Name: "drive", Min: 1, Max: 50, Default: 4},
		entity.ParamSpec{Name: "level", Min: 0, Max: 2, Default: 0.5},
		entity.ParamSpec{Name: "tone", Min: 0, Max: 20000, Default: 0},
	)}
	d.SetParam("drive", drive)
	d.SetParam("level", level)
	d.SetParam("tone", toneHz)
	return d
}

// Transform implements entity.Transformer.
func (d *Distortion) Transform(span entity.Span, in, dst entity.Buffer) error {
	if d.changed(span) {
		d.configure(float64(span.SampleRate.Hz()))
	}
	process(d, in, dst)
	return nil
}

func (d *Distortion) configure(rate float64) {
	d.drive = float32(d.Value(distDrive))
	d.level = float32(d.Value(distLevel))
	d.lpfAlpha = 0
	if tone := d.Value(distTone); tone > 0 && tone < rate/2 {
		d.lpfAlpha = onePole(tone, rate)
	}
}

// onePole returns the smoothing coefficient of an RC lowpass at cutoff Hz.
func onePole(cutoff, rate float64) float32 {
	rc := 1.0 / (2.0 * math.Pi * cutoff)
	dt := 1.0 / rate
	return float32(dt / (rc + dt))
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l*d.drive))) * d.level
	r = float32(math.Tanh(float64(r*d.drive))) * d.level
	if d.lpfAlpha > 0 {
		d.lpfL += d.lpfAlpha * (l - d.lpfL)
		d.lpfR += d.lpfAlpha * (r - d.lpfR)
		l, r = d.lpfL, d.lpfR
	}
	return l, r
}

func (d *Distortion) Reset() {
	d.lpfL, d.lpfR = 0, 0
}
