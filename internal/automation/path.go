// Package automation drives entity parameters from musical time.
//
// A Path is a named sequence of normalized value steps, each one note value
// long. A Trip plays a list of paths against one parameter of one entity,
// starting at an origin. The Engine evaluates every trip at a point in time
// and writes the results in registration order. NextChange tells the
// transport where step boundaries fall so it can split ticks on them.
package automation

import (
	"fmt"
	"math"

	"github.com/cbegin/groove-go/internal/musictime"
	errgo "gopkg.in/errgo.v1"
)

// StepKind selects the curve of a step.
type StepKind int

const (
	Flat StepKind = iota
	Slope
	Logarithmic
	Exponential
)

var stepKindNames = [...]string{
	Flat:        "flat",
	Slope:       "slope",
	Logarithmic: "logarithmic",
	Exponential: "exponential",
}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepKindNames) {
		return "unknown"
	}
	return stepKindNames[k]
}

// Step is one note-value-long piece of a path. Values are normalized to
// [0, 1]. A Flat step uses only Start.
type Step struct {
	Kind  StepKind
	Start float64
	End   float64
}

// FlatStep holds v for the whole step.
func FlatStep(v float64) Step { return Step{Kind: Flat, Start: v, End: v} }

// SlopeStep moves linearly from start to end.
func SlopeStep(start, end float64) Step { return Step{Kind: Slope, Start: start, End: end} }

// LogStep moves from start to end along a logarithmic curve.
func LogStep(start, end float64) Step { return Step{Kind: Logarithmic, Start: start, End: end} }

// ExpStep moves from start to end along an exponential curve.
func ExpStep(start, end float64) Step { return Step{Kind: Exponential, Start: start, End: end} }

// At returns the step's value at progress p in [0, 1].
func (s Step) At(p float64) float64 {
	if s.Kind == Flat {
		return s.Start
	}
	if s.Start == s.End {
		return s.End
	}
	var m float64
	if p > 0 {
		switch s.Kind {
		case Logarithmic:
			m = clamp(math.Log(p)/math.Log(10000)*2+1, 0, 1)
		case Exponential:
			m = math.Pow(100, p) / 100
		default:
			m = p
		}
	}
	v := s.Start + (s.End-s.Start)*m
	if (s.End > s.Start && v > s.End) || (s.End < s.Start && v < s.End) {
		v = s.End
	}
	return v
}

// Final returns the value the step settles on.
func (s Step) Final() float64 {
	if s.Kind == Flat {
		return s.Start
	}
	return s.End
}

func (s Step) validate() error {
	if s.Kind < Flat || s.Kind > Exponential {
		return errgo.Newf("unknown step kind %d", s.Kind)
	}
	for _, v := range []float64{s.Start, s.End} {
		if !(v >= 0 && v <= 1) {
			return errgo.WithCausef(nil, ErrValueRange, "%v step value %v outside [0, 1]", s.Kind, v)
		}
	}
	return nil
}

// Path is a named, reusable automation shape.
type Path struct {
	Name string
	// NoteValue is the length of each step. Zero means the time
	// signature's beat.
	NoteValue musictime.BeatValue
	Steps     []Step
}

// Validate checks the path's name, note value and step values.
func (p Path) Validate() error {
	if p.Name == "" {
		return errgo.New("path has no name")
	}
	if p.NoteValue != 0 && !p.NoteValue.Valid() {
		return errgo.Newf("path %q: invalid note value %d", p.Name, p.NoteValue)
	}
	if len(p.Steps) == 0 {
		return errgo.Newf("path %q has no steps", p.Name)
	}
	for i, s := range p.Steps {
		if err := s.validate(); err != nil {
			return errgo.NoteMask(err, fmt.Sprintf("path %q step %d", p.Name, i), errgo.Any)
		}
	}
	return nil
}

// StepLength returns the duration of one step under ts.
func (p Path) StepLength(ts musictime.TimeSignature) musictime.MusicalTime {
	return p.NoteValue.Duration(ts)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
