package entity

import (
	"math"
	"sync/atomic"

	errgo "gopkg.in/errgo.v1"
)

// ErrUnknownParameter is the cause of errors for parameter names an entity
// does not declare.
var ErrUnknownParameter = errgo.New("unknown parameter")

// ParamSpec declares one controllable parameter.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// Clamp limits v to the declared range. NaN becomes the default.
func (p ParamSpec) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return p.Default
	case v < p.Min:
		return p.Min
	case v > p.Max:
		return p.Max
	}
	return v
}

// Denormalize maps a normalized value in [0, 1] onto the declared range
// and clamps the result.
func (p ParamSpec) Denormalize(v float64) float64 {
	return p.Clamp(p.Min + v*(p.Max-p.Min))
}

// ParamSet implements Controllable for a fixed list of parameters. Values
// are stored as bit-cast float64s so they can be read from other
// goroutines while the render thread writes them.
type ParamSet struct {
	specs  []ParamSpec
	values []atomic.Uint64
}

// NewParamSet returns a set holding each spec at its default.
func NewParamSet(specs ...ParamSpec) *ParamSet {
	ps := &ParamSet{
		specs:  specs,
		values: make([]atomic.Uint64, len(specs)),
	}
	for i, s := range specs {
		ps.values[i].Store(math.Float64bits(s.Clamp(s.Default)))
	}
	return ps
}

// Params returns the declared parameters.
func (ps *ParamSet) Params() []ParamSpec {
	return append([]ParamSpec(nil), ps.specs...)
}

// Len returns the number of parameters.
func (ps *ParamSet) Len() int { return len(ps.specs) }

// Index returns the position of name, or -1.
func (ps *ParamSet) Index(name string) int {
	for i, s := range ps.specs {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// SetParam clamps v into range and stores it.
func (ps *ParamSet) SetParam(name string, v float64) error {
	i := ps.Index(name)
	if i < 0 {
		return errgo.WithCausef(nil, ErrUnknownParameter, "unknown parameter %q", name)
	}
	ps.values[i].Store(math.Float64bits(ps.specs[i].Clamp(v)))
	return nil
}

// Param returns the current value of name.
func (ps *ParamSet) Param(name string) (float64, error) {
	i := ps.Index(name)
	if i < 0 {
		return 0, errgo.WithCausef(nil, ErrUnknownParameter, "unknown parameter %q", name)
	}
	return ps.Value(i), nil
}

// Value returns the value at index i.
func (ps *ParamSet) Value(i int) float64 {
	return math.Float64frombits(ps.values[i].Load())
}

// Spec looks up the declaration of name on any Controllable.
func Spec(c Controllable, name string) (ParamSpec, bool) {
	for _, p := range c.Params() {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}
