package automation

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/musictime"
)

type write struct {
	ID    entity.ID
	Param string
	V     float64
}

// params is a tiny ParamResolver and ParamWriter over a map of specs.
type params struct {
	specs  map[entity.ID][]entity.ParamSpec
	writes []write
}

func (p *params) ParamSpec(id entity.ID, name string) (entity.ParamSpec, error) {
	specs, ok := p.specs[id]
	if !ok {
		return entity.ParamSpec{}, errgo.Newf("no entity %d", id)
	}
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return entity.ParamSpec{}, errgo.WithCausef(nil, entity.ErrUnknownParameter, "unknown parameter %q", name)
}

func (p *params) SetParam(id entity.ID, name string, v float64) error {
	p.writes = append(p.writes, write{id, name, v})
	return nil
}

func (p *params) last() write {
	return p.writes[len(p.writes)-1]
}

func newParams() *params {
	return &params{specs: map[entity.ID][]entity.ParamSpec{
		1: {{Name: "gain", Min: 0, Max: 10, Default: 1}},
		2: {{Name: "ceiling", Min: 0, Max: 1, Default: 1}},
	}}
}

func beats(b float64) musictime.MusicalTime {
	return musictime.FromUnits(uint64(b * musictime.UnitsPerBeat))
}

func TestStepCurves(t *testing.T) {
	tests := []struct {
		step Step
		p    float64
		want float64
	}{
		{FlatStep(0.3), 0.7, 0.3},
		{SlopeStep(0, 1), 0.25, 0.25},
		{SlopeStep(1, 0), 0.25, 0.75},
		{LogStep(0, 1), 0, 0},
		{LogStep(0, 1), 0.01, 0},
		{LogStep(0, 1), 0.1, 0.5},
		{LogStep(0, 1), 1, 1},
		{ExpStep(0, 1), 0, 0},
		{ExpStep(0, 1), 0.5, 0.1},
		{ExpStep(0, 1), 1, 1},
		{ExpStep(1, 0), 0.5, 0.9},
	}
	for _, tt := range tests {
		if got := tt.step.At(tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("%v step %v at %v = %v, want %v", tt.step.Kind, tt.step, tt.p, got, tt.want)
		}
	}
}

func TestDefinePathRejectsOutOfRangeValues(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	err := e.DefinePath(Path{Name: "bad", Steps: []Step{FlatStep(0.5), SlopeStep(0, 1.5)}})
	c.Assert(errgo.Cause(err), qt.Equals, ErrValueRange)
	c.Assert(err, qt.ErrorMatches, `path "bad" step 1: slope step value 1.5 outside \[0, 1\]`)

	err = e.DefinePath(Path{Name: "nan", Steps: []Step{FlatStep(math.NaN())}})
	c.Assert(errgo.Cause(err), qt.Equals, ErrValueRange)

	err = e.DefinePath(Path{Name: "odd", NoteValue: 3, Steps: []Step{FlatStep(0)}})
	c.Assert(err, qt.ErrorMatches, `path "odd": invalid note value 3`)
	c.Assert(e.Paths(), qt.HasLen, 0)
}

func TestTripInactiveBeforeOriginThenHolds(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "rise", Steps: []Step{SlopeStep(0, 1)}}), qt.IsNil)
	p := newParams()
	c.Assert(e.AddTrip(Trip{
		Name:   "swell",
		Target: Target{Entity: 1, Param: "gain"},
		Paths:  []string{"rise"},
		Origin: beats(2),
	}, p), qt.IsNil)

	_, ok := e.ValueAt("swell", beats(1))
	c.Assert(ok, qt.IsFalse)
	c.Assert(e.Apply(beats(1), p), qt.IsNil)
	c.Assert(p.writes, qt.HasLen, 0)

	v, ok := e.ValueAt("swell", beats(2.5))
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 0.5)

	c.Assert(e.Apply(beats(2.5), p), qt.IsNil)
	c.Assert(p.last(), qt.Equals, write{1, "gain", 5})

	c.Assert(e.Apply(beats(100), p), qt.IsNil)
	c.Assert(p.last(), qt.Equals, write{1, "gain", 10})
}

func TestNoteValueSetsStepLength(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{
		Name:      "eighths",
		NoteValue: musictime.Eighth,
		Steps:     []Step{FlatStep(0.2), FlatStep(0.8)},
	}), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "hold", Target: Target{2, "ceiling"}, Paths: []string{"eighths"}}, newParams()), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "loop", Target: Target{2, "ceiling"}, Paths: []string{"eighths"}, Loop: true}, newParams()), qt.IsNil)

	for _, tt := range []struct {
		trip string
		at   float64
		want float64
	}{
		{"hold", 0.25, 0.2},
		{"hold", 0.5, 0.8},
		{"hold", 5, 0.8},
		{"loop", 1, 0.2},
		{"loop", 1.5, 0.8},
		{"loop", 2.25, 0.2},
	} {
		v, ok := e.ValueAt(tt.trip, beats(tt.at))
		c.Assert(ok, qt.IsTrue)
		c.Assert(v, qt.Equals, tt.want, qt.Commentf("%s at beat %v", tt.trip, tt.at))
	}
}

func TestPathsConcatenate(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "a", Steps: []Step{FlatStep(0.1)}}), qt.IsNil)
	c.Assert(e.DefinePath(Path{Name: "b", NoteValue: musictime.Half, Steps: []Step{FlatStep(0.9)}}), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "ab", Target: Target{2, "ceiling"}, Paths: []string{"a", "b", "a"}}, newParams()), qt.IsNil)

	for at, want := range map[float64]float64{0.5: 0.1, 1: 0.9, 2.9: 0.9, 3: 0.1, 9: 0.1} {
		v, _ := e.ValueAt("ab", beats(at))
		c.Assert(v, qt.Equals, want, qt.Commentf("beat %v", at))
	}
}

func TestLastWriteWins(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "low", Steps: []Step{FlatStep(0.1)}}), qt.IsNil)
	c.Assert(e.DefinePath(Path{Name: "high", Steps: []Step{FlatStep(0.9)}}), qt.IsNil)
	p := newParams()
	c.Assert(e.AddTrip(Trip{Name: "first", Target: Target{1, "gain"}, Paths: []string{"low"}}, p), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "second", Target: Target{1, "gain"}, Paths: []string{"high"}}, p), qt.IsNil)

	c.Assert(e.Apply(0, p), qt.IsNil)
	c.Assert(p.writes, qt.DeepEquals, []write{{1, "gain", 1}, {1, "gain", 9}})

	c.Assert(e.RemoveTrip("second"), qt.IsTrue)
	c.Assert(e.RemoveTrip("second"), qt.IsFalse)
	p.writes = nil
	c.Assert(e.Apply(0, p), qt.IsNil)
	c.Assert(p.writes, qt.DeepEquals, []write{{1, "gain", 1}})
}

func TestAddTripConfigurationErrors(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "p", Steps: []Step{FlatStep(0)}}), qt.IsNil)
	p := newParams()

	err := e.AddTrip(Trip{Name: "t", Target: Target{1, "gain"}, Paths: []string{"missing"}}, p)
	c.Assert(errgo.Cause(err), qt.Equals, ErrUnknownPath)

	err = e.AddTrip(Trip{Name: "t", Target: Target{1, "pan"}, Paths: []string{"p"}}, p)
	c.Assert(errgo.Cause(err), qt.Equals, entity.ErrUnknownParameter)

	err = e.AddTrip(Trip{Name: "t", Target: Target{9, "gain"}, Paths: []string{"p"}}, p)
	c.Assert(err, qt.ErrorMatches, `trip t: no entity 9`)

	c.Assert(e.AddTrip(Trip{Name: "t", Target: Target{1, "gain"}, Paths: []string{"p"}}, p), qt.IsNil)
	err = e.AddTrip(Trip{Name: "t", Target: Target{1, "gain"}, Paths: []string{"p"}}, p)
	c.Assert(errgo.Cause(err), qt.Equals, ErrDuplicate)

	err = e.DefinePath(Path{Name: "p", Steps: []Step{FlatStep(1)}})
	c.Assert(errgo.Cause(err), qt.Equals, ErrDuplicate)
}

func TestRemoveTripsFor(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "p", Steps: []Step{FlatStep(0)}}), qt.IsNil)
	p := newParams()
	c.Assert(e.AddTrip(Trip{Name: "a", Target: Target{1, "gain"}, Paths: []string{"p"}}, p), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "b", Target: Target{2, "ceiling"}, Paths: []string{"p"}}, p), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "c", Target: Target{1, "gain"}, Paths: []string{"p"}}, p), qt.IsNil)

	e.RemoveTripsFor(1)
	trips := e.Trips()
	c.Assert(trips, qt.HasLen, 1)
	c.Assert(trips[0].Name, qt.Equals, "b")
}

func TestSetTimeSignatureRelaysTrips(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	c.Assert(e.DefinePath(Path{Name: "q", NoteValue: musictime.Quarter, Steps: []Step{FlatStep(0), FlatStep(1)}}), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "t", Target: Target{2, "ceiling"}, Paths: []string{"q"}}, newParams()), qt.IsNil)

	v, _ := e.ValueAt("t", beats(1))
	c.Assert(v, qt.Equals, 1.0)

	// In 6/8 a quarter note lasts two beats.
	e.SetTimeSignature(musictime.TimeSignature{Top: 6, Bottom: musictime.Eighth})
	v, _ = e.ValueAt("t", beats(1))
	c.Assert(v, qt.Equals, 0.0)
	v, _ = e.ValueAt("t", beats(2))
	c.Assert(v, qt.Equals, 1.0)
}

func TestNextChange(t *testing.T) {
	c := qt.New(t)
	e := NewEngine(musictime.DefaultTimeSignature)
	next, ramping := e.NextChange(0)
	c.Assert(next, qt.Equals, musictime.End)
	c.Assert(ramping, qt.IsFalse)

	c.Assert(e.DefinePath(Path{Name: "gate", Steps: []Step{FlatStep(1), FlatStep(0)}}), qt.IsNil)
	c.Assert(e.DefinePath(Path{Name: "fade", Steps: []Step{SlopeStep(1, 0), FlatStep(0.5)}}), qt.IsNil)
	c.Assert(e.AddTrip(Trip{Name: "gate", Target: Target{2, "ceiling"}, Paths: []string{"gate"}}, newParams()), qt.IsNil)
	c.Assert(e.AddTrip(Trip{
		Name:   "fade",
		Target: Target{1, "gain"},
		Paths:  []string{"fade"},
		Origin: beats(4),
		Loop:   true,
	}, newParams()), qt.IsNil)

	for _, tt := range []struct {
		at      float64
		next    float64
		ramping bool
	}{
		{0, 1, false},
		{0.5, 1, false},
		{1, 2, false},
		{2, 4, false},
		{4, 5, true},
		{4.75, 5, true},
		{5.5, 6, false},
		{6.25, 7, true},
	} {
		next, ramping := e.NextChange(beats(tt.at))
		c.Assert(next, qt.Equals, beats(tt.next), qt.Commentf("beat %v", tt.at))
		c.Assert(ramping, qt.Equals, tt.ramping, qt.Commentf("beat %v", tt.at))
	}
}
