package automation

import (
	"sort"

	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/musictime"
)

var logger = loggo.GetLogger("groove.automation")

var (
	// ErrValueRange is the cause of errors for step values outside [0, 1].
	ErrValueRange = errgo.New("automation value out of range")
	// ErrUnknownPath is the cause of errors for trips naming undefined paths.
	ErrUnknownPath = errgo.New("unknown path")
	// ErrDuplicate is the cause of errors for reused path or trip names.
	ErrDuplicate = errgo.New("duplicate name")
)

// Target names one parameter of one entity.
type Target struct {
	Entity entity.ID
	Param  string
}

// Trip plays Paths back to back against Target from Origin. When Loop is
// false the final value is held after the last step; when true the paths
// repeat.
type Trip struct {
	Name   string
	Target Target
	Paths  []string
	Origin musictime.MusicalTime
	Loop   bool
}

// ParamResolver looks up parameter declarations by entity ID.
type ParamResolver interface {
	ParamSpec(id entity.ID, name string) (entity.ParamSpec, error)
}

// ParamWriter writes parameter values by entity ID.
type ParamWriter interface {
	SetParam(id entity.ID, name string, v float64) error
}

type segment struct {
	step  Step
	start musictime.MusicalTime
	len   musictime.MusicalTime
}

type trip struct {
	Trip
	spec     entity.ParamSpec
	segments []segment
	length   musictime.MusicalTime
}

// Engine holds path definitions and trips. It refers to entities by ID
// only.
type Engine struct {
	ts    musictime.TimeSignature
	paths map[string]Path
	order []string
	trips []*trip
}

// NewEngine returns an empty engine measuring note values against ts.
func NewEngine(ts musictime.TimeSignature) *Engine {
	return &Engine{
		ts:    ts,
		paths: make(map[string]Path),
	}
}

// DefinePath validates and stores p.
func (e *Engine) DefinePath(p Path) error {
	if err := p.Validate(); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if _, ok := e.paths[p.Name]; ok {
		return errgo.WithCausef(nil, ErrDuplicate, "path %q already defined", p.Name)
	}
	p.Steps = append([]Step(nil), p.Steps...)
	e.paths[p.Name] = p
	e.order = append(e.order, p.Name)
	return nil
}

// Paths returns the defined paths in definition order.
func (e *Engine) Paths() []Path {
	ps := make([]Path, 0, len(e.order))
	for _, name := range e.order {
		ps = append(ps, e.paths[name])
	}
	return ps
}

// AddTrip resolves t's paths and target and registers it after all
// existing trips.
func (e *Engine) AddTrip(t Trip, r ParamResolver) error {
	if t.Name == "" {
		return errgo.New("trip has no name")
	}
	for _, other := range e.trips {
		if other.Name == t.Name {
			return errgo.WithCausef(nil, ErrDuplicate, "trip %q already defined", t.Name)
		}
	}
	if len(t.Paths) == 0 {
		return errgo.Newf("trip %q has no paths", t.Name)
	}
	for _, name := range t.Paths {
		if _, ok := e.paths[name]; !ok {
			return errgo.WithCausef(nil, ErrUnknownPath, "trip %q: unknown path %q", t.Name, name)
		}
	}
	spec, err := r.ParamSpec(t.Target.Entity, t.Target.Param)
	if err != nil {
		return errgo.NoteMask(err, "trip "+t.Name, errgo.Any)
	}
	t.Paths = append([]string(nil), t.Paths...)
	tr := &trip{Trip: t, spec: spec}
	e.layout(tr)
	e.trips = append(e.trips, tr)
	logger.Debugf("trip %q on entity %d %q: %d steps over %v", t.Name, t.Target.Entity, t.Target.Param, len(tr.segments), tr.length)
	return nil
}

func (e *Engine) layout(tr *trip) {
	tr.segments = tr.segments[:0]
	var cursor musictime.MusicalTime
	for _, name := range tr.Paths {
		p := e.paths[name]
		n := p.StepLength(e.ts)
		for _, s := range p.Steps {
			tr.segments = append(tr.segments, segment{step: s, start: cursor, len: n})
			cursor = cursor.Add(n)
		}
	}
	tr.length = cursor
}

// SetTimeSignature changes the meter and re-lays out every trip.
func (e *Engine) SetTimeSignature(ts musictime.TimeSignature) {
	e.ts = ts
	for _, tr := range e.trips {
		e.layout(tr)
	}
}

// RemoveTrip unregisters the named trip and reports whether it existed.
func (e *Engine) RemoveTrip(name string) bool {
	for i, tr := range e.trips {
		if tr.Name == name {
			e.trips = append(e.trips[:i], e.trips[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveTripsFor unregisters every trip targeting id.
func (e *Engine) RemoveTripsFor(id entity.ID) {
	kept := e.trips[:0]
	for _, tr := range e.trips {
		if tr.Target.Entity != id {
			kept = append(kept, tr)
		}
	}
	clear(e.trips[len(kept):])
	e.trips = kept
}

// Trips returns the registered trips in registration order.
func (e *Engine) Trips() []Trip {
	ts := make([]Trip, len(e.trips))
	for i, tr := range e.trips {
		ts[i] = tr.Trip
	}
	return ts
}

// ValueAt returns the normalized value of the named trip at t. ok is false
// if there is no such trip or t is before its origin.
func (e *Engine) ValueAt(name string, t musictime.MusicalTime) (v float64, ok bool) {
	for _, tr := range e.trips {
		if tr.Name == name {
			return tr.value(t)
		}
	}
	return 0, false
}

// Apply evaluates every active trip at t, in registration order, and
// writes the denormalized value to its target. When several trips target
// the same parameter the last one wins. A failed write does not stop the
// remaining trips; the first error is returned.
func (e *Engine) Apply(t musictime.MusicalTime, w ParamWriter) error {
	var first error
	for _, tr := range e.trips {
		v, ok := tr.value(t)
		if !ok {
			continue
		}
		err := w.SetParam(tr.Target.Entity, tr.Target.Param, tr.spec.Denormalize(v))
		if err != nil {
			logger.Warningf("trip %q: %v", tr.Name, err)
			if first == nil {
				first = errgo.NoteMask(err, "trip "+tr.Name, errgo.Any)
			}
		}
	}
	return first
}

// NextChange returns the earliest time after t at which a trip starts or
// enters another step, or musictime.End if none will. ramping reports
// whether some trip is partway along a moving step at t.
func (e *Engine) NextChange(t musictime.MusicalTime) (next musictime.MusicalTime, ramping bool) {
	next = musictime.End
	for _, tr := range e.trips {
		at, moving := tr.nextChange(t)
		next = min(next, at)
		ramping = ramping || moving
	}
	return next, ramping
}

// offset maps t onto the trip's timeline. ok is false before the origin
// and once a non-looping trip is holding its final value.
func (tr *trip) offset(t musictime.MusicalTime) (off musictime.MusicalTime, ok bool) {
	if t < tr.Origin || len(tr.segments) == 0 {
		return 0, false
	}
	off = t - tr.Origin
	if off >= tr.length {
		if !tr.Loop || tr.length == 0 {
			return 0, false
		}
		off %= tr.length
	}
	return off, true
}

func (tr *trip) segmentAt(off musictime.MusicalTime) segment {
	i := sort.Search(len(tr.segments), func(i int) bool {
		return tr.segments[i].start > off
	}) - 1
	return tr.segments[i]
}

func (tr *trip) value(t musictime.MusicalTime) (float64, bool) {
	if t < tr.Origin || len(tr.segments) == 0 {
		return 0, false
	}
	off, ok := tr.offset(t)
	if !ok {
		return tr.segments[len(tr.segments)-1].step.Final(), true
	}
	seg := tr.segmentAt(off)
	p := float64(off-seg.start) / float64(seg.len)
	return seg.step.At(p), true
}

func (tr *trip) nextChange(t musictime.MusicalTime) (musictime.MusicalTime, bool) {
	if t < tr.Origin && len(tr.segments) > 0 {
		return tr.Origin, false
	}
	off, ok := tr.offset(t)
	if !ok {
		return musictime.End, false
	}
	seg := tr.segmentAt(off)
	moving := seg.step.Kind != Flat && seg.step.Start != seg.step.End
	return t.Add(seg.start + seg.len - off), moving
}
