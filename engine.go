// Package groove renders a graph of audio entities in musical time.
//
// A Definition names the entities, the cables between them, controller
// links and automation trips. New validates it and returns an Engine whose
// RenderTick produces one quantum of interleaved stereo audio at a time.
package groove

import (
	"sync"

	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/automation"
	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/graph"
	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/transport"
)

var logger = loggo.GetLogger("groove")

// MainMixer is the name of the root of every graph.
const MainMixer = graph.MainMixerName

// MIDI channels in an EntityDef are numbered 1 to 16.
const (
	NoMIDI   = 0
	OmniMIDI = -1
)

// EntityDef adds one entity to the graph.
type EntityDef struct {
	Name   string
	Entity entity.Entity
	// MIDIChannel routes notes to the entity: 1-16, OmniMIDI or NoMIDI.
	MIDIChannel int
	Disabled    bool
}

// CableDef carries audio from one named entity to another.
type CableDef struct {
	From, To string
}

// LinkDef drives Param of Target from a controller entity.
type LinkDef struct {
	Controller string
	Target     string
	Param      string
}

// TripDef plays paths against an entity parameter.
type TripDef struct {
	Name   string
	Entity string
	Param  string
	Paths  []string
	Origin musictime.MusicalTime
	Loop   bool
}

// Definition is a fully resolved project.
type Definition struct {
	Entities []EntityDef
	Cables   []CableDef
	Links    []LinkDef
	Paths    []automation.Path
	Trips    []TripDef
}

// EventKind identifies an engine Event.
type EventKind int

const (
	// EventFault reports an entity that failed during a tick and was
	// silenced for it.
	EventFault EventKind = iota
	// EventStopped reports that RenderTick found the transport stopped.
	EventStopped
)

// Event carries notifications from Watch.
type Event struct {
	Kind   EventKind
	Entity string
	Err    error
}

type Option func(*engineConfig)

type engineConfig struct {
	transport []transport.Option
	ts        musictime.TimeSignature
	fault     graph.FaultHandler
	loopTrips bool
	sampleTap func([]float32)
}

func WithSampleRate(rate musictime.SampleRate) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithSampleRate(rate))
	}
}

func WithTempo(bpm musictime.Tempo) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithTempo(bpm))
	}
}

func WithTimeSignature(ts musictime.TimeSignature) Option {
	return func(cfg *engineConfig) {
		cfg.ts = ts
	}
}

// WithTickFrames sets the number of frames RenderTick produces.
func WithTickFrames(n int) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithTickFrames(n))
	}
}

// WithControlFrames bounds how long one automation value is held while a
// trip is ramping.
func WithControlFrames(n int) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithControlFrames(n))
	}
}

func WithQueueSize(n int) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithQueueSize(n))
	}
}

func WithSeekPolicy(p transport.SeekPolicy) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithSeekPolicy(p))
	}
}

// WithScheduler plays the note events of s, such as a sequencer pattern,
// as the transport reaches them.
func WithScheduler(s transport.Scheduler) Option {
	return func(cfg *engineConfig) {
		cfg.transport = append(cfg.transport, transport.WithScheduler(s))
	}
}

// WithFaultHandler installs a callback for entity faults. It runs on the
// render goroutine.
func WithFaultHandler(h graph.FaultHandler) Option {
	return func(cfg *engineConfig) {
		cfg.fault = h
	}
}

// WithLoopTrips makes every trip repeat, whatever its definition says.
func WithLoopTrips(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.loopTrips = enabled
	}
}

// WithSampleTap installs a callback invoked with each rendered tick.
// The callback runs on the render goroutine; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

// Engine renders a Definition. RenderTick, Render and the accessors that
// read render state belong to one goroutine; Post, Play, Stop, Seek,
// SetParam and Watch may be called from anywhere.
type Engine struct {
	graph     *graph.Orchestrator
	auto      *automation.Engine
	transport *transport.Transport
	sampleTap func([]float32)
	out       []float32

	eventMu sync.Mutex
	eventCh chan Event
	stopped bool
}

// New builds an engine for def. Any configuration error aborts
// construction.
func New(def Definition, opts ...Option) (*Engine, error) {
	cfg := engineConfig{ts: musictime.DefaultTimeSignature}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.ts.Validate(); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	e := &Engine{sampleTap: cfg.sampleTap}
	e.graph = graph.New(graph.WithFaultHandler(func(id entity.ID, name string, err error) {
		e.sendEvent(Event{Kind: EventFault, Entity: name, Err: err})
		if cfg.fault != nil {
			cfg.fault(id, name, err)
		}
	}))
	e.auto = automation.NewEngine(cfg.ts)
	if err := e.build(def, cfg); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	tr, err := transport.New(e.graph, e.auto, cfg.transport...)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	e.transport = tr
	return e, nil
}

func (e *Engine) build(def Definition, cfg engineConfig) error {
	for _, d := range def.Entities {
		id, err := e.graph.AddNamed(d.Name, d.Entity)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		if d.MIDIChannel != NoMIDI {
			ch := graph.Omni
			if d.MIDIChannel != OmniMIDI {
				ch = d.MIDIChannel - 1
			}
			if err := e.graph.RouteMIDI(id, ch); err != nil {
				return errgo.NoteMask(err, d.Name, errgo.Any)
			}
		}
		if d.Disabled {
			e.graph.SetEnabled(id, false)
		}
	}
	for _, c := range def.Cables {
		from, err := e.lookup(c.From)
		if err != nil {
			return errgo.WithCausef(nil, graph.ErrDanglingCable, "cable %s -> %s: %v", c.From, c.To, err)
		}
		to, err := e.lookup(c.To)
		if err != nil {
			return errgo.WithCausef(nil, graph.ErrDanglingCable, "cable %s -> %s: %v", c.From, c.To, err)
		}
		if err := e.graph.Connect(from, to); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	for _, l := range def.Links {
		from, err := e.lookup(l.Controller)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		to, err := e.lookup(l.Target)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		if err := e.graph.Link(from, to, l.Param); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	for _, p := range def.Paths {
		if err := e.auto.DefinePath(p); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	for _, t := range def.Trips {
		id, err := e.lookup(t.Entity)
		if err != nil {
			return errgo.NoteMask(err, "trip "+t.Name, errgo.Any)
		}
		err = e.auto.AddTrip(automation.Trip{
			Name:   t.Name,
			Target: automation.Target{Entity: id, Param: t.Param},
			Paths:  t.Paths,
			Origin: t.Origin,
			Loop:   t.Loop || cfg.loopTrips,
		}, e.graph)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	if err := e.graph.Commit(); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	logger.Debugf("built graph: %d entities, %d cables, %d trips", len(def.Entities), len(def.Cables), len(def.Trips))
	return nil
}

func (e *Engine) lookup(name string) (entity.ID, error) {
	id, ok := e.graph.Lookup(name)
	if !ok {
		return entity.None, errgo.WithCausef(nil, graph.ErrUnknownEntity, "no entity named %q", name)
	}
	return id, nil
}

// RenderTick renders one quantum. The returned slice belongs to the engine
// and is overwritten by the next call.
func (e *Engine) RenderTick() ([]float32, error) {
	buf, err := e.transport.Tick()
	if err != nil {
		if errgo.Cause(err) == transport.ErrStopped {
			e.sendStopped()
		}
		return nil, errgo.Mask(err, errgo.Any)
	}
	e.out = append(e.out[:0], buf...)
	if e.sampleTap != nil {
		e.sampleTap(e.out)
	}
	return e.out, nil
}

// Render renders d of musical time from the current position and returns
// a new slice.
func (e *Engine) Render(d musictime.MusicalTime) ([]float32, error) {
	var out []float32
	end := e.transport.Now().Add(d)
	err := e.transport.RenderUntil(end, func(buf entity.Buffer) error {
		if e.sampleTap != nil {
			e.sampleTap(buf)
		}
		out = append(out, buf...)
		return nil
	})
	if err != nil {
		if errgo.Cause(err) == transport.ErrStopped {
			e.sendStopped()
		}
		return out, errgo.Mask(err, errgo.Any)
	}
	return out, nil
}

// Post queues an event for the next tick. It reports false when the queue
// is full.
func (e *Engine) Post(ev transport.Event) bool { return e.transport.Post(ev) }

func (e *Engine) Play() {
	e.eventMu.Lock()
	e.stopped = false
	e.eventMu.Unlock()
	e.transport.Play()
}

// Stop takes effect at the next tick boundary.
func (e *Engine) Stop() { e.transport.Stop() }

func (e *Engine) Playing() bool { return e.transport.Playing() }

// Seek queues a jump to t.
func (e *Engine) Seek(t musictime.MusicalTime) bool { return e.transport.Seek(t) }

func (e *Engine) SkipToStart() bool { return e.transport.SkipToStart() }

func (e *Engine) SetTempo(bpm musictime.Tempo) bool { return e.transport.SetTempo(bpm) }

// Position returns the musical time at the start of the next tick.
func (e *Engine) Position() musictime.MusicalTime { return e.transport.Position() }

func (e *Engine) SampleRate() musictime.SampleRate { return e.transport.SampleRate() }

func (e *Engine) Tempo() musictime.Tempo { return e.transport.Tempo() }

// TickFrames returns the number of frames in a full tick.
func (e *Engine) TickFrames() int { return e.transport.TickFrames() }

// Parameters returns the parameters declared by the named entity.
func (e *Engine) Parameters(name string) ([]entity.ParamSpec, error) {
	id, err := e.lookup(name)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	ps, err := e.graph.Params(id)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return ps, nil
}

// Controllables returns the names of entities with parameters, main mixer
// included.
func (e *Engine) Controllables() []string {
	ids := e.graph.Controllables()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = e.graph.Name(id)
	}
	return names
}

// SetParam queues a parameter change on the named entity. The value is
// clamped to the parameter's range when it is applied.
func (e *Engine) SetParam(name, param string, v float64) error {
	id, err := e.lookup(name)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if _, err := e.graph.ParamSpec(id, param); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if !e.Post(transport.ParamEvent(id, param, v)) {
		return errgo.Newf("event queue full, dropped %s.%s", name, param)
	}
	return nil
}

// Param returns the current value of a parameter. Values are stored
// atomically, so this may be called while rendering.
func (e *Engine) Param(name, param string) (float64, error) {
	id, err := e.lookup(name)
	if err != nil {
		return 0, errgo.Mask(err, errgo.Any)
	}
	v, err := e.graph.Param(id, param)
	if err != nil {
		return 0, errgo.Mask(err, errgo.Any)
	}
	return v, nil
}

// Meters returns the last tick's peak level of each main mixer input.
func (e *Engine) Meters() []graph.Meter { return e.graph.TrackPeaks() }

// Stats describes the work done by the last tick.
func (e *Engine) Stats() graph.Stats { return e.graph.Stats() }

// Watch returns a channel that receives engine events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, 8)
	e.eventMu.Lock()
	e.eventCh = ch
	e.eventMu.Unlock()
	return ch
}

func (e *Engine) sendEvent(ev Event) {
	e.eventMu.Lock()
	ch := e.eventCh
	e.eventMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// sendStopped reports the first stopped tick after each Play.
func (e *Engine) sendStopped() {
	e.eventMu.Lock()
	already := e.stopped
	e.stopped = true
	e.eventMu.Unlock()
	if !already {
		e.sendEvent(Event{Kind: EventStopped})
	}
}
