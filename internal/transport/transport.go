// Package transport drives the render graph tick by tick.
//
// Each tick drains the event queue, derives the tick's span of musical time
// from the frame counter, plays scheduled events, applies automation, lets
// controllers write their parameters, and renders the graph. A tick is
// rendered in pieces when an automation step starts inside it, and in
// pieces of at most the control quantum while a trip is ramping. Musical
// time is always recomputed from the frame count, never accumulated.
package transport

import (
	"sync/atomic"

	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/automation"
	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/musictime"
)

var logger = loggo.GetLogger("groove.transport")

// ErrStopped is returned by Tick once the transport has been stopped.
var ErrStopped = errgo.New("transport stopped")

const (
	DefaultTickFrames    = 512
	DefaultQueueSize     = 256
	DefaultControlFrames = 64
)

// SeekPolicy decides what happens to sounding notes on a seek.
type SeekPolicy int

const (
	// NoteOffOnSeek sends AllNotesOff to every note handler.
	NoteOffOnSeek SeekPolicy = iota
	// KeepNotesOnSeek leaves notes sounding.
	KeepNotesOnSeek
)

// Graph is the part of the orchestrator the transport drives.
type Graph interface {
	automation.ParamWriter
	Render(span entity.Span) (entity.Buffer, error)
	ApplyControllers(span entity.Span)
	NoteOn(channel, key, velocity uint8)
	NoteOff(channel, key uint8)
	ControlChange(channel, controller, value uint8)
	AllNotesOff()
	Reset()
}

// Scheduler supplies timed events for a span of musical time. Events it
// appends to dst are applied at the start of that span's tick.
type Scheduler interface {
	Events(r musictime.Range, dst []Event) []Event
}

// Automation writes trip values for a point in time. NextChange reports
// the next step boundary after t and whether a value is moving at t.
type Automation interface {
	Apply(t musictime.MusicalTime, w automation.ParamWriter) error
	NextChange(t musictime.MusicalTime) (next musictime.MusicalTime, ramping bool)
}

type config struct {
	sampleRate musictime.SampleRate
	tempo      musictime.Tempo
	tickFrames    int
	controlFrames int
	queueSize     int
	seekPolicy    SeekPolicy
	scheduler     Scheduler
}

// Option configures a Transport.
type Option func(*config)

func WithSampleRate(rate musictime.SampleRate) Option {
	return func(c *config) { c.sampleRate = rate }
}

func WithTempo(bpm musictime.Tempo) Option {
	return func(c *config) { c.tempo = bpm }
}

// WithTickFrames sets the render quantum in frames.
func WithTickFrames(n int) Option {
	return func(c *config) { c.tickFrames = n }
}

// WithControlFrames sets the longest piece of a tick rendered with one
// automation value while a trip is ramping.
func WithControlFrames(n int) Option {
	return func(c *config) { c.controlFrames = n }
}

// WithQueueSize sets the capacity of the event queue.
func WithQueueSize(n int) Option {
	return func(c *config) { c.queueSize = n }
}

func WithSeekPolicy(p SeekPolicy) Option {
	return func(c *config) { c.seekPolicy = p }
}

// WithScheduler plays the events of s as time passes.
func WithScheduler(s Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

// Transport owns the clock. Post, Play, Stop, Playing and Position may be
// called from any goroutine; everything else belongs to the render
// goroutine.
type Transport struct {
	graph  Graph
	auto   Automation
	cfg    config
	events chan Event

	stopped atomic.Bool
	pos     atomic.Uint64

	tempo musictime.Tempo
	frame uint64
	// Musical time is anchorTime plus the time of frame-anchorFrame at
	// the current tempo.
	anchorTime  musictime.MusicalTime
	anchorFrame uint64
	last        musictime.Range
	due         []Event
	out         entity.Buffer
}

// New returns a transport at time zero, ready to play.
func New(g Graph, a Automation, opts ...Option) (*Transport, error) {
	cfg := config{
		sampleRate: musictime.DefaultSampleRate,
		tempo:      musictime.DefaultTempo,
		tickFrames:    DefaultTickFrames,
		controlFrames: DefaultControlFrames,
		queueSize:     DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := musictime.NewTempo(float64(cfg.tempo)); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	if cfg.tickFrames <= 0 {
		return nil, errgo.Newf("tick frames must be positive, got %d", cfg.tickFrames)
	}
	if cfg.controlFrames <= 0 {
		return nil, errgo.Newf("control frames must be positive, got %d", cfg.controlFrames)
	}
	if cfg.queueSize <= 0 {
		return nil, errgo.Newf("queue size must be positive, got %d", cfg.queueSize)
	}
	return &Transport{
		graph:  g,
		auto:   a,
		cfg:    cfg,
		events: make(chan Event, cfg.queueSize),
		tempo:  cfg.tempo,
	}, nil
}

// Post queues e for the next tick. It never blocks and reports false when
// the queue is full.
func (t *Transport) Post(e Event) bool {
	select {
	case t.events <- e:
		return true
	default:
		return false
	}
}

// Play lets Tick render again.
func (t *Transport) Play() { t.stopped.Store(false) }

// Stop makes every later Tick fail with ErrStopped. A tick already in
// progress completes.
func (t *Transport) Stop() { t.stopped.Store(true) }

// Playing reports whether the transport is running.
func (t *Transport) Playing() bool { return !t.stopped.Load() }

// Seek queues a jump to at.
func (t *Transport) Seek(at musictime.MusicalTime) bool { return t.Post(SeekEvent(at)) }

// SkipToStart queues a jump to time zero.
func (t *Transport) SkipToStart() bool { return t.Seek(0) }

// SetTempo queues a tempo change.
func (t *Transport) SetTempo(bpm musictime.Tempo) bool { return t.Post(TempoEvent(bpm)) }

// Position returns the musical time at the start of the next tick. It is
// safe to call from any goroutine.
func (t *Transport) Position() musictime.MusicalTime {
	return musictime.MusicalTime(t.pos.Load())
}

// Now returns the musical time of the current frame.
func (t *Transport) Now() musictime.MusicalTime { return t.timeAt(t.frame) }

// Frame returns the current frame.
func (t *Transport) Frame() uint64 { return t.frame }

// Tempo returns the current tempo.
func (t *Transport) Tempo() musictime.Tempo { return t.tempo }

// SampleRate returns the sample rate.
func (t *Transport) SampleRate() musictime.SampleRate { return t.cfg.sampleRate }

// TickFrames returns the render quantum.
func (t *Transport) TickFrames() int { return t.cfg.tickFrames }

// Range returns the span of the last rendered tick.
func (t *Transport) Range() musictime.Range { return t.last }

func (t *Transport) timeAt(frame uint64) musictime.MusicalTime {
	return t.anchorTime.Add(musictime.FromSamples(frame-t.anchorFrame, t.tempo, t.cfg.sampleRate))
}

// Tick renders one quantum.
func (t *Transport) Tick() (entity.Buffer, error) {
	return t.tick(t.cfg.tickFrames)
}

func (t *Transport) tick(frames int) (entity.Buffer, error) {
	if t.stopped.Load() {
		return nil, ErrStopped
	}
	t.drain()

	from, to := t.frame, t.frame+uint64(frames)
	r := musictime.Range{Start: t.timeAt(from), End: t.timeAt(to)}
	if s := t.cfg.scheduler; s != nil {
		t.due = s.Events(r, t.due[:0])
		for _, e := range t.due {
			t.apply(e)
		}
	}
	var out entity.Buffer
	for f := from; f < to; {
		n := t.piece(f, to)
		buf, err := t.render(f, n)
		if err != nil {
			return nil, errgo.Mask(err, errgo.Any)
		}
		if f == from && n == uint64(frames) {
			out = buf
		} else {
			if out == nil {
				out = t.buffer(frames)
			}
			copy(out[2*(f-from):], buf)
		}
		f += n
	}
	t.frame = to
	t.last = r
	t.pos.Store(uint64(r.End))
	return out, nil
}

// piece returns how many frames starting at from share one automation value.
func (t *Transport) piece(from, to uint64) uint64 {
	if t.auto == nil {
		return to - from
	}
	next, ramping := t.auto.NextChange(t.timeAt(from))
	if ramping {
		to = min(to, from+uint64(t.cfg.controlFrames))
	}
	if next < t.timeAt(to) {
		if f := t.frameAt(next); f > from {
			to = f
		}
	}
	return to - from
}

// frameAt returns the first frame whose time is at or after at.
func (t *Transport) frameAt(at musictime.MusicalTime) uint64 {
	if at <= t.anchorTime {
		return t.anchorFrame
	}
	f := t.anchorFrame + (at - t.anchorTime).ToSamples(t.tempo, t.cfg.sampleRate)
	for f > t.anchorFrame && t.timeAt(f-1) >= at {
		f--
	}
	for t.timeAt(f) < at {
		f++
	}
	return f
}

func (t *Transport) render(from, frames uint64) (entity.Buffer, error) {
	span := entity.Span{
		Range: musictime.Range{
			Start: t.timeAt(from),
			End:   t.timeAt(from + frames),
		},
		StartFrame: from,
		Frames:     int(frames),
		SampleRate: t.cfg.sampleRate,
		Tempo:      t.tempo,
	}
	if t.auto != nil {
		// Failures are logged by the automation engine; the tick goes on.
		t.auto.Apply(span.Range.Start, t.graph)
	}
	t.graph.ApplyControllers(span)
	return t.graph.Render(span)
}

func (t *Transport) buffer(frames int) entity.Buffer {
	if cap(t.out) < 2*frames {
		t.out = entity.NewBuffer(frames)
	}
	return t.out[:2*frames]
}

// drain applies the events queued when the tick began. Events posted while
// draining wait for the next tick.
func (t *Transport) drain() {
	for n := len(t.events); n > 0; n-- {
		t.apply(<-t.events)
	}
}

func (t *Transport) apply(e Event) {
	switch e.Kind {
	case NoteOn:
		t.graph.NoteOn(e.Channel, e.Key, e.Velocity)
	case NoteOff:
		t.graph.NoteOff(e.Channel, e.Key)
	case ControlChange:
		t.graph.ControlChange(e.Channel, e.Controller, e.Velocity)
	case AllNotesOff:
		t.graph.AllNotesOff()
	case Param:
		if err := t.graph.SetParam(e.Entity, e.Name, e.Value); err != nil {
			logger.Warningf("%v: %v", e, err)
		}
	case Seek:
		logger.Debugf("seek from %v to %v", t.Now(), e.Time)
		t.frame = e.Time.ToSamples(t.tempo, t.cfg.sampleRate)
		t.anchorFrame = t.frame
		t.anchorTime = e.Time
		t.pos.Store(uint64(e.Time))
		if t.cfg.seekPolicy == NoteOffOnSeek {
			t.graph.AllNotesOff()
		}
		t.graph.Reset()
	case Tempo:
		if _, err := musictime.NewTempo(float64(e.Tempo)); err != nil {
			logger.Warningf("ignoring %v: %v", e, err)
			return
		}
		logger.Debugf("tempo %v -> %v at %v", t.tempo, e.Tempo, t.Now())
		t.anchorTime = t.Now()
		t.anchorFrame = t.frame
		t.tempo = e.Tempo
	default:
		logger.Warningf("ignoring unknown event kind %d", e.Kind)
	}
}

// RenderUntil ticks until the transport reaches end, passing each buffer to
// sink. The final tick is shortened so that rendering stops on the frame
// where end falls.
func (t *Transport) RenderUntil(end musictime.MusicalTime, sink func(entity.Buffer) error) error {
	for {
		if end <= t.anchorTime {
			return nil
		}
		endFrame := t.anchorFrame + (end - t.anchorTime).ToSamples(t.tempo, t.cfg.sampleRate)
		if t.frame >= endFrame {
			return nil
		}
		frames := uint64(t.cfg.tickFrames)
		if left := endFrame - t.frame; left < frames {
			frames = left
		}
		buf, err := t.tick(int(frames))
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		if err := sink(buf); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
}
