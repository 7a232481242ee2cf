// Package entity defines the capabilities a node of the render graph may
// have. An entity is any value; the orchestrator discovers what it can do
// by asserting the small interfaces below.
package entity

import (
	"github.com/cbegin/groove-go/internal/musictime"
)

// ID identifies an entity within one orchestrator. Entities never learn
// their own ID.
type ID int

// None is the zero ID. The orchestrator never issues it.
const None ID = 0

// Entity is anything that can be added to the render graph.
type Entity any

// Span describes the stretch of time a node is asked to render.
type Span struct {
	Range      musictime.Range
	StartFrame uint64
	Frames     int
	SampleRate musictime.SampleRate
	Tempo      musictime.Tempo
}

// Seconds returns the absolute time in seconds of frame i of the span.
func (s Span) Seconds(i int) float64 {
	return float64(s.StartFrame+uint64(i)) / float64(s.SampleRate.Hz())
}

// Producer generates audio. Produce must fill exactly span.Frames frames of
// dst. Producers without state must be random access: their output may
// depend only on the span.
type Producer interface {
	Produce(span Span, dst Buffer) error
}

// Transformer maps input audio to output audio of the same length. It must
// not retain in after returning.
type Transformer interface {
	Transform(span Span, in, dst Buffer) error
}

// Controllable exposes named parameters with declared ranges. SetParam
// clamps out-of-range values and succeeds; unknown names fail with
// ErrUnknownParameter.
type Controllable interface {
	Params() []ParamSpec
	SetParam(name string, v float64) error
	Param(name string) (float64, error)
}

// NoteHandler receives note messages routed to it.
type NoteHandler interface {
	NoteOn(channel, key, velocity uint8)
	NoteOff(channel, key uint8)
	AllNotesOff()
}

// ControlChanger receives MIDI continuous controller messages.
type ControlChanger interface {
	ControlChange(channel, controller, value uint8)
}

// Resetter is implemented by entities that keep state between ticks.
type Resetter interface {
	Reset()
}

// Controller emits a normalized control value in [0, 1] once per tick.
// The orchestrator writes it to linked parameters. ok is false when the
// controller has nothing to say this tick.
type Controller interface {
	Control(span Span) (v float64, ok bool)
}

// Cap is a set of capabilities.
type Cap uint8

const (
	CapProduce Cap = 1 << iota
	CapTransform
	CapControl
	CapNotes
	CapController
)

// Has reports whether all of want are present.
func (c Cap) Has(want Cap) bool { return c&want == want }

// Caps returns the capabilities of e.
func Caps(e Entity) Cap {
	var c Cap
	if _, ok := e.(Producer); ok {
		c |= CapProduce
	}
	if _, ok := e.(Transformer); ok {
		c |= CapTransform
	}
	if _, ok := e.(Controllable); ok {
		c |= CapControl
	}
	if _, ok := e.(NoteHandler); ok {
		c |= CapNotes
	}
	if _, ok := e.(Controller); ok {
		c |= CapController
	}
	return c
}

// Kind classifies an entity by its audio role.
type Kind int

const (
	Inert Kind = iota
	SourceOnly
	TransformOnly
	SourceAndTransform
	ControlOnly
)

var kindNames = [...]string{
	Inert:              "inert",
	SourceOnly:         "source",
	TransformOnly:      "transform",
	SourceAndTransform: "source+transform",
	ControlOnly:        "control",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf returns the kind of e.
func KindOf(e Entity) Kind {
	c := Caps(e)
	switch {
	case c.Has(CapProduce | CapTransform):
		return SourceAndTransform
	case c.Has(CapProduce):
		return SourceOnly
	case c.Has(CapTransform):
		return TransformOnly
	case c&(CapControl|CapController) != 0:
		return ControlOnly
	}
	return Inert
}

// ProducesAudio reports whether e has an audio output.
func ProducesAudio(e Entity) bool {
	return Caps(e)&(CapProduce|CapTransform) != 0
}
