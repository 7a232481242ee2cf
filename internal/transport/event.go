package transport

import (
	"fmt"

	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/musictime"
)

// EventKind identifies an Event.
type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
	ControlChange
	AllNotesOff
	Param
	Seek
	Tempo
)

var eventKindNames = [...]string{
	NoteOn:        "note-on",
	NoteOff:       "note-off",
	ControlChange: "control-change",
	AllNotesOff:   "all-notes-off",
	Param:         "param",
	Seek:          "seek",
	Tempo:         "tempo",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is a message for the render thread. Events are plain values; they
// never carry references into the graph.
type Event struct {
	Kind EventKind

	// NoteOn, NoteOff, ControlChange. Channel is 0-15.
	Channel    uint8
	Key        uint8
	Velocity   uint8
	Controller uint8

	// Param.
	Entity entity.ID
	Name   string
	Value  float64

	// Seek.
	Time musictime.MusicalTime

	// Tempo.
	Tempo musictime.Tempo
}

func NoteOnEvent(channel, key, velocity uint8) Event {
	return Event{Kind: NoteOn, Channel: channel, Key: key, Velocity: velocity}
}

func NoteOffEvent(channel, key uint8) Event {
	return Event{Kind: NoteOff, Channel: channel, Key: key}
}

// ControlChangeEvent carries a MIDI CC. The value travels in Velocity.
func ControlChangeEvent(channel, controller, value uint8) Event {
	return Event{Kind: ControlChange, Channel: channel, Controller: controller, Velocity: value}
}

func AllNotesOffEvent() Event {
	return Event{Kind: AllNotesOff}
}

func ParamEvent(id entity.ID, name string, v float64) Event {
	return Event{Kind: Param, Entity: id, Name: name, Value: v}
}

func SeekEvent(t musictime.MusicalTime) Event {
	return Event{Kind: Seek, Time: t}
}

func TempoEvent(bpm musictime.Tempo) Event {
	return Event{Kind: Tempo, Tempo: bpm}
}

func (e Event) String() string {
	switch e.Kind {
	case NoteOn:
		return fmt.Sprintf("note-on ch=%d key=%d vel=%d", e.Channel, e.Key, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("note-off ch=%d key=%d", e.Channel, e.Key)
	case ControlChange:
		return fmt.Sprintf("cc ch=%d cc=%d val=%d", e.Channel, e.Controller, e.Velocity)
	case Param:
		return fmt.Sprintf("param %d.%s=%v", e.Entity, e.Name, e.Value)
	case Seek:
		return fmt.Sprintf("seek %v", e.Time)
	case Tempo:
		return fmt.Sprintf("tempo %v", e.Tempo)
	}
	return e.Kind.String()
}
