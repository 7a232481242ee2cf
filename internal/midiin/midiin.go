// Package midiin turns incoming MIDI messages into transport events.
package midiin

import (
	"sync/atomic"

	"github.com/juju/loggo"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/groove-go/internal/transport"
)

var logger = loggo.GetLogger("groove.midiin")

// ccAllNotesOff is the channel mode message that silences a channel.
const ccAllNotesOff = 123

// Poster accepts events for the render goroutine.
type Poster interface {
	Post(e transport.Event) bool
}

// Decode converts msg into an event. It reports false for messages the
// engine does not handle.
func Decode(msg midi.Message) (transport.Event, bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return transport.NoteOnEvent(ch, key, vel), true
	case msg.GetNoteEnd(&ch, &key):
		return transport.NoteOffEvent(ch, key), true
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == ccAllNotesOff {
			return transport.AllNotesOffEvent(), true
		}
		return transport.ControlChangeEvent(ch, cc, val), true
	}
	return transport.Event{}, false
}

// Listener decodes messages and posts them to p. Its Receive method has
// the signature midi.ListenTo expects.
type Listener struct {
	p       Poster
	dropped atomic.Int64
}

func NewListener(p Poster) *Listener {
	return &Listener{p: p}
}

// Receive handles one message from a MIDI input port.
func (l *Listener) Receive(msg midi.Message, timestampms int32) {
	e, ok := Decode(msg)
	if !ok {
		logger.Tracef("ignoring %v", msg)
		return
	}
	if !l.p.Post(e) {
		l.dropped.Add(1)
		logger.Warningf("event queue full, dropped %v at %dms", e, timestampms)
	}
}

// Dropped returns how many decoded messages did not fit in the queue.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }
