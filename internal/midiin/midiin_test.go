package midiin

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/groove-go/internal/transport"
)

type queue struct {
	events []transport.Event
	limit  int
}

func (q *queue) Post(e transport.Event) bool {
	if len(q.events) == q.limit {
		return false
	}
	q.events = append(q.events, e)
	return true
}

var decodeTests = []struct {
	about string
	msg   midi.Message
	want  transport.Event
	ok    bool
}{{
	about: "note on",
	msg:   midi.NoteOn(2, 60, 100),
	want:  transport.NoteOnEvent(2, 60, 100),
	ok:    true,
}, {
	about: "note on with zero velocity",
	msg:   midi.NoteOn(2, 60, 0),
	want:  transport.NoteOffEvent(2, 60),
	ok:    true,
}, {
	about: "note off",
	msg:   midi.NoteOff(15, 127),
	want:  transport.NoteOffEvent(15, 127),
	ok:    true,
}, {
	about: "control change",
	msg:   midi.ControlChange(0, 7, 90),
	want:  transport.ControlChangeEvent(0, 7, 90),
	ok:    true,
}, {
	about: "all notes off",
	msg:   midi.ControlChange(3, 123, 0),
	want:  transport.AllNotesOffEvent(),
	ok:    true,
}, {
	about: "program change",
	msg:   midi.ProgramChange(0, 5),
}}

func TestDecode(t *testing.T) {
	c := qt.New(t)
	for _, test := range decodeTests {
		c.Logf("test: %s", test.about)
		e, ok := Decode(test.msg)
		c.Assert(ok, qt.Equals, test.ok)
		c.Assert(e, qt.Equals, test.want)
	}
}

func TestListenerCountsDrops(t *testing.T) {
	c := qt.New(t)
	q := &queue{limit: 1}
	l := NewListener(q)
	l.Receive(midi.NoteOn(0, 60, 100), 0)
	l.Receive(midi.ProgramChange(0, 1), 1)
	l.Receive(midi.NoteOff(0, 60), 2)
	c.Assert(q.events, qt.DeepEquals, []transport.Event{transport.NoteOnEvent(0, 60, 100)})
	c.Assert(l.Dropped(), qt.Equals, int64(1))
}
