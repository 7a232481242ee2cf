// Package sequencer plays note patterns in musical time. A Sequencer is a
// transport.Scheduler: each tick it reports the note events whose times
// fall inside the tick's range.
package sequencer

import (
	"sort"

	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/transport"
)

// ErrInvalidPattern is the cause of errors for patterns that cannot be
// played.
var ErrInvalidPattern = errgo.New("invalid pattern")

// Note is one note of a pattern. Channel is 1-16; events carry it as
// 0-15, the way MIDI messages do.
type Note struct {
	At       musictime.MusicalTime
	Length   musictime.MusicalTime
	Key      uint8
	Velocity uint8
	Channel  uint8
}

func (n Note) end() musictime.MusicalTime { return n.At.Add(n.Length) }

// Pattern is a list of notes and the length after which it repeats.
type Pattern struct {
	Notes  []Note
	Length musictime.MusicalTime
}

// Merge returns a pattern holding the notes of every pattern, as long as
// the longest of them.
func Merge(patterns ...Pattern) Pattern {
	var out Pattern
	for _, p := range patterns {
		out.Notes = append(out.Notes, p.Notes...)
		if p.Length > out.Length {
			out.Length = p.Length
		}
	}
	return out
}

type Options struct {
	// Loop repeats the pattern forever.
	Loop bool
	// Transpose shifts every key by this many semitones. Notes shifted out
	// of the MIDI range are dropped.
	Transpose int
}

// Sequencer schedules the notes of a pattern.
type Sequencer struct {
	notes  []Note
	length musictime.MusicalTime
	opts   Options
}

// New checks p and returns a sequencer for it.
func New(p Pattern, opts Options) (*Sequencer, error) {
	if p.Length == 0 {
		return nil, errgo.WithCausef(nil, ErrInvalidPattern, "pattern has no length")
	}
	notes := make([]Note, 0, len(p.Notes))
	for i, n := range p.Notes {
		switch {
		case n.Channel < 1 || n.Channel > 16:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d: channel %d out of range", i, n.Channel)
		case n.Key > 127:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d: key %d out of range", i, n.Key)
		case n.Velocity < 1 || n.Velocity > 127:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d: velocity %d out of range", i, n.Velocity)
		case n.Length == 0:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d has no length", i)
		case n.At >= p.Length:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d starts at %v, after the pattern ends", i, n.At)
		case n.Length > p.Length:
			return nil, errgo.WithCausef(nil, ErrInvalidPattern, "note %d is longer than the pattern", i)
		}
		key := int(n.Key) + opts.Transpose
		if key < 0 || key > 127 {
			continue
		}
		n.Key = uint8(key)
		notes = append(notes, n)
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].At < notes[j].At })
	return &Sequencer{notes: notes, length: p.Length, opts: opts}, nil
}

// Length returns the length of one pass through the pattern.
func (s *Sequencer) Length() musictime.MusicalTime { return s.length }

// Events implements transport.Scheduler. Note-offs come before note-ons so
// a key that ends and restarts in the same tick is retriggered.
func (s *Sequencer) Events(r musictime.Range, dst []transport.Event) []transport.Event {
	if r.IsEmpty() {
		return dst
	}
	first, last := uint64(0), uint64(0)
	if s.opts.Loop {
		first = uint64(r.Start / s.length)
		if first > 0 {
			// Notes of the previous pass may end inside r.
			first--
		}
		last = uint64((r.End - 1) / s.length)
	}
	for pass := first; pass <= last; pass++ {
		offset := musictime.MusicalTime(pass) * s.length
		for _, n := range s.notes {
			if off := offset.Add(n.end()); r.Contains(off) {
				dst = append(dst, transport.NoteOffEvent(n.Channel-1, n.Key))
			}
		}
	}
	for pass := first; pass <= last; pass++ {
		offset := musictime.MusicalTime(pass) * s.length
		for _, n := range s.notes {
			if on := offset.Add(n.At); r.Contains(on) {
				dst = append(dst, transport.NoteOnEvent(n.Channel-1, n.Key, n.Velocity))
			}
		}
	}
	return dst
}
