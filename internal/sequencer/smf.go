package sequencer

import (
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/musictime"
)

// TicksPerBeat is the resolution of exported MIDI files.
const TicksPerBeat = 960

type smfEvent struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// WriteSMF writes one pass of p as a standard MIDI file: a tempo track
// followed by one track per channel, in channel order.
func (p Pattern) WriteSMF(w io.Writer, bpm musictime.Tempo, ts musictime.TimeSignature) error {
	if err := ts.Validate(); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(uint8(ts.Top), uint8(ts.Bottom)))
	meta.Add(0, smf.MetaTempo(float64(bpm)))
	meta.Close(toTicks(p.Length))
	if err := s.Add(meta); err != nil {
		return errgo.Notef(err, "cannot add tempo track")
	}

	byChannel := make(map[uint8][]smfEvent)
	for _, n := range p.Notes {
		ch := n.Channel - 1
		byChannel[n.Channel] = append(byChannel[n.Channel],
			smfEvent{tick: toTicks(n.At), msg: midi.NoteOn(ch, n.Key, n.Velocity)},
			smfEvent{tick: toTicks(n.end()), off: true, msg: midi.NoteOff(ch, n.Key)},
		)
	}
	channels := make([]uint8, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	for _, ch := range channels {
		events := byChannel[ch]
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].tick != events[j].tick {
				return events[i].tick < events[j].tick
			}
			return events[i].off && !events[j].off
		})
		var tr smf.Track
		var last uint32
		for _, ev := range events {
			tr.Add(ev.tick-last, ev.msg)
			last = ev.tick
		}
		end := toTicks(p.Length)
		if end < last {
			end = last
		}
		tr.Close(end - last)
		if err := s.Add(tr); err != nil {
			return errgo.Notef(err, "cannot add track for channel %d", ch)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return errgo.Notef(err, "cannot write MIDI file")
	}
	return nil
}

func toTicks(t musictime.MusicalTime) uint32 {
	return uint32(t.TotalBeats()*TicksPerBeat + uint64(t.Fraction())*TicksPerBeat/musictime.UnitsPerBeat)
}
