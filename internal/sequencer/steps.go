package sequencer

import (
	"strconv"
	"strings"

	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/musictime"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// Steps builds a pattern from a line of whitespace-separated steps, each
// step long. A step is a note name with an octave ("c4", "f#3", "eb5"; c4
// is key 60), "." for a rest, or "_" to hold the previous note for another
// step.
func Steps(channel, velocity uint8, step musictime.MusicalTime, line string) (Pattern, error) {
	var p Pattern
	held := -1
	for i, tok := range strings.Fields(line) {
		at := musictime.MusicalTime(i) * step
		switch tok {
		case ".":
			held = -1
		case "_":
			if held < 0 {
				return Pattern{}, errgo.WithCausef(nil, ErrInvalidPattern, "step %d: nothing to hold", i+1)
			}
			p.Notes[held].Length += step
		default:
			key, err := ParseKey(tok)
			if err != nil {
				return Pattern{}, errgo.NoteMask(err, "step "+strconv.Itoa(i+1), errgo.Is(ErrInvalidPattern))
			}
			p.Notes = append(p.Notes, Note{
				At:       at,
				Length:   step,
				Key:      key,
				Velocity: velocity,
				Channel:  channel,
			})
			held = len(p.Notes) - 1
		}
		p.Length = at + step
	}
	return p, nil
}

// ParseKey returns the MIDI key of a note name such as "c4", "C#4" or
// "bb-1".
func ParseKey(name string) (uint8, error) {
	s := strings.ToLower(name)
	if s == "" {
		return 0, errgo.WithCausef(nil, ErrInvalidPattern, "empty note name")
	}
	base, ok := noteOffsets[s[0]]
	if !ok {
		return 0, errgo.WithCausef(nil, ErrInvalidPattern, "bad note name %q", name)
	}
	i, shift := 1, 0
	for ; i < len(s); i++ {
		if s[i] == '#' || s[i] == '+' {
			shift++
		} else if s[i] == 'b' {
			shift--
		} else {
			break
		}
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, errgo.WithCausef(nil, ErrInvalidPattern, "bad octave in note name %q", name)
	}
	key := (octave+1)*12 + base + shift
	if key < 0 || key > 127 {
		return 0, errgo.WithCausef(nil, ErrInvalidPattern, "note %q is outside the MIDI range", name)
	}
	return uint8(key), nil
}
