package musictime

import (
	"fmt"
	"math"

	errgo "gopkg.in/errgo.v1"
)

// Tempo is a tempo in beats per minute.
type Tempo float64

const DefaultTempo Tempo = 128

// ErrInvalidTempo is the cause of errors for non-positive or non-finite
// tempos.
var ErrInvalidTempo = errgo.New("invalid tempo")

// NewTempo validates bpm.
func NewTempo(bpm float64) (Tempo, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return 0, errgo.WithCausef(nil, ErrInvalidTempo, "tempo %v", bpm)
	}
	return Tempo(bpm), nil
}

// BPM returns the tempo in beats per minute.
func (t Tempo) BPM() float64 { return t.bpm() }

// BPS returns the tempo in beats per second.
func (t Tempo) BPS() float64 { return t.bpm() / 60 }

// bpm returns the usable tempo. Invalid tempos fall back to the default.
func (t Tempo) bpm() float64 {
	v := float64(t)
	if !(v > 0) || math.IsInf(v, 0) {
		return float64(DefaultTempo)
	}
	return v
}

func (t Tempo) String() string {
	return fmt.Sprintf("%.2f BPM", t.bpm())
}

// SampleRate is a sample rate in frames per second. Zero means
// DefaultSampleRate.
type SampleRate uint32

const DefaultSampleRate SampleRate = 44100

// Hz returns the sample rate, substituting the default for zero.
func (r SampleRate) Hz() uint64 {
	if r == 0 {
		return uint64(DefaultSampleRate)
	}
	return uint64(r)
}

func (r SampleRate) String() string {
	return fmt.Sprintf("%d Hz", r.Hz())
}

// BeatValue is a note value expressed as the denominator of its fraction of
// a whole note: 1 is a whole note, 4 a quarter, 16 a sixteenth.
type BeatValue int

const (
	Whole                  BeatValue = 1
	Half                   BeatValue = 2
	Quarter                BeatValue = 4
	Eighth                 BeatValue = 8
	Sixteenth              BeatValue = 16
	ThirtySecond           BeatValue = 32
	SixtyFourth            BeatValue = 64
	OneHundredTwentyEighth BeatValue = 128
	TwoHundredFiftySixth   BeatValue = 256
	FiveHundredTwelfth     BeatValue = 512
)

// Valid reports whether v is a power of two between Whole and
// FiveHundredTwelfth.
func (v BeatValue) Valid() bool {
	return v >= Whole && v <= FiveHundredTwelfth && v&(v-1) == 0
}

// Duration returns the length of one note of value v under ts. A zero v
// means the time signature's own beat value, which is one beat.
func (v BeatValue) Duration(ts TimeSignature) MusicalTime {
	if v == 0 {
		v = ts.BeatValue()
	}
	return MusicalTime(unitsPerBeat * uint64(ts.BeatValue()) / uint64(v))
}

// TimeSignature is a meter such as 4/4 or 6/8.
type TimeSignature struct {
	Top    int
	Bottom BeatValue
}

var DefaultTimeSignature = TimeSignature{Top: 4, Bottom: Quarter}

// ErrInvalidTimeSignature is the cause of errors for malformed meters.
var ErrInvalidTimeSignature = errgo.New("invalid time signature")

// NewTimeSignature validates top/bottom.
func NewTimeSignature(top int, bottom int) (TimeSignature, error) {
	ts := TimeSignature{Top: top, Bottom: BeatValue(bottom)}
	if err := ts.Validate(); err != nil {
		return TimeSignature{}, err
	}
	return ts, nil
}

// Validate checks that the top is positive and the bottom is a note value.
func (ts TimeSignature) Validate() error {
	if ts.Top <= 0 {
		return errgo.WithCausef(nil, ErrInvalidTimeSignature, "top of %d/%d must be positive", ts.Top, ts.Bottom)
	}
	if !ts.Bottom.Valid() {
		return errgo.WithCausef(nil, ErrInvalidTimeSignature, "bottom of %d/%d is not a note value", ts.Top, ts.Bottom)
	}
	return nil
}

// BeatValue returns the note value of one beat, defaulting to a quarter
// for an invalid bottom.
func (ts TimeSignature) BeatValue() BeatValue {
	if !ts.Bottom.Valid() {
		return Quarter
	}
	return ts.Bottom
}

func (ts TimeSignature) top() int {
	if ts.Top <= 0 {
		return DefaultTimeSignature.Top
	}
	return ts.Top
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Top, ts.Bottom)
}
