// Package musictime implements a tempo- and sample-rate-independent
// representation of musical time.
//
// A MusicalTime counts fixed sub-beat units: 65536 units make a beat, split
// into 16 parts of 4096 units each. All arithmetic is integer arithmetic.
// Conversions to and from sample frames are derived from the integer value
// on every call and never accumulate, so long renders do not drift.
package musictime

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"

	errgo "gopkg.in/errgo.v1"
)

// MusicalTime is a point in (or length of) musical time, in units.
type MusicalTime uint64

const (
	PartsPerBeat  = 16
	UnitsPerPart  = 4096
	UnitsPerBeat  = PartsPerBeat * UnitsPerPart
	unitsPerBeat  = uint64(UnitsPerBeat)
	maxWholeBeats = math.MaxUint64/unitsPerBeat - 1
)

// End is the end of time. Saturating operations stop here.
const End = MusicalTime(math.MaxUint64)

// ErrUnderflow is the cause of errors returned when a subtraction
// would produce a negative time.
var ErrUnderflow = errgo.New("musical time underflow")

// FromBeats returns the time of whole beats plus fraction units.
// Beat counts that do not fit saturate at End.
func FromBeats(whole uint64, fraction uint16) MusicalTime {
	if whole > maxWholeBeats {
		return End
	}
	return MusicalTime(whole*unitsPerBeat + uint64(fraction))
}

// FromParts returns the time of the given number of parts (sixteenths
// of a beat).
func FromParts(parts uint64) MusicalTime {
	if parts > math.MaxUint64/UnitsPerPart {
		return End
	}
	return MusicalTime(parts * UnitsPerPart)
}

// FromUnits returns the time of the given raw unit count.
func FromUnits(units uint64) MusicalTime {
	return MusicalTime(units)
}

// FromBars returns the time at the start of the given bar under ts.
func FromBars(ts TimeSignature, bars uint64) MusicalTime {
	top := uint64(ts.top())
	if bars > maxWholeBeats/top {
		return End
	}
	return FromBeats(bars*top, 0)
}

// Add returns t+d, saturating at End.
func (t MusicalTime) Add(d MusicalTime) MusicalTime {
	sum, carry := bits.Add64(uint64(t), uint64(d), 0)
	if carry != 0 {
		return End
	}
	return MusicalTime(sum)
}

// Sub returns t-d. It fails with ErrUnderflow when d is later than t.
func (t MusicalTime) Sub(d MusicalTime) (MusicalTime, error) {
	if d > t {
		return 0, errgo.WithCausef(nil, ErrUnderflow, "cannot subtract %v from %v", d, t)
	}
	return t - d, nil
}

// Compare returns -1, 0 or +1 as t is before, equal to or after u.
func (t MusicalTime) Compare(u MusicalTime) int {
	switch {
	case t < u:
		return -1
	case t > u:
		return 1
	}
	return 0
}

// TotalUnits returns the raw unit count.
func (t MusicalTime) TotalUnits() uint64 { return uint64(t) }

// TotalBeats returns the number of whole beats.
func (t MusicalTime) TotalBeats() uint64 { return uint64(t) / unitsPerBeat }

// TotalParts returns the number of whole parts.
func (t MusicalTime) TotalParts() uint64 { return uint64(t) / UnitsPerPart }

// Parts returns the part within the current beat.
func (t MusicalTime) Parts() uint64 { return t.TotalParts() % PartsPerBeat }

// Units returns the unit within the current part.
func (t MusicalTime) Units() uint64 { return uint64(t) % UnitsPerPart }

// Fraction returns the sub-beat portion in units.
func (t MusicalTime) Fraction() uint16 { return uint16(uint64(t) % unitsPerBeat) }

// Bars returns the number of whole bars under ts.
func (t MusicalTime) Bars(ts TimeSignature) uint64 {
	return t.TotalBeats() / uint64(ts.top())
}

// BeatInBar returns the beat within the current bar under ts.
func (t MusicalTime) BeatInBar(ts TimeSignature) uint64 {
	return t.TotalBeats() % uint64(ts.top())
}

// Beats returns t as a floating-point beat count, for display and
// curve interpolation only.
func (t MusicalTime) Beats() float64 {
	return float64(t.TotalBeats()) + float64(t.Fraction())/UnitsPerBeat
}

func (t MusicalTime) String() string {
	if t == End {
		return "end"
	}
	return fmt.Sprintf("%d.%d.%d", t.TotalBeats(), t.Parts(), t.Units())
}

// ToSamples returns the sample frame at which t falls for the given tempo
// and sample rate, rounding toward zero. Results too large for a uint64
// saturate.
func (t MusicalTime) ToSamples(tempo Tempo, rate SampleRate) uint64 {
	bpm := tempo.bpm()
	num := rate.Hz() * 60
	if whole, ok := integralBPM(bpm); ok {
		hi, lo := bits.Mul64(uint64(t), num)
		den := whole * unitsPerBeat
		if hi >= den {
			return math.MaxUint64
		}
		q, _ := bits.Div64(hi, lo, den)
		return q
	}
	n := new(big.Int).SetUint64(uint64(t))
	n.Mul(n, new(big.Int).SetUint64(num))
	d := new(big.Rat).SetFloat64(bpm)
	d.Mul(d, new(big.Rat).SetUint64(unitsPerBeat))
	q := new(big.Rat).SetInt(n)
	q.Quo(q, d)
	return truncRat(q)
}

// FromSamples returns the musical time of the given sample frame, rounded
// to the nearest unit.
func FromSamples(frames uint64, tempo Tempo, rate SampleRate) MusicalTime {
	bpm := tempo.bpm()
	den := rate.Hz() * 60
	if whole, ok := integralBPM(bpm); ok && whole <= math.MaxUint64/unitsPerBeat {
		hi, lo := bits.Mul64(frames, whole*unitsPerBeat)
		if hi >= den {
			return End
		}
		q, r := bits.Div64(hi, lo, den)
		if r >= den-r && q < math.MaxUint64 {
			q++
		}
		return MusicalTime(q)
	}
	q := new(big.Rat).SetFloat64(bpm)
	q.Mul(q, new(big.Rat).SetUint64(unitsPerBeat))
	q.Mul(q, new(big.Rat).SetUint64(frames))
	q.Quo(q, new(big.Rat).SetUint64(den))
	q.Add(q, big.NewRat(1, 2))
	return MusicalTime(truncRat(q))
}

func integralBPM(bpm float64) (uint64, bool) {
	if bpm != math.Trunc(bpm) || bpm < 1 || bpm > 1<<47 {
		return 0, false
	}
	return uint64(bpm), true
}

// truncRat truncates a non-negative rational toward zero, saturating at
// MaxUint64.
func truncRat(q *big.Rat) uint64 {
	i := new(big.Int).Quo(q.Num(), q.Denom())
	if !i.IsUint64() {
		return math.MaxUint64
	}
	return i.Uint64()
}

// Range is a half-open interval [Start, End) of musical time.
type Range struct {
	Start MusicalTime
	End   MusicalTime
}

// Contains reports whether t lies within r.
func (r Range) Contains(t MusicalTime) bool {
	return t >= r.Start && t < r.End
}

// Len returns the length of r, or zero for inverted ranges.
func (r Range) Len() MusicalTime {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// IsEmpty reports whether r covers no time.
func (r Range) IsEmpty() bool { return r.End <= r.Start }

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v)", r.Start, r.End)
}
