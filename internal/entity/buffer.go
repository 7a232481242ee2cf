package entity

import "math"

// Buffer holds interleaved stereo samples: L, R, L, R, ...
type Buffer []float32

// NewBuffer allocates a silent buffer of the given number of frames.
func NewBuffer(frames int) Buffer {
	return make(Buffer, frames*2)
}

// Frames returns the number of stereo frames in b.
func (b Buffer) Frames() int { return len(b) / 2 }

// Zero silences b.
func (b Buffer) Zero() {
	clear(b)
}

// Mix adds src into b. Extra samples in either buffer are ignored.
func (b Buffer) Mix(src Buffer) {
	n := min(len(b), len(src))
	for i := 0; i < n; i++ {
		b[i] += src[i]
	}
}

// Scale multiplies every sample by g.
func (b Buffer) Scale(g float32) {
	for i := range b {
		b[i] *= g
	}
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float32 {
	var p float32
	for _, s := range b {
		if s < 0 {
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}

// IsSilent reports whether every sample is zero.
func (b Buffer) IsSilent() bool {
	for _, s := range b {
		if s != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold the same samples within tol.
func Equal(a, b Buffer, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i])-float64(b[i])) > tol {
			return false
		}
	}
	return true
}
