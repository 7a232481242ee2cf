package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"
)

// counter renders ticks of three frames holding an increasing value and
// fails after limit ticks.
type counter struct {
	n, limit int
	buf      []float32
}

func (c *counter) RenderTick() ([]float32, error) {
	if c.n == c.limit {
		return nil, errgo.New("stopped")
	}
	c.n++
	c.buf = c.buf[:0]
	for i := 0; i < 6; i++ {
		c.buf = append(c.buf, float32(c.n))
	}
	return c.buf, nil
}

func TestTickSourceCarriesPartialTicks(t *testing.T) {
	c := qt.New(t)
	src := NewTickSource(&counter{limit: 3})
	a := make([]float32, 4)
	src.Process(a)
	c.Assert(a, qt.DeepEquals, []float32{1, 1, 1, 1})
	b := make([]float32, 6)
	src.Process(b)
	c.Assert(b, qt.DeepEquals, []float32{1, 1, 2, 2, 2, 2})
	c.Assert(src.Finished(), qt.IsFalse)

	d := []float32{9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	src.Process(d)
	c.Assert(d, qt.DeepEquals, []float32{2, 2, 3, 3, 3, 3, 3, 3, 0, 0})
	c.Assert(src.Finished(), qt.IsTrue)
	c.Assert(src.Err(), qt.ErrorMatches, "stopped")
}

func TestPCMReaderEncodesFloats(t *testing.T) {
	c := qt.New(t)
	r := &pcmReader{source: NewTickSource(&counter{limit: 1})}
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	c.Assert(n, qt.Equals, 24)
	c.Assert(err, qt.IsNil)
	for i := 0; i < 6; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		c.Assert(v, qt.Equals, float32(1))
	}
	n, err = r.Read(p)
	c.Assert(n, qt.Equals, 24)
	c.Assert(err, qt.Equals, io.EOF)

	n, err = r.Read(p[:7])
	c.Assert(n, qt.Equals, 0)
	c.Assert(err, qt.IsNil)
}
