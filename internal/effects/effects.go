// Package effects provides stereo insert effects that run as graph
// transformers. Each one exposes its settings as controllable parameters
// and keeps its own state, which is cleared by Reset.
package effects

import (
	"github.com/cbegin/groove-go/internal/entity"
)

// Effector processes stereo audio one frame at a time.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Insert is an effect usable as a graph node.
type Insert interface {
	entity.Transformer
	entity.Controllable
	entity.Resetter
}

// process runs e over in, writing dst. in and dst may be the same buffer.
func process(e Effector, in, dst entity.Buffer) {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = e.Process(in[i], in[i+1])
	}
}

// settings notices when the sample rate or a parameter changed since the
// previous tick, so effects only recompute coefficients when needed.
type settings struct {
	*entity.ParamSet
	rate   uint64
	values []float64
}

func newSettings(specs ...entity.ParamSpec) settings {
	return settings{ParamSet: entity.NewParamSet(specs...)}
}

func (s *settings) changed(span entity.Span) bool {
	rate := span.SampleRate.Hz()
	dirty := rate != s.rate || s.values == nil
	if s.values == nil {
		s.values = make([]float64, s.Len())
	}
	for i := range s.values {
		if v := s.Value(i); v != s.values[i] {
			s.values[i] = v
			dirty = true
		}
	}
	s.rate = rate
	return dirty
}

// Chain applies a sequence of inserts in order as a single graph node.
type Chain struct {
	effects []Insert
}

func NewChain(effects ...Insert) *Chain {
	return &Chain{effects: effects}
}

// Transform implements entity.Transformer.
func (c *Chain) Transform(span entity.Span, in, dst entity.Buffer) error {
	copy(dst, in)
	for _, e := range c.effects {
		if err := e.Transform(span, dst, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Insert) {
	c.effects = append(c.effects, e)
}

// Effects returns the inserts in processing order.
func (c *Chain) Effects() []Insert {
	return append([]Insert(nil), c.effects...)
}
