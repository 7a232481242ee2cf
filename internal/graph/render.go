package graph

import (
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
)

type op uint8

const (
	visit op = iota
	collect
)

type work struct {
	op op
	n  *node
}

// Stats describes the last rendered tick.
type Stats struct {
	Evaluated int
	Faults    int
}

// Stats returns counters for the last tick.
func (o *Orchestrator) Stats() Stats { return o.stats }

// pool recycles sample buffers between nodes and ticks.
type pool struct {
	free []entity.Buffer
}

func (p *pool) get(frames int) entity.Buffer {
	n := frames * 2
	for i := len(p.free) - 1; i >= 0; i-- {
		b := p.free[i]
		if cap(b) >= n {
			p.free[i] = p.free[len(p.free)-1]
			p.free = p.free[:len(p.free)-1]
			b = b[:n]
			b.Zero()
			return b
		}
	}
	return entity.NewBuffer(frames)
}

func (p *pool) put(b entity.Buffer) {
	if b != nil {
		p.free = append(p.free, b)
	}
}

// Render evaluates the graph for span and returns the main mixer's output.
// The returned buffer is owned by the orchestrator and is valid until the
// next call to Render.
func (o *Orchestrator) Render(span entity.Span) (entity.Buffer, error) {
	if o.dirty {
		return nil, errgo.WithCausef(nil, ErrNotCommitted, "")
	}
	for _, n := range o.order {
		o.pool.put(n.out)
		n.out = nil
	}
	o.epoch++
	o.stats = Stats{}

	o.stack = append(o.stack[:0], work{visit, o.root})
	for len(o.stack) > 0 {
		w := o.stack[len(o.stack)-1]
		o.stack = o.stack[:len(o.stack)-1]
		n := w.n
		if n.epoch == o.epoch {
			continue
		}
		switch w.op {
		case visit:
			if !n.enabled {
				o.resolve(n, nil)
				continue
			}
			o.stack = append(o.stack, work{collect, n})
			for i := len(n.inputs) - 1; i >= 0; i-- {
				if dep := n.inputs[i]; dep.epoch != o.epoch {
					o.stack = append(o.stack, work{visit, dep})
				}
			}
		case collect:
			o.collect(span, n)
		}
	}

	if o.root.out == nil {
		o.root.out = o.pool.get(span.Frames)
	}
	return o.root.out, nil
}

// release drops one reference to n's output and recycles the buffer when
// no consumer is left.
func (o *Orchestrator) release(n *node) {
	n.refs--
	if n.refs > 0 || n == o.root {
		return
	}
	o.pool.put(n.out)
	n.out = nil
}

func (o *Orchestrator) resolve(n *node, out entity.Buffer) {
	n.epoch = o.epoch
	n.out = out
	n.refs = n.fanout
	n.peak = 0
	if out != nil {
		n.peak = out.Peak()
	}
}

// collect evaluates n once its inputs are resolved.
func (o *Orchestrator) collect(span entity.Span, n *node) {
	o.stats.Evaluated++
	var in, own entity.Buffer
	if n.caps.Has(entity.CapTransform) {
		in = o.pool.get(span.Frames)
		for _, dep := range n.inputs {
			if dep.out != nil {
				in.Mix(dep.out)
			}
		}
		for _, dep := range n.inputs {
			o.release(dep)
		}
	}

	out := o.pool.get(span.Frames)
	err := o.guard(func() error {
		switch {
		case n.caps.Has(entity.CapProduce | entity.CapTransform):
			own = o.pool.get(span.Frames)
			if err := n.e.(entity.Producer).Produce(span, own); err != nil {
				return err
			}
			in.Mix(own)
			return n.e.(entity.Transformer).Transform(span, in, out)
		case n.caps.Has(entity.CapTransform):
			return n.e.(entity.Transformer).Transform(span, in, out)
		case n.caps.Has(entity.CapProduce):
			return n.e.(entity.Producer).Produce(span, out)
		}
		return nil
	})
	o.pool.put(in)
	o.pool.put(own)
	if err != nil {
		o.stats.Faults++
		o.report(n, err)
		o.pool.put(out)
		out = nil
	}
	o.resolve(n, out)
}

// guard runs f, turning a panic into an error.
func (o *Orchestrator) guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errgo.Newf("panic: %v", r)
		}
	}()
	return f()
}

func (o *Orchestrator) report(n *node, err error) {
	logger.Warningf("entity %s failed, silenced for this tick: %v", n.label(), err)
	if o.fault != nil {
		o.fault(n.id, n.name, err)
	}
}

// LastOutput returns the peak level of id's output in the last tick.
func (o *Orchestrator) LastOutput(id entity.ID) float32 {
	if n, ok := o.nodes[id]; ok && n.epoch == o.epoch {
		return n.peak
	}
	return 0
}

// Meter is the level of one main mixer input.
type Meter struct {
	ID   entity.ID
	Name string
	Peak float32
}

// TrackPeaks returns the last tick's peak of every main mixer input.
func (o *Orchestrator) TrackPeaks() []Meter {
	ms := make([]Meter, 0, len(o.root.inputs))
	for _, n := range o.root.inputs {
		ms = append(ms, Meter{ID: n.id, Name: n.name, Peak: o.LastOutput(n.id)})
	}
	return ms
}
