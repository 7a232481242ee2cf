package graph

import (
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
)

// Commit validates the graph and rebuilds the render plan. Until it
// succeeds, Render fails with ErrNotCommitted.
func (o *Orchestrator) Commit() error {
	for _, n := range o.order {
		n.inputs = n.inputs[:0]
		n.fanout = 0
	}
	for _, c := range o.cables {
		src, ok := o.nodes[c.From]
		if !ok {
			return errgo.WithCausef(nil, ErrDanglingCable, "cable source %d does not exist", c.From)
		}
		dst, ok := o.nodes[c.To]
		if !ok {
			return errgo.WithCausef(nil, ErrDanglingCable, "cable destination %d does not exist", c.To)
		}
		dst.inputs = append(dst.inputs, src)
		src.fanout++
	}
	if err := o.checkAcyclic(); err != nil {
		return err
	}
	reaches := o.reachesRoot()
	for _, n := range o.order {
		if entity.ProducesAudio(n.e) && !reaches[n] {
			return errgo.WithCausef(nil, ErrUnreachable, "%s is not connected to %s", n.label(), o.root.label())
		}
	}
	o.dirty = false
	logger.Debugf("committed %d entities, %d cables, %d links", len(o.order), len(o.cables), len(o.links))
	return nil
}

// Committed reports whether the graph is ready to render.
func (o *Orchestrator) Committed() bool { return !o.dirty }

// checkAcyclic runs an iterative depth-first search over inputs.
func (o *Orchestrator) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[*node]int, len(o.order))
	type frame struct {
		n    *node
		next int
	}
	for _, start := range o.order {
		if color[start] != white {
			continue
		}
		stack := []frame{{n: start}}
		color[start] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.n.inputs) {
				color[top.n] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.n.inputs[top.next]
			top.next++
			switch color[dep] {
			case grey:
				path := []entity.ID{dep.id}
				for i := len(stack) - 1; i >= 0 && stack[i].n != dep; i-- {
					path = append(path, stack[i].n.id)
				}
				path = append(path, dep.id)
				return errgo.WithCausef(nil, ErrCycle, "cycle %s", o.describe(path))
			case white:
				color[dep] = grey
				stack = append(stack, frame{n: dep})
			}
		}
	}
	return nil
}

// reachesRoot marks every node with a downstream path to the root.
func (o *Orchestrator) reachesRoot() map[*node]bool {
	seen := map[*node]bool{o.root: true}
	queue := []*node{o.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, in := range n.inputs {
			if !seen[in] {
				seen[in] = true
				queue = append(queue, in)
			}
		}
	}
	return seen
}
