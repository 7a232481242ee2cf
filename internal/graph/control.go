package graph

import (
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
)

// Link connects a controller's output to a parameter of target.
func (o *Orchestrator) Link(controller, target entity.ID, param string) error {
	src, err := o.node(controller)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if !src.caps.Has(entity.CapController) {
		return errgo.WithCausef(nil, ErrNotController, "%s is %v", src.label(), entity.KindOf(src.e))
	}
	if _, err := o.ParamSpec(target, param); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	for _, l := range o.links {
		if l.Controller == controller && l.Target == target && l.Param == param {
			return nil
		}
	}
	o.links = append(o.links, Link{Controller: controller, Target: target, Param: param})
	return nil
}

// Unlink removes a control link. It reports whether the link existed.
func (o *Orchestrator) Unlink(controller, target entity.ID, param string) bool {
	for i, l := range o.links {
		if l.Controller == controller && l.Target == target && l.Param == param {
			o.links = append(o.links[:i], o.links[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyControllers asks every enabled controller for its value and writes
// it to the linked parameters, in link order.
func (o *Orchestrator) ApplyControllers(span entity.Span) {
	for _, n := range o.order {
		if !n.enabled || !n.caps.Has(entity.CapController) {
			continue
		}
		var v float64
		var ok bool
		err := o.guard(func() error {
			v, ok = n.e.(entity.Controller).Control(span)
			return nil
		})
		if err != nil {
			o.report(n, err)
			continue
		}
		if !ok {
			continue
		}
		for _, l := range o.links {
			if l.Controller != n.id {
				continue
			}
			spec, err := o.ParamSpec(l.Target, l.Param)
			if err != nil {
				continue
			}
			if err := o.SetParam(l.Target, l.Param, spec.Denormalize(v)); err != nil {
				logger.Warningf("link %s -> %d.%s: %v", n.label(), l.Target, l.Param, err)
			}
		}
	}
}

// Params returns the parameter declarations of id. Entities that are not
// controllable have none.
func (o *Orchestrator) Params(id entity.ID) ([]entity.ParamSpec, error) {
	n, err := o.node(id)
	if err != nil {
		return nil, err
	}
	c, ok := n.e.(entity.Controllable)
	if !ok {
		return nil, nil
	}
	return c.Params(), nil
}

// ParamSpec returns the declaration of one parameter of id.
func (o *Orchestrator) ParamSpec(id entity.ID, name string) (entity.ParamSpec, error) {
	n, err := o.node(id)
	if err != nil {
		return entity.ParamSpec{}, err
	}
	c, ok := n.e.(entity.Controllable)
	if !ok {
		return entity.ParamSpec{}, errgo.WithCausef(nil, entity.ErrUnknownParameter, "%s has no parameters", n.label())
	}
	spec, ok := entity.Spec(c, name)
	if !ok {
		return entity.ParamSpec{}, errgo.WithCausef(nil, entity.ErrUnknownParameter, "%s has no parameter %q", n.label(), name)
	}
	return spec, nil
}

// SetParam writes a parameter of id. Out-of-range values are clamped by
// the entity.
func (o *Orchestrator) SetParam(id entity.ID, name string, v float64) error {
	n, err := o.node(id)
	if err != nil {
		return err
	}
	c, ok := n.e.(entity.Controllable)
	if !ok {
		return errgo.WithCausef(nil, entity.ErrUnknownParameter, "%s has no parameters", n.label())
	}
	return errgo.Mask(c.SetParam(name, v), errgo.Any)
}

// Param reads a parameter of id.
func (o *Orchestrator) Param(id entity.ID, name string) (float64, error) {
	n, err := o.node(id)
	if err != nil {
		return 0, err
	}
	c, ok := n.e.(entity.Controllable)
	if !ok {
		return 0, errgo.WithCausef(nil, entity.ErrUnknownParameter, "%s has no parameters", n.label())
	}
	v, err := c.Param(name)
	return v, errgo.Mask(err, errgo.Any)
}

// Controllables returns the IDs of every entity with parameters, in
// insertion order.
func (o *Orchestrator) Controllables() []entity.ID {
	var ids []entity.ID
	for _, n := range o.order {
		if n.caps.Has(entity.CapControl) {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// RouteMIDI delivers notes on channel (or every channel, for Omni) to id.
func (o *Orchestrator) RouteMIDI(id entity.ID, channel int) error {
	n, err := o.node(id)
	if err != nil {
		return err
	}
	if !n.caps.Has(entity.CapNotes) {
		return errgo.WithCausef(nil, ErrNotNoteHandler, "%s is %v", n.label(), entity.KindOf(n.e))
	}
	if channel != Omni && (channel < 0 || channel > 15) {
		return errgo.Newf("MIDI channel %d out of range", channel)
	}
	n.channel = channel
	n.routed = true
	return nil
}

func (o *Orchestrator) listens(n *node, channel uint8) bool {
	return n.routed && n.enabled && (n.channel == Omni || n.channel == int(channel))
}

// NoteOn delivers a note-on to every entity routed to channel.
func (o *Orchestrator) NoteOn(channel, key, velocity uint8) {
	for _, n := range o.order {
		if o.listens(n, channel) {
			o.deliver(n, func() { n.e.(entity.NoteHandler).NoteOn(channel, key, velocity) })
		}
	}
}

// NoteOff delivers a note-off to every entity routed to channel.
func (o *Orchestrator) NoteOff(channel, key uint8) {
	for _, n := range o.order {
		if o.listens(n, channel) {
			o.deliver(n, func() { n.e.(entity.NoteHandler).NoteOff(channel, key) })
		}
	}
}

// ControlChange delivers a MIDI CC to every routed entity that accepts
// one.
func (o *Orchestrator) ControlChange(channel, controller, value uint8) {
	for _, n := range o.order {
		if !o.listens(n, channel) {
			continue
		}
		if cc, ok := n.e.(entity.ControlChanger); ok {
			o.deliver(n, func() { cc.ControlChange(channel, controller, value) })
		}
	}
}

// AllNotesOff silences every note handler, routed or not.
func (o *Orchestrator) AllNotesOff() {
	for _, n := range o.order {
		if n.caps.Has(entity.CapNotes) {
			o.deliver(n, n.e.(entity.NoteHandler).AllNotesOff)
		}
	}
}

// Reset clears the state of every entity that keeps some.
func (o *Orchestrator) Reset() {
	for _, n := range o.order {
		if r, ok := n.e.(entity.Resetter); ok {
			o.deliver(n, r.Reset)
		}
	}
}

func (o *Orchestrator) deliver(n *node, f func()) {
	if err := o.guard(func() error { f(); return nil }); err != nil {
		o.report(n, err)
	}
}
