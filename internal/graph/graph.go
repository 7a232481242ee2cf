// Package graph evaluates a directed acyclic graph of entities once per
// tick.
//
// Audio flows along cables from producers towards a single root, the main
// mixer. Each tick the Orchestrator walks the graph with an explicit
// work-list of Visit and Collect steps, so deep graphs never grow the Go
// stack and every node is evaluated at most once.
package graph

import (
	"fmt"

	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
)

var logger = loggo.GetLogger("groove.graph")

var (
	ErrUnknownEntity  = errgo.New("unknown entity")
	ErrDuplicateName  = errgo.New("duplicate entity name")
	ErrDanglingCable  = errgo.New("dangling cable")
	ErrSelfCable      = errgo.New("cable connects entity to itself")
	ErrDuplicateCable = errgo.New("duplicate cable")
	ErrNoSuchCable    = errgo.New("no such cable")
	ErrCycle          = errgo.New("cable would create a cycle")
	ErrNotTransformer = errgo.New("destination does not accept audio input")
	ErrNoOutput       = errgo.New("source does not produce audio")
	ErrUnreachable    = errgo.New("entity does not reach the main mixer")
	ErrNotController  = errgo.New("entity is not a controller")
	ErrNotNoteHandler = errgo.New("entity does not handle notes")
	ErrRootRemoval    = errgo.New("cannot remove the main mixer")
	ErrNotCommitted   = errgo.New("graph has uncommitted changes")
)

// MainMixerName is the name under which the root is registered.
const MainMixerName = "main-mixer"

// Omni routes every MIDI channel to an entity.
const Omni = -1

// FaultHandler is told about entities that fail or panic during a tick.
// The entity is silent for that tick.
type FaultHandler func(id entity.ID, name string, err error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFaultHandler registers h to receive per-node faults.
func WithFaultHandler(h FaultHandler) Option {
	return func(o *Orchestrator) {
		o.fault = h
	}
}

// Cable carries audio from From's output to To's input.
type Cable struct {
	From entity.ID
	To   entity.ID
}

// Link writes a controller's value to one parameter of another entity.
type Link struct {
	Controller entity.ID
	Target     entity.ID
	Param      string
}

type node struct {
	id      entity.ID
	name    string
	e       entity.Entity
	caps    entity.Cap
	enabled bool
	channel int
	routed  bool

	// Rebuilt by Commit.
	inputs []*node
	fanout int

	// Per tick.
	epoch uint64
	out   entity.Buffer
	refs  int
	peak  float32
}

func (n *node) label() string {
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("#%d", n.id)
}

// Orchestrator owns entities and the cables between them. It is not safe
// for concurrent use; the transport drives it from a single goroutine.
type Orchestrator struct {
	nodes  map[entity.ID]*node
	order  []*node
	names  map[string]entity.ID
	cables []Cable
	links  []Link
	nextID entity.ID
	root   *node
	dirty  bool
	fault  FaultHandler

	epoch uint64
	stack []work
	pool  pool
	stats Stats
}

// New returns an orchestrator holding only the main mixer.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		nodes: make(map[entity.ID]*node),
		names: make(map[string]entity.ID),
		dirty: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	id, _ := o.AddNamed(MainMixerName, NewMixer())
	o.root = o.nodes[id]
	return o
}

// MainMixer returns the ID of the root.
func (o *Orchestrator) MainMixer() entity.ID { return o.root.id }

// Add registers e without a name and returns its new ID.
func (o *Orchestrator) Add(e entity.Entity) entity.ID {
	o.nextID++
	n := &node{
		id:      o.nextID,
		e:       e,
		caps:    entity.Caps(e),
		enabled: true,
		channel: Omni,
	}
	o.nodes[n.id] = n
	o.order = append(o.order, n)
	o.dirty = true
	return n.id
}

// AddNamed registers e under a unique user-visible name.
func (o *Orchestrator) AddNamed(name string, e entity.Entity) (entity.ID, error) {
	if name == "" {
		return o.Add(e), nil
	}
	if _, ok := o.names[name]; ok {
		return entity.None, errgo.WithCausef(nil, ErrDuplicateName, "entity %q already exists", name)
	}
	id := o.Add(e)
	o.nodes[id].name = name
	o.names[name] = id
	return id, nil
}

// Remove deletes an entity along with its cables, links and MIDI route.
func (o *Orchestrator) Remove(id entity.ID) error {
	n, err := o.node(id)
	if err != nil {
		return err
	}
	if n == o.root {
		return errgo.WithCausef(nil, ErrRootRemoval, "")
	}
	cables := o.cables[:0]
	for _, c := range o.cables {
		if c.From != id && c.To != id {
			cables = append(cables, c)
		}
	}
	o.cables = cables
	links := o.links[:0]
	for _, l := range o.links {
		if l.Controller != id && l.Target != id {
			links = append(links, l)
		}
	}
	o.links = links
	for i, m := range o.order {
		if m == n {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	delete(o.nodes, id)
	if n.name != "" {
		delete(o.names, n.name)
	}
	o.dirty = true
	return nil
}

// Get returns the entity with the given ID.
func (o *Orchestrator) Get(id entity.ID) (entity.Entity, bool) {
	n, ok := o.nodes[id]
	if !ok {
		return nil, false
	}
	return n.e, true
}

// Lookup returns the ID registered under name.
func (o *Orchestrator) Lookup(name string) (entity.ID, bool) {
	id, ok := o.names[name]
	return id, ok
}

// Name returns the name of id, or "" for unnamed entities.
func (o *Orchestrator) Name(id entity.ID) string {
	if n, ok := o.nodes[id]; ok {
		return n.name
	}
	return ""
}

// IDs returns every entity ID in insertion order.
func (o *Orchestrator) IDs() []entity.ID {
	ids := make([]entity.ID, len(o.order))
	for i, n := range o.order {
		ids[i] = n.id
	}
	return ids
}

// Cables returns a copy of the cable list.
func (o *Orchestrator) Cables() []Cable {
	return append([]Cable(nil), o.cables...)
}

// Links returns a copy of the control link list.
func (o *Orchestrator) Links() []Link {
	return append([]Link(nil), o.links...)
}

func (o *Orchestrator) node(id entity.ID) (*node, error) {
	n, ok := o.nodes[id]
	if !ok {
		return nil, errgo.WithCausef(nil, ErrUnknownEntity, "no entity with id %d", id)
	}
	return n, nil
}

// Connect adds a cable from one entity's output to another's input. The
// cable is checked immediately; reachability is checked by Commit.
func (o *Orchestrator) Connect(from, to entity.ID) error {
	if from == to {
		return errgo.WithCausef(nil, ErrSelfCable, "cable %d -> %d", from, to)
	}
	src, ok := o.nodes[from]
	if !ok {
		return errgo.WithCausef(nil, ErrDanglingCable, "cable source %d does not exist", from)
	}
	dst, ok := o.nodes[to]
	if !ok {
		return errgo.WithCausef(nil, ErrDanglingCable, "cable destination %d does not exist", to)
	}
	if !entity.ProducesAudio(src.e) {
		return errgo.WithCausef(nil, ErrNoOutput, "%s (%v) has no audio output", src.label(), entity.KindOf(src.e))
	}
	if !dst.caps.Has(entity.CapTransform) {
		return errgo.WithCausef(nil, ErrNotTransformer, "%s (%v) cannot take input", dst.label(), entity.KindOf(dst.e))
	}
	for _, c := range o.cables {
		if c.From == from && c.To == to {
			return errgo.WithCausef(nil, ErrDuplicateCable, "cable %s -> %s", src.label(), dst.label())
		}
	}
	if path := o.pathBetween(to, from); path != nil {
		return errgo.WithCausef(nil, ErrCycle, "cable %s -> %s would close %s", src.label(), dst.label(), o.describe(append(path, to)))
	}
	o.cables = append(o.cables, Cable{From: from, To: to})
	o.dirty = true
	return nil
}

// Disconnect removes a cable.
func (o *Orchestrator) Disconnect(from, to entity.ID) error {
	for i, c := range o.cables {
		if c.From == from && c.To == to {
			o.cables = append(o.cables[:i], o.cables[i+1:]...)
			o.dirty = true
			return nil
		}
	}
	return errgo.WithCausef(nil, ErrNoSuchCable, "cable %d -> %d", from, to)
}

// ConnectChain cables ids in sequence and patches the last one into the
// main mixer.
func (o *Orchestrator) ConnectChain(ids ...entity.ID) error {
	if len(ids) == 0 {
		return nil
	}
	for i := 0; i+1 < len(ids); i++ {
		if err := o.Connect(ids[i], ids[i+1]); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	return errgo.Mask(o.Connect(ids[len(ids)-1], o.root.id), errgo.Any)
}

// SetEnabled switches an entity on or off. A disabled entity contributes
// silence and its inputs are not evaluated on its behalf.
func (o *Orchestrator) SetEnabled(id entity.ID, enabled bool) error {
	n, err := o.node(id)
	if err != nil {
		return err
	}
	n.enabled = enabled
	return nil
}

// Enabled reports whether id is enabled.
func (o *Orchestrator) Enabled(id entity.ID) bool {
	n, ok := o.nodes[id]
	return ok && n.enabled
}

// pathBetween returns the downstream path from a to b, or nil.
func (o *Orchestrator) pathBetween(a, b entity.ID) []entity.ID {
	prev := map[entity.ID]entity.ID{a: a}
	queue := []entity.ID{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == b {
			var path []entity.ID
			for id := b; id != a; id = prev[id] {
				path = append(path, id)
			}
			path = append(path, a)
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, c := range o.cables {
			if c.From != cur {
				continue
			}
			if _, seen := prev[c.To]; !seen {
				prev[c.To] = cur
				queue = append(queue, c.To)
			}
		}
	}
	return nil
}

func (o *Orchestrator) describe(path []entity.ID) string {
	s := ""
	for i, id := range path {
		if i > 0 {
			s += " -> "
		}
		if n, ok := o.nodes[id]; ok {
			s += n.label()
		} else {
			s += fmt.Sprintf("#%d", id)
		}
	}
	return s
}
