package graph

import (
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/entity"
)

// constant produces the same sample on both channels.
type constant struct {
	v     float32
	calls int
}

func (c *constant) Produce(_ entity.Span, dst entity.Buffer) error {
	c.calls++
	for i := range dst {
		dst[i] = c.v
	}
	return nil
}

// scale multiplies its input.
type scale struct {
	g     float32
	calls int
}

func (s *scale) Transform(_ entity.Span, in, dst entity.Buffer) error {
	s.calls++
	for i := range dst {
		dst[i] = in[i] * s.g
	}
	return nil
}

// boost adds its own constant to the input, then doubles.
type boost struct{ constant }

func (b *boost) Transform(_ entity.Span, in, dst entity.Buffer) error {
	for i := range dst {
		dst[i] = in[i] * 2
	}
	return nil
}

type panicker struct{}

func (panicker) Produce(entity.Span, entity.Buffer) error { panic("boom") }

type failing struct{}

func (failing) Produce(entity.Span, entity.Buffer) error { return errgo.New("no samples") }

type knob struct{ v float64 }

func (k knob) Control(entity.Span) (float64, bool) { return k.v, true }

type notes struct {
	on  []uint8
	off int
}

func (n *notes) Produce(entity.Span, entity.Buffer) error { return nil }
func (n *notes) NoteOn(_, key, _ uint8) { n.on = append(n.on, key) }
func (n *notes) NoteOff(uint8, uint8) {}
func (n *notes) AllNotesOff() { n.off++ }

var span = entity.Span{Frames: 4, SampleRate: 44100, Tempo: 120}

func render(c *qt.C, o *Orchestrator) entity.Buffer {
	c.Assert(o.Commit(), qt.IsNil)
	out, err := o.Render(span)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Frames(), qt.Equals, span.Frames)
	return out
}

func TestDiamondEvaluatesEachNodeOnce(t *testing.T) {
	c := qt.New(t)
	o := New()
	src := &constant{v: 0.25}
	a, b := &scale{g: 1}, &scale{g: 2}
	s := o.Add(src)
	ia, ib := o.Add(a), o.Add(b)
	c.Assert(o.Connect(s, ia), qt.IsNil)
	c.Assert(o.Connect(s, ib), qt.IsNil)
	c.Assert(o.ConnectChain(ia), qt.IsNil)
	c.Assert(o.ConnectChain(ib), qt.IsNil)

	out := render(c, o)
	c.Assert(out[0], qt.Equals, float32(0.75))
	c.Assert(src.calls, qt.Equals, 1)
	c.Assert(a.calls, qt.Equals, 1)
	c.Assert(b.calls, qt.Equals, 1)
	c.Assert(o.Stats(), qt.Equals, Stats{Evaluated: 4})

	out, err := o.Render(span)
	c.Assert(err, qt.IsNil)
	c.Assert(out[7], qt.Equals, float32(0.75))
	c.Assert(src.calls, qt.Equals, 2)
}

func TestDeepChainDoesNotRecurse(t *testing.T) {
	c := qt.New(t)
	o := New()
	ids := []entity.ID{o.Add(&constant{v: 0.5})}
	for i := 0; i < 5000; i++ {
		ids = append(ids, o.Add(&scale{g: 1}))
	}
	c.Assert(o.ConnectChain(ids...), qt.IsNil)
	out := render(c, o)
	c.Assert(out[0], qt.Equals, float32(0.5))
	c.Assert(o.Stats().Evaluated, qt.Equals, 5002)
}

func TestConnectRejectsBadCables(t *testing.T) {
	c := qt.New(t)
	o := New()
	s1, err := o.AddNamed("a", &scale{g: 1})
	c.Assert(err, qt.IsNil)
	s2, err := o.AddNamed("b", &scale{g: 1})
	c.Assert(err, qt.IsNil)
	src := o.Add(&constant{})
	ctl := o.Add(knob{})

	c.Assert(o.Connect(s1, s2), qt.IsNil)
	err = o.Connect(s2, s1)
	c.Assert(errgo.Cause(err), qt.Equals, ErrCycle)
	c.Assert(err, qt.ErrorMatches, `cable b -> a would close a -> b -> a`)

	c.Assert(errgo.Cause(o.Connect(s1, s1)), qt.Equals, ErrSelfCable)
	c.Assert(errgo.Cause(o.Connect(src, 99)), qt.Equals, ErrDanglingCable)
	c.Assert(errgo.Cause(o.Connect(99, s1)), qt.Equals, ErrDanglingCable)
	c.Assert(errgo.Cause(o.Connect(s1, src)), qt.Equals, ErrNotTransformer)
	c.Assert(errgo.Cause(o.Connect(ctl, s1)), qt.Equals, ErrNoOutput)
	c.Assert(errgo.Cause(o.Connect(s1, s2)), qt.Equals, ErrDuplicateCable)

	_, err = o.AddNamed("a", &scale{})
	c.Assert(errgo.Cause(err), qt.Equals, ErrDuplicateName)
}

func TestCommitRejectsUnreachableAudio(t *testing.T) {
	c := qt.New(t)
	o := New()
	id, _ := o.AddNamed("lonely", &constant{v: 1})
	o.Add(knob{})
	err := o.Commit()
	c.Assert(errgo.Cause(err), qt.Equals, ErrUnreachable)
	c.Assert(err, qt.ErrorMatches, `lonely is not connected to main-mixer`)

	_, err = o.Render(span)
	c.Assert(errgo.Cause(err), qt.Equals, ErrNotCommitted)

	c.Assert(o.ConnectChain(id), qt.IsNil)
	render(c, o)
}

func TestDisabledEntityIsSilentAndSkipsInputs(t *testing.T) {
	c := qt.New(t)
	o := New()
	src := &constant{v: 1}
	fx := &scale{g: 1}
	s, f := o.Add(src), o.Add(fx)
	c.Assert(o.ConnectChain(s, f), qt.IsNil)
	c.Assert(o.SetEnabled(f, false), qt.IsNil)

	out := render(c, o)
	c.Assert(out.IsSilent(), qt.IsTrue)
	c.Assert(src.calls, qt.Equals, 0)
	c.Assert(fx.calls, qt.Equals, 0)
	c.Assert(o.Stats().Evaluated, qt.Equals, 1)

	c.Assert(o.SetEnabled(f, true), qt.IsNil)
	out, _ = o.Render(span)
	c.Assert(out[0], qt.Equals, float32(1))
}

func TestFaultingEntityIsSilencedForTheTick(t *testing.T) {
	c := qt.New(t)
	type fault struct {
		id   entity.ID
		name string
	}
	var faults []fault
	o := New(WithFaultHandler(func(id entity.ID, name string, err error) {
		faults = append(faults, fault{id, name})
	}))
	good := o.Add(&constant{v: 0.5})
	bad, _ := o.AddNamed("bad", panicker{})
	worse := o.Add(failing{})
	c.Assert(o.ConnectChain(good), qt.IsNil)
	c.Assert(o.ConnectChain(bad), qt.IsNil)
	c.Assert(o.ConnectChain(worse), qt.IsNil)

	out := render(c, o)
	c.Assert(out[0], qt.Equals, float32(0.5))
	c.Assert(o.Stats().Faults, qt.Equals, 2)
	c.Assert(faults, qt.HasLen, 2)
	c.Assert(faults[0].id, qt.Equals, bad)
	c.Assert(faults[0].name, qt.Equals, "bad")
	c.Assert(faults[1].id, qt.Equals, worse)
	c.Assert(o.LastOutput(good), qt.Equals, float32(0.5))
	c.Assert(o.LastOutput(bad), qt.Equals, float32(0))
}

func TestSourceAndTransformMixesOwnOutputIntoInput(t *testing.T) {
	c := qt.New(t)
	o := New()
	in := o.Add(&constant{v: 0.5})
	b := &boost{constant: constant{v: 0.25}}
	id := o.Add(b)
	c.Assert(entity.KindOf(b), qt.Equals, entity.SourceAndTransform)
	c.Assert(o.ConnectChain(in, id), qt.IsNil)
	out := render(c, o)
	c.Assert(out[0], qt.Equals, float32(1.5))
}

func TestControllersWriteLinkedParams(t *testing.T) {
	c := qt.New(t)
	o := New()
	src := o.Add(&constant{v: 0.5})
	c.Assert(o.ConnectChain(src), qt.IsNil)
	ctl := o.Add(knob{v: 0.25})
	c.Assert(o.Link(ctl, o.MainMixer(), "gain"), qt.IsNil)

	err := o.Link(src, o.MainMixer(), "gain")
	c.Assert(errgo.Cause(err), qt.Equals, ErrNotController)
	err = o.Link(ctl, o.MainMixer(), "pan")
	c.Assert(errgo.Cause(err), qt.Equals, entity.ErrUnknownParameter)

	c.Assert(o.Commit(), qt.IsNil)
	o.ApplyControllers(span)
	v, err := o.Param(o.MainMixer(), "gain")
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, 0.5)

	out, err := o.Render(span)
	c.Assert(err, qt.IsNil)
	c.Assert(out[0], qt.Equals, float32(0.25))

	c.Assert(o.Unlink(ctl, o.MainMixer(), "gain"), qt.IsTrue)
	c.Assert(o.Links(), qt.HasLen, 0)
}

func TestMIDIRouting(t *testing.T) {
	c := qt.New(t)
	o := New()
	one, two, deaf := &notes{}, &notes{}, &notes{}
	i1, i2, i3 := o.Add(one), o.Add(two), o.Add(deaf)
	c.Assert(o.RouteMIDI(i1, 1), qt.IsNil)
	c.Assert(o.RouteMIDI(i2, Omni), qt.IsNil)
	c.Assert(errgo.Cause(o.RouteMIDI(o.MainMixer(), 0)), qt.Equals, ErrNotNoteHandler)
	c.Assert(o.RouteMIDI(i3, 16), qt.ErrorMatches, `MIDI channel 16 out of range`)

	o.NoteOn(1, 60, 100)
	o.NoteOn(2, 62, 100)
	c.Assert(one.on, qt.DeepEquals, []uint8{60})
	c.Assert(two.on, qt.DeepEquals, []uint8{60, 62})
	c.Assert(deaf.on, qt.HasLen, 0)

	o.AllNotesOff()
	c.Assert(deaf.off, qt.Equals, 1)
	c.Assert(one.off, qt.Equals, 1)
}

func TestRemoveDropsCablesAndLinks(t *testing.T) {
	c := qt.New(t)
	o := New()
	src, _ := o.AddNamed("src", &constant{v: 1})
	fx := o.Add(&scale{g: 1})
	ctl := o.Add(knob{v: 1})
	c.Assert(o.ConnectChain(src, fx), qt.IsNil)
	c.Assert(o.Link(ctl, fx, "missing"), qt.Not(qt.IsNil))
	c.Assert(o.Link(ctl, o.MainMixer(), "gain"), qt.IsNil)
	render(c, o)

	c.Assert(o.Remove(fx), qt.IsNil)
	c.Assert(o.Cables(), qt.HasLen, 0)
	c.Assert(o.Committed(), qt.IsFalse)
	c.Assert(errgo.Cause(o.Commit()), qt.Equals, ErrUnreachable)
	c.Assert(o.Remove(src), qt.IsNil)
	_, ok := o.Lookup("src")
	c.Assert(ok, qt.IsFalse)

	c.Assert(o.Remove(ctl), qt.IsNil)
	c.Assert(o.Links(), qt.HasLen, 0)
	c.Assert(errgo.Cause(o.Remove(o.MainMixer())), qt.Equals, ErrRootRemoval)
	c.Assert(errgo.Cause(o.Remove(ctl)), qt.Equals, ErrUnknownEntity)
	render(c, o)
}

func TestTrackPeaksAndControllables(t *testing.T) {
	c := qt.New(t)
	o := New()
	loud, _ := o.AddNamed("loud", &constant{v: -0.75})
	quiet, _ := o.AddNamed("quiet", &constant{v: 0.125})
	c.Assert(o.ConnectChain(loud), qt.IsNil)
	c.Assert(o.ConnectChain(quiet), qt.IsNil)
	render(c, o)
	c.Assert(o.TrackPeaks(), qt.DeepEquals, []Meter{
		{ID: loud, Name: "loud", Peak: 0.75},
		{ID: quiet, Name: "quiet", Peak: 0.125},
	})
	c.Assert(o.Controllables(), qt.DeepEquals, []entity.ID{o.MainMixer()})
	specs, err := o.Params(o.MainMixer())
	c.Assert(err, qt.IsNil)
	c.Assert(specs, qt.HasLen, 1)
	c.Assert(specs[0].Name, qt.Equals, "gain")
}
