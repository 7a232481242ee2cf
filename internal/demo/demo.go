// Package demo assembles a small song that exercises every kind of entity:
// wavetable and FM synths played by a sequencer, a sine drone, insert
// effects, a submix, an LFO controller and automation trips.
package demo

import (
	errgo "gopkg.in/errgo.v1"

	groove "github.com/cbegin/groove-go"
	"github.com/cbegin/groove-go/internal/automation"
	"github.com/cbegin/groove-go/internal/effects"
	"github.com/cbegin/groove-go/internal/graph"
	"github.com/cbegin/groove-go/internal/lfo"
	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/sequencer"
	"github.com/cbegin/groove-go/internal/toys"
)

// MIDI channels of the two synths.
const (
	LeadChannel = 1
	BassChannel = 2
)

const (
	lead = "a4 c5 e5 a5 g4 b4 d5 g5 f4 a4 c5 f5 e4 g#4 b4 e5 " +
		"a4 e5 c5 a4 g4 d5 b4 g4 f4 c5 a4 f4 e4 b4 g#4 _"
	bass = "a2 _ a2 . g2 _ g2 . f2 _ f2 . e2 _ e2 e3"
)

// Song is the demo project.
type Song struct {
	Definition groove.Definition
	Pattern    sequencer.Pattern
	Sequencer  *sequencer.Sequencer
}

// New builds a fresh copy of the demo. Entities hold render state, so every
// engine needs its own Song.
func New() (*Song, error) {
	leadPattern, err := sequencer.Steps(LeadChannel, 96, musictime.FromParts(8), lead)
	if err != nil {
		return nil, errgo.NoteMask(err, "lead", errgo.Any)
	}
	bassPattern, err := sequencer.Steps(BassChannel, 110, musictime.FromBeats(1, 0), bass)
	if err != nil {
		return nil, errgo.NoteMask(err, "bass", errgo.Any)
	}
	pattern := sequencer.Merge(leadPattern, bassPattern)
	seq, err := sequencer.New(pattern, sequencer.Options{Loop: true})
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}

	leadSynth := toys.NewSynth(8)
	leadSynth.ControlChange(LeadChannel-1, toys.CCWaveform, 40)
	leadSynth.ControlChange(LeadChannel-1, toys.CCPan, 80)
	bassSynth := toys.NewFMSynth(4)
	bassSynth.SetParam("ratio", 1)
	bassSynth.SetParam("index", 2.5)
	bassSynth.SetParam("cutoff", 900)
	bassSynth.SetParam("release", 0.08)

	drone := toys.NewSine(110)
	drone.SetParam("amplitude", 0.15)

	wobble := lfo.New(0.25, lfo.WaveTriangle)
	wobble.SetParam("depth", 0.4)

	def := groove.Definition{
		Entities: []groove.EntityDef{
			{Name: "lead", Entity: leadSynth, MIDIChannel: LeadChannel},
			{Name: "bass", Entity: bassSynth, MIDIChannel: BassChannel},
			{Name: "drone", Entity: drone},
			{Name: "lead-delay", Entity: effects.NewDelay(375, 0.35, 0.5, 0.25)},
			{Name: "lead-chorus", Entity: effects.NewChorus(12, 0.15, 3, 0.6, 0.4)},
			{Name: "bass-drive", Entity: effects.NewChain(
				effects.NewDistortion(3, 0.6, 2500),
				effects.NewEQ3Band(1.4, 0.8, 0.6, 200, 2500),
			)},
			{Name: "drone-gain", Entity: toys.NewGain(0)},
			{Name: "bus", Entity: graph.NewMixer()},
			{Name: "room", Entity: effects.NewReverb(0.6, 0.7, 0.1)},
			{Name: "glue", Entity: effects.NewCompressor(-14, 3, 10, 120, 3)},
			{Name: "wobble", Entity: wobble},
		},
		Cables: []groove.CableDef{
			{From: "lead", To: "lead-chorus"},
			{From: "lead-chorus", To: "lead-delay"},
			{From: "lead-delay", To: "bus"},
			{From: "bass", To: "bass-drive"},
			{From: "bass-drive", To: "bus"},
			{From: "drone", To: "drone-gain"},
			{From: "drone-gain", To: "bus"},
			{From: "bus", To: "room"},
			{From: "room", To: "glue"},
			{From: "glue", To: groove.MainMixer},
		},
		Links: []groove.LinkDef{
			{Controller: "wobble", Target: "lead", Param: "cutoff"},
		},
		Paths: []automation.Path{{
			Name:      "swell",
			NoteValue: musictime.Whole,
			Steps:     []automation.Step{automation.SlopeStep(0, 1), automation.FlatStep(1)},
		}, {
			Name:      "open-up",
			NoteValue: musictime.Whole,
			Steps: []automation.Step{
				automation.FlatStep(0.1),
				automation.SlopeStep(0.1, 0.45),
				automation.ExpStep(0.45, 0.2),
			},
		}},
		Trips: []groove.TripDef{
			{Name: "drone-in", Entity: "drone-gain", Param: "ceiling", Paths: []string{"swell"}},
			{Name: "room-wet", Entity: "room", Param: "wet", Paths: []string{"open-up"}, Loop: true},
		},
	}
	return &Song{Definition: def, Pattern: pattern, Sequencer: seq}, nil
}

// Engine returns an engine playing the song with its sequencer attached.
func (s *Song) Engine(opts ...groove.Option) (*groove.Engine, error) {
	opts = append([]groove.Option{groove.WithScheduler(s.Sequencer)}, opts...)
	e, err := groove.New(s.Definition, opts...)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return e, nil
}
