package toys

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
	"github.com/cbegin/groove-go/internal/musictime"
)

const (
	DefaultPolyphony = 16

	// CCWaveform selects the wavetable for following notes.
	CCWaveform = 70
	// CCPan sets the pan of following notes, 64 is centre.
	CCPan = 10
)

const (
	synthAttack = iota
	synthDecay
	synthSustain
	synthRelease
	synthGain
	synthCutoff
)

// Waveform tables selectable with CCWaveform.
const (
	TableSine = iota
	TableSaw
	TableSquare
	TableTriangle
	numTables
)

const tableLen = 64

var tables = buildTables()

func buildTables() [numTables][]float64 {
	var t [numTables][]float64
	for i := range t {
		t[i] = make([]float64, tableLen)
	}
	for i := 0; i < tableLen; i++ {
		p := float64(i) / tableLen
		t[TableSine][i] = math.Sin(twoPi * p)
		t[TableSaw][i] = 2*p - 1
		if p < 0.5 {
			t[TableSquare][i] = 1
			t[TableTriangle][i] = 4*p - 1
		} else {
			t[TableSquare][i] = -1
			t[TableTriangle][i] = 3 - 4*p
		}
	}
	return t
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active      bool
	id          int
	channel     uint8
	key         uint8
	velocity    float64
	freq        float64
	phase       float64 // position in the table [0, tableLen)
	carPhase    float64 // FM operator phases, in radians
	modPhase    float64
	modOut      float64
	env         float64
	state       envState
	releaseStep float64
	left, right float64
	table       int
}

// Synth is a polyphonic wavetable synthesizer with an ADSR envelope per
// voice and a one-pole lowpass on the mix. When every voice is busy the
// quietest one is stolen.
type Synth struct {
	*entity.ParamSet
	voices   []voice
	nextID   int
	table    int
	pan      float64
	rate     float64
	cutoff   float64
	lpfAlpha float64
	lpfL     float64
	lpfR     float64
	fm       bool
}

// NewSynth returns a synth with the given number of voices. Polyphony
// outside 1..DefaultPolyphony is treated as DefaultPolyphony.
func NewSynth(polyphony int) *Synth {
	return newSynth(polyphony)
}

func newSynth(polyphony int, extra ...entity.ParamSpec) *Synth {
	if polyphony <= 0 || polyphony > DefaultPolyphony {
		polyphony = DefaultPolyphony
	}
	specs := append([]entity.ParamSpec{
		{Name: "attack", Min: 0.001, Max: 5, Default: 0.005},
		{Name: "decay", Min: 0.001, Max: 5, Default: 0.12},
		{Name: "sustain", Min: 0, Max: 1, Default: 0.75},
		{Name: "release", Min: 0.001, Max: 10, Default: 0.2},
		{Name: "gain", Min: 0, Max: 1, Default: 0.42},
		{Name: "cutoff", Min: 0, Max: 20000, Default: 12000},
	}, extra...)
	return &Synth{
		ParamSet: entity.NewParamSet(specs...),
		voices:   make([]voice, polyphony),
		pan:      64,
	}
}

// NoteOn implements entity.NoteHandler. A velocity of zero is a note off.
func (s *Synth) NoteOn(channel, key, velocity uint8) {
	if velocity == 0 {
		s.NoteOff(channel, key)
		return
	}
	slot := s.steal()
	// Equal-power panning.
	angle := (s.pan / 127.0) * (math.Pi / 2.0)
	s.voices[slot] = voice{
		active:   true,
		id:       s.nextID,
		channel:  channel,
		key:      key,
		velocity: float64(min(velocity, 127)) / 127.0,
		freq:     midiToFreq(key),
		state:    envAttack,
		left:     math.Cos(angle),
		right:    math.Sin(angle),
		table:    s.table,
	}
	s.nextID++
}

// NoteOff releases every voice playing key on channel.
func (s *Synth) NoteOff(channel, key uint8) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.channel == channel && v.key == key {
			s.release(v)
		}
	}
}

// AllNotesOff releases every voice.
func (s *Synth) AllNotesOff() {
	for i := range s.voices {
		if s.voices[i].active {
			s.release(&s.voices[i])
		}
	}
}

// ControlChange implements entity.ControlChanger.
func (s *Synth) ControlChange(_, controller, value uint8) {
	switch controller {
	case CCWaveform:
		s.table = int(value) % numTables
	case CCPan:
		s.pan = float64(min(value, 127))
	}
}

// Reset silences every voice immediately.
func (s *Synth) Reset() {
	clear(s.voices)
	s.lpfL, s.lpfR = 0, 0
}

// ActiveVoices returns the number of sounding voices.
func (s *Synth) ActiveVoices() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

// Produce implements entity.Producer.
func (s *Synth) Produce(span entity.Span, dst entity.Buffer) error {
	s.configure(float64(span.SampleRate.Hz()))
	gain := s.Value(synthGain)
	for i := 0; i+1 < len(dst); i += 2 {
		var l, r float64
		for j := range s.voices {
			v := &s.voices[j]
			if !v.active {
				continue
			}
			env := s.advanceEnv(v)
			if !v.active {
				continue
			}
			sig := s.sample(v) * env * gain * (0.2 + 0.8*v.velocity)
			l += sig * v.left
			r += sig * v.right
		}
		if s.lpfAlpha > 0 {
			s.lpfL += s.lpfAlpha * (l - s.lpfL)
			s.lpfR += s.lpfAlpha * (r - s.lpfR)
			l, r = s.lpfL, s.lpfR
		}
		dst[i] = float32(clamp(l, -1, 1))
		dst[i+1] = float32(clamp(r, -1, 1))
	}
	return nil
}

func (s *Synth) configure(rate float64) {
	cutoff := s.Value(synthCutoff)
	if rate == s.rate && cutoff == s.cutoff {
		return
	}
	s.rate, s.cutoff = rate, cutoff
	s.lpfAlpha = 0
	if cutoff > 0 && cutoff < rate/2 {
		rc := 1.0 / (twoPi * cutoff)
		dt := 1.0 / rate
		s.lpfAlpha = dt / (rc + dt)
	}
}

// sample reads the voice's table with linear interpolation and advances
// its phase.
func (s *Synth) sample(v *voice) float64 {
	if s.fm {
		return s.operators(v)
	}
	table := tables[v.table]
	idx := math.Floor(v.phase)
	frac := v.phase - idx
	i0 := int(idx) % tableLen
	i1 := (i0 + 1) % tableLen
	sig := table[i0]*(1-frac) + table[i1]*frac
	v.phase += v.freq * tableLen / s.rate
	for v.phase >= tableLen {
		v.phase -= tableLen
	}
	return sig
}

func (s *Synth) release(v *voice) {
	if v.state == envRelease || v.state == envOff {
		return
	}
	v.state = envRelease
	v.releaseStep = v.env / (s.Value(synthRelease) * s.rateOrDefault())
}

func (s *Synth) rateOrDefault() float64 {
	if s.rate == 0 {
		return float64(musictime.DefaultSampleRate)
	}
	return s.rate
}

func (s *Synth) steal() int {
	for i := range s.voices {
		if !s.voices[i].active {
			return i
		}
	}
	quiet := 0
	for i := 1; i < len(s.voices); i++ {
		if s.voices[i].env < s.voices[quiet].env {
			quiet = i
		}
	}
	return quiet
}

func (s *Synth) advanceEnv(v *voice) float64 {
	sustain := s.Value(synthSustain)
	switch v.state {
	case envAttack:
		v.env += 1.0 / (s.Value(synthAttack) * s.rate)
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		v.env -= (1 - sustain) / (s.Value(synthDecay) * s.rate)
		if v.env <= sustain {
			v.env = sustain
			v.state = envSustain
		}
	case envSustain:
		v.env = sustain
		if sustain == 0 {
			v.active = false
		}
	case envRelease:
		v.env -= v.releaseStep
		if v.env <= 0.0001 || v.releaseStep <= 0 {
			v.env = 0
			v.state = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func midiToFreq(key uint8) float64 {
	return 440 * math.Pow(2, (float64(key)-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
