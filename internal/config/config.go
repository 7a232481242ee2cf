// Package config reads render settings from YAML.
package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	errgo "gopkg.in/errgo.v1"
	"gopkg.in/yaml.v3"

	groove "github.com/cbegin/groove-go"
	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/transport"
)

// ErrInvalid is the cause of every validation error.
var ErrInvalid = errgo.New("invalid configuration")

// Seek policy names.
const (
	SeekNoteOff   = "note-off"
	SeekKeepNotes = "keep-notes"
)

// Config holds the settings of one render.
type Config struct {
	SampleRate    int     `yaml:"sample_rate"`
	Tempo         float64 `yaml:"tempo"`
	TimeSignature string  `yaml:"time_signature"`
	TickFrames    int     `yaml:"tick_frames"`
	ControlFrames int     `yaml:"control_frames"`
	QueueSize     int     `yaml:"queue_size"`
	SeekPolicy    string  `yaml:"seek_policy"`
	LoopTrips     bool    `yaml:"loop_trips"`
	// Log is a loggo specification such as "<root>=INFO;groove.graph=DEBUG".
	Log string `yaml:"log,omitempty"`
	// Bars is the length of the demo song.
	Bars   int    `yaml:"bars"`
	Output string `yaml:"output,omitempty"`
}

// Default returns the settings used for anything a file leaves out.
func Default() Config {
	return Config{
		SampleRate:    int(musictime.DefaultSampleRate),
		Tempo:         float64(musictime.DefaultTempo),
		TimeSignature: musictime.DefaultTimeSignature.String(),
		TickFrames:    transport.DefaultTickFrames,
		ControlFrames: transport.DefaultControlFrames,
		QueueSize:     transport.DefaultQueueSize,
		SeekPolicy:    SeekNoteOff,
		Log:           "<root>=WARNING",
		Bars:          8,
		Output:        "groove.wav",
	}
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are errors.
func Parse(data []byte) (Config, error) {
	return Load(bytes.NewReader(data))
}

// Load is like Parse but reads from r.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errgo.WithCausef(err, ErrInvalid, "cannot parse configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errgo.Mask(err, errgo.Is(ErrInvalid))
	}
	return cfg, nil
}

// ReadFile loads the configuration at path.
func ReadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errgo.Notef(err, "cannot open configuration")
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return Config{}, errgo.NoteMask(err, path, errgo.Is(ErrInvalid))
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errgo.WithCausef(nil, ErrInvalid, "sample_rate must be positive, got %d", c.SampleRate)
	}
	if uint64(c.SampleRate) > math.MaxUint32 {
		return errgo.WithCausef(nil, ErrInvalid, "sample_rate %d is too large", c.SampleRate)
	}
	if _, err := musictime.NewTempo(c.Tempo); err != nil {
		return errgo.WithCausef(nil, ErrInvalid, "tempo: %v", err)
	}
	if _, err := c.Signature(); err != nil {
		return errgo.Mask(err, errgo.Is(ErrInvalid))
	}
	if c.TickFrames <= 0 {
		return errgo.WithCausef(nil, ErrInvalid, "tick_frames must be positive, got %d", c.TickFrames)
	}
	if c.ControlFrames <= 0 {
		return errgo.WithCausef(nil, ErrInvalid, "control_frames must be positive, got %d", c.ControlFrames)
	}
	if c.QueueSize <= 0 {
		return errgo.WithCausef(nil, ErrInvalid, "queue_size must be positive, got %d", c.QueueSize)
	}
	if _, err := c.Policy(); err != nil {
		return errgo.Mask(err, errgo.Is(ErrInvalid))
	}
	if c.Bars <= 0 {
		return errgo.WithCausef(nil, ErrInvalid, "bars must be positive, got %d", c.Bars)
	}
	return nil
}

// Signature parses the time_signature field, written like "3/4".
func (c Config) Signature() (musictime.TimeSignature, error) {
	top, bottom, ok := strings.Cut(c.TimeSignature, "/")
	t, err1 := strconv.Atoi(strings.TrimSpace(top))
	b, err2 := strconv.Atoi(strings.TrimSpace(bottom))
	if !ok || err1 != nil || err2 != nil {
		return musictime.TimeSignature{}, errgo.WithCausef(nil, ErrInvalid, "time_signature %q is not of the form N/M", c.TimeSignature)
	}
	ts, err := musictime.NewTimeSignature(t, b)
	if err != nil {
		return musictime.TimeSignature{}, errgo.WithCausef(nil, ErrInvalid, "time_signature: %v", err)
	}
	return ts, nil
}

// Policy parses the seek_policy field.
func (c Config) Policy() (transport.SeekPolicy, error) {
	switch c.SeekPolicy {
	case SeekNoteOff, "":
		return transport.NoteOffOnSeek, nil
	case SeekKeepNotes:
		return transport.KeepNotesOnSeek, nil
	}
	return 0, errgo.WithCausef(nil, ErrInvalid, "unknown seek_policy %q", c.SeekPolicy)
}

// Length returns the demo song length in musical time.
func (c Config) Length() musictime.MusicalTime {
	ts, err := c.Signature()
	if err != nil {
		ts = musictime.DefaultTimeSignature
	}
	return musictime.FromBars(ts, uint64(max(c.Bars, 0)))
}

// EngineOptions converts a validated configuration into engine options.
func (c Config) EngineOptions() []groove.Option {
	ts, _ := c.Signature()
	policy, _ := c.Policy()
	return []groove.Option{
		groove.WithSampleRate(musictime.SampleRate(c.SampleRate)),
		groove.WithTempo(musictime.Tempo(c.Tempo)),
		groove.WithTimeSignature(ts),
		groove.WithTickFrames(c.TickFrames),
		groove.WithControlFrames(c.ControlFrames),
		groove.WithQueueSize(c.QueueSize),
		groove.WithSeekPolicy(policy),
		groove.WithLoopTrips(c.LoopTrips),
	}
}
