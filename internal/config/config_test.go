package config

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/transport"
)

func TestParseOverridesDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse([]byte(`
sample_rate: 48000
tempo: 96.5
time_signature: 6/8
seek_policy: keep-notes
loop_trips: true
bars: 2
`))
	c.Assert(err, qt.IsNil)
	want := Default()
	want.SampleRate = 48000
	want.Tempo = 96.5
	want.TimeSignature = "6/8"
	want.SeekPolicy = SeekKeepNotes
	want.LoopTrips = true
	want.Bars = 2
	c.Assert(cfg, qt.DeepEquals, want)

	ts, err := cfg.Signature()
	c.Assert(err, qt.IsNil)
	c.Assert(ts, qt.Equals, musictime.TimeSignature{Top: 6, Bottom: musictime.Eighth})
	p, err := cfg.Policy()
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, transport.KeepNotesOnSeek)
	c.Assert(cfg.Length(), qt.Equals, musictime.FromBeats(12, 0))
	c.Assert(cfg.EngineOptions(), qt.HasLen, 8)
}

func TestEmptyInputIsDefault(t *testing.T) {
	c := qt.New(t)
	cfg, err := Parse(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, Default())
	c.Assert(cfg.Length(), qt.Equals, musictime.FromBeats(32, 0))
}

var invalidTests = []struct {
	about  string
	yaml   string
	expect string
}{{
	about:  "unknown key",
	yaml:   "tempi: 120",
	expect: "(?s)cannot parse configuration: .*field tempi not found.*",
}, {
	about:  "zero sample rate",
	yaml:   "sample_rate: 0",
	expect: "sample_rate must be positive, got 0",
}, {
	about:  "sample rate past 32 bits",
	yaml:   "sample_rate: 4294967296",
	expect: "sample_rate 4294967296 is too large",
}, {
	about:  "zero control frames",
	yaml:   "control_frames: 0",
	expect: "control_frames must be positive, got 0",
}, {
	about:  "negative tempo",
	yaml:   "tempo: -3",
	expect: "tempo: tempo -3",
}, {
	about:  "malformed time signature",
	yaml:   "time_signature: four",
	expect: `time_signature "four" is not of the form N/M`,
}, {
	about:  "impossible time signature",
	yaml:   "time_signature: 4/5",
	expect: "time_signature: bottom of 4/5 is not a note value",
}, {
	about:  "bad seek policy",
	yaml:   "seek_policy: panic",
	expect: `unknown seek_policy "panic"`,
}, {
	about:  "no bars",
	yaml:   "bars: 0",
	expect: "bars must be positive, got 0",
}}

func TestParseRejectsInvalidSettings(t *testing.T) {
	c := qt.New(t)
	for _, test := range invalidTests {
		c.Logf("test: %s", test.about)
		_, err := Parse([]byte(test.yaml))
		c.Assert(err, qt.ErrorMatches, test.expect)
		c.Assert(errgo.Cause(err), qt.Equals, ErrInvalid)
	}
}

func TestReadFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "render.yaml")
	c.Assert(os.WriteFile(path, []byte("bars: 3\n"), 0o644), qt.IsNil)
	cfg, err := ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Bars, qt.Equals, 3)

	c.Assert(os.WriteFile(path, []byte("bars: -1\n"), 0o644), qt.IsNil)
	_, err = ReadFile(path)
	c.Assert(errgo.Cause(err), qt.Equals, ErrInvalid)
	c.Assert(err, qt.ErrorMatches, ".*render.yaml: bars must be positive, got -1")

	_, err = ReadFile(filepath.Join(c.TempDir(), "missing.yaml"))
	c.Assert(err, qt.ErrorMatches, "cannot open configuration: .*")
}
