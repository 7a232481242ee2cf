package groove

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/cbegin/groove-go/internal/effects"
	"github.com/cbegin/groove-go/internal/musictime"
	"github.com/cbegin/groove-go/internal/toys"
	"github.com/cbegin/groove-go/internal/transport"
)

func phraseDefinition() Definition {
	return Definition{
		Entities: []EntityDef{
			{Name: "synth", Entity: toys.NewSynth(8), MIDIChannel: 1},
			{Name: "delay", Entity: effects.NewDelay(120, 0.4, 0.2, 0.3)},
			{Name: "reverb", Entity: effects.NewReverb(0.5, 0.7, 0.25)},
		},
		Cables: []CableDef{{"synth", "delay"}, {"delay", "reverb"}, {"reverb", MainMixer}},
	}
}

func renderPhraseWAV(t *testing.T) []byte {
	e, err := New(phraseDefinition(), WithSampleRate(48000), WithTempo(140))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	var samples []float32
	for i, key := range []uint8{60, 62, 64, 65, 67, 69, 71, 72} {
		e.Post(transport.NoteOnEvent(0, key, 100))
		part, err := RenderSamples(e, musictime.FromParts(8))
		if err != nil {
			t.Fatalf("render note %d: %v", i, err)
		}
		samples = append(samples, part...)
		e.Post(transport.NoteOffEvent(0, key))
	}
	tail, err := RenderSamples(e, musictime.FromBeats(1, 0))
	if err != nil {
		t.Fatalf("render tail: %v", err)
	}
	samples = append(samples, tail...)

	path := filepath.Join(t.TempDir(), "phrase.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteWAV(f, samples, 48000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return data
}

func TestRenderIsDeterministic(t *testing.T) {
	first := renderPhraseWAV(t)
	second := renderPhraseWAV(t)
	a, b := sha256.Sum256(first), sha256.Sum256(second)
	if a != b {
		t.Fatalf("renders differ\nfirst:  %s\nsecond: %s", hex.EncodeToString(a[:]), hex.EncodeToString(b[:]))
	}
}

func TestWriteWAVHeaderAndClipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteWAV(f, []float32{0.5, -0.5, 2, -2}, 22050); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.NumChans != 2 || dec.SampleRate != 22050 || dec.BitDepth != WAVBitDepth {
		t.Fatalf("format = %d ch %d Hz %d bit", dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	want := []int{16383, -16383, 32767, -32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}
