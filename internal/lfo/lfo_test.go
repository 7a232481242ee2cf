package lfo

import (
	"math"
	"testing"

	"github.com/cbegin/groove-go/internal/entity"
)

func TestLFOTriangleBasicShape(t *testing.T) {
	l := New(1.0, WaveTriangle)

	// At phase 0, triangle should be -1
	if v := l.At(0); math.Abs(v-(-1.0)) > 1e-9 {
		t.Errorf("triangle at phase 0: got %f, want -1.0", v)
	}
	if v := l.At(0.25); math.Abs(v) > 1e-9 {
		t.Errorf("triangle at phase 0.25: got %f, want ~0", v)
	}
	if v := l.At(0.5); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("triangle at phase 0.5: got %f, want 1.0", v)
	}
}

func TestLFOSquareShape(t *testing.T) {
	l := New(1.0, WaveSquare)
	if v := l.At(0.1); v != 1 {
		t.Errorf("square first half: got %f, want 1", v)
	}
	if v := l.At(0.6); v != -1 {
		t.Errorf("square second half: got %f, want -1", v)
	}
}

func TestLFOSawShape(t *testing.T) {
	l := New(1.0, WaveSaw)
	if v := l.At(0); math.Abs(v-1.0) > 1e-9 {
		t.Errorf("saw at phase 0: got %f, want 1.0", v)
	}
}

func TestLFOZeroDepthIsSilent(t *testing.T) {
	l := New(5.0, WaveTriangle)
	l.SetParam("depth", 0)
	if _, ok := l.Control(entity.Span{SampleRate: 44100}); ok {
		t.Errorf("zero depth should emit nothing")
	}
}

func TestLFOActive(t *testing.T) {
	l := New(0, WaveTriangle)
	if l.Active() {
		t.Error("zero-rate LFO should not be active")
	}
	l.SetParam("rate", 5)
	if !l.Active() {
		t.Error("configured LFO should be active")
	}
}

func TestLFOControlIsPureInStartFrame(t *testing.T) {
	l := New(3.0, WaveRandom)
	span := entity.Span{StartFrame: 12345, SampleRate: 1000}
	a, _ := l.Control(span)
	l.Control(entity.Span{StartFrame: 99, SampleRate: 1000})
	b, _ := l.Control(span)
	if a != b {
		t.Fatalf("control at same frame = %v then %v", a, b)
	}
}

func TestLFORandomStaysInRange(t *testing.T) {
	l := New(10.0, WaveRandom)
	for i := 0; i < 200; i++ {
		v, ok := l.Control(entity.Span{StartFrame: uint64(i * 7), SampleRate: 1000})
		if !ok {
			t.Fatalf("random LFO inactive")
		}
		if v < 0 || v > 1 {
			t.Errorf("random control out of range: %f", v)
		}
	}
}

func TestLFOControlMapsToUnitRange(t *testing.T) {
	l := New(1.0, WaveTriangle)
	l.SetParam("depth", 0.5)
	v, _ := l.Control(entity.Span{StartFrame: 50, SampleRate: 100})
	if math.Abs(v-0.75) > 1e-9 {
		t.Fatalf("control at peak = %v, want 0.75", v)
	}
}
