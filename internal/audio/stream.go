// Package audio connects rendered ticks to the system audio device.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"
)

var logger = loggo.GetLogger("groove.audio")

// SampleSource fills interleaved stereo buffers on demand.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// Ticker renders one quantum of interleaved stereo audio per call. The
// returned slice is only valid until the next call.
type Ticker interface {
	RenderTick() ([]float32, error)
}

// TickSource adapts a Ticker to the arbitrary read sizes of the device by
// keeping the unread part of the last tick.
type TickSource struct {
	ticker  Ticker
	pending []float32
	done    bool
	err     error
}

func NewTickSource(t Ticker) *TickSource {
	return &TickSource{ticker: t}
}

// Process fills dst. After the ticker fails the rest of dst, and every
// later call, is silence.
func (s *TickSource) Process(dst []float32) {
	for len(dst) > 0 {
		if len(s.pending) == 0 {
			if s.done {
				clear(dst)
				return
			}
			buf, err := s.ticker.RenderTick()
			if err != nil {
				s.done = true
				s.err = err
				logger.Debugf("stream finished: %v", err)
				continue
			}
			s.pending = append(s.pending[:0], buf...)
		}
		n := copy(dst, s.pending)
		dst = dst[n:]
		s.pending = s.pending[n:]
	}
}

// Finished reports whether the ticker has stopped producing audio.
func (s *TickSource) Finished() bool { return s.done && len(s.pending) == 0 }

// Err returns the error that ended the stream.
func (s *TickSource) Err() error { return s.err }

// bytesPerFrame is the size of one stereo float32 frame on the device.
const bytesPerFrame = 8

// pcmReader presents a SampleSource as the little-endian float32 byte
// stream ebiten's NewPlayerF32 expects.
type pcmReader struct {
	mu      sync.Mutex
	source  SampleSource
	samples []float32
}

func (r *pcmReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p) - len(p)%bytesPerFrame
	if n == 0 {
		return 0, nil
	}
	r.samples = slices.Grow(r.samples[:0], n/4)[:n/4]
	r.source.Process(r.samples)
	for i, v := range r.samples {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// The device context can only be created once per process, so every
// Device shares it and must agree on its sample rate.
var (
	deviceOnce sync.Once
	deviceCtx  *ebitaudio.Context
	deviceRate int
)

// ErrSampleRateMismatch is the cause of errors when a Device asks for a
// sample rate other than the one the device context was created with.
var ErrSampleRateMismatch = errgo.New("audio context sample rate mismatch")

func deviceContext(sampleRate int) (*ebitaudio.Context, error) {
	deviceOnce.Do(func() {
		deviceRate = sampleRate
		deviceCtx = ebitaudio.NewContext(sampleRate)
	})
	if deviceRate != sampleRate {
		return nil, errgo.WithCausef(nil, ErrSampleRateMismatch,
			"device runs at %d Hz, cannot open it at %d Hz", deviceRate, sampleRate)
	}
	return deviceCtx, nil
}

// Device streams a SampleSource to the system audio output. The device's
// own goroutine calls the source's Process method.
type Device struct {
	out *ebitaudio.Player
}

// Open prepares source for playback at sampleRate. Nothing is heard until
// Start is called.
func Open(sampleRate int, source SampleSource) (*Device, error) {
	ctx, err := deviceContext(sampleRate)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	out, err := ctx.NewPlayerF32(&pcmReader{source: source})
	if err != nil {
		return nil, errgo.Notef(err, "cannot open audio output")
	}
	logger.Debugf("opened audio output at %d Hz", sampleRate)
	return &Device{out: out}, nil
}

// Start begins or resumes output.
func (d *Device) Start() { d.out.Play() }

// Pause halts output, keeping the source's position.
func (d *Device) Pause() { d.out.Pause() }

func (d *Device) Playing() bool { return d.out.IsPlaying() }

// Elapsed returns how much audio the listener has heard.
func (d *Device) Elapsed() time.Duration { return d.out.Position() }

// Close stops output for good.
func (d *Device) Close() error {
	d.out.Pause()
	return errgo.Mask(d.out.Close())
}
