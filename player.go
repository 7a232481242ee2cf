package groove

import (
	"sync"

	errgo "gopkg.in/errgo.v1"

	intaudio "github.com/cbegin/groove-go/internal/audio"
	"github.com/cbegin/groove-go/internal/musictime"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	until musictime.MusicalTime
}

// WithPlayUntil stops playback once the engine reaches t. The default is
// to play until the engine is stopped.
func WithPlayUntil(t musictime.MusicalTime) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.until = t
	}
}

// Player plays an Engine on the system audio device. The device's audio
// goroutine becomes the engine's render goroutine.
type Player struct {
	engine *Engine
	cfg    playerConfig

	mu     sync.Mutex
	device *intaudio.Device
	volume float64
	// done is closed when the current playback ends or is replaced.
	done chan struct{}
}

func NewPlayer(e *Engine, opts ...PlayerOption) *Player {
	cfg := playerConfig{until: musictime.End}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Player{engine: e, cfg: cfg, volume: 1}
}

// limited stops the engine when it reaches until.
type limited struct {
	e     *Engine
	until musictime.MusicalTime
}

func (l limited) RenderTick() ([]float32, error) {
	if l.e.Position() >= l.until {
		l.e.Stop()
	}
	return l.e.RenderTick()
}

// playback reports the end of the stream once.
type playback struct {
	src    *intaudio.TickSource
	once   sync.Once
	onDone func()
}

func (pb *playback) Process(dst []float32) {
	pb.src.Process(dst)
	if pb.src.Finished() {
		pb.once.Do(pb.onDone)
	}
}

func (pb *playback) Finished() bool { return pb.src.Finished() }

func (p *Player) newPlayback(done chan struct{}) *playback {
	return &playback{
		src:    intaudio.NewTickSource(limited{e: p.engine, until: p.cfg.until}),
		onDone: func() { p.finish(done) },
	}
}

// Play starts the engine on the audio device, replacing any previous
// playback.
func (p *Player) Play() error {
	if err := p.release(); err != nil {
		logger.Warningf("closing previous playback: %v", err)
	}
	done := make(chan struct{})
	p.engine.Play()
	device, err := intaudio.Open(int(p.engine.SampleRate().Hz()), p.newPlayback(done))
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	p.mu.Lock()
	p.device, p.done = device, done
	p.mu.Unlock()
	device.Start()
	return nil
}

// finish closes done if it still belongs to the current playback.
func (p *Player) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		close(done)
		p.done = nil
	}
}

// release closes the device and wakes any Wait.
func (p *Player) release() error {
	p.mu.Lock()
	device, done := p.device, p.done
	p.device, p.done = nil, nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
	if device == nil {
		return nil
	}
	return errgo.Mask(device.Close())
}

func (p *Player) Pause() {
	if d := p.current(); d != nil {
		d.Pause()
	}
}

func (p *Player) Resume() {
	if d := p.current(); d != nil {
		d.Start()
	}
}

func (p *Player) current() *intaudio.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device
}

// Stop halts the device and the engine.
func (p *Player) Stop() error {
	p.engine.Stop()
	return p.release()
}

// Wait blocks until the current playback ends. It returns at once when
// nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns the engine's event channel.
func (p *Player) Watch() <-chan Event { return p.engine.Watch() }

// SetMasterVolume sets the main mixer gain. It is applied by the render
// goroutine at the next tick; negative volumes become 0.
func (p *Player) SetMasterVolume(volume float64) error {
	volume = max(volume, 0)
	if err := p.engine.SetParam(MainMixer, "gain", volume); err != nil {
		return errgo.Mask(err)
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns how many frames the listener has heard, or 0
// when nothing is playing.
func (p *Player) PlaybackPosition() int64 {
	d := p.current()
	if d == nil {
		return 0
	}
	return int64(d.Elapsed().Seconds() * float64(p.engine.SampleRate().Hz()))
}
