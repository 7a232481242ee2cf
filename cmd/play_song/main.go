// Command play_song plays the demo song on the default audio device. With
// --midi-in, notes from a MIDI input port are played alongside it.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/juju/loggo"
	"github.com/spf13/pflag"
	"gitlab.com/gomidi/midi/v2"
	errgo "gopkg.in/errgo.v1"

	groove "github.com/cbegin/groove-go"
	"github.com/cbegin/groove-go/internal/config"
	"github.com/cbegin/groove-go/internal/demo"
	"github.com/cbegin/groove-go/internal/midiin"
	"github.com/cbegin/groove-go/internal/musictime"
)

var logger = loggo.GetLogger("groove.cmd.play_song")

func main() {
	var (
		cfgPath = pflag.StringP("config", "c", "", "YAML configuration file")
		volume  = pflag.Float64("volume", 1.0, "master volume scalar")
		bars    = pflag.Int("bars", 0, "bars to play (0 plays the configured length, -1 plays until interrupted)")
		midiIn  = pflag.String("midi-in", "", "MIDI input port to play along with")
		logSpec = pflag.String("log", "", "logging configuration, e.g. <root>=DEBUG")
	)
	pflag.Parse()

	if err := run(*cfgPath, *volume, *bars, *midiIn, *logSpec); err != nil {
		fmt.Fprintf(os.Stderr, "play_song: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, volume float64, bars int, midiIn, logSpec string) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.ReadFile(cfgPath); err != nil {
			return errgo.Mask(err)
		}
	}
	for _, spec := range []string{cfg.Log, logSpec} {
		if spec == "" {
			continue
		}
		if err := loggo.ConfigureLoggers(spec); err != nil {
			return errgo.Notef(err, "bad logging configuration %q", spec)
		}
	}
	until := cfg.Length()
	switch {
	case bars < 0:
		until = musictime.End
	case bars > 0:
		cfg.Bars = bars
		until = cfg.Length()
	}

	song, err := demo.New()
	if err != nil {
		return errgo.Mask(err)
	}
	e, err := song.Engine(cfg.EngineOptions()...)
	if err != nil {
		return errgo.Mask(err)
	}
	p := groove.NewPlayer(e, groove.WithPlayUntil(until))
	if err := p.SetMasterVolume(volume); err != nil {
		return errgo.Mask(err)
	}

	if midiIn != "" {
		stop, err := listen(midiIn, midiin.NewListener(e))
		if err != nil {
			return errgo.Mask(err)
		}
		defer stop()
	}

	events := p.Watch()
	if err := p.Play(); err != nil {
		return errgo.Mask(err)
	}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case groove.EventFault:
				logger.Warningf("entity %s faulted: %v", ev.Entity, ev.Err)
			case groove.EventStopped:
				logger.Infof("playback finished at %v", e.Position())
				p.Wait()
				return nil
			}
		case <-interrupt:
			logger.Infof("interrupted at %v", e.Position())
			return errgo.Mask(p.Stop())
		}
	}
}

// listen feeds messages from the named input port to l. A MIDI driver must
// be registered for any port to be found.
func listen(port string, l *midiin.Listener) (func(), error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, errgo.Notef(err, "cannot find MIDI input %q", port)
	}
	stop, err := midi.ListenTo(in, l.Receive, midi.HandleError(func(err error) {
		logger.Warningf("MIDI input %q: %v", port, err)
	}))
	if err != nil {
		return nil, errgo.Notef(err, "cannot listen to MIDI input %q", port)
	}
	logger.Infof("listening to MIDI input %q", port)
	return stop, nil
}
