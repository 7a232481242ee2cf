// Command render_song renders the demo song to WAV files. Each --config
// file is rendered on its own goroutine into its own output.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/juju/loggo"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	errgo "gopkg.in/errgo.v1"

	groove "github.com/cbegin/groove-go"
	"github.com/cbegin/groove-go/internal/config"
	"github.com/cbegin/groove-go/internal/demo"
	"github.com/cbegin/groove-go/internal/musictime"
)

var logger = loggo.GetLogger("groove.cmd.render_song")

func main() {
	var (
		configs = pflag.StringArrayP("config", "c", nil, "YAML configuration file; repeat to render several")
		out     = pflag.StringP("out", "o", "", "output WAV file (single configuration only)")
		midiOut = pflag.String("midi-out", "", "also write the song's notes as a MIDI file")
		bars    = pflag.Int("bars", 0, "override the number of bars to render")
		logSpec = pflag.String("log", "", "logging configuration, e.g. <root>=DEBUG")
		dump    = pflag.Bool("dump", false, "print the configuration and song definition before rendering")
	)
	pflag.Parse()

	if err := run(*configs, *out, *midiOut, *bars, *logSpec, *dump); err != nil {
		fmt.Fprintf(os.Stderr, "render_song: %v\n", err)
		os.Exit(1)
	}
}

func run(paths []string, out, midiOut string, bars int, logSpec string, dump bool) error {
	if len(paths) > 1 && out != "" {
		return errgo.New("--out cannot be used with more than one --config")
	}
	cfgs, err := loadConfigs(paths)
	if err != nil {
		return errgo.Mask(err)
	}
	if err := configureLogging(cfgs[0].Log, logSpec); err != nil {
		return errgo.Mask(err)
	}
	for i := range cfgs {
		if out != "" {
			cfgs[i].Output = out
		}
		if bars > 0 {
			cfgs[i].Bars = bars
		}
		if err := cfgs[i].Validate(); err != nil {
			return errgo.Notef(err, "configuration %d", i+1)
		}
		if cfgs[i].Output == "" {
			return errgo.Newf("configuration %d has no output file", i+1)
		}
	}
	if dump {
		if err := dumpSong(os.Stdout, cfgs); err != nil {
			return errgo.Mask(err)
		}
	}
	if midiOut != "" {
		if err := writeMIDI(midiOut, cfgs[0]); err != nil {
			return errgo.Mask(err)
		}
	}

	var g errgroup.Group
	for _, cfg := range cfgs {
		g.Go(func() error {
			return render(cfg)
		})
	}
	return g.Wait()
}

func loadConfigs(paths []string) ([]config.Config, error) {
	if len(paths) == 0 {
		return []config.Config{config.Default()}, nil
	}
	cfgs := make([]config.Config, len(paths))
	for i, path := range paths {
		cfg, err := config.ReadFile(path)
		if err != nil {
			return nil, errgo.Mask(err)
		}
		cfgs[i] = cfg
	}
	return cfgs, nil
}

// configureLogging applies the configuration file's spec, then the
// command line's.
func configureLogging(specs ...string) error {
	for _, spec := range specs {
		if spec == "" {
			continue
		}
		if err := loggo.ConfigureLoggers(spec); err != nil {
			return errgo.Notef(err, "bad logging configuration %q", spec)
		}
	}
	return nil
}

func render(cfg config.Config) error {
	song, err := demo.New()
	if err != nil {
		return errgo.Mask(err)
	}
	e, err := song.Engine(cfg.EngineOptions()...)
	if err != nil {
		return errgo.Notef(err, "%s", cfg.Output)
	}
	faults := e.Watch()
	logger.Infof("rendering %d bars at %v bpm to %s", cfg.Bars, cfg.Tempo, cfg.Output)
	samples, err := groove.RenderSamples(e, cfg.Length())
	if err != nil {
		return errgo.Notef(err, "%s", cfg.Output)
	}
	drainFaults(faults)

	f, err := os.Create(cfg.Output)
	if err != nil {
		return errgo.Mask(err)
	}
	if err := groove.WriteWAV(f, samples, cfg.SampleRate); err != nil {
		f.Close()
		return errgo.Notef(err, "%s", cfg.Output)
	}
	if err := f.Close(); err != nil {
		return errgo.Mask(err)
	}
	logger.Infof("wrote %s (%d frames)", cfg.Output, len(samples)/2)
	return nil
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// dumpSong prints the configurations and the definition they render.
func dumpSong(w io.Writer, cfgs []config.Config) error {
	song, err := demo.New()
	if err != nil {
		return errgo.Mask(err)
	}
	dumper.Fdump(w, cfgs, song.Definition)
	return nil
}

func drainFaults(ch <-chan groove.Event) {
	for {
		select {
		case ev := <-ch:
			if ev.Kind == groove.EventFault {
				logger.Warningf("entity %s faulted: %v", ev.Entity, ev.Err)
			}
		default:
			return
		}
	}
}

func writeMIDI(path string, cfg config.Config) error {
	song, err := demo.New()
	if err != nil {
		return errgo.Mask(err)
	}
	ts, err := cfg.Signature()
	if err != nil {
		return errgo.Mask(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errgo.Mask(err)
	}
	if err := song.Pattern.WriteSMF(f, musictime.Tempo(cfg.Tempo), ts); err != nil {
		f.Close()
		return errgo.Notef(err, "%s", path)
	}
	return errgo.Mask(f.Close())
}
