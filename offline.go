package groove

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	errgo "gopkg.in/errgo.v1"

	"github.com/cbegin/groove-go/internal/musictime"
)

// WAVBitDepth is the sample size of files written by WriteWAV.
const WAVBitDepth = 16

const wavFormatPCM = 1

// RenderSamples renders d of musical time from the engine's current
// position without a device.
func RenderSamples(e *Engine, d musictime.MusicalTime) ([]float32, error) {
	samples, err := e.Render(d)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return samples, nil
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM. Samples
// outside [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, WAVBitDepth, 2, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: WAVBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(clip(s) * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return errgo.Notef(err, "cannot encode samples")
	}
	if err := enc.Close(); err != nil {
		return errgo.Notef(err, "cannot finish WAV file")
	}
	return nil
}

func clip(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
