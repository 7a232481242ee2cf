package effects

import (
	"fmt"

	"github.com/cbegin/groove-go/internal/entity"
)

// EQ5Band is a 5-band equalizer split at 200Hz, 800Hz, 2.5kHz and 8kHz.
// Its parameters are band0 through band4, linear gains where 1 is unity.
type EQ5Band struct {
	settings
	gains  [5]float32
	alphas [4]float32
	lpL    [4]float32
	lpR    [4]float32
}

var crossovers = [4]float64{200, 800, 2500, 8000}

// NewEQ5Band creates a 5-band EQ with all gains at unity.
func NewEQ5Band() *EQ5Band {
	specs := make([]entity.ParamSpec, 5)
	for i := range specs {
		specs[i] = entity.ParamSpec{Name: BandParam(i), Min: 0, Max: 4, Default: 1}
	}
	return &EQ5Band{settings: newSettings(specs...)}
}

// BandParam returns the parameter name of band i.
func BandParam(i int) string { return fmt.Sprintf("band%d", i) }

// Transform implements entity.Transformer.
func (eq *EQ5Band) Transform(span entity.Span, in, dst entity.Buffer) error {
	if eq.changed(span) {
		rate := float64(span.SampleRate.Hz())
		for i, freq := range crossovers {
			eq.alphas[i] = onePole(freq, rate)
		}
		for i := range eq.gains {
			eq.gains[i] = float32(eq.Value(i))
		}
	}
	process(eq, in, dst)
	return nil
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	// Each crossover takes the lowpass of what the previous ones left.
	var outL, outR float32
	remL, remR := l, r
	for i := range eq.alphas {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		outL += eq.lpL[i] * eq.gains[i]
		outR += eq.lpR[i] * eq.gains[i]
		remL -= eq.lpL[i]
		remR -= eq.lpR[i]
	}
	return outL + remL*eq.gains[4], outR + remR*eq.gains[4]
}

func (eq *EQ5Band) Reset() {
	clear(eq.lpL[:])
	clear(eq.lpR[:])
}
