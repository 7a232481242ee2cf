package effects

import (
	"math"

	"github.com/cbegin/groove-go/internal/entity"
)

const (
	compThreshold = iota
	compRatio
	compAttack
	compRelease
	compMakeup
)

// Compressor implements basic dynamic range compression with a per-channel
// envelope follower.
type Compressor struct {
	settings
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	envL      float32
	envR      float32
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs, releaseMs: envelope times in ms
// makeupDB: makeup gain in dB
func NewCompressor(thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	c := &Compressor{settings: newSettings(
		entity.ParamSpec{Name: "threshold", Min: -60, Max: 0, Default: -20},
		entity.ParamSpec{Name: "ratio", Min: 1, Max: 20, Default: 4},
		entity.ParamSpec{Name: "attack", Min: 0.1, Max: 500, Default: 5},
		entity.ParamSpec{Name: "release", Min: 1, Max: 2000, Default: 50},
		entity.ParamSpec{Name: "makeup", Min: 0, Max: 24, Default: 0},
	)}
	c.SetParam("threshold", thresholdDB)
	c.SetParam("ratio", ratio)
	c.SetParam("attack", attackMs)
	c.SetParam("release", releaseMs)
	c.SetParam("makeup", makeupDB)
	return c
}

// Transform implements entity.Transformer.
func (c *Compressor) Transform(span entity.Span, in, dst entity.Buffer) error {
	if c.changed(span) {
		c.configure(float64(span.SampleRate.Hz()))
	}
	process(c, in, dst)
	return nil
}

func (c *Compressor) configure(sr float64) {
	c.threshold = float32(dbToGain(c.Value(compThreshold)))
	c.ratio = float32(c.Value(compRatio))
	c.attack = float32(1.0 - math.Exp(-1.0/(c.Value(compAttack)*sr/1000.0)))
	c.release = float32(1.0 - math.Exp(-1.0/(c.Value(compRelease)*sr/1000.0)))
	c.makeup = float32(dbToGain(c.Value(compMakeup)))
}

func dbToGain(db float64) float64 { return math.Pow(10, db/20) }

func (c *Compressor) Process(l, r float32) (float32, float32) {
	c.envL = follow(c.envL, float32(math.Abs(float64(l))), c.attack, c.release)
	c.envR = follow(c.envR, float32(math.Abs(float64(r))), c.attack, c.release)
	return l * c.gain(c.envL) * c.makeup, r * c.gain(c.envR) * c.makeup
}

func follow(env, level, attack, release float32) float32 {
	if level > env {
		return env + attack*(level-env)
	}
	return env + release*(level-env)
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.envL, c.envR = 0, 0
}
