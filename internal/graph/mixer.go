package graph

import (
	"github.com/cbegin/groove-go/internal/entity"
)

// Mixer sums its inputs and applies a controllable gain. The orchestrator's
// root is a Mixer; submixes use the same type.
type Mixer struct {
	*entity.ParamSet
}

// NewMixer returns a unity-gain mixer.
func NewMixer() *Mixer {
	return &Mixer{ParamSet: entity.NewParamSet(
		entity.ParamSpec{Name: "gain", Min: 0, Max: 2, Default: 1},
	)}
}

// Transform implements entity.Transformer.
func (m *Mixer) Transform(_ entity.Span, in, dst entity.Buffer) error {
	g := float32(m.Value(0))
	for i := range dst {
		dst[i] = in[i] * g
	}
	return nil
}
