// style.go - StyleModulator: kanalweise affine Umgestaltung durch den Style-Latent

package stylegan

import (
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
)

// StyleModulator berechnet (scale, shift) aus dem Style-Vektor
type StyleModulator struct {
	Lin *EqualizedLinear `weight:"lin"`
}

// NewStyleModulator erstellt Lin: dlatent -> 2*channels (gain 1, lrmul 1)
func NewStyleModulator(ctx ml.Context, rng *rand.Rand, dlatentSize, channels int, useWscale bool) *StyleModulator {
	return &StyleModulator{
		Lin: NewEqualizedLinear(ctx, rng, dlatentSize, 2*channels, LinearOptions{
			Gain:      1,
			UseWscale: useWscale,
			LRMul:     1,
			Bias:      true,
		}),
	}
}

// Forward berechnet x * (scale + 1) + shift fuer x [N, C, H, W] und w [N, D]
func (s *StyleModulator) Forward(ctx ml.Context, x, w ml.Tensor) ml.Tensor {
	n, c := x.Dim(0), x.Dim(1)

	style := s.Lin.Forward(ctx, w).Reshape(ctx, n, 2, c, 1, 1)
	scale := style.Slice(ctx, 1, 0, 1, 1).Reshape(ctx, n, c, 1, 1)
	shift := style.Slice(ctx, 1, 1, 2, 1).Reshape(ctx, n, c, 1, 1)

	return x.Mul(ctx, scale.AddScalar(ctx, 1)).Add(ctx, shift)
}
