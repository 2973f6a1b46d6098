// epilogue.go - LayerEpilogue: Abschluss jeder Synthese-Schicht
// Reihenfolge: [noise] -> activation -> [pixel_norm] -> [instance_norm] -> [style_mod]

package stylegan

import (
	"fmt"
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/nn"
)

// LayerEpilogue fasst Rauschen, Aktivierung, Normalisierungen und Style zusammen
type LayerEpilogue struct {
	Noise    *NoiseInjector  `weight:"top_epi.noise"`
	StyleMod *StyleModulator `weight:"style_mod"`

	// layer ist der Style-Slot und Rausch-Index dieser Schicht
	layer        int
	act          nn.ActivationFunc
	pixelNorm    *nn.PixelNorm
	instanceNorm *nn.InstanceNorm
}

// newLayerEpilogue baut die Epilog-Schicht fuer slot gemaess cfg
func newLayerEpilogue(ctx ml.Context, rng *rand.Rand, cfg Config, channels, slot int, act nn.ActivationFunc) *LayerEpilogue {
	e := &LayerEpilogue{layer: slot, act: act}

	if cfg.UseNoise {
		e.Noise = NewNoiseInjector(ctx, channels)
	}

	if cfg.UsePixelNorm {
		e.pixelNorm = nn.NewPixelNorm()
	}

	if cfg.UseInstanceNorm {
		e.instanceNorm = nn.NewInstanceNorm()
	}

	if cfg.UseStyles {
		e.StyleMod = NewStyleModulator(ctx, rng, cfg.DlatentSize, channels, cfg.UseWscale)
	}

	return e
}

// Forward wendet den Epilog an; w ist der Style-Slot [N, D]
func (e *LayerEpilogue) Forward(ctx ml.Context, x, w ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	if e.Noise != nil {
		n, err := e.noise(ctx, x, noise)
		if err != nil {
			return nil, err
		}
		x = e.Noise.Forward(ctx, x, n)
	}

	x = e.act(ctx, x)

	if e.pixelNorm != nil {
		x = e.pixelNorm.Forward(ctx, x)
	}

	if e.instanceNorm != nil {
		x = e.instanceNorm.Forward(ctx, x)
	}

	if e.StyleMod != nil {
		x = e.StyleMod.Forward(ctx, x, w)
	}

	return x, nil
}

// noise holt und prueft das Rauschen fuer diese Schicht
func (e *LayerEpilogue) noise(ctx ml.Context, x ml.Tensor, src NoiseSource) (ml.Tensor, error) {
	if src == nil {
		return nil, ErrNoiseSourceRequired
	}

	b, h, w := x.Dim(0), x.Dim(2), x.Dim(3)
	n, err := src.Noise(ctx, e.layer, b, h, w)
	if err != nil {
		return nil, err
	}

	shape := n.Shape()
	if len(shape) != 4 || (shape[0] != b && shape[0] != 1) || shape[1] != 1 || shape[2] != h || shape[3] != w {
		return nil, &ShapeError{
			Op:   fmt.Sprintf("noise layer %d", e.layer),
			Want: fmt.Sprintf("[%d or 1, 1, %d, %d]", b, h, w),
			Got:  shape,
			Err:  ErrNoiseShape,
		}
	}

	return n, nil
}
