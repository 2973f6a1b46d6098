// conv.go - EqualizedConv2d mit optionalem Upscale und Zwischen-Filter
//
// Der Upscale hat zwei Ausfuehrungspfade:
//   - explizit: Nearest-Upsample x2, dann Faltung mit Kernel K
//   - fused: transponierte Faltung (Stride 2) mit F = padsum(transpose(flip(K)))
//
// Beide Pfade sind fuer jede Schwelle aequivalent. Welcher Kernel K gilt,
// legt FusedKernel beim Aufbau fest: Schichten, die im Original fused
// trainiert wurden (Eingang*2 >= 128), nutzen K = flip(W), sonst K = W.

package stylegan

import (
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/nn"
)

// fusedArchThreshold ist die Architektur-Konstante, die die Kernel-Orientierung bestimmt
const fusedArchThreshold = 128

// ConvOptions erweitert LinearOptions um Faltungs-Details
type ConvOptions struct {
	LinearOptions

	Kernel  int
	Upscale bool
	// InputRes ist die Eingangsaufloesung (nur bei Upscale relevant)
	InputRes     int
	Intermediate *nn.Blur
	// FusedThreshold ist die Laufzeit-Schwelle fuer den fused Pfad
	FusedThreshold int
}

// EqualizedConv2d ist eine quadratische Faltung [out, in, k, k] mit Padding k/2
type EqualizedConv2d struct {
	Weight       ml.Tensor `weight:"weight"`
	Bias         ml.Tensor `weight:"bias"`
	Intermediate *nn.Blur  `weight:"intermediate"`

	kernel int
	wMul   float64
	bMul   float64

	upscale   *nn.Upscale
	threshold int
	// FusedKernel: gespeichertes Gewicht ist in fused-Orientierung trainiert
	FusedKernel bool
}

// NewEqualizedConv2d erstellt die Faltung; fan_in = in * k^2
func NewEqualizedConv2d(ctx ml.Context, rng *rand.Rand, in, out int, opts ConvOptions) *EqualizedConv2d {
	k := opts.Kernel
	initStd, wMul := opts.scales(in * k * k)

	c := &EqualizedConv2d{
		Weight:       ctx.FromFloats(gaussian(rng, out*in*k*k, initStd), out, in, k, k),
		Intermediate: opts.Intermediate,
		kernel:       k,
		wMul:         wMul,
		bMul:         opts.LRMul,
		threshold:    opts.FusedThreshold,
	}

	if opts.Bias {
		c.Bias = ctx.Zeros(ml.DTypeF32, out)
	}

	if opts.Upscale {
		c.upscale = nn.NewUpscale(2)
		c.FusedKernel = 2*opts.InputRes >= fusedArchThreshold
	}

	return c
}

// usesFused prueft die Laufzeit-Schwelle fuer einen Eingang [N, C, H, W]
func (c *EqualizedConv2d) usesFused(x ml.Tensor) bool {
	return c.upscale != nil && 2*min(x.Dim(2), x.Dim(3)) >= c.threshold
}

// explicitKernel liefert K fuer den expliziten Pfad
func (c *EqualizedConv2d) explicitKernel(ctx ml.Context) ml.Tensor {
	w := c.Weight.Scale(ctx, c.wMul)
	if c.upscale != nil && c.FusedKernel {
		w = w.Flip(ctx, 2, 3)
	}

	return w
}

// fusedKernel baut F = padsum(transpose(flip(K))) mit Form [in, out, k+1, k+1]
func fusedKernel(ctx ml.Context, k ml.Tensor) ml.Tensor {
	w := k.Flip(ctx, 2, 3).Permute(ctx, 1, 0, 2, 3)
	w = w.Pad(ctx, 0, 0, 0, 0, 1, 1, 1, 1)

	n := w.Dim(2)
	slice := func(y0, x0 int) ml.Tensor {
		return w.Slice(ctx, 2, y0, y0+n-1, 1).Slice(ctx, 3, x0, x0+n-1, 1)
	}

	return slice(1, 1).Add(ctx, slice(0, 1)).Add(ctx, slice(1, 0)).Add(ctx, slice(0, 0))
}

// Forward wendet Faltung, Zwischen-Filter und Bias an
func (c *EqualizedConv2d) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	k := c.explicitKernel(ctx)

	if c.usesFused(x) {
		f := fusedKernel(ctx, k)
		x = f.ConvTranspose2D(ctx, x, 2, 2, (f.Dim(3)-1)/2, (f.Dim(3)-1)/2)
	} else {
		if c.upscale != nil {
			x = c.upscale.Forward(ctx, x)
		}

		pad := c.kernel / 2
		x = k.Conv2D(ctx, x, 1, 1, pad, pad, 1, 1)
	}

	if c.Intermediate != nil {
		x = c.Intermediate.Forward(ctx, x)
	}

	if c.Bias != nil {
		x = x.Add(ctx, c.Bias.Scale(ctx, c.bMul).Reshape(ctx, 1, -1, 1, 1))
	}

	return x
}
