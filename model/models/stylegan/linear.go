// linear.go - EqualizedLinear: affine Schicht mit Laufzeit-Skalierung
//
// Gewichte werden unskaliert gespeichert; der Faktor aus Gain, Fan-in und
// Lernraten-Multiplikator wird bei jedem Aufruf neu angewendet.

package stylegan

import (
	"math"
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
)

// LinearOptions konfiguriert EqualizedLinear und EqualizedConv2d
type LinearOptions struct {
	Gain      float64
	UseWscale bool
	LRMul     float64
	Bias      bool
}

// heStd berechnet gain * fanIn^(-1/2)
func heStd(gain float64, fanIn int) float64 {
	return gain / math.Sqrt(float64(fanIn))
}

// scales liefert (Init-Standardabweichung, Laufzeit-Faktor)
func (o LinearOptions) scales(fanIn int) (initStd, wMul float64) {
	he := heStd(o.Gain, fanIn)
	if o.UseWscale {
		return 1 / o.LRMul, he * o.LRMul
	}

	return he / o.LRMul, o.LRMul
}

// gaussian fuellt n Werte ~ N(0, std^2)
func gaussian(rng *rand.Rand, n int, std float64) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rng.NormFloat64() * std)
	}

	return s
}

// EqualizedLinear ist eine affine Schicht [out, in]
type EqualizedLinear struct {
	Weight ml.Tensor `weight:"weight"`
	Bias   ml.Tensor `weight:"bias"`

	wMul float64
	bMul float64
}

// NewEqualizedLinear erstellt die Schicht mit Gauss-initialisierten Gewichten
func NewEqualizedLinear(ctx ml.Context, rng *rand.Rand, in, out int, opts LinearOptions) *EqualizedLinear {
	initStd, wMul := opts.scales(in)

	l := &EqualizedLinear{
		Weight: ctx.FromFloats(gaussian(rng, out*in, initStd), out, in),
		wMul:   wMul,
		bMul:   opts.LRMul,
	}

	if opts.Bias {
		l.Bias = ctx.Zeros(ml.DTypeF32, out)
	}

	return l
}

// WeightScale gibt den Laufzeit-Faktor des Gewichts zurueck
func (l *EqualizedLinear) WeightScale() float64 {
	return l.wMul
}

// Forward berechnet (W * wMul) x + b * bMul fuer x [..., in]
func (l *EqualizedLinear) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	y := l.Weight.Scale(ctx, l.wMul).Mulmat(ctx, x)
	if l.Bias != nil {
		y = y.Add(ctx, l.Bias.Scale(ctx, l.bMul))
	}

	return y
}
