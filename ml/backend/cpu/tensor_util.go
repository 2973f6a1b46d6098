// tensor_util.go - Reduktionen und elementweise Mathematik
// Enthält: Mean, Variance, Sqr, Sqrt, Rsqrt

package cpu

import (
	"math"

	"github.com/louis-chevallier/stylegan/ml"
)

// Sqr quadriert alle Elemente
func (t *Tensor) Sqr(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, func(v float32) float32 { return v * v })
}

// Sqrt berechnet die Quadratwurzel aller Elemente
func (t *Tensor) Sqrt(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// Rsqrt berechnet 1/sqrt(x) fuer alle Elemente
func (t *Tensor) Rsqrt(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, func(v float32) float32 { return float32(1 / math.Sqrt(float64(v))) })
}

// Mean mittelt ueber dim (keepdim)
func (t *Tensor) Mean(ctx ml.Context, dim int) ml.Tensor {
	return t.reduce(ctx, dim, func(s []float32, stride, n int) float32 {
		return float32(meanOf(s, stride, n))
	})
}

// Variance berechnet die (biased) Varianz ueber dim (keepdim)
func (t *Tensor) Variance(ctx ml.Context, dim int) ml.Tensor {
	return t.reduce(ctx, dim, func(s []float32, stride, n int) float32 {
		mean := meanOf(s, stride, n)
		var sum float64
		for i := range n {
			d := float64(s[i*stride]) - mean
			sum += d * d
		}
		return float32(sum / float64(n))
	})
}

// meanOf akkumuliert in float64
func meanOf(s []float32, stride, n int) float64 {
	var sum float64
	for i := range n {
		sum += float64(s[i*stride])
	}

	return sum / float64(n)
}

// reduce wendet fn auf jede Faser entlang dim an
func (t *Tensor) reduce(ctx ml.Context, dim int, fn func(s []float32, stride, n int) float32) *Tensor {
	dim = normDim(dim, len(t.shape))

	shape := t.Shape()
	n := shape[dim]
	shape[dim] = 1
	out := t.like(shape)

	inner := numel(t.shape[dim+1:])
	outer := numel(t.shape[:dim])

	ctxOf(ctx).parallelRange(outer*inner, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			o, in := i/inner, i%inner
			out.data[i] = fn(t.data[o*n*inner+in:], inner, n)
		}
	})

	return out
}
