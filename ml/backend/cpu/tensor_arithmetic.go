// tensor_arithmetic.go - Arithmetische Tensor-Operationen
// Enthält: Add, Sub, Mul, Div, Lerp, Scale, AddScalar

package cpu

import (
	"fmt"

	"github.com/louis-chevallier/stylegan/ml"
)

// Add addiert zwei Tensoren (mit Broadcasting)
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, t2, func(a, b float32) float32 { return a + b })
}

// Sub subtrahiert zwei Tensoren (mit Broadcasting)
func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, t2, func(a, b float32) float32 { return a - b })
}

// Mul multipliziert zwei Tensoren elementweise (mit Broadcasting)
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, t2, func(a, b float32) float32 { return a * b })
}

// Div dividiert zwei Tensoren elementweise (mit Broadcasting)
func (t *Tensor) Div(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(ctx, t2, func(a, b float32) float32 { return a / b })
}

// Lerp interpoliert linear zwischen t und end.
// Fuer weight < 0.5 wird von t aus gerechnet, sonst von end aus,
// damit beide Endpunkte exakt getroffen werden.
func (t *Tensor) Lerp(ctx ml.Context, end ml.Tensor, weight float32) ml.Tensor {
	return t.binary(ctx, end, func(a, b float32) float32 {
		if weight < 0.5 {
			return a + weight*(b-a)
		}
		return b - (b-a)*(1-weight)
	})
}

// Scale multipliziert alle Elemente mit einem Skalar
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	f := float32(s)
	return t.unary(ctx, func(v float32) float32 { return v * f })
}

// AddScalar addiert einen Skalar zu allen Elementen
func (t *Tensor) AddScalar(ctx ml.Context, s float64) ml.Tensor {
	f := float32(s)
	return t.unary(ctx, func(v float32) float32 { return v + f })
}

// unary wendet fn elementweise an
func (t *Tensor) unary(ctx ml.Context, fn func(float32) float32) *Tensor {
	out := t.like(t.shape)
	ctxOf(ctx).parallelRange(len(t.data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out.data[i] = fn(t.data[i])
		}
	})

	return out
}

// broadcastShape berechnet die Ergebnisform zweier Operanden
func broadcastShape(a, b []int) ([]int, error) {
	rank := max(len(a), len(b))
	out := make([]int, rank)
	for i := range rank {
		da, db := 1, 1
		if j := len(a) - rank + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - rank + i; j >= 0 {
			db = b[j]
		}

		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			return nil, fmt.Errorf("cpu: shapes %v and %v are not broadcastable", a, b)
		}
	}

	return out, nil
}

// broadcastStrides liefert Strides im Ergebnisraum; gestreckte Dimensionen bekommen 0
func broadcastStrides(shape []int, rank int) []int {
	src := stridesOf(shape)
	out := make([]int, rank)
	for i := range shape {
		j := rank - len(shape) + i
		if shape[i] != 1 {
			out[j] = src[i]
		}
	}

	return out
}

// binary wendet fn elementweise mit Broadcasting an
func (t *Tensor) binary(ctx ml.Context, t2 ml.Tensor, fn func(a, b float32) float32) *Tensor {
	o := tensorOf(t2)
	shape, err := broadcastShape(t.shape, o.shape)
	if err != nil {
		panic(err)
	}

	out := t.like(shape)
	c := ctxOf(ctx)

	// Schneller Pfad: identische Formen
	if len(t.data) == len(out.data) && len(o.data) == len(out.data) {
		c.parallelRange(len(out.data), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out.data[i] = fn(t.data[i], o.data[i])
			}
		})
		return out
	}

	rank := len(shape)
	sa := broadcastStrides(t.shape, rank)
	sb := broadcastStrides(o.shape, rank)
	inner := shape[rank-1]
	ia, ib := sa[rank-1], sb[rank-1]
	rows := len(out.data) / inner

	c.parallelRange(rows, func(lo, hi int) {
		idx := make([]int, rank-1)
		for row := lo; row < hi; row++ {
			// Zeilenindex in Mehrfachindex zerlegen
			r, offA, offB := row, 0, 0
			for d := rank - 2; d >= 0; d-- {
				idx[d] = r % shape[d]
				r /= shape[d]
				offA += idx[d] * sa[d]
				offB += idx[d] * sb[d]
			}

			dst := out.data[row*inner : (row+1)*inner]
			for k := range dst {
				dst[k] = fn(t.data[offA+k*ia], o.data[offB+k*ib])
			}
		}
	})

	return out
}
