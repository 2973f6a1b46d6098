// normalization.go - PixelNorm und InstanceNorm

package nn

import "github.com/louis-chevallier/stylegan/ml"

// PixelNorm skaliert jeden Merkmalsvektor auf quadratischen Mittelwert 1 (ueber Achse 1)
type PixelNorm struct {
	Eps float32
}

// NewPixelNorm erstellt PixelNorm mit eps 1e-8
func NewPixelNorm() *PixelNorm {
	return &PixelNorm{Eps: 1e-8}
}

// Forward berechnet x * rsqrt(mean(x^2, 1) + eps)
func (n *PixelNorm) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	ms := t.Sqr(ctx).Mean(ctx, 1).AddScalar(ctx, float64(n.Eps))
	return t.Mul(ctx, ms.Rsqrt(ctx))
}

// InstanceNorm normalisiert jeden Kanal ueber die Raumachsen (ohne affine Parameter)
type InstanceNorm struct {
	Eps float32
}

// NewInstanceNorm erstellt InstanceNorm mit eps 1e-5
func NewInstanceNorm() *InstanceNorm {
	return &InstanceNorm{Eps: 1e-5}
}

// Forward erwartet [N, C, H, W]
func (n *InstanceNorm) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	shape := t.Shape()
	flat := t.Reshape(ctx, shape[0], shape[1], -1)

	centered := flat.Sub(ctx, flat.Mean(ctx, 2))
	variance := centered.Sqr(ctx).Mean(ctx, 2).AddScalar(ctx, float64(n.Eps))
	out := centered.Mul(ctx, variance.Rsqrt(ctx))

	return out.Reshape(ctx, shape...)
}
