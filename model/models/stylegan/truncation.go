// truncation.go - Truncation-Trick: Style-Latents Richtung Durchschnitt ziehen

package stylegan

import (
	"fmt"

	"github.com/louis-chevallier/stylegan/ml"
)

// Truncation ersetzt w[:, i, :] durch lerp(avg, w[:, i, :], Threshold) fuer i < MaxLayer
type Truncation struct {
	AvgLatent ml.Tensor `weight:"avg_latent,buffer"`
	MaxLayer  int
	Threshold float64
}

// NewTruncation erstellt die Truncation; avg hat die Laenge dlatent_size
func NewTruncation(ctx ml.Context, avg []float32, maxLayer int, threshold float64) *Truncation {
	return &Truncation{
		AvgLatent: ctx.FromFloats(avg, len(avg)),
		MaxLayer:  maxLayer,
		Threshold: threshold,
	}
}

// Forward wendet die Truncation auf w [N, L, D] an
func (t *Truncation) Forward(ctx ml.Context, w ml.Tensor) (ml.Tensor, error) {
	shape := w.Shape()
	if len(shape) != 3 {
		return nil, &ShapeError{Op: "truncation", Want: "[N, L, D]", Got: shape, Err: ErrDlatentRank}
	}

	if d := t.AvgLatent.Dim(0); shape[2] != d {
		return nil, &ShapeError{Op: "truncation", Want: fmt.Sprintf("[N, L, %d]", d), Got: shape, Err: ErrLatentShape}
	}

	cut := min(max(t.MaxLayer, 0), shape[1])
	if cut == 0 {
		return w, nil
	}

	interp := t.AvgLatent.Lerp(ctx, w, float32(t.Threshold))
	if cut == shape[1] {
		return interp, nil
	}

	head := interp.Slice(ctx, 1, 0, cut, 1)
	tail := w.Slice(ctx, 1, cut, shape[1], 1)
	return head.Concat(ctx, tail, 1), nil
}
