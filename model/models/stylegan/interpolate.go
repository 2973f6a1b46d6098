// interpolate.go - Latent- und Style-Raum-Interpolation, Style-Mixing

package stylegan

import (
	"fmt"
	"slices"

	"github.com/louis-chevallier/stylegan/ml"
)

// LerpLatents interpoliert a -> b; exakt bei t=0 und t=1
func LerpLatents(ctx ml.Context, a, b ml.Tensor, t float32) (ml.Tensor, error) {
	if !slices.Equal(a.Shape(), b.Shape()) {
		return nil, &ShapeError{Op: "lerp", Want: fmt.Sprint(a.Shape()), Got: b.Shape(), Err: ErrLatentShape}
	}

	return a.Lerp(ctx, b, t), nil
}

// Steps liefert n gleichmaessige Gewichte in [0, 1] (inklusive Endpunkte)
func Steps(n int) []float32 {
	if n <= 1 {
		return []float32{0}
	}

	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i) / float32(n-1)
	}
	s[n-1] = 1
	return s
}

// InterpolateZ interpoliert im Latent-Raum: lerp(z1, z2) -> Generate
func (g *Generator) InterpolateZ(ctx ml.Context, z1, z2 ml.Tensor, steps []float32, noise NoiseSource) ([]ml.Tensor, error) {
	frames := make([]ml.Tensor, 0, len(steps))
	for _, t := range steps {
		z, err := LerpLatents(ctx, z1, z2, t)
		if err != nil {
			return nil, err
		}

		img, err := g.Generate(ctx, z, noise)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}

	return frames, nil
}

// InterpolateW interpoliert im Style-Raum: Map(z1), Map(z2) -> lerp -> Synthesize
func (g *Generator) InterpolateW(ctx ml.Context, z1, z2 ml.Tensor, steps []float32, noise NoiseSource) ([]ml.Tensor, error) {
	w1, err := g.Map(ctx, z1)
	if err != nil {
		return nil, err
	}

	w2, err := g.Map(ctx, z2)
	if err != nil {
		return nil, err
	}

	frames := make([]ml.Tensor, 0, len(steps))
	for _, t := range steps {
		w, err := LerpLatents(ctx, w1, w2, t)
		if err != nil {
			return nil, err
		}

		w, err = g.Truncate(ctx, w)
		if err != nil {
			return nil, err
		}

		img, err := g.Synthesize(ctx, w, noise)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}

	return frames, nil
}

// MixStyles uebernimmt Slots < crossover aus wa und >= crossover aus wb
func MixStyles(ctx ml.Context, wa, wb ml.Tensor, crossover int) (ml.Tensor, error) {
	shape := wa.Shape()
	if len(shape) != 3 {
		return nil, &ShapeError{Op: "mix", Want: "[N, L, D]", Got: shape, Err: ErrDlatentRank}
	}

	if !slices.Equal(shape, wb.Shape()) {
		return nil, &ShapeError{Op: "mix", Want: fmt.Sprint(shape), Got: wb.Shape(), Err: ErrStyleSlots}
	}

	switch l := shape[1]; {
	case crossover <= 0:
		return wb.Duplicate(ctx), nil
	case crossover >= l:
		return wa.Duplicate(ctx), nil
	default:
		return wa.Slice(ctx, 1, 0, crossover, 1).Concat(ctx, wb.Slice(ctx, 1, crossover, l, 1), 1), nil
	}
}
