// upscale.go - Nearest-Neighbor Upsampling

package nn

import "github.com/louis-chevallier/stylegan/ml"

// Upscale repliziert jedes Pixel in einen Factor x Factor Block
type Upscale struct {
	Factor int
	Gain   float64
}

// NewUpscale erstellt ein Upscale mit Gain 1
func NewUpscale(factor int) *Upscale {
	return &Upscale{Factor: factor, Gain: 1}
}

// Forward erwartet [N, C, H, W]
func (u *Upscale) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	if u.Gain != 1 {
		t = t.Scale(ctx, u.Gain)
	}

	if u.Factor == 1 {
		return t
	}

	shape := t.Shape()
	return t.Interpolate(ctx, [4]int{shape[0], shape[1], shape[2] * u.Factor, shape[3] * u.Factor}, ml.SamplingModeNearest)
}
