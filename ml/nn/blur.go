// blur.go - Fester separierbarer Tiefpass-Filter (depthwise)

package nn

import (
	"fmt"

	"github.com/louis-chevallier/stylegan/ml"
)

// DefaultBlurTaps ist der Standard-Filter [1, 2, 1]
var DefaultBlurTaps = []float32{1, 2, 1}

// Blur wendet outer(taps, taps) auf jeden Kanal einzeln an
type Blur struct {
	// Kernel ist nicht gelernt, steht aber als Buffer im Checkpoint
	Kernel ml.Tensor `weight:"kernel,buffer"`

	Stride int
}

// NewBlur erstellt den Kernel [1, 1, k, k] aus den Taps
func NewBlur(ctx ml.Context, taps []float32, normalize, flip bool) (*Blur, error) {
	k := len(taps)
	if k == 0 || k%2 == 0 {
		return nil, fmt.Errorf("nn: blur needs an odd number of taps, got %d", k)
	}

	kernel := make([]float32, k*k)
	var sum float32
	for i, a := range taps {
		for j, b := range taps {
			kernel[i*k+j] = a * b
			sum += a * b
		}
	}

	if normalize {
		if sum == 0 {
			return nil, fmt.Errorf("nn: blur taps %v sum to zero", taps)
		}
		for i := range kernel {
			kernel[i] /= sum
		}
	}

	t := ctx.FromFloats(kernel, 1, 1, k, k)
	if flip {
		t = t.Flip(ctx, 2, 3)
	}

	return &Blur{Kernel: t, Stride: 1}, nil
}

// Forward filtert x [N, C, H, W] mit Null-Padding (k-1)/2
func (b *Blur) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	k := b.Kernel.Dim(2)
	kernel := b.Kernel.Repeat(ctx, 0, t.Dim(1))
	pad := (k - 1) / 2
	return kernel.Conv2DDepthwise(ctx, t, b.Stride, b.Stride, pad, pad)
}
