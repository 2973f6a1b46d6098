// blocks.go - Synthese-Bloecke: InputBlock (4x4) und UpBlock (Verdopplung)
// Jeder Block verbraucht genau zwei aufeinanderfolgende Style-Slots.

package stylegan

import (
	"fmt"
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/nn"
)

// Block ist eine Aufloesungsstufe des Synthese-Netzes
type Block interface {
	// ParamName ist der Checkpoint-Name, z.B. "8x8"
	ParamName() string
	Resolution() int
	Channels() int

	// Forward erhaelt die vorige Feature-Map (nil beim InputBlock) und zwei Slots [N, D]
	Forward(ctx ml.Context, x, w0, w1 ml.Tensor, noise NoiseSource) (ml.Tensor, error)
}

// blockName formatiert "{r}x{r}"
func blockName(res int) string {
	return fmt.Sprintf("%dx%d", res, res)
}

// convOptions liefert die gemeinsamen Faltungs-Optionen aus cfg
func convOptions(cfg Config, gain float64, k int) ConvOptions {
	return ConvOptions{
		LinearOptions: LinearOptions{Gain: gain, UseWscale: cfg.UseWscale, LRMul: 1, Bias: true},
		Kernel:        k,
	}
}

// ============================================================================
// InputBlock - Basis 4x4
// ============================================================================

// InputBlock erzeugt die 4x4 Basis aus einer gelernten Konstante oder einer Dense-Projektion
type InputBlock struct {
	Const ml.Tensor        `weight:"const"`
	Bias  ml.Tensor        `weight:"bias"`
	Dense *EqualizedLinear `weight:"dense"`
	Epi1  *LayerEpilogue   `weight:"epi1"`
	Conv  *EqualizedConv2d `weight:"conv"`
	Epi2  *LayerEpilogue   `weight:"epi2"`

	nf int
}

func newInputBlock(ctx ml.Context, rng *rand.Rand, cfg Config, nf int, act nn.ActivationFunc, gain float64) *InputBlock {
	b := &InputBlock{nf: nf}

	if cfg.ConstInputLayer {
		ones := make([]float32, nf*16)
		for i := range ones {
			ones[i] = 1
		}
		b.Const = ctx.FromFloats(ones, 1, nf, 4, 4)
		b.Bias = ctx.FromFloats(ones[:nf], nf)
	} else {
		b.Dense = NewEqualizedLinear(ctx, rng, cfg.DlatentSize, nf*16, LinearOptions{
			Gain:      gain / 4,
			UseWscale: cfg.UseWscale,
			LRMul:     1,
			Bias:      true,
		})
	}

	b.Epi1 = newLayerEpilogue(ctx, rng, cfg, nf, 0, act)
	b.Conv = NewEqualizedConv2d(ctx, rng, nf, nf, convOptions(cfg, gain, 3))
	b.Epi2 = newLayerEpilogue(ctx, rng, cfg, nf, 1, act)
	return b
}

func (b *InputBlock) ParamName() string { return blockName(4) }
func (b *InputBlock) Resolution() int   { return 4 }
func (b *InputBlock) Channels() int     { return b.nf }

// Forward ignoriert x und baut die Basis aus w0
func (b *InputBlock) Forward(ctx ml.Context, _, w0, w1 ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	n := w0.Dim(0)

	var x ml.Tensor
	if b.Const != nil {
		x = b.Const.Add(ctx, b.Bias.Reshape(ctx, 1, -1, 1, 1)).Repeat(ctx, 0, n)
	} else {
		x = b.Dense.Forward(ctx, w0).Reshape(ctx, n, b.nf, 4, 4)
	}

	x, err := b.Epi1.Forward(ctx, x, w0, noise)
	if err != nil {
		return nil, err
	}

	x = b.Conv.Forward(ctx, x)
	return b.Epi2.Forward(ctx, x, w1, noise)
}

// ============================================================================
// UpBlock - Verdopplung der Aufloesung
// ============================================================================

// UpBlock verdoppelt die Aufloesung: conv0_up (mit Blur) -> epi1 -> conv1 -> epi2
type UpBlock struct {
	Conv0Up *EqualizedConv2d `weight:"conv0_up"`
	Epi1    *LayerEpilogue   `weight:"epi1"`
	Conv1   *EqualizedConv2d `weight:"conv1"`
	Epi2    *LayerEpilogue   `weight:"epi2"`

	res int
	nf  int
}

func newUpBlock(ctx ml.Context, rng *rand.Rand, cfg Config, res, in, out int, act nn.ActivationFunc, gain float64, threshold int) (*UpBlock, error) {
	up := convOptions(cfg, gain, 3)
	up.Upscale = true
	up.InputRes = res / 2
	up.FusedThreshold = threshold

	if len(cfg.BlurFilter) > 0 {
		blur, err := nn.NewBlur(ctx, cfg.BlurFilter, true, false)
		if err != nil {
			return nil, &ConfigError{Field: "blur_filter", Value: cfg.BlurFilter, Err: ErrInvalidConfig}
		}
		up.Intermediate = blur
	}

	// Slots 2i und 2i+1 mit i = log2(res) - 2
	slot := 2 * (log2(res) - 2)

	b := &UpBlock{res: res, nf: out}
	b.Conv0Up = NewEqualizedConv2d(ctx, rng, in, out, up)
	b.Epi1 = newLayerEpilogue(ctx, rng, cfg, out, slot, act)
	b.Conv1 = NewEqualizedConv2d(ctx, rng, out, out, convOptions(cfg, gain, 3))
	b.Epi2 = newLayerEpilogue(ctx, rng, cfg, out, slot+1, act)
	return b, nil
}

func (b *UpBlock) ParamName() string { return blockName(b.res) }
func (b *UpBlock) Resolution() int   { return b.res }
func (b *UpBlock) Channels() int     { return b.nf }

// Forward verdoppelt x [N, C, r/2, r/2] zu [N, nf, r, r]
func (b *UpBlock) Forward(ctx ml.Context, x, w0, w1 ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	x = b.Conv0Up.Forward(ctx, x)

	x, err := b.Epi1.Forward(ctx, x, w0, noise)
	if err != nil {
		return nil, err
	}

	x = b.Conv1.Forward(ctx, x)
	return b.Epi2.Forward(ctx, x, w1, noise)
}
