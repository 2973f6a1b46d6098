// synthesis.go - SynthesisNetwork: w [N, L, D] -> Bild [N, num_channels, R, R]

package stylegan

import (
	"fmt"
	"math/bits"

	"github.com/louis-chevallier/stylegan/logutil"
	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/model"
)

// SynthesisPrefix ist das Checkpoint-Praefix des Synthese-Netzes
const SynthesisPrefix = "g_synthesis."

// SynthesisNetwork verkettet log2(R)-1 Bloecke und eine 1x1 torgb-Projektion
type SynthesisNetwork struct {
	Blocks []Block          `weight:"blocks"`
	ToRGB  *EqualizedConv2d `weight:"torgb"`

	cfg   Config
	noise NoiseSource
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}

// NewSynthesisNetwork baut das Synthese-Netz unabhaengig vom Mapping-Netz
func NewSynthesisNetwork(ctx ml.Context, cfg Config, opts ...Option) (*SynthesisNetwork, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	rng := o.rng(streamSynthesis)

	a, err := cfg.Activation()
	if err != nil {
		return nil, err
	}

	act, gain, err := a.Resolve()
	if err != nil {
		return nil, err
	}

	s := &SynthesisNetwork{cfg: cfg}
	if cfg.UseNoise && cfg.RandomizeNoise {
		s.noise = NewRandomNoise(o.seed)
	}

	var last int
	for res := 2; res <= cfg.ResolutionLog2(); res++ {
		channels := cfg.NF(res - 1)
		if res == 2 {
			s.Blocks = append(s.Blocks, newInputBlock(ctx, rng, cfg, channels, act, gain))
		} else {
			b, err := newUpBlock(ctx, rng, cfg, 1<<res, last, channels, act, gain, o.fusedThreshold)
			if err != nil {
				return nil, err
			}
			s.Blocks = append(s.Blocks, b)
		}
		last = channels
	}

	s.ToRGB = NewEqualizedConv2d(ctx, rng, last, cfg.NumChannels, convOptions(cfg, 1, 1))

	o.logger.Debug("synthesis network built", "resolution", cfg.Resolution, "blocks", len(s.Blocks), "slots", cfg.NumLayers(), "fused_threshold", o.fusedThreshold)
	return s, nil
}

// Config gibt die Konfiguration zurueck
func (s *SynthesisNetwork) Config() Config {
	return s.cfg
}

// NumBlocks gibt die Anzahl der Bloecke zurueck
func (s *SynthesisNetwork) NumBlocks() int {
	return len(s.Blocks)
}

// NumLayers gibt die Anzahl der erwarteten Style-Slots zurueck
func (s *SynthesisNetwork) NumLayers() int {
	return 2 * len(s.Blocks)
}

// Forward rendert das Bild aus w [N, L, D]. noise darf nil sein, wenn
// randomize_noise aktiv ist oder kein Rauschen verwendet wird.
func (s *SynthesisNetwork) Forward(ctx ml.Context, w ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	shape := w.Shape()
	switch {
	case len(shape) != 3:
		return nil, &ShapeError{Op: "synthesis", Want: "[N, L, D]", Got: shape, Err: ErrDlatentRank}
	case shape[1] != s.NumLayers():
		return nil, &ShapeError{Op: "synthesis", Want: fmt.Sprintf("[N, %d, D]", s.NumLayers()), Got: shape, Err: ErrStyleSlots}
	case shape[2] != s.cfg.DlatentSize:
		return nil, &ShapeError{Op: "synthesis", Want: fmt.Sprintf("[N, L, %d]", s.cfg.DlatentSize), Got: shape, Err: ErrLatentShape}
	}

	if s.cfg.UseNoise && noise == nil {
		if s.noise == nil {
			return nil, ErrNoiseSourceRequired
		}
		noise = s.noise
	}

	n, d := shape[0], shape[2]
	slot := func(i int) ml.Tensor {
		return w.Slice(ctx, 1, i, i+1, 1).Reshape(ctx, n, d)
	}

	var x ml.Tensor
	for i, b := range s.Blocks {
		var err error
		x, err = b.Forward(ctx, x, slot(2*i), slot(2*i+1), noise)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", b.ParamName(), err)
		}

		logutil.Trace("synthesis block", "name", b.ParamName(), "x", x)
	}

	return s.ToRGB.Forward(ctx, x), nil
}

// Manifest gibt die erwarteten Tensoren mit Praefix g_synthesis. zurueck
func (s *SynthesisNetwork) Manifest() *model.Manifest {
	return model.ManifestOf(s, SynthesisPrefix)
}

// Load laedt die Parameter aus src
func (s *SynthesisNetwork) Load(src model.WeightSource) error {
	return model.Load(s, SynthesisPrefix, src)
}
