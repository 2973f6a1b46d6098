// MODUL: generator
// ZWECK: Zusammensetzung aus Mapping- und Synthese-Netz mit optionaler Truncation
// INPUT: Latents z [N, latent_size] bzw. Style-Latents w [N, L, D]
// OUTPUT: Bilder [N, num_channels, R, R] im rohen Generator-Wertebereich
// NEBENEFFEKTE: Keine (ausser gezogenem Zufallsrauschen)
// ABHAENGIGKEITEN: ml, model
// HINWEISE: Beide Teilnetze sind unabhaengig konstruierbar und ladbar

package stylegan

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/model"
)

// Generator verbindet MappingNetwork, Truncation und SynthesisNetwork
type Generator struct {
	Mapping    *MappingNetwork
	Synthesis  *SynthesisNetwork
	Truncation *Truncation

	cfg Config
}

// New baut einen vollstaendigen Generator aus cfg
func New(ctx ml.Context, cfg Config, opts ...Option) (*Generator, error) {
	o := applyOptions(opts)

	mapping, err := NewMappingNetwork(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	synthesis, err := NewSynthesisNetwork(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	g := &Generator{Mapping: mapping, Synthesis: synthesis, cfg: cfg}

	if o.avgLatent != nil {
		if len(o.avgLatent) != cfg.DlatentSize {
			return nil, &ConfigError{Field: "avg_latent", Value: len(o.avgLatent), Err: ErrLatentShape}
		}
		g.Truncation = NewTruncation(ctx, o.avgLatent, cfg.TruncationCutoff, cfg.TruncationPsi)
	}

	o.logger.Info("generator built", "resolution", cfg.Resolution, "params", g.Manifest().NumElements(), "truncation", g.Truncation != nil)
	return g, nil
}

// Config gibt die Konfiguration zurueck
func (g *Generator) Config() Config {
	return g.cfg
}

// Map berechnet die gebroadcasteten Style-Latents [N, L, D] (ohne Truncation)
func (g *Generator) Map(ctx ml.Context, z ml.Tensor) (ml.Tensor, error) {
	return g.Mapping.Forward(ctx, z)
}

// Truncate wendet die Truncation an, falls konfiguriert
func (g *Generator) Truncate(ctx ml.Context, w ml.Tensor) (ml.Tensor, error) {
	if g.Truncation == nil {
		return w, nil
	}

	return g.Truncation.Forward(ctx, w)
}

// Synthesize rendert Bilder aus w [N, L, D]
func (g *Generator) Synthesize(ctx ml.Context, w ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	return g.Synthesis.Forward(ctx, w, noise)
}

// Generate fuehrt z -> w -> [Truncation] -> Bild aus
func (g *Generator) Generate(ctx ml.Context, z ml.Tensor, noise NoiseSource) (ml.Tensor, error) {
	w, err := g.Map(ctx, z)
	if err != nil {
		return nil, err
	}

	w, err = g.Truncate(ctx, w)
	if err != nil {
		return nil, err
	}

	return g.Synthesize(ctx, w, noise)
}

// Manifest gibt alle erwarteten Tensoren beider Teilnetze zurueck
func (g *Generator) Manifest() *model.Manifest {
	m := g.Mapping.Manifest()
	m.Merge(g.Synthesis.Manifest())
	return m
}

// Params gibt alle Parameter mit vollstaendigen Namen zurueck
func (g *Generator) Params() []model.Param {
	return append(model.Params(g.Mapping, MappingPrefix), model.Params(g.Synthesis, SynthesisPrefix)...)
}

// Load laedt beide Teilnetze aus src; Fehler beider Netze werden gesammelt
func (g *Generator) Load(src model.WeightSource) error {
	return errors.Join(
		wrapLoad("mapping", g.Mapping.Load(src)),
		wrapLoad("synthesis", g.Synthesis.Load(src)),
	)
}

func wrapLoad(name string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// SampleLatents zieht n Latents ~ N(0, 1) der Groesse latent_size
func (g *Generator) SampleLatents(ctx ml.Context, rng *rand.Rand, n int) ml.Tensor {
	return SampleLatents(ctx, rng, n, g.cfg.LatentSize)
}

// SampleLatents zieht n Vektoren ~ N(0, 1) der Laenge size
func SampleLatents(ctx ml.Context, rng *rand.Rand, n, size int) ml.Tensor {
	return ctx.FromFloats(gaussian(rng, n*size, 1), n, size)
}
