// generate.go - Ausfuehrung der Anfragen auf dem geladenen Generator

package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/model/models/stylegan"
)

// Result enthaelt die Ausgaben einer Anfrage
type Result struct {
	// Images [N, C, R, R] im rohen Generator-Wertebereich
	Images ml.Tensor
	// Seeds pro Sample; leer, wenn Latents vorgegeben waren
	Seeds []uint64
	// Dlatents [N, L, D] nach der Truncation
	Dlatents ml.Tensor
}

// Generate zieht Latents und rendert Bilder
func (r *Runner) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	z, seeds, err := r.latents(req.Sampling)
	if err != nil {
		return nil, err
	}

	g, err := r.generator(req.Truncation)
	if err != nil {
		return nil, err
	}

	noise, err := r.noise(req.Noise, req.Seed)
	if err != nil {
		return nil, err
	}

	w, err := g.Map(r.ctx, z)
	if err != nil {
		return nil, err
	}

	if w, err = g.Truncate(r.ctx, w); err != nil {
		return nil, err
	}

	if req.Mix != nil {
		if w, err = r.mix(g, w, *req.Mix); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := g.Synthesize(r.ctx, w, noise)
	if err != nil {
		return nil, err
	}

	slog.Debug("generate", "batch", z.Dim(0), "seed", req.Seed, "noise", req.Noise.Mode, "duration", time.Since(start))
	return &Result{Images: images, Seeds: seeds, Dlatents: w}, nil
}

// Map berechnet nur die (ggf. trunkierten) Style-Latents
func (r *Runner) Map(ctx context.Context, req MapRequest) (*Result, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	z, seeds, err := r.latents(req.Sampling)
	if err != nil {
		return nil, err
	}

	g, err := r.generator(req.Truncation)
	if err != nil {
		return nil, err
	}

	w, err := g.Map(r.ctx, z)
	if err != nil {
		return nil, err
	}

	if w, err = g.Truncate(r.ctx, w); err != nil {
		return nil, err
	}

	return &Result{Seeds: seeds, Dlatents: w}, nil
}

// Synthesize rendert Bilder aus vorgegebenen Style-Latents
func (r *Runner) Synthesize(ctx context.Context, req SynthesizeRequest) (*Result, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	w, err := r.dlatents(req.Dlatents)
	if err != nil {
		return nil, err
	}

	noise, err := r.noise(req.Noise, 0)
	if err != nil {
		return nil, err
	}

	images, err := r.gen.Synthesize(r.ctx, w, noise)
	if err != nil {
		return nil, err
	}

	return &Result{Images: images, Dlatents: w}, nil
}

// Interpolate rendert Frames zwischen den Latents zweier Seeds
func (r *Runner) Interpolate(ctx context.Context, req InterpolateRequest) ([]ml.Tensor, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.Frames < 2 {
		return nil, fmt.Errorf("%w: frames must be >= 2, got %d", ErrInvalidRequest, req.Frames)
	}

	if req.Frames > r.maxBatch {
		return nil, fmt.Errorf("%w: %d frames, max %d", ErrBatchTooLarge, req.Frames, r.maxBatch)
	}

	g, err := r.generator(req.Truncation)
	if err != nil {
		return nil, err
	}

	// ueber alle Frames gleiches Rauschen, sonst flackert die Sequenz
	if req.Noise.Mode == NoiseDefault {
		req.Noise.Mode = NoiseFixed
	}

	noise, err := r.noise(req.Noise, req.From)
	if err != nil {
		return nil, err
	}

	z1 := g.SampleLatents(r.ctx, seedRNG(req.From), 1)
	z2 := g.SampleLatents(r.ctx, seedRNG(req.To), 1)
	steps := stylegan.Steps(req.Frames)

	switch req.Space {
	case SpaceZ:
		return g.InterpolateZ(r.ctx, z1, z2, steps, noise)
	case SpaceW, "":
		return g.InterpolateW(r.ctx, z1, z2, steps, noise)
	default:
		return nil, fmt.Errorf("%w: unknown space %q", ErrInvalidRequest, req.Space)
	}
}

// ============================================================================
// Hilfsfunktionen
// ============================================================================

// seedRNG liefert den Zufallsgenerator fuer die Latents eines Seeds
func seedRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x6c6174656e74))
}

// latents baut z [N, latent_size] aus Vorgabe oder Seeds
func (r *Runner) latents(s Sampling) (ml.Tensor, []uint64, error) {
	size := r.gen.Config().LatentSize

	if len(s.Latents) > 0 {
		if len(s.Latents) > r.maxBatch {
			return nil, nil, fmt.Errorf("%w: %d latents, max %d", ErrBatchTooLarge, len(s.Latents), r.maxBatch)
		}

		data := make([]float32, 0, len(s.Latents)*size)
		for i, z := range s.Latents {
			if len(z) != size {
				return nil, nil, &stylegan.ShapeError{Op: fmt.Sprintf("latent %d", i), Want: fmt.Sprintf("[%d]", size), Got: []int{len(z)}, Err: stylegan.ErrLatentShape}
			}
			data = append(data, z...)
		}

		return r.ctx.FromFloats(data, len(s.Latents), size), nil, nil
	}

	n := s.Batch
	if n == 0 {
		n = 1
	}

	switch {
	case n < 0:
		return nil, nil, fmt.Errorf("%w: batch must be positive, got %d", ErrInvalidRequest, n)
	case n > r.maxBatch:
		return nil, nil, fmt.Errorf("%w: %d samples, max %d", ErrBatchTooLarge, n, r.maxBatch)
	}

	// pro Sample eigener Seed: Sample i haengt nicht von der Batch-Groesse ab
	seeds := make([]uint64, n)
	data := make([]float32, 0, n*size)
	for i := range seeds {
		seeds[i] = s.Seed + uint64(i)
		data = append(data, stylegan.SampleLatents(r.ctx, seedRNG(seeds[i]), 1, size).Floats()...)
	}

	return r.ctx.FromFloats(data, n, size), seeds, nil
}

// dlatents baut w [N, L, D] und prueft die Form
func (r *Runner) dlatents(w [][][]float32) (ml.Tensor, error) {
	cfg := r.gen.Config()
	l, d := r.gen.Synthesis.NumLayers(), cfg.DlatentSize

	switch {
	case len(w) == 0:
		return nil, fmt.Errorf("%w: no dlatents", ErrInvalidRequest)
	case len(w) > r.maxBatch:
		return nil, fmt.Errorf("%w: %d dlatents, max %d", ErrBatchTooLarge, len(w), r.maxBatch)
	}

	data := make([]float32, 0, len(w)*l*d)
	for i, sample := range w {
		if len(sample) != l {
			return nil, &stylegan.ShapeError{Op: fmt.Sprintf("dlatents %d", i), Want: fmt.Sprintf("[%d, %d]", l, d), Got: []int{len(sample)}, Err: stylegan.ErrStyleSlots}
		}

		for _, slot := range sample {
			if len(slot) != d {
				return nil, &stylegan.ShapeError{Op: fmt.Sprintf("dlatents %d", i), Want: fmt.Sprintf("[%d, %d]", l, d), Got: []int{l, len(slot)}, Err: stylegan.ErrLatentShape}
			}
			data = append(data, slot...)
		}
	}

	return r.ctx.FromFloats(data, len(w), l, d), nil
}

// mix berechnet die Style-Latents der Mix-Seeds und kombiniert sie mit w
func (r *Runner) mix(g *stylegan.Generator, w ml.Tensor, m Mixing) (ml.Tensor, error) {
	if l := w.Dim(1); m.Crossover < 0 || m.Crossover > l {
		return nil, fmt.Errorf("%w: crossover must be in [0, %d], got %d", ErrInvalidRequest, l, m.Crossover)
	}

	z, _, err := r.latents(Sampling{Seed: m.Seed, Batch: w.Dim(0)})
	if err != nil {
		return nil, err
	}

	wb, err := g.Map(r.ctx, z)
	if err != nil {
		return nil, err
	}

	if wb, err = g.Truncate(r.ctx, wb); err != nil {
		return nil, err
	}

	return stylegan.MixStyles(r.ctx, w, wb, m.Crossover)
}

// generator liefert den Generator, ggf. mit ueberschriebener Truncation.
// Die Kopie teilt alle Gewichte mit dem Original.
func (r *Runner) generator(t Truncation) (*stylegan.Generator, error) {
	if !t.override() {
		return r.gen, nil
	}

	if r.avg == nil {
		return nil, ErrNoAverageLatent
	}

	cfg := r.gen.Config()
	psi, cutoff := cfg.TruncationPsi, cfg.TruncationCutoff
	if t.Psi != nil {
		psi = *t.Psi
	}
	if t.Cutoff != nil {
		cutoff = *t.Cutoff
	}

	if psi < 0 || psi > 1 {
		return nil, fmt.Errorf("%w: psi must be in [0, 1], got %v", ErrInvalidRequest, psi)
	}

	g := *r.gen
	g.Truncation = stylegan.NewTruncation(r.ctx, r.avg, cutoff, psi)
	return &g, nil
}

// noise loest den Modus zu einer Rauschquelle auf
func (r *Runner) noise(n Noise, seed uint64) (stylegan.NoiseSource, error) {
	if !r.gen.Config().UseNoise {
		return nil, nil
	}

	if n.Seed != 0 {
		seed = n.Seed
	}

	mode := n.Mode
	if mode == NoiseDefault {
		mode = NoiseFixed
		if r.gen.Config().RandomizeNoise {
			mode = NoiseRandom
		}
	}

	switch mode {
	case NoiseRandom:
		// Sample i verwendet seed+i wie bei den Latents
		return stylegan.SampleNoise{Seed: seed}, nil
	case NoiseFixed:
		return stylegan.NewFixedNoise(seed), nil
	case NoiseZero:
		return zeroNoise{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownNoiseMode, mode)
	}
}

// zeroNoise liefert Nullen; die Rausch-Gewichte haben dann keinen Einfluss
type zeroNoise struct{}

func (zeroNoise) Noise(ctx ml.Context, _, _, height, width int) (ml.Tensor, error) {
	return ctx.Zeros(ml.DTypeF32, 1, 1, height, width), nil
}
