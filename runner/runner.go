// runner.go - Laedt einen Generator und fuehrt Anfragen seriell bzw. begrenzt parallel aus
//
// Enthaelt:
// - Params: Lade-Parameter (Preset, Checkpoint, Threads, ...)
// - ParamsFromEnv: Parameter aus STYLEGAN_* Variablen
// - Runner: Generator + Rechen-Kontext + Semaphore
// - Load: Baut den Generator und laedt optional Gewichte

package runner

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/louis-chevallier/stylegan/convert"
	"github.com/louis-chevallier/stylegan/envconfig"
	"github.com/louis-chevallier/stylegan/ml"
	_ "github.com/louis-chevallier/stylegan/ml/backend"
	"github.com/louis-chevallier/stylegan/model"
	"github.com/louis-chevallier/stylegan/model/models/stylegan"
)

// TruncationPrefix ist der Name-Praefix des Durchschnitts-Latents in Checkpoints
const TruncationPrefix = "truncation."

// Params beschreibt, wie ein Runner geladen wird
type Params struct {
	// Preset ist der Name der Netz-Konfiguration
	Preset string
	// ConfigPath ueberschreibt Preset-Felder aus einer JSON-Datei
	ConfigPath string
	// Checkpoint ist ein .pt/.safetensors Pfad; leer = zufaellige Gewichte
	Checkpoint string
	// AvgLatent aktiviert die Truncation
	AvgLatent string

	Backend        string
	NumThreads     int
	NumParallel    int
	MaxBatch       int
	FusedThreshold int
	Seed           uint64
	RandomizeNoise bool
}

// ParamsFromEnv liest die Parameter aus der Umgebung
func ParamsFromEnv() Params {
	return Params{
		Preset:         envconfig.Preset(),
		Checkpoint:     envconfig.Checkpoint(),
		AvgLatent:      envconfig.AvgLatent(),
		NumThreads:     envconfig.NumThreads(),
		NumParallel:    int(envconfig.NumParallel()),
		MaxBatch:       int(envconfig.MaxBatch()),
		FusedThreshold: int(envconfig.FusedThreshold()),
		RandomizeNoise: envconfig.RandomizeNoise(true),
	}
}

// Runner haelt einen geladenen Generator
type Runner struct {
	backend ml.Backend
	ctx     ml.Context
	gen     *stylegan.Generator
	avg     []float32

	preset   string
	maxBatch int
	sem      *semaphore.Weighted
}

// DefaultMaxBatch gilt, wenn Params.MaxBatch nicht gesetzt ist
const DefaultMaxBatch = 16

// Config loest Preset und ConfigPath zu einer Konfiguration auf
func (p Params) Config() (stylegan.Config, error) {
	cfg, err := stylegan.Preset(p.Preset)
	if err != nil {
		return stylegan.Config{}, err
	}

	cfg.RandomizeNoise = p.RandomizeNoise

	if p.ConfigPath != "" {
		b, err := os.ReadFile(p.ConfigPath)
		if err != nil {
			return stylegan.Config{}, err
		}

		if cfg, err = stylegan.ParseConfig(b, cfg); err != nil {
			return stylegan.Config{}, fmt.Errorf("%s: %w", p.ConfigPath, err)
		}
	}

	return cfg, nil
}

// Load baut den Generator gemaess p
func Load(p Params) (*Runner, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}

	backend, err := ml.NewBackend(p.Backend, ml.BackendParams{NumThreads: p.NumThreads})
	if err != nil {
		return nil, err
	}

	r := &Runner{
		backend:  backend,
		ctx:      backend.NewContext(),
		preset:   p.Preset,
		maxBatch: cmp.Or(p.MaxBatch, DefaultMaxBatch),
		sem:      semaphore.NewWeighted(int64(max(p.NumParallel, 1))),
	}

	opts := []stylegan.Option{stylegan.WithSeed(p.Seed)}
	if p.FusedThreshold > 0 {
		opts = append(opts, stylegan.WithFusedUpscaleThreshold(p.FusedThreshold))
	}

	if p.AvgLatent != "" {
		r.avg, err = convert.ReadAverageLatent(p.AvgLatent, cfg.DlatentSize)
		if err != nil {
			r.Close()
			return nil, err
		}
		opts = append(opts, stylegan.WithAverageLatent(r.avg))
	}

	r.gen, err = stylegan.New(r.ctx, cfg, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}

	if p.Checkpoint != "" {
		if err := r.loadCheckpoint(p.Checkpoint); err != nil {
			r.Close()
			return nil, err
		}
	} else {
		slog.Warn("no checkpoint configured, using randomly initialized weights", "preset", p.Preset)
	}

	return r, nil
}

// loadCheckpoint liest, prueft und uebernimmt die Gewichte
func (r *Runner) loadCheckpoint(path string) error {
	ckpt, err := convert.Open(path)
	if err != nil {
		return err
	}

	// ein mitgelieferter Durchschnitts-Latent ist kein Fehler
	manifest := r.gen.Manifest()
	manifest.Set(TruncationPrefix+convert.AvgLatentSuffix, model.Entry{Shape: []int{r.gen.Config().DlatentSize}, Buffer: true})

	if err := convert.Validate(ckpt, manifest); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := r.gen.Load(ckpt); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if r.avg == nil {
		if avg, err := convert.FindAverageLatent(ckpt); err == nil && len(avg) == r.gen.Config().DlatentSize {
			cfg := r.gen.Config()
			r.avg = avg
			r.gen.Truncation = stylegan.NewTruncation(r.ctx, avg, cfg.TruncationCutoff, cfg.TruncationPsi)
			slog.Info("average latent found in checkpoint, truncation enabled")
		}
	}

	slog.Info("checkpoint loaded", "path", path, "tensors", ckpt.Len())
	return nil
}

// New erstellt einen Runner um einen bereits gebauten Generator (z.B. in Tests).
// avg darf nil sein; dann sind keine Truncation-Overrides moeglich.
func New(ctx ml.Context, gen *stylegan.Generator, avg []float32, p Params) *Runner {
	return &Runner{
		ctx:      ctx,
		gen:      gen,
		avg:      avg,
		preset:   p.Preset,
		maxBatch: cmp.Or(p.MaxBatch, DefaultMaxBatch),
		sem:      semaphore.NewWeighted(int64(max(p.NumParallel, 1))),
	}
}

// MaxBatch gibt die maximale Anzahl Samples pro Anfrage zurueck
func (r *Runner) MaxBatch() int {
	return r.maxBatch
}

// Generator gibt den geladenen Generator zurueck
func (r *Runner) Generator() *stylegan.Generator {
	return r.gen
}

// Context gibt den Rechen-Kontext zurueck
func (r *Runner) Context() ml.Context {
	return r.ctx
}

// Preset gibt den Namen der Konfiguration zurueck
func (r *Runner) Preset() string {
	return r.preset
}

// HasAverageLatent meldet, ob Truncation moeglich ist
func (r *Runner) HasAverageLatent() bool {
	return r.avg != nil
}

// Checkpoint exportiert die geladenen Gewichte unter kanonischen Namen,
// inklusive Durchschnitts-Latent
func (r *Runner) Checkpoint() *convert.Checkpoint {
	c := convert.FromParams(r.gen.Params())
	if r.avg != nil {
		c.Set(TruncationPrefix+convert.AvgLatentSuffix, convert.Tensor{Shape: []int{len(r.avg)}, Data: r.avg, DType: "F32"})
	}
	return c
}

// acquire reserviert einen Ausfuehrungs-Slot
func (r *Runner) acquire(ctx context.Context) (func(), error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	return func() { r.sem.Release(1) }, nil
}

// Close gibt Kontext und Backend frei
func (r *Runner) Close() {
	if r.ctx != nil {
		r.ctx.Close()
	}
	if r.backend != nil {
		r.backend.Close()
	}
}
