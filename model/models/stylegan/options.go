// MODUL: options
// ZWECK: Functional Options fuer den Aufbau von Generator und Teilnetzen
// INPUT: Optionale Laufzeit-Parameter (Seed, Fused-Schwelle, Logger, Durchschnitts-Latent)
// OUTPUT: options Struct
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: log/slog, math/rand/v2
// HINWEISE: Optionen beeinflussen nur die Ausfuehrung, nie die Parameter-Topologie

package stylegan

import (
	"log/slog"
	"math/rand/v2"
)

// DefaultFusedThreshold ist die Eingangsgroesse*2, ab der der fused Upscale-Pfad laeuft
const DefaultFusedThreshold = 128

// options enthaelt die Laufzeit-Konfiguration
type options struct {
	seed           uint64
	fusedThreshold int
	logger         *slog.Logger
	avgLatent      []float32
}

// Option ist eine funktionale Option fuer den Aufbau
type Option func(*options)

func defaultOptions() options {
	return options{
		fusedThreshold: DefaultFusedThreshold,
		logger:         slog.Default(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Getrennte Zufallsstroeme pro Teilnetz
const (
	streamMapping uint64 = iota + 1
	streamSynthesis
)

// rng erstellt den Zufallsgenerator fuer die Gewichts-Initialisierung
func (o options) rng(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(o.seed, stream))
}

// WithSeed setzt den Seed fuer Initialisierung und zufaelliges Rauschen
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithFusedUpscaleThreshold setzt die Schwelle fuer den fused Upscale-Pfad.
// 0 erzwingt immer den fused Pfad, math.MaxInt schaltet ihn ab.
func WithFusedUpscaleThreshold(n int) Option {
	return func(o *options) {
		o.fusedThreshold = n
	}
}

// WithLogger setzt den Logger fuer Aufbau-Meldungen
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAverageLatent aktiviert Truncation mit dem gegebenen Durchschnitts-Latent
func WithAverageLatent(avg []float32) Option {
	return func(o *options) {
		o.avgLatent = avg
	}
}
