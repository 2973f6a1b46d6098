// requests.go - Anfrage-Typen und Fehler des Runners

package runner

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest   = errors.New("runner: invalid request")
	ErrBatchTooLarge    = errors.New("runner: batch too large")
	ErrNoAverageLatent  = errors.New("runner: truncation requested but no average latent is loaded")
	ErrUnknownNoiseMode = errors.New("runner: unknown noise mode")
)

// NoiseMode waehlt die Rauschquelle einer Anfrage
type NoiseMode string

const (
	// NoiseDefault folgt randomize_noise der Konfiguration
	NoiseDefault NoiseMode = ""
	// NoiseRandom zieht pro Aufruf frisches Rauschen
	NoiseRandom NoiseMode = "random"
	// NoiseFixed verwendet pro Schicht einen festen Puffer fuer alle Samples
	NoiseFixed NoiseMode = "fixed"
	// NoiseZero schaltet das Rauschen effektiv ab
	NoiseZero NoiseMode = "zero"
)

// ParseNoiseMode prueft einen Modus-Namen
func ParseNoiseMode(s string) (NoiseMode, error) {
	switch m := NoiseMode(s); m {
	case NoiseDefault, NoiseRandom, NoiseFixed, NoiseZero:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownNoiseMode, s)
	}
}

// Truncation ueberschreibt psi und cutoff der Konfiguration.
// Beide nil = Truncation des Generators (falls vorhanden).
type Truncation struct {
	Psi    *float64
	Cutoff *int
}

func (t Truncation) override() bool {
	return t.Psi != nil || t.Cutoff != nil
}

// Sampling beschreibt, woher die Latents z kommen
type Sampling struct {
	// Seed des ersten Samples; Sample i verwendet Seed+i
	Seed uint64
	// Batch ist die Anzahl Samples, wenn Latents leer ist
	Batch int
	// Latents ueberschreibt das Ziehen (je latent_size Werte)
	Latents [][]float32
}

// Noise beschreibt die Rauschquelle
type Noise struct {
	Mode NoiseMode
	// Seed der Rauschquelle; 0 = Seed der Anfrage
	Seed uint64
}

// Mixing ersetzt die Style-Slots ab Crossover durch die eines zweiten Seeds
type Mixing struct {
	// Seed des ersten Mix-Samples; Sample i mischt mit Seed+i
	Seed      uint64
	Crossover int
}

// GenerateRequest erzeugt Bilder aus z
type GenerateRequest struct {
	Sampling
	Truncation
	Noise Noise
	// Mix ist optional; nil = kein Style-Mixing
	Mix *Mixing
}

// MapRequest berechnet Style-Latents w aus z
type MapRequest struct {
	Sampling
	Truncation
}

// SynthesizeRequest rendert Bilder aus w [N][L][D]
type SynthesizeRequest struct {
	Dlatents [][][]float32
	Noise    Noise
}

// Space ist der Interpolations-Raum
type Space string

const (
	SpaceZ Space = "z"
	SpaceW Space = "w"
)

// InterpolateRequest interpoliert zwischen zwei Seeds
type InterpolateRequest struct {
	From, To uint64
	Frames   int
	Space    Space
	Truncation
	Noise Noise
}
