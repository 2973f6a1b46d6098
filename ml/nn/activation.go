// activation.go - Aktivierungsfunktionen als Enum
// Jede Aktivierung wird einmalig beim Modellaufbau zu (Funktion, Gain) aufgeloest.

package nn

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/louis-chevallier/stylegan/ml"
)

// ErrUnknownActivation wird fuer unbekannte Aktivierungsnamen zurueckgegeben
var ErrUnknownActivation = errors.New("nn: unknown activation")

// Activation waehlt die Nichtlinearitaet eines Netzwerks
type Activation int

const (
	// ActivationLReLU ist Leaky-ReLU mit Steigung 0.2
	ActivationLReLU Activation = iota
	ActivationReLU
)

// LeakySlope ist die negative Steigung von ActivationLReLU
const LeakySlope = 0.2

// ActivationFunc wendet eine Aktivierung auf einen Tensor an
type ActivationFunc func(ctx ml.Context, t ml.Tensor) ml.Tensor

type activationEntry struct {
	name string
	fn   ActivationFunc
	gain float64
}

var activations = map[Activation]activationEntry{
	ActivationReLU: {
		name: "relu",
		fn:   func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.RELU(ctx) },
		gain: math.Sqrt2,
	},
	ActivationLReLU: {
		name: "lrelu",
		fn:   func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.LeakyRELU(ctx, LeakySlope) },
		gain: math.Sqrt2,
	},
}

// ParseActivation loest einen Namen ("relu", "lrelu") auf
func ParseActivation(s string) (Activation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for a, e := range activations {
		if e.name == name {
			return a, nil
		}
	}

	return 0, fmt.Errorf("%w %q", ErrUnknownActivation, s)
}

// Resolve liefert Funktion und He-Gain der Aktivierung
func (a Activation) Resolve() (ActivationFunc, float64, error) {
	e, ok := activations[a]
	if !ok {
		return nil, 0, fmt.Errorf("%w %d", ErrUnknownActivation, int(a))
	}

	return e.fn, e.gain, nil
}

func (a Activation) String() string {
	if e, ok := activations[a]; ok {
		return e.name
	}

	return fmt.Sprintf("Activation(%d)", int(a))
}

// MarshalText implementiert encoding.TextMarshaler
func (a Activation) MarshalText() ([]byte, error) {
	if _, ok := activations[a]; !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownActivation, int(a))
	}

	return []byte(a.String()), nil
}

// UnmarshalText implementiert encoding.TextUnmarshaler
func (a *Activation) UnmarshalText(b []byte) error {
	v, err := ParseActivation(string(b))
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// ActivationLayer bindet eine aufgeloeste Aktivierung als Layer
type ActivationLayer struct {
	fn ActivationFunc
}

// NewActivationLayer erstellt einen Layer fuer a
func NewActivationLayer(a Activation) (*ActivationLayer, error) {
	fn, _, err := a.Resolve()
	if err != nil {
		return nil, err
	}

	return &ActivationLayer{fn: fn}, nil
}

// Forward wendet die Aktivierung an
func (l *ActivationLayer) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	return l.fn(ctx, t)
}
