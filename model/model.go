// Package model - Parameter-Manifest und Laden von Gewichten
//
// Dieses Paket verbindet Modell-Strukturen mit externen Gewichtsquellen.
// Modelle deklarieren ihre Tensoren über `weight:"..."` Struct-Tags;
// das Paket leitet daraus das Manifest ab und kopiert Gewichte hinein.
//
// Hauptkomponenten:
// - WeightSource: Interface für Checkpoints
// - Load: Validiert und kopiert alle Parameter
// - ManifestError: Fehler mit Tensor-Kontext
// - Validator: Optionale Prüfung nach dem Laden

package model

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Fehler-Definitionen
var (
	ErrMissingTensor = errors.New("model: missing tensor")
	ErrShapeMismatch = errors.New("model: shape mismatch")
)

// ManifestError beschreibt einen fehlenden oder falsch geformten Tensor
type ManifestError struct {
	Name string
	Want []int
	Got  []int
	Err  error
}

func (e *ManifestError) Error() string {
	if errors.Is(e.Err, ErrMissingTensor) {
		return fmt.Sprintf("%v %q (want shape %v)", e.Err, e.Name, e.Want)
	}

	return fmt.Sprintf("%v for %q: want %v, got %v", e.Err, e.Name, e.Want, e.Got)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// WeightSource liefert Tensoren nach Namen (z.B. ein geladener Checkpoint)
type WeightSource interface {
	Tensor(name string) (shape []int, data []float32, ok bool)
}

// Validator ist ein optionales Interface für Post-Load-Validierung
type Validator interface {
	Validate() error
}

// MapSource ist eine WeightSource im Speicher
type MapSource map[string]MapTensor

// MapTensor ist ein Eintrag einer MapSource
type MapTensor struct {
	Shape []int
	Data  []float32
}

// Tensor implementiert WeightSource
func (s MapSource) Tensor(name string) ([]int, []float32, bool) {
	t, ok := s[name]
	return t.Shape, t.Data, ok
}

// Load kopiert alle Parameter von v (Pointer auf Struct) aus src.
// Alle Formen werden geprüft bevor etwas überschrieben wird. Fehlende
// gelernte Tensoren sind ein Fehler, fehlende Buffer behalten ihren Wert.
func Load(v any, prefix string, src WeightSource) error {
	params := Params(v, prefix)

	type assignment struct {
		param Param
		data  []float32
	}

	var errs []error
	var assignments []assignment
	for _, p := range params {
		want := p.Tensor.Shape()

		shape, data, name, ok := lookup(src, p.Names)
		if !ok {
			if p.Buffer {
				slog.Debug("buffer not in checkpoint, keeping default", "name", p.Name())
				continue
			}

			errs = append(errs, &ManifestError{Name: p.Name(), Want: want, Err: ErrMissingTensor})
			continue
		}

		if !slices.Equal(want, shape) || len(data) != numel(want) {
			errs = append(errs, &ManifestError{Name: name, Want: want, Got: shape, Err: ErrShapeMismatch})
			continue
		}

		assignments = append(assignments, assignment{param: p, data: data})
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, a := range assignments {
		a.param.Tensor.FromFloats(a.data)
	}

	slog.Debug("loaded params", "prefix", prefix, "count", len(assignments))

	if validator, ok := v.(Validator); ok {
		return validator.Validate()
	}

	return nil
}

// lookup sucht den ersten vorhandenen Namen
func lookup(src WeightSource, names []string) ([]int, []float32, string, bool) {
	for _, name := range names {
		if shape, data, ok := src.Tensor(name); ok {
			return shape, data, name, true
		}
	}

	return nil, nil, names[0], false
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}
