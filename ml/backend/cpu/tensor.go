// tensor.go - Tensor-Struktur und Basis-Methoden
// Enthält: Tensor struct, Shape, Floats, DType, LogValue, String

package cpu

import (
	"fmt"
	"log/slog"

	"github.com/louis-chevallier/stylegan/ml"
)

// Tensor repräsentiert einen zusammenhaengenden float32-Tensor (row-major)
type Tensor struct {
	b     *Backend
	shape []int
	data  []float32
}

// LogValue gibt den Tensor als slog-Wert zurück
func (t *Tensor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", t.DType().String()),
		slog.Any("shape", t.Shape()),
	)
}

// String gibt die Werte gekuerzt aus (fuer Debug-Ausgaben mit %v)
func (t *Tensor) String() string {
	return ml.Dump(t, ml.DumpWithThreshold(64))
}

// Dim gibt die Größe einer Dimension zurück
func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

// Shape gibt eine Kopie der Form des Tensors zurück
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// DType gibt den Datentyp des Tensors zurück
func (t *Tensor) DType() ml.DType {
	return ml.DTypeF32
}

// Floats gibt eine Kopie der Tensor-Daten zurück
func (t *Tensor) Floats() []float32 {
	return append([]float32(nil), t.data...)
}

// FromFloats überschreibt die Tensor-Daten
func (t *Tensor) FromFloats(s []float32) {
	if len(s) != len(t.data) {
		panic(fmt.Sprintf("cpu: data length %d does not match shape %v", len(s), t.shape))
	}

	copy(t.data, s)
}

// like erstellt einen neuen Tensor mit derselben Form
func (t *Tensor) like(shape []int) *Tensor {
	return &Tensor{
		b:     t.b,
		shape: append([]int(nil), shape...),
		data:  make([]float32, numel(shape)),
	}
}

// tensorOf wandelt den generischen Tensor in den CPU-Tensor um
func tensorOf(t ml.Tensor) *Tensor {
	ct, ok := t.(*Tensor)
	if !ok {
		panic(fmt.Sprintf("cpu: foreign tensor type %T", t))
	}

	return ct
}

// numel berechnet die Anzahl der Elemente einer Form
func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}

// stridesOf berechnet row-major Strides
func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}

	return strides
}

// normDim normalisiert negative Dimensionsindizes
func normDim(dim, rank int) int {
	if dim < 0 {
		dim += rank
	}

	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("cpu: dimension %d out of range for rank %d", dim, rank))
	}

	return dim
}
