// checkpoint.go - Geordnete Sammlung benannter float32-Tensoren
// Hauptfunktionen: NewCheckpoint, Open, FromParams

package convert

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/louis-chevallier/stylegan/model"
)

var (
	ErrUnsupportedFormat = errors.New("convert: unsupported checkpoint format")
	ErrUnsupportedDType  = errors.New("convert: unsupported dtype")
	ErrCorrupt           = errors.New("convert: corrupt checkpoint")
)

// Tensor ist ein dekodierter Checkpoint-Eintrag
type Tensor struct {
	Shape []int
	Data  []float32
	// DType ist der Quell-Datentyp (z.B. "F16"), nur informativ
	DType string
}

// Checkpoint haelt Tensoren in Datei-Reihenfolge und implementiert model.WeightSource
type Checkpoint struct {
	tensors *orderedmap.OrderedMap[string, Tensor]
}

// NewCheckpoint erstellt einen leeren Checkpoint
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{tensors: orderedmap.New[string, Tensor]()}
}

// Set fuegt einen Tensor hinzu oder ersetzt ihn
func (c *Checkpoint) Set(name string, t Tensor) {
	c.tensors.Set(name, t)
}

// Get liefert den Tensor unter name
func (c *Checkpoint) Get(name string) (Tensor, bool) {
	return c.tensors.Get(name)
}

// Tensor implementiert model.WeightSource
func (c *Checkpoint) Tensor(name string) ([]int, []float32, bool) {
	t, ok := c.tensors.Get(name)
	return t.Shape, t.Data, ok
}

// Len gibt die Anzahl der Tensoren zurueck
func (c *Checkpoint) Len() int {
	return c.tensors.Len()
}

// Names gibt alle Namen in Datei-Reihenfolge zurueck
func (c *Checkpoint) Names() []string {
	names := make([]string, 0, c.tensors.Len())
	for p := c.tensors.Oldest(); p != nil; p = p.Next() {
		names = append(names, p.Key)
	}

	return names
}

// All iteriert in Datei-Reihenfolge
func (c *Checkpoint) All() iter.Seq2[string, Tensor] {
	return func(yield func(string, Tensor) bool) {
		for p := c.tensors.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// WithPrefix liefert einen Checkpoint, in dem jedem Namen prefix vorangestellt ist
func (c *Checkpoint) WithPrefix(prefix string) *Checkpoint {
	out := NewCheckpoint()
	for name, t := range c.All() {
		out.Set(prefix+name, t)
	}

	return out
}

// FromParams baut einen Checkpoint aus den Parametern eines Modells
func FromParams(params []model.Param) *Checkpoint {
	c := NewCheckpoint()
	for _, p := range params {
		c.Set(p.Name(), Tensor{Shape: p.Tensor.Shape(), Data: p.Tensor.Floats(), DType: "F32"})
	}

	return c
}

// Open liest einen Checkpoint anhand der Dateiendung
func Open(path string) (*Checkpoint, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pt", ".pth", ".bin":
		return ReadTorch(path)
	case ".safetensors":
		return ReadSafetensors(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}
