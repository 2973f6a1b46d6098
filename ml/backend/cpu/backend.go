// backend.go - Backend-Struktur und Registrierung des CPU-Backends
// Enthält: Backend struct, init(), New(), Close()
//
// Das CPU-Backend rechnet eager in Go: jeder Op liefert sofort einen neuen,
// zusammenhaengenden float32-Tensor. Matrix-Produkte laufen ueber gonum BLAS,
// Batch- und Kanal-Parallelitaet ueber errgroup.

package cpu

import (
	"log/slog"

	"github.com/louis-chevallier/stylegan/ml"
)

func init() {
	ml.RegisterBackend("cpu", New)
}

// Backend ist die CPU-Implementierung fuer ML-Operationen
type Backend struct {
	// numThreads begrenzt die Goroutinen pro Op
	numThreads int
}

// New erstellt ein neues CPU-Backend
func New(params ml.BackendParams) (ml.Backend, error) {
	b := &Backend{numThreads: max(params.NumThreads, 1)}
	slog.Debug("cpu backend", "threads", b.numThreads)
	return b, nil
}

// Name gibt den Registrierungsnamen zurueck
func (b *Backend) Name() string {
	return "cpu"
}

// Close gibt Ressourcen frei (das CPU-Backend haelt keine)
func (b *Backend) Close() {}

// NewContext erstellt einen neuen Berechnungskontext
func (b *Backend) NewContext() ml.Context {
	return &Context{b: b, numThreads: b.numThreads}
}
