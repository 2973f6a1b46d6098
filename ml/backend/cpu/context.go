// context.go - Context-Struktur und Tensor-Erstellung
// Enthaelt: Context struct, Empty(), Zeros(), FromFloats(), Arange(), parallel()

package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/louis-chevallier/stylegan/ml"
)

// Context repraesentiert einen CPU-Berechnungskontext
type Context struct {
	b *Backend

	// numThreads ist die maximale Anzahl Goroutinen pro Op
	numThreads int
}

// NewContext erstellt einen eigenstaendigen Kontext ohne Backend-Registrierung.
// Praktisch fuer Tests und Werkzeuge.
func NewContext(numThreads int) *Context {
	b := &Backend{numThreads: max(numThreads, 1)}
	return &Context{b: b, numThreads: b.numThreads}
}

// NumThreads gibt die Thread-Obergrenze zurueck
func (c *Context) NumThreads() int {
	return c.numThreads
}

// Close gibt den Kontext frei
func (c *Context) Close() {}

// newTensor erstellt einen neuen, mit Nullen gefuellten Tensor
func (c *Context) newTensor(shape []int) *Tensor {
	if len(shape) < 1 {
		panic("cpu: tensor needs at least one dimension")
	}

	for _, dim := range shape {
		if dim < 1 {
			panic(fmt.Sprintf("cpu: invalid shape %v", shape))
		}
	}

	return &Tensor{
		b:     c.b,
		shape: append([]int(nil), shape...),
		data:  make([]float32, numel(shape)),
	}
}

// Empty erstellt einen Tensor; auf der CPU identisch zu Zeros
func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	return c.Zeros(dtype, shape...)
}

// Zeros erstellt einen mit Nullen initialisierten Tensor
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	if dtype != ml.DTypeF32 {
		panic(fmt.Sprintf("cpu: unsupported dtype %v", dtype))
	}

	return c.newTensor(shape)
}

// FromFloats erstellt einen Tensor aus Float32-Daten (die Daten werden kopiert)
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	t := c.newTensor(shape)
	if len(s) != len(t.data) {
		panic(fmt.Sprintf("cpu: data length %d does not match shape %v", len(s), shape))
	}

	copy(t.data, s)
	return t
}

// Arange erstellt einen 1D-Tensor mit Werten in [start, stop)
func (c *Context) Arange(start, stop, step float32) ml.Tensor {
	if step == 0 || (stop-start)/step <= 0 {
		panic("cpu: invalid arange interval")
	}

	var s []float32
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
		s = append(s, v)
	}

	return c.FromFloats(s, len(s))
}

// parallel fuehrt fn fuer i in [0, n) aus, verteilt auf hoechstens numThreads Goroutinen
func (c *Context) parallel(n int, fn func(i int)) {
	if n <= 1 || c.numThreads <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(c.numThreads)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}

	// fn liefert keine Fehler, Wait dient nur der Synchronisation
	_ = g.Wait()
}

// parallelRange teilt [0, total) in zusammenhaengende Bereiche auf
func (c *Context) parallelRange(total int, fn func(lo, hi int)) {
	const minChunk = 4096

	chunks := min(c.numThreads, (total+minChunk-1)/minChunk)
	if chunks <= 1 {
		fn(0, total)
		return
	}

	size := (total + chunks - 1) / chunks
	c.parallel(chunks, func(i int) {
		lo := i * size
		hi := min(lo+size, total)
		if lo < hi {
			fn(lo, hi)
		}
	})
}

// ctxOf wandelt den generischen Kontext in den CPU-Kontext um
func ctxOf(ctx ml.Context) *Context {
	if c, ok := ctx.(*Context); ok {
		return c
	}

	return &Context{numThreads: max(ctx.NumThreads(), 1)}
}
