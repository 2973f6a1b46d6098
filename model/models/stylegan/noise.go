// noise.go - Rauschquellen und NoiseInjector
//
// Rauschen wird nicht als veraenderliches Feld an den Schichten gehalten,
// sondern als NoiseSource durch den Synthese-Aufruf gereicht und ueber den
// Layer-Index (= Style-Slot) adressiert.

package stylegan

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/louis-chevallier/stylegan/ml"
)

// NoiseSource liefert Rauschen [N oder 1, 1, H, W] fuer eine Schicht
type NoiseSource interface {
	Noise(ctx ml.Context, layer, batch, height, width int) (ml.Tensor, error)
}

// ============================================================================
// RandomNoise - frisches Gauss-Rauschen bei jedem Aufruf
// ============================================================================

// RandomNoise zieht bei jedem Aufruf neues Standard-Gauss-Rauschen pro Sample
type RandomNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomNoise erstellt eine geseedete Quelle
func NewRandomNoise(seed uint64) *RandomNoise {
	return &RandomNoise{rng: rand.New(rand.NewPCG(seed, 0x6e6f697365))}
}

// Noise implementiert NoiseSource
func (r *RandomNoise) Noise(ctx ml.Context, layer, batch, height, width int) (ml.Tensor, error) {
	r.mu.Lock()
	data := gaussian(r.rng, batch*height*width, 1)
	r.mu.Unlock()

	return ctx.FromFloats(data, batch, 1, height, width), nil
}

// ============================================================================
// SampleNoise - Rauschen pro Sample aus dessen Seed
// ============================================================================

// SampleNoise zieht fuer Sample i und jede Schicht einen eigenen Strom aus
// Seed+i. Das Rauschen eines Samples haengt damit nicht von der Batch-Groesse ab.
type SampleNoise struct {
	Seed uint64
}

// Noise implementiert NoiseSource
func (s SampleNoise) Noise(ctx ml.Context, layer, batch, height, width int) (ml.Tensor, error) {
	data := make([]float32, 0, batch*height*width)
	for i := range batch {
		rng := rand.New(rand.NewPCG(s.Seed+uint64(i), 0x6e6f697365<<8|uint64(layer)))
		data = append(data, gaussian(rng, height*width, 1)...)
	}

	return ctx.FromFloats(data, batch, 1, height, width), nil
}

// ============================================================================
// FixedNoise - angeheftete Puffer pro Schicht
// ============================================================================

// FixedNoise haelt pro Schicht einen Puffer [1, 1, H, W], der bis Reset
// wiederverwendet wird. Der Puffer haengt nur von Seed, Generation und
// Schicht ab, nicht von Batch-Groesse oder Aufrufreihenfolge.
type FixedNoise struct {
	mu         sync.Mutex
	seed       uint64
	generation uint64
	buffers    map[int]ml.Tensor
}

// NewFixedNoise erstellt eine Quelle mit lazily erzeugten Puffern
func NewFixedNoise(seed uint64) *FixedNoise {
	return &FixedNoise{seed: seed, buffers: make(map[int]ml.Tensor)}
}

// Pin setzt den Puffer einer Schicht explizit
func (f *FixedNoise) Pin(layer int, t ml.Tensor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffers[layer] = t
}

// Reset verwirft alle Puffer; danach wird neues Rauschen gezogen
func (f *FixedNoise) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.buffers)
	f.generation++
}

// Noise implementiert NoiseSource
func (f *FixedNoise) Noise(ctx ml.Context, layer, batch, height, width int) (ml.Tensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.buffers[layer]; ok {
		return t, nil
	}

	rng := rand.New(rand.NewPCG(f.seed, f.generation<<32|uint64(layer)))
	t := ctx.FromFloats(gaussian(rng, height*width, 1), 1, 1, height, width)
	f.buffers[layer] = t
	return t, nil
}

// ============================================================================
// ExplicitNoise - vom Aufrufer gelieferte Tensoren
// ============================================================================

// ExplicitNoise liefert den Tensor an Index layer
type ExplicitNoise []ml.Tensor

// Noise implementiert NoiseSource
func (e ExplicitNoise) Noise(ctx ml.Context, layer, batch, height, width int) (ml.Tensor, error) {
	if layer >= len(e) || e[layer] == nil {
		return nil, fmt.Errorf("%w %d", ErrNoiseMissing, layer)
	}

	return e[layer], nil
}

// ============================================================================
// NoiseInjector - x + weight * noise
// ============================================================================

// NoiseInjector addiert Rauschen mit gelerntem Gewicht pro Kanal
type NoiseInjector struct {
	Weight ml.Tensor `weight:"weight"`
}

// NewNoiseInjector erstellt den Injector mit Nullgewichten [C]
func NewNoiseInjector(ctx ml.Context, channels int) *NoiseInjector {
	return &NoiseInjector{Weight: ctx.Zeros(ml.DTypeF32, channels)}
}

// Forward berechnet x + weight.view(1, C, 1, 1) * noise
func (n *NoiseInjector) Forward(ctx ml.Context, x, noise ml.Tensor) ml.Tensor {
	return x.Add(ctx, n.Weight.Reshape(ctx, 1, -1, 1, 1).Mul(ctx, noise))
}
