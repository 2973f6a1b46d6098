// mapping.go - MappingNetwork: z -> w
//
// Das Netz ist eine explizite, geordnete Liste benannter Schichten
// (pixel_norm, dense0, dense0_act, ...), die der Reihe nach angewendet werden.

package stylegan

import (
	"fmt"
	"math"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/nn"
	"github.com/louis-chevallier/stylegan/model"
)

// MappingPrefix ist das Checkpoint-Praefix des Mapping-Netzes
const MappingPrefix = "g_mapping."

// layerDesc ist ein benannter Eintrag der Schichtliste
type layerDesc struct {
	name  string
	Layer nn.Layer
}

// ParamName implementiert model.Namer
func (d layerDesc) ParamName() string {
	return d.name
}

// MappingNetwork bildet Latents [N, latent_size] auf Style-Latents ab
type MappingNetwork struct {
	Layers []layerDesc

	latentSize  int
	dlatentSize int
	numLayers   int
}

// NewMappingNetwork baut das Mapping-Netz unabhaengig vom Synthese-Netz
func NewMappingNetwork(ctx ml.Context, cfg Config, opts ...Option) (*MappingNetwork, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	rng := o.rng(streamMapping)

	act, err := cfg.Activation()
	if err != nil {
		return nil, err
	}

	actLayer, err := nn.NewActivationLayer(act)
	if err != nil {
		return nil, err
	}

	m := &MappingNetwork{
		latentSize:  cfg.LatentSize,
		dlatentSize: cfg.DlatentSize,
		numLayers:   cfg.NumLayers(),
	}

	if cfg.NormalizeLatents {
		m.Layers = append(m.Layers, layerDesc{name: "pixel_norm", Layer: nn.NewPixelNorm()})
	}

	in := cfg.LatentSize
	for i := range cfg.MappingLayers {
		out := cfg.MappingFmaps
		if i == cfg.MappingLayers-1 {
			out = cfg.DlatentSize
		}

		dense := NewEqualizedLinear(ctx, rng, in, out, LinearOptions{
			Gain:      math.Sqrt2,
			UseWscale: cfg.UseWscale,
			LRMul:     cfg.MappingLRMul,
			Bias:      true,
		})

		m.Layers = append(m.Layers,
			layerDesc{name: fmt.Sprintf("dense%d", i), Layer: dense},
			layerDesc{name: fmt.Sprintf("dense%d_act", i), Layer: actLayer},
		)
		in = out
	}

	o.logger.Debug("mapping network built", "layers", len(m.Layers), "latent", cfg.LatentSize, "dlatent", cfg.DlatentSize)
	return m, nil
}

// LayerNames gibt die Schichtnamen in Ausfuehrungsreihenfolge zurueck
func (m *MappingNetwork) LayerNames() []string {
	names := make([]string, len(m.Layers))
	for i, l := range m.Layers {
		names[i] = l.name
	}

	return names
}

// MapOnly berechnet w [N, D] ohne Broadcast
func (m *MappingNetwork) MapOnly(ctx ml.Context, z ml.Tensor) (ml.Tensor, error) {
	if shape := z.Shape(); len(shape) != 2 || shape[1] != m.latentSize {
		return nil, &ShapeError{Op: "mapping", Want: fmt.Sprintf("[N, %d]", m.latentSize), Got: shape, Err: ErrLatentShape}
	}

	x := z
	for _, l := range m.Layers {
		x = l.Layer.Forward(ctx, x)
	}

	return x, nil
}

// Forward berechnet w und broadcastet es auf [N, L, D]
func (m *MappingNetwork) Forward(ctx ml.Context, z ml.Tensor) (ml.Tensor, error) {
	w, err := m.MapOnly(ctx, z)
	if err != nil {
		return nil, err
	}

	return Broadcast(ctx, w, m.numLayers), nil
}

// Broadcast wiederholt w [N, D] in jeden der l Slots: [N, l, D]
func Broadcast(ctx ml.Context, w ml.Tensor, l int) ml.Tensor {
	return w.Reshape(ctx, w.Dim(0), 1, w.Dim(1)).Repeat(ctx, 1, l)
}

// Manifest gibt die erwarteten Tensoren mit Praefix g_mapping. zurueck
func (m *MappingNetwork) Manifest() *model.Manifest {
	return model.ManifestOf(m, MappingPrefix)
}

// Load laedt die Parameter aus src
func (m *MappingNetwork) Load(src model.WeightSource) error {
	return model.Load(m, MappingPrefix, src)
}
