// MODUL: config
// ZWECK: Netzwerk-Konfiguration, Presets und Kanal-Formel des Generators
// INPUT: Konfigurationsfelder (JSON oder Preset-Name)
// OUTPUT: Validierte Config, Anzahl Bloecke/Slots, Kanalzahl pro Stufe
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: nn (Aktivierungen), encoding/json, math
// HINWEISE: Die Config bestimmt die gesamte Block-Topologie und ist nach dem Aufbau unveraenderlich

package stylegan

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"math/bits"
	"slices"

	"github.com/louis-chevallier/stylegan/ml/nn"
)

// ============================================================================
// Config - Unveraenderliche Netzwerk-Konfiguration
// ============================================================================

// Config fixiert Dimensionen, Kanal-Formel und Feature-Schalter des Generators.
type Config struct {
	// Mapping-Netzwerk
	LatentSize       int     `json:"latent_size"`
	DlatentSize      int     `json:"dlatent_size"`
	MappingLayers    int     `json:"mapping_layers"`
	MappingFmaps     int     `json:"mapping_fmaps"`
	MappingLRMul     float64 `json:"mapping_lrmul"`
	NormalizeLatents bool    `json:"normalize_latents"`

	// Synthese-Netzwerk
	NumChannels     int       `json:"num_channels"`
	Resolution      int       `json:"resolution"`
	FmapBase        int       `json:"fmap_base"`
	FmapDecay       float64   `json:"fmap_decay"`
	FmapMax         int       `json:"fmap_max"`
	UseStyles       bool      `json:"use_styles"`
	ConstInputLayer bool      `json:"const_input_layer"`
	UseNoise        bool      `json:"use_noise"`
	RandomizeNoise  bool      `json:"randomize_noise"`
	Nonlinearity    string    `json:"nonlinearity"`
	UseWscale       bool      `json:"use_wscale"`
	UsePixelNorm    bool      `json:"use_pixel_norm"`
	UseInstanceNorm bool      `json:"use_instance_norm"`
	BlurFilter      []float32 `json:"blur_filter"`

	// Truncation (nur Inferenz)
	TruncationPsi    float64 `json:"truncation_psi"`
	TruncationCutoff int     `json:"truncation_cutoff"`
}

// DefaultConfig gibt die FFHQ-1024 Konfiguration zurueck
func DefaultConfig() Config {
	return Config{
		LatentSize:       512,
		DlatentSize:      512,
		MappingLayers:    8,
		MappingFmaps:     512,
		MappingLRMul:     0.01,
		NormalizeLatents: true,

		NumChannels:     3,
		Resolution:      1024,
		FmapBase:        8192,
		FmapDecay:       1.0,
		FmapMax:         512,
		UseStyles:       true,
		ConstInputLayer: true,
		UseNoise:        true,
		RandomizeNoise:  true,
		Nonlinearity:    "lrelu",
		UseWscale:       true,
		UsePixelNorm:    false,
		UseInstanceNorm: true,
		BlurFilter:      slices.Clone(nn.DefaultBlurTaps),

		TruncationPsi:    0.7,
		TruncationCutoff: 8,
	}
}

// ResolutionLog2 gibt log2(Resolution) zurueck
func (c Config) ResolutionLog2() int {
	return bits.Len(uint(c.Resolution)) - 1
}

// NumBlocks ist die Anzahl der Synthese-Bloecke: log2(R) - 1
func (c Config) NumBlocks() int {
	return c.ResolutionLog2() - 1
}

// NumLayers ist die Anzahl der Style-Slots: 2*log2(R) - 2
func (c Config) NumLayers() int {
	return 2*c.ResolutionLog2() - 2
}

// NF berechnet die Kanalzahl einer Stufe:
// min(floor(fmap_base / 2^(stage*fmap_decay)), fmap_max)
func (c Config) NF(stage int) int {
	return min(int(float64(c.FmapBase)/math.Pow(2, float64(stage)*c.FmapDecay)), c.FmapMax)
}

// Activation loest Nonlinearity zum Enum auf
func (c Config) Activation() (nn.Activation, error) {
	a, err := nn.ParseActivation(c.Nonlinearity)
	if err != nil {
		return 0, &ConfigError{Field: "nonlinearity", Value: c.Nonlinearity, Err: ErrUnknownNonlinearity}
	}

	return a, nil
}

// Validate prueft die Konfiguration und liefert den ersten Fehler
func (c Config) Validate() error {
	if c.Resolution < 4 || c.Resolution&(c.Resolution-1) != 0 {
		return &ConfigError{Field: "resolution", Value: c.Resolution, Err: ErrInvalidResolution}
	}

	if _, err := c.Activation(); err != nil {
		return err
	}

	for stage := 1; stage < c.ResolutionLog2(); stage++ {
		if nf := c.NF(stage); nf <= 0 {
			return &ConfigError{Field: fmt.Sprintf("nf(%d)", stage), Value: nf, Err: ErrInvalidChannels}
		}
	}

	positive := []struct {
		field string
		value int
	}{
		{"latent_size", c.LatentSize},
		{"dlatent_size", c.DlatentSize},
		{"mapping_layers", c.MappingLayers},
		{"mapping_fmaps", c.MappingFmaps},
		{"num_channels", c.NumChannels},
	}
	for _, p := range positive {
		if p.value <= 0 {
			err := ErrInvalidConfig
			if p.field == "num_channels" {
				err = ErrInvalidChannels
			}
			return &ConfigError{Field: p.field, Value: p.value, Err: err}
		}
	}

	if c.MappingLRMul <= 0 {
		return &ConfigError{Field: "mapping_lrmul", Value: c.MappingLRMul, Err: ErrInvalidConfig}
	}

	if n := len(c.BlurFilter); n > 0 && n%2 == 0 {
		return &ConfigError{Field: "blur_filter", Value: c.BlurFilter, Err: ErrInvalidConfig}
	}

	if c.TruncationPsi < 0 || c.TruncationPsi > 1 {
		return &ConfigError{Field: "truncation_psi", Value: c.TruncationPsi, Err: ErrInvalidConfig}
	}

	return nil
}

// ============================================================================
// Presets - Vortrainierte Konfigurationen
// ============================================================================

var presets = map[string]func() Config{
	"ffhq-1024":     DefaultConfig,
	"celebahq-1024": DefaultConfig,
	"bedrooms-256":  withResolution(256),
	"cars-512":      withResolution(512),
	"cats-256":      withResolution(256),
}

func withResolution(r int) func() Config {
	return func() Config {
		c := DefaultConfig()
		c.Resolution = r
		return c
	}
}

// Preset gibt die Konfiguration eines benannten Presets zurueck
func Preset(name string) (Config, error) {
	f, ok := presets[name]
	if !ok {
		return Config{}, &ConfigError{Field: "preset", Value: name, Err: ErrInvalidConfig}
	}

	return f(), nil
}

// Presets gibt alle Preset-Namen sortiert zurueck
func Presets() []string {
	return slices.Sorted(maps.Keys(presets))
}

// ParseConfig liest eine JSON-Konfiguration; fehlende Felder kommen aus base
func ParseConfig(b []byte, base Config) (Config, error) {
	c := base
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("stylegan: parse config: %w", err)
	}

	return c, c.Validate()
}
