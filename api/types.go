// types.go - API-Typen fuer Requests und Responses
// Enthaelt: StatusError, Truncation, Noise, Image, alle Request/Response Structs
package api

import (
	"fmt"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the server logs for details"
	}
}

// Truncation overrides psi and cutoff of the loaded configuration. Both
// fields unset keep the generator's own truncation.
type Truncation struct {
	Psi    *float64 `json:"psi,omitempty"`
	Cutoff *int     `json:"cutoff,omitempty"`
}

// Noise selects the noise source: "random", "fixed" or "zero". An empty
// mode follows randomize_noise of the configuration.
type Noise struct {
	Mode string `json:"noise,omitempty"`
	Seed uint64 `json:"noise_seed,omitempty"`
}

// Output controls how images are encoded.
type Output struct {
	// Format is "png" (default) or "jpeg".
	Format string `json:"format,omitempty"`

	// Size resizes the square output images; 0 keeps the resolution.
	Size int `json:"size,omitempty"`
}

// GenerateRequest describes a request sent by [Client.Generate].
type GenerateRequest struct {
	// Seed of the first sample; sample i uses Seed+i.
	Seed uint64 `json:"seed"`

	// Batch is the number of samples; defaults to 1.
	Batch int `json:"batch,omitempty"`

	// Latents overrides sampling with explicit z vectors.
	Latents [][]float32 `json:"latents,omitempty"`

	// MixSeed enables style mixing: style slots from Crossover on are
	// taken from the sample of MixSeed+i.
	MixSeed   *uint64 `json:"mix_seed,omitempty"`
	Crossover int     `json:"crossover,omitempty"`

	Truncation
	Noise
	Output
}

// Image is one encoded output image.
type Image struct {
	// Seed is set when the image was sampled from a seed.
	Seed *uint64 `json:"seed,omitempty"`

	MimeType string `json:"mime_type"`

	// Data is base64 encoded in JSON.
	Data []byte `json:"data"`
}

// GenerateResponse is the response of generate, synthesize and interpolate.
type GenerateResponse struct {
	ID         string  `json:"id"`
	Resolution int     `json:"resolution"`
	Images     []Image `json:"images"`

	TotalDuration time.Duration `json:"total_duration,omitempty"`
}

// MapRequest describes a request sent by [Client.Map].
type MapRequest struct {
	Seed    uint64      `json:"seed"`
	Batch   int         `json:"batch,omitempty"`
	Latents [][]float32 `json:"latents,omitempty"`

	Truncation
}

// MapResponse holds the style latents [N][L][D].
type MapResponse struct {
	Seeds    []uint64      `json:"seeds,omitempty"`
	Dlatents [][][]float32 `json:"dlatents"`
}

// SynthesizeRequest describes a request sent by [Client.Synthesize].
type SynthesizeRequest struct {
	Dlatents [][][]float32 `json:"dlatents"`

	Noise
	Output
}

// InterpolateRequest describes a request sent by [Client.Interpolate].
type InterpolateRequest struct {
	From   uint64 `json:"from"`
	To     uint64 `json:"to"`
	Frames int    `json:"frames"`

	// Space is "z" or "w" (default).
	Space string `json:"space,omitempty"`

	Truncation
	Noise
	Output
}

// TensorInfo describes one expected tensor of the generator.
type TensorInfo struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Buffer bool   `json:"buffer,omitempty"`
}

// ManifestResponse is the response from [Client.Manifest].
type ManifestResponse struct {
	Preset     string       `json:"preset,omitempty"`
	Resolution int          `json:"resolution"`
	Slots      int          `json:"slots"`
	Params     int          `json:"params"`
	Truncation bool         `json:"truncation"`
	Tensors    []TensorInfo `json:"tensors"`
}

// VersionResponse is the response from [Client.Version].
type VersionResponse struct {
	Version string `json:"version"`
}
