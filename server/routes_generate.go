// Package server - Handler fuer Generierung, Mapping, Synthese und Interpolation
// Beinhaltet: GenerateHandler, MapHandler, SynthesizeHandler, InterpolateHandler, ManifestHandler
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/louis-chevallier/stylegan/api"
	"github.com/louis-chevallier/stylegan/envconfig"
	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/model/models/stylegan"
	"github.com/louis-chevallier/stylegan/runner"
	"github.com/louis-chevallier/stylegan/vision"
)

// GenerateHandler verarbeitet /api/generate Anfragen
func (s *Server) GenerateHandler(c *gin.Context) {
	start := time.Now()

	var req api.GenerateRequest
	if !bindJSON(c, &req) {
		return
	}

	noise, err := noiseOf(req.Noise)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rreq := runner.GenerateRequest{
		Sampling:   runner.Sampling{Seed: req.Seed, Batch: req.Batch, Latents: req.Latents},
		Truncation: truncationOf(req.Truncation),
		Noise:      noise,
	}
	if req.MixSeed != nil {
		rreq.Mix = &runner.Mixing{Seed: *req.MixSeed, Crossover: req.Crossover}
	}

	res, err := s.runner.Generate(c.Request.Context(), rreq)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.respondImages(c, start, []ml.Tensor{res.Images}, res.Seeds, req.Output)
}

// MapHandler verarbeitet /api/map Anfragen
func (s *Server) MapHandler(c *gin.Context) {
	var req api.MapRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.runner.Map(c.Request.Context(), runner.MapRequest{
		Sampling:   runner.Sampling{Seed: req.Seed, Batch: req.Batch, Latents: req.Latents},
		Truncation: truncationOf(req.Truncation),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MapResponse{Seeds: res.Seeds, Dlatents: nested(res.Dlatents)})
}

// SynthesizeHandler verarbeitet /api/synthesize Anfragen
func (s *Server) SynthesizeHandler(c *gin.Context) {
	start := time.Now()

	var req api.SynthesizeRequest
	if !bindJSON(c, &req) {
		return
	}

	noise, err := noiseOf(req.Noise)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.runner.Synthesize(c.Request.Context(), runner.SynthesizeRequest{Dlatents: req.Dlatents, Noise: noise})
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.respondImages(c, start, []ml.Tensor{res.Images}, nil, req.Output)
}

// InterpolateHandler verarbeitet /api/interpolate Anfragen
func (s *Server) InterpolateHandler(c *gin.Context) {
	start := time.Now()

	var req api.InterpolateRequest
	if !bindJSON(c, &req) {
		return
	}

	noise, err := noiseOf(req.Noise)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frames, err := s.runner.Interpolate(c.Request.Context(), runner.InterpolateRequest{
		From:       req.From,
		To:         req.To,
		Frames:     req.Frames,
		Space:      runner.Space(req.Space),
		Truncation: truncationOf(req.Truncation),
		Noise:      noise,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.respondImages(c, start, frames, nil, req.Output)
}

// ManifestHandler listet alle erwarteten Tensoren des Generators
func (s *Server) ManifestHandler(c *gin.Context) {
	g := s.runner.Generator()
	m := g.Manifest()

	resp := api.ManifestResponse{
		Preset:     s.runner.Preset(),
		Resolution: g.Config().Resolution,
		Slots:      g.Synthesis.NumLayers(),
		Params:     m.NumElements(),
		Truncation: g.Truncation != nil,
		Tensors:    make([]api.TensorInfo, 0, m.Len()),
	}

	for name, e := range m.All() {
		resp.Tensors = append(resp.Tensors, api.TensorInfo{Name: name, Shape: e.Shape, Buffer: e.Buffer})
	}

	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// Hilfsfunktionen
// ============================================================================

// bindJSON liest den Request-Body; bei Fehlern ist die Anfrage bereits beantwortet
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return false
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}

	return true
}

// abortWithError bildet Fehler des Runners auf HTTP-Status ab
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runner.ErrInvalidRequest),
		errors.Is(err, runner.ErrBatchTooLarge),
		errors.Is(err, runner.ErrNoAverageLatent),
		errors.Is(err, runner.ErrUnknownNoiseMode),
		errors.Is(err, stylegan.ErrLatentShape),
		errors.Is(err, stylegan.ErrDlatentRank),
		errors.Is(err, stylegan.ErrStyleSlots),
		errors.Is(err, stylegan.ErrNoiseShape),
		errors.Is(err, vision.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func truncationOf(t api.Truncation) runner.Truncation {
	return runner.Truncation{Psi: t.Psi, Cutoff: t.Cutoff}
}

func noiseOf(n api.Noise) (runner.Noise, error) {
	mode, err := runner.ParseNoiseMode(n.Mode)
	if err != nil {
		return runner.Noise{}, err
	}

	return runner.Noise{Mode: mode, Seed: n.Seed}, nil
}

// respondImages kodiert alle Bilder der Batches und antwortet mit JSON
func (s *Server) respondImages(c *gin.Context, start time.Time, batches []ml.Tensor, seeds []uint64, out api.Output) {
	format, err := vision.ParseFormat(out.Format)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var opts []vision.Option
	if limit := int(envconfig.MaxSize()); out.Size < 0 || out.Size > limit {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("size must be in [0, %d], got %d", limit, out.Size)})
		return
	} else if out.Size > 0 {
		opts = append(opts, vision.WithSize(out.Size))
	}

	resp := api.GenerateResponse{
		ID:         uuid.NewString(),
		Resolution: s.runner.Generator().Config().Resolution,
	}

	for _, batch := range batches {
		images, err := vision.ToImages(batch, opts...)
		if err != nil {
			abortWithError(c, err)
			return
		}

		for _, img := range images {
			var buf bytes.Buffer
			if err := format.Encode(&buf, img); err != nil {
				abortWithError(c, err)
				return
			}

			image := api.Image{MimeType: format.MimeType(), Data: buf.Bytes()}
			if i := len(resp.Images); i < len(seeds) {
				image.Seed = &seeds[i]
			}
			resp.Images = append(resp.Images, image)
		}
	}

	resp.TotalDuration = time.Since(start)
	c.JSON(http.StatusOK, resp)
}

// nested wandelt [N, L, D] in verschachtelte Slices
func nested(t ml.Tensor) [][][]float32 {
	n, l, d := t.Dim(0), t.Dim(1), t.Dim(2)
	data := t.Floats()

	out := make([][][]float32, n)
	for i := range out {
		out[i] = make([][]float32, l)
		for j := range out[i] {
			off := (i*l + j) * d
			out[i][j] = data[off : off+d]
		}
	}

	return out
}
