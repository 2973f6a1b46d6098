// Package api - API-Methoden des Clients.

package api

import (
	"context"
	"net/http"
)

// Generate samples latents from seeds and returns the rendered images.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Map returns the (optionally truncated) style latents for the requested
// samples.
func (c *Client) Map(ctx context.Context, req *MapRequest) (*MapResponse, error) {
	var resp MapResponse
	if err := c.do(ctx, http.MethodPost, "/api/map", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Synthesize renders images from caller supplied style latents.
func (c *Client) Synthesize(ctx context.Context, req *SynthesizeRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/synthesize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Interpolate renders the frames between the latents of two seeds.
func (c *Client) Interpolate(ctx context.Context, req *InterpolateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/interpolate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Manifest lists every tensor the loaded generator expects.
func (c *Client) Manifest(ctx context.Context) (*ManifestResponse, error) {
	var resp ManifestResponse
	if err := c.do(ctx, http.MethodGet, "/api/manifest", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	if err := c.do(ctx, http.MethodHead, "/", nil, nil); err != nil {
		return err
	}
	return nil
}

// Version returns the server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}
