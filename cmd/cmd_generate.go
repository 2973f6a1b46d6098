// cmd_generate.go - generate und interpolate Commands
// Hauptfunktionen: GenerateHandler, InterpolateHandler
package cmd

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/louis-chevallier/stylegan/api"
	"github.com/louis-chevallier/stylegan/runner"
	"github.com/louis-chevallier/stylegan/vision"
)

// GenerateHandler - Zieht Latents aus Seeds und speichert die Bilder
func GenerateHandler(cmd *cobra.Command, _ []string) error {
	seed, _ := cmd.Flags().GetUint64("seed")
	batch, _ := cmd.Flags().GetInt("batch")
	remote, _ := cmd.Flags().GetBool("remote")

	out, err := newImageWriter(cmd)
	if err != nil {
		return err
	}

	noise, err := noiseFromFlags(cmd)
	if err != nil {
		return err
	}

	var images []image.Image
	if remote {
		images, err = generateRemote(cmd, seed, batch, noise)
	} else {
		images, err = generateLocal(cmd, seed, batch, noise, out.opts)
	}
	if err != nil {
		return err
	}

	names := make([]string, len(images))
	for i := range names {
		names[i] = fmt.Sprintf("seed%04d", seed+uint64(i))
	}

	paths, err := out.Write(images, names)
	for _, p := range paths {
		fmt.Fprintln(cmd.ErrOrStderr(), p)
	}

	return err
}

func generateLocal(cmd *cobra.Command, seed uint64, batch int, noise runner.Noise, opts []vision.Option) ([]image.Image, error) {
	r, err := loadRunner(cmd, batch)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	start := time.Now()
	res, err := r.Generate(cmd.Context(), runner.GenerateRequest{
		Sampling:   runner.Sampling{Seed: seed, Batch: batch},
		Truncation: truncationFromFlags(cmd),
		Noise:      noise,
		Mix:        mixFromFlags(cmd),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("generated", "images", batch, "duration", time.Since(start))
	return vision.ToImages(res.Images, opts...)
}

// generateRemote - Generiert ueber einen laufenden Server
func generateRemote(cmd *cobra.Command, seed uint64, batch int, noise runner.Noise) ([]image.Image, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}

	t := truncationFromFlags(cmd)
	size, _ := cmd.Flags().GetInt("size")

	req := &api.GenerateRequest{
		Seed:       seed,
		Batch:      batch,
		Truncation: api.Truncation{Psi: t.Psi, Cutoff: t.Cutoff},
		Noise:      api.Noise{Mode: string(noise.Mode), Seed: noise.Seed},
		Output:     api.Output{Size: size},
	}
	if m := mixFromFlags(cmd); m != nil {
		req.MixSeed, req.Crossover = &m.Seed, m.Crossover
	}

	resp, err := client.Generate(cmd.Context(), req)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, len(resp.Images))
	for _, data := range resp.Images {
		img, _, err := image.Decode(bytes.NewReader(data.Data))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	slog.Info("generated", "id", resp.ID, "images", len(images), "duration", resp.TotalDuration)
	return images, nil
}

// mixFromFlags - Style-Mixing nur wenn --mix-seed gesetzt ist
func mixFromFlags(cmd *cobra.Command) *runner.Mixing {
	if !cmd.Flags().Changed("mix-seed") {
		return nil
	}

	seed, _ := cmd.Flags().GetUint64("mix-seed")
	crossover, _ := cmd.Flags().GetInt("crossover")
	return &runner.Mixing{Seed: seed, Crossover: crossover}
}

// InterpolateHandler - Rendert Frames zwischen den Latents zweier Seeds
func InterpolateHandler(cmd *cobra.Command, _ []string) error {
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")
	frames, _ := cmd.Flags().GetInt("frames")
	space, _ := cmd.Flags().GetString("space")

	out, err := newImageWriter(cmd)
	if err != nil {
		return err
	}

	noise, err := noiseFromFlags(cmd)
	if err != nil {
		return err
	}

	r, err := loadRunner(cmd, frames)
	if err != nil {
		return err
	}
	defer r.Close()

	tensors, err := r.Interpolate(cmd.Context(), runner.InterpolateRequest{
		From:       from,
		To:         to,
		Frames:     frames,
		Space:      runner.Space(space),
		Truncation: truncationFromFlags(cmd),
		Noise:      noise,
	})
	if err != nil {
		return err
	}

	images := make([]image.Image, 0, len(tensors))
	names := make([]string, 0, len(tensors))
	for i, t := range tensors {
		img, err := vision.ToImage(t, 0, out.opts...)
		if err != nil {
			return err
		}

		images = append(images, img)
		names = append(names, fmt.Sprintf("%s%02d", space, i))
	}

	paths, err := out.Write(images, names)
	for _, p := range paths {
		fmt.Fprintln(cmd.ErrOrStderr(), p)
	}

	return err
}

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate images from random latents",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				return checkServerHeartbeat(cmd, args)
			}
			return nil
		},
		RunE: GenerateHandler,
	}

	cmd.Flags().Uint64("seed", 0, "Seed of the first sample; sample i uses seed+i")
	cmd.Flags().IntP("batch", "n", 20, "Number of images")
	cmd.Flags().Bool("remote", false, "Generate on a running server (STYLEGAN_HOST)")
	cmd.Flags().Uint64("mix-seed", 0, "Seed whose styles replace the slots from --crossover on")
	cmd.Flags().Int("crossover", 4, "First style slot taken from --mix-seed")
	addModelFlags(cmd)
	addTruncationFlags(cmd)
	addNoiseFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// newInterpolateCmd - Erstellt den interpolate Command
func newInterpolateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interpolate",
		Short: "Interpolate between the latents of two seeds",
		Args:  cobra.ExactArgs(0),
		RunE:  InterpolateHandler,
	}

	cmd.Flags().Uint64("from", 0, "Seed of the first latent")
	cmd.Flags().Uint64("to", 1, "Seed of the last latent")
	cmd.Flags().Int("frames", 10, "Number of frames including both ends")
	cmd.Flags().String("space", "w", "Interpolation space: z or w")
	addModelFlags(cmd)
	addTruncationFlags(cmd)
	addNoiseFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}
