// cmd_utils.go - Gemeinsame Flags, Runner-Aufbau und Bildausgabe
// Hauptfunktionen: addModelFlags, loadRunner, imageWriter, checkServerHeartbeat
package cmd

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/louis-chevallier/stylegan/api"
	"github.com/louis-chevallier/stylegan/runner"
	"github.com/louis-chevallier/stylegan/vision"
)

// errTerminal verhindert, dass Bilddaten im Terminal landen
var errTerminal = errors.New("refusing to write image data to a terminal, use --output or redirect stdout")

// addModelFlags - Flags zur Auswahl und Konfiguration des Generators
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("preset", "", "Network configuration preset (overrides STYLEGAN_PRESET)")
	cmd.Flags().String("config", "", "JSON file overriding fields of the preset")
	cmd.Flags().String("checkpoint", "", "Generator checkpoint (.pt, .pth or .safetensors)")
	cmd.Flags().String("avg-latent", "", "Average style latent for truncation (.json or checkpoint)")
	cmd.Flags().Int("threads", 0, "Number of compute threads")
	cmd.Flags().Uint64("init-seed", 0, "Seed for weight initialization without checkpoint")
}

// paramsFromFlags - Runner-Parameter aus Umgebung, ueberschrieben durch gesetzte Flags
func paramsFromFlags(cmd *cobra.Command) runner.Params {
	p := runner.ParamsFromEnv()
	flags := cmd.Flags()

	if v, _ := flags.GetString("preset"); v != "" {
		p.Preset = v
	}
	if v, _ := flags.GetString("config"); v != "" {
		p.ConfigPath = v
	}
	if v, _ := flags.GetString("checkpoint"); v != "" {
		p.Checkpoint = v
	}
	if v, _ := flags.GetString("avg-latent"); v != "" {
		p.AvgLatent = v
	}
	if v, _ := flags.GetInt("threads"); v > 0 {
		p.NumThreads = v
	}
	if v, _ := flags.GetUint64("init-seed"); v > 0 {
		p.Seed = v
	}

	return p
}

// loadRunner - Baut den lokalen Generator; maxBatch begrenzt die Samples pro Aufruf
func loadRunner(cmd *cobra.Command, maxBatch int) (*runner.Runner, error) {
	p := paramsFromFlags(cmd)
	p.MaxBatch = max(p.MaxBatch, maxBatch)
	return runner.Load(p)
}

// addTruncationFlags - psi/cutoff Overrides
func addTruncationFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("psi", 0.7, "Truncation psi (requires an average latent)")
	cmd.Flags().Int("cutoff", 8, "Number of style slots truncation applies to")
}

// truncationFromFlags - Nur explizit gesetzte Flags ueberschreiben die Konfiguration
func truncationFromFlags(cmd *cobra.Command) runner.Truncation {
	var t runner.Truncation
	if cmd.Flags().Changed("psi") {
		psi, _ := cmd.Flags().GetFloat64("psi")
		t.Psi = &psi
	}
	if cmd.Flags().Changed("cutoff") {
		cutoff, _ := cmd.Flags().GetInt("cutoff")
		t.Cutoff = &cutoff
	}

	return t
}

// addNoiseFlags - Rauschmodus und -seed
func addNoiseFlags(cmd *cobra.Command) {
	cmd.Flags().String("noise", "", "Noise mode: random, fixed or zero (default follows STYLEGAN_RANDOMIZE_NOISE)")
	cmd.Flags().Uint64("noise-seed", 0, "Seed of the noise source (default: the sample seed)")
}

func noiseFromFlags(cmd *cobra.Command) (runner.Noise, error) {
	s, _ := cmd.Flags().GetString("noise")
	mode, err := runner.ParseNoiseMode(s)
	if err != nil {
		return runner.Noise{}, err
	}

	seed, _ := cmd.Flags().GetUint64("noise-seed")
	return runner.Noise{Mode: mode, Seed: seed}, nil
}

// addOutputFlags - Ausgabeziel und Format
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", ".", "Output directory, or - to write the grid to stdout")
	cmd.Flags().String("format", "png", "Image format: png or jpeg")
	cmd.Flags().Int("size", 0, "Resize images to size x size")
	cmd.Flags().Int("nrow", 5, "Images per row of the grid")
	cmd.Flags().Bool("grid", true, "Also write all images as one grid")
}

// imageWriter schreibt Einzelbilder und das Raster eines Laufs
type imageWriter struct {
	dir    string
	runID  string
	format vision.ImageFormat
	opts   []vision.Option
	nrow   int
	grid   bool
	stdout io.Writer
}

func newImageWriter(cmd *cobra.Command) (*imageWriter, error) {
	flags := cmd.Flags()
	dir, _ := flags.GetString("output")
	name, _ := flags.GetString("format")
	size, _ := flags.GetInt("size")
	nrow, _ := flags.GetInt("nrow")
	grid, _ := flags.GetBool("grid")

	format, err := vision.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	w := &imageWriter{
		dir:    dir,
		runID:  uuid.NewString()[:8],
		format: format,
		nrow:   max(nrow, 1),
		grid:   grid,
		stdout: cmd.OutOrStdout(),
	}

	if size < 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	} else if size > 0 {
		w.opts = append(w.opts, vision.WithSize(size))
	}

	if dir == "-" {
		if f, ok := w.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, errTerminal
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return w, nil
}

// Write speichert die Bilder unter <run>-<name>.<ext> und optional das Raster.
// Bei Ausgabe nach stdout wird nur das Raster geschrieben.
func (w *imageWriter) Write(images []image.Image, names []string) ([]string, error) {
	if w.dir == "-" {
		grid, err := vision.Grid(images, w.nrow, vision.GridPadding)
		if err != nil {
			return nil, err
		}
		return nil, w.format.Encode(w.stdout, grid)
	}

	var paths []string
	for i, img := range images {
		path, err := w.save(names[i], img)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if w.grid && len(images) > 1 {
		grid, err := vision.Grid(images, w.nrow, vision.GridPadding)
		if err != nil {
			return paths, err
		}

		path, err := w.save("grid", grid)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (w *imageWriter) save(name string, img image.Image) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", w.runID, name, w.format.Extension()))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := w.format.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}

	return path, f.Close()
}

// checkServerHeartbeat - Prueft ob der Server laeuft
func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("could not connect to the stylegan server (%w), start it with 'stylegan serve'", err)
	}

	return nil
}
