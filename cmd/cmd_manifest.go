// cmd_manifest.go - manifest, validate, export und env Commands
// Hauptfunktionen: ManifestHandler, ValidateHandler, ExportHandler, EnvHandler
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/louis-chevallier/stylegan/convert"
	"github.com/louis-chevallier/stylegan/envconfig"
	"github.com/louis-chevallier/stylegan/ml/backend/cpu"
	"github.com/louis-chevallier/stylegan/model"
	"github.com/louis-chevallier/stylegan/model/models/stylegan"
)

// newTable - Tabelle im Stil der uebrigen Listen-Ausgaben
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// buildManifest - Baut den Generator ohne Gewichte und liefert sein Manifest
func buildManifest(cmd *cobra.Command) (*model.Manifest, stylegan.Config, error) {
	p := paramsFromFlags(cmd)
	cfg, err := p.Config()
	if err != nil {
		return nil, cfg, err
	}

	// Topologie haengt nicht von Seed oder Threads ab
	ctx := cpu.NewContext(1)
	defer ctx.Close()

	g, err := stylegan.New(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}

	return g.Manifest(), cfg, nil
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ManifestHandler - Listet die erwarteten Tensoren einer Konfiguration
func ManifestHandler(cmd *cobra.Command, _ []string) error {
	m, cfg, err := buildManifest(cmd)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	var data [][]string
	for name, e := range m.All() {
		kind := "param"
		if e.Buffer {
			kind = "buffer"
		}
		data = append(data, []string{name, formatShape(e.Shape), kind})
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "SHAPE", "KIND")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d tensors, %d values, resolution %d, %d style slots\n", m.Len(), m.NumElements(), cfg.Resolution, cfg.NumLayers())
	return nil
}

// ValidateHandler - Prueft einen Checkpoint gegen das Manifest
func ValidateHandler(cmd *cobra.Command, args []string) error {
	m, _, err := buildManifest(cmd)
	if err != nil {
		return err
	}

	ckpt, err := convert.Open(args[0])
	if err != nil {
		return err
	}

	if err := convert.Validate(ckpt, m); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tensors match\n", args[0], ckpt.Len())
	return nil
}

// ExportHandler - Laedt den Checkpoint und schreibt ihn als safetensors.
// Aliase werden dabei auf die kanonischen Namen abgebildet.
func ExportHandler(cmd *cobra.Command, args []string) error {
	dtype, _ := cmd.Flags().GetString("dtype")
	dtype = strings.ToUpper(dtype)

	p := paramsFromFlags(cmd)
	if p.Checkpoint == "" {
		return errors.New("export requires --checkpoint or STYLEGAN_CHECKPOINT")
	}

	r, err := loadRunner(cmd, 1)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}

	ckpt := r.Checkpoint()
	metadata := map[string]string{"source": p.Checkpoint}
	if p.Preset != "" {
		metadata["preset"] = p.Preset
	}

	if err := convert.WriteSafetensors(f, ckpt, dtype, metadata); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tensors written as %s\n", args[0], ckpt.Len(), dtype)
	return nil
}

// EnvHandler - Zeigt alle STYLEGAN_* Variablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()

	var data [][]string
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
	table.AppendBulk(data)
	table.Render()
	return nil
}

// newManifestCmd - Erstellt den manifest Command
func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "List the tensors a checkpoint must provide",
		Args:  cobra.ExactArgs(0),
		RunE:  ManifestHandler,
	}

	cmd.Flags().Bool("json", false, "Print the manifest as JSON")
	addModelFlags(cmd)
	return cmd
}

// newValidateCmd - Erstellt den validate Command
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate CHECKPOINT",
		Short: "Check a checkpoint against the manifest of a configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  ValidateHandler,
	}

	addModelFlags(cmd)
	return cmd
}

// newExportCmd - Erstellt den export Command
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export OUTPUT",
		Short: "Convert a checkpoint to safetensors",
		Args:  cobra.ExactArgs(1),
		RunE:  ExportHandler,
	}

	cmd.Flags().String("dtype", "F32", "Output data type: F32 or F16")
	addModelFlags(cmd)
	return cmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the environment configuration",
		Args:  cobra.ExactArgs(0),
		RunE:  EnvHandler,
	}
}
