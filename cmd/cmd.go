// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"slices"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/louis-chevallier/stylegan/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-26s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "stylegan",
		Short:         "StyleGAN image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	generateCmd := newGenerateCmd()
	interpolateCmd := newInterpolateCmd()
	manifestCmd := newManifestCmd()
	validateCmd := newValidateCmd()
	exportCmd := newExportCmd()
	serveCmd := newServeCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	modelEnvs := []envconfig.EnvVar{
		envVars["STYLEGAN_DEBUG"],
		envVars["STYLEGAN_PRESET"],
		envVars["STYLEGAN_CHECKPOINT"],
		envVars["STYLEGAN_AVG_LATENT"],
		envVars["STYLEGAN_FUSED_THRESHOLD"],
		envVars["STYLEGAN_RANDOMIZE_NOISE"],
		envVars["STYLEGAN_NUM_THREADS"],
	}

	for _, cmd := range []*cobra.Command{
		generateCmd,
		interpolateCmd,
		manifestCmd,
		validateCmd,
		exportCmd,
		serveCmd,
	} {
		switch cmd {
		case generateCmd:
			appendEnvDocs(cmd, slices.Concat(modelEnvs, []envconfig.EnvVar{envVars["STYLEGAN_HOST"]}))
		case serveCmd:
			appendEnvDocs(cmd, slices.Concat(modelEnvs, []envconfig.EnvVar{
				envVars["STYLEGAN_HOST"],
				envVars["STYLEGAN_ORIGINS"],
				envVars["STYLEGAN_NUM_PARALLEL"],
				envVars["STYLEGAN_MAX_BATCH"],
				envVars["STYLEGAN_MAX_SIZE"],
				envVars["STYLEGAN_REQUEST_TIMEOUT"],
			}))
		default:
			appendEnvDocs(cmd, modelEnvs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		generateCmd,
		interpolateCmd,
		manifestCmd,
		validateCmd,
		exportCmd,
		envCmd,
	)

	return rootCmd
}
