// config_features.go - Modell- und Parallelitaets-Einstellungen
//
// Dieses Modul enthaelt:
// - Netz-Auswahl (Preset) und Ausfuehrungs-Parameter (Fused-Schwelle, Threads)
// - Parallelitaets-Einstellungen des Servers
package envconfig

import "runtime"

// =============================================================================
// Modell-Einstellungen
// =============================================================================

var (
	// Preset waehlt die Netz-Konfiguration
	// Konfigurierbar via STYLEGAN_PRESET
	Preset = StringWithDefault("STYLEGAN_PRESET", "ffhq-1024")

	// FusedThreshold ist die Eingangsgroesse*2, ab der der fused Upscale-Pfad laeuft
	// Konfigurierbar via STYLEGAN_FUSED_THRESHOLD
	FusedThreshold = Uint("STYLEGAN_FUSED_THRESHOLD", 128)

	// RandomizeNoise zieht bei jedem Aufruf frisches Rauschen
	// Konfigurierbar via STYLEGAN_RANDOMIZE_NOISE
	RandomizeNoise = BoolWithDefault("STYLEGAN_RANDOMIZE_NOISE")
)

// NumThreads gibt die Anzahl der Rechen-Threads zurueck
// Konfigurierbar via STYLEGAN_NUM_THREADS
// Default: Anzahl CPU-Kerne
func NumThreads() int {
	if n := Uint("STYLEGAN_NUM_THREADS", 0)(); n > 0 {
		return int(n)
	}

	return runtime.NumCPU()
}

// =============================================================================
// Parallelitaets- und Queue-Einstellungen
// =============================================================================

var (
	// NumParallel setzt die Anzahl gleichzeitiger Generierungen
	// Konfigurierbar via STYLEGAN_NUM_PARALLEL
	NumParallel = Uint("STYLEGAN_NUM_PARALLEL", 1)

	// MaxBatch begrenzt die Batch-Groesse pro Request
	// Konfigurierbar via STYLEGAN_MAX_BATCH
	MaxBatch = Uint("STYLEGAN_MAX_BATCH", 16)

	// MaxSize begrenzt die Kantenlaenge skalierter Ausgabebilder
	// Konfigurierbar via STYLEGAN_MAX_SIZE
	MaxSize = Uint("STYLEGAN_MAX_SIZE", 2048)
)
