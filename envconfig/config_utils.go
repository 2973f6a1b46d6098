// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String/StringWithDefault: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// StringWithDefault gibt eine Funktion zurueck, die einen String mit Default liest
func StringWithDefault(s, defaultValue string) func() string {
	return func() string {
		if v := Var(s); v != "" {
			return v
		}
		return defaultValue
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"STYLEGAN_DEBUG":           {"STYLEGAN_DEBUG", LogLevel(), "Show additional debug information (e.g. STYLEGAN_DEBUG=1, 2 for trace)"},
		"STYLEGAN_HOST":            {"STYLEGAN_HOST", Host(), "IP Address for the server (default 127.0.0.1:8188)"},
		"STYLEGAN_ORIGINS":         {"STYLEGAN_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"STYLEGAN_CHECKPOINT":      {"STYLEGAN_CHECKPOINT", Checkpoint(), "Path to a .pt or .safetensors generator checkpoint"},
		"STYLEGAN_AVG_LATENT":      {"STYLEGAN_AVG_LATENT", AvgLatent(), "Path to the average style latent used by truncation"},
		"STYLEGAN_PRESET":          {"STYLEGAN_PRESET", Preset(), "Network configuration preset (default: ffhq-1024)"},
		"STYLEGAN_FUSED_THRESHOLD": {"STYLEGAN_FUSED_THRESHOLD", FusedThreshold(), "Output size from which upscaling uses the fused transposed convolution (default: 128)"},
		"STYLEGAN_RANDOMIZE_NOISE": {"STYLEGAN_RANDOMIZE_NOISE", RandomizeNoise(true), "Draw fresh noise on every call (default: true)"},
		"STYLEGAN_NUM_THREADS":     {"STYLEGAN_NUM_THREADS", NumThreads(), "Number of compute threads (default: number of CPUs)"},
		"STYLEGAN_NUM_PARALLEL":    {"STYLEGAN_NUM_PARALLEL", NumParallel(), "Maximum number of parallel generations"},
		"STYLEGAN_MAX_BATCH":       {"STYLEGAN_MAX_BATCH", MaxBatch(), "Maximum batch size per request (default: 16)"},
		"STYLEGAN_MAX_SIZE":        {"STYLEGAN_MAX_SIZE", MaxSize(), "Maximum edge length of resized output images (default: 2048)"},
		"STYLEGAN_REQUEST_TIMEOUT": {"STYLEGAN_REQUEST_TIMEOUT", RequestTimeout(), "Time limit per generation request (default \"2m\")"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
