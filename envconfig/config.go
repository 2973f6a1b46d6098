// config.go - Haupt-Konfigurationsfunktionen fuer den Generator-Dienst
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (STYLEGAN_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (STYLEGAN_ORIGINS)
// - Checkpoint: Pfad zum Gewichts-Checkpoint (STYLEGAN_CHECKPOINT)
// - AvgLatent: Pfad zum Durchschnitts-Latent (STYLEGAN_AVG_LATENT)
// - RequestTimeout: Zeitlimit pro Generierung (STYLEGAN_REQUEST_TIMEOUT)
// - LogLevel: Gibt Log-Level zurueck (STYLEGAN_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Modell- und Parallelitaets-Einstellungen
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPort ist der Standard-Port des HTTP-Servers
const DefaultPort = "8188"

// Host gibt Scheme und Host zurueck
// Konfigurierbar via STYLEGAN_HOST
// Default: http://127.0.0.1:8188
func Host() *url.URL {
	defaultPort := DefaultPort

	s := strings.TrimSpace(Var("STYLEGAN_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via STYLEGAN_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("STYLEGAN_ORIGINS"); s != "" {
		for o := range strings.SplitSeq(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Checkpoint gibt den Pfad zum Gewichts-Checkpoint zurueck
// Konfigurierbar via STYLEGAN_CHECKPOINT
// Leer = zufaellig initialisierte Gewichte
var Checkpoint = String("STYLEGAN_CHECKPOINT")

// AvgLatent gibt den Pfad zum Durchschnitts-Latent fuer die Truncation zurueck
// Konfigurierbar via STYLEGAN_AVG_LATENT
// Leer = keine Truncation
var AvgLatent = String("STYLEGAN_AVG_LATENT")

// RequestTimeout gibt das Zeitlimit pro Generierungs-Request zurueck
// Konfigurierbar via STYLEGAN_REQUEST_TIMEOUT (Dauer oder Sekunden)
// 0 oder negative Werte = unbegrenzt
// Default: 2 Minuten
func RequestTimeout() (timeout time.Duration) {
	timeout = 2 * time.Minute
	if s := Var("STYLEGAN_REQUEST_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			timeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			timeout = time.Duration(n) * time.Second
		}
	}

	if timeout < 0 {
		return 0
	}

	return timeout
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via STYLEGAN_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("STYLEGAN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
