// MODUL: errors
// ZWECK: Fehler-Definitionen fuer den StyleGAN-Generator
// INPUT: -
// OUTPUT: Sentinel-Fehler, ConfigError, ShapeError
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: errors, fmt (Standard-Library)
// HINWEISE: Alle typisierten Fehler wrappen einen Sentinel, errors.Is funktioniert durchgehend

package stylegan

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel-Fehler
// ============================================================================

var (
	// Konfigurationsfehler (beim Aufbau)
	ErrInvalidResolution   = errors.New("stylegan: resolution must be a power of two >= 4")
	ErrUnknownNonlinearity = errors.New("stylegan: unknown nonlinearity")
	ErrInvalidChannels     = errors.New("stylegan: invalid channel configuration")
	ErrInvalidConfig       = errors.New("stylegan: invalid configuration")

	// Formfehler (beim Aufruf)
	ErrLatentShape = errors.New("stylegan: latent shape mismatch")
	ErrDlatentRank = errors.New("stylegan: dlatents must have rank 3")
	ErrStyleSlots  = errors.New("stylegan: style slot count mismatch")

	// Rauschen
	ErrNoiseSourceRequired = errors.New("stylegan: noise source required when randomize_noise is false")
	ErrNoiseMissing        = errors.New("stylegan: no noise for layer")
	ErrNoiseShape          = errors.New("stylegan: noise shape mismatch")
)

// ============================================================================
// ConfigError - Fehler in der Netzwerk-Konfiguration
// ============================================================================

// ConfigError beschreibt ein ungueltiges Konfigurationsfeld
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v", e.Err, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ============================================================================
// ShapeError - Falsche Tensor-Form beim Aufruf
// ============================================================================

// ShapeError beschreibt eine Eingabe mit falscher Form
type ShapeError struct {
	Op   string
	Want string
	Got  []int
	Err  error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %v: want %s, got %v", e.Op, e.Err, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}
