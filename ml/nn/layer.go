// Package nn enthaelt parameterfreie Bausteine fuer Generator-Netzwerke:
// Aktivierungen, Normalisierungen, Blur und Upscale.
package nn

import "github.com/louis-chevallier/stylegan/ml"

// Layer ist die gemeinsame Faehigkeit "Tensor transformieren"
type Layer interface {
	Forward(ctx ml.Context, t ml.Tensor) ml.Tensor
}
