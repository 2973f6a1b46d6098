// avg_latent.go - Durchschnitts-Style-Latent fuer die Truncation laden
// Quellen: JSON-Array oder ein Checkpoint mit einem Tensor "*avg_latent".

package convert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AvgLatentSuffix ist das Namens-Suffix des Puffers in Checkpoints
const AvgLatentSuffix = "avg_latent"

// ReadAverageLatent liest den Durchschnitts-Latent aus path und prueft die Laenge
func ReadAverageLatent(path string, size int) ([]float32, error) {
	var avg []float32

	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(b, &avg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		c, err := Open(path)
		if err != nil {
			return nil, err
		}

		avg, err = FindAverageLatent(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if len(avg) != size {
		return nil, fmt.Errorf("%w: average latent of %s has %d values, want %d", ErrCorrupt, path, len(avg), size)
	}

	return avg, nil
}

// FindAverageLatent sucht den ersten Tensor mit Suffix avg_latent
func FindAverageLatent(c *Checkpoint) ([]float32, error) {
	for name, t := range c.All() {
		if strings.HasSuffix(name, AvgLatentSuffix) {
			return t.Data, nil
		}
	}

	return nil, fmt.Errorf("%w: no %s tensor", ErrCorrupt, AvgLatentSuffix)
}
