// MODUL: options
// ZWECK: Functional Options fuer die Umwandlung Tensor -> Bild
// INPUT: Optionaler Wertebereich, Zielgroesse
// OUTPUT: convertOptions Struct
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: Keine
// HINWEISE: Standard ist der rohe Generator-Bereich [-1, 1] ohne Skalierung

package vision

// convertOptions enthaelt die Konfiguration fuer ToImage
type convertOptions struct {
	lo, hi float32
	size   int
}

// Option ist eine funktionale Option fuer ToImage
type Option func(*convertOptions)

func defaultConvertOptions() convertOptions {
	return convertOptions{lo: -1, hi: 1}
}

// WithRange setzt den Wertebereich, der auf [0, 255] abgebildet wird
func WithRange(lo, hi float32) Option {
	return func(o *convertOptions) {
		if hi > lo {
			o.lo, o.hi = lo, hi
		}
	}
}

// WithSize skaliert das Ergebnis auf size x size (0 = unveraendert)
func WithSize(size int) Option {
	return func(o *convertOptions) {
		if size >= 0 {
			o.size = size
		}
	}
}
