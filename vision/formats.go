// MODUL: formats
// ZWECK: Ausgabe-Bildformate und deren Kodierung
// INPUT: Format-String oder Dateiendung, image.Image
// OUTPUT: ImageFormat, kodierte Bytes
// NEBENEFFEKTE: Schreibt in den uebergebenen io.Writer
// ABHAENGIGKEITEN: image/png, image/jpeg (Standardbibliothek)
// HINWEISE: PNG ist verlustfrei und Standard, JPEG nur fuer Vorschauen

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// ImageFormat repraesentiert ein unterstuetztes Ausgabeformat
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// JPEGQuality ist die Qualitaet fuer JPEG-Ausgaben
const JPEGQuality = 95

// ErrUnsupportedFormat wird bei unbekanntem Ausgabeformat zurueckgegeben
var ErrUnsupportedFormat = errors.New("vision: unsupported image format")

// ParseFormat erkennt das Format aus Namen oder Dateiendung ("png", ".jpg", ...)
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf erkennt das Format aus einem Dateipfad
func FormatOf(path string) (ImageFormat, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode schreibt img im Format f nach w
func (f ImageFormat) Encode(w io.Writer, img image.Image) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// EncodePNG kodiert img als PNG-Bytes
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := FormatPNG.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MimeType gibt den MIME-Type fuer ein Format zurueck
func (f ImageFormat) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Extension gibt die Dateiendung fuer ein Format zurueck
func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	default:
		return ".bin"
	}
}

// String implementiert Stringer Interface
func (f ImageFormat) String() string {
	return string(f)
}
