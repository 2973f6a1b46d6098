// MODUL: image
// ZWECK: Generator-Ausgaben [N, C, H, W] in Bilder umwandeln und weiterverarbeiten
// INPUT: ml.Tensor bzw. CHW float32-Daten, image.Image
// OUTPUT: image.Image (Gray fuer 1 Kanal, RGBA fuer 3 Kanaele), skalierte Bilder, Raster
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), ml
// HINWEISE: Werte werden auf den Bereich geklemmt und abgeschnitten (nicht gerundet) quantisiert

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/louis-chevallier/stylegan/ml"
)

var (
	ErrChannels = errors.New("vision: unsupported channel count")
	ErrShape    = errors.New("vision: tensor must be [N, C, H, W]")
)

// ToImage wandelt Sample index eines Tensors [N, C, H, W] in ein Bild um
func ToImage(t ml.Tensor, index int, opts ...Option) (image.Image, error) {
	shape := t.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w, got %v", ErrShape, shape)
	}

	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if index < 0 || index >= n {
		return nil, fmt.Errorf("vision: sample %d out of range [0, %d)", index, n)
	}

	plane := c * h * w
	return FromCHW(t.Floats()[index*plane:(index+1)*plane], c, h, w, opts...)
}

// ToImages wandelt alle Samples eines Tensors [N, C, H, W] um
func ToImages(t ml.Tensor, opts ...Option) ([]image.Image, error) {
	if t.Dim(0) < 1 {
		return nil, nil
	}

	images := make([]image.Image, t.Dim(0))
	for i := range images {
		img, err := ToImage(t, i, opts...)
		if err != nil {
			return nil, err
		}
		images[i] = img
	}

	return images, nil
}

// FromCHW baut ein Bild aus CHW-Daten
func FromCHW(chw []float32, c, h, w int, opts ...Option) (image.Image, error) {
	o := defaultConvertOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if len(chw) != c*h*w {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d", ErrShape, len(chw), c, h, w)
	}

	var img image.Image
	switch c {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		for i, v := range chw {
			gray.Pix[i] = quantize(v, o.lo, o.hi)
		}
		img = gray
	case 3:
		hwc := HWCTensorLayout(chw, c, h, w)
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := range h * w {
			rgba.Pix[4*i] = quantize(hwc[3*i], o.lo, o.hi)
			rgba.Pix[4*i+1] = quantize(hwc[3*i+1], o.lo, o.hi)
			rgba.Pix[4*i+2] = quantize(hwc[3*i+2], o.lo, o.hi)
			rgba.Pix[4*i+3] = 0xff
		}
		img = rgba
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannels, c)
	}

	if o.size > 0 && (o.size != w || o.size != h) {
		img = Resize(img, o.size, o.size)
	}

	return img, nil
}

// ToCHW wandelt ein Bild in RGB-CHW-Daten im Bereich [lo, hi] um
func ToCHW(img image.Image, lo, hi float32) []float32 {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	hwc := make([]float32, 0, h*w*3)
	unit := func(v uint32) float32 {
		return float32(v>>8)/255*(hi-lo) + lo
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			hwc = append(hwc,
				unit(r),
				unit(g),
				unit(bl),
			)
		}
	}

	return CHWTensorLayout(hwc, h, w, 3)
}

// Resize skaliert ein Bild mit Catmull-Rom auf width x height
func Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// GridPadding ist der Rand zwischen Rasterzellen in Pixeln
const GridPadding = 2

// Grid ordnet gleich grosse Bilder in Zeilen zu nrow Bildern an, mit
// schwarzem Rand von padding Pixeln um jede Zelle
func Grid(images []image.Image, nrow, padding int) (image.Image, error) {
	if len(images) == 0 {
		return nil, errors.New("vision: empty grid")
	}

	cell := images[0].Bounds().Size()
	for i, img := range images[1:] {
		if img.Bounds().Size() != cell {
			return nil, fmt.Errorf("vision: image %d is %v, want %v", i+1, img.Bounds().Size(), cell)
		}
	}

	cols := min(max(nrow, 1), len(images))
	rows := (len(images) + cols - 1) / cols

	stepX, stepY := cell.X+padding, cell.Y+padding
	dst := image.NewRGBA(image.Rect(0, 0, cols*stepX+padding, rows*stepY+padding))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i, img := range images {
		x, y := (i%cols)*stepX+padding, (i/cols)*stepY+padding
		r := image.Rect(x, y, x+cell.X, y+cell.Y)
		draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
	}

	return dst, nil
}
