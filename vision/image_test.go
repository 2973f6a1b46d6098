// MODUL: image_test
// ZWECK: Tests fuer Tensor -> Bild Umwandlung, Kodierung, Resize und Raster
// INPUT: Synthetische CHW-Daten und CPU-Tensoren
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image, ml/backend/cpu
// HINWEISE: Quantisierung schneidet ab, daher exakte Byte-Erwartungen

package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/louis-chevallier/stylegan/ml/backend/cpu"
)

func TestQuantize(t *testing.T) {
	nan := float32(math.NaN())

	tests := []struct {
		v    float32
		want uint8
	}{
		{-2, 0},
		{-1, 0},
		{0, 127},
		{0.5, 191},
		{1, 255},
		{7, 255},
		{nan, 0},
	}

	for _, tt := range tests {
		if got := quantize(tt.v, -1, 1); got != tt.want {
			t.Errorf("quantize(%v) = %d, erwartet %d", tt.v, got, tt.want)
		}
	}
}

func TestFromCHWRGB(t *testing.T) {
	// 3 Kanaele, 1x2 Pixel: rot links, blau rechts
	chw := []float32{
		1, -1,
		-1, -1,
		-1, 1,
	}

	img, err := FromCHW(chw, 3, 1, 2)
	if err != nil {
		t.Fatalf("FromCHW() error = %v", err)
	}

	if got := img.Bounds().Size(); got != (image.Point{2, 1}) {
		t.Fatalf("Groesse = %v, erwartet 2x1", got)
	}

	want := []color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}}
	for x, c := range want {
		if got := color.RGBAModel.Convert(img.At(x, 0)); got != c {
			t.Errorf("Pixel %d = %v, erwartet %v", x, got, c)
		}
	}
}

func TestFromCHWGray(t *testing.T) {
	img, err := FromCHW([]float32{0, 1, 2, 3}, 1, 2, 2, WithRange(0, 3))
	if err != nil {
		t.Fatalf("FromCHW() error = %v", err)
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("Typ = %T, erwartet *image.Gray", img)
	}

	want := []uint8{0, 85, 170, 255}
	if !bytes.Equal(gray.Pix, want) {
		t.Errorf("Pixel = %v, erwartet %v", gray.Pix, want)
	}
}

func TestFromCHWErrors(t *testing.T) {
	if _, err := FromCHW(make([]float32, 8), 2, 2, 2); !errors.Is(err, ErrChannels) {
		t.Errorf("Fehler = %v, erwartet ErrChannels", err)
	}

	if _, err := FromCHW(make([]float32, 5), 3, 1, 2); !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
}

func TestToImageFromTensor(t *testing.T) {
	ctx := cpu.NewContext(1)

	// Zwei Samples 1x2x2: Sample 1 ist komplett weiss
	data := []float32{
		-1, -1, -1, -1,
		1, 1, 1, 1,
	}
	x := ctx.FromFloats(data, 2, 1, 2, 2)

	images, err := ToImages(x)
	if err != nil {
		t.Fatalf("ToImages() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("%d Bilder, erwartet 2", len(images))
	}

	if got := images[1].(*image.Gray).Pix; !bytes.Equal(got, []uint8{255, 255, 255, 255}) {
		t.Errorf("Sample 1 = %v, erwartet weiss", got)
	}

	if _, err := ToImage(x, 2); err == nil {
		t.Error("Erwartet Fehler bei Index ausserhalb")
	}

	if _, err := ToImage(ctx.FromFloats(data, 2, 4), 0); !errors.Is(err, ErrShape) {
		t.Errorf("Fehler = %v, erwartet ErrShape", err)
	}
}

func TestWithSize(t *testing.T) {
	img, err := FromCHW(make([]float32, 3*4*4), 3, 4, 4, WithSize(8))
	if err != nil {
		t.Fatalf("FromCHW() error = %v", err)
	}

	if got := img.Bounds().Size(); got != (image.Point{8, 8}) {
		t.Errorf("Groesse = %v, erwartet 8x8", got)
	}
}

func TestResizeUniform(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	dst := Resize(src, 2, 6)
	if got := dst.Bounds().Size(); got != (image.Point{2, 6}) {
		t.Fatalf("Groesse = %v, erwartet 2x6", got)
	}

	// Ein einfarbiges Bild bleibt einfarbig
	near := func(v uint32) bool { return v>>8 >= 199 && v>>8 <= 201 }
	r, g, b, _ := dst.At(1, 3).RGBA()
	if !near(r) || !near(g) || !near(b) {
		t.Errorf("Farbe = (%d, %d, %d), erwartet 200", r>>8, g>>8, b>>8)
	}
}

func TestToCHWRoundtrip(t *testing.T) {
	chw := []float32{
		1, -1, 1, -1,
		-1, 1, -1, 1,
		1, 1, -1, -1,
	}

	img, err := FromCHW(chw, 3, 2, 2)
	if err != nil {
		t.Fatalf("FromCHW() error = %v", err)
	}

	got := ToCHW(img, -1, 1)
	for i := range chw {
		if got[i] != chw[i] {
			t.Errorf("Wert %d = %v, erwartet %v", i, got[i], chw[i])
		}
	}
}

func TestGrid(t *testing.T) {
	cell := func(v uint8) image.Image {
		img := image.NewGray(image.Rect(0, 0, 3, 3))
		for i := range img.Pix {
			img.Pix[i] = v
		}
		return img
	}

	grid, err := Grid([]image.Image{cell(10), cell(20), cell(30)}, 2, GridPadding)
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}

	// 2 Spalten, 2 Zeilen: 2*(3+2)+2 = 12
	if got := grid.Bounds().Size(); got != (image.Point{12, 12}) {
		t.Fatalf("Groesse = %v, erwartet 12x12", got)
	}

	at := func(x, y int) uint8 {
		return color.GrayModel.Convert(grid.At(x, y)).(color.Gray).Y
	}

	if at(0, 0) != 0 || at(2, 2) != 10 || at(7, 2) != 20 || at(2, 7) != 30 || at(7, 7) != 0 {
		t.Errorf("Rasterinhalt falsch: %d %d %d %d %d", at(0, 0), at(2, 2), at(7, 2), at(2, 7), at(7, 7))
	}

	if _, err := Grid([]image.Image{cell(1), image.NewGray(image.Rect(0, 0, 2, 2))}, 2, 0); err == nil {
		t.Error("Erwartet Fehler bei unterschiedlichen Groessen")
	}
}

func TestEncodePNG(t *testing.T) {
	img, err := FromCHW([]float32{0, 0, 0}, 3, 1, 1)
	if err != nil {
		t.Fatalf("FromCHW() error = %v", err)
	}

	b, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}

	if got := color.RGBAModel.Convert(decoded.At(0, 0)).(color.RGBA); got != (color.RGBA{127, 127, 127, 255}) {
		t.Errorf("Pixel = %v, erwartet grau 127", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ImageFormat
		err  bool
	}{
		{"png", FormatPNG, false},
		{".PNG", FormatPNG, false},
		{"", FormatPNG, false},
		{"jpg", FormatJPEG, false},
		{".jpeg", FormatJPEG, false},
		{"gif", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}

	if f, _ := FormatOf("out/seed-1.jpg"); f.Extension() != ".jpg" || f.MimeType() != "image/jpeg" {
		t.Errorf("FormatOf = %v", f)
	}
}
