// MODUL: normalize
// ZWECK: Quantisierung und Layout-Umwandlung zwischen Tensor-Daten und Pixeln
// INPUT: float32-Werte im CHW oder HWC Layout
// OUTPUT: 8-Bit-Werte bzw. umsortierte float32-Slices
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: quantize schneidet ab wie eine uint8-Umwandlung nach (x-lo)/(hi-lo)*255

package vision

// quantize klemmt v auf [lo, hi] und bildet linear auf [0, 255] ab
func quantize(v, lo, hi float32) uint8 {
	switch {
	case v != v || v <= lo:
		return 0
	case v >= hi:
		return 255
	}

	return uint8((v - lo) / (hi - lo) * 255)
}

// CHWTensorLayout konvertiert HWC zu CHW Layout
// Input: hwc Tensor mit Dimensionen [h, w, c]
// Output: chw Tensor mit Dimensionen [c, h, w]
func CHWTensorLayout(hwc []float32, h, w, c int) []float32 {
	if len(hwc) != h*w*c {
		return nil
	}

	chw := make([]float32, len(hwc))
	plane := h * w
	for i := range plane {
		for ch := range c {
			chw[ch*plane+i] = hwc[i*c+ch]
		}
	}

	return chw
}

// HWCTensorLayout konvertiert CHW zu HWC Layout
// Input: chw Tensor mit Dimensionen [c, h, w]
// Output: hwc Tensor mit Dimensionen [h, w, c]
func HWCTensorLayout(chw []float32, c, h, w int) []float32 {
	if len(chw) != c*h*w {
		return nil
	}

	hwc := make([]float32, len(chw))
	plane := h * w
	for ch := range c {
		for i := range plane {
			hwc[i*c+ch] = chw[ch*plane+i]
		}
	}

	return hwc
}
