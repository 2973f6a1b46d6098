// tensor_nn.go - Neural Network Operationen
// Enthält: Conv2D, Conv2DDepthwise, ConvTranspose2D, RELU, LeakyRELU, Interpolate
//
// Faltungen laufen als im2col + GEMM. Die Spalten-Matrix wird ueber die
// Ausgabepositionen gekachelt, damit der Speicherbedarf auch bei 1024x1024
// begrenzt bleibt. Die Kachelung haengt nur von den Formen ab, nicht von der
// Thread-Anzahl, die Ergebnisse sind daher reproduzierbar.

package cpu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/louis-chevallier/stylegan/ml"
)

// colBudget ist die maximale Groesse einer im2col-Kachel in Elementen
const colBudget = 1 << 20

// tileSize waehlt die Anzahl Positionen pro Kachel fuer k Zeilen
func tileSize(k, positions int) int {
	return max(1, min(positions, colBudget/max(k, 1)))
}

// Conv2D faltet t2 [N, Cin, H, W] mit dem Kernel t [Cout, Cin, kH, kW]
func (t *Tensor) Conv2D(ctx ml.Context, t2 ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	x := tensorOf(t2)
	if len(t.shape) != 4 || len(x.shape) != 4 || t.shape[1] != x.shape[1] {
		panic(fmt.Sprintf("cpu: conv2d shape mismatch kernel %v input %v", t.shape, x.shape))
	}

	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := t.shape[0], t.shape[2], t.shape[3]
	oh := (h+2*p0-d0*(kh-1)-1)/s0 + 1
	ow := (w+2*p1-d1*(kw-1)-1)/s1 + 1
	if oh < 1 || ow < 1 {
		panic(fmt.Sprintf("cpu: conv2d output is empty for input %v", x.shape))
	}

	out := t.like([]int{n, cout, oh, ow})
	k := cin * kh * kw
	positions := oh * ow
	tile := tileSize(k, positions)
	tiles := (positions + tile - 1) / tile

	weight := blas32.General{Rows: cout, Cols: k, Stride: k, Data: t.data}

	ctxOf(ctx).parallel(n*tiles, func(job int) {
		b, lo := job/tiles, (job%tiles)*tile
		hi := min(lo+tile, positions)
		cols := hi - lo

		col := make([]float32, k*cols)
		src := x.data[b*cin*h*w : (b+1)*cin*h*w]
		for ci := range cin {
			for ky := range kh {
				for kx := range kw {
					row := col[((ci*kh+ky)*kw+kx)*cols:][:cols]
					for p := range cols {
						oy, ox := (lo+p)/ow, (lo+p)%ow
						iy := oy*s0 - p0 + ky*d0
						ix := ox*s1 - p1 + kx*d1
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							row[p] = src[(ci*h+iy)*w+ix]
						}
					}
				}
			}
		}

		// Ergebnis direkt in das Ausgabeband schreiben
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			weight,
			blas32.General{Rows: k, Cols: cols, Stride: cols, Data: col},
			0,
			blas32.General{Rows: cout, Cols: cols, Stride: positions, Data: out.data[b*cout*positions+lo:]},
		)
	})

	return out
}

// Conv2DDepthwise faltet jeden Kanal von t2 einzeln mit t [C, 1, kH, kW]
func (t *Tensor) Conv2DDepthwise(ctx ml.Context, t2 ml.Tensor, s0, s1, p0, p1 int) ml.Tensor {
	x := tensorOf(t2)
	if len(t.shape) != 4 || len(x.shape) != 4 || t.shape[1] != 1 || t.shape[0] != x.shape[1] {
		panic(fmt.Sprintf("cpu: depthwise conv shape mismatch kernel %v input %v", t.shape, x.shape))
	}

	n, c, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	kh, kw := t.shape[2], t.shape[3]
	oh := (h+2*p0-kh)/s0 + 1
	ow := (w+2*p1-kw)/s1 + 1
	if oh < 1 || ow < 1 {
		panic(fmt.Sprintf("cpu: depthwise conv output is empty for input %v", x.shape))
	}

	out := t.like([]int{n, c, oh, ow})
	ctxOf(ctx).parallel(n*c, func(plane int) {
		ch := plane % c
		src := x.data[plane*h*w : (plane+1)*h*w]
		dst := out.data[plane*oh*ow : (plane+1)*oh*ow]
		kern := t.data[ch*kh*kw : (ch+1)*kh*kw]
		for oy := range oh {
			for ox := range ow {
				var sum float32
				for ky := range kh {
					iy := oy*s0 - p0 + ky
					if iy < 0 || iy >= h {
						continue
					}
					for kx := range kw {
						ix := ox*s1 - p1 + kx
						if ix < 0 || ix >= w {
							continue
						}
						sum += kern[ky*kw+kx] * src[iy*w+ix]
					}
				}
				dst[oy*ow+ox] = sum
			}
		}
	})

	return out
}

// ConvTranspose2D berechnet die transponierte Faltung von t2 [N, Cin, H, W]
// mit dem Kernel t [Cin, Cout, kH, kW]
func (t *Tensor) ConvTranspose2D(ctx ml.Context, t2 ml.Tensor, s0, s1, p0, p1 int) ml.Tensor {
	x := tensorOf(t2)
	if len(t.shape) != 4 || len(x.shape) != 4 || t.shape[0] != x.shape[1] {
		panic(fmt.Sprintf("cpu: conv transpose shape mismatch kernel %v input %v", t.shape, x.shape))
	}

	n, cin, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	cout, kh, kw := t.shape[1], t.shape[2], t.shape[3]
	oh := (h-1)*s0 - 2*p0 + kh
	ow := (w-1)*s1 - 2*p1 + kw
	if oh < 1 || ow < 1 {
		panic(fmt.Sprintf("cpu: conv transpose output is empty for input %v", x.shape))
	}

	out := t.like([]int{n, cout, oh, ow})
	k := cout * kh * kw
	positions := h * w
	tile := tileSize(k, positions)

	weight := blas32.General{Rows: cin, Cols: k, Stride: k, Data: t.data}

	// Die Scatter-Phase ueberlappt innerhalb eines Samples, daher nur ueber N parallel
	ctxOf(ctx).parallel(n, func(b int) {
		col := make([]float32, k*tile)
		dst := out.data[b*cout*oh*ow : (b+1)*cout*oh*ow]
		for lo := 0; lo < positions; lo += tile {
			cols := min(tile, positions-lo)

			blas32.Gemm(blas.Trans, blas.NoTrans, 1,
				weight,
				blas32.General{Rows: cin, Cols: cols, Stride: positions, Data: x.data[b*cin*positions+lo:]},
				0,
				blas32.General{Rows: k, Cols: cols, Stride: cols, Data: col},
			)

			for co := range cout {
				for ky := range kh {
					for kx := range kw {
						row := col[((co*kh+ky)*kw+kx)*cols:][:cols]
						for p := range cols {
							iy, ix := (lo+p)/w, (lo+p)%w
							oy := iy*s0 - p0 + ky
							ox := ix*s1 - p1 + kx
							if oy >= 0 && oy < oh && ox >= 0 && ox < ow {
								dst[(co*oh+oy)*ow+ox] += row[p]
							}
						}
					}
				}
			}
		}
	})

	return out
}

// RELU wendet die ReLU-Aktivierung an
func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.unary(ctx, func(v float32) float32 { return max(v, 0) })
}

// LeakyRELU wendet die Leaky-ReLU-Aktivierung an
func (t *Tensor) LeakyRELU(ctx ml.Context, slope float32) ml.Tensor {
	return t.unary(ctx, func(v float32) float32 {
		if v < 0 {
			return v * slope
		}
		return v
	})
}

// Interpolate skaliert t [N, C, H, W] auf dims
func (t *Tensor) Interpolate(ctx ml.Context, dims [4]int, samplingMode ml.SamplingMode) ml.Tensor {
	if len(t.shape) != 4 || dims[0] != t.shape[0] || dims[1] != t.shape[1] {
		panic(fmt.Sprintf("cpu: interpolate only resizes spatial dims, got %v -> %v", t.shape, dims))
	}

	n, c, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	oh, ow := dims[2], dims[3]
	out := t.like(dims[:])

	var sample func(src []float32, oy, ox int) float32
	switch samplingMode {
	case ml.SamplingModeNearest:
		sample = func(src []float32, oy, ox int) float32 {
			return src[(oy*h/oh)*w+ox*w/ow]
		}
	case ml.SamplingModeBilinear:
		// Halbpixel-Zentren (align_corners=false)
		sample = func(src []float32, oy, ox int) float32 {
			y0, y1, fy := bilinearCoord(oy, h, oh)
			x0, x1, fx := bilinearCoord(ox, w, ow)
			top := src[y0*w+x0]*(1-fx) + src[y0*w+x1]*fx
			bottom := src[y1*w+x0]*(1-fx) + src[y1*w+x1]*fx
			return top*(1-fy) + bottom*fy
		}
	default:
		panic(fmt.Sprintf("cpu: unsupported sampling mode %d", samplingMode))
	}

	ctxOf(ctx).parallel(n*c, func(plane int) {
		src := t.data[plane*h*w : (plane+1)*h*w]
		dst := out.data[plane*oh*ow : (plane+1)*oh*ow]
		for oy := range oh {
			for ox := range ow {
				dst[oy*ow+ox] = sample(src, oy, ox)
			}
		}
	})

	return out
}

// bilinearCoord liefert die beiden Quellindizes und das Gewicht des zweiten
func bilinearCoord(o, in, out int) (int, int, float32) {
	pos := (float64(o)+0.5)*float64(in)/float64(out) - 0.5
	pos = max(pos, 0)
	i0 := min(int(math.Floor(pos)), in-1)
	i1 := min(i0+1, in-1)
	return i0, i1, float32(pos - float64(i0))
}
