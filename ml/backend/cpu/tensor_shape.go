// tensor_shape.go - Shape-Manipulation
// Enthält: Reshape, Permute, Pad, Flip, Repeat, Concat, Slice, Duplicate

package cpu

import (
	"fmt"
	"slices"

	"github.com/louis-chevallier/stylegan/ml"
)

// Reshape aendert die Form; eine Dimension darf -1 sein und wird abgeleitet
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	shape = slices.Clone(shape)
	infer, known := -1, 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d > 0:
			known *= d
		default:
			panic(fmt.Sprintf("cpu: invalid reshape %v", shape))
		}
	}

	if infer >= 0 {
		if len(t.data)%known != 0 {
			panic(fmt.Sprintf("cpu: cannot reshape %v to %v", t.shape, shape))
		}
		shape[infer] = len(t.data) / known
	}

	if numel(shape) != len(t.data) {
		panic(fmt.Sprintf("cpu: cannot reshape %v to %v", t.shape, shape))
	}

	return &Tensor{b: t.b, shape: shape, data: slices.Clone(t.data)}
}

// Permute ordnet die Dimensionen um; out.shape[i] = t.shape[order[i]]
func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	rank := len(t.shape)
	if len(order) != rank {
		panic(fmt.Sprintf("cpu: permute order %v does not match rank %d", order, rank))
	}

	shape := make([]int, rank)
	srcStrides := stridesOf(t.shape)
	strides := make([]int, rank)
	for i, o := range order {
		o = normDim(o, rank)
		shape[i] = t.shape[o]
		strides[i] = srcStrides[o]
	}

	out := t.like(shape)
	gather(ctxOf(ctx), out, t.data, strides, 0)
	return out
}

// gather fuellt out, indem es t.data mit den gegebenen Strides ab offset liest
func gather(c *Context, out *Tensor, src []float32, strides []int, offset int) {
	rank := len(out.shape)
	inner := out.shape[rank-1]
	is := strides[rank-1]
	rows := len(out.data) / inner

	c.parallelRange(rows, func(lo, hi int) {
		for row := lo; row < hi; row++ {
			r, off := row, offset
			for d := rank - 2; d >= 0; d-- {
				off += (r % out.shape[d]) * strides[d]
				r /= out.shape[d]
			}

			dst := out.data[row*inner : (row+1)*inner]
			for k := range dst {
				dst[k] = src[off+k*is]
			}
		}
	})
}

// scatter schreibt src (Form shape) in dst ab offset mit den Strides von dst
func scatter(c *Context, dst []float32, dstStrides []int, offset int, src *Tensor) {
	rank := len(src.shape)
	inner := src.shape[rank-1]
	is := dstStrides[rank-1]
	rows := len(src.data) / inner

	c.parallelRange(rows, func(lo, hi int) {
		for row := lo; row < hi; row++ {
			r, off := row, offset
			for d := rank - 2; d >= 0; d-- {
				off += (r % src.shape[d]) * dstStrides[d]
				r /= src.shape[d]
			}

			for k, v := range src.data[row*inner : (row+1)*inner] {
				dst[off+k*is] = v
			}
		}
	})
}

// Pad fuegt Nullen um den Tensor hinzu
func (t *Tensor) Pad(ctx ml.Context, pads ...int) ml.Tensor {
	rank := len(t.shape)
	if len(pads)%2 != 0 || len(pads) > 2*rank {
		panic(fmt.Sprintf("cpu: invalid pad %v for rank %d", pads, rank))
	}

	shape := t.Shape()
	offsets := make([]int, rank)
	for i := 0; i < len(pads); i += 2 {
		if pads[i] < 0 || pads[i+1] < 0 {
			panic(fmt.Sprintf("cpu: negative pad %v", pads))
		}
		offsets[i/2] = pads[i]
		shape[i/2] += pads[i] + pads[i+1]
	}

	out := t.like(shape)
	strides := stridesOf(shape)
	offset := 0
	for i, o := range offsets {
		offset += o * strides[i]
	}

	scatter(ctxOf(ctx), out.data, strides, offset, t)
	return out
}

// Flip kehrt die Reihenfolge entlang der angegebenen Dimensionen um
func (t *Tensor) Flip(ctx ml.Context, dims ...int) ml.Tensor {
	rank := len(t.shape)
	strides := stridesOf(t.shape)
	offset := 0
	for _, d := range dims {
		d = normDim(d, rank)
		if strides[d] > 0 {
			offset += (t.shape[d] - 1) * strides[d]
			strides[d] = -strides[d]
		}
	}

	out := t.like(t.shape)
	gather(ctxOf(ctx), out, t.data, strides, offset)
	return out
}

// Repeat wiederholt den Tensor n-mal entlang dim
func (t *Tensor) Repeat(ctx ml.Context, dim, n int) ml.Tensor {
	if n < 1 {
		panic(fmt.Sprintf("cpu: invalid repeat count %d", n))
	}

	dim = normDim(dim, len(t.shape))
	shape := t.Shape()
	shape[dim] *= n

	out := t.like(shape)
	outer := numel(t.shape[:dim])
	inner := numel(t.shape[dim:])
	for i := range outer {
		block := t.data[i*inner : (i+1)*inner]
		for j := range n {
			copy(out.data[(i*n+j)*inner:], block)
		}
	}

	return out
}

// Concat verbindet zwei Tensoren entlang dim
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	o := tensorOf(t2)
	rank := len(t.shape)
	dim = normDim(dim, rank)
	if len(o.shape) != rank {
		panic(fmt.Sprintf("cpu: concat rank mismatch %v and %v", t.shape, o.shape))
	}

	shape := t.Shape()
	for i := range rank {
		if i != dim && t.shape[i] != o.shape[i] {
			panic(fmt.Sprintf("cpu: concat shape mismatch %v and %v", t.shape, o.shape))
		}
	}
	shape[dim] += o.shape[dim]

	out := t.like(shape)
	outer := numel(shape[:dim])
	a := numel(t.shape[dim:])
	b := numel(o.shape[dim:])
	for i := range outer {
		copy(out.data[i*(a+b):], t.data[i*a:(i+1)*a])
		copy(out.data[i*(a+b)+a:], o.data[i*b:(i+1)*b])
	}

	return out
}

// Slice schneidet [low, high) mit Schrittweite step entlang dim aus
func (t *Tensor) Slice(ctx ml.Context, dim, low, high, step int) ml.Tensor {
	rank := len(t.shape)
	dim = normDim(dim, rank)
	if step < 1 || low < 0 || high > t.shape[dim] || low >= high {
		panic(fmt.Sprintf("cpu: invalid slice [%d:%d:%d] of dim %d in %v", low, high, step, dim, t.shape))
	}

	shape := t.Shape()
	shape[dim] = (high - low + step - 1) / step

	strides := stridesOf(t.shape)
	offset := low * strides[dim]
	strides[dim] *= step

	out := t.like(shape)
	gather(ctxOf(ctx), out, t.data, strides, offset)
	return out
}

// Duplicate erstellt eine tiefe Kopie
func (t *Tensor) Duplicate(ctx ml.Context) ml.Tensor {
	return &Tensor{b: t.b, shape: t.Shape(), data: slices.Clone(t.data)}
}
