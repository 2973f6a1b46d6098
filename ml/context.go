// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
//
// Shapes folgen der NCHW-Konvention (erste Dimension = langsamste), Daten sind row-major.
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor

	// Arange creates a 1D tensor with values within an interval [start, stop) increased by step.
	Arange(start, stop, step float32) Tensor

	// NumThreads is the upper bound of goroutines a single op may fan out to.
	NumThreads() int

	Close()
}

// Tensor represents a multi-dimensional array with various operations.
type Tensor interface {
	Dim(n int) int
	Shape() []int
	DType() DType

	Floats() []float32
	FromFloats([]float32)

	// Add, Sub, Mul and Div broadcast numpy-style: dimensions of size 1 are
	// stretched and the lower-rank operand is aligned to the trailing axes.
	Add(ctx Context, t2 Tensor) Tensor
	Sub(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor
	Div(ctx Context, t2 Tensor) Tensor

	// Lerp returns t + weight*(end-t), evaluated so that weight 0 yields t and
	// weight 1 yields end exactly.
	Lerp(ctx Context, end Tensor, weight float32) Tensor

	// Mulmat treats t as a weight matrix [out, in] and computes t2 @ t^T for t2
	// of shape [..., in], returning [..., out].
	Mulmat(ctx Context, t2 Tensor) Tensor

	Scale(ctx Context, s float64) Tensor
	AddScalar(ctx Context, s float64) Tensor

	// Conv2D convolves the input t2 [N, Cin, H, W] with the kernel t
	// [Cout, Cin, kH, kW] (cross-correlation, zero padding). s0, p0 and d0
	// apply to the height, s1, p1 and d1 to the width.
	Conv2D(ctx Context, t2 Tensor, s0, s1, p0, p1, d0, d1 int) Tensor

	// Conv2DDepthwise applies the kernel t [C, 1, kH, kW] to every channel of
	// t2 independently (groups = C).
	Conv2DDepthwise(ctx Context, t2 Tensor, s0, s1, p0, p1 int) Tensor

	// ConvTranspose2D applies the transposed convolution of t2 [N, Cin, H, W]
	// with the kernel t [Cin, Cout, kH, kW].
	ConvTranspose2D(ctx Context, t2 Tensor, s0, s1, p0, p1 int) Tensor

	RELU(ctx Context) Tensor
	LeakyRELU(ctx Context, slope float32) Tensor

	Sqr(ctx Context) Tensor
	Sqrt(ctx Context) Tensor
	Rsqrt(ctx Context) Tensor

	// Mean and Variance reduce over dim and keep it with size 1.
	Mean(ctx Context, dim int) Tensor
	Variance(ctx Context, dim int) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	Permute(ctx Context, order ...int) Tensor

	// Pad adds zeros around the tensor. pads holds (before, after) pairs,
	// starting with the first dimension; missing pairs mean no padding.
	Pad(ctx Context, pads ...int) Tensor

	// Flip reverses the order of elements along the given dimensions.
	Flip(ctx Context, dims ...int) Tensor

	// Repeat repeats the tensor n times along dimension dim
	Repeat(ctx Context, dim, n int) Tensor
	Concat(ctx Context, t2 Tensor, dim int) Tensor
	Slice(ctx Context, dim, low, high, step int) Tensor
	Duplicate(ctx Context) Tensor

	Interpolate(ctx Context, dims [4]int, samplingMode SamplingMode) Tensor
}
