// tensor_matrix.go - Matrix-Operationen
// Enthält: Mulmat

package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/louis-chevallier/stylegan/ml"
)

// Mulmat berechnet t2 @ t^T fuer eine Gewichtsmatrix t [out, in]
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	x := tensorOf(t2)
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("cpu: mulmat weight must be 2D, got %v", t.shape))
	}

	outDim, inDim := t.shape[0], t.shape[1]
	if x.shape[len(x.shape)-1] != inDim {
		panic(fmt.Sprintf("cpu: mulmat shape mismatch %v x %v", x.shape, t.shape))
	}

	rows := len(x.data) / inDim
	shape := append(x.Shape()[:len(x.shape)-1], outDim)
	out := t.like(shape)

	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: rows, Cols: inDim, Stride: inDim, Data: x.data},
		blas32.General{Rows: outDim, Cols: inDim, Stride: inDim, Data: t.data},
		0,
		blas32.General{Rows: rows, Cols: outDim, Stride: outDim, Data: out.data},
	)

	return out
}
