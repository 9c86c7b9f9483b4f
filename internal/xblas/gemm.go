// Package xblas wraps gonum's BLAS Gemm for the engine's matmul kernel,
// plus a plain-loop fallback for the integer accumulation path BLAS does
// not cover.
package xblas

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// GemmF32 computes C = A * B for row-major contiguous matrices.
// A has shape (m, k), B has shape (k, n), C has shape (m, n).
// Strides are assumed to be k for A and n for B and C.
func GemmF32(m, n, k int, a, b, c []float32) {
	alpha, beta := float32(1), float32(0)
	A := blas32.General{Rows: m, Cols: k, Data: a, Stride: k}
	B := blas32.General{Rows: k, Cols: n, Data: b, Stride: n}
	C := blas32.General{Rows: m, Cols: n, Data: c, Stride: n}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, alpha, A, B, beta, C)
}

// GemmI64 computes C = A * B for row-major contiguous int32 matrices,
// accumulating in int64 before truncating into c. Used for the
// integer-only matmul path, where BLAS does not apply.
func GemmI64(m, n, k int, a, b []int32, c []int32) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum int64
			for p := 0; p < k; p++ {
				sum += int64(a[i*k+p]) * int64(b[p*n+j])
			}

			c[i*n+j] = int32(sum)
		}
	}
}
