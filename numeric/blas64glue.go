package numeric

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// rowMajor 将列主序的 Dense[float64] 复制成 gonum blas64 期望的
// 行主序 blas64.General。分块尺寸下该复制开销相对 O(m*n*k) 浮点量
// 可以忽略。
func rowMajor(d *Dense[float64]) blas64.General {
	g := blas64.General{Rows: d.m, Cols: d.n, Stride: d.n, Data: make([]float64, d.m*d.n)}
	if g.Stride == 0 {
		g.Stride = 1
	}
	for i := 0; i < d.m; i++ {
		for j := 0; j < d.n; j++ {
			g.Data[i*g.Stride+j] = d.At(i, j)
		}
	}
	return g
}

func fromRowMajor(g blas64.General, d *Dense[float64]) {
	for i := 0; i < d.m; i++ {
		for j := 0; j < d.n; j++ {
			d.Set(i, j, g.Data[i*g.Stride+j])
		}
	}
}

func toBlasTrans(t Trans) blas.Transpose {
	switch t {
	case NoTrans:
		return blas.NoTrans
	default:
		return blas.Trans
	}
}

// gemmF64 是 Gemm 的 float64 加速路径，委托 blas64.Gemm。
func gemmF64(transA, transB Trans, alpha float64, a, b *Dense[float64], beta float64, c *Dense[float64]) {
	ar, ac := dimsAfterOp(a, transA)
	br, bc := dimsAfterOp(b, transB)
	if ac != br || ar != c.Rows() || bc != c.Cols() {
		panic("numeric.Gemm: dimension mismatch")
	}
	ga, gb, gc := rowMajor(a), rowMajor(b), rowMajor(c)
	blas64.Gemm(toBlasTrans(transA), toBlasTrans(transB), alpha, ga, gb, beta, gc)
	fromRowMajor(gc, c)
}

// trsmF64 是 Trsm 的 float64 加速路径，委托 blas64.Trsm。
func trsmF64(side Side, uplo Uplo, transA Trans, diag Diag, alpha float64, a, b *Dense[float64]) {
	bSide := blas.Left
	if side == Right {
		bSide = blas.Right
	}
	bUplo := blas.Lower
	if uplo == Upper {
		bUplo = blas.Upper
	}
	bDiag := blas.NonUnit
	if diag == Unit {
		bDiag = blas.Unit
	}
	ga := rowMajor(a)
	tri := blas64.Triangular{
		N:      a.Rows(),
		Stride: ga.Stride,
		Data:   ga.Data,
		Uplo:   bUplo,
		Diag:   bDiag,
	}
	gb := rowMajor(b)
	blas64.Trsm(bSide, toBlasTrans(transA), alpha, tri, gb)
	fromRowMajor(gb, b)
}
