package tile

import (
	"blrmat/numeric"
)

// opFactors 返回 op(tile) 的低秩因子 (f1, f2)，满足 op(tile) ≈ f1*f2。
// NoTrans 直接引用 U、V；转置情形物化秩尺寸的转置因子。
func opFactors[T numeric.Number](t *LowRank[T], trans numeric.Trans) (f1, f2 *numeric.Dense[T]) {
	switch trans {
	case numeric.NoTrans:
		return t.U, t.V
	case numeric.TransT:
		return numeric.Transpose(t.V), numeric.Transpose(t.U)
	default:
		return numeric.ConjTranspose(t.V), numeric.ConjTranspose(t.U)
	}
}

// Gemm 将 alpha*op(a)*op(b) 累加进稠密块 c：C <- alpha*op(a)*op(b) + beta*C。
// 对 (变体×变体) 的四种组合显式分派，任一操作数为低秩时
// 中间量均在秩尺寸空间形成。
func Gemm[T numeric.Number](transA, transB numeric.Trans, alpha T, a, b Tile[T], beta T, c *numeric.Dense[T]) {
	GemmTask(0, transA, transB, alpha, a, b, beta, c)
}

// GemmTask 与 Gemm 相同，另携带任务递归深度 cutoff，
// 透传给稠密×稠密情形的并行核心。
func GemmTask[T numeric.Number](cutoff int, transA, transB numeric.Trans, alpha T, a, b Tile[T], beta T, c *numeric.Dense[T]) {
	one := numeric.One[T]()
	zero := numeric.ZeroOf[T]()
	switch x := a.(type) {
	case *Dense[T]:
		switch y := b.(type) {
		case *Dense[T]:
			// 稠密×稠密
			numeric.GemmTask(cutoff, transA, transB, alpha, x.D, y.D, beta, c)
		case *LowRank[T]:
			// 稠密×低秩：tmp = op(A)*f1 为 m×r，再乘 f2
			f1, f2 := opFactors(y, transB)
			ar, _ := dimsAfterOp(x.D, transA)
			tmp := numeric.NewDense[T](ar, f1.Cols())
			numeric.Gemm(transA, numeric.NoTrans, one, x.D, f1, zero, tmp)
			numeric.Gemm(numeric.NoTrans, numeric.NoTrans, alpha, tmp, f2, beta, c)
		}
	case *LowRank[T]:
		switch y := b.(type) {
		case *Dense[T]:
			// 低秩×稠密：tmp = f2*op(B) 为 r×n，再左乘 f1
			f1, f2 := opFactors(x, transA)
			_, bc := dimsAfterOp(y.D, transB)
			tmp := numeric.NewDense[T](f2.Rows(), bc)
			numeric.Gemm(numeric.NoTrans, transB, one, f2, y.D, zero, tmp)
			numeric.Gemm(numeric.NoTrans, numeric.NoTrans, alpha, f1, tmp, beta, c)
		case *LowRank[T]:
			// 低秩×低秩：先缩并 W = f2a*f1b（ra×rb），
			// 再按较小的秩选择展开顺序
			f1a, f2a := opFactors(x, transA)
			f1b, f2b := opFactors(y, transB)
			w := numeric.NewDense[T](f2a.Rows(), f1b.Cols())
			numeric.Gemm(numeric.NoTrans, numeric.NoTrans, one, f2a, f1b, zero, w)
			ra, rb := w.Rows(), w.Cols()
			if ra <= rb {
				// tmp = (f1a*W) 为 m×rb
				tmp := numeric.NewDense[T](f1a.Rows(), rb)
				numeric.Gemm(numeric.NoTrans, numeric.NoTrans, one, f1a, w, zero, tmp)
				numeric.Gemm(numeric.NoTrans, numeric.NoTrans, alpha, tmp, f2b, beta, c)
			} else {
				// tmp = (W*f2b) 为 ra×n
				tmp := numeric.NewDense[T](ra, f2b.Cols())
				numeric.Gemm(numeric.NoTrans, numeric.NoTrans, one, w, f2b, zero, tmp)
				numeric.Gemm(numeric.NoTrans, numeric.NoTrans, alpha, f1a, tmp, beta, c)
			}
		}
	}
}

func dimsAfterOp[T numeric.Number](a *numeric.Dense[T], t numeric.Trans) (int, int) {
	if t == numeric.NoTrans {
		return a.Rows(), a.Cols()
	}
	return a.Cols(), a.Rows()
}

// SchurUpdateRow 从带步长的目的向量中减去乘积 a*b 的第 i 行：
// dst[j*inc] -= alpha * (a*b)(i,j)。任一操作数为低秩时
// 经由秩尺寸中间量计算，代价 O(r*(m+n))。
func SchurUpdateRow[T numeric.Number](alpha T, a, b Tile[T], i int, dst []T, inc int) {
	k := a.Cols()
	if k != b.Rows() {
		panic("tile.SchurUpdateRow: inner dimension mismatch")
	}
	// a 的第 i 行（低秩时为 U(i,:)*V，秩尺寸展开）
	arow := rowOf(a, i)
	// arow * b
	switch y := b.(type) {
	case *Dense[T]:
		for j := 0; j < b.Cols(); j++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += arow[p] * y.D.At(p, j)
			}
			dst[j*inc] -= alpha * sum
		}
	case *LowRank[T]:
		r := y.Rank()
		tmp := make([]T, r)
		for q := 0; q < r; q++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += arow[p] * y.U.At(p, q)
			}
			tmp[q] = sum
		}
		for j := 0; j < b.Cols(); j++ {
			var sum T
			for q := 0; q < r; q++ {
				sum += tmp[q] * y.V.At(q, j)
			}
			dst[j*inc] -= alpha * sum
		}
	}
}

// SchurUpdateCol 从带步长的目的向量中减去乘积 a*b 的第 j 列：
// dst[i*inc] -= alpha * (a*b)(i,j)。
func SchurUpdateCol[T numeric.Number](alpha T, a, b Tile[T], j int, dst []T, inc int) {
	k := a.Cols()
	if k != b.Rows() {
		panic("tile.SchurUpdateCol: inner dimension mismatch")
	}
	bcol := colOf(b, j)
	switch x := a.(type) {
	case *Dense[T]:
		for i := 0; i < a.Rows(); i++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += x.D.At(i, p) * bcol[p]
			}
			dst[i*inc] -= alpha * sum
		}
	case *LowRank[T]:
		r := x.Rank()
		tmp := make([]T, r)
		for q := 0; q < r; q++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += x.V.At(q, p) * bcol[p]
			}
			tmp[q] = sum
		}
		for i := 0; i < a.Rows(); i++ {
			var sum T
			for q := 0; q < r; q++ {
				sum += x.U.At(i, q) * tmp[q]
			}
			dst[i*inc] -= alpha * sum
		}
	}
}

// rowOf 取分块第 i 行；低秩时经 r 维中间量展开。
func rowOf[T numeric.Number](t Tile[T], i int) []T {
	n := t.Cols()
	out := make([]T, n)
	switch x := t.(type) {
	case *Dense[T]:
		for j := 0; j < n; j++ {
			out[j] = x.D.At(i, j)
		}
	case *LowRank[T]:
		r := x.Rank()
		for j := 0; j < n; j++ {
			var sum T
			for q := 0; q < r; q++ {
				sum += x.U.At(i, q) * x.V.At(q, j)
			}
			out[j] = sum
		}
	}
	return out
}

// colOf 取分块第 j 列。
func colOf[T numeric.Number](t Tile[T], j int) []T {
	m := t.Rows()
	out := make([]T, m)
	switch x := t.(type) {
	case *Dense[T]:
		for i := 0; i < m; i++ {
			out[i] = x.D.At(i, j)
		}
	case *LowRank[T]:
		r := x.Rank()
		for i := 0; i < m; i++ {
			var sum T
			for q := 0; q < r; q++ {
				sum += x.U.At(i, q) * x.V.At(q, j)
			}
			out[i] = sum
		}
	}
	return out
}
