package numeric

import "sync"

// op 按 Trans 选择符读取 a 的 (i,j) 元素。
func op[T Number](a *Dense[T], t Trans, i, j int) T {
	switch t {
	case NoTrans:
		return a.At(i, j)
	case TransT:
		return a.At(j, i)
	case ConjTrans:
		return Conj(a.At(j, i))
	}
	return a.At(i, j)
}

// Gemm 计算 C <- alpha*op(A)*op(B) + beta*C。
// op(A) 为 m×k，op(B) 为 k×n，C 为 m×n。
// 标量为 float64 时委托给 blas64 加速路径，其余类型走参考实现。
func Gemm[T Number](transA, transB Trans, alpha T, a, b *Dense[T], beta T, c *Dense[T]) {
	// 退化维度（秩 0 因子等）不进加速路径：k=0 时只作 beta 缩放
	_, ac := dimsAfterOp(a, transA)
	if c.Rows() == 0 || c.Cols() == 0 {
		return
	}
	if ac == 0 {
		if beta == 0 {
			c.Zero()
		} else if beta != 1 {
			c.Scale(beta)
		}
		return
	}
	if a64, ok := any(a).(*Dense[float64]); ok {
		gemmF64(transA, transB, any(alpha).(float64), a64, any(b).(*Dense[float64]),
			any(beta).(float64), any(c).(*Dense[float64]))
		return
	}
	gemmGeneric(transA, transB, alpha, a, b, beta, c)
}

func gemmGeneric[T Number](transA, transB Trans, alpha T, a, b *Dense[T], beta T, c *Dense[T]) {
	ar, ac := dimsAfterOp(a, transA)
	br, bc := dimsAfterOp(b, transB)
	if ac != br || ar != c.Rows() || bc != c.Cols() {
		panic("numeric.Gemm: dimension mismatch")
	}
	m, n, k := ar, bc, ac
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			var sum T
			for p := 0; p < k; p++ {
				sum += op(a, transA, i, p) * op(b, transB, p, j)
			}
			if beta == 0 {
				c.Set(i, j, alpha*sum)
			} else {
				c.Set(i, j, alpha*sum+beta*c.At(i, j))
			}
		}
	}
}

// GemmTask 与 Gemm 语义相同，但允许按行二分递归生成并行任务：
// cutoff 为剩余递归深度，递归到 0 或块过小时退化为串行 Gemm。
// cutoff 由调用方显式传入，不读取任何全局状态。
func GemmTask[T Number](cutoff int, transA, transB Trans, alpha T, a, b *Dense[T], beta T, c *Dense[T]) {
	const minRows = 64
	if cutoff <= 0 || transA != NoTrans || c.Rows() < 2*minRows {
		Gemm(transA, transB, alpha, a, b, beta, c)
		return
	}
	half := c.Rows() / 2
	aTop := a.SubView(0, 0, half, a.Cols())
	aBot := a.SubView(half, 0, a.Rows()-half, a.Cols())
	cTop := c.SubView(0, 0, half, c.Cols())
	cBot := c.SubView(half, 0, c.Rows()-half, c.Cols())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		GemmTask(cutoff-1, transA, transB, alpha, aTop, b, beta, cTop)
	}()
	GemmTask(cutoff-1, transA, transB, alpha, aBot, b, beta, cBot)
	wg.Wait()
}

func dimsAfterOp[T Number](a *Dense[T], t Trans) (int, int) {
	if t == NoTrans {
		return a.Rows(), a.Cols()
	}
	return a.Cols(), a.Rows()
}

// Gemv 计算 y <- alpha*op(A)*x + beta*y。
func Gemv[T Number](transA Trans, alpha T, a *Dense[T], x *Vector[T], beta T, y *Vector[T]) {
	ar, ac := dimsAfterOp(a, transA)
	if ac != x.Length() || ar != y.Length() {
		panic("numeric.Gemv: dimension mismatch")
	}
	for i := 0; i < ar; i++ {
		var sum T
		for p := 0; p < ac; p++ {
			sum += op(a, transA, i, p) * x.At(p)
		}
		if beta == 0 {
			y.Set(i, alpha*sum)
		} else {
			y.Set(i, alpha*sum+beta*y.At(i))
		}
	}
}

// Trsm 就地求解 op(A)*X = alpha*B（side==Left）或 X*op(A) = alpha*B
// （side==Right），A 为三角阵，X 覆盖 B。
// float64 委托给 blas64.Trsm，其余类型走参考实现。
func Trsm[T Number](side Side, uplo Uplo, transA Trans, diag Diag, alpha T, a, b *Dense[T]) {
	if b.Rows() == 0 || b.Cols() == 0 {
		return
	}
	if a64, ok := any(a).(*Dense[float64]); ok {
		trsmF64(side, uplo, transA, diag, any(alpha).(float64), a64, any(b).(*Dense[float64]))
		return
	}
	if alpha != 1 {
		b.Scale(alpha)
	}
	switch side {
	case Left:
		trsmLeft(uplo, transA, diag, a, b)
	case Right:
		trsmRight(uplo, transA, diag, a, b)
	}
}

// trsmLeft 就地求解 op(A)*X = B，A 为 n×n，B 为 n×m。
func trsmLeft[T Number](uplo Uplo, transA Trans, diag Diag, a, b *Dense[T]) {
	n := a.Rows()
	m := b.Cols()
	forward := (uplo == Lower && transA == NoTrans) || (uplo == Upper && transA != NoTrans)
	for col := 0; col < m; col++ {
		if forward {
			for i := 0; i < n; i++ {
				sum := b.At(i, col)
				for k := 0; k < i; k++ {
					sum -= op(a, transA, i, k) * b.At(k, col)
				}
				if diag == NonUnit {
					sum /= op(a, transA, i, i)
				}
				b.Set(i, col, sum)
			}
		} else {
			for i := n - 1; i >= 0; i-- {
				sum := b.At(i, col)
				for k := i + 1; k < n; k++ {
					sum -= op(a, transA, i, k) * b.At(k, col)
				}
				if diag == NonUnit {
					sum /= op(a, transA, i, i)
				}
				b.Set(i, col, sum)
			}
		}
	}
}

// trsmRight 就地求解 X*op(A) = B，A 为 n×n，B 为 m×n。
func trsmRight[T Number](uplo Uplo, transA Trans, diag Diag, a, b *Dense[T]) {
	n := a.Rows()
	m := b.Rows()
	// X*op(A) = B 等价于 op(A)^T * X^T = B^T，按 B 的行逐一求解。
	forward := (uplo == Upper && transA == NoTrans) || (uplo == Lower && transA != NoTrans)
	for row := 0; row < m; row++ {
		if forward {
			for j := 0; j < n; j++ {
				sum := b.At(row, j)
				for k := 0; k < j; k++ {
					sum -= b.At(row, k) * op(a, transA, k, j)
				}
				if diag == NonUnit {
					sum /= op(a, transA, j, j)
				}
				b.Set(row, j, sum)
			}
		} else {
			for j := n - 1; j >= 0; j-- {
				sum := b.At(row, j)
				for k := j + 1; k < n; k++ {
					sum -= b.At(row, k) * op(a, transA, k, j)
				}
				if diag == NonUnit {
					sum /= op(a, transA, j, j)
				}
				b.Set(row, j, sum)
			}
		}
	}
}
