package numeric

import "math"

// Geqpf 对 m×n 块做列主元 QR 分解（修正 Gram-Schmidt +
// Businger-Golub 贪心选列：每步取剩余范数最大的列）。
// gonum 的纯 Go lapack 后端不提供 Dgeqp3（仅 cgo netlib 后端有），
// 因此列主元 QR 没有可委托的加速路径，所有标量类型统一走本实现。
//
// 分解形式为 a*P = Q*R，Q 为 m×r 正交列，R 为 r×n 上梯形；
// 产出 maxRank 列或剩余列范数降到数值零时停止。
// colNorms[k] 是第 k 步被消去列的范数，即截断判定所依据的量。
func Geqpf[T Number](a *Dense[T], maxRank int) (q *Dense[T], r *Dense[T], perm []int, colNorms []float64) {
	m, n := a.Rows(), a.Cols()
	if maxRank > n {
		maxRank = n
	}
	if maxRank > m {
		maxRank = m
	}
	work := a.Clone()
	perm = make([]int, n)
	for j := range perm {
		perm[j] = j
	}
	norms := make([]float64, n)
	for j := 0; j < n; j++ {
		norms[j] = colNorm(work, j)
	}

	q = NewDense[T](m, maxRank)
	r = NewDense[T](maxRank, n)
	colNorms = make([]float64, 0, maxRank)

	steps := 0
	for k := 0; k < maxRank; k++ {
		best := k
		for j := k + 1; j < n; j++ {
			if norms[j] > norms[best] {
				best = j
			}
		}
		if norms[best] < Epsilon {
			break
		}
		if best != k {
			swapCols(work, k, best)
			norms[k], norms[best] = norms[best], norms[k]
			perm[k], perm[best] = perm[best], perm[k]
			for i := 0; i < k; i++ {
				rik, rib := r.At(i, k), r.At(i, best)
				r.Set(i, k, rib)
				r.Set(i, best, rik)
			}
		}

		nrm := norms[k]
		colNorms = append(colNorms, nrm)
		for i := 0; i < m; i++ {
			q.Set(i, k, divReal(work.At(i, k), nrm))
		}
		r.Set(k, k, realScalar[T](nrm))
		steps++

		for j := k + 1; j < n; j++ {
			dot := dotCol(q, k, work, j)
			r.Set(k, j, dot)
			for i := 0; i < m; i++ {
				work.Set(i, j, work.At(i, j)-dot*q.At(i, k))
			}
			norms[j] = colNorm(work, j)
		}
	}
	q = q.SubView(0, 0, m, steps)
	r = r.SubView(0, 0, steps, n)
	return q, r, perm, colNorms
}

func colNorm[T Number](a *Dense[T], j int) float64 {
	var sum float64
	for i := 0; i < a.Rows(); i++ {
		v := Abs(a.At(i, j))
		sum += v * v
	}
	return math.Sqrt(sum)
}

func swapCols[T Number](a *Dense[T], j1, j2 int) {
	for i := 0; i < a.Rows(); i++ {
		v1, v2 := a.At(i, j1), a.At(i, j2)
		a.Set(i, j1, v2)
		a.Set(i, j2, v1)
	}
}

// dotCol 计算 q 第 k 列与 work 第 j 列的共轭线性内积。
func dotCol[T Number](q *Dense[T], k int, work *Dense[T], j int) T {
	var sum T
	for i := 0; i < q.Rows(); i++ {
		sum += Conj(q.At(i, k)) * work.At(i, j)
	}
	return sum
}

// realScalar 将非负 float64 提升为 T（复数类型放在实轴上）。
func realScalar[T Number](v float64) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(float32(v)).(T)
	case float64:
		return any(v).(T)
	case complex64:
		return any(complex(float32(v), 0)).(T)
	case complex128:
		return any(complex(v, 0)).(T)
	}
	return zero
}

// divReal 标量 v 除以实数 d。
func divReal[T Number](v T, d float64) T {
	switch x := any(v).(type) {
	case float32:
		return any(float32(float64(x) / d)).(T)
	case float64:
		return any(x / d).(T)
	case complex64:
		return any(complex64(complex128(x) / complex(d, 0))).(T)
	case complex128:
		return any(x / complex(d, 0)).(T)
	}
	return v
}
