// Package lowrank 实现两种低秩压缩核心：
// 对已物化稠密块的秩揭示 QR（RRQR），以及只通过元素采样、
// 不物化完整块的自适应交叉逼近（ACA）。
// 两者均返回因子 U (m×r)、V (r×n)，使原块近似等于 U*V。
package lowrank

import (
	"blrmat/numeric"
)

// Algorithm 选择压缩核心。
type Algorithm int

const (
	AlgorithmRRQR Algorithm = iota
	AlgorithmACA
)

// Options 压缩参数：算法、相对容差、绝对容差、最大秩，
// 以及 ACA 判定收敛所需的连续达标步数（0 取默认值 2）。
type Options struct {
	Algorithm  Algorithm
	RelTol     float64
	AbsTol     float64
	MaxRank    int
	StallSteps int
}

// DefaultOptions 返回保守的 RRQR 默认配置。
func DefaultOptions() Options {
	return Options{Algorithm: AlgorithmRRQR, RelTol: 1e-8, AbsTol: 1e-12, MaxRank: 64}
}

// threshold 返回 max(abs, rel*norm)，即所有压缩核心的截断阈值。
func threshold(opts Options, norm float64) float64 {
	t := opts.RelTol * norm
	if opts.AbsTol > t {
		t = opts.AbsTol
	}
	return t
}

// RRQR 通过列主元 QR 压缩稠密块 t，在残差估计降到
// max(abs_tol, rel_tol*||t||_F) 以下的最小秩处截断，上限 max_rank。
// 自然秩超出 max_rank 时保留截断后的秩 max_rank 因子，不回退稠密。
func RRQR[T numeric.Number](t *numeric.Dense[T]) (u, v *numeric.Dense[T], rank int) {
	return RRQRWithOptions(t, DefaultOptions())
}

// RRQRWithOptions 按显式 Options 执行 RRQR。
func RRQRWithOptions[T numeric.Number](t *numeric.Dense[T], opts Options) (u, v *numeric.Dense[T], rank int) {
	norm := t.Norm()
	tol := threshold(opts, norm)
	maxRank := opts.MaxRank
	if maxRank <= 0 || maxRank > minInt(t.Rows(), t.Cols()) {
		maxRank = minInt(t.Rows(), t.Cols())
	}

	q, r, perm, colNorms := numeric.Geqpf(t, maxRank)
	// colNorms[k] 恰为第 k 步被消去列的范数（R 第 k 个对角元的模）；
	// 贪心选列下剩余未消去的质量受其约束，取被消去列范数已落到
	// 阈值以下的最小前缀作为秩。
	r2 := len(colNorms)
	for k := 0; k < len(colNorms); k++ {
		if colNorms[k] <= tol {
			r2 = k
			break
		}
	}
	if r2 == 0 && len(colNorms) > 0 {
		r2 = 1 // 非零块至少保留秩 1 近似
	}

	u = q.SubView(0, 0, q.Rows(), r2)
	rTrunc := r.SubView(0, 0, r2, r.Cols())
	v = unpermuteColumns(rTrunc, perm)
	return u, v, r2
}

// unpermuteColumns 将 r 的列放回选主元前的位置：
// perm[k] 是落在主元位置 k 的原始列号。
func unpermuteColumns[T numeric.Number](r *numeric.Dense[T], perm []int) *numeric.Dense[T] {
	out := numeric.NewDense[T](r.Rows(), r.Cols())
	for k := 0; k < r.Cols(); k++ {
		for i := 0; i < r.Rows(); i++ {
			out.Set(i, perm[k], r.At(i, k))
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
