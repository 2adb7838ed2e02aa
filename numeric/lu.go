package numeric

import (
	"errors"

	"gonum.org/v1/gonum/lapack/lapack64"
)

// ErrSingular 主元在数值上为零（矩阵奇异或接近奇异）。
var ErrSingular = errors.New("numeric: matrix is singular or nearly singular")

// Epsilon 默认的零主元 / 压缩收敛阈值。
const Epsilon = 1e-14

// Getrf 就地对方阵 a 做带部分主元选择的 LU 分解：a = P*L*U，
// 单位下三角 L 存于 a 的严格下三角，U 存于对角线及以上。
// 返回的主元排列 piv 满足：分解后第 k 行来自原矩阵的第 piv[k] 行。
// pivotThreshold 覆盖零主元判定阈值，传 0 使用 Epsilon。
// float64 委托给 lapack64.Getrf，其余标量类型走参考实现。
func Getrf[T Number](a *Dense[T], pivotThreshold float64) (piv []int, err error) {
	n := a.Rows()
	if a.Cols() != n {
		panic("numeric.Getrf: matrix must be square")
	}
	if a64, ok := any(a).(*Dense[float64]); ok {
		return getrfF64(a64, pivotThreshold)
	}
	tol := pivotThreshold
	if tol <= 0 {
		tol = Epsilon
	}
	piv = make([]int, n)
	for k := 0; k < n; k++ {
		piv[k] = k
	}
	for k := 0; k < n; k++ {
		maxRow := k
		maxAbs := Abs(a.At(k, k))
		for i := k + 1; i < n; i++ {
			if v := Abs(a.At(i, k)); v > maxAbs {
				maxAbs = v
				maxRow = i
			}
		}
		if maxAbs < tol {
			return piv, ErrSingular
		}
		if maxRow != k {
			a.SwapRows(k, maxRow)
			piv[k], piv[maxRow] = piv[maxRow], piv[k]
		}
		pivotVal := a.At(k, k)
		for i := k + 1; i < n; i++ {
			factor := a.At(i, k) / pivotVal
			a.Set(i, k, factor)
			for j := k + 1; j < n; j++ {
				a.Set(i, j, a.At(i, j)-factor*a.At(k, j))
			}
		}
	}
	return piv, nil
}

// getrfF64 是 Getrf 的 float64 加速路径。
// LAPACK 的 ipiv 采用逐步交换约定，这里翻译为
// “第 k 行来自原第 piv[k] 行”的排列约定，与参考实现一致。
func getrfF64(a *Dense[float64], pivotThreshold float64) (piv []int, err error) {
	n := a.Rows()
	g := rowMajor(a)
	ipiv := make([]int, n)
	ok := lapack64.Getrf(g, ipiv)
	fromRowMajor(g, a)
	piv = make([]int, n)
	for i := range piv {
		piv[i] = i
	}
	for k, p := range ipiv {
		piv[k], piv[p] = piv[p], piv[k]
	}
	if !ok {
		return piv, ErrSingular
	}
	tol := pivotThreshold
	if tol <= 0 {
		tol = Epsilon
	}
	for i := 0; i < n; i++ {
		if Abs(a.At(i, i)) < tol {
			return piv, ErrSingular
		}
	}
	return piv, nil
}

// Laswp 将行排列 piv 应用到 a 的行上：
// fwd 为 true 时第 k 行取自原第 piv[k] 行；fwd 为 false 应用逆排列，
// 因此 Laswp(piv,true) 后接 Laswp(piv,false) 为恒等变换。
func Laswp[T Number](a *Dense[T], piv []int, fwd bool) {
	n := a.Rows()
	if len(piv) != n {
		panic("numeric.Laswp: pivot length mismatch")
	}
	src := a.Clone()
	if fwd {
		for k := 0; k < n; k++ {
			for j := 0; j < a.Cols(); j++ {
				a.Set(k, j, src.At(piv[k], j))
			}
		}
	} else {
		for k := 0; k < n; k++ {
			for j := 0; j < a.Cols(); j++ {
				a.Set(piv[k], j, src.At(k, j))
			}
		}
	}
}

// LaswpVec 将同一行排列应用到向量。
func LaswpVec[T Number](v *Vector[T], piv []int, fwd bool) {
	n := v.Length()
	if len(piv) != n {
		panic("numeric.LaswpVec: pivot length mismatch")
	}
	src := v.Clone()
	if fwd {
		for k := 0; k < n; k++ {
			v.Set(k, src.At(piv[k]))
		}
	} else {
		for k := 0; k < n; k++ {
			v.Set(piv[k], src.At(k))
		}
	}
}
