package numeric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Svd 对小块 a 计算完整 SVD：a = U*S*V^H，采用单边 Jacobi 旋转。
// 奇异值按降序返回。m < n 时在转置上求解。
// float64 委托给 gonum 的 mat.SVD（见 SvdF64）。
func Svd[T Number](a *Dense[T]) (u *Dense[T], s []float64, v *Dense[T]) {
	if a64, ok := any(a).(*Dense[float64]); ok {
		u64, s64, v64 := SvdF64(a64)
		return any(u64).(*Dense[T]), s64, any(v64).(*Dense[T])
	}
	return svdJacobi(a)
}

func svdJacobi[T Number](a *Dense[T]) (u *Dense[T], s []float64, v *Dense[T]) {
	if a.Rows() < a.Cols() {
		at := ConjTranspose(a)
		u2, s2, v2 := svdJacobi(at)
		return v2, s2, u2
	}
	m, n := a.Rows(), a.Cols()
	work := a.Clone()
	v = Identity[T](n)

	const maxSweeps = 60
	for sweep := 0; sweep < maxSweeps; sweep++ {
		offDiag := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				alpha, beta, gamma := colInner(work, p, q)
				offDiag += Abs(gamma) * Abs(gamma)
				if Abs(gamma) < Epsilon*math.Sqrt(alpha*beta+1) {
					continue
				}
				jacobiRotate(work, v, p, q, alpha, beta, gamma)
			}
		}
		if offDiag < Epsilon*Epsilon {
			break
		}
	}

	s = make([]float64, n)
	for j := 0; j < n; j++ {
		s[j] = colNorm(work, j)
	}
	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(i, j int) bool { return s[order[i]] > s[order[j]] })

	u = NewDense[T](m, n)
	sortedS := make([]float64, n)
	sortedV := NewDense[T](n, n)
	for newJ, oldJ := range order {
		sortedS[newJ] = s[oldJ]
		nrm := s[oldJ]
		for i := 0; i < m; i++ {
			if nrm > Epsilon {
				u.Set(i, newJ, divReal(work.At(i, oldJ), nrm))
			}
		}
		for i := 0; i < n; i++ {
			sortedV.Set(i, newJ, v.At(i, oldJ))
		}
	}
	return u, sortedS, sortedV
}

// colInner 计算 work 第 p、q 列的 <p,p>、<q,q> 与共轭线性 <p,q>。
func colInner[T Number](work *Dense[T], p, q int) (alpha, beta float64, gamma T) {
	for i := 0; i < work.Rows(); i++ {
		cp, cq := work.At(i, p), work.At(i, q)
		alpha += Abs(cp) * Abs(cp)
		beta += Abs(cq) * Abs(cq)
		gamma += Conj(cp) * cq
	}
	return
}

// jacobiRotate 对 work 与 v 的第 p、q 列就地应用使 (p,q) 内积归零的
// 2×2 旋转。
func jacobiRotate[T Number](work, v *Dense[T], p, q int, alpha, beta float64, gamma T) {
	g := Abs(gamma)
	if g < Epsilon {
		return
	}
	zeta := (beta - alpha) / (2 * g)
	t := signf(zeta) / (math.Abs(zeta) + math.Sqrt(1+zeta*zeta))
	c := 1 / math.Sqrt(1+t*t)
	s := t * c
	phase := divReal(gamma, g) // 单位相位（实数类型为 1）

	for i := 0; i < work.Rows(); i++ {
		cp, cq := work.At(i, p), work.At(i, q)
		work.Set(i, p, realScalar[T](c)*cp-Conj(phase)*realScalar[T](s)*cq)
		work.Set(i, q, phase*realScalar[T](s)*cp+realScalar[T](c)*cq)
	}
	for i := 0; i < v.Rows(); i++ {
		vp, vq := v.At(i, p), v.At(i, q)
		v.Set(i, p, realScalar[T](c)*vp-Conj(phase)*realScalar[T](s)*vq)
		v.Set(i, q, phase*realScalar[T](s)*vp+realScalar[T](c)*vq)
	}
}

func signf(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// Transpose 返回 a 的普通转置（不取共轭），对应 BLAS 的 "T" 语义。
func Transpose[T Number](a *Dense[T]) *Dense[T] {
	out := NewDense[T](a.Cols(), a.Rows())
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			out.Set(j, i, a.At(i, j))
		}
	}
	return out
}

// ConjTranspose 返回 a 的共轭转置，对应 BLAS 的 "C" 语义。
func ConjTranspose[T Number](a *Dense[T]) *Dense[T] {
	out := NewDense[T](a.Cols(), a.Rows())
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			out.Set(j, i, Conj(a.At(i, j)))
		}
	}
	return out
}

// Identity 返回 n×n 单位阵。
func Identity[T Number](n int) *Dense[T] {
	out := NewDense[T](n, n)
	one := realScalar[T](1)
	for i := 0; i < n; i++ {
		out.Set(i, i, one)
	}
	return out
}

// SvdF64 是 Svd 的 float64 加速路径，委托 mat.SVD；
// 分解失败时回退到 Jacobi 参考实现。
func SvdF64(a *Dense[float64]) (u *Dense[float64], s []float64, v *Dense[float64]) {
	m, n := a.Rows(), a.Cols()
	md := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			md.Set(i, j, a.At(i, j))
		}
	}
	var svd mat.SVD
	if !svd.Factorize(md, mat.SVDThin) {
		return svdJacobi(a)
	}
	sv := svd.Values(nil)
	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)
	k := len(sv)
	u = NewDense[float64](m, k)
	v = NewDense[float64](n, k)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			u.Set(i, j, um.At(i, j))
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			v.Set(i, j, vm.At(i, j))
		}
	}
	return u, sv, v
}
