// Package tile 实现 BLR 矩阵的多态分块：稠密变体持有 m×n 稠密块，
// 低秩变体持有因子 U (m×r)、V (r×n)。两种变体通过统一接口暴露
// 数值操作（物化、选主元行置换、三角求解、Schur 更新贡献、元素访问），
// 二元操作对 (变体×变体) 的四种组合显式分派，保证任一操作数为
// 秩 r 低秩时代价为 O(r*(m+n+p)) 而非 O(m*n*p)。
package tile

import (
	"blrmat/numeric"
)

// Tile BLR 分块的统一接口，两种实现：Dense 与 LowRank。
type Tile[T numeric.Number] interface {
	Rows() int
	Cols() int
	// Rank 稠密块约定报告 min(m,n)，低秩块报告 r。
	Rank() int
	IsLowRank() bool
	// Memory 稠密 m*n，低秩 r*(m+n)，单位为标量个数。
	Memory() int
	Nonzeros() int
	// At 获取元素 (i,j)；低秩块计算 <U(i,:),V(:,j)>。
	At(i, j int) T
	// ToDense 物化到 out：稠密复制，低秩做 U*V。
	ToDense(out *numeric.Dense[T])
	Clone() Tile[T]
	// Laswp 置换分块行；低秩块只置换 U 的行。
	Laswp(piv []int, fwd bool)
	// TrsmB 以三角阵 a 的逆左乘/右乘本块：稠密作用于整个 D；
	// 低秩在 side=Left 时作用于 U，side=Right 时作用于 V。
	TrsmB(side numeric.Side, uplo numeric.Uplo, trans numeric.Trans, diag numeric.Diag, alpha T, a *numeric.Dense[T])
	// GemvA 计算 y <- alpha*op(T)*x + beta*y；低秩先作 r 维中间量。
	GemvA(trans numeric.Trans, alpha T, x *numeric.Vector[T], beta T, y *numeric.Vector[T])
}

// Dense 稠密变体。
type Dense[T numeric.Number] struct {
	D *numeric.Dense[T]
}

// LowRank 低秩变体：块近似为 U*V，r <= min(m,n)。
type LowRank[T numeric.Number] struct {
	U *numeric.Dense[T]
	V *numeric.Dense[T]
}

// NewDense 创建全零稠密分块。
func NewDense[T numeric.Number](m, n int) *Dense[T] {
	return &Dense[T]{D: numeric.NewDense[T](m, n)}
}

// NewDenseFrom 包装既有稠密块（不复制）。
func NewDenseFrom[T numeric.Number](d *numeric.Dense[T]) *Dense[T] {
	return &Dense[T]{D: d}
}

// NewLowRank 由因子 U、V 构造低秩分块（不复制）。
func NewLowRank[T numeric.Number](u, v *numeric.Dense[T]) *LowRank[T] {
	if u.Cols() != v.Rows() {
		panic("tile.NewLowRank: factor rank mismatch")
	}
	return &LowRank[T]{U: u, V: v}
}

func (t *Dense[T]) Rows() int       { return t.D.Rows() }
func (t *Dense[T]) Cols() int       { return t.D.Cols() }
func (t *Dense[T]) IsLowRank() bool { return false }

func (t *Dense[T]) Rank() int {
	if t.D.Rows() < t.D.Cols() {
		return t.D.Rows()
	}
	return t.D.Cols()
}

func (t *Dense[T]) Memory() int   { return t.D.Rows() * t.D.Cols() }
func (t *Dense[T]) Nonzeros() int { return t.D.Rows() * t.D.Cols() }

func (t *Dense[T]) At(i, j int) T { return t.D.At(i, j) }

func (t *Dense[T]) ToDense(out *numeric.Dense[T]) { t.D.CopyTo(out) }

func (t *Dense[T]) Clone() Tile[T] { return &Dense[T]{D: t.D.Clone()} }

func (t *Dense[T]) Laswp(piv []int, fwd bool) { numeric.Laswp(t.D, piv, fwd) }

func (t *Dense[T]) TrsmB(side numeric.Side, uplo numeric.Uplo, trans numeric.Trans, diag numeric.Diag, alpha T, a *numeric.Dense[T]) {
	numeric.Trsm(side, uplo, trans, diag, alpha, a, t.D)
}

func (t *Dense[T]) GemvA(trans numeric.Trans, alpha T, x *numeric.Vector[T], beta T, y *numeric.Vector[T]) {
	numeric.Gemv(trans, alpha, t.D, x, beta, y)
}

func (t *LowRank[T]) Rows() int       { return t.U.Rows() }
func (t *LowRank[T]) Cols() int       { return t.V.Cols() }
func (t *LowRank[T]) Rank() int       { return t.U.Cols() }
func (t *LowRank[T]) IsLowRank() bool { return true }

func (t *LowRank[T]) Memory() int   { return t.Rank() * (t.Rows() + t.Cols()) }
func (t *LowRank[T]) Nonzeros() int { return t.Memory() }

func (t *LowRank[T]) At(i, j int) T {
	var sum T
	for k := 0; k < t.Rank(); k++ {
		sum += t.U.At(i, k) * t.V.At(k, j)
	}
	return sum
}

func (t *LowRank[T]) ToDense(out *numeric.Dense[T]) {
	numeric.Gemm(numeric.NoTrans, numeric.NoTrans, numeric.One[T](), t.U, t.V, numeric.ZeroOf[T](), out)
}

func (t *LowRank[T]) Clone() Tile[T] { return &LowRank[T]{U: t.U.Clone(), V: t.V.Clone()} }

func (t *LowRank[T]) Laswp(piv []int, fwd bool) { numeric.Laswp(t.U, piv, fwd) }

func (t *LowRank[T]) TrsmB(side numeric.Side, uplo numeric.Uplo, trans numeric.Trans, diag numeric.Diag, alpha T, a *numeric.Dense[T]) {
	if side == numeric.Left {
		numeric.Trsm(side, uplo, trans, diag, alpha, a, t.U)
	} else {
		numeric.Trsm(side, uplo, trans, diag, alpha, a, t.V)
	}
}

func (t *LowRank[T]) GemvA(trans numeric.Trans, alpha T, x *numeric.Vector[T], beta T, y *numeric.Vector[T]) {
	r := t.Rank()
	tmp := numeric.NewVector[T](r)
	one := numeric.One[T]()
	if trans == numeric.NoTrans {
		// y <- alpha*U*(V*x) + beta*y
		numeric.Gemv(numeric.NoTrans, one, t.V, x, numeric.ZeroOf[T](), tmp)
		numeric.Gemv(numeric.NoTrans, alpha, t.U, tmp, beta, y)
	} else {
		// op(U*V) = op(V)*op(U)：y <- alpha*op(V)*(op(U)*x) + beta*y
		numeric.Gemv(trans, one, t.U, x, numeric.ZeroOf[T](), tmp)
		numeric.Gemv(trans, alpha, t.V, tmp, beta, y)
	}
}

// Zero 创建 m×n 的全零稠密分块。
func Zero[T numeric.Number](m, n int) Tile[T] {
	return NewDense[T](m, n)
}

// Materialize 将任意分块物化为新的稠密矩阵。
func Materialize[T numeric.Number](t Tile[T]) *numeric.Dense[T] {
	out := numeric.NewDense[T](t.Rows(), t.Cols())
	t.ToDense(out)
	return out
}

// Equal 判断两个分块在 Frobenius 范数下的差是否不超过 tol。
func Equal[T numeric.Number](a, b Tile[T], tol float64) bool {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return false
	}
	da, db := Materialize(a), Materialize(b)
	da.Axpy(numeric.MinusOne[T](), db)
	return da.Norm() <= tol
}
