// Package numeric 提供 BLR 引擎依赖的稠密矩阵基元：
// 列主序存储、显式主维（leading dimension）、非拥有型子块视图，
// 以及分块与面板所需的 BLAS/LAPACK 形态核心
// （Gemm、Gemv、Trsm、Getrf、Laswp、列主元 QR、截断 SVD）。
//
// 所有类型对 Number 泛型化，同一套 BLR 实例化即可支持
// 实数/复数、单精度/双精度。当标量类型为 float64 时，
// 重量级核心委托给 gonum 的 blas64/lapack64 加速实现；
// 其余标量类型走纯 Go 参考实现。
package numeric

import (
	"math"
	"math/cmplx"
)

// Number 是一个约束，允许任何浮点或复数类型。
type Number interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// Abs 是一个泛型函数，返回任何支持的 Number 类型的模（绝对值）。
func Abs[T Number](v T) float64 {
	switch x := any(v).(type) {
	case float32:
		return math.Abs(float64(x))
	case float64:
		return math.Abs(x)
	case complex64:
		return cmplx.Abs(complex128(x))
	case complex128:
		return cmplx.Abs(x)
	}
	return 0
}

// Conj 返回复数类型的共轭；实数类型原样返回。
func Conj[T Number](v T) T {
	switch x := any(v).(type) {
	case complex64:
		return any(complex64(cmplx.Conj(complex128(x)))).(T)
	case complex128:
		return any(cmplx.Conj(x)).(T)
	default:
		return v
	}
}

// IsFinite 判断 v 的所有分量是否均为有限值（无 Inf/NaN）。
func IsFinite[T Number](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return !math.IsInf(float64(x), 0) && !math.IsNaN(float64(x))
	case float64:
		return !math.IsInf(x, 0) && !math.IsNaN(x)
	case complex64:
		r, i := real(x), imag(x)
		return !math.IsInf(float64(r), 0) && !math.IsNaN(float64(r)) &&
			!math.IsInf(float64(i), 0) && !math.IsNaN(float64(i))
	case complex128:
		r, i := real(x), imag(x)
		return !math.IsInf(r, 0) && !math.IsNaN(r) && !math.IsInf(i, 0) && !math.IsNaN(i)
	}
	return true
}

// One 返回 T 类型的标量 1。
func One[T Number]() T { return T(1) }

// MinusOne 返回 T 类型的标量 -1。
func MinusOne[T Number]() T { return T(-1) }

// ZeroOf 返回 T 类型的标量 0。
func ZeroOf[T Number]() T { var z T; return z }

// ToFloat64s 将标量切片展开为 float64 切片（复数占两个槽位），
// 供通信层的求和归约使用。
func ToFloat64s[T Number](v []T) []float64 {
	switch x := any(v).(type) {
	case []float32:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case []float64:
		out := make([]float64, len(x))
		copy(out, x)
		return out
	case []complex64:
		out := make([]float64, 2*len(x))
		for i, e := range x {
			out[2*i] = float64(real(e))
			out[2*i+1] = float64(imag(e))
		}
		return out
	case []complex128:
		out := make([]float64, 2*len(x))
		for i, e := range x {
			out[2*i] = real(e)
			out[2*i+1] = imag(e)
		}
		return out
	}
	return nil
}

// FromFloat64s 是 ToFloat64s 的逆操作，将展开的 float64 切片写回 dst。
func FromFloat64s[T Number](src []float64, dst []T) {
	switch x := any(dst).(type) {
	case []float32:
		for i := range x {
			x[i] = float32(src[i])
		}
	case []float64:
		copy(x, src)
	case []complex64:
		for i := range x {
			x[i] = complex(float32(src[2*i]), float32(src[2*i+1]))
		}
	case []complex128:
		for i := range x {
			x[i] = complex(src[2*i], src[2*i+1])
		}
	}
}

// ScalarSlots 返回一个 T 标量在 float64 展开中占用的槽位数。
func ScalarSlots[T Number]() int {
	var zero T
	switch any(zero).(type) {
	case complex64, complex128:
		return 2
	}
	return 1
}
