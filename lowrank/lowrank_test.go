package lowrank

import (
	"math/rand"
	"testing"

	"blrmat/numeric"
)

// outerSum 构造 sum_k u_k * v_k 的精确低秩矩阵。
func outerSum(rng *rand.Rand, m, n, r int) *numeric.Dense[float64] {
	out := numeric.NewDense[float64](m, n)
	for k := 0; k < r; k++ {
		u := make([]float64, m)
		v := make([]float64, n)
		for i := range u {
			u[i] = rng.Float64()*2 - 1
		}
		for j := range v {
			v[j] = rng.Float64()*2 - 1
		}
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				out.Increment(i, j, u[i]*v[j])
			}
		}
	}
	return out
}

// reconError 返回 ||t - u*v||_F。
func reconError(t *numeric.Dense[float64], u, v *numeric.Dense[float64]) float64 {
	recon := numeric.NewDense[float64](t.Rows(), t.Cols())
	numeric.Gemm(numeric.NoTrans, numeric.NoTrans, 1, u, v, 0, recon)
	recon.Axpy(-1, t)
	return recon.Norm()
}

// TestRRQRExactRank 精确秩 2 的块应压缩到秩 2 且近乎无损。
func TestRRQRExactRank(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	blk := outerSum(rng, 16, 12, 2)
	opts := Options{Algorithm: AlgorithmRRQR, RelTol: 1e-10, AbsTol: 1e-14, MaxRank: 8}
	u, v, rank := RRQRWithOptions(blk, opts)
	if rank != 2 {
		t.Fatalf("rank = %d, want 2", rank)
	}
	if err := reconError(blk, u, v); err > 1e-9*blk.Norm() {
		t.Fatalf("reconstruction error %e", err)
	}
}

// TestRRQRTolerance 压缩误差必须满足 max(abs, rel*||T||_F) 约束。
func TestRRQRTolerance(t *testing.T) {
	m, n := 20, 20
	// 平滑核数值低秩：off-diagonal 块 1/(1+|i-j|)
	blk := numeric.NewDense[float64](m, n)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			d := i - (j + 40)
			if d < 0 {
				d = -d
			}
			blk.Set(i, j, 1.0/float64(1+d))
		}
	}
	opts := Options{Algorithm: AlgorithmRRQR, RelTol: 1e-6, AbsTol: 0, MaxRank: 20}
	u, v, rank := RRQRWithOptions(blk, opts)
	if rank >= 10 {
		t.Fatalf("smooth kernel block compressed to rank %d, want < 10", rank)
	}
	if err := reconError(blk, u, v); err > 1e-5*blk.Norm() {
		t.Fatalf("reconstruction error %e exceeds tolerance", err)
	}
}

// TestRRQRMaxRankCap 自然秩超过 max_rank 时保留截断因子。
func TestRRQRMaxRankCap(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	blk := outerSum(rng, 10, 10, 10)
	opts := Options{Algorithm: AlgorithmRRQR, RelTol: 1e-14, AbsTol: 0, MaxRank: 3}
	u, v, rank := RRQRWithOptions(blk, opts)
	if rank != 3 {
		t.Fatalf("rank = %d, want cap 3", rank)
	}
	if u.Cols() != 3 || v.Rows() != 3 {
		t.Fatalf("factor dims %dx%d / %dx%d", u.Rows(), u.Cols(), v.Rows(), v.Cols())
	}
}

// TestACAKernelBlock ACA 对平滑核块的重构误差。
func TestACAKernelBlock(t *testing.T) {
	m, n := 16, 16
	oracle := ElementFunc[float64](func(i, j int) float64 {
		d := i - (j + 16)
		if d < 0 {
			d = -d
		}
		return 1.0 / float64(1+d)
	})
	opts := Options{Algorithm: AlgorithmACA, RelTol: 1e-8, AbsTol: 0, MaxRank: 16}
	u, v, rank := ACA(m, n, AsRowCol(m, n, oracle), opts)
	if rank == 0 {
		t.Fatalf("ACA produced empty approximation")
	}
	blk := numeric.NewDense[float64](m, n)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			blk.Set(i, j, oracle(i, j))
		}
	}
	if err := reconError(blk, u, v); err > 1e-6*blk.Norm() {
		t.Fatalf("ACA reconstruction error %e", err)
	}
}

// TestACARankOne 秩 1 块在 max_rank=1 下精确重构。
func TestACARankOne(t *testing.T) {
	m, n := 4, 4
	// e_0 * e_3^T
	oracle := ElementFunc[float64](func(i, j int) float64 {
		if i == 0 && j == 3 {
			return 1
		}
		return 0
	})
	opts := Options{Algorithm: AlgorithmACA, RelTol: 1e-12, AbsTol: 0, MaxRank: 1}
	u, v, rank := ACA(m, n, AsRowCol(m, n, oracle), opts)
	if rank != 1 {
		t.Fatalf("rank = %d, want 1", rank)
	}
	blk := numeric.NewDense[float64](m, n)
	blk.Set(0, 3, 1)
	if err := reconError(blk, u, v); err > 1e-14 {
		t.Fatalf("rank-1 reconstruction error %e", err)
	}
}

// TestACAZeroBlock 全零块应返回秩 0。
func TestACAZeroBlock(t *testing.T) {
	oracle := ElementFunc[float64](func(i, j int) float64 { return 0 })
	opts := DefaultOptions()
	opts.Algorithm = AlgorithmACA
	_, _, rank := ACA(8, 8, AsRowCol(8, 8, oracle), opts)
	if rank != 0 {
		t.Fatalf("zero block rank = %d, want 0", rank)
	}
}
