package blr

import (
	"errors"
	"sync"
	"testing"

	"blrmat/comm"
	"blrmat/grid"
	"blrmat/lowrank"
	"blrmat/numeric"
	"blrmat/tile"
)

// spawn 以 n 个 goroutine 模拟 SPMD 程序。
// goroutine 内只用 t.Errorf（FailNow 不允许跨 goroutine）。
func spawn(t *testing.T, n int, fn func(c comm.Communicator)) {
	t.Helper()
	w := comm.NewWorld(n)
	var wg sync.WaitGroup
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			fn(w.Comm(r))
		}(r)
	}
	wg.Wait()
}

// uniform 生成 n/ts 个尺寸为 ts 的分块。
func uniform(n, ts int) []int {
	sizes := make([]int, n/ts)
	for i := range sizes {
		sizes[i] = ts
	}
	return sizes
}

// pseudo 确定性伪随机元素，所有进程对同一 (i,j) 得到相同值。
func pseudo(i, j int) float64 {
	h := uint64(i)*1000003 + uint64(j)*7919 + 12345
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return float64(h%2000)/1000 - 1
}

// kernelF 平滑衰减核 1/(1+|i-j|)。
func kernelF(i, j int) float64 {
	d := i - j
	if d < 0 {
		d = -d
	}
	return 1.0 / float64(1+d)
}

// splitLU 从 LU 叠放的稠密矩阵拆出单位下三角 L 与上三角 U。
func splitLU[T numeric.Number](d *numeric.Dense[T]) (l, u *numeric.Dense[T]) {
	n := d.Rows()
	l = numeric.Identity[T](n)
	u = numeric.NewDense[T](n, d.Cols())
	for j := 0; j < d.Cols(); j++ {
		for i := 0; i < n; i++ {
			if i > j {
				l.Set(i, j, d.At(i, j))
			} else {
				u.Set(i, j, d.At(i, j))
			}
		}
	}
	return l, u
}

// factorResidual 计算 ||P*A - L*U||_F / ||A||_F。
func factorResidual[T numeric.Number](orig, overlay *numeric.Dense[T], piv []int) float64 {
	n := orig.Rows()
	pa := numeric.NewDense[T](n, orig.Cols())
	for k := 0; k < n; k++ {
		for j := 0; j < orig.Cols(); j++ {
			pa.Set(k, j, orig.At(piv[k], j))
		}
	}
	l, u := splitLU(overlay)
	lu := numeric.NewDense[T](n, orig.Cols())
	numeric.Gemm(numeric.NoTrans, numeric.NoTrans, numeric.One[T](), l, u, numeric.ZeroOf[T](), lu)
	lu.Axpy(numeric.MinusOne[T](), pa)
	return lu.Norm() / orig.Norm()
}

// TestFactorIdentity 单位阵分解：主元为恒等，分块保持单位结构，
// 不发生低秩转换。
func TestFactorIdentity(t *testing.T) {
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		a, err := New[float64](g, uniform(4, 2), uniform(4, 2))
		if err != nil {
			t.Errorf("New failed: %v", err)
			return
		}
		a.Fill(func(i, j int) float64 {
			if i == j {
				return 1
			}
			return 0
		})
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("Factor failed: %v", err)
			return
		}
		for k, p := range piv {
			if p != k {
				t.Errorf("piv[%d] = %d, want identity", k, p)
				return
			}
		}
		for I := 0; I < 2; I++ {
			for J := 0; J < 2; J++ {
				tl, _ := a.TileAt(I, J)
				if tl.IsLowRank() {
					t.Errorf("tile (%d,%d) converted to low rank", I, J)
				}
			}
		}
		d := a.ToDenseReplicated()
		id := numeric.Identity[float64](4)
		d.Axpy(-1, id)
		if d.Norm() > 0 {
			t.Errorf("factored identity is not identity: %e", d.Norm())
		}
	})
}

// TestFactorSingleTile 1×1 分块退化为普通 getrf。
func TestFactorSingleTile(t *testing.T) {
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n := 8
		a, _ := New[float64](g, []int{n}, []int{n})
		a.Fill(pseudo)
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("Factor failed: %v", err)
			return
		}
		ref := numeric.NewDense[float64](n, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				ref.Set(i, j, pseudo(i, j))
			}
		}
		refPiv, err := numeric.Getrf(ref, 0)
		if err != nil {
			t.Errorf("reference Getrf failed: %v", err)
			return
		}
		for k := range piv {
			if piv[k] != refPiv[k] {
				t.Errorf("piv[%d] = %d, want %d", k, piv[k], refPiv[k])
				return
			}
		}
		d := a.ToDenseReplicated()
		d.Axpy(-1, ref)
		if d.Norm() > 1e-12 {
			t.Errorf("single tile factor differs from getrf: %e", d.Norm())
		}
	})
}

// TestCompressFactorResidual 平滑核矩阵：非对角分块压缩到低秩，
// 分解后残差满足容差（分布式 2×2 网格）。
func TestCompressFactorResidual(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 64, 16
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(kernelF)

		opts := DefaultOptions()
		opts.RelTol = 1e-6
		opts.AbsTol = 0
		opts.MaxRank = 8
		adm := DefaultAdmissibility(a.Brows(), a.Bcols())
		if err := a.Compress(adm, opts); err != nil {
			t.Errorf("Compress failed: %v", err)
			return
		}
		// 压缩误差与秩约束：远离对角的分块必须压缩；
		// 压缩误差约束仅对未触及秩上限的分块成立。
		compressed := 0
		for I := 0; I < a.Brows(); I++ {
			for J := 0; J < a.Bcols(); J++ {
				tl, ok := a.TileAt(I, J)
				if !ok {
					continue
				}
				if tl.Rows() != a.TileRows(I) || tl.Cols() != a.TileCols(J) {
					t.Errorf("tile (%d,%d) dims changed by compression", I, J)
				}
				if !tl.IsLowRank() {
					if I != J && (I-J > 1 || J-I > 1) {
						t.Errorf("far off-diagonal tile (%d,%d) not compressed", I, J)
					}
					continue
				}
				compressed++
				if tl.Rank() > 8 {
					t.Errorf("tile (%d,%d) rank %d exceeds cap", I, J, tl.Rank())
				}
				if tl.Rank() == 8 {
					continue // 触及秩上限的分块不受容差约束
				}
				base := numeric.NewDense[float64](tl.Rows(), tl.Cols())
				for j := 0; j < tl.Cols(); j++ {
					for i := 0; i < tl.Rows(); i++ {
						base.Set(i, j, kernelF(a.RowOffsets()[I]+i, a.ColOffsets()[J]+j))
					}
				}
				recon := tile.Materialize(tl)
				recon.Axpy(-1, base)
				if recon.Norm() > 1e-6*base.Norm()+1e-12 {
					t.Errorf("tile (%d,%d) compression error %e", I, J, recon.Norm())
				}
			}
		}
		if compressed == 0 {
			t.Errorf("no off-diagonal tile was compressed")
		}

		orig := numeric.NewDense[float64](n, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				orig.Set(i, j, kernelF(i, j))
			}
		}
		piv, err := a.Factor(adm, opts)
		if err != nil {
			t.Errorf("Factor failed: %v", err)
			return
		}
		overlay := a.ToDenseReplicated()
		if res := factorResidual(orig, overlay, piv); res > 1e-5 {
			t.Errorf("factorization residual %e exceeds 1e-5", res)
		}
	})
}

// TestACAUnitSolve 单位阵加角元：ACA max_rank=1 压缩后求解精确恢复。
func TestACAUnitSolve(t *testing.T) {
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n := 8
		f := func(i, j int) float64 {
			switch {
			case i == j:
				return 1
			case i == 0 && j == n-1:
				return 1
			}
			return 0
		}
		a, _ := New[float64](g, uniform(n, 4), uniform(n, 4))
		a.Fill(f)

		opts := DefaultOptions()
		opts.LowRankAlgorithm = lowrank.AlgorithmACA
		opts.MaxRank = 1
		opts.RelTol = 1e-12
		adm := DefaultAdmissibility(2, 2)
		if err := a.Compress(adm, opts); err != nil {
			t.Errorf("Compress failed: %v", err)
			return
		}
		for _, ij := range [][2]int{{0, 1}, {1, 0}} {
			tl, _ := a.TileAt(ij[0], ij[1])
			if !tl.IsLowRank() || tl.Rank() > 1 {
				t.Errorf("tile (%d,%d) rank %d, want <= 1 lowrank", ij[0], ij[1], tl.Rank())
			}
		}

		ones := numeric.NewVector[float64](n)
		for i := 0; i < n; i++ {
			ones.Set(i, 1)
		}
		b := numeric.NewVector[float64](n)
		if err := a.Gemv(numeric.NoTrans, 1, ones, 0, b); err != nil {
			t.Errorf("Gemv failed: %v", err)
			return
		}
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("Factor failed: %v", err)
			return
		}
		numeric.LaswpVec(b, piv, true)
		if err := a.Trsv(numeric.Lower, numeric.NoTrans, numeric.Unit, b); err != nil {
			t.Errorf("lower Trsv failed: %v", err)
			return
		}
		if err := a.Trsv(numeric.Upper, numeric.NoTrans, numeric.NonUnit, b); err != nil {
			t.Errorf("upper Trsv failed: %v", err)
			return
		}
		b.Axpy(-1, ones)
		if b.Norm() > 1e-12 {
			t.Errorf("solve error %e, want machine precision", b.Norm())
		}
	})
}

// TestBlockCyclicRoundTrip 未压缩矩阵经块循环分布往返必须逐位一致。
func TestBlockCyclicRoundTrip(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		m, n := 32, 32
		bc, err := NewBlockCyclic[float64](g, m, n, 5, 7)
		if err != nil {
			t.Errorf("NewBlockCyclic failed: %v", err)
			return
		}
		bc.Fill(pseudo)
		a, err := FromBlockCyclic(bc, g, uniform(m, 8), uniform(n, 8))
		if err != nil {
			t.Errorf("FromBlockCyclic failed: %v", err)
			return
		}
		// BLR 侧与元素函数一致
		d := a.ToDenseReplicated()
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				if d.At(i, j) != pseudo(i, j) {
					t.Errorf("imported element (%d,%d) mismatch", i, j)
					return
				}
			}
		}
		back, err := a.ToBlockCyclic(5, 7)
		if err != nil {
			t.Errorf("ToBlockCyclic failed: %v", err)
			return
		}
		lb, ob := back.Local(), bc.Local()
		if lb.Rows() != ob.Rows() || lb.Cols() != ob.Cols() {
			t.Errorf("local buffer dims changed")
			return
		}
		for j := 0; j < lb.Cols(); j++ {
			for i := 0; i < lb.Rows(); i++ {
				if lb.At(i, j) != ob.At(i, j) {
					t.Errorf("round trip element (%d,%d) not bitwise equal", i, j)
					return
				}
			}
		}
	})
}

// TestFactorDistributedComplex 2×2 网格上的复数分解与
// 单进程串行分解逐元素一致，残差满足容差。
func TestFactorDistributedComplex(t *testing.T) {
	n, ts := 32, 8
	f := func(i, j int) complex128 {
		v := complex(pseudo(i, j), pseudo(j+3, i+5))
		if i == j {
			v += complex(float64(n), 0)
		}
		return v
	}
	var seq *numeric.Dense[complex128]
	var seqPiv []int
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		a, _ := New[complex128](g, uniform(n, ts), uniform(n, ts))
		a.Fill(f)
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("sequential Factor failed: %v", err)
			return
		}
		seq = a.ToDenseReplicated()
		seqPiv = piv
	})
	if seq == nil {
		return
	}

	orig := numeric.NewDense[complex128](n, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			orig.Set(i, j, f(i, j))
		}
	}
	if res := factorResidual(orig, seq, seqPiv); res > 1e-12 {
		t.Errorf("sequential residual %e", res)
	}

	var mu sync.Mutex
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		a, _ := New[complex128](g, uniform(n, ts), uniform(n, ts))
		a.Fill(f)
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("distributed Factor failed: %v", err)
			return
		}
		d := a.ToDenseReplicated()
		mu.Lock()
		defer mu.Unlock()
		for k := range piv {
			if piv[k] != seqPiv[k] {
				t.Errorf("distributed piv[%d] = %d, sequential %d", k, piv[k], seqPiv[k])
				return
			}
		}
		d.Axpy(-1, seq)
		if d.Norm() > 1e-10 {
			t.Errorf("distributed factor differs from sequential: %e", d.Norm())
		}
	})
}

// TestTrsmGemmLaw 三角求解后 B_in - A*X 归零（2×2 网格）。
func TestTrsmGemmLaw(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 4
		lowerUnit := func(i, j int) float64 {
			switch {
			case i == j:
				return 1
			case i > j:
				return pseudo(i, j) / 4
			}
			return 0
		}
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(lowerUnit)
		b, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		b.Fill(pseudo)
		bin, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		bin.Fill(pseudo)

		if err := Trsm(numeric.Left, numeric.Lower, numeric.NoTrans, numeric.Unit, 1, a, b); err != nil {
			t.Errorf("Trsm failed: %v", err)
			return
		}
		if err := Gemm(numeric.NoTrans, numeric.NoTrans, -1, a, b, 1, bin); err != nil {
			t.Errorf("Gemm failed: %v", err)
			return
		}
		if res := bin.Norm(); res > 1e-10 {
			t.Errorf("B - A*X residual %e", res)
		}
	})
}

// TestTrsmRightUpper 右侧上三角求解的镜像路径。
func TestTrsmRightUpper(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 4
		upper := func(i, j int) float64 {
			switch {
			case i == j:
				return 4
			case i < j:
				return pseudo(i, j)
			}
			return 0
		}
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(upper)
		b, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		b.Fill(pseudo)
		bin, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		bin.Fill(pseudo)

		if err := Trsm(numeric.Right, numeric.Upper, numeric.NoTrans, numeric.NonUnit, 1, a, b); err != nil {
			t.Errorf("Trsm failed: %v", err)
			return
		}
		// bin <- bin - X*A
		if err := Gemm(numeric.NoTrans, numeric.NoTrans, -1, b, a, 1, bin); err != nil {
			t.Errorf("Gemm failed: %v", err)
			return
		}
		if res := bin.Norm(); res > 1e-10 {
			t.Errorf("B - X*A residual %e", res)
		}
	})
}

// TestPartialFactorSchur 2×2 部分分解加显式舒尔重组与整体分解一致。
func TestPartialFactorSchur(t *testing.T) {
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, half, ts := 32, 16, 8
		f := func(i, j int) float64 {
			v := pseudo(i, j)
			if i == j {
				v += float64(n)
			}
			return v
		}
		full, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		full.Fill(f)
		fullPiv, err := full.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("monolithic Factor failed: %v", err)
			return
		}

		a11, _ := New[float64](g, uniform(half, ts), uniform(half, ts))
		a11.Fill(func(i, j int) float64 { return f(i, j) })
		a12, _ := New[float64](g, uniform(half, ts), uniform(half, ts))
		a12.Fill(func(i, j int) float64 { return f(i, j+half) })
		a21, _ := New[float64](g, uniform(half, ts), uniform(half, ts))
		a21.Fill(func(i, j int) float64 { return f(i+half, j) })
		a22, _ := New[float64](g, uniform(half, ts), uniform(half, ts))
		a22.Fill(func(i, j int) float64 { return f(i+half, j+half) })

		piv11, err := PartialFactor(a11, a12, a21, a22, nil, DefaultOptions())
		if err != nil {
			t.Errorf("PartialFactor failed: %v", err)
			return
		}
		// 舒尔重组：继续分解 A22，并把其主元应用到 L21 的行上
		piv22, err := a22.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("Schur Factor failed: %v", err)
			return
		}
		if err := a21.Laswp(piv22, true); err != nil {
			t.Errorf("Laswp on A21 failed: %v", err)
			return
		}

		combined := make([]int, n)
		copy(combined, piv11)
		for k := 0; k < half; k++ {
			combined[half+k] = half + piv22[k]
		}
		for k := range combined {
			if combined[k] != fullPiv[k] {
				t.Errorf("combined piv[%d] = %d, monolithic %d", k, combined[k], fullPiv[k])
				return
			}
		}

		assembled := numeric.NewDense[float64](n, n)
		put := func(m *Matrix[float64], r0, c0 int) {
			d := m.ToDenseReplicated()
			for j := 0; j < d.Cols(); j++ {
				for i := 0; i < d.Rows(); i++ {
					assembled.Set(r0+i, c0+j, d.At(i, j))
				}
			}
		}
		put(a11, 0, 0)
		put(a12, 0, half)
		put(a21, half, 0)
		put(a22, half, half)

		mono := full.ToDenseReplicated()
		diff := assembled.Clone()
		diff.Axpy(-1, mono)
		if diff.Norm() > 1e-9 {
			t.Errorf("partial+Schur differs from monolithic: %e", diff.Norm())
		}

		orig := numeric.NewDense[float64](n, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				orig.Set(i, j, f(i, j))
			}
		}
		if res := factorResidual(orig, assembled, combined); res > 1e-10 {
			t.Errorf("assembled residual %e", res)
		}
	})
}

// TestMatrixLaswpRoundTrip 整矩阵行置换往返为恒等（分布式）。
func TestMatrixLaswpRoundTrip(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 4
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(pseudo)
		before := a.ToDenseReplicated()

		piv := make([]int, n)
		for I := 0; I < n/ts; I++ {
			for k := 0; k < ts; k++ {
				piv[I*ts+k] = I*ts + (k+1)%ts
			}
		}
		if err := a.Laswp(piv, true); err != nil {
			t.Errorf("forward Laswp failed: %v", err)
			return
		}
		if err := a.Laswp(piv, false); err != nil {
			t.Errorf("backward Laswp failed: %v", err)
			return
		}
		after := a.ToDenseReplicated()
		after.Axpy(-1, before)
		if after.Norm() > 0 {
			t.Errorf("Laswp round trip is not identity: %e", after.Norm())
		}
	})
}

// TestGemvComplexTrans 分布式复数矩阵-向量乘的转置路径。
func TestGemvComplexTrans(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 4
		f := func(i, j int) complex128 {
			return complex(pseudo(i, j), pseudo(j, i))
		}
		a, _ := New[complex128](g, uniform(n, ts), uniform(n, ts))
		a.Fill(f)
		dense := numeric.NewDense[complex128](n, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				dense.Set(i, j, f(i, j))
			}
		}
		x := numeric.NewVector[complex128](n)
		for i := 0; i < n; i++ {
			x.Set(i, complex(pseudo(i, 99), pseudo(99, i)))
		}
		for _, trans := range []numeric.Trans{numeric.NoTrans, numeric.TransT, numeric.ConjTrans} {
			y := numeric.NewVector[complex128](n)
			if err := a.Gemv(trans, 2+1i, x, 0, y); err != nil {
				t.Errorf("Gemv trans=%v failed: %v", trans, err)
				return
			}
			want := numeric.NewVector[complex128](n)
			numeric.Gemv(trans, 2+1i, dense, x, 0, want)
			y.Axpy(-1, want)
			if y.Norm() > 1e-10 {
				t.Errorf("Gemv trans=%v mismatch %e", trans, y.Norm())
			}
		}
	})
}

// TestFactorSingularStep 零矩阵在第 0 步报步号错误，所有进程一致。
func TestFactorSingularStep(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		a, _ := New[float64](g, uniform(8, 4), uniform(8, 4))
		_, err := a.Factor(nil, DefaultOptions())
		var se *StepError
		if !errors.As(err, &se) {
			t.Errorf("Factor on zero matrix: err = %v, want StepError", err)
			return
		}
		if se.Step != 0 || !errors.Is(err, numeric.ErrSingular) {
			t.Errorf("StepError step %d err %v", se.Step, se.Err)
		}
	})
}

// TestCompressLossless max_rank 等于分块尺寸且容差为零时压缩无损。
func TestCompressLossless(t *testing.T) {
	spawn(t, 1, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 8
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(pseudo)
		before := a.ToDenseReplicated()
		opts := DefaultOptions()
		opts.RelTol = 0
		opts.AbsTol = 0
		opts.MaxRank = ts
		if err := a.Compress(nil, opts); err != nil {
			t.Errorf("Compress failed: %v", err)
			return
		}
		after := a.ToDenseReplicated()
		after.Axpy(-1, before)
		if after.Norm() > 1e-12 {
			t.Errorf("lossless compression changed the matrix: %e", after.Norm())
		}
	})
}

// TestTrsvAgainstGemv 下三角 BLR 系统：b = L*x 后 Trsv 恢复 x。
func TestTrsvAgainstGemv(t *testing.T) {
	spawn(t, 4, func(c comm.Communicator) {
		g, _ := grid.New(c, 0)
		n, ts := 16, 4
		lower := func(i, j int) float64 {
			switch {
			case i == j:
				return 4
			case i > j:
				return pseudo(i, j)
			}
			return 0
		}
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(lower)
		x := numeric.NewVector[float64](n)
		for i := 0; i < n; i++ {
			x.Set(i, pseudo(i, 7))
		}
		b := numeric.NewVector[float64](n)
		if err := a.Gemv(numeric.NoTrans, 1, x, 0, b); err != nil {
			t.Errorf("Gemv failed: %v", err)
			return
		}
		if err := a.Trsv(numeric.Lower, numeric.NoTrans, numeric.NonUnit, b); err != nil {
			t.Errorf("Trsv failed: %v", err)
			return
		}
		b.Axpy(-1, x)
		if b.Norm() > 1e-10 {
			t.Errorf("Trsv solve error %e", b.Norm())
		}
	})
}

// TestInactiveRankParticipates 非活动进程只参与全局集合操作。
func TestInactiveRankParticipates(t *testing.T) {
	spawn(t, 3, func(c comm.Communicator) {
		g, _ := grid.New(c, 2) // 1×2 网格，rank 2 非活动
		n, ts := 8, 4
		a, _ := New[float64](g, uniform(n, ts), uniform(n, ts))
		a.Fill(func(i, j int) float64 {
			v := pseudo(i, j)
			if i == j {
				v += 8
			}
			return v
		})
		piv, err := a.Factor(nil, DefaultOptions())
		if err != nil {
			t.Errorf("Factor failed: %v", err)
			return
		}
		if len(piv) != n {
			t.Errorf("piv length %d", len(piv))
		}
		// 非活动进程也拿到完整主元并能参与重分布
		d := a.ToDenseReplicated()
		orig := numeric.NewDense[float64](n, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				v := pseudo(i, j)
				if i == j {
					v += 8
				}
				orig.Set(i, j, v)
			}
		}
		if res := factorResidual(orig, d, piv); res > 1e-10 {
			t.Errorf("residual %e", res)
		}
	})
}
