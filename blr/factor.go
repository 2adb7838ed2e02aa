package blr

import (
	"blrmat/numeric"
	"blrmat/tile"
	"blrmat/wire"
)

// Factor 对方形划分的 BLR 矩阵执行右视、块行内行主元的 LU 分解。
// 所有活动进程按相同的分块步 I 同步推进；非活动进程只参与
// 全局主元广播。返回长度为 rows 的全局主元向量（各进程一致），
// 满足 P*A = L*U，其中 P 由各分块行的块内排列拼接而成。
//
// adm 为 nil 时不做过程中压缩（纯分块 LU）；给定 adm 时对新解出的
// 面板分块按位图尝试低秩压缩。
// 数值失败（零主元、非有限分块）以 *StepError 返回，剩余分块循环
// 被放弃。
func (m *Matrix[T]) Factor(adm *Admissibility, opts Options) ([]int, error) {
	if !samePartition(m.roff, m.coff) {
		return nil, ErrDimension
	}
	return factorCore(m, nil, nil, nil, adm, opts)
}

// PartialFactor 对 2×2 分块划分 [A11 A12; A21 A22] 只分解 A11，
// 求解 U12 = L11^{-1}*A12 与 L21 = A21*U11^{-1}，并形成舒尔补
// A22 <- A22 - L21*U12。结构上与 Factor 限制在 A11 的分块行一致，
// 但面板与更新的广播同时覆盖 A12、A21，尾部更新写入 A22。
// 返回 A11 的主元序列。
//
// adm 覆盖组合划分 (brows11+brows22)×(bcols11+bcols22) 时按组合
// 坐标查询；否则 A12/A21 的面板分块默认可压缩（严格非对角）。
func PartialFactor[T numeric.Number](a11, a12, a21, a22 *Matrix[T], adm *Admissibility, opts Options) ([]int, error) {
	if a12 == nil || a21 == nil || a22 == nil {
		return nil, ErrDimension
	}
	if a11.g != a12.g || a11.g != a21.g || a11.g != a22.g {
		return nil, ErrGridMismatch
	}
	if !samePartition(a11.roff, a11.coff) ||
		!samePartition(a12.roff, a11.roff) ||
		!samePartition(a21.coff, a11.coff) ||
		!samePartition(a22.roff, a21.roff) ||
		!samePartition(a22.coff, a12.coff) {
		return nil, ErrDimension
	}
	return factorCore(a11, a12, a21, a22, adm, opts)
}

// 主元广播消息的状态码。
const (
	stepOK = iota
	stepSingular
	stepNotDense
	stepNotFinite
)

func stepErr(I, status int) error {
	switch status {
	case stepSingular:
		return &StepError{Step: I, Err: numeric.ErrSingular}
	case stepNotDense:
		return &StepError{Step: I, Err: ErrUnsupported}
	case stepNotFinite:
		return &StepError{Step: I, Err: ErrNotFinite}
	}
	return nil
}

// factorCore 分解 a11 的全部分块行；a12/a21/a22 为 nil 时退化为
// 单矩阵分解。每个分块步依次执行：对角 LU 与主元全局广播、
// 面板主元行置换、面板三角求解、可选压缩、面板广播、尾部更新。
func factorCore[T numeric.Number](a11, a12, a21, a22 *Matrix[T], adm *Admissibility, opts Options) ([]int, error) {
	g := a11.g
	world := g.World()
	one := numeric.One[T]()
	minusOne := numeric.MinusOne[T]()
	cutoff := opts.TaskRecursionCutoff

	piv := make([]int, a11.rows)
	for I := 0; I < a11.brows; I++ {
		nb := a11.TileRows(I)
		ownerRow, ownerCol := g.Owner(I, I)

		// 1. 对角 LU 与 [status, piv...] 全局广播（非活动进程也参与）
		var msg []byte
		if g.Active() && g.Prow() == ownerRow && g.Pcol() == ownerCol {
			status := stepOK
			var pivI []int
			t, _ := a11.TileAt(I, I)
			dt, ok := t.(*tile.Dense[T])
			switch {
			case !ok:
				status = stepNotDense
			case !dt.D.AllFinite():
				status = stepNotFinite
			default:
				var err error
				pivI, err = numeric.Getrf(dt.D, opts.PivotThreshold)
				if err != nil {
					status = stepSingular
				}
			}
			msg = wire.EncodeInts(append([]int{status}, pivI...))
			world.Bcast(msg, g.RankOf(ownerRow, ownerCol))
		} else {
			msg = world.Bcast(nil, g.RankOf(ownerRow, ownerCol))
		}
		decoded, err := wire.DecodeInts(msg)
		if err != nil {
			return nil, err
		}
		if decoded[0] != stepOK {
			return nil, stepErr(I, decoded[0])
		}
		pivI := decoded[1:]
		for k := 0; k < nb; k++ {
			piv[a11.roff[I]+k] = a11.roff[I] + pivI[k]
		}
		if !g.Active() {
			continue
		}

		// 2. 面板主元行置换：分块行 I 的全部非对角分块。
		// J<I 的分块（已定型的 L 面板）同样置换，保证全局 P*A = L*U。
		if g.IsLocalRow(I) {
			for J := 0; J < a11.bcols; J++ {
				if J == I {
					continue
				}
				if t, ok := a11.TileAt(I, J); ok {
					t.Laswp(pivI, true)
				}
			}
			if a12 != nil {
				for J := 0; J < a12.bcols; J++ {
					if t, ok := a12.TileAt(I, J); ok {
						t.Laswp(pivI, true)
					}
				}
			}
		}

		// 3. 面板三角求解。对角分块沿网格行/列广播后，
		// 行面板做 L 的左除（单位下三角），列面板做 U 的右除。
		if g.Prow() == ownerRow {
			dII, err := a11.bcastDenseAlongRow(I, I)
			if err != nil {
				return nil, err
			}
			for J := I + 1; J < a11.bcols; J++ {
				if t, ok := a11.TileAt(I, J); ok {
					t.TrsmB(numeric.Left, numeric.Lower, numeric.NoTrans, numeric.Unit, one, dII)
				}
			}
			if a12 != nil {
				for J := 0; J < a12.bcols; J++ {
					if t, ok := a12.TileAt(I, J); ok {
						t.TrsmB(numeric.Left, numeric.Lower, numeric.NoTrans, numeric.Unit, one, dII)
					}
				}
			}
		}
		if g.Pcol() == ownerCol {
			dII, err := a11.bcastDenseAlongCol(I, I)
			if err != nil {
				return nil, err
			}
			for I2 := I + 1; I2 < a11.brows; I2++ {
				if t, ok := a11.TileAt(I2, I); ok {
					t.TrsmB(numeric.Right, numeric.Upper, numeric.NoTrans, numeric.NonUnit, one, dII)
				}
			}
			if a21 != nil {
				for I2 := 0; I2 < a21.brows; I2++ {
					if t, ok := a21.TileAt(I2, I); ok {
						t.TrsmB(numeric.Right, numeric.Upper, numeric.NoTrans, numeric.NonUnit, one, dII)
					}
				}
			}
		}

		// 4. 新解出的面板分块按位图尝试压缩（adm 为 nil 则跳过）。
		if adm != nil {
			if err := compressPanels(a11, a12, a21, adm, opts, I); err != nil {
				return nil, err
			}
		}

		// 5. 行面板（U）沿网格列、列面板（L）沿网格行广播，
		// 保持每个分块的变体与秩。
		panelU, err := a11.bcastRowOfTiles(I, I+1, a11.bcols)
		if err != nil {
			return nil, err
		}
		var panelU12 map[int]tile.Tile[T]
		if a12 != nil {
			if panelU12, err = a12.bcastRowOfTiles(I, 0, a12.bcols); err != nil {
				return nil, err
			}
		}
		panelL, err := a11.bcastColOfTiles(I, I+1, a11.brows)
		if err != nil {
			return nil, err
		}
		var panelL21 map[int]tile.Tile[T]
		if a21 != nil {
			if panelL21, err = a21.bcastColOfTiles(I, 0, a21.brows); err != nil {
				return nil, err
			}
		}

		// 6. 尾部更新：本地分块 (I2,J2) 减去 L 面板与 U 面板的乘积。
		for I2 := I + 1; I2 < a11.brows; I2++ {
			for J2 := I + 1; J2 < a11.bcols; J2++ {
				if g.IsLocal(I2, J2) {
					updateLocalTile(a11, I2, J2, cutoff, minusOne, panelL[I2], panelU[J2])
				}
			}
		}
		if a12 != nil {
			for I2 := I + 1; I2 < a11.brows; I2++ {
				for J2 := 0; J2 < a12.bcols; J2++ {
					if g.IsLocal(I2, J2) {
						updateLocalTile(a12, I2, J2, cutoff, minusOne, panelL[I2], panelU12[J2])
					}
				}
			}
		}
		if a21 != nil {
			for I2 := 0; I2 < a21.brows; I2++ {
				for J2 := I + 1; J2 < a11.bcols; J2++ {
					if g.IsLocal(I2, J2) {
						updateLocalTile(a21, I2, J2, cutoff, minusOne, panelL21[I2], panelU[J2])
					}
				}
			}
		}
		if a22 != nil {
			for I2 := 0; I2 < a22.brows; I2++ {
				for J2 := 0; J2 < a22.bcols; J2++ {
					if g.IsLocal(I2, J2) {
						updateLocalTile(a22, I2, J2, cutoff, minusOne, panelL21[I2], panelU12[J2])
					}
				}
			}
		}
	}
	return piv, nil
}

// admAt 组合坐标下的可压缩性：位图覆盖则查位图，
// 否则按默认的严格非对角规则。
func admAt(adm *Admissibility, i, j int) bool {
	if adm == nil {
		return i != j
	}
	if i < adm.brows && j < adm.bcols {
		return adm.Admissible(i, j)
	}
	return i != j
}

// compressPanels 压缩分块步 I 新解出的面板分块。
// a12/a21 的分块按组合划分坐标查询位图。
func compressPanels[T numeric.Number](a11, a12, a21 *Matrix[T], adm *Admissibility, opts Options, I int) error {
	g := a11.g
	if g.IsLocalRow(I) {
		for J := I + 1; J < a11.bcols; J++ {
			if t, ok := a11.TileAt(I, J); ok && admAt(adm, I, J) {
				if nt, err := compressTile(t, opts); err != nil {
					return err
				} else if nt != nil {
					a11.setTile(I, J, nt)
				}
			}
		}
		if a12 != nil {
			for J := 0; J < a12.bcols; J++ {
				if t, ok := a12.TileAt(I, J); ok && admAt(adm, I, a11.bcols+J) {
					if nt, err := compressTile(t, opts); err != nil {
						return err
					} else if nt != nil {
						a12.setTile(I, J, nt)
					}
				}
			}
		}
	}
	if g.IsLocalCol(I) {
		for I2 := I + 1; I2 < a11.brows; I2++ {
			if t, ok := a11.TileAt(I2, I); ok && admAt(adm, I2, I) {
				if nt, err := compressTile(t, opts); err != nil {
					return err
				} else if nt != nil {
					a11.setTile(I2, I, nt)
				}
			}
		}
		if a21 != nil {
			for I2 := 0; I2 < a21.brows; I2++ {
				if t, ok := a21.TileAt(I2, I); ok && admAt(adm, a11.brows+I2, I) {
					if nt, err := compressTile(t, opts); err != nil {
						return err
					} else if nt != nil {
						a21.setTile(I2, I, nt)
					}
				}
			}
		}
	}
	return nil
}

// updateLocalTile 对本地分块执行秩感知的舒尔更新：
// dst <- dst + alpha * l * u。低秩目标先物化为稠密暂存块再累加，
// 之后保持稠密，待其成为面板分块时再参与压缩。
func updateLocalTile[T numeric.Number](m *Matrix[T], I2, J2, cutoff int, alpha T, l, u tile.Tile[T]) {
	one := numeric.One[T]()
	t, _ := m.TileAt(I2, J2)
	switch dst := t.(type) {
	case *tile.Dense[T]:
		tile.GemmTask(cutoff, numeric.NoTrans, numeric.NoTrans, alpha, l, u, one, dst.D)
	case *tile.LowRank[T]:
		scratch := tile.Materialize[T](dst)
		tile.GemmTask(cutoff, numeric.NoTrans, numeric.NoTrans, alpha, l, u, one, scratch)
		m.setTile(I2, J2, tile.NewDenseFrom(scratch))
	}
}
