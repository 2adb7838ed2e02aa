package blr

import (
	"blrmat/numeric"
	"blrmat/tile"
	"blrmat/wire"
)

// 二级/三级运算。向量按全长在各进程复制；矩阵-矩阵运算沿用
// 分解的面板广播模式。三角操作数与右端项在缩并维上必须共享划分，
// 进程网格必须一致。

// subVec 取复制向量的一段视图（共享底层存储）。
func subVec[T numeric.Number](v *numeric.Vector[T], off, n int) *numeric.Vector[T] {
	return numeric.NewVectorFrom(v.Raw()[off : off+n])
}

// Gemv 计算 y <- alpha*op(A)*x + beta*y。x、y 为各进程复制的全长向量，
// 本地分块贡献经全局求和归约合并（集合操作，非活动进程也参与）。
func (m *Matrix[T]) Gemv(trans numeric.Trans, alpha T, x *numeric.Vector[T], beta T, y *numeric.Vector[T]) error {
	xn, yn := m.cols, m.rows
	if trans != numeric.NoTrans {
		xn, yn = m.rows, m.cols
	}
	if x.Length() != xn || y.Length() != yn {
		return ErrDimension
	}
	one := numeric.One[T]()
	acc := numeric.NewVector[T](yn)
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			t, ok := m.TileAt(I, J)
			if !ok {
				continue
			}
			if trans == numeric.NoTrans {
				t.GemvA(trans, alpha, subVec(x, m.coff[J], m.TileCols(J)), one, subVec(acc, m.roff[I], m.TileRows(I)))
			} else {
				t.GemvA(trans, alpha, subVec(x, m.roff[I], m.TileRows(I)), one, subVec(acc, m.coff[J], m.TileCols(J)))
			}
		}
	}
	total := m.g.World().AllreduceSum(numeric.ToFloat64s(acc.Raw()))
	numeric.FromFloat64s(total, acc.Raw())
	for i := 0; i < yn; i++ {
		if beta == 0 {
			y.Set(i, acc.At(i))
		} else {
			y.Set(i, beta*y.At(i)+acc.At(i))
		}
	}
	return nil
}

// Trsv 就地求解 op(A)*x = b，b 为各进程复制的全长向量，解覆盖 b。
// 按分块行做前代/回代：对角段由属主求解后全局广播，
// 剩余段的更新贡献经求和归约合并。目前支持 trans == NoTrans；
// 转置求解的通信模式需要网格转置，不在支持范围内。
func (m *Matrix[T]) Trsv(uplo numeric.Uplo, trans numeric.Trans, diag numeric.Diag, b *numeric.Vector[T]) error {
	if trans != numeric.NoTrans {
		return ErrUnsupported
	}
	if !samePartition(m.roff, m.coff) || b.Length() != m.rows {
		return ErrDimension
	}
	g := m.g
	world := g.World()
	one := numeric.One[T]()

	order := make([]int, m.brows)
	for i := range order {
		if uplo == numeric.Lower {
			order[i] = i
		} else {
			order[i] = m.brows - 1 - i
		}
	}
	for _, I := range order {
		nb := m.TileRows(I)
		ownerRow, ownerCol := g.Owner(I, I)
		seg := subVec(b, m.roff[I], nb)

		// 对角段求解与全局广播
		var payload []byte
		if g.Active() && g.Prow() == ownerRow && g.Pcol() == ownerCol {
			t, _ := m.TileAt(I, I)
			dt, ok := t.(*tile.Dense[T])
			if !ok {
				return ErrUnsupported
			}
			segD := numeric.NewDenseFrom(nb, 1, nb, seg.Raw())
			numeric.Trsm(numeric.Left, uplo, numeric.NoTrans, diag, one, dt.D, segD)
			payload = wire.EncodeScalars(seg.Raw())
			world.Bcast(payload, g.RankOf(ownerRow, ownerCol))
		} else {
			payload = world.Bcast(nil, g.RankOf(ownerRow, ownerCol))
			vals, err := wire.DecodeScalars[T](payload, nb)
			if err != nil {
				return err
			}
			copy(seg.Raw(), vals)
		}

		// 剩余段更新：acc_{I2} += T_{I2,I} * x_I，求和归约后 b -= acc
		acc := numeric.NewVector[T](m.rows)
		if uplo == numeric.Lower {
			for I2 := I + 1; I2 < m.brows; I2++ {
				if t, ok := m.TileAt(I2, I); ok {
					t.GemvA(numeric.NoTrans, one, seg, one, subVec(acc, m.roff[I2], m.TileRows(I2)))
				}
			}
		} else {
			for I2 := 0; I2 < I; I2++ {
				if t, ok := m.TileAt(I2, I); ok {
					t.GemvA(numeric.NoTrans, one, seg, one, subVec(acc, m.roff[I2], m.TileRows(I2)))
				}
			}
		}
		total := world.AllreduceSum(numeric.ToFloat64s(acc.Raw()))
		numeric.FromFloat64s(total, acc.Raw())
		for i := 0; i < m.rows; i++ {
			b.Set(i, b.At(i)-acc.At(i))
		}
	}
	return nil
}

// scaleLocal 本地分块整体乘以 alpha；alpha 为 0 时重置为全零稠密块。
func scaleLocal[T numeric.Number](m *Matrix[T], alpha T) {
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			t, ok := m.TileAt(I, J)
			if !ok {
				continue
			}
			if alpha == 0 {
				m.setTile(I, J, tile.NewDense[T](m.TileRows(I), m.TileCols(J)))
				continue
			}
			switch x := t.(type) {
			case *tile.Dense[T]:
				x.D.Scale(alpha)
			case *tile.LowRank[T]:
				x.U.Scale(alpha)
			}
		}
	}
}

// Trsm 就地求解 op(A)*X = alpha*B（side==Left）或 X*op(A) = alpha*B
// （side==Right），三角 BLR 矩阵 A 与 BLR 右端项 B 共享网格，
// 且在缩并维上共享划分；X 覆盖 B。支持 trans == NoTrans。
func Trsm[T numeric.Number](side numeric.Side, uplo numeric.Uplo, trans numeric.Trans, diag numeric.Diag, alpha T, a, b *Matrix[T]) error {
	if trans != numeric.NoTrans {
		return ErrUnsupported
	}
	if a.g != b.g {
		return ErrGridMismatch
	}
	if !samePartition(a.roff, a.coff) {
		return ErrDimension
	}
	if side == numeric.Left && !samePartition(a.coff, b.roff) {
		return ErrDimension
	}
	if side == numeric.Right && !samePartition(a.roff, b.coff) {
		return ErrDimension
	}
	g := a.g
	one := numeric.One[T]()
	minusOne := numeric.MinusOne[T]()
	if alpha != one {
		scaleLocal(b, alpha)
	}
	if !g.Active() {
		return nil
	}

	if side == numeric.Left {
		forward := uplo == numeric.Lower
		for s := 0; s < a.brows; s++ {
			I := s
			if !forward {
				I = a.brows - 1 - s
			}
			ownerRow := I % g.Pr()
			if g.Prow() == ownerRow {
				dII, err := a.bcastDenseAlongRow(I, I)
				if err != nil {
					return err
				}
				for J := 0; J < b.bcols; J++ {
					if t, ok := b.TileAt(I, J); ok {
						t.TrsmB(numeric.Left, uplo, numeric.NoTrans, diag, one, dII)
					}
				}
			}
			panelB, err := b.bcastRowOfTiles(I, 0, b.bcols)
			if err != nil {
				return err
			}
			lo, hi := I+1, a.brows
			if !forward {
				lo, hi = 0, I
			}
			panelA, err := a.bcastColOfTiles(I, lo, hi)
			if err != nil {
				return err
			}
			for I2 := lo; I2 < hi; I2++ {
				for J := 0; J < b.bcols; J++ {
					if g.IsLocal(I2, J) {
						updateLocalTile(b, I2, J, 0, minusOne, panelA[I2], panelB[J])
					}
				}
			}
		}
		return nil
	}

	// side == Right：X*op(A) = B，按 A 的分块列推进
	forward := uplo == numeric.Upper
	for s := 0; s < a.bcols; s++ {
		J := s
		if !forward {
			J = a.bcols - 1 - s
		}
		ownerCol := J % g.Pc()
		if g.Pcol() == ownerCol {
			dJJ, err := a.bcastDenseAlongCol(J, J)
			if err != nil {
				return err
			}
			for I := 0; I < b.brows; I++ {
				if t, ok := b.TileAt(I, J); ok {
					t.TrsmB(numeric.Right, uplo, numeric.NoTrans, diag, one, dJJ)
				}
			}
		}
		panelB, err := b.bcastColOfTiles(J, 0, b.brows)
		if err != nil {
			return err
		}
		lo, hi := J+1, a.bcols
		if !forward {
			lo, hi = 0, J
		}
		panelA, err := a.bcastRowOfTiles(J, lo, hi)
		if err != nil {
			return err
		}
		for J2 := lo; J2 < hi; J2++ {
			for I := 0; I < b.brows; I++ {
				if g.IsLocal(I, J2) {
					updateLocalTile(b, I, J2, 0, minusOne, panelB[I], panelA[J2])
				}
			}
		}
	}
	return nil
}

// Gemm 计算 C <- alpha*A*B + beta*C，三个 BLR 矩阵共享网格，
// 且 A 的列划分等于 B 的行划分、C 的划分与乘积匹配。
// 按缩并分块维逐步广播 A 的分块列与 B 的分块行（与分解的面板
// 广播同一模式），本地累加。支持 trans == NoTrans 的组合。
func Gemm[T numeric.Number](transA, transB numeric.Trans, alpha T, a, b *Matrix[T], beta T, c *Matrix[T]) error {
	if transA != numeric.NoTrans || transB != numeric.NoTrans {
		return ErrUnsupported
	}
	if a.g != b.g || a.g != c.g {
		return ErrGridMismatch
	}
	if !samePartition(a.coff, b.roff) || !samePartition(c.roff, a.roff) || !samePartition(c.coff, b.coff) {
		return ErrDimension
	}
	g := a.g
	scaleLocal(c, beta)
	if !g.Active() {
		return nil
	}
	for k := 0; k < a.bcols; k++ {
		panelA, err := a.bcastColOfTiles(k, 0, a.brows)
		if err != nil {
			return err
		}
		panelB, err := b.bcastRowOfTiles(k, 0, b.bcols)
		if err != nil {
			return err
		}
		for J := 0; J < c.bcols; J++ {
			for I := 0; I < c.brows; I++ {
				if g.IsLocal(I, J) {
					updateLocalTile(c, I, J, 0, alpha, panelA[I], panelB[J])
				}
			}
		}
	}
	return nil
}
