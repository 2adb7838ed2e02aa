// Package blr 实现分布式块低秩（BLR）矩阵引擎：按块划分的稠密矩阵，
// 非对角块可压缩为低秩形式，分块按二维块循环方式分布到进程网格，
// 支持填充、压缩、带行主元的 LU 分解、2×2 部分分解、三角求解与
// 矩阵乘法，以及与二维块循环稠密分布的互转。
package blr

import (
	"math"

	"blrmat/grid"
	"blrmat/numeric"
	"blrmat/tile"
)

// Matrix 分布式 BLR 矩阵。
// 行划分 roff[0..brows]、列划分 coff[0..bcols] 单调递增，
// 分块 (I,J) 跨行 [roff[I],roff[I+1])、列 [coff[J],coff[J+1))，
// 属主为网格坐标 (I mod Pr, J mod Pc)。本地分块仓库按本地坐标
// (I div Pr, J div Pc) 列主序存放。矩阵独占其分块；网格仅被引用。
type Matrix[T numeric.Number] struct {
	g          *grid.Grid
	rows, cols int
	brows      int
	bcols      int
	roff, coff []int

	lbrows, lbcols int
	lrows, lcols   int
	// 本地标量行/列索引到分块行/列、块内偏移、全局行/列的映射
	rl2t, rl2l, rl2g []int
	cl2t, cl2l, cl2g []int

	tiles []tile.Tile[T]
}

// New 在网格 g 上按分块尺寸序列 rt、ct 创建全零 BLR 矩阵。
// rt[i] 是第 i 个分块行的行数，ct 同理。
func New[T numeric.Number](g *grid.Grid, rt, ct []int) (*Matrix[T], error) {
	if g == nil || len(rt) == 0 || len(ct) == 0 {
		return nil, ErrDimension
	}
	m := &Matrix[T]{g: g, brows: len(rt), bcols: len(ct)}
	m.roff = offsets(rt)
	m.coff = offsets(ct)
	m.rows = m.roff[m.brows]
	m.cols = m.coff[m.bcols]
	m.buildLocal()
	return m, nil
}

func offsets(sizes []int) []int {
	off := make([]int, len(sizes)+1)
	for i, s := range sizes {
		if s <= 0 {
			panic("blr: tile sizes must be positive")
		}
		off[i+1] = off[i] + s
	}
	return off
}

// buildLocal 预计算本进程的本地分块仓库与本地/全局索引映射。
func (m *Matrix[T]) buildLocal() {
	g := m.g
	if !g.Active() {
		return
	}
	for I := 0; I < m.brows; I++ {
		if g.IsLocalRow(I) {
			m.lbrows++
			for r := m.roff[I]; r < m.roff[I+1]; r++ {
				m.rl2t = append(m.rl2t, I)
				m.rl2l = append(m.rl2l, r-m.roff[I])
				m.rl2g = append(m.rl2g, r)
			}
		}
	}
	for J := 0; J < m.bcols; J++ {
		if g.IsLocalCol(J) {
			m.lbcols++
			for c := m.coff[J]; c < m.coff[J+1]; c++ {
				m.cl2t = append(m.cl2t, J)
				m.cl2l = append(m.cl2l, c-m.coff[J])
				m.cl2g = append(m.cl2g, c)
			}
		}
	}
	m.lrows = len(m.rl2g)
	m.lcols = len(m.cl2g)
	m.tiles = make([]tile.Tile[T], m.lbrows*m.lbcols)
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			if g.IsLocal(I, J) {
				m.tiles[m.localIndex(I, J)] = tile.NewDense[T](m.TileRows(I), m.TileCols(J))
			}
		}
	}
}

// localIndex 全局分块坐标到本地仓库下标（调用方保证本地）。
func (m *Matrix[T]) localIndex(I, J int) int {
	return (J/m.g.Pc())*m.lbrows + I/m.g.Pr()
}

// Rows 全局行数。
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols 全局列数。
func (m *Matrix[T]) Cols() int { return m.cols }

// Brows 分块行数。
func (m *Matrix[T]) Brows() int { return m.brows }

// Bcols 分块列数。
func (m *Matrix[T]) Bcols() int { return m.bcols }

// RowOffsets 行划分偏移序列（长度 brows+1）。
func (m *Matrix[T]) RowOffsets() []int { return m.roff }

// ColOffsets 列划分偏移序列（长度 bcols+1）。
func (m *Matrix[T]) ColOffsets() []int { return m.coff }

// TileRows 分块行 I 的行数。
func (m *Matrix[T]) TileRows(I int) int { return m.roff[I+1] - m.roff[I] }

// TileCols 分块列 J 的列数。
func (m *Matrix[T]) TileCols(J int) int { return m.coff[J+1] - m.coff[J] }

// Grid 所在进程网格。
func (m *Matrix[T]) Grid() *grid.Grid { return m.g }

// LocalRows 本进程持有的标量行数。
func (m *Matrix[T]) LocalRows() int { return m.lrows }

// LocalCols 本进程持有的标量列数。
func (m *Matrix[T]) LocalCols() int { return m.lcols }

// TileAt 返回本地分块 (I,J)；非本地返回 (nil, false)。
func (m *Matrix[T]) TileAt(I, J int) (tile.Tile[T], bool) {
	if !m.g.IsLocal(I, J) {
		return nil, false
	}
	return m.tiles[m.localIndex(I, J)], true
}

// setTile 替换本地分块（压缩或更新物化时使用）。
func (m *Matrix[T]) setTile(I, J int, t tile.Tile[T]) {
	if t.Rows() != m.TileRows(I) || t.Cols() != m.TileCols(J) {
		panic("blr: tile dimensions do not match partition")
	}
	m.tiles[m.localIndex(I, J)] = t
}

// Fill 以元素函数 f(i,j) 填充本进程持有的全部分块（置为稠密变体）。
func (m *Matrix[T]) Fill(f func(i, j int) T) {
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			if !m.g.IsLocal(I, J) {
				continue
			}
			d := numeric.NewDense[T](m.TileRows(I), m.TileCols(J))
			for j := 0; j < d.Cols(); j++ {
				gj := m.coff[J] + j
				for i := 0; i < d.Rows(); i++ {
					d.Set(i, j, f(m.roff[I]+i, gj))
				}
			}
			m.setTile(I, J, tile.NewDenseFrom(d))
		}
	}
}

// Laswp 将分解产出的全局行排列应用到整个矩阵：每个分块行的
// 子排列在块内闭合（主元选择被限制在块行内），逐块行应用。
// fwd 为 false 应用逆排列，Laswp(piv,true) 后接 Laswp(piv,false)
// 为恒等变换。
func (m *Matrix[T]) Laswp(piv []int, fwd bool) error {
	if len(piv) != m.rows {
		return ErrDimension
	}
	for I := 0; I < m.brows; I++ {
		sub := make([]int, m.TileRows(I))
		for k := range sub {
			p := piv[m.roff[I]+k] - m.roff[I]
			if p < 0 || p >= len(sub) {
				return ErrDimension
			}
			sub[k] = p
		}
		for J := 0; J < m.bcols; J++ {
			if t, ok := m.TileAt(I, J); ok {
				t.Laswp(sub, fwd)
			}
		}
	}
	return nil
}

// Memory 全矩阵的存储标量数（所有进程求和）。
func (m *Matrix[T]) Memory() int {
	local := 0
	for _, t := range m.tiles {
		if t != nil {
			local += t.Memory()
		}
	}
	sum := m.g.World().AllreduceSum([]float64{float64(local)})
	return int(sum[0])
}

// Nonzeros 全矩阵的非零计数（所有进程求和）。
func (m *Matrix[T]) Nonzeros() int {
	local := 0
	for _, t := range m.tiles {
		if t != nil {
			local += t.Nonzeros()
		}
	}
	sum := m.g.World().AllreduceSum([]float64{float64(local)})
	return int(sum[0])
}

// Norm 全矩阵的 Frobenius 范数（集合操作）。
func (m *Matrix[T]) Norm() float64 {
	var local float64
	for _, t := range m.tiles {
		if t == nil {
			continue
		}
		d := tile.Materialize(t)
		n := d.Norm()
		local += n * n
	}
	sum := m.g.World().AllreduceSum([]float64{local})
	return math.Sqrt(sum[0])
}

// ToDenseReplicated 将整个矩阵物化为各进程都持有的稠密矩阵。
// 各进程的本地分块支撑互不相交，直接对展开缓冲做求和归约即可。
// 仅用于测试与小规模诊断（集合操作）。
func (m *Matrix[T]) ToDenseReplicated() *numeric.Dense[T] {
	out := numeric.NewDense[T](m.rows, m.cols)
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			t, ok := m.TileAt(I, J)
			if !ok {
				continue
			}
			d := tile.Materialize(t)
			for j := 0; j < d.Cols(); j++ {
				for i := 0; i < d.Rows(); i++ {
					out.Set(m.roff[I]+i, m.coff[J]+j, d.At(i, j))
				}
			}
		}
	}
	flat := numeric.ToFloat64s(out.RawData())
	total := m.g.World().AllreduceSum(flat)
	numeric.FromFloat64s(total, out.RawData())
	return out
}

// samePartition 判断两个偏移序列是否一致。
func samePartition(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
