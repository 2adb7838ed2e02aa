package blr

import (
	"blrmat/numeric"
	"blrmat/tile"
	"blrmat/wire"
)

// 集合广播辅助。网格行/列子通信域内的广播保持分块变体不变：
// 稠密分块只发原始缓冲（维度由划分推得），整行/整列面板广播
// 逐块按 wire 帧编码，接收方按头部重建变体。

// bcastDenseAlongRow 将分块 (I,J) 的稠密数据在属主所在网格行内广播。
// 仅 prow == prow(I) 的进程参与（rowComm 集合操作）。
// 属主持有的分块必须为稠密变体。
func (m *Matrix[T]) bcastDenseAlongRow(I, J int) (*numeric.Dense[T], error) {
	_, rootCol := m.g.Owner(I, J)
	var payload []byte
	if m.g.Pcol() == rootCol {
		t, _ := m.TileAt(I, J)
		dt, ok := t.(*tile.Dense[T])
		if !ok {
			return nil, ErrUnsupported
		}
		payload = wire.EncodeDense(dt.D)
		m.g.Row().Bcast(payload, rootCol)
		return dt.D, nil
	}
	payload = m.g.Row().Bcast(nil, rootCol)
	return wire.DecodeDense[T](payload, m.TileRows(I), m.TileCols(J))
}

// bcastDenseAlongCol 将分块 (I,J) 的稠密数据在属主所在网格列内广播。
// 仅 pcol == pcol(J) 的进程参与（colComm 集合操作）。
func (m *Matrix[T]) bcastDenseAlongCol(I, J int) (*numeric.Dense[T], error) {
	rootRow, _ := m.g.Owner(I, J)
	var payload []byte
	if m.g.Prow() == rootRow {
		t, _ := m.TileAt(I, J)
		dt, ok := t.(*tile.Dense[T])
		if !ok {
			return nil, ErrUnsupported
		}
		payload = wire.EncodeDense(dt.D)
		m.g.Col().Bcast(payload, rootRow)
		return dt.D, nil
	}
	payload = m.g.Col().Bcast(nil, rootRow)
	return wire.DecodeDense[T](payload, m.TileRows(I), m.TileCols(J))
}

// bcastRowOfTiles 将分块行 I 中列号在 [jLo,jHi) 的分块沿网格列广播：
// 每个分块从属主网格行 prow(I) 广播到其所在网格列的全部进程。
// 返回本进程网格列覆盖的 J 到分块的映射；属主直接引用本地分块。
// 所有活动进程以相同的 I、[jLo,jHi) 调用（colComm 集合操作）。
func (m *Matrix[T]) bcastRowOfTiles(I, jLo, jHi int) (map[int]tile.Tile[T], error) {
	out := make(map[int]tile.Tile[T])
	rootRow := I % m.g.Pr()
	for J := jLo; J < jHi; J++ {
		if !m.g.IsLocalCol(J) {
			continue
		}
		if m.g.Prow() == rootRow {
			t, _ := m.TileAt(I, J)
			m.g.Col().Bcast(wire.EncodeTile(t), rootRow)
			out[J] = t
			continue
		}
		b := m.g.Col().Bcast(nil, rootRow)
		t, err := wire.DecodeTile[T](b)
		if err != nil {
			return nil, err
		}
		out[J] = t
	}
	return out, nil
}

// bcastColOfTiles 将分块列 J 中行号在 [iLo,iHi) 的分块沿网格行广播：
// 每个分块从属主网格列 pcol(J) 广播到其所在网格行的全部进程。
// 返回本进程网格行覆盖的 I 到分块的映射（rowComm 集合操作）。
func (m *Matrix[T]) bcastColOfTiles(J, iLo, iHi int) (map[int]tile.Tile[T], error) {
	out := make(map[int]tile.Tile[T])
	rootCol := J % m.g.Pc()
	for I := iLo; I < iHi; I++ {
		if !m.g.IsLocalRow(I) {
			continue
		}
		if m.g.Pcol() == rootCol {
			t, _ := m.TileAt(I, J)
			m.g.Row().Bcast(wire.EncodeTile(t), rootCol)
			out[I] = t
			continue
		}
		b := m.g.Row().Bcast(nil, rootCol)
		t, err := wire.DecodeTile[T](b)
		if err != nil {
			return nil, err
		}
		out[I] = t
	}
	return out, nil
}
