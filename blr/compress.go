package blr

import (
	"blrmat/lowrank"
	"blrmat/numeric"
	"blrmat/tile"
)

// Compress 对本进程持有的、可压缩的非对角分块尝试低秩压缩。
// adm 为 nil 时按默认规则（仅严格非对角分块）。
// 压缩产物仅当 r*(m+n) < m*n（即确实省内存）时才替换原稠密分块。
func (m *Matrix[T]) Compress(adm *Admissibility, opts Options) error {
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			if I == J || !adm.Admissible(I, J) {
				continue
			}
			t, ok := m.TileAt(I, J)
			if !ok {
				continue
			}
			if nt, err := compressTile(t, opts); err != nil {
				return err
			} else if nt != nil {
				m.setTile(I, J, nt)
			}
		}
	}
	return nil
}

// compressTile 尝试压缩单个分块。返回新的低秩分块；
// 压缩不合算或分块已是低秩时返回 nil 表示保持原样。
func compressTile[T numeric.Number](t tile.Tile[T], opts Options) (tile.Tile[T], error) {
	dt, ok := t.(*tile.Dense[T])
	if !ok {
		return nil, nil
	}
	if !dt.D.AllFinite() {
		return nil, ErrNotFinite
	}
	lrOpts := opts.lowrankOptions()
	var u, v *numeric.Dense[T]
	var rank int
	switch opts.LowRankAlgorithm {
	case lowrank.AlgorithmACA:
		u, v, rank = lowrank.ACA(dt.Rows(), dt.Cols(), denseOracle[T]{dt.D}, lrOpts)
	default:
		u, v, rank = lowrank.RRQRWithOptions(dt.D, lrOpts)
	}
	m, n := dt.Rows(), dt.Cols()
	// 零块压缩为秩 0 的低秩分块
	if rank*(m+n) < m*n {
		return tile.NewLowRank(u, v), nil
	}
	return nil, nil
}

// denseOracle 让 ACA 以整行/整列方式采样已物化的稠密块。
type denseOracle[T numeric.Number] struct {
	d *numeric.Dense[T]
}

func (o denseOracle[T]) Row(i int) []T {
	out := make([]T, o.d.Cols())
	for j := range out {
		out[j] = o.d.At(i, j)
	}
	return out
}

func (o denseOracle[T]) Col(j int) []T {
	out := make([]T, o.d.Rows())
	copy(out, o.d.Col(j))
	return out
}
