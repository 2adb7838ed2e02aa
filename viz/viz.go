// Package viz 输出 BLR 矩阵的分块结构：每个分块一个矩形，
// 按属主进程着色，并标注变体与秩。只反映结构信息，
// 不属于数值契约的一部分。
package viz

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"blrmat/blr"
	"blrmat/numeric"
)

// Dump 将分块结构写为文本：每行一个分块，给出行/列区间、属主、
// 以及（本进程持有的分块）变体与秩。
func Dump[T numeric.Number](w io.Writer, m *blr.Matrix[T]) error {
	roff, coff := m.RowOffsets(), m.ColOffsets()
	for I := 0; I < m.Brows(); I++ {
		for J := 0; J < m.Bcols(); J++ {
			owner := m.Grid().OwnerRank(I, J)
			if t, ok := m.TileAt(I, J); ok {
				kind := "dense"
				if t.IsLowRank() {
					kind = fmt.Sprintf("lowrank r=%d", t.Rank())
				}
				if _, err := fmt.Fprintf(w, "tile (%d,%d) rows [%d,%d) cols [%d,%d) rank %d %s\n",
					I, J, roff[I], roff[I+1], coff[J], coff[J+1], owner, kind); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, "tile (%d,%d) rows [%d,%d) cols [%d,%d) rank %d remote\n",
				I, J, roff[I], roff[I+1], coff[J], coff[J+1], owner); err != nil {
				return err
			}
		}
	}
	return nil
}

// Plot 将分块划分渲染为着色矩形图，色相按属主进程选取。
// 任何进程都可独立绘制（属主由分布代数推得，无需通信）。
func Plot[T numeric.Number](m *blr.Matrix[T]) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "BLR tile distribution"
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row"

	roff, coff := m.RowOffsets(), m.ColOffsets()
	rows := float64(m.Rows())
	for I := 0; I < m.Brows(); I++ {
		for J := 0; J < m.Bcols(); J++ {
			owner := m.Grid().OwnerRank(I, J)
			x0, x1 := float64(coff[J]), float64(coff[J+1])
			// 行轴向下增长，翻转到绘图坐标
			y0, y1 := rows-float64(roff[I+1]), rows-float64(roff[I])
			poly, err := plotter.NewPolygon(plotter.XYs{
				{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
			})
			if err != nil {
				return nil, err
			}
			poly.Color = plotutil.Color(owner)
			p.Add(poly)
		}
	}
	return p, nil
}
