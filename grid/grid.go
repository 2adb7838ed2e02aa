// Package grid 实现二维进程网格：从通信域中取出 Pr×Pc 个活动进程，
// 建立行/列子通信域，并提供全局分块坐标 (I,J) 到属主进程及
// 本地分块坐标的映射代数。
package grid

import (
	"errors"
	"fmt"

	"blrmat/comm"
)

// Grid Pr×Pc 的二维进程网格。序号 [0, Pr*Pc) 为活动进程，
// 其余进程不参与网格内工作，仅参与全局广播。
// 活动进程满足 prow = rank mod Pr，pcol = rank div Pr。
type Grid struct {
	world comm.Communicator
	pr    int
	pc    int
	prow  int
	pcol  int
	row   comm.Communicator // 同一网格行（prow 相同）的子通信域，按 pcol 排序
	col   comm.Communicator // 同一网格列（pcol 相同）的子通信域，按 prow 排序
}

// New 在通信域 c 上建立进程网格。p 为希望使用的进程数，
// 传 0 或负值使用 c.Size()。Pr 取不超过 sqrt(p) 的最大因子，
// Pc = p/Pr，保证 Pr <= Pc。
func New(c comm.Communicator, p int) (*Grid, error) {
	if c == nil {
		return nil, errors.New("grid: nil communicator")
	}
	if p <= 0 || p > c.Size() {
		p = c.Size()
	}
	pr, pc := Shape(p)
	g := &Grid{world: c, pr: pr, pc: pc}
	rank := c.Rank()
	if rank < pr*pc {
		g.prow = rank % pr
		g.pcol = rank / pr
		g.row = c.Split(g.prow, g.pcol)
		g.col = c.Split(g.pcol, g.prow)
	} else {
		g.prow, g.pcol = -1, -1
		// 非活动进程也必须参与两次集合切分
		c.Split(-1, 0)
		c.Split(-1, 0)
	}
	return g, nil
}

// Shape 将 p 分解为 Pr×Pc：Pr 为不超过 sqrt(p) 的最大因子。
func Shape(p int) (pr, pc int) {
	pr = 1
	for d := 1; d*d <= p; d++ {
		if p%d == 0 {
			pr = d
		}
	}
	return pr, p / pr
}

// Pr 网格行数。
func (g *Grid) Pr() int { return g.pr }

// Pc 网格列数。
func (g *Grid) Pc() int { return g.pc }

// Prow 本进程所在网格行（非活动进程为 -1）。
func (g *Grid) Prow() int { return g.prow }

// Pcol 本进程所在网格列（非活动进程为 -1）。
func (g *Grid) Pcol() int { return g.pcol }

// Active 本进程是否为活动进程。
func (g *Grid) Active() bool { return g.prow >= 0 }

// World 网格所在的全局通信域。
func (g *Grid) World() comm.Communicator { return g.world }

// Row 行子通信域（同一 prow 的进程，组内序号即 pcol）。
func (g *Grid) Row() comm.Communicator { return g.row }

// Col 列子通信域（同一 pcol 的进程，组内序号即 prow）。
func (g *Grid) Col() comm.Communicator { return g.col }

// Owner 分块 (I,J) 的属主网格坐标：(I mod Pr, J mod Pc)。
func (g *Grid) Owner(I, J int) (prow, pcol int) {
	return I % g.pr, J % g.pc
}

// RankOf 网格坐标 (prow,pcol) 对应的全局序号。
func (g *Grid) RankOf(prow, pcol int) int {
	if prow < 0 || prow >= g.pr || pcol < 0 || pcol >= g.pc {
		panic(fmt.Sprintf("grid.RankOf: (%d,%d) out of %dx%d grid", prow, pcol, g.pr, g.pc))
	}
	return pcol*g.pr + prow
}

// OwnerRank 分块 (I,J) 属主的全局序号。
func (g *Grid) OwnerRank(I, J int) int {
	pr, pc := g.Owner(I, J)
	return g.RankOf(pr, pc)
}

// IsLocalRow 分块行 I 是否落在本进程所在网格行。
func (g *Grid) IsLocalRow(I int) bool { return g.Active() && I%g.pr == g.prow }

// IsLocalCol 分块列 J 是否落在本进程所在网格列。
func (g *Grid) IsLocalCol(J int) bool { return g.Active() && J%g.pc == g.pcol }

// IsLocal 分块 (I,J) 是否归本进程所有。
func (g *Grid) IsLocal(I, J int) bool { return g.IsLocalRow(I) && g.IsLocalCol(J) }

// Same 判断两个网格是否兼容（同一世界通信域且形状一致）。
func Same(a, b *Grid) bool {
	return a == b || (a != nil && b != nil && a.world == b.world && a.pr == b.pr && a.pc == b.pc)
}
