package blr

import (
	"blrmat/grid"
	"blrmat/numeric"
	"blrmat/tile"
	"blrmat/wire"
)

// BlockCyclic 二维块循环分布的稠密矩阵（ScaLAPACK 风格，
// 源进程取 0）：元素 (i,j) 属于块 (i/mb, j/nb)，块属主为
// (bi mod Pr, bj mod Pc)，本地缓冲按本地块拼接、列主序存放。
// 作为 BLR 矩阵导入/导出的外部稠密载体，缓冲被借用而非拥有。
type BlockCyclic[T numeric.Number] struct {
	g      *grid.Grid
	m, n   int
	mb, nb int
	local  *numeric.Dense[T]
}

// numroc 计算块循环分布下某进程持有的行/列数。
func numroc(n, nb, iproc, nprocs int) int {
	nblocks := n / nb
	num := (nblocks / nprocs) * nb
	extra := nblocks % nprocs
	switch {
	case iproc < extra:
		num += nb
	case iproc == extra:
		num += n % nb
	}
	return num
}

// NewBlockCyclic 在网格 g 上创建 m×n、块尺寸 mb×nb 的块循环矩阵，
// 本地缓冲清零。非活动进程持有空缓冲。
func NewBlockCyclic[T numeric.Number](g *grid.Grid, m, n, mb, nb int) (*BlockCyclic[T], error) {
	if g == nil || m < 0 || n < 0 || mb <= 0 || nb <= 0 {
		return nil, ErrDimension
	}
	bc := &BlockCyclic[T]{g: g, m: m, n: n, mb: mb, nb: nb}
	if g.Active() {
		lm := numroc(m, mb, g.Prow(), g.Pr())
		ln := numroc(n, nb, g.Pcol(), g.Pc())
		bc.local = numeric.NewDense[T](lm, ln)
	} else {
		bc.local = numeric.NewDense[T](0, 0)
	}
	return bc, nil
}

// Rows 全局行数。
func (bc *BlockCyclic[T]) Rows() int { return bc.m }

// Cols 全局列数。
func (bc *BlockCyclic[T]) Cols() int { return bc.n }

// MB 行块尺寸。
func (bc *BlockCyclic[T]) MB() int { return bc.mb }

// NB 列块尺寸。
func (bc *BlockCyclic[T]) NB() int { return bc.nb }

// Grid 所在进程网格。
func (bc *BlockCyclic[T]) Grid() *grid.Grid { return bc.g }

// Local 本地缓冲。
func (bc *BlockCyclic[T]) Local() *numeric.Dense[T] { return bc.local }

// OwnerOf 元素 (i,j) 的属主网格坐标。
func (bc *BlockCyclic[T]) OwnerOf(i, j int) (prow, pcol int) {
	return (i / bc.mb) % bc.g.Pr(), (j / bc.nb) % bc.g.Pc()
}

// LocalIndex 元素 (i,j) 在属主本地缓冲中的下标（调用方保证本地）。
func (bc *BlockCyclic[T]) LocalIndex(i, j int) (li, lj int) {
	li = (i/bc.mb/bc.g.Pr())*bc.mb + i%bc.mb
	lj = (j/bc.nb/bc.g.Pc())*bc.nb + j%bc.nb
	return li, lj
}

// Fill 以元素函数填充本地持有的全部元素。
func (bc *BlockCyclic[T]) Fill(f func(i, j int) T) {
	if !bc.g.Active() {
		return
	}
	for j := 0; j < bc.n; j++ {
		for i := 0; i < bc.m; i++ {
			pr, pc := bc.OwnerOf(i, j)
			if pr == bc.g.Prow() && pc == bc.g.Pcol() {
				li, lj := bc.LocalIndex(i, j)
				bc.local.Set(li, lj, f(i, j))
			}
		}
	}
}

// rect 重分布的一个矩形片段：BLR 分块 (I,J) 与循环块 (bi,bj) 的交。
type rect struct {
	I, J         int
	r0, r1       int // 全局行区间 [r0,r1)
	c0, c1       int // 全局列区间 [c0,c1)
	src, dst     int // 世界序号
}

// rects 枚举两种分布的全部矩形交，两侧以相同顺序枚举，
// 从而每对 (src,dst) 的消息序号在收发两侧一致。
func (m *Matrix[T]) rects(bc *BlockCyclic[T]) []rect {
	g := m.g
	var out []rect
	for J := 0; J < m.bcols; J++ {
		for I := 0; I < m.brows; I++ {
			dpr, dpc := g.Owner(I, J)
			dst := g.RankOf(dpr, dpc)
			r0t, r1t := m.roff[I], m.roff[I+1]
			c0t, c1t := m.coff[J], m.coff[J+1]
			for bi := r0t / bc.mb; bi*bc.mb < r1t; bi++ {
				for bj := c0t / bc.nb; bj*bc.nb < c1t; bj++ {
					r0 := maxInt(r0t, bi*bc.mb)
					r1 := minInt(r1t, (bi+1)*bc.mb)
					c0 := maxInt(c0t, bj*bc.nb)
					c1 := minInt(c1t, (bj+1)*bc.nb)
					if r0 >= r1 || c0 >= c1 {
						continue
					}
					spr, spc := bc.OwnerOf(r0, c0)
					src := g.RankOf(spr, spc)
					out = append(out, rect{I: I, J: J, r0: r0, r1: r1, c0: c0, c1: c1, src: src, dst: dst})
				}
			}
		}
	}
	return out
}

// extractCyclic 从块循环本地缓冲取出矩形片段。
func (bc *BlockCyclic[T]) extractCyclic(r rect) []T {
	out := make([]T, 0, (r.r1-r.r0)*(r.c1-r.c0))
	for j := r.c0; j < r.c1; j++ {
		for i := r.r0; i < r.r1; i++ {
			li, lj := bc.LocalIndex(i, j)
			out = append(out, bc.local.At(li, lj))
		}
	}
	return out
}

// storeCyclic 将矩形片段写回块循环本地缓冲。
func (bc *BlockCyclic[T]) storeCyclic(r rect, vals []T) {
	k := 0
	for j := r.c0; j < r.c1; j++ {
		for i := r.r0; i < r.r1; i++ {
			li, lj := bc.LocalIndex(i, j)
			bc.local.Set(li, lj, vals[k])
			k++
		}
	}
}

// FromBlockCyclic 将块循环稠密矩阵重分布为 BLR 稠密分块
// （集合操作）。两种分布的属主按矩形交逐段配对收发；
// 发送全部先行，接收按相同的全局枚举顺序配对。
func FromBlockCyclic[T numeric.Number](bc *BlockCyclic[T], g *grid.Grid, rt, ct []int) (*Matrix[T], error) {
	if !grid.Same(bc.g, g) {
		return nil, ErrGridMismatch
	}
	m, err := New[T](g, rt, ct)
	if err != nil {
		return nil, err
	}
	if m.rows != bc.m || m.cols != bc.n {
		return nil, ErrDimension
	}
	world := g.World()
	me := world.Rank()
	rs := m.rects(bc)

	// 发送阶段（含本地直拷）
	tags := map[int]int{}
	for _, r := range rs {
		tag := tags[r.src*world.Size()+r.dst]
		tags[r.src*world.Size()+r.dst]++
		if r.src != me {
			continue
		}
		vals := bc.extractCyclic(r)
		if r.dst == me {
			m.storeTileRect(r, vals)
		} else {
			world.Send(wire.EncodeScalars(vals), r.dst, tag)
		}
	}
	// 接收阶段
	tags = map[int]int{}
	for _, r := range rs {
		tag := tags[r.src*world.Size()+r.dst]
		tags[r.src*world.Size()+r.dst]++
		if r.dst != me || r.src == me {
			continue
		}
		b := world.Recv(r.src, tag)
		vals, err := wire.DecodeScalars[T](b, (r.r1-r.r0)*(r.c1-r.c0))
		if err != nil {
			return nil, err
		}
		m.storeTileRect(r, vals)
	}
	return m, nil
}

// storeTileRect 将矩形片段写入本地分块（分块必须为稠密变体）。
func (m *Matrix[T]) storeTileRect(r rect, vals []T) {
	t, _ := m.TileAt(r.I, r.J)
	dt := t.(*tile.Dense[T])
	k := 0
	for j := r.c0; j < r.c1; j++ {
		for i := r.r0; i < r.r1; i++ {
			dt.D.Set(i-m.roff[r.I], j-m.coff[r.J], vals[k])
			k++
		}
	}
}

// loadTileRect 从本地分块读出矩形片段（低秩分块经物化副本）。
func (m *Matrix[T]) loadTileRect(r rect, mat map[int]*numeric.Dense[T]) []T {
	idx := m.localIndex(r.I, r.J)
	d, ok := mat[idx]
	if !ok {
		t, _ := m.TileAt(r.I, r.J)
		d = tile.Materialize(t)
		mat[idx] = d
	}
	out := make([]T, 0, (r.r1-r.r0)*(r.c1-r.c0))
	for j := r.c0; j < r.c1; j++ {
		for i := r.r0; i < r.r1; i++ {
			out = append(out, d.At(i-m.roff[r.I], j-m.coff[r.J]))
		}
	}
	return out
}

// ToBlockCyclic 将 BLR 矩阵（低秩分块先物化）重分布为块循环稠密
// 矩阵（集合操作）。与 FromBlockCyclic 互为逆操作：未压缩矩阵
// 往返后与原矩阵逐位一致。
func (m *Matrix[T]) ToBlockCyclic(mb, nb int) (*BlockCyclic[T], error) {
	g := m.g
	bc, err := NewBlockCyclic[T](g, m.rows, m.cols, mb, nb)
	if err != nil {
		return nil, err
	}
	world := g.World()
	me := world.Rank()
	rs := m.rects(bc)
	materialized := map[int]*numeric.Dense[T]{}

	// 导出方向上 BLR 分块属主是源、循环块属主是目的
	tags := map[int]int{}
	for _, r := range rs {
		tag := tags[r.dst*world.Size()+r.src]
		tags[r.dst*world.Size()+r.src]++
		if r.dst != me {
			continue
		}
		vals := m.loadTileRect(r, materialized)
		if r.src == me {
			bc.storeCyclic(r, vals)
		} else {
			world.Send(wire.EncodeScalars(vals), r.src, tag)
		}
	}
	tags = map[int]int{}
	for _, r := range rs {
		tag := tags[r.dst*world.Size()+r.src]
		tags[r.dst*world.Size()+r.src]++
		if r.src != me || r.dst == me {
			continue
		}
		b := world.Recv(r.dst, tag)
		vals, err := wire.DecodeScalars[T](b, (r.r1-r.r0)*(r.c1-r.c0))
		if err != nil {
			return nil, err
		}
		bc.storeCyclic(r, vals)
	}
	return bc, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
