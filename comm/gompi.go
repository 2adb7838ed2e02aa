//go:build cgo

package comm

import (
	"sort"

	mpi "github.com/sbromberger/gompi"
)

// GoMPI 将 gompi 的通信器适配为 Communicator，供挂接真实 MPI
// 运行时的调用方使用。调用方负责 mpi.Start/mpi.Stop 的生命周期。
type GoMPI struct {
	c *mpi.Communicator
}

// NewGoMPIWorld 包装 MPI_COMM_WORLD。
func NewGoMPIWorld() *GoMPI {
	return &GoMPI{c: mpi.NewCommunicator(nil)}
}

// NewGoMPI 包装既有的 gompi 通信器。
func NewGoMPI(c *mpi.Communicator) *GoMPI {
	return &GoMPI{c: c}
}

// Rank 通信器内序号。
func (g *GoMPI) Rank() int { return g.c.Rank() }

// Size 通信器大小。
func (g *GoMPI) Size() int { return g.c.Size() }

// Send 发送字节消息。
func (g *GoMPI) Send(b []byte, dst, tag int) {
	g.c.SendBytes(b, dst, tag)
}

// Recv 阻塞接收字节消息。
func (g *GoMPI) Recv(src, tag int) []byte {
	b, _ := g.c.RecvBytes(src, tag)
	return b
}

// gompi 不提供字节广播原语，以根进程逐个发送实现；
// BLR 的广播载荷是单个分块，消息数为组大小的线性量。
const (
	gompiBcastTag  = 1 << 20
	gompiGatherTag = 1<<20 + 1
	gompiResultTag = 1<<20 + 2
)

// Bcast 以 root 为根广播，语义与 Local.Bcast 一致。
func (g *GoMPI) Bcast(b []byte, root int) []byte {
	if g.Rank() == root {
		for r := 0; r < g.Size(); r++ {
			if r != root {
				g.c.SendBytes(b, r, gompiBcastTag)
			}
		}
		return b
	}
	out, _ := g.c.RecvBytes(root, gompiBcastTag)
	return out
}

// AllreduceSum 逐元素求和归约，所有成员得到相同结果。
func (g *GoMPI) AllreduceSum(vals []float64) []float64 {
	if g.Rank() != 0 {
		g.c.SendFloat64s(vals, 0, gompiGatherTag)
		out, _ := g.c.RecvFloat64s(0, gompiResultTag)
		return out
	}
	sum := make([]float64, len(vals))
	copy(sum, vals)
	for r := 1; r < g.Size(); r++ {
		part, _ := g.c.RecvFloat64s(r, gompiGatherTag)
		for i := range sum {
			sum[i] += part[i]
		}
	}
	for r := 1; r < g.Size(); r++ {
		g.c.SendFloat64s(sum, r, gompiResultTag)
	}
	return sum
}

// Split 在父通信器上收集 (color, key)，成员一致地推导各自组的
// 世界序号列表，再由 gompi 组建子通信器。color 为负返回 nil。
func (g *GoMPI) Split(color, key int) Communicator {
	const splitTag = 1<<20 + 3
	const planTag = 1<<20 + 4

	me := g.Rank()
	n := g.Size()
	colors := make([]int, n)
	keys := make([]int, n)
	if me != 0 {
		g.c.SendBytes(intsToBytes([]int{color, key}), 0, splitTag)
		plan := bytesToInts(g.recv0(planTag))
		return g.buildSub(plan)
	}
	colors[0], keys[0] = color, key
	for r := 1; r < n; r++ {
		b, _ := g.c.RecvBytes(r, splitTag)
		ck := bytesToInts(b)
		colors[r], keys[r] = ck[0], ck[1]
	}
	groups := map[int][]int{}
	for r, col := range colors {
		if col >= 0 {
			groups[col] = append(groups[col], r)
		}
	}
	plans := make([][]int, n)
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool {
			if keys[members[i]] != keys[members[j]] {
				return keys[members[i]] < keys[members[j]]
			}
			return members[i] < members[j]
		})
		for _, r := range members {
			plans[r] = members
		}
	}
	for r := 1; r < n; r++ {
		plan := plans[r]
		if plan == nil {
			plan = []int{-1}
		}
		g.c.SendBytes(intsToBytes(plan), r, planTag)
	}
	if plans[0] == nil {
		return nil
	}
	return g.buildSub(plans[0])
}

// recv0 从 0 号进程接收（Split 内部使用）。
func (g *GoMPI) recv0(tag int) []byte {
	b, _ := g.c.RecvBytes(0, tag)
	return b
}

// buildSub 按组员的父序号列表组建子通信器。
func (g *GoMPI) buildSub(members []int) Communicator {
	if len(members) == 1 && members[0] < 0 {
		return nil
	}
	return &GoMPI{c: mpi.NewCommunicator(members)}
}
