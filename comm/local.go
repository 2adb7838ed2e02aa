package comm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// packet 邮箱内的一条消息，按 (comm, tag) 匹配接收。
type packet struct {
	comm int
	tag  int
	data []byte
}

// mailbox 一对进程间的无界消息队列。
// 发送永不阻塞，接收按 (comm, tag) 乱序匹配，天然避免
// 双向交换时的同步死锁。
type mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []packet
}

func newMailbox() *mailbox {
	b := &mailbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *mailbox) put(p packet) {
	b.mu.Lock()
	b.queue = append(b.queue, p)
	b.cond.Signal()
	b.mu.Unlock()
}

func (b *mailbox) take(comm, tag int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		for i, p := range b.queue {
			if p.comm == comm && p.tag == tag {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				return p.data
			}
		}
		b.cond.Wait()
	}
}

// World 进程内通信世界：size 个“进程”（goroutine）之间的邮箱网格。
// 每个参与 goroutine 通过 Comm(rank) 取得自己的世界通信域。
type World struct {
	size   int
	boxes  [][]*mailbox // boxes[src][dst]
	nextID int64        // 子通信域 id 分配器
}

// NewWorld 创建 n 个进程位的通信世界。
func NewWorld(n int) *World {
	if n < 1 {
		panic("comm.NewWorld: size must be positive")
	}
	w := &World{size: n, boxes: make([][]*mailbox, n)}
	for i := range w.boxes {
		w.boxes[i] = make([]*mailbox, n)
		for j := range w.boxes[i] {
			w.boxes[i][j] = newMailbox()
		}
	}
	return w
}

// Comm 返回 rank 对应的世界通信域。
func (w *World) Comm(rank int) *Local {
	if rank < 0 || rank >= w.size {
		panic("comm.World.Comm: rank out of range")
	}
	ranks := make([]int, w.size)
	for i := range ranks {
		ranks[i] = i
	}
	return &Local{w: w, id: 0, ranks: ranks, me: rank}
}

func (w *World) newCommID() int {
	return int(atomic.AddInt64(&w.nextID, 1))
}

// Local 进程内通信域实现。ranks 将组内序号映射为世界序号；
// seq 为集合操作序号，SPMD 模式下各成员同步推进，保证同一次
// 集合操作的消息 tag 一致且不与其他集合操作串扰。
type Local struct {
	w     *World
	id    int
	ranks []int
	me    int
	seq   int
}

// 集合操作的内部 tag 空间（负数，phase 区分同一操作内的多个阶段）。
func collTag(seq, phase int) int {
	return -(seq*8 + phase + 1)
}

// Rank 组内序号。
func (c *Local) Rank() int { return c.me }

// Size 组大小。
func (c *Local) Size() int { return len(c.ranks) }

// Send 向组内 dst 发送消息，tag 必须非负。发送端复制数据，
// 调用方可立即复用缓冲。
func (c *Local) Send(b []byte, dst, tag int) {
	if tag < 0 {
		panic("comm.Local.Send: negative tag is reserved")
	}
	c.send(b, dst, tag)
}

func (c *Local) send(b []byte, dst, tag int) {
	cp := make([]byte, len(b))
	copy(cp, b)
	c.w.boxes[c.ranks[c.me]][c.ranks[dst]].put(packet{comm: c.id, tag: tag, data: cp})
}

// Recv 阻塞接收组内 src 发来的指定 tag 消息。
func (c *Local) Recv(src, tag int) []byte {
	if tag < 0 {
		panic("comm.Local.Recv: negative tag is reserved")
	}
	return c.recv(src, tag)
}

func (c *Local) recv(src, tag int) []byte {
	return c.w.boxes[c.ranks[src]][c.ranks[c.me]].take(c.id, tag)
}

// Bcast 以 root 为根广播。根进程传入数据并原样返回；
// 其余进程忽略入参，返回接收到的数据。组内所有成员必须调用。
func (c *Local) Bcast(b []byte, root int) []byte {
	c.seq++
	tag := collTag(c.seq, 0)
	if c.me == root {
		for r := range c.ranks {
			if r != c.me {
				c.send(b, r, tag)
			}
		}
		return b
	}
	return c.recv(root, tag)
}

// AllreduceSum 对各成员的等长 float64 切片逐元素求和，
// 所有成员得到相同结果。组内所有成员必须调用。
func (c *Local) AllreduceSum(vals []float64) []float64 {
	c.seq++
	gatherTag := collTag(c.seq, 1)
	resultTag := collTag(c.seq, 2)
	if c.me != 0 {
		c.send(floatsToBytes(vals), 0, gatherTag)
		return bytesToFloats(c.recv(0, resultTag))
	}
	sum := make([]float64, len(vals))
	copy(sum, vals)
	for r := 1; r < len(c.ranks); r++ {
		part := bytesToFloats(c.recv(r, gatherTag))
		for i := range sum {
			sum[i] += part[i]
		}
	}
	out := floatsToBytes(sum)
	for r := 1; r < len(c.ranks); r++ {
		c.send(out, r, resultTag)
	}
	return sum
}

// Split 按 color 将本域切分为若干子域，子域内按 (key, 原序号) 排序
// 决定新序号。color 为负的成员不加入任何子域，返回 nil。
// 组内所有成员必须调用（集合操作）。
func (c *Local) Split(color, key int) Communicator {
	c.seq++
	gatherTag := collTag(c.seq, 3)
	groupTag := collTag(c.seq, 4)

	if c.me != 0 {
		c.send(intsToBytes([]int{color, key}), 0, gatherTag)
		info := bytesToInts(c.recv(0, groupTag))
		return c.makeSub(info)
	}

	colors := make([]int, len(c.ranks))
	keys := make([]int, len(c.ranks))
	colors[0], keys[0] = color, key
	for r := 1; r < len(c.ranks); r++ {
		ck := bytesToInts(c.recv(r, gatherTag))
		colors[r], keys[r] = ck[0], ck[1]
	}

	// 按 color 分组，组内按 (key, 原序号) 排序
	groups := map[int][]int{}
	for r, col := range colors {
		if col >= 0 {
			groups[col] = append(groups[col], r)
		}
	}
	groupInfo := make([][]int, len(c.ranks))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool {
			if keys[members[i]] != keys[members[j]] {
				return keys[members[i]] < keys[members[j]]
			}
			return members[i] < members[j]
		})
		id := c.w.newCommID()
		worldRanks := make([]int, len(members))
		for i, r := range members {
			worldRanks[i] = c.ranks[r]
		}
		for idx, r := range members {
			info := append([]int{id, idx}, worldRanks...)
			groupInfo[r] = info
		}
	}
	for r := 1; r < len(c.ranks); r++ {
		info := groupInfo[r]
		if info == nil {
			info = []int{-1, -1}
		}
		c.send(intsToBytes(info), r, groupTag)
	}
	if groupInfo[0] == nil {
		return nil
	}
	return c.makeSub(groupInfo[0])
}

// makeSub 按 [id, myIndex, worldRanks...] 组装子通信域。
func (c *Local) makeSub(info []int) Communicator {
	if info[0] < 0 {
		return nil
	}
	return &Local{w: c.w, id: info[0], ranks: info[2:], me: info[1]}
}
