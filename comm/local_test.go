package comm

import (
	"bytes"
	"sync"
	"testing"
)

// spawn 以 n 个 goroutine 模拟 SPMD 程序并等待全部完成。
func spawn(t *testing.T, n int, fn func(c *Local)) {
	t.Helper()
	w := NewWorld(n)
	var wg sync.WaitGroup
	for r := 0; r < n; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			fn(w.Comm(r))
		}(r)
	}
	wg.Wait()
}

// TestSendRecv 两进程点对点收发。
func TestSendRecv(t *testing.T) {
	spawn(t, 2, func(c *Local) {
		if c.Rank() == 0 {
			c.Send([]byte("hello"), 1, 7)
			got := c.Recv(1, 8)
			if string(got) != "world" {
				t.Errorf("rank 0 received %q", got)
			}
		} else {
			got := c.Recv(0, 7)
			if string(got) != "hello" {
				t.Errorf("rank 1 received %q", got)
			}
			c.Send([]byte("world"), 0, 8)
		}
	})
}

// TestSendRecvTagMatching 乱序 tag 也要按 tag 匹配。
func TestSendRecvTagMatching(t *testing.T) {
	spawn(t, 2, func(c *Local) {
		if c.Rank() == 0 {
			c.Send([]byte{1}, 1, 100)
			c.Send([]byte{2}, 1, 200)
		} else {
			b2 := c.Recv(0, 200)
			b1 := c.Recv(0, 100)
			if b1[0] != 1 || b2[0] != 2 {
				t.Errorf("tag matching broken: %v %v", b1, b2)
			}
		}
	})
}

// TestBcast 四进程广播，非根进程必须收到根的数据。
func TestBcast(t *testing.T) {
	spawn(t, 4, func(c *Local) {
		var payload []byte
		if c.Rank() == 2 {
			payload = []byte{9, 8, 7}
		}
		got := c.Bcast(payload, 2)
		if !bytes.Equal(got, []byte{9, 8, 7}) {
			t.Errorf("rank %d bcast got %v", c.Rank(), got)
		}
	})
}

// TestAllreduceSum 三进程逐元素求和。
func TestAllreduceSum(t *testing.T) {
	spawn(t, 3, func(c *Local) {
		vals := []float64{float64(c.Rank()), 1}
		got := c.AllreduceSum(vals)
		if got[0] != 3 || got[1] != 3 {
			t.Errorf("rank %d allreduce got %v", c.Rank(), got)
		}
	})
}

// TestSplit 按 color 切分，key 逆序决定组内序号；color<0 不入组。
func TestSplit(t *testing.T) {
	spawn(t, 5, func(c *Local) {
		r := c.Rank()
		if r == 4 {
			if sub := c.Split(-1, 0); sub != nil {
				t.Errorf("rank 4 expected nil sub-communicator")
			}
			return
		}
		color := r / 2            // {0,0,1,1}
		key := 10 - r             // 组内逆序
		sub := c.Split(color, key)
		if sub == nil {
			t.Errorf("rank %d got nil sub-communicator", r)
			return
		}
		if sub.Size() != 2 {
			t.Errorf("rank %d sub size %d", r, sub.Size())
		}
		// key 逆序：组内原高序号在前
		wantRank := 1 - r%2
		if sub.Rank() != wantRank {
			t.Errorf("rank %d sub rank %d, want %d", r, sub.Rank(), wantRank)
		}
		// 子域内广播仍然可用
		var payload []byte
		if sub.Rank() == 0 {
			payload = []byte{byte(color)}
		}
		got := sub.Bcast(payload, 0)
		if len(got) != 1 || got[0] != byte(color) {
			t.Errorf("rank %d sub bcast got %v", r, got)
		}
	})
}
