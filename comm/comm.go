// Package comm 定义 BLR 引擎依赖的窄通信接口，并提供两种实现：
// 进程内的 Local（goroutine 邮箱，供测试与单机调用方使用）
// 和基于 gompi 的 GoMPI（生产环境挂接真实 MPI 运行时）。
package comm

import (
	"encoding/binary"
	"math"
)

// Communicator 点对点收发、广播、求和归约与子通信域切分。
// 引擎的所有集合阶段都建立在这五个原语上。
//
// 用户 tag 必须非负；负 tag 空间保留给集合操作内部使用。
// Split 的 color 为负表示本进程不加入任何子域，返回 nil。
type Communicator interface {
	Rank() int
	Size() int
	Send(b []byte, dst, tag int)
	Recv(src, tag int) []byte
	Bcast(b []byte, root int) []byte
	AllreduceSum(vals []float64) []float64
	Split(color, key int) Communicator
}

// floatsToBytes 将 float64 切片按小端序编码为字节。
func floatsToBytes(vals []float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

// bytesToFloats 是 floatsToBytes 的逆操作。
func bytesToFloats(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}

// intsToBytes 将 int 切片按小端序 int64 编码为字节。
func intsToBytes(vals []int) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], uint64(int64(v)))
	}
	return out
}

// bytesToInts 是 intsToBytes 的逆操作。
func bytesToInts(b []byte) []int {
	out := make([]int, len(b)/8)
	for i := range out {
		out[i] = int(int64(binary.LittleEndian.Uint64(b[8*i:])))
	}
	return out
}
