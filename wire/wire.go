// Package wire 实现分块的线格式编解码，供集合广播使用。
// 帧布局为 [tag:u8][m:u32][n:u32][rank:u32][payload]：
// 稠密块 payload 为 m*n 个标量（列主序），低秩块为 U (m*r) 接 V (r*n)。
// 接收方先读头部分配好对应变体，再读入 payload，避免二次往返。
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrOutOfBounds = errors.New("wire: read offset out of bounds")
	ErrBadFrame    = errors.New("wire: malformed tile frame")
)

// 变体标记。
const (
	TagDense   uint8 = 0
	TagLowRank uint8 = 1
)

// Write 顺序写游标，小端序。
type Write struct {
	Byte []byte
}

// Uint8 写单字节。
func (w *Write) Uint8(v uint8) {
	w.Byte = append(w.Byte, v)
}

// Uint32 写四字节正整数。
func (w *Write) Uint32(v uint32) {
	w.Byte = binary.LittleEndian.AppendUint32(w.Byte, v)
}

// Uint64 写八字节正整数。
func (w *Write) Uint64(v uint64) {
	w.Byte = binary.LittleEndian.AppendUint64(w.Byte, v)
}

// Float32 写单精度浮点。
func (w *Write) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// Float64 写双精度浮点。
func (w *Write) Float64(v float64) {
	w.Uint64(math.Float64bits(v))
}

// Complex64 写单精度复数。
func (w *Write) Complex64(v complex64) {
	w.Float32(real(v))
	w.Float32(imag(v))
}

// Complex128 写双精度复数。
func (w *Write) Complex128(v complex128) {
	w.Float64(real(v))
	w.Float64(imag(v))
}

// Read 顺序读游标，小端序，越界置 Error 并返回零值。
type Read struct {
	Byte   []byte
	Offset int
	Error  error
}

// CheckBounds 检查边界。
func (r *Read) CheckBounds(required int) error {
	if r.Offset < 0 || r.Offset+required > len(r.Byte) {
		return ErrOutOfBounds
	}
	return nil
}

// Uint8 读单字节。
func (r *Read) Uint8() (v uint8) {
	if err := r.CheckBounds(1); err != nil {
		r.Error = err
		return 0
	}
	v = r.Byte[r.Offset]
	r.Offset++
	return v
}

// Uint32 读四字节正整数。
func (r *Read) Uint32() (v uint32) {
	if err := r.CheckBounds(4); err != nil {
		r.Error = err
		return 0
	}
	v = binary.LittleEndian.Uint32(r.Byte[r.Offset:])
	r.Offset += 4
	return v
}

// Uint64 读八字节正整数。
func (r *Read) Uint64() (v uint64) {
	if err := r.CheckBounds(8); err != nil {
		r.Error = err
		return 0
	}
	v = binary.LittleEndian.Uint64(r.Byte[r.Offset:])
	r.Offset += 8
	return v
}

// Float32 读单精度浮点。
func (r *Read) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// Float64 读双精度浮点。
func (r *Read) Float64() float64 {
	return math.Float64frombits(r.Uint64())
}

// Complex64 读单精度复数。
func (r *Read) Complex64() complex64 {
	re := r.Float32()
	im := r.Float32()
	return complex(re, im)
}

// Complex128 读双精度复数。
func (r *Read) Complex128() complex128 {
	re := r.Float64()
	im := r.Float64()
	return complex(re, im)
}
