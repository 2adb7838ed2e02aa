package wire

import (
	"blrmat/numeric"
	"blrmat/tile"
)

// putScalar 按 T 的具体类型写一个标量。
func putScalar[T numeric.Number](w *Write, v T) {
	switch x := any(v).(type) {
	case float32:
		w.Float32(x)
	case float64:
		w.Float64(x)
	case complex64:
		w.Complex64(x)
	case complex128:
		w.Complex128(x)
	}
}

// getScalar 按 T 的具体类型读一个标量。
func getScalar[T numeric.Number](r *Read) T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(r.Float32()).(T)
	case float64:
		return any(r.Float64()).(T)
	case complex64:
		return any(r.Complex64()).(T)
	case complex128:
		return any(r.Complex128()).(T)
	}
	return zero
}

// putDense 按列主序写整个稠密块。
func putDense[T numeric.Number](w *Write, d *numeric.Dense[T]) {
	for j := 0; j < d.Cols(); j++ {
		col := d.Col(j)
		for i := 0; i < d.Rows(); i++ {
			putScalar(w, col[i])
		}
	}
}

// getDense 按列主序读入 m×n 稠密块。
func getDense[T numeric.Number](r *Read, m, n int) *numeric.Dense[T] {
	d := numeric.NewDense[T](m, n)
	for j := 0; j < n; j++ {
		col := d.Col(j)
		for i := 0; i < m; i++ {
			col[i] = getScalar[T](r)
		}
	}
	return d
}

// EncodeTile 将分块序列化为一帧：保持变体与秩不变。
func EncodeTile[T numeric.Number](t tile.Tile[T]) []byte {
	w := &Write{Byte: make([]byte, 0, 13+t.Memory()*8)}
	switch x := t.(type) {
	case *tile.Dense[T]:
		w.Uint8(TagDense)
		w.Uint32(uint32(x.Rows()))
		w.Uint32(uint32(x.Cols()))
		w.Uint32(uint32(x.Rank()))
		putDense(w, x.D)
	case *tile.LowRank[T]:
		w.Uint8(TagLowRank)
		w.Uint32(uint32(x.Rows()))
		w.Uint32(uint32(x.Cols()))
		w.Uint32(uint32(x.Rank()))
		putDense(w, x.U)
		putDense(w, x.V)
	}
	return w.Byte
}

// DecodeTile 从一帧重建分块，变体与秩和发送方一致。
func DecodeTile[T numeric.Number](b []byte) (tile.Tile[T], error) {
	r := &Read{Byte: b}
	tag := r.Uint8()
	m := int(r.Uint32())
	n := int(r.Uint32())
	rank := int(r.Uint32())
	if r.Error != nil {
		return nil, r.Error
	}
	switch tag {
	case TagDense:
		d := getDense[T](r, m, n)
		if r.Error != nil {
			return nil, r.Error
		}
		return tile.NewDenseFrom(d), nil
	case TagLowRank:
		u := getDense[T](r, m, rank)
		v := getDense[T](r, rank, n)
		if r.Error != nil {
			return nil, r.Error
		}
		return tile.NewLowRank(u, v), nil
	}
	return nil, ErrBadFrame
}

// EncodeDense 只序列化稠密块的原始缓冲（列主序），不带头部；
// 维度由接收方从分块划分推得。
func EncodeDense[T numeric.Number](d *numeric.Dense[T]) []byte {
	w := &Write{Byte: make([]byte, 0, d.Rows()*d.Cols()*16)}
	putDense(w, d)
	return w.Byte
}

// DecodeDense 按已知维度重建稠密块。
func DecodeDense[T numeric.Number](b []byte, m, n int) (*numeric.Dense[T], error) {
	r := &Read{Byte: b}
	d := getDense[T](r, m, n)
	if r.Error != nil {
		return nil, r.Error
	}
	return d, nil
}

// EncodeScalars 序列化标量切片（向量段广播等）。
func EncodeScalars[T numeric.Number](v []T) []byte {
	w := &Write{Byte: make([]byte, 0, 16*len(v))}
	for _, x := range v {
		putScalar(w, x)
	}
	return w.Byte
}

// DecodeScalars 反序列化长度为 n 的标量切片。
func DecodeScalars[T numeric.Number](b []byte, n int) ([]T, error) {
	r := &Read{Byte: b}
	out := make([]T, n)
	for i := range out {
		out[i] = getScalar[T](r)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return out, nil
}

// EncodeInts 序列化整型切片（主元向量等）。
func EncodeInts(vals []int) []byte {
	w := &Write{Byte: make([]byte, 0, 4+8*len(vals))}
	w.Uint32(uint32(len(vals)))
	for _, v := range vals {
		w.Uint64(uint64(int64(v)))
	}
	return w.Byte
}

// DecodeInts 反序列化整型切片。
func DecodeInts(b []byte) ([]int, error) {
	r := &Read{Byte: b}
	n := int(r.Uint32())
	if r.Error != nil {
		return nil, r.Error
	}
	out := make([]int, n)
	for i := range out {
		out[i] = int(int64(r.Uint64()))
	}
	if r.Error != nil {
		return nil, r.Error
	}
	return out, nil
}
