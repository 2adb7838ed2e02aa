package blr

import (
	"errors"
	"fmt"
)

var (
	// ErrDimension 划分或维度不匹配。
	ErrDimension = errors.New("blr: partition or dimension mismatch")
	// ErrGridMismatch 参与运算的矩阵不在兼容的进程网格上。
	ErrGridMismatch = errors.New("blr: incompatible process grids")
	// ErrRankExceeded 秩超过分块尺寸或 max_rank 且策略为严格。
	ErrRankExceeded = errors.New("blr: rank exceeds tile size")
	// ErrNotFinite 分块中出现非有限值。
	ErrNotFinite = errors.New("blr: tile contains non-finite values")
	// ErrUnsupported 当前分布式通信模式不支持的参数组合。
	ErrUnsupported = errors.New("blr: unsupported operation for distributed operands")
)

// StepError 分解在某个分块步失败。包裹失败步号与底层原因；
// 剩余的分块循环已被放弃，受影响分块处于未定义状态。
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("blr: factorization failed at block step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
