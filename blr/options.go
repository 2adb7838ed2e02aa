package blr

import "blrmat/lowrank"

// Options 引擎配置记录。零值不可直接使用，调用方从
// DefaultOptions 出发按需覆盖。
type Options struct {
	// LowRankAlgorithm 压缩核心：RRQR 或 ACA。
	LowRankAlgorithm lowrank.Algorithm
	// RelTol 相对容差（非负）。
	RelTol float64
	// AbsTol 绝对容差（非负）。
	AbsTol float64
	// MaxRank 低秩分块的最大秩（正整数）。
	MaxRank int
	// TaskRecursionCutoff 分块核心的任务递归深度上限，
	// 0 表示串行执行。显式透传给数值核心，不经过任何全局状态。
	TaskRecursionCutoff int
	// PivotThreshold 对角 LU 的零主元判定阈值，0 使用默认值。
	PivotThreshold float64
}

// DefaultOptions 返回保守默认配置。
func DefaultOptions() Options {
	return Options{
		LowRankAlgorithm:    lowrank.AlgorithmRRQR,
		RelTol:              1e-8,
		AbsTol:              1e-12,
		MaxRank:             64,
		TaskRecursionCutoff: 0,
		PivotThreshold:      0,
	}
}

// lowrankOptions 转换为压缩核心的参数记录。
func (o Options) lowrankOptions() lowrank.Options {
	return lowrank.Options{
		Algorithm: o.LowRankAlgorithm,
		RelTol:    o.RelTol,
		AbsTol:    o.AbsTol,
		MaxRank:   o.MaxRank,
	}
}
