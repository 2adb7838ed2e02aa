package lowrank

import (
	"math"

	"blrmat/numeric"
)

// Oracle 单元素取值器：按 (i,j) 求被压缩块的一个元素。
type Oracle[T numeric.Number] interface {
	At(i, j int) T
}

// ElementFunc 将普通函数适配为 Oracle。
type ElementFunc[T numeric.Number] func(i, j int) T

func (f ElementFunc[T]) At(i, j int) T { return f(i, j) }

// RowColOracle 整行/整列取值器。当调用方能够低开销地一次产出
// 整行（例如行本身就是某个核函数求值的结果）时，避免逐元素
// 调用开销。
type RowColOracle[T numeric.Number] interface {
	Row(i int) []T
	Col(j int) []T
}

type rowColFromElement[T numeric.Number] struct {
	oracle Oracle[T]
	n, m   int
}

func (r rowColFromElement[T]) Row(i int) []T {
	out := make([]T, r.n)
	for j := range out {
		out[j] = r.oracle.At(i, j)
	}
	return out
}

func (r rowColFromElement[T]) Col(j int) []T {
	out := make([]T, r.m)
	for i := range out {
		out[i] = r.oracle.At(i, j)
	}
	return out
}

// AsRowCol 将单元素 Oracle 包装为 RowColOracle（逐元素求值）。
func AsRowCol[T numeric.Number](m, n int, oracle Oracle[T]) RowColOracle[T] {
	return rowColFromElement[T]{oracle: oracle, n: n, m: m}
}

// ACA 对只能通过 oracle 访问的 m×n 块做带部分主元的自适应交叉逼近。
// 从不物化完整块：每步只触及残差的一行和一列。
// 终止条件：残差估计 ||u_k||*||v_k|| 连续若干步落在
// max(abs, rel*||近似||_F) 以下、达到 max_rank、或无可用主元。
func ACA[T numeric.Number](m, n int, oracle RowColOracle[T], opts Options) (u, v *numeric.Dense[T], rank int) {
	maxRank := opts.MaxRank
	if maxRank <= 0 || maxRank > minInt(m, n) {
		maxRank = minInt(m, n)
	}
	stallLimit := opts.StallSteps
	if stallLimit <= 0 {
		stallLimit = 2
	}

	uCols := make([][]T, 0, maxRank)
	vRows := make([][]T, 0, maxRank)
	usedRows := make(map[int]bool, maxRank)
	usedCols := make(map[int]bool, maxRank)

	approxNormSq := 0.0
	stall := 0
	pivotRow := 0

	for k := 0; k < maxRank; k++ {
		// 取 pivotRow 处的残差行
		row := residualRow(oracle, pivotRow, n, uCols, vRows)
		pivotCol, pivotVal := argMaxAbsExcluding(row, usedCols)
		if pivotVal < numeric.Epsilon {
			// 放弃前先在未用过的行里寻找可用主元
			found := false
			for cand := 0; cand < m; cand++ {
				if usedRows[cand] {
					continue
				}
				r2 := residualRow(oracle, cand, n, uCols, vRows)
				c2, v2 := argMaxAbsExcluding(r2, usedCols)
				if v2 >= numeric.Epsilon {
					pivotRow, row, pivotCol = cand, r2, c2
					found = true
					break
				}
			}
			if !found {
				break // 无可用主元
			}
		}

		vRow := make([]T, n)
		pivot := row[pivotCol]
		for j := 0; j < n; j++ {
			vRow[j] = row[j] / pivot
		}

		col := residualCol(oracle, pivotCol, m, uCols, vRows)
		uCol := col // u_k 直接取残差列

		usedRows[pivotRow] = true
		usedCols[pivotCol] = true
		uCols = append(uCols, uCol)
		vRows = append(vRows, vRow)
		rank = len(uCols)

		normU, normV := normVec(uCol), normVec(vRow)
		approxNormSq += (normU * normV) * (normU * normV)
		tol := threshold(opts, math.Sqrt(approxNormSq))
		if normU*normV <= tol {
			stall++
			if stall >= stallLimit {
				break
			}
		} else {
			stall = 0
		}

		// 下一主元行：新列中模最大的元素所在行（跳过已用行）。
		nextRow, nextVal := 0, -1.0
		for i := 0; i < m; i++ {
			if usedRows[i] {
				continue
			}
			if a := numeric.Abs(col[i]); a > nextVal {
				nextVal, nextRow = a, i
			}
		}
		if nextVal < 0 {
			break
		}
		pivotRow = nextRow
	}

	u = numeric.NewDense[T](m, rank)
	v = numeric.NewDense[T](rank, n)
	for k := 0; k < rank; k++ {
		for i := 0; i < m; i++ {
			u.Set(i, k, uCols[k][i])
		}
		for j := 0; j < n; j++ {
			v.Set(k, j, vRows[k][j])
		}
	}
	return u, v, rank
}

func residualRow[T numeric.Number](oracle RowColOracle[T], i, n int, uCols [][]T, vRows [][]T) []T {
	row := oracle.Row(i)
	out := make([]T, n)
	copy(out, row)
	for k := range uCols {
		ui := uCols[k][i]
		vr := vRows[k]
		for j := 0; j < n; j++ {
			out[j] -= ui * vr[j]
		}
	}
	return out
}

func residualCol[T numeric.Number](oracle RowColOracle[T], j, m int, uCols [][]T, vRows [][]T) []T {
	col := oracle.Col(j)
	out := make([]T, m)
	copy(out, col)
	for k := range uCols {
		vj := vRows[k][j]
		uc := uCols[k]
		for i := 0; i < m; i++ {
			out[i] -= uc[i] * vj
		}
	}
	return out
}

func argMaxAbsExcluding[T numeric.Number](v []T, excluded map[int]bool) (idx int, val float64) {
	idx, val = -1, -1
	for j, x := range v {
		if excluded[j] {
			continue
		}
		a := numeric.Abs(x)
		if a > val {
			val, idx = a, j
		}
	}
	if idx < 0 {
		idx = 0
	}
	return idx, val
}

func normVec[T numeric.Number](v []T) float64 {
	var sum float64
	for _, x := range v {
		a := numeric.Abs(x)
		sum += a * a
	}
	return math.Sqrt(sum)
}
