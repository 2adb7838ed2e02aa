package numeric

// Trans 指定操作数进入核心前是否转置/共轭转置，对应 BLAS 的 Trans 族。
type Trans int

const (
	NoTrans   Trans = iota
	TransT          // 仅转置
	ConjTrans       // 共轭转置
)

// Side 指定三角求解中三角操作数所在的一侧。
type Side int

const (
	Left Side = iota
	Right
)

// Uplo 指定三角操作数取上三角还是下三角。
type Uplo int

const (
	Lower Uplo = iota
	Upper
)

// Diag 指定三角操作数的对角线是隐式单位还是需要读取。
type Diag int

const (
	NonUnit Diag = iota
	Unit
)
