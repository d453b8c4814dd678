package lstm

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// cell 单个 LSTM 层，门的排列顺序为 i, f, g, o
type cell struct {
	In     int
	Hidden int
	W      *mat.Dense // 4H × In
	U      *mat.Dense // 4H × H
	B      []float64  // 4H
}

// newCell 输入核 Glorot 均匀初始化，循环核正交初始化，遗忘门偏置为 1
func newCell(in, hidden int, rng *rand.Rand) *cell {
	rows := 4 * hidden
	c := &cell{
		In:     in,
		Hidden: hidden,
		W:      glorotUniform(rows, in, rng),
		U:      orthogonal(rows, hidden, rng),
		B:      make([]float64, rows),
	}
	for j := hidden; j < 2*hidden; j++ {
		c.B[j] = 1
	}
	return c
}

func glorotUniform(rows, cols int, rng *rand.Rand) *mat.Dense {
	limit := math.Sqrt(6 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return mat.NewDense(rows, cols, data)
}

// orthogonal 返回列正交的 rows × cols 矩阵（rows >= cols）
func orthogonal(rows, cols int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	a := mat.NewDense(rows, cols, data)

	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	out := mat.NewDense(rows, cols, nil)
	out.Copy(q.Slice(0, rows, 0, cols))
	for j := 0; j < cols; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < rows; i++ {
				out.Set(i, j, -out.At(i, j))
			}
		}
	}
	return out
}

// stepCache 反向传播需要的单步中间量
type stepCache struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	c, tc           []float64
}

// forward 依次处理序列，返回每一步的隐藏状态
func (cl *cell) forward(seq [][]float64) ([][]float64, []stepCache) {
	h := cl.Hidden
	hs := make([][]float64, len(seq))
	caches := make([]stepCache, len(seq))

	hPrev := make([]float64, h)
	cPrev := make([]float64, h)
	z := mat.NewVecDense(4*h, nil)
	rec := mat.NewVecDense(4*h, nil)

	for t, x := range seq {
		z.MulVec(cl.W, mat.NewVecDense(len(x), x))
		rec.MulVec(cl.U, mat.NewVecDense(h, hPrev))
		zr, rr := z.RawVector().Data, rec.RawVector().Data

		sc := stepCache{
			x: x, hPrev: hPrev, cPrev: cPrev,
			i: make([]float64, h), f: make([]float64, h),
			g: make([]float64, h), o: make([]float64, h),
			c: make([]float64, h), tc: make([]float64, h),
		}
		hNew := make([]float64, h)
		for j := 0; j < h; j++ {
			sc.i[j] = sigmoid(zr[j] + rr[j] + cl.B[j])
			sc.f[j] = sigmoid(zr[h+j] + rr[h+j] + cl.B[h+j])
			sc.g[j] = math.Tanh(zr[2*h+j] + rr[2*h+j] + cl.B[2*h+j])
			sc.o[j] = sigmoid(zr[3*h+j] + rr[3*h+j] + cl.B[3*h+j])
			sc.c[j] = sc.f[j]*cPrev[j] + sc.i[j]*sc.g[j]
			sc.tc[j] = math.Tanh(sc.c[j])
			hNew[j] = sc.o[j] * sc.tc[j]
		}
		hs[t] = hNew
		caches[t] = sc
		hPrev, cPrev = hNew, sc.c
	}
	return hs, caches
}

// cellGrad 与 cell 形状相同的梯度
type cellGrad struct {
	W *mat.Dense
	U *mat.Dense
	B []float64
}

func newCellGrad(cl *cell) *cellGrad {
	return &cellGrad{
		W: mat.NewDense(4*cl.Hidden, cl.In, nil),
		U: mat.NewDense(4*cl.Hidden, cl.Hidden, nil),
		B: make([]float64, 4*cl.Hidden),
	}
}

// backward 沿时间反向传播，dhs[t] 为上游对 h_t 的梯度（可为 nil）
// needInput 为 true 时返回对每一步输入的梯度
func (cl *cell) backward(caches []stepCache, dhs [][]float64, grad *cellGrad, needInput bool) [][]float64 {
	h := cl.Hidden
	var dxs [][]float64
	if needInput {
		dxs = make([][]float64, len(caches))
	}

	dhNext := make([]float64, h)
	dcNext := make([]float64, h)
	dh := make([]float64, h)
	dz := make([]float64, 4*h)
	dzv := mat.NewVecDense(4*h, dz)

	for t := len(caches) - 1; t >= 0; t-- {
		sc := caches[t]
		copy(dh, dhNext)
		if dhs[t] != nil {
			for j := range dh {
				dh[j] += dhs[t][j]
			}
		}
		for j := 0; j < h; j++ {
			do := dh[j] * sc.tc[j]
			dc := dh[j]*sc.o[j]*(1-sc.tc[j]*sc.tc[j]) + dcNext[j]
			di := dc * sc.g[j]
			dg := dc * sc.i[j]
			df := dc * sc.cPrev[j]

			dz[j] = di * sc.i[j] * (1 - sc.i[j])
			dz[h+j] = df * sc.f[j] * (1 - sc.f[j])
			dz[2*h+j] = dg * (1 - sc.g[j]*sc.g[j])
			dz[3*h+j] = do * sc.o[j] * (1 - sc.o[j])
			dcNext[j] = dc * sc.f[j]
		}

		grad.W.RankOne(grad.W, 1, dzv, mat.NewVecDense(len(sc.x), sc.x))
		grad.U.RankOne(grad.U, 1, dzv, mat.NewVecDense(h, sc.hPrev))
		for j, v := range dz {
			grad.B[j] += v
		}

		if needInput {
			dx := mat.NewVecDense(cl.In, nil)
			dx.MulVec(cl.W.T(), dzv)
			dxs[t] = dx.RawVector().Data
		}
		mat.NewVecDense(h, dhNext).MulVec(cl.U.T(), dzv)
	}
	return dxs
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
