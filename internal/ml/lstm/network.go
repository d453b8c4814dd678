// Package lstm 两层堆叠 LSTM 序列分类器
//
// 结构：LSTM(Hidden1, 返回序列) → Dropout → LSTM(Hidden2) → Dropout → Dense(softmax)。
// 训练使用带类权重的交叉熵、输入核 L2 正则、Adam 优化和基于验证损失的早停。
package lstm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Architecture 网络结构
type Architecture struct {
	InputSize int     `json:"input_size"`
	Hidden1   int     `json:"hidden_1"`
	Hidden2   int     `json:"hidden_2"`
	NClasses  int     `json:"n_classes"`
	Dropout   float64 `json:"dropout"`
}

// Validate 检查结构参数
func (a Architecture) Validate() error {
	if a.InputSize <= 0 || a.Hidden1 <= 0 || a.Hidden2 <= 0 {
		return fmt.Errorf("lstm: invalid layer sizes %d/%d/%d", a.InputSize, a.Hidden1, a.Hidden2)
	}
	if a.NClasses < 2 {
		return fmt.Errorf("lstm: need at least 2 classes, got %d", a.NClasses)
	}
	if a.Dropout < 0 || a.Dropout >= 1 {
		return fmt.Errorf("lstm: dropout must be in [0,1), got %v", a.Dropout)
	}
	return nil
}

// Network 序列分类网络
type Network struct {
	Arch Architecture

	l1 *cell
	l2 *cell
	v  *mat.Dense // NClasses × Hidden2
	c  []float64
}

// New 按结构随机初始化网络
func New(arch Architecture, seed int64) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	return &Network{
		Arch: arch,
		l1:   newCell(arch.InputSize, arch.Hidden1, rng),
		l2:   newCell(arch.Hidden1, arch.Hidden2, rng),
		v:    glorotUniform(arch.NClasses, arch.Hidden2, rng),
		c:    make([]float64, arch.NClasses),
	}, nil
}

// trace 单个样本前向传播的中间结果
type trace struct {
	c1, c2 []stepCache
	m1     [][]float64 // 第一层输出的 dropout 掩码
	h2     []float64   // 第二层最后一步输出（dropout 之后）
	m2     []float64
	probs  []float64
}

// forward 前向传播，rng 为 nil 时关闭 dropout（推理）
func (n *Network) forward(seq [][]float64, rng *rand.Rand) *trace {
	tr := &trace{}

	h1, c1 := n.l1.forward(seq)
	tr.c1 = c1
	if rng != nil && n.Arch.Dropout > 0 {
		tr.m1 = make([][]float64, len(h1))
		for t := range h1 {
			tr.m1[t] = dropoutMask(len(h1[t]), n.Arch.Dropout, rng)
			h1[t] = mulElem(h1[t], tr.m1[t])
		}
	}

	h2s, c2 := n.l2.forward(h1)
	tr.c2 = c2
	h2 := h2s[len(h2s)-1]
	if rng != nil && n.Arch.Dropout > 0 {
		tr.m2 = dropoutMask(len(h2), n.Arch.Dropout, rng)
		h2 = mulElem(h2, tr.m2)
	}
	tr.h2 = h2

	logits := mat.NewVecDense(n.Arch.NClasses, nil)
	logits.MulVec(n.v, mat.NewVecDense(len(h2), h2))
	raw := logits.RawVector().Data
	for k := range raw {
		raw[k] += n.c[k]
	}
	tr.probs = softmax(raw)
	return tr
}

// backward 累加单个样本的梯度，dlogits 为损失对输出 logits 的梯度
func (n *Network) backward(tr *trace, dlogits []float64, g *grads) {
	dl := mat.NewVecDense(len(dlogits), dlogits)
	g.v.RankOne(g.v, 1, dl, mat.NewVecDense(len(tr.h2), tr.h2))
	for k, d := range dlogits {
		g.c[k] += d
	}

	dh2v := mat.NewVecDense(n.Arch.Hidden2, nil)
	dh2v.MulVec(n.v.T(), dl)
	dh2 := dh2v.RawVector().Data
	if tr.m2 != nil {
		dh2 = mulElem(dh2, tr.m2)
	}

	dhs2 := make([][]float64, len(tr.c2))
	dhs2[len(dhs2)-1] = dh2
	dh1 := n.l2.backward(tr.c2, dhs2, g.l2, true)
	if tr.m1 != nil {
		for t := range dh1 {
			dh1[t] = mulElem(dh1[t], tr.m1[t])
		}
	}
	n.l1.backward(tr.c1, dh1, g.l1, false)
}

// Predict 单条序列的类别概率分布
func (n *Network) Predict(seq [][]float64) ([]float64, error) {
	if err := n.checkInput(seq); err != nil {
		return nil, err
	}
	return n.forward(seq, nil).probs, nil
}

// PredictBatch 批量预测
func (n *Network) PredictBatch(seqs [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(seqs))
	for i, seq := range seqs {
		p, err := n.Predict(seq)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func (n *Network) checkInput(seq [][]float64) error {
	if n.l1 == nil {
		return errors.New("lstm: network not initialized")
	}
	if len(seq) == 0 {
		return errors.New("lstm: empty sequence")
	}
	for t, x := range seq {
		if len(x) != n.Arch.InputSize {
			return fmt.Errorf("lstm: step %d has %d features, expected %d", t, len(x), n.Arch.InputSize)
		}
	}
	return nil
}

// params 所有可训练参数的底层切片，顺序与 grads.params 一致
func (n *Network) params() [][]float64 {
	return [][]float64{
		n.l1.W.RawMatrix().Data, n.l1.U.RawMatrix().Data, n.l1.B,
		n.l2.W.RawMatrix().Data, n.l2.U.RawMatrix().Data, n.l2.B,
		n.v.RawMatrix().Data, n.c,
	}
}

// kernelParams 需要 L2 正则的输入核在 params 中的下标
var kernelParams = []int{0, 3}

// grads 与 Network 形状相同的梯度
type grads struct {
	l1, l2 *cellGrad
	v      *mat.Dense
	c      []float64
}

func (n *Network) newGrads() *grads {
	return &grads{
		l1: newCellGrad(n.l1),
		l2: newCellGrad(n.l2),
		v:  mat.NewDense(n.Arch.NClasses, n.Arch.Hidden2, nil),
		c:  make([]float64, n.Arch.NClasses),
	}
}

func (g *grads) params() [][]float64 {
	return [][]float64{
		g.l1.W.RawMatrix().Data, g.l1.U.RawMatrix().Data, g.l1.B,
		g.l2.W.RawMatrix().Data, g.l2.U.RawMatrix().Data, g.l2.B,
		g.v.RawMatrix().Data, g.c,
	}
}

func (g *grads) add(other *grads) {
	dst, src := g.params(), other.params()
	for i := range dst {
		for j, v := range src[i] {
			dst[i][j] += v
		}
	}
}

func dropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	m := make([]float64, n)
	keep := 1 / (1 - rate)
	for i := range m {
		if rng.Float64() >= rate {
			m[i] = keep
		}
	}
	return m
}

func mulElem(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

func softmax(logits []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range logits {
		maxv = math.Max(maxv, v)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

type cellJSON struct {
	In     int       `json:"in"`
	Hidden int       `json:"hidden"`
	W      []float64 `json:"kernel"`
	U      []float64 `json:"recurrent_kernel"`
	B      []float64 `json:"bias"`
}

type networkJSON struct {
	Arch   Architecture `json:"architecture"`
	Layers []cellJSON   `json:"lstm_layers"`
	Dense  []float64    `json:"dense_kernel"`
	Bias   []float64    `json:"dense_bias"`
}

// MarshalJSON 序列化结构与权重
func (n *Network) MarshalJSON() ([]byte, error) {
	if n.l1 == nil {
		return nil, errors.New("lstm: network not initialized")
	}
	enc := func(cl *cell) cellJSON {
		return cellJSON{In: cl.In, Hidden: cl.Hidden, W: cl.W.RawMatrix().Data, U: cl.U.RawMatrix().Data, B: cl.B}
	}
	return json.Marshal(networkJSON{
		Arch:   n.Arch,
		Layers: []cellJSON{enc(n.l1), enc(n.l2)},
		Dense:  n.v.RawMatrix().Data,
		Bias:   n.c,
	})
}

// UnmarshalJSON 从序列化数据恢复网络
func (n *Network) UnmarshalJSON(data []byte) error {
	var nj networkJSON
	if err := json.Unmarshal(data, &nj); err != nil {
		return err
	}
	if err := nj.Arch.Validate(); err != nil {
		return err
	}
	if len(nj.Layers) != 2 {
		return fmt.Errorf("lstm: expected 2 recurrent layers, got %d", len(nj.Layers))
	}
	want := [][2]int{{nj.Arch.InputSize, nj.Arch.Hidden1}, {nj.Arch.Hidden1, nj.Arch.Hidden2}}
	cells := make([]*cell, 2)
	for i, lj := range nj.Layers {
		if lj.In != want[i][0] || lj.Hidden != want[i][1] ||
			len(lj.W) != 4*lj.Hidden*lj.In || len(lj.U) != 4*lj.Hidden*lj.Hidden || len(lj.B) != 4*lj.Hidden {
			return fmt.Errorf("lstm: layer %d has inconsistent shape", i)
		}
		cells[i] = &cell{
			In:     lj.In,
			Hidden: lj.Hidden,
			W:      mat.NewDense(4*lj.Hidden, lj.In, lj.W),
			U:      mat.NewDense(4*lj.Hidden, lj.Hidden, lj.U),
			B:      lj.B,
		}
	}
	if len(nj.Dense) != nj.Arch.NClasses*nj.Arch.Hidden2 || len(nj.Bias) != nj.Arch.NClasses {
		return errors.New("lstm: dense layer has inconsistent shape")
	}

	n.Arch = nj.Arch
	n.l1, n.l2 = cells[0], cells[1]
	n.v = mat.NewDense(nj.Arch.NClasses, nj.Arch.Hidden2, nj.Dense)
	n.c = nj.Bias
	return nil
}
