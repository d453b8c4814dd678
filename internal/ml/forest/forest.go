// Package forest 随机森林分类器与网格搜索
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Params 随机森林超参数
type Params struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"` // 0 表示不限深度
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	ClassWeight     string `json:"class_weight"`
	Seed            int64  `json:"seed"`
}

// String 参数的紧凑表示，用于日志和报告
func (p Params) String() string {
	depth := "None"
	if p.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", p.MaxDepth)
	}
	cw := p.ClassWeight
	if cw == "" {
		cw = "None"
	}
	return fmt.Sprintf("n_estimators=%d max_depth=%s min_samples_split=%d min_samples_leaf=%d class_weight=%s",
		p.NEstimators, depth, p.MinSamplesSplit, p.MinSamplesLeaf, cw)
}

// Forest 随机森林：自助采样 + 每次切分随机 sqrt(d) 个特征
type Forest struct {
	Params      Params    `json:"params"`
	NClasses    int       `json:"n_classes"`
	NFeatures   int       `json:"n_features"`
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"feature_importances"`

	// Workers 并行建树的协程数（<=0 时串行）
	Workers int `json:"-"`
}

// New 创建未训练的随机森林
func New(p Params) *Forest {
	return &Forest{Params: p}
}

// Fit 训练随机森林，各棵树使用独立的随机种子并行构建
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []int, nClasses int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("forest: invalid training data (%d rows, %d labels)", len(x), len(y))
	}
	if f.Params.NEstimators <= 0 {
		return errors.New("forest: n_estimators must be positive")
	}
	classWeights, err := ResolveClassWeights(f.Params.ClassWeight, y, nClasses)
	if err != nil {
		return err
	}

	f.NClasses = nClasses
	f.NFeatures = len(x[0])
	f.Trees = make([]*Tree, f.Params.NEstimators)
	importances := make([][]float64, f.Params.NEstimators)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.Workers, 1))
	for t := 0; t < f.Params.NEstimators; t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(f.Params.Seed*1_000_003 + int64(t)))
			tree, imp := fitTree(x, y, classWeights, nClasses, f.Params, rng)
			f.Trees[t] = tree
			importances[t] = imp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Importances = make([]float64, f.NFeatures)
	for _, imp := range importances {
		for j, v := range imp {
			f.Importances[j] += v / float64(len(importances))
		}
	}
	normalize(f.Importances)
	return nil
}

// fitTree 在自助样本上训练一棵树，返回归一化的特征重要性
func fitTree(x [][]float64, y []int, classWeights []float64, nClasses int, p Params, rng *rand.Rand) (*Tree, []float64) {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	w := make([]float64, n)
	for i, l := range y {
		w[i] = classWeights[l]
	}

	b := newTreeBuilder(x, y, w, nClasses, p, rng)
	b.build(idx, 0)
	normalize(b.importance)
	return b.tree, b.importance
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

// PredictRow 单样本的类别概率（各树叶子分布的平均）
func (f *Forest) PredictRow(row []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("forest: model not fitted")
	}
	if len(row) != f.NFeatures {
		return nil, fmt.Errorf("forest: got %d features, model expects %d", len(row), f.NFeatures)
	}
	out := make([]float64, f.NClasses)
	for _, t := range f.Trees {
		for c, p := range t.PredictRow(row) {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out, nil
}

// PredictProba 批量预测类别概率
func (f *Forest) PredictProba(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		p, err := f.PredictRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Predict 批量预测类别
func (f *Forest) Predict(rows [][]float64) ([]int, error) {
	probs, err := f.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		best := 0
		for c := 1; c < len(p); c++ {
			if p[c] > p[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out, nil
}
