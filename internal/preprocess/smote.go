package preprocess

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"wisefido-anomaly/internal/models"
)

// MaxSMOTENeighbors 近邻数上限
const MaxSMOTENeighbors = 5

// SMOTEResult 过采样结果
type SMOTEResult struct {
	X         [][]float64
	Y         []int
	K         int         // 实际使用的近邻数
	Generated map[int]int // 每个类别合成的样本数
}

// SMOTE 用 k 近邻插值把所有非多数类过采样到多数类的数量
//
// k = min(5, 最小少数类数量-1)。只有一个类别或最小少数类不足 2 个样本时
// 返回 ErrResamplingInapplicable，调用方应继续使用原始数据。
// 原始样本保持原顺序在前，合成样本追加在后。
func SMOTE(x [][]float64, y []int, seed int64) (*SMOTEResult, error) {
	classes, groups := classIndices(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: only one class present", models.ErrResamplingInapplicable)
	}

	majority := 0
	for _, c := range classes {
		if len(groups[c]) > majority {
			majority = len(groups[c])
		}
	}
	minority := majority
	for _, c := range classes {
		if n := len(groups[c]); n < majority && n < minority {
			minority = n
		}
	}
	if minority == majority {
		// 已经平衡
		return &SMOTEResult{X: x, Y: y, K: 0, Generated: map[int]int{}}, nil
	}
	if minority < 2 {
		return nil, fmt.Errorf("%w: minority class has %d sample(s)", models.ErrResamplingInapplicable, minority)
	}

	k := MaxSMOTENeighbors
	if minority-1 < k {
		k = minority - 1
	}

	rng := rand.New(rand.NewSource(seed))
	res := &SMOTEResult{
		X:         append([][]float64(nil), x...),
		Y:         append([]int(nil), y...),
		K:         k,
		Generated: make(map[int]int),
	}
	for _, c := range classes {
		idx := groups[c]
		need := majority - len(idx)
		if need <= 0 {
			continue
		}
		neighbors := nearestNeighbors(x, idx, k)
		for n := 0; n < need; n++ {
			pick := rng.Intn(len(idx))
			nn := neighbors[pick][rng.Intn(k)]
			gap := rng.Float64()
			base, other := x[idx[pick]], x[nn]
			sample := make([]float64, len(base))
			for j := range base {
				sample[j] = base[j] + gap*(other[j]-base[j])
			}
			res.X = append(res.X, sample)
			res.Y = append(res.Y, c)
		}
		res.Generated[c] = need
	}
	return res, nil
}

// nearestNeighbors 同类样本中每个样本的 k 个最近邻（不含自身），返回全局下标
func nearestNeighbors(x [][]float64, idx []int, k int) [][]int {
	type cand struct {
		index int
		dist  float64
	}
	out := make([][]int, len(idx))
	cands := make([]cand, 0, len(idx)-1)
	for a, i := range idx {
		cands = cands[:0]
		for b, j := range idx {
			if a == b {
				continue
			}
			cands = append(cands, cand{index: j, dist: floats.Distance(x[i], x[j], 2)})
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].dist < cands[q].dist })
		nn := make([]int, k)
		for t := 0; t < k; t++ {
			nn[t] = cands[t].index
		}
		out[a] = nn
	}
	return out
}
