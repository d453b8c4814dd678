package forest

import (
	"math"
	"math/rand"
	"sort"
)

// featureThreshold 相邻取值小于该差值时视为相同，不在其间切分
const featureThreshold = 1e-7

// Node 决策树节点，Left < 0 表示叶子
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf 是否叶子节点
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree 按加权基尼不纯度生长的 CART 分类树
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// PredictRow 返回叶子节点的类别概率分布
func (t *Tree) PredictRow(row []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth 树的最大深度（根为 0）
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		l, r := walk(n.Left, d+1), walk(n.Right, d+1)
		if l > r {
			return l
		}
		return r
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

type treeBuilder struct {
	x           [][]float64
	y           []int
	w           []float64
	nClasses    int
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	tree       *Tree
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	score     float64
	pos       int
}

func newTreeBuilder(x [][]float64, y []int, w []float64, nClasses int, p Params, rng *rand.Rand) *treeBuilder {
	d := len(x[0])
	return &treeBuilder{
		x:           x,
		y:           y,
		w:           w,
		nClasses:    nClasses,
		maxDepth:    p.MaxDepth,
		minSplit:    max(p.MinSamplesSplit, 2),
		minLeaf:     max(p.MinSamplesLeaf, 1),
		maxFeatures: maxFeatures(d),
		rng:         rng,
		tree:        &Tree{},
		importance:  make([]float64, d),
	}
}

// maxFeatures 每次切分考察的特征数 sqrt(d)
func maxFeatures(d int) int {
	return max(1, int(math.Sqrt(float64(d))))
}

func (b *treeBuilder) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, b.nClasses)
	var total float64
	for _, i := range idx {
		dist[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return dist, total
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range dist {
		p := v / total
		sum += p * p
	}
	return 1 - sum
}

func (b *treeBuilder) build(idx []int, depth int) int {
	dist, total := b.distribution(idx)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Left: -1, Right: -1})

	impurity := gini(dist, total)
	n := len(idx)
	leaf := impurity <= 0 ||
		n < b.minSplit ||
		n < 2*b.minLeaf ||
		(b.maxDepth > 0 && depth >= b.maxDepth)

	var best split
	found := false
	if !leaf {
		best, found = b.bestSplit(idx, dist)
	}
	if !found {
		value := make([]float64, b.nClasses)
		for c, v := range dist {
			value[c] = v / total
		}
		b.tree.Nodes[id].Value = value
		return id
	}

	left := make([]int, 0, best.pos)
	right := make([]int, 0, n-best.pos)
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[best.feature] += total*impurity - best.score

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Nodes[id] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return id
}

// bestSplit 随机抽取 maxFeatures 个非常量特征，寻找加权不纯度最小的切分
func (b *treeBuilder) bestSplit(idx []int, dist []float64) (split, bool) {
	best := split{score: math.Inf(1)}
	found := false

	sorted := make([]int, len(idx))
	leftDist := make([]float64, b.nClasses)
	rightDist := make([]float64, b.nClasses)

	visited := 0
	for _, f := range b.rng.Perm(len(b.importance)) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(p, q int) bool { return b.x[sorted[p]][f] < b.x[sorted[q]][f] })
		lo, hi := b.x[sorted[0]][f], b.x[sorted[len(sorted)-1]][f]
		if hi <= lo+featureThreshold {
			continue
		}
		visited++

		for c := range leftDist {
			leftDist[c] = 0
		}
		var leftW, totalW float64
		for _, v := range dist {
			totalW += v
		}
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftDist[b.y[i]] += b.w[i]
			leftW += b.w[i]

			cur, next := b.x[i][f], b.x[sorted[k+1]][f]
			if next <= cur+featureThreshold {
				continue
			}
			nLeft := k + 1
			if nLeft < b.minLeaf || len(sorted)-nLeft < b.minLeaf {
				continue
			}
			for c := range rightDist {
				rightDist[c] = dist[c] - leftDist[c]
			}
			rightW := totalW - leftW
			score := leftW*gini(leftDist, leftW) + rightW*gini(rightDist, rightW)
			if score < best.score {
				best = split{feature: f, threshold: cur + (next-cur)/2, score: score, pos: nLeft}
				found = true
			}
		}
	}
	return best, found
}
