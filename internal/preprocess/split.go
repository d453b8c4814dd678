package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"wisefido-anomaly/internal/models"
)

// classIndices 按类别分组的样本下标（类别升序）
func classIndices(labels []int) ([]int, map[int][]int) {
	groups := make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	classes := make([]int, 0, len(groups))
	for c := range groups {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, groups
}

// StratifiedSplit 分层随机划分训练集与测试集，返回两组下标
//
// 每个类别按 testSize 的比例进入测试集，且训练集和测试集都至少包含该类别的一个样本。
// 任一类别少于 2 个样本时无法分层。
func StratifiedSplit(labels []int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("preprocess: test size must be in (0,1), got %v", testSize)
	}
	classes, groups := classIndices(labels)
	for _, c := range classes {
		if len(groups[c]) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d member(s), stratified split needs 2",
				models.ErrInsufficientDiversity, c, len(groups[c]))
		}
	}

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := append([]int(nil), groups[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > len(idx)-1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// ShuffleSplit 不分层的随机划分，测试集至少 1 个、训练集至少 1 个样本
func ShuffleSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("preprocess: test size must be in (0,1), got %v", testSize)
	}
	if n < 2 {
		return nil, nil, fmt.Errorf("%w: %d sample(s) cannot be split", models.ErrInsufficientDiversity, n)
	}
	idx := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := min(max(int(math.Ceil(float64(n)*testSize)), 1), n-1)
	return idx[nTest:], idx[:nTest], nil
}

// Fold 交叉验证的一折
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold 分层 K 折划分
//
// 每个类别洗牌后轮流分配到各折，折间偏移保持各折大小均衡。
func StratifiedKFold(labels []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("preprocess: k-fold needs k >= 2, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("%w: %d samples cannot fill %d folds", models.ErrInsufficientDiversity, len(labels), k)
	}

	rng := rand.New(rand.NewSource(seed))
	classes, groups := classIndices(labels)
	assign := make([]int, len(labels))
	offset := 0
	for _, c := range classes {
		idx := append([]int(nil), groups[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for j, sample := range idx {
			assign[sample] = (offset + j) % k
		}
		offset = (offset + len(idx)) % k
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Subset 按下标取出行与标签
func Subset(rows [][]float64, labels []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = rows[j]
		ys[i] = labels[j]
	}
	return xs, ys
}
