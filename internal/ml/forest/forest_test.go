package forest

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// separable 两类在第 0 维可分，第 1 维为噪声
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		label := 0
		if i%4 == 0 {
			label = 1
		}
		x[i] = []float64{float64(label)*5 + rng.Float64(), rng.NormFloat64()}
		y[i] = label
	}
	return x, y
}

// separable1D 单一可分特征
func separable1D(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		if i%4 == 0 {
			y[i] = 1
		}
		x[i] = []float64{float64(y[i])*5 + rng.Float64()}
	}
	return x, y
}

func TestTree_PureSplit(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}}
	y := []int{0, 0, 0, 1, 1, 1}
	w := []float64{1, 1, 1, 1, 1, 1}
	b := newTreeBuilder(x, y, w, 2, Params{MinSamplesSplit: 2, MinSamplesLeaf: 1}, rand.New(rand.NewSource(1)))
	b.build([]int{0, 1, 2, 3, 4, 5}, 0)

	tree := b.tree
	require.Len(t, tree.Nodes, 3)
	assert.Equal(t, 0, tree.Nodes[0].Feature)
	assert.InDelta(t, 6.0, tree.Nodes[0].Threshold, 1e-12)
	assert.Equal(t, []float64{1, 0}, tree.PredictRow([]float64{1.5}))
	assert.Equal(t, []float64{0, 1}, tree.PredictRow([]float64{11}))
	assert.Equal(t, 1, tree.Depth())
	assert.InDelta(t, 3.0, b.importance[0], 1e-12)
}

func TestTree_MaxDepthAndMinLeaf(t *testing.T) {
	x, y := separable(40, 3)
	w := make([]float64, len(y))
	for i := range w {
		w[i] = 1
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	b := newTreeBuilder(x, y, w, 2, Params{MaxDepth: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1}, rand.New(rand.NewSource(1)))
	b.build(idx, 0)
	assert.LessOrEqual(t, b.tree.Depth(), 1)

	b = newTreeBuilder(x, y, w, 2, Params{MinSamplesSplit: 2, MinSamplesLeaf: 30}, rand.New(rand.NewSource(1)))
	b.build(idx, 0)
	assert.Len(t, b.tree.Nodes, 1)
	assert.InDeltaSlice(t, []float64{0.75, 0.25}, b.tree.Nodes[0].Value, 1e-12)
}

func TestResolveClassWeights(t *testing.T) {
	y := []int{0, 0, 0, 1}
	w, err := ResolveClassWeights("", y, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, w)

	w, err = ResolveClassWeights("balanced", y, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4.0 / 6, 2}, w, 1e-12)

	w, err = ResolveClassWeights("1:15", y, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 15}, w)

	_, err = ResolveClassWeights("1:x", y, 2)
	assert.Error(t, err)
	_, err = ResolveClassWeights("1:2:3", y, 2)
	assert.Error(t, err)
}

func TestForest_FitPredict(t *testing.T) {
	x, y := separable(200, 1)
	f := New(Params{NEstimators: 20, MinSamplesSplit: 2, MinSamplesLeaf: 1, ClassWeight: "balanced", Seed: 42})
	f.Workers = 4
	require.NoError(t, f.Fit(context.Background(), x, y, 2))

	pred, err := f.Predict([][]float64{{0.5, 0}, {5.5, 0}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pred)

	p, err := f.PredictRow([]float64{5.5, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)

	require.Len(t, f.Importances, 2)
	assert.InDelta(t, 1.0, f.Importances[0]+f.Importances[1], 1e-9)
	assert.Greater(t, f.Importances[0], f.Importances[1])

	_, err = f.PredictRow([]float64{1})
	assert.Error(t, err)
}

func TestForest_Deterministic(t *testing.T) {
	x, y := separable(120, 2)
	fit := func(workers int) []byte {
		f := New(Params{NEstimators: 10, MaxDepth: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 7})
		f.Workers = workers
		require.NoError(t, f.Fit(context.Background(), x, y, 2))
		data, err := json.Marshal(f)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, fit(1), fit(8))
}

func TestForest_JSONRoundTrip(t *testing.T) {
	x, y := separable(80, 5)
	f := New(Params{NEstimators: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 1})
	require.NoError(t, f.Fit(context.Background(), x, y, 2))

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var loaded Forest
	require.NoError(t, json.Unmarshal(data, &loaded))

	want, err := f.PredictProba(x)
	require.NoError(t, err)
	got, err := loaded.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestForest_InvalidInput(t *testing.T) {
	f := New(Params{NEstimators: 0})
	assert.Error(t, f.Fit(context.Background(), [][]float64{{1}}, []int{0}, 2))
	f = New(Params{NEstimators: 1})
	assert.Error(t, f.Fit(context.Background(), nil, nil, 2))

	_, err := New(Params{}).PredictRow([]float64{1})
	assert.Error(t, err)
}

func TestGrid_Combinations(t *testing.T) {
	g := Grid{
		NEstimators:     []int{100, 200, 300},
		MaxDepth:        []int{10, 20, 0},
		MinSamplesSplit: []int{2, 5, 10},
		MinSamplesLeaf:  []int{1, 2, 4},
		ClassWeights:    []string{"balanced", "1:10", "1:15", "1:20"},
	}
	combos := g.Combinations(42)
	assert.Len(t, combos, 324)
	assert.Equal(t, Params{NEstimators: 100, MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1, ClassWeight: "balanced", Seed: 42}, combos[0])
	assert.Equal(t, 200, combos[1].NEstimators)
	assert.Equal(t, "1:20", combos[323].ClassWeight)
}

func TestGridSearch(t *testing.T) {
	x, y := separable1D(90, 11)
	grid := Grid{
		NEstimators:     []int{5},
		MaxDepth:        []int{1, 0},
		MinSamplesSplit: []int{2},
		MinSamplesLeaf:  []int{1},
		ClassWeights:    []string{"balanced", "1:10"},
	}
	res, err := GridSearch(context.Background(), x, y, 2, grid,
		SearchOptions{Folds: 3, Workers: 4, Seed: 42, PositiveClass: 1}, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 4)
	for _, c := range res.Candidates {
		assert.Len(t, c.FoldF1, 3)
	}
	assert.InDelta(t, 1.0, res.BestScore, 1e-9)
	// 所有组合都完全可分时取第一个
	assert.Equal(t, res.Candidates[0].Params, res.Best)
	require.NotNil(t, res.Model)

	pred, err := res.Model.Predict([][]float64{{5.2}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pred)
}

func TestGridSearch_EmptyGrid(t *testing.T) {
	x, y := separable(30, 1)
	_, err := GridSearch(context.Background(), x, y, 2, Grid{}, SearchOptions{Folds: 3}, zap.NewNop())
	assert.Error(t, err)
}
