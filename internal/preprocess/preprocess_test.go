package preprocess

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-anomaly/internal/models"
)

func TestStandardScaler_RoundTrip(t *testing.T) {
	rows := [][]float64{
		{70, 98, 36.5},
		{110, 88, 37.9},
		{55, 95, 36.1},
		{90, 91, 36.8},
	}
	s := NewStandardScaler()
	require.NoError(t, s.Fit(rows))

	for _, row := range rows {
		scaled, err := s.TransformRow(row)
		require.NoError(t, err)
		back, err := s.InverseTransformRow(scaled)
		require.NoError(t, err)
		assert.InDeltaSlice(t, row, back, 1e-9)
	}

	scaled, err := s.Transform(rows)
	require.NoError(t, err)
	for j := 0; j < 3; j++ {
		var sum float64
		for _, r := range scaled {
			sum += r[j]
		}
		assert.InDelta(t, 0, sum/4, 1e-9)
	}
}

func TestStandardScaler_ConstantColumn(t *testing.T) {
	s := NewStandardScaler()
	require.NoError(t, s.Fit([][]float64{{1, 5}, {3, 5}}))
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)

	out, err := s.TransformRow([]float64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, out)
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScaler()
	_, err := s.TransformRow([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.Error(t, s.Fit(nil))

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err = s.TransformRow([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestStandardScaler_JSON(t *testing.T) {
	s := NewStandardScaler()
	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 6}}))
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var loaded StandardScaler
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, s.Mean, loaded.Mean)
	assert.Equal(t, s.Scale, loaded.Scale)
}

func TestLabelEncoder(t *testing.T) {
	var e LabelEncoder[string]
	e.Fit([]string{"Normal", "High", "Low", "Normal", "Medium"})
	assert.Equal(t, []string{"High", "Low", "Medium", "Normal"}, e.Classes)
	assert.Equal(t, 4, e.Len())

	codes, err := e.Encode([]string{"Normal", "High"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0}, codes)

	c, err := e.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, "Medium", c)

	_, err = e.Encode([]string{"Unknown"})
	assert.Error(t, err)
	_, err = e.Decode(9)
	assert.Error(t, err)
}

func labelsWith(counts map[int]int) []int {
	var out []int
	for c := 0; c < 10; c++ {
		for i := 0; i < counts[c]; i++ {
			out = append(out, c)
		}
	}
	return out
}

func TestStratifiedSplit(t *testing.T) {
	labels := labelsWith(map[int]int{0: 80, 1: 20})
	train, test, err := StratifiedSplit(labels, 0.3, 42)
	require.NoError(t, err)
	assert.Len(t, test, 30)
	assert.Len(t, train, 70)

	testCounts := ClassCounts(pick(labels, test))
	assert.Equal(t, 24, testCounts[0])
	assert.Equal(t, 6, testCounts[1])

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i], "index %d assigned twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(labels))

	train2, test2, err := StratifiedSplit(labels, 0.3, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestStratifiedSplit_TooFewMembers(t *testing.T) {
	_, _, err := StratifiedSplit(labelsWith(map[int]int{0: 10, 1: 1}), 0.2, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientDiversity)

	_, _, err = StratifiedSplit(labelsWith(map[int]int{0: 10}), 1.5, 1)
	assert.Error(t, err)
}

func TestShuffleSplit(t *testing.T) {
	train, test, err := ShuffleSplit(10, 0.2, 7)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, append(append([]int(nil), train...), test...))

	_, _, err = ShuffleSplit(1, 0.2, 7)
	assert.ErrorIs(t, err, models.ErrInsufficientDiversity)
}

func TestStratifiedKFold(t *testing.T) {
	labels := labelsWith(map[int]int{0: 30, 1: 9})
	folds, err := StratifiedKFold(labels, 3, 7)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	total := 0
	for _, f := range folds {
		assert.Equal(t, len(labels), len(f.Train)+len(f.Test))
		assert.Equal(t, 3, ClassCounts(pick(labels, f.Test))[1])
		total += len(f.Test)
	}
	assert.Equal(t, len(labels), total)

	_, err = StratifiedKFold(labels, 1, 7)
	assert.Error(t, err)
}

func TestBalancedClassWeights(t *testing.T) {
	w := BalancedClassWeights(labelsWith(map[int]int{0: 75, 1: 25}))
	assert.InDelta(t, 100.0/150, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)
	assert.Empty(t, BalancedClassWeights(nil))
}

func TestSMOTE_BalancesMinority(t *testing.T) {
	labels := labelsWith(map[int]int{0: 40, 1: 8})
	x := make([][]float64, len(labels))
	for i, l := range labels {
		x[i] = []float64{float64(i), float64(l) * 10}
	}

	res, err := SMOTE(x, labels, 42)
	require.NoError(t, err)
	counts := ClassCounts(res.Y)
	assert.Equal(t, 40, counts[0])
	assert.Equal(t, 40, counts[1])
	assert.Equal(t, 5, res.K)
	assert.Equal(t, 32, res.Generated[1])

	// 原始样本保持不变
	assert.Equal(t, x, res.X[:len(x)])
	// 合成样本位于少数类样本的凸包内
	for _, s := range res.X[len(x):] {
		assert.InDelta(t, 10, s[1], 1e-9)
		assert.GreaterOrEqual(t, s[0], 40.0)
		assert.LessOrEqual(t, s[0], 47.0)
	}
}

func TestSMOTE_SmallMinorityCapsNeighbors(t *testing.T) {
	labels := labelsWith(map[int]int{0: 10, 1: 3})
	x := make([][]float64, len(labels))
	for i := range x {
		x[i] = []float64{float64(i)}
	}
	res, err := SMOTE(x, labels, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.K)
	assert.Equal(t, 10, ClassCounts(res.Y)[1])
}

func TestSMOTE_Inapplicable(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}}
	_, err := SMOTE(x, []int{0, 0, 0, 1}, 1)
	assert.True(t, errors.Is(err, models.ErrResamplingInapplicable))

	_, err = SMOTE(x, []int{0, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, models.ErrResamplingInapplicable)
}

func TestSubset(t *testing.T) {
	xs, ys := Subset([][]float64{{1}, {2}, {3}}, []int{0, 1, 0}, []int{2, 0})
	assert.Equal(t, [][]float64{{3}, {1}}, xs)
	assert.Equal(t, []int{0, 0}, ys)
}

func pick(labels []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}
