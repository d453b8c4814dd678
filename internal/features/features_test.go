package features

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-anomaly/internal/models"
)

func motionSeries(n int) []models.MotionSample {
	samples := make([]models.MotionSample, n)
	for i := range samples {
		f := float64(i)
		samples[i] = models.MotionSample{
			AccX: math.Sin(f / 5), AccY: math.Cos(f / 7), AccZ: 9.8 + 0.1*f,
			GyroX: f, GyroY: -f, GyroZ: 0.5 * f,
			Label: i % 2,
		}
	}
	return samples
}

func TestWindowCount(t *testing.T) {
	tests := []struct {
		length, size, step, want int
	}{
		{200, 75, 37, 4},
		{75, 75, 37, 1},
		{74, 75, 37, 0},
		{0, 75, 37, 0},
		{10, 3, 1, 8},
	}
	for _, tt := range tests {
		got := WindowCount(tt.length, tt.size, tt.step)
		assert.Equal(t, tt.want, got, "L=%d W=%d S=%d", tt.length, tt.size, tt.step)

		starts, err := WindowStarts(tt.length, tt.size, tt.step)
		require.NoError(t, err)
		assert.Len(t, starts, tt.want)
	}
}

func TestWindowStarts_InvalidParameters(t *testing.T) {
	_, err := WindowStarts(100, 0, 10)
	assert.Error(t, err)
	_, err = WindowStarts(100, 10, 0)
	assert.Error(t, err)
}

func TestExtractFallWindows_ShapeAndLabels(t *testing.T) {
	samples := motionSeries(200)
	out, err := ExtractFallWindows(samples, 75, 37)
	require.NoError(t, err)

	require.Len(t, out.Features, 4)
	assert.Equal(t, []int{0, 37, 74, 111}, out.Starts)
	for i, row := range out.Features {
		assert.Len(t, row, FallFeatureCount)
		assert.Equal(t, samples[out.Starts[i]+75/2].Label, out.Labels[i])
	}
	assert.Equal(t, 27, FallFeatureCount)
}

func TestExtractFallWindows_ShortSeries(t *testing.T) {
	out, err := ExtractFallWindows(motionSeries(10), 75, 37)
	require.NoError(t, err)
	assert.Empty(t, out.Features)
}

func TestExtractFallWindows_Idempotent(t *testing.T) {
	samples := motionSeries(150)
	first, err := ExtractFallWindows(samples, 75, 37)
	require.NoError(t, err)
	second, err := ExtractFallWindows(samples, 75, 37)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("extraction not deterministic (-first +second):\n%s", diff)
	}
}

func TestExtractFallWindows_DropsAllMissingWindows(t *testing.T) {
	nan := math.NaN()
	samples := make([]models.MotionSample, 4)
	for i := range samples {
		samples[i] = models.MotionSample{AccX: nan, AccY: nan, AccZ: nan, GyroX: nan, GyroY: nan, GyroZ: nan}
	}
	out, err := ExtractFallWindows(samples, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, out.Features)
}

func TestFallWindowFeatures_Values(t *testing.T) {
	window := []models.MotionSample{
		{AccX: 3, AccY: 4, AccZ: 0, GyroX: 0, GyroY: 0, GyroZ: 1},
		{AccX: 6, AccY: 8, AccZ: 0, GyroX: 0, GyroY: 0, GyroZ: 2},
		{AccX: 0, AccY: 0, AccZ: 5, GyroX: 0, GyroY: 0, GyroZ: 3},
	}
	vec := FallWindowFeatures(window)
	require.Len(t, vec, FallFeatureCount)

	// SMV_Acc = [5, 10, 5]
	assert.InDelta(t, 20.0/3, vec[0], 1e-9)
	assert.InDelta(t, math.Sqrt(25.0/3), vec[1], 1e-9)
	assert.Equal(t, 5.0, vec[2])
	assert.Equal(t, 10.0, vec[3])
	assert.Equal(t, 5.0, vec[4])
	assert.InDelta(t, 2.5, vec[5], 1e-9) // q75=7.5, q25=5
	// xAcc max_abs_diff
	assert.Equal(t, 6.0, vec[8])
	// SMV_Gyro = [1, 2, 3]
	assert.InDelta(t, 2.0, vec[15], 1e-9)
	assert.InDelta(t, 1.0, vec[16], 1e-9)
	assert.InDelta(t, 1.0, vec[20], 1e-9)
}

func TestQuantileSorted(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, quantileSorted(sorted, 0.25), 1e-12)
	assert.InDelta(t, 2.5, quantileSorted(sorted, 0.5), 1e-12)
	assert.InDelta(t, 3.25, quantileSorted(sorted, 0.75), 1e-12)
	assert.True(t, math.IsNaN(quantileSorted(nil, 0.5)))
}

func TestFillMissing(t *testing.T) {
	nan := math.NaN()
	rows := [][]float64{
		{nan, 1, nan},
		{2, nan, nan},
		{nan, nan, nan},
		{3, 4, nan},
		{nan, nan, nan},
	}
	FillMissing(rows)
	want := [][]float64{
		{2, 1, 0},
		{2, 4, 0},
		{3, 4, 0},
		{3, 4, 0},
		{3, 4, 0},
	}
	assert.Equal(t, want, rows)
}

func TestReplaceNaN(t *testing.T) {
	got := ReplaceNaN([]float64{1, math.NaN(), 3})
	assert.Equal(t, []float64{1, 0, 3}, got)
}

func TestBuildSequences(t *testing.T) {
	rows := make([][]float64, 8)
	labels := make([]int, 8)
	for i := range rows {
		rows[i] = []float64{float64(i), 0, 0}
		labels[i] = i
	}

	xs, ys := BuildSequences(rows, labels, 3)
	require.Len(t, xs, 5)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, ys)
	assert.Equal(t, 1.0, xs[1][0][0])
	assert.Len(t, xs[4], 3)

	xs, ys = BuildSequences(rows[:3], labels[:3], 3)
	assert.Nil(t, xs)
	assert.Nil(t, ys)
}

func TestVitalsMatrix(t *testing.T) {
	rows := VitalsMatrix([]models.VitalsSample{{HeartRate: 70, SpO2: 98, BodyTemperature: 36.6}})
	assert.Equal(t, [][]float64{{70, 98, 36.6}}, rows)
}
