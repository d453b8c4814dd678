package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// summary 一组值的描述统计（跳过 NaN）
type summary struct {
	mean, std, min, max, median, iqr float64
}

func nanSummary() summary {
	nan := math.NaN()
	return summary{nan, nan, nan, nan, nan, nan}
}

// summarize 计算均值、样本标准差、最小、最大、中位数和四分位距
func summarize(values []float64) summary {
	valid := dropNaN(values)
	if len(valid) == 0 {
		return nanSummary()
	}
	sorted := append([]float64(nil), valid...)
	sort.Float64s(sorted)
	return summary{
		mean:   stat.Mean(valid, nil),
		std:    sampleStdDev(valid),
		min:    floats.Min(valid),
		max:    floats.Max(valid),
		median: quantileSorted(sorted, 0.5),
		iqr:    quantileSorted(sorted, 0.75) - quantileSorted(sorted, 0.25),
	}
}

// meanStd 均值与样本标准差（跳过 NaN）
func meanStd(values []float64) (float64, float64) {
	valid := dropNaN(values)
	if len(valid) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.Mean(valid, nil), sampleStdDev(valid)
}

// sampleStdDev 样本标准差（n-1），单个值时为 NaN
func sampleStdDev(valid []float64) float64 {
	if len(valid) < 2 {
		return math.NaN()
	}
	return stat.StdDev(valid, nil)
}

// maxAbsDiff 相邻样本差值绝对值的最大值（跳过含 NaN 的差值）
func maxAbsDiff(values []float64) float64 {
	best := math.NaN()
	for i := 1; i < len(values); i++ {
		d := math.Abs(values[i] - values[i-1])
		if math.IsNaN(d) {
			continue
		}
		if math.IsNaN(best) || d > best {
			best = d
		}
	}
	return best
}

// quantileSorted 对已排序数据做顺序统计量之间的线性插值
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Magnitude 三轴读数的欧氏范数（SMV）
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}
