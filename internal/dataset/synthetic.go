package dataset

import (
	"math"
	"math/rand"
	"strconv"

	"wisefido-anomaly/internal/labels"
)

// 合成数据集参数
const (
	SyntheticVitalsRows = 2000
	SyntheticFallRows   = 10000
	syntheticFallRatio  = 0.05
)

// SyntheticVitals 生成与真实数据集同列结构的生命体征数据
//
// 心率 [50,120) 整数，血氧 [90,100] 整数，体温 N(36.8, 0.5) 保留一位小数并截断到 [35, 41]。
func SyntheticVitals(n int, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]string, n)
	for i := range rows {
		hr := 50 + rng.Intn(70)
		spo2 := 90 + rng.Intn(11)
		temp := math.Round((36.8+0.5*rng.NormFloat64())*10) / 10
		temp = math.Min(math.Max(temp, 35.0), 41.0)
		rows[i] = []string{strconv.Itoa(hr), strconv.Itoa(spo2), formatFloat(temp)}
	}
	t := NewTable(VitalsColumns, rows)
	t.Synthetic = true
	return t
}

// SyntheticFall 生成带跌倒事件的加速度计/陀螺仪数据
//
// 基线噪声为 N(0,1)·[3,3,3,80,80,80]，zAcc 减去重力。随机插入 n·5% 个跌倒事件，
// 每个事件覆盖 samplingRate/2+1 行，加速度各轴乘以 U(3,7)，陀螺仪各轴乘以 U(2,6)。
func SyntheticFall(n, samplingRate int, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	scale := []float64{3, 3, 3, 80, 80, 80}

	values := make([][]float64, n)
	label := make([]int, n)
	for i := range values {
		v := make([]float64, len(scale))
		for j, s := range scale {
			v[j] = rng.NormFloat64() * s
		}
		v[2] -= 9.8
		values[i] = v
	}

	eventLen := samplingRate / 2
	events := int(float64(n) * syntheticFallRatio)
	if n > eventLen {
		for e := 0; e < events; e++ {
			start := rng.Intn(n - eventLen)
			end := min(start+eventLen, n-1)
			for i := start; i <= end; i++ {
				label[i] = 1
			}
			for j := 0; j < 3; j++ {
				f := 3 + 4*rng.Float64()
				for i := start; i <= end; i++ {
					values[i][j] *= f
				}
			}
			for j := 3; j < 6; j++ {
				f := 2 + 4*rng.Float64()
				for i := start; i <= end; i++ {
					values[i][j] *= f
				}
			}
		}
	}

	columns := append(append([]string(nil), MotionColumns...), labels.FallLabelColumn)
	rows := make([][]string, n)
	for i, v := range values {
		row := make([]string, 0, len(columns))
		for _, x := range v {
			row = append(row, formatFloat(x))
		}
		rows[i] = append(row, strconv.Itoa(label[i]))
	}
	t := NewTable(columns, rows)
	t.Synthetic = true
	return t
}
