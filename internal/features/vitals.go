package features

import (
	"wisefido-anomaly/internal/models"
)

// VitalsFeatureNames 生命体征序列的特征列
var VitalsFeatureNames = []string{"Heart Rate", "Oxygen Saturation", "Body Temperature"}

// VitalsMatrix 把样本转换为 [heart_rate, spo2, body_temperature] 行矩阵
func VitalsMatrix(samples []models.VitalsSample) [][]float64 {
	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = s.Vector()
	}
	return rows
}

// BuildSequences 以步长 1 构造定长序列
//
// 序列长度 L 时起点为 0..L-timeSteps-1，共 L-timeSteps 个序列；
// 每个序列的标签取最后一个样本的标签。L <= timeSteps 时没有序列。
func BuildSequences(rows [][]float64, labels []int, timeSteps int) ([][][]float64, []int) {
	n := len(rows) - timeSteps
	if timeSteps <= 0 || n <= 0 {
		return nil, nil
	}
	xs := make([][][]float64, n)
	ys := make([]int, n)
	for i := 0; i < n; i++ {
		xs[i] = rows[i : i+timeSteps]
		ys[i] = labels[i+timeSteps-1]
	}
	return xs, ys
}
