package features

import (
	"math"
)

// FillMissing 按列填充缺失值：先向后填充，再向前填充，剩余置 0（原地修改）
func FillMissing(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	for c := 0; c < cols; c++ {
		// 向后填充：用下方最近的有效值
		next := math.NaN()
		for r := len(rows) - 1; r >= 0; r-- {
			if math.IsNaN(rows[r][c]) {
				rows[r][c] = next
			} else {
				next = rows[r][c]
			}
		}
		// 向前填充：用上方最近的有效值
		prev := math.NaN()
		for r := 0; r < len(rows); r++ {
			if math.IsNaN(rows[r][c]) {
				rows[r][c] = prev
			} else {
				prev = rows[r][c]
			}
		}
		for r := range rows {
			if math.IsNaN(rows[r][c]) {
				rows[r][c] = 0
			}
		}
	}
}

// ReplaceNaN 把单个向量中的 NaN 替换为 0（评分时单窗口无法跨行填充）
func ReplaceNaN(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		if math.IsNaN(v) {
			continue
		}
		out[i] = v
	}
	return out
}
