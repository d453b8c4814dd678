package features

import (
	"math"

	"wisefido-anomaly/internal/models"
)

// FallFeatureNames 跌倒窗口特征列（顺序固定，训练与评分共用）
var FallFeatureNames = []string{
	"SMV_Acc_mean", "SMV_Acc_std", "SMV_Acc_min", "SMV_Acc_max", "SMV_Acc_median", "SMV_Acc_iqr",
	"xAcc_mean", "xAcc_std", "xAcc_max_abs_diff",
	"yAcc_mean", "yAcc_std", "yAcc_max_abs_diff",
	"zAcc_mean", "zAcc_std", "zAcc_max_abs_diff",
	"SMV_Gyro_mean", "SMV_Gyro_std", "SMV_Gyro_min", "SMV_Gyro_max", "SMV_Gyro_median", "SMV_Gyro_iqr",
	"xGyro_mean", "xGyro_std",
	"yGyro_mean", "yGyro_std",
	"zGyro_mean", "zGyro_std",
}

// FallFeatureCount 跌倒特征维度
var FallFeatureCount = len(FallFeatureNames)

// FallWindows 窗口化后的跌倒特征矩阵
type FallWindows struct {
	Features [][]float64 // 每行一个窗口，列顺序见 FallFeatureNames
	Labels   []int       // 窗口中点样本的标签
	Starts   []int       // 窗口起始下标
}

// ExtractFallWindows 滑动窗口提取跌倒特征
//
// 样本数不足一个窗口时返回空结果；所有特征都缺失的窗口被丢弃。
func ExtractFallWindows(samples []models.MotionSample, size, step int) (*FallWindows, error) {
	starts, err := WindowStarts(len(samples), size, step)
	if err != nil {
		return nil, err
	}

	out := &FallWindows{
		Features: make([][]float64, 0, len(starts)),
		Labels:   make([]int, 0, len(starts)),
		Starts:   make([]int, 0, len(starts)),
	}
	for _, i := range starts {
		window := samples[i : i+size]
		vec := FallWindowFeatures(window)
		if allNaN(vec) {
			continue
		}
		out.Features = append(out.Features, vec)
		out.Labels = append(out.Labels, window[size/2].Label)
		out.Starts = append(out.Starts, i)
	}
	return out, nil
}

// FallWindowFeatures 计算单个窗口的特征向量
func FallWindowFeatures(window []models.MotionSample) []float64 {
	n := len(window)
	accX, accY, accZ := make([]float64, n), make([]float64, n), make([]float64, n)
	gyroX, gyroY, gyroZ := make([]float64, n), make([]float64, n), make([]float64, n)
	smvAcc, smvGyro := make([]float64, n), make([]float64, n)

	for i, s := range window {
		accX[i], accY[i], accZ[i] = s.AccX, s.AccY, s.AccZ
		gyroX[i], gyroY[i], gyroZ[i] = s.GyroX, s.GyroY, s.GyroZ
		smvAcc[i] = Magnitude(s.AccX, s.AccY, s.AccZ)
		smvGyro[i] = Magnitude(s.GyroX, s.GyroY, s.GyroZ)
	}

	vec := make([]float64, 0, FallFeatureCount)

	acc := summarize(smvAcc)
	vec = append(vec, acc.mean, acc.std, acc.min, acc.max, acc.median, acc.iqr)
	for _, axis := range [][]float64{accX, accY, accZ} {
		mean, std := meanStd(axis)
		vec = append(vec, mean, std, maxAbsDiff(axis))
	}

	gyro := summarize(smvGyro)
	vec = append(vec, gyro.mean, gyro.std, gyro.min, gyro.max, gyro.median, gyro.iqr)
	for _, axis := range [][]float64{gyroX, gyroY, gyroZ} {
		mean, std := meanStd(axis)
		vec = append(vec, mean, std)
	}

	return vec
}

func allNaN(vec []float64) bool {
	for _, v := range vec {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
