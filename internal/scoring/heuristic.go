package scoring

import (
	"fmt"
	"math"

	"wisefido-anomaly/internal/features"
	"wisefido-anomaly/internal/labels"
	"wisefido-anomaly/internal/models"
)

const (
	gravity        = 9.8
	maxProbability = 0.95
)

// FallHeuristic 单个运动样本的跌倒概率
//
// 加速度模长偏离重力越多、角速度模长越大，概率越高：
// min(0.95, |‖acc‖-9.8|·0.15 + ‖gyro‖·0.01)。
func FallHeuristic(s models.MotionSample) float64 {
	accMag := features.Magnitude(s.AccX, s.AccY, s.AccZ)
	gyroMag := features.Magnitude(s.GyroX, s.GyroY, s.GyroZ)
	return math.Min(maxProbability, math.Abs(accMag-gravity)*0.15+gyroMag*0.01)
}

// VitalsHeuristic 心率和血氧偏离正常范围的风险概率
//
// 心动过缓 (50-hr)·0.05，心动过速 (hr-100)·0.025，低血氧 (95-spo2)·0.1，
// 血氧风险权重 1.5，总和上限 0.95。
func VitalsHeuristic(heartRate, spo2 float64) float64 {
	var hrRisk float64
	switch {
	case heartRate < 50:
		hrRisk = (50 - heartRate) * 0.05
	case heartRate > 100:
		hrRisk = (heartRate - 100) * 0.025
	}
	var spo2Risk float64
	if spo2 < 95 {
		spo2Risk = (95 - spo2) * 0.1
	}
	return math.Min(maxProbability, hrRisk+spo2Risk*1.5)
}

// HeuristicModel 只使用最新一个样本的规则模型，没有训练产物时使用
type HeuristicModel struct {
	family models.Family
}

// NewHeuristicModel 创建指定模型族的启发式模型
func NewHeuristicModel(family models.Family) *HeuristicModel {
	return &HeuristicModel{family: family}
}

// HeuristicClasses 启发式模型输出的类别
var HeuristicClasses = map[models.Family][]string{
	models.FamilyFall:   labels.FallClassNames,
	models.FamilyVitals: {"normal", "risk"},
}

func (m *HeuristicModel) Family() models.Family      { return m.family }
func (m *HeuristicModel) Source() models.ModelSource { return models.SourceHeuristic }
func (m *HeuristicModel) Classes() []string          { return HeuristicClasses[m.family] }

// PredictProba 返回 [1-p, p]
func (m *HeuristicModel) PredictProba(buf Buffer) ([]float64, error) {
	var p float64
	switch m.family {
	case models.FamilyFall:
		if len(buf.Motion) == 0 {
			return nil, fmt.Errorf("%w: no motion sample", models.ErrInferenceInput)
		}
		p = FallHeuristic(buf.Motion[len(buf.Motion)-1])
	case models.FamilyVitals:
		if len(buf.Vitals) == 0 {
			return nil, fmt.Errorf("%w: no vitals sample", models.ErrInferenceInput)
		}
		last := buf.Vitals[len(buf.Vitals)-1]
		p = VitalsHeuristic(last.HeartRate, last.SpO2)
	default:
		return nil, fmt.Errorf("unknown model family %q", m.family)
	}
	return []float64{1 - p, p}, nil
}
