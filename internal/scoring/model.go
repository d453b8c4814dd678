// Package scoring 在线评分：模型能力接口、启发式与训练产物两种实现、不可变评分上下文
package scoring

import (
	"errors"

	"wisefido-anomaly/internal/models"
)

// ErrInsufficientHistory 缓冲中的样本不足以构成训练时的窗口
var ErrInsufficientHistory = errors.New("insufficient reading history")

// Model 概率预测能力
//
// PredictProba 接收按时间升序的样本缓冲，返回与 Classes 对齐的概率分布。
// 实现必须是只读的，可被多个协程同时调用。
type Model interface {
	Family() models.Family
	Source() models.ModelSource
	Classes() []string
	PredictProba(buf Buffer) ([]float64, error)
}

// Buffer 单个受试者最近的样本（按时间升序，最后一个为最新）
type Buffer struct {
	Vitals []models.VitalsSample
	Motion []models.MotionSample
}

// BufferFromReadings 由读数构造缓冲，readings 按时间升序
func BufferFromReadings(readings []*models.Reading, defaultTemperature float64) Buffer {
	buf := Buffer{
		Vitals: make([]models.VitalsSample, 0, len(readings)),
		Motion: make([]models.MotionSample, 0, len(readings)),
	}
	for _, r := range readings {
		buf.Vitals = append(buf.Vitals, r.VitalsSample(defaultTemperature))
		buf.Motion = append(buf.Motion, r.MotionSample())
	}
	return buf
}
