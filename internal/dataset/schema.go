package dataset

import (
	"math"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/labels"
	"wisefido-anomaly/internal/models"
)

// 生命体征数据集列名
const (
	ColHeartRate       = "Heart Rate"
	ColSpO2            = "Oxygen Saturation"
	ColBodyTemperature = "Body Temperature"
	ColTimestamp       = "Timestamp"
)

// VitalsColumns 生命体征必需列
var VitalsColumns = []string{ColHeartRate, ColSpO2, ColBodyTemperature}

// MotionColumns 跌倒数据集必需的原始传感器列
var MotionColumns = []string{"xAcc", "yAcc", "zAcc", "xGyro", "yGyro", "zGyro"}

// VitalsSamples 把表格转换为按行顺序排列的生命体征样本
//
// 三个生命体征中任一缺失的行被丢弃；没有 Timestamp 列时用行号作为时间序号。
func VitalsSamples(t *Table, logger *zap.Logger) ([]models.VitalsSample, error) {
	if err := t.Require(VitalsColumns...); err != nil {
		return nil, err
	}
	hasTS := t.Has(ColTimestamp)

	samples := make([]models.VitalsSample, 0, t.Len())
	dropped := 0
	for i := 0; i < t.Len(); i++ {
		s := models.VitalsSample{
			HeartRate:       t.Float(i, ColHeartRate),
			SpO2:            t.Float(i, ColSpO2),
			BodyTemperature: t.Float(i, ColBodyTemperature),
			Timestamp:       int64(i),
		}
		if math.IsNaN(s.HeartRate) || math.IsNaN(s.SpO2) || math.IsNaN(s.BodyTemperature) {
			dropped++
			continue
		}
		if hasTS {
			if ts := t.Float(i, ColTimestamp); !math.IsNaN(ts) {
				s.Timestamp = int64(ts)
			}
		}
		samples = append(samples, s)
	}
	if dropped > 0 {
		logger.Warn("Dropped vitals rows with missing values", zap.Int("dropped", dropped))
	}
	return samples, nil
}

// MotionSamples 把表格转换为运动样本，标签取 label 列或由 Activity 列推导
//
// 传感器缺失值保留为 NaN，由特征统计跳过。
func MotionSamples(t *Table) ([]models.MotionSample, error) {
	if err := t.Require(MotionColumns...); err != nil {
		return nil, err
	}
	source, err := labels.ResolveFallLabelSource(t.Columns)
	if err != nil {
		return nil, err
	}

	samples := make([]models.MotionSample, t.Len())
	for i := range samples {
		s := models.MotionSample{
			AccX:  t.Float(i, MotionColumns[0]),
			AccY:  t.Float(i, MotionColumns[1]),
			AccZ:  t.Float(i, MotionColumns[2]),
			GyroX: t.Float(i, MotionColumns[3]),
			GyroY: t.Float(i, MotionColumns[4]),
			GyroZ: t.Float(i, MotionColumns[5]),
		}
		switch source {
		case labels.LabelFromColumn:
			if v := t.Float(i, labels.FallLabelColumn); !math.IsNaN(v) && v != 0 {
				s.Label = 1
			}
		case labels.LabelFromActivity:
			s.Label = labels.FallLabelFromActivity(t.String(i, labels.FallActivityColumn))
		}
		samples[i] = s
	}
	return samples, nil
}
