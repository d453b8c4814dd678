package models

import (
	"fmt"
	"time"
)

// Family 模型族
type Family string

const (
	FamilyVitals Family = "vitals"
	FamilyFall   Family = "fall"
)

// RiskTier 生命体征风险等级
type RiskTier string

const (
	RiskNormal RiskTier = "Normal"
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// AllRiskTiers 全部风险等级（按优先级从高到低）
var AllRiskTiers = []RiskTier{RiskHigh, RiskMedium, RiskLow, RiskNormal}

// Reading 可穿戴设备上报的一条读数（来自外部服务层）
type Reading struct {
	SubjectID       string    `json:"user_id"`
	HeartRate       *float64  `json:"heart_rate"`
	SpO2            *float64  `json:"spo2"`
	BodyTemperature *float64  `json:"body_temperature,omitempty"` // 可选
	AccelerometerX  *float64  `json:"accelerometer_x"`
	AccelerometerY  *float64  `json:"accelerometer_y"`
	AccelerometerZ  *float64  `json:"accelerometer_z"`
	GyroscopeX      *float64  `json:"gyroscope_x"`
	GyroscopeY      *float64  `json:"gyroscope_y"`
	GyroscopeZ      *float64  `json:"gyroscope_z"`
	Timestamp       time.Time `json:"timestamp"`
}

// Validate 校验必需字段，缺失时返回 ErrInferenceInput
func (r *Reading) Validate() error {
	required := []struct {
		name  string
		value *float64
	}{
		{"heart_rate", r.HeartRate},
		{"spo2", r.SpO2},
		{"accelerometer_x", r.AccelerometerX},
		{"accelerometer_y", r.AccelerometerY},
		{"accelerometer_z", r.AccelerometerZ},
		{"gyroscope_x", r.GyroscopeX},
		{"gyroscope_y", r.GyroscopeY},
		{"gyroscope_z", r.GyroscopeZ},
	}
	for _, f := range required {
		if f.value == nil {
			return fmt.Errorf("%w: missing required field: %s", ErrInferenceInput, f.name)
		}
	}
	return nil
}

// VitalsSample 单个生命体征样本
type VitalsSample struct {
	HeartRate       float64 `json:"heart_rate"`
	SpO2            float64 `json:"spo2"`
	BodyTemperature float64 `json:"body_temperature"`
	Timestamp       int64   `json:"timestamp"`
}

// Vector 按训练特征顺序返回 [heart_rate, spo2, body_temperature]
func (s VitalsSample) Vector() []float64 {
	return []float64{s.HeartRate, s.SpO2, s.BodyTemperature}
}

// MotionSample 单个运动样本（加速度计 + 陀螺仪）
type MotionSample struct {
	AccX  float64 `json:"acc_x"`
	AccY  float64 `json:"acc_y"`
	AccZ  float64 `json:"acc_z"`
	GyroX float64 `json:"gyro_x"`
	GyroY float64 `json:"gyro_y"`
	GyroZ float64 `json:"gyro_z"`
	Label int     `json:"label"` // 0 或 1
}

// VitalsSample 从读数中提取生命体征样本（缺失体温时使用默认体温）
func (r *Reading) VitalsSample(defaultTemperature float64) VitalsSample {
	temp := defaultTemperature
	if r.BodyTemperature != nil {
		temp = *r.BodyTemperature
	}
	return VitalsSample{
		HeartRate:       deref(r.HeartRate),
		SpO2:            deref(r.SpO2),
		BodyTemperature: temp,
		Timestamp:       r.Timestamp.Unix(),
	}
}

// MotionSample 从读数中提取运动样本
func (r *Reading) MotionSample() MotionSample {
	return MotionSample{
		AccX:  deref(r.AccelerometerX),
		AccY:  deref(r.AccelerometerY),
		AccZ:  deref(r.AccelerometerZ),
		GyroX: deref(r.GyroscopeX),
		GyroY: deref(r.GyroscopeY),
		GyroZ: deref(r.GyroscopeZ),
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float64Ptr 返回 float64 指针
func Float64Ptr(v float64) *float64 {
	return &v
}
