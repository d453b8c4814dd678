// Package labels 把原始测量值或活动标签转换为训练用的类别标签
package labels

import (
	"strings"

	"wisefido-anomaly/internal/models"
)

// 风险等级阈值
const (
	highHeartRateMax   = 100.0
	highHeartRateMin   = 50.0
	highSpO2Min        = 90.0
	mediumHeartRateMax = 90.0
	mediumHeartRateMin = 60.0
	mediumSpO2Min      = 94.0
	lowTemperatureMax  = 37.5
	lowTemperatureMin  = 36.0
)

// DeriveRiskTier 根据未缩放的生命体征计算风险等级
//
// 按优先级依次判断，命中即返回：
//  1. High:   heart_rate > 100 或 < 50，或 spo2 < 90
//  2. Medium: heart_rate > 90 或 < 60，或 spo2 < 94
//  3. Low:    body_temperature > 37.5 或 < 36.0
//  4. Normal: 其他
//
// NaN 参与的比较恒为 false，因此函数对任意输入都有定义。
func DeriveRiskTier(heartRate, spo2, bodyTemperature float64) models.RiskTier {
	switch {
	case heartRate > highHeartRateMax || heartRate < highHeartRateMin || spo2 < highSpO2Min:
		return models.RiskHigh
	case heartRate > mediumHeartRateMax || heartRate < mediumHeartRateMin || spo2 < mediumSpO2Min:
		return models.RiskMedium
	case bodyTemperature > lowTemperatureMax || bodyTemperature < lowTemperatureMin:
		return models.RiskLow
	default:
		return models.RiskNormal
	}
}

// RiskTiers 为样本序列逐个计算风险等级
func RiskTiers(samples []models.VitalsSample) []models.RiskTier {
	tiers := make([]models.RiskTier, len(samples))
	for i, s := range samples {
		tiers[i] = DeriveRiskTier(s.HeartRate, s.SpO2, s.BodyTemperature)
	}
	return tiers
}

// RiskTierCounts 统计各风险等级的样本数
func RiskTierCounts(tiers []models.RiskTier) map[models.RiskTier]int {
	counts := make(map[models.RiskTier]int)
	for _, t := range tiers {
		counts[t]++
	}
	return counts
}

// FallLabelFromActivity 活动标签包含 "FALL"（不区分大小写）时返回 1
func FallLabelFromActivity(activity string) int {
	if strings.Contains(strings.ToUpper(activity), "FALL") {
		return 1
	}
	return 0
}

// FallClassNames 跌倒模型的类别名，下标即标签值
var FallClassNames = []string{"no_fall", "fall"}

// 跌倒数据集的标签列
const (
	FallLabelColumn    = "label"
	FallActivityColumn = "Activity"
)

// LabelSource 描述跌倒标签的来源列
type LabelSource int

const (
	LabelFromColumn LabelSource = iota
	LabelFromActivity
)

// ResolveFallLabelSource 判断跌倒标签来源：优先 label 列，其次 Activity 列
//
// 两者都不存在时返回 *models.SchemaError。
func ResolveFallLabelSource(columns []string) (LabelSource, error) {
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c] = true
	}
	if has[FallLabelColumn] {
		return LabelFromColumn, nil
	}
	if has[FallActivityColumn] {
		return LabelFromActivity, nil
	}
	return 0, &models.SchemaError{Missing: []string{FallLabelColumn, FallActivityColumn}}
}
