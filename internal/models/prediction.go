package models

// RiskLevel 对外输出的风险级别
type RiskLevel string

const (
	RiskLevelNormal   RiskLevel = "NORMAL"
	RiskLevelElevated RiskLevel = "ELEVATED"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// ModelSource 预测使用的模型来源
type ModelSource string

const (
	SourceHeuristic ModelSource = "heuristic"
	SourceTrained   ModelSource = "trained"
)

// FallDetection 跌倒检测结果
type FallDetection struct {
	IsAnomaly       bool        `json:"is_anomaly"`
	FallProbability float64     `json:"fall_probability"`
	Source          ModelSource `json:"source"`
}

// VitalsAssessment 生命体征评估结果
type VitalsAssessment struct {
	IsAnomaly       bool        `json:"is_anomaly"`
	RiskProbability float64     `json:"risk_probability"`
	RiskLevel       RiskLevel   `json:"risk_level"`
	RiskTier        RiskTier    `json:"risk_tier,omitempty"` // 仅训练模型输出
	Source          ModelSource `json:"source"`
}

// ScoreResult 单条读数的评分结果（发布给外部报警层，不由核心持久化）
type ScoreResult struct {
	ResultID         string           `json:"result_id"`
	SubjectID        string           `json:"user_id"`
	FallDetection    FallDetection    `json:"fall_detection"`
	VitalsAssessment VitalsAssessment `json:"vitals_assessment"`
	ContextVersion   string           `json:"context_version"`
	ScoredAt         int64            `json:"scored_at"`
}

// HasAnomaly 是否需要外部层创建报警
func (r *ScoreResult) HasAnomaly() bool {
	return r.FallDetection.IsAnomaly || r.VitalsAssessment.IsAnomaly
}
