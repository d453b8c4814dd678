package scoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wisefido-anomaly/internal/models"
)

// ScoreFall 跌倒检测，概率 >= FallThreshold 时标记异常
//
// 训练模型需要完整窗口；历史不足时用最新样本的启发式概率，并标记来源为 heuristic。
func ScoreFall(sc *ScoringContext, buf Buffer) (models.FallDetection, error) {
	model := sc.fall
	probs, err := model.PredictProba(buf)
	if errors.Is(err, ErrInsufficientHistory) {
		model = sc.fallHeur
		probs, err = model.PredictProba(buf)
	}
	if err != nil {
		return models.FallDetection{}, err
	}
	if len(probs) != 2 {
		return models.FallDetection{}, fmt.Errorf("fall model returned %d probabilities", len(probs))
	}
	p := probs[1]
	return models.FallDetection{
		IsAnomaly:       p >= sc.opts.FallThreshold,
		FallProbability: p,
		Source:          model.Source(),
	}, nil
}

// ScoreVitals 生命体征风险评估
//
// 训练模型输出风险层级分布：取概率最大的层级，风险概率为 1-P(Normal)，非 Normal 即异常。
// 启发式模型只给出风险概率，按阈值分桶为 NORMAL / ELEVATED / HIGH / CRITICAL。
func ScoreVitals(sc *ScoringContext, buf Buffer) (models.VitalsAssessment, error) {
	model := sc.vitals
	probs, err := model.PredictProba(buf)
	if errors.Is(err, ErrInsufficientHistory) {
		model = sc.vitalHeur
		probs, err = model.PredictProba(buf)
	}
	if err != nil {
		return models.VitalsAssessment{}, err
	}

	if model.Source() == models.SourceHeuristic {
		p := probs[1]
		level := RiskLevelFor(p, sc.opts.RiskThresholds)
		return models.VitalsAssessment{
			IsAnomaly:       level != models.RiskLevelNormal,
			RiskProbability: p,
			RiskLevel:       level,
			Source:          model.Source(),
		}, nil
	}

	classes := model.Classes()
	if len(classes) != len(probs) {
		return models.VitalsAssessment{}, fmt.Errorf("vitals model returned %d probabilities for %d classes", len(probs), len(classes))
	}
	best := 0
	risk := 1.0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
		if models.RiskTier(classes[i]) == models.RiskNormal {
			risk = 1 - p
		}
	}
	tier := models.RiskTier(classes[best])
	return models.VitalsAssessment{
		IsAnomaly:       tier != models.RiskNormal,
		RiskProbability: risk,
		RiskLevel:       TierRiskLevel(tier),
		RiskTier:        tier,
		Source:          model.Source(),
	}, nil
}

// Score 对一个受试者的缓冲同时做跌倒检测和生命体征评估
func Score(sc *ScoringContext, subjectID string, buf Buffer) (*models.ScoreResult, error) {
	fall, err := ScoreFall(sc, buf)
	if err != nil {
		return nil, fmt.Errorf("fall detection: %w", err)
	}
	vitals, err := ScoreVitals(sc, buf)
	if err != nil {
		return nil, fmt.Errorf("vitals assessment: %w", err)
	}
	return &models.ScoreResult{
		ResultID:         uuid.New().String(),
		SubjectID:        subjectID,
		FallDetection:    fall,
		VitalsAssessment: vitals,
		ContextVersion:   sc.Version(),
		ScoredAt:         time.Now().Unix(),
	}, nil
}

// RiskLevelFor 按阈值把风险概率分桶
func RiskLevelFor(p float64, thresholds [3]float64) models.RiskLevel {
	switch {
	case p < thresholds[0]:
		return models.RiskLevelNormal
	case p < thresholds[1]:
		return models.RiskLevelElevated
	case p < thresholds[2]:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelCritical
	}
}

// TierRiskLevel 风险层级到风险等级的映射
func TierRiskLevel(tier models.RiskTier) models.RiskLevel {
	switch tier {
	case models.RiskHigh:
		return models.RiskLevelCritical
	case models.RiskMedium:
		return models.RiskLevelHigh
	case models.RiskLow:
		return models.RiskLevelElevated
	default:
		return models.RiskLevelNormal
	}
}
