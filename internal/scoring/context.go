package scoring

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/models"
)

// Options 评分阈值
type Options struct {
	FallThreshold  float64
	RiskThresholds [3]float64 // NORMAL / ELEVATED / HIGH 的上界
}

// DefaultOptions 默认阈值：跌倒 0.6，风险 0.3 / 0.6 / 0.8
func DefaultOptions() Options {
	return Options{FallThreshold: 0.6, RiskThresholds: [3]float64{0.3, 0.6, 0.8}}
}

// ScoringContext 一次模型加载的只读快照
//
// 构造后不再修改；产物更新时整体替换为新的上下文。
// 训练模型之外始终保留同族的启发式模型，训练模型缺少足够历史时回退。
type ScoringContext struct {
	opts      Options
	fall      Model
	vitals    Model
	fallHeur  *HeuristicModel
	vitalHeur *HeuristicModel
	version   string
	createdAt time.Time
}

// NewScoringContext 创建评分上下文，fall 或 vitals 为 nil 时使用启发式模型
func NewScoringContext(opts Options, fall, vitals Model) *ScoringContext {
	sc := &ScoringContext{
		opts:      opts,
		fall:      fall,
		vitals:    vitals,
		fallHeur:  NewHeuristicModel(models.FamilyFall),
		vitalHeur: NewHeuristicModel(models.FamilyVitals),
		createdAt: time.Now().UTC(),
	}
	if sc.fall == nil {
		sc.fall = sc.fallHeur
	}
	if sc.vitals == nil {
		sc.vitals = sc.vitalHeur
	}
	sc.version = fmt.Sprintf("vitals:%s,fall:%s", modelVersion(sc.vitals), modelVersion(sc.fall))
	return sc
}

// LoadScoringContext 从产物目录构建评分上下文，某个模型族的产物缺失或损坏时该族使用启发式模型
func LoadScoringContext(store *artifact.Store, opts Options, logger *zap.Logger) *ScoringContext {
	var fall, vitals Model

	if b, err := store.LoadVitals(); err == nil {
		vitals = NewTrainedVitalsModel(b)
		logger.Info("Loaded vitals model", zap.String("run_id", b.Manifest.RunID), zap.Strings("classes", b.Manifest.Classes))
	} else {
		logArtifactFallback(logger, models.FamilyVitals, err)
	}

	if b, err := store.LoadFall(); err == nil {
		fall = NewTrainedFallModel(b)
		logger.Info("Loaded fall model", zap.String("run_id", b.Manifest.RunID), zap.Int("window_samples", b.Manifest.WindowSamples))
	} else {
		logArtifactFallback(logger, models.FamilyFall, err)
	}

	return NewScoringContext(opts, fall, vitals)
}

func logArtifactFallback(logger *zap.Logger, family models.Family, err error) {
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("No trained artifacts, using heuristic model", zap.String("family", string(family)))
		return
	}
	logger.Warn("Failed to load artifacts, using heuristic model",
		zap.String("family", string(family)),
		zap.Error(err),
	)
}

func modelVersion(m Model) string {
	if t, ok := m.(*TrainedArtifactModel); ok {
		return t.RunID()
	}
	return string(models.SourceHeuristic)
}

// Version 由两个模型的来源组成，用于判断产物是否变化
func (c *ScoringContext) Version() string {
	return c.version
}

// Options 阈值
func (c *ScoringContext) Options() Options {
	return c.opts
}

// FallModel 跌倒模型
func (c *ScoringContext) FallModel() Model {
	return c.fall
}

// VitalsModel 生命体征模型
func (c *ScoringContext) VitalsModel() Model {
	return c.vitals
}

// CreatedAt 上下文创建时间
func (c *ScoringContext) CreatedAt() time.Time {
	return c.createdAt
}
