// Package training 训练编排：加载数据集、派生标签、提取特征、训练评估并持久化两个模型族
package training

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/dataset"
	"wisefido-anomaly/internal/models"
)

// DatasetLoader 数据集来源
type DatasetLoader interface {
	Load(ctx context.Context, source string) (*dataset.Table, error)
}

// RunRecorder 训练运行记录（training_runs 表）
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.TrainingRun) error
}

// FamilyReport 单个模型族的训练结果
type FamilyReport struct {
	Family       models.Family    `json:"family"`
	RunID        string           `json:"run_id"`
	Status       models.RunStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Synthetic    bool             `json:"synthetic"`
	ArtifactPath string           `json:"artifact_path,omitempty"`
	Evaluation   *Evaluation      `json:"evaluation,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`

	Err error `json:"-"`
}

// Result 一次训练的全部结果（先生命体征后跌倒）
type Result struct {
	Families []*FamilyReport `json:"families"`
}

// Family 按模型族查找结果
func (r *Result) Family(family models.Family) *FamilyReport {
	for _, f := range r.Families {
		if f.Family == family {
			return f
		}
	}
	return nil
}

// Failed 是否有模型族以错误结束（区别于数据质量导致的跳过）
func (r *Result) Failed() bool {
	for _, f := range r.Families {
		if f.Status == models.RunFailed {
			return true
		}
	}
	return false
}

// Orchestrator 训练编排器
type Orchestrator struct {
	cfg    *config.Config
	loader DatasetLoader
	store  *artifact.Store
	runs   RunRecorder
	logger *zap.Logger
}

// NewOrchestrator 创建训练编排器，runs 为 nil 时不记录训练运行
func NewOrchestrator(cfg *config.Config, loader DatasetLoader, store *artifact.Store, runs RunRecorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		loader: loader,
		store:  store,
		runs:   runs,
		logger: logger,
	}
}

// Run 依次训练生命体征和跌倒模型，两个模型族互不影响
func (o *Orchestrator) Run(ctx context.Context) *Result {
	return &Result{Families: []*FamilyReport{
		o.TrainVitals(ctx),
		o.TrainFall(ctx),
	}}
}

// TrainVitals 训练生命体征 LSTM
func (o *Orchestrator) TrainVitals(ctx context.Context) *FamilyReport {
	return o.runFamily(ctx, models.FamilyVitals, o.trainVitals)
}

// TrainFall 训练跌倒随机森林
func (o *Orchestrator) TrainFall(ctx context.Context) *FamilyReport {
	return o.runFamily(ctx, models.FamilyFall, o.trainFall)
}

func (o *Orchestrator) runFamily(ctx context.Context, family models.Family, train func(context.Context, *FamilyReport) error) *FamilyReport {
	rep := &FamilyReport{
		Family:    family,
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With(zap.String("family", string(family)), zap.String("run_id", rep.RunID))
	logger.Info("Training started")

	err := train(ctx, rep)
	rep.FinishedAt = time.Now().UTC()
	switch {
	case err == nil:
		rep.Status = models.RunTrained
		logger.Info("Training finished",
			zap.String("artifact_path", rep.ArtifactPath),
			zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
		)
	case models.IsSkip(err):
		rep.Status = models.RunSkipped
		rep.Reason = err.Error()
		logger.Warn("Training skipped", zap.Error(err))
	default:
		rep.Status = models.RunFailed
		rep.Reason = err.Error()
		rep.Err = err
		logger.Error("Training failed",
			zap.Bool("persist_error", errors.Is(err, models.ErrArtifactPersist)),
			zap.Error(err),
		)
	}

	o.record(ctx, rep, logger)
	return rep
}

// record 写入训练运行记录，失败只记录日志
func (o *Orchestrator) record(ctx context.Context, rep *FamilyReport, logger *zap.Logger) {
	if o.runs == nil {
		return
	}
	metrics := []byte("{}")
	if rep.Evaluation != nil {
		if data, err := json.Marshal(rep.Evaluation); err == nil {
			metrics = data
		}
	}
	run := &models.TrainingRun{
		RunID:        rep.RunID,
		Family:       rep.Family,
		Status:       rep.Status,
		Reason:       rep.Reason,
		Metrics:      string(metrics),
		ArtifactPath: rep.ArtifactPath,
		Synthetic:    rep.Synthetic,
		StartedAt:    rep.StartedAt,
		FinishedAt:   rep.FinishedAt,
	}
	// 记录不受训练取消影响
	if err := o.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("Failed to record training run", zap.Error(err))
	}
}

// loadTable 读取数据集；数据集不存在时回退到同列结构的合成数据集
func (o *Orchestrator) loadTable(ctx context.Context, family models.Family, source string, synthesize func() *dataset.Table) (*dataset.Table, error) {
	table, err := o.loader.Load(ctx, source)
	if err == nil {
		o.logger.Info("Dataset loaded",
			zap.String("family", string(family)),
			zap.String("source", source),
			zap.Int("rows", table.Len()),
		)
		return table, nil
	}
	if !errors.Is(err, models.ErrDataUnavailable) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, models.NewSkipError(family, err, "load dataset %s: %v", source, err)
	}

	table = synthesize()
	o.logger.Warn("Dataset unavailable, using synthetic placeholder dataset; metrics are not representative",
		zap.String("family", string(family)),
		zap.String("source", source),
		zap.Int("rows", table.Len()),
		zap.Error(err),
	)
	return table, nil
}

func (o *Orchestrator) workers(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}
