package models

import (
	"time"
)

// RunStatus 训练运行状态
type RunStatus string

const (
	RunTrained RunStatus = "trained"
	RunSkipped RunStatus = "skipped"
	RunFailed  RunStatus = "failed"
)

// TrainingRun 训练运行记录（对应 training_runs 表）
type TrainingRun struct {
	RunID        string    `json:"run_id" db:"run_id"`
	Family       Family    `json:"family" db:"family"`
	Status       RunStatus `json:"status" db:"status"`
	Reason       string    `json:"reason,omitempty" db:"reason"`
	Metrics      string    `json:"metrics" db:"metrics"` // JSONB
	ArtifactPath string    `json:"artifact_path,omitempty" db:"artifact_path"`
	Synthetic    bool      `json:"synthetic" db:"synthetic"` // 是否使用合成占位数据集
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
}
