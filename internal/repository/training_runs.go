package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/models"
)

// TrainingRunsRepository 训练运行记录仓库
type TrainingRunsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTrainingRunsRepository 创建训练运行记录仓库
func NewTrainingRunsRepository(db *sql.DB, logger *zap.Logger) *TrainingRunsRepository {
	return &TrainingRunsRepository{
		db:     db,
		logger: logger,
	}
}

// SaveRun 写入训练运行记录（同一 run_id 重复写入时覆盖）
func (r *TrainingRunsRepository) SaveRun(ctx context.Context, run *models.TrainingRun) error {
	if run == nil || run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	metrics := run.Metrics
	if metrics == "" {
		metrics = "{}"
	}

	query := `
		INSERT INTO training_runs (
			run_id, family, status, reason, metrics,
			artifact_path, synthetic, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			metrics = EXCLUDED.metrics,
			artifact_path = EXCLUDED.artifact_path,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.db.ExecContext(ctx, query,
		run.RunID,
		string(run.Family),
		string(run.Status),
		sql.NullString{String: run.Reason, Valid: run.Reason != ""},
		metrics,
		sql.NullString{String: run.ArtifactPath, Valid: run.ArtifactPath != ""},
		run.Synthetic,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save training run: %w", err)
	}

	r.logger.Debug("Training run saved",
		zap.String("run_id", run.RunID),
		zap.String("family", string(run.Family)),
		zap.String("status", string(run.Status)),
	)
	return nil
}

// GetLatestRun 获取某个模型族最近一次训练运行，不存在时返回 nil, nil
func (r *TrainingRunsRepository) GetLatestRun(ctx context.Context, family models.Family) (*models.TrainingRun, error) {
	query := `
		SELECT
			run_id,
			family,
			status,
			reason,
			metrics,
			artifact_path,
			synthetic,
			started_at,
			finished_at
		FROM training_runs
		WHERE family = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run models.TrainingRun
	var familyName, status string
	var reason, artifactPath sql.NullString
	var metrics []byte

	err := r.db.QueryRowContext(ctx, query, string(family)).Scan(
		&run.RunID,
		&familyName,
		&status,
		&reason,
		&metrics,
		&artifactPath,
		&run.Synthetic,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest training run: %w", err)
	}

	run.Family = models.Family(familyName)
	run.Status = models.RunStatus(status)
	run.Metrics = string(metrics)
	if reason.Valid {
		run.Reason = reason.String
	}
	if artifactPath.Valid {
		run.ArtifactPath = artifactPath.String
	}
	return &run, nil
}
