package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/common/database"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/dataset"
	"wisefido-anomaly/internal/logger"
	"wisefido-anomaly/internal/report"
	"wisefido-anomaly/internal/repository"
	"wisefido-anomaly/internal/training"
)

func main() {
	family := flag.String("family", "all", "Model family to train: all, vitals or fall")
	noReport := flag.Bool("no-report", false, "Skip plot and workbook export")
	flag.Parse()

	if err := run(*family, *noReport); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(family string, noReport bool) error {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-anomaly-train")
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	// 3. 中断信号取消训练，已完成的模型族保留产物
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 训练台账（可选）
	var runs training.RunRecorder
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)
		runs, err = trainingLedger(db, log)
		if err != nil {
			return err
		}
	}

	// 5. 训练
	loader := dataset.NewLoader(time.Duration(cfg.Datasets.DownloadTimeout)*time.Second, log)
	store := artifact.NewStore(cfg.Artifacts.Dir, log)
	orchestrator := training.NewOrchestrator(cfg, loader, store, runs, log)

	var result *training.Result
	switch family {
	case "all":
		result = orchestrator.Run(ctx)
	case "vitals":
		result = &training.Result{Families: []*training.FamilyReport{orchestrator.TrainVitals(ctx)}}
	case "fall":
		result = &training.Result{Families: []*training.FamilyReport{orchestrator.TrainFall(ctx)}}
	default:
		return fmt.Errorf("unknown model family %q", family)
	}

	for _, rep := range result.Families {
		log.Info("Training summary",
			zap.String("family", string(rep.Family)),
			zap.String("run_id", rep.RunID),
			zap.String("status", string(rep.Status)),
			zap.String("reason", rep.Reason),
			zap.Bool("synthetic", rep.Synthetic),
			zap.String("artifact_path", rep.ArtifactPath),
		)
	}

	// 6. 评估报告
	if !noReport {
		exporter := report.NewExporter(filepath.Join(cfg.Artifacts.Dir, "reports"), log)
		if _, err := exporter.Export(result, cfg.Report); err != nil {
			log.Error("Failed to export evaluation report", zap.Error(err))
		}
	}

	if result.Failed() {
		return fmt.Errorf("training failed for at least one model family")
	}
	return nil
}

func trainingLedger(db *sql.DB, log *zap.Logger) (training.RunRecorder, error) {
	if err := database.MigrateUp(db); err != nil {
		return nil, err
	}
	return repository.NewTrainingRunsRepository(db, log), nil
}
