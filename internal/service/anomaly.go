package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/common/database"
	mqttcommon "wisefido-anomaly/internal/common/mqtt"
	rediscommon "wisefido-anomaly/internal/common/redis"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/consumer"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/repository"
	"wisefido-anomaly/internal/scoring"
)

// AnomalyService 在线评分服务（整合各层）
type AnomalyService struct {
	config      *config.Config
	db          *sql.DB // DB_ENABLED=false 时为 nil
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	store    *artifact.Store
	holder   *scoring.ContextHolder
	runsRepo *repository.TrainingRunsRepository

	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer

	// 最近一次检查到的产物清单版本
	manifestMu      sync.Mutex
	manifestVersion string

	closing *atomic.Bool
}

// NewAnomalyService 创建评分服务：连接 PostgreSQL（可选）、Redis、MQTT（可选），加载评分上下文
func NewAnomalyService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*AnomalyService, error) {
	var db *sql.DB
	if cfg.DBEnabled {
		var err error
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateUp(db); err != nil {
			database.Close(db)
			return nil, err
		}
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	var mqttClient *mqttcommon.Client
	var subscriber consumer.Subscriber
	if cfg.MQTTEnabled {
		var err error
		mqttClient, err = mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			database.Close(db)
			redisClient.Close()
			return nil, err
		}
		subscriber = mqttClient
	}

	s := newAnomalyService(cfg, logger, db, redisClient, subscriber)
	s.mqttClient = mqttClient
	return s, nil
}

// newAnomalyService 用已建立的连接组装各层
func newAnomalyService(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	redisClient *redis.Client,
	subscriber consumer.Subscriber,
) *AnomalyService {
	s := &AnomalyService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		store:       artifact.NewStore(cfg.Artifacts.Dir, logger),
		closing:     atomic.NewBool(false),
	}

	// 1. Repository 层（可选）
	var source consumer.RecentReadingsSource
	if db != nil {
		source = repository.NewReadingsRepository(db, logger)
		s.runsRepo = repository.NewTrainingRunsRepository(db, logger)
	}

	// 2. 评分上下文
	s.manifestVersion = s.currentManifestVersion()
	initial := scoring.LoadScoringContext(s.store, s.scoringOptions(), logger)
	s.checkBufferSize(initial)
	s.holder = scoring.NewContextHolder(initial)

	// 3. Consumer 层
	buffer := consumer.NewReadingBuffer(cfg, redisClient, source, logger)
	s.streamConsumer = consumer.NewStreamConsumer(cfg, redisClient, buffer, s.holder, logger)
	if subscriber != nil {
		s.mqttConsumer = consumer.NewMQTTConsumer(cfg, subscriber, redisClient, logger)
	}
	return s
}

func (s *AnomalyService) scoringOptions() scoring.Options {
	return scoring.Options{
		FallThreshold:  s.config.Scoring.FallThreshold,
		RiskThresholds: s.config.Scoring.RiskThresholds,
	}
}

// Context 当前评分上下文
func (s *AnomalyService) Context() *scoring.ScoringContext {
	return s.holder.Load()
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *AnomalyService) Start(ctx context.Context) error {
	s.logger.Info("Starting anomaly service",
		zap.String("context_version", s.holder.Load().Version()),
		zap.String("artifact_dir", s.config.Artifacts.Dir),
		zap.Bool("db_enabled", s.db != nil),
		zap.Bool("mqtt_enabled", s.mqttConsumer != nil),
	)
	s.logLatestRuns(ctx)

	if s.config.Artifacts.RefreshInterval > 0 {
		go s.refreshLoop(ctx, time.Duration(s.config.Artifacts.RefreshInterval)*time.Second)
	}

	if s.mqttConsumer != nil {
		go func() {
			if err := s.mqttConsumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer stopped with error", zap.Error(err))
			}
		}()
	}

	if err := s.streamConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}
	return nil
}

// refreshLoop 定期检查产物清单，变化时整体替换评分上下文
func (s *AnomalyService) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// Refresh 产物清单变化时重新加载评分上下文，返回是否发生替换
func (s *AnomalyService) Refresh() bool {
	if s.closing.Load() {
		return false
	}

	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()

	version := s.currentManifestVersion()
	if version == s.manifestVersion {
		return false
	}
	s.manifestVersion = version

	next := scoring.LoadScoringContext(s.store, s.scoringOptions(), s.logger)
	prev := s.holder.Load()
	if next.Version() == prev.Version() {
		return false
	}
	s.checkBufferSize(next)
	s.holder.Swap(next)

	s.logger.Info("Scoring context refreshed",
		zap.String("previous_version", prev.Version()),
		zap.String("version", next.Version()),
	)
	return true
}

// checkBufferSize 训练模型需要的样本数超过读数缓冲长度时，该模型不会被使用
func (s *AnomalyService) checkBufferSize(sc *scoring.ScoringContext) {
	for _, m := range []scoring.Model{sc.VitalsModel(), sc.FallModel()} {
		trained, ok := m.(*scoring.TrainedArtifactModel)
		if !ok || trained.RequiredSamples() <= s.config.BufferSize() {
			continue
		}
		s.logger.Warn("Trained model needs more samples than the reading buffer keeps",
			zap.String("family", string(trained.Family())),
			zap.String("run_id", trained.RunID()),
			zap.Int("required_samples", trained.RequiredSamples()),
			zap.Int("buffer_size", s.config.BufferSize()),
		)
	}
}

// currentManifestVersion 两个模型族清单的 run_id，缺失或损坏的族记为 none
func (s *AnomalyService) currentManifestVersion() string {
	ids := make([]string, 0, 2)
	for _, family := range []models.Family{models.FamilyVitals, models.FamilyFall} {
		m, err := s.store.ReadManifest(family)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Debug("Unreadable manifest", zap.String("family", string(family)), zap.Error(err))
			}
			ids = append(ids, string(family)+":none")
			continue
		}
		ids = append(ids, string(family)+":"+m.RunID)
	}
	return ids[0] + "," + ids[1]
}

// logLatestRuns 记录训练台账中每个模型族最近一次运行（仅启用数据库时）
func (s *AnomalyService) logLatestRuns(ctx context.Context) {
	if s.runsRepo == nil {
		return
	}
	for _, family := range []models.Family{models.FamilyVitals, models.FamilyFall} {
		run, err := s.runsRepo.GetLatestRun(ctx, family)
		if err != nil {
			s.logger.Warn("Failed to read training ledger", zap.String("family", string(family)), zap.Error(err))
			continue
		}
		if run == nil {
			s.logger.Info("No training runs recorded", zap.String("family", string(family)))
			continue
		}
		s.logger.Info("Latest training run",
			zap.String("family", string(family)),
			zap.String("run_id", run.RunID),
			zap.String("status", string(run.Status)),
			zap.String("reason", run.Reason),
			zap.Bool("synthetic", run.Synthetic),
			zap.Time("finished_at", run.FinishedAt),
		)
	}
}

// Stop 停止服务，重复调用只执行一次
func (s *AnomalyService) Stop() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("Stopping anomaly service")

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
