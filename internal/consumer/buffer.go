package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/models"
)

// RecentReadingsSource 按受试者查询最近读数（PostgreSQL 仓库实现）
type RecentReadingsSource interface {
	GetRecentReadings(ctx context.Context, subjectID string, n int) ([]*models.Reading, error)
}

// ReadingBuffer 每个受试者最近读数的 Redis 滚动缓冲
//
// 列表头部为最新读数，长度保持为 max(WINDOW_SAMPLES, TIME_STEPS_VITALS)。
// 缓冲为空（新受试者或 TTL 过期）时从读数仓库回填。
type ReadingBuffer struct {
	config      *config.Config
	redisClient *redis.Client
	source      RecentReadingsSource
	logger      *zap.Logger
}

// NewReadingBuffer 创建读数缓冲，source 为 nil 时不回填
func NewReadingBuffer(
	cfg *config.Config,
	redisClient *redis.Client,
	source RecentReadingsSource,
	logger *zap.Logger,
) *ReadingBuffer {
	return &ReadingBuffer{
		config:      cfg,
		redisClient: redisClient,
		source:      source,
		logger:      logger,
	}
}

func (b *ReadingBuffer) key(subjectID string) string {
	return b.config.Scoring.BufferKeyPrefix + subjectID
}

// Append 追加一条读数，返回追加后的缓冲（按时间升序，最后一条为最新）
func (b *ReadingBuffer) Append(ctx context.Context, reading *models.Reading) ([]*models.Reading, error) {
	key := b.key(reading.SubjectID)
	size := b.config.BufferSize()

	pending, err := b.backfill(ctx, key, reading)
	if err != nil {
		return nil, err
	}
	pending = append(pending, reading)

	values := make([]interface{}, 0, len(pending))
	for _, r := range pending {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reading: %w", err)
		}
		values = append(values, data)
	}

	var lrange *redis.StringSliceCmd
	_, err = b.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, values...)
		pipe.LTrim(ctx, key, 0, int64(size-1))
		pipe.Expire(ctx, key, time.Duration(b.config.Scoring.BufferTTL)*time.Second)
		lrange = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update reading buffer: %w", err)
	}

	return b.decode(reading.SubjectID, lrange.Val()), nil
}

// backfill 缓冲为空时从仓库取最近读数，只保留早于当前读数的部分
func (b *ReadingBuffer) backfill(ctx context.Context, key string, current *models.Reading) ([]*models.Reading, error) {
	if b.source == nil {
		return nil, nil
	}
	n, err := b.redisClient.LLen(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check reading buffer: %w", err)
	}
	if n > 0 {
		return nil, nil
	}

	history, err := b.source.GetRecentReadings(ctx, current.SubjectID, b.config.BufferSize()-1)
	if err != nil {
		// 回填失败不影响评分，只是窗口从当前读数重新开始
		b.logger.Warn("Failed to backfill reading buffer",
			zap.String("user_id", current.SubjectID),
			zap.Error(err),
		)
		return nil, nil
	}

	older := make([]*models.Reading, 0, len(history))
	for _, r := range history {
		if r.Validate() != nil {
			continue
		}
		if !current.Timestamp.IsZero() && !r.Timestamp.Before(current.Timestamp) {
			continue
		}
		older = append(older, r)
	}

	b.logger.Debug("Backfilled reading buffer",
		zap.String("user_id", current.SubjectID),
		zap.Int("readings", len(older)),
	)
	return older, nil
}

// decode 解析 LRANGE 结果（头部为最新），翻转为升序
func (b *ReadingBuffer) decode(subjectID string, raw []string) []*models.Reading {
	readings := make([]*models.Reading, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var r models.Reading
		if err := json.Unmarshal([]byte(raw[i]), &r); err != nil {
			b.logger.Warn("Dropping malformed buffered reading",
				zap.String("user_id", subjectID),
				zap.Error(err),
			)
			continue
		}
		readings = append(readings, &r)
	}
	return readings
}
