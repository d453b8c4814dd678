package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "wisefido-anomaly/internal/common/redis"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/scoring"
)

// StreamConsumer 读数流消费者：缓冲、评分、发布结果
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	buffer      *ReadingBuffer
	holder      *scoring.ContextHolder
	logger      *zap.Logger
	metrics     *Metrics
	readBlock   time.Duration
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	buffer *ReadingBuffer,
	holder *scoring.ContextHolder,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		buffer:      buffer,
		holder:      holder,
		logger:      logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		readBlock: 5 * time.Second,
	}
}

// Metrics 当前指标快照
func (c *StreamConsumer) Metrics() Metrics {
	return c.metrics.GetSnapshot()
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Stream.Input
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Stream.ConsumerGroup),
		zap.String("consumer_name", c.config.Stream.ConsumerName),
		zap.String("stream", stream),
		zap.String("output", c.config.Stream.Output),
	)

	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 读取一批消息并逐条处理，处理后确认（失败的消息同样确认，避免反复投递）
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Stream.ConsumerGroup,
		c.config.Stream.ConsumerName,
		c.config.Stream.BatchSize,
		c.readBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if _, err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
		if err := rediscommon.Ack(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// processMessage 处理单条读数
//
// 处理流程：
// 1. 解析并校验读数
// 2. 追加到受试者的滚动缓冲
// 3. 用当前评分上下文评分
// 4. 结果发布到输出流，由外部报警层消费
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) (*models.ScoreResult, error) {
	startTime := time.Now()

	data, err := msg.Data()
	if err != nil {
		c.metrics.IncrementFailed("parse")
		return nil, err
	}

	var reading models.Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		c.metrics.IncrementFailed("parse")
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	if err := validateReading(&reading); err != nil {
		c.metrics.IncrementRejected()
		c.logger.Warn("Rejected reading",
			zap.String("stream_id", msg.ID),
			zap.String("user_id", reading.SubjectID),
			zap.Error(err),
		)
		return nil, err
	}

	readings, err := c.buffer.Append(ctx, &reading)
	if err != nil {
		c.metrics.IncrementFailed("buffer")
		return nil, err
	}

	sc := c.holder.Load()
	buf := scoring.BufferFromReadings(readings, c.config.Scoring.DefaultTemperature)
	result, err := scoring.Score(sc, reading.SubjectID, buf)
	if err != nil {
		c.metrics.IncrementFailed("score")
		return nil, err
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Stream.Output, result)
	if err != nil {
		c.metrics.IncrementFailed("publish")
		return nil, fmt.Errorf("failed to publish score result: %w", err)
	}

	processingDuration := time.Since(startTime)
	c.metrics.IncrementSucceeded(processingDuration, result.HasAnomaly())

	fields := []zap.Field{
		zap.String("user_id", reading.SubjectID),
		zap.String("result_id", result.ResultID),
		zap.String("stream_id", streamID),
		zap.Int("buffered", len(readings)),
		zap.Float64("fall_probability", result.FallDetection.FallProbability),
		zap.String("fall_source", string(result.FallDetection.Source)),
		zap.String("risk_level", string(result.VitalsAssessment.RiskLevel)),
		zap.String("vitals_source", string(result.VitalsAssessment.Source)),
		zap.Duration("processing_time", processingDuration),
	}
	if result.HasAnomaly() {
		c.logger.Warn("Anomaly detected", fields...)
	} else {
		c.logger.Debug("Reading scored", fields...)
	}
	return result, nil
}

// validateReading 校验受试者与必需字段
func validateReading(r *models.Reading) error {
	if r.SubjectID == "" {
		return fmt.Errorf("%w: missing required field: user_id", models.ErrInferenceInput)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return nil
}

// reportMetrics 定期报告指标（每60秒）
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()

			var avgProcessingTime time.Duration
			if snapshot.MessagesSucceeded > 0 {
				avgProcessingTime = snapshot.TotalProcessingTime / time.Duration(snapshot.MessagesSucceeded)
			}

			successRate := float64(0)
			if snapshot.MessagesProcessed > 0 {
				successRate = float64(snapshot.MessagesSucceeded) / float64(snapshot.MessagesProcessed) * 100
			}

			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("messages_rejected", snapshot.MessagesRejected),
				zap.Int64("anomalies_detected", snapshot.AnomaliesDetected),
				zap.Float64("success_rate", successRate),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_buffer", snapshot.ErrorsBuffer),
				zap.Int64("errors_score", snapshot.ErrorsScore),
				zap.Int64("errors_publish", snapshot.ErrorsPublish),
				zap.Duration("avg_processing_time", avgProcessingTime),
				zap.Duration("uptime", time.Since(snapshot.StartTime)),
				zap.String("context_version", c.holder.Load().Version()),
			)
		}
	}
}
