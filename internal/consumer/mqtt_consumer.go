package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	mqttcommon "wisefido-anomaly/internal/common/mqtt"
	rediscommon "wisefido-anomaly/internal/common/redis"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/models"
)

// Subscriber MQTT 订阅能力（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 可穿戴读数 MQTT 消费者，转发到读数流
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  Subscriber
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient Subscriber,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 订阅读数主题，阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Topics.Readings, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Topics.Readings),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.Topics.Readings); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 处理MQTT消息
//
// 主题格式: wearable/{user_id}/reading
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	subjectID, err := subjectFromTopic(topic)
	if err != nil {
		return err
	}

	var reading models.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	if reading.SubjectID == "" {
		reading.SubjectID = subjectID
	} else if reading.SubjectID != subjectID {
		return fmt.Errorf("%w: user_id %q does not match topic %s", models.ErrInferenceInput, reading.SubjectID, topic)
	}
	if err := validateReading(&reading); err != nil {
		return err
	}

	stream := c.config.Stream.Input
	streamID, err := rediscommon.PublishJSONToStream(context.Background(), c.redisClient, stream, &reading)
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Debug("Published reading to Redis Streams",
		zap.String("user_id", subjectID),
		zap.String("stream", stream),
		zap.String("stream_id", streamID),
	)
	return nil
}

func subjectFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}
