package consumer

import (
	"sync"
	"time"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功评分并发布的消息数
	MessagesFailed    int64 // 处理失败的消息数
	MessagesRejected  int64 // 读数字段缺失或非法
	AnomaliesDetected int64 // 跌倒或生命体征异常

	// 错误分类统计
	ErrorsParse   int64 // 解析错误
	ErrorsBuffer  int64 // 缓冲更新失败
	ErrorsScore   int64 // 评分失败
	ErrorsPublish int64 // 结果发布失败

	// 性能指标
	TotalProcessingTime time.Duration
	LastProcessTime     time.Time

	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		MessagesRejected:    m.MessagesRejected,
		AnomaliesDetected:   m.AnomaliesDetected,
		ErrorsParse:         m.ErrorsParse,
		ErrorsBuffer:        m.ErrorsBuffer,
		ErrorsScore:         m.ErrorsScore,
		ErrorsPublish:       m.ErrorsPublish,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration, anomaly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	if anomaly {
		m.AnomaliesDetected++
	}
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementRejected 增加拒绝计数
func (m *Metrics) IncrementRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesRejected++
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "buffer":
		m.ErrorsBuffer++
	case "score":
		m.ErrorsScore++
	case "publish":
		m.ErrorsPublish++
	}
}
