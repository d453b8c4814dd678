package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GridConfig 随机森林网格搜索参数
type GridConfig struct {
	NEstimators     []int    // 树的数量
	MaxDepth        []int    // 最大深度，0 表示不限制
	MinSamplesSplit []int    // 内部节点最少样本数
	MinSamplesLeaf  []int    // 叶子节点最少样本数
	ClassWeights    []string // "balanced" 或 "1:10" 形式的固定权重
}

// ArtifactConfig 模型产物配置
type ArtifactConfig struct {
	Dir             string // 产物根目录，每个模型族一个子目录
	RefreshInterval int    // 评分服务检查产物更新的间隔（秒），0 表示不刷新
}

// DatasetConfig 数据集配置
type DatasetConfig struct {
	Vitals          string // 本地路径或 http(s) URL，.csv / .xlsx
	Fall            string
	DownloadTimeout int // 远程下载超时（秒）
}

// VitalsConfig 生命体征 LSTM 配置
type VitalsConfig struct {
	TimeSteps    int     // 序列长度，默认 10
	MinWindows   int     // 最少窗口数，默认 50
	TestSize     float64 // 测试集比例，默认 0.2
	Hidden1      int     // 第一层 LSTM 单元数
	Hidden2      int     // 第二层 LSTM 单元数
	Dropout      float64
	L2           float64
	Epochs       int
	BatchSize    int
	Patience     int
	LearningRate float64
}

// FallConfig 跌倒检测随机森林配置
type FallConfig struct {
	SamplingRateHz int
	WindowSeconds  float64
	WindowSamples  int // 派生：SamplingRateHz × WindowSeconds
	StepSamples    int // 派生：WindowSamples / 2
	TestSize       float64
	CVFolds        int
	Workers        int // 网格搜索并发数，0 表示 CPU 数
	Grid           GridConfig
}

// ScoringConfig 在线评分配置
type ScoringConfig struct {
	FallThreshold      float64    // 跌倒概率阈值，默认 0.6
	RiskThresholds     [3]float64 // NORMAL/ELEVATED/HIGH 上界，默认 0.3/0.6/0.8
	DefaultTemperature float64    // 读数缺失体温时使用的默认值
	BufferTTL          int        // 读数缓冲 TTL（秒）
	BufferKeyPrefix    string
}

// StreamConfig Redis Streams 配置
type StreamConfig struct {
	Input         string
	Output        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
}

// TopicConfig MQTT 主题配置
type TopicConfig struct {
	Readings string // 如 "wearable/+/reading"
}

// ReportConfig 评估报告导出配置
type ReportConfig struct {
	Plots    bool
	Workbook bool
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string
}

// Config 异常检测服务配置（训练 CLI 与评分服务共用）
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	DBEnabled   bool // 是否启用 PostgreSQL（读数回填、训练记录）
	MQTTEnabled bool // 是否订阅 MQTT 读数主题

	Seed int64 // 随机种子（训练可复现）

	Artifacts ArtifactConfig
	Datasets  DatasetConfig
	Vitals    VitalsConfig
	Fall      FallConfig
	Scoring   ScoringConfig
	Stream    StreamConfig
	Topics    TopicConfig
	Report    ReportConfig
	Log       LogConfig
}

// BufferSize 每个受试者需要保留的最近读数条数
func (c *Config) BufferSize() int {
	if c.Fall.WindowSamples > c.Vitals.TimeSteps {
		return c.Fall.WindowSamples
	}
	return c.Vitals.TimeSteps
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 2)
	cfg.DBEnabled = getEnvBool("DB_ENABLED", false)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-anomaly")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTTEnabled = getEnvBool("MQTT_ENABLED", true)

	cfg.Seed = int64(getEnvInt("RANDOM_SEED", 42))

	cfg.Artifacts.Dir = getEnv("ARTIFACT_DIR", "artifacts")
	cfg.Artifacts.RefreshInterval = getEnvInt("ARTIFACT_REFRESH_INTERVAL", 60)

	cfg.Datasets.Vitals = getEnv("VITALS_DATASET", "human_vital_signs_dataset_2024.csv")
	cfg.Datasets.Fall = getEnv("FALL_DATASET", "acc_gyr.csv")
	cfg.Datasets.DownloadTimeout = getEnvInt("DATASET_DOWNLOAD_TIMEOUT", 60)

	cfg.Vitals.TimeSteps = getEnvInt("TIME_STEPS_VITALS", 10)
	cfg.Vitals.MinWindows = getEnvInt("VITALS_MIN_WINDOWS", 50)
	cfg.Vitals.TestSize = getEnvFloat("VITALS_TEST_SIZE", 0.2)
	cfg.Vitals.Hidden1 = getEnvInt("VITALS_LSTM_UNITS_1", 128)
	cfg.Vitals.Hidden2 = getEnvInt("VITALS_LSTM_UNITS_2", 64)
	cfg.Vitals.Dropout = getEnvFloat("VITALS_DROPOUT", 0.3)
	cfg.Vitals.L2 = getEnvFloat("VITALS_L2", 0.01)
	cfg.Vitals.Epochs = getEnvInt("VITALS_EPOCHS", 100)
	cfg.Vitals.BatchSize = getEnvInt("VITALS_BATCH_SIZE", 64)
	cfg.Vitals.Patience = getEnvInt("VITALS_PATIENCE", 15)
	cfg.Vitals.LearningRate = getEnvFloat("VITALS_LEARNING_RATE", 0.001)

	cfg.Fall.SamplingRateHz = getEnvInt("SAMPLING_RATE_HZ", 50)
	cfg.Fall.WindowSeconds = getEnvFloat("WINDOW_SIZE_SECONDS", 1.5)
	cfg.Fall.TestSize = getEnvFloat("FALL_TEST_SIZE", 0.3)
	cfg.Fall.CVFolds = getEnvInt("FALL_CV_FOLDS", 3)
	cfg.Fall.Workers = getEnvInt("FALL_GRID_WORKERS", 0)
	cfg.Fall.Grid = DefaultGrid()

	cfg.Scoring.FallThreshold = getEnvFloat("FALL_THRESHOLD", 0.6)
	cfg.Scoring.RiskThresholds = [3]float64{0.3, 0.6, 0.8}
	cfg.Scoring.DefaultTemperature = getEnvFloat("DEFAULT_BODY_TEMPERATURE", 36.8)
	cfg.Scoring.BufferTTL = getEnvInt("READING_BUFFER_TTL", 600)
	cfg.Scoring.BufferKeyPrefix = getEnv("READING_BUFFER_PREFIX", "anomaly:buffer:")

	cfg.Stream.Input = getEnv("READINGS_STREAM", "anomaly:readings:stream")
	cfg.Stream.Output = getEnv("RESULTS_STREAM", "anomaly:results:stream")
	cfg.Stream.ConsumerGroup = getEnv("CONSUMER_GROUP", "anomaly-scorer")
	cfg.Stream.ConsumerName = getEnv("CONSUMER_NAME", "anomaly-scorer-1")
	cfg.Stream.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 20))

	cfg.Topics.Readings = getEnv("MQTT_READINGS_TOPIC", "wearable/+/reading")

	cfg.Report.Plots = getEnvBool("REPORT_PLOTS", true)
	cfg.Report.Workbook = getEnvBool("REPORT_WORKBOOK", true)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if path := os.Getenv("ANOMALY_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// derive 计算派生参数（窗口样本数、步长）
func (c *Config) derive() {
	c.Fall.WindowSamples = int(c.Fall.WindowSeconds * float64(c.Fall.SamplingRateHz))
	c.Fall.StepSamples = c.Fall.WindowSamples / 2
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Vitals.TimeSteps <= 0 {
		return fmt.Errorf("TIME_STEPS_VITALS must be positive, got %d", c.Vitals.TimeSteps)
	}
	if c.Fall.WindowSamples <= 1 || c.Fall.StepSamples <= 0 {
		return fmt.Errorf("invalid fall window: samples=%d step=%d", c.Fall.WindowSamples, c.Fall.StepSamples)
	}
	if c.Vitals.TestSize <= 0 || c.Vitals.TestSize >= 1 {
		return fmt.Errorf("VITALS_TEST_SIZE must be in (0,1), got %v", c.Vitals.TestSize)
	}
	if c.Fall.TestSize <= 0 || c.Fall.TestSize >= 1 {
		return fmt.Errorf("FALL_TEST_SIZE must be in (0,1), got %v", c.Fall.TestSize)
	}
	if c.Fall.CVFolds < 2 {
		return fmt.Errorf("FALL_CV_FOLDS must be at least 2, got %d", c.Fall.CVFolds)
	}
	t := c.Scoring.RiskThresholds
	if !(t[0] < t[1] && t[1] < t[2]) {
		return fmt.Errorf("risk thresholds must be increasing: %v", t)
	}
	return nil
}

// DefaultGrid 默认网格（3×3×3×3×4）
func DefaultGrid() GridConfig {
	return GridConfig{
		NEstimators:     []int{100, 200, 300},
		MaxDepth:        []int{10, 20, 0},
		MinSamplesSplit: []int{2, 5, 10},
		MinSamplesLeaf:  []int{1, 2, 4},
		ClassWeights:    []string{"balanced", "1:10", "1:15", "1:20"},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return v
		}
	}
	return defaultValue
}
