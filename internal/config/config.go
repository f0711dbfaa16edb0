package config

import (
	"fmt"
	"os"
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

// MQTTConfig MQTT配置（遥测接入）
type MQTTConfig struct {
	Broker   string // 为空则不启动 MQTT 接入
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// AIConfig AI 协作方配置
type AIConfig struct {
	BaseURL        string // 为空则视为协作方不可用
	TimeoutSeconds int    // 请求超时（秒），默认 30
	RetryCount     int
}

// Config 信号引擎服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	AI       AIConfig

	// 引擎特定配置
	Engine struct {
		// 周期性扫描配置
		SweepInterval      int  // 扫描间隔（秒），0 表示禁用周期扫描
		SweepWindowHours   int  // 每次扫描回溯的小时数，默认 1
		SweepMaxReadings   int  // 每设备每次扫描的读数上限，默认 10
		BacklogMaxReadings int  // 积压重处理时每设备的读数上限，默认 50
		UseAI              bool // 扫描时是否启用 AI 兜底分析

		// Redis 缓存配置
		Cache struct {
			DashboardKeyPrefix string // 仪表盘缓存键前缀，如 "forgewatch:dashboard:"
			DashboardTTL       int    // 仪表盘缓存 TTL（秒），默认 30
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（带默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "forgewatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "forgewatch-ingest")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "telemetry/+/readings")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.AI.BaseURL = getEnv("AI_API_URL", "")
	cfg.AI.TimeoutSeconds = getEnvInt("AI_TIMEOUT_SECONDS", 30)
	cfg.AI.RetryCount = getEnvInt("AI_RETRY_COUNT", 0)

	cfg.Engine.SweepInterval = getEnvInt("SWEEP_INTERVAL", 300)
	cfg.Engine.SweepWindowHours = getEnvInt("SWEEP_WINDOW_HOURS", 1)
	cfg.Engine.SweepMaxReadings = getEnvInt("SWEEP_MAX_READINGS", 10)
	cfg.Engine.BacklogMaxReadings = getEnvInt("BACKLOG_MAX_READINGS", 50)
	cfg.Engine.UseAI = getEnv("SWEEP_USE_AI", "true") == "true"

	cfg.Engine.Cache.DashboardKeyPrefix = getEnv("CACHE_DASHBOARD_PREFIX", "forgewatch:dashboard:")
	cfg.Engine.Cache.DashboardTTL = getEnvInt("CACHE_DASHBOARD_TTL", 30)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
