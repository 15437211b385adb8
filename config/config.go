package config

import (
	"log"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"kikenqr"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"kikenqr"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 只读副本，逗号分隔的 host:port，查询走副本
	PostgreSQLReplicaHosts string `env:"POSTGRESQL_REPLICA_HOSTS" envDefault:""`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"kqr"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`
	ClockInExchange  string `env:"CLOCKIN_EXCHANGE" envDefault:"clockin.events"`

	// 打卡会话配置
	SessionSecret         string `env:"SESSION_SECRET"` // 必填，用于签名会话 token
	SessionTTLMinutes     int    `env:"SESSION_TTL_MINUTES" envDefault:"30"`
	SessionLockTTLSeconds int    `env:"SESSION_LOCK_TTL_SECONDS" envDefault:"30"`

	// 地理围栏配置
	GeocoderBaseURL           string `env:"GEOCODER_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent         string `env:"GEOCODER_USER_AGENT" envDefault:"kikenqr-clockin/1.0"`
	GeocoderTimeoutSeconds    int    `env:"GEOCODER_TIMEOUT_SECONDS" envDefault:"5"`
	GeolocationTimeoutSeconds int    `env:"GEOLOCATION_TIMEOUT_SECONDS" envDefault:"10"`

	// 字段取值本地化，fr 下勾选框写入 Oui/Non
	FieldLocale string `env:"FIELD_LOCALE" envDefault:"fr"`

	// 孤儿字段取值清理（写入中途失败留下的 field_values）
	OrphanRetentionHours       int `env:"ORPHAN_RETENTION_HOURS" envDefault:"24"`
	OrphanSweepIntervalMinutes int `env:"ORPHAN_SWEEP_INTERVAL_MINUTES" envDefault:"60"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel  string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text；输出固定为 stdout

	// 链路追踪配置
	OTELEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"60"` // 每分钟每 IP 请求数
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	// go test 下不强制要求密钥
	if Cfg.SessionSecret == "" && !testing.Testing() {
		log.Fatal("SESSION_SECRET is required")
	}

	if Cfg.FieldLocale != "fr" && Cfg.FieldLocale != "en" {
		log.Printf("WARN: FIELD_LOCALE %q is not supported, falling back to fr", Cfg.FieldLocale)
		Cfg.FieldLocale = "fr"
	}

	if Cfg.GeolocationTimeoutSeconds <= 0 {
		Cfg.GeolocationTimeoutSeconds = 10
	}

	// 保留期过短会删掉正在提交中的取值
	if Cfg.OrphanRetentionHours < 1 {
		Cfg.OrphanRetentionHours = 1
	}
	if Cfg.OrphanSweepIntervalMinutes <= 0 {
		Cfg.OrphanSweepIntervalMinutes = 60
	}
}

func (c *Config) GetDSN() string {
	return c.dsnForHost(c.PostgreSQLHost, c.PostgreSQLPort)
}

// GetReplicaDSNs 返回只读副本的 DSN 列表
func (c *Config) GetReplicaDSNs() []string {
	if strings.TrimSpace(c.PostgreSQLReplicaHosts) == "" {
		return nil
	}

	var dsns []string
	for _, hostPort := range strings.Split(c.PostgreSQLReplicaHosts, ",") {
		hostPort = strings.TrimSpace(hostPort)
		if hostPort == "" {
			continue
		}
		host, port := hostPort, c.PostgreSQLPort
		if idx := strings.LastIndex(hostPort, ":"); idx > 0 {
			host, port = hostPort[:idx], hostPort[idx+1:]
		}
		dsns = append(dsns, c.dsnForHost(host, port))
	}
	return dsns
}

func (c *Config) dsnForHost(host, port string) string {
	return "host=" + host +
		" port=" + port +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) SessionLockTTL() time.Duration {
	return time.Duration(c.SessionLockTTLSeconds) * time.Second
}

func (c *Config) GeolocationTimeout() time.Duration {
	return time.Duration(c.GeolocationTimeoutSeconds) * time.Second
}

func (c *Config) GeocoderTimeout() time.Duration {
	return time.Duration(c.GeocoderTimeoutSeconds) * time.Second
}

func (c *Config) OrphanRetention() time.Duration {
	return time.Duration(c.OrphanRetentionHours) * time.Hour
}

func (c *Config) OrphanSweepInterval() time.Duration {
	return time.Duration(c.OrphanSweepIntervalMinutes) * time.Minute
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
