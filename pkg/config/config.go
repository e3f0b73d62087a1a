package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	// 慢查询阈值（毫秒）
	SlowQueryMs int `yaml:"slow_query_ms"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
	// worker 进程暴露 /metrics 的地址
	MetricsPort string `yaml:"metrics_port"`
}

// WorkflowConfig 任务工作流配置
type WorkflowConfig struct {
	// 事务遇到瞬时故障时的最大尝试次数
	MaxAttempts    int `yaml:"max_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
	// 逾期扫描间隔（秒），0 表示关闭
	OverdueIntervalSeconds int `yaml:"overdue_interval_seconds"`
}

// OutboxConfig Outbox 分发配置
type OutboxConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

// OtelConfig OpenTelemetry 配置
type OtelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// MailConfig 邮件投递配置
type MailConfig struct {
	From       string `yaml:"from"`
	MaxRetries int    `yaml:"max_retries"`
	// SMTPHost 为空时只记录日志，不真正发送
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	// 去重窗口（秒）
	DedupTTLSeconds int `yaml:"dedup_ttl_seconds"`
}

// AppConfig 服务完整配置
type AppConfig struct {
	DB       DBConfig       `yaml:"db"`
	MQ       MQConfig       `yaml:"mq"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Server   ServerConfig   `yaml:"server"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Otel     OtelConfig     `yaml:"otel"`
	Mail     MailConfig     `yaml:"mail"`
}

// RetryBackoff 返回事务重试的基础退避时间
func (w WorkflowConfig) RetryBackoff() time.Duration {
	return time.Duration(w.RetryBackoffMs) * time.Millisecond
}

// OverdueInterval 返回逾期扫描间隔
func (w WorkflowConfig) OverdueInterval() time.Duration {
	return time.Duration(w.OverdueIntervalSeconds) * time.Second
}

// Load 使用统一配置中心加载配置：base.yaml -> <env>.yaml -> secrets.env -> 环境变量
func Load() (*AppConfig, error) {
	env := GetConfigEnv()
	configDir := GetEnv("CONFIG_DIR", "config")

	cfgMap, err := LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}
	return Decode(cfgMap)
}

// Decode 将合并后的配置 map 转换为 AppConfig，并应用默认值与环境变量覆盖
func Decode(cfgMap map[string]interface{}) (*AppConfig, error) {
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 环境变量覆盖（优先级最高）
	OverrideDBFromEnv(&cfg.DB)
	OverrideMQFromEnv(&cfg.MQ)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideJWTFromEnv(&cfg.JWT)
	OverrideServerFromEnv(&cfg.Server)
	OverrideOtelFromEnv(&cfg.Otel)
	OverrideMailFromEnv(&cfg.Mail)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.DB.SlowQueryMs == 0 {
		cfg.DB.SlowQueryMs = 100
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = ":9091"
	}
	if cfg.Workflow.MaxAttempts <= 0 {
		cfg.Workflow.MaxAttempts = 3
	}
	if cfg.Workflow.RetryBackoffMs <= 0 {
		cfg.Workflow.RetryBackoffMs = 50
	}
	if cfg.Outbox.IntervalMs <= 0 {
		cfg.Outbox.IntervalMs = 1000
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.MaxRetries <= 0 {
		cfg.Outbox.MaxRetries = 5
	}
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = "projectflow"
	}
	if cfg.Mail.MaxRetries <= 0 {
		cfg.Mail.MaxRetries = 3
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = 587
	}
	if cfg.Mail.DedupTTLSeconds <= 0 {
		cfg.Mail.DedupTTLSeconds = 3600
	}
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideOtelFromEnv 从环境变量覆盖 OpenTelemetry 配置
func OverrideOtelFromEnv(cfg *OtelConfig) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))); v != "" {
		cfg.Enabled = v == "1" || v == "true" || v == "yes" || v == "on"
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
}

// OverrideMailFromEnv 从环境变量覆盖 SMTP 配置
func OverrideMailFromEnv(cfg *MailConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTPHost = host
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.SMTPUsername = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.SMTPPassword = password
	}
}
