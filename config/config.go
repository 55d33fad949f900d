package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Agent     AgentConfig     `mapstructure:"agent"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Events    EventsConfig    `mapstructure:"events"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"`
	BodyLimitBytes int64         `mapstructure:"body_limit_bytes"`
	CORS           CORSConfig    `mapstructure:"cors"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	// 登录、注册、发送验证码按 IP 限流
	AuthRateLimit  int           `mapstructure:"auth_rate_limit"`
	AuthRateWindow time.Duration `mapstructure:"auth_rate_window"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// IdentityConfig 身份解析配置
type IdentityConfig struct {
	ProfileFetchTimeout time.Duration `mapstructure:"profile_fetch_timeout"`
	ProfileCacheTTL     time.Duration `mapstructure:"profile_cache_ttl"`
}

// AgentConfig 智能导诊 webhook 配置
type AgentConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// 熔断器：连续失败 BreakerFailures 次后打开，BreakerCooldown 后半开
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// OTPConfig 验证码 webhook 配置
type OTPConfig struct {
	SendURL    string        `mapstructure:"send_url"`
	VerifyURL  string        `mapstructure:"verify_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SendLimit  int           `mapstructure:"send_limit"`
	SendWindow time.Duration `mapstructure:"send_window"`
}

// SchedulerConfig 出诊时段模板配置
type SchedulerConfig struct {
	DayStart    string `mapstructure:"day_start"` // HH:MM，含
	DayEnd      string `mapstructure:"day_end"`   // HH:MM，不含
	SlotMinutes int    `mapstructure:"slot_minutes"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig OpenTelemetry 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// EventsConfig 领域事件（Kafka）配置，brokers 为空时不投递
type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled 是否启用事件投递
func (c *EventsConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.auth_rate_limit", 20)
	v.SetDefault("server.auth_rate_window", "1m")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "smart_opd")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "30m")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	v.SetDefault("identity.profile_fetch_timeout", "3s")
	v.SetDefault("identity.profile_cache_ttl", "5m")

	v.SetDefault("agent.webhook_url", "https://smartopd-agent.onrender.com/webhook/chat")
	v.SetDefault("agent.timeout", "30s")
	v.SetDefault("agent.breaker_failures", 5)
	v.SetDefault("agent.breaker_cooldown", "30s")

	v.SetDefault("otp.send_url", "https://smartopd-agent.onrender.com/webhook/send-otp")
	v.SetDefault("otp.verify_url", "https://smartopd-agent.onrender.com/webhook/verify-otp")
	v.SetDefault("otp.timeout", "10s")
	v.SetDefault("otp.send_limit", 3)
	v.SetDefault("otp.send_window", "10m")

	v.SetDefault("scheduler.day_start", "09:00")
	v.SetDefault("scheduler.day_end", "17:00")
	v.SetDefault("scheduler.slot_minutes", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "smartopd")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "smart-opd")
	v.SetDefault("tracing.sample_rate", 0.1)

	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "smartopd.events")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SMARTOPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Agent.WebhookURL == "" {
		return fmt.Errorf("配置校验失败: agent.webhook_url 不能为空")
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// Validate 校验时段模板：起止时间合法且区间能被时段长度整除
func (s *SchedulerConfig) Validate() error {
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("scheduler.slot_minutes 必须大于 0")
	}
	start, err := time.Parse("15:04", s.DayStart)
	if err != nil {
		return fmt.Errorf("scheduler.day_start 格式无效: %q", s.DayStart)
	}
	end, err := time.Parse("15:04", s.DayEnd)
	if err != nil {
		return fmt.Errorf("scheduler.day_end 格式无效: %q", s.DayEnd)
	}
	span := int(end.Sub(start).Minutes())
	if span <= 0 {
		return fmt.Errorf("scheduler.day_end 必须晚于 day_start")
	}
	if span%s.SlotMinutes != 0 {
		return fmt.Errorf("scheduler 区间 %d 分钟不能被 slot_minutes=%d 整除", span, s.SlotMinutes)
	}
	return nil
}
