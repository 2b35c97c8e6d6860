// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Solver   SolverConfig   `yaml:"solver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"` // 关闭时名册相关接口不可用
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	APIKeys   []string      `yaml:"api_keys"`   // 为空时不校验
	RateLimit int           `yaml:"rate_limit"` // 每个调用方每分钟请求数，0 表示不限
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// SolverConfig 排班引擎配置
type SolverConfig struct {
	TimeLimit            time.Duration `yaml:"time_limit"`
	Strategy             string        `yaml:"strategy"` // lexicographic/weighted
	MaxConsecutiveDays   int           `yaml:"max_consecutive_days"`
	UnavailableThreshold int           `yaml:"unavailable_threshold"`
	Top3Guarantee        int           `yaml:"top3_guarantee"`
	ForbidUnavailable    bool          `yaml:"forbid_unavailable"`
	BatchWorkers         int           `yaml:"batch_workers"`
	// MaxBackgroundSolves 超时后仍在后台运行的搜索上限，0 表示不限
	MaxBackgroundSolves int `yaml:"max_background_solves"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回默认配置
func Default() *Config {
	opts := scheduler.DefaultOptions()
	return &Config{
		App: AppConfig{
			Name:     "rota",
			Env:      "development",
			Port:     7012,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "rota",
			User:            "rota",
			Password:        "rota123",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		API: APIConfig{
			Timeout:   60 * time.Second,
			RateLimit: 120,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Solver: SolverConfig{
			TimeLimit:            opts.TimeLimit,
			Strategy:             string(opts.Strategy),
			MaxConsecutiveDays:   opts.MaxConsecutiveDays,
			UnavailableThreshold: opts.UnavailableThreshold,
			Top3Guarantee:        opts.Top3Guarantee,
			ForbidUnavailable:    opts.ForbidUnavailable,
			BatchWorkers:         opts.BatchWorkers,
			MaxBackgroundSolves:  4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 加载配置：默认值 < ROTA_CONFIG 指定的 YAML 文件 < 环境变量
func Load() (*Config, error) {
	return LoadFile(os.Getenv("ROTA_CONFIG"))
}

// LoadFile 从指定 YAML 文件加载配置，path 为空时只读取环境变量
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取配置文件失败")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析配置文件失败")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖当前值
func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Port = getEnvInt("APP_PORT", c.App.Port)
	c.App.LogLevel = getEnv("APP_LOG_LEVEL", c.App.LogLevel)

	c.Database.Enabled = getEnvBool("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.API.Timeout = getEnvDuration("API_TIMEOUT", c.API.Timeout)
	c.API.APIKeys = getEnvList("API_KEYS", c.API.APIKeys)
	c.API.RateLimit = getEnvInt("API_RATE_LIMIT", c.API.RateLimit)
	c.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", c.API.CORS.Enabled)
	c.API.CORS.Origins = getEnvList("API_CORS_ORIGINS", c.API.CORS.Origins)

	c.Solver.TimeLimit = getEnvDuration("SOLVER_TIME_LIMIT", c.Solver.TimeLimit)
	c.Solver.Strategy = getEnv("SOLVER_STRATEGY", c.Solver.Strategy)
	c.Solver.MaxConsecutiveDays = getEnvInt("SOLVER_MAX_CONSECUTIVE_DAYS", c.Solver.MaxConsecutiveDays)
	c.Solver.UnavailableThreshold = getEnvInt("SOLVER_UNAVAILABLE_THRESHOLD", c.Solver.UnavailableThreshold)
	c.Solver.Top3Guarantee = getEnvInt("SOLVER_TOP3_GUARANTEE", c.Solver.Top3Guarantee)
	c.Solver.ForbidUnavailable = getEnvBool("SOLVER_FORBID_UNAVAILABLE", c.Solver.ForbidUnavailable)
	c.Solver.BatchWorkers = getEnvInt("SOLVER_BATCH_WORKERS", c.Solver.BatchWorkers)
	c.Solver.MaxBackgroundSolves = getEnvInt("SOLVER_MAX_BACKGROUND_SOLVES", c.Solver.MaxBackgroundSolves)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// Validate 检查配置
func (c *Config) Validate() error {
	ve := &errors.ValidationErrors{}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		ve.Add("app.port", "端口超出范围")
	}
	if c.API.RateLimit < 0 {
		ve.Add("api.rate_limit", "限流值不能为负")
	}
	if _, err := objective.ParseStrategy(c.Solver.Strategy); err != nil {
		ve.Add("solver.strategy", fmt.Sprintf("未知策略 %q", c.Solver.Strategy))
	}
	if c.Solver.TimeLimit <= 0 {
		ve.Add("solver.time_limit", "时间预算必须为正")
	}
	if c.Solver.MaxConsecutiveDays < 1 {
		ve.Add("solver.max_consecutive_days", "最大连续天数必须至少为 1")
	}
	if c.Solver.UnavailableThreshold <= 0 {
		ve.Add("solver.unavailable_threshold", "不可用阈值必须为正")
	}
	if c.Solver.Top3Guarantee < 0 {
		ve.Add("solver.top3_guarantee", "前三偏好保底天数不能为负")
	}
	if c.Solver.BatchWorkers < 1 {
		ve.Add("solver.batch_workers", "并发数必须至少为 1")
	}
	if c.Solver.MaxBackgroundSolves < 0 {
		ve.Add("solver.max_background_solves", "后台搜索上限不能为负")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// SchedulerOptions 转换为排班引擎选项
func (c *Config) SchedulerOptions() scheduler.Options {
	strategy, _ := objective.ParseStrategy(c.Solver.Strategy)
	return scheduler.Options{
		TimeLimit:            c.Solver.TimeLimit,
		Strategy:             strategy,
		MaxConsecutiveDays:   c.Solver.MaxConsecutiveDays,
		Top3Guarantee:        c.Solver.Top3Guarantee,
		ForbidUnavailable:    c.Solver.ForbidUnavailable,
		UnavailableThreshold: c.Solver.UnavailableThreshold,
		BatchWorkers:         c.Solver.BatchWorkers,
	}
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔的列表
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
