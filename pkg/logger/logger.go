// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

type ctxKey string

// RequestIDKey 上下文中的请求ID键
const RequestIDKey ctxKey = "request_id"

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		switch cfg.Output {
		case "stdout":
			output = os.Stdout
		case "file":
			output = os.Stderr
			if cfg.FilePath != "" {
				if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					output = f
				}
			}
		default:
			output = os.Stderr
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// ForContext 返回携带请求ID的排班日志器
func (l *SchedulerLogger) ForContext(ctx context.Context) *SchedulerLogger {
	reqID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || reqID == "" {
		return l
	}
	child := l.base.With().Str("request_id", reqID).Logger()
	return &SchedulerLogger{base: &child}
}

// StartSolve 记录求解开始
func (l *SchedulerLogger) StartSolve(engine string, employees, days int, strategy string) {
	l.base.Info().
		Str("engine", engine).
		Int("employees", employees).
		Int("days", days).
		Str("strategy", strategy).
		Msg("开始生成排班")
}

// ConstraintSkipped 记录按员工跳过的约束
func (l *SchedulerLogger) ConstraintSkipped(constraint, employee, reason string) {
	l.base.Debug().
		Str("constraint", constraint).
		Str("employee", employee).
		Str("reason", reason).
		Msg("约束未生效")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// PhaseComplete 记录字典序求解的单个阶段
func (l *SchedulerLogger) PhaseComplete(phase string, status string, value int64, duration time.Duration) {
	l.base.Debug().
		Str("phase", phase).
		Str("status", status).
		Int64("value", value).
		Dur("duration", duration).
		Msg("求解阶段完成")
}

// SolveComplete 记录排班完成
func (l *SchedulerLogger) SolveComplete(status string, duration time.Duration, maxCost, totalCost int64) {
	l.base.Info().
		Str("status", status).
		Dur("duration", duration).
		Int64("max_employee_cost", maxCost).
		Int64("total_cost", totalCost).
		Msg("排班生成完成")
}

// SolveFailed 记录排班失败
func (l *SchedulerLogger) SolveFailed(err error, duration time.Duration) {
	l.base.Warn().
		Err(err).
		Dur("duration", duration).
		Msg("排班生成失败")
}

// SolverDetached 记录超时后转入后台的搜索
func (l *SchedulerLogger) SolverDetached(engine string, detached int64, timeLimit time.Duration) {
	l.base.Warn().
		Str("engine", engine).
		Int64("detached", detached).
		Dur("time_limit", timeLimit).
		Msg("求解超时，搜索转入后台")
}

// SolverBusy 记录因后台搜索过多而拒绝的求解
func (l *SchedulerLogger) SolverBusy(engine string, detached int64) {
	l.base.Warn().
		Str("engine", engine).
		Int64("detached", detached).
		Msg("后台搜索已达上限，跳过求解")
}
