// rota 值班排班服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/paiban/rota/internal/config"
	"github.com/paiban/rota/internal/database"
	"github.com/paiban/rota/internal/handler"
	"github.com/paiban/rota/internal/metrics"
	"github.com/paiban/rota/internal/middleware"
	"github.com/paiban/rota/internal/repository"
	"github.com/paiban/rota/internal/security"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/solver"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// dbStatsInterval 连接池指标采样间隔
const dbStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	format := "console"
	if cfg.IsProduction() {
		format = "json"
	}
	logger.Init(logger.Config{
		Level:      cfg.App.LogLevel,
		Format:     format,
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := solver.NewPBEngine()
	engine.MaxDetached = cfg.Solver.MaxBackgroundSolves
	metrics.ObserveDetachedSolves(engine.Detached)

	sched := scheduler.New(engine, cfg.SchedulerOptions()).WithActiveGauge(metrics.ActiveSolves)
	scheduleHandler := handler.NewScheduleHandler(sched)
	statsHandler := handler.NewStatsHandler(cfg.Solver.UnavailableThreshold)

	// 数据库可选：关闭时只提供无状态的排班接口
	var db *database.DB
	var rosterHandler *handler.RosterHandler
	if cfg.Database.Enabled {
		var err error
		db, err = database.New(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		rosterHandler = handler.NewRosterHandler(
			repository.NewRosterRepository(db),
			repository.NewPreferenceSessionRepository(db),
			scheduleHandler,
		)
		go reportDBStats(ctx, db)
	}

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		dbStatus := "disabled"
		if db != nil {
			dbStatus = "ok"
			if err := db.Health(r.Context()); err != nil {
				status, code, dbStatus = "degraded", http.StatusServiceUnavailable, err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"service":%q,"database":%q}`, status, cfg.App.Name, dbStatus)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":%q,"build_time":%q,"git_commit":%q}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API 端点
	// ========================================

	mux.HandleFunc("GET /api/v1/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"message": "rota 值班排班 API v1",
			"endpoints": {
				"schedule": {
					"generate": "POST /api/v1/schedule/generate",
					"validate": "POST /api/v1/schedule/validate",
					"batch": "POST /api/v1/schedule/batch",
					"legacy": "POST /api/generateSchedule"
				},
				"constraints": {
					"library": "GET /api/v1/constraints/library"
				},
				"stats": {
					"fairness": "POST /api/v1/stats/fairness",
					"coverage": "POST /api/v1/stats/coverage"
				},
				"rosters": {
					"create": "POST /api/v1/rosters",
					"list": "GET /api/v1/rosters",
					"get": "GET /api/v1/rosters/{id}",
					"schedule": "POST /api/v1/rosters/{id}/schedule"
				},
				"sessions": {
					"create": "POST /api/v1/sessions",
					"get": "GET /api/v1/sessions/{id}",
					"respond": "POST /api/v1/sessions/{id}/responses",
					"schedule": "POST /api/v1/sessions/{id}/schedule"
				}
			}
		}`))
	})

	handler.Register(mux, scheduleHandler, statsHandler, rosterHandler)

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	limiter := security.NewRateLimiter(cfg.API.RateLimit, time.Minute)
	go limiter.Run(ctx)

	publicPaths := append([]string{cfg.Metrics.Path}, middleware.PublicPaths...)

	// 执行顺序：requestID -> recovery -> securityHeaders -> cors -> apiKey -> rateLimit -> logging -> handler
	h := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery,
		middleware.SecurityHeaders,
		middleware.CORS(cfg.API.CORS),
		middleware.APIKey(security.NewKeySet(cfg.API.APIKeys), publicPaths),
		middleware.RateLimit(limiter, publicPaths),
		middleware.Logging,
	)

	addr := ":" + strconv.Itoa(cfg.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Str("strategy", cfg.Solver.Strategy).
			Dur("time_limit", cfg.Solver.TimeLimit).
			Bool("database", cfg.Database.Enabled).
			Bool("api_keys", len(cfg.API.APIKeys) > 0).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("正在关闭服务器...")

	// 留出时间让正在求解的请求结束
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Solver.TimeLimit+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}

// reportDBStats 定期记录连接池指标
func reportDBStats(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordDBStats(db.Stats())
		}
	}
}
