// Package metrics 提供Prometheus监控指标
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

const namespace = "rota"

// Registry 应用自己的指标注册表
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// HTTPRequestsTotal HTTP请求总数
var HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "HTTP请求总数",
}, []string{"method", "path", "status"})

// HTTPRequestDuration HTTP请求延迟
var HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "http_request_duration_seconds",
	Help:      "HTTP请求延迟",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
}, []string{"method", "path"})

// ScheduleGenerationTotal 排班生成次数，status 为求解状态或错误码
var ScheduleGenerationTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "schedule_generation_total",
	Help:      "排班生成次数",
}, []string{"strategy", "status"})

// ScheduleGenerationDuration 排班生成延迟
var ScheduleGenerationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "schedule_generation_duration_seconds",
	Help:      "排班生成延迟",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 25.0, 60.0},
}, []string{"strategy"})

// InfeasibleTotal 无解诊断原因
var InfeasibleTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "infeasible_total",
	Help:      "无可行解次数，按诊断原因",
}, []string{"reason"})

// ObjectiveValue 最近一次排班的目标项取值
var ObjectiveValue = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "objective_value",
	Help:      "最近一次排班的目标项取值",
}, []string{"term"})

// FairnessGini 最近一次排班的基尼系数
var FairnessGini = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "fairness_gini",
	Help:      "公平性基尼系数",
}, []string{"metric_type"})

// ConstraintsSkipped 构建模型时按员工跳过的约束
var ConstraintsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "constraints_skipped_total",
	Help:      "按员工跳过的约束次数",
}, []string{"constraint_type"})

// ActiveSolves 当前进行中的求解
var ActiveSolves = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_solves",
	Help:      "当前进行中的求解数",
})

// ObserveDetachedSolves 注册超时后仍在后台运行的搜索数，只能调用一次
func ObserveDetachedSolves(detached func() int64) {
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "detached_solves",
		Help:      "超时后仍在后台运行的搜索数",
	}, func() float64 { return float64(detached()) })
}

// DBConnections 数据库连接池
var DBConnections = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "db_connections",
	Help:      "数据库连接数",
}, []string{"state"})

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScheduleGeneration 记录一次排班生成
func RecordScheduleGeneration(strategy objective.Strategy, result *scheduler.Result, err error, duration time.Duration) {
	status := "error"
	switch {
	case err != nil:
		status = string(errors.GetCode(err))
		if errors.Is(err, errors.CodeNoFeasibleSolution) {
			InfeasibleTotal.WithLabelValues(string(errors.GetReason(err))).Inc()
		}
	case result != nil:
		status = result.Status.String()
		for term, v := range result.Objective {
			ObjectiveValue.WithLabelValues(string(term)).Set(float64(v))
		}
		if result.Fairness != nil {
			FairnessGini.WithLabelValues("days").Set(result.Fairness.DaysGini)
			FairnessGini.WithLabelValues("cost").Set(result.Fairness.CostGini)
			FairnessGini.WithLabelValues("weekend").Set(result.Fairness.WeekendGini)
		}
		if result.Report != nil {
			for _, s := range result.Report.Skipped {
				ConstraintsSkipped.WithLabelValues(string(s.ConstraintType)).Inc()
			}
		}
	}
	ScheduleGenerationTotal.WithLabelValues(string(strategy), status).Inc()
	ScheduleGenerationDuration.WithLabelValues(string(strategy)).Observe(duration.Seconds())
}

// RecordDBStats 记录数据库连接池状态
func RecordDBStats(stats sql.DBStats) {
	DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
}
