// Package scheduler 排班引擎入口：把请求依次交给成本矩阵、模型构建、
// 目标组合、求解和结果提取
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/extract"
	"github.com/paiban/rota/pkg/scheduler/objective"
	"github.com/paiban/rota/pkg/scheduler/solver"
	"github.com/paiban/rota/pkg/stats"
)

// Options 排班选项
type Options struct {
	TimeLimit            time.Duration
	Strategy             objective.Strategy
	MaxConsecutiveDays   int // 请求未指定时使用
	Top3Guarantee        int
	ForbidUnavailable    bool
	UnavailableThreshold int
	BatchWorkers         int
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		TimeLimit:            solver.DefaultTimeLimit,
		Strategy:             objective.StrategyLexicographic,
		MaxConsecutiveDays:   model.DefaultMaxConsecutiveDays,
		Top3Guarantee:        1,
		ForbidUnavailable:    true,
		UnavailableThreshold: model.CostUnavailable,
		BatchWorkers:         4,
	}
}

// Result 排班结果
type Result struct {
	Schedule  model.Schedule          `json:"schedule"`
	Status    solver.Status           `json:"status"`
	Strategy  objective.Strategy      `json:"strategy"`
	Objective objective.Values        `json:"objective"`
	Phases    []solver.PhaseResult    `json:"phases,omitempty"`
	Report    *constraint.BuildReport `json:"report,omitempty"`
	Fairness  *stats.FairnessMetrics  `json:"fairness,omitempty"`
	Duration  time.Duration           `json:"duration"`
}

// MarshalJSON 耗时输出为 "1.5s" 形式，与接口响应一致
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		Duration string `json:"duration"`
	}{alias(r), r.Duration.String()})
}

// ActiveGauge 进行中求解数的计数器，prometheus.Gauge 满足该接口
type ActiveGauge interface {
	Inc()
	Dec()
}

// Scheduler 排班引擎
type Scheduler struct {
	engine   solver.Engine
	manager  *constraint.Manager
	opts     Options
	logger   *logger.SchedulerLogger
	fairness *stats.FairnessAnalyzer
	active   ActiveGauge
}

// New 创建排班引擎
func New(engine solver.Engine, opts Options) *Scheduler {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = solver.DefaultTimeLimit
	}
	if opts.Strategy == "" {
		opts.Strategy = objective.StrategyLexicographic
	}
	if opts.MaxConsecutiveDays == 0 {
		opts.MaxConsecutiveDays = model.DefaultMaxConsecutiveDays
	}
	if opts.UnavailableThreshold <= 0 {
		opts.UnavailableThreshold = model.CostUnavailable
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 1
	}
	manager := builtin.NewDefaultManager()
	if !opts.ForbidUnavailable {
		manager.Unregister(constraint.TypeAvailability)
	}
	return &Scheduler{
		engine:   engine,
		manager:  manager,
		opts:     opts,
		logger:   logger.NewSchedulerLogger(),
		fairness: stats.NewFairnessAnalyzer().WithUnavailableThreshold(opts.UnavailableThreshold),
	}
}

// NewDefault 使用 gophersat 引擎和默认选项
func NewDefault() *Scheduler {
	return New(solver.NewPBEngine(), DefaultOptions())
}

// WithActiveGauge 在每次求解期间对 g 加一
func (s *Scheduler) WithActiveGauge(g ActiveGauge) *Scheduler {
	s.active = g
	return s
}

// Options 返回当前选项
func (s *Scheduler) Options() Options { return s.opts }

// Manager 返回约束管理器，可用于注册额外约束
func (s *Scheduler) Manager() *constraint.Manager { return s.manager }

// Generate 生成排班
//
// 任何错误都不附带部分排班。
func (s *Scheduler) Generate(ctx context.Context, req *model.Request) (*Result, error) {
	if s.active != nil {
		s.active.Inc()
		defer s.active.Dec()
	}
	start := time.Now()
	log := s.logger.ForContext(ctx)

	result, err := s.generate(ctx, req, log)
	if err != nil {
		log.SolveFailed(err, time.Since(start))
		return nil, err
	}
	result.Duration = time.Since(start)
	log.SolveComplete(result.Status.String(), result.Duration,
		result.Objective[objective.TermMaxEmployeeCost], result.Objective[objective.TermTotalCost])
	return result, nil
}

func (s *Scheduler) generate(ctx context.Context, req *model.Request, log *logger.SchedulerLogger) (*Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	log.StartSolve(s.engine.Name(), len(req.Employees), len(req.Dates), string(s.opts.Strategy))

	matrix, err := costmatrix.Build(req.Employees, req.Dates, s.costConfig())
	if err != nil {
		return nil, err
	}

	// 没有日期时直接返回空排班，不创建任何变量
	if matrix.NumDays() == 0 {
		return &Result{
			Schedule:  model.Schedule{},
			Status:    solver.StatusOptimal,
			Strategy:  s.opts.Strategy,
			Objective: objective.Values{},
		}, nil
	}

	if err := extract.Screen(matrix, s.opts.ForbidUnavailable); err != nil {
		return nil, err
	}

	bctx, err := constraint.NewModelBuilder(s.manager, s.constraintOptions(req)).Build(matrix)
	if err != nil {
		return nil, err
	}

	plan, err := objective.Compose(bctx, s.opts.Strategy)
	if err != nil {
		return nil, err
	}

	out, err := solver.NewAdapter(s.engine, s.opts.TimeLimit).Run(ctx, bctx.Model, plan)
	if err != nil {
		return nil, err
	}

	schedule, err := extract.Extract(bctx, out)
	if err != nil {
		return nil, err
	}

	assignment := objective.AssignmentFromValues(bctx, out.Values)
	if check := s.manager.Evaluate(bctx, assignment); !check.IsValid {
		v := check.HardViolations[0]
		return nil, errors.InternalModel(fmt.Sprintf("求解结果违反约束 %s: %s", v.ConstraintName, v.Message))
	}

	return &Result{
		Schedule:  schedule,
		Status:    out.Status,
		Strategy:  plan.Strategy,
		Objective: objective.Evaluate(bctx, assignment),
		Phases:    out.Phases,
		Report:    bctx.Report,
		Fairness:  s.fairness.Analyze(schedule, req.Employees),
	}, nil
}

// validate 检查请求中与求解无关的输入错误
func (s *Scheduler) validate(req *model.Request) error {
	ve := &errors.ValidationErrors{}
	if req == nil {
		ve.Add("request", "请求不能为空")
		return ve.ToAppError()
	}
	if len(req.Employees) == 0 {
		ve.Add("employees", "员工列表不能为空")
	}
	seen := make(map[string]bool, len(req.Employees))
	for i, e := range req.Employees {
		field := fmt.Sprintf("employees[%d].name", i)
		if e.Name == "" {
			ve.Add(field, "员工姓名不能为空")
			continue
		}
		if seen[e.Name] {
			ve.Add(field, fmt.Sprintf("员工姓名 %q 重复", e.Name))
		}
		seen[e.Name] = true
	}
	if req.MaxConsecutiveDays != nil && *req.MaxConsecutiveDays < 1 {
		ve.Add("max_consecutive_days", "最大连续天数必须至少为 1")
	}
	if s.opts.Top3Guarantee < 0 {
		ve.Add("top3_guarantee", "前三偏好保底天数不能为负")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

func (s *Scheduler) costConfig() costmatrix.Config {
	cfg := costmatrix.DefaultConfig()
	cfg.UnavailableThreshold = s.opts.UnavailableThreshold
	return cfg
}

func (s *Scheduler) constraintOptions(req *model.Request) constraint.Options {
	k := s.opts.MaxConsecutiveDays
	if req.MaxConsecutiveDays != nil {
		k = *req.MaxConsecutiveDays
	}
	return constraint.Options{
		MaxConsecutiveDays: k,
		Top3Guarantee:      s.opts.Top3Guarantee,
		ForbidUnavailable:  s.opts.ForbidUnavailable,
	}
}
