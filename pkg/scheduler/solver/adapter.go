package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/scheduler/lp"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

// DefaultTimeLimit 默认求解时间预算
const DefaultTimeLimit = 25 * time.Second

// PhaseResult 字典序求解的单个阶段
type PhaseResult struct {
	Term     objective.TermID `json:"term"`
	Status   Status           `json:"status"`
	Value    int64            `json:"value"`
	Duration time.Duration    `json:"duration"`
}

func (p PhaseResult) MarshalJSON() ([]byte, error) {
	type alias PhaseResult
	return json.Marshal(struct {
		alias
		Duration string `json:"duration"`
	}{alias(p), p.Duration.String()})
}

// Outcome 完整求解结果
type Outcome struct {
	Status   Status
	Values   []int64
	Phases   []PhaseResult
	Duration time.Duration
}

// Adapter 按求解计划驱动引擎
type Adapter struct {
	engine    Engine
	timeLimit time.Duration
	logger    *logger.SchedulerLogger
}

// NewAdapter 创建求解适配器，timeLimit <= 0 时使用默认预算
func NewAdapter(engine Engine, timeLimit time.Duration) *Adapter {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &Adapter{
		engine:    engine,
		timeLimit: timeLimit,
		logger:    logger.NewSchedulerLogger(),
	}
}

// Run 求解模型；原模型不会被修改
func (a *Adapter) Run(ctx context.Context, m *lp.Model, plan *objective.Plan) (*Outcome, error) {
	start := time.Now()
	log := a.logger.ForContext(ctx)

	var (
		out *Outcome
		err error
	)
	switch plan.Strategy {
	case objective.StrategyWeighted:
		out, err = a.runWeighted(ctx, m)
	default:
		out, err = a.runLexicographic(ctx, m, plan, start.Add(a.timeLimit), log)
	}
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

func (a *Adapter) runWeighted(ctx context.Context, m *lp.Model) (*Outcome, error) {
	res, err := a.engine.Solve(ctx, m, a.timeLimit)
	if err != nil {
		return nil, err
	}
	return &Outcome{Status: res.Status, Values: res.Values}, nil
}

// runLexicographic 逐阶段求解，每个阶段结束后锁定该目标项的最优值
// 所有阶段共享同一个截止时间。
func (a *Adapter) runLexicographic(ctx context.Context, m *lp.Model, plan *objective.Plan, deadline time.Time, log *logger.SchedulerLogger) (*Outcome, error) {
	working := m.Clone()
	out := &Outcome{Status: StatusOptimal}

	for _, term := range plan.Terms {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return degrade(out), nil
		}

		if term.Sense == lp.Maximize {
			working.Maximize(term.Expr)
		} else {
			working.Minimize(term.Expr)
		}

		res, err := a.engine.Solve(ctx, working, remaining)
		if err != nil {
			return nil, err
		}

		phase := PhaseResult{Term: term.ID, Status: res.Status, Duration: res.WallTime}
		if res.Status.HasSolution() {
			phase.Value = term.Expr.Eval(res.Values)
		}
		out.Phases = append(out.Phases, phase)
		log.PhaseComplete(string(term.ID), res.Status.String(), phase.Value, res.WallTime)

		switch res.Status {
		case StatusOptimal:
			out.Values = res.Values
			pin := fmt.Sprintf("pin_%s", term.ID)
			if term.Sense == lp.Maximize {
				working.AddGreaterOrEqual(pin, term.Expr, phase.Value)
			} else {
				working.AddLessOrEqual(pin, term.Expr, phase.Value)
			}
		case StatusFeasible:
			out.Values = res.Values
			out.Status = StatusFeasible
			return out, nil
		case StatusInfeasible:
			if out.Values != nil {
				// 上一阶段的解满足所有锁定约束，这里不可能无解
				return nil, errors.InternalModel(fmt.Sprintf("阶段 %s 在锁定前序最优值后无解", term.ID))
			}
			return &Outcome{Status: StatusInfeasible, Phases: out.Phases}, nil
		case StatusInvalid:
			return &Outcome{Status: StatusInvalid, Phases: out.Phases}, nil
		default:
			return degrade(out), nil
		}
	}
	return out, nil
}

// degrade 预算耗尽：有前序解时降级为 FEASIBLE，否则 UNKNOWN
func degrade(out *Outcome) *Outcome {
	if out.Values == nil {
		out.Status = StatusUnknown
		return out
	}
	out.Status = StatusFeasible
	return out
}
