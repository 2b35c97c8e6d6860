// Package objective 组合分层的公平性与偏好目标
//
// 目标按优先级从高到低：
//
//	P0 min_rank1_days        最大化有第一偏好员工中最少的第一偏好天数
//	P1 max_employee_cost     最小化单个员工的最大成本
//	P2 max_worst_tier_days   最小化单个员工的最差档天数
//	P3 total_worst_tier_days 最小化最差档总天数
//	P4 total_cost            最小化总成本
//
// 字典序策略逐层求解并锁定上一层的最优值；加权策略把各层合成一个目标，
// 权重保证高优先级严格支配低优先级。
package objective

import (
	"fmt"
	"math"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// TermID 目标项标识
type TermID string

const (
	TermMinRank1Days       TermID = "min_rank1_days"
	TermMaxEmployeeCost    TermID = "max_employee_cost"
	TermMaxWorstTierDays   TermID = "max_worst_tier_days"
	TermTotalWorstTierDays TermID = "total_worst_tier_days"
	TermTotalCost          TermID = "total_cost"
)

// Strategy 多目标组合策略
type Strategy string

const (
	StrategyLexicographic Strategy = "lexicographic"
	StrategyWeighted      Strategy = "weighted"
)

// ParseStrategy 解析策略名称
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLexicographic, "":
		return StrategyLexicographic, nil
	case StrategyWeighted:
		return StrategyWeighted, nil
	}
	return "", errors.InvalidInput("strategy", fmt.Sprintf("未知策略 %q", s))
}

// MaxCombinedMagnitude 加权目标允许的最大绝对值
// 引擎把目标系数与整数变量的二进制位相乘，超过 2^53 后不再安全。
const MaxCombinedMagnitude int64 = 1 << 53

// Term 单个目标项
type Term struct {
	ID       TermID
	Priority int
	Sense    lp.Sense
	Expr     *lp.LinearExpr
	Span     int64 // 可取值范围的宽度
}

// Plan 求解计划
type Plan struct {
	Strategy Strategy
	Terms    []Term // 按优先级排列

	// 加权策略
	Weights  []int64
	Combined *lp.LinearExpr
}

// Compose 在 ctx.Model 上声明辅助变量和链接约束，并生成求解计划
func Compose(ctx *constraint.Context, strategy Strategy) (*Plan, error) {
	plan := &Plan{Strategy: strategy}
	m := ctx.Model
	matrix := ctx.Matrix
	days := matrix.NumDays()
	maxLoad := int64(ctx.MaxLoad)

	// P0
	if rank1 := ctx.Rank1Employees(); len(rank1) > 0 {
		r := m.NewIntVar(0, maxLoad, string(TermMinRank1Days))
		for _, i := range rank1 {
			expr := lp.NewExpr().AddTerm(r, -1)
			for _, d := range matrix.Rank1(i) {
				expr.AddTerm(ctx.X[i][d], 1)
			}
			m.AddGreaterOrEqual(fmt.Sprintf("link_rank1[%d]", i), expr, 0)
		}
		plan.Terms = append(plan.Terms, Term{
			ID: TermMinRank1Days, Sense: lp.Maximize, Expr: lp.Sum(r), Span: maxLoad,
		})
	}

	// P1
	var maxCost int64
	for i := range ctx.X {
		c := int64(matrix.MaxAttainableCost(i, ctx.MaxLoad, ctx.Options.ForbidUnavailable))
		if c > maxCost {
			maxCost = c
		}
	}
	mv := m.NewIntVar(0, maxCost, string(TermMaxEmployeeCost))
	for i := range ctx.X {
		expr := lp.NewExpr().AddTerm(mv, 1)
		for d, x := range ctx.X[i] {
			expr.AddTerm(x, -int64(matrix.Cost(i, d)))
		}
		m.AddGreaterOrEqual(fmt.Sprintf("link_cost[%d]", i), expr, 0)
	}
	plan.Terms = append(plan.Terms, Term{
		ID: TermMaxEmployeeCost, Sense: lp.Minimize, Expr: lp.Sum(mv), Span: maxCost,
	})

	// P2
	w := m.NewIntVar(0, maxLoad, string(TermMaxWorstTierDays))
	total := lp.NewExpr()
	for i := range ctx.X {
		expr := lp.NewExpr().AddTerm(w, 1)
		for d, x := range ctx.X[i] {
			if matrix.WorstTier(i, d) {
				expr.AddTerm(x, -1)
				total.AddTerm(x, 1)
			}
		}
		m.AddGreaterOrEqual(fmt.Sprintf("link_worst[%d]", i), expr, 0)
	}
	plan.Terms = append(plan.Terms, Term{
		ID: TermMaxWorstTierDays, Sense: lp.Minimize, Expr: lp.Sum(w), Span: maxLoad,
	})

	// P3
	plan.Terms = append(plan.Terms, Term{
		ID: TermTotalWorstTierDays, Sense: lp.Minimize, Expr: total, Span: int64(days),
	})

	// P4
	cost := lp.NewExpr()
	var costSpan int64
	for d := 0; d < days; d++ {
		var dayMax int64
		for i := range ctx.X {
			if ctx.Options.ForbidUnavailable && !matrix.Available(i, d) {
				continue
			}
			c := int64(matrix.Cost(i, d))
			cost.AddTerm(ctx.X[i][d], c)
			if c > dayMax {
				dayMax = c
			}
		}
		costSpan += dayMax
	}
	plan.Terms = append(plan.Terms, Term{
		ID: TermTotalCost, Sense: lp.Minimize, Expr: cost, Span: costSpan,
	})

	for k := range plan.Terms {
		plan.Terms[k].Priority = k
	}

	switch strategy {
	case StrategyLexicographic:
	case StrategyWeighted:
		if err := plan.scalarize(); err != nil {
			return nil, err
		}
		m.Minimize(plan.Combined)
	default:
		return nil, errors.InvalidInput("strategy", fmt.Sprintf("未知策略 %q", strategy))
	}
	return plan, nil
}

// scalarize 计算 w_k = 1 + Σ_{j>k} w_j·R_j 并合成单一最小化目标
func (p *Plan) scalarize() error {
	n := len(p.Terms)
	p.Weights = make([]int64, n)

	var lower int64 // Σ_{j>k} w_j·R_j
	for k := n - 1; k >= 0; k-- {
		wk := lower + 1
		p.Weights[k] = wk

		span := p.Terms[k].Span
		if span > 0 && wk > (math.MaxInt64-lower)/span {
			return overflowError()
		}
		lower += wk * span
		if lower > MaxCombinedMagnitude {
			return overflowError()
		}
	}

	p.Combined = lp.NewExpr()
	for k, t := range p.Terms {
		scale := p.Weights[k]
		if t.Sense == lp.Maximize {
			scale = -scale
		}
		p.Combined.AddExpr(t.Expr, scale)
	}
	return nil
}

func overflowError() error {
	return errors.InternalModel("加权目标的权重超出引擎整数范围，请改用 lexicographic 策略或缩短排班周期")
}

// Values 各目标项的取值
type Values map[TermID]int64

// Evaluate 根据 x 变量的取值计算每个目标项的真实值
// 辅助变量可能不紧，这里只读决策变量。
func Evaluate(ctx *constraint.Context, a constraint.Assignment) Values {
	matrix := ctx.Matrix
	v := Values{}

	if rank1 := ctx.Rank1Employees(); len(rank1) > 0 {
		minDays := int64(math.MaxInt64)
		for _, i := range rank1 {
			var n int64
			for _, d := range matrix.Rank1(i) {
				if a[i][d] {
					n++
				}
			}
			if n < minDays {
				minDays = n
			}
		}
		v[TermMinRank1Days] = minDays
	}

	var maxCost, maxWorst, totalWorst, totalCost int64
	for i := range a {
		var empCost, empWorst int64
		for d, on := range a[i] {
			if !on {
				continue
			}
			empCost += int64(matrix.Cost(i, d))
			if matrix.WorstTier(i, d) {
				empWorst++
			}
		}
		if empCost > maxCost {
			maxCost = empCost
		}
		if empWorst > maxWorst {
			maxWorst = empWorst
		}
		totalWorst += empWorst
		totalCost += empCost
	}
	v[TermMaxEmployeeCost] = maxCost
	v[TermMaxWorstTierDays] = maxWorst
	v[TermTotalWorstTierDays] = totalWorst
	v[TermTotalCost] = totalCost
	return v
}

// AssignmentFromValues 从变量取值还原分配矩阵
func AssignmentFromValues(ctx *constraint.Context, values []int64) constraint.Assignment {
	a := constraint.NewAssignment(len(ctx.X), ctx.Matrix.NumDays())
	for i := range ctx.X {
		for d, x := range ctx.X[i] {
			a[i][d] = int(x) < len(values) && values[x] == 1
		}
	}
	return a
}
