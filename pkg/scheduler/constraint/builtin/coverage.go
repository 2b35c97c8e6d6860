package builtin

import (
	"fmt"

	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// CoverageConstraint 每天恰好一名员工值班
type CoverageConstraint struct {
	*BaseConstraint
}

// NewCoverageConstraint 创建每日覆盖约束
func NewCoverageConstraint() *CoverageConstraint {
	return &CoverageConstraint{
		BaseConstraint: NewBaseConstraint("每日一人值班", constraint.TypeCoverage, constraint.CategoryHard),
	}
}

// Emit 每天 Σ_i x[i][d] = 1
func (c *CoverageConstraint) Emit(ctx *constraint.Context) error {
	for d := 0; d < ctx.Matrix.NumDays(); d++ {
		expr := lp.NewExpr()
		for i := range ctx.X {
			expr.AddTerm(ctx.X[i][d], 1)
		}
		ctx.Model.AddEquality(fmt.Sprintf("coverage[%d]", d), expr, 1)
	}
	return nil
}

// Evaluate 评估整个排班
func (c *CoverageConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	for d := 0; d < ctx.Matrix.NumDays(); d++ {
		on := a.OnDay(d)
		if len(on) == 1 {
			continue
		}
		violations = append(violations, c.CreateViolation("", ctx.DateLabel(d),
			fmt.Sprintf("%s 有 %d 人值班，要求恰好 1 人", ctx.DateLabel(d), len(on))))
	}
	return len(violations) == 0, violations
}
