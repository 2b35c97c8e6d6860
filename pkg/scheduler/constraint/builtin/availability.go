package builtin

import (
	"fmt"

	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// AvailabilityConstraint 不可用日期禁止值班
type AvailabilityConstraint struct {
	*BaseConstraint
}

// NewAvailabilityConstraint 创建可用性约束
func NewAvailabilityConstraint() *AvailabilityConstraint {
	return &AvailabilityConstraint{
		BaseConstraint: NewBaseConstraint("不可用日期", constraint.TypeAvailability, constraint.CategoryHard),
	}
}

// Emit 成本达到阈值的 (i,d) 固定 x = 0
func (c *AvailabilityConstraint) Emit(ctx *constraint.Context) error {
	if !ctx.Options.ForbidUnavailable {
		return nil
	}
	for i := range ctx.X {
		for d := range ctx.X[i] {
			if !ctx.Matrix.Available(i, d) {
				ctx.Model.AddEquality(fmt.Sprintf("unavailable[%d,%d]", i, d), lp.Sum(ctx.X[i][d]), 0)
			}
		}
	}
	return nil
}

// Evaluate 评估整个排班
func (c *AvailabilityConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	if !ctx.Options.ForbidUnavailable {
		return true, nil
	}
	var violations []constraint.ViolationDetail
	for i := range a {
		for d, on := range a[i] {
			if on && !ctx.Matrix.Available(i, d) {
				violations = append(violations, c.CreateViolation(ctx.EmployeeName(i), ctx.DateLabel(d),
					fmt.Sprintf("员工 %s 在 %s 不可用", ctx.EmployeeName(i), ctx.DateLabel(d))))
			}
		}
	}
	return len(violations) == 0, violations
}
