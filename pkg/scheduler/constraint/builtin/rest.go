package builtin

import (
	"fmt"

	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// MaxConsecutiveDaysConstraint 最大连续值班天数约束
// 任意 K+1 天的滑动窗口内，同一员工最多值班 K 天。
type MaxConsecutiveDaysConstraint struct {
	*BaseConstraint
}

// NewMaxConsecutiveDaysConstraint 创建最大连续值班天数约束
func NewMaxConsecutiveDaysConstraint() *MaxConsecutiveDaysConstraint {
	return &MaxConsecutiveDaysConstraint{
		BaseConstraint: NewBaseConstraint("最大连续值班天数", constraint.TypeMaxConsecutiveDays, constraint.CategoryHard),
	}
}

// Emit 生成滑动窗口约束，天数不超过 K 时无需约束
func (c *MaxConsecutiveDaysConstraint) Emit(ctx *constraint.Context) error {
	k := ctx.Options.MaxConsecutiveDays
	days := ctx.Matrix.NumDays()
	if days <= k {
		return nil
	}

	for i := range ctx.X {
		for start := 0; start+k < days; start++ {
			ctx.Model.AddLessOrEqual(
				fmt.Sprintf("consecutive[%d,%d]", i, start),
				lp.Sum(ctx.X[i][start:start+k+1]...),
				int64(k),
			)
		}
	}
	return nil
}

// Evaluate 评估整个排班
func (c *MaxConsecutiveDaysConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	k := ctx.Options.MaxConsecutiveDays

	for i := range a {
		if run := a.LongestRun(i); run > k {
			violations = append(violations, c.CreateViolation(ctx.EmployeeName(i), "",
				fmt.Sprintf("员工 %s 连续值班 %d 天，超过限制 %d 天", ctx.EmployeeName(i), run, k)))
		}
	}
	return len(violations) == 0, violations
}
