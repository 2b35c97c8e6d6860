package builtin

import (
	"fmt"

	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// WorkloadBalanceConstraint 工作量均衡约束
// 每位员工的值班天数在 [floor(D/E), ceil(D/E)] 之间。
type WorkloadBalanceConstraint struct {
	*BaseConstraint
}

// NewWorkloadBalanceConstraint 创建工作量均衡约束
func NewWorkloadBalanceConstraint() *WorkloadBalanceConstraint {
	return &WorkloadBalanceConstraint{
		BaseConstraint: NewBaseConstraint("工作量均衡", constraint.TypeWorkloadBalance, constraint.CategoryHard),
	}
}

// Emit 生成上下界约束
func (c *WorkloadBalanceConstraint) Emit(ctx *constraint.Context) error {
	for i := range ctx.X {
		load := lp.Sum(ctx.X[i]...)
		if ctx.MinLoad > 0 {
			ctx.Model.AddGreaterOrEqual(fmt.Sprintf("min_load[%d]", i), load, int64(ctx.MinLoad))
		}
		ctx.Model.AddLessOrEqual(fmt.Sprintf("max_load[%d]", i), load, int64(ctx.MaxLoad))
	}
	return nil
}

// Evaluate 评估整个排班
func (c *WorkloadBalanceConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	for i := range a {
		load := a.Load(i)
		if load < ctx.MinLoad || load > ctx.MaxLoad {
			violations = append(violations, c.CreateViolation(ctx.EmployeeName(i), "",
				fmt.Sprintf("员工 %s 值班 %d 天，应在 %d-%d 天之间",
					ctx.EmployeeName(i), load, ctx.MinLoad, ctx.MaxLoad)))
		}
	}
	return len(violations) == 0, violations
}
