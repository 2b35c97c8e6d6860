package builtin

import (
	"fmt"

	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// Rank1GuaranteeConstraint 第一偏好保底约束
// 有第一偏好日的员工至少分配到其中一天。
type Rank1GuaranteeConstraint struct {
	*BaseConstraint
}

// NewRank1GuaranteeConstraint 创建第一偏好保底约束
func NewRank1GuaranteeConstraint() *Rank1GuaranteeConstraint {
	return &Rank1GuaranteeConstraint{
		BaseConstraint: NewBaseConstraint("第一偏好保底", constraint.TypeRank1Guarantee, constraint.CategoryHard),
	}
}

// Emit 对有资格的员工生成 Σ_{rank1} x >= 1
func (c *Rank1GuaranteeConstraint) Emit(ctx *constraint.Context) error {
	for i := range ctx.X {
		if !ctx.Eligibility(i).Rank1 {
			continue
		}
		ctx.Model.AddGreaterOrEqual(fmt.Sprintf("rank1[%d]", i), daysExpr(ctx.X[i], ctx.Matrix.Rank1(i)), 1)
	}
	return nil
}

// Evaluate 评估整个排班
func (c *Rank1GuaranteeConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	for i := range a {
		if !ctx.Eligibility(i).Rank1 {
			continue
		}
		if countDays(a[i], ctx.Matrix.Rank1(i)) == 0 {
			violations = append(violations, c.CreateViolation(ctx.EmployeeName(i), "",
				fmt.Sprintf("员工 %s 没有分配到任何第一偏好日", ctx.EmployeeName(i))))
		}
	}
	return len(violations) == 0, violations
}

// Top3GuaranteeConstraint 前三偏好保底约束
// 每位员工至少分配 g = min(Top3Guarantee, floor(D/E)) 个前三偏好日；
// 前三偏好日不足 g 天的员工跳过，并记入构建报告。
type Top3GuaranteeConstraint struct {
	*BaseConstraint
}

// NewTop3GuaranteeConstraint 创建前三偏好保底约束
func NewTop3GuaranteeConstraint() *Top3GuaranteeConstraint {
	return &Top3GuaranteeConstraint{
		BaseConstraint: NewBaseConstraint("前三偏好保底", constraint.TypeTop3Guarantee, constraint.CategoryHard),
	}
}

// Emit 对有资格的员工生成 Σ_{top3} x >= g
func (c *Top3GuaranteeConstraint) Emit(ctx *constraint.Context) error {
	for i := range ctx.X {
		el := ctx.Eligibility(i)
		if el.Top3Short {
			c.Skip(ctx, ctx.EmployeeName(i), fmt.Sprintf("前三偏好日只有 %d 天", len(ctx.Matrix.Top3(i))))
			continue
		}
		if el.Top3 == 0 {
			continue
		}
		ctx.Model.AddGreaterOrEqual(fmt.Sprintf("top3[%d]", i), daysExpr(ctx.X[i], ctx.Matrix.Top3(i)), int64(el.Top3))
	}
	return nil
}

// Evaluate 评估整个排班
func (c *Top3GuaranteeConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	for i := range a {
		g := ctx.Eligibility(i).Top3
		if g == 0 {
			continue
		}
		if got := countDays(a[i], ctx.Matrix.Top3(i)); got < g {
			violations = append(violations, c.CreateViolation(ctx.EmployeeName(i), "",
				fmt.Sprintf("员工 %s 只分配到 %d 个前三偏好日，要求至少 %d 个", ctx.EmployeeName(i), got, g)))
		}
	}
	return len(violations) == 0, violations
}

func daysExpr(row []lp.VarID, days []int) *lp.LinearExpr {
	expr := lp.NewExpr()
	for _, d := range days {
		expr.AddTerm(row[d], 1)
	}
	return expr
}

func countDays(row []bool, days []int) int {
	n := 0
	for _, d := range days {
		if row[d] {
			n++
		}
	}
	return n
}
