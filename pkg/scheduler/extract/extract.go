// Package extract 把求解结果转换为排班表或有优先级的无解诊断
package extract

import (
	"fmt"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/solver"
)

// Extract 根据求解结果生成排班表
//
// OPTIMAL/FEASIBLE 时按输入日期顺序输出；其余状态转换为对应错误，
// 不返回部分排班。
func Extract(ctx *constraint.Context, out *solver.Outcome) (model.Schedule, error) {
	switch out.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
		return schedule(ctx, out.Values)
	case solver.StatusInfeasible:
		return nil, Diagnose(ctx.Matrix, ctx.Options.ForbidUnavailable)
	case solver.StatusInvalid:
		return nil, errors.InternalModel("求解引擎认为模型无效")
	default:
		return nil, errors.UnknownResult("求解在时间预算内没有结论，可以缩短排班周期后重试")
	}
}

func schedule(ctx *constraint.Context, values []int64) (model.Schedule, error) {
	matrix := ctx.Matrix
	result := make(model.Schedule, 0, matrix.NumDays())
	for d := 0; d < matrix.NumDays(); d++ {
		chosen := -1
		for i := range ctx.X {
			x := int(ctx.X[i][d])
			if x >= len(values) || values[x] != 1 {
				continue
			}
			if chosen >= 0 {
				return nil, errors.InternalModel(fmt.Sprintf("%s 有多名员工值班", matrix.Date(d).Date))
			}
			chosen = i
		}
		if chosen < 0 {
			return nil, errors.InternalModel(fmt.Sprintf("%s 没有员工值班", matrix.Date(d).Date))
		}

		slot := matrix.Date(d)
		result = append(result, model.ScheduleEntry{
			Date:     slot.Date,
			Employee: matrix.Employee(chosen).Name,
			Weekday:  slot.Weekday,
		})
	}
	return result, nil
}

// Diagnose 按优先级给出无解原因
//
//	(a) 日期数少于员工数
//	(b) 第一位在排班范围内每天都不可用的员工，仅在禁止不可用日期时检查
//	(c) 偏好与连续值班限制过紧
func Diagnose(matrix *costmatrix.Matrix, forbidUnavailable bool) error {
	if err := Screen(matrix, forbidUnavailable); err != nil {
		return err
	}
	return errors.Infeasible(errors.ReasonConstraintConflict,
		"在偏好保底、工作量均衡和连续值班限制下找不到可行排班，请放宽偏好或最大连续天数")
}

// Screen 求解前的结构性检查，对应诊断规则 (a) 和 (b)
func Screen(matrix *costmatrix.Matrix, forbidUnavailable bool) error {
	days, employees := matrix.NumDays(), matrix.NumEmployees()
	if days < employees {
		return errors.Infeasible(errors.ReasonInsufficientDays,
			fmt.Sprintf("只有 %d 个日期，少于 %d 名员工，无法让每位员工至少值班一天", days, employees)).
			WithField("days", days).
			WithField("employees", employees)
	}
	if !forbidUnavailable {
		return nil
	}
	for i := 0; i < employees; i++ {
		if matrix.RowUnavailable(i) {
			name := matrix.Employee(i).Name
			return errors.Infeasible(errors.ReasonEmployeeUnavailable,
				fmt.Sprintf("员工 %s 在排班范围内的每一天都不可用", name)).
				WithField("employee", name)
		}
	}
	return nil
}
