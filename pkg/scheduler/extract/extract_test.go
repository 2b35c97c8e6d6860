package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/solver"
)

var flat = []int{60, 60, 60, 60, 60, 60, 60}

func buildContext(t *testing.T, employees []model.Employee, dates []model.DateSlot) *constraint.Context {
	t.Helper()
	matrix, err := costmatrix.Build(employees, dates, costmatrix.DefaultConfig())
	require.NoError(t, err)
	ctx, err := constraint.NewModelBuilder(builtin.NewDefaultManager(), constraint.DefaultOptions()).Build(matrix)
	require.NoError(t, err)
	return ctx
}

func valuesFor(ctx *constraint.Context, onDuty map[int]int) []int64 {
	values := make([]int64, ctx.Model.NumVars())
	for d, i := range onDuty {
		values[ctx.X[i][d]] = 1
	}
	return values
}

func TestExtract_Schedule(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: flat}}
	// 星期原样回显，即使与日期不符
	dates := []model.DateSlot{
		{Date: "2025-06-01", Weekday: 3},
		{Date: "2025-06-02", Weekday: 1},
	}
	ctx := buildContext(t, employees, dates)

	for _, status := range []solver.Status{solver.StatusOptimal, solver.StatusFeasible} {
		got, err := Extract(ctx, &solver.Outcome{Status: status, Values: valuesFor(ctx, map[int]int{0: 1, 1: 0})})
		require.NoError(t, err)

		want := model.Schedule{
			{Date: "2025-06-01", Employee: "B", Weekday: 3},
			{Date: "2025-06-02", Employee: "A", Weekday: 1},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestExtract_BrokenAssignment(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: flat}}
	dates := []model.DateSlot{{Date: "d0", Weekday: 0}, {Date: "d1", Weekday: 1}}
	ctx := buildContext(t, employees, dates)

	tests := []struct {
		name   string
		values []int64
	}{
		{"某天无人", valuesFor(ctx, map[int]int{0: 0})},
		{"某天两人", func() []int64 {
			v := valuesFor(ctx, map[int]int{0: 0, 1: 1})
			v[ctx.X[1][0]] = 1
			return v
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(ctx, &solver.Outcome{Status: solver.StatusOptimal, Values: tt.values})
			assert.True(t, errors.Is(err, errors.CodeInternalModel))
		})
	}
}

func TestExtract_StatusErrors(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: flat}}
	dates := []model.DateSlot{{Date: "d0", Weekday: 0}, {Date: "d1", Weekday: 1}}
	ctx := buildContext(t, employees, dates)

	tests := []struct {
		status    solver.Status
		code      errors.Code
		retryable bool
	}{
		{solver.StatusInfeasible, errors.CodeNoFeasibleSolution, false},
		{solver.StatusInvalid, errors.CodeInternalModel, false},
		{solver.StatusUnknown, errors.CodeUnknownResult, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			schedule, err := Extract(ctx, &solver.Outcome{Status: tt.status})
			assert.Nil(t, schedule)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestDiagnose_Priority(t *testing.T) {
	ghost := []int{1000, 1000, 1000, 1000, 1000, 1000, 1000}
	tests := []struct {
		name      string
		employees []model.Employee
		days      int
		reason    errors.Reason
		employee  string
	}{
		{
			name:      "日期不足优先于不可用",
			employees: []model.Employee{{Name: "A", WeekdayCost: ghost}, {Name: "B", WeekdayCost: flat}, {Name: "C", WeekdayCost: flat}},
			days:      2,
			reason:    errors.ReasonInsufficientDays,
		},
		{
			name:      "第一位整行不可用的员工",
			employees: []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "Ghost1", WeekdayCost: ghost}, {Name: "Ghost2", WeekdayCost: ghost}},
			days:      5,
			reason:    errors.ReasonEmployeeUnavailable,
			employee:  "Ghost1",
		},
		{
			name:      "排班范围内不可用",
			employees: []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: []int{1000, 1000, 1000, 1000, 1000, 1000, 0}}},
			days:      4,
			reason:    errors.ReasonEmployeeUnavailable,
			employee:  "B",
		},
		{
			name:      "其余情况为约束冲突",
			employees: []model.Employee{{Name: "A", WeekdayCost: flat}},
			days:      7,
			reason:    errors.ReasonConstraintConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := make([]model.DateSlot, tt.days)
			for d := range dates {
				dates[d] = model.DateSlot{Date: string(rune('a' + d)), Weekday: d % 7}
			}
			matrix, err := costmatrix.Build(tt.employees, dates, costmatrix.DefaultConfig())
			require.NoError(t, err)

			err = Diagnose(matrix, true)
			assert.Equal(t, errors.CodeNoFeasibleSolution, errors.GetCode(err))
			assert.Equal(t, tt.reason, errors.GetReason(err))
			if tt.employee != "" {
				assert.Equal(t, tt.employee, errors.From(err).Fields["employee"])
				assert.Contains(t, err.Error(), tt.employee)
			}
		})
	}
}

func TestScreen_PassesNormalInput(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: flat}}
	matrix, err := costmatrix.Build(employees, []model.DateSlot{{Date: "a"}, {Date: "b"}}, costmatrix.DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, Screen(matrix, true))
}

// 整行有可用日但排班范围内全部不可用
func TestScreen_UnavailableWithinRange(t *testing.T) {
	saturdayOnly := []int{1000, 1000, 1000, 1000, 1000, 1000, 0}
	employees := []model.Employee{{Name: "A", WeekdayCost: flat}, {Name: "B", WeekdayCost: saturdayOnly}}
	dates := []model.DateSlot{
		{Date: "2025-06-01", Weekday: 0},
		{Date: "2025-06-02", Weekday: 1},
		{Date: "2025-06-03", Weekday: 2},
		{Date: "2025-06-04", Weekday: 3},
	}
	matrix, err := costmatrix.Build(employees, dates, costmatrix.DefaultConfig())
	require.NoError(t, err)

	err = Screen(matrix, true)
	assert.Equal(t, errors.ReasonEmployeeUnavailable, errors.GetReason(err))
	assert.Equal(t, "B", errors.From(err).Fields["employee"])

	// 允许安排不可用日期时不做该检查
	assert.NoError(t, Screen(matrix, false))
	assert.Equal(t, errors.ReasonConstraintConflict, errors.GetReason(Diagnose(matrix, false)))
}
