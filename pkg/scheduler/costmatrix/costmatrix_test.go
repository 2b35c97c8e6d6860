package costmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
)

func week(dates ...int) []model.DateSlot {
	slots := make([]model.DateSlot, len(dates))
	for i, wd := range dates {
		slots[i] = model.DateSlot{Date: "d" + string(rune('0'+i)), Weekday: wd}
	}
	return slots
}

func TestBuild_CostsAndClasses(t *testing.T) {
	employees := []model.Employee{
		{Name: "A", WeekdayCost: []int{0, 20, 40, 60, 100, 1000, 0}},
		{Name: "B", WeekdayCost: []int{100, 100, 100, 100, 100, 100, 100}},
	}
	dates := week(0, 1, 2, 3, 4, 5, 6, 0)

	m, err := Build(employees, dates, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumEmployees())
	assert.Equal(t, 8, m.NumDays())
	assert.Equal(t, []int{0, 20, 40, 60, 100, 1000, 0, 0}, m.Row(0))
	assert.Equal(t, []int{0, 6, 7}, m.Rank1(0))
	assert.Equal(t, []int{0, 1, 2, 6, 7}, m.Top3(0))
	assert.Empty(t, m.Rank1(1))
	assert.Empty(t, m.Top3(1))

	assert.True(t, m.WorstTier(0, 4))
	assert.False(t, m.WorstTier(0, 3))
	assert.False(t, m.Available(0, 5))
	assert.True(t, m.Available(1, 5))
	assert.False(t, m.RowUnavailable(0))
}

func TestBuild_Deterministic(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: []int{0, 1, 2, 3, 4, 5, 6}}}
	dates := week(6, 5, 4)

	m1, err := Build(employees, dates, DefaultConfig())
	require.NoError(t, err)
	m2, err := Build(employees, dates, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, m1.Row(0), m2.Row(0))
	assert.Equal(t, []int{6, 5, 4}, m1.Row(0))
}

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		employees []model.Employee
		dates     []model.DateSlot
		field     string
	}{
		{
			name:      "成本向量过短",
			employees: []model.Employee{{Name: "A", WeekdayCost: []int{0, 1, 2}}},
			dates:     week(0),
			field:     "employees[0].weekday_cost",
		},
		{
			name:      "成本向量过长",
			employees: []model.Employee{{Name: "A", WeekdayCost: make([]int, 8)}},
			dates:     week(0),
			field:     "employees[0].weekday_cost",
		},
		{
			name:      "负成本",
			employees: []model.Employee{{Name: "A", WeekdayCost: []int{0, -5, 0, 0, 0, 0, 0}}},
			dates:     week(0),
			field:     "employees[0].weekday_cost[1]",
		},
		{
			name:      "星期越界",
			employees: []model.Employee{{Name: "A", WeekdayCost: make([]int, 7)}},
			dates:     []model.DateSlot{{Date: "2025-06-01", Weekday: 7}},
			field:     "dates[0].weekday",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.employees, tt.dates, DefaultConfig())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeValidationFail))
			assert.Contains(t, errors.From(err).Fields, tt.field)
		})
	}
}

func TestRowUnavailable(t *testing.T) {
	employees := []model.Employee{
		{Name: "Ghost", WeekdayCost: []int{1000, 1000, 1000, 1000, 1000, 1000, 1000}},
		{Name: "Saturday", WeekdayCost: []int{1000, 1000, 1000, 1000, 1000, 1000, 0}},
		{Name: "Sunday", WeekdayCost: []int{0, 1000, 1000, 1000, 1000, 1000, 1000}},
	}

	// 周日到周三：Saturday 整行有可用日，但范围内每天都不可用
	m, err := Build(employees, week(0, 1, 2, 3), DefaultConfig())
	require.NoError(t, err)
	assert.True(t, m.RowUnavailable(0))
	assert.True(t, m.RowUnavailable(1))
	assert.False(t, m.RowUnavailable(2))

	// 没有日期时按整行判断
	m, err = Build(employees, nil, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, m.RowUnavailable(0))
	assert.False(t, m.RowUnavailable(1))
}

func TestMaxAttainableCost(t *testing.T) {
	employees := []model.Employee{{Name: "A", WeekdayCost: []int{10, 50, 30, 1000, 0, 0, 0}}}
	m, err := Build(employees, week(0, 1, 2, 3), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 80, m.MaxAttainableCost(0, 2, true))
	assert.Equal(t, 90, m.MaxAttainableCost(0, 5, true))
	assert.Equal(t, 1050, m.MaxAttainableCost(0, 2, false))
}
