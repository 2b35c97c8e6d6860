// Package costmatrix 计算员工×日期的惩罚成本矩阵和偏好分类
package costmatrix

import (
	"fmt"
	"sort"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
)

// Config 成本分类配置
type Config struct {
	UnavailableThreshold int // 成本 >= 该值视为不可用
	Rank1Cost            int // 第一偏好成本
	Top3MaxCost          int // 前三偏好的最大成本
	WorstTierCost        int // 最差档成本
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		UnavailableThreshold: model.CostUnavailable,
		Rank1Cost:            model.CostRank1,
		Top3MaxCost:          model.CostRank3,
		WorstTierCost:        model.CostWorstTier,
	}
}

// Matrix 成本矩阵，构建后只读
type Matrix struct {
	cfg       Config
	employees []model.Employee
	dates     []model.DateSlot
	costs     [][]int
	rank1     [][]int
	top3      [][]int
}

// Build 构建成本矩阵
func Build(employees []model.Employee, dates []model.DateSlot, cfg Config) (*Matrix, error) {
	ve := &errors.ValidationErrors{}
	for i, e := range employees {
		if len(e.WeekdayCost) != model.DaysPerWeek {
			ve.Add(fmt.Sprintf("employees[%d].weekday_cost", i),
				fmt.Sprintf("员工 %s 的成本向量长度为 %d，必须为 %d", e.Name, len(e.WeekdayCost), model.DaysPerWeek))
		}
		for wd, c := range e.WeekdayCost {
			if c < 0 {
				ve.Add(fmt.Sprintf("employees[%d].weekday_cost[%d]", i, wd), fmt.Sprintf("成本 %d 不能为负", c))
			}
		}
	}
	for d, slot := range dates {
		if slot.Weekday < 0 || slot.Weekday >= model.DaysPerWeek {
			ve.Add(fmt.Sprintf("dates[%d].weekday", d), fmt.Sprintf("星期 %d 超出范围 0-6", slot.Weekday))
		}
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}

	m := &Matrix{
		cfg:       cfg,
		employees: employees,
		dates:     dates,
		costs:     make([][]int, len(employees)),
		rank1:     make([][]int, len(employees)),
		top3:      make([][]int, len(employees)),
	}

	for i, e := range employees {
		row := make([]int, len(dates))
		for d, slot := range dates {
			cost := e.WeekdayCost[slot.Weekday]
			row[d] = cost
			if cost == cfg.Rank1Cost {
				m.rank1[i] = append(m.rank1[i], d)
			}
			if cost <= cfg.Top3MaxCost {
				m.top3[i] = append(m.top3[i], d)
			}
		}
		m.costs[i] = row
	}

	return m, nil
}

// Config 返回构建配置
func (m *Matrix) Config() Config { return m.cfg }

// NumEmployees 员工数
func (m *Matrix) NumEmployees() int { return len(m.employees) }

// NumDays 天数
func (m *Matrix) NumDays() int { return len(m.dates) }

// Employee 返回第 i 位员工
func (m *Matrix) Employee(i int) model.Employee { return m.employees[i] }

// Date 返回第 d 天
func (m *Matrix) Date(d int) model.DateSlot { return m.dates[d] }

// Cost 返回员工 i 在第 d 天的成本
func (m *Matrix) Cost(i, d int) int { return m.costs[i][d] }

// Row 返回员工 i 的成本行（调用方不得修改）
func (m *Matrix) Row(i int) []int { return m.costs[i] }

// Rank1 返回员工 i 第一偏好的日期索引
func (m *Matrix) Rank1(i int) []int { return m.rank1[i] }

// Top3 返回员工 i 前三偏好的日期索引
func (m *Matrix) Top3(i int) []int { return m.top3[i] }

// Available 员工 i 第 d 天是否可用
func (m *Matrix) Available(i, d int) bool {
	return m.costs[i][d] < m.cfg.UnavailableThreshold
}

// WorstTier 员工 i 第 d 天是否为最差档
func (m *Matrix) WorstTier(i, d int) bool {
	return m.costs[i][d] == m.cfg.WorstTierCost
}

// RowUnavailable 员工 i 在排班范围内的每一天是否都不可用
// 没有日期时退回到检查 7 天成本向量。
func (m *Matrix) RowUnavailable(i int) bool {
	if len(m.costs[i]) == 0 {
		return m.employees[i].FullyUnavailable(m.cfg.UnavailableThreshold)
	}
	for d := range m.costs[i] {
		if m.Available(i, d) {
			return false
		}
	}
	return true
}

// MaxAttainableCost 员工 i 在最多 load 天上能累计的最大成本
// availableOnly 为 true 时只统计可用日期。
func (m *Matrix) MaxAttainableCost(i, load int, availableOnly bool) int {
	var candidates []int
	for d, c := range m.costs[i] {
		if !availableOnly || m.Available(i, d) {
			candidates = append(candidates, c)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(candidates)))
	total := 0
	for k := 0; k < load && k < len(candidates); k++ {
		total += candidates[k]
	}
	return total
}
