// Package model 定义排班引擎的核心数据模型
package model

import "time"

// Employee 员工及其按星期的偏好成本
type Employee struct {
	Name string `json:"name"`

	// WeekdayCost 按星期索引（0=周日）的惩罚成本，0 为最偏好
	WeekdayCost []int `json:"weekday_cost"`
}

// CostOn 返回员工在某个星期几的成本
func (e *Employee) CostOn(weekday int) int {
	return e.WeekdayCost[weekday]
}

// FullyUnavailable 检查员工是否每天都不可用
func (e *Employee) FullyUnavailable(threshold int) bool {
	for _, c := range e.WeekdayCost {
		if c < threshold {
			return false
		}
	}
	return true
}

// RankedEmployee 名册中的员工：按顺序排列的偏好星期
type RankedEmployee struct {
	Name        string         `json:"name"`
	Email       string         `json:"email,omitempty"`
	Preferences []time.Weekday `json:"preferences"` // 第一偏好在前
}
