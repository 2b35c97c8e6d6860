// Package model 定义排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// DaysPerWeek 每周天数，WeekdayCost 必须恰好包含这么多项
const DaysPerWeek = 7

// 偏好成本档位（与偏好表单一致）
const (
	CostRank1       = 0    // 第一偏好
	CostRank2       = 20   // 第二偏好
	CostRank3       = 40   // 第三偏好
	CostUnranked    = 60   // 可排班但未填写偏好
	CostWorstTier   = 100  // 第三偏好之后
	CostUnavailable = 1000 // 不可用
)

// DefaultMaxConsecutiveDays 默认最大连续工作天数
const DefaultMaxConsecutiveDays = 2

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DateSlot 待排班的日期
// Weekday 由调用方保证与 Date 一致，引擎不会重新计算
type DateSlot struct {
	Date    string `json:"date"`    // YYYY-MM-DD
	Weekday int    `json:"weekday"` // 0=周日 ... 6=周六
}

// ScheduleEntry 排班结果条目
type ScheduleEntry struct {
	Date     string `json:"date"`
	Employee string `json:"employee"`
	Weekday  int    `json:"weekday"`
}

// Schedule 排班结果，顺序与输入日期一致
type Schedule []ScheduleEntry

// EmployeeDays 统计每位员工的排班天数
func (s Schedule) EmployeeDays() map[string]int {
	counts := make(map[string]int)
	for _, e := range s {
		counts[e.Employee]++
	}
	return counts
}

// Request 排班请求
type Request struct {
	Employees          []Employee `json:"employees"`
	Dates              []DateSlot `json:"dates"`
	MaxConsecutiveDays *int       `json:"max_consecutive_days,omitempty"`
}

// ConsecutiveLimit 返回最大连续工作天数，未设置时使用默认值
func (r *Request) ConsecutiveLimit() int {
	if r.MaxConsecutiveDays == nil {
		return DefaultMaxConsecutiveDays
	}
	return *r.MaxConsecutiveDays
}

// Loads 返回每位员工的最小/最大工作天数 floor(D/E), ceil(D/E)
func Loads(days, employees int) (minLoad, maxLoad int) {
	if employees <= 0 {
		return days, days
	}
	return days / employees, (days + employees - 1) / employees
}
