package model

import (
	"time"

	"github.com/google/uuid"
)

// Roster 员工名册
type Roster struct {
	BaseModel
	ManagerID       uuid.UUID        `json:"manager_id" db:"manager_id"`
	Name            string           `json:"name" db:"name"`
	SchedulableDays []time.Weekday   `json:"schedulable_days" db:"schedulable_days"`
	Employees       []RankedEmployee `json:"employees" db:"employees"`
}

// PreferenceSession 偏好收集会话
type PreferenceSession struct {
	BaseModel
	ManagerID       uuid.UUID      `json:"manager_id" db:"manager_id"`
	Name            string         `json:"name" db:"name"`
	SchedulableDays []time.Weekday `json:"schedulable_days" db:"schedulable_days"`
	IsActive        bool           `json:"is_active" db:"is_active"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
}

// IsOpen 检查会话是否仍可提交
func (s *PreferenceSession) IsOpen(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// EmployeeResponse 员工提交的偏好
type EmployeeResponse struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	SessionID     uuid.UUID      `json:"session_id" db:"session_id"`
	EmployeeName  string         `json:"employee_name" db:"employee_name"`
	EmployeeEmail string         `json:"employee_email,omitempty" db:"employee_email"`
	Preferences   []time.Weekday `json:"preferences" db:"preferences"`
	SubmittedAt   time.Time      `json:"submitted_at" db:"submitted_at"`
}

// ToRankedEmployees 将会话回复转换为名册员工，同名员工以最新提交为准
func ToRankedEmployees(responses []*EmployeeResponse) []RankedEmployee {
	latest := make(map[string]*EmployeeResponse)
	order := make([]string, 0, len(responses))
	for _, r := range responses {
		prev, ok := latest[r.EmployeeName]
		if !ok {
			order = append(order, r.EmployeeName)
		}
		if !ok || r.SubmittedAt.After(prev.SubmittedAt) {
			latest[r.EmployeeName] = r
		}
	}

	result := make([]RankedEmployee, 0, len(order))
	for _, name := range order {
		r := latest[name]
		result = append(result, RankedEmployee{
			Name:        r.EmployeeName,
			Email:       r.EmployeeEmail,
			Preferences: r.Preferences,
		})
	}
	return result
}
