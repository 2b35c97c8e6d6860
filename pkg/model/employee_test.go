package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEmployee_FullyUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		costs    []int
		expected bool
	}{
		{"全部不可用", []int{1000, 1000, 1000, 1000, 1000, 1000, 1000}, true},
		{"超过阈值", []int{5000, 1000, 1200, 1000, 1000, 1000, 1000}, true},
		{"有一天可用", []int{1000, 1000, 1000, 999, 1000, 1000, 1000}, false},
		{"全部偏好", []int{0, 0, 0, 0, 0, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Employee{Name: "A", WeekdayCost: tt.costs}
			if result := e.FullyUnavailable(CostUnavailable); result != tt.expected {
				t.Errorf("FullyUnavailable() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestPreferenceSession_IsOpen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		session  PreferenceSession
		expected bool
	}{
		{"已关闭", PreferenceSession{IsActive: false}, false},
		{"无过期时间", PreferenceSession{IsActive: true}, true},
		{"已过期", PreferenceSession{IsActive: true, ExpiresAt: &past}, false},
		{"未过期", PreferenceSession{IsActive: true, ExpiresAt: &future}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.session.IsOpen(now); result != tt.expected {
				t.Errorf("IsOpen() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestToRankedEmployees(t *testing.T) {
	session := uuid.New()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	responses := []*EmployeeResponse{
		{SessionID: session, EmployeeName: "Kyle", Preferences: []time.Weekday{time.Monday}, SubmittedAt: t0},
		{SessionID: session, EmployeeName: "Ana", Preferences: []time.Weekday{time.Sunday}, SubmittedAt: t0},
		{SessionID: session, EmployeeName: "Kyle", Preferences: []time.Weekday{time.Friday, time.Monday}, SubmittedAt: t0.Add(time.Hour)},
	}

	ranked := ToRankedEmployees(responses)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(ranked))
	}
	if ranked[0].Name != "Kyle" || ranked[0].Preferences[0] != time.Friday {
		t.Errorf("latest response should win, got %+v", ranked[0])
	}
	if ranked[1].Name != "Ana" {
		t.Errorf("order should follow first submission, got %s", ranked[1].Name)
	}
}
