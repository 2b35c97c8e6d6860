// Package constraints 排班规则目录，供前端展示规则说明和当前参数
package constraints

import (
	"strconv"

	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

// RuleParam 规则参数定义
type RuleParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, bool
	Description string `json:"description"`
	Value       string `json:"value"` // 当前生效值
	Min         string `json:"min,omitempty"`
}

// RuleDefinition 硬约束定义
type RuleDefinition struct {
	Name        constraint.Type     `json:"name"`
	DisplayName string              `json:"display_name"`
	Category    constraint.Category `json:"category"`
	Description string              `json:"description"`
	Params      []RuleParam         `json:"params,omitempty"`
}

// ObjectiveDefinition 优化目标定义，按优先级排列
type ObjectiveDefinition struct {
	Term        objective.TermID `json:"term"`
	Priority    int              `json:"priority"`
	Sense       string           `json:"sense"` // maximize/minimize
	DisplayName string           `json:"display_name"`
	Description string           `json:"description"`
}

// LibraryResponse 规则目录响应
type LibraryResponse struct {
	Strategy   objective.Strategy    `json:"strategy"`
	Rules      []RuleDefinition      `json:"rules"`
	Objectives []ObjectiveDefinition `json:"objectives"`
	Summary    constraint.Summary    `json:"summary"`
}

// Registered 只保留 manager 中已注册的硬约束，并填入注册摘要
func (l LibraryResponse) Registered(manager *constraint.Manager) LibraryResponse {
	hard := make(map[constraint.Type]bool)
	for _, c := range manager.GetByCategory(constraint.CategoryHard) {
		hard[c.Type()] = true
	}
	rules := make([]RuleDefinition, 0, len(l.Rules))
	for _, rule := range l.Rules {
		if hard[rule.Name] {
			rules = append(rules, rule)
		}
	}
	l.Rules = rules
	l.Summary = manager.Summary()
	return l
}

// GetLibrary 返回当前选项下的完整规则目录
func GetLibrary(opts scheduler.Options) LibraryResponse {
	return LibraryResponse{
		Strategy:   opts.Strategy,
		Rules:      rules(opts),
		Objectives: objectives(),
	}
}

func rules(opts scheduler.Options) []RuleDefinition {
	return []RuleDefinition{
		{
			Name:        constraint.TypeCoverage,
			DisplayName: "每日一人值班",
			Category:    constraint.CategoryHard,
			Description: "每个待排班日期恰好安排一名员工。",
		},
		{
			Name:        constraint.TypeMaxConsecutiveDays,
			DisplayName: "最大连续值班天数",
			Category:    constraint.CategoryHard,
			Description: "按日期列表顺序，任何员工连续值班不超过 K 个条目。请求中可单独指定 K。",
			Params: []RuleParam{
				{Name: "max_consecutive_days", Type: "int", Description: "K", Value: strconv.Itoa(opts.MaxConsecutiveDays), Min: "1"},
			},
		},
		{
			Name:        constraint.TypeWorkloadBalance,
			DisplayName: "值班天数均衡",
			Category:    constraint.CategoryHard,
			Description: "每名员工的值班天数在 floor(D/E) 和 ceil(D/E) 之间。",
		},
		{
			Name:        constraint.TypeRank1Guarantee,
			DisplayName: "第一偏好保底",
			Category:    constraint.CategoryHard,
			Description: "在日期范围内有第一偏好日的员工，至少安排一天第一偏好日。",
		},
		{
			Name:        constraint.TypeTop3Guarantee,
			DisplayName: "前三偏好保底",
			Category:    constraint.CategoryHard,
			Description: "员工至少安排 min(N, 最少值班天数) 天前三偏好日；前三偏好日不足时跳过并记录。",
			Params: []RuleParam{
				{Name: "top3_guarantee", Type: "int", Description: "N", Value: strconv.Itoa(opts.Top3Guarantee), Min: "0"},
			},
		},
		{
			Name:        constraint.TypeAvailability,
			DisplayName: "不可用日期",
			Category:    constraint.CategoryHard,
			Description: "成本达到不可用阈值的日期不安排该员工。",
			Params: []RuleParam{
				{Name: "forbid_unavailable", Type: "bool", Description: "是否启用", Value: strconv.FormatBool(opts.ForbidUnavailable)},
				{Name: "unavailable_threshold", Type: "int", Description: "不可用阈值", Value: strconv.Itoa(opts.UnavailableThreshold), Min: "1"},
			},
		},
	}
}

func objectives() []ObjectiveDefinition {
	return []ObjectiveDefinition{
		{
			Term: objective.TermMinRank1Days, Priority: 0, Sense: "maximize",
			DisplayName: "最少第一偏好天数",
			Description: "有第一偏好日的员工中，得到第一偏好日最少的人尽量多。",
		},
		{
			Term: objective.TermMaxEmployeeCost, Priority: 1, Sense: "minimize",
			DisplayName: "最大个人成本",
			Description: "成本最高的员工的总成本尽量低。",
		},
		{
			Term: objective.TermMaxWorstTierDays, Priority: 2, Sense: "minimize",
			DisplayName: "最多最差档天数",
			Description: "任何员工被安排到最差偏好档的天数尽量少。",
		},
		{
			Term: objective.TermTotalWorstTierDays, Priority: 3, Sense: "minimize",
			DisplayName: "最差档总天数",
			Description: "全体员工落在最差偏好档的总天数尽量少。",
		},
		{
			Term: objective.TermTotalCost, Priority: 4, Sense: "minimize",
			DisplayName: "总成本",
			Description: "所有值班的偏好成本之和尽量低。",
		},
	}
}
