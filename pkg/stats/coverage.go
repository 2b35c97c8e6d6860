// Package stats 提供排班统计分析功能
package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paiban/rota/pkg/model"
)

// 偏好档位名称
const (
	TierRank1       = "rank1"
	TierRank2       = "rank2"
	TierRank3       = "rank3"
	TierUnranked    = "unranked"
	TierWorst       = "worst"
	TierUnavailable = "unavailable"
	TierUnknown     = "unknown" // 员工不在名单中或星期越界
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	// 整体覆盖率
	TotalDays       int     `json:"total_days"`       // 待排班天数
	AssignedDays    int     `json:"assigned_days"`    // 已安排值班的天数
	OverallCoverage float64 `json:"overall_coverage"` // 整体覆盖率 (%)

	// 按偏好档位统计
	TierDistribution map[string]int `json:"tier_distribution"`

	// 按星期统计 (0=周日)
	WeekdayCoverage map[int]float64 `json:"weekday_coverage"`

	// 偏好满足度：落在前三偏好内的值班天数占比
	PreferenceSatisfaction float64 `json:"preference_satisfaction"`

	// 问题识别
	UncoveredDays   []UncoveredDay   `json:"uncovered_days"`
	DuplicatedDays  []string         `json:"duplicated_days"`
	UnavailableDuty []UnavailableDay `json:"unavailable_duty"`
}

// UncoveredDay 无人值班的日期
type UncoveredDay struct {
	Date    string `json:"date"`
	Weekday int    `json:"weekday"`
}

// UnavailableDay 员工在不可用的日期值班
type UnavailableDay struct {
	Date     string `json:"date"`
	Employee string `json:"employee"`
	Cost     int    `json:"cost"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct {
	unavailableThreshold int
}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{unavailableThreshold: model.CostUnavailable}
}

// SetUnavailableThreshold 设置不可用阈值
func (c *CoverageAnalyzer) SetUnavailableThreshold(threshold int) {
	c.unavailableThreshold = threshold
}

// Tier 返回成本对应的偏好档位
func (c *CoverageAnalyzer) Tier(cost int) string {
	switch {
	case cost >= c.unavailableThreshold:
		return TierUnavailable
	case cost == model.CostRank1:
		return TierRank1
	case cost == model.CostRank2:
		return TierRank2
	case cost == model.CostRank3:
		return TierRank3
	case cost == model.CostUnranked:
		return TierUnranked
	case cost >= model.CostWorstTier:
		return TierWorst
	default:
		// 自定义成本按区间归档
		if cost < model.CostRank2 {
			return TierRank1
		}
		if cost < model.CostRank3 {
			return TierRank2
		}
		if cost < model.CostUnranked {
			return TierRank3
		}
		return TierUnranked
	}
}

// Analyze 分析覆盖率
// dates 为待排班日期；schedule 中不在 dates 里的条目只计入档位分布。
func (c *CoverageAnalyzer) Analyze(dates []model.DateSlot, schedule model.Schedule, employees []model.Employee) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TotalDays:        len(dates),
		TierDistribution: make(map[string]int),
		WeekdayCoverage:  make(map[int]float64),
	}
	if len(dates) == 0 {
		metrics.OverallCoverage = 100
		metrics.PreferenceSatisfaction = 100
		return metrics
	}

	costs := make(map[string][]int, len(employees))
	for _, e := range employees {
		if _, ok := costs[e.Name]; !ok {
			costs[e.Name] = e.WeekdayCost
		}
	}

	// 构建日期 -> 值班次数映射
	dutyCount := make(map[string]int, len(schedule))
	satisfied, total := 0, 0
	for _, entry := range schedule {
		dutyCount[entry.Date]++
		total++

		row, ok := costs[entry.Employee]
		if !ok || entry.Weekday < 0 || entry.Weekday >= len(row) {
			metrics.TierDistribution[TierUnknown]++
			continue
		}
		cost := row[entry.Weekday]
		tier := c.Tier(cost)
		metrics.TierDistribution[tier]++
		switch tier {
		case TierRank1, TierRank2, TierRank3:
			satisfied++
		case TierUnavailable:
			metrics.UnavailableDuty = append(metrics.UnavailableDuty, UnavailableDay{
				Date:     entry.Date,
				Employee: entry.Employee,
				Cost:     cost,
			})
		}
	}

	// 按星期统计
	weekdayTotals := make(map[int]int)
	weekdayAssigned := make(map[int]int)
	for _, slot := range dates {
		weekdayTotals[slot.Weekday]++
		switch n := dutyCount[slot.Date]; {
		case n == 0:
			metrics.UncoveredDays = append(metrics.UncoveredDays, UncoveredDay{Date: slot.Date, Weekday: slot.Weekday})
		case n > 1:
			metrics.DuplicatedDays = append(metrics.DuplicatedDays, slot.Date)
			fallthrough
		default:
			metrics.AssignedDays++
			weekdayAssigned[slot.Weekday]++
		}
	}
	for weekday, n := range weekdayTotals {
		metrics.WeekdayCoverage[weekday] = float64(weekdayAssigned[weekday]) / float64(n) * 100
	}

	metrics.OverallCoverage = float64(metrics.AssignedDays) / float64(len(dates)) * 100
	if total > 0 {
		metrics.PreferenceSatisfaction = float64(satisfied) / float64(total) * 100
	}
	return metrics
}

// GenerateCoverageReport 生成覆盖率报告
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")

	b.WriteString("【整体覆盖情况】\n")
	fmt.Fprintf(&b, "  待排班天数: %d\n", metrics.TotalDays)
	fmt.Fprintf(&b, "  已安排天数: %d\n", metrics.AssignedDays)
	fmt.Fprintf(&b, "  覆盖率: %.1f%%\n", metrics.OverallCoverage)
	fmt.Fprintf(&b, "  偏好满足度: %.1f%%\n\n", metrics.PreferenceSatisfaction)

	if len(metrics.TierDistribution) > 0 {
		b.WriteString("【偏好档位分布】\n")
		for _, tier := range []string{TierRank1, TierRank2, TierRank3, TierUnranked, TierWorst, TierUnavailable, TierUnknown} {
			if n := metrics.TierDistribution[tier]; n > 0 {
				fmt.Fprintf(&b, "  %s: %d\n", tier, n)
			}
		}
		b.WriteString("\n")
	}

	if len(metrics.UncoveredDays) > 0 {
		b.WriteString("【无人值班日期】\n")
		for _, day := range metrics.UncoveredDays {
			fmt.Fprintf(&b, "  - %s (星期 %d)\n", day.Date, day.Weekday)
		}
		b.WriteString("\n")
	}

	if len(metrics.DuplicatedDays) > 0 {
		b.WriteString("【重复值班日期】\n")
		days := append([]string(nil), metrics.DuplicatedDays...)
		sort.Strings(days)
		for _, d := range days {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(metrics.UnavailableDuty) > 0 {
		b.WriteString("【不可用日期值班】\n")
		for _, u := range metrics.UnavailableDuty {
			fmt.Fprintf(&b, "  - %s %s (成本 %d)\n", u.Date, u.Employee, u.Cost)
		}
	}

	return b.String()
}
