// Package stats 提供排班统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paiban/rota/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 值班天数公平性
	DaysGini           float64 `json:"days_gini"` // 值班天数基尼系数 (0=完全公平, 1=完全不公平)
	DaysStdDev         float64 `json:"days_std_dev"`
	AvgDaysPerEmployee float64 `json:"avg_days_per_employee"`
	MaxDays            int     `json:"max_days"`
	MinDays            int     `json:"min_days"`
	DaysRange          int     `json:"days_range"`

	// 偏好成本公平性
	CostGini        float64 `json:"cost_gini"`
	MaxEmployeeCost int     `json:"max_employee_cost"`
	TotalCost       int     `json:"total_cost"`

	WeekendGini float64 `json:"weekend_gini"` // 周末值班基尼系数

	EmployeeStats []EmployeeStat `json:"employee_stats"`

	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// EmployeeStat 员工统计
type EmployeeStat struct {
	EmployeeName    string  `json:"employee_name"`
	Days            int     `json:"days"`
	TotalCost       int     `json:"total_cost"`
	Rank1Days       int     `json:"rank1_days"`
	Top3Days        int     `json:"top3_days"`
	WorstTierDays   int     `json:"worst_tier_days"`
	UnavailableDays int     `json:"unavailable_days"`
	WeekendDays     int     `json:"weekend_days"`
	LongestRun      int     `json:"longest_run"` // 按排班表顺序的最长连续值班
	Deviation       float64 `json:"deviation"`   // 与平均天数的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	rank1Cost            int
	top3MaxCost          int
	worstTierCost        int
	unavailableThreshold int
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{
		rank1Cost:            model.CostRank1,
		top3MaxCost:          model.CostRank3,
		worstTierCost:        model.CostWorstTier,
		unavailableThreshold: model.CostUnavailable,
	}
}

// WithUnavailableThreshold 设置不可用阈值
func (f *FairnessAnalyzer) WithUnavailableThreshold(threshold int) *FairnessAnalyzer {
	f.unavailableThreshold = threshold
	return f
}

// Analyze 分析排班公平性
// 统计覆盖 employees 中的每位员工（包括没有值班的）；排班表中出现的未知员工也会列出。
func (f *FairnessAnalyzer) Analyze(schedule model.Schedule, employees []model.Employee) *FairnessMetrics {
	if len(schedule) == 0 || len(employees) == 0 {
		return &FairnessMetrics{OverallFairnessScore: 100}
	}

	employeeStats := f.calculateEmployeeStats(schedule, employees)

	days := make([]float64, len(employeeStats))
	costs := make([]float64, len(employeeStats))
	weekends := make([]float64, len(employeeStats))
	maxCost, totalCost := 0, 0
	for i, stat := range employeeStats {
		days[i] = float64(stat.Days)
		costs[i] = float64(stat.TotalCost)
		weekends[i] = float64(stat.WeekendDays)
		totalCost += stat.TotalCost
		if stat.TotalCost > maxCost {
			maxCost = stat.TotalCost
		}
	}

	avgDays := calculateMean(days)
	stdDev := math.Sqrt(calculateVariance(days, avgDays))
	maxDays, minDays := calculateRange(days)

	for i := range employeeStats {
		if avgDays > 0 {
			employeeStats[i].Deviation = (float64(employeeStats[i].Days) - avgDays) / avgDays * 100
		}
	}

	daysGini := calculateGini(days)
	costGini := calculateGini(costs)
	weekendGini := calculateGini(weekends)

	return &FairnessMetrics{
		DaysGini:             daysGini,
		DaysStdDev:           stdDev,
		AvgDaysPerEmployee:   avgDays,
		MaxDays:              int(maxDays),
		MinDays:              int(minDays),
		DaysRange:            int(maxDays - minDays),
		CostGini:             costGini,
		MaxEmployeeCost:      maxCost,
		TotalCost:            totalCost,
		WeekendGini:          weekendGini,
		EmployeeStats:        employeeStats,
		OverallFairnessScore: calculateOverallScore(daysGini, costGini, weekendGini, stdDev, avgDays),
	}
}

// calculateEmployeeStats 计算员工统计数据
func (f *FairnessAnalyzer) calculateEmployeeStats(schedule model.Schedule, employees []model.Employee) []EmployeeStat {
	index := make(map[string]int, len(employees))
	stats := make([]EmployeeStat, 0, len(employees))
	costs := make([][]int, 0, len(employees))
	for _, e := range employees {
		if _, dup := index[e.Name]; dup {
			continue
		}
		index[e.Name] = len(stats)
		stats = append(stats, EmployeeStat{EmployeeName: e.Name})
		costs = append(costs, e.WeekdayCost)
	}

	runs := make([]int, len(stats))
	last := make([]int, len(stats))
	for i := range last {
		last[i] = -2
	}

	for pos, entry := range schedule {
		i, ok := index[entry.Employee]
		if !ok {
			i = len(stats)
			index[entry.Employee] = i
			stats = append(stats, EmployeeStat{EmployeeName: entry.Employee})
			costs = append(costs, nil)
			runs = append(runs, 0)
			last = append(last, -2)
		}
		stat := &stats[i]
		stat.Days++

		if last[i] == pos-1 {
			runs[i]++
		} else {
			runs[i] = 1
		}
		last[i] = pos
		if runs[i] > stat.LongestRun {
			stat.LongestRun = runs[i]
		}

		if entry.Weekday == 0 || entry.Weekday == 6 {
			stat.WeekendDays++
		}

		if entry.Weekday < 0 || entry.Weekday >= len(costs[i]) {
			continue
		}
		cost := costs[i][entry.Weekday]
		stat.TotalCost += cost
		if cost == f.rank1Cost {
			stat.Rank1Days++
		}
		if cost <= f.top3MaxCost {
			stat.Top3Days++
		}
		if cost == f.worstTierCost {
			stat.WorstTierDays++
		}
		if cost >= f.unavailableThreshold {
			stat.UnavailableDays++
		}
	}

	// 按值班天数排序
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Days > stats[j].Days
	})

	return stats
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func calculateOverallScore(daysGini, costGini, weekendGini, stdDev, avgDays float64) float64 {
	const (
		daysWeight    = 0.4
		costWeight    = 0.3
		weekendWeight = 0.2
		stdDevWeight  = 0.1
	)

	daysScore := (1 - daysGini) * 100
	costScore := (1 - costGini) * 100
	weekendScore := (1 - weekendGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avgDays > 0 {
		cv := stdDev / avgDays
		cvScore = math.Max(0, 100-cv*200)
	}

	score := daysWeight*daysScore +
		costWeight*costScore +
		weekendWeight*weekendScore +
		stdDevWeight*cvScore

	return math.Max(0, math.Min(100, score))
}
