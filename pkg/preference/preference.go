// Package preference 将员工的星期偏好排序转换为排班引擎使用的成本向量
package preference

import (
	"fmt"
	"strings"
	"time"

	"github.com/paiban/rota/pkg/model"
)

const dateLayout = "2006-01-02"

// rankCosts 前三个偏好对应的成本
var rankCosts = []int{model.CostRank1, model.CostRank2, model.CostRank3}

// WeekdayCost 根据偏好排序生成 7 天成本向量
//
// 排名前三的星期依次为 0/20/40，更靠后的排名为 100。
// schedulable 为空时，未填写的星期视为不可用；否则可排班但未填写的星期为 60，
// 不在 schedulable 中的星期一律不可用（包括填写了偏好的）。
func WeekdayCost(ranked []time.Weekday, schedulable []time.Weekday) []int {
	cost := make([]int, model.DaysPerWeek)
	for i := range cost {
		cost[i] = model.CostUnavailable
	}

	allowed := weekdaySet(schedulable)
	for rank, day := range ranked {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		if len(allowed) > 0 && !allowed[day] {
			continue
		}
		if cost[day] != model.CostUnavailable {
			continue // 重复填写以更高排名为准
		}
		if rank < len(rankCosts) {
			cost[day] = rankCosts[rank]
		} else {
			cost[day] = model.CostWorstTier
		}
	}

	if len(allowed) > 0 {
		for day := range cost {
			if allowed[time.Weekday(day)] && cost[day] == model.CostUnavailable {
				cost[day] = model.CostUnranked
			}
		}
	}

	return cost
}

// Employees 将名册员工转换为引擎输入
func Employees(ranked []model.RankedEmployee, schedulable []time.Weekday) []model.Employee {
	result := make([]model.Employee, 0, len(ranked))
	for _, r := range ranked {
		if r.Name == "" {
			continue
		}
		result = append(result, model.Employee{
			Name:        r.Name,
			WeekdayCost: WeekdayCost(r.Preferences, schedulable),
		})
	}
	return result
}

// BuildDates 展开日期范围，过滤掉不可排班的星期和排除日期
// schedulable 为空表示每天都可排班。
func BuildDates(startDate, endDate string, schedulable []time.Weekday, excluded []string) ([]model.DateSlot, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("开始日期格式无效: %w", err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("结束日期格式无效: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("结束日期 %s 早于开始日期 %s", endDate, startDate)
	}

	allowed := weekdaySet(schedulable)
	skip := make(map[string]bool, len(excluded))
	for _, d := range excluded {
		skip[d] = true
	}

	var dates []model.DateSlot
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		day := cur.Format(dateLayout)
		if skip[day] {
			continue
		}
		if len(allowed) > 0 && !allowed[cur.Weekday()] {
			continue
		}
		dates = append(dates, model.DateSlot{Date: day, Weekday: int(cur.Weekday())})
	}
	return dates, nil
}

// ParseWeekday 解析星期名称（英文全称或三字母缩写，大小写不敏感）
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := d.String()
		if strings.EqualFold(name, full) || strings.EqualFold(name, full[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("无效的星期: %q", name)
}

func weekdaySet(days []time.Weekday) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}
