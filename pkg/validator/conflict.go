// Package validator 提供排班验证功能
package validator

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictLength          ConflictType = "length"           // 条目数与日期数不符
	ConflictDateMismatch    ConflictType = "date_mismatch"    // 日期或顺序不符
	ConflictWeekday         ConflictType = "weekday"          // 星期未原样回显
	ConflictUnknownEmployee ConflictType = "unknown_employee" // 员工不在名单中
	ConflictConstraint      ConflictType = "constraint"       // 违反排班规则
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType    `json:"type"`
	Severity   string          `json:"severity"` // error/warning
	Employee   string          `json:"employee,omitempty"`
	Date       string          `json:"date,omitempty"`
	Message    string          `json:"message"`
	Constraint constraint.Type `json:"constraint,omitempty"`
}

// IsError 是否为错误级别
func (c Conflict) IsError() bool {
	return c.Severity == "error"
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	Options          constraint.Options
	Costs            costmatrix.Config
	CheckConstraints bool // 结构检查通过后是否继续检查排班规则
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		Options:          constraint.DefaultOptions(),
		Costs:            costmatrix.DefaultConfig(),
		CheckConstraints: true,
	}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config  *DetectorConfig
	manager *constraint.Manager
}

// NewConflictDetector 创建冲突检测器，manager 为空时使用内置规则
func NewConflictDetector(config *DetectorConfig, manager *constraint.Manager) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	if manager == nil {
		manager = builtin.NewDefaultManager()
	}
	return &ConflictDetector{config: config, manager: manager}
}

// DetectAll 检测排班表相对请求的所有冲突
//
// 请求本身无效（成本向量长度不对等）时返回错误。
// 结构冲突存在时不再检查排班规则，因为分配矩阵无法可靠重建。
func (d *ConflictDetector) DetectAll(req *model.Request, schedule model.Schedule) ([]Conflict, error) {
	matrix, err := costmatrix.Build(req.Employees, req.Dates, d.config.Costs)
	if err != nil {
		return nil, err
	}

	conflicts, assignment := d.detectStructural(matrix, schedule)
	if len(conflicts) > 0 || !d.config.CheckConstraints {
		return conflicts, nil
	}

	opts := d.config.Options
	opts.MaxConsecutiveDays = req.ConsecutiveLimit()
	ctx := constraint.NewContext(matrix, opts)

	result := d.manager.Evaluate(ctx, assignment)
	for _, v := range result.HardViolations {
		conflicts = append(conflicts, fromViolation(v, "error"))
	}
	for _, v := range result.SoftViolations {
		conflicts = append(conflicts, fromViolation(v, "warning"))
	}
	return conflicts, nil
}

// detectStructural 检查条目与日期一一对应，并重建分配矩阵
func (d *ConflictDetector) detectStructural(matrix *costmatrix.Matrix, schedule model.Schedule) ([]Conflict, constraint.Assignment) {
	var conflicts []Conflict

	if len(schedule) != matrix.NumDays() {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictLength,
			Severity: "error",
			Message:  fmt.Sprintf("排班表有 %d 个条目，应为 %d 个", len(schedule), matrix.NumDays()),
		})
	}

	index := make(map[string]int, matrix.NumEmployees())
	for i := 0; i < matrix.NumEmployees(); i++ {
		if _, ok := index[matrix.Employee(i).Name]; !ok {
			index[matrix.Employee(i).Name] = i
		}
	}

	assignment := constraint.NewAssignment(matrix.NumEmployees(), matrix.NumDays())
	for pos, entry := range schedule {
		if pos >= matrix.NumDays() {
			break
		}
		slot := matrix.Date(pos)
		if entry.Date != slot.Date {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDateMismatch,
				Severity: "error",
				Employee: entry.Employee,
				Date:     entry.Date,
				Message:  fmt.Sprintf("第 %d 个条目的日期为 %s，应为 %s", pos+1, entry.Date, slot.Date),
			})
		}
		if entry.Weekday != slot.Weekday {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictWeekday,
				Severity: "error",
				Employee: entry.Employee,
				Date:     entry.Date,
				Message:  fmt.Sprintf("%s 的星期为 %d，输入为 %d", entry.Date, entry.Weekday, slot.Weekday),
			})
		}
		i, ok := index[entry.Employee]
		if !ok {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictUnknownEmployee,
				Severity: "error",
				Employee: entry.Employee,
				Date:     entry.Date,
				Message:  fmt.Sprintf("员工 %q 不在名单中", entry.Employee),
			})
			continue
		}
		assignment[i][pos] = true
	}

	return conflicts, assignment
}

func fromViolation(v constraint.ViolationDetail, severity string) Conflict {
	if v.Severity != "" {
		severity = v.Severity
	}
	return Conflict{
		Type:       ConflictConstraint,
		Severity:   severity,
		Employee:   v.Employee,
		Date:       v.Date,
		Message:    v.Message,
		Constraint: v.ConstraintType,
	}
}

// Validate 校验排班表，所有错误级冲突合并为一个错误返回
func (d *ConflictDetector) Validate(req *model.Request, schedule model.Schedule) error {
	conflicts, err := d.DetectAll(req, schedule)
	if err != nil {
		return err
	}
	var result error
	for _, c := range conflicts {
		if !c.IsError() {
			continue
		}
		result = multierr.Append(result, errors.ScheduleConflict(c.Employee, c.Date, c.Message))
	}
	return result
}

// Errors 拆分 Validate 返回的合并错误
func Errors(err error) []error {
	return multierr.Errors(err)
}

// GetConflictSummary 按类型统计冲突数量
func GetConflictSummary(conflicts []Conflict) map[ConflictType]int {
	summary := make(map[ConflictType]int)
	for _, c := range conflicts {
		summary[c.Type]++
	}
	return summary
}
