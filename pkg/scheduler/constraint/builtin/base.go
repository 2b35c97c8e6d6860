// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/rota/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// CreateViolation 创建违反详情
func (c *BaseConstraint) CreateViolation(employee, date, message string) constraint.ViolationDetail {
	severity := "warning"
	if c.category == constraint.CategoryHard {
		severity = "error"
	}

	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		Employee:       employee,
		Date:           date,
		Message:        message,
		Severity:       severity,
	}
}

// Skip 记录按员工跳过的约束
func (c *BaseConstraint) Skip(ctx *constraint.Context, employee, reason string) {
	ctx.Report.Skipped = append(ctx.Report.Skipped, constraint.SkipDetail{
		ConstraintType: c.typ,
		Employee:       employee,
		Reason:         reason,
	})
}

// Evaluate 默认评估实现（子类需覆盖）
func (c *BaseConstraint) Evaluate(ctx *constraint.Context, a constraint.Assignment) (bool, []constraint.ViolationDetail) {
	return true, nil
}
