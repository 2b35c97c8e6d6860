// Package constraint 定义约束接口、构建上下文和管理器
package constraint

import (
	"fmt"

	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// Type 约束类型标识
type Type string

const (
	TypeCoverage           Type = "coverage"
	TypeMaxConsecutiveDays Type = "max_consecutive_days"
	TypeWorkloadBalance    Type = "workload_balance"
	TypeRank1Guarantee     Type = "rank1_guarantee"
	TypeTop3Guarantee      Type = "top3_guarantee"
	TypeAvailability       Type = "availability"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
//
// 同一条规则既用于生成模型约束，也用于校验已完成的排班。
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Emit 向 ctx.Model 写入线性约束
	Emit(ctx *Context) error

	// Evaluate 校验一个完整分配
	Evaluate(ctx *Context, a Assignment) (valid bool, details []ViolationDetail)
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type   `json:"constraint_type"`
	ConstraintName string `json:"constraint_name"`
	Employee       string `json:"employee,omitempty"`
	Date           string `json:"date,omitempty"`
	Message        string `json:"message"`
	Severity       string `json:"severity"` // error/warning
}

// Options 构建选项
type Options struct {
	MaxConsecutiveDays int  // K
	Top3Guarantee      int  // 前三偏好保底天数上限
	ForbidUnavailable  bool // 禁止分配到不可用日期
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		MaxConsecutiveDays: model.DefaultMaxConsecutiveDays,
		Top3Guarantee:      1,
		ForbidUnavailable:  true,
	}
}

// Eligibility 员工在保底约束上的资格，构建时一次计算
type Eligibility struct {
	Rank1 bool // 至少有一个第一偏好日
	Top3  int  // 需要保证的前三偏好天数，0 表示不约束
	// Top3Short 需要保底但前三偏好日不足，约束被跳过
	Top3Short bool
}

// SkipDetail 按员工跳过的约束
type SkipDetail struct {
	ConstraintType Type   `json:"constraint_type"`
	Employee       string `json:"employee"`
	Reason         string `json:"reason"`
}

// BuildReport 模型构建报告
type BuildReport struct {
	Emitted map[Type]int `json:"emitted"`
	Skipped []SkipDetail `json:"skipped,omitempty"`
}

// Context 约束上下文
//
// 构建模型时 Model 和 X 非空；只做校验时二者为空。
type Context struct {
	Matrix  *costmatrix.Matrix
	Options Options

	MinLoad int
	MaxLoad int

	Model *lp.Model
	X     [][]lp.VarID // X[i][d] 员工 i 是否在第 d 天值班

	Report *BuildReport

	eligibility []Eligibility
}

// NewContext 创建上下文并计算每位员工的保底资格
func NewContext(matrix *costmatrix.Matrix, opts Options) *Context {
	ctx := &Context{
		Matrix:  matrix,
		Options: opts,
		Report:  &BuildReport{Emitted: make(map[Type]int)},
	}
	ctx.MinLoad, ctx.MaxLoad = model.Loads(matrix.NumDays(), matrix.NumEmployees())

	g := opts.Top3Guarantee
	if ctx.MinLoad < g {
		g = ctx.MinLoad
	}

	ctx.eligibility = make([]Eligibility, matrix.NumEmployees())
	for i := range ctx.eligibility {
		el := Eligibility{Rank1: len(matrix.Rank1(i)) > 0}
		if g > 0 {
			if len(matrix.Top3(i)) >= g {
				el.Top3 = g
			} else {
				el.Top3Short = true
			}
		}
		ctx.eligibility[i] = el
	}
	return ctx
}

// Eligibility 返回员工 i 的保底资格
func (c *Context) Eligibility(i int) Eligibility {
	return c.eligibility[i]
}

// Rank1Employees 有第一偏好日的员工索引
func (c *Context) Rank1Employees() []int {
	var result []int
	for i, el := range c.eligibility {
		if el.Rank1 {
			result = append(result, i)
		}
	}
	return result
}

// EmployeeName 员工姓名
func (c *Context) EmployeeName(i int) string {
	return c.Matrix.Employee(i).Name
}

// DateLabel 日期
func (c *Context) DateLabel(d int) string {
	return c.Matrix.Date(d).Date
}

// VarName x 变量名称
func VarName(i, d int) string {
	return fmt.Sprintf("x[%d,%d]", i, d)
}

// Assignment 分配矩阵 a[i][d]
type Assignment [][]bool

// NewAssignment 创建空分配
func NewAssignment(employees, days int) Assignment {
	a := make(Assignment, employees)
	for i := range a {
		a[i] = make([]bool, days)
	}
	return a
}

// Load 员工 i 的值班天数
func (a Assignment) Load(i int) int {
	n := 0
	for _, on := range a[i] {
		if on {
			n++
		}
	}
	return n
}

// OnDay 第 d 天值班的员工索引
func (a Assignment) OnDay(d int) []int {
	var result []int
	for i := range a {
		if a[i][d] {
			result = append(result, i)
		}
	}
	return result
}

// LongestRun 员工 i 最长的连续值班天数
func (a Assignment) LongestRun(i int) int {
	longest, run := 0, 0
	for _, on := range a[i] {
		if on {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
}
