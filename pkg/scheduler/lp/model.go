// Package lp 定义求解引擎消费的整数线性模型
//
// 模型只包含有界整数变量（布尔变量是 [0,1] 的特例）、线性约束和一个
// 最小化或最大化目标。引擎只依赖这里的类型，约束构造和目标组合都不直接
// 接触具体引擎。
package lp

import (
	"fmt"

	"github.com/paiban/rota/pkg/errors"
)

// VarID 变量索引
type VarID int

// Var 变量定义
type Var struct {
	Name string
	Lo   int64
	Hi   int64
}

// Op 比较运算符
type Op int

const (
	LE Op = iota // <=
	GE           // >=
	EQ           // ==
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	}
	return "?"
}

// Constraint 线性约束 Expr op RHS
type Constraint struct {
	Name string
	Expr *LinearExpr
	Op   Op
	RHS  int64
}

// Satisfied 判断给定取值是否满足约束
func (c *Constraint) Satisfied(values []int64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Op {
	case LE:
		return lhs <= c.RHS
	case GE:
		return lhs >= c.RHS
	default:
		return lhs == c.RHS
	}
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s: %s %s %d", c.Name, c.Expr, c.Op, c.RHS)
}

// Sense 优化方向
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Objective 优化目标
type Objective struct {
	Expr  *LinearExpr
	Sense Sense
}

// Model 整数线性模型
type Model struct {
	vars        []Var
	constraints []Constraint
	objective   *Objective
}

// NewModel 创建空模型
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar 声明布尔变量
func (m *Model) NewBoolVar(name string) VarID {
	return m.NewIntVar(0, 1, name)
}

// NewIntVar 声明 [lo, hi] 区间内的整数变量
func (m *Model) NewIntVar(lo, hi int64, name string) VarID {
	m.vars = append(m.vars, Var{Name: name, Lo: lo, Hi: hi})
	return VarID(len(m.vars) - 1)
}

// NumVars 变量个数
func (m *Model) NumVars() int { return len(m.vars) }

// Var 返回变量定义
func (m *Model) Var(id VarID) Var { return m.vars[id] }

// Vars 返回全部变量（调用方不得修改）
func (m *Model) Vars() []Var { return m.vars }

// Constraints 返回全部约束（调用方不得修改）
func (m *Model) Constraints() []Constraint { return m.constraints }

// Objective 返回当前目标，没有目标时为 nil
func (m *Model) Objective() *Objective { return m.objective }

// AddLinearConstraint 添加线性约束
// 表达式中的常数项会移到右侧。
func (m *Model) AddLinearConstraint(name string, expr *LinearExpr, op Op, rhs int64) {
	e := expr.Clone()
	rhs -= e.Const
	e.Const = 0
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: e, Op: op, RHS: rhs})
}

// AddEquality 添加 expr == rhs
func (m *Model) AddEquality(name string, expr *LinearExpr, rhs int64) {
	m.AddLinearConstraint(name, expr, EQ, rhs)
}

// AddLessOrEqual 添加 expr <= rhs
func (m *Model) AddLessOrEqual(name string, expr *LinearExpr, rhs int64) {
	m.AddLinearConstraint(name, expr, LE, rhs)
}

// AddGreaterOrEqual 添加 expr >= rhs
func (m *Model) AddGreaterOrEqual(name string, expr *LinearExpr, rhs int64) {
	m.AddLinearConstraint(name, expr, GE, rhs)
}

// Minimize 设置最小化目标，覆盖之前的目标
func (m *Model) Minimize(expr *LinearExpr) {
	m.objective = &Objective{Expr: expr.Clone(), Sense: Minimize}
}

// Maximize 设置最大化目标，覆盖之前的目标
func (m *Model) Maximize(expr *LinearExpr) {
	m.objective = &Objective{Expr: expr.Clone(), Sense: Maximize}
}

// Clone 深拷贝模型，拷贝上的修改不影响原模型
func (m *Model) Clone() *Model {
	c := &Model{
		vars:        make([]Var, len(m.vars)),
		constraints: make([]Constraint, len(m.constraints)),
	}
	copy(c.vars, m.vars)
	for i, con := range m.constraints {
		con.Expr = con.Expr.Clone()
		c.constraints[i] = con
	}
	if m.objective != nil {
		c.objective = &Objective{Expr: m.objective.Expr.Clone(), Sense: m.objective.Sense}
	}
	return c
}

// Validate 检查模型结构：变量区间合法、引用的变量都已声明
func (m *Model) Validate() error {
	for id, v := range m.vars {
		if v.Lo > v.Hi {
			return errors.InternalModel(fmt.Sprintf("变量 %s(%d) 的区间 [%d,%d] 为空", v.Name, id, v.Lo, v.Hi))
		}
	}
	for _, c := range m.constraints {
		if err := m.validateExpr(c.Expr); err != nil {
			return errors.InternalModel(fmt.Sprintf("约束 %s: %v", c.Name, err))
		}
	}
	if m.objective != nil {
		if err := m.validateExpr(m.objective.Expr); err != nil {
			return errors.InternalModel(fmt.Sprintf("目标: %v", err))
		}
	}
	return nil
}

func (m *Model) validateExpr(e *LinearExpr) error {
	for _, t := range e.Terms {
		if t.Var < 0 || int(t.Var) >= len(m.vars) {
			return fmt.Errorf("引用了未声明的变量 %d", t.Var)
		}
	}
	return nil
}

// Check 校验一组取值：长度、变量区间、所有约束
// 返回第一个违反项。
func (m *Model) Check(values []int64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("取值个数 %d 与变量个数 %d 不一致", len(values), len(m.vars))
	}
	for id, v := range m.vars {
		if values[id] < v.Lo || values[id] > v.Hi {
			return fmt.Errorf("变量 %s 取值 %d 超出区间 [%d,%d]", v.Name, values[id], v.Lo, v.Hi)
		}
	}
	for i := range m.constraints {
		c := &m.constraints[i]
		if !c.Satisfied(values) {
			return fmt.Errorf("约束 %s 不满足: 左侧 %d %s %d", c.Name, c.Expr.Eval(values), c.Op, c.RHS)
		}
	}
	return nil
}

// ExprBounds 返回表达式在变量区间内的取值范围
func (m *Model) ExprBounds(e *LinearExpr) (lo, hi int64) {
	lo, hi = e.Const, e.Const
	for _, t := range e.Terms {
		v := m.vars[t.Var]
		if t.Coef >= 0 {
			lo += t.Coef * v.Lo
			hi += t.Coef * v.Hi
		} else {
			lo += t.Coef * v.Hi
			hi += t.Coef * v.Lo
		}
	}
	return lo, hi
}
