package lp

import (
	"fmt"
	"strings"
)

// Term 线性项 coef*var
type Term struct {
	Var  VarID
	Coef int64
}

// LinearExpr 线性表达式 Σ coef*var + Const
type LinearExpr struct {
	Terms []Term
	Const int64
}

// NewExpr 创建空表达式
func NewExpr() *LinearExpr {
	return &LinearExpr{}
}

// Sum 返回各变量系数为 1 的和
func Sum(vars ...VarID) *LinearExpr {
	e := &LinearExpr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: 1})
	}
	return e
}

// AddTerm 追加 coef*v，系数为 0 时忽略
func (e *LinearExpr) AddTerm(v VarID, coef int64) *LinearExpr {
	if coef != 0 {
		e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	}
	return e
}

// AddConst 追加常数
func (e *LinearExpr) AddConst(c int64) *LinearExpr {
	e.Const += c
	return e
}

// AddExpr 追加 scale*other
func (e *LinearExpr) AddExpr(other *LinearExpr, scale int64) *LinearExpr {
	for _, t := range other.Terms {
		e.AddTerm(t.Var, t.Coef*scale)
	}
	e.Const += other.Const * scale
	return e
}

// Clone 拷贝表达式
func (e *LinearExpr) Clone() *LinearExpr {
	c := &LinearExpr{Terms: make([]Term, len(e.Terms)), Const: e.Const}
	copy(c.Terms, e.Terms)
	return c
}

// Eval 按变量取值计算表达式
// 索引越界的变量按 0 计算。
func (e *LinearExpr) Eval(values []int64) int64 {
	total := e.Const
	for _, t := range e.Terms {
		if int(t.Var) < len(values) {
			total += t.Coef * values[t.Var]
		}
	}
	return total
}

func (e *LinearExpr) String() string {
	if len(e.Terms) == 0 {
		return fmt.Sprintf("%d", e.Const)
	}
	var sb strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%d*v%d", t.Coef, t.Var)
	}
	if e.Const != 0 {
		fmt.Fprintf(&sb, " + %d", e.Const)
	}
	return sb.String()
}
