// Package solver 把整数线性模型交给求解引擎，并驱动多目标求解
package solver

import (
	"context"
	"time"

	"github.com/paiban/rota/pkg/scheduler/lp"
)

// Status 求解状态
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// HasSolution 状态是否携带可用的变量取值
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// MarshalText 以名称形式序列化
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result 单次求解结果
type Result struct {
	Status    Status
	Values    []int64 // 仅在 OPTIMAL/FEASIBLE 时有效，按 VarID 索引
	Objective int64
	WallTime  time.Duration
}

// Engine 求解引擎
//
// Solve 必须在 timeLimit 内返回；超时时有可行解返回 FEASIBLE，否则 UNKNOWN。
// 结构错误的模型返回 INVALID 而不是 error，error 只用于引擎自身故障。
type Engine interface {
	Name() string
	Solve(ctx context.Context, m *lp.Model, timeLimit time.Duration) (*Result, error)
}
