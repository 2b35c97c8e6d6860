// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/rota/pkg/scheduler/constraint"
)

// RegisterDefaultConstraints 注册默认约束到管理器
func RegisterDefaultConstraints(manager *constraint.Manager) {
	manager.Register(NewCoverageConstraint())
	manager.Register(NewMaxConsecutiveDaysConstraint())
	manager.Register(NewWorkloadBalanceConstraint())
	manager.Register(NewRank1GuaranteeConstraint())
	manager.Register(NewTop3GuaranteeConstraint())
	manager.Register(NewAvailabilityConstraint())
}

// NewDefaultManager 创建已注册全部默认约束的管理器
func NewDefaultManager() *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultConstraints(m)
	return m
}
