// Package constraint 定义约束接口和管理器
package constraint

import (
	"sort"
	"sync"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.SchedulerLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewSchedulerLogger(),
	}
}

// Register 注册约束
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 检查是否已存在同类型约束
	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c // 替换
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 硬约束在前，同类别保持注册顺序
	sort.SliceStable(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		return ci.Category() == CategoryHard && cj.Category() != CategoryHard
	})
}

// Unregister 注销约束
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.constraints {
		if c.Type() == t {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t Type) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// Emit 让所有约束写入模型
func (m *Manager) Emit(ctx *Context) error {
	for _, c := range m.GetAll() {
		before := len(ctx.Model.Constraints())
		if err := c.Emit(ctx); err != nil {
			if errors.GetCode(err) == errors.CodeUnknown {
				return errors.Wrap(err, errors.CodeInternalModel, "约束 "+c.Name()+" 构建失败")
			}
			return err
		}
		ctx.Report.Emitted[c.Type()] += len(ctx.Model.Constraints()) - before
	}
	for _, s := range ctx.Report.Skipped {
		m.logger.ConstraintSkipped(string(s.ConstraintType), s.Employee, s.Reason)
	}
	return nil
}

// Evaluate 评估所有约束
func (m *Manager) Evaluate(ctx *Context, a Assignment) *Result {
	result := &Result{
		IsValid:        true,
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
	}

	for _, c := range m.GetAll() {
		valid, details := c.Evaluate(ctx, a)
		if valid {
			continue
		}
		for _, d := range details {
			if c.Category() == CategoryHard {
				result.IsValid = false
				result.HardViolations = append(result.HardViolations, d)
				m.logger.ConstraintViolation(c.Name(), d.Message)
			} else {
				result.SoftViolations = append(result.SoftViolations, d)
			}
		}
	}

	return result
}

// Count 返回约束数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.constraints)
}

// Summary 已注册约束的数量统计
type Summary struct {
	Total int `json:"total"`
	Hard  int `json:"hard"`
	Soft  int `json:"soft"`
}

// Summary 返回约束摘要
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := Summary{Total: len(m.constraints)}
	for _, c := range m.constraints {
		if c.Category() == CategoryHard {
			sum.Hard++
		} else {
			sum.Soft++
		}
	}
	return sum
}

// ModelBuilder 根据成本矩阵声明决策变量并生成约束
type ModelBuilder struct {
	manager *Manager
	opts    Options
}

// NewModelBuilder 创建模型构建器
func NewModelBuilder(manager *Manager, opts Options) *ModelBuilder {
	return &ModelBuilder{manager: manager, opts: opts}
}

// Build 构建模型，每次调用产生全新的模型和变量
func (b *ModelBuilder) Build(matrix *costmatrix.Matrix) (*Context, error) {
	ve := &errors.ValidationErrors{}
	if matrix.NumEmployees() == 0 {
		ve.Add("employees", "员工列表不能为空")
	}
	if b.opts.MaxConsecutiveDays < 1 {
		ve.Add("max_consecutive_days", "最大连续天数必须至少为 1")
	}
	if b.opts.Top3Guarantee < 0 {
		ve.Add("top3_guarantee", "前三偏好保底天数不能为负")
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}

	ctx := NewContext(matrix, b.opts)
	ctx.Model = lp.NewModel()
	ctx.X = make([][]lp.VarID, matrix.NumEmployees())
	for i := range ctx.X {
		ctx.X[i] = make([]lp.VarID, matrix.NumDays())
		for d := range ctx.X[i] {
			ctx.X[i][d] = ctx.Model.NewBoolVar(VarName(i, d))
		}
	}

	if matrix.NumDays() == 0 {
		return ctx, nil
	}

	if err := b.manager.Emit(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Model.Validate(); err != nil {
		return nil, err
	}
	return ctx, nil
}
