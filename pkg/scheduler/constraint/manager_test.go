package constraint

import (
	"testing"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler/costmatrix"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

func TestManager_Register(t *testing.T) {
	manager := NewManager()

	c := &MockConstraint{
		name:     "test",
		typ:      Type("test_type"),
		category: CategoryHard,
	}
	manager.Register(c)
	manager.Register(&MockConstraint{name: "replaced", typ: Type("test_type"), category: CategoryHard})

	constraints := manager.GetAll()
	if len(constraints) != 1 {
		t.Fatalf("Expected 1 constraint, got %d", len(constraints))
	}
	if constraints[0].Name() != "replaced" {
		t.Errorf("Expected same type to be replaced, got %s", constraints[0].Name())
	}
}

func TestManager_HardFirstKeepsOrder(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "soft1", typ: Type("soft1"), category: CategorySoft})
	manager.Register(&MockConstraint{name: "hard1", typ: Type("hard1"), category: CategoryHard})
	manager.Register(&MockConstraint{name: "hard2", typ: Type("hard2"), category: CategoryHard})

	var names []string
	for _, c := range manager.GetAll() {
		names = append(names, c.Name())
	}
	expected := []string{"hard1", "hard2", "soft1"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Fatalf("Expected order %v, got %v", expected, names)
		}
	}
}

func TestManager_GetByCategory(t *testing.T) {
	manager := NewManager()

	hard := &MockConstraint{name: "hard1", typ: Type("hard1"), category: CategoryHard}
	soft := &MockConstraint{name: "soft1", typ: Type("soft1"), category: CategorySoft}
	manager.Register(hard)
	manager.Register(soft)

	hardConstraints := manager.GetByCategory(CategoryHard)
	if len(hardConstraints) != 1 {
		t.Errorf("Expected 1 hard constraint, got %d", len(hardConstraints))
	}

	softConstraints := manager.GetByCategory(CategorySoft)
	if len(softConstraints) != 1 {
		t.Errorf("Expected 1 soft constraint, got %d", len(softConstraints))
	}
}

func TestManager_UnregisterAndSummary(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "hard1", typ: Type("hard1"), category: CategoryHard})
	manager.Register(&MockConstraint{name: "hard2", typ: Type("hard2"), category: CategoryHard})
	manager.Register(&MockConstraint{name: "soft1", typ: Type("soft1"), category: CategorySoft})

	if got := manager.Summary(); got != (Summary{Total: 3, Hard: 2, Soft: 1}) {
		t.Errorf("Unexpected summary %+v", got)
	}

	manager.Unregister(Type("hard1"))
	manager.Unregister(Type("missing"))
	if manager.GetConstraint(Type("hard1")) != nil {
		t.Error("hard1 should be unregistered")
	}
	if got := manager.Summary(); got != (Summary{Total: 2, Hard: 1, Soft: 1}) {
		t.Errorf("Unexpected summary after unregister %+v", got)
	}
}

func TestManager_Evaluate(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "pass", typ: Type("pass"), category: CategoryHard, pass: true})
	manager.Register(&MockConstraint{name: "soft", typ: Type("soft"), category: CategorySoft})

	ctx := NewContext(testMatrix(t, 2, 2), DefaultOptions())
	result := manager.Evaluate(ctx, NewAssignment(2, 2))

	if !result.IsValid {
		t.Error("soft violations should not invalidate the result")
	}
	if len(result.SoftViolations) != 1 {
		t.Errorf("Expected 1 soft violation, got %d", len(result.SoftViolations))
	}

	manager.Register(&MockConstraint{name: "fail", typ: Type("fail"), category: CategoryHard})
	result = manager.Evaluate(ctx, NewAssignment(2, 2))
	if result.IsValid {
		t.Error("hard violation should invalidate the result")
	}
}

func TestManager_EmitCountsAndWrapsErrors(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "emit", typ: Type("emit"), category: CategoryHard, pass: true})

	builder := NewModelBuilder(manager, DefaultOptions())
	ctx, err := builder.Build(testMatrix(t, 2, 3))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if ctx.Report.Emitted[Type("emit")] != 3 {
		t.Errorf("Expected 3 emitted constraints, got %d", ctx.Report.Emitted[Type("emit")])
	}
	if ctx.Model.NumVars() != 6 {
		t.Errorf("Expected 6 variables, got %d", ctx.Model.NumVars())
	}

	manager.Register(&MockConstraint{name: "broken", typ: Type("broken"), category: CategoryHard, emitErr: true})
	_, err = builder.Build(testMatrix(t, 2, 3))
	if !errors.Is(err, errors.CodeInternalModel) {
		t.Errorf("Expected INTERNAL_MODEL_ERROR, got %v", err)
	}
}

func TestModelBuilder_Validation(t *testing.T) {
	tests := []struct {
		name      string
		employees int
		opts      Options
	}{
		{"无员工", 0, DefaultOptions()},
		{"连续天数为0", 2, Options{MaxConsecutiveDays: 0, Top3Guarantee: 1}},
		{"保底为负", 2, Options{MaxConsecutiveDays: 2, Top3Guarantee: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModelBuilder(NewManager(), tt.opts).Build(testMatrix(t, tt.employees, 3))
			if !errors.Is(err, errors.CodeValidationFail) {
				t.Errorf("Expected VALIDATION_FAILED, got %v", err)
			}
		})
	}
}

func TestModelBuilder_ZeroDays(t *testing.T) {
	manager := NewManager()
	manager.Register(&MockConstraint{name: "emit", typ: Type("emit"), category: CategoryHard, pass: true})

	ctx, err := NewModelBuilder(manager, DefaultOptions()).Build(testMatrix(t, 2, 0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if ctx.Model.NumVars() != 0 || len(ctx.Model.Constraints()) != 0 {
		t.Errorf("Expected empty model, got %d vars %d constraints",
			ctx.Model.NumVars(), len(ctx.Model.Constraints()))
	}
}

func TestContext_Eligibility(t *testing.T) {
	employees := []model.Employee{
		{Name: "A", WeekdayCost: []int{0, 20, 100, 100, 100, 100, 100}},
		{Name: "B", WeekdayCost: []int{100, 100, 100, 100, 100, 100, 100}},
		{Name: "C", WeekdayCost: []int{40, 100, 100, 100, 100, 100, 100}},
	}
	dates := []model.DateSlot{
		{Date: "2025-06-01", Weekday: 0}, {Date: "2025-06-02", Weekday: 1},
		{Date: "2025-06-03", Weekday: 2}, {Date: "2025-06-04", Weekday: 3},
		{Date: "2025-06-05", Weekday: 4}, {Date: "2025-06-06", Weekday: 5},
	}
	matrix, err := costmatrix.Build(employees, dates, costmatrix.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Top3Guarantee = 2
	ctx := NewContext(matrix, opts)

	want := []Eligibility{
		{Rank1: true, Top3: 2},
		{Top3Short: true},
		{Top3Short: true},
	}
	for i, w := range want {
		if got := ctx.Eligibility(i); got != w {
			t.Errorf("Eligibility(%d) = %+v, want %+v", i, got, w)
		}
	}
	if r := ctx.Rank1Employees(); len(r) != 1 || r[0] != 0 {
		t.Errorf("Rank1Employees() = %v", r)
	}
}

func TestAssignment_Helpers(t *testing.T) {
	a := NewAssignment(2, 5)
	for _, d := range []int{0, 1, 3, 4} {
		a[0][d] = true
	}
	a[1][2] = true

	if a.Load(0) != 4 || a.Load(1) != 1 {
		t.Errorf("Load() = %d,%d", a.Load(0), a.Load(1))
	}
	if a.LongestRun(0) != 2 {
		t.Errorf("LongestRun() = %d, want 2", a.LongestRun(0))
	}
	if on := a.OnDay(2); len(on) != 1 || on[0] != 1 {
		t.Errorf("OnDay(2) = %v", on)
	}
}

func testMatrix(t *testing.T, employees, days int) *costmatrix.Matrix {
	t.Helper()
	emps := make([]model.Employee, employees)
	for i := range emps {
		emps[i] = model.Employee{Name: string(rune('A' + i)), WeekdayCost: []int{0, 20, 40, 60, 100, 60, 60}}
	}
	dates := make([]model.DateSlot, days)
	for d := range dates {
		dates[d] = model.DateSlot{Date: string(rune('a' + d)), Weekday: d % model.DaysPerWeek}
	}
	m, err := costmatrix.Build(emps, dates, costmatrix.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// MockConstraint 用于测试的模拟约束
type MockConstraint struct {
	name     string
	typ      Type
	category Category
	pass     bool
	emitErr  bool
}

func (m *MockConstraint) Name() string       { return m.name }
func (m *MockConstraint) Type() Type         { return m.typ }
func (m *MockConstraint) Category() Category { return m.category }

// Emit 每天生成一条约束
func (m *MockConstraint) Emit(ctx *Context) error {
	if m.emitErr {
		return errBroken
	}
	for d := 0; d < ctx.Matrix.NumDays(); d++ {
		ctx.Model.AddLessOrEqual(m.name, lp.Sum(ctx.X[0][d]), 1)
	}
	return nil
}

func (m *MockConstraint) Evaluate(ctx *Context, a Assignment) (bool, []ViolationDetail) {
	if m.pass {
		return true, nil
	}
	return false, []ViolationDetail{{ConstraintName: m.name, Message: "违反约束"}}
}

var errBroken = errorString("broken")

type errorString string

func (e errorString) Error() string { return string(e) }
