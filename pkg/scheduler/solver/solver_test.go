package solver

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/scheduler/lp"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

// bruteEngine 穷举所有取值的引擎，只用于小模型
type bruteEngine struct {
	calls int
}

func (b *bruteEngine) Name() string { return "brute" }

func (b *bruteEngine) Solve(ctx context.Context, m *lp.Model, timeLimit time.Duration) (*Result, error) {
	b.calls++
	if err := m.Validate(); err != nil {
		return &Result{Status: StatusInvalid}, nil
	}

	vars := m.Vars()
	values := make([]int64, len(vars))
	var best []int64
	var bestObj int64
	obj := m.Objective()

	var walk func(i int)
	walk = func(i int) {
		if i == len(vars) {
			if m.Check(values) != nil {
				return
			}
			var v int64
			if obj != nil {
				v = obj.Expr.Eval(values)
				if obj.Sense == lp.Maximize {
					v = -v
				}
			}
			if best == nil || v < bestObj {
				best = append([]int64(nil), values...)
				bestObj = v
			}
			return
		}
		for x := vars[i].Lo; x <= vars[i].Hi; x++ {
			values[i] = x
			walk(i + 1)
		}
	}
	walk(0)

	if best == nil {
		return &Result{Status: StatusInfeasible}, nil
	}
	res := &Result{Status: StatusOptimal, Values: best}
	if obj != nil {
		res.Objective = obj.Expr.Eval(best)
	}
	return res, nil
}

// scriptedEngine 按顺序返回预设结果
type scriptedEngine struct {
	results []*Result
	models  []*lp.Model
}

func (s *scriptedEngine) Name() string { return "scripted" }

func (s *scriptedEngine) Solve(ctx context.Context, m *lp.Model, timeLimit time.Duration) (*Result, error) {
	s.models = append(s.models, m.Clone())
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
		sol    bool
	}{
		{StatusOptimal, "OPTIMAL", true},
		{StatusFeasible, "FEASIBLE", true},
		{StatusInfeasible, "INFEASIBLE", false},
		{StatusInvalid, "INVALID", false},
		{StatusUnknown, "UNKNOWN", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
		assert.Equal(t, tt.sol, tt.status.HasSolution())
	}
}

func TestPBEngine_Basic(t *testing.T) {
	m := lp.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	c := m.NewBoolVar("c")
	m.AddEquality("one", lp.Sum(a, b, c), 1)
	m.Minimize(lp.NewExpr().AddTerm(a, 5).AddTerm(b, 3).AddTerm(c, 7))

	res, err := NewPBEngine().Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, []int64{0, 1, 0}, res.Values)
	assert.Equal(t, int64(3), res.Objective)
}

func TestPBEngine_IntVarsAndMaximize(t *testing.T) {
	m := lp.NewModel()
	n := m.NewIntVar(2, 7, "n") // 区间宽度 5，三位编码需要上界约束
	x := m.NewBoolVar("x")
	m.AddLessOrEqual("cap", lp.NewExpr().AddTerm(n, 1).AddTerm(x, 3), 8)
	m.Maximize(lp.NewExpr().AddTerm(n, 2).AddTerm(x, 5))

	res, err := NewPBEngine().Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	// n=7,x=0 得 14；n=5,x=1 得 15
	assert.Equal(t, int64(15), res.Objective)
	assert.Equal(t, []int64{5, 1}, res.Values)
}

func TestPBEngine_Infeasible(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *lp.Model)
	}{
		{
			name: "编译期即可判定",
			build: func(m *lp.Model) {
				a := m.NewBoolVar("a")
				m.AddGreaterOrEqual("too_much", lp.Sum(a), 2)
			},
		},
		{
			name: "需要搜索",
			build: func(m *lp.Model) {
				a := m.NewBoolVar("a")
				b := m.NewBoolVar("b")
				m.AddEquality("one", lp.Sum(a, b), 1)
				m.AddEquality("same", lp.NewExpr().AddTerm(a, 1).AddTerm(b, -1), 0)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := lp.NewModel()
			tt.build(m)
			res, err := NewPBEngine().Solve(context.Background(), m, time.Second)
			require.NoError(t, err)
			assert.Equal(t, StatusInfeasible, res.Status)
		})
	}
}

func TestPBEngine_NoConstraints(t *testing.T) {
	m := lp.NewModel()
	a := m.NewBoolVar("a")
	n := m.NewIntVar(-3, 4, "n")
	m.Minimize(lp.NewExpr().AddTerm(a, -2).AddTerm(n, 1))

	res, err := NewPBEngine().Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, []int64{1, -3}, res.Values)
}

func TestPBEngine_Invalid(t *testing.T) {
	m := lp.NewModel()
	m.NewIntVar(5, 1, "empty")
	res, err := NewPBEngine().Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, res.Status)
}

// 随机小模型上与穷举结果一致
func TestPBEngine_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ops := []lp.Op{lp.LE, lp.GE, lp.EQ}

	for round := 0; round < 60; round++ {
		m := lp.NewModel()
		nvars := 2 + rng.Intn(3)
		var ids []lp.VarID
		for i := 0; i < nvars; i++ {
			if rng.Intn(2) == 0 {
				ids = append(ids, m.NewBoolVar("b"))
			} else {
				lo := int64(rng.Intn(5) - 2)
				ids = append(ids, m.NewIntVar(lo, lo+int64(rng.Intn(5)), "n"))
			}
		}
		for c := 0; c < 1+rng.Intn(3); c++ {
			expr := lp.NewExpr()
			for _, id := range ids {
				expr.AddTerm(id, int64(rng.Intn(7)-3))
			}
			m.AddLinearConstraint("c", expr, ops[rng.Intn(3)], int64(rng.Intn(9)-4))
		}
		obj := lp.NewExpr()
		for _, id := range ids {
			obj.AddTerm(id, int64(rng.Intn(11)-5))
		}
		if rng.Intn(2) == 0 {
			m.Minimize(obj)
		} else {
			m.Maximize(obj)
		}

		want, err := (&bruteEngine{}).Solve(context.Background(), m, time.Second)
		require.NoError(t, err)
		got, err := NewPBEngine().Solve(context.Background(), m, 5*time.Second)
		require.NoError(t, err, "round %d", round)

		require.Equal(t, want.Status, got.Status, "round %d", round)
		if want.Status == StatusOptimal {
			assert.Equal(t, want.Objective, got.Objective, "round %d", round)
			assert.NoError(t, m.Check(got.Values))
		}
	}
}

// pigeonhole n 只鸽子放进 n-1 个笼子，每笼至多一只
// strict 为 true 时要求每只鸽子都入笼（无解），否则最大化入笼数
func pigeonhole(n int, strict bool) *lp.Model {
	m := lp.NewModel()
	x := make([][]lp.VarID, n)
	for p := range x {
		x[p] = make([]lp.VarID, n-1)
		for h := range x[p] {
			x[p][h] = m.NewBoolVar(fmt.Sprintf("x_%d_%d", p, h))
		}
	}
	placed := lp.NewExpr()
	for p := range x {
		if strict {
			m.AddGreaterOrEqual(fmt.Sprintf("pigeon_%d", p), lp.Sum(x[p]...), 1)
		} else {
			m.AddLessOrEqual(fmt.Sprintf("pigeon_%d", p), lp.Sum(x[p]...), 1)
		}
		placed.AddExpr(lp.Sum(x[p]...), 1)
	}
	for h := 0; h < n-1; h++ {
		hole := lp.NewExpr()
		for p := range x {
			hole.AddTerm(x[p][h], 1)
		}
		m.AddLessOrEqual(fmt.Sprintf("hole_%d", h), hole, 1)
	}
	if !strict {
		m.Maximize(placed)
	}
	return m
}

// 证明无解需要很长时间时，Solve 仍在时间限制附近返回
func TestPBEngine_TimeLimitWithoutSolution(t *testing.T) {
	engine := NewPBEngine()
	limit := 200 * time.Millisecond

	start := time.Now()
	res, err := engine.Solve(context.Background(), pigeonhole(12, true), limit)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Nil(t, res.Values)
	assert.Less(t, elapsed, limit+500*time.Millisecond)
	assert.GreaterOrEqual(t, engine.Detached(), int64(1))
}

// 超时前找到的解作为 FEASIBLE 返回
func TestPBEngine_TimeLimitKeepsIncumbent(t *testing.T) {
	m := pigeonhole(12, false)
	limit := 500 * time.Millisecond

	start := time.Now()
	res, err := NewPBEngine().Solve(context.Background(), m, limit)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, res.Status.HasSolution(), "status %s", res.Status)
	assert.NoError(t, m.Check(res.Values))
	assert.LessOrEqual(t, res.Objective, int64(11))
	assert.Less(t, elapsed, limit+500*time.Millisecond)
	if res.Status == StatusOptimal {
		assert.Equal(t, int64(11), res.Objective)
	}
}

func TestPBEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := NewPBEngine().Solve(ctx, pigeonhole(12, true), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPBEngine_MaxDetached(t *testing.T) {
	m := lp.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual("any", lp.Sum(a, b), 1)

	engine := NewPBEngine()
	engine.MaxDetached = 1
	engine.detached.Store(1)

	res, err := engine.Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, res.Status)

	engine.detached.Store(0)
	res, err = engine.Solve(context.Background(), m, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
}

func lexPlan(m *lp.Model) (*objective.Plan, lp.VarID, lp.VarID) {
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual("any", lp.Sum(a, b), 1)
	return &objective.Plan{
		Strategy: objective.StrategyLexicographic,
		Terms: []objective.Term{
			{ID: "first", Sense: lp.Minimize, Expr: lp.Sum(a)},
			{ID: "second", Sense: lp.Maximize, Expr: lp.Sum(a, b)},
		},
	}, a, b
}

func TestAdapter_LexicographicPinsPhases(t *testing.T) {
	m := lp.NewModel()
	plan, _, _ := lexPlan(m)

	engine := &bruteEngine{}
	out, err := NewAdapter(engine, time.Second).Run(context.Background(), m, plan)
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, out.Status)
	assert.Equal(t, 2, engine.calls)
	// 第一阶段锁定 a=0，第二阶段最多只能得到 1
	assert.Equal(t, []int64{0, 1}, out.Values)
	require.Len(t, out.Phases, 2)
	assert.Equal(t, int64(0), out.Phases[0].Value)
	assert.Equal(t, int64(1), out.Phases[1].Value)

	assert.Len(t, m.Constraints(), 1, "原模型不应被修改")
}

func TestAdapter_LexicographicWithPBEngine(t *testing.T) {
	m := lp.NewModel()
	plan, _, _ := lexPlan(m)

	out, err := NewAdapter(NewPBEngine(), 5*time.Second).Run(context.Background(), m, plan)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, out.Status)
	assert.Equal(t, []int64{0, 1}, out.Values)
}

func TestAdapter_Degrade(t *testing.T) {
	tests := []struct {
		name    string
		results []*Result
		want    Status
		values  bool
	}{
		{
			name:    "第二阶段超时降级为可行",
			results: []*Result{{Status: StatusOptimal, Values: []int64{0, 1}}, {Status: StatusUnknown}},
			want:    StatusFeasible,
			values:  true,
		},
		{
			name:    "第二阶段只得到可行解",
			results: []*Result{{Status: StatusOptimal, Values: []int64{0, 1}}, {Status: StatusFeasible, Values: []int64{0, 1}}},
			want:    StatusFeasible,
			values:  true,
		},
		{
			name:    "第一阶段无结论",
			results: []*Result{{Status: StatusUnknown}},
			want:    StatusUnknown,
		},
		{
			name:    "第一阶段无解",
			results: []*Result{{Status: StatusInfeasible}},
			want:    StatusInfeasible,
		},
		{
			name:    "模型无效",
			results: []*Result{{Status: StatusInvalid}},
			want:    StatusInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := lp.NewModel()
			plan, _, _ := lexPlan(m)
			out, err := NewAdapter(&scriptedEngine{results: tt.results}, time.Second).Run(context.Background(), m, plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
			assert.Equal(t, tt.values, out.Values != nil)
		})
	}
}

func TestAdapter_LaterPhaseInfeasibleIsModelError(t *testing.T) {
	m := lp.NewModel()
	plan, _, _ := lexPlan(m)
	engine := &scriptedEngine{results: []*Result{
		{Status: StatusOptimal, Values: []int64{0, 1}},
		{Status: StatusInfeasible},
	}}
	_, err := NewAdapter(engine, time.Second).Run(context.Background(), m, plan)
	assert.True(t, errors.Is(err, errors.CodeInternalModel))
}

func TestAdapter_PinnedModelIsPassedToNextPhase(t *testing.T) {
	m := lp.NewModel()
	plan, _, _ := lexPlan(m)
	engine := &scriptedEngine{results: []*Result{
		{Status: StatusOptimal, Values: []int64{0, 1}},
		{Status: StatusOptimal, Values: []int64{0, 1}},
	}}
	_, err := NewAdapter(engine, time.Second).Run(context.Background(), m, plan)
	require.NoError(t, err)

	require.Len(t, engine.models, 2)
	second := engine.models[1]
	last := second.Constraints()[len(second.Constraints())-1]
	assert.Equal(t, "pin_first", last.Name)
	assert.Equal(t, lp.LE, last.Op)
	assert.Equal(t, int64(0), last.RHS)
	assert.Equal(t, lp.Maximize, second.Objective().Sense)
}

func TestAdapter_CancelledContext(t *testing.T) {
	m := lp.NewModel()
	plan, _, _ := lexPlan(m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &bruteEngine{}
	out, err := NewAdapter(engine, time.Second).Run(ctx, m, plan)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, out.Status)
	assert.Zero(t, engine.calls)
}

func TestAdapter_Weighted(t *testing.T) {
	m := lp.NewModel()
	a := m.NewBoolVar("a")
	b := m.NewBoolVar("b")
	m.AddGreaterOrEqual("any", lp.Sum(a, b), 1)
	m.Minimize(lp.NewExpr().AddTerm(a, 4).AddTerm(b, 1))
	plan := &objective.Plan{Strategy: objective.StrategyWeighted}

	engine := &bruteEngine{}
	out, err := NewAdapter(engine, 0).Run(context.Background(), m, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, StatusOptimal, out.Status)
	assert.Equal(t, []int64{0, 1}, out.Values)
}
