package solver

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	pbsolver "github.com/crillab/gophersat/solver"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/scheduler/lp"
)

// maxWeight 单个伪布尔系数的上限
const maxWeight int64 = 1 << 53

// PBEngine 基于 gophersat 伪布尔求解器的引擎
//
// 整数变量按二进制位编码为 lo + Σ 2^k·b_k，所有约束归一化为
// Σ w·lit >= n（w > 0）。不出现在任何约束中的位直接取使目标最优的值，
// 不交给求解器。
//
// 优化过程是反复求解并追加“成本严格更低”的约束。单次 gophersat 求解
// 无法中断：超时后 Solve 立即返回当前最优解，后台搜索在本轮结束后退出。
// 这类后台搜索的数量由 Detached 报告，MaxDetached 限制其上限。
type PBEngine struct {
	// MaxDetached 允许同时存在的后台搜索数，达到上限后新的求解直接返回 UNKNOWN；0 表示不限
	MaxDetached int

	detached atomic.Int64
	logger   *logger.SchedulerLogger
}

// NewPBEngine 创建伪布尔引擎
func NewPBEngine() *PBEngine {
	return &PBEngine{
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回引擎名称
func (e *PBEngine) Name() string { return "gophersat" }

// Detached 超时后仍在后台运行的搜索数
func (e *PBEngine) Detached() int64 { return e.detached.Load() }

// Solve 求解模型
func (e *PBEngine) Solve(ctx context.Context, m *lp.Model, timeLimit time.Duration) (*Result, error) {
	start := time.Now()
	if err := m.Validate(); err != nil {
		return &Result{Status: StatusInvalid, WallTime: time.Since(start)}, nil
	}

	enc, err := compile(m)
	if err != nil {
		return nil, err
	}
	if enc.infeasible {
		return &Result{Status: StatusInfeasible, WallTime: time.Since(start)}, nil
	}

	status := StatusOptimal
	var model []bool
	if enc.numLive > 0 {
		if n := e.Detached(); e.MaxDetached > 0 && n >= int64(e.MaxDetached) {
			e.logger.SolverBusy(e.Name(), n)
			return &Result{Status: StatusUnknown, WallTime: time.Since(start)}, nil
		}
		status, model = e.run(ctx, enc, timeLimit)
		if !status.HasSolution() {
			return &Result{Status: status, WallTime: time.Since(start)}, nil
		}
	}

	values := enc.decode(model)
	if err := m.Check(values); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalModel, "引擎返回的解不满足模型")
	}

	result := &Result{Status: status, Values: values, WallTime: time.Since(start)}
	if obj := m.Objective(); obj != nil {
		result.Objective = obj.Expr.Eval(values)
	}
	return result, nil
}

// pbSearch 后台搜索与调用方共享的状态
type pbSearch struct {
	mu        sync.Mutex
	best      []bool
	finished  bool // 搜索已结束：best 为最优解，为空表示无解
	abandoned bool // 调用方已超时返回
}

// run 在时间限制内运行搜索
// 返回 OPTIMAL/INFEASIBLE（搜索结束），或 FEASIBLE/UNKNOWN（超时，按是否有当前解）。
func (e *PBEngine) run(ctx context.Context, enc *encoding, timeLimit time.Duration) (Status, []bool) {
	st := &pbSearch{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.search(enc, st)
	}()

	timer := time.NewTimer(timeLimit)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finished {
		if st.best == nil {
			return StatusInfeasible, nil
		}
		return StatusOptimal, st.best
	}

	st.abandoned = true
	e.logger.SolverDetached(e.Name(), e.detached.Add(1), timeLimit)
	if st.best == nil {
		return StatusUnknown, nil
	}
	return StatusFeasible, st.best
}

// search 反复求解，每找到一个解就要求下一个解的成本严格更低
// 调用方放弃后在当前这轮求解结束时退出。
func (e *PBEngine) search(enc *encoding, st *pbSearch) {
	defer func() {
		st.mu.Lock()
		st.finished = true
		if st.abandoned {
			e.detached.Add(-1)
		}
		st.mu.Unlock()
	}()

	s := pbsolver.New(pbsolver.ParsePBConstrs(enc.constrs))
	maxCost := 0
	for _, w := range enc.costWeights {
		maxCost += w
	}

	for {
		if s.Solve() != pbsolver.Sat {
			return
		}
		model := append([]bool(nil), s.Model()...)
		cost := enc.cost(model)

		st.mu.Lock()
		st.best = model
		stop := st.abandoned
		st.mu.Unlock()
		if stop || cost == 0 {
			return
		}

		// Σ w·lit <= cost-1 等价于 Σ w·¬lit >= maxCost-cost+1
		lits := make([]pbsolver.Lit, len(enc.costLits))
		for i, d := range enc.costLits {
			lits[i] = pbsolver.IntToLit(int32(-d))
		}
		weights := append([]int(nil), enc.costWeights...)
		s.AppendClause(pbsolver.NewPBClause(lits, weights, maxCost-cost+1))
	}
}

// pbTerm 位上的系数
type pbTerm struct {
	bit  int
	coef int64
}

// pbConstr 归一化后的约束 Σ w·lit >= n，lit 为 ±(bit+1)
type pbConstr struct {
	lits    []int
	weights []int64
	n       int64
}

type encoding struct {
	model *lp.Model
	base  []int
	width []int
	nbits int

	infeasible bool

	// 位到求解器变量编号（从 1 开始），0 表示该位不受约束
	dimacs  []int
	numLive int
	fixed   []bool // 不受约束的位的取值

	constrs     []pbsolver.PBConstr
	costLits    []int // 带符号的求解器变量编号，取真时计入成本
	costWeights []int
}

func compile(m *lp.Model) (*encoding, error) {
	enc := &encoding{
		model: m,
		base:  make([]int, m.NumVars()),
		width: make([]int, m.NumVars()),
	}

	var normalized []pbConstr
	add := func(terms []pbTerm, n int64) {
		c, trivial, infeasible := normalize(terms, n)
		if infeasible {
			enc.infeasible = true
		}
		if !trivial && !infeasible {
			normalized = append(normalized, c)
		}
	}

	for id, v := range m.Vars() {
		span := uint64(v.Hi - v.Lo)
		if int64(span) > maxWeight {
			return nil, errors.InternalModel(fmt.Sprintf("变量 %s 的区间过大", v.Name))
		}
		enc.base[id] = enc.nbits
		enc.width[id] = bits.Len64(span)
		enc.nbits += enc.width[id]

		// 二进制编码可能超出 hi，补上界约束
		if w := enc.width[id]; w > 0 && uint64(1)<<w-1 > span {
			terms := make([]pbTerm, w)
			for k := 0; k < w; k++ {
				terms[k] = pbTerm{bit: enc.base[id] + k, coef: -(int64(1) << k)}
			}
			add(terms, -int64(span))
		}
	}

	for _, c := range m.Constraints() {
		terms, konst, err := enc.expand(c.Expr)
		if err != nil {
			return nil, errors.InternalModel(fmt.Sprintf("约束 %s: %v", c.Name, err))
		}
		n := c.RHS - konst
		switch c.Op {
		case lp.GE:
			add(terms, n)
		case lp.LE:
			add(negate(terms), -n)
		case lp.EQ:
			add(terms, n)
			add(negate(terms), -n)
		}
	}
	if enc.infeasible {
		return enc, nil
	}

	enc.dimacs = make([]int, enc.nbits)
	for _, c := range normalized {
		for _, lit := range c.lits {
			bit := abs(lit) - 1
			if enc.dimacs[bit] == 0 {
				enc.numLive++
				enc.dimacs[bit] = enc.numLive
			}
		}
	}

	enc.constrs = make([]pbsolver.PBConstr, 0, len(normalized))
	for _, c := range normalized {
		lits := make([]int, len(c.lits))
		weights := make([]int, len(c.lits))
		for j, lit := range c.lits {
			d := enc.dimacs[abs(lit)-1]
			if lit < 0 {
				d = -d
			}
			lits[j] = d
			weights[j] = int(c.weights[j])
		}
		enc.constrs = append(enc.constrs, pbsolver.GtEq(lits, weights, int(c.n)))
	}

	enc.fixed = make([]bool, enc.nbits)
	if obj := m.Objective(); obj != nil {
		terms, _, err := enc.expand(obj.Expr)
		if err != nil {
			return nil, errors.InternalModel(fmt.Sprintf("目标: %v", err))
		}
		if obj.Sense == lp.Maximize {
			terms = negate(terms)
		}
		for _, t := range terms {
			d := enc.dimacs[t.bit]
			if d == 0 {
				enc.fixed[t.bit] = t.coef < 0
				continue
			}
			// a·b = a + |a|·¬b，常数不影响最优解
			if t.coef < 0 {
				d = -d
			}
			enc.costLits = append(enc.costLits, d)
			enc.costWeights = append(enc.costWeights, int(absInt64(t.coef)))
		}
	}
	return enc, nil
}

// expand 把变量表达式展开为位上的表达式，合并同一位的系数
func (enc *encoding) expand(e *lp.LinearExpr) ([]pbTerm, int64, error) {
	var terms []pbTerm
	konst := e.Const
	for _, t := range e.Terms {
		v := enc.model.Var(t.Var)
		konst += t.Coef * v.Lo
		for k := 0; k < enc.width[t.Var]; k++ {
			if absInt64(t.Coef) > maxWeight>>k {
				return nil, 0, fmt.Errorf("变量 %s 的系数 %d 过大", v.Name, t.Coef)
			}
			terms = append(terms, pbTerm{bit: enc.base[t.Var] + k, coef: t.Coef << k})
		}
	}

	sort.SliceStable(terms, func(i, j int) bool { return terms[i].bit < terms[j].bit })
	merged := terms[:0]
	for _, t := range terms {
		if n := len(merged); n > 0 && merged[n-1].bit == t.bit {
			merged[n-1].coef += t.coef
			continue
		}
		merged = append(merged, t)
	}
	result := merged[:0]
	for _, t := range merged {
		if t.coef != 0 {
			result = append(result, t)
		}
	}
	return result, konst, nil
}

// normalize 把 Σ a·b >= n 转为正系数形式，并按 n 截断系数
func normalize(terms []pbTerm, n int64) (c pbConstr, trivial, infeasible bool) {
	for _, t := range terms {
		if t.coef < 0 {
			n -= t.coef
		}
	}
	if n <= 0 {
		return c, true, false
	}

	c.n = n
	var sum int64
	for _, t := range terms {
		w := absInt64(t.coef)
		if w > n {
			w = n
		}
		lit := t.bit + 1
		if t.coef < 0 {
			lit = -lit
		}
		c.lits = append(c.lits, lit)
		c.weights = append(c.weights, w)
		if sum < n {
			sum += w
		}
	}
	if sum < n {
		return c, false, true
	}
	return c, false, false
}

// cost 计算求解器模型下的目标成本（不含常数）
func (enc *encoding) cost(model []bool) int {
	total := 0
	for i, d := range enc.costLits {
		v := abs(d) - 1
		if v < len(model) && model[v] == (d > 0) {
			total += enc.costWeights[i]
		}
	}
	return total
}

// decode 从求解器的模型还原变量取值
func (enc *encoding) decode(model []bool) []int64 {
	values := make([]int64, enc.model.NumVars())
	for id, v := range enc.model.Vars() {
		val := v.Lo
		for k := 0; k < enc.width[id]; k++ {
			if enc.bitValue(enc.base[id]+k, model) {
				val += int64(1) << k
			}
		}
		values[id] = val
	}
	return values
}

func (enc *encoding) bitValue(bit int, model []bool) bool {
	d := enc.dimacs[bit]
	if d == 0 {
		return enc.fixed[bit]
	}
	if d-1 < len(model) {
		return model[d-1]
	}
	return false
}

func negate(terms []pbTerm) []pbTerm {
	out := make([]pbTerm, len(terms))
	for i, t := range terms {
		out[i] = pbTerm{bit: t.bit, coef: -t.coef}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
