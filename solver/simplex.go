package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	Tolerance    float64 `toml:"tolerance"`      // pivot and optimality tolerance
	MaxPivots    int     `toml:"max_pivots"`     // per LP solve; 0 picks a size-based bound
	CutTolerance float64 `toml:"cut_tolerance"`  // accepted violation of t <= log(s)
	MaxCutRounds int     `toml:"log_cut_rounds"` // re-solves spent refining cone cuts
}

func DefaultConfig() Config {
	return Config{
		Tolerance:    1e-9,
		CutTolerance: 1e-7,
		MaxCutRounds: 200,
	}
}

// SimplexEngine builds DenseModels solved by a two-phase tableau simplex.
type SimplexEngine struct {
	cfg Config
}

func NewSimplexEngine(cfg Config) *SimplexEngine {
	def := DefaultConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.CutTolerance <= 0 {
		cfg.CutTolerance = def.CutTolerance
	}
	if cfg.MaxCutRounds <= 0 {
		cfg.MaxCutRounds = def.MaxCutRounds
	}
	return &SimplexEngine{cfg: cfg}
}

func (e *SimplexEngine) NewModel(name string) Model {
	return &DenseModel{name: name, cfg: e.cfg}
}

type variable struct {
	name   string
	lo, hi float64
}

type constraint struct {
	name  string
	terms []Term
	sense Sense
	rhs   float64
}

type cone struct {
	t, s Var
}

// DenseModel keeps the problem in user form. The tableau of the last solve
// is kept; when only inequality rows were added since, they are appended to
// it and the solve continues with dual simplex pivots. Anything else
// rebuilds the tableau.
type DenseModel struct {
	name  string
	cfg   Config
	vars  []variable
	cons  []constraint
	cones []cone
	cuts  int

	objSense ObjectiveSense
	obj      Expr

	tab     *tableau
	mapping []column
	built   int // constraints already in tab
	stale   bool

	values    []float64
	objValue  float64
	solveTime time.Duration
}

func (m *DenseModel) AddVar(name string, lo, hi float64) Var {
	m.vars = append(m.vars, variable{name: name, lo: lo, hi: hi})
	m.stale = true
	return Var(len(m.vars) - 1)
}

func (m *DenseModel) AddConstraint(name string, e Expr, sense Sense, rhs float64) int {
	m.cons = append(m.cons, constraint{
		name:  name,
		terms: append([]Term(nil), e.Terms...),
		sense: sense,
		rhs:   rhs - e.Constant,
	})
	if sense == Equal {
		m.stale = true
	}
	return len(m.cons) - 1
}

var seedPoints = []float64{1e-4, 1e-3, 1e-2, 0.1, 0.25, 0.5, 1}

// minTangent is the smallest point log is linearized at. Below it the seed
// tangent is the accepted approximation, steeper cuts ruin the tableau.
var minTangent = seedPoints[0]

func (m *DenseModel) AddExpCone(t, s Var) {
	m.cones = append(m.cones, cone{t: t, s: s})
	for _, a := range seedPoints {
		m.addTangent(t, s, a)
	}
}

// addTangent adds t - s/a <= log(a) - 1, the tangent of log at a.
func (m *DenseModel) addTangent(t, s Var, a float64) {
	var e Expr
	e.Add(t, 1).Add(s, -1/a)
	m.AddConstraint("logcut", e, LessEqual, math.Log(a)-1)
	m.cuts++
}

func (m *DenseModel) SetObjective(sense ObjectiveSense, e Expr) {
	m.stale = true
	m.objSense = sense
	m.obj = Expr{Terms: append([]Term(nil), e.Terms...), Constant: e.Constant}
}

func (m *DenseModel) Value(v Var) float64 {
	if int(v) >= len(m.values) {
		return 0
	}
	return m.values[v]
}

func (m *DenseModel) ObjectiveValue() float64  { return m.objValue }
func (m *DenseModel) SolveTime() time.Duration { return m.solveTime }
func (m *DenseModel) NumVars() int             { return len(m.vars) }
func (m *DenseModel) NumConstraints() int      { return len(m.cons) }

func (m *DenseModel) Solve(ctx context.Context) error {
	start := time.Now()
	defer func() { m.solveTime = time.Since(start) }()

	for round := 0; ; round++ {
		x, err := m.solveLP(ctx)
		if err != nil {
			return fmt.Errorf("model %s: %w", m.name, err)
		}
		m.values = x
		m.objValue = m.evaluate(m.obj, x)

		added := 0
		for _, c := range m.cones {
			a := math.Max(x[c.s], minTangent)
			if x[c.t] <= math.Log(a)+m.cfg.CutTolerance {
				continue
			}
			m.addTangent(c.t, c.s, a)
			added++
		}
		if added == 0 {
			return nil
		}
		if round+1 >= m.cfg.MaxCutRounds {
			log.Warnf("DenseModel.Solve: model=%s cone cuts not settled after %d rounds", m.name, round+1)
			return nil
		}
	}
}

func (m *DenseModel) evaluate(e Expr, x []float64) float64 {
	v := e.Constant
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// column maps a user variable onto nonnegative tableau columns:
// x = offset + Σ sign·y_col.
type column struct {
	offset float64
	cols   []int
	signs  []float64
}

func (m *DenseModel) solveLP(ctx context.Context) ([]float64, error) {
	if m.tab != nil && !m.stale {
		x, err := m.extend(ctx)
		if err == nil {
			return x, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debugf("DenseModel.solveLP: model=%s warm start failed (%v), rebuilding", m.name, err)
	}
	return m.rebuild(ctx)
}

// rebuild maps every variable onto nonnegative columns, writes all rows
// and solves from scratch.
func (m *DenseModel) rebuild(ctx context.Context) ([]float64, error) {
	m.tab = nil
	mapping := make([]column, len(m.vars))
	ncols := 0
	type bound struct {
		col int
		ub  float64
	}
	var bounds []bound
	for i, v := range m.vars {
		switch {
		case !math.IsInf(v.lo, -1):
			if v.hi < v.lo {
				return nil, fmt.Errorf("%w: variable %s has empty domain", ErrInfeasible, v.name)
			}
			mapping[i] = column{offset: v.lo, cols: []int{ncols}, signs: []float64{1}}
			if !math.IsInf(v.hi, 1) {
				bounds = append(bounds, bound{col: ncols, ub: v.hi - v.lo})
			}
			ncols++
		case !math.IsInf(v.hi, 1):
			mapping[i] = column{offset: v.hi, cols: []int{ncols}, signs: []float64{-1}}
			ncols++
		default:
			mapping[i] = column{cols: []int{ncols, ncols + 1}, signs: []float64{1, -1}}
			ncols += 2
		}
	}
	m.mapping = mapping

	rows := make([]row, 0, len(m.cons)+len(bounds))
	for _, c := range m.cons {
		r, err := m.structRow(c)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	for _, b := range bounds {
		rows = append(rows, row{coef: map[int]float64{b.col: 1}, sense: LessEqual, rhs: b.ub})
	}

	cost := make([]float64, ncols)
	sign := 1.0
	if m.objSense == Maximize {
		sign = -1
	}
	for _, t := range m.obj.Terms {
		mp := mapping[t.Var]
		for k, col := range mp.cols {
			cost[col] += sign * t.Coef * mp.signs[k]
		}
	}

	t := newTableau(ncols, rows, m.cfg)
	y, err := t.solve(ctx, cost)
	if err != nil {
		return nil, err
	}
	m.tab, m.built, m.stale = t, len(m.cons), false
	return m.userValues(y), nil
}

// extend appends the inequality rows added since the last solve to the kept
// tableau and restores primal feasibility with dual simplex pivots.
func (m *DenseModel) extend(ctx context.Context) ([]float64, error) {
	if m.built < len(m.cons) {
		rows := make([]row, 0, len(m.cons)-m.built)
		for _, c := range m.cons[m.built:] {
			r, err := m.structRow(c)
			if err != nil {
				return nil, err
			}
			if r.sense == GreaterEqual {
				for col := range r.coef {
					r.coef[col] = -r.coef[col]
				}
				r.rhs, r.sense = -r.rhs, LessEqual
			}
			rows = append(rows, r)
		}
		m.tab.addRows(rows)
		m.built = len(m.cons)
	}
	// the kept tableau is stale from here until the solve succeeds
	m.stale = true
	if err := m.tab.dualSimplex(ctx); err != nil {
		return nil, err
	}
	if err := m.tab.iterate(ctx, false); err != nil {
		return nil, err
	}
	x := m.userValues(m.tab.values())
	if r := m.residual(x); r > warmResidual {
		return nil, fmt.Errorf("residual %g after warm solve", r)
	}
	m.stale = false
	return x, nil
}

// warmResidual is the largest row violation a warm solve may leave before
// the model is rebuilt.
const warmResidual = 1e-6

// structRow rewrites a user constraint over the tableau columns.
func (m *DenseModel) structRow(c constraint) (row, error) {
	r := row{coef: make(map[int]float64), sense: c.sense, rhs: c.rhs}
	for _, t := range c.terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			return row{}, fmt.Errorf("%w: constraint %s references unknown variable %d", ErrInvalidModel, c.name, t.Var)
		}
		mp := m.mapping[t.Var]
		r.rhs -= t.Coef * mp.offset
		for k, col := range mp.cols {
			r.coef[col] += t.Coef * mp.signs[k]
		}
	}
	return r, nil
}

func (m *DenseModel) userValues(y []float64) []float64 {
	x := make([]float64, len(m.vars))
	for i, mp := range m.mapping {
		x[i] = mp.offset
		for k, col := range mp.cols {
			x[i] += mp.signs[k] * y[col]
		}
	}
	return x
}

// residual is the largest violation of any constraint or bound by x,
// relative to the row's right-hand side.
func (m *DenseModel) residual(x []float64) float64 {
	worst := 0.0
	for _, c := range m.cons {
		lhs := 0.0
		for _, t := range c.terms {
			lhs += t.Coef * x[t.Var]
		}
		var v float64
		switch c.sense {
		case LessEqual:
			v = lhs - c.rhs
		case GreaterEqual:
			v = c.rhs - lhs
		default:
			v = math.Abs(lhs - c.rhs)
		}
		worst = math.Max(worst, v/math.Max(1, math.Abs(c.rhs)))
	}
	for i, v := range m.vars {
		worst = math.Max(worst, v.lo-x[i])
		worst = math.Max(worst, x[i]-v.hi)
	}
	return worst
}
