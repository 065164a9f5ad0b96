package solver

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrInfeasible     = errors.New("problem is infeasible")
	ErrUnbounded      = errors.New("problem is unbounded")
	ErrIterationLimit = errors.New("iteration limit reached")
	ErrInvalidModel   = errors.New("invalid model")
)

// Inf is the bound of an unbounded variable side.
var Inf = math.Inf(1)

// Var is a handle to a model variable.
type Var int

type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression Σ coef·var + Constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef·v and returns e for chaining.
func (e *Expr) Add(v Var, coef float64) *Expr {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// Sum is Σ vars with unit coefficients.
func Sum(vars ...Var) Expr {
	e := Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Add(v, 1)
	}
	return e
}

type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

type ObjectiveSense int

const (
	Maximize ObjectiveSense = iota
	Minimize
)

// Model is one optimization problem. Constraints may be added between
// solves; each Solve works on the model as it stands.
type Model interface {
	AddVar(name string, lo, hi float64) Var
	AddConstraint(name string, e Expr, sense Sense, rhs float64) int
	// AddExpCone enforces (s, 1, t) in the exponential cone, i.e. t <= log(s).
	AddExpCone(t, s Var)
	SetObjective(sense ObjectiveSense, e Expr)
	Solve(ctx context.Context) error
	Value(v Var) float64
	ObjectiveValue() float64
	SolveTime() time.Duration
	NumVars() int
	NumConstraints() int
}

// Engine creates models. Implementations must allow many models per process.
type Engine interface {
	NewModel(name string) Model
}
