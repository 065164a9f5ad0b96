package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type row struct {
	coef  map[int]float64
	sense Sense
	rhs   float64
}

// degenerateRun is the number of consecutive zero-step pivots after which
// pricing switches from Dantzig's rule to Bland's rule.
const degenerateRun = 50

// tableau is a dense simplex tableau: m constraint rows plus the reduced
// cost row, columns are structural, slack, artificial, slacks of appended
// rows and right-hand side.
type tableau struct {
	cfg        Config
	m          int
	structural int
	width      int // columns excluding rhs
	artStart   int
	artEnd     int
	data       *mat.Dense
	basis      []int
}

func newTableau(structural int, rows []row, cfg Config) *tableau {
	m := len(rows)
	slacks := 0
	for _, r := range rows {
		if r.sense != Equal {
			slacks++
		}
	}

	// a row keeps its slack as initial basic variable when the slack enters
	// with +1 after making the rhs nonnegative; every other row gets an
	// artificial
	needArt := make([]bool, m)
	flips := make([]float64, m)
	arts := 0
	for i, r := range rows {
		slackCoef := 0.0
		switch r.sense {
		case LessEqual:
			slackCoef = 1
		case GreaterEqual:
			slackCoef = -1
		}
		flips[i] = 1
		if r.rhs < 0 || (r.rhs == 0 && r.sense == GreaterEqual) {
			flips[i] = -1
		}
		if flips[i]*slackCoef != 1 {
			needArt[i] = true
			arts++
		}
	}

	t := &tableau{
		cfg:        cfg,
		m:          m,
		structural: structural,
		width:      structural + slacks + arts,
		artStart:   structural + slacks,
		artEnd:     structural + slacks + arts,
		basis:      make([]int, m),
	}
	t.data = mat.NewDense(m+1, t.width+1, nil)

	slack := structural
	art := t.artStart
	for i, r := range rows {
		line := t.data.RawRowView(i)
		flip := flips[i]
		for col, c := range r.coef {
			line[col] = flip * c
		}
		line[t.width] = flip * r.rhs
		if r.sense != Equal {
			c := 1.0
			if r.sense == GreaterEqual {
				c = -1
			}
			line[slack] = flip * c
			if !needArt[i] {
				t.basis[i] = slack
			}
			slack++
		}
		if needArt[i] {
			line[art] = 1
			t.basis[i] = art
			art++
		}
	}
	return t
}

func (t *tableau) maxPivots() int {
	if t.cfg.MaxPivots > 0 {
		return t.cfg.MaxPivots
	}
	return 10000 + 50*(t.m+t.width)
}

// solve minimizes cost·y over the structural columns and returns y.
func (t *tableau) solve(ctx context.Context, cost []float64) ([]float64, error) {
	obj := t.data.RawRowView(t.m)
	tol := t.cfg.Tolerance

	if t.artStart < t.artEnd {
		// phase 1: minimize the sum of artificials
		for j := range obj {
			obj[j] = 0
		}
		for j := t.artStart; j < t.artEnd; j++ {
			obj[j] = 1
		}
		t.price()
		if err := t.iterate(ctx, true); err != nil {
			return nil, err
		}
		infeas := -obj[t.width]
		if infeas > math.Max(1e-7, tol*t.rhsScale()) {
			return nil, ErrInfeasible
		}
		t.expelArtificials()
	}

	// phase 2: artificial columns never re-enter
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, cost)
	t.price()
	if err := t.iterate(ctx, false); err != nil {
		return nil, err
	}
	return t.values(), nil
}

// values reads the structural columns of the current basic solution.
func (t *tableau) values() []float64 {
	y := make([]float64, t.structural)
	for i, b := range t.basis {
		if b < t.structural {
			y[b] = math.Max(t.data.At(i, t.width), 0)
		}
	}
	return y
}

// eligible reports whether column j may enter the basis. Artificial
// columns only enter in phase 1.
func (t *tableau) eligible(j int, phase1 bool) bool {
	return phase1 || j < t.artStart || j >= t.artEnd
}

// price turns the cost row into reduced costs for the current basis.
func (t *tableau) price() {
	obj := t.data.RawRowView(t.m)
	for i, b := range t.basis {
		if c := obj[b]; c != 0 {
			floats.AddScaled(obj, -c, t.data.RawRowView(i))
		}
	}
}

// iterate pivots until no eligible column has a negative reduced cost.
func (t *tableau) iterate(ctx context.Context, phase1 bool) error {
	obj := t.data.RawRowView(t.m)
	tol := t.cfg.Tolerance
	degenerate := 0
	for pivots := 0; ; pivots++ {
		if pivots >= t.maxPivots() {
			return ErrIterationLimit
		}
		if pivots%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		bland := degenerate >= degenerateRun
		enter := -1
		best := -tol
		for j := 0; j < t.width; j++ {
			if obj[j] < best && t.eligible(j, phase1) {
				enter = j
				if bland {
					break
				}
				best = obj[j]
			}
		}
		if enter < 0 {
			return nil
		}

		leave := -1
		var ratio, pivot float64
		for i := 0; i < t.m; i++ {
			a := t.data.At(i, enter)
			if a <= tol {
				continue
			}
			r := t.data.At(i, t.width) / a
			if r < 0 {
				r = 0
			}
			switch {
			case leave < 0 || r < ratio-1e-12:
				leave, ratio, pivot = i, r, a
			case r <= ratio+1e-12:
				if bland {
					if t.basis[i] < t.basis[leave] {
						leave, ratio, pivot = i, r, a
					}
				} else if a > pivot {
					leave, ratio, pivot = i, r, a
				}
			}
		}
		if leave < 0 {
			return ErrUnbounded
		}

		if ratio <= 1e-12 {
			degenerate++
		} else {
			degenerate = 0
		}
		t.pivot(leave, enter)
	}
}

func (t *tableau) pivot(r, c int) {
	pr := t.data.RawRowView(r)
	floats.Scale(1/pr[c], pr)
	pr[c] = 1
	for i := 0; i <= t.m; i++ {
		if i == r {
			continue
		}
		line := t.data.RawRowView(i)
		if f := line[c]; f != 0 {
			floats.AddScaled(line, -f, pr)
			line[c] = 0
		}
		if i < t.m && line[t.width] < 0 && line[t.width] > -1e-11 {
			line[t.width] = 0
		}
	}
	t.basis[r] = c
}

// expelArtificials pivots zero-valued artificials out of the basis. Rows
// whose only support is artificial are redundant and keep their artificial
// at zero.
func (t *tableau) expelArtificials() {
	for i, b := range t.basis {
		if b < t.artStart {
			continue
		}
		line := t.data.RawRowView(i)
		best, col := 1e-9, -1
		for j := 0; j < t.artStart; j++ {
			if a := math.Abs(line[j]); a > best {
				best, col = a, j
			}
		}
		if col >= 0 {
			t.pivot(i, col)
		}
	}
}

func (t *tableau) rhsScale() float64 {
	s := 1.0
	for i := 0; i < t.m; i++ {
		s = math.Max(s, math.Abs(t.data.At(i, t.width)))
	}
	return s
}

// addRows appends rows of the form coef·y <= rhs, each with a new basic
// slack, to an optimal tableau. The reduced costs stay dual feasible while
// the new right-hand sides may be negative.
func (t *tableau) addRows(rows []row) {
	k := len(rows)
	if k == 0 {
		return
	}
	oldWidth := t.width
	data := mat.NewDense(t.m+k+1, t.width+k+1, nil)
	move := func(from, to int) {
		src, dst := t.data.RawRowView(from), data.RawRowView(to)
		copy(dst[:oldWidth], src[:oldWidth])
		dst[oldWidth+k] = src[oldWidth]
	}
	for i := 0; i < t.m; i++ {
		move(i, i)
	}
	move(t.m, t.m+k)

	for n, r := range rows {
		line := data.RawRowView(t.m + n)
		for col, c := range r.coef {
			line[col] = c
		}
		line[oldWidth+n] = 1
		line[oldWidth+k] = r.rhs
		for i, b := range t.basis {
			if f := line[b]; f != 0 {
				floats.AddScaled(line, -f, data.RawRowView(i))
				line[b] = 0
			}
		}
	}
	for n := range rows {
		t.basis = append(t.basis, oldWidth+n)
	}
	t.data = data
	t.m += k
	t.width += k
}

// dualSimplex pivots a dual feasible tableau until every right-hand side is
// nonnegative.
func (t *tableau) dualSimplex(ctx context.Context) error {
	obj := t.data.RawRowView(t.m)
	tol := t.cfg.Tolerance
	for pivots := 0; ; pivots++ {
		if pivots >= t.maxPivots() {
			return ErrIterationLimit
		}
		if pivots%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		leave, worst := -1, -tol
		for i := 0; i < t.m; i++ {
			if v := t.data.At(i, t.width); v < worst {
				leave, worst = i, v
			}
		}
		if leave < 0 {
			return nil
		}

		line := t.data.RawRowView(leave)
		enter := -1
		var ratio float64
		for j := 0; j < t.width; j++ {
			a := line[j]
			if a >= -tol || !t.eligible(j, false) {
				continue
			}
			r := math.Max(obj[j], 0) / -a
			if enter < 0 || r < ratio-1e-12 || (r <= ratio+1e-12 && a < line[enter]) {
				enter, ratio = j, r
			}
		}
		if enter < 0 {
			return ErrInfeasible
		}
		t.pivot(leave, enter)
	}
}
