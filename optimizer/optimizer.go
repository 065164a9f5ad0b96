package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/dependency"
	"robustroute/solver"
	"robustroute/topology"
)

var ErrNoDemands = errors.New("topology has no demands")

type Config struct {
	Objective     string  `toml:"objective"`
	Tolerance     float64 `toml:"tolerance"`
	MaxIterations int     `toml:"max_iterations"`
	ZeroFlow      float64 `toml:"zero_flow"`
}

func DefaultConfig() Config {
	return Config{
		Objective: string(ObjectiveLinear),
		Tolerance: 1e-6,
		ZeroFlow:  1e-9,
	}
}

// Cut is one capacity constraint: the load of Link under Traffic must stay
// within the link capacity.
type Cut struct {
	Link    topology.Link          `json:"link"`
	Traffic topology.TrafficMatrix `json:"traffic"`
}

// IterationRecord is the checkpoint of one cutting-plane iteration.
// MaxViolation is absent for the first iteration, which uses the
// near-worst-case matrix instead of the adversary.
type IterationRecord struct {
	Iteration     int                         `json:"iteration"`
	Throughput    float64                     `json:"throughput"`
	Objective     float64                     `json:"objective"`
	MaxViolation  *float64                    `json:"max_violation,omitempty"`
	Cuts          []Cut                       `json:"cuts"`
	Flows         Flows                       `json:"flows"`
	Demands       map[topology.Demand]float64 `json:"demands"`
	SolveTime     time.Duration               `json:"solve_time"`
	AdversaryTime time.Duration               `json:"adversary_time"`
}

type Result struct {
	Routing *topology.Routing
	Summary Summary
	History []IterationRecord
	Cached  bool
}

// Optimizer computes the robust routing of a reduced topology by cutting
// planes: solve the master model, find each representative link's worst
// admissible traffic matrix, add violated capacity cuts, repeat.
type Optimizer struct {
	rc        common.RunContext
	cfg       Config
	objective Objective
	graph     *topology.Graph
	red       *automorphism.Reduction
	sel       *dependency.Selection
	engine    solver.Engine
	pool      *common.Pool
	ns        checkpoint.Namespace
	logger    *log.Entry

	state  State
	master *master
}

func New(rc common.RunContext, cfg Config, g *topology.Graph, red *automorphism.Reduction, sel *dependency.Selection,
	engine solver.Engine, pool *common.Pool, ns checkpoint.Namespace) *Optimizer {
	def := DefaultConfig()
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.ZeroFlow <= 0 {
		cfg.ZeroFlow = def.ZeroFlow
	}
	objective, ok := ParseObjective(cfg.Objective)
	if !ok {
		rc.Logger().Warnf("Optimizer: unrecognized objective %q, using %s", cfg.Objective, objective)
	}
	cfg.Objective = string(objective)
	return &Optimizer{
		rc:        rc,
		cfg:       cfg,
		objective: objective,
		graph:     g,
		red:       red,
		sel:       sel,
		engine:    engine,
		pool:      pool,
		ns:        ns,
		logger:    rc.Logger(),
	}
}

func (o *Optimizer) State() State { return o.state }

func (o *Optimizer) transition(s State) {
	o.logger.Debugf("Optimizer: %s -> %s", o.state, s)
	o.state = s
}

func (o *Optimizer) Optimize(ctx context.Context) (*Result, error) {
	o.transition(StateInit)
	if len(o.red.Orbits) == 0 {
		return nil, ErrNoDemands
	}

	var cached topology.Routing
	found, err := o.ns.GetJSON(ctx, checkpoint.StageRouting, "", &cached)
	if err != nil {
		return nil, err
	}
	if found {
		var sum Summary
		if err := o.ns.Require(ctx, checkpoint.StageSummary, "", &sum); err != nil {
			return nil, err
		}
		o.logger.Infof("Optimizer.Optimize: existing routing found, throughput=%.6f", sum.Throughput)
		o.transition(StateConverged)
		return &Result{Routing: &cached, Summary: sum, Cached: true}, nil
	}

	o.transition(StateBuildModel)
	start := time.Now()
	o.master = buildMaster(o.engine, "master_"+o.rc.Topology(), o.graph, o.red, o.objective)
	o.logger.Infof("Optimizer.Optimize: master model vars=%d constraints=%d elapsed=%v",
		o.master.model.NumVars(), o.master.model.NumConstraints(), time.Since(start))

	o.transition(StateLoadCheckpoint)
	history, err := o.replay(ctx)
	if err != nil {
		return nil, err
	}

	o.transition(StateIterate)
	maxViolation := math.Inf(1)
	k := len(history)
	for {
		if o.cfg.MaxIterations > 0 && k >= o.cfg.MaxIterations {
			o.logger.Warnf("Optimizer.Optimize: stopped at iteration bound %d, max violation=%g", k, maxViolation)
			o.transition(StateStopped)
			break
		}

		rec, converged, err := o.iterate(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", k, err)
		}
		if rec.MaxViolation != nil {
			maxViolation = *rec.MaxViolation
		}
		if converged {
			o.transition(StateConverged)
			break
		}
		if err := o.ns.PutJSON(ctx, checkpoint.StageIteration, strconv.Itoa(k), rec); err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
		history = append(history, *rec)
		k++
	}

	flows, through := o.master.snapshot()
	sum := summarize(o.objective, o.red, through)
	sum.Iterations = k
	sum.Converged = o.state == StateConverged
	if !math.IsInf(maxViolation, 1) {
		sum.MaxViolation = maxViolation
	}
	rt := o.routing(flows, through)

	if sum.Converged {
		if err := o.ns.PutJSON(ctx, checkpoint.StageRouting, "", rt); err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
		if err := o.ns.PutJSON(ctx, checkpoint.StageSummary, "", sum); err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
	}
	o.logger.Infof("Optimizer.Optimize: done iterations=%d converged=%v throughput=%.6f total=%.4f fairness=%.4f",
		k, sum.Converged, sum.Throughput, sum.TotalThroughput, sum.Fairness)
	return &Result{Routing: rt, Summary: sum, History: history}, nil
}

// replay re-adds the cuts of every checkpointed iteration, in order, and
// solves the rebuilt model once.
func (o *Optimizer) replay(ctx context.Context) ([]IterationRecord, error) {
	var history []IterationRecord
	for k := 0; ; k++ {
		var rec IterationRecord
		found, err := o.ns.GetJSON(ctx, checkpoint.StageIteration, strconv.Itoa(k), &rec)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		for _, c := range rec.Cuts {
			ix := o.sel.Index(c.Link)
			if ix == nil {
				return nil, fmt.Errorf("%w: iteration %d cuts unknown link %s", checkpoint.ErrCorrupt, k, c.Link)
			}
			capacity, _ := o.graph.Capacity(c.Link)
			o.master.addCut(ix, capacity, c.Traffic)
		}
		history = append(history, rec)
	}
	if len(history) == 0 {
		return nil, nil
	}
	if err := o.master.solve(ctx); err != nil {
		return nil, fmt.Errorf("solve replayed model: %w", err)
	}
	o.logger.Infof("Optimizer.replay: resumed after %d iterations, cuts=%d", len(history), o.master.cuts)
	return history, nil
}

// iterate runs iteration k. It reports converged without touching the model
// when every representative link is within tolerance.
func (o *Optimizer) iterate(ctx context.Context, k int) (*IterationRecord, bool, error) {
	rec := &IterationRecord{Iteration: k}

	advStart := time.Now()
	var candidates []Cut
	if k == 0 {
		tm, err := NearWorstCase(ctx, o.engine, o.graph, o.red)
		if err != nil {
			return nil, false, err
		}
		for _, l := range o.sel.Reps {
			candidates = append(candidates, Cut{Link: l, Traffic: tm})
		}
	} else {
		cuts, maxViolation, err := o.adversary(ctx)
		if err != nil {
			return nil, false, err
		}
		rec.MaxViolation = &maxViolation
		if maxViolation <= o.cfg.Tolerance {
			o.logger.Infof("Optimizer.iterate: k=%d converged, max violation=%g", k, maxViolation)
			return rec, true, nil
		}
		candidates = cuts
	}
	rec.AdversaryTime = time.Since(advStart)

	for _, c := range candidates {
		capacity, _ := o.graph.Capacity(c.Link)
		if o.master.addCut(o.sel.Index(c.Link), capacity, c.Traffic) {
			rec.Cuts = append(rec.Cuts, c)
		}
	}

	if err := o.master.solve(ctx); err != nil {
		return nil, false, err
	}
	rec.SolveTime = o.master.model.SolveTime()
	rec.Objective = o.master.model.ObjectiveValue()
	rec.Flows, rec.Demands = o.master.snapshot()
	rec.Throughput = summarize(o.objective, o.red, rec.Demands).Throughput

	violation := "n/a"
	if rec.MaxViolation != nil {
		violation = strconv.FormatFloat(*rec.MaxViolation, 'g', 6, 64)
	}
	o.logger.Infof("Optimizer.iterate: k=%d throughput=%.6f objective=%.6f max_violation=%s cuts=%d solve=%v adversary=%v",
		k, rec.Throughput, rec.Objective, violation, len(rec.Cuts), rec.SolveTime, rec.AdversaryTime)
	return rec, false, nil
}

// adversary solves the worst-case subproblem of every representative link
// in parallel and returns the cuts of links with positive violation.
func (o *Optimizer) adversary(ctx context.Context) ([]Cut, float64, error) {
	flows, _ := o.master.snapshot()
	links := o.sel.Reps
	tms := make([]topology.TrafficMatrix, len(links))
	violations := make([]float64, len(links))
	err := o.pool.Map(ctx, len(links), func(ctx context.Context, i int) error {
		tm, load, err := WorstCase(ctx, o.engine, o.graph, o.sel.Index(links[i]), flows, o.cfg.ZeroFlow)
		if err != nil {
			return err
		}
		capacity, _ := o.graph.Capacity(links[i])
		tms[i] = tm
		violations[i] = load/capacity - 1
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	maxViolation := math.Inf(-1)
	var cuts []Cut
	for i, l := range links {
		maxViolation = math.Max(maxViolation, violations[i])
		if violations[i] > 0 && len(tms[i]) > 0 {
			cuts = append(cuts, Cut{Link: l, Traffic: tms[i]})
		}
	}
	return cuts, maxViolation, nil
}

func (o *Optimizer) routing(flows Flows, through map[topology.Demand]float64) *topology.Routing {
	return expandRouting("optimizer:"+string(o.objective), o.graph, o.red, flows, through, o.cfg.ZeroFlow)
}

// LoadIteration reads the checkpoint of iteration k.
func LoadIteration(ctx context.Context, ns checkpoint.Namespace, k int) (*IterationRecord, error) {
	var rec IterationRecord
	if err := ns.Require(ctx, checkpoint.StageIteration, strconv.Itoa(k), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// IterationRouting is the routing held by an iteration checkpoint. Its
// origin carries the iteration number, so it never collides with the final
// routing.
func IterationRouting(g *topology.Graph, red *automorphism.Reduction, objective Objective, rec *IterationRecord, zeroFlow float64) *topology.Routing {
	if zeroFlow <= 0 {
		zeroFlow = DefaultConfig().ZeroFlow
	}
	origin := fmt.Sprintf("optimizer:%s@%d", objective, rec.Iteration)
	return expandRouting(origin, g, red, rec.Flows, rec.Demands, zeroFlow)
}

// expandRouting expands reduced flows onto every directed link, as
// fractions of each representative demand's unit traffic.
func expandRouting(origin string, g *topology.Graph, red *automorphism.Reduction, flows Flows,
	through map[topology.Demand]float64, zeroFlow float64) *topology.Routing {
	rt := topology.NewRouting(origin, true)
	rt.Throughput = make(map[topology.Demand]float64, len(through))
	for _, r := range red.Reps() {
		s := through[r]
		rt.Throughput[r] = s
		if s <= zeroFlow {
			continue
		}
		fo := red.Flows[r]
		for _, l := range g.Links() {
			if fv := flows.Value(r, fo.RepOf[l]); fv > zeroFlow {
				rt.Add(l, r, fv/s)
			}
		}
	}
	return rt
}
