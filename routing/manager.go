package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/dependency"
	"robustroute/heuristic_routing/adapter"
	hrc "robustroute/heuristic_routing/common"
	"robustroute/optimizer"
	"robustroute/solver"
	"robustroute/topology"
	"robustroute/verification"
)

var ErrUnknownMode = hrc.ErrUnknownMode

const (
	// ModeRobust runs the symmetry-reduced robust optimizer. Every other
	// mode names a heuristic registered in heuristic_routing.
	ModeRobust = "robust"
	ModeECMP   = "ecmp"
	ModeSU2    = "su2"
)

func init() {
	err := hrc.RegisterGlobal(hrc.Mode{
		Name:        ModeRobust,
		Description: "cutting-plane robust routing on the symmetry-reduced topology",
		Reduced:     true,
	})
	if err != nil {
		log.Warnf("Failed to register %s mode: %v", ModeRobust, err)
	}
}

type HeuristicConfig struct {
	K          int `toml:"k"`          // Shortest-Union K, overrides the mode's own
	Candidates int `toml:"candidates"` // Yen paths examined per demand; 0 = 1 + K*maxDegree
}

// Options selects what one Run computes.
type Options struct {
	Mode      string
	Optimizer optimizer.Config
	Heuristic HeuristicConfig
	Verify    bool
}

// StageTiming is the wall time of one pipeline stage and the host memory
// right after it.
type StageTiming struct {
	Stage           string        `json:"stage"`
	Elapsed         time.Duration `json:"elapsed"`
	AvailableMemory uint64        `json:"available_memory"`
	UsedPercent     float64       `json:"used_percent"`
}

type Timings struct {
	RunID       string        `json:"run_id"`
	LogicalCPUs int           `json:"logical_cpus"`
	Workers     int           `json:"workers"`
	Stages      []StageTiming `json:"stages"`
	Total       time.Duration `json:"total"`
}

// Report is everything one Run produced.
type Report struct {
	RunID    string
	Topology string
	Mode     string
	Routing  *topology.Routing
	Summary  *optimizer.Summary // robust mode only
	Verified *verification.Result
	Timings  Timings
}

// PipelineManager runs topologies through the routing pipeline and keeps
// the latest report per topology and mode.
type PipelineManager struct {
	store  checkpoint.Store
	engine solver.Engine
	oracle automorphism.Oracle
	pool   *common.Pool

	mu     sync.RWMutex
	latest map[string]*Report // key: topology/mode
}

func NewPipelineManager(store checkpoint.Store, engine solver.Engine, oracle automorphism.Oracle, pool *common.Pool) *PipelineManager {
	return &PipelineManager{
		store:  store,
		engine: engine,
		oracle: oracle,
		pool:   pool,
		latest: make(map[string]*Report),
	}
}

// Modes lists every accepted mode name.
func Modes() []string {
	return hrc.NamesGlobal()
}

// Latest returns the last report produced for topology and mode.
func (pm *PipelineManager) Latest(topologyName, mode string) (*Report, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	r, ok := pm.latest[topologyName+"/"+mode]
	return r, ok
}

// Run executes the pipeline for g. An unknown mode fails before anything is
// written to the store.
func (pm *PipelineManager) Run(ctx context.Context, g *topology.Graph, opts Options) (*Report, error) {
	mode, err := hrc.LookupGlobal(opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w, available: %v", err, Modes())
	}
	var label string
	objective, known := optimizer.ParseObjective(opts.Optimizer.Objective)
	if mode.Reduced {
		label = string(objective)
	} else {
		label = mode.Label(opts.Heuristic.K, opts.Heuristic.Candidates)
	}

	rc := common.NewRunContext(g.Name(), label)
	logger := rc.Logger()
	if mode.Reduced {
		if !known {
			logger.Warnf("PipelineManager.Run: unrecognized objective %q, using %s", opts.Optimizer.Objective, objective)
		}
		opts.Optimizer.Objective = string(objective)
	} else if !mode.Tunable() && (opts.Heuristic.K > 0 || opts.Heuristic.Candidates > 0) {
		logger.Warnf("PipelineManager.Run: mode %s takes no K or candidates, ignoring them", mode.Name)
	}
	topoNS := checkpoint.NewNamespace(pm.store, rc.TopologyScope())
	outNS := checkpoint.NewNamespace(pm.store, rc.OutputScope())

	report := &Report{RunID: rc.RunID(), Topology: g.Name(), Mode: opts.Mode}
	tr := newTimer(rc.RunID(), pm.pool.Size())
	begin := time.Now()

	if err := pm.persistGraph(ctx, topoNS, g); err != nil {
		return nil, err
	}
	tr.mark("graph")

	var red *automorphism.Reduction
	if mode.Reduced {
		r, err := automorphism.NewReducer(rc, pm.oracle, pm.pool, topoNS).Reduce(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("reduce %s: %w", g.Name(), err)
		}
		red = r
		tr.mark("automorphism")

		sel, err := dependency.NewBuilder(rc, pm.pool, topoNS).Build(ctx, g, red)
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", g.Name(), err)
		}
		tr.mark("dependency")

		res, err := optimizer.New(rc, opts.Optimizer, g, red, sel, pm.engine, pm.pool, outNS).Optimize(ctx)
		if err != nil {
			return nil, fmt.Errorf("optimize %s: %w", g.Name(), err)
		}
		report.Routing = res.Routing
		report.Summary = &res.Summary
		tr.mark("optimizer")
	} else {
		params := mode.Params(opts.Heuristic.K, opts.Heuristic.Candidates)
		rt, err := pm.heuristic(ctx, rc, outNS, g, mode.Calculator, params)
		if err != nil {
			return nil, err
		}
		report.Routing = rt
		tr.mark("heuristic")
	}

	if opts.Verify {
		vr, err := verification.NewVerifier(rc, pm.engine, pm.pool, outNS).Verify(ctx, g, report.Routing, red)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", report.Routing.Origin, err)
		}
		report.Verified = vr
		tr.mark("verification")
	}

	report.Timings = tr.finish(time.Since(begin))
	if err := outNS.PutJSON(ctx, checkpoint.StageTimings, rc.RunID(), report.Timings); err != nil {
		logger.Warnf("PipelineManager.Run: failed to store timings: %v", err)
	}

	pm.mu.Lock()
	pm.latest[g.Name()+"/"+opts.Mode] = report
	pm.mu.Unlock()

	logger.Infof("PipelineManager.Run: mode=%s done in %v", opts.Mode, report.Timings.Total)
	return report, nil
}

// VerifyIteration verifies the routing held by iteration k of an earlier
// robust run of g under objective. It needs the run's checkpoints and
// stores nothing.
func (pm *PipelineManager) VerifyIteration(ctx context.Context, g *topology.Graph, objective string, k int) (*verification.Result, error) {
	obj, known := optimizer.ParseObjective(objective)
	rc := common.NewRunContext(g.Name(), string(obj))
	if !known {
		rc.Logger().Warnf("PipelineManager.VerifyIteration: unrecognized objective %q, using %s", objective, obj)
	}
	topoNS := checkpoint.NewNamespace(pm.store, rc.TopologyScope())
	outNS := checkpoint.NewNamespace(pm.store, rc.OutputScope())

	red, err := automorphism.Load(ctx, topoNS, g.NumNodes())
	if err != nil {
		return nil, fmt.Errorf("load reduction of %s: %w", g.Name(), err)
	}
	rec, err := optimizer.LoadIteration(ctx, outNS, k)
	if err != nil {
		return nil, fmt.Errorf("load iteration %d of %s: %w", k, g.Name(), err)
	}
	rt := optimizer.IterationRouting(g, red, obj, rec, 0)
	return verification.NewVerifier(rc, pm.engine, pm.pool, outNS).VerifySnapshot(ctx, g, rt, red)
}

// persistGraph stores the graph description once per topology name and
// refuses to reuse checkpoints written for a different graph.
func (pm *PipelineManager) persistGraph(ctx context.Context, ns checkpoint.Namespace, g *topology.Graph) error {
	spec := g.Spec()
	var stored topology.Spec
	found, err := ns.GetJSON(ctx, checkpoint.StageGraph, "", &stored)
	if err != nil {
		return err
	}
	if !found {
		err := ns.PutJSON(ctx, checkpoint.StageGraph, "", spec)
		if err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return err
		}
		return nil
	}
	want, _ := json.Marshal(spec)
	got, _ := json.Marshal(stored)
	if string(want) != string(got) {
		return fmt.Errorf("%w: checkpoints under %s belong to a different graph", topology.ErrInvalidGraph, ns.Prefix())
	}
	return nil
}

// heuristic returns the stored routing of the run's label, computing it
// when absent.
func (pm *PipelineManager) heuristic(ctx context.Context, rc common.RunContext, ns checkpoint.Namespace, g *topology.Graph,
	calc hrc.PathCalculator, params map[string]interface{}) (*topology.Routing, error) {
	label := rc.Objective()
	rt, found, err := checkpoint.GetOrCompute(ctx, ns, checkpoint.StageRouting, "", func(ctx context.Context) (*topology.Routing, error) {
		return adapter.Route(ctx, pm.pool, g, label, calc, params)
	})
	if err != nil {
		return nil, fmt.Errorf("%s routing for %s: %w", label, g.Name(), err)
	}
	if found {
		rc.Logger().Infof("PipelineManager.heuristic: existing %s routing", label)
	}
	return rt, nil
}

type timer struct {
	timings Timings
	last    time.Time
}

func newTimer(runID string, workers int) *timer {
	t := &timer{timings: Timings{RunID: runID, Workers: workers}, last: time.Now()}
	if info, err := common.CollectHostInfo(); err == nil {
		t.timings.LogicalCPUs = info.LogicalCPUs
	}
	return t
}

func (t *timer) mark(stage string) {
	now := time.Now()
	st := StageTiming{Stage: stage, Elapsed: now.Sub(t.last)}
	if info, err := common.CollectHostInfo(); err == nil {
		st.AvailableMemory = info.AvailableMemory
		st.UsedPercent = info.UsedPercent
	} else {
		log.Debugf("timer.mark: host info unavailable: %v", err)
	}
	t.timings.Stages = append(t.timings.Stages, st)
	t.last = now
}

func (t *timer) finish(total time.Duration) Timings {
	t.timings.Total = total
	return t.timings
}
