package common

import (
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
)

// RunContext identifies one pipeline run. It is passed by value to every
// component constructor and never mutated.
type RunContext struct {
	runID     string
	topology  string
	objective string
}

// NewRunContext stamps a fresh run id. objective is the optimizer objective
// or the heuristic mode name.
func NewRunContext(topology, objective string) RunContext {
	return RunContext{
		runID:     ulid.Make().String(),
		topology:  topology,
		objective: objective,
	}
}

func (rc RunContext) RunID() string     { return rc.runID }
func (rc RunContext) Topology() string  { return rc.topology }
func (rc RunContext) Objective() string { return rc.objective }

// TopologyScope names checkpoints derived from the graph alone.
func (rc RunContext) TopologyScope() string {
	return "topology/" + rc.topology
}

// OutputScope names checkpoints of one objective or mode on the topology.
func (rc RunContext) OutputScope() string {
	return "output/" + rc.topology + "-" + rc.objective
}

// Logger returns a log entry carrying the run fields.
func (rc RunContext) Logger() *log.Entry {
	return log.WithFields(log.Fields{
		"run_id":    rc.runID,
		"topology":  rc.topology,
		"objective": rc.objective,
	})
}
