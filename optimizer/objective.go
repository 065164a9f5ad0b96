package optimizer

import "strings"

type Objective string

const (
	ObjectiveLinear Objective = "linear"
	ObjectiveLog    Objective = "log"
)

// ParseObjective maps a configured name onto an objective. Unknown names
// map to linear and report false; the caller warns on its run logger.
func ParseObjective(name string) (Objective, bool) {
	switch Objective(strings.ToLower(strings.TrimSpace(name))) {
	case ObjectiveLinear:
		return ObjectiveLinear, true
	case ObjectiveLog:
		return ObjectiveLog, true
	}
	return ObjectiveLinear, false
}

// State is the position of an optimizer in its run.
type State int

const (
	StateInit State = iota
	StateBuildModel
	StateLoadCheckpoint
	StateIterate
	StateConverged
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBuildModel:
		return "build_model"
	case StateLoadCheckpoint:
		return "load_checkpoint"
	case StateIterate:
		return "iterate"
	case StateConverged:
		return "converged"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
