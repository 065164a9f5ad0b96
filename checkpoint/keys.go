package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Stage names one kind of persisted artifact.
type Stage string

const (
	StageGraph        Stage = "graph"
	StageGenerators   Stage = "generators"
	StageDemandReps   Stage = "demand_reps"
	StageDemandOrbit  Stage = "demand_orbit"
	StageFlowOrbit    Stage = "flow_orbit"
	StageRepLinks     Stage = "rep_links"
	StageDependency   Stage = "dependency"
	StageIteration    Stage = "iteration"
	StageRouting      Stage = "routing"
	StageSummary      Stage = "summary"
	StageTimings      Stage = "timings"
	StageVerification Stage = "verified"
)

// Namespace scopes stage keys under a prefix such as topology/<name>.
type Namespace struct {
	store  Store
	prefix string
}

func NewNamespace(store Store, prefix string) Namespace {
	return Namespace{store: store, prefix: prefix}
}

func (ns Namespace) Store() Store   { return ns.store }
func (ns Namespace) Prefix() string { return ns.prefix }

// Key builds the store key of a stage artifact; id may be empty.
func (ns Namespace) Key(stage Stage, id string) string {
	key := ns.prefix + "/" + string(stage)
	if id != "" {
		key += "/" + id
	}
	return key
}

// PutJSON encodes v and stores it under the stage key.
func (ns Namespace) PutJSON(ctx context.Context, stage Stage, id string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ns.Key(stage, id), err)
	}
	if err := ns.store.Put(ctx, ns.Key(stage, id), blob); err != nil {
		return fmt.Errorf("put %s: %w", ns.Key(stage, id), err)
	}
	return nil
}

// GetJSON decodes the stage artifact into v. found is false when absent.
func (ns Namespace) GetJSON(ctx context.Context, stage Stage, id string, v any) (bool, error) {
	blob, err := ns.store.Get(ctx, ns.Key(stage, id))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", ns.Key(stage, id), err)
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, ns.Key(stage, id), err)
	}
	return true, nil
}

// Require is GetJSON for artifacts that an earlier stage must have written.
func (ns Namespace) Require(ctx context.Context, stage Stage, id string, v any) error {
	found, err := ns.GetJSON(ctx, stage, id, v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrMissingStage, ns.Key(stage, id))
	}
	return nil
}

// GetOrCompute returns the stored artifact when present; otherwise it runs
// compute and stores the result. A concurrent writer winning the put is not
// an error since artifacts are deterministic.
func GetOrCompute[T any](ctx context.Context, ns Namespace, stage Stage, id string, compute func(context.Context) (T, error)) (T, bool, error) {
	var v T
	found, err := ns.GetJSON(ctx, stage, id, &v)
	if err != nil {
		return v, false, err
	}
	if found {
		return v, true, nil
	}
	v, err = compute(ctx)
	if err != nil {
		return v, false, err
	}
	if err := ns.PutJSON(ctx, stage, id, v); err != nil && !errors.Is(err, ErrExists) {
		return v, false, err
	}
	return v, false, nil
}
