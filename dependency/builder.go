package dependency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"robustroute/automorphism"
	"robustroute/checkpoint"
	"robustroute/common"
	"robustroute/topology"
)

// RepLinks maps every directed link to its representative link.
type RepLinks struct {
	Reps  []topology.Link                 `json:"reps"`
	RepOf map[topology.Link]topology.Link `json:"rep_of"`
}

// Selection is the set of representative links with their indexes.
type Selection struct {
	RepLinks
	Indexes map[topology.Link]*Index
}

// Index returns the dependency index of representative link l.
func (s *Selection) Index(l topology.Link) *Index {
	return s.Indexes[l]
}

type Builder struct {
	rc   common.RunContext
	pool *common.Pool
	ns   checkpoint.Namespace
}

func NewBuilder(rc common.RunContext, pool *common.Pool, ns checkpoint.Namespace) *Builder {
	return &Builder{rc: rc, pool: pool, ns: ns}
}

// Build selects representative links and returns their dependency indexes,
// reading the stage from checkpoints when it was completed before.
func (b *Builder) Build(ctx context.Context, g *topology.Graph, red *automorphism.Reduction) (*Selection, error) {
	start := time.Now()
	var reps RepLinks
	found, err := b.ns.GetJSON(ctx, checkpoint.StageRepLinks, "", &reps)
	if err != nil {
		return nil, err
	}
	if found {
		return Load(ctx, b.ns, reps)
	}

	sel, err := b.compute(ctx, g, red)
	if err != nil {
		return nil, err
	}
	for _, l := range sel.Reps {
		if err := b.ns.PutJSON(ctx, checkpoint.StageDependency, l.String(), sel.Indexes[l]); err != nil && !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
	}
	if err := b.ns.PutJSON(ctx, checkpoint.StageRepLinks, "", sel.RepLinks); err != nil && !errors.Is(err, checkpoint.ErrExists) {
		return nil, err
	}
	b.rc.Logger().Infof("Builder.Build: links=%d representative links=%d elapsed=%v", len(g.Links()), len(sel.Reps), time.Since(start))
	return sel, nil
}

func (b *Builder) compute(ctx context.Context, g *topology.Graph, red *automorphism.Reduction) (*Selection, error) {
	links := g.Links()
	indexes := make([]*Index, len(links))
	signatures := make([]string, len(links))
	err := b.pool.Map(ctx, len(links), func(ctx context.Context, i int) error {
		capacity, _ := g.Capacity(links[i])
		indexes[i] = Build(red, links[i])
		signatures[i] = indexes[i].Signature(capacity)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dependency indexes: %w", err)
	}
	return group(links, indexes, signatures), nil
}

// group keeps, per signature, the smallest link. links must be sorted.
func group(links []topology.Link, indexes []*Index, signatures []string) *Selection {
	sel := &Selection{
		RepLinks: RepLinks{RepOf: make(map[topology.Link]topology.Link, len(links))},
		Indexes:  make(map[topology.Link]*Index),
	}
	firstBySig := make(map[string]topology.Link)
	for i, l := range links {
		rep, ok := firstBySig[signatures[i]]
		if !ok {
			rep = l
			firstBySig[signatures[i]] = l
			sel.Reps = append(sel.Reps, l)
			sel.Indexes[l] = indexes[i]
		}
		sel.RepOf[l] = rep
	}
	return sel
}

// Load reads the indexes of an already selected set of representative links.
func Load(ctx context.Context, ns checkpoint.Namespace, reps RepLinks) (*Selection, error) {
	sel := &Selection{RepLinks: reps, Indexes: make(map[topology.Link]*Index, len(reps.Reps))}
	for _, l := range reps.Reps {
		var ix Index
		if err := ns.Require(ctx, checkpoint.StageDependency, l.String(), &ix); err != nil {
			return nil, err
		}
		sel.Indexes[l] = &ix
	}
	return sel, nil
}
