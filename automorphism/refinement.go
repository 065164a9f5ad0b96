package automorphism

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RefinementOracle searches automorphisms by color refinement and
// individualization. It walks the stabilizer chain along base points
// 0, 1, 2, ... and keeps one automorphism for every orbit point not already
// reached by the generators found so far, so the result generates the whole
// group.
type RefinementOracle struct{}

func NewRefinementOracle() *RefinementOracle {
	return &RefinementOracle{}
}

type arc struct {
	to    int
	color int
}

type searcher struct {
	n      int
	colors []int
	nbase  int
	adj    [][]arc
	edges  map[[2]int]int
	nodes  int // search tree nodes visited
}

func newSearcher(g ColoredGraph) (*searcher, error) {
	n := len(g.VertexColors)
	s := &searcher{
		n:      n,
		colors: g.VertexColors,
		adj:    make([][]arc, n),
		edges:  make(map[[2]int]int, 2*len(g.Edges)),
	}
	for _, c := range g.VertexColors {
		if c+1 > s.nbase {
			s.nbase = c + 1
		}
	}
	for _, e := range g.Edges {
		if e.U < 0 || e.U >= n || e.V < 0 || e.V >= n {
			return nil, fmt.Errorf("edge %d-%d outside %d vertices", e.U, e.V, n)
		}
		s.adj[e.U] = append(s.adj[e.U], arc{to: e.V, color: e.Color})
		s.adj[e.V] = append(s.adj[e.V], arc{to: e.U, color: e.Color})
		s.edges[[2]int{e.U, e.V}] = e.Color
		s.edges[[2]int{e.V, e.U}] = e.Color
	}
	return s, nil
}

func (o *RefinementOracle) Generators(ctx context.Context, g ColoredGraph) ([]Perm, error) {
	s, err := newSearcher(g)
	if err != nil {
		return nil, err
	}

	var gens []Perm
	var prefix []int
	for b := 0; b < s.n; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cl, _, _ := s.refine(prefix, prefix)
		if discrete(cl) {
			break
		}
		cell := cellOf(cl, cl[b])
		if len(cell) == 1 {
			continue
		}

		level := fixing(gens, prefix)
		reached := orbitOf(b, level, s.n)
		for _, w := range cell {
			if reached[w] {
				continue
			}
			p, ok, err := s.extend(ctx, append(clone(prefix), b), append(clone(prefix), w))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			gens = append(gens, p)
			level = append(level, p)
			reached = orbitOf(b, level, s.n)
		}
		prefix = append(prefix, b)
	}

	log.Debugf("RefinementOracle.Generators: vertices=%d generators=%d search_nodes=%d", s.n, len(gens), s.nodes)
	return gens, nil
}

// extend looks for an automorphism mapping left[i] to right[i] for every i.
func (s *searcher) extend(ctx context.Context, left, right []int) (Perm, bool, error) {
	if err := ctx.Err(); err != nil {
		return Perm{}, false, err
	}
	s.nodes++

	cl, cr, ok := s.refine(left, right)
	if !ok {
		return Perm{}, false, nil
	}
	if discrete(cl) {
		pos := make([]int, len(cr))
		for u, c := range cr {
			pos[c] = u
		}
		images := make([]int, s.n)
		for v, c := range cl {
			images[v] = pos[c]
		}
		if !s.preserves(images) {
			return Perm{}, false, nil
		}
		p, err := NewPerm(images)
		if err != nil {
			return Perm{}, false, err
		}
		return p, true, nil
	}

	target := smallestNonSingleton(cl)
	v := cellOf(cl, target)[0]
	for _, u := range cellOf(cr, target) {
		p, ok, err := s.extend(ctx, append(clone(left), v), append(clone(right), u))
		if err != nil || ok {
			return p, ok, err
		}
	}
	return Perm{}, false, nil
}

// refine individualizes the two sequences and runs color refinement on both
// colorings in lockstep, naming new colors from the sorted union of
// signatures so equal ids mean equal structure. ok is false once the two
// colorings have different histograms.
func (s *searcher) refine(left, right []int) ([]int, []int, bool) {
	for i := range left {
		if s.colors[left[i]] != s.colors[right[i]] {
			return nil, nil, false
		}
	}
	cl := s.individualize(left)
	cr := s.individualize(right)
	classes := countClasses(cl)

	for {
		sl := s.signatures(cl)
		sr := s.signatures(cr)
		names := make(map[string]int, len(sl))
		all := make([]string, 0, 2*len(sl))
		all = append(all, sl...)
		all = append(all, sr...)
		sort.Strings(all)
		for _, sig := range all {
			if _, ok := names[sig]; !ok {
				names[sig] = len(names)
			}
		}

		nl := make([]int, s.n)
		nr := make([]int, s.n)
		hist := make([]int, len(names))
		for v := 0; v < s.n; v++ {
			nl[v] = names[sl[v]]
			nr[v] = names[sr[v]]
			hist[nl[v]]++
			hist[nr[v]]--
		}
		for _, h := range hist {
			if h != 0 {
				return nil, nil, false
			}
		}

		next := countClasses(nl)
		cl, cr = nl, nr
		if next == classes {
			return cl, cr, true
		}
		classes = next
	}
}

func (s *searcher) individualize(seq []int) []int {
	c := append([]int(nil), s.colors...)
	for k, v := range seq {
		c[v] = s.nbase + k
	}
	return c
}

func (s *searcher) signatures(colors []int) []string {
	sigs := make([]string, s.n)
	pairs := make([]int, 0, 16)
	var b strings.Builder
	for v := 0; v < s.n; v++ {
		pairs = pairs[:0]
		for _, a := range s.adj[v] {
			pairs = append(pairs, colors[a.to]*(s.n+len(s.edges)+1)+a.color)
		}
		sort.Ints(pairs)
		b.Reset()
		b.WriteString(strconv.Itoa(colors[v]))
		for _, p := range pairs {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(p))
		}
		sigs[v] = b.String()
	}
	return sigs
}

// preserves checks vertex colors and every colored edge.
func (s *searcher) preserves(images []int) bool {
	for v, w := range images {
		if s.colors[v] != s.colors[w] {
			return false
		}
	}
	for e, c := range s.edges {
		if got, ok := s.edges[[2]int{images[e[0]], images[e[1]]}]; !ok || got != c {
			return false
		}
	}
	return true
}

func discrete(colors []int) bool {
	return countClasses(colors) == len(colors)
}

func countClasses(colors []int) int {
	seen := make(map[int]struct{}, len(colors))
	for _, c := range colors {
		seen[c] = struct{}{}
	}
	return len(seen)
}

func smallestNonSingleton(colors []int) int {
	count := make(map[int]int)
	for _, c := range colors {
		count[c]++
	}
	best := -1
	for c, k := range count {
		if k > 1 && (best < 0 || c < best) {
			best = c
		}
	}
	return best
}

// cellOf lists vertices of the given color in ascending order.
func cellOf(colors []int, color int) []int {
	var cell []int
	for v, c := range colors {
		if c == color {
			cell = append(cell, v)
		}
	}
	return cell
}

// fixing keeps the generators that fix every point of prefix.
func fixing(gens []Perm, prefix []int) []Perm {
	var out []Perm
	for _, g := range gens {
		ok := true
		for _, v := range prefix {
			if !g.Fixes(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, g)
		}
	}
	return out
}

func orbitOf(b int, gens []Perm, n int) []bool {
	reached := make([]bool, n)
	reached[b] = true
	queue := []int{b}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, g := range gens {
			w := g.Apply(v)
			if !reached[w] {
				reached[w] = true
				queue = append(queue, w)
			}
		}
	}
	return reached
}

func clone(s []int) []int {
	return append([]int(nil), s...)
}
