package topology

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphDerivedSets(t *testing.T) {
	nodes := []Node{{ID: 0, NumServer: 2}, {ID: 1}, {ID: 2, NumServer: 1}}
	edges := []Edge{{U: 1, V: 0, Capacity: 3}, {U: 1, V: 2, Capacity: 1.5}}
	g, err := NewGraph("line", nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, g.Servers())
	assert.Equal(t, []int{1}, g.Switches())
	assert.Equal(t, []Demand{{0, 2}, {2, 0}}, g.Demands())
	assert.Equal(t, []Link{{0, 1}, {1, 0}, {1, 2}, {2, 1}}, g.Links())
	assert.Equal(t, []Edge{{U: 0, V: 1, Capacity: 3}, {U: 1, V: 2, Capacity: 1.5}}, g.Edges())

	c, ok := g.Capacity(Link{From: 2, To: 1})
	assert.True(t, ok)
	assert.Equal(t, 1.5, c)
	_, ok = g.Capacity(Link{From: 0, To: 2})
	assert.False(t, ok)

	assert.Equal(t, 2, g.MaxDegree())
	assert.Equal(t, []int{0, 1, 2}, g.HopDistances(0))
}

func TestNewGraphRejects(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
	}{
		{"gap in ids", []Node{{ID: 0}, {ID: 2}}, nil},
		{"duplicate node", []Node{{ID: 0}, {ID: 0}}, nil},
		{"negative servers", []Node{{ID: 0, NumServer: -1}}, nil},
		{"self loop", []Node{{ID: 0}, {ID: 1}}, []Edge{{U: 1, V: 1, Capacity: 1}}},
		{"unknown endpoint", []Node{{ID: 0}, {ID: 1}}, []Edge{{U: 0, V: 5, Capacity: 1}}},
		{"zero capacity", []Node{{ID: 0}, {ID: 1}}, []Edge{{U: 0, V: 1}}},
		{"duplicate edge", []Node{{ID: 0}, {ID: 1}}, []Edge{{U: 0, V: 1, Capacity: 1}, {U: 1, V: 0, Capacity: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph("bad", tt.nodes, tt.edges)
			assert.ErrorIs(t, err, ErrInvalidGraph)
		})
	}
}

func TestUnreachableHops(t *testing.T) {
	g, err := NewGraph("split", []Node{{ID: 0, NumServer: 1}, {ID: 1, NumServer: 1}, {ID: 2}}, []Edge{{U: 0, V: 2, Capacity: 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 0, -1}, g.HopDistances(1))
}

func TestGenerators(t *testing.T) {
	clique, err := Clique(6, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "Clique-5-6-1", clique.Name())
	assert.Len(t, clique.Edges(), 15)
	assert.Len(t, clique.Demands(), 30)

	ring, err := Ring(2, 1, 1)
	require.NoError(t, err)
	require.Len(t, ring.Edges(), 1)
	assert.Equal(t, 2.0, ring.Edges()[0].Capacity)

	torus, err := Torus2D(3, 3, 1, 1)
	require.NoError(t, err)
	assert.Len(t, torus.Edges(), 18)
	assert.Equal(t, 4, torus.MaxDegree())

	clos, err := Generate("clos", 4, 2, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, clos.Switches())
	assert.Len(t, clos.Demands(), 12)

	_, err = Generate("hypercube", 3, 0, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "square.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
nodes:
  - {id: 0, servers: 1}
  - {id: 1, servers: 1}
  - {id: 2, servers: 1}
  - {id: 3, servers: 1}
edges:
  - {u: 0, v: 1, capacity: 1}
  - {u: 1, v: 2, capacity: 1}
  - {u: 2, v: 3, capacity: 1}
  - {u: 3, v: 0, capacity: 1}
`), 0o644))

	g, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "square", g.Name())
	assert.Len(t, g.Links(), 8)

	data, err := json.Marshal(g.Spec())
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "copy.json")
	require.NoError(t, os.WriteFile(jsonPath, data, 0o644))
	g2, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, g.Spec(), g2.Spec())
}

func TestPairText(t *testing.T) {
	rt := NewRouting("test", false)
	rt.Add(Link{From: 0, To: 1}, Demand{Src: 0, Dst: 2}, 0.5)
	rt.Add(Link{From: 0, To: 1}, Demand{Src: 0, Dst: 2}, 0.25)

	data, err := json.Marshal(rt)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"0-1":{"0-2":0.75}`)

	var back Routing
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0.75, back.Fraction(Link{From: 0, To: 1}, Demand{Src: 0, Dst: 2}))

	var d Demand
	assert.Error(t, d.UnmarshalText([]byte("7")))
}
