package topology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is the on-disk topology description.
type Spec struct {
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Build validates the description and returns the graph.
func (s Spec) Build() (*Graph, error) {
	return NewGraph(s.Name, s.Nodes, s.Edges)
}

// LoadFile reads a YAML or JSON topology description.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &spec)
	default:
		err = yaml.Unmarshal(data, &spec)
	}
	if err != nil {
		return nil, fmt.Errorf("parse topology %s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec.Build()
}
