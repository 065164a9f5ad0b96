package topology

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGraph is returned for malformed topology descriptions.
var ErrInvalidGraph = errors.New("invalid graph")

// Node is a vertex of the topology. A node hosting no servers is a switch.
type Node struct {
	ID        int `json:"id" yaml:"id"`
	NumServer int `json:"servers" yaml:"servers"`
}

// IsServer reports whether the node hosts traffic endpoints.
func (n Node) IsServer() bool {
	return n.NumServer > 0
}

// Edge is an undirected capacitated connection with U < V.
type Edge struct {
	U        int     `json:"u" yaml:"u"`
	V        int     `json:"v" yaml:"v"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
}

// Link is a directed link (From, To).
type Link struct {
	From int
	To   int
}

// Demand is an ordered pair of distinct server nodes.
type Demand struct {
	Src int
	Dst int
}

func (l Link) String() string   { return pairString(l.From, l.To) }
func (d Demand) String() string { return pairString(d.Src, d.Dst) }

// Reverse returns the opposite direction of l.
func (l Link) Reverse() Link { return Link{From: l.To, To: l.From} }

// Less orders links lexicographically.
func (l Link) Less(o Link) bool {
	if l.From != o.From {
		return l.From < o.From
	}
	return l.To < o.To
}

// Less orders demands lexicographically.
func (d Demand) Less(o Demand) bool {
	if d.Src != o.Src {
		return d.Src < o.Src
	}
	return d.Dst < o.Dst
}

func (l Link) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Link) UnmarshalText(b []byte) error {
	a, c, err := parsePair(string(b))
	if err != nil {
		return err
	}
	l.From, l.To = a, c
	return nil
}

func (d Demand) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Demand) UnmarshalText(b []byte) error {
	a, c, err := parsePair(string(b))
	if err != nil {
		return err
	}
	d.Src, d.Dst = a, c
	return nil
}

func pairString(a, b int) string {
	return strconv.Itoa(a) + "-" + strconv.Itoa(b)
}

func parsePair(s string) (int, int, error) {
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed pair %q", s)
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed pair %q: %w", s, err)
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed pair %q: %w", s, err)
	}
	return a, b, nil
}

// TrafficMatrix maps demands to rates. Absent demands have rate zero.
type TrafficMatrix map[Demand]float64
