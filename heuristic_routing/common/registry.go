package common

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownMode = errors.New("unknown routing mode")

// Mode is one routing mode the pipeline can run.
type Mode struct {
	Name        string
	Description string
	// Reduced modes run on the symmetry-reduced topology through the
	// optimizer and carry no calculator.
	Reduced    bool
	Calculator PathCalculator
	// DefaultK is the Shortest-Union K of the mode, 0 when K does not apply.
	DefaultK int
}

// Tunable reports whether K and candidate overrides apply to the mode.
func (m Mode) Tunable() bool {
	return m.DefaultK > 0
}

// Label names the output of a run. Overrides that change the routing are
// part of it, so routings computed with different parameters never share
// a checkpoint.
func (m Mode) Label(k, candidates int) string {
	if !m.Tunable() {
		return m.Name
	}
	label := m.Name
	if k > 0 && k != m.DefaultK {
		label += fmt.Sprintf("-k%d", k)
	}
	if candidates > 0 {
		label += fmt.Sprintf("-c%d", candidates)
	}
	return label
}

// Params turns overrides into calculator parameters.
func (m Mode) Params(k, candidates int) map[string]interface{} {
	params := map[string]interface{}{}
	if !m.Tunable() {
		return params
	}
	if k > 0 {
		params["k"] = k
	}
	if candidates > 0 {
		params["candidates"] = candidates
	}
	return params
}

// ModeRegistry maps mode names to their descriptions.
type ModeRegistry struct {
	modes map[string]Mode
	mu    sync.RWMutex
}

func NewModeRegistry() *ModeRegistry {
	return &ModeRegistry{modes: make(map[string]Mode)}
}

var globalRegistry = NewModeRegistry()

func (mr *ModeRegistry) Register(m Mode) error {
	if m.Name == "" {
		return errors.New("routing mode needs a name")
	}
	if m.Reduced != (m.Calculator == nil) {
		return fmt.Errorf("routing mode '%s': exactly one of reduced and calculator must be set", m.Name)
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	if _, exists := mr.modes[m.Name]; exists {
		return fmt.Errorf("routing mode '%s' is already registered", m.Name)
	}
	mr.modes[m.Name] = m
	return nil
}

func (mr *ModeRegistry) Lookup(name string) (Mode, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	m, exists := mr.modes[name]
	if !exists {
		return Mode{}, fmt.Errorf("%w %q", ErrUnknownMode, name)
	}
	return m, nil
}

// List returns every mode, reduced modes first, then by name.
func (mr *ModeRegistry) List() []Mode {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	modes := make([]Mode, 0, len(mr.modes))
	for _, m := range mr.modes {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool {
		if modes[i].Reduced != modes[j].Reduced {
			return modes[i].Reduced
		}
		return modes[i].Name < modes[j].Name
	})
	return modes
}

// Names returns the mode names in List order.
func (mr *ModeRegistry) Names() []string {
	modes := mr.List()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names
}

func RegisterGlobal(m Mode) error {
	return globalRegistry.Register(m)
}

func LookupGlobal(name string) (Mode, error) {
	return globalRegistry.Lookup(name)
}

func ListGlobal() []Mode {
	return globalRegistry.List()
}

func NamesGlobal() []string {
	return globalRegistry.Names()
}
