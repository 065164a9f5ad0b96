package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robustroute.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[run]
topology = "fabric.yaml"
mode = "su2"
verify = false

[optimizer]
objective = "log"
max_iterations = 40

[heuristic]
k = 3

[pool]
workers = 4

[checkpoint]
backend = "etcd"
etcd_endpoints = ["10.0.0.1:2379"]
etcd_dial_timeout = "2s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fabric.yaml", cfg.Run.Topology)
	assert.Equal(t, "su2", cfg.Run.Mode)
	assert.False(t, cfg.Run.Verify)
	assert.Equal(t, "log", cfg.Optimizer.Objective)
	assert.Equal(t, 40, cfg.Optimizer.MaxIterations)
	assert.Equal(t, 3, cfg.Heuristic.K)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, []string{"10.0.0.1:2379"}, cfg.Checkpoint.EtcdEndpoints)
	assert.Equal(t, "2s", cfg.Checkpoint.EtcdDialTimeout.String())
	// untouched sections keep their defaults
	assert.Equal(t, 1e-9, cfg.Optimizer.ZeroFlow)
	assert.Equal(t, "refinement", cfg.Run.Oracle)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "robust", cfg.Run.Mode)
	assert.Equal(t, "clique", cfg.Generator.Kind)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, "linear", cfg.Optimizer.Objective)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[run]
mode = "robust"
[checkpoint]
backend = "file"
`)
	t.Setenv("ROBUSTROUTE_MODE", "ecmp")
	t.Setenv("ROBUSTROUTE_WORKERS", "3")
	t.Setenv("ROBUSTROUTE_VERIFY", "false")
	t.Setenv("ROBUSTROUTE_ETCD_ENDPOINTS", "a:1,b:2")
	t.Setenv("ROBUSTROUTE_MAX_ITERATIONS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ecmp", cfg.Run.Mode)
	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.False(t, cfg.Run.Verify)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Checkpoint.EtcdEndpoints)
	assert.Equal(t, 0, cfg.Optimizer.MaxIterations)
	assert.Equal(t, "./checkpoints", cfg.Checkpoint.Dir)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
[run]
oracle = "nauty"
[pool]
workers = -1
[log]
level = "loud"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.oracle")
	assert.Contains(t, err.Error(), "pool.workers")
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
