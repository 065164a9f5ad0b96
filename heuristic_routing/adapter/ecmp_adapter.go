package adapter

import (
	"robustroute/heuristic_routing/common"
	"robustroute/heuristic_routing/k_shortest"
)

// ECMPAdapter splits a demand over every shortest path.
type ECMPAdapter struct{}

// NewECMPAdapter creates a new ECMP adapter
func NewECMPAdapter() *ECMPAdapter {
	return &ECMPAdapter{}
}

// ComputePaths implements PathCalculator. params is unused.
func (a *ECMPAdapter) ComputePaths(network *common.Network, source, dest int, params map[string]interface{}) []common.Path {
	return k_shortest.AllShortest(network, common.Flow{Source: source, Destination: dest})
}
