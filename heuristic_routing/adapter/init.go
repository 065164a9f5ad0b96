package adapter

import (
	log "github.com/sirupsen/logrus"

	"robustroute/heuristic_routing/common"
)

// init registers the heuristic routing modes
func init() {
	register(common.Mode{
		Name:        "ecmp",
		Description: "equal split over all shortest paths",
		Calculator:  NewECMPAdapter(),
	})
	for _, k := range []int{2, 3} {
		register(common.Mode{
			Name:        shortestUnionName(k),
			Description: "Shortest-Union: every path of at most K hops, shortest paths beyond",
			Calculator:  NewShortestUnionAdapter(k),
			DefaultK:    k,
		})
	}
	log.Debugf("Available heuristic routing modes: %v", common.NamesGlobal())
}

func register(m common.Mode) {
	if err := common.RegisterGlobal(m); err != nil {
		log.Warnf("Failed to register %s adapter: %v", m.Name, err)
	}
}
