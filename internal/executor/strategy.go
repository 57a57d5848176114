package executor

import (
	"math/rand"
	"time"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/pkg/types"
)

// Strategy picks one worker from the eligible candidates for a query. A
// nil return means no candidate is acceptable.
type Strategy interface {
	Name() string
	SelectWorker(candidates []types.Worker, query *types.Query) *types.Worker
}

// newStrategy maps the configured strategy name to its implementation.
// Unknown names fall back to adaptive.
func newStrategy(name config.BalancingStrategy) Strategy {
	switch name {
	case config.BalanceRoundRobin:
		return &roundRobinStrategy{}
	case config.BalanceLeastConnections:
		return &leastConnectionsStrategy{}
	case config.BalanceResourceBased:
		return &resourceBasedStrategy{}
	default:
		return &adaptiveStrategy{}
	}
}

// roundRobinStrategy picks uniformly at random among the candidates.
type roundRobinStrategy struct{}

func (s *roundRobinStrategy) Name() string { return string(config.BalanceRoundRobin) }

func (s *roundRobinStrategy) SelectWorker(candidates []types.Worker, query *types.Query) *types.Worker {
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rand.Intn(len(candidates))]
}

// leastConnectionsStrategy picks the worker with the fewest active tasks.
type leastConnectionsStrategy struct{}

func (s *leastConnectionsStrategy) Name() string { return string(config.BalanceLeastConnections) }

func (s *leastConnectionsStrategy) SelectWorker(candidates []types.Worker, query *types.Query) *types.Worker {
	var best *types.Worker
	for i := range candidates {
		if best == nil || candidates[i].TasksActive < best.TasksActive {
			best = &candidates[i]
		}
	}
	return best
}

// resourceBasedStrategy picks the worker with the lowest current load.
type resourceBasedStrategy struct{}

func (s *resourceBasedStrategy) Name() string { return string(config.BalanceResourceBased) }

func (s *resourceBasedStrategy) SelectWorker(candidates []types.Worker, query *types.Query) *types.Worker {
	var best *types.Worker
	for i := range candidates {
		if best == nil || candidates[i].CurrentLoad < best.CurrentLoad {
			best = &candidates[i]
		}
	}
	return best
}

// adaptiveStrategy maximizes a composite score combining load, active
// tasks, success rate, response time, and query-type affinity.
type adaptiveStrategy struct{}

func (s *adaptiveStrategy) Name() string { return string(config.BalanceAdaptive) }

func (s *adaptiveStrategy) SelectWorker(candidates []types.Worker, query *types.Query) *types.Worker {
	var best *types.Worker
	bestScore := 0.0
	for i := range candidates {
		score := adaptiveScore(&candidates[i], query)
		if best == nil || score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best
}

// adaptiveScore is 100 − load − 10×activeTasks + 20×successRate −
// avgResponseTime/10, plus a 10-point bonus when the worker declares
// support for the query's type.
func adaptiveScore(w *types.Worker, query *types.Query) float64 {
	score := 100.0
	score -= w.CurrentLoad
	score -= 10 * float64(w.TasksActive)
	score += 20 * w.Performance.SuccessRate
	score -= float64(w.Performance.AvgResponseTime/time.Millisecond) / 10
	if query != nil && w.Supports(query.Type) {
		score += 10
	}
	return score
}
