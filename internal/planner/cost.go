package planner

import (
	"time"

	"github.com/tidelake/tidelake/pkg/types"
)

// Cost model weights per base-plan operation.
const (
	baseCost        = 10.0
	tableScanCost   = 50.0
	indexScanCost   = 10.0
	joinCost        = 100.0
	aggregationCost = 30.0
)

// Time model weights.
const (
	baseTime        = 50 * time.Millisecond
	tableScanTime   = 200 * time.Millisecond
	indexScanTime   = 50 * time.Millisecond
	joinTime        = 300 * time.Millisecond
	aggregationTime = 100 * time.Millisecond
	minTime         = 10 * time.Millisecond
)

// Tier and parallelism thresholds.
const (
	distributedCostThreshold = 500.0
	hotCostThreshold         = 100.0
	parallelismCostThreshold = 300.0
	maxPlanParallelism       = 8
)

// estimateCost computes the undiscounted base-plan cost from the shape's
// operation counts.
func estimateCost(shape QueryShape) float64 {
	return baseCost +
		tableScanCost*float64(shape.TableScans) +
		indexScanCost*float64(shape.IndexScans) +
		joinCost*float64(shape.Joins) +
		aggregationCost*float64(shape.Aggregations)
}

// estimateTime computes the expected execution time, discounted by the
// summed impact of the applied optimizations, floored at minTime.
func estimateTime(shape QueryShape, optimizations []types.Optimization) time.Duration {
	t := baseTime +
		tableScanTime*time.Duration(shape.TableScans) +
		indexScanTime*time.Duration(shape.IndexScans) +
		joinTime*time.Duration(shape.Joins) +
		aggregationTime*time.Duration(shape.Aggregations)

	discount := 0.0
	for _, opt := range optimizations {
		discount += opt.Impact.Discount()
	}
	if discount > 1 {
		discount = 1
	}

	t = time.Duration(float64(t) * (1 - discount))
	if t < minTime {
		t = minTime
	}
	return t
}

// selectTier maps an estimated cost to an execution tier.
func selectTier(cost float64) types.Tier {
	switch {
	case cost > distributedCostThreshold:
		return types.TierDistributed
	case cost > hotCostThreshold:
		return types.TierHot
	default:
		return types.TierMemory
	}
}

// selectParallelism derives the plan's parallelism from its cost. Cheap
// plans always run single-threaded.
func selectParallelism(cost float64) int {
	if cost <= parallelismCostThreshold {
		return 1
	}
	p := int(cost / 100)
	if p > maxPlanParallelism {
		p = maxPlanParallelism
	}
	if p < 1 {
		p = 1
	}
	return p
}
