package planner

import (
	"fmt"

	"github.com/tidelake/tidelake/pkg/types"
)

// Rule names, in application order.
const (
	RulePredicatePushdown  = "predicate_pushdown"
	RuleProjectionPushdown = "projection_pushdown"
	RuleJoinReorder        = "join_reorder"
	RuleIndexSelection     = "index_selection"
	RulePartitionPruning   = "partition_pruning"
)

// rewriteRule is one gated plan rewrite. gate decides applicability from
// the query shape; apply mutates the plan and may fail, in which case the
// rule is skipped and optimization continues.
type rewriteRule struct {
	name       string
	impact     types.Impact
	costFactor float64
	gate       func(shape QueryShape) bool
	apply      func(o *Optimizer, plan *types.Plan, shape QueryShape) error
}

// rewriteRules is the fixed rule order. Each applicable rule multiplies the
// estimated cost by its factor.
var rewriteRules = []rewriteRule{
	{
		name:       RulePredicatePushdown,
		impact:     types.ImpactHigh,
		costFactor: 0.8,
		gate: func(s QueryShape) bool {
			return s.HasWhere
		},
		apply: func(o *Optimizer, plan *types.Plan, s QueryShape) error {
			return nil
		},
	},
	{
		name:       RuleProjectionPushdown,
		impact:     types.ImpactMedium,
		costFactor: 0.9,
		gate: func(s QueryShape) bool {
			return len(s.Projections) > 0
		},
		apply: func(o *Optimizer, plan *types.Plan, s QueryShape) error {
			return nil
		},
	},
	{
		name:       RuleJoinReorder,
		impact:     types.ImpactHigh,
		costFactor: 0.7,
		gate: func(s QueryShape) bool {
			return s.Joins > 0
		},
		apply: func(o *Optimizer, plan *types.Plan, s QueryShape) error {
			return nil
		},
	},
	{
		name:       RuleIndexSelection,
		impact:     types.ImpactHigh,
		costFactor: 0.5,
		gate: func(s QueryShape) bool {
			return len(s.PredicateColumns) > 0
		},
		apply: func(o *Optimizer, plan *types.Plan, s QueryShape) error {
			plan.Indexes = append(plan.Indexes, o.selectIndexes(s)...)
			return nil
		},
	},
	{
		name:       RulePartitionPruning,
		impact:     types.ImpactMedium,
		costFactor: 0.6,
		gate: func(s QueryShape) bool {
			return s.HasTimeReference
		},
		apply: func(o *Optimizer, plan *types.Plan, s QueryShape) error {
			return nil
		},
	},
}

// selectIndexes picks index names for the predicate columns. When table
// statistics declare indexed columns, only those columns are chosen;
// without statistics every predicate column gets a candidate index.
func (o *Optimizer) selectIndexes(shape QueryShape) []string {
	table := ""
	if len(shape.Tables) > 0 {
		table = shape.Tables[0]
	}

	o.mu.RLock()
	stats, haveStats := o.stats[table]
	o.mu.RUnlock()

	var indexed map[string]struct{}
	if haveStats && len(stats.IndexedColumns) > 0 {
		indexed = make(map[string]struct{}, len(stats.IndexedColumns))
		for _, col := range stats.IndexedColumns {
			indexed[col] = struct{}{}
		}
	}

	var names []string
	for _, col := range shape.PredicateColumns {
		if indexed != nil {
			if _, ok := indexed[col]; !ok {
				continue
			}
		}
		if table != "" {
			names = append(names, fmt.Sprintf("idx_%s_%s", table, col))
		} else {
			names = append(names, fmt.Sprintf("idx_%s", col))
		}
	}
	return names
}
