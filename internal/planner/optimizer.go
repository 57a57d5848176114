// Package planner converts logical queries into executable plans through an
// ordered set of rewrite rules, cost and time estimation, tier and
// parallelism selection, and a fingerprint-keyed plan cache.
package planner

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/internal/observability"
	"github.com/tidelake/tidelake/pkg/types"
)

// Optimizer produces execution plans. The statistics map is guarded by the
// optimizer's mutex; the plan cache carries its own lock.
type Optimizer struct {
	mu    sync.RWMutex
	stats map[string]TableStatistics

	cfg      config.OptimizerConfig
	cache    *planCache
	disabled map[string]bool
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewOptimizer creates a query optimizer.
func NewOptimizer(cfg config.OptimizerConfig, logger *slog.Logger, metrics *observability.Metrics) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	disabled := make(map[string]bool, len(cfg.DisabledRules))
	for _, name := range cfg.DisabledRules {
		disabled[name] = true
	}
	return &Optimizer{
		stats:    make(map[string]TableStatistics),
		cfg:      cfg,
		cache:    newPlanCache(cfg.CacheTTL),
		disabled: disabled,
		logger:   logger,
		metrics:  metrics,
	}
}

// Optimize produces a plan for the query, deriving the shape from its SQL
// text. Fresh cached plans are returned as-is.
func (o *Optimizer) Optimize(query *types.Query) (*types.Plan, error) {
	if query == nil || query.SQL == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidQuery, "query SQL is required")
	}
	return o.OptimizeShaped(query, ShapeFromSQL(query.SQL))
}

// OptimizeShaped produces a plan from a caller-supplied query shape,
// bypassing the SQL heuristics.
func (o *Optimizer) OptimizeShaped(query *types.Query, shape QueryShape) (*types.Plan, error) {
	if query == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidQuery, "query is required")
	}

	key := Fingerprint(query)
	if cached := o.cache.get(key); cached != nil {
		o.metrics.Inc("plan_cache_hits")
		return cached, nil
	}
	o.metrics.Inc("plan_cache_misses")

	start := time.Now()
	plan := &types.Plan{
		ID:          uuid.New().String(),
		Query:       *query,
		Parallelism: 1,
		CreatedAt:   start,
	}

	cost := estimateCost(shape)
	for _, rule := range rewriteRules {
		if o.disabled[rule.name] || !rule.gate(shape) {
			continue
		}
		if err := rule.apply(o, plan, shape); err != nil {
			// A failing rule is skipped, never fatal.
			o.logger.Warn("rewrite rule failed, skipping",
				"rule", rule.name,
				"query", query.ID,
				"error", err)
			o.metrics.Inc("rule_failures")
			continue
		}
		cost *= rule.costFactor
		plan.Optimizations = append(plan.Optimizations, types.Optimization{
			Rule:       rule.name,
			Impact:     rule.impact,
			CostFactor: rule.costFactor,
		})
	}

	plan.EstimatedCost = cost
	plan.EstimatedTime = estimateTime(shape, plan.Optimizations)
	plan.Tier = selectTier(cost)
	plan.Parallelism = selectParallelism(cost)

	o.cache.put(key, plan)
	o.metrics.Observe("optimize", time.Since(start))
	o.logger.Debug("query optimized",
		"query", query.ID,
		"cost", plan.EstimatedCost,
		"tier", plan.Tier,
		"parallelism", plan.Parallelism,
		"rules", len(plan.Optimizations))

	return plan, nil
}

// CachedPlans returns the number of plans currently cached.
func (o *Optimizer) CachedPlans() int {
	return o.cache.len()
}
