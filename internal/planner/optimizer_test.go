package planner

import (
	"testing"
	"time"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

func testOptimizer() *Optimizer {
	return NewOptimizer(config.DefaultConfig().Optimizer, nil, nil)
}

func TestOptimizeSimpleSelect(t *testing.T) {
	o := testOptimizer()

	plan, err := o.Optimize(&types.Query{
		ID:   "q1",
		Type: types.QuerySelect,
		SQL:  "SELECT * FROM orders WHERE id=1",
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	// Base 10 + one table scan 50 = 60, then predicate pushdown (0.8)
	// and index selection (0.5) apply: 60 * 0.4 = 24.
	if plan.EstimatedCost != 24 {
		t.Errorf("expected cost 24, got %f", plan.EstimatedCost)
	}
	if plan.Tier != types.TierMemory {
		t.Errorf("expected memory tier, got %s", plan.Tier)
	}
	if plan.Parallelism != 1 {
		t.Errorf("expected parallelism 1, got %d", plan.Parallelism)
	}

	applied := make(map[string]bool)
	for _, opt := range plan.Optimizations {
		applied[opt.Rule] = true
	}
	if !applied[RulePredicatePushdown] || !applied[RuleIndexSelection] {
		t.Errorf("expected predicate pushdown and index selection, got %v", applied)
	}
	if applied[RuleProjectionPushdown] {
		t.Error("projection pushdown must not apply to SELECT *")
	}
	if applied[RuleJoinReorder] {
		t.Error("join reorder must not apply without a JOIN")
	}
	if len(plan.Indexes) == 0 || plan.Indexes[0] != "idx_orders_id" {
		t.Errorf("expected idx_orders_id, got %v", plan.Indexes)
	}
}

func TestOptimizeJoinQuery(t *testing.T) {
	o := testOptimizer()

	plan, err := o.Optimize(&types.Query{
		ID:  "q2",
		SQL: "SELECT a.id, b.total FROM orders a JOIN payments b WHERE a.status = 'paid'",
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	applied := make(map[string]bool)
	for _, opt := range plan.Optimizations {
		applied[opt.Rule] = true
	}
	for _, rule := range []string{RulePredicatePushdown, RuleProjectionPushdown, RuleJoinReorder, RuleIndexSelection} {
		if !applied[rule] {
			t.Errorf("expected rule %s to apply", rule)
		}
	}
	if plan.Tier != types.TierMemory {
		// 10 + 50 + 100 = 160, then 0.8*0.9*0.7*0.5 = 0.252: cost ~40.
		t.Errorf("expected memory tier after discounts, got %s (cost %f)", plan.Tier, plan.EstimatedCost)
	}
}

func TestOptimizeTierAndParallelism(t *testing.T) {
	o := NewOptimizer(config.OptimizerConfig{
		CacheTTL:      time.Minute,
		DisabledRules: []string{RulePredicatePushdown, RuleProjectionPushdown, RuleJoinReorder, RuleIndexSelection, RulePartitionPruning},
	}, nil, nil)

	// One scan plus six joins: 10 + 50 + 6*100 = 660 undiscounted.
	sql := "SELECT * FROM t0"
	for _, tbl := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		sql += " JOIN " + tbl
	}
	plan, err := o.Optimize(&types.Query{ID: "q3", SQL: sql})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if plan.EstimatedCost != 660 {
		t.Errorf("expected cost 660 with all rules disabled, got %f", plan.EstimatedCost)
	}
	if plan.Tier != types.TierDistributed {
		t.Errorf("expected distributed tier, got %s", plan.Tier)
	}
	if plan.Parallelism != 6 {
		t.Errorf("expected parallelism 6, got %d", plan.Parallelism)
	}
}

func TestOptimizeCacheHit(t *testing.T) {
	o := testOptimizer()
	q := &types.Query{ID: "q4", SQL: "SELECT * FROM orders WHERE id=1"}

	first, err := o.Optimize(q)
	if err != nil {
		t.Fatalf("first Optimize failed: %v", err)
	}
	second, err := o.Optimize(q)
	if err != nil {
		t.Fatalf("second Optimize failed: %v", err)
	}

	if first.ID != second.ID {
		t.Error("second call within the TTL must be served from cache")
	}
	if first.EstimatedCost != second.EstimatedCost || first.EstimatedTime != second.EstimatedTime {
		t.Error("cached plan estimates must be identical")
	}
	if o.CachedPlans() != 1 {
		t.Errorf("expected 1 cached plan, got %d", o.CachedPlans())
	}
}

func TestOptimizeCacheExpiry(t *testing.T) {
	o := NewOptimizer(config.OptimizerConfig{CacheTTL: time.Nanosecond}, nil, nil)
	q := &types.Query{ID: "q5", SQL: "SELECT * FROM orders WHERE id=1"}

	first, err := o.Optimize(q)
	if err != nil {
		t.Fatalf("first Optimize failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := o.Optimize(q)
	if err != nil {
		t.Fatalf("second Optimize failed: %v", err)
	}

	if first.ID == second.ID {
		t.Error("a stale entry must be recomputed, producing a new plan id")
	}
	if first.EstimatedCost != second.EstimatedCost {
		t.Errorf("recomputed estimates must match: %f vs %f", first.EstimatedCost, second.EstimatedCost)
	}
}

func TestFingerprintDistinguishesParameters(t *testing.T) {
	a := Fingerprint(&types.Query{SQL: "SELECT * FROM t", Parameters: map[string]interface{}{"limit": 10}})
	b := Fingerprint(&types.Query{SQL: "SELECT * FROM t", Parameters: map[string]interface{}{"limit": 20}})
	if a == b {
		t.Error("different parameters must produce different fingerprints")
	}

	c := Fingerprint(&types.Query{SQL: "SELECT * FROM t", Parameters: map[string]interface{}{"a": 1, "b": 2}})
	d := Fingerprint(&types.Query{SQL: "SELECT * FROM t", Parameters: map[string]interface{}{"b": 2, "a": 1}})
	if c != d {
		t.Error("parameter map order must not change the fingerprint")
	}
}

func TestOptimizeInvalidQuery(t *testing.T) {
	o := testOptimizer()

	_, err := o.Optimize(&types.Query{ID: "q6"})
	if err == nil {
		t.Fatal("expected error for empty SQL")
	}
	if errors.GetCode(err) != errors.CodeInvalidQuery {
		t.Errorf("expected CodeInvalidQuery, got %s", errors.GetCode(err))
	}
}

func TestIndexSelectionHonorsStatistics(t *testing.T) {
	o := testOptimizer()
	if err := o.UpdateStatistics("orders", TableStatistics{
		RowCount:       1000,
		IndexedColumns: []string{"id"},
	}); err != nil {
		t.Fatalf("UpdateStatistics failed: %v", err)
	}

	plan, err := o.Optimize(&types.Query{
		ID:  "q7",
		SQL: "SELECT * FROM orders WHERE id = 1 AND status = 'open'",
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(plan.Indexes) != 1 || plan.Indexes[0] != "idx_orders_id" {
		t.Errorf("statistics declare only id indexed, got %v", plan.Indexes)
	}
}

func TestUpdateStatisticsEmptyTable(t *testing.T) {
	o := testOptimizer()
	if err := o.UpdateStatistics("", TableStatistics{}); err == nil {
		t.Error("expected error for empty table name")
	}
}

func TestAnalyzeComplexity(t *testing.T) {
	o := testOptimizer()

	tests := []struct {
		name string
		sql  string
		want Complexity
	}{
		{"simple", "SELECT * FROM t WHERE id = 1", ComplexityLow},
		{"grouped", "SELECT a, COUNT(*) FROM t GROUP BY a ORDER BY a", ComplexityMedium},
		{"heavy", "SELECT * FROM a JOIN b JOIN c GROUP BY x HAVING y > 1 ORDER BY z", ComplexityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := o.Analyze(&types.Query{ID: tt.name, SQL: tt.sql})
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if analysis.Complexity != tt.want {
				t.Errorf("expected %s, got %s (count %d)", tt.want, analysis.Complexity, analysis.KeywordCount)
			}
		})
	}
}

func TestAnalyzeRecommendations(t *testing.T) {
	o := testOptimizer()

	analysis, err := o.Analyze(&types.Query{
		ID:  "q8",
		SQL: "SELECT * FROM a JOIN b JOIN c GROUP BY x HAVING y > 1 ORDER BY z",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(analysis.Recommendations) == 0 {
		t.Error("expected recommendations for a high complexity query")
	}
}

func TestQueryTypeOf(t *testing.T) {
	if got := QueryTypeOf("SELECT * FROM a JOIN b"); got != types.QueryJoin {
		t.Errorf("expected join, got %s", got)
	}
	if got := QueryTypeOf("SELECT COUNT(*) FROM a GROUP BY x"); got != types.QueryAggregate {
		t.Errorf("expected aggregate, got %s", got)
	}
	if got := QueryTypeOf("SELECT * FROM a"); got != types.QuerySelect {
		t.Errorf("expected select, got %s", got)
	}
}
