package partition

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(config.DefaultConfig().Partition, nil, nil, nil)
}

func TestSchemeUnknownDataset(t *testing.T) {
	m := testManager(t)

	_, err := m.Scheme("missing")
	if err == nil {
		t.Fatal("expected error for unknown dataset")
	}
	if errors.GetCode(err) != errors.CodeDatasetNotFound {
		t.Errorf("expected CodeDatasetNotFound, got %s", errors.GetCode(err))
	}
}

func TestSuggestTimeRangeData(t *testing.T) {
	m := testManager(t)

	data := make([]Record, 100_000)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range data {
		data[i] = Record{
			"id":         i,
			"created_at": base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			"amount":     float64(i%100) * 1.5,
		}
	}

	rec, err := m.Suggest("orders", data, AccessPatterns{Kinds: []string{PatternTimeRange}})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if rec.Strategy != types.StrategyRange {
		t.Errorf("expected range strategy, got %s", rec.Strategy)
	}
	if rec.EstimatedPartitions != 1 {
		t.Errorf("expected 1 estimated partition for 100000 rows, got %d", rec.EstimatedPartitions)
	}
	if len(rec.Columns) == 0 || rec.Columns[0] != "created_at" {
		t.Errorf("expected created_at to lead suggested columns, got %v", rec.Columns)
	}
	if len(rec.Columns) > 3 {
		t.Errorf("expected at most 3 columns, got %v", rec.Columns)
	}
}

func TestSuggestPointLookup(t *testing.T) {
	m := testManager(t)

	data := make([]Record, 50)
	for i := range data {
		data[i] = Record{"user_id": fmt.Sprintf("u-%d", i), "score": i}
	}

	rec, err := m.Suggest("users", data, AccessPatterns{
		Kinds:         []string{PatternPointLookup},
		FilterColumns: []string{"user_id"},
	})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if rec.Strategy != types.StrategyHash {
		t.Errorf("expected hash strategy for point lookups, got %s", rec.Strategy)
	}
}

func TestSuggestEmptyData(t *testing.T) {
	m := testManager(t)

	rec, err := m.Suggest("empty", nil, AccessPatterns{})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if rec.Strategy != types.StrategyRange {
		t.Errorf("expected range default, got %s", rec.Strategy)
	}
	if rec.EstimatedPartitions != 0 {
		t.Errorf("expected 0 partitions for empty data, got %d", rec.EstimatedPartitions)
	}
}

func TestCreateSchemeRange(t *testing.T) {
	m := testManager(t)

	data := make([]Record, 250)
	for i := range data {
		data[i] = Record{"id": i}
	}

	// Partition roughly every 100 rows.
	m.cfg.TargetPartitionSize = 100

	scheme, err := m.CreateScheme(context.Background(), "orders", data, types.StrategyRange, []string{"id"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}
	if len(scheme.Partitions) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(scheme.Partitions))
	}
	if scheme.TotalRows() != 250 {
		t.Errorf("expected 250 total rows, got %d", scheme.TotalRows())
	}
	for _, p := range scheme.Partitions {
		if p.Range == nil {
			t.Errorf("partition %s missing range", p.ID)
		}
	}

	// The scheme is queryable under the dataset afterwards.
	got, err := m.Scheme("orders")
	if err != nil {
		t.Fatalf("Scheme failed: %v", err)
	}
	if got.ID != scheme.ID {
		t.Errorf("registered scheme mismatch: %s vs %s", got.ID, scheme.ID)
	}
}

func TestCreateSchemeHashMaterializesAllBuckets(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 10

	data := make([]Record, 40)
	for i := range data {
		data[i] = Record{"user_id": fmt.Sprintf("u-%d", i%3)}
	}

	scheme, err := m.CreateScheme(context.Background(), "users", data, types.StrategyHash, []string{"user_id"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}
	if scheme.BucketCount != 4 {
		t.Fatalf("expected 4 buckets, got %d", scheme.BucketCount)
	}
	if len(scheme.Partitions) != 4 {
		t.Fatalf("expected 4 partitions including empty buckets, got %d", len(scheme.Partitions))
	}
	if scheme.TotalRows() != 40 {
		t.Errorf("expected 40 total rows, got %d", scheme.TotalRows())
	}
}

func TestCreateSchemeList(t *testing.T) {
	m := testManager(t)

	data := []Record{
		{"region": "eu"},
		{"region": "us"},
		{"region": "eu"},
		{"region": "ap"},
	}

	scheme, err := m.CreateScheme(context.Background(), "events", data, types.StrategyList, []string{"region"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}
	if len(scheme.Partitions) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(scheme.Partitions))
	}
	// Distinct values in first-seen order.
	want := []string{"eu", "us", "ap"}
	for i, p := range scheme.Partitions {
		if p.Value != want[i] {
			t.Errorf("partition %d: expected value %s, got %s", i, want[i], p.Value)
		}
	}
}

func TestCreateSchemeTime(t *testing.T) {
	m := testManager(t)

	data := []Record{
		{"ts": "2026-03-02T08:00:00Z"},
		{"ts": "2026-03-01T23:59:00Z"},
		{"ts": "2026-03-02T12:30:00Z"},
	}

	scheme, err := m.CreateScheme(context.Background(), "logs", data, types.StrategyTime, []string{"ts"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}
	if len(scheme.Partitions) != 2 {
		t.Fatalf("expected 2 day partitions, got %d", len(scheme.Partitions))
	}
	if scheme.Partitions[0].Value != "2026-03-01" || scheme.Partitions[1].Value != "2026-03-02" {
		t.Errorf("expected sorted day buckets, got %s, %s",
			scheme.Partitions[0].Value, scheme.Partitions[1].Value)
	}
}

func hybridTestData() []Record {
	data := make([]Record, 12)
	for i := range data {
		user := "alice"
		if i%2 == 1 {
			user = "bob"
		}
		data[i] = Record{"id": i + 1, "user": user}
	}
	return data
}

func TestCreateSchemeHybrid(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 2

	scheme, err := m.CreateScheme(context.Background(), "events", hybridTestData(),
		types.StrategyHybrid, []string{"id", "user"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	// 12 rows at target 2 give 6 buckets: 3 range chunks of 2 hash
	// buckets each.
	if len(scheme.Partitions) != 6 {
		t.Fatalf("expected 6 partitions, got %d", len(scheme.Partitions))
	}
	if scheme.HashBuckets != 2 {
		t.Errorf("expected 2 hash buckets per range chunk, got %d", scheme.HashBuckets)
	}
	if got := scheme.TotalRows(); got != 12 {
		t.Errorf("expected 12 rows across partitions, got %d", got)
	}
	for _, p := range scheme.Partitions {
		if p.Column != "id" {
			t.Errorf("partition column must be the range column, got %q", p.Column)
		}
		if p.Range == nil {
			t.Error("hybrid partition missing its range")
		}
	}
	if scheme.Partitions[0].Range.Start != 1 || scheme.Partitions[0].Range.End != 4 {
		t.Errorf("expected first chunk range [1,4], got [%v,%v]",
			scheme.Partitions[0].Range.Start, scheme.Partitions[0].Range.End)
	}
}

func TestCreateSchemeEmptyData(t *testing.T) {
	m := testManager(t)

	scheme, err := m.CreateScheme(context.Background(), "empty", nil, types.StrategyRange, nil)
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}
	if len(scheme.Partitions) != 0 {
		t.Errorf("expected 0 partitions, got %d", len(scheme.Partitions))
	}
}

func TestCreateSchemeUnknownStrategy(t *testing.T) {
	m := testManager(t)

	_, err := m.CreateScheme(context.Background(), "ds", []Record{{"a": 1}}, "radix", []string{"a"})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if errors.GetCode(err) != errors.CodeInvalidStrategy {
		t.Errorf("expected CodeInvalidStrategy, got %s", errors.GetCode(err))
	}
}

func TestPruneRangeFilters(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 100

	data := make([]Record, 300)
	for i := range data {
		data[i] = Record{"id": i}
	}
	if _, err := m.CreateScheme(context.Background(), "orders", data, types.StrategyRange, []string{"id"}); err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	// id=50 lives only in the first chunk.
	retained, err := m.Prune("orders", []types.Filter{{Column: "id", Operator: "=", Value: 50}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 1 {
		t.Errorf("expected 1 retained partition for id=50, got %d", len(retained))
	}

	// id > 250 lives only in the last chunk.
	retained, err = m.Prune("orders", []types.Filter{{Column: "id", Operator: ">", Value: 250}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 1 {
		t.Errorf("expected 1 retained partition for id>250, got %d", len(retained))
	}
}

func TestPruneNonPartitionColumnKeepsAll(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 100

	data := make([]Record, 300)
	for i := range data {
		data[i] = Record{"id": i, "amount": i * 2}
	}
	if _, err := m.CreateScheme(context.Background(), "orders", data, types.StrategyRange, []string{"id"}); err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	retained, err := m.Prune("orders", []types.Filter{{Column: "amount", Operator: "=", Value: 10}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 3 {
		t.Errorf("filters on non-partition columns must not prune, got %d of 3", len(retained))
	}
}

func TestPruneHashEquality(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 10

	data := make([]Record, 40)
	for i := range data {
		data[i] = Record{"user_id": fmt.Sprintf("u-%d", i)}
	}
	if _, err := m.CreateScheme(context.Background(), "users", data, types.StrategyHash, []string{"user_id"}); err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	retained, err := m.Prune("users", []types.Filter{{Column: "user_id", Operator: "=", Value: "u-7"}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 1 {
		t.Fatalf("expected exactly 1 bucket for an equality lookup, got %d", len(retained))
	}
	want := fmt.Sprintf("%d", BucketFor("u-7", 4))
	if retained[0].Value != want {
		t.Errorf("expected bucket %s, got %s", want, retained[0].Value)
	}
}

func TestPruneHybridHashEquality(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 2

	scheme, err := m.CreateScheme(context.Background(), "events", hybridTestData(),
		types.StrategyHybrid, []string{"id", "user"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	retained, err := m.Prune("events", []types.Filter{{Column: "user", Operator: "=", Value: "alice"}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	// One hash bucket survives per range chunk, and the surviving
	// buckets hold every matching row.
	if len(retained) != 3 {
		t.Fatalf("expected 1 bucket per range chunk, got %d partitions", len(retained))
	}
	want := fmt.Sprintf("%d", BucketFor("alice", scheme.HashBuckets))
	var rows int64
	for _, p := range retained {
		if p.Value != want {
			t.Errorf("expected bucket %s, got %s", want, p.Value)
		}
		rows += p.RowCount
	}
	if rows < 6 {
		t.Errorf("retained partitions hold %d rows, want at least the 6 matching", rows)
	}
}

func TestPruneHybridRangeAndHashFilters(t *testing.T) {
	m := testManager(t)
	m.cfg.TargetPartitionSize = 2

	scheme, err := m.CreateScheme(context.Background(), "events", hybridTestData(),
		types.StrategyHybrid, []string{"id", "user"})
	if err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	retained, err := m.Prune("events", []types.Filter{{Column: "id", Operator: "=", Value: 2}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 2 {
		t.Fatalf("expected only the first chunk's buckets, got %d partitions", len(retained))
	}

	retained, err = m.Prune("events", []types.Filter{
		{Column: "id", Operator: "=", Value: 2},
		{Column: "user", Operator: "=", Value: "alice"},
	})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 1 {
		t.Fatalf("expected exactly 1 partition for combined filters, got %d", len(retained))
	}
	want := fmt.Sprintf("%d", BucketFor("alice", scheme.HashBuckets))
	if retained[0].Value != want {
		t.Errorf("expected bucket %s, got %s", want, retained[0].Value)
	}
	if retained[0].RowCount == 0 {
		t.Error("retained partition must hold the matching rows")
	}
}

func TestPruneDisabled(t *testing.T) {
	m := testManager(t)
	m.cfg.PruningEnabled = false
	m.cfg.TargetPartitionSize = 100

	data := make([]Record, 300)
	for i := range data {
		data[i] = Record{"id": i}
	}
	if _, err := m.CreateScheme(context.Background(), "orders", data, types.StrategyRange, []string{"id"}); err != nil {
		t.Fatalf("CreateScheme failed: %v", err)
	}

	retained, err := m.Prune("orders", []types.Filter{{Column: "id", Operator: "=", Value: 50}})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(retained) != 3 {
		t.Errorf("pruning disabled must retain all partitions, got %d of 3", len(retained))
	}
}

func TestCompactMergesUndersized(t *testing.T) {
	m := testManager(t)
	m.cfg.MaxPartitionSizeBytes = 1000

	scheme := &types.PartitionScheme{
		ID:        "s1",
		DatasetID: "orders",
		Strategy:  types.StrategyRange,
	}
	// Threshold is 100 bytes. Three undersized, one healthy.
	sizes := []int64{40, 30, 20, 900}
	for i, size := range sizes {
		scheme.Partitions = append(scheme.Partitions, types.Partition{
			ID:        fmt.Sprintf("p%d", i),
			SizeBytes: size,
			RowCount:  int64(10 * (i + 1)),
			Strategy:  types.StrategyRange,
		})
	}
	m.register(context.Background(), scheme)

	result, err := m.Compact(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if result.Candidates != 3 {
		t.Errorf("expected 3 candidates, got %d", result.Candidates)
	}
	if result.GroupsCompacted != 1 {
		t.Errorf("expected 1 merged group, got %d", result.GroupsCompacted)
	}
	if result.PartitionsAfter != 2 {
		t.Errorf("expected 2 partitions after compaction, got %d", result.PartitionsAfter)
	}

	updated, err := m.Scheme("orders")
	if err != nil {
		t.Fatalf("Scheme failed: %v", err)
	}
	var totalRows, totalSize int64
	for _, p := range updated.Partitions {
		totalRows += p.RowCount
		totalSize += p.SizeBytes
	}
	if totalRows != 10+20+30+40 {
		t.Errorf("compaction must preserve total rows, got %d", totalRows)
	}
	if totalSize != 40+30+20+900 {
		t.Errorf("compaction must preserve total size, got %d", totalSize)
	}
}

func TestCompactNoOpBelowTwoCandidates(t *testing.T) {
	m := testManager(t)
	m.cfg.MaxPartitionSizeBytes = 1000

	scheme := &types.PartitionScheme{
		ID:        "s1",
		DatasetID: "orders",
		Strategy:  types.StrategyRange,
		Partitions: []types.Partition{
			{ID: "p0", SizeBytes: 50},
			{ID: "p1", SizeBytes: 900},
		},
	}
	m.register(context.Background(), scheme)

	result, err := m.Compact(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if result.GroupsCompacted != 0 {
		t.Errorf("expected no compaction with a single candidate, got %d groups", result.GroupsCompacted)
	}
	if result.PartitionsBefore != result.PartitionsAfter {
		t.Errorf("no-op compaction changed the partition count: %d -> %d",
			result.PartitionsBefore, result.PartitionsAfter)
	}
}

func TestOptimizeDetectsSkew(t *testing.T) {
	m := testManager(t)

	scheme := &types.PartitionScheme{
		ID:        "s1",
		DatasetID: "orders",
		Strategy:  types.StrategyHash,
		Partitions: []types.Partition{
			{ID: "p0", SizeBytes: 100, RowCount: 10},
			{ID: "p1", SizeBytes: 5000, RowCount: 500},
		},
	}
	m.register(context.Background(), scheme)

	analysis, err := m.Optimize("orders")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if analysis.SkewFactor != 50 {
		t.Errorf("expected skew factor 50, got %f", analysis.SkewFactor)
	}
	if analysis.RecommendedStrategy != types.StrategyRange {
		t.Errorf("high skew should recommend range, got %s", analysis.RecommendedStrategy)
	}
}

func TestOptimizeTooManyPartitions(t *testing.T) {
	m := testManager(t)
	m.cfg.MaxPartitions = 3

	scheme := &types.PartitionScheme{
		ID:        "s1",
		DatasetID: "orders",
		Strategy:  types.StrategyList,
	}
	for i := 0; i < 5; i++ {
		scheme.Partitions = append(scheme.Partitions, types.Partition{
			ID:        fmt.Sprintf("p%d", i),
			SizeBytes: 100,
			RowCount:  10,
		})
	}
	m.register(context.Background(), scheme)

	analysis, err := m.Optimize("orders")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if analysis.RecommendedStrategy != types.StrategyHash {
		t.Errorf("partition overflow should recommend hash, got %s", analysis.RecommendedStrategy)
	}
}

func TestOptimizeEmptyScheme(t *testing.T) {
	m := testManager(t)
	m.register(context.Background(), &types.PartitionScheme{
		ID:        "s1",
		DatasetID: "empty",
		Strategy:  types.StrategyRange,
	})

	analysis, err := m.Optimize("empty")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if analysis.PartitionCount != 0 || analysis.SkewFactor != 0 {
		t.Errorf("expected zero analysis for empty scheme, got %+v", analysis)
	}
}
