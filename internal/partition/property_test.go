package partition

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tidelake/tidelake/pkg/types"
)

// TestProperty_BucketHashDeterministic validates that the bucketing hash is
// pure and always lands inside [0, buckets).
func TestProperty_BucketHashDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same key maps to same bucket in range", prop.ForAll(
		func(key string, buckets int) bool {
			if buckets <= 0 {
				buckets = 1
			}
			first := BucketFor(key, buckets)
			second := BucketFor(key, buckets)
			return first == second && first >= 0 && first < buckets
		},
		gen.AnyString(),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

// TestProperty_PruneReturnsSubset validates that pruning never invents
// partitions: the retained set is always a subset of the scheme's.
func TestProperty_PruneReturnsSubset(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("pruned partitions come from the scheme", prop.ForAll(
		func(ids []int, filterValue int) bool {
			m := testManager(t)
			m.cfg.TargetPartitionSize = 10

			data := make([]Record, len(ids))
			for i, id := range ids {
				data[i] = Record{"id": id}
			}
			scheme, err := m.CreateScheme(context.Background(), "prop", data, types.StrategyRange, []string{"id"})
			if err != nil {
				return false
			}

			retained, err := m.Prune("prop", []types.Filter{
				{Column: "id", Operator: "=", Value: filterValue},
			})
			if err != nil {
				return false
			}
			if len(retained) > len(scheme.Partitions) {
				return false
			}
			known := make(map[string]struct{}, len(scheme.Partitions))
			for _, p := range scheme.Partitions {
				known[p.ID] = struct{}{}
			}
			for _, p := range retained {
				if _, ok := known[p.ID]; !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// TestProperty_HashSchemePreservesRows validates that hash partitioning
// never loses or duplicates rows across buckets.
func TestProperty_HashSchemePreservesRows(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("bucket row counts sum to input size", prop.ForAll(
		func(keys []string) bool {
			if len(keys) == 0 {
				return true
			}
			m := testManager(t)
			m.cfg.TargetPartitionSize = 5

			data := make([]Record, len(keys))
			for i, k := range keys {
				data[i] = Record{"key": k}
			}
			scheme, err := m.CreateScheme(context.Background(), "prop", data, types.StrategyHash, []string{"key"})
			if err != nil {
				return false
			}
			return scheme.TotalRows() == int64(len(keys))
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
