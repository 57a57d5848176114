package partition

import (
	"github.com/tidelake/tidelake/pkg/types"
)

// Prune returns the partitions of a dataset that may contain rows matching
// every filter. When pruning is disabled all partitions are returned. The
// result is always a subset of the dataset's partitions.
func (m *Manager) Prune(datasetID string, filters []types.Filter) ([]types.Partition, error) {
	scheme, err := m.Scheme(datasetID)
	if err != nil {
		return nil, err
	}

	if !m.cfg.PruningEnabled || len(filters) == 0 {
		out := make([]types.Partition, len(scheme.Partitions))
		copy(out, scheme.Partitions)
		return out, nil
	}

	var retained []types.Partition
	for _, p := range scheme.Partitions {
		if partitionMatches(&p, scheme, filters) {
			retained = append(retained, p)
		}
	}

	m.metrics.Inc("prune_calls")
	m.metrics.Add("partitions_pruned", int64(len(scheme.Partitions)-len(retained)))
	m.logger.Debug("partitions pruned",
		"dataset", datasetID,
		"total", len(scheme.Partitions),
		"retained", len(retained))

	return retained, nil
}

// partitionMatches retains a partition only if every filter either falls
// within its value range (range strategies) or matches its discrete value
// (hash/list strategies). Filters on non-partition columns never prune.
func partitionMatches(p *types.Partition, scheme *types.PartitionScheme, filters []types.Filter) bool {
	for _, f := range filters {
		if p.Strategy == types.StrategyHybrid {
			if !hybridMatches(p, scheme, f) {
				return false
			}
			continue
		}
		if f.Column != p.Column {
			continue
		}
		switch p.Strategy {
		case types.StrategyRange:
			if p.Range != nil && !rangeMatches(p.Range, f) {
				return false
			}
		case types.StrategyHash:
			if f.Operator == "=" && p.Value != "" {
				bucket := BucketFor(valueKey(f.Value), scheme.BucketCount)
				if p.Value != valueKey(bucket) {
					return false
				}
			}
		case types.StrategyList, types.StrategyTime:
			if f.Operator == "=" && p.Value != listKey(p.Strategy, f.Value) {
				return false
			}
		}
	}
	return true
}

// hybridMatches checks one filter against a hybrid partition. Filters on
// the range column (the scheme's first) go against the partition range;
// equality filters on the hash column (the scheme's last) go against the
// inner bucket index. The two checks coincide when both columns are the
// same.
func hybridMatches(p *types.Partition, scheme *types.PartitionScheme, f types.Filter) bool {
	rangeCol, hashCol := p.Column, p.Column
	if len(scheme.Columns) > 0 {
		rangeCol = scheme.Columns[0]
		hashCol = scheme.Columns[len(scheme.Columns)-1]
	}

	if f.Column == rangeCol && p.Range != nil && !rangeMatches(p.Range, f) {
		return false
	}
	if f.Column == hashCol && f.Operator == "=" && p.Value != "" && scheme.HashBuckets > 0 {
		bucket := BucketFor(valueKey(f.Value), scheme.HashBuckets)
		if p.Value != valueKey(bucket) {
			return false
		}
	}
	return true
}

// rangeMatches checks a filter against a partition's [start,end] range.
// Operators outside the supported set never prune.
func rangeMatches(r *types.ValueRange, f types.Filter) bool {
	fv := comparableKey(f.Value)
	start := comparableKey(r.Start)
	end := comparableKey(r.End)

	switch f.Operator {
	case "=":
		return fv >= start && fv <= end
	case ">", ">=":
		return fv <= end
	case "<", "<=":
		return fv >= start
	default:
		return true
	}
}

// listKey renders a filter value the way the strategy's partition values
// were rendered at build time.
func listKey(strategy types.PartitionStrategy, v interface{}) string {
	if strategy == types.StrategyTime {
		return dayKey(v)
	}
	return valueKey(v)
}
