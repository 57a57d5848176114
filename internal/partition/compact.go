package partition

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tidelake/tidelake/pkg/types"
)

// undersizedRatio is the fraction of the max partition size below which a
// partition becomes a compaction candidate.
const undersizedRatio = 0.1

// CompactionResult summarizes one compaction pass.
type CompactionResult struct {
	DatasetID        string `json:"dataset_id"`
	Candidates       int    `json:"candidates"`
	GroupsCompacted  int    `json:"groups_compacted"`
	PartitionsBefore int    `json:"partitions_before"`
	PartitionsAfter  int    `json:"partitions_after"`
}

// Compact greedily bin-packs partitions under 10% of the max partition size
// into groups that each stay under the max size, then merges each group
// into one partition. A no-op when fewer than two undersized partitions
// exist.
func (m *Manager) Compact(ctx context.Context, datasetID string) (*CompactionResult, error) {
	scheme, err := m.Scheme(datasetID)
	if err != nil {
		return nil, err
	}

	threshold := int64(float64(m.cfg.MaxPartitionSizeBytes) * undersizedRatio)

	var candidates []types.Partition
	var keep []types.Partition
	for _, p := range scheme.Partitions {
		if p.SizeBytes < threshold {
			candidates = append(candidates, p)
		} else {
			keep = append(keep, p)
		}
	}

	result := &CompactionResult{
		DatasetID:        datasetID,
		Candidates:       len(candidates),
		PartitionsBefore: len(scheme.Partitions),
		PartitionsAfter:  len(scheme.Partitions),
	}
	if len(candidates) < 2 {
		return result, nil
	}

	// Greedy first-fit over ascending sizes keeps groups dense.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SizeBytes < candidates[j].SizeBytes
	})

	var groups [][]types.Partition
	var groupSizes []int64
	for _, p := range candidates {
		placed := false
		for gi := range groups {
			if groupSizes[gi]+p.SizeBytes <= m.cfg.MaxPartitionSizeBytes {
				groups[gi] = append(groups[gi], p)
				groupSizes[gi] += p.SizeBytes
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []types.Partition{p})
			groupSizes = append(groupSizes, p.SizeBytes)
		}
	}

	merged := keep
	for _, group := range groups {
		if len(group) < 2 {
			merged = append(merged, group...)
			continue
		}
		merged = append(merged, mergeGroup(scheme, group))
		result.GroupsCompacted++
	}

	// Replace the scheme wholesale: same identity, new partition set.
	updated := *scheme
	updated.Partitions = merged
	m.register(ctx, &updated)
	result.PartitionsAfter = len(merged)

	m.metrics.Inc("compactions")
	m.logger.Info("partitions compacted",
		"dataset", datasetID,
		"groups", result.GroupsCompacted,
		"before", result.PartitionsBefore,
		"after", result.PartitionsAfter)

	return result, nil
}

// mergeGroup merges a group of undersized partitions into one.
func mergeGroup(scheme *types.PartitionScheme, group []types.Partition) types.Partition {
	id := uuid.New().String()
	now := time.Now()
	merged := types.Partition{
		ID:           id,
		Path:         "datasets/" + scheme.DatasetID + "/compacted/part-" + id[:8],
		Strategy:     group[0].Strategy,
		Column:       group[0].Column,
		Value:        "compacted",
		CreatedAt:    now,
		LastAccessed: now,
	}
	for _, p := range group {
		merged.SizeBytes += p.SizeBytes
		merged.RowCount += p.RowCount
	}
	return merged
}
