package partition

import (
	"fmt"

	"github.com/tidelake/tidelake/pkg/types"
)

// skewThreshold is the max/min size ratio above which range partitioning
// is recommended to rebalance.
const skewThreshold = 10.0

// Analysis reports partition health for one dataset.
type Analysis struct {
	DatasetID           string                  `json:"dataset_id"`
	PartitionCount      int                     `json:"partition_count"`
	TotalRows           int64                   `json:"total_rows"`
	TotalSizeBytes      int64                   `json:"total_size_bytes"`
	SizeVariance        float64                 `json:"size_variance"`
	RowVariance         float64                 `json:"row_variance"`
	SkewFactor          float64                 `json:"skew_factor"`
	CurrentStrategy     types.PartitionStrategy `json:"current_strategy"`
	RecommendedStrategy types.PartitionStrategy `json:"recommended_strategy"`
	Reason              string                  `json:"reason,omitempty"`
}

// Optimize analyzes the dataset's partitions: size and row-count variance
// plus a skew factor (max/min size). It recommends range partitioning when
// skew exceeds the threshold, hash partitioning when the partition count
// exceeds the configured ceiling, and otherwise keeps the current strategy.
// A dataset with no partitions yields a zero-valued analysis.
func (m *Manager) Optimize(datasetID string) (*Analysis, error) {
	scheme, err := m.Scheme(datasetID)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		DatasetID:           datasetID,
		PartitionCount:      len(scheme.Partitions),
		CurrentStrategy:     scheme.Strategy,
		RecommendedStrategy: scheme.Strategy,
	}
	if len(scheme.Partitions) == 0 {
		return analysis, nil
	}

	var minSize, maxSize int64
	for i, p := range scheme.Partitions {
		analysis.TotalRows += p.RowCount
		analysis.TotalSizeBytes += p.SizeBytes
		if i == 0 || p.SizeBytes < minSize {
			minSize = p.SizeBytes
		}
		if p.SizeBytes > maxSize {
			maxSize = p.SizeBytes
		}
	}

	n := float64(len(scheme.Partitions))
	meanSize := float64(analysis.TotalSizeBytes) / n
	meanRows := float64(analysis.TotalRows) / n
	for _, p := range scheme.Partitions {
		ds := float64(p.SizeBytes) - meanSize
		dr := float64(p.RowCount) - meanRows
		analysis.SizeVariance += ds * ds / n
		analysis.RowVariance += dr * dr / n
	}

	if minSize > 0 {
		analysis.SkewFactor = float64(maxSize) / float64(minSize)
	} else if maxSize > 0 {
		analysis.SkewFactor = float64(maxSize)
	}

	switch {
	case analysis.SkewFactor > skewThreshold:
		analysis.RecommendedStrategy = types.StrategyRange
		analysis.Reason = fmt.Sprintf("size skew %.1f exceeds %.0f", analysis.SkewFactor, skewThreshold)
	case len(scheme.Partitions) > m.cfg.MaxPartitions:
		analysis.RecommendedStrategy = types.StrategyHash
		analysis.Reason = fmt.Sprintf("partition count %d exceeds ceiling %d", len(scheme.Partitions), m.cfg.MaxPartitions)
	}

	m.metrics.Inc("partition_analyses")
	return analysis, nil
}
