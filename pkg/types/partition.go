package types

import "time"

// PartitionStrategy defines how a dataset is split into partitions.
type PartitionStrategy string

const (
	// StrategyRange splits data into contiguous buckets by input order.
	StrategyRange PartitionStrategy = "range"

	// StrategyHash routes rows by a deterministic string hash modulo the
	// bucket count.
	StrategyHash PartitionStrategy = "hash"

	// StrategyList creates one partition per distinct key value.
	StrategyList PartitionStrategy = "list"

	// StrategyHybrid hashes within range buckets, combining both.
	StrategyHybrid PartitionStrategy = "hybrid"

	// StrategyTime buckets rows by calendar day of a timestamp column.
	StrategyTime PartitionStrategy = "time"
)

// ValueRange bounds the values covered by a range partition.
type ValueRange struct {
	Start interface{} `json:"start"`
	End   interface{} `json:"end"`
}

// Partition describes one materialized partition of a dataset.
type Partition struct {
	ID           string            `json:"id"`
	Path         string            `json:"path"`
	Strategy     PartitionStrategy `json:"strategy"`
	Column       string            `json:"column,omitempty"`
	Value        string            `json:"value,omitempty"`
	Range        *ValueRange       `json:"range,omitempty"`
	SizeBytes    int64             `json:"size_bytes"`
	RowCount     int64             `json:"row_count"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
}

// PartitionScheme is the full partitioning decision for one dataset:
// strategy, partition columns, bucket count and the materialized
// partitions. HashBuckets is the per-range hash fan-out of a hybrid
// scheme. Schemes are replaced wholesale on re-partitioning.
type PartitionScheme struct {
	ID          string            `json:"id"`
	DatasetID   string            `json:"dataset_id"`
	Strategy    PartitionStrategy `json:"strategy"`
	Columns     []string          `json:"columns"`
	BucketCount int               `json:"bucket_count"`
	HashBuckets int               `json:"hash_buckets,omitempty"`
	Partitions  []Partition       `json:"partitions"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TotalRows returns the row count summed across partitions.
func (s *PartitionScheme) TotalRows() int64 {
	var total int64
	for i := range s.Partitions {
		total += s.Partitions[i].RowCount
	}
	return total
}

// Filter is a column predicate used for partition pruning.
type Filter struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}
