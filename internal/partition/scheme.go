package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

// CreateScheme materializes partitions for a dataset under the given
// strategy and registers the resulting scheme, replacing any previous one.
// Empty input yields a scheme with zero partitions, never an error.
func (m *Manager) CreateScheme(ctx context.Context, datasetID string, data []Record, strategy types.PartitionStrategy, columns []string) (*types.PartitionScheme, error) {
	scheme := &types.PartitionScheme{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		Strategy:  strategy,
		Columns:   columns,
		CreatedAt: time.Now(),
	}
	if len(data) == 0 {
		m.register(ctx, scheme)
		return scheme, nil
	}

	column := ""
	if len(columns) > 0 {
		column = columns[0]
	}
	rowBytes := estimateRowBytes(data)

	var err error
	switch strategy {
	case types.StrategyRange:
		err = m.buildRange(scheme, data, column, rowBytes)
	case types.StrategyHash:
		err = m.buildHash(scheme, data, column, rowBytes)
	case types.StrategyList:
		err = m.buildList(scheme, data, column, rowBytes)
	case types.StrategyHybrid:
		err = m.buildHybrid(scheme, data, columns, rowBytes)
	case types.StrategyTime:
		err = m.buildTime(scheme, data, column, rowBytes)
	default:
		err = errors.NewValidationError(errors.CodeInvalidStrategy,
			fmt.Sprintf("unsupported partition strategy %q", strategy))
	}
	if err != nil {
		return nil, err
	}

	m.register(ctx, scheme)
	m.metrics.Inc("schemes_created")
	m.logger.Info("partition scheme created",
		"dataset", datasetID,
		"strategy", strategy,
		"partitions", len(scheme.Partitions))

	return scheme, nil
}

// buildRange splits data into equal contiguous buckets by input order. No
// global sort happens; the per-bucket range is the observed min/max of the
// partition column within the bucket.
func (m *Manager) buildRange(scheme *types.PartitionScheme, data []Record, column string, rowBytes float64) error {
	buckets := m.clampBuckets(int64(math.Ceil(float64(len(data)) / float64(m.cfg.TargetPartitionSize))))
	scheme.BucketCount = buckets

	per := int(math.Ceil(float64(len(data)) / float64(buckets)))
	for i := 0; i < buckets; i++ {
		start := i * per
		if start >= len(data) {
			break
		}
		end := start + per
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]

		p := m.newPartition(scheme, types.StrategyRange, column, len(chunk), rowBytes)
		p.Range = chunkRange(chunk, column, start, end-1)
		scheme.Partitions = append(scheme.Partitions, p)
	}
	return nil
}

// buildHash assigns every row to a bucket by the deterministic string hash
// of its partition column, modulo the bucket count. All buckets are
// materialized, including empty ones.
func (m *Manager) buildHash(scheme *types.PartitionScheme, data []Record, column string, rowBytes float64) error {
	buckets := m.clampBuckets(int64(math.Ceil(float64(len(data)) / float64(m.cfg.TargetPartitionSize))))
	scheme.BucketCount = buckets

	rowsPer := make([]int64, buckets)
	for _, rec := range data {
		key := valueKey(rec[column])
		rowsPer[BucketFor(key, buckets)]++
	}

	for i := 0; i < buckets; i++ {
		p := m.newPartition(scheme, types.StrategyHash, column, int(rowsPer[i]), rowBytes)
		p.Value = fmt.Sprintf("%d", i)
		scheme.Partitions = append(scheme.Partitions, p)
	}
	return nil
}

// buildList groups rows by exact key equality: one partition per distinct
// value, in first-seen order.
func (m *Manager) buildList(scheme *types.PartitionScheme, data []Record, column string, rowBytes float64) error {
	var order []string
	rowsPer := make(map[string]int64)
	for _, rec := range data {
		key := valueKey(rec[column])
		if _, seen := rowsPer[key]; !seen {
			order = append(order, key)
		}
		rowsPer[key]++
	}

	scheme.BucketCount = len(order)
	for _, key := range order {
		p := m.newPartition(scheme, types.StrategyList, column, int(rowsPer[key]), rowBytes)
		p.Value = key
		scheme.Partitions = append(scheme.Partitions, p)
	}
	return nil
}

// buildHybrid combines range and hash: contiguous range buckets on the
// first column, hashed on the second column within each bucket. Partitions
// carry the range column and range; Value holds the inner hash bucket
// index so hash-column filters prune the way StrategyHash does.
func (m *Manager) buildHybrid(scheme *types.PartitionScheme, data []Record, columns []string, rowBytes float64) error {
	rangeCol, hashCol := "", ""
	if len(columns) > 0 {
		rangeCol = columns[0]
	}
	hashCol = rangeCol
	if len(columns) > 1 {
		hashCol = columns[1]
	}

	total := m.clampBuckets(int64(math.Ceil(float64(len(data)) / float64(m.cfg.TargetPartitionSize))))
	outer := int(math.Ceil(math.Sqrt(float64(total))))
	inner := int(math.Ceil(float64(total) / float64(outer)))
	scheme.BucketCount = outer * inner
	scheme.HashBuckets = inner

	per := int(math.Ceil(float64(len(data)) / float64(outer)))
	for i := 0; i < outer; i++ {
		start := i * per
		if start >= len(data) {
			break
		}
		end := start + per
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]

		rowsPer := make([]int64, inner)
		for _, rec := range chunk {
			rowsPer[BucketFor(valueKey(rec[hashCol]), inner)]++
		}
		for j := 0; j < inner; j++ {
			p := m.newPartition(scheme, types.StrategyHybrid, rangeCol, int(rowsPer[j]), rowBytes)
			p.Value = fmt.Sprintf("%d", j)
			p.Range = chunkRange(chunk, rangeCol, start, end-1)
			scheme.Partitions = append(scheme.Partitions, p)
		}
	}
	return nil
}

// buildTime buckets rows by calendar day of the timestamp column.
func (m *Manager) buildTime(scheme *types.PartitionScheme, data []Record, column string, rowBytes float64) error {
	var order []string
	rowsPer := make(map[string]int64)
	for _, rec := range data {
		day := dayKey(rec[column])
		if _, seen := rowsPer[day]; !seen {
			order = append(order, day)
		}
		rowsPer[day]++
	}
	sort.Strings(order)

	scheme.BucketCount = len(order)
	for _, day := range order {
		p := m.newPartition(scheme, types.StrategyTime, column, int(rowsPer[day]), rowBytes)
		p.Value = day
		scheme.Partitions = append(scheme.Partitions, p)
	}
	return nil
}

// newPartition builds one partition record with estimated size.
func (m *Manager) newPartition(scheme *types.PartitionScheme, strategy types.PartitionStrategy, column string, rows int, rowBytes float64) types.Partition {
	id := uuid.New().String()
	now := time.Now()
	return types.Partition{
		ID:           id,
		Path:         fmt.Sprintf("datasets/%s/%s/part-%s", scheme.DatasetID, strategy, id[:8]),
		Strategy:     strategy,
		Column:       column,
		SizeBytes:    int64(rowBytes * float64(rows)),
		RowCount:     int64(rows),
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// chunkRange computes the min/max of the partition column within a chunk.
// Without a column, the range is the positional row span.
func chunkRange(chunk []Record, column string, startIdx, endIdx int) *types.ValueRange {
	if column == "" {
		return &types.ValueRange{Start: startIdx, End: endIdx}
	}

	var minKey, maxKey string
	var minVal, maxVal interface{}
	first := true
	for _, rec := range chunk {
		v := rec[column]
		if v == nil {
			continue
		}
		key := comparableKey(v)
		if first {
			minKey, maxKey = key, key
			minVal, maxVal = v, v
			first = false
			continue
		}
		if key < minKey {
			minKey, minVal = key, v
		}
		if key > maxKey {
			maxKey, maxVal = key, v
		}
	}
	if first {
		return &types.ValueRange{Start: startIdx, End: endIdx}
	}
	return &types.ValueRange{Start: minVal, End: maxVal}
}

// valueKey renders a value for hashing and list grouping.
func valueKey(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// comparableKey renders a value so that string ordering matches value
// ordering: numbers are zero-padded, everything else compares as text.
func comparableKey(v interface{}) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("%020.6f", f)
	}
	return fmt.Sprintf("%v", v)
}

// dayKey extracts the calendar day from a timestamp-like value.
func dayKey(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02")
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC().Format("2006-01-02")
		}
		if len(t) >= 10 {
			return t[:10]
		}
		return t
	default:
		return "unknown"
	}
}

// toFloat converts a numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// estimateRowBytes estimates the average encoded row size from a bounded
// prefix of the data.
func estimateRowBytes(data []Record) float64 {
	limit := len(data)
	if limit > 100 {
		limit = 100
	}
	if limit == 0 {
		return 0
	}
	encoded, err := json.Marshal(data[:limit])
	if err != nil {
		return 0
	}
	return float64(len(encoded)) / float64(limit)
}
