package partition

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tidelake/tidelake/pkg/types"
)

// Access pattern kinds declared by callers.
const (
	PatternTimeRange   = "time_range"
	PatternPointLookup = "point_lookup"
)

// AccessPatterns describes how a dataset is expected to be queried.
type AccessPatterns struct {
	// Kinds lists declared pattern kinds (time_range, point_lookup).
	Kinds []string `json:"kinds,omitempty"`

	// FilterColumns are columns commonly used in WHERE clauses.
	FilterColumns []string `json:"filter_columns,omitempty"`

	// SortColumns are columns commonly used in ORDER BY clauses.
	SortColumns []string `json:"sort_columns,omitempty"`
}

// Has reports whether the given pattern kind was declared.
func (p AccessPatterns) Has(kind string) bool {
	for _, k := range p.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ColumnProfile summarizes one column of the analyzed sample.
type ColumnProfile struct {
	Name          string  `json:"name"`
	Cardinality   int64   `json:"cardinality"`
	Selectivity   float64 `json:"selectivity"`
	TimestampLike bool    `json:"timestamp_like"`
}

// Recommendation is the advisor's partitioning suggestion.
type Recommendation struct {
	DatasetID           string                   `json:"dataset_id"`
	Strategy            types.PartitionStrategy  `json:"strategy"`
	Columns             []string                 `json:"columns"`
	EstimatedPartitions int                      `json:"estimated_partitions"`
	Reason              string                   `json:"reason"`
	ColumnProfiles      map[string]ColumnProfile `json:"column_profiles,omitempty"`
}

// Suggest analyzes the data and declared access patterns and recommends a
// partitioning strategy, 1-3 partition columns, and a partition count.
// Empty input yields a range recommendation with zero estimates.
func (m *Manager) Suggest(datasetID string, data []Record, patterns AccessPatterns) (*Recommendation, error) {
	rec := &Recommendation{
		DatasetID: datasetID,
		Strategy:  types.StrategyRange,
		Reason:    "default range partitioning",
	}
	if len(data) == 0 {
		rec.EstimatedPartitions = 0
		return rec, nil
	}

	profiles := profileColumns(data)
	rec.ColumnProfiles = profiles

	var timestampCols []string
	for name, p := range profiles {
		if p.TimestampLike {
			timestampCols = append(timestampCols, name)
		}
	}
	sort.Strings(timestampCols)

	hasTimeRange := patterns.Has(PatternTimeRange)
	hasPointLookup := patterns.Has(PatternPointLookup)

	switch {
	case hasTimeRange && len(timestampCols) > 0:
		rec.Strategy = types.StrategyRange
		rec.Reason = fmt.Sprintf("time-range queries over timestamp column %s", timestampCols[0])
	case hasPointLookup && len(patterns.FilterColumns) > 0:
		rec.Strategy = types.StrategyHash
		rec.Reason = "point lookups on filter columns"
	case len(patterns.FilterColumns) > 1 && !hasTimeRange:
		rec.Strategy = types.StrategyHybrid
		rec.Reason = "multiple filter columns without time-range access"
	}

	rec.Columns = m.suggestColumns(rec.Strategy, profiles, timestampCols, patterns)
	rec.EstimatedPartitions = m.clampBuckets(int64(math.Ceil(float64(len(data)) / float64(m.cfg.TargetPartitionSize))))

	m.metrics.Inc("partition_suggestions")
	m.logger.Debug("partitioning suggested",
		"dataset", datasetID,
		"strategy", rec.Strategy,
		"columns", rec.Columns,
		"partitions", rec.EstimatedPartitions)

	return rec, nil
}

// suggestColumns picks 1-3 columns whose selectivity is closest to 0.5.
// A timestamp column leads for range strategies driven by time access.
func (m *Manager) suggestColumns(strategy types.PartitionStrategy, profiles map[string]ColumnProfile, timestampCols []string, patterns AccessPatterns) []string {
	var columns []string
	if strategy == types.StrategyRange && patterns.Has(PatternTimeRange) && len(timestampCols) > 0 {
		columns = append(columns, timestampCols[0])
	}

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		di := math.Abs(profiles[names[i]].Selectivity - 0.5)
		dj := math.Abs(profiles[names[j]].Selectivity - 0.5)
		if di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		if len(columns) >= 3 {
			break
		}
		if contains(columns, name) {
			continue
		}
		columns = append(columns, name)
	}
	if len(columns) > 3 {
		columns = columns[:3]
	}
	return columns
}

// profileColumns computes cardinality, selectivity and timestamp detection
// for every top-level column in the sample.
func profileColumns(data []Record) map[string]ColumnProfile {
	distinct := make(map[string]map[string]struct{})
	timestampVotes := make(map[string]int)
	counts := make(map[string]int)

	for _, rec := range data {
		for name, v := range rec {
			if v == nil {
				continue
			}
			counts[name]++
			if distinct[name] == nil {
				distinct[name] = make(map[string]struct{})
			}
			distinct[name][fmt.Sprintf("%v", v)] = struct{}{}
			if timestampValue(v) {
				timestampVotes[name]++
			}
		}
	}

	profiles := make(map[string]ColumnProfile, len(counts))
	for name, count := range counts {
		p := ColumnProfile{
			Name:        name,
			Cardinality: int64(len(distinct[name])),
		}
		if count > 0 {
			p.Selectivity = float64(len(distinct[name])) / float64(count)
		}
		p.TimestampLike = timestampName(name) || timestampVotes[name]*2 > count
		profiles[name] = p
	}
	return profiles
}

// timestampName applies a naming heuristic for timestamp-like columns.
func timestampName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "time") ||
		strings.Contains(lower, "date") ||
		strings.HasSuffix(lower, "_at")
}

// timestampValue reports whether a value looks like a date or timestamp.
func timestampValue(v interface{}) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return true
		}
		if _, err := time.Parse("2006-01-02", t); err == nil {
			return true
		}
		return false
	default:
		return false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
