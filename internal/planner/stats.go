package planner

import (
	"time"

	"github.com/tidelake/tidelake/internal/errors"
)

// TableStatistics describes one table for cost estimation and index
// selection.
type TableStatistics struct {
	RowCount       int64     `json:"row_count"`
	SizeBytes      int64     `json:"size_bytes"`
	IndexedColumns []string  `json:"indexed_columns,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateStatistics replaces the statistics for a table.
func (o *Optimizer) UpdateStatistics(table string, stats TableStatistics) error {
	if table == "" {
		return errors.NewValidationError(errors.CodeInvalidQuery, "table name is required")
	}

	stats.UpdatedAt = time.Now()

	o.mu.Lock()
	o.stats[table] = stats
	o.mu.Unlock()

	o.metrics.Inc("statistics_updates")
	o.logger.Debug("table statistics updated", "table", table, "rows", stats.RowCount)
	return nil
}

// Statistics returns the recorded statistics for a table.
func (o *Optimizer) Statistics(table string) (TableStatistics, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	stats, ok := o.stats[table]
	return stats, ok
}
