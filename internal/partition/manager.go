// Package partition decides partitioning strategies, materializes partition
// schemes, prunes partitions against query filters, and compacts undersized
// partitions.
package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/internal/observability"
	"github.com/tidelake/tidelake/internal/storage"
	"github.com/tidelake/tidelake/pkg/types"
)

// Record is one semi-structured input row.
type Record = map[string]interface{}

// Manager owns the partition schemes for all datasets. Schemes are replaced
// wholesale on re-partitioning; all registry access goes through one mutex.
type Manager struct {
	mu      sync.RWMutex
	cfg     config.PartitionConfig
	schemes map[string]*types.PartitionScheme

	store   storage.ObjectStorage
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager creates a partition manager. store may be nil; when present,
// materialized scheme manifests are persisted through it.
func NewManager(cfg config.PartitionConfig, store storage.ObjectStorage, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Manager{
		cfg:     cfg,
		schemes: make(map[string]*types.PartitionScheme),
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Scheme returns the current scheme for a dataset.
func (m *Manager) Scheme(datasetID string) (*types.PartitionScheme, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scheme, ok := m.schemes[datasetID]
	if !ok {
		return nil, errors.NewNotFoundError(errors.CodeDatasetNotFound,
			fmt.Sprintf("no partition scheme for dataset %q", datasetID))
	}
	return scheme, nil
}

// register replaces the dataset's scheme and persists its manifest when a
// store is configured.
func (m *Manager) register(ctx context.Context, scheme *types.PartitionScheme) {
	m.mu.Lock()
	m.schemes[scheme.DatasetID] = scheme
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	manifest, err := json.Marshal(scheme)
	if err != nil {
		m.logger.Warn("failed to encode scheme manifest", "dataset", scheme.DatasetID, "error", err)
		return
	}
	key := fmt.Sprintf("manifests/%s/scheme.json", scheme.DatasetID)
	if err := m.store.Store(ctx, key, manifest, map[string]string{"dataset": scheme.DatasetID}); err != nil {
		m.logger.Warn("failed to persist scheme manifest", "dataset", scheme.DatasetID, "error", err)
	}
}

// clampBuckets clamps a partition count estimate to [1, MaxPartitions].
func (m *Manager) clampBuckets(n int64) int {
	if n < 1 {
		return 1
	}
	if n > int64(m.cfg.MaxPartitions) {
		return m.cfg.MaxPartitions
	}
	return int(n)
}
