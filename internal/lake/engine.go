// Package lake wires the schema engine, partition manager, query
// optimizer, and parallel processor behind one facade, gated by an access
// controller.
package lake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/internal/executor"
	"github.com/tidelake/tidelake/internal/observability"
	"github.com/tidelake/tidelake/internal/partition"
	"github.com/tidelake/tidelake/internal/planner"
	"github.com/tidelake/tidelake/internal/schema"
	"github.com/tidelake/tidelake/internal/storage"
	"github.com/tidelake/tidelake/pkg/types"
)

// Record is one semi-structured input row.
type Record = map[string]interface{}

// AccessController gates every facade operation before any component runs.
type AccessController interface {
	ValidateAccess(principal, resource, action string) bool
}

// AllowAll is the default controller; every access passes.
type AllowAll struct{}

// ValidateAccess always returns true.
func (AllowAll) ValidateAccess(principal, resource, action string) bool { return true }

// Engine is the facade over the four core components.
type Engine struct {
	cfg       *config.Config
	schemas   *schema.Engine
	parts     *partition.Manager
	optimizer *planner.Optimizer
	processor *executor.Processor
	access    AccessController
	store     storage.ObjectStorage
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Options configures optional collaborators of the engine.
type Options struct {
	// Access gates all operations; nil means allow everything.
	Access AccessController

	// Store receives partition scheme manifests; nil disables persistence.
	Store storage.ObjectStorage

	// Runner executes queries on the pool; nil means simulated execution.
	Runner executor.Runner

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// New creates an engine from the configuration and starts the processor's
// background loops. Call Shutdown when done.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	access := opts.Access
	if access == nil {
		access = AllowAll{}
	}

	store := opts.Store
	if store == nil && cfg.Storage.Type == "local" && cfg.Storage.Path != "" {
		local, err := storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = local
	}

	e := &Engine{
		cfg:       cfg,
		schemas:   schema.NewEngine(cfg.Inference, logger, metrics),
		parts:     partition.NewManager(cfg.Partition, store, logger, metrics),
		optimizer: planner.NewOptimizer(cfg.Optimizer, logger, metrics),
		processor: executor.NewProcessor(cfg.Executor, opts.Runner, logger, metrics),
		access:    access,
		store:     store,
		logger:    logger,
		metrics:   metrics,
	}
	logger.Info("lake engine started",
		"workers", cfg.Executor.MaxParallelism,
		"strategy", cfg.Executor.Strategy)
	return e, nil
}

// authorize runs the access check shared by every operation.
func (e *Engine) authorize(principal, resource, action string) error {
	if e.access.ValidateAccess(principal, resource, action) {
		return nil
	}
	e.metrics.Inc("access_denied")
	return errors.NewValidationError(errors.CodeAccessDenied,
		fmt.Sprintf("%s may not %s %s", principal, action, resource))
}

// InferSchema infers a schema from sample records.
func (e *Engine) InferSchema(principal string, records []Record, format schema.Format, datasetID string) (*types.Schema, error) {
	if err := e.authorize(principal, datasetID, "infer"); err != nil {
		return nil, err
	}
	return e.schemas.Infer(records, format, datasetID)
}

// ValidateSchema checks records against a schema.
func (e *Engine) ValidateSchema(principal string, records []Record, s *types.Schema) (*types.ValidationResult, error) {
	if err := e.authorize(principal, s.DatasetID, "validate"); err != nil {
		return nil, err
	}
	return e.schemas.Validate(records, s)
}

// EvolveSchema evolves an existing schema against new records.
func (e *Engine) EvolveSchema(principal string, old *types.Schema, newRecords []Record) (*types.EvolutionResult, error) {
	if err := e.authorize(principal, old.DatasetID, "evolve"); err != nil {
		return nil, err
	}
	return e.schemas.Evolve(old, newRecords)
}

// SuggestPartitioning recommends a partition strategy for a dataset.
func (e *Engine) SuggestPartitioning(principal, datasetID string, data []Record, patterns partition.AccessPatterns) (*partition.Recommendation, error) {
	if err := e.authorize(principal, datasetID, "suggest"); err != nil {
		return nil, err
	}
	return e.parts.Suggest(datasetID, data, patterns)
}

// CreatePartitionScheme materializes partitions under a strategy.
func (e *Engine) CreatePartitionScheme(ctx context.Context, principal, datasetID string, data []Record, strategy types.PartitionStrategy, columns []string) (*types.PartitionScheme, error) {
	if err := e.authorize(principal, datasetID, "partition"); err != nil {
		return nil, err
	}
	return e.parts.CreateScheme(ctx, datasetID, data, strategy, columns)
}

// PrunePartitions returns the partitions that may match the filters.
func (e *Engine) PrunePartitions(principal, datasetID string, filters []types.Filter) ([]types.Partition, error) {
	if err := e.authorize(principal, datasetID, "read"); err != nil {
		return nil, err
	}
	return e.parts.Prune(datasetID, filters)
}

// CompactPartitions merges undersized partitions of a dataset.
func (e *Engine) CompactPartitions(ctx context.Context, principal, datasetID string) (*partition.CompactionResult, error) {
	if err := e.authorize(principal, datasetID, "compact"); err != nil {
		return nil, err
	}
	return e.parts.Compact(ctx, datasetID)
}

// OptimizePartitions analyzes partition balance for a dataset.
func (e *Engine) OptimizePartitions(principal, datasetID string) (*partition.Analysis, error) {
	if err := e.authorize(principal, datasetID, "read"); err != nil {
		return nil, err
	}
	return e.parts.Optimize(datasetID)
}

// OptimizeQuery produces an execution plan for a query.
func (e *Engine) OptimizeQuery(principal string, query *types.Query) (*types.Plan, error) {
	if err := e.authorize(principal, "queries", "optimize"); err != nil {
		return nil, err
	}
	if query != nil && query.Type == "" {
		query.Type = planner.QueryTypeOf(query.SQL)
	}
	return e.optimizer.Optimize(query)
}

// AnalyzeQuery reports a query's structural complexity.
func (e *Engine) AnalyzeQuery(principal string, query *types.Query) (*planner.Analysis, error) {
	if err := e.authorize(principal, "queries", "analyze"); err != nil {
		return nil, err
	}
	return e.optimizer.Analyze(query)
}

// UpdateStatistics refreshes the optimizer's statistics for a table.
func (e *Engine) UpdateStatistics(principal, table string, stats planner.TableStatistics) error {
	if err := e.authorize(principal, table, "write"); err != nil {
		return err
	}
	return e.optimizer.UpdateStatistics(table, stats)
}

// ExecuteParallel runs a batch of queries on the worker pool.
func (e *Engine) ExecuteParallel(ctx context.Context, principal string, queries []*types.Query) ([]types.QueryResult, error) {
	if err := e.authorize(principal, "queries", "execute"); err != nil {
		return nil, err
	}
	return e.processor.ExecuteParallel(ctx, queries)
}

// ExecuteWithLoadBalancing runs one query through the load balancer.
func (e *Engine) ExecuteWithLoadBalancing(ctx context.Context, principal string, query *types.Query) (*types.QueryResult, error) {
	if err := e.authorize(principal, "queries", "execute"); err != nil {
		return nil, err
	}
	return e.processor.ExecuteWithLoadBalancing(ctx, query)
}

// WorkerStatistics snapshots the worker pool.
func (e *Engine) WorkerStatistics() executor.Stats {
	return e.processor.WorkerStatistics()
}

// MetricsSnapshot returns the engine's counters and timings.
func (e *Engine) MetricsSnapshot() observability.Snapshot {
	return e.metrics.Snapshot()
}

// Shutdown stops the processor's background loops.
func (e *Engine) Shutdown() {
	e.processor.Shutdown()
	e.logger.Info("lake engine stopped")
}
