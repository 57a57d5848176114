// Package executor owns the worker pool, the priority task queue, and the
// scheduler loop that assigns queued tasks to workers under a selectable
// load-balancing strategy.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/internal/observability"
	"github.com/tidelake/tidelake/pkg/types"
)

// Processor executes queries on a pool of workers. The mutex guards the
// task queue and the task registry; the pool carries its own lock.
type Processor struct {
	mu      sync.Mutex
	queue   *taskQueue
	tasks   map[string]*types.Task
	stopped bool

	cfg      config.ExecutorConfig
	pool     *workerPool
	strategy Strategy
	runner   Runner
	sem      *semaphore.Weighted
	logger   *slog.Logger
	metrics  *observability.Metrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProcessor creates a processor and starts its background loops. A nil
// runner falls back to simulated execution.
func NewProcessor(cfg config.ExecutorConfig, runner Runner, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if runner == nil {
		runner = &simulatedRunner{}
	}

	p := &Processor{
		queue:    newTaskQueue(cfg.QueueCapacity),
		tasks:    make(map[string]*types.Task),
		cfg:      cfg,
		pool:     newWorkerPool(cfg.MaxParallelism, cfg.WorkerConcurrency, cfg.LoadIncrement),
		strategy: newStrategy(cfg.Strategy),
		runner:   runner,
		sem:      semaphore.NewWeighted(int64(cfg.MaxParallelism * cfg.WorkerConcurrency)),
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}

	p.wg.Add(3)
	go p.scheduleLoop()
	go p.healthLoop()
	go p.advisoryLoop()

	return p
}

// ExecuteParallel runs every query on the pool and blocks until all of
// them reach a terminal state or the batch timeout elapses. On timeout it
// fails outright; no partial results are returned. Per-task failures are
// reported inside the corresponding QueryResult, never as an error.
func (p *Processor) ExecuteParallel(ctx context.Context, queries []*types.Query) ([]types.QueryResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, p.cfg.BatchTimeout)
	defer cancel()

	taskIDs, err := p.enqueueBatch(batchCtx, queries)
	if err != nil {
		return nil, err
	}
	p.metrics.Add("tasks_submitted", int64(len(taskIDs)))

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-batchCtx.Done():
			p.forgetTasks(taskIDs)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.metrics.Inc("batch_timeouts")
			return nil, errors.NewTimeoutError(
				fmt.Sprintf("batch of %d queries exceeded %s", len(queries), p.cfg.BatchTimeout))
		case <-ticker.C:
			if p.allTerminal(taskIDs) {
				p.metrics.Observe("batch_execution", time.Since(start))
				return p.collectResults(taskIDs), nil
			}
		}
	}
}

// ExecuteWithLoadBalancing runs a single query through the strategy-driven
// scheduler. The task's own failure is reported in the result.
func (p *Processor) ExecuteWithLoadBalancing(ctx context.Context, query *types.Query) (*types.QueryResult, error) {
	results, err := p.ExecuteParallel(ctx, []*types.Query{query})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("expected 1 result, got %d", len(results)), nil)
	}
	return &results[0], nil
}

// enqueueBatch wraps queries as tasks and enqueues them atomically. When
// the queue cannot hold the whole batch nothing is enqueued.
func (p *Processor) enqueueBatch(ctx context.Context, queries []*types.Query) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, errors.NewExecutionError(errors.CodeShutdown, "processor is shut down", nil)
	}
	if p.cfg.QueueCapacity > 0 && p.queue.len()+len(queries) > p.cfg.QueueCapacity {
		return nil, errors.NewExecutionError(errors.CodeQueueFull,
			fmt.Sprintf("queue cannot hold %d more tasks", len(queries)), nil)
	}

	taskIDs := make([]string, 0, len(queries))
	now := time.Now()
	for _, q := range queries {
		task := &types.Task{
			ID:         uuid.New().String(),
			Query:      *q,
			Status:     types.TaskPending,
			Priority:   q.Priority.Weight(),
			EnqueuedAt: now,
		}
		if task.Query.ID == "" {
			task.Query.ID = task.ID
		}
		p.tasks[task.ID] = task
		p.queue.push(&taskEntry{task: task, ctx: ctx})
		taskIDs = append(taskIDs, task.ID)
	}
	return taskIDs, nil
}

// forgetTasks drops abandoned tasks from the registry. Cancelled queue
// entries are discarded by the next tick; executing tasks keep running
// until their context fires.
func (p *Processor) forgetTasks(taskIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range taskIDs {
		delete(p.tasks, id)
	}
}

// allTerminal reports whether every listed task finished.
func (p *Processor) allTerminal(taskIDs []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range taskIDs {
		if !p.tasks[id].Status.Terminal() {
			return false
		}
	}
	return true
}

// collectResults builds the batch result in submission order and drops the
// finished tasks from the registry.
func (p *Processor) collectResults(taskIDs []string) []types.QueryResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]types.QueryResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		task := p.tasks[id]
		if task.Result != nil {
			results = append(results, *task.Result)
		} else {
			results = append(results, types.QueryResult{
				QueryID: task.Query.ID,
				TaskID:  task.ID,
				Worker:  task.AssignedWorker,
				Error:   task.Error,
			})
		}
		delete(p.tasks, id)
	}
	return results
}

// scheduleLoop drives the assignment tick.
func (p *Processor) scheduleLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick assigns min(pending, available) task/worker pairs greedily in
// priority order. It is the only place tasks leave the queue.
func (p *Processor) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.len() > 0 {
		candidates := p.pool.eligible()
		if len(candidates) == 0 {
			return
		}

		entry := p.queue.pop()
		if entry.ctx.Err() != nil {
			// The batch was abandoned while the task sat queued.
			entry.task.Status = types.TaskFailed
			entry.task.Error = entry.ctx.Err().Error()
			entry.task.CompletedAt = time.Now()
			continue
		}

		worker := p.strategy.SelectWorker(candidates, &entry.task.Query)
		if worker == nil || !p.pool.admit(worker.ID) {
			p.queue.requeue(entry)
			return
		}

		entry.task.AssignedWorker = worker.ID
		p.pool.assign(worker.ID)
		p.wg.Add(1)
		go p.run(entry, worker.ID)
	}
}

// run executes one assigned task on its worker.
func (p *Processor) run(entry *taskEntry, workerID string) {
	defer p.wg.Done()

	if err := p.sem.Acquire(entry.ctx, 1); err != nil {
		p.finish(entry.task, nil, err, 0)
		p.pool.release(workerID)
		return
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	entry.task.Status = types.TaskProcessing
	entry.task.StartedAt = time.Now()
	p.mu.Unlock()

	start := time.Now()
	result, err := p.runner.Run(entry.ctx, &entry.task.Query)
	duration := time.Since(start)

	p.finish(entry.task, result, err, duration)
	p.pool.complete(workerID, duration, err != nil)
}

// finish moves a task to its terminal state exactly once.
func (p *Processor) finish(task *types.Task, result *types.QueryResult, err error, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if task.Status.Terminal() {
		return
	}
	task.CompletedAt = time.Now()
	if err != nil {
		task.Status = types.TaskFailed
		task.Error = err.Error()
		p.metrics.Inc("tasks_failed")
		p.logger.Warn("task failed",
			"task", task.ID,
			"query", task.Query.ID,
			"worker", task.AssignedWorker,
			"error", err)
		return
	}

	result.TaskID = task.ID
	result.Worker = task.AssignedWorker
	result.Duration = duration
	task.Result = result
	task.Status = types.TaskCompleted
	p.metrics.Inc("tasks_completed")
	p.metrics.Observe("task_execution", duration)
}

// healthLoop fails workers whose heartbeat went stale.
func (p *Processor) healthLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			for _, id := range p.pool.markStale(p.cfg.HeartbeatStaleness) {
				p.metrics.Inc("workers_failed")
				p.logger.Warn("worker heartbeat stale, marking failed", "worker", id)
			}
		}
	}
}

// advisoryLoop emits utilization and work-stealing signals. The signals
// are observability only; the pool never resizes itself.
func (p *Processor) advisoryLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkUtilization()
		}
	}
}

func (p *Processor) checkUtilization() {
	workers := p.pool.snapshot()
	if len(workers) == 0 {
		return
	}

	totalActive, capacity := 0, 0
	minActive, maxActive := -1, 0
	for _, w := range workers {
		if w.Status != types.WorkerActive {
			continue
		}
		totalActive += w.TasksActive
		capacity += w.Capabilities.MaxConcurrency
		if minActive < 0 || w.TasksActive < minActive {
			minActive = w.TasksActive
		}
		if w.TasksActive > maxActive {
			maxActive = w.TasksActive
		}
	}
	if capacity == 0 {
		return
	}

	utilization := float64(totalActive) / float64(capacity)
	switch {
	case utilization > 0.8:
		p.metrics.Inc("pool_overutilized")
		p.logger.Info("pool near capacity, consider raising parallelism",
			"utilization", utilization)
	case utilization < 0.2 && totalActive > 0:
		p.metrics.Inc("pool_underutilized")
		p.logger.Debug("pool mostly idle", "utilization", utilization)
	}

	if minActive >= 0 && maxActive-minActive >= 2 {
		p.metrics.Inc("work_stealing_signals")
		p.logger.Info("uneven worker load, work stealing would help",
			"min_active", minActive,
			"max_active", maxActive)
	}
}

// Heartbeat records a liveness signal for a worker.
func (p *Processor) Heartbeat(workerID string) {
	p.pool.heartbeat(workerID)
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	TotalWorkers   int            `json:"total_workers"`
	ActiveWorkers  int            `json:"active_workers"`
	FailedWorkers  int            `json:"failed_workers"`
	TasksCompleted int64          `json:"tasks_completed"`
	QueueDepth     int            `json:"queue_depth"`
	AverageLoad    float64        `json:"average_load"`
	Workers        []types.Worker `json:"workers"`
}

// WorkerStatistics snapshots every worker plus queue depth.
func (p *Processor) WorkerStatistics() Stats {
	workers := p.pool.snapshot()

	stats := Stats{
		TotalWorkers: len(workers),
		Workers:      workers,
	}
	for _, w := range workers {
		if w.Status == types.WorkerActive {
			stats.ActiveWorkers++
		} else {
			stats.FailedWorkers++
		}
		stats.TasksCompleted += w.TasksCompleted
		stats.AverageLoad += w.CurrentLoad
	}
	if len(workers) > 0 {
		stats.AverageLoad /= float64(len(workers))
	}

	p.mu.Lock()
	stats.QueueDepth = p.queue.len()
	p.mu.Unlock()

	return stats
}

// Shutdown stops the background loops, fails everything still queued, and
// waits for in-flight tasks to drain.
func (p *Processor) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, entry := range p.queue.drain() {
		entry.task.Status = types.TaskFailed
		entry.task.Error = "processor shut down"
		entry.task.CompletedAt = time.Now()
	}
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("processor stopped")
}
