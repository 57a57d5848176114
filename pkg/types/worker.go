package types

import "time"

// WorkerStatus is the health state of a worker.
type WorkerStatus string

const (
	WorkerActive WorkerStatus = "active"
	WorkerFailed WorkerStatus = "failed"
)

// WorkerCapabilities declares what a worker can execute.
type WorkerCapabilities struct {
	QueryTypes     []QueryType `json:"query_types"`
	MaxConcurrency int         `json:"max_concurrency"`
	MaxMemoryMB    int64       `json:"max_memory_mb"`
}

// WorkerPerformance holds rolling performance statistics, updated by
// exponential moving average after each task.
type WorkerPerformance struct {
	AvgResponseTime time.Duration `json:"avg_response_time"`
	SuccessRate     float64       `json:"success_rate"`
	ErrorRate       float64       `json:"error_rate"`
}

// Worker is one execution slot in the pool. TasksActive never exceeds
// Capabilities.MaxConcurrency; CurrentLoad is bounded to [0,100].
type Worker struct {
	ID             string             `json:"id"`
	Status         WorkerStatus       `json:"status"`
	CurrentLoad    float64            `json:"current_load"`
	TasksActive    int                `json:"tasks_active"`
	TasksCompleted int64              `json:"tasks_completed"`
	Capabilities   WorkerCapabilities `json:"capabilities"`
	Performance    WorkerPerformance  `json:"performance"`
	LastHeartbeat  time.Time          `json:"last_heartbeat"`
}

// Supports reports whether the worker declares support for the query type.
func (w *Worker) Supports(qt QueryType) bool {
	for _, t := range w.Capabilities.QueryTypes {
		if t == qt {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a task. Tasks transition
// pending → processing → {completed|failed} exactly once and are never
// reassigned after leaving pending.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task wraps one query for execution on the pool.
type Task struct {
	ID             string       `json:"id"`
	Query          Query        `json:"query"`
	Status         TaskStatus   `json:"status"`
	Priority       int          `json:"priority"`
	AssignedWorker string       `json:"assigned_worker,omitempty"`
	Result         *QueryResult `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
	EnqueuedAt     time.Time    `json:"enqueued_at"`
	StartedAt      time.Time    `json:"started_at,omitzero"`
	CompletedAt    time.Time    `json:"completed_at,omitzero"`
}
