package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/tidelake/tidelake/pkg/types"
)

const (
	maxWorkerLoad = 100.0

	// emaOldWeight is the exponential-moving-average weight of the
	// previous value when folding in a new observation.
	emaOldWeight = 0.9
	emaNewWeight = 0.1
)

// workerPool owns the worker slice and the per-worker circuit breakers.
// All access goes through the pool's mutex.
type workerPool struct {
	mu       sync.RWMutex
	workers  []*types.Worker
	breakers map[string]*circuitBreaker

	loadIncrement float64
}

// newWorkerPool creates size workers, all active and idle.
func newWorkerPool(size, concurrency int, loadIncrement float64) *workerPool {
	p := &workerPool{
		breakers:      make(map[string]*circuitBreaker, size),
		loadIncrement: loadIncrement,
	}
	now := time.Now()
	for i := 0; i < size; i++ {
		w := &types.Worker{
			ID:     fmt.Sprintf("worker-%d", i),
			Status: types.WorkerActive,
			Capabilities: types.WorkerCapabilities{
				QueryTypes: []types.QueryType{
					types.QuerySelect, types.QueryAggregate, types.QueryJoin,
					types.QueryWindow, types.QueryAnalytical, types.QueryOLAP,
				},
				MaxConcurrency: concurrency,
				MaxMemoryMB:    1024,
			},
			Performance:   types.WorkerPerformance{SuccessRate: 1},
			LastHeartbeat: now,
		}
		p.workers = append(p.workers, w)
		p.breakers[w.ID] = newCircuitBreaker()
	}
	return p
}

// eligible returns value copies of workers that are active, under their
// concurrency cap, and whose circuit breaker looks ready. The breaker's
// probe slot is only reserved at assignment time via admit.
func (p *workerPool) eligible() []types.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []types.Worker
	for _, w := range p.workers {
		if w.Status != types.WorkerActive {
			continue
		}
		if w.TasksActive >= w.Capabilities.MaxConcurrency {
			continue
		}
		if !p.breakers[w.ID].Ready() {
			continue
		}
		out = append(out, *w)
	}
	return out
}

// admit reserves the worker's circuit breaker for one task.
func (p *workerPool) admit(workerID string) bool {
	p.mu.RLock()
	b := p.breakers[workerID]
	p.mu.RUnlock()
	if b == nil {
		return false
	}
	return b.Allow()
}

// assign marks a worker as carrying one more task.
func (p *workerPool) assign(workerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.find(workerID)
	if w == nil {
		return
	}
	w.TasksActive++
	w.CurrentLoad += p.loadIncrement
	if w.CurrentLoad > maxWorkerLoad {
		w.CurrentLoad = maxWorkerLoad
	}
}

// release undoes an assignment that never executed. The breaker's probe
// slot reserved by admit is returned; no outcome is recorded.
func (p *workerPool) release(workerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.find(workerID)
	if w == nil {
		return
	}
	if w.TasksActive > 0 {
		w.TasksActive--
	}
	w.CurrentLoad -= p.loadIncrement
	if w.CurrentLoad < 0 {
		w.CurrentLoad = 0
	}
	if b := p.breakers[workerID]; b != nil {
		b.Cancel()
	}
}

// complete records one finished task: symmetric load decrement, EMA
// updates for response time and error rate, and a heartbeat touch.
func (p *workerPool) complete(workerID string, duration time.Duration, failed bool) {
	p.mu.Lock()
	w := p.find(workerID)
	if w == nil {
		p.mu.Unlock()
		return
	}

	if w.TasksActive > 0 {
		w.TasksActive--
	}
	w.CurrentLoad -= p.loadIncrement
	if w.CurrentLoad < 0 {
		w.CurrentLoad = 0
	}
	w.TasksCompleted++
	w.LastHeartbeat = time.Now()

	perf := &w.Performance
	if perf.AvgResponseTime == 0 {
		perf.AvgResponseTime = duration
	} else {
		perf.AvgResponseTime = time.Duration(
			emaOldWeight*float64(perf.AvgResponseTime) + emaNewWeight*float64(duration))
	}
	observed := 0.0
	if failed {
		observed = 1.0
	}
	perf.ErrorRate = emaOldWeight*perf.ErrorRate + emaNewWeight*observed
	perf.SuccessRate = 1 - perf.ErrorRate
	p.mu.Unlock()

	p.breakers[workerID].Record(failed)
}

// heartbeat records a liveness signal for a worker. A failed worker that
// heartbeats again is restored to active.
func (p *workerPool) heartbeat(workerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.find(workerID)
	if w == nil {
		return
	}
	w.LastHeartbeat = time.Now()
	if w.Status == types.WorkerFailed {
		w.Status = types.WorkerActive
	}
}

// markStale fails every active worker whose last heartbeat is older than
// the staleness window, returning the ids it failed.
func (p *workerPool) markStale(staleness time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var failed []string
	cutoff := time.Now().Add(-staleness)
	for _, w := range p.workers {
		if w.Status == types.WorkerActive && w.LastHeartbeat.Before(cutoff) {
			w.Status = types.WorkerFailed
			failed = append(failed, w.ID)
		}
	}
	return failed
}

// snapshot returns value copies of every worker.
func (p *workerPool) snapshot() []types.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.Worker, len(p.workers))
	for i, w := range p.workers {
		out[i] = *w
	}
	return out
}

// breakerState returns the circuit state for a worker.
func (p *workerPool) breakerState(workerID string) breakerState {
	p.mu.RLock()
	b := p.breakers[workerID]
	p.mu.RUnlock()
	if b == nil {
		return breakerClosed
	}
	return b.State()
}

func (p *workerPool) find(workerID string) *types.Worker {
	for _, w := range p.workers {
		if w.ID == workerID {
			return w
		}
	}
	return nil
}
