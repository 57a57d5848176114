package types

import "time"

// QueryType classifies a query for capability matching and cost modeling.
type QueryType string

const (
	QuerySelect     QueryType = "select"
	QueryAggregate  QueryType = "aggregate"
	QueryJoin       QueryType = "join"
	QueryWindow     QueryType = "window"
	QueryAnalytical QueryType = "analytical"
	QueryOLAP       QueryType = "olap"
)

// Priority is a query's declared scheduling priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Weight maps the priority to its numeric scheduling weight.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Query is one logical query submitted to the optimizer and executor.
type Query struct {
	ID         string                 `json:"id"`
	Type       QueryType              `json:"type"`
	SQL        string                 `json:"sql,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Priority   Priority               `json:"priority,omitempty"`
}

// Tier labels the execution venue chosen for a plan.
type Tier string

const (
	TierMemory      Tier = "memory"
	TierHot         Tier = "hot"
	TierDistributed Tier = "distributed"
)

// Impact grades how much an optimization is expected to help.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Discount returns the time-estimate discount contributed by the impact.
func (i Impact) Discount() float64 {
	switch i {
	case ImpactHigh:
		return 0.3
	case ImpactMedium:
		return 0.2
	default:
		return 0.1
	}
}

// Optimization records one rewrite rule applied to a plan.
type Optimization struct {
	Rule        string  `json:"rule"`
	Description string  `json:"description,omitempty"`
	Impact      Impact  `json:"impact"`
	CostFactor  float64 `json:"cost_factor"`
}

// Plan is the optimizer's chosen execution strategy for one query.
type Plan struct {
	ID            string         `json:"id"`
	Query         Query          `json:"query"`
	Tier          Tier           `json:"tier"`
	Indexes       []string       `json:"indexes,omitempty"`
	Parallelism   int            `json:"parallelism"`
	EstimatedCost float64        `json:"estimated_cost"`
	EstimatedTime time.Duration  `json:"estimated_time"`
	Optimizations []Optimization `json:"optimizations,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// QueryResult is the outcome of executing one query.
type QueryResult struct {
	QueryID  string                   `json:"query_id"`
	TaskID   string                   `json:"task_id,omitempty"`
	Rows     []map[string]interface{} `json:"rows,omitempty"`
	RowCount int                      `json:"row_count"`
	Duration time.Duration            `json:"duration"`
	Worker   string                   `json:"worker,omitempty"`
	Error    string                   `json:"error,omitempty"`
}
