package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

// Complexity grades a query by its structural keyword count.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Analysis is the standalone structural report for one query.
type Analysis struct {
	QueryID         string     `json:"query_id"`
	Complexity      Complexity `json:"complexity"`
	KeywordCount    int        `json:"keyword_count"`
	TableScans      int        `json:"table_scans"`
	Joins           int        `json:"joins"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

var complexityRe = regexp.MustCompile(`(?i)\bJOIN\b|\bGROUP\s+BY\b|\bORDER\s+BY\b|\bHAVING\b|\(\s*SELECT\b`)

// Analyze reports the query's complexity and textual recommendations. It
// never consults or populates the plan cache.
func (o *Optimizer) Analyze(query *types.Query) (*Analysis, error) {
	if query == nil || query.SQL == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidQuery, "query SQL is required")
	}

	shape := ShapeFromSQL(query.SQL)
	count := len(complexityRe.FindAllString(query.SQL, -1))

	analysis := &Analysis{
		QueryID:      query.ID,
		KeywordCount: count,
		TableScans:   shape.TableScans,
		Joins:        shape.Joins,
	}
	switch {
	case count >= 4:
		analysis.Complexity = ComplexityHigh
	case count >= 2:
		analysis.Complexity = ComplexityMedium
	default:
		analysis.Complexity = ComplexityLow
	}

	if analysis.Complexity == ComplexityHigh {
		analysis.Recommendations = append(analysis.Recommendations,
			"consider splitting the query or materializing intermediate results")
		if shape.Joins > 1 {
			analysis.Recommendations = append(analysis.Recommendations,
				fmt.Sprintf("%d joins detected; verify join order and indexes on join keys", shape.Joins))
		}
	}
	if shape.TableScans > 3 {
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("%d table scans detected; add indexes or narrow the table list", shape.TableScans))
	}
	if !shape.HasWhere && strings.Contains(strings.ToUpper(query.SQL), "FROM") {
		analysis.Recommendations = append(analysis.Recommendations,
			"unfiltered scan; add a WHERE clause to enable pruning")
	}

	o.metrics.Inc("queries_analyzed")
	return analysis, nil
}

// QueryTypeOf classifies raw SQL text for callers that submit queries
// without a declared type.
func QueryTypeOf(sql string) types.QueryType {
	upper := strings.ToUpper(sql)
	switch {
	case strings.Contains(upper, "JOIN"):
		return types.QueryJoin
	case strings.Contains(upper, "GROUP BY") || ShapeFromSQL(sql).Aggregations > 0:
		return types.QueryAggregate
	default:
		return types.QuerySelect
	}
}
