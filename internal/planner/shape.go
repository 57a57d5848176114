package planner

import (
	"regexp"
	"strings"
)

// QueryShape is the pre-parsed logical structure the optimizer works on.
// Callers holding a real parse tree should build one directly; ShapeFromSQL
// derives an approximation from raw SQL text.
type QueryShape struct {
	// Tables referenced by the query, in order of appearance.
	Tables []string `json:"tables,omitempty"`

	// PredicateColumns are columns referenced in the WHERE clause.
	PredicateColumns []string `json:"predicate_columns,omitempty"`

	// Projections are the selected columns; empty means SELECT *.
	Projections []string `json:"projections,omitempty"`

	// TableScans counts full table scans in the base plan.
	TableScans int `json:"table_scans"`

	// IndexScans counts index scans in the base plan.
	IndexScans int `json:"index_scans"`

	// Joins counts join operations.
	Joins int `json:"joins"`

	// Aggregations counts aggregation operations.
	Aggregations int `json:"aggregations"`

	// HasWhere reports whether a WHERE clause is present.
	HasWhere bool `json:"has_where"`

	// HasTimeReference reports whether the query references a date or
	// timestamp column.
	HasTimeReference bool `json:"has_time_reference"`
}

var (
	fromRe      = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)
	joinRe      = regexp.MustCompile(`(?i)\bJOIN\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)
	predicateRe = regexp.MustCompile(`(?i)\bWHERE\s+(.+?)(?:\bGROUP\b|\bORDER\b|\bHAVING\b|\bLIMIT\b|$)`)
	columnRe    = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_.]*)\s*(?:=|<>|!=|<=|>=|<|>|\bIN\b|\bLIKE\b|\bBETWEEN\b)`)
	aggRe       = regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MIN|MAX|GROUP\s+BY)\b`)
	timeRe      = regexp.MustCompile(`(?i)(date|time|timestamp|_at\b|day|month|year)`)
)

// ShapeFromSQL derives a query shape from raw SQL text. This is keyword
// heuristics, not a parser; callers must not assume semantic correctness.
func ShapeFromSQL(sql string) QueryShape {
	shape := QueryShape{}
	upper := strings.ToUpper(sql)

	for _, m := range fromRe.FindAllStringSubmatch(sql, -1) {
		shape.Tables = append(shape.Tables, strings.ToLower(m[1]))
	}
	for _, m := range joinRe.FindAllStringSubmatch(sql, -1) {
		shape.Tables = append(shape.Tables, strings.ToLower(m[1]))
		shape.Joins++
	}

	// Every FROM target counts as one table scan in the base plan.
	shape.TableScans = len(fromRe.FindAllString(sql, -1))
	shape.Aggregations = len(aggRe.FindAllString(sql, -1))
	shape.HasWhere = strings.Contains(upper, "WHERE")
	shape.HasTimeReference = timeRe.MatchString(sql)

	if m := predicateRe.FindStringSubmatch(sql); m != nil {
		for _, c := range columnRe.FindAllStringSubmatch(m[1], -1) {
			col := strings.ToLower(c[1])
			if isKeyword(col) {
				continue
			}
			shape.PredicateColumns = append(shape.PredicateColumns, col)
		}
	}

	if cols := projectionList(sql); len(cols) > 0 {
		shape.Projections = cols
	}

	return shape
}

// projectionList extracts an explicit column list between SELECT and FROM.
// SELECT * yields nil.
func projectionList(sql string) []string {
	upper := strings.ToUpper(sql)
	start := strings.Index(upper, "SELECT")
	end := strings.Index(upper, "FROM")
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	body := strings.TrimSpace(sql[start+len("SELECT") : end])
	if body == "" || strings.HasPrefix(body, "*") {
		return nil
	}

	var cols []string
	for _, part := range strings.Split(body, ",") {
		col := strings.TrimSpace(part)
		if col != "" {
			cols = append(cols, strings.ToLower(col))
		}
	}
	return cols
}

func isKeyword(s string) bool {
	switch s {
	case "and", "or", "not", "in", "like", "between", "is", "null":
		return true
	}
	return false
}
