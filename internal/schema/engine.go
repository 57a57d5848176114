// Package schema provides schema inference, validation and evolution over
// samples of semi-structured records.
package schema

import (
	"encoding/json"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/observability"
	"github.com/tidelake/tidelake/pkg/types"
)

// Format identifies the shape of the input records.
type Format string

const (
	// FormatJSON marks structured records: nested objects are flattened
	// into dot-path fields.
	FormatJSON Format = "json"

	// FormatCSV marks tabular records: fields come from the header keys,
	// no flattening.
	FormatCSV Format = "csv"
)

// Record is one semi-structured input record.
type Record = map[string]interface{}

// Engine infers, validates and evolves schemas.
type Engine struct {
	cfg     config.InferenceConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine creates a schema inference engine.
func NewEngine(cfg config.InferenceConfig, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Engine{cfg: cfg, logger: logger, metrics: metrics}
}

// Infer derives a typed schema from a sample of records. Empty input yields
// a zero-confidence empty schema, never an error.
func (e *Engine) Infer(records []Record, format Format, datasetID string) (*types.Schema, error) {
	started := time.Now()
	defer func() { e.metrics.Observe("schema_infer", time.Since(started)) }()

	schema := &types.Schema{
		ID:         uuid.New().String(),
		DatasetID:  datasetID,
		Version:    1,
		InferredAt: time.Now(),
	}
	if len(records) == 0 {
		return schema, nil
	}

	sample := e.sample(records)
	schema.SampleSize = len(sample)

	names, valuesByField := collectFields(sample, format)

	var confidenceSum float64
	for _, name := range names {
		field := e.inferField(name, valuesByField[name], len(sample))
		confidenceSum += field.Confidence
		schema.Fields = append(schema.Fields, field)
	}
	if len(schema.Fields) > 0 {
		schema.Confidence = confidenceSum / float64(len(schema.Fields))
	}

	schema.Statistics = e.statistics(schema, sample, len(records))

	e.metrics.Inc("schemas_inferred")
	e.logger.Debug("schema inferred",
		"dataset", datasetID,
		"fields", len(schema.Fields),
		"confidence", schema.Confidence,
		"sample_size", schema.SampleSize)

	return schema, nil
}

// sample selects up to SampleSize records: a deterministic stride over large
// inputs, with random fill if the stride pass comes up short.
func (e *Engine) sample(records []Record) []Record {
	target := e.cfg.SampleSize
	if target <= 0 || len(records) <= target {
		return records
	}

	stride := len(records) / target
	sample := make([]Record, 0, target)
	for i := 0; i < target; i++ {
		sample = append(sample, records[i*stride])
	}
	for len(sample) < target {
		sample = append(sample, records[rand.Intn(len(records))])
	}
	return sample
}

// collectFields gathers per-field value slices across the sample. Missing
// keys and explicit nils both contribute a nil entry so null fractions can
// be computed per field. Field order is first-seen, with keys sorted within
// each record for determinism.
func collectFields(sample []Record, format Format) ([]string, map[string][]interface{}) {
	var names []string
	values := make(map[string][]interface{})

	flat := make([]map[string]interface{}, len(sample))
	for i, rec := range sample {
		if format == FormatCSV {
			flat[i] = rec
		} else {
			flat[i] = Flatten(rec)
		}

		keys := make([]string, 0, len(flat[i]))
		for k := range flat[i] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, seen := values[k]; !seen {
				names = append(names, k)
				values[k] = nil
			}
		}
	}

	// One pass per field so absent keys count as nulls.
	for _, name := range names {
		for _, rec := range flat {
			v, ok := rec[name]
			if !ok {
				values[name] = append(values[name], nil)
				continue
			}
			values[name] = append(values[name], v)
		}
	}

	return names, values
}

// Flatten converts nested objects into a flat map keyed by dot-paths.
func Flatten(record Record) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto("", record, out)
	return out
}

func flattenInto(prefix string, record map[string]interface{}, out map[string]interface{}) {
	for k, v := range record {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// inferField determines one field's type, nullability, patterns and
// constraints from its sampled values.
func (e *Engine) inferField(name string, observed []interface{}, sampleCount int) types.Field {
	var nonNull []interface{}
	for _, v := range observed {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}

	nullFraction := 0.0
	if sampleCount > 0 {
		nullFraction = float64(sampleCount-len(nonNull)) / float64(sampleCount)
	}

	field := types.Field{
		Name:     name,
		DataType: types.TypeUnknown,
		Nullable: nullFraction > e.cfg.NullThreshold,
	}
	if len(nonNull) == 0 {
		field.Nullable = true
		return field
	}

	field.DataType, field.Confidence = e.dominantType(nonNull)
	if field.DataType == types.TypeString {
		field.Patterns = detectPatterns(nonNull, e.cfg.PatternThreshold)
	}
	field.Constraints = deriveConstraints(field.DataType, nonNull)

	return field
}

// dominantType picks the majority type over non-null values. When no type
// reaches the confidence threshold and the values are a numeric/string mix,
// the numeric type wins if it covers more than half of the values.
func (e *Engine) dominantType(values []interface{}) (types.DataType, float64) {
	votes := make(map[types.DataType]int)
	for _, v := range values {
		votes[DetectType(v)]++
	}

	var winner types.DataType
	var best int
	for dt, n := range votes {
		if n > best {
			winner, best = dt, n
		}
	}

	confidence := float64(best) / float64(len(values))
	if confidence >= e.cfg.ConfidenceThreshold {
		return winner, confidence
	}

	// Numeric promotion over mixed numeric/string samples.
	numeric := votes[types.TypeInteger] + votes[types.TypeDecimal]
	if votes[types.TypeString] > 0 && numeric*2 > len(values) {
		promoted := types.TypeInteger
		if votes[types.TypeDecimal] > 0 {
			promoted = types.TypeDecimal
		}
		return promoted, float64(numeric) / float64(len(values))
	}

	return winner, confidence
}

// DetectType classifies a single value.
func DetectType(v interface{}) types.DataType {
	switch val := v.(type) {
	case bool:
		return types.TypeBoolean
	case int, int8, int16, int32, int64, uint, uint32, uint64:
		return types.TypeInteger
	case float32:
		return floatType(float64(val))
	case float64:
		return floatType(val)
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return types.TypeInteger
		}
		return types.TypeDecimal
	case time.Time:
		return types.TypeTimestamp
	case string:
		if dateRe.MatchString(val) {
			return types.TypeDate
		}
		if _, err := time.Parse(time.RFC3339, val); err == nil {
			return types.TypeTimestamp
		}
		return types.TypeString
	default:
		return types.TypeUnknown
	}
}

// floatType treats whole floats as integers; JSON decoding produces float64
// for every number.
func floatType(f float64) types.DataType {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return types.TypeInteger
	}
	return types.TypeDecimal
}

// deriveConstraints computes min/max or length bounds plus uniqueness from
// the sampled non-null values.
func deriveConstraints(dt types.DataType, values []interface{}) *types.Constraints {
	c := &types.Constraints{}
	populated := false

	if dt.IsNumeric() {
		var minV, maxV float64
		first := true
		for _, v := range values {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			if first {
				minV, maxV = f, f
				first = false
				continue
			}
			if f < minV {
				minV = f
			}
			if f > maxV {
				maxV = f
			}
		}
		if !first {
			c.MinValue, c.MaxValue = &minV, &maxV
			populated = true
		}
	}

	if dt == types.TypeString || dt == types.TypeDate || dt == types.TypeTimestamp {
		var minL, maxL int
		first := true
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			l := len(s)
			if first {
				minL, maxL = l, l
				first = false
				continue
			}
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
		}
		if !first {
			c.MinLength, c.MaxLength = &minL, &maxL
			populated = true
		}
	}

	if len(values) > 1 {
		distinct := make(map[string]struct{}, len(values))
		for _, v := range values {
			b, _ := json.Marshal(v)
			distinct[string(b)] = struct{}{}
		}
		if len(distinct) == len(values) {
			c.Unique = true
			populated = true
		}
	}

	if !populated {
		return nil
	}
	return c
}

// toFloat converts any supported numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// statistics computes aggregate schema statistics: recommended indexes,
// an on-disk size estimate from a compressed sample, and a complexity score.
func (e *Engine) statistics(schema *types.Schema, sample []Record, totalRecords int) *types.SchemaStatistics {
	stats := &types.SchemaStatistics{}

	for i := range schema.Fields {
		f := &schema.Fields[i]
		if f.Constraints != nil && f.Constraints.Unique {
			stats.RecommendedIndexes = append(stats.RecommendedIndexes, f.Name)
			continue
		}
		if f.HasPattern(types.PatternUUID) {
			stats.RecommendedIndexes = append(stats.RecommendedIndexes, f.Name)
		}
	}

	// Extrapolate on-disk size from a snappy-compressed sample.
	if raw, err := json.Marshal(sample); err == nil && len(sample) > 0 {
		compressed := snappy.Encode(nil, raw)
		perRecord := float64(len(compressed)) / float64(len(sample))
		stats.EstimatedSizeBytes = int64(perRecord * float64(totalRecords))
	}

	depth := 0
	typesSeen := make(map[types.DataType]struct{})
	for _, f := range schema.Fields {
		d := 1
		for _, ch := range f.Name {
			if ch == '.' {
				d++
			}
		}
		if d > depth {
			depth = d
		}
		typesSeen[f.DataType] = struct{}{}
	}
	stats.ComplexityScore = float64(len(schema.Fields)) + 2*float64(depth-1) + float64(len(typesSeen))
	if len(schema.Fields) == 0 {
		stats.ComplexityScore = 0
	}

	return stats
}
