package schema

import (
	"fmt"

	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

// maxInvalidSamples caps the invalid values retained per field.
const maxInvalidSamples = 10

// Validate checks every record against every schema field, classifying
// null violations, type mismatches and constraint violations. The score is
// (checks - violations) / checks.
func (e *Engine) Validate(records []Record, schema *types.Schema) (*types.ValidationResult, error) {
	if schema == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidSchema, "validate: nil schema reference")
	}

	result := &types.ValidationResult{
		Valid:      true,
		Score:      1.0,
		FieldStats: make(map[string]*types.FieldValidation, len(schema.Fields)),
	}
	for i := range schema.Fields {
		result.FieldStats[schema.Fields[i].Name] = &types.FieldValidation{}
	}
	if len(records) == 0 || len(schema.Fields) == 0 {
		return result, nil
	}

	// Cross-record duplicate tracking for unique-constrained fields.
	seen := make(map[string]map[string]struct{})

	violations := 0
	for recIdx, rec := range records {
		flat := Flatten(rec)
		for i := range schema.Fields {
			field := &schema.Fields[i]
			stats := result.FieldStats[field.Name]
			stats.Checked++
			result.ChecksRun++

			value, present := flat[field.Name]
			if !present || value == nil {
				if !field.Nullable {
					violations++
					stats.NullViolations++
					result.Violations = append(result.Violations, types.Violation{
						Field:   field.Name,
						Kind:    types.ViolationNull,
						Record:  recIdx,
						Message: fmt.Sprintf("null value in non-nullable field %q", field.Name),
					})
				}
				continue
			}

			if !valueMatchesType(value, field.DataType) {
				violations++
				stats.TypeMismatches++
				if len(stats.InvalidSamples) < maxInvalidSamples {
					stats.InvalidSamples = append(stats.InvalidSamples, value)
				}
				result.Violations = append(result.Violations, types.Violation{
					Field:   field.Name,
					Kind:    types.ViolationType,
					Record:  recIdx,
					Message: fmt.Sprintf("value %v does not match type %s", value, field.DataType),
				})
				continue
			}

			if msg := checkConstraints(field, value, seen); msg != "" {
				violations++
				stats.ConstraintViolations++
				if len(stats.InvalidSamples) < maxInvalidSamples {
					stats.InvalidSamples = append(stats.InvalidSamples, value)
				}
				result.Violations = append(result.Violations, types.Violation{
					Field:   field.Name,
					Kind:    types.ViolationConstraint,
					Record:  recIdx,
					Message: msg,
				})
			}
		}
	}

	if result.ChecksRun > 0 {
		result.Score = float64(result.ChecksRun-violations) / float64(result.ChecksRun)
	}
	result.Valid = violations == 0

	e.metrics.Inc("schemas_validated")
	return result, nil
}

// valueMatchesType reports whether a concrete value conforms to a declared
// data type. Anything conforms to unknown, and decimal accepts integers.
func valueMatchesType(v interface{}, dt types.DataType) bool {
	switch dt {
	case types.TypeUnknown:
		return true
	case types.TypeDecimal:
		detected := DetectType(v)
		return detected == types.TypeDecimal || detected == types.TypeInteger
	case types.TypeString:
		// Date- and timestamp-shaped strings are still strings.
		_, ok := v.(string)
		return ok
	default:
		return DetectType(v) == dt
	}
}

// checkConstraints evaluates field constraints against one value and
// returns a violation message, or empty when the value conforms.
func checkConstraints(field *types.Field, value interface{}, seen map[string]map[string]struct{}) string {
	c := field.Constraints
	if c == nil {
		return ""
	}

	if f, ok := toFloat(value); ok {
		if c.MinValue != nil && f < *c.MinValue {
			return fmt.Sprintf("value %g below minimum %g for field %q", f, *c.MinValue, field.Name)
		}
		if c.MaxValue != nil && f > *c.MaxValue {
			return fmt.Sprintf("value %g above maximum %g for field %q", f, *c.MaxValue, field.Name)
		}
	}

	if s, ok := value.(string); ok {
		if c.MinLength != nil && len(s) < *c.MinLength {
			return fmt.Sprintf("length %d below minimum %d for field %q", len(s), *c.MinLength, field.Name)
		}
		if c.MaxLength != nil && len(s) > *c.MaxLength {
			return fmt.Sprintf("length %d above maximum %d for field %q", len(s), *c.MaxLength, field.Name)
		}
	}

	if c.Unique {
		key := fmt.Sprintf("%v", value)
		if seen[field.Name] == nil {
			seen[field.Name] = make(map[string]struct{})
		}
		if _, dup := seen[field.Name][key]; dup {
			return fmt.Sprintf("duplicate value %v in unique field %q", value, field.Name)
		}
		seen[field.Name][key] = struct{}{}
	}

	return ""
}
