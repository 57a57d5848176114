package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidelake/tidelake/internal/errors"
	"github.com/tidelake/tidelake/pkg/types"
)

// compatibleTypeChanges is the allow-list of backward-compatible type
// widenings. Any type change outside this list breaks compatibility.
var compatibleTypeChanges = map[types.DataType][]types.DataType{
	types.TypeInteger: {types.TypeDecimal, types.TypeString},
	types.TypeDecimal: {types.TypeString},
	types.TypeDate:    {types.TypeTimestamp, types.TypeString},
	types.TypeBoolean: {types.TypeString},
}

// Evolve re-infers a schema from new records, diffs it against the old
// schema, and produces a merged superseding schema. The old schema is not
// mutated. The change is backward-compatible unless a field was removed or
// a type change is not on the allow-list; a migration script is emitted
// only when compatibility fails.
func (e *Engine) Evolve(old *types.Schema, newRecords []Record) (*types.EvolutionResult, error) {
	if old == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidSchema, "evolve: nil schema reference")
	}

	inferred, err := e.Infer(newRecords, FormatJSON, old.DatasetID)
	if err != nil {
		return nil, errors.NewInternalError("evolve: re-inference failed", err)
	}

	result := &types.EvolutionResult{BackwardCompatible: true}

	oldFields := make(map[string]*types.Field, len(old.Fields))
	for i := range old.Fields {
		oldFields[old.Fields[i].Name] = &old.Fields[i]
	}
	newFields := make(map[string]*types.Field, len(inferred.Fields))
	for i := range inferred.Fields {
		newFields[inferred.Fields[i].Name] = &inferred.Fields[i]
	}

	merged := &types.Schema{
		ID:         uuid.New().String(),
		DatasetID:  old.DatasetID,
		SampleSize: inferred.SampleSize,
		Version:    old.Version + 1,
		InferredAt: time.Now(),
		Statistics: inferred.Statistics,
	}

	// Fields present before: merged with their new shape, or retained as
	// nullable when removed.
	for i := range old.Fields {
		oldField := &old.Fields[i]
		newField, present := newFields[oldField.Name]
		if !present {
			result.BackwardCompatible = false
			result.Changes = append(result.Changes, types.SchemaChange{
				Kind:  types.ChangeFieldRemoved,
				Field: oldField.Name,
				From:  oldField.DataType,
			})
			retained := *oldField
			retained.Nullable = true
			merged.Fields = append(merged.Fields, retained)
			continue
		}

		if newField.DataType != oldField.DataType {
			result.Changes = append(result.Changes, types.SchemaChange{
				Kind:  types.ChangeTypeChanged,
				Field: oldField.Name,
				From:  oldField.DataType,
				To:    newField.DataType,
			})
			if !typeChangeAllowed(oldField.DataType, newField.DataType) {
				result.BackwardCompatible = false
			}
		}

		merged.Fields = append(merged.Fields, mergeField(oldField, newField))
	}

	// Fields newly observed: always compatible.
	for i := range inferred.Fields {
		newField := &inferred.Fields[i]
		if _, existed := oldFields[newField.Name]; existed {
			continue
		}
		result.Changes = append(result.Changes, types.SchemaChange{
			Kind:  types.ChangeFieldAdded,
			Field: newField.Name,
			To:    newField.DataType,
		})
		added := *newField
		added.Nullable = true
		merged.Fields = append(merged.Fields, added)
	}

	var confidenceSum float64
	for i := range merged.Fields {
		confidenceSum += merged.Fields[i].Confidence
	}
	if len(merged.Fields) > 0 {
		merged.Confidence = confidenceSum / float64(len(merged.Fields))
	}

	result.Schema = merged
	if !result.BackwardCompatible {
		result.MigrationScript = migrationScript(old.DatasetID, result.Changes)
	}

	e.metrics.Inc("schemas_evolved")
	e.logger.Info("schema evolved",
		"dataset", old.DatasetID,
		"version", merged.Version,
		"changes", len(result.Changes),
		"compatible", result.BackwardCompatible)

	return result, nil
}

// mergeField combines the old and new shape of one field: nullable is the
// union, confidence is the max, the type and constraints follow the new
// observation.
func mergeField(oldField, newField *types.Field) types.Field {
	merged := *newField
	merged.Nullable = oldField.Nullable || newField.Nullable
	if oldField.Confidence > merged.Confidence {
		merged.Confidence = oldField.Confidence
	}
	return merged
}

// typeChangeAllowed reports whether the from→to change is on the allow-list.
func typeChangeAllowed(from, to types.DataType) bool {
	for _, allowed := range compatibleTypeChanges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// migrationScript renders the incompatible changes as migration steps.
func migrationScript(datasetID string, changes []types.SchemaChange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- migration for dataset %s\n", datasetID)
	for _, ch := range changes {
		switch ch.Kind {
		case types.ChangeFieldRemoved:
			fmt.Fprintf(&b, "ALTER TABLE %s DROP COLUMN %s;\n", datasetID, ch.Field)
		case types.ChangeTypeChanged:
			if !typeChangeAllowed(ch.From, ch.To) {
				fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s TYPE %s; -- was %s, verify data\n",
					datasetID, ch.Field, ch.To, ch.From)
			}
		case types.ChangeFieldAdded:
			fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s;\n", datasetID, ch.Field, ch.To)
		}
	}
	return b.String()
}
