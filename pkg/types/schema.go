// Package types defines the shared value types for the tidelake planning
// and execution core: schemas, partitions, queries, plans, workers and tasks.
package types

import "time"

// DataType identifies the inferred type of a field.
type DataType string

const (
	TypeString    DataType = "string"
	TypeInteger   DataType = "integer"
	TypeDecimal   DataType = "decimal"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeTimestamp DataType = "timestamp"
	TypeUnknown   DataType = "unknown"
)

// IsNumeric reports whether the type is integer or decimal.
func (t DataType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// Pattern is a semantic tag attached to a field when enough sampled values
// match a well-known shape.
type Pattern string

const (
	PatternEmail      Pattern = "email"
	PatternURL        Pattern = "url"
	PatternUUID       Pattern = "uuid"
	PatternIP         Pattern = "ip"
	PatternPhone      Pattern = "phone"
	PatternCreditCard Pattern = "credit_card"
)

// Constraints holds value constraints derived from a sample.
type Constraints struct {
	// MinValue and MaxValue bound numeric fields.
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`

	// MinLength and MaxLength bound string fields.
	MinLength *int `json:"min_length,omitempty"`
	MaxLength *int `json:"max_length,omitempty"`

	// Unique indicates every sampled non-null value was distinct.
	Unique bool `json:"unique,omitempty"`
}

// Field describes one column of an inferred schema. Name is a dot-path for
// nested keys (e.g. "address.city").
type Field struct {
	Name        string       `json:"name"`
	DataType    DataType     `json:"data_type"`
	Nullable    bool         `json:"nullable"`
	Confidence  float64      `json:"confidence"`
	Patterns    []Pattern    `json:"patterns,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// HasPattern reports whether the field carries the given semantic tag.
func (f *Field) HasPattern(p Pattern) bool {
	for _, fp := range f.Patterns {
		if fp == p {
			return true
		}
	}
	return false
}

// SchemaStatistics holds aggregate statistics computed during inference.
type SchemaStatistics struct {
	// RecommendedIndexes lists fields worth indexing.
	RecommendedIndexes []string `json:"recommended_indexes,omitempty"`

	// EstimatedSizeBytes is an extrapolated on-disk size for the full dataset.
	EstimatedSizeBytes int64 `json:"estimated_size_bytes"`

	// ComplexityScore grows with field count, nesting depth and type variety.
	ComplexityScore float64 `json:"complexity_score"`
}

// Schema is a typed description of a dataset, derived from a sample.
// Schemas are never mutated: evolution produces a new Schema with a
// bumped Version.
type Schema struct {
	ID         string            `json:"id"`
	DatasetID  string            `json:"dataset_id"`
	Fields     []Field           `json:"fields"`
	Confidence float64           `json:"confidence"`
	SampleSize int               `json:"sample_size"`
	Version    int               `json:"version"`
	InferredAt time.Time         `json:"inferred_at"`
	Statistics *SchemaStatistics `json:"statistics,omitempty"`
}

// FieldByName returns the field with the given dot-path name, or nil.
func (s *Schema) FieldByName(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// ViolationKind classifies a validation violation.
type ViolationKind string

const (
	ViolationNull       ViolationKind = "null_violation"
	ViolationType       ViolationKind = "type_mismatch"
	ViolationConstraint ViolationKind = "constraint_violation"
)

// Violation records one failed check during schema validation.
type Violation struct {
	Field   string        `json:"field"`
	Kind    ViolationKind `json:"kind"`
	Record  int           `json:"record"`
	Message string        `json:"message"`
}

// FieldValidation holds per-field validation counters and a capped sample
// of invalid values.
type FieldValidation struct {
	Checked              int           `json:"checked"`
	NullViolations       int           `json:"null_violations"`
	TypeMismatches       int           `json:"type_mismatches"`
	ConstraintViolations int           `json:"constraint_violations"`
	InvalidSamples       []interface{} `json:"invalid_samples,omitempty"`
}

// ValidationResult is the outcome of validating records against a schema.
type ValidationResult struct {
	Valid      bool                        `json:"valid"`
	Score      float64                     `json:"score"`
	ChecksRun  int                         `json:"checks_run"`
	Violations []Violation                 `json:"violations,omitempty"`
	FieldStats map[string]*FieldValidation `json:"field_stats"`
}

// ChangeKind classifies a schema change detected during evolution.
type ChangeKind string

const (
	ChangeFieldAdded   ChangeKind = "field_added"
	ChangeFieldRemoved ChangeKind = "field_removed"
	ChangeTypeChanged  ChangeKind = "type_changed"
)

// SchemaChange records one difference between two schema versions.
type SchemaChange struct {
	Kind  ChangeKind `json:"kind"`
	Field string     `json:"field"`
	From  DataType   `json:"from,omitempty"`
	To    DataType   `json:"to,omitempty"`
}

// EvolutionResult is the outcome of evolving a schema against new records.
type EvolutionResult struct {
	// Schema is the merged schema with Version bumped.
	Schema *Schema `json:"schema"`

	Changes            []SchemaChange `json:"changes,omitempty"`
	BackwardCompatible bool           `json:"backward_compatible"`

	// MigrationScript is populated only when the change is incompatible.
	MigrationScript string `json:"migration_script,omitempty"`
}
