package model

import "time"

// FieldType is the inferred type of a learned template field.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldInt       FieldType = "int"
	FieldFloat     FieldType = "float"
	FieldBool      FieldType = "bool"
	FieldTimestamp FieldType = "timestamp"
)

// TemplateField is one entry in a LogTemplate's ordered field list.
type TemplateField struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// LogTemplate is the per-source learned field schema, captured once from
// the first successfully-parsed log after template creation.
type LogTemplate struct {
	SourceID  string          `json:"source_id"`
	Fields    []TemplateField `json:"fields"`
	CreatedAt time.Time       `json:"created_at"`
}

// HasField reports whether name is present in the learned schema.
func (t *LogTemplate) HasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// AggregationPolicy groups duplicate logs within a batch by a key-set of
// template field names.
type AggregationPolicy struct {
	SourceID  string   `json:"source_id"`
	KeyFields []string `json:"key_fields"`
	Enabled   bool     `json:"enabled"`
}

// FilterRule drops logs whose extracted field matches match_value. A
// source's enabled rules are AND-ed: a record is dropped only when every
// enabled rule matches.
type FilterRule struct {
	FieldName  string `json:"field_name"`
	MatchValue string `json:"match_value"`
	Enabled    bool   `json:"enabled"`
}
