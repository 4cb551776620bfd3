// Package filter implements the Filter Engine (§4.4): a record is dropped
// when every enabled rule for its source matches; an absent field counts
// as a non-match, so the record is kept.
package filter

import (
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/template"
)

// Evaluate reports whether raw should be dropped given rules. An empty or
// all-disabled rule set never drops anything.
func Evaluate(raw []byte, rules []model.FilterRule) (drop bool) {
	enabled := 0
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		enabled++
	}
	if enabled == 0 {
		return false
	}

	fields := template.Extract(raw)
	matched := 0
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		value, ok := fields.Get(r.FieldName)
		if !ok {
			// Absent field: rule does not match, record is kept.
			return false
		}
		if value != r.MatchValue {
			return false
		}
		matched++
	}
	return matched == enabled
}
