// Package template implements field extraction (used by both the Template
// Store and the Aggregation/Filter engines) and the per-source learned
// schema store.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Fields is an ordered extraction result: Order preserves the sequence
// fields were discovered in (for JSON input, the flattened paths sorted
// alphabetically), Values holds the string representation of each field
// (before type inference).
type Fields struct {
	Order  []string
	Values map[string]string
}

// Get returns the value for name and whether it was present.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f.Values[name]
	return v, ok
}

var (
	intPattern   = regexp.MustCompile(`^[-+]?\d+$`)
	floatPattern = regexp.MustCompile(`^[-+]?\d+\.\d+([eE][-+]?\d+)?$`)
)

// Extract runs the four field-extraction strategies in priority order,
// stopping at the first that yields at least one field:
//
//  1. JSON object -> recursive flatten with "."-joined paths.
//  2. key=value pairs, whitespace- or comma-separated; value may be quoted.
//  3. Colon-separated "key: value" lines.
//  4. Purely whitespace-separated positional tokens named field_1..field_n.
func Extract(raw []byte) Fields {
	if f, ok := extractJSON(raw); ok && len(f.Order) > 0 {
		return f
	}
	if f, ok := extractKeyValue(raw); ok && len(f.Order) > 0 {
		return f
	}
	if f, ok := extractColonPairs(raw); ok && len(f.Order) > 0 {
		return f
	}
	return extractPositional(raw)
}

func extractJSON(raw []byte) (Fields, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return Fields{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return Fields{}, false
	}
	f := Fields{Values: map[string]string{}}
	flattenJSON("", obj, &f)
	sort.Strings(f.Order)
	return f, true
}

func flattenJSON(prefix string, obj map[string]any, f *Fields) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := obj[k].(type) {
		case map[string]any:
			flattenJSON(path, v, f)
		default:
			f.Order = append(f.Order, path)
			f.Values[path] = stringify(v)
		}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// extractKeyValue parses "key=value" pairs separated by whitespace or
// commas; a value may be single- or double-quoted to embed spaces/commas.
func extractKeyValue(raw []byte) (Fields, bool) {
	s := string(raw)
	if !strings.Contains(s, "=") {
		return Fields{}, false
	}
	f := Fields{Values: map[string]string{}}
	i := 0
	n := len(s)
	for i < n {
		for i < n && (s[i] == ' ' || s[i] == ',' || s[i] == '\t') {
			i++
		}
		start := i
		for i < n && s[i] != '=' && s[i] != ' ' && s[i] != ',' && s[i] != '\t' {
			i++
		}
		if i >= n || s[i] != '=' {
			// no '=' found for this token; skip to next separator
			for i < n && s[i] != ' ' && s[i] != ',' && s[i] != '\t' {
				i++
			}
			continue
		}
		key := s[start:i]
		i++ // skip '='
		var value string
		if i < n && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			vstart := i
			for i < n && s[i] != quote {
				i++
			}
			value = s[vstart:i]
			if i < n {
				i++ // skip closing quote
			}
		} else {
			vstart := i
			for i < n && s[i] != ',' && s[i] != ' ' && s[i] != '\t' {
				i++
			}
			value = s[vstart:i]
		}
		if key != "" {
			if _, seen := f.Values[key]; !seen {
				f.Order = append(f.Order, key)
			}
			f.Values[key] = value
		}
	}
	return f, true
}

// extractColonPairs parses "key: value" lines. A line whose text before
// the first colon contains whitespace (e.g. a syslog timestamp) is not
// treated as a pair.
func extractColonPairs(raw []byte) (Fields, bool) {
	lines := strings.Split(string(raw), "\n")
	f := Fields{Values: map[string]string{}}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		if _, seen := f.Values[key]; !seen {
			f.Order = append(f.Order, key)
		}
		f.Values[key] = value
	}
	return f, len(f.Order) > 0
}

// extractPositional names purely whitespace-separated tokens field_1..field_n.
// This is the fallback of last resort and always "succeeds" for non-empty
// input.
func extractPositional(raw []byte) Fields {
	tokens := strings.Fields(string(raw))
	f := Fields{Values: map[string]string{}}
	for i, tok := range tokens {
		name := fmt.Sprintf("field_%d", i+1)
		f.Order = append(f.Order, name)
		f.Values[name] = tok
	}
	return f
}

// InferType classifies a raw string value per §4.3: integer, float,
// boolean (case-insensitive true/false), timestamp (ISO-8601 or a
// plausible Unix epoch), otherwise string.
func InferType(value string) model.FieldType {
	switch {
	case intPattern.MatchString(value):
		if looksLikeEpoch(value) {
			return model.FieldTimestamp
		}
		return model.FieldInt
	case floatPattern.MatchString(value):
		return model.FieldFloat
	case strings.EqualFold(value, "true"), strings.EqualFold(value, "false"):
		return model.FieldBool
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return model.FieldTimestamp
	}
	return model.FieldString
}

// looksLikeEpoch treats a purely-numeric value as a Unix epoch only when it
// falls in a plausible range (seconds since 2000-01-01 through 2100-01-01).
func looksLikeEpoch(value string) bool {
	n, err := strconv.ParseInt(strings.TrimPrefix(value, "+"), 10, 64)
	if err != nil {
		return false
	}
	const (
		y2000 = 946684800
		y2100 = 4102444800
	)
	return n >= y2000 && n <= y2100
}

// ParseEvent returns the "event" value of a CanonicalLog: the parsed JSON
// object when raw is a JSON object, otherwise the raw string.
func ParseEvent(raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
	}
	return string(raw)
}
