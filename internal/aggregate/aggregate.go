// Package aggregate implements the Aggregation Engine (§4.3): within one
// batch, records sharing an aggregation key are collapsed into a single
// CanonicalLog carrying an aggregated_count and the first/last timestamps
// of the group. Records missing a key field pass through unaggregated.
package aggregate

import (
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/template"
)

// Item is one record queued for aggregation, paired with its receive time;
// the source name is passed to Process separately.
type Item struct {
	Raw       []byte
	ReceiveAt time.Time
}

const keySeparator = "\x1f"

// Process groups items by policy.KeyFields (when enabled) and returns the
// resulting CanonicalLog batch in first-occurrence order, which is also
// the batch's receive order since items must already be filtered and in
// receive order when this is called.
func Process(sourceName string, items []Item, policy model.AggregationPolicy) []model.CanonicalLog {
	if !policy.Enabled || len(policy.KeyFields) == 0 {
		out := make([]model.CanonicalLog, 0, len(items))
		for _, it := range items {
			out = append(out, model.NewCanonicalLog(sourceName, template.ParseEvent(it.Raw), it.ReceiveAt))
		}
		return out
	}

	type group struct {
		log   model.CanonicalLog
		count int
		first time.Time
		last  time.Time
	}

	order := make([]string, 0, len(items))
	groups := make(map[string]*group, len(items))

	for _, it := range items {
		fields := template.Extract(it.Raw)
		key, ok := aggregationKey(fields, policy.KeyFields)
		if !ok {
			// Missing key field: pass through unaggregated, using a
			// synthetic unique key so it never collapses with anything.
			key = keySeparator + "passthrough" + keySeparator + it.ReceiveAt.Format(time.RFC3339Nano) + keySeparator + strconv.Itoa(len(order))
			groups[key] = &group{
				log:   model.NewCanonicalLog(sourceName, template.ParseEvent(it.Raw), it.ReceiveAt),
				count: 1,
				first: it.ReceiveAt,
				last:  it.ReceiveAt,
			}
			order = append(order, key)
			continue
		}

		g, exists := groups[key]
		if !exists {
			g = &group{
				log:   model.NewCanonicalLog(sourceName, template.ParseEvent(it.Raw), it.ReceiveAt),
				count: 0,
				first: it.ReceiveAt,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		if it.ReceiveAt.Before(g.first) {
			g.first = it.ReceiveAt
		}
		if it.ReceiveAt.After(g.last) {
			g.last = it.ReceiveAt
		}
	}

	out := make([]model.CanonicalLog, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.count > 1 {
			g.log.Event = withAggregation(g.log.Event, g.count, g.first.Unix(), g.last.Unix())
		}
		out = append(out, g.log)
	}
	return out
}

// withAggregation folds the collapse count and first/last receive
// timestamps into the event payload itself, per §4.3/§8: a CanonicalLog's
// wire format always has exactly the three top-level keys time/event/source,
// so the aggregation metadata has to live inside event, not beside it.
func withAggregation(event any, count int, first, last int64) any {
	merged := map[string]any{
		"aggregated_count":      count,
		"aggregated_first_time": first,
		"aggregated_last_time":  last,
	}
	if obj, ok := event.(map[string]any); ok {
		for k, v := range obj {
			merged[k] = v
		}
		return merged
	}
	merged["value"] = event
	return merged
}

// aggregationKey builds the tuple of key-field values for a record. It
// returns ok=false if any key field is absent, per spec §4.3's pass-through
// rule for incomplete keys.
func aggregationKey(fields template.Fields, keyFields []string) (string, bool) {
	var b strings.Builder
	for i, name := range keyFields {
		v, ok := fields.Get(name)
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteString(keySeparator)
		}
		b.WriteString(v)
	}
	return b.String(), true
}
