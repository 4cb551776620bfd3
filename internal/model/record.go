package model

import "time"

// Record is a raw log as received off the wire, before parsing.
type Record struct {
	SourceID  string
	Raw       []byte
	ReceiveAt time.Time
}

// CanonicalLog is the normalized record produced before delivery to a sink.
// Per §8 Invariant 6 it always serializes to exactly these three keys; the
// Aggregation Engine's count and first/last timestamps are folded into the
// Event payload itself (see aggregate.Process), never carried as sibling
// struct fields.
type CanonicalLog struct {
	Time   int64  `json:"time"`
	Event  any    `json:"event"`
	Source string `json:"source"`
}

// NewCanonicalLog builds a CanonicalLog from a parsed event at the given
// receive time.
func NewCanonicalLog(sourceName string, event any, at time.Time) CanonicalLog {
	return CanonicalLog{
		Time:   at.Unix(),
		Event:  event,
		Source: sourceName,
	}
}
