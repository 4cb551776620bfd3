// Package sink implements the two delivery targets a Source can point at:
// a local/network filesystem folder (§4.5 Folder sink) and a Splunk-style
// HTTP Event Collector endpoint (§4.5 HEC sink).
package sink

import (
	"context"
	"encoding/json"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Sink delivers one batch of CanonicalLog records. A returned error is
// classified by the caller (see IsRetryable) to decide between the
// exponential-backoff retry path and the drop-and-log path of §7.
type Sink interface {
	Deliver(ctx context.Context, batch []model.CanonicalLog) error
	Close() error
}

// retryableError marks an error as belonging to §7's "Sink transient"
// class: HEC 5xx/408/429, network errors, or a retryable disk error.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// Retryable wraps err so IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err belongs to §7's Sink transient class.
func IsRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

// encodeBatch renders a CanonicalLog batch as newline-delimited JSON, one
// object per line, no trailing newline required by the wire format (§6).
func encodeBatch(batch []model.CanonicalLog) ([]byte, error) {
	var buf []byte
	for i, log := range batch {
		line, err := json.Marshal(log)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, line...)
	}
	return buf, nil
}
