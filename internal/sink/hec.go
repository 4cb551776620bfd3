package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/telhawk-systems/logflow/internal/model"
)

// maxHECConnections bounds concurrent outbound requests to one HEC
// endpoint, per §5 ("HTTP connections are pooled per HEC endpoint (max 4
// concurrent)").
const maxHECConnections = 4

// HEC delivers batches to a Splunk-style HTTP Event Collector endpoint.
type HEC struct {
	url    string
	token  string
	client *http.Client
	sem    *semaphore.Weighted
}

// NewHEC constructs an HEC sink. connectTimeout/readTimeout follow §4.5's
// 5s connect / 30s read defaults.
func NewHEC(cfg model.HECTarget) *HEC {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: maxHECConnections,
	}
	return &HEC{
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		sem: semaphore.NewWeighted(maxHECConnections),
	}
}

// Deliver POSTs the batch as newline-concatenated CanonicalLog JSON. HTTP
// 2xx is success. 408/429/5xx and network errors are retryable; other 4xx
// are permanent failures (§4.5, §7).
func (h *HEC) Deliver(ctx context.Context, batch []model.CanonicalLog) error {
	if len(batch) == 0 {
		return nil
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return Retryable(fmt.Errorf("hec sink: acquire connection slot: %w", err))
	}
	defer h.sem.Release(1)

	body, err := encodeBatch(batch)
	if err != nil {
		return fmt.Errorf("hec sink: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hec sink: build request: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Retryable(fmt.Errorf("hec sink: request: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return Retryable(fmt.Errorf("hec sink: retryable status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return Retryable(fmt.Errorf("hec sink: server error %d", resp.StatusCode))
	default:
		return fmt.Errorf("hec sink: permanent failure, status %d", resp.StatusCode)
	}
}

// Close releases the sink's idle connections.
func (h *HEC) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
