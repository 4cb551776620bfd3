package listener

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Multiplexer owns one listening endpoint per distinct (protocol, port)
// pair and keeps each endpoint's peer-IP routing table in sync with the
// current source set (§4.1).
type Multiplexer struct {
	enq    Enqueuer
	logger *slog.Logger

	mu        sync.Mutex
	endpoints map[model.EndpointKey]endpoint
}

// NewMultiplexer returns an empty Multiplexer; call ReloadSources to bring
// up endpoints for the current source set.
func NewMultiplexer(enq Enqueuer, logger *slog.Logger) *Multiplexer {
	return &Multiplexer{
		enq:       enq,
		logger:    logger,
		endpoints: map[model.EndpointKey]endpoint{},
	}
}

// ReloadSources diffs the desired endpoint set against what is currently
// listening: endpoints no longer referenced by any source are closed
// gracefully, new ones are opened, and every surviving endpoint's routing
// table is swapped atomically. A bind failure for one endpoint is fatal
// only for that endpoint — accumulated into the returned error — and does
// not stop the rest of reconciliation (§4.1).
func (m *Multiplexer) ReloadSources(sources []*model.Source) error {
	desired := desiredEndpoints(sources)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, ep := range m.endpoints {
		if _, keep := desired[key]; !keep {
			if err := ep.Close(); err != nil {
				m.logger.Warn("error closing endpoint", slog.Any("endpoint", key), slog.Any("error", err))
			}
			delete(m.endpoints, key)
		}
	}

	var result *multierror.Error
	var mu sync.Mutex
	var g errgroup.Group

	for key := range desired {
		key := key
		if _, exists := m.endpoints[key]; exists {
			continue
		}
		g.Go(func() error {
			ep := newEndpoint(key, m.enq, m.logger)
			if err := ep.Start(); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("bind %s:%d: %w", key.Protocol, key.Port, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			m.endpoints[key] = ep
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for key, ep := range m.endpoints {
		ep.UpdateRouting(buildRoutingTable(sources, key))
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

func desiredEndpoints(sources []*model.Source) map[model.EndpointKey]struct{} {
	out := map[model.EndpointKey]struct{}{}
	for _, s := range sources {
		out[model.EndpointKey{Protocol: s.Protocol, Port: s.Port}] = struct{}{}
	}
	return out
}

func newEndpoint(key model.EndpointKey, enq Enqueuer, logger *slog.Logger) endpoint {
	if key.Protocol == model.ProtocolTCP {
		return newTCPEndpoint(key.Port, enq, logger)
	}
	return newUDPEndpoint(key.Port, enq, logger)
}

// Close gracefully shuts down every endpoint.
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ep := range m.endpoints {
		if err := ep.Close(); err != nil {
			m.logger.Warn("error closing endpoint on shutdown", slog.Any("endpoint", key), slog.Any("error", err))
		}
		delete(m.endpoints, key)
	}
}
