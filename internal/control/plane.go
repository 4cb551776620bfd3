// Package control implements the Control Plane (§4.6): the single point
// that diffs desired vs current source state and drives Listener
// Multiplexer and Processor Pool reconciliation, plus the metrics()
// aggregation and graceful drain-on-shutdown sequence.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/logflow/internal/listener"
	"github.com/telhawk-systems/logflow/internal/metrics"
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/processor"
	"github.com/telhawk-systems/logflow/internal/store"
	"github.com/telhawk-systems/logflow/internal/template"
)

// retryFlushInterval is how often parked retry-buffer batches are
// re-attempted.
const retryFlushInterval = 5 * time.Second

// Plane wires the Configuration Store, Template Store, Processor Pool
// manager, and Listener Multiplexer behind the narrow capability
// interfaces of spec.md §9, and exposes start/stop/reload/metrics plus
// source CRUD.
type Plane struct {
	dataDir       string
	drainDeadline time.Duration

	confStore     *store.Store
	templateStore *template.Store
	manager       *processor.Manager
	mux           *listener.Multiplexer
	logger        *slog.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Plane. dataDir holds sources.json / templates/ /
// aggregation/ / filters/ as described in spec.md §6.
func New(fs afero.Fs, dataDir string, logger *slog.Logger) (*Plane, error) {
	confStore, err := store.New(fs, dataDir)
	if err != nil {
		return nil, fmt.Errorf("control: init configuration store: %w", err)
	}
	templateStore, err := template.NewStore(fs, dataDir)
	if err != nil {
		return nil, fmt.Errorf("control: init template store: %w", err)
	}

	manager := processor.NewManager(fs, confStore, templateStore, logger)
	mux := listener.NewMultiplexer(managerEnqueuer{manager}, logger)

	return &Plane{
		dataDir:       dataDir,
		drainDeadline: 10 * time.Second,
		confStore:     confStore,
		templateStore: templateStore,
		manager:       manager,
		mux:           mux,
		logger:        logger,
	}, nil
}

// managerEnqueuer adapts processor.Manager's richer Enqueue signature to
// the listener package's Enqueuer capability interface.
type managerEnqueuer struct{ m *processor.Manager }

func (e managerEnqueuer) Enqueue(sourceID string, raw []byte, receivedAt time.Time) bool {
	return e.m.Enqueue(sourceID, raw, receivedAt)
}

// Start reconciles listeners and processor pools against the persisted
// source set and begins the periodic retry-buffer flush.
func (p *Plane) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true
	p.stopCh = make(chan struct{})

	if err := p.reloadLocked(); err != nil {
		p.logger.Warn("reload during start reported errors", slog.Any("error", err))
	}

	p.wg.Add(1)
	go p.retryFlushLoop()

	return nil
}

func (p *Plane) retryFlushLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(retryFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.manager.FlushRetryBuffers()
		case <-p.stopCh:
			return
		}
	}
}

// Reload diffs the current source set (as loaded from the Configuration
// Store) against what listeners/processors currently run, and drives both
// reconciliations in parallel (§4.1, §4.2).
func (p *Plane) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloadLocked()
}

func (p *Plane) reloadLocked() error {
	sources := p.confStore.Snapshot()

	var g errgroup.Group
	g.Go(func() error { return p.manager.ReloadSources(sources) })
	g.Go(func() error { return p.mux.ReloadSources(sources) })
	return g.Wait()
}

// Stop performs the graceful drain-on-shutdown sequence: listeners stop
// accepting new data first, then processor pools drain up to their
// deadline, then the retry-flush loop stops.
func (p *Plane) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}

	p.mux.Close()
	p.manager.Stop()

	close(p.stopCh)
	p.wg.Wait()

	p.started = false
	return nil
}

// AddSource validates and persists a new source, then reconciles.
func (p *Plane) AddSource(src *model.Source) error {
	if err := p.confStore.Add(src); err != nil {
		return err
	}
	return p.Reload()
}

// UpdateSource atomically replaces a source's config, then reconciles.
func (p *Plane) UpdateSource(src *model.Source) error {
	if err := p.confStore.Update(src); err != nil {
		return err
	}
	return p.Reload()
}

// DeleteSource removes a source (and its learned template) after
// reconciling listeners/pools away from it.
func (p *Plane) DeleteSource(id string) error {
	if err := p.confStore.Delete(id); err != nil {
		return err
	}
	if err := p.Reload(); err != nil {
		p.logger.Warn("reload after delete reported errors", slog.Any("error", err))
	}
	return p.templateStore.Delete(id)
}

// SetAggregationPolicy hot-updates a source's aggregation policy; the
// processor picks it up at the start of the next batch (§4.3).
func (p *Plane) SetAggregationPolicy(policy model.AggregationPolicy) error {
	return p.confStore.SetAggregationPolicy(policy)
}

// SetFilterRules hot-updates a source's filter rules (§4.4).
func (p *Plane) SetFilterRules(sourceID string, rules []model.FilterRule) error {
	return p.confStore.SetFilterRules(sourceID, rules)
}

// Metrics is the metrics() control API operation: per-source counters plus
// a system-wide CPU/mem/disk/net snapshot (§4.6).
type Metrics struct {
	Sources []metrics.Snapshot     `json:"sources"`
	System  metrics.SystemSnapshot `json:"system"`
}

// Metrics returns the current metrics snapshot.
func (p *Plane) Metrics(ctx context.Context) Metrics {
	return Metrics{
		Sources: p.manager.ReportMetrics(),
		System:  metrics.CollectSystemSnapshot(ctx, p.dataDir),
	}
}

// Sources returns the current source set.
func (p *Plane) Sources() []*model.Source {
	return p.confStore.Snapshot()
}
