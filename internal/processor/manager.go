package processor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/logflow/internal/metrics"
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/sink"
	"github.com/telhawk-systems/logflow/internal/store"
	"github.com/telhawk-systems/logflow/internal/template"
)

// Manager owns one Pool per active source and provides the Enqueue,
// ReloadSources and ReportMetrics capabilities the control plane wires
// together (spec.md §9); of these, only Enqueue is consumed through a
// declared interface (listener.Enqueuer, via control's adapter).
type Manager struct {
	fs            afero.Fs
	confStore     *store.Store
	templateStore *template.Store
	logger        *slog.Logger

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager returns an empty Manager; call ReloadSources to bring up
// pools for the current source set.
func NewManager(fs afero.Fs, confStore *store.Store, templateStore *template.Store, logger *slog.Logger) *Manager {
	return &Manager{
		fs:            fs,
		confStore:     confStore,
		templateStore: templateStore,
		logger:        logger,
		pools:         map[string]*Pool{},
	}
}

// Enqueue implements the Enqueuer capability: it routes rec to the named
// source's pool. It returns false if the source has no pool (not
// currently active) or if the pool's queue is full.
func (m *Manager) Enqueue(sourceID string, raw []byte, receivedAt time.Time) bool {
	m.mu.RLock()
	pool, ok := m.pools[sourceID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return pool.Enqueue(model.Record{SourceID: sourceID, Raw: raw, ReceiveAt: receivedAt})
}

// ReloadSources implements the Reloader capability for the Processor Pool
// side of reconciliation: pools for removed sources are drained and
// closed, pools for new sources are created, and pools for sources whose
// config changed are replaced.
func (m *Manager) ReloadSources(sources []*model.Source) error {
	desired := make(map[string]*model.Source, len(sources))
	for _, s := range sources {
		desired[s.ID] = s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, pool := range m.pools {
		if _, keep := desired[id]; !keep {
			pool.Close()
			delete(m.pools, id)
		}
	}

	for id, src := range desired {
		existing, ok := m.pools[id]
		if ok && sourceUnchanged(existing.Source(), src) {
			continue
		}
		if ok {
			existing.Close()
			delete(m.pools, id)
		}
		snk, err := buildSink(m.fs, src)
		if err != nil {
			m.logger.Error("failed to build sink, source disabled", slog.String("source", src.Name), slog.Any("error", err))
			continue
		}
		m.pools[id] = NewPool(src, m.confStore, m.templateStore, snk, m.logger)
	}

	return nil
}

func sourceUnchanged(a, b *model.Source) bool {
	if a == b {
		return true
	}
	return a.Port == b.Port && a.Protocol == b.Protocol && a.TargetType == b.TargetType &&
		a.QueueLimit == b.QueueLimit && a.MaxWorkers == b.MaxWorkers &&
		equalStrings(a.SourceIPs, b.SourceIPs) && targetsEqual(a, b)
}

func targetsEqual(a, b *model.Source) bool {
	switch a.TargetType {
	case model.TargetFolder:
		return a.Folder != nil && b.Folder != nil && *a.Folder == *b.Folder
	case model.TargetHEC:
		return a.HEC != nil && b.HEC != nil && *a.HEC == *b.HEC
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buildSink(fs afero.Fs, src *model.Source) (sink.Sink, error) {
	switch src.TargetType {
	case model.TargetFolder:
		return sink.NewFolder(fs, src.Name, *src.Folder)
	case model.TargetHEC:
		return sink.NewHEC(*src.HEC), nil
	default:
		return nil, fmt.Errorf("unknown target type %q", src.TargetType)
	}
}

// ReportMetrics implements the MetricsReporter capability: a snapshot per
// active source.
func (m *Manager) ReportMetrics() []metrics.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]metrics.Snapshot, 0, len(m.pools))
	for _, pool := range m.pools {
		out = append(out, pool.Metrics().Snapshot())
	}
	return out
}

// FlushRetryBuffers attempts redelivery of every source's parked batches.
func (m *Manager) FlushRetryBuffers() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pool := range m.pools {
		pool.FlushRetryBuffer()
	}
}

// Stop closes every pool in parallel (see Pool.Close for how each pool
// drains). Fanning the closes out makes total shutdown time that of the
// slowest pool instead of the sum over all active sources.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var g errgroup.Group
	for _, pool := range m.pools {
		pool := pool
		g.Go(func() error {
			pool.Close()
			return nil
		})
	}
	g.Wait()

	m.pools = map[string]*Pool{}
}
