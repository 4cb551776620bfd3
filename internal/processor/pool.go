// Package processor implements the Processor Pool (§4.2): one bounded
// queue and a dynamically-sized set of worker goroutines per active
// source. Workers accumulate a batch, run it through the Filter and
// Aggregation Engines, and hand the result to the source's Sink Adapter,
// retrying transient failures with exponential backoff before parking to
// the source-local retry buffer.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/telhawk-systems/logflow/internal/aggregate"
	"github.com/telhawk-systems/logflow/internal/filter"
	"github.com/telhawk-systems/logflow/internal/metrics"
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/retrybuffer"
	"github.com/telhawk-systems/logflow/internal/sink"
	"github.com/telhawk-systems/logflow/internal/store"
	"github.com/telhawk-systems/logflow/internal/template"
)

// scaleDownTicks is the number of consecutive low-depth supervisor ticks
// (1 Hz) required before a worker is retired (§4.2: "30 consecutive
// ticks").
const scaleDownTicks = 30

// defaultMaxBatchLatency is the default deadline a batch waits under
// before closing even if batch_size has not been reached (§4.2).
const defaultMaxBatchLatency = time.Second

// defaultDrainDeadline bounds how long workers get to finish their current
// batch during shutdown (§4.2).
const defaultDrainDeadline = 10 * time.Second

// Pool is the Processor Pool for exactly one source.
type Pool struct {
	source *model.Source
	queue  chan model.Record

	confStore     *store.Store
	templateStore *template.Store
	sink          sink.Sink
	retry         *retrybuffer.Buffer
	metrics       *metrics.SourceMetrics
	logger        *slog.Logger

	maxBatchLatency time.Duration
	drainDeadline   time.Duration

	mu         sync.Mutex
	workerStop []chan struct{}
	wg         conc.WaitGroup

	lowDepthTicks int
	supervisorCancel context.CancelFunc
	closed        chan struct{}
}

// NewPool constructs a Pool for src, starts its first worker, and starts
// the 1Hz scaling supervisor.
func NewPool(src *model.Source, confStore *store.Store, templateStore *template.Store, snk sink.Sink, logger *slog.Logger) *Pool {
	p := &Pool{
		source:          src,
		queue:           make(chan model.Record, src.QueueCapacity()),
		confStore:       confStore,
		templateStore:   templateStore,
		sink:            snk,
		retry:           retrybuffer.New(),
		metrics:         metrics.NewSourceMetrics(src.ID),
		logger:          logger.With(slog.String("source", src.Name)),
		maxBatchLatency: defaultMaxBatchLatency,
		drainDeadline:   defaultDrainDeadline,
		closed:          make(chan struct{}),
	}

	p.spawnWorker()

	ctx, cancel := context.WithCancel(context.Background())
	p.supervisorCancel = cancel
	go p.superviseLoop(ctx)

	return p
}

// Enqueue offers rec to the source queue without blocking. It returns
// false (dropped) if the queue is full, which is the backpressure
// mechanism of §4.1.
func (p *Pool) Enqueue(rec model.Record) bool {
	select {
	case p.queue <- rec:
		p.metrics.EventsIn.Add(1)
		p.metrics.EventsInQueue.Store(int64(len(p.queue)))
		return true
	default:
		p.metrics.EventsDroppedQueueFull.Add(1)
		return false
	}
}

// Metrics returns this pool's metrics block.
func (p *Pool) Metrics() *metrics.SourceMetrics {
	return p.metrics
}

// Source returns the pool's current source config.
func (p *Pool) Source() *model.Source {
	return p.source
}

func (p *Pool) spawnWorker() {
	stop := make(chan struct{})
	p.mu.Lock()
	p.workerStop = append(p.workerStop, stop)
	count := len(p.workerStop)
	p.mu.Unlock()

	p.metrics.WorkersActive.Store(int64(count))
	p.wg.Go(func() {
		p.runWorker(stop)
	})
}

// retireOneWorker signals the most-recently-spawned worker to stop after
// its current batch. Retiring the newest worker (rather than a random one)
// keeps the set of active stop channels a simple stack.
func (p *Pool) retireOneWorker() {
	p.mu.Lock()
	if len(p.workerStop) <= 1 {
		p.mu.Unlock()
		return
	}
	last := p.workerStop[len(p.workerStop)-1]
	p.workerStop = p.workerStop[:len(p.workerStop)-1]
	count := len(p.workerStop)
	p.mu.Unlock()

	close(last)
	p.metrics.WorkersActive.Store(int64(count))
}

func (p *Pool) workerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workerStop)
}

// superviseLoop is the 1Hz scaling supervisor of §4.2.
func (p *Pool) superviseLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pool) tick() {
	depth := len(p.queue)
	p.metrics.EventsInQueue.Store(int64(depth))
	p.metrics.PublishPrometheus()

	workers := p.workerCount()
	if depth > p.source.QueueLimit && workers < p.source.MaxWorkers {
		p.spawnWorker()
		p.lowDepthTicks = 0
		return
	}

	if depth < p.source.QueueLimit/4 {
		p.lowDepthTicks++
		if p.lowDepthTicks >= scaleDownTicks && workers > 1 {
			p.retireOneWorker()
			p.lowDepthTicks = 0
		}
	} else {
		p.lowDepthTicks = 0
	}
}

// runWorker is one worker's batch-formation and delivery loop.
func (p *Pool) runWorker(stop <-chan struct{}) {
	batchSize := p.batchSize()

	var batch []model.Record
	timer := time.NewTimer(p.maxBatchLatency)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}
	timerRunning := false

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.processBatch(batch)
		batch = nil
	}

	for {
		select {
		case rec, ok := <-p.queue:
			if !ok {
				flush()
				return
			}
			if len(batch) == 0 {
				timer.Reset(p.maxBatchLatency)
				timerRunning = true
			}
			batch = append(batch, rec)
			p.metrics.EventsInQueue.Store(int64(len(p.queue)))
			if len(batch) >= batchSize {
				if timerRunning && !timer.Stop() {
					<-timer.C
				}
				timerRunning = false
				flush()
			}

		case <-timer.C:
			timerRunning = false
			flush()

		case <-stop:
			deadline := time.After(p.drainDeadline)
			for {
				select {
				case rec, ok := <-p.queue:
					if !ok {
						flush()
						return
					}
					batch = append(batch, rec)
					if len(batch) >= batchSize {
						flush()
					}
				case <-deadline:
					flush()
					return
				default:
					flush()
					return
				}
			}
		}
	}
}

func (p *Pool) batchSize() int {
	if p.source.TargetType == model.TargetFolder && p.source.Folder != nil {
		return p.source.Folder.BatchSize
	}
	if p.source.TargetType == model.TargetHEC && p.source.HEC != nil {
		return p.source.HEC.BatchSize
	}
	return 1
}

// processBatch applies the Filter Engine, then the Aggregation Engine
// (filters run first per §4.3, "cheaper; reduces grouping work"), then
// hands the result to the sink, retrying/parking on failure per §7.
func (p *Pool) processBatch(batch []model.Record) {
	p.metrics.EventsInFlight.Add(int64(len(batch)))
	defer p.metrics.EventsInFlight.Add(-int64(len(batch)))

	rules, err := p.confStore.FilterRules(p.source.ID)
	if err != nil {
		p.logger.Warn("failed to load filter rules, treating as pass-through", slog.Any("error", err))
	}
	policy, err := p.confStore.AggregationPolicy(p.source.ID)
	if err != nil {
		p.logger.Warn("failed to load aggregation policy, treating as disabled", slog.Any("error", err))
	}

	items := make([]aggregate.Item, 0, len(batch))
	for _, rec := range batch {
		if p.templateStore != nil {
			if _, err := p.templateStore.LearnFrom(p.source.ID, rec.Raw); err != nil {
				p.logger.Warn("template learning failed", slog.Any("error", err))
			}
		}
		if filter.Evaluate(rec.Raw, rules) {
			p.metrics.EventsDroppedFilter.Add(1)
			continue
		}
		items = append(items, aggregate.Item{Raw: rec.Raw, ReceiveAt: rec.ReceiveAt})
	}

	canonical := aggregate.Process(p.source.Name, items, policy)
	if len(canonical) == 0 {
		return
	}

	p.deliverWithRetry(canonical)
}

// Close stops the supervisor and signals every worker to stop. Each worker
// keeps taking queued records until the queue is momentarily empty or its
// drain deadline passes; Close then waits, with no timeout of its own, for
// every worker to finish delivering (including any retry backoff) and
// closes the sink.
func (p *Pool) Close() {
	select {
	case <-p.closed:
		return
	default:
		close(p.closed)
	}

	p.supervisorCancel()

	p.mu.Lock()
	stops := p.workerStop
	p.workerStop = nil
	p.mu.Unlock()
	for _, s := range stops {
		close(s)
	}

	p.wg.Wait()
	_ = p.sink.Close()
}
