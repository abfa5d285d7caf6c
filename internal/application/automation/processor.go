package automation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Handler runs the pipeline for one leased item. Satisfied by
// *Orchestrator; narrowed to an interface so processor tests can fake
// the pipeline.
type Handler interface {
	Process(ctx context.Context, item *domain.WorkItem, owner string) error
}

// ProcessorConfig tunes the worker pool.
type ProcessorConfig struct {
	Concurrency  int
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	JobTimeout   time.Duration
	LeaseTTL     time.Duration
}

// Status is a snapshot of the processor for the operations API.
type Status struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	ActiveJobs int            `json:"active_jobs"`
	Processed  uint64         `json:"processed"`
	Failed     uint64         `json:"failed"`
	QueueDepth map[string]int `json:"queue_depth,omitempty"`
}

// Processor polls the queue with a fixed pool of workers. Each worker
// leases one item at a time, runs it through the handler under a job
// timeout, and classifies failures into retry or permanent failure.
type Processor struct {
	cfg      ProcessorConfig
	queue    domain.QueueRepository
	handler  Handler
	events   EventPublisher
	notifier FailureNotifier
	clock    Clock
	metrics  PipelineMetrics
	logger   logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	activeJobs int64
	processed  uint64
	failed     uint64
}

// NewProcessor builds a Processor. events and notifier are optional;
// the notifier, when set, tells HR about permanent failures.
func NewProcessor(cfg ProcessorConfig, queue domain.QueueRepository, handler Handler, events EventPublisher, notifier FailureNotifier, clock Clock, metrics PipelineMetrics, logger logging.Logger) *Processor {
	if events == nil {
		events = NopPublisher{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Processor{
		cfg:      cfg,
		queue:    queue,
		handler:  handler,
		events:   events,
		notifier: notifier,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.Named("processor"),
	}
}

// Start launches the worker pool and the lease reaper. Calling Start on
// a running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.cfg.Concurrency; i++ {
		owner := p.workerID(i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.workerLoop(runCtx, owner)
		}()
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reaperLoop(runCtx)
	}()

	p.logger.Info("processor started",
		logging.Int("concurrency", p.cfg.Concurrency),
		logging.Duration("poll_interval", p.cfg.PollInterval))
	return nil
}

// Stop drains the pool: workers finish their current item, then exit.
// Stop returns when all workers are done or ctx expires.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("processor stopped")
		return nil
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeProcessorStopped,
			"processor stop timed out with jobs in flight")
	}
}

// Status reports the current pool state, including queue depths when
// the queue is reachable.
func (p *Processor) Status(ctx context.Context) Status {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	s := Status{
		Running:    running,
		Workers:    p.cfg.Concurrency,
		ActiveJobs: int(atomic.LoadInt64(&p.activeJobs)),
		Processed:  atomic.LoadUint64(&p.processed),
		Failed:     atomic.LoadUint64(&p.failed),
	}
	if counts, err := p.queue.Counts(ctx, uuid.Nil); err == nil {
		s.QueueDepth = make(map[string]int, len(counts))
		for state, n := range counts {
			s.QueueDepth[string(state)] = n
			p.metrics.SetQueueDepth(state, n)
		}
	}
	return s
}

// ─────────────────────────────────────────────
// Loops
// ─────────────────────────────────────────────

func (p *Processor) workerLoop(ctx context.Context, owner string) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain available work before sleeping.
		for p.runOne(ctx, owner) {
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOne leases and processes a single item, reporting whether work was
// found.
func (p *Processor) runOne(ctx context.Context, owner string) bool {
	item, err := p.queue.Lease(ctx, owner, p.cfg.LeaseTTL, p.clock.Now())
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeLeaseNotAcquired) && ctx.Err() == nil {
			p.logger.Warn("queue lease failed", logging.String("owner", owner), logging.Err(err))
		}
		return false
	}

	atomic.AddInt64(&p.activeJobs, 1)
	defer atomic.AddInt64(&p.activeJobs, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	err = p.handler.Process(jobCtx, item, owner)
	cancel()

	if err == nil {
		atomic.AddUint64(&p.processed, 1)
		return true
	}
	p.handleFailure(ctx, item, owner, err)
	return true
}

// handleFailure classifies an error and persists the item's fate.
// Disabled automation releases the item untouched: it stays pending and
// consumes no attempt, waiting for the company to enable the feature.
func (p *Processor) handleFailure(ctx context.Context, item *domain.WorkItem, owner string, procErr error) {
	now := p.clock.Now()
	code := apperrors.GetCode(procErr)

	if code == apperrors.ErrCodeAutomationDisabled {
		item.State = domain.StatePending
		item.LeaseOwner = ""
		item.LeaseExpiresAt = nil
		item.NextAttemptAt = now.Add(p.cfg.RetryBackoff)
		item.UpdatedAt = now
		if err := p.queue.Update(ctx, item, owner); err != nil {
			p.logger.Warn("release of disabled-company item failed", logging.Err(err))
		}
		p.logger.Debug("automation disabled, item left pending",
			logging.String("response_id", item.ResponseID.String()))
		return
	}

	retryable := apperrors.IsRetryableError(procErr)
	item.RecordFailure(procErr.Error(), retryable, p.backoffFor(item.Attempts), now)
	if err := p.queue.Update(ctx, item, owner); err != nil {
		p.logger.Warn("failure state not persisted",
			logging.String("response_id", item.ResponseID.String()), logging.Err(err))
		return
	}

	if item.State == domain.StatePending {
		p.metrics.IncRetry()
		p.logger.Info("item scheduled for retry",
			logging.String("response_id", item.ResponseID.String()),
			logging.Int("attempt", item.Attempts),
			logging.String("code", string(code)),
			logging.Err(procErr))
		return
	}
	atomic.AddUint64(&p.failed, 1)
	p.logger.Error("item failed permanently",
		logging.String("response_id", item.ResponseID.String()),
		logging.Int("attempts", item.Attempts),
		logging.String("code", string(code)),
		logging.Err(procErr))
	if err := p.events.PublishPipelineFailed(ctx, item, procErr.Error()); err != nil {
		p.logger.Warn("pipeline failed event not published",
			logging.String("response_id", item.ResponseID.String()), logging.Err(err))
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyProcessingFailure(ctx, item, procErr.Error()); err != nil {
			p.logger.Warn("processing failure notice not delivered",
				logging.String("response_id", item.ResponseID.String()), logging.Err(err))
		}
	}
}

// backoffFor grows the delay with each attempt (attempt n waits n times
// the base backoff).
func (p *Processor) backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.cfg.RetryBackoff
}

// reaperLoop returns expired leases to the queue so items held by a
// crashed worker become claimable again.
func (p *Processor) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval * 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.queue.ReapExpired(ctx, p.clock.Now())
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("lease reaping failed", logging.Err(err))
				}
				continue
			}
			if n > 0 {
				p.logger.Info("expired leases reclaimed", logging.Int("count", n))
			}
		}
	}
}

func (p *Processor) workerID(i int) string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), i)
}
