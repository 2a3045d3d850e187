// Package pipeline runs the stage consumers. Each Runner owns one consumer
// group, dispatches units to per-partition lanes under a bounded in-flight
// budget, retries transient failures with exponential backoff, and commits
// an offset only after the unit reached a terminal outcome: follow-up
// events published, or a *_failed event emitted and the document FAILED.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/bus"
	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
	"github.com/waqedi/platform/pkg/metrics"
	"github.com/waqedi/platform/pkg/models"
)

// Offsets commit on a detached context so completed work is recorded even
// while the process is shutting down.
const commitTimeout = 5 * time.Second

// fetchRetryWait paces polling after a broker error.
const fetchRetryWait = time.Second

// Handler is one stage's processing logic.
type Handler interface {
	// Stage names the consumer, used for the group ID and log fields.
	Stage() string
	// Accepts filters the event types this stage consumes; everything
	// else on the topic is committed untouched.
	Accepts(eventType string) bool
	// Handle processes one unit and returns the follow-up envelopes to
	// publish. Transient errors are retried by the runner; every other
	// error terminates the unit.
	Handle(ctx context.Context, env bus.Envelope) ([]bus.Envelope, error)
	// FailureEventType is the *_failed event emitted on terminal failure.
	FailureEventType() string
}

// Source yields the stage's work units.
type Source interface {
	Fetch(ctx context.Context) (*bus.Message, error)
}

// Transitioner moves a document through the lifecycle state machine.
type Transitioner interface {
	Transition(ctx context.Context, id string, next models.DocumentStatus) (*models.Document, error)
}

// Runner drives one stage consumer.
type Runner struct {
	cfg       config.PipelineConfig
	source    Source
	publisher bus.Publisher
	handler   Handler
	docs      func(tenantID uuid.UUID) Transitioner
	logger    *slog.Logger
	sem       chan struct{}
}

// NewRunner wires a stage runner. docs builds a tenant-scoped store used to
// move documents to FAILED on terminal failure.
func NewRunner(cfg config.PipelineConfig, source Source, publisher bus.Publisher, handler Handler, docs func(uuid.UUID) Transitioner, logger *slog.Logger) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		cfg:       cfg,
		source:    source,
		publisher: publisher,
		handler:   handler,
		docs:      docs,
		logger:    logger.With("stage", handler.Stage()),
		sem:       make(chan struct{}, workers),
	}
}

// Run consumes until ctx is cancelled, then drains in-flight units for up
// to ShutdownGrace. Units from one partition run sequentially, which keeps
// a document's events in emission order; partitions run in parallel up to
// the worker budget.
func (r *Runner) Run(ctx context.Context) error {
	lanes := map[int]chan *bus.Message{}
	var wg sync.WaitGroup

loop:
	for {
		msg, err := r.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			r.logger.Error("Failed to fetch message", "error", err)
			select {
			case <-time.After(fetchRetryWait):
				continue
			case <-ctx.Done():
				break loop
			}
		}

		lane, ok := lanes[msg.Partition]
		if !ok {
			lane = make(chan *bus.Message)
			lanes[msg.Partition] = lane
			wg.Add(1)
			go func() {
				defer wg.Done()
				for m := range lane {
					r.sem <- struct{}{}
					r.process(ctx, m)
					<-r.sem
				}
			}()
		}

		select {
		case lane <- msg:
		case <-ctx.Done():
			break loop
		}
	}

	for _, lane := range lanes {
		close(lane)
	}
	return r.drain(&wg)
}

func (r *Runner) drain(wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("Stage consumer drained")
		return nil
	case <-time.After(r.cfg.ShutdownGrace):
		return fmt.Errorf("stage %s: in-flight units did not drain within %s",
			r.handler.Stage(), r.cfg.ShutdownGrace)
	}
}

// process takes one unit to a terminal outcome. The offset is not committed
// when the unit is cancelled mid-flight or a follow-up publish fails; the
// unit is then redelivered and the handler's idempotency absorbs the replay.
func (r *Runner) process(ctx context.Context, msg *bus.Message) {
	env := msg.Envelope
	if !r.handler.Accepts(env.EventType) {
		r.commit(msg)
		return
	}

	start := time.Now()
	var followups []bus.Envelope
	operation := func() error {
		evs, err := r.handler.Handle(ctx, env)
		if err != nil {
			if faults.IsRetryable(err) {
				metrics.StageRetries.WithLabelValues(r.handler.Stage()).Inc()
				r.logger.Warn("Retrying after transient failure",
					"event_type", env.EventType,
					"document_id", msg.Key,
					"error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		followups = evs
		return nil
	}

	err := backoff.Retry(operation, r.retryPolicy(ctx))
	metrics.StageLatency.WithLabelValues(r.handler.Stage()).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.StageOutcomes.WithLabelValues(r.handler.Stage(), metrics.OutcomeFailed).Inc()
		r.fail(ctx, msg, err)
		r.commit(msg)
		return
	}
	metrics.StageOutcomes.WithLabelValues(r.handler.Stage(), metrics.OutcomeOK).Inc()

	for _, ev := range followups {
		if err := r.publisher.Publish(ctx, msg.Key, ev); err != nil {
			r.logger.Error("Failed to publish follow-up event",
				"event_type", ev.EventType,
				"document_id", msg.Key,
				"error", err)
			return
		}
	}
	r.commit(msg)
}

func (r *Runner) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempts := r.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// fail emits the stage's *_failed event and moves the document to FAILED.
func (r *Runner) fail(ctx context.Context, msg *bus.Message, cause error) {
	env := msg.Envelope
	r.logger.Error("Stage failed terminally",
		"event_type", env.EventType,
		"document_id", msg.Key,
		"tenant_id", env.TenantID,
		"error", cause)

	fenv, err := bus.NewEnvelope(r.handler.FailureEventType(), env.TenantID, env.CorrelationID,
		bus.StageFailure{DocumentID: msg.Key, Error: cause.Error()})
	if err != nil {
		r.logger.Error("Failed to build failure event", "error", err)
	} else if err := r.publisher.Publish(ctx, msg.Key, fenv); err != nil {
		r.logger.Error("Failed to publish failure event",
			"event_type", fenv.EventType, "document_id", msg.Key, "error", err)
	}

	if _, err := r.docs(env.TenantID).Transition(ctx, msg.Key, models.StatusFailed); err != nil {
		// Replays can find the document already FAILED or past PROCESSING.
		r.logger.Warn("Could not mark document failed",
			"document_id", msg.Key, "error", err)
	}
}

func (r *Runner) commit(msg *bus.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := msg.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit offset", "document_id", msg.Key, "error", err)
	}
}
