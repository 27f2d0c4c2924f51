package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "voxid/pkg/domain-errors"
	audit "voxid/pkg/platform/audit"
	"voxid/pkg/platform/audit/metrics"
)

// Publisher hands audit events to a Sink, synchronously or through a
// bounded buffer drained by one background goroutine.
type Publisher struct {
	sink    audit.Sink
	events  chan audit.Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.Metrics
	async   bool
	timeout time.Duration
}

type Option func(*Publisher)

// WithAsyncBuffer queues events in a buffer of the given size. A full buffer
// drops the event rather than blocking the request.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithSinkTimeout bounds each background Append call.
func WithSinkTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPublisher(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.events)))
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.persist(ctx, event)
		cancel()
		if err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"identity_id", event.Subject,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.sink.Append(ctx, event)
	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.PersistFailures.Inc()
		}
	}
	return err
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if !p.async {
		return p.persist(ctx, event)
	}

	select {
	case p.events <- event:
		if p.metrics != nil {
			p.metrics.EventsEnqueued.Inc()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.EventsDropped.Inc()
		}
		if p.logger != nil {
			p.logger.Warn("audit buffer full, event dropped",
				"action", event.Action,
				"identity_id", event.Subject,
			)
		}
		return dErrors.New(dErrors.CodeInternal, "audit buffer full")
	}
}
