package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sitegen/pkg/requestcontext"
)

// Publisher stamps events and hands them to a sink. In async mode events go
// through a buffered channel drained by a Worker, so a slow broker never
// blocks generation; when the buffer is full the event is dropped and logged.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	bufferSize int
	inbox      chan Event
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async delivery with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock injects the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a Publisher writing to sink.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan Event, p.bufferSize)
		p.done = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		worker := NewWorker(sink, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = worker.Run(ctx)
		}()
	}
	return p
}

// Emit records event. The timestamp, request ID and client IP are filled from
// ctx when missing. Delivery failures are logged, never returned: events must not
// fail the pipeline.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if p.inbox == nil {
		if err := p.sink.Write(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "failed to deliver pipeline event",
				"action", string(event.Action),
				"error", err,
			)
		}
		return
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "event buffer full, dropping pipeline event",
			"action", string(event.Action),
			"cnpj", event.CNPJ,
		)
	}
}

// Close stops accepting events and waits for the buffered ones to drain.
// Emit must not be called after Close.
func (p *Publisher) Close() {
	if p == nil || p.inbox == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.inbox)
		<-p.done
		p.cancel()
	})
}
