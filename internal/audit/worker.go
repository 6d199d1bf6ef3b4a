package audit

import (
	"context"
	"log/slog"
)

// Worker drains events from a channel into a sink. A failing sink is logged
// and the event dropped; the worker keeps running.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run processes events until ctx is done or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.write(ctx, event)
		}
	}
}

func (w *Worker) write(ctx context.Context, event Event) {
	if err := w.sink.Write(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "failed to deliver pipeline event",
			"action", string(event.Action),
			"cnpj", event.CNPJ,
			"error", err,
		)
	}
}
