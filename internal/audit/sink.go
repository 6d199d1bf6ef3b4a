package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Sink persists or forwards events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "pipeline event",
		"action", string(event.Action),
		"outcome", event.Outcome,
		"cnpj", event.CNPJ,
		"request_id", event.RequestID,
		"client_ip", event.ClientIP,
		"reason", event.Reason,
		"detail", event.Detail,
		"timestamp", event.Timestamp,
	)
	return nil
}

// MemorySink keeps events in memory; used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Actions lists the recorded actions in arrival order.
func (s *MemorySink) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}
