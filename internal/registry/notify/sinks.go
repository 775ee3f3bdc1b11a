package notify

import (
	"context"
	"log/slog"
	"sync"
)

// MemorySink records events in order. Used by tests and as the terminal sink
// behind a Worker in embedded deployments.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

// LogSink writes events to the process log. The fallback when no broker is
// configured, so subscribers-by-log still see the stream.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "registry event",
		"event_id", event.ID,
		"kind", string(event.Kind),
		"product_id", event.ProductID,
		"owner", event.Owner.String(),
		"previous_owner", event.PreviousOwner.String(),
		"new_owner", event.NewOwner.String(),
	)
	return nil
}
