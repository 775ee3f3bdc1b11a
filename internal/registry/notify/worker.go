package notify

import (
	"context"
	"log/slog"
)

// Worker consumes events from a channel and delivers them to a sink. It keeps
// event delivery off the request path without wiring a queue implementation.
//
// Delivery is best effort: a failed Publish is logged and the worker moves on
// to the next event, so a flaky sink never takes the process down.
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

// Run drains the inbox until ctx is cancelled, then delivers anything still
// buffered before returning ctx.Err(). It never returns a delivery error.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-w.inbox:
					w.deliver(context.Background(), event)
				default:
					return ctx.Err()
				}
			}
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.sink.Publish(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "event delivery failed",
			"event_id", event.ID,
			"kind", string(event.Kind),
			"product_id", event.ProductID,
			"error", err.Error(),
		)
	}
}

// ChannelSink feeds a Worker's inbox. Publish blocks when the buffer is full
// so events are never dropped.
type ChannelSink struct {
	inbox chan<- Event
}

func NewChannelSink(inbox chan<- Event) *ChannelSink {
	return &ChannelSink{inbox: inbox}
}

func (s *ChannelSink) Publish(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
