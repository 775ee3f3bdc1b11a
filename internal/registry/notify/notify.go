// Package notify fans registry events out to external subscribers. Events are
// emitted after the owning transaction commits; delivery is best effort and
// never fails the operation that produced the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "provenance/pkg/domain"
	"provenance/pkg/requestcontext"
)

// Kind identifies the type of a registry event.
type Kind string

const (
	KindProductCreated       Kind = "product.created"
	KindOwnershipTransferred Kind = "ownership.transferred"
)

// Event is emitted from the registry to notify subscribers of committed
// custody changes. Kept transport-agnostic so sinks can fan out.
type Event struct {
	ID            string      `json:"id"`
	Kind          Kind        `json:"kind"`
	Timestamp     time.Time   `json:"timestamp"`
	ProductID     uint64      `json:"product_id"`
	Name          string      `json:"name,omitempty"`
	Origin        string      `json:"origin,omitempty"`
	Owner         id.Identity `json:"owner,omitempty"`
	PreviousOwner id.Identity `json:"previous_owner,omitempty"`
	NewOwner      id.Identity `json:"new_owner,omitempty"`
}

// Sink delivers events to subscribers.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher stamps events and hands them to a sink.
type Publisher struct {
	sink Sink
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	return p.sink.Publish(ctx, event)
}
