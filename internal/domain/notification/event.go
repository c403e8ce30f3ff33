// Package notification delivers document events to external collaborators
// (PDF rendering, messaging) after the transition has committed.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/types"
)

// Event types.
const (
	EventDocumentPosted  = "document.posted"
	EventDocumentVoided  = "document.voided"
	EventPaymentRecorded = "payment.recorded"
)

// ErrQueueFull is returned when an async dispatcher drops an event.
var ErrQueueFull = errors.New("notification queue is full")

// ErrDispatcherClosed is returned for events dispatched after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher is closed")

// Event is the finalized snapshot handed to senders.
type Event struct {
	ID         id.ID           `json:"id"`
	Type       string          `json:"type"`
	TenantID   id.ID           `json:"tenantId"`
	CompanyID  id.ID           `json:"companyId"`
	DocumentID id.ID           `json:"documentId"`
	Kind       string          `json:"kind"`
	Number     string          `json:"number"`
	Total      types.Money     `json:"total"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Dispatcher accepts events for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Sender performs the actual delivery of one event.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}
