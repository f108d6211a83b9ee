// Package events publishes purchase and download lifecycle events to
// downstream consumers (notification, invoicing, analytics). Publication
// happens after the owning transaction commits; a failed publish never undoes
// the state change it describes.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a lifecycle event.
type Type string

// Event types.
const (
	PurchaseInitiated Type = "purchase.initiated"
	PurchaseApproved  Type = "purchase.approved"
	PurchaseDeclined  Type = "purchase.declined"
	DownloadRecorded  Type = "download.recorded"
)

// Event is the JSON payload written to the bus.
type Event struct {
	ID            string    `json:"event_id"`
	Type          Type      `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	ActorID       string    `json:"actor_id"`
	UserID        string    `json:"user_id"`
	FileID        string    `json:"file_id"`
	PurchaseID    string    `json:"purchase_id,omitempty"`
	DownloadID    string    `json:"download_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	DownloadCount int64     `json:"download_count,omitempty"`
}

// New returns an event of type t with a fresh id and timestamp.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Key is the partition key: events about one purchase (or one user's
// downloads of a file) stay ordered.
func (e Event) Key() string {
	if e.PurchaseID != "" {
		return "purchase-" + e.PurchaseID
	}
	return "download-" + e.FileID + "-" + e.UserID
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
