package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to a zerolog logger. It is the default when no
// broker is configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, e Event) error {
	p.Logger.Info().
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("user_id", e.UserID).
		Str("file_id", e.FileID).
		Str("purchase_id", e.PurchaseID).
		Str("status", e.Status).
		Int64("amount", e.Amount).
		Int64("download_count", e.DownloadCount).
		Msg("event")
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }
