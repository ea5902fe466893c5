package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

// ErrNotFound signals that no live record exists for the client.
var ErrNotFound = errors.New("progress record not found")

// StatusStore persists the latest ProgressRecord per client ID.
type StatusStore interface {
	// Get returns a copy of the live record or ErrNotFound. Records past
	// their expiry are treated as absent even before a sweep removes them.
	Get(ctx context.Context, clientID string) (generation.ProgressRecord, error)
	// Put replaces the record for rec.ClientID wholesale and restarts its TTL.
	Put(ctx context.Context, rec generation.ProgressRecord) error
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, clientID string) error
	// Sweep physically removes records that expired at or before now and
	// reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
