package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

// Event captures a single accepted status transition.
type Event struct {
	// ClientID identifies the generation run.
	ClientID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Name is the external event name as received (e.g. "logo_processed").
	Name string
	// Record is the full record stored for this transition.
	Record generation.ProgressRecord
}

// Status is shorthand for the mapped status.
func (e Event) Status() generation.Status {
	return e.Record.Status
}

// Terminal reports whether the event ends the run.
func (e Event) Terminal() bool {
	return e.Record.Status.Terminal()
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ClientID == "" {
		return errors.New("client id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if !e.Record.Status.Valid() {
		return fmt.Errorf("unknown status %q", e.Record.Status)
	}
	if e.Record.ClientID != e.ClientID {
		return fmt.Errorf("record client %q does not match event client %q", e.Record.ClientID, e.ClientID)
	}
	return nil
}

// NewEvent builds an Event from a stored record.
func NewEvent(name string, rec generation.ProgressRecord, ts time.Time) Event {
	return Event{
		ClientID: rec.ClientID,
		TS:       ts.UTC(),
		Name:     name,
		Record:   rec.Clone(),
	}
}
