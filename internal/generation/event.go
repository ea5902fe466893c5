package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JakeFAU/sitegen-portal/internal/validation"
)

// ErrInvalidEvent wraps every webhook payload decode or validation failure.
var ErrInvalidEvent = errors.New("invalid webhook event")

// WebhookEvent is the payload POSTed by the generation workflow.
type WebhookEvent struct {
	Status     string `json:"status" validate:"required,max=64"`
	ClientName string `json:"client_name" validate:"required,max=128"`
	Message    string `json:"message,omitempty" validate:"max=1000"`
	Timestamp  string `json:"timestamp,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PRURL      string `json:"pr_url,omitempty" validate:"omitempty,url"`
	PreviewURL string `json:"preview_url,omitempty" validate:"omitempty,url"`
	Error      string `json:"error,omitempty" validate:"max=2000"`
}

var validate = validation.New()

// DecodeWebhookEvent parses data strictly. Unknown fields, type mismatches,
// trailing content, and constraint violations are all rejected with an error
// wrapping ErrInvalidEvent; constraint violations also wrap *validation.Error.
func DecodeWebhookEvent(data []byte) (WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var evt WebhookEvent
	if err := dec.Decode(&evt); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return WebhookEvent{}, fmt.Errorf("%w: trailing data after payload", ErrInvalidEvent)
	}
	if err := validate.Struct(evt); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return evt, nil
}
