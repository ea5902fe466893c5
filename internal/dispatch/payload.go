package dispatch

import (
	"strings"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

// Caps applied to free-text payload values.
const (
	maxShortField = 200
	maxLongField  = 1000
)

// GenerationPayload is the client_payload of a generate event. The dispatch
// API accepts at most ten top-level properties, so less common inputs travel
// in Extras.
type GenerationPayload struct {
	ClientID     string         `json:"client_id"`
	BusinessName string         `json:"business_name"`
	Email        string         `json:"email"`
	Industry     string         `json:"industry"`
	Services     string         `json:"services"`
	Description  string         `json:"description,omitempty"`
	Location     string         `json:"location,omitempty"`
	LogoURL      string         `json:"logo_url,omitempty"`
	WebhookURL   string         `json:"webhook_url"`
	Extras       PayloadExtras  `json:"extras"`
}

// PayloadExtras carries the optional form fields.
type PayloadExtras struct {
	TargetAudience string `json:"target_audience,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Website        string `json:"website,omitempty"`
	ColorScheme    string `json:"color_scheme,omitempty"`
	Style          string `json:"style,omitempty"`
}

// PayloadFromRequest builds the dispatch payload for a validated request.
func PayloadFromRequest(clientID string, req generation.Request, webhookURL string) GenerationPayload {
	return GenerationPayload{
		ClientID:     clientID,
		BusinessName: truncate(req.BusinessName, maxShortField),
		Email:        truncate(req.Email, maxShortField),
		Industry:     truncate(req.Industry, maxShortField),
		Services:     truncate(strings.Join(req.Services, ", "), maxLongField),
		Description:  truncate(req.Description, maxLongField),
		Location:     truncate(req.Location, maxShortField),
		LogoURL:      truncate(req.LogoURL, maxLongField),
		WebhookURL:   webhookURL,
		Extras: PayloadExtras{
			TargetAudience: truncate(req.TargetAudience, maxShortField),
			Phone:          truncate(req.Phone, maxShortField),
			Website:        truncate(req.Website, maxShortField),
			ColorScheme:    truncate(req.ColorScheme, maxShortField),
			Style:          truncate(req.Style, maxShortField),
		},
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
