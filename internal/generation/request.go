package generation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest wraps generate request validation failures.
var ErrInvalidRequest = errors.New("invalid generate request")

// Request is the business information submitted to start a generation run.
type Request struct {
	BusinessName   string   `json:"businessName" validate:"required,min=2,max=100"`
	Email          string   `json:"email" validate:"required,email"`
	Industry       string   `json:"industry" validate:"required,max=100"`
	Services       []string `json:"services" validate:"min=1,max=20,dive,required,max=100"`
	Description    string   `json:"description,omitempty" validate:"max=2000"`
	TargetAudience string   `json:"targetAudience,omitempty" validate:"max=500"`
	Location       string   `json:"location,omitempty" validate:"max=200"`
	Phone          string   `json:"phone,omitempty" validate:"max=40"`
	Website        string   `json:"website,omitempty" validate:"omitempty,url"`
	LogoURL        string   `json:"logoUrl,omitempty" validate:"omitempty,url"`
	ColorScheme    string   `json:"colorScheme,omitempty" validate:"max=100"`
	Style          string   `json:"style,omitempty" validate:"max=100"`
}

// Normalize trims surrounding whitespace from every field.
func (r Request) Normalize() Request {
	out := r
	out.BusinessName = strings.TrimSpace(r.BusinessName)
	out.Email = strings.TrimSpace(r.Email)
	out.Industry = strings.TrimSpace(r.Industry)
	out.Description = strings.TrimSpace(r.Description)
	out.TargetAudience = strings.TrimSpace(r.TargetAudience)
	out.Location = strings.TrimSpace(r.Location)
	out.Phone = strings.TrimSpace(r.Phone)
	out.Website = strings.TrimSpace(r.Website)
	out.LogoURL = strings.TrimSpace(r.LogoURL)
	out.ColorScheme = strings.TrimSpace(r.ColorScheme)
	out.Style = strings.TrimSpace(r.Style)
	if r.Services != nil {
		out.Services = make([]string, len(r.Services))
		for i, s := range r.Services {
			out.Services[i] = strings.TrimSpace(s)
		}
	}
	return out
}

// Validate checks the normalized request. Failures wrap ErrInvalidRequest and
// *validation.Error.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Response is returned by POST /generate once the workflow is triggered.
type Response struct {
	Success       bool   `json:"success"`
	ClientID      string `json:"clientId"`
	Message       string `json:"message"`
	EstimatedTime string `json:"estimatedTime"`
	StatusURL     string `json:"statusUrl"`
}
