package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitegen-portal/internal/validation"
)

func validRequest() Request {
	return Request{
		BusinessName: "Acme Plumbing",
		Email:        "owner@acme.test",
		Industry:     "Home Services",
		Services:     []string{"Repairs", "Installations"},
	}
}

func TestRequestValidateOK(t *testing.T) {
	t.Parallel()

	require.NoError(t, validRequest().Normalize().Validate())
}

func TestRequestNormalizeTrims(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.BusinessName = "  Acme  "
	req.Services = []string{" Repairs "}
	got := req.Normalize()
	require.Equal(t, "Acme", got.BusinessName)
	require.Equal(t, []string{"Repairs"}, got.Services)
	require.Equal(t, " Repairs ", req.Services[0])
}

func TestRequestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Request)
		want   string
	}{
		{"short name", func(r *Request) { r.BusinessName = " A " }, "businessName must be at least 2 characters"},
		{"bad email", func(r *Request) { r.Email = "owner-at-acme" }, "email must be a valid email address"},
		{"missing industry", func(r *Request) { r.Industry = "" }, "industry is required"},
		{"no services", func(r *Request) { r.Services = nil }, "services must contain at least 1 item(s)"},
		{"blank service", func(r *Request) { r.Services = []string{"  "} }, "services[0] is required"},
		{"bad logo url", func(r *Request) { r.LogoURL = "logo.png" }, "logoUrl must be a valid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := validRequest()
			tt.mutate(&req)
			err := req.Normalize().Validate()
			require.ErrorIs(t, err, ErrInvalidRequest)
			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			require.Contains(t, verr.Messages(), tt.want)
		})
	}
}
