package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

func TestCancelStoresCancelledRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.postWebhook(`{"status":"logo_processed","client_name":"acme-1-abc123"}`).Code)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/status/acme-1-abc123/cancel", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	got := decodeRecord(t, f.getStatus("acme-1-abc123"))
	require.Equal(t, generation.StatusError, got.Status)
	require.Equal(t, 0, got.Progress)
	require.Equal(t, "cancelled by user", got.Error)
	require.Equal(t, []string{"acme-1-abc123"}, f.trigger.cancelled)

	events := f.events.Events()
	require.Len(t, events, 2)
	require.Equal(t, generation.EventCancelled, events[1].Name)
	require.True(t, events[1].Terminal())
}

func TestCancelSucceedsWhenDispatchFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.trigger.cancelErr = errors.New("upstream unavailable")

	rec := f.do(httptest.NewRequest(http.MethodPost, "/status/new-1-aaaaaa/cancel", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, generation.StatusError, decodeRecord(t, f.getStatus("new-1-aaaaaa")).Status)
}

func TestCancelRejectsFinishedRuns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.postWebhook(`{"status":"completed","client_name":"acme-1-abc123"}`).Code)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/status/acme-1-abc123/cancel", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Empty(t, f.trigger.cancelled)
	require.Equal(t, generation.StatusCompleted, decodeRecord(t, f.getStatus("acme-1-abc123")).Status)
}

func TestWorkflowCancelledEventMapsToDefaultRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.postWebhook(`{"status":"cancelled","client_name":"acme-1-abc123"}`).Code)

	got := decodeRecord(t, f.getStatus("acme-1-abc123"))
	require.Equal(t, generation.StatusInProgress, got.Status)
	require.Equal(t, 50, got.Progress)
	require.Equal(t, generation.StepGenerateTheme, got.CurrentStep)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/status/acme-1-abc123/cancel", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "Website generation cancelled", decodeRecord(t, f.getStatus("acme-1-abc123")).Message)
}
