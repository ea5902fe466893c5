package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
)

func eventFor(id, name string, ts time.Time) progress.Event {
	rec := generation.FromEvent(generation.WebhookEvent{Status: name, ClientName: id}, ts)
	return progress.NewEvent(name, rec, ts)
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow a run from start to finish.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		eventFor("acme-1-abc123", generation.EventStarted, start),
		eventFor("acme-1-abc123", generation.EventContentGenerated, start.Add(90*time.Second)),
		eventFor("acme-1-abc123", generation.EventCompleted, start.Add(3*time.Minute)),
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(generation.EventStarted, "starting")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(generation.EventCompleted, "completed")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "portal_generation_run_duration_seconds"))
}

func TestPrometheusSinkTracksRunningAndFailures(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		eventFor("a-1-aaaaaa", generation.EventStarted, now),
		eventFor("b-1-bbbbbb", generation.EventStarted, now),
		eventFor("b-1-bbbbbb", generation.EventLogoProcessed, now.Add(time.Second)),
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.runsRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		eventFor("a-1-aaaaaa", generation.EventFailed, now.Add(time.Minute)),
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("error")))
}

func TestNewPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
