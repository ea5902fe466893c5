package sinks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
	"github.com/JakeFAU/sitegen-portal/internal/storage/memory"
)

func TestArchiveSinkStoresTerminalRecordsOnly(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	sink, err := NewArchiveSink(blobs, "archive", nil)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	done := eventFor("acme-1-abc123", generation.EventCompleted, now)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		eventFor("acme-1-abc123", generation.EventStarted, now.Add(-time.Minute)),
		eventFor("acme-1-abc123", generation.EventContentGenerated, now.Add(-time.Second)),
		done,
	}))

	require.Equal(t, []string{"archive/acme-1-abc123/1700000000000000000.json"}, blobs.Paths())
	data, contentType, ok := blobs.Object(sink.ObjectPath(done))
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)

	var rec generation.ProgressRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, generation.StatusCompleted, rec.Status)
	require.Equal(t, "acme-1-abc123", rec.ClientID)
}

func TestNewArchiveSinkRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := NewArchiveSink(nil, "", nil)
	require.Error(t, err)
}
