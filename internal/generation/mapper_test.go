package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMapTable(t *testing.T) {
	t.Parallel()

	P, I, C := StepPending, StepInProgress, StepCompleted
	tests := []struct {
		event    string
		status   Status
		progress int
		current  StepID
		steps    [5]StepState
	}{
		{EventStarted, StatusStarting, 10, StepUpload, [5]StepState{I, P, P, P, P}},
		{EventLogoProcessed, StatusInProgress, 25, StepAnalyze, [5]StepState{C, I, P, P, P}},
		{EventLogoSkipped, StatusInProgress, 25, StepGenerateTheme, [5]StepState{C, C, I, P, P}},
		{EventContentGenerated, StatusInProgress, 60, StepCreateRepo, [5]StepState{C, C, C, I, P}},
		{EventCompleted, StatusCompleted, 100, StepDeployPreview, [5]StepState{C, C, C, C, C}},
		{EventFailed, StatusError, 0, StepError, [5]StepState{P, P, P, P, P}},
		{"theme_tweaked", StatusInProgress, 50, StepGenerateTheme, [5]StepState{P, P, I, P, P}},
		{"", StatusInProgress, 50, StepGenerateTheme, [5]StepState{P, P, I, P, P}},
		{EventCancelled, StatusInProgress, 50, StepGenerateTheme, [5]StepState{P, P, I, P, P}},
		{"FAILED", StatusInProgress, 50, StepGenerateTheme, [5]StepState{P, P, I, P, P}},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			t.Parallel()
			got := Map(tt.event)
			require.Equal(t, tt.status, got.Status)
			require.Equal(t, tt.progress, got.Progress)
			require.Equal(t, tt.current, got.CurrentStep)
			require.Len(t, got.Steps, len(Steps))
			for i, id := range Steps {
				require.Equal(t, tt.steps[i], got.Steps[id], "step %s", id)
			}
		})
	}
}

func TestMapReturnsFreshSteps(t *testing.T) {
	t.Parallel()

	first := Map(EventStarted)
	first.Steps[StepUpload] = StepFailed
	require.Equal(t, StepInProgress, Map(EventStarted).Steps[StepUpload])
}

func TestEstimateRemaining(t *testing.T) {
	t.Parallel()

	cases := map[int]int{
		0:   300,
		10:  270,
		25:  225,
		50:  150,
		60:  120,
		99:  3,
		100: 0,
		120: 0,
	}
	for progress, want := range cases {
		require.Equal(t, want, EstimateRemaining(progress), "progress %d", progress)
	}
}

func TestDefaultRecord(t *testing.T) {
	t.Parallel()

	rec := Default("acme-1700000000-abc123")
	require.Equal(t, "acme-1700000000-abc123", rec.ClientID)
	require.Equal(t, StatusStarting, rec.Status)
	require.Equal(t, 0, rec.Progress)
	require.Equal(t, StepUpload, rec.CurrentStep)
	for _, id := range Steps {
		require.Equal(t, StepPending, rec.Steps[id])
	}
	require.NotNil(t, rec.EstimatedTimeRemaining)
	require.Equal(t, 300, *rec.EstimatedTimeRemaining)
	require.True(t, rec.UpdatedAt.IsZero())
	require.Equal(t, rec, Default("acme-1700000000-abc123"))
}

func TestFromEventPassesThroughFields(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := FromEvent(WebhookEvent{
		Status:     EventCompleted,
		ClientName: "acme-1",
		Message:    "done",
		PRURL:      "https://github.com/org/repo/pull/1",
		PreviewURL: "https://preview.example.com",
	}, now)

	require.Equal(t, "acme-1", rec.ClientID)
	require.Equal(t, StatusCompleted, rec.Status)
	require.Equal(t, 100, rec.Progress)
	require.Equal(t, "done", rec.Message)
	require.Equal(t, "https://github.com/org/repo/pull/1", rec.RepositoryURL)
	require.Equal(t, "https://preview.example.com", rec.PreviewURL)
	require.Equal(t, 0, *rec.EstimatedTimeRemaining)
	require.Equal(t, now, rec.UpdatedAt)
}

func TestFromEventFailureKeepsError(t *testing.T) {
	t.Parallel()

	rec := FromEvent(WebhookEvent{Status: EventFailed, ClientName: "acme-1", Error: "build broke"}, time.Now())
	require.Equal(t, StatusError, rec.Status)
	require.Equal(t, 0, rec.Progress)
	require.Equal(t, StepError, rec.CurrentStep)
	require.Equal(t, "build broke", rec.Error)
	require.Equal(t, "Website generation failed", rec.Message)
	require.Equal(t, 300, *rec.EstimatedTimeRemaining)
}

func TestCancelledUsesFailedRow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := Cancelled("acme-1", "cancelled by user", now)
	failed := Map(EventFailed)
	require.Equal(t, "acme-1", rec.ClientID)
	require.Equal(t, failed.Status, rec.Status)
	require.Equal(t, failed.Progress, rec.Progress)
	require.Equal(t, failed.CurrentStep, rec.CurrentStep)
	require.Equal(t, failed.Steps, rec.Steps)
	require.Equal(t, "cancelled by user", rec.Error)
	require.Equal(t, "Website generation cancelled", rec.Message)
	require.Equal(t, now, rec.UpdatedAt)
}

func TestFromEventCancelledIsNotTerminal(t *testing.T) {
	t.Parallel()

	rec := FromEvent(WebhookEvent{Status: EventCancelled, ClientName: "acme-1"}, time.Now())
	require.Equal(t, StatusInProgress, rec.Status)
	require.Equal(t, 50, rec.Progress)
	require.False(t, rec.Status.Terminal())
}

func TestRecordCloneIsDeep(t *testing.T) {
	t.Parallel()

	rec := FromEvent(WebhookEvent{Status: EventStarted, ClientName: "c"}, time.Now())
	cp := rec.Clone()
	cp.Steps[StepUpload] = StepFailed
	*cp.EstimatedTimeRemaining = 1
	require.Equal(t, StepInProgress, rec.Steps[StepUpload])
	require.Equal(t, 270, *rec.EstimatedTimeRemaining)
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusError.Terminal())
	require.False(t, StatusStarting.Terminal())
	require.False(t, StatusInProgress.Terminal())
	require.False(t, Status("bogus").Valid())
}
