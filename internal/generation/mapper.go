package generation

import (
	"math"
	"time"
)

// External event names sent by the generation workflow.
const (
	EventStarted          = "started"
	EventLogoProcessed    = "logo_processed"
	EventLogoSkipped      = "logo_skipped"
	EventContentGenerated = "content_generated"
	EventCompleted        = "completed"
	EventFailed           = "failed"
)

// EventCancelled names the hub event emitted when a caller cancels a run.
// It is not a workflow event: Map treats it like any unrecognized name.
const EventCancelled = "cancelled"

// estimatedTotalSeconds is the nominal duration of a full run.
const estimatedTotalSeconds = 300

// Mapping is the mapper output for a single event.
type Mapping struct {
	Status      Status
	Progress    int
	CurrentStep StepID
	Steps       StepMap
}

// Map converts an external event name into status, progress, current step,
// and step states. Unknown names map to a generic in-progress row.
func Map(event string) Mapping {
	switch event {
	case EventStarted:
		return Mapping{
			Status:      StatusStarting,
			Progress:    10,
			CurrentStep: StepUpload,
			Steps:       stepsUpTo(StepUpload),
		}
	case EventLogoProcessed:
		return Mapping{
			Status:      StatusInProgress,
			Progress:    25,
			CurrentStep: StepAnalyze,
			Steps:       stepsUpTo(StepAnalyze),
		}
	case EventLogoSkipped:
		return Mapping{
			Status:      StatusInProgress,
			Progress:    25,
			CurrentStep: StepGenerateTheme,
			Steps:       stepsUpTo(StepGenerateTheme),
		}
	case EventContentGenerated:
		return Mapping{
			Status:      StatusInProgress,
			Progress:    60,
			CurrentStep: StepCreateRepo,
			Steps:       stepsUpTo(StepCreateRepo),
		}
	case EventCompleted:
		return Mapping{
			Status:      StatusCompleted,
			Progress:    100,
			CurrentStep: StepDeployPreview,
			Steps:       uniformSteps(StepCompleted),
		}
	case EventFailed:
		return Mapping{
			Status:      StatusError,
			Progress:    0,
			CurrentStep: StepError,
			Steps:       uniformSteps(StepPending),
		}
	default:
		steps := uniformSteps(StepPending)
		steps[StepGenerateTheme] = StepInProgress
		return Mapping{
			Status:      StatusInProgress,
			Progress:    50,
			CurrentStep: StepGenerateTheme,
			Steps:       steps,
		}
	}
}

// stepsUpTo marks every step before current as completed, current as
// in-progress, and the rest as pending.
func stepsUpTo(current StepID) StepMap {
	m := make(StepMap, len(Steps))
	state := StepCompleted
	for _, id := range Steps {
		if id == current {
			m[id] = StepInProgress
			state = StepPending
			continue
		}
		m[id] = state
	}
	return m
}

// EstimateRemaining converts progress into a seconds-remaining estimate
// against a nominal five minute run. It never returns a negative value.
func EstimateRemaining(progress int) int {
	eta := int(math.Round(float64(100-progress) / 100 * estimatedTotalSeconds))
	if eta < 0 {
		return 0
	}
	return eta
}

// FromEvent assembles the full record stored for evt. Each event replaces
// the previous record for the client entirely.
func FromEvent(evt WebhookEvent, now time.Time) ProgressRecord {
	m := Map(evt.Status)
	eta := EstimateRemaining(m.Progress)
	msg := evt.Message
	if msg == "" {
		msg = defaultMessage(evt.Status)
	}
	return ProgressRecord{
		ClientID:               evt.ClientName,
		Status:                 m.Status,
		Progress:               m.Progress,
		CurrentStep:            m.CurrentStep,
		Steps:                  m.Steps,
		Message:                msg,
		PreviewURL:             evt.PreviewURL,
		RepositoryURL:          evt.PRURL,
		Error:                  evt.Error,
		EstimatedTimeRemaining: &eta,
		UpdatedAt:              now.UTC(),
	}
}

// Cancelled is the record stored when a caller cancels a run: the failed row
// with a cancellation message and reason.
func Cancelled(clientID, reason string, now time.Time) ProgressRecord {
	rec := FromEvent(WebhookEvent{Status: EventFailed, ClientName: clientID, Error: reason}, now)
	rec.Message = "Website generation cancelled"
	return rec
}

func defaultMessage(event string) string {
	switch event {
	case EventStarted:
		return "Processing started"
	case EventLogoProcessed:
		return "Logo processed, analyzing brand"
	case EventLogoSkipped:
		return "No logo provided, generating theme"
	case EventContentGenerated:
		return "Content generated, creating repository"
	case EventCompleted:
		return "Website generation completed"
	case EventFailed:
		return "Website generation failed"
	default:
		return "Generation in progress"
	}
}
