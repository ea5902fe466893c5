package generation

import "time"

// Status is the coarse lifecycle state of a generation run.
type Status string

// Supported statuses.
const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStarting, StatusInProgress, StatusCompleted, StatusError:
		return true
	}
	return false
}

// StepID names one of the fixed pipeline steps.
type StepID string

// Pipeline steps in execution order.
const (
	StepUpload        StepID = "upload"
	StepAnalyze       StepID = "analyze"
	StepGenerateTheme StepID = "generate-theme"
	StepCreateRepo    StepID = "create-repo"
	StepDeployPreview StepID = "deploy-preview"
)

// StepError is the currentStep value reported for failed runs.
const StepError StepID = "error"

// Steps lists every pipeline step in order.
var Steps = []StepID{StepUpload, StepAnalyze, StepGenerateTheme, StepCreateRepo, StepDeployPreview}

// StepState is the state of a single pipeline step.
type StepState string

// Supported step states.
const (
	StepPending    StepState = "pending"
	StepInProgress StepState = "in-progress"
	StepCompleted  StepState = "completed"
	StepFailed     StepState = "failed"
)

// StepMap holds the state of every pipeline step.
type StepMap map[StepID]StepState

// Clone returns an independent copy of m.
func (m StepMap) Clone() StepMap {
	if m == nil {
		return nil
	}
	out := make(StepMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ProgressRecord is the normalized status snapshot for one client.
type ProgressRecord struct {
	ClientID               string    `json:"clientId"`
	Status                 Status    `json:"status"`
	Progress               int       `json:"progress"`
	CurrentStep            StepID    `json:"currentStep"`
	Steps                  StepMap   `json:"steps"`
	Message                string    `json:"message"`
	PreviewURL             string    `json:"previewUrl,omitempty"`
	RepositoryURL          string    `json:"repositoryUrl,omitempty"`
	Error                  string    `json:"error,omitempty"`
	EstimatedTimeRemaining *int      `json:"estimatedTimeRemaining,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt,omitzero"`
}

// Clone returns a deep copy so callers never share the steps map.
func (r ProgressRecord) Clone() ProgressRecord {
	out := r
	out.Steps = r.Steps.Clone()
	if r.EstimatedTimeRemaining != nil {
		eta := *r.EstimatedTimeRemaining
		out.EstimatedTimeRemaining = &eta
	}
	return out
}

// Default is the record reported for a client no webhook has been received
// for yet. It is never stored.
func Default(clientID string) ProgressRecord {
	eta := EstimateRemaining(0)
	return ProgressRecord{
		ClientID:               clientID,
		Status:                 StatusStarting,
		Progress:               0,
		CurrentStep:            StepUpload,
		Steps:                  uniformSteps(StepPending),
		Message:                "Initializing website generation...",
		EstimatedTimeRemaining: &eta,
	}
}

func uniformSteps(state StepState) StepMap {
	m := make(StepMap, len(Steps))
	for _, id := range Steps {
		m[id] = state
	}
	return m
}
