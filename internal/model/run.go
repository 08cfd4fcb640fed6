// Package model defines the import pipeline's persistent data model: runs,
// items, their status machines, and the typed payloads extraction produces.
package model

import "time"

// RunStatus represents the lifecycle state of an import run.
type RunStatus string

const (
	RunStatusUploaded    RunStatus = "uploaded"
	RunStatusProcessing  RunStatus = "processing"
	RunStatusReviewReady RunStatus = "review_ready"
	RunStatusFinalizing  RunStatus = "finalizing"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusNoData      RunStatus = "no_data"
)

// runTransitions is the set of legal forward edges. Terminal states have no
// outgoing edges; processing → uploaded is the retry path and consumes an
// attempt.
var runTransitions = map[RunStatus][]RunStatus{
	RunStatusUploaded:    {RunStatusProcessing},
	RunStatusProcessing:  {RunStatusUploaded, RunStatusReviewReady, RunStatusFailed, RunStatusNoData},
	RunStatusReviewReady: {RunStatusFinalizing},
	RunStatusFinalizing:  {RunStatusCompleted, RunStatusFailed},
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to RunStatus) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a run status permits no further transitions.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusNoData:
		return true
	}
	return false
}

// Machine-readable processing_error codes for failed runs.
const (
	ErrCodeExtractionFailed = "extraction_failed"
	ErrCodeRetriesExhausted = "retries_exhausted"
)

// ImportRun is one bulk-import attempt tied to a single uploaded file.
type ImportRun struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	CompanyID       string    `json:"company_id"`
	EntryLocationID *string   `json:"entry_location_id,omitempty"`
	SourceFileKey   string    `json:"source_file_key"`
	SourceFileName  string    `json:"source_file_name"`
	Status          RunStatus `json:"status"`
	ProgressStep    string    `json:"progress_step,omitempty"`
	ProcessingError string    `json:"processing_error,omitempty"`

	ProcessingAttempts    int        `json:"processing_attempts"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingAvailableAt time.Time  `json:"processing_available_at"`

	TotalItems     int `json:"total_items"`
	AcceptedCount  int `json:"accepted_count"`
	RejectedCount  int `json:"rejected_count"`
	AmendedCount   int `json:"amended_count"`
	InvalidCount   int `json:"invalid_count"`
	DuplicateCount int `json:"duplicate_count"`

	CreatedBy        string      `json:"created_by"`
	FinalizedBy      *string     `json:"finalized_by,omitempty"`
	FinalizedAt      *time.Time  `json:"finalized_at,omitempty"`
	Summary          *RunSummary `json:"summary,omitempty"`
	ArtifactsPurgedAt *time.Time `json:"artifacts_purged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
