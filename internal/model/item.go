package model

import (
	"encoding/json"
	"time"
)

// ItemType discriminates the two candidate entity kinds extraction produces.
type ItemType string

const (
	ItemTypeLocation ItemType = "location"
	ItemTypeProject  ItemType = "project"
)

// ItemStatus represents the review lifecycle state of an import item.
type ItemStatus string

const (
	ItemStatusPendingReview ItemStatus = "pending_review"
	ItemStatusAccepted      ItemStatus = "accepted"
	ItemStatusAmended       ItemStatus = "amended"
	ItemStatusRejected      ItemStatus = "rejected"
	ItemStatusInvalid       ItemStatus = "invalid"
)

// DuplicateCandidate is one ranked match against an existing tenant entity.
type DuplicateCandidate struct {
	EntityID string  `json:"entity_id"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

// ImportItem is one candidate location or project extracted within a run.
type ImportItem struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	RunID    string     `json:"run_id"`
	Type     ItemType   `json:"item_type"`
	Status   ItemStatus `json:"status"`

	NeedsReview bool `json:"needs_review"`
	// Confidence is the extraction confidence in [0,100]; nil when the
	// adapter reported none.
	Confidence *int `json:"confidence,omitempty"`

	ExtractedData  json.RawMessage `json:"extracted_data"`
	NormalizedData json.RawMessage `json:"normalized_data"`
	// UserAmendments holds the reviewer's replacement payload, kept separate
	// from NormalizedData so provenance is preserved.
	UserAmendments json.RawMessage `json:"user_amendments,omitempty"`
	ReviewNotes    string          `json:"review_notes,omitempty"`

	DuplicateCandidates []DuplicateCandidate `json:"duplicate_candidates,omitempty"`
	ConfirmCreateNew    bool                 `json:"confirm_create_new"`
	SelectedDuplicateID *string              `json:"selected_duplicate_id,omitempty"`

	ParentItemID *string `json:"parent_item_id,omitempty"`

	CreatedLocationID *string `json:"created_location_id,omitempty"`
	CreatedProjectID  *string `json:"created_project_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveData returns the payload the Finalizer should materialize: the
// reviewer's amendments when present, otherwise the normalized extraction.
func (it *ImportItem) EffectiveData() json.RawMessage {
	if len(it.UserAmendments) > 0 {
		return it.UserAmendments
	}
	return it.NormalizedData
}

// Materialized reports whether the item has already produced a production
// entity. Used as the finalize idempotency guard.
func (it *ImportItem) Materialized() bool {
	return it.CreatedLocationID != nil || it.CreatedProjectID != nil
}
