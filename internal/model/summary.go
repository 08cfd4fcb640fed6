package model

// RunSummary is the finalize result snapshot stored on a completed run.
type RunSummary struct {
	LocationsCreated   int `json:"locations_created"`
	ProjectsCreated    int `json:"projects_created"`
	Rejected           int `json:"rejected"`
	Invalid            int `json:"invalid"`
	DuplicatesResolved int `json:"duplicates_resolved"`

	// OrphanedProjectItems lists project items whose parent location was not
	// created or linked during finalize. They are surfaced for the orphan
	// import flow, never silently dropped.
	OrphanedProjectItems []string `json:"orphaned_project_items,omitempty"`
}
