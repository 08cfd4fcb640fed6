// Package extraction turns an uploaded spreadsheet or document into typed
// candidate locations and waste-stream projects. The pipeline depends only on
// the Extractor interface; the Claude-backed implementation lives in this
// package too.
package extraction

// CandidateLocation is one extracted location candidate with per-extraction
// confidence and the source text it was derived from.
type CandidateLocation struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`

	// Confidence is 0-100; nil when the model reported none.
	Confidence *int   `json:"confidence,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
}

// CandidateProject is one extracted waste-stream candidate. LocationName ties
// the project to a location candidate in the same result, when the source
// document nests them.
type CandidateProject struct {
	Name             string `json:"name"`
	WasteCategory    string `json:"waste_category,omitempty"`
	HaulerName       string `json:"hauler_name,omitempty"`
	ContainerCount   int    `json:"container_count,omitempty"`
	ServiceFrequency string `json:"service_frequency,omitempty"`
	Notes            string `json:"notes,omitempty"`
	LocationName     string `json:"location_name,omitempty"`

	Confidence *int   `json:"confidence,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
}

// Result is the typed bag of candidates one extraction call produces. An
// empty Result is a successful outcome (the run becomes no_data), distinct
// from an extraction error.
type Result struct {
	Locations    []CandidateLocation `json:"locations"`
	WasteStreams []CandidateProject  `json:"waste_streams"`
}

// Empty reports whether extraction found no usable candidates.
func (r *Result) Empty() bool {
	return len(r.Locations) == 0 && len(r.WasteStreams) == 0
}
