package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// LocationData is the normalized payload shape for location items.
type LocationData struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// WasteCategory enumerates the waste-stream classes a project may carry.
var wasteCategories = map[string]bool{
	"msw":          true,
	"recycling":    true,
	"organics":     true,
	"construction": true,
	"hazardous":    true,
	"universal":    true,
	"other":        true,
}

// ProjectData is the normalized payload shape for waste-stream project items.
type ProjectData struct {
	Name             string `json:"name"`
	WasteCategory    string `json:"waste_category"`
	HaulerName       string `json:"hauler_name,omitempty"`
	ContainerCount   int    `json:"container_count,omitempty"`
	ServiceFrequency string `json:"service_frequency,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// DecodeLocationData validates raw JSON against the location schema. Unknown
// fields and missing required fields are rejected, never coerced.
func DecodeLocationData(raw json.RawMessage) (*LocationData, error) {
	var d LocationData
	if err := decodeStrict(raw, &d); err != nil {
		return nil, eris.Wrap(err, "model: location payload")
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, eris.New("model: location payload: name is required")
	}
	return &d, nil
}

// DecodeProjectData validates raw JSON against the project schema.
func DecodeProjectData(raw json.RawMessage) (*ProjectData, error) {
	var d ProjectData
	if err := decodeStrict(raw, &d); err != nil {
		return nil, eris.Wrap(err, "model: project payload")
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, eris.New("model: project payload: name is required")
	}
	if d.WasteCategory != "" && !wasteCategories[d.WasteCategory] {
		return nil, eris.Errorf("model: project payload: unknown waste_category %q", d.WasteCategory)
	}
	if d.ContainerCount < 0 {
		return nil, eris.New("model: project payload: container_count must be non-negative")
	}
	return &d, nil
}

// ValidatePayload checks raw JSON against the schema matching the item type.
func ValidatePayload(t ItemType, raw json.RawMessage) error {
	switch t {
	case ItemTypeLocation:
		_, err := DecodeLocationData(raw)
		return err
	case ItemTypeProject:
		_, err := DecodeProjectData(raw)
		return err
	default:
		return eris.Errorf("model: unknown item type %q", t)
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return eris.New("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
