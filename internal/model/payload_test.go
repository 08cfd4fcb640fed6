package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLocationData_Valid(t *testing.T) {
	raw := json.RawMessage(`{"name":"Central Depot","address":"12 Main St","city":"Austin","state":"TX","postal_code":"78701"}`)
	d, err := DecodeLocationData(raw)
	require.NoError(t, err)
	assert.Equal(t, "Central Depot", d.Name)
	assert.Equal(t, "Austin", d.City)
}

func TestDecodeLocationData_MissingName(t *testing.T) {
	_, err := DecodeLocationData(json.RawMessage(`{"city":"Austin"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestDecodeLocationData_UnknownField(t *testing.T) {
	_, err := DecodeLocationData(json.RawMessage(`{"name":"Depot","latitude":30.2}`))
	require.Error(t, err)
}

func TestDecodeProjectData_Valid(t *testing.T) {
	raw := json.RawMessage(`{"name":"Cardboard recycling","waste_category":"recycling","hauler_name":"GreenHaul","container_count":3,"service_frequency":"weekly"}`)
	d, err := DecodeProjectData(raw)
	require.NoError(t, err)
	assert.Equal(t, "recycling", d.WasteCategory)
	assert.Equal(t, 3, d.ContainerCount)
}

func TestDecodeProjectData_UnknownCategory(t *testing.T) {
	_, err := DecodeProjectData(json.RawMessage(`{"name":"Mystery","waste_category":"plasma"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waste_category")
}

func TestDecodeProjectData_NegativeContainers(t *testing.T) {
	_, err := DecodeProjectData(json.RawMessage(`{"name":"Bins","waste_category":"msw","container_count":-1}`))
	require.Error(t, err)
}

func TestValidatePayload_UnknownType(t *testing.T) {
	err := ValidatePayload(ItemType("widget"), json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestEffectiveData_PrefersAmendments(t *testing.T) {
	it := &ImportItem{
		NormalizedData: json.RawMessage(`{"name":"original"}`),
		UserAmendments: json.RawMessage(`{"name":"amended"}`),
	}
	assert.JSONEq(t, `{"name":"amended"}`, string(it.EffectiveData()))

	it.UserAmendments = nil
	assert.JSONEq(t, `{"name":"original"}`, string(it.EffectiveData()))
}
