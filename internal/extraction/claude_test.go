package extraction

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-env/wastestream/pkg/anthropic"
)

// fakeClient returns canned responses for extractor tests.
type fakeClient struct {
	text string
	err  error

	lastReq anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func TestClaudeExtractor_Extract(t *testing.T) {
	client := &fakeClient{text: `{
		"locations": [{"name": "Plant A", "city": "Dayton", "state": "OH", "confidence": 92, "evidence": "Plant A, Dayton OH"}],
		"waste_streams": [{"name": "Cardboard OCC", "waste_category": "recycling", "location_name": "Plant A", "confidence": 88}]
	}`}
	ex := NewClaudeExtractor(client, ClaudeConfig{Model: "claude-sonnet-4-5-20250929"})

	result, err := ex.Extract(context.Background(), []byte("Plant A\tDayton\tOH"), "sites.csv")
	require.NoError(t, err)
	require.Len(t, result.Locations, 1)
	require.Len(t, result.WasteStreams, 1)
	assert.Equal(t, "Plant A", result.Locations[0].Name)
	assert.Equal(t, 92, *result.Locations[0].Confidence)
	assert.Equal(t, "Plant A", result.WasteStreams[0].LocationName)
	assert.False(t, result.Empty())

	assert.Contains(t, client.lastReq.Messages[0].Content, "sites.csv")
}

func TestClaudeExtractor_PropagatesClientError(t *testing.T) {
	client := &fakeClient{err: eris.New("api_error: Overloaded")}
	ex := NewClaudeExtractor(client, ClaudeConfig{Model: "m"})

	_, err := ex.Extract(context.Background(), []byte("data"), "sites.csv")
	require.Error(t, err)
}

func TestClaudeExtractor_RejectsEmptyFile(t *testing.T) {
	ex := NewClaudeExtractor(&fakeClient{}, ClaudeConfig{Model: "m"})
	_, err := ex.Extract(context.Background(), nil, "sites.csv")
	require.Error(t, err)
}

func TestParseResult_SurroundingProse(t *testing.T) {
	result, err := ParseResult(`Here is the extraction: {"locations":[{"name":"Depot"}],"waste_streams":[]} Hope that helps!`)
	require.NoError(t, err)
	require.Len(t, result.Locations, 1)
	assert.Equal(t, "Depot", result.Locations[0].Name)
}

func TestParseResult_EmptyArraysMeanNoData(t *testing.T) {
	result, err := ParseResult(`{"locations":[],"waste_streams":[]}`)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestParseResult_MalformedJSON(t *testing.T) {
	_, err := ParseResult(`{"locations": [`)
	require.Error(t, err)
}

func TestParseResult_NoJSON(t *testing.T) {
	_, err := ParseResult(`I could not process this document.`)
	require.Error(t, err)
}

func TestParseResult_ClampsConfidence(t *testing.T) {
	result, err := ParseResult(`{"locations":[{"name":"A","confidence":150},{"name":"B","confidence":-3}],"waste_streams":[]}`)
	require.NoError(t, err)
	assert.Equal(t, 100, *result.Locations[0].Confidence)
	assert.Equal(t, 0, *result.Locations[1].Confidence)
}

func TestFileToText_PlainTextCSV(t *testing.T) {
	text, err := FileToText([]byte("name,city\nPlant A,Dayton"), "sites.csv")
	require.NoError(t, err)
	assert.Contains(t, text, "Plant A")
}

func TestFileToText_RejectsBinaryGarbage(t *testing.T) {
	_, err := FileToText([]byte{0xff, 0xfe, 0x00, 0x81}, "sites.bin")
	require.Error(t, err)
}
