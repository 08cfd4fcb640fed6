package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridian-env/wastestream/pkg/anthropic"
)

// Extractor is the adapter the import worker invokes. Implementations may be
// slow, fallible, and rate-limited; transient failures must be wrapped as
// resilience.TransientError so the worker can distinguish retryable from
// terminal errors.
type Extractor interface {
	Extract(ctx context.Context, file []byte, filename string) (*Result, error)
}

const extractionSystem = `You are a waste-stream assessment analyst. You read facility spreadsheets and service documents and extract candidate locations and waste-stream records. Return only valid JSON matching the requested schema. Use null for values not present in the document. Never invent data.`

const extractionPrompt = `Extract every facility location and waste-stream service record from this document.

Document name: %s
Document content:
%s

Return a JSON object with this exact shape:
{
  "locations": [
    {"name": "...", "address": "...", "city": "...", "state": "...", "postal_code": "...", "confidence": <0-100>, "evidence": "<verbatim source text>"}
  ],
  "waste_streams": [
    {"name": "...", "waste_category": "<msw|recycling|organics|construction|hazardous|universal|other>", "hauler_name": "...", "container_count": <int>, "service_frequency": "...", "notes": "...", "location_name": "<name of the location this service belongs to, if stated>", "confidence": <0-100>, "evidence": "<verbatim source text>"}
  ]
}

Both arrays may be empty if the document contains no such records.`

// ClaudeConfig configures the Claude-backed extractor.
type ClaudeConfig struct {
	Model     string
	MaxTokens int64
	// RequestsPerMinute throttles adapter calls across a worker process.
	// Zero disables throttling.
	RequestsPerMinute int
}

// ClaudeExtractor implements Extractor on the Anthropic Messages API.
type ClaudeExtractor struct {
	client  anthropic.Client
	cfg     ClaudeConfig
	limiter *rate.Limiter
}

// NewClaudeExtractor creates an extractor with an optional rate limiter.
func NewClaudeExtractor(client anthropic.Client, cfg ClaudeConfig) *ClaudeExtractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return &ClaudeExtractor{client: client, cfg: cfg, limiter: limiter}
}

func (e *ClaudeExtractor) Extract(ctx context.Context, file []byte, filename string) (*Result, error) {
	text, err := FileToText(file, filename)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extraction: rate limit wait")
		}
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    extractionSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, filename, text)},
		},
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("extraction call complete",
		zap.String("model", e.cfg.Model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	return ParseResult(resp.Text())
}

// ParseResult decodes the model's JSON response, tolerating surrounding prose
// and clamping confidences into [0,100].
func ParseResult(text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("extraction: empty model response")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("extraction: no JSON in model response: %.120s", text)
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, eris.Wrap(err, "extraction: parse model response")
	}

	for i := range result.Locations {
		result.Locations[i].Confidence = clampConfidence(result.Locations[i].Confidence)
	}
	for i := range result.WasteStreams {
		result.WasteStreams[i].Confidence = clampConfidence(result.WasteStreams[i].Confidence)
	}

	return &result, nil
}

func clampConfidence(c *int) *int {
	if c == nil {
		return nil
	}
	v := *c
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
