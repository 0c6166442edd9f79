package coordinator

import (
	"context"
	"fmt"

	"github.com/taskbridge/agentloop/core"
	"github.com/taskbridge/agentloop/session"
)

type extractResponse struct {
	ExtractedData map[string]interface{} `json:"extractedData"`
	Confidence    float64                 `json:"confidence"`
}

// Extract implements session.Extractor: a deterministic, low-temperature
// structured-data pull from already-sanitized content.
func (c *Coordinator) Extract(ctx context.Context, in session.ExtractorInput) (session.ExtractorOutput, error) {
	prompt := buildExtractionPrompt(in)

	resp, err := c.chat(ctx, prompt, &core.AIOptions{
		Model:       c.model,
		Temperature: 0.0,
		MaxTokens:   1500,
	})
	if err != nil {
		return session.ExtractorOutput{}, fmt.Errorf("extraction LLM call failed: %w", err)
	}

	var parsed extractResponse
	if err := unmarshalJSONResponse(resp.Content, &parsed); err != nil {
		c.logger.Warn("extraction response did not parse as JSON", map[string]interface{}{
			"error":    err.Error(),
			"response": truncate(resp.Content, 200),
		})
		return session.ExtractorOutput{}, fmt.Errorf("recoverable: %w", err)
	}

	return session.ExtractorOutput{
		ExtractedData: parsed.ExtractedData,
		Confidence:    parsed.Confidence,
		TokensUsed:    resp.Usage.TotalTokens,
	}, nil
}
