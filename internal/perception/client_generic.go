package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/sjson"

	"github.com/applymytech/openElara-sub000/internal/articulation"
	"github.com/applymytech/openElara-sub000/internal/logging"
)

// GenericClient is the adapter for arbitrary OpenAI-style providers. Each
// instance is bound to one stored provider configuration: endpoint, key,
// and optional extra payload fields merged verbatim into every request.
type GenericClient struct {
	config     GenericConfig
	httpClient *http.Client
}

// NewGenericClient creates an adapter for one stored provider config.
func NewGenericClient(config GenericConfig) *GenericClient {
	return &GenericClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Dispatch posts the request to the provider's completions URL. Extra
// payload fields from the stored configuration are merged into the body
// after the standard fields, so the configuration wins on conflicts.
func (c *GenericClient) Dispatch(ctx context.Context, req ChatRequest) ModelResponse {
	log := logging.Get(logging.CategoryAPI)

	messages := mergeAttachments(req.Turns, req.AttachedFileContent, req.ContextCanvasFiles)
	body, err := json.Marshal(completionsRequest{
		Model:       req.ModelID,
		Messages:    wireMessages(messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API Error: %v", err)}
	}

	for key, value := range c.config.ExtraPayload {
		body, err = sjson.SetBytes(body, key, value)
		if err != nil {
			log.Warnf("skipping extra payload field %q for %s: %v", key, c.config.Name, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.CompletionsURL, bytes.NewReader(body))
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API Error: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Errorf("custom API request failed for %s: %v", c.config.Name, err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API Error: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API Error: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API [%s] rate limit exceeded. Please wait a moment.", c.config.Name)}
	}

	content, err := completionContent(raw)
	if err != nil {
		log.Errorf("custom API request failed for %s with status %d: %v", c.config.Name, resp.StatusCode, err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Custom API Error: %v", err)}
	}

	res := articulation.Extract(content)
	return ModelResponse{Success: true, Answer: res.Answer, Thinking: res.Thinking}
}
