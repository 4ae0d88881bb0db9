package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/applymytech/openElara-sub000/internal/articulation"
	"github.com/applymytech/openElara-sub000/internal/logging"
)

// TogetherClient is the hosted-model adapter. It requires an API key and
// posts to a fixed chat-completions endpoint.
type TogetherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// DefaultTogetherConfig returns sensible defaults.
func DefaultTogetherConfig(apiKey string) TogetherConfig {
	return TogetherConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.together.xyz/v1",
		Timeout: 120 * time.Second,
	}
}

// NewTogetherClient creates a hosted-model adapter.
func NewTogetherClient(config TogetherConfig) *TogetherClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultTogetherConfig("").BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTogetherConfig("").Timeout
	}
	return &TogetherClient{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type completionsRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// completionContent pulls the first choice's message content out of an
// OpenAI-chat-completions-style reply.
func completionContent(raw []byte) (string, error) {
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		if errMsg := gjson.GetBytes(raw, "error.message"); errMsg.Exists() {
			return "", fmt.Errorf("API error: %s", errMsg.String())
		}
		return "", fmt.Errorf("no completion returned")
	}
	return content.String(), nil
}

// Dispatch sends the request to the hosted endpoint and cleans the reply.
// A 429 is reported as a distinguishable rate-limit error and is not
// retried here; retry policy belongs to the caller.
func (c *TogetherClient) Dispatch(ctx context.Context, req ChatRequest) ModelResponse {
	log := logging.Get(logging.CategoryAPI)

	if c.apiKey == "" {
		return ModelResponse{Success: false, Error: "TogetherAI API Key is not set."}
	}

	messages := mergeAttachments(req.Turns, req.AttachedFileContent, req.ContextCanvasFiles)
	body, err := json.Marshal(completionsRequest{
		Model:       req.ModelID,
		Messages:    wireMessages(messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Together.ai API Error: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Together.ai API Error: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Errorf("together request failed: %v", err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Together.ai API Error: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Together.ai API Error: %v", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ModelResponse{Success: false, Error: "TogetherAI API rate limit exceeded. Please wait a moment."}
	}

	content, err := completionContent(raw)
	if err != nil {
		log.Errorf("together request failed with status %d: %v", resp.StatusCode, err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Together.ai API Error: %v", err)}
	}

	res := articulation.Extract(content)
	return ModelResponse{Success: true, Answer: res.Answer, Thinking: res.Thinking}
}
