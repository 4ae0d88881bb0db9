package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/applymytech/openElara-sub000/internal/articulation"
	"github.com/applymytech/openElara-sub000/internal/logging"
)

// OllamaClient is the local-model adapter. No API key is required; it
// posts chat requests to a local Ollama server.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// DefaultOllamaConfig returns sensible defaults for a local server.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Timeout: 120 * time.Second,
	}
}

// NewOllamaClient creates a local-model adapter. An empty base URL falls
// back to the default local endpoint.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultOllamaConfig().Timeout
	}
	return &OllamaClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Dispatch sends the request to the local server and cleans the reply.
func (c *OllamaClient) Dispatch(ctx context.Context, req ChatRequest) ModelResponse {
	log := logging.Get(logging.CategoryAPI)

	messages := mergeAttachments(req.Turns, req.AttachedFileContent, req.ContextCanvasFiles)
	body, err := json.Marshal(ollamaRequest{
		Model:    req.ModelID,
		Messages: wireMessages(messages),
		Stream:   false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Errorf("ollama request failed: %v", err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("ollama response read failed: %v", err)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		log.Errorf("ollama request failed with status %d: %s", resp.StatusCode, raw)
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: status %d", resp.StatusCode)}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %v", err)}
	}
	if parsed.Error != "" {
		return ModelResponse{Success: false, Error: fmt.Sprintf("Ollama API Error: %s", parsed.Error)}
	}

	res := articulation.Extract(parsed.Message.Content)
	return ModelResponse{Success: true, Answer: res.Answer, Thinking: res.Thinking}
}
