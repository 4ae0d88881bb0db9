package perception

import (
	"context"
	"time"

	"github.com/applymytech/openElara-sub000/internal/types"
)

// Turn is an alias to types.Turn for package compatibility.
type Turn = types.Turn

const (
	RoleSystem = types.RoleSystem
	RoleUser   = types.RoleUser
)

// ModelResponse is an alias to types.ModelResponse for package compatibility.
type ModelResponse = types.ModelResponse

// ChatRequest is the provider-agnostic dispatch input: the augmented turn
// list plus sampling and output-limit settings.
type ChatRequest struct {
	Turns       []Turn
	ModelID     string
	Temperature float64
	// MaxTokens is the output reservation forwarded to the provider.
	MaxTokens int

	// Optional per-turn material merged into the last user message
	// before dispatch.
	AttachedFileContent string
	ContextCanvasFiles  map[string]string
}

// Adapter dispatches one request to a model backend. Adapters return a
// result object in every case, never an error: the UI layer must always
// receive a ModelResponse.
type Adapter interface {
	Dispatch(ctx context.Context, req ChatRequest) ModelResponse
}

// OllamaConfig holds configuration for the local-model adapter.
type OllamaConfig struct {
	BaseURL string
	Timeout time.Duration
}

// TogetherConfig holds configuration for the hosted-model adapter.
type TogetherConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GenericConfig holds configuration for one OpenAI-style custom provider,
// looked up by display name from the provider store.
type GenericConfig struct {
	Name           string         `json:"name"`
	APIKey         string         `json:"apiKey"`
	CompletionsURL string         `json:"completionsUrl"`
	ExtraPayload   map[string]any `json:"customPayload,omitempty"`
}

// wireMessage is the chat-style message shape shared by all three
// provider wire formats.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func wireMessages(turns []Turn) []wireMessage {
	msgs := make([]wireMessage, len(turns))
	for i, t := range turns {
		msgs[i] = wireMessage{Role: string(t.Role), Content: t.Content}
	}
	return msgs
}
