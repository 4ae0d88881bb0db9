// Package types holds the shared data model of the chat pipeline. It has
// no dependencies so every other package can import it.
package types

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Ordering is significant and at
// most one leading system turn is treated specially. Turns are immutable
// once created; the pipeline only ever produces new turn sequences.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelConfig selects the backend and model for a request.
type ModelConfig struct {
	Provider      string `json:"provider" yaml:"provider"`
	ModelID       string `json:"modelId" yaml:"model_id"`
	ContextWindow int    `json:"contextWindow" yaml:"context_window"`
}

// ModelResponse is what every dispatch returns: a result object, never an
// exception. Answer and Thinking are disjoint slices of the provider's raw
// output; Thinking may be empty.
type ModelResponse struct {
	Success  bool   `json:"success"`
	Answer   string `json:"answer,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Error    string `json:"error,omitempty"`
}
