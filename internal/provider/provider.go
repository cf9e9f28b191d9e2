// Package provider abstracts the model API consumed by the conversation
// loop. The core depends only on Client; the Anthropic implementation is the
// default wiring.
package provider

import (
	"context"
	"encoding/json"

	"github.com/easel-ai/easel/pkg/types"
)

// ToolInfo declares one tool to the model: a stable name, a description, and
// a JSON Schema for its input.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is one completion request carrying the full transcript.
type Request struct {
	Model     string          `json:"model"`
	System    string          `json:"system,omitempty"`
	Messages  []types.Message `json:"messages"`
	Tools     []ToolInfo      `json:"tools,omitempty"`
	MaxTokens int             `json:"maxTokens,omitempty"`
}

// Response is the model's reply: content blocks plus the stop reason.
type Response struct {
	Blocks     []types.Block `json:"blocks"`
	StopReason string        `json:"stopReason"`
}

// Client issues blocking completion requests to a model API.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
