package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Block is one content block inside a message. Assistant messages carry text
// and tool_use blocks; user messages carry text or tool_result blocks.
type Block interface {
	BlockKind() string
}

// TextBlock is plain conversational text.
type TextBlock struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (b *TextBlock) BlockKind() string { return "text" }

// NewTextBlock creates a text block.
func NewTextBlock(text string) *TextBlock {
	return &TextBlock{Type: "text", Text: text}
}

// ToolUseBlock is a tool invocation requested by the model. The ID is
// assigned by the model and pairs the request with its result.
type ToolUseBlock struct {
	Type  string         `json:"type"` // always "tool_use"
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (b *ToolUseBlock) BlockKind() string { return "tool_use" }

// NewToolUseBlock creates a tool_use block.
func NewToolUseBlock(id, name string, input map[string]any) *ToolUseBlock {
	return &ToolUseBlock{Type: "tool_use", ID: id, Name: name, Input: input}
}

// ToolResultBlock is the outcome of one tool invocation. Content is never
// empty: the model API requires a result for every tool_use block it issued.
type ToolResultBlock struct {
	Type      string `json:"type"` // always "tool_result"
	ToolUseID string `json:"toolUseID"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError,omitempty"`
}

func (b *ToolResultBlock) BlockKind() string { return "tool_result" }

// NewToolResultBlock creates a tool_result block.
func NewToolResultBlock(toolUseID, content string, isError bool) *ToolResultBlock {
	return &ToolResultBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content, IsError: isError}
}

// UnmarshalBlock decodes a JSON block into its concrete type.
func UnmarshalBlock(data []byte) (Block, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", probe.Type)
	}
}

// emptyBlock reports whether a block carries no content worth keeping.
func emptyBlock(b Block) bool {
	switch v := b.(type) {
	case *TextBlock:
		return strings.TrimSpace(v.Text) == ""
	case nil:
		return true
	default:
		return false
	}
}
