// Package types defines the conversation data model shared across the easel
// session core: messages, content blocks, and session metadata.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry: a user message (text or tool results) or
// an assistant message (text and/or tool-use requests).
type Message struct {
	ID     string  `json:"id"`
	Role   string  `json:"role"` // "user" | "assistant"
	Blocks []Block `json:"blocks"`
	Time   int64   `json:"time"` // unix millis
}

// NewUserText creates a user message carrying a single text block.
func NewUserText(id, text string) Message {
	return Message{
		ID:     id,
		Role:   RoleUser,
		Blocks: []Block{NewTextBlock(text)},
		Time:   time.Now().UnixMilli(),
	}
}

// NewAssistant creates an assistant message from model response blocks.
func NewAssistant(id string, blocks []Block) Message {
	return Message{
		ID:     id,
		Role:   RoleAssistant,
		Blocks: blocks,
		Time:   time.Now().UnixMilli(),
	}
}

// NewToolResults creates the user message that answers a batch of tool-use
// requests, one tool_result block per invocation.
func NewToolResults(id string, results []*ToolResultBlock) Message {
	blocks := make([]Block, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, r)
	}
	return Message{
		ID:     id,
		Role:   RoleUser,
		Blocks: blocks,
		Time:   time.Now().UnixMilli(),
	}
}

// Empty reports whether the message carries no persistable content.
// Empty messages are never appended to a transcript or persisted.
func (m Message) Empty() bool {
	for _, b := range m.Blocks {
		if !emptyBlock(b) {
			return false
		}
	}
	return true
}

// ToolUses returns the tool_use blocks of an assistant message, in order.
func (m Message) ToolUses() []*ToolUseBlock {
	var uses []*ToolUseBlock
	for _, b := range m.Blocks {
		if u, ok := b.(*ToolUseBlock); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// Texts returns the text blocks of a message, in order.
func (m Message) Texts() []string {
	var texts []string
	for _, b := range m.Blocks {
		if t, ok := b.(*TextBlock); ok && t.Text != "" {
			texts = append(texts, t.Text)
		}
	}
	return texts
}

// UnmarshalJSON decodes the block union via UnmarshalBlock.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string            `json:"id"`
		Role   string            `json:"role"`
		Blocks []json.RawMessage `json:"blocks"`
		Time   int64             `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = raw.ID
	m.Role = raw.Role
	m.Time = raw.Time
	m.Blocks = nil
	for _, rb := range raw.Blocks {
		b, err := UnmarshalBlock(rb)
		if err != nil {
			return err
		}
		m.Blocks = append(m.Blocks, b)
	}
	return nil
}

// ValidatePairing checks the tool_use/tool_result invariant: every tool_use
// block in the assistant message must be matched by exactly one tool_result
// block in the follow-up message, and no extra results may appear.
func ValidatePairing(assistant, results Message) error {
	uses := assistant.ToolUses()
	want := make(map[string]bool, len(uses))
	for _, u := range uses {
		want[u.ID] = false
	}

	for _, b := range results.Blocks {
		r, ok := b.(*ToolResultBlock)
		if !ok {
			return fmt.Errorf("follow-up message contains a non-result block %q", b.BlockKind())
		}
		seen, known := want[r.ToolUseID]
		if !known {
			return fmt.Errorf("tool_result %q does not match any tool_use", r.ToolUseID)
		}
		if seen {
			return fmt.Errorf("duplicate tool_result for %q", r.ToolUseID)
		}
		want[r.ToolUseID] = true
	}

	for id, seen := range want {
		if !seen {
			return fmt.Errorf("tool_use %q has no tool_result", id)
		}
	}
	return nil
}
