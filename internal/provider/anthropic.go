package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/easel-ai/easel/pkg/types"
)

const defaultMaxTokens = 8192

// MessagesClient is the subset of the Anthropic SDK used here. It is
// satisfied by *sdk.MessageService, so tests can substitute a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic implements Client on the Anthropic Messages API.
type Anthropic struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic builds a client from an existing Messages client.
func NewAnthropic(msg MessagesClient, defaultModel string, maxTokens int) (*Anthropic, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// NewAnthropicFromAPIKey constructs a client using the default SDK HTTP stack.
func NewAnthropicFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrAuth)
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&ac.Messages, defaultModel, maxTokens)
}

// Complete issues one blocking Messages.New request and translates the
// response into transcript blocks.
func (c *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	params, err := c.encodeRequest(req)
	if err != nil {
		return nil, err
	}

	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, classifySDKError(err)
	}
	return translateResponse(msg), nil
}

func (c *Anthropic) encodeRequest(req *Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if tools, err := encodeTools(req.Tools); err != nil {
		return nil, err
	} else if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

func encodeMessages(msgs []types.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch v := b.(type) {
			case *types.TextBlock:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case *types.ToolUseBlock:
				if v.Name == "" {
					return nil, errors.New("anthropic: tool_use block missing name")
				}
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, v.Input, v.Name))
			case *types.ToolResultBlock:
				blocks = append(blocks, sdk.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
			default:
				return nil, fmt.Errorf("anthropic: unsupported block type %q", b.BlockKind())
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case types.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case types.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropic: at least one non-empty message is required")
	}
	return out, nil
}

func encodeTools(infos []ToolInfo) ([]sdk.ToolUnionParam, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(infos))
	for _, info := range infos {
		if info.Name == "" {
			continue
		}
		schema, err := toolInputSchema(info.Parameters)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", info.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, info.Name)
		if u.OfTool != nil && info.Description != "" {
			u.OfTool.Description = sdk.String(info.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func toolInputSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateResponse(msg *sdk.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				resp.Blocks = append(resp.Blocks, types.NewTextBlock(block.Text))
			}
		case "tool_use":
			resp.Blocks = append(resp.Blocks, types.NewToolUseBlock(block.ID, block.Name, decodeInput(block.Input)))
		}
	}
	return resp
}

// decodeInput normalizes the SDK's tool input payload to a string-keyed map.
func decodeInput(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// classifySDKError wraps SDK failures with the sentinel matching their HTTP
// status so callers can categorize without importing the SDK.
func classifySDKError(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAuth, err)
		case http.StatusTooManyRequests, 529: // 529 is Anthropic's overloaded status
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("anthropic messages.new: %w", err)
}
