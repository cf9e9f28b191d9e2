package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easel-ai/easel/pkg/types"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestComplete_TextOnly(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "world"},
			},
			StopReason: sdk.StopReasonEndTurn,
		},
	}
	cl, err := NewAnthropic(stub, "claude-sonnet-4-20250514", 128)
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &Request{
		System:   "you are helpful",
		Messages: []types.Message{types.NewUserText("m1", "hello")},
	})
	require.NoError(t, err)

	require.Len(t, resp.Blocks, 1)
	text, ok := resp.Blocks[0].(*types.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "world", text.Text)
	assert.Equal(t, string(sdk.StopReasonEndTurn), resp.StopReason)

	assert.EqualValues(t, 128, stub.lastParams.MaxTokens)
	assert.EqualValues(t, "claude-sonnet-4-20250514", stub.lastParams.Model)
	require.Len(t, stub.lastParams.System, 1)
	assert.Equal(t, "you are helpful", stub.lastParams.System[0].Text)
}

func TestComplete_ToolUseResponse(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "let me check"},
				{Type: "tool_use", ID: "c1", Name: "weather", Input: json.RawMessage(`{"city":"Oslo"}`)},
			},
			StopReason: sdk.StopReasonToolUse,
		},
	}
	cl, err := NewAnthropic(stub, "claude-sonnet-4-20250514", 0)
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &Request{
		Messages: []types.Message{types.NewUserText("m1", "weather in Oslo?")},
		Tools: []ToolInfo{{
			Name:        "weather",
			Description: "look up weather",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
		}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Blocks, 2)
	use, ok := resp.Blocks[1].(*types.ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "c1", use.ID)
	assert.Equal(t, "weather", use.Name)
	assert.Equal(t, "Oslo", use.Input["city"])

	require.Len(t, stub.lastParams.Tools, 1)
}

func TestComplete_EncodesToolResults(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "done"}},
			StopReason: sdk.StopReasonEndTurn,
		},
	}
	cl, err := NewAnthropic(stub, "claude-sonnet-4-20250514", 0)
	require.NoError(t, err)

	transcript := []types.Message{
		types.NewUserText("m1", "run it"),
		types.NewAssistant("m2", []types.Block{
			types.NewToolUseBlock("c1", "shell", map[string]any{"cmd": "ls"}),
		}),
		types.NewToolResults("m3", []*types.ToolResultBlock{
			types.NewToolResultBlock("c1", "file.txt", false),
		}),
	}

	_, err = cl.Complete(context.Background(), &Request{Messages: transcript})
	require.NoError(t, err)
	assert.Len(t, stub.lastParams.Messages, 3)
}

func TestComplete_EmptyTranscriptRejected(t *testing.T) {
	cl, err := NewAnthropic(&stubMessagesClient{}, "claude-sonnet-4-20250514", 0)
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &Request{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, CategoryAuth, Classify(ErrAuth))
	assert.Equal(t, CategoryRateLimit, Classify(ErrRateLimited))
	assert.Equal(t, CategoryOther, Classify(errors.New("connection reset")))

	wrapped := classifySDKError(errors.New("boom"))
	assert.Equal(t, CategoryOther, Classify(wrapped))
}

func TestNewAnthropic_Validation(t *testing.T) {
	_, err := NewAnthropic(nil, "model", 0)
	assert.Error(t, err)

	_, err = NewAnthropic(&stubMessagesClient{}, "", 0)
	assert.Error(t, err)

	_, err = NewAnthropicFromAPIKey("", "model", 0)
	assert.ErrorIs(t, err, ErrAuth)
}
