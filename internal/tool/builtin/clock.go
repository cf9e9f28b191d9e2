package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/easel-ai/easel/internal/tool"
)

// ClockTool reports the current time, optionally in a named IANA zone.
type ClockTool struct {
	now func() time.Time
}

// ClockInput represents the input for the clock tool.
type ClockInput struct {
	Timezone string `json:"timezone,omitempty"`
}

// NewClockTool creates a clock tool.
func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "clock" }

func (t *ClockTool) Description() string {
	return "Returns the current date and time, optionally in a specific IANA timezone such as Europe/Berlin."
}

func (t *ClockTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "Optional IANA timezone name; defaults to UTC"
			}
		}
	}`)
}

func (t *ClockTool) Execute(ctx context.Context, input json.RawMessage) (*tool.Result, error) {
	var params ClockInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	loc := time.UTC
	if params.Timezone != "" {
		l, err := time.LoadLocation(params.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", params.Timezone)
		}
		loc = l
	}

	now := t.now().In(loc)
	return &tool.Result{
		Output: now.Format("Monday, 2 January 2006 15:04:05 MST"),
	}, nil
}
