package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/easel-ai/easel/internal/provider"
)

// buildSystemPrompt constructs the preamble sent with every model request:
// who the agent is, where it is working, and what it can do.
func buildSystemPrompt(name, workingContext string, tools []provider.ToolInfo) string {
	var parts []string

	parts = append(parts, fmt.Sprintf(
		"You are %s, an AI agent running inside an easel workspace widget. "+
			"You converse with the user over multiple turns and may invoke tools mid-turn. "+
			"Use tools only when they help answer the request.", name))

	var ctx []string
	if workingContext != "" {
		ctx = append(ctx, "Working context: "+workingContext)
	}
	ctx = append(ctx, "Current time: "+time.Now().Format(time.RFC1123))
	parts = append(parts, strings.Join(ctx, "\n"))

	if len(tools) > 0 {
		var lines []string
		lines = append(lines, "Available tools:")
		for _, t := range tools {
			desc := t.Description
			if i := strings.IndexByte(desc, '\n'); i >= 0 {
				desc = desc[:i]
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, desc))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	} else {
		parts = append(parts, "No tools are available in this session; answer from knowledge alone.")
	}

	return strings.Join(parts, "\n\n")
}
