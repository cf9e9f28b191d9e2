package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/easel-ai/easel/internal/logging"
	"github.com/easel-ai/easel/pkg/types"
)

// noOutputPlaceholder stands in for a successful execution that produced no
// text: the model API requires non-empty content for every tool_result.
const noOutputPlaceholder = "(tool executed with no output)"

// Dispatcher executes one turn's batch of tool invocations concurrently,
// each in isolation. Every invocation yields exactly one result; order of
// the returned batch matches the request order.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over a tool registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch runs every invocation in its own goroutine and collects one
// result per invocation id. A slow, failing, or panicking invocation never
// blocks or aborts its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []*types.ToolUseBlock) []*types.ToolResultBlock {
	results := make([]*types.ToolResultBlock, len(calls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			r := d.run(gctx, call)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			// Never propagate: partial results are the contract.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CancelledResults synthesizes one cancelled result per invocation for a
// batch that was never started, preserving the pairing invariant.
func (d *Dispatcher) CancelledResults(calls []*types.ToolUseBlock) []*types.ToolResultBlock {
	results := make([]*types.ToolResultBlock, len(calls))
	for i, call := range calls {
		results[i] = types.NewToolResultBlock(call.ID, "cancelled before execution", true)
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, call *types.ToolUseBlock) (result *types.ToolResultBlock) {
	started := time.Now()

	// A panicking executor is converted into a failing result so the rest of
	// the batch completes normally.
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("tool", call.Name).Any("panic", r).Msg("tool executor panicked")
			result = types.NewToolResultBlock(call.ID, fmt.Sprintf("tool %s panicked: %v", call.Name, r), true)
		}
	}()

	t, ok := d.registry.Get(call.Name)
	if !ok {
		known := strings.Join(d.registry.Names(), ", ")
		if known == "" {
			known = "(none registered)"
		}
		return types.NewToolResultBlock(call.ID,
			fmt.Sprintf("unknown tool %q. Available tools: %s", call.Name, known), true)
	}

	input, err := json.Marshal(call.Input)
	if err != nil {
		return types.NewToolResultBlock(call.ID,
			fmt.Sprintf("invalid input for %s: %v", call.Name, err), true)
	}

	res, err := t.Execute(ctx, input)
	elapsed := time.Since(started)
	if err != nil {
		logging.Debug().Str("tool", call.Name).Dur("elapsed", elapsed).Err(err).Msg("tool failed")
		return types.NewToolResultBlock(call.ID, err.Error(), true)
	}

	output := ""
	if res != nil {
		output = res.Output
	}
	if strings.TrimSpace(output) == "" {
		output = noOutputPlaceholder
	}

	logging.Debug().Str("tool", call.Name).Dur("elapsed", elapsed).Msg("tool completed")
	return types.NewToolResultBlock(call.ID, output, false)
}
