package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/easel-ai/easel/internal/event"
	"github.com/easel-ai/easel/internal/logging"
	"github.com/easel-ai/easel/internal/provider"
	"github.com/easel-ai/easel/pkg/types"
)

// processMessage runs the conversation loop for one inbound message:
// request a completion, stream its text, dispatch any tool calls in
// parallel, feed the results back, and repeat until the model stops asking
// for tools or the turn cap is hit. Model failures land the session in the
// error state and are reported through the output stream, never returned.
func (s *Session) processMessage(ctx context.Context, text string) error {
	if s.killed.Load() {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.id)
	}
	if !s.turnMu.TryLock() {
		return fmt.Errorf("%w: %s", ErrSessionBusy, s.id)
	}
	defer s.turnMu.Unlock()

	// A fresh message always starts uncancelled; a Cancel from a previous
	// turn must not leak into this one.
	s.cancel.Clear()

	s.append(ctx, types.NewUserText(newID(), text))
	if s.corr.WidgetID != "" {
		s.reg.gateway.AppendCommand(ctx, s.corr.WidgetID, s.corr.WorkspaceID, text)
	}
	s.setStatus(types.StatusThinking)

	maxTurns := s.reg.opts.MaxTurns
	for turn := 0; turn < maxTurns; turn++ {
		if s.cancel.IsSet() {
			s.emitLine(ctx, event.TurnCancelled, "turn cancelled")
			s.setStatus(types.StatusIdle)
			return nil
		}

		s.setStatus(types.StatusResponding)
		resp, err := s.complete(ctx)
		if err != nil {
			s.setStatus(types.StatusError)
			s.emitLine(ctx, event.SessionError, describeModelError(err))
			logging.Error().Err(err).Str("session", s.id).Msg("model request failed")
			return nil
		}

		assistant := types.NewAssistant(newID(), resp.Blocks)
		for _, t := range assistant.Texts() {
			s.emit(event.OutputChunk, t)
		}
		s.append(ctx, assistant)

		uses := assistant.ToolUses()
		if len(uses) == 0 {
			s.setStatus(types.StatusIdle)
			s.emitLine(ctx, event.TurnCompleted, "turn completed")
			return nil
		}

		if s.cancel.IsSet() {
			// The batch never ran, but every requested invocation still
			// gets a result so the transcript pairing stays intact.
			s.recordResults(ctx, assistant, s.reg.dispatcher.CancelledResults(uses))
			s.emitLine(ctx, event.TurnCancelled,
				fmt.Sprintf("turn cancelled; %d pending tool invocations marked cancelled", len(uses)))
			s.setStatus(types.StatusIdle)
			return nil
		}

		s.setStatus(types.StatusToolDispatch)
		for _, u := range uses {
			s.emitLine(ctx, event.ToolStarted, "running tool "+u.Name)
		}
		results := s.reg.dispatcher.Dispatch(ctx, uses)
		for _, res := range results {
			if res.IsError {
				s.emitLine(ctx, event.OutputLine,
					fmt.Sprintf("tool error (%s): %s", res.ToolUseID, res.Content))
			}
		}
		s.recordResults(ctx, assistant, results)
		s.setStatus(types.StatusThinking)
	}

	s.emitLine(ctx, event.TurnCompleted,
		fmt.Sprintf("stopped after %d tool turns; send another message to continue", maxTurns))
	s.setStatus(types.StatusIdle)
	return nil
}

// complete issues one model request over the current transcript, retrying
// transient failures. Authentication failures are permanent.
func (s *Session) complete(ctx context.Context) (*provider.Response, error) {
	infos := s.reg.tools.Infos()
	req := &provider.Request{
		Model:     s.reg.opts.Model,
		System:    buildSystemPrompt(s.name, s.workingContext, infos),
		Messages:  s.Transcript(),
		Tools:     infos,
		MaxTokens: s.reg.opts.MaxTokens,
	}

	var resp *provider.Response
	op := func() error {
		r, err := s.reg.client.Complete(ctx, req)
		if err != nil {
			if provider.Classify(err) == provider.CategoryAuth {
				return backoff.Permanent(err)
			}
			logging.Warn().Err(err).Str("session", s.id).Msg("model request failed, retrying")
			return err
		}
		resp = r
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.reg.opts.RetryInitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.reg.opts.MaxRetries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return resp, nil
}

// recordResults appends the tool results as a user-role message after
// checking it answers the assistant's requests exactly.
func (s *Session) recordResults(ctx context.Context, assistant types.Message, results []*types.ToolResultBlock) {
	msg := types.NewToolResults(newID(), results)
	if err := types.ValidatePairing(assistant, msg); err != nil {
		logging.Error().Err(err).Str("session", s.id).Msg("tool results do not answer the assistant's requests, dropping")
		return
	}
	s.append(ctx, msg)
}

// append adds a message to the transcript and saves the full transcript
// when the session is bound to a widget. Empty messages are dropped, and a
// killed session abandons the write.
func (s *Session) append(ctx context.Context, msg types.Message) {
	if msg.Empty() {
		return
	}
	if s.killed.Load() {
		logging.Warn().Str("session", s.id).Msg("session removed, abandoning transcript write")
		return
	}
	s.stMu.Lock()
	s.transcript = append(s.transcript, msg)
	snapshot := make([]types.Message, len(s.transcript))
	copy(snapshot, s.transcript)
	s.stMu.Unlock()

	if s.corr.WidgetID != "" {
		s.reg.gateway.SaveTranscript(ctx, s.corr.WidgetID, snapshot)
	}
}

func (s *Session) setStatus(st types.SessionStatus) {
	if s.killed.Load() {
		return
	}
	s.stMu.Lock()
	s.status = st
	s.stMu.Unlock()
}

// emit publishes an output event for this session.
func (s *Session) emit(t event.Type, text string) {
	s.reg.bus.Publish(event.Event{Type: t, SessionID: s.id, Text: text, Time: time.Now().UnixMilli()})
}

// emitLine publishes a line event and mirrors it to the durable session log
// when the session is bound to a widget.
func (s *Session) emitLine(ctx context.Context, t event.Type, text string) {
	s.emit(t, text)
	if s.corr.WidgetID == "" {
		return
	}
	level := "info"
	if t == event.SessionError {
		level = "error"
	}
	s.reg.gateway.AppendLogLine(ctx, s.id, level, text)
}

func describeModelError(err error) string {
	switch provider.Classify(err) {
	case provider.CategoryAuth:
		return "model request rejected: check the configured API credentials"
	case provider.CategoryRateLimit:
		return "model is rate limited or overloaded; try again shortly"
	default:
		return "model request failed: " + err.Error()
	}
}
