// Package persist defines the durable-store contract the session core calls
// and its keyed-store implementation. Transcripts and logs are keyed by
// widget identity; command history is additionally grouped by workspace.
// Write failures degrade durability, never the live conversation: they are
// logged and swallowed.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/easel-ai/easel/internal/logging"
	"github.com/easel-ai/easel/internal/storage"
	"github.com/easel-ai/easel/pkg/types"
)

// Gateway is the durable store consumed by the session core.
type Gateway interface {
	// LoadTranscript returns the stored transcript for a widget, or an empty
	// slice when none exists.
	LoadTranscript(ctx context.Context, widgetID string) []types.Message

	// SaveTranscript replaces the stored transcript. Messages with empty
	// content are dropped before writing.
	SaveTranscript(ctx context.Context, widgetID string, msgs []types.Message)

	// AppendCommand records an inbound command in the searchable history.
	AppendCommand(ctx context.Context, widgetID, workspaceID, text string)

	// AppendLogLine mirrors one output-stream line into the session log.
	AppendLogLine(ctx context.Context, sessionID, level, text string)
}

// maxLogLines caps the per-session log mirror; older lines roll off.
const maxLogLines = 500

// CommandEntry is one searchable command-history row.
type CommandEntry struct {
	WidgetID string `json:"widgetID"`
	Text     string `json:"text"`
	Time     int64  `json:"time"`
}

// LogLine is one mirrored output line.
type LogLine struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Time  int64  `json:"time"`
}

// Store implements Gateway on top of the keyed JSON store.
type Store struct {
	db *storage.Store
}

// NewStore creates a store-backed gateway.
func NewStore(db *storage.Store) *Store {
	return &Store{db: db}
}

var _ Gateway = (*Store)(nil)

func transcriptKey(widgetID string) []string {
	return []string{"transcript", widgetID}
}

// LoadTranscript returns the stored transcript, or empty when none exists.
// Read failures other than not-found are logged and yield an empty slice.
func (s *Store) LoadTranscript(ctx context.Context, widgetID string) []types.Message {
	var msgs []types.Message
	err := s.db.Get(ctx, transcriptKey(widgetID), &msgs)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.Warn().Err(err).Str("widget", widgetID).Msg("transcript load failed")
		}
		return []types.Message{}
	}
	return msgs
}

// SaveTranscript overwrites the stored transcript, filtering empty messages.
func (s *Store) SaveTranscript(ctx context.Context, widgetID string, msgs []types.Message) {
	kept := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Empty() {
			continue
		}
		kept = append(kept, m)
	}

	if err := s.db.Put(ctx, transcriptKey(widgetID), kept); err != nil {
		logging.Error().Err(err).Str("widget", widgetID).Msg("transcript save failed")
	}
}

// AppendCommand records an inbound command, best-effort.
func (s *Store) AppendCommand(ctx context.Context, widgetID, workspaceID, text string) {
	if workspaceID == "" {
		workspaceID = "default"
	}
	key := []string{"history", workspaceID}

	var entries []CommandEntry
	if err := s.db.Get(ctx, key, &entries); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.Warn().Err(err).Str("workspace", workspaceID).Msg("command history read failed")
	}
	entries = append(entries, CommandEntry{
		WidgetID: widgetID,
		Text:     text,
		Time:     time.Now().UnixMilli(),
	})

	if err := s.db.Put(ctx, key, entries); err != nil {
		logging.Warn().Err(err).Str("workspace", workspaceID).Msg("command history write failed")
	}
}

// AppendLogLine mirrors one output line into the session log, best-effort.
func (s *Store) AppendLogLine(ctx context.Context, sessionID, level, text string) {
	key := []string{"logs", sessionID}

	var lines []LogLine
	if err := s.db.Get(ctx, key, &lines); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.Warn().Err(err).Str("session", sessionID).Msg("session log read failed")
	}
	lines = append(lines, LogLine{Level: level, Text: text, Time: time.Now().UnixMilli()})
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}

	if err := s.db.Put(ctx, key, lines); err != nil {
		logging.Warn().Err(err).Str("session", sessionID).Msg("session log write failed")
	}
}
