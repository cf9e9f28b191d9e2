package session

import "sync/atomic"

// Token is a per-session cooperative cancellation flag. It is set by any
// caller via the registry and read by the conversation loop at its
// suspension points: before each model call and before each tool batch.
// It never interrupts in-flight work, and it is reset at the start of each
// inbound message.
type Token struct {
	flag atomic.Bool
}

// Set requests cancellation.
func (t *Token) Set() { t.flag.Store(true) }

// Clear resets the token for a new turn.
func (t *Token) Clear() { t.flag.Store(false) }

// IsSet reports whether cancellation was requested.
func (t *Token) IsSet() bool { return t.flag.Load() }
