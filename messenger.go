package userforms

import (
	"context"
	"encoding/json"
	"log/slog"
)

const messagesSessionKey = "messages"

// Messenger queues status messages in the session until the next page
// render displays them.
type Messenger struct {
	Sessions SessionStore
}

func (m *Messenger) AddMessage(ctx context.Context, msg string) {
	msgs := m.peek(ctx)
	msgs = append(msgs, msg)
	data, err := json.Marshal(msgs)
	if err != nil {
		slog.Warn("error encoding messages", "err", err)
		return
	}
	m.Sessions.Put(ctx, messagesSessionKey, string(data))
}

// Messages returns and clears the queued messages.
func (m *Messenger) Messages(ctx context.Context) []string {
	msgs := m.peek(ctx)
	if len(msgs) > 0 {
		m.Sessions.Delete(ctx, messagesSessionKey)
	}
	return msgs
}

func (m *Messenger) peek(ctx context.Context) []string {
	raw, ok := m.Sessions.Get(ctx, messagesSessionKey)
	if !ok || raw == "" {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		slog.Warn("discarding unreadable messages", "err", err)
		return nil
	}
	return msgs
}
