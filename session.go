package userforms

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/alexedwards/scs/v2"
)

// SessionStore is the per-session key/value store the forms use for the
// pass-reset token, edit state and status messages. Implementations are
// scoped to the session carried by ctx.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, value string)
	Delete(ctx context.Context, key string)
}

// PassResetSessionKey is the session key holding the one-time login token
// for an account.
func PassResetSessionKey(accountID int64) string {
	return "pass_reset_" + strconv.FormatInt(accountID, 10)
}

// ScsSessionStore adapts an scs session manager. Requests must pass through
// SessionManager.LoadAndSave so ctx carries the session.
type ScsSessionStore struct {
	Session *scs.SessionManager
}

func NewScsSessionStore(session *scs.SessionManager) *ScsSessionStore {
	return &ScsSessionStore{Session: session}
}

func (s *ScsSessionStore) Get(ctx context.Context, key string) (string, bool) {
	if !s.Session.Exists(ctx, key) {
		return "", false
	}
	return s.Session.GetString(ctx, key), true
}

func (s *ScsSessionStore) Put(ctx context.Context, key, value string) {
	s.Session.Put(ctx, key, value)
}

func (s *ScsSessionStore) Delete(ctx context.Context, key string) {
	s.Session.Remove(ctx, key)
}

// EditState is the state of one form build. It survives re-submissions of
// the same build so the pass-reset decision is made once.
type EditState struct {
	BuildID   string `json:"build_id"`
	FormID    string `json:"form_id"`
	AccountID int64  `json:"account_id"`
	PassReset bool   `json:"user_pass_reset"`
}

func editStateKey(buildID string) string { return "form_state:" + buildID }

// loadEditState returns the stored state for buildID if it belongs to the
// same form and account, otherwise a fresh state with a new build id.
func loadEditState(ctx context.Context, sessions SessionStore, buildID, formID string, accountID int64) (*EditState, error) {
	if buildID != "" {
		if raw, ok := sessions.Get(ctx, editStateKey(buildID)); ok {
			var st EditState
			if err := json.Unmarshal([]byte(raw), &st); err != nil {
				slog.Warn("discarding unreadable form state", "build_id", buildID, "err", err)
			} else if st.FormID == formID && st.AccountID == accountID {
				return &st, nil
			}
		}
	}
	id, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	return &EditState{BuildID: "form-" + id[:32], FormID: formID, AccountID: accountID}, nil
}

func saveEditState(ctx context.Context, sessions SessionStore, st *EditState) {
	data, err := json.Marshal(st)
	if err != nil {
		slog.Warn("error encoding form state", "err", err)
		return
	}
	sessions.Put(ctx, editStateKey(st.BuildID), string(data))
}

func deleteEditState(ctx context.Context, sessions SessionStore, st *EditState) {
	sessions.Delete(ctx, editStateKey(st.BuildID))
}
