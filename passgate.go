package userforms

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// FieldSpec describes one rendered form field.
type FieldSpec struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Value        string `json:"value,omitempty"`
	Required     bool   `json:"required"`
	Visible      bool   `json:"visible"`
	Weight       int    `json:"weight"`
	Size         int    `json:"size,omitempty"`
	Autocomplete string `json:"autocomplete,omitempty"`
	Error        string `json:"error,omitempty"`
}

// EditSession is the request-scoped state of one protected form submission.
type EditSession struct {
	// Account receives the edits; Original is the account as loaded.
	Account  *Account
	Original *Account
	Acting   *Account
	State    *EditState

	// Value of the pass-reset-token request parameter, if any.
	Token string
}

// IsOwnAccount returns true if the acting user edits their own account
func (s *EditSession) IsOwnAccount() bool {
	return s.Acting != nil && s.Account != nil && s.Acting.ID == s.Account.ID
}

// ValidationContext returns the options the validator runs with for this edit.
func (s *EditSession) ValidationContext() ValidationContext {
	return ValidationContext{
		Acting:                       s.Acting,
		SkipProtectedFieldConstraint: s.State != nil && s.State.PassReset,
	}
}

// PasswordGate gates edits of protected account fields behind re-entry of
// the current password, unless the user arrived through a one-time login
// link. Form handlers hold a reference to it and call its steps explicitly.
type PasswordGate struct {
	Accounts   AccountStore
	Validator  AccountValidator
	Sessions   SessionStore
	Translator Translator

	// EditURL returns the profile form URL for an account.
	EditURL func(accountID int64) string

	Now func() time.Time
}

func (g *PasswordGate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Begin resolves the edit session for a request: the target account put in
// the context by the routing layer, the acting user and the form build state.
func (g *PasswordGate) Begin(r *http.Request, formID string) (*EditSession, error) {
	ctx := r.Context()
	account := TargetAccountFromContext(ctx)
	if account == nil {
		return nil, ErrAccountNotFound
	}
	state, err := loadEditState(ctx, g.Sessions, r.FormValue("form_build_id"), formID, account.ID)
	if err != nil {
		return nil, err
	}
	return &EditSession{
		Account:  account.Clone(),
		Original: account,
		Acting:   ActingUserFromContext(ctx),
		State:    state,
		Token:    r.FormValue("pass-reset-token"),
	}, nil
}

// ResolvePasswordResetState reports whether the session arrived through a
// valid one-time login. A matching token is remembered in the edit state so
// later submissions of the same build do not need it again.
func (g *PasswordGate) ResolvePasswordResetState(ctx context.Context, state *EditState, token string) bool {
	if state.PassReset {
		return true
	}
	if token == "" {
		return false
	}
	stored, ok := g.Sessions.Get(ctx, PassResetSessionKey(state.AccountID))
	state.PassReset = ok && TokensEqual(stored, token)
	saveEditState(ctx, g.Sessions, state)
	return state.PassReset
}

// CurrentPasswordField builds the current password field. It is shown and
// required only when users edit their own account outside the reset flow.
func (g *PasswordGate) CurrentPasswordField(isResetFlow, isOwnAccount bool) FieldSpec {
	required := isOwnAccount && !isResetFlow
	field := FieldSpec{
		Name:         FieldCurrentPass,
		Type:         "password",
		Title:        tr(g.Translator, "Current password"),
		Required:     required,
		Visible:      required,
		Weight:       -5,
		Size:         25,
		Autocomplete: "off",
	}
	if required {
		field.Description = tr(g.Translator, "Required if you want to change the %s below.", tr(g.Translator, "Password"))
	}
	return field
}

// ApplyEdits copies the submitted values of editedFields onto account and
// attaches the current password, if one was entered. Other submitted values
// are ignored.
func (g *PasswordGate) ApplyEdits(account *Account, values map[string]string, editedFields []string) (*Account, error) {
	for _, field := range editedFields {
		if err := account.Set(field, values[field]); err != nil {
			return nil, err
		}
	}
	if current := strings.TrimSpace(values[FieldCurrentPass]); current != "" {
		account.SetExistingPassword(current)
	}
	return account, nil
}

// ValidateEdits runs the account validator and turns the violations visible
// to the acting user on editedFields into field errors. Protected field
// violations are reported on the current password field. Several violations
// on one field are combined into a single multi-line message.
func (g *PasswordGate) ValidateEdits(ctx context.Context, account *Account, vctx ValidationContext, editedFields []string) ([]FieldError, error) {
	violations, err := g.Validator.Validate(ctx, account, vctx)
	if err != nil {
		return nil, err
	}
	violations = FilterByFieldAccess(violations, vctx.Acting, account)
	violations = ViolationsByFields(violations, editedFields)

	var out []FieldError
	var order []string
	grouped := map[string][]string{}
	currentPassSet := false

	for _, v := range violations {
		if v.Constraint == ConstraintProtectedUserField {
			// first error on an element wins
			if !currentPassSet {
				out = append(out, FieldError{Field: FieldCurrentPass, Message: v.Message})
				currentPassSet = true
			}
			continue
		}
		field := v.Field()
		if _, seen := grouped[field]; !seen {
			order = append(order, field)
		}
		grouped[field] = append(grouped[field], v.Message)
	}

	for _, field := range order {
		msgs := grouped[field]
		if len(msgs) == 1 {
			out = append(out, FieldError{Field: field, Message: msgs[0]})
			continue
		}
		out = append(out, FieldError{Field: field, Message: strings.Join(msgs, "\n"), Messages: msgs})
	}
	return out, nil
}

// Commit saves the account, removes the session's pass-reset token so the
// one-time link cannot skip the password check again, and returns the URL
// of the account's edit form.
func (g *PasswordGate) Commit(ctx context.Context, account *Account) (string, error) {
	if err := account.FinalizePassword(g.now()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	account.UpdatedAt = g.now()
	if err := g.Accounts.SaveAccount(ctx, account); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	key := PassResetSessionKey(account.ID)
	if _, ok := g.Sessions.Get(ctx, key); ok {
		g.Sessions.Delete(ctx, key)
		log.Printf("Cleared pass-reset token for account %d", account.ID)
	}

	if g.EditURL == nil {
		return "/", nil
	}
	return g.EditURL(account.ID), nil
}

// Finish discards the build state of a completed submission.
func (g *PasswordGate) Finish(ctx context.Context, sess *EditSession) {
	if sess.State != nil {
		deleteEditState(ctx, g.Sessions, sess.State)
	}
}
