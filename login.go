package userforms

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

// LoginFormID identifies the login form.
const LoginFormID = "user_login_form"

// localDestination returns the destination query parameter if it is a path
// on this site, otherwise def.
func localDestination(r *http.Request, def string) string {
	dest := r.URL.Query().Get("destination")
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/\\") {
		return def
	}
	return dest
}

func (m *Module) loginForm(r *http.Request) *Form {
	return &Form{
		ID:     LoginFormID,
		Title:  tr(m.Translator, "Log in"),
		Action: r.URL.RequestURI(),
		Fields: []FieldSpec{
			{Name: FieldMail, Type: "email", Title: tr(m.Translator, "Email address"), Required: true, Visible: true, Size: 60},
			{Name: FieldPass, Type: "password", Title: tr(m.Translator, "Password"), Required: true, Visible: true, Size: 60},
		},
		Actions: []Action{
			{Name: "submit", Type: "submit", Title: tr(m.Translator, "Log in"), Classes: primaryButton},
			{Name: "forgot", Type: "link", Title: tr(m.Translator, "Reset your password"), URL: m.routes.URL(RouteUserPass)},
		},
	}
}

// handleLogin shows the login form and authenticates email/password
// submissions. API clients get a bearer token back.
func (m *Module) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		form := m.loginForm(r)
		form.Messages = m.Messenger.Messages(ctx)
		RenderForm(w, r, http.StatusOK, form)
		return
	}

	values, err := submittedValues(r, FieldMail, FieldPass)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	mail := strings.TrimSpace(values[FieldMail])
	password := values[FieldPass]
	if mail == "" || password == "" {
		m.handleLoginError(NewAuthError(ErrCodeMissingField, tr(m.Translator, "Email address and password are required."), FieldMail), w, r)
		return
	}

	account, err := m.Accounts.GetAccountByMail(ctx, mail)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			log.Println("error loading account: ", err)
		}
		account = nil
	}
	if account == nil || !account.CheckPassword(password) {
		m.handleLoginError(NewAuthError(ErrCodeInvalidCreds, tr(m.Translator, "Unrecognized email address or password."), FieldPass), w, r)
		return
	}
	if !account.Active {
		m.handleLoginError(NewAuthError(ErrCodeInactive, tr(m.Translator, "The account has not been activated or is blocked."), FieldMail), w, r)
		return
	}

	if err := m.setLoggedInUser(w, r, account); err != nil {
		handleFormError(w, r, err)
		return
	}

	if wantsJSON(r) {
		tokenString, err := m.IssueToken(account)
		if err != nil {
			handleFormError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user_id": account.ID,
			"token":   tokenString,
		})
		return
	}
	http.Redirect(w, r, localDestination(r, m.routes.EditURL(account.ID)), http.StatusSeeOther)
}

// handleLoginError answers API clients with the JSON error and re-renders
// the form for browsers.
func (m *Module) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	// Use 400 for validation errors, 401 for invalid credentials
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField || err.Code == ErrCodeInvalidEmail {
		statusCode = http.StatusBadRequest
	}
	if wantsJSON(r) {
		writeError(w, r, statusCode, err)
		return
	}
	form := m.loginForm(r)
	form.SetErrors([]FieldError{{Field: err.Field, Message: err.Message}})
	RenderForm(w, r, statusCode, form)
}
