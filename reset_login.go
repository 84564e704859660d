package userforms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// OneTimeLogin mails one-time login links and serves them. A used link logs
// the account in, leaves a pass-reset token in the session and sends the
// user to the password form, which then does not ask for the current password.
type OneTimeLogin struct {
	Accounts    AccountStore
	Sessions    SessionStore
	Messenger   *Messenger
	Translator  Translator
	EmailSender SendEmail

	// Key the link hashes are computed with
	Secret string

	// Links older than this are rejected
	Timeout time.Duration

	// Prefix for mailed links
	BaseURL string

	// LogIn starts a session for the account
	LogIn func(w http.ResponseWriter, r *http.Request, account *Account) error

	Routes *Routes
	Now    func() time.Time
}

func (o *OneTimeLogin) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Hash returns the link hash for account at timestamp. It covers the last
// login time and the password hash, so logging in or changing the password
// invalidates earlier links.
func (o *OneTimeLogin) Hash(account *Account, timestamp int64) string {
	var lastLogin int64
	if !account.LastLoginAt.IsZero() {
		lastLogin = account.LastLoginAt.Unix()
	}
	mac := hmac.New(sha256.New, []byte(o.Secret))
	fmt.Fprintf(mac, "%d|%d|%d|%s|%s", timestamp, lastLogin, account.ID, account.PassHash, account.Mail)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// URL returns the absolute one-time login URL for account, issued now.
func (o *OneTimeLogin) URL(account *Account) string {
	ts := o.now().Unix()
	path := o.Routes.URL(RouteResetLogin,
		"uid", account.Id(),
		"timestamp", strconv.FormatInt(ts, 10),
		"hash", o.Hash(account, ts))
	return o.BaseURL + path
}

// verify checks a link against the account it names.
func (o *OneTimeLogin) verify(account *Account, timestamp int64, hash string) error {
	now := o.now()
	if !account.LastLoginAt.IsZero() && now.Unix() > timestamp+int64(o.Timeout/time.Second) {
		return ErrExpiredResetLink
	}
	if timestamp > now.Unix() {
		return fmt.Errorf("%w: issued in the future", ErrInvalidResetLink)
	}
	if !account.LastLoginAt.IsZero() && timestamp < account.LastLoginAt.Unix() {
		return fmt.Errorf("%w: already used", ErrInvalidResetLink)
	}
	if !hmac.Equal([]byte(hash), []byte(o.Hash(account, timestamp))) {
		return fmt.Errorf("%w: hash mismatch", ErrInvalidResetLink)
	}
	return nil
}

// ServeHTTP handles /user/reset/{uid}/{timestamp}/{hash}/login.
func (o *OneTimeLogin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	retry := o.Routes.URL(RouteUserPass)

	invalid := func(msg string) {
		o.Messenger.AddMessage(ctx, msg)
		if wantsJSON(r) {
			writeError(w, r, http.StatusForbidden, NewAuthError(ErrCodeInvalidLink, msg, ""))
			return
		}
		http.Redirect(w, r, retry, http.StatusFound)
	}
	usedOrInvalid := tr(o.Translator, "You have tried to use a one-time login link that has either been used or is no longer valid. Please request a new one using the form below.")

	uid, err := ParseAccountId(vars["uid"])
	if err != nil {
		invalid(usedOrInvalid)
		return
	}
	timestamp, err := strconv.ParseInt(vars["timestamp"], 10, 64)
	if err != nil {
		invalid(usedOrInvalid)
		return
	}

	account, err := o.Accounts.GetAccountById(ctx, uid)
	if err != nil || !account.Active {
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			log.Printf("Error loading account %d for one-time login: %v", uid, err)
		}
		invalid(usedOrInvalid)
		return
	}

	if acting := ActingUserFromContext(ctx); acting != nil && acting.ID == account.ID {
		// Already logged in as this user
		o.Messenger.AddMessage(ctx, tr(o.Translator, "You are logged in as %s. Change your password.", account.Name))
		http.Redirect(w, r, o.Routes.PasswordURL(account.ID), http.StatusFound)
		return
	}

	if err := o.verify(account, timestamp, vars["hash"]); err != nil {
		log.Printf("Rejected one-time login for account %d: %v", account.ID, err)
		if errors.Is(err, ErrExpiredResetLink) {
			invalid(tr(o.Translator, "You have tried to use a one-time login link that has expired. Please request a new one using the form below."))
			return
		}
		invalid(usedOrInvalid)
		return
	}

	if err := o.LogIn(w, r, account); err != nil {
		handleFormError(w, r, err)
		return
	}
	log.Printf("User %s used one-time login link at time %d", account.Name, timestamp)

	token, err := GenerateSecureToken()
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	o.Sessions.Put(ctx, PassResetSessionKey(account.ID), token)
	o.Messenger.AddMessage(ctx, tr(o.Translator, "You have just used your one-time login link. It is no longer necessary to use this link to log in. Please change your password."))

	target := o.Routes.PasswordURL(account.ID) + "?" + url.Values{"pass-reset-token": {token}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleForgotPassword shows the request form (GET) and mails a one-time
// login link (POST). The answer is the same whether or not the address
// belongs to an account.
func (o *OneTimeLogin) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := &Form{
		ID:     "user_pass",
		Title:  tr(o.Translator, "Reset your password"),
		Action: r.URL.RequestURI(),
		Fields: []FieldSpec{
			{Name: FieldMail, Type: "email", Title: tr(o.Translator, "Email address"), Required: true, Visible: true, Size: 60},
		},
		Actions: []Action{
			{Name: "submit", Type: "submit", Title: tr(o.Translator, "Submit"), Classes: primaryButton},
		},
	}
	if r.Method != http.MethodPost {
		form.Messages = o.Messenger.Messages(ctx)
		RenderForm(w, r, http.StatusOK, form)
		return
	}

	if o.EmailSender == nil {
		writeError(w, r, http.StatusInternalServerError, NewAuthError(ErrCodeNotConfigured, "Password reset not configured", ""))
		return
	}

	values, err := submittedValues(r, FieldMail)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	mail := strings.TrimSpace(values[FieldMail])
	if mail == "" {
		form.SetErrors([]FieldError{requiredError(o.Translator, FieldMail, tr(o.Translator, "Email address"))})
		RenderForm(w, r, http.StatusUnprocessableEntity, form)
		return
	}

	account, err := o.Accounts.GetAccountByMail(ctx, mail)
	switch {
	case err == nil && account.Active:
		if err := o.EmailSender.SendPasswordResetEmail(account.Mail, o.URL(account)); err != nil {
			log.Printf("Error sending one-time login email: %v", err)
		} else {
			log.Printf("One-time login link mailed for account %d", account.ID)
		}
	case err != nil && !errors.Is(err, ErrAccountNotFound):
		log.Printf("Error looking up account for password reset: %v", err)
	}

	msg := tr(o.Translator, "If %s is a valid account, an email will be sent with instructions to reset your password.", mail)
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": msg})
		return
	}
	o.Messenger.AddMessage(ctx, msg)
	http.Redirect(w, r, o.Routes.URL(RouteUserLogin), http.StatusSeeOther)
}
