package userforms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"
)

type actingUserKey struct{}
type targetAccountKey struct{}

// ActingUserFromContext returns the logged in account, or nil.
func ActingUserFromContext(ctx context.Context) *Account {
	a, _ := ctx.Value(actingUserKey{}).(*Account)
	return a
}

func WithActingUser(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, actingUserKey{}, account)
}

// TargetAccountFromContext returns the account named by the route, or nil.
func TargetAccountFromContext(ctx context.Context) *Account {
	a, _ := ctx.Value(targetAccountKey{}).(*Account)
	return a
}

func WithTargetAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, targetAccountKey{}, account)
}

type Middleware struct {
	Accounts AccountStore
	Session  *scs.SessionManager

	AuthTokenHeaderName string
	UserParamName       string
	CallbackURLParam    string
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)
}

/**
 * Ensures that config values have reasonable defaults.
 */
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "destination"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInUserId returns the ID of the logged in user, from the session
// first and then from bearer tokens.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	if a.Session != nil {
		if id := a.Session.GetString(r.Context(), a.UserParamName); id != "" {
			return id
		}
	}

	if a.VerifyToken == nil {
		return ""
	}
	for _, authToken := range r.Header.Values(a.AuthTokenHeaderName) {
		authToken = strings.TrimSpace(strings.TrimPrefix(authToken, "Bearer "))
		if authToken == "" {
			continue
		}
		loggedInUserId, _, err := a.VerifyToken(authToken)
		if err == nil && loggedInUserId != "" {
			return loggedInUserId
		} else if err != nil {
			slog.Warn("Error verifying token", "error", err)
		}
	}
	return ""
}

// loadActingUser resolves the logged in account. Blocked or deleted
// accounts count as anonymous.
func (a *Middleware) loadActingUser(r *http.Request) *Account {
	userParam := a.GetLoggedInUserId(r)
	if userParam == "" {
		return nil
	}
	id, err := ParseAccountId(userParam)
	if err != nil {
		return nil
	}
	account, err := a.Accounts.GetAccountById(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			slog.Warn("error loading logged in account", "id", id, "err", err)
		}
		return nil
	}
	if !account.Active {
		return nil
	}
	return account
}

/**
 * Fetches the user from the request and makes it available to downstream
 * handlers through ActingUserFromContext.
 *
 * Note this does not perform any redirects if a valid user does not exist.
 * To also enforce a user exists, use EnsureUser.
 */
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account := a.loadActingUser(r); account != nil {
			r = r.WithContext(WithActingUser(r.Context(), account))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := ActingUserFromContext(r.Context())
		if account == nil {
			account = a.loadActingUser(r)
		}
		if account != nil {
			next.ServeHTTP(w, r.WithContext(WithActingUser(r.Context(), account)))
			return
		}

		// Redirect to a login if user not logged in
		redirUrl := ""
		if a.GetRedirURL != nil && !wantsJSON(r) {
			redirUrl = a.GetRedirURL(r)
		}
		if redirUrl != "" {
			encodedUrl := strings.Replace(url.QueryEscape(r.URL.RequestURI()), "+", "%20", -1)
			http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl), http.StatusFound)
			return
		}
		writeError(w, r, http.StatusUnauthorized, NewAuthError(ErrCodeAccessDenied, "Login required", ""))
	})
}
