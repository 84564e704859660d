package userforms

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Module wires the account forms, the one-time login controller and the
// login/logout handlers onto one router.
type Module struct {
	Config     *Config
	Session    *scs.SessionManager
	Middleware Middleware

	// Must be passed in
	Accounts AccountStore

	// Optional collaborators.  Defaults are filled in by EnsureDefaults.
	Sessions    SessionStore
	Validator   AccountValidator
	Policy      PasswordPolicy
	EmailSender SendEmail
	Translator  Translator

	// Extra route alterations applied after the built-in ones
	Subscribers []RouteSubscriber

	Now func() time.Time

	Gate         *PasswordGate
	Messenger    *Messenger
	ProfileForm  *ProfileForm
	EmailForm    *EmailForm
	PasswordForm *PasswordForm
	OneTimeLogin *OneTimeLogin

	router *mux.Router
	routes *Routes
}

func New(cfg *Config, session *scs.SessionManager, accounts AccountStore) *Module {
	if cfg == nil {
		cfg = &Config{}
	}
	out := (&Module{Config: cfg, Session: session, Accounts: accounts}).EnsureDefaults()
	return out
}

func (m *Module) EnsureDefaults() *Module {
	m.Config.EnsureDefaults()
	if m.Session == nil {
		m.Session = scs.New()
	}
	m.Session.Lifetime = time.Duration(m.Config.SessionTimeoutInSeconds) * time.Second
	if m.Sessions == nil {
		m.Sessions = NewScsSessionStore(m.Session)
	}
	if m.Translator == nil {
		m.Translator = NewTranslator(m.Config.Language)
	}
	if m.Validator == nil {
		m.Validator = NewDefaultValidator(m.Accounts, DefaultPasswordRules(m.Config.MinPasswordLength), m.Translator)
	}
	if m.Policy == nil && m.Config.PasswordMaxAge > 0 {
		m.Policy = &ExpiryPolicy{MaxAge: m.Config.PasswordMaxAge}
	}
	if m.EmailSender == nil {
		m.EmailSender = &ConsoleEmailSender{}
	}

	m.Middleware.Accounts = m.Accounts
	m.Middleware.Session = m.Session
	if m.Middleware.VerifyToken == nil {
		m.Middleware.VerifyToken = m.verifyJWT
	}
	if m.Middleware.GetRedirURL == nil {
		m.Middleware.GetRedirURL = func(r *http.Request) string { return m.URLs().URL(RouteUserLogin) }
	}
	m.Middleware.EnsureReasonableDefaults()
	return m
}

func (m *Module) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Handler returns the module's router wrapped in session loading and
// acting-user resolution.
func (m *Module) Handler() http.Handler {
	return m.Session.LoadAndSave(m.Middleware.ExtractUser(m.Router()))
}

// Router returns the gorilla/mux router, building it on first use.
func (m *Module) Router() *mux.Router {
	return m.setupRoutes().router
}

// URLs builds links from the module's named routes.
func (m *Module) URLs() *Routes {
	return m.setupRoutes().routes
}

func (m *Module) setupRoutes() *Module {
	if m.router != nil {
		return m
	}
	m.router = mux.NewRouter()
	m.routes = &Routes{router: m.router}

	m.Messenger = &Messenger{Sessions: m.Sessions}
	m.Gate = &PasswordGate{
		Accounts:   m.Accounts,
		Validator:  m.Validator,
		Sessions:   m.Sessions,
		Translator: m.Translator,
		EditURL:    m.routes.EditURL,
		Now:        m.now,
	}
	m.ProfileForm = &ProfileForm{
		Gate:        m.Gate,
		Messenger:   m.Messenger,
		Translator:  m.Translator,
		EmailURL:    m.routes.EmailURL,
		PasswordURL: m.routes.PasswordURL,
	}
	m.EmailForm = &EmailForm{Gate: m.Gate, Messenger: m.Messenger, Translator: m.Translator}
	m.PasswordForm = &PasswordForm{
		Gate:       m.Gate,
		Messenger:  m.Messenger,
		Translator: m.Translator,
		Policy:     m.Policy,
		LogoutURL:  "/user/logout",
	}
	m.OneTimeLogin = &OneTimeLogin{
		Accounts:    m.Accounts,
		Sessions:    m.Sessions,
		Messenger:   m.Messenger,
		Translator:  m.Translator,
		EmailSender: m.EmailSender,
		Secret:      m.Config.HashSecret,
		Timeout:     m.Config.OneTimeLoginTimeout,
		BaseURL:     m.Config.BaseURL,
		LogIn:       m.setLoggedInUser,
		Routes:      m.routes,
		Now:         m.now,
	}

	provider := &FormsRouteProvider{
		UserRouteProvider: UserRouteProvider{
			Login:          http.HandlerFunc(m.handleLogin),
			Logout:         http.HandlerFunc(m.onLogout),
			ForgotPassword: http.HandlerFunc(m.OneTimeLogin.HandleForgotPassword),
			ResetLogin:     http.NotFoundHandler(),
		},
		Profile:  m.ProfileForm,
		Email:    m.EmailForm,
		Password: m.PasswordForm,
	}
	routes := provider.GetRoutes()
	subscribers := append([]RouteSubscriber{&ResetLoginOverride{Controller: m.OneTimeLogin}}, m.Subscribers...)
	for _, s := range subscribers {
		s.AlterRoutes(routes)
	}
	m.Mount(m.router, routes)

	// LogoutURL can only be resolved once the routes exist
	m.PasswordForm.LogoutURL = m.routes.URL(RouteUserLogout)
	return m
}

// enforcePasswordExpiry sends users whose password has expired to their
// password form before they can use any other account page.
func (m *Module) enforcePasswordExpiry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acting := ActingUserFromContext(r.Context())
		if acting != nil && PasswordExpired(m.Policy, acting, m.now()) {
			if route := mux.CurrentRoute(r); route == nil || route.GetName() != RouteUserPassword {
				m.Messenger.AddMessage(r.Context(), tr(m.Translator, "Your password has expired. Please choose a new one."))
				http.Redirect(w, r, m.routes.PasswordURL(acting.ID), http.StatusSeeOther)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Module) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	// Parse the token with the secret key
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(m.Config.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(m.Config.JwtIssuer))

	// Check for verification errors
	if err != nil {
		return "", nil, err
	}

	// Check if the token is valid
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}

// IssueToken signs a bearer token for API clients. Tokens are checked
// against the wall clock, so they are issued with it too.
func (m *Module) IssueToken(account *Account) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": account.Id(),
		"iss": m.Config.JwtIssuer,
		"exp": now.Add(time.Duration(m.Config.SessionTimeoutInSeconds) * time.Second).Unix(),
		"iat": now.Unix(),
	})
	return token.SignedString([]byte(m.Config.JWTSecretKey))
}

// setLoggedInUser starts a fresh session for account and records the login.
func (m *Module) setLoggedInUser(w http.ResponseWriter, r *http.Request, account *Account) error {
	ctx := r.Context()
	if err := m.Session.RenewToken(ctx); err != nil {
		return fmt.Errorf("error renewing session token: %w", err)
	}
	m.Session.Put(ctx, m.Middleware.UserParamName, account.Id())

	account.LastLoginAt = m.now()
	if err := m.Accounts.SaveAccount(ctx, account); err != nil {
		slog.Warn("error recording login time", "account", account.ID, "err", err)
	}
	log.Printf("Session opened for account %d", account.ID)
	return nil
}

func (m *Module) onLogout(w http.ResponseWriter, r *http.Request) {
	if acting := ActingUserFromContext(r.Context()); acting != nil {
		log.Printf("Session closed for account %d", acting.ID)
	}
	if err := m.Session.Destroy(r.Context()); err != nil {
		slog.Warn("error destroying session", "err", err)
	}
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true}`)
		return
	}
	http.Redirect(w, r, localDestination(r, "/"), http.StatusFound)
}
