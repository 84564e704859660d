package userforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// namedHandler is a comparable handler so tests can tell routes apart
type namedHandler string

func (h namedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(h))
}

func TestRouteCollection_AddReplacesByName(t *testing.T) {
	routes := &RouteCollection{}
	routes.Add(&Route{Name: "a", Path: "/a"})
	routes.Add(&Route{Name: "b", Path: "/b"})
	routes.Add(&Route{Name: "a", Path: "/a2"})

	all := routes.All()
	if len(all) != 2 || all[0].Name != "a" || all[0].Path != "/a2" || all[1].Name != "b" {
		t.Errorf("routes = %+v", all)
	}
	if routes.Get("missing") != nil {
		t.Errorf("Get(missing) != nil")
	}
}

func TestFormsRouteProvider(t *testing.T) {
	p := &FormsRouteProvider{
		UserRouteProvider: UserRouteProvider{Edit: namedHandler("stock edit")},
		Profile:           namedHandler("profile"),
		Email:             namedHandler("email"),
		Password:          namedHandler("password"),
	}
	routes := p.GetRoutes()

	tests := []struct {
		name string
		path string
	}{
		{RouteUserEditForm, "/user/{user:[0-9]+}/edit"},
		{RouteUserEmailForm, "/user/{user:[0-9]+}/email"},
		{RouteUserPassword, "/user/{user:[0-9]+}/password"},
		{RouteResetLogin, "/user/reset/{uid}/{timestamp}/{hash}/login"},
	}
	for _, tt := range tests {
		route := routes.Get(tt.name)
		if route == nil {
			t.Errorf("route %s missing", tt.name)
			continue
		}
		if route.Path != tt.path {
			t.Errorf("route %s path = %q, want %q", tt.name, route.Path, tt.path)
		}
	}
	if edit := routes.Get(RouteUserEditForm); edit.Handler != p.Profile || !edit.RequireUpdateAccess {
		t.Errorf("edit route not overridden: %+v", edit)
	}
	if email := routes.Get(RouteUserEmailForm); email.Title != "Change Email" || !email.RequireUpdateAccess {
		t.Errorf("email route = %+v", email)
	}
	if pass := routes.Get(RouteUserPassword); pass.Title != "Change Password" || !pass.RequireUpdateAccess {
		t.Errorf("password route = %+v", pass)
	}
}

func TestResetLoginOverride(t *testing.T) {
	controller := namedHandler("controller")
	routes := (&UserRouteProvider{ResetLogin: namedHandler("stock")}).GetRoutes()
	original := routes.Get(RouteResetLogin)

	(&ResetLoginOverride{Controller: controller}).AlterRoutes(routes)

	altered := routes.Get(RouteResetLogin)
	if altered.Handler != controller {
		t.Errorf("handler not replaced")
	}
	if altered.Path != "/user/reset/{uid:[0-9]+}/{timestamp:[0-9]+}/{hash}/login" {
		t.Errorf("path = %q", altered.Path)
	}
	if !altered.RequireAnonymous || altered.Title != original.Title {
		t.Errorf("route options lost: %+v", altered)
	}
	if original.Handler == controller {
		t.Errorf("original route mutated")
	}

	// No-op when the route is absent
	(&ResetLoginOverride{Controller: controller}).AlterRoutes(&RouteCollection{})
}

type renameSubscriber struct{}

func (renameSubscriber) AlterRoutes(routes *RouteCollection) {
	if r := routes.Get(RouteUserLogin); r != nil {
		r.Path = "/account/login"
	}
}

func TestModuleRoutes(t *testing.T) {
	m := New(&Config{}, nil, &mapAccounts{accounts: map[int64]*Account{}})
	m.Subscribers = []RouteSubscriber{renameSubscriber{}}
	urls := m.URLs()

	if got := urls.EditURL(3); got != "/user/3/edit" {
		t.Errorf("EditURL = %q", got)
	}
	if got := urls.EmailURL(3); got != "/user/3/email" {
		t.Errorf("EmailURL = %q", got)
	}
	if got := urls.PasswordURL(3); got != "/user/3/password" {
		t.Errorf("PasswordURL = %q", got)
	}
	if got := urls.URL(RouteUserLogin); got != "/account/login" {
		t.Errorf("login URL = %q, want the subscriber's path", got)
	}
	if got := urls.URL("no.such.route"); got != "" {
		t.Errorf("unknown route URL = %q", got)
	}
	if got := m.PasswordForm.LogoutURL; got != "/user/logout" {
		t.Errorf("LogoutURL = %q", got)
	}

	var match mux.RouteMatch
	req := httptest.NewRequest(http.MethodGet, "/user/reset/1/1700000000/abc/login", nil)
	if !m.Router().Match(req, &match) || match.Route.GetName() != RouteResetLogin {
		t.Errorf("reset link not routed to %s", RouteResetLogin)
	}
	req = httptest.NewRequest(http.MethodGet, "/user/reset/x/1700000000/abc/login", nil)
	if m.Router().Match(req, &match) && match.Route != nil && match.Route.GetName() == RouteResetLogin {
		t.Errorf("non-numeric uid matched the reset route")
	}
}

func TestTranslator(t *testing.T) {
	fr := NewTranslator("fr")
	if got := fr.T("Change Password"); got != "Modifier le mot de passe" {
		t.Errorf("fr Change Password = %q", got)
	}
	if got := fr.T("Required if you want to change the %s below.", fr.T("Password")); got != "Requis si vous souhaitez modifier le champ Mot de passe ci-dessous." {
		t.Errorf("fr description = %q", got)
	}
	if got := NewTranslator("not a tag!").T("Save"); got != "Save" {
		t.Errorf("fallback = %q", got)
	}
	if got := tr(nil, "%s field is required.", "Email"); got != "Email field is required." {
		t.Errorf("tr(nil) = %q", got)
	}
}

func TestMessenger(t *testing.T) {
	ctx := context.Background()
	m := &Messenger{Sessions: newMemSessions()}
	if msgs := m.Messages(ctx); len(msgs) != 0 {
		t.Errorf("messages = %v", msgs)
	}
	m.AddMessage(ctx, "one")
	m.AddMessage(ctx, "two")
	if msgs := m.Messages(ctx); len(msgs) != 2 || msgs[0] != "one" || msgs[1] != "two" {
		t.Errorf("messages = %v", msgs)
	}
	if msgs := m.Messages(ctx); len(msgs) != 0 {
		t.Errorf("messages not cleared: %v", msgs)
	}
}

func TestPasswordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	policy := &ExpiryPolicy{MaxAge: 24 * time.Hour}

	tests := []struct {
		name    string
		policy  PasswordPolicy
		changed time.Time
		want    bool
	}{
		{"no policy", nil, now.Add(-48 * time.Hour), false},
		{"never changed", policy, time.Time{}, false},
		{"fresh", policy, now.Add(-time.Hour), false},
		{"expired", policy, now.Add(-25 * time.Hour), true},
		{"disabled", &ExpiryPolicy{}, now.Add(-48 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &Account{PasswordChangedAt: tt.changed}
			if got := PasswordExpired(tt.policy, account, now); got != tt.want {
				t.Errorf("PasswordExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("USERFORMS_BASE_URL", "https://example.com/")
	t.Setenv("USERFORMS_PASSWORD_MAX_AGE", "720h")
	t.Setenv("USERFORMS_MIN_PASSWORD_LENGTH", "12")
	t.Setenv("USERFORMS_LANGUAGE", "")

	c := (&Config{AppName: "Forms"}).EnsureDefaults()
	if c.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c.PasswordMaxAge != 720*time.Hour {
		t.Errorf("PasswordMaxAge = %v", c.PasswordMaxAge)
	}
	if c.MinPasswordLength != 12 {
		t.Errorf("MinPasswordLength = %d", c.MinPasswordLength)
	}
	if c.Language != "en" || c.JwtIssuer != "Forms-Issuer" || c.OneTimeLoginTimeout != 24*time.Hour || c.SessionTimeoutInSeconds != 86400 {
		t.Errorf("config = %+v", c)
	}

	t.Setenv("USERFORMS_PASSWORD_MAX_AGE", "soon")
	if c := (&Config{}).EnsureDefaults(); c.PasswordMaxAge != 0 {
		t.Errorf("invalid max age parsed as %v", c.PasswordMaxAge)
	}
}
