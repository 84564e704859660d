package userforms

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Route names
const (
	RouteUserLogin      = "user.login"
	RouteUserLogout     = "user.logout"
	RouteUserPass       = "user.pass"
	RouteResetLogin     = "user.reset.login"
	RouteUserEditForm   = "entity.user.edit_form"
	RouteUserEmailForm  = "user_forms_split.user.email"
	RouteUserPassword   = "user_forms_split.user.password"
	routeUserIdVariable = "user"
)

// Route is one entry of the route table.
type Route struct {
	Name    string
	Path    string
	Methods []string
	Title   string
	Handler http.Handler

	// RequireUpdateAccess loads the {user} account into the request and
	// lets only the owner or an administrator through.
	RequireUpdateAccess bool

	// RequireAnonymous rejects logged in users.
	RequireAnonymous bool
}

// RouteCollection is an ordered, name-indexed route table.
type RouteCollection struct {
	routes []*Route
}

// Add inserts a route, replacing any route with the same name in place.
func (c *RouteCollection) Add(route *Route) {
	for i, r := range c.routes {
		if r.Name == route.Name {
			c.routes[i] = route
			return
		}
	}
	c.routes = append(c.routes, route)
}

func (c *RouteCollection) Get(name string) *Route {
	for _, r := range c.routes {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (c *RouteCollection) All() []*Route { return c.routes }

// RouteSubscriber alters a built route table.
type RouteSubscriber interface {
	AlterRoutes(routes *RouteCollection)
}

// UserRouteProvider returns the stock account routes.
type UserRouteProvider struct {
	Login          http.Handler
	Logout         http.Handler
	ForgotPassword http.Handler
	ResetLogin     http.Handler
	Edit           http.Handler
}

func (p *UserRouteProvider) GetRoutes() *RouteCollection {
	routes := &RouteCollection{}
	routes.Add(&Route{Name: RouteUserLogin, Path: "/user/login", Methods: []string{http.MethodGet, http.MethodPost}, Title: "Log in", Handler: p.Login})
	routes.Add(&Route{Name: RouteUserLogout, Path: "/user/logout", Methods: []string{http.MethodGet, http.MethodPost}, Title: "Log out", Handler: p.Logout})
	routes.Add(&Route{Name: RouteUserPass, Path: "/user/password", Methods: []string{http.MethodGet, http.MethodPost}, Title: "Reset your password", Handler: p.ForgotPassword})
	routes.Add(&Route{
		Name:             RouteResetLogin,
		Path:             "/user/reset/{uid}/{timestamp}/{hash}/login",
		Methods:          []string{http.MethodGet},
		Title:            "Reset password",
		Handler:          p.ResetLogin,
		RequireAnonymous: true,
	})
	routes.Add(&Route{
		Name:                RouteUserEditForm,
		Path:                "/user/{user}/edit",
		Methods:             []string{http.MethodGet, http.MethodPost},
		Handler:             p.Edit,
		RequireUpdateAccess: true,
	})
	return routes
}

// FormsRouteProvider extends the stock routes with the email and password
// forms and replaces the edit route with one that requires a numeric id.
type FormsRouteProvider struct {
	UserRouteProvider
	Profile  http.Handler
	Email    http.Handler
	Password http.Handler
}

func (p *FormsRouteProvider) GetRoutes() *RouteCollection {
	routes := p.UserRouteProvider.GetRoutes()

	// Override /user/{user}/edit.
	routes.Add(&Route{
		Name:                RouteUserEditForm,
		Path:                "/user/{user:[0-9]+}/edit",
		Methods:             []string{http.MethodGet, http.MethodPost},
		Handler:             p.Profile,
		RequireUpdateAccess: true,
	})
	routes.Add(&Route{
		Name:                RouteUserEmailForm,
		Path:                "/user/{user:[0-9]+}/email",
		Methods:             []string{http.MethodGet, http.MethodPost},
		Title:               "Change Email",
		Handler:             p.Email,
		RequireUpdateAccess: true,
	})
	routes.Add(&Route{
		Name:                RouteUserPassword,
		Path:                "/user/{user:[0-9]+}/password",
		Methods:             []string{http.MethodGet, http.MethodPost},
		Title:               "Change Password",
		Handler:             p.Password,
		RequireUpdateAccess: true,
	})
	return routes
}

// ResetLoginOverride points the one-time login route at Controller.
type ResetLoginOverride struct {
	Controller http.Handler
}

func (s *ResetLoginOverride) AlterRoutes(routes *RouteCollection) {
	if route := routes.Get(RouteResetLogin); route != nil {
		altered := *route
		altered.Path = "/user/reset/{uid:[0-9]+}/{timestamp:[0-9]+}/{hash}/login"
		altered.Handler = s.Controller
		routes.Add(&altered)
	}
}

// Mount registers every route on router, wrapping each handler with the
// access checks it asks for.
func (m *Module) Mount(router *mux.Router, routes *RouteCollection) {
	for _, route := range routes.All() {
		h := route.Handler
		if h == nil {
			h = http.NotFoundHandler()
		}
		if route.RequireUpdateAccess {
			h = m.Middleware.EnsureUser(m.entityAccess(m.enforcePasswordExpiry(h)))
		}
		if route.RequireAnonymous {
			h = requireAnonymous(h)
		}
		router.Handle(route.Path, h).Methods(route.Methods...).Name(route.Name)
	}
}

// entityAccess loads the {user} route account and allows the owner or a
// user administrator through.
func (m *Module) entityAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseAccountId(mux.Vars(r)[routeUserIdVariable])
		if err != nil {
			handleFormError(w, r, err)
			return
		}
		account, err := m.Accounts.GetAccountById(r.Context(), id)
		if err != nil {
			if !errors.Is(err, ErrAccountNotFound) {
				err = errors.Join(errors.New("loading route account"), err)
			}
			handleFormError(w, r, err)
			return
		}
		acting := ActingUserFromContext(r.Context())
		if acting == nil || (acting.ID != account.ID && !acting.HasPermission(PermAdministerUsers)) {
			handleFormError(w, r, ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTargetAccount(r.Context(), account)))
	})
}

func requireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if acting := ActingUserFromContext(r.Context()); acting != nil {
			uid := mux.Vars(r)["uid"]
			if uid != acting.Id() {
				handleFormError(w, r, ErrAccessDenied)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Routes builds URLs from the named routes of a router.
type Routes struct {
	router *mux.Router
}

func (r *Routes) URL(name string, pairs ...string) string {
	route := r.router.Get(name)
	if route == nil {
		log.Printf("Unknown route: %s", name)
		return ""
	}
	u, err := route.URL(pairs...)
	if err != nil {
		log.Printf("Error building URL for %s: %v", name, err)
		return ""
	}
	return u.String()
}

func (r *Routes) accountURL(name string, accountID int64) string {
	return r.URL(name, routeUserIdVariable, strconv.FormatInt(accountID, 10))
}

func (r *Routes) EditURL(accountID int64) string     { return r.accountURL(RouteUserEditForm, accountID) }
func (r *Routes) EmailURL(accountID int64) string    { return r.accountURL(RouteUserEmailForm, accountID) }
func (r *Routes) PasswordURL(accountID int64) string { return r.accountURL(RouteUserPassword, accountID) }
