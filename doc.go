// Package userforms splits the monolithic "edit account" page into three
// separate forms: a profile form, an email-change form and a password-change
// form. Changes to the protected fields (email and password) must be
// confirmed by re-entering the current password, unless the user arrived
// through a valid one-time login link.
//
// # Architecture
//
// PasswordGate: the shared workflow both protected forms hold a reference to.
// It decides whether the current password is required, applies only the
// fields a form is allowed to edit, runs the account validator and commits
// the result.
//
// EmailForm, PasswordForm, ProfileForm: HTTP handlers for the three forms.
// Each renders a Form model as HTML or, when the client asks for
// application/json, as JSON.
//
// OneTimeLogin: the controller behind /user/reset/{uid}/{timestamp}/{hash}/login.
// A valid link logs the account in and stores a pass-reset token in the
// session under "pass_reset_<uid>", then redirects to the password form with
// ?pass-reset-token=<token>.
//
// # Basic Usage
//
//	session := scs.New()
//	accounts := fs.NewFSAccountStore("/path/to/storage")
//
//	module := userforms.New(&userforms.Config{AppName: "MyApp"}, session, accounts)
//	module.Policy = &userforms.ExpiryPolicy{MaxAge: 90 * 24 * time.Hour}
//	module.EmailSender = &userforms.ConsoleEmailSender{}
//
//	http.ListenAndServe(":8080", module.Handler())
//
// # Routes
//
//	/user/{user}/edit                              profile form
//	/user/{user}/email                             email-change form
//	/user/{user}/password                          password-change form
//	/user/reset/{uid}/{timestamp}/{hash}/login     one-time login
//	/user/login, /user/logout, /user/password      login, logout, forgot password
//
// The route table is built the way a host exposes it and then altered, so the
// edit route gains a numeric id requirement and the one-time login route is
// pointed at this package's controller.
//
// # Store Implementations
//
// The stores/fs package keeps accounts as JSON files and suits development
// and tests. stores/gorm and stores/gae back the AccountStore with a
// relational database or Cloud Datastore, and stores/redis provides a
// Redis-backed session store for scs.
//
// # API Clients
//
// Every form answers with a JSON model when the request accepts
// application/json. A JSON login returns a bearer token, and the client
// package wraps the flow:
//
//	c := client.NewFormsClient("http://localhost:8080")
//	c.Login("a@x.com", "secret")
//	_, err := c.ChangeEmail(c.AccountID(), "b@x.com", "secret")
//
// Rejected submissions come back as *client.FormError carrying the
// per-field messages.
//
// # Password Expiry
//
// With a PasswordPolicy set, users whose password has expired are sent to
// their password form from every other account page, and that form offers
// "Log out" instead of "Cancel".
//
// # Security
//
// Passwords are hashed with bcrypt. Session tokens are compared in constant
// time, and the pass-reset token is removed from the session once the
// account has been saved so a stale link cannot skip the current password
// check again.
package userforms
