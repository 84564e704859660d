package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/crypto/bcrypt"

	uf "github.com/panyam/userforms"
	"github.com/panyam/userforms/stores/fs"
)

// newTestServer runs the account forms with one user, alice (id 1), and an
// administrator (id 2).
func newTestServer(t *testing.T) (*httptest.Server, *fs.FSAccountStore) {
	t.Helper()
	uf.PasswordHashCost = bcrypt.MinCost
	accounts := fs.NewFSAccountStore(t.TempDir())
	now := time.Now()
	for _, a := range []struct {
		name, mail, pass string
		perms            []string
	}{
		{"alice", "a@x.com", "secret123", nil},
		{"admin", "admin@x.com", "adminpass1", []string{uf.PermAdministerUsers}},
	} {
		account := &uf.Account{Name: a.name, Mail: a.mail, Active: true, Permissions: a.perms}
		account.SetPassword(a.pass)
		if err := account.FinalizePassword(now); err != nil {
			t.Fatal(err)
		}
		if err := accounts.CreateAccount(context.Background(), account); err != nil {
			t.Fatal(err)
		}
	}

	module := uf.New(&uf.Config{AppName: "ClientTest"}, scs.New(), accounts)
	server := httptest.NewServer(module.Handler())
	t.Cleanup(server.Close)
	return server, accounts
}

func TestFormsClient_Login(t *testing.T) {
	server, _ := newTestServer(t)
	c := NewFormsClient(server.URL + "/")

	err := c.Login("a@x.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "invalid_credentials" {
		t.Fatalf("Login(wrong) error = %v, want 401 invalid_credentials", err)
	}
	if c.Token() != "" {
		t.Errorf("token kept after failed login")
	}

	if err := c.Login("a@x.com", "secret123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if c.Token() == "" || c.AccountID() != 1 {
		t.Errorf("token = %q, account = %d", c.Token(), c.AccountID())
	}

	form, err := c.GetForm("/user/1/edit")
	if err != nil {
		t.Fatalf("GetForm() error = %v", err)
	}
	if form.ID != uf.ProfileFormID || form.Title != "alice" {
		t.Errorf("form = %+v", form)
	}

	c.Logout()
	_, err = c.GetForm("/user/1/edit")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("GetForm() after logout error = %v, want 401", err)
	}
}

func TestFormsClient_ChangeEmail(t *testing.T) {
	server, accounts := newTestServer(t)
	c := NewFormsClient(server.URL)
	if err := c.Login("a@x.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	_, err := c.ChangeEmail(1, "b@x.com", "wrong")
	var formErr *FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("ChangeEmail(wrong password) error = %v, want FormError", err)
	}
	if formErr.StatusCode != http.StatusUnprocessableEntity || formErr.For(uf.FieldCurrentPass) == "" {
		t.Errorf("form error = %v", formErr)
	}
	if f := formErr.Form.Field(uf.FieldMail); f == nil || f.Value != "b@x.com" {
		t.Errorf("submitted mail not echoed: %+v", f)
	}

	_, err = c.ChangeEmail(1, "admin@x.com", "secret123")
	if !errors.As(err, &formErr) || formErr.For(uf.FieldMail) != "The email address admin@x.com is already taken." {
		t.Errorf("ChangeEmail(taken) error = %v", err)
	}

	form, err := c.ChangeEmail(1, "b@x.com", "secret123")
	if err != nil {
		t.Fatalf("ChangeEmail() error = %v", err)
	}
	if form.ID != uf.ProfileFormID {
		t.Errorf("redirected to %q, want the profile form", form.ID)
	}
	account, err := accounts.GetAccountById(context.Background(), 1)
	if err != nil || account.Mail != "b@x.com" {
		t.Errorf("stored mail = %v, %v", account, err)
	}
}

func TestFormsClient_ChangePassword(t *testing.T) {
	server, accounts := newTestServer(t)
	c := NewFormsClient(server.URL)
	if err := c.Login("a@x.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	_, err := c.ChangePassword(1, "short", "secret123")
	var formErr *FormError
	if !errors.As(err, &formErr) || formErr.For(uf.FieldPass) == "" {
		t.Fatalf("ChangePassword(weak) error = %v, want pass error", err)
	}

	if _, err := c.ChangePassword(1, "newpass123", "secret123"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	account, _ := accounts.GetAccountById(context.Background(), 1)
	if !account.CheckPassword("newpass123") {
		t.Errorf("password not changed")
	}

	// The bearer token stays valid; logging in again needs the new password
	if err := c.Login("a@x.com", "secret123"); err == nil {
		t.Errorf("old password still accepted")
	}
	if err := c.Login("a@x.com", "newpass123"); err != nil {
		t.Errorf("Login(new password) error = %v", err)
	}
}

func TestFormsClient_AdminAndAccess(t *testing.T) {
	server, _ := newTestServer(t)

	alice := NewFormsClient(server.URL)
	if err := alice.Login("a@x.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	_, err := alice.GetForm("/user/2/edit")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden || apiErr.Code != "access_denied" {
		t.Errorf("alice editing admin error = %v, want 403", err)
	}

	admin := NewFormsClient(server.URL)
	if err := admin.Login("admin@x.com", "adminpass1"); err != nil {
		t.Fatal(err)
	}
	form, err := admin.GetForm("/user/1/email")
	if err != nil {
		t.Fatal(err)
	}
	if form.Field(uf.FieldCurrentPass) != nil {
		t.Errorf("current_pass offered to an administrator editing another account")
	}

	form, err = admin.UpdateProfile(1, "Alice")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if form.Title != "Alice" {
		t.Errorf("title = %q", form.Title)
	}
}

func TestAuthTransport(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := &http.Client{Transport: NewAuthTransport("abc")}
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Errorf("original request mutated")
	}

	client = &http.Client{Transport: &AuthTransport{Token: func() string { return "" }}}
	resp, err = client.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}
