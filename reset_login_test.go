package userforms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	uf "github.com/panyam/userforms"
)

// requestLink asks for a one-time login link for mail and returns its path.
func (s *testSite) requestLink(mail string) string {
	s.t.Helper()
	before := s.Mail.last()
	resp := s.newBrowser().send("/user/password", url.Values{"mail": {mail}}, false)
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		s.t.Fatalf("password request status = %d, want 303", resp.StatusCode)
	}
	link := s.Mail.last()
	if link == "" || link == before {
		s.t.Fatalf("no one-time login link mailed to %s", mail)
	}
	u, err := url.Parse(link)
	if err != nil {
		s.t.Fatalf("bad link %q: %v", link, err)
	}
	return u.Path
}

func TestOneTimeLogin_SkipsCurrentPassword(t *testing.T) {
	site := setupSite(t)
	alice := site.createAccount("alice", "a@x.com", "secret123")

	link := site.requestLink("a@x.com")
	if !strings.HasPrefix(link, "/user/reset/1/") || !strings.HasSuffix(link, "/login") {
		t.Fatalf("link path = %q", link)
	}

	b := site.newBrowser()
	resp := b.get(link)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("link status = %d, want 302", resp.StatusCode)
	}
	target, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || target.Path != "/user/1/password" {
		t.Fatalf("link redirect = %q", resp.Header.Get("Location"))
	}
	token := target.Query().Get("pass-reset-token")
	if token == "" {
		t.Fatalf("no pass-reset-token in %q", target)
	}

	form := b.getForm(target.RequestURI())
	if f := form.Field(uf.FieldCurrentPass); f == nil || f.Visible || f.Required {
		t.Errorf("current_pass = %+v, want hidden and optional", f)
	}
	if len(form.Messages) != 1 || !strings.Contains(form.Messages[0], "one-time login link") {
		t.Errorf("messages = %v", form.Messages)
	}

	// The build remembers the reset state, so the token is not needed again
	values := passwordValues("newpass123", "newpass123", "")
	values.Set("form_build_id", form.BuildID)
	resp, rejected := b.post("/user/1/password", values)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (form %+v)", resp.StatusCode, rejected)
	}
	if !site.reload(alice.ID).CheckPassword("newpass123") {
		t.Errorf("password not changed")
	}

	// The token is spent once the account is saved
	form = b.getForm(target.RequestURI())
	if f := form.Field(uf.FieldCurrentPass); f == nil || !f.Visible || !f.Required {
		t.Errorf("current_pass after save = %+v, want visible and required", f)
	}
}

func TestOneTimeLogin_WrongTokenKeepsCurrentPassword(t *testing.T) {
	site := setupSite(t)
	site.createAccount("alice", "a@x.com", "secret123")

	link := site.requestLink("a@x.com")
	b := site.newBrowser()
	b.get(link)

	form := b.getForm("/user/1/password?pass-reset-token=not-the-token")
	if f := form.Field(uf.FieldCurrentPass); f == nil || !f.Visible || !f.Required {
		t.Errorf("current_pass = %+v, want visible and required", f)
	}

	// Without the token the email form asks for the current password too
	form = b.getForm("/user/1/email")
	if f := form.Field(uf.FieldCurrentPass); f == nil || !f.Visible {
		t.Errorf("email form current_pass = %+v, want visible", f)
	}
}

func TestOneTimeLogin_EmailFormWithToken(t *testing.T) {
	site := setupSite(t)
	alice := site.createAccount("alice", "a@x.com", "secret123")

	b := site.newBrowser()
	resp := b.get(site.requestLink("a@x.com"))
	target, _ := url.Parse(resp.Header.Get("Location"))
	token := target.Query().Get("pass-reset-token")

	resp, rejected := b.post("/user/1/email?pass-reset-token="+url.QueryEscape(token), url.Values{"mail": {"new@x.com"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (form %+v)", resp.StatusCode, rejected)
	}
	if got := site.reload(alice.ID).Mail; got != "new@x.com" {
		t.Errorf("mail = %q", got)
	}
}

func TestOneTimeLogin_RejectedLinks(t *testing.T) {
	usedOrInvalid := "You have tried to use a one-time login link that has either been used or is no longer valid. Please request a new one using the form below."
	expired := "You have tried to use a one-time login link that has expired. Please request a new one using the form below."

	t.Run("tampered", func(t *testing.T) {
		site := setupSite(t)
		site.createAccount("alice", "a@x.com", "secret123")
		link := site.requestLink("a@x.com")
		tampered := strings.Replace(link, "/login", "x/login", 1)
		expectRejected(t, site, tampered, usedOrInvalid)
	})

	t.Run("used", func(t *testing.T) {
		site := setupSite(t)
		site.createAccount("alice", "a@x.com", "secret123")
		link := site.requestLink("a@x.com")
		if resp := site.newBrowser().get(link); resp.StatusCode != http.StatusFound {
			t.Fatalf("first use status = %d", resp.StatusCode)
		}
		site.Clock.Advance(time.Minute)
		expectRejected(t, site, link, usedOrInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		site := setupSite(t)
		site.createAccount("alice", "a@x.com", "secret123")
		site.newBrowser().login("a@x.com", "secret123")
		link := site.requestLink("a@x.com")
		site.Clock.Advance(25 * time.Hour)
		expectRejected(t, site, link, expired)
	})

	t.Run("blocked account", func(t *testing.T) {
		site := setupSite(t)
		alice := site.createAccount("alice", "a@x.com", "secret123")
		link := site.requestLink("a@x.com")
		alice.Active = false
		if err := site.Accounts.SaveAccount(context.Background(), alice); err != nil {
			t.Fatal(err)
		}
		expectRejected(t, site, link, usedOrInvalid)
	})

	t.Run("unknown account", func(t *testing.T) {
		site := setupSite(t)
		expectRejected(t, site, "/user/reset/42/1772366400/abc/login", usedOrInvalid)
	})
}

func expectRejected(t *testing.T, site *testSite, link, wantMessage string) {
	t.Helper()
	b := site.newBrowser()
	resp := b.get(link)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/user/password" {
		t.Fatalf("redirect = %q, want /user/password", loc)
	}
	form := b.getForm("/user/password")
	if len(form.Messages) != 1 || form.Messages[0] != wantMessage {
		t.Errorf("messages = %q, want %q", form.Messages, wantMessage)
	}
}

func TestOneTimeLogin_LoggedInUsers(t *testing.T) {
	site := setupSite(t)
	site.createAccount("alice", "a@x.com", "secret123")
	site.createAccount("bob", "bob@x.com", "secret123")

	// Same user: sent to the password form
	alice := site.newBrowser()
	alice.login("a@x.com", "secret123")
	link := site.requestLink("a@x.com")
	resp := alice.get(link)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/user/1/password" {
		t.Errorf("same user = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	form := alice.getForm("/user/1/password")
	if len(form.Messages) != 1 || form.Messages[0] != "You are logged in as alice. Change your password." {
		t.Errorf("messages = %v", form.Messages)
	}

	// Another user may not use it
	bob := site.newBrowser()
	bob.login("bob@x.com", "secret123")
	if got := bob.get(link).StatusCode; got != http.StatusForbidden {
		t.Errorf("other user status = %d, want 403", got)
	}
}

func TestForgotPassword_SameAnswerForUnknownMail(t *testing.T) {
	site := setupSite(t)
	site.createAccount("alice", "a@x.com", "secret123")

	answer := func(mail string) map[string]any {
		resp := site.newBrowser().send("/user/password", url.Values{"mail": {mail}}, true)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status for %s = %d", mail, resp.StatusCode)
		}
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	known := answer("a@x.com")
	unknown := answer("nobody@x.com")
	if known["success"] != true || unknown["success"] != true {
		t.Errorf("answers = %v / %v", known, unknown)
	}
	if !strings.Contains(unknown["message"].(string), "nobody@x.com") {
		t.Errorf("message = %v", unknown["message"])
	}
	if len(site.Mail.to) != 1 || site.Mail.to[0] != "a@x.com" {
		t.Errorf("mailed to %v, want only a@x.com", site.Mail.to)
	}

	resp := site.newBrowser().send("/user/password", url.Values{"mail": {""}}, true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty mail status = %d, want 422", resp.StatusCode)
	}
}
