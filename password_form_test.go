package userforms_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	uf "github.com/panyam/userforms"
)

func passwordValues(pass1, pass2, current string) url.Values {
	v := url.Values{"pass[pass1]": {pass1}, "pass[pass2]": {pass2}}
	if current != "" {
		v.Set("current_pass", current)
	}
	return v
}

func TestPasswordForm_ChangePassword(t *testing.T) {
	site := setupSite(t)
	alice := site.createAccount("alice", "a@x.com", "secret123")

	b := site.newBrowser()
	b.login("a@x.com", "secret123")

	form := b.getForm("/user/1/password")
	if f := form.Field(uf.FieldCurrentPass); f == nil || !f.Visible || !f.Required {
		t.Fatalf("current_pass field = %+v, want visible and required", f)
	}
	if cancel := form.ActionNamed("cancel"); cancel == nil || cancel.Title != "Cancel" || cancel.URL != "/user/1/edit" {
		t.Errorf("secondary action = %+v, want Cancel to the edit form", cancel)
	}

	site.Clock.Advance(time.Hour)
	resp, rejected := b.post("/user/1/password", passwordValues("newpass123", "newpass123", "secret123"))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (form %+v)", resp.StatusCode, rejected)
	}
	if loc := resp.Header.Get("Location"); loc != "/user/1/edit" {
		t.Errorf("redirect = %q, want /user/1/edit", loc)
	}

	updated := site.reload(alice.ID)
	if !updated.CheckPassword("newpass123") {
		t.Errorf("new password not stored")
	}
	if updated.CheckPassword("secret123") {
		t.Errorf("old password still accepted")
	}
	if !updated.PasswordChangedAt.Equal(site.Clock.Now()) {
		t.Errorf("PasswordChangedAt = %v, want %v", updated.PasswordChangedAt, site.Clock.Now())
	}
	if updated.Mail != "a@x.com" {
		t.Errorf("mail changed to %q", updated.Mail)
	}

	profile := b.getForm("/user/1/edit")
	if len(profile.Messages) != 1 || profile.Messages[0] != "Password updated successfully." {
		t.Errorf("messages = %v", profile.Messages)
	}
}

func TestPasswordForm_Rejections(t *testing.T) {
	site := setupSite(t)
	alice := site.createAccount("alice", "a@x.com", "secret123")

	tests := []struct {
		name      string
		values    url.Values
		wantField string
		wantErr   string
	}{
		{
			name:      "mismatch",
			values:    passwordValues("newpass123", "newpass124", "secret123"),
			wantField: uf.FieldPass,
			wantErr:   "The specified passwords do not match.",
		},
		{
			name:      "empty",
			values:    passwordValues("", "", "secret123"),
			wantField: uf.FieldPass,
			wantErr:   "Password field is required.",
		},
		{
			name:      "missing current password",
			values:    passwordValues("newpass123", "newpass123", ""),
			wantField: uf.FieldCurrentPass,
			wantErr:   "Current password field is required.",
		},
		{
			name:      "wrong current password",
			values:    passwordValues("newpass123", "newpass123", "nope"),
			wantField: uf.FieldCurrentPass,
			wantErr:   "Your current password is missing or incorrect; it's required to change the Password.",
		},
		{
			name:      "weak",
			values:    passwordValues("abc", "abc", "secret123"),
			wantField: uf.FieldPass,
			wantErr:   "Password must be at least 8 characters long.\nPassword must contain at least one digit.",
		},
	}

	b := site.newBrowser()
	b.login("a@x.com", "secret123")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, rejected := b.post("/user/1/password", tt.values)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", resp.StatusCode)
			}
			if got := errorFor(rejected, tt.wantField); got != tt.wantErr {
				t.Errorf("%s error = %q, want %q", tt.wantField, got, tt.wantErr)
			}
			if f := rejected.Field(tt.wantField); f == nil || f.Error != tt.wantErr {
				t.Errorf("error not attached to field %s: %+v", tt.wantField, f)
			}
		})
	}

	if !site.reload(alice.ID).CheckPassword("secret123") {
		t.Errorf("password changed by a rejected submission")
	}
}

func TestPasswordForm_WeakPasswordKeepsEachMessage(t *testing.T) {
	site := setupSite(t)
	site.createAccount("alice", "a@x.com", "secret123")

	b := site.newBrowser()
	b.login("a@x.com", "secret123")

	_, rejected := b.post("/user/1/password", passwordValues("1234", "1234", "secret123"))
	var fe *uf.FieldError
	for i := range rejected.Errors {
		if rejected.Errors[i].Field == uf.FieldPass {
			fe = &rejected.Errors[i]
		}
	}
	if fe == nil {
		t.Fatalf("no pass error in %+v", rejected.Errors)
	}
	want := []string{"Password must be at least 8 characters long.", "Password must contain at least one letter."}
	if len(fe.Messages) != len(want) {
		t.Fatalf("messages = %q, want %q", fe.Messages, want)
	}
	for i := range want {
		if fe.Messages[i] != want[i] {
			t.Errorf("messages[%d] = %q, want %q", i, fe.Messages[i], want[i])
		}
	}
}

func TestPasswordForm_ExpiredPasswordOffersLogout(t *testing.T) {
	site := setupSite(t, withPolicy(&uf.ExpiryPolicy{MaxAge: 30 * 24 * time.Hour}))
	site.createAccount("alice", "a@x.com", "secret123")
	site.Clock.Advance(31 * 24 * time.Hour)

	b := site.newBrowser()
	b.login("a@x.com", "secret123")

	// Other account pages send the user to the password form
	resp := b.get("/user/1/email")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/user/1/password" {
		t.Fatalf("redirect = %q, want /user/1/password", loc)
	}

	form := b.getForm("/user/1/password")
	action := form.ActionNamed("cancel")
	if action == nil || action.Title != "Log out" || action.URL != "/user/logout" {
		t.Errorf("secondary action = %+v, want Log out", action)
	}
	if len(form.Messages) == 0 || form.Messages[0] != "Your password has expired. Please choose a new one." {
		t.Errorf("messages = %v", form.Messages)
	}

	resp, _ = b.post("/user/1/password", passwordValues("fresh1234", "fresh1234", "secret123"))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}

	// A fresh password lifts the restriction
	form = b.getForm("/user/1/email")
	if form.ID != uf.EmailFormID {
		t.Errorf("form = %q, want the email form", form.ID)
	}
	form = b.getForm("/user/1/password")
	if action := form.ActionNamed("cancel"); action == nil || action.Title != "Cancel" {
		t.Errorf("secondary action = %+v, want Cancel", action)
	}
}

func TestPasswordForm_AdminEditingOthers(t *testing.T) {
	site := setupSite(t, withPolicy(&uf.ExpiryPolicy{MaxAge: 30 * 24 * time.Hour}))
	site.createAccount("admin", "admin@x.com", "adminpass1", uf.PermAdministerUsers)
	site.Clock.Advance(31 * 24 * time.Hour)
	bob := site.createAccount("bob", "bob@x.com", "secret123")
	site.Clock.Advance(31 * 24 * time.Hour)

	// The administrator's own password has expired too, so reset it first
	b := site.newBrowser()
	b.login("admin@x.com", "adminpass1")
	resp, _ := b.post("/user/1/password", passwordValues("adminpass2", "adminpass2", "adminpass1"))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}

	form := b.getForm("/user/2/password")
	if form.Field(uf.FieldCurrentPass) != nil {
		t.Errorf("current_pass shown for another account")
	}
	// Bob's expired password does not turn the action into Log out for the admin
	if action := form.ActionNamed("cancel"); action == nil || action.Title != "Cancel" || action.URL != "/user/2/edit" {
		t.Errorf("secondary action = %+v", action)
	}

	resp, _ = b.post("/user/2/password", passwordValues("bobpass123", "bobpass123", ""))
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if !site.reload(bob.ID).CheckPassword("bobpass123") {
		t.Errorf("bob's password not changed")
	}
}
