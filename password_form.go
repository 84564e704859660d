package userforms

import (
	"log"
	"net/http"
)

// PasswordFormID identifies the password-change form.
const PasswordFormID = "user_edit_password"

var passwordEditedFields = []string{FieldPass}

const (
	pass1Field = FieldPass + "[pass1]"
	pass2Field = FieldPass + "[pass2]"
)

// PasswordForm changes an account's password. The new password is entered twice.
type PasswordForm struct {
	Gate       *PasswordGate
	Messenger  *Messenger
	Translator Translator
	Policy     PasswordPolicy

	// LogoutURL is offered instead of Cancel when the password has expired.
	LogoutURL string
}

func (f *PasswordForm) Title() string { return tr(f.Translator, "Change Password") }

// secondaryAction is "Log out" when users edit their own account and its
// password has already expired, since browsing on is not allowed then.
func (f *PasswordForm) secondaryAction(sess *EditSession) Action {
	if sess.IsOwnAccount() && PasswordExpired(f.Policy, sess.Original, f.Gate.now()) {
		return Action{Name: "cancel", Type: "link", Title: tr(f.Translator, "Log out"), URL: f.LogoutURL, Classes: secondaryButton}
	}
	return Action{Name: "cancel", Type: "link", Title: tr(f.Translator, "Cancel"), URL: f.Gate.EditURL(sess.Original.ID), Classes: secondaryButton}
}

// Build returns the render model for the current session.
func (f *PasswordForm) Build(r *http.Request, sess *EditSession) *Form {
	form := &Form{
		ID:      PasswordFormID,
		Title:   f.Title(),
		BuildID: sess.State.BuildID,
		Action:  r.URL.RequestURI(),
	}
	if sess.IsOwnAccount() {
		form.Fields = append(form.Fields, f.Gate.CurrentPasswordField(sess.State.PassReset, true))
	}
	form.Fields = append(form.Fields, FieldSpec{
		Name:        FieldPass,
		Type:        "password_confirm",
		Title:       tr(f.Translator, "Password"),
		Description: tr(f.Translator, "To change the current user password, enter the new password in both fields."),
		Required:    true,
		Visible:     true,
		Size:        25,
	})
	form.Actions = []Action{
		{Name: "submit", Type: "submit", Title: tr(f.Translator, "Save"), Classes: primaryButton},
		f.secondaryAction(sess),
	}
	return form
}

func (f *PasswordForm) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := f.Gate.Begin(r, PasswordFormID)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	ctx := r.Context()
	f.Gate.ResolvePasswordResetState(ctx, sess.State, sess.Token)

	if r.Method != http.MethodPost {
		form := f.Build(r, sess)
		form.Messages = f.Messenger.Messages(ctx)
		saveEditState(ctx, f.Gate.Sessions, sess.State)
		RenderForm(w, r, http.StatusOK, form)
		return
	}

	values, err := submittedValues(r, pass1Field, pass2Field, FieldCurrentPass)
	if err != nil {
		handleFormError(w, r, err)
		return
	}

	var pre []FieldError
	current := f.Gate.CurrentPasswordField(sess.State.PassReset, sess.IsOwnAccount())
	if current.Required && values[FieldCurrentPass] == "" {
		pre = append(pre, requiredError(f.Translator, FieldCurrentPass, current.Title))
	}

	// Resolve the confirmed pair into the single pass value.
	pass1, pass2 := values[pass1Field], values[pass2Field]
	switch {
	case pass1 == "" && pass2 == "":
		pre = append(pre, requiredError(f.Translator, FieldPass, tr(f.Translator, "Password")))
	case pass1 != pass2:
		pre = append(pre, FieldError{Field: FieldPass, Message: tr(f.Translator, "The specified passwords do not match.")})
	default:
		values[FieldPass] = pass1
	}

	account, err := f.Gate.ApplyEdits(sess.Account, values, passwordEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	errs, err := f.Gate.ValidateEdits(ctx, account, sess.ValidationContext(), passwordEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	if errs = mergeErrors(pre, errs); len(errs) > 0 {
		form := f.Build(r, sess)
		form.SetErrors(errs)
		saveEditState(ctx, f.Gate.Sessions, sess.State)
		RenderForm(w, r, http.StatusUnprocessableEntity, form)
		return
	}

	redirect, err := f.Gate.Commit(ctx, account)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	f.Gate.Finish(ctx, sess)
	log.Printf("Password changed for account %d", account.ID)

	f.Messenger.AddMessage(ctx, tr(f.Translator, "Password updated successfully."))
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}
