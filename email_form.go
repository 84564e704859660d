package userforms

import (
	"log"
	"net/http"
)

// EmailFormID identifies the email-change form.
const EmailFormID = "user_edit_email"

var emailEditedFields = []string{FieldMail}

// EmailForm changes an account's email address.
type EmailForm struct {
	Gate       *PasswordGate
	Messenger  *Messenger
	Translator Translator
}

func (f *EmailForm) Title() string { return tr(f.Translator, "Change Email") }

// mailRequired is false only when the account has no address and the acting
// user administers users, so such accounts can still be edited.
func mailRequired(sess *EditSession) bool {
	adminExempt := sess.Original.Mail == "" && sess.Acting != nil && sess.Acting.HasPermission(PermAdministerUsers)
	return !adminExempt
}

// Build returns the render model for the current session.
func (f *EmailForm) Build(r *http.Request, sess *EditSession) *Form {
	form := &Form{
		ID:      EmailFormID,
		Title:   f.Title(),
		BuildID: sess.State.BuildID,
		Action:  r.URL.RequestURI(),
	}
	if sess.IsOwnAccount() {
		form.Fields = append(form.Fields, f.Gate.CurrentPasswordField(sess.State.PassReset, true))
	}
	form.Fields = append(form.Fields, FieldSpec{
		Name:  FieldMail,
		Type:  "email",
		Title: tr(f.Translator, "Email address"),
		Description: tr(f.Translator, "A valid email address. All emails from the system will be sent to this address. "+
			"The email address is not made public and will only be used if you wish to receive a new password or wish "+
			"to receive certain news or notifications by email."),
		Required: mailRequired(sess),
		Visible:  true,
		Value:    sess.Original.Mail,
	})
	form.Actions = []Action{
		{Name: "submit", Type: "submit", Title: tr(f.Translator, "Save"), Classes: primaryButton},
		{Name: "cancel", Type: "link", Title: tr(f.Translator, "Cancel"), URL: f.Gate.EditURL(sess.Original.ID), Classes: secondaryButton},
	}
	return form
}

func (f *EmailForm) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := f.Gate.Begin(r, EmailFormID)
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

	values, err := submittedValues(r, FieldMail, FieldCurrentPass)
	if err != nil {
		handleFormError(w, r, err)
		return
	}

	var pre []FieldError
	current := f.Gate.CurrentPasswordField(sess.State.PassReset, sess.IsOwnAccount())
	if current.Required && values[FieldCurrentPass] == "" {
		pre = append(pre, requiredError(f.Translator, FieldCurrentPass, current.Title))
	}

	account, err := f.Gate.ApplyEdits(sess.Account, values, emailEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	errs, err := f.Gate.ValidateEdits(ctx, account, sess.ValidationContext(), emailEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	if errs = mergeErrors(pre, errs); len(errs) > 0 {
		form := f.Build(r, sess)
		form.Field(FieldMail).Value = values[FieldMail]
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
	log.Printf("Email changed for account %d", account.ID)

	f.Messenger.AddMessage(ctx, tr(f.Translator, "Email updated successfully."))
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}
