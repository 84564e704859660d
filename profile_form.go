package userforms

import (
	"net/http"
)

// ProfileFormID identifies the profile form.
const ProfileFormID = "user_form"

var profileEditedFields = []string{FieldName}

// ProfileForm is the main account edit form. The password and email fields
// are hidden and replaced by summary sections linking to their own forms.
type ProfileForm struct {
	Gate       *PasswordGate
	Messenger  *Messenger
	Translator Translator

	EmailURL    func(accountID int64) string
	PasswordURL func(accountID int64) string
}

func (f *ProfileForm) Build(r *http.Request, sess *EditSession) *Form {
	account := sess.Original
	currentEmail := account.Mail
	if currentEmail == "" {
		currentEmail = tr(f.Translator, "N/A")
	}

	form := &Form{
		ID:      ProfileFormID,
		Title:   account.Name,
		BuildID: sess.State.BuildID,
		Action:  r.URL.RequestURI(),
		Sections: []Section{
			{
				Name:    "cf_email",
				Label:   tr(f.Translator, "Email"),
				Value:   currentEmail,
				Weight:  -20,
				Classes: []string{"cf-email-wrapper"},
				Link: &Action{
					Name:    "update_button",
					Type:    "link",
					Title:   tr(f.Translator, "Change Email"),
					URL:     f.EmailURL(account.ID),
					Classes: primaryButton,
				},
			},
			{
				Name:    "cf_password",
				Label:   tr(f.Translator, "Password"),
				Weight:  -19,
				Classes: []string{"cf-password-wrapper"},
				Link: &Action{
					Name:    "update_button",
					Type:    "link",
					Title:   tr(f.Translator, "Change Password"),
					URL:     f.PasswordURL(account.ID),
					Classes: primaryButton,
				},
			},
		},
		Fields: []FieldSpec{
			{
				Name:        FieldName,
				Type:        "text",
				Title:       tr(f.Translator, "Username"),
				Description: tr(f.Translator, "Several special characters are allowed, including space, period (.), hyphen (-), apostrophe ('), underscore (_), and the @ sign."),
				Value:       account.Name,
				Required:    true,
				Visible:     true,
				Size:        60,
			},
			// Protected fields are edited through their own forms.
			{Name: FieldMail, Type: "email", Visible: false},
			{Name: FieldPass, Type: "password_confirm", Visible: false},
			{Name: FieldCurrentPass, Type: "password", Visible: false},
		},
		Actions: []Action{
			{Name: "submit", Type: "submit", Title: tr(f.Translator, "Save"), Classes: primaryButton},
		},
	}
	return form
}

func (f *ProfileForm) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := f.Gate.Begin(r, ProfileFormID)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	ctx := r.Context()

	if r.Method != http.MethodPost {
		form := f.Build(r, sess)
		form.Messages = f.Messenger.Messages(ctx)
		saveEditState(ctx, f.Gate.Sessions, sess.State)
		RenderForm(w, r, http.StatusOK, form)
		return
	}

	values, err := submittedValues(r, profileEditedFields...)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	account, err := f.Gate.ApplyEdits(sess.Account, values, profileEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	errs, err := f.Gate.ValidateEdits(ctx, account, sess.ValidationContext(), profileEditedFields)
	if err != nil {
		handleFormError(w, r, err)
		return
	}
	if len(errs) > 0 {
		form := f.Build(r, sess)
		form.Field(FieldName).Value = values[FieldName]
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

	f.Messenger.AddMessage(ctx, tr(f.Translator, "The changes have been saved."))
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}
