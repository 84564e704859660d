package userforms

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Constraint names reported in violations
const (
	ConstraintProtectedUserField = "ProtectedUserField"
	ConstraintNameRequired       = "UserNameRequired"
	ConstraintNameLength         = "UserNameLength"
	ConstraintMailRequired       = "UserMailRequired"
	ConstraintMailFormat         = "Email"
	ConstraintMailUnique         = "UserMailUnique"
	ConstraintPasswordPolicy     = "PasswordPolicy"
)

// NameMaxLength is the longest account name accepted.
const NameMaxLength = 60

// Violation is a single failed constraint on an account.
type Violation struct {
	Constraint   string
	PropertyPath string
	Message      string
}

// Field returns the top-level field the violation targets.
func (v Violation) Field() string {
	field, _, _ := strings.Cut(v.PropertyPath, ".")
	return field
}

// ValidationContext carries per-call validation options instead of flags
// stored on the account.
type ValidationContext struct {
	Acting *Account

	// Set when the edit happens through the one-time login flow.
	SkipProtectedFieldConstraint bool
}

// AccountValidator checks an account against the identity store's rules.
type AccountValidator interface {
	Validate(ctx context.Context, account *Account, vctx ValidationContext) ([]Violation, error)
}

// DefaultValidator implements the stock account constraints: name, mail
// (required, format, unique), password strength and the protected field rule.
type DefaultValidator struct {
	Accounts      AccountStore
	PasswordRules []PasswordRule
	Translator    Translator

	validate *validator.Validate
}

func NewDefaultValidator(accounts AccountStore, rules []PasswordRule, t Translator) *DefaultValidator {
	return &DefaultValidator{
		Accounts:      accounts,
		PasswordRules: rules,
		Translator:    t,
		validate:      validator.New(),
	}
}

func (v *DefaultValidator) Validate(ctx context.Context, account *Account, vctx ValidationContext) ([]Violation, error) {
	if v.validate == nil {
		v.validate = validator.New()
	}

	var unchanged *Account
	if !account.IsNew() {
		u, err := v.Accounts.GetAccountById(ctx, account.ID)
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		unchanged = u
	}

	var out []Violation
	out = append(out, v.nameViolations(account)...)

	mailViolations, err := v.mailViolations(ctx, account, unchanged, vctx)
	if err != nil {
		return nil, err
	}
	out = append(out, mailViolations...)

	if plain, ok := account.PendingPassword(); ok {
		for _, rule := range v.PasswordRules {
			if rule.Check(plain) {
				continue
			}
			var args []any
			if rule.Arg != nil {
				args = append(args, rule.Arg)
			}
			out = append(out, Violation{
				Constraint:   ConstraintPasswordPolicy,
				PropertyPath: FieldPass,
				Message:      tr(v.Translator, rule.Message, args...),
			})
		}
	}

	out = append(out, v.protectedFieldViolations(account, unchanged, vctx)...)
	return out, nil
}

func (v *DefaultValidator) nameViolations(account *Account) []Violation {
	name := strings.TrimSpace(account.Name)
	if name == "" {
		return []Violation{{
			Constraint:   ConstraintNameRequired,
			PropertyPath: FieldName,
			Message:      tr(v.Translator, "You must enter a username."),
		}}
	}
	if utf8.RuneCountInString(name) > NameMaxLength {
		return []Violation{{
			Constraint:   ConstraintNameLength,
			PropertyPath: FieldName,
			Message:      tr(v.Translator, "The username %s is too long: it must be %d characters or less.", name, NameMaxLength),
		}}
	}
	return nil
}

func (v *DefaultValidator) mailViolations(ctx context.Context, account, unchanged *Account, vctx ValidationContext) ([]Violation, error) {
	unchangedMail := ""
	if unchanged != nil {
		unchangedMail = unchanged.Mail
	}

	if account.Mail == "" {
		// Administrators may leave the address empty on accounts that never had one.
		if unchangedMail == "" && vctx.Acting != nil && vctx.Acting.HasPermission(PermAdministerUsers) {
			return nil, nil
		}
		return []Violation{{
			Constraint:   ConstraintMailRequired,
			PropertyPath: FieldMail,
			Message:      tr(v.Translator, "%s field is required.", tr(v.Translator, "Email")),
		}}, nil
	}

	if err := v.validate.Var(account.Mail, "email"); err != nil {
		return []Violation{{
			Constraint:   ConstraintMailFormat,
			PropertyPath: FieldMail,
			Message:      tr(v.Translator, "This value is not a valid email address."),
		}}, nil
	}

	if account.Mail == unchangedMail {
		return nil, nil
	}
	other, err := v.Accounts.GetAccountByMail(ctx, account.Mail)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if other.ID != account.ID {
		return []Violation{{
			Constraint:   ConstraintMailUnique,
			PropertyPath: FieldMail,
			Message:      tr(v.Translator, "The email address %s is already taken.", account.Mail),
		}}, nil
	}
	return nil, nil
}

// protectedFieldViolations requires the current password for changes to the
// mail or pass fields of the acting user's own account.
func (v *DefaultValidator) protectedFieldViolations(account, unchanged *Account, vctx ValidationContext) []Violation {
	if account.IsNew() || unchanged == nil || vctx.SkipProtectedFieldConstraint {
		return nil
	}
	if vctx.Acting == nil || vctx.Acting.ID != account.ID {
		return nil
	}

	var out []Violation
	for _, f := range []struct{ name, label string }{{FieldMail, "Email"}, {FieldPass, "Password"}} {
		changed := false
		switch f.name {
		case FieldMail:
			changed = account.Mail != unchanged.Mail
		case FieldPass:
			_, changed = account.PendingPassword()
		}
		if changed && !account.CheckExistingPassword(unchanged) {
			out = append(out, Violation{
				Constraint:   ConstraintProtectedUserField,
				PropertyPath: f.name,
				Message: tr(v.Translator, "Your current password is missing or incorrect; it's required to change the %s.",
					tr(v.Translator, f.label)),
			})
		}
	}
	return out
}

// CanEditField reports whether acting may change field on account.
func CanEditField(acting, account *Account, field string) bool {
	if acting == nil || account == nil {
		return false
	}
	admin := acting.HasPermission(PermAdministerUsers)
	switch field {
	case FieldStatus, FieldRoles:
		return admin
	}
	return admin || acting.ID == account.ID
}

// FilterByFieldAccess drops violations on fields the acting user cannot edit.
func FilterByFieldAccess(violations []Violation, acting, account *Account) []Violation {
	out := violations[:0:0]
	for _, v := range violations {
		if CanEditField(acting, account, v.Field()) {
			out = append(out, v)
		}
	}
	return out
}

// ViolationsByFields keeps violations whose top-level field is in fields.
func ViolationsByFields(violations []Violation, fields []string) []Violation {
	out := violations[:0:0]
	for _, v := range violations {
		for _, f := range fields {
			if v.Field() == f {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
