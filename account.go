package userforms

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account field names as they appear in submitted forms and violation paths.
const (
	FieldName        = "name"
	FieldMail        = "mail"
	FieldPass        = "pass"
	FieldCurrentPass = "current_pass"
	FieldStatus      = "status"
	FieldRoles       = "roles"
)

// PermAdministerUsers lets the holder edit any account and leave an account
// without an email address.
const PermAdministerUsers = "administer users"

// PasswordHashCost is the bcrypt cost used when hashing new passwords.
var PasswordHashCost = bcrypt.DefaultCost

// Account is the user identity being edited.
type Account struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Mail              string    `json:"mail,omitempty"`
	PassHash          string    `json:"pass_hash,omitempty"`
	Permissions       []string  `json:"permissions,omitempty"`
	Active            bool      `json:"active"`
	PasswordChangedAt time.Time `json:"password_changed_at"`
	LastLoginAt       time.Time `json:"last_login_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// never persisted
	pendingPass  string
	existingPass string
}

func (a *Account) Id() string { return strconv.FormatInt(a.ID, 10) }

// IsNew returns true if the account has not been stored yet
func (a *Account) IsNew() bool { return a.ID == 0 }

func (a *Account) HasPermission(perm string) bool {
	return slices.Contains(a.Permissions, perm)
}

// Get returns the value of an editable field. The password is write-only and
// always reads as empty.
func (a *Account) Get(field string) (string, error) {
	switch field {
	case FieldName:
		return a.Name, nil
	case FieldMail:
		return a.Mail, nil
	case FieldPass:
		return "", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// Set assigns an editable field. An empty password leaves the current one in place.
func (a *Account) Set(field, value string) error {
	switch field {
	case FieldName:
		a.Name = value
	case FieldMail:
		a.Mail = value
	case FieldPass:
		a.SetPassword(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// SetPassword stages a new plaintext password. It is hashed on commit.
func (a *Account) SetPassword(plain string) { a.pendingPass = plain }

// PendingPassword returns the staged plaintext password, if any.
func (a *Account) PendingPassword() (string, bool) {
	return a.pendingPass, a.pendingPass != ""
}

// SetExistingPassword attaches the current password the user typed so the
// validator can confirm changes to protected fields.
func (a *Account) SetExistingPassword(plain string) { a.existingPass = plain }

// CheckExistingPassword verifies the attached current password against the
// stored hash of the unchanged account.
func (a *Account) CheckExistingPassword(unchanged *Account) bool {
	if a.existingPass == "" || unchanged == nil || unchanged.PassHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(unchanged.PassHash), []byte(a.existingPass)) == nil
}

// CheckPassword compares a plaintext password with the stored hash.
func (a *Account) CheckPassword(plain string) bool {
	if a.PassHash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PassHash), []byte(plain)) == nil
}

// FinalizePassword hashes a staged password and stamps the change time.
func (a *Account) FinalizePassword(now time.Time) error {
	plain, ok := a.PendingPassword()
	if !ok {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordHashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	a.PassHash = string(hash)
	a.PasswordChangedAt = now
	a.pendingPass = ""
	a.existingPass = ""
	return nil
}

// Clone returns a copy, including staged credentials.
func (a *Account) Clone() *Account {
	out := *a
	out.Permissions = slices.Clone(a.Permissions)
	return &out
}

// AccountStore is the identity store the forms read from and write to.
type AccountStore interface {
	// GetAccountById returns ErrAccountNotFound if there is no such account
	GetAccountById(ctx context.Context, id int64) (*Account, error)

	// GetAccountByMail returns ErrAccountNotFound if no account uses the address
	GetAccountByMail(ctx context.Context, mail string) (*Account, error)

	// CreateAccount stores a new account and assigns its ID
	CreateAccount(ctx context.Context, account *Account) error

	// SaveAccount updates an existing account
	SaveAccount(ctx context.Context, account *Account) error
}

// ParseAccountId parses a numeric route parameter.
func ParseAccountId(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrAccountNotFound, s)
	}
	return id, nil
}
