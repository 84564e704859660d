//go:build !wasm
// +build !wasm

package gae

import (
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	uf "github.com/panyam/userforms"
)

// AccountEntity is the Datastore entity for accounts
type AccountEntity struct {
	Key               *datastore.Key `datastore:"__key__"`
	Name              string         `datastore:"name"`
	Mail              string         `datastore:"mail,noindex"`
	MailLower         string         `datastore:"mail_lower"` // lookups are case-insensitive
	PassHash          string         `datastore:"pass_hash,noindex"`
	Permissions       []string       `datastore:"permissions,noindex"`
	Active            bool           `datastore:"active"`
	PasswordChangedAt time.Time      `datastore:"password_changed_at,noindex"`
	LastLoginAt       time.Time      `datastore:"last_login_at,noindex"`
	CreatedAt         time.Time      `datastore:"created_at"`
	UpdatedAt         time.Time      `datastore:"updated_at"`
	Version           int            `datastore:"version"`
}

func (e *AccountEntity) ToAccount() *uf.Account {
	return &uf.Account{
		ID:                e.Key.ID,
		Name:              e.Name,
		Mail:              e.Mail,
		PassHash:          e.PassHash,
		Permissions:       e.Permissions,
		Active:            e.Active,
		PasswordChangedAt: e.PasswordChangedAt,
		LastLoginAt:       e.LastLoginAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func AccountToEntity(a *uf.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:               key,
		Name:              a.Name,
		Mail:              a.Mail,
		MailLower:         strings.ToLower(a.Mail),
		PassHash:          a.PassHash,
		Permissions:       a.Permissions,
		Active:            a.Active,
		PasswordChangedAt: a.PasswordChangedAt,
		LastLoginAt:       a.LastLoginAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
