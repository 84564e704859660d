//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	uf "github.com/panyam/userforms"
)

// StringSlice is a helper type for storing string slices in GORM
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID                int64       `gorm:"primaryKey;autoIncrement"`
	Name              string      `gorm:"size:60;index"`
	Mail              *string     `gorm:"size:254;uniqueIndex"`
	PassHash          string      `gorm:"size:255"`
	Permissions       StringSlice `gorm:"type:jsonb"`
	Active            bool        `gorm:"default:true"`
	PasswordChangedAt time.Time
	LastLoginAt       time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *uf.Account {
	a := &uf.Account{
		ID:                m.ID,
		Name:              m.Name,
		PassHash:          m.PassHash,
		Permissions:       m.Permissions,
		Active:            m.Active,
		PasswordChangedAt: m.PasswordChangedAt,
		LastLoginAt:       m.LastLoginAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.Mail != nil {
		a.Mail = *m.Mail
	}
	return a
}

// AccountToModel converts an account. An empty mail is stored as NULL so
// several accounts may have none under the unique index.
func AccountToModel(a *uf.Account) *AccountModel {
	m := &AccountModel{
		ID:                a.ID,
		Name:              a.Name,
		PassHash:          a.PassHash,
		Permissions:       StringSlice(a.Permissions),
		Active:            a.Active,
		PasswordChangedAt: a.PasswordChangedAt,
		LastLoginAt:       a.LastLoginAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.Mail != "" {
		mail := a.Mail
		m.Mail = &mail
	}
	return m
}
