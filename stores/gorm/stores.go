//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	uf "github.com/panyam/userforms"
)

// AutoMigrate runs database migrations for all userforms tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AccountModel{},
	)
}

// AccountStore implements uf.AccountStore using GORM
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetAccountById(ctx context.Context, id int64) (*uf.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", uf.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) GetAccountByMail(ctx context.Context, mail string) (*uf.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "LOWER(mail) = ?", strings.ToLower(mail)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", uf.ErrAccountNotFound, mail)
		}
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *uf.Account) error {
	model := AccountToModel(account)
	model.ID = 0
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	account.ID = model.ID
	account.CreatedAt = model.CreatedAt
	account.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *uf.Account) error {
	if account.IsNew() {
		return fmt.Errorf("cannot save an account without an id")
	}
	model := AccountToModel(account)
	result := s.db.WithContext(ctx).Model(&AccountModel{ID: account.ID}).
		Select("*").Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", uf.ErrAccountNotFound, account.ID)
	}
	return nil
}
