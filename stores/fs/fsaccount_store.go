package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	uf "github.com/panyam/userforms"
)

// FSAccountStore stores accounts as JSON files, one per account:
//
//	<StoragePath>/accounts/<id>.json
//
// Mail lookups scan the directory, so this store suits development and tests.
type FSAccountStore struct {
	StoragePath string
	mu          sync.Mutex
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

func (s *FSAccountStore) accountsDir() string {
	return filepath.Join(s.StoragePath, "accounts")
}

func (s *FSAccountStore) getAccountPath(id int64) string {
	return filepath.Join(s.accountsDir(), strconv.FormatInt(id, 10)+".json")
}

func (s *FSAccountStore) readAccount(path string) (*uf.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var account uf.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &account, nil
}

func (s *FSAccountStore) writeAccount(account *uf.Account) error {
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(s.getAccountPath(account.ID), data)
}

// eachAccount calls fn for every stored account until it returns false.
func (s *FSAccountStore) eachAccount(fn func(*uf.Account) bool) error {
	entries, err := os.ReadDir(s.accountsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		account, err := s.readAccount(filepath.Join(s.accountsDir(), entry.Name()))
		if err != nil {
			return err
		}
		if !fn(account) {
			return nil
		}
	}
	return nil
}

func (s *FSAccountStore) GetAccountById(ctx context.Context, id int64) (*uf.Account, error) {
	account, err := s.readAccount(s.getAccountPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %d", uf.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return account, nil
}

func (s *FSAccountStore) GetAccountByMail(ctx context.Context, mail string) (*uf.Account, error) {
	var found *uf.Account
	err := s.eachAccount(func(a *uf.Account) bool {
		if a.Mail != "" && strings.EqualFold(a.Mail, mail) {
			found = a
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", uf.ErrAccountNotFound, mail)
	}
	return found, nil
}

// CreateAccount assigns the next free ID and writes the account.
func (s *FSAccountStore) CreateAccount(ctx context.Context, account *uf.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	if err := s.eachAccount(func(a *uf.Account) bool {
		maxID = max(maxID, a.ID)
		return true
	}); err != nil {
		return err
	}
	account.ID = maxID + 1
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	return s.writeAccount(account)
}

func (s *FSAccountStore) SaveAccount(ctx context.Context, account *uf.Account) error {
	if account.IsNew() {
		return fmt.Errorf("cannot save an account without an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.getAccountPath(account.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %d", uf.ErrAccountNotFound, account.ID)
		}
		return err
	}
	return s.writeAccount(account)
}
