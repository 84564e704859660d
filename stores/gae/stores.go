//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	uf "github.com/panyam/userforms"
)

// Kind constants for Datastore entities
const (
	KindAccount = "Account"
)

// AccountStore implements uf.AccountStore using Google Cloud Datastore
type AccountStore struct {
	client    *datastore.Client
	namespace string
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
	}
}

func (s *AccountStore) namespacedKey(id int64) *datastore.Key {
	key := datastore.IDKey(KindAccount, id, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) GetAccountById(ctx context.Context, id int64) (*uf.Account, error) {
	var entity AccountEntity
	if err := s.client.Get(ctx, s.namespacedKey(id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, fmt.Errorf("%w: %d", uf.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) GetAccountByMail(ctx context.Context, mail string) (*uf.Account, error) {
	query := datastore.NewQuery(KindAccount).
		FilterField("mail_lower", "=", strings.ToLower(mail)).
		Limit(1)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var entity AccountEntity
	_, err := s.client.Run(ctx, query).Next(&entity)
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: %s", uf.ErrAccountNotFound, mail)
	}
	if err != nil {
		return nil, err
	}
	return entity.ToAccount(), nil
}

// CreateAccount allocates a numeric ID for the account and stores it.
func (s *AccountStore) CreateAccount(ctx context.Context, account *uf.Account) error {
	incomplete := datastore.IncompleteKey(KindAccount, nil)
	incomplete.Namespace = s.namespace
	keys, err := s.client.AllocateIDs(ctx, []*datastore.Key{incomplete})
	if err != nil {
		return err
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.ID = keys[0].ID

	entity := AccountToEntity(account, keys[0])
	entity.Version = 1
	if _, err := s.client.Put(ctx, keys[0], entity); err != nil {
		account.ID = 0
		return err
	}
	return nil
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *uf.Account) error {
	if account.IsNew() {
		return fmt.Errorf("cannot save an account without an id")
	}
	key := s.namespacedKey(account.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing AccountEntity
		if err := tx.Get(key, &existing); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return fmt.Errorf("%w: %d", uf.ErrAccountNotFound, account.ID)
			}
			return err
		}
		entity := AccountToEntity(account, key)
		entity.CreatedAt = existing.CreatedAt
		entity.Version = existing.Version + 1
		_, err := tx.Put(key, entity)
		return err
	})
	return err
}
