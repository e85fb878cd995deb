package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service is the account registry.
type Service struct {
	store storage.AccountStore
	log   *logger.Logger
}

// New constructs an account service.
func New(store storage.AccountStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, log: log}
}

// Patch carries the mutable account fields. Empty fields keep the current
// value; email is not patchable.
type Patch struct {
	Name        string
	IdentityRef string
}

// Create registers a new account. The email is normalized to lowercase and
// checked for duplicates with a prior read; the window between check and
// insert is a known limitation, not masked here.
func (s *Service) Create(ctx context.Context, acct account.Account) (account.Account, error) {
	acct.Email = account.NormalizeEmail(acct.Email)
	if acct.Email == "" {
		return account.Account{}, fmt.Errorf("email is required: %w", storage.ErrInvalid)
	}

	if _, err := s.store.GetAccountByEmail(ctx, acct.Email); err == nil {
		return account.Account{}, fmt.Errorf("account email %s: %w", acct.Email, storage.ErrAlreadyExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return account.Account{}, err
	}

	created, err := s.store.CreateAccount(ctx, acct)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", created.ID).Info("account created")
	return created, nil
}

// GetByID retrieves an account by id.
func (s *Service) GetByID(ctx context.Context, id string) (account.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// GetByEmail retrieves an account by normalized email.
func (s *Service) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	return s.store.GetAccountByEmail(ctx, account.NormalizeEmail(email))
}

// Update resolves the account by email and rewrites its mutable fields by
// id. Email itself is immutable through this path.
func (s *Service) Update(ctx context.Context, email string, patch Patch) (account.Account, error) {
	existing, err := s.store.GetAccountByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		return account.Account{}, err
	}

	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.IdentityRef != "" {
		existing.IdentityRef = patch.IdentityRef
	}

	updated, err := s.store.UpdateAccount(ctx, existing)
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", updated.ID).Info("account updated")
	return updated, nil
}
