package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	"github.com/updraft-io/updraft/internal/app/metrics"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service resolves opaque access keys to owning accounts. Resolution is
// read-only; deleting the key row is the only revocation mechanism beyond
// expiry.
type Service struct {
	store storage.AccessKeyStore
	log   *logger.Logger
}

// New constructs a credential service.
func New(store storage.AccessKeyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("credentials")
	}
	return &Service{store: store, log: log}
}

// ResolveAccountID looks up an access key by name and returns the bound
// account id. The existence check runs before the expiry check, so an
// expired key surfaces ErrExpired rather than ErrNotFound.
func (s *Service) ResolveAccountID(ctx context.Context, key string) (string, error) {
	accessKey, err := s.store.GetAccessKeyByName(ctx, key)
	if err != nil {
		metrics.RecordCredentialResolution("not_found")
		return "", err
	}

	binding, err := s.store.GetKeyBinding(ctx, accessKey.ID)
	if err != nil {
		metrics.RecordCredentialResolution("not_found")
		return "", err
	}

	if !binding.Expires.After(time.Now().UTC()) {
		metrics.RecordCredentialResolution("expired")
		return "", fmt.Errorf("access key: %w", storage.ErrExpired)
	}

	metrics.RecordCredentialResolution("ok")
	return binding.AccountID, nil
}

// CreateAccessKey stores a new key bound to the account. Empty key material
// is generated with GenerateKey.
func (s *Service) CreateAccessKey(ctx context.Context, accountID string, key account.AccessKey) (account.AccessKey, error) {
	if key.Name == "" {
		name, err := GenerateKey()
		if err != nil {
			return account.AccessKey{}, err
		}
		key.Name = name
	}
	created, err := s.store.CreateAccessKey(ctx, accountID, key)
	if err != nil {
		return account.AccessKey{}, err
	}
	s.log.WithField("account_id", accountID).
		WithField("is_session", created.IsSession).
		Info("access key created")
	return created, nil
}

// DeleteAccessKey revokes a key by removing its row.
func (s *Service) DeleteAccessKey(ctx context.Context, name string) error {
	if err := s.store.DeleteAccessKey(ctx, name); err != nil {
		return err
	}
	s.log.Info("access key deleted")
	return nil
}

// GenerateKey produces opaque URL-safe key material.
func GenerateKey() (string, error) {
	buf := make([]byte, 21)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
