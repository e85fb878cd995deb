package apps

import (
	"context"
	"fmt"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service owns app lifecycle and the collaborator permission map. It is the
// sole writer of permission transitions; the collaborator map is the
// authoritative ownership record and always holds exactly one Owner entry.
type Service struct {
	accounts storage.AccountStore
	store    storage.AppStore
	log      *logger.Logger
}

// New constructs an app service.
func New(accounts storage.AccountStore, store storage.AppStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("apps")
	}
	return &Service{accounts: accounts, store: store, log: log}
}

// AddApp creates an app owned by the account. The collaborator map starts
// with a single Owner entry for the creating account's email.
func (s *Service) AddApp(ctx context.Context, accountID string, app appdomain.App) (appdomain.App, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return appdomain.App{}, fmt.Errorf("account validation failed: %w", err)
	}

	app.Collaborators = map[string]appdomain.Collaborator{
		account.NormalizeEmail(acct.Email): {
			AccountID:  acct.ID,
			Permission: appdomain.PermissionOwner,
		},
	}

	created, err := s.store.CreateApp(ctx, app)
	if err != nil {
		return appdomain.App{}, err
	}
	if err := s.store.AddAccountApp(ctx, accountID, created.ID, true); err != nil {
		return appdomain.App{}, err
	}

	s.log.WithField("app_id", created.ID).
		WithField("account_id", accountID).
		Info("app created")

	created.Annotate(accountID)
	return created, nil
}

// GetApps lists the apps visible to the account through the visibility-link
// table, annotating each collaborator map for the caller.
func (s *Service) GetApps(ctx context.Context, accountID string) ([]appdomain.App, error) {
	apps, err := s.store.ListAppsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		apps[i].Annotate(accountID)
	}
	return apps, nil
}

// GetApp fetches an app by id. The lookup itself does not verify the account
// appears in the collaborator map; only the IsCurrentAccount annotation
// depends on the caller.
func (s *Service) GetApp(ctx context.Context, accountID, appID string) (appdomain.App, error) {
	app, err := s.store.GetApp(ctx, appID)
	if err != nil {
		return appdomain.App{}, err
	}
	app.Annotate(accountID)
	return app, nil
}

// RemoveApp deletes an app after verifying the acting account is the
// recorded owner per the visibility-link table. Deployments and packages are
// removed by the store-level cascade.
func (s *Service) RemoveApp(ctx context.Context, accountID, appID string) error {
	owner, err := s.store.GetAppOwner(ctx, appID)
	if err != nil {
		return err
	}
	if owner != accountID {
		return fmt.Errorf("app %s is not owned by the account: %w", appID, storage.ErrNotFound)
	}

	if err := s.store.DeleteApp(ctx, appID); err != nil {
		return err
	}
	s.log.WithField("app_id", appID).
		WithField("account_id", accountID).
		Info("app removed")
	return nil
}

// UpdateApp overwrites the app's name and full collaborator map. The
// request-scoped IsCurrentAccount marks are stripped before persisting.
// ensureIsOwner is a caller-asserted precondition: when set, the acting
// account's entry in the stored map must hold Owner.
func (s *Service) UpdateApp(ctx context.Context, accountID string, app appdomain.App, ensureIsOwner bool) (appdomain.App, error) {
	existing, err := s.store.GetApp(ctx, app.ID)
	if err != nil {
		return appdomain.App{}, err
	}

	if ensureIsOwner {
		if !holdsPermission(existing, accountID, appdomain.PermissionOwner) {
			return appdomain.App{}, fmt.Errorf("app %s is not owned by the account: %w", app.ID, storage.ErrNotFound)
		}
	}

	existing.Name = app.Name
	existing.Collaborators = appdomain.CloneCollaborators(app.Collaborators)
	if err := s.persist(ctx, &existing); err != nil {
		return appdomain.App{}, err
	}

	s.log.WithField("app_id", existing.ID).Info("app updated")
	existing.Annotate(accountID)
	return existing, nil
}

// TransferApp moves ownership to the account registered under targetEmail.
// The requester's entry is demoted to Collaborator; the target is promoted
// in place when already collaborating, otherwise inserted with a new
// visibility link.
func (s *Service) TransferApp(ctx context.Context, accountID, appID, targetEmail string) error {
	email := account.NormalizeEmail(targetEmail)
	if appdomain.IsReservedMapKey(email) {
		return fmt.Errorf("email %q is not a usable collaborator key: %w", email, storage.ErrInvalid)
	}

	app, err := s.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}

	target, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("target account lookup failed: %w", err)
	}

	if entry, ok := app.Collaborators[email]; ok && entry.Permission == appdomain.PermissionOwner {
		return fmt.Errorf("account %s already owns the app: %w", email, storage.ErrAlreadyExists)
	}

	if ownerEmail, ok := app.OwnerEmail(); ok {
		demoted := app.Collaborators[ownerEmail]
		demoted.Permission = appdomain.PermissionCollaborator
		app.Collaborators[ownerEmail] = demoted
	}

	if entry, ok := app.Collaborators[email]; ok {
		entry.Permission = appdomain.PermissionOwner
		app.Collaborators[email] = entry
	} else {
		app.Collaborators[email] = appdomain.Collaborator{
			AccountID:  target.ID,
			Permission: appdomain.PermissionOwner,
		}
		if err := s.store.AddAccountApp(ctx, target.ID, appID, false); err != nil {
			return err
		}
	}

	if err := s.store.SetAppOwner(ctx, appID, target.ID); err != nil {
		return err
	}
	if err := s.persist(ctx, &app); err != nil {
		return err
	}

	s.log.WithField("app_id", appID).
		WithField("from_account", accountID).
		WithField("to_account", target.ID).
		Info("app ownership transferred")
	return nil
}

// AddCollaborator grants Collaborator permission to the account registered
// under the email and records its visibility link.
func (s *Service) AddCollaborator(ctx context.Context, accountID, appID, collabEmail string) error {
	email := account.NormalizeEmail(collabEmail)
	if appdomain.IsReservedMapKey(email) {
		return fmt.Errorf("email %q is not a usable collaborator key: %w", email, storage.ErrInvalid)
	}

	app, err := s.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}

	if _, ok := app.Collaborators[email]; ok {
		return fmt.Errorf("account %s already collaborates on the app: %w", email, storage.ErrAlreadyExists)
	}

	target, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("target account lookup failed: %w", err)
	}

	app.Collaborators[email] = appdomain.Collaborator{
		AccountID:  target.ID,
		Permission: appdomain.PermissionCollaborator,
	}
	if err := s.store.AddAccountApp(ctx, target.ID, appID, false); err != nil {
		return err
	}
	if err := s.persist(ctx, &app); err != nil {
		return err
	}

	s.log.WithField("app_id", appID).
		WithField("account_id", target.ID).
		Info("collaborator added")
	return nil
}

// RemoveCollaborator deletes a Collaborator entry and its visibility link.
// The Owner cannot be removed. No owner check is applied on the acting
// account, which permits a collaborator removing themselves.
func (s *Service) RemoveCollaborator(ctx context.Context, accountID, appID, collabEmail string) error {
	email := account.NormalizeEmail(collabEmail)

	app, err := s.store.GetApp(ctx, appID)
	if err != nil {
		return err
	}

	entry, ok := app.Collaborators[email]
	if ok && entry.Permission == appdomain.PermissionOwner {
		return fmt.Errorf("cannot remove the app owner: %w", storage.ErrNotFound)
	}
	if !ok {
		return fmt.Errorf("collaborator %s: %w", email, storage.ErrNotFound)
	}

	if err := s.store.RemoveAccountApp(ctx, entry.AccountID, appID); err != nil {
		return err
	}
	delete(app.Collaborators, email)
	if err := s.persist(ctx, &app); err != nil {
		return err
	}

	s.log.WithField("app_id", appID).
		WithField("account_id", entry.AccountID).
		Info("collaborator removed")
	return nil
}

func (s *Service) persist(ctx context.Context, app *appdomain.App) error {
	app.StripAnnotations()
	updated, err := s.store.UpdateApp(ctx, *app)
	if err != nil {
		return err
	}
	*app = updated
	return nil
}

func holdsPermission(app appdomain.App, accountID string, perm appdomain.Permission) bool {
	for _, collab := range app.Collaborators {
		if collab.AccountID == accountID && collab.Permission == perm {
			return true
		}
	}
	return false
}
