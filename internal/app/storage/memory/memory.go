package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/domain/blob"
	"github.com/updraft-io/updraft/internal/app/domain/deployment"
	"github.com/updraft-io/updraft/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu              sync.RWMutex
	accounts        map[string]account.Account
	accountsByEmail map[string]string
	accessKeys      map[string]account.AccessKey
	keysByName      map[string]string
	keyBindings     map[string]account.KeyBinding
	apps            map[string]appdomain.App
	accountApps     map[string]map[string]bool
	deployments     map[string]deployment.Deployment
	deploysByKey    map[string]string
	packages        map[string]deployment.Package
	blobs           map[string]blob.Blob
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.AccessKeyStore = (*Store)(nil)
var _ storage.AppStore = (*Store)(nil)
var _ storage.DeploymentStore = (*Store)(nil)
var _ storage.PackageStore = (*Store)(nil)
var _ storage.BlobStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:        make(map[string]account.Account),
		accountsByEmail: make(map[string]string),
		accessKeys:      make(map[string]account.AccessKey),
		keysByName:      make(map[string]string),
		keyBindings:     make(map[string]account.KeyBinding),
		apps:            make(map[string]appdomain.App),
		accountApps:     make(map[string]map[string]bool),
		deployments:     make(map[string]deployment.Deployment),
		deploysByKey:    make(map[string]string),
		packages:        make(map[string]deployment.Package),
		blobs:           make(map[string]blob.Blob),
	}
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s: %w", acct.ID, storage.ErrAlreadyExists)
	}
	if _, exists := s.accountsByEmail[acct.Email]; exists {
		return account.Account{}, fmt.Errorf("account email %s: %w", acct.Email, storage.ErrAlreadyExists)
	}

	acct.CreatedAt = time.Now().UTC()
	s.accounts[acct.ID] = acct
	s.accountsByEmail[acct.Email] = acct.ID
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByEmail[email]
	if !ok {
		return account.Account{}, fmt.Errorf("account email %s: %w", email, storage.ErrNotFound)
	}
	return s.accounts[id], nil
}

func (s *Store) UpdateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.accounts[acct.ID]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", acct.ID, storage.ErrNotFound)
	}

	// Email is immutable through this path.
	acct.Email = original.Email
	acct.CreatedAt = original.CreatedAt

	s.accounts[acct.ID] = acct
	return acct, nil
}

// AccessKeyStore implementation -----------------------------------------------

func (s *Store) CreateAccessKey(_ context.Context, accountID string, key account.AccessKey) (account.AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return account.AccessKey{}, fmt.Errorf("account %s: %w", accountID, storage.ErrNotFound)
	}
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if _, exists := s.keysByName[key.Name]; exists {
		return account.AccessKey{}, fmt.Errorf("access key %s: %w", key.Name, storage.ErrAlreadyExists)
	}

	key.CreatedAt = time.Now().UTC()
	s.accessKeys[key.ID] = key
	s.keysByName[key.Name] = key.ID
	s.keyBindings[key.ID] = account.KeyBinding{
		AccessKeyID: key.ID,
		AccountID:   accountID,
		Expires:     key.Expires,
	}
	return key, nil
}

func (s *Store) GetAccessKeyByName(_ context.Context, name string) (account.AccessKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keysByName[name]
	if !ok {
		return account.AccessKey{}, fmt.Errorf("access key: %w", storage.ErrNotFound)
	}
	return s.accessKeys[id], nil
}

func (s *Store) GetKeyBinding(_ context.Context, accessKeyID string) (account.KeyBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	binding, ok := s.keyBindings[accessKeyID]
	if !ok {
		return account.KeyBinding{}, fmt.Errorf("access key binding: %w", storage.ErrNotFound)
	}
	return binding, nil
}

func (s *Store) DeleteAccessKey(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keysByName[name]
	if !ok {
		return fmt.Errorf("access key: %w", storage.ErrNotFound)
	}
	delete(s.accessKeys, id)
	delete(s.keyBindings, id)
	delete(s.keysByName, name)
	return nil
}

// AppStore implementation -----------------------------------------------------

func (s *Store) CreateApp(_ context.Context, app appdomain.App) (appdomain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.ID == "" {
		app.ID = uuid.NewString()
	} else if _, exists := s.apps[app.ID]; exists {
		return appdomain.App{}, fmt.Errorf("app %s: %w", app.ID, storage.ErrAlreadyExists)
	}

	app.CreatedAt = time.Now().UTC()
	app.Collaborators = appdomain.CloneCollaborators(app.Collaborators)
	s.apps[app.ID] = app
	return cloneApp(app), nil
}

func (s *Store) GetApp(_ context.Context, id string) (appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return appdomain.App{}, fmt.Errorf("app %s: %w", id, storage.ErrNotFound)
	}
	return cloneApp(app), nil
}

func (s *Store) ListAppsForAccount(_ context.Context, accountID string) ([]appdomain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]appdomain.App, 0)
	for appID := range s.accountApps[accountID] {
		if app, ok := s.apps[appID]; ok {
			result = append(result, cloneApp(app))
		}
	}
	return result, nil
}

func (s *Store) UpdateApp(_ context.Context, app appdomain.App) (appdomain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.apps[app.ID]
	if !ok {
		return appdomain.App{}, fmt.Errorf("app %s: %w", app.ID, storage.ErrNotFound)
	}

	app.CreatedAt = original.CreatedAt
	app.Collaborators = appdomain.CloneCollaborators(app.Collaborators)
	s.apps[app.ID] = app
	return cloneApp(app), nil
}

func (s *Store) DeleteApp(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[id]; !ok {
		return fmt.Errorf("app %s: %w", id, storage.ErrNotFound)
	}
	delete(s.apps, id)

	// Cascade the way the relational schema does.
	for accountID := range s.accountApps {
		delete(s.accountApps[accountID], id)
	}
	for depID, dep := range s.deployments {
		if dep.AppID != id {
			continue
		}
		delete(s.deploysByKey, dep.Key)
		delete(s.deployments, depID)
		for pkgID, pkg := range s.packages {
			if pkg.DeploymentID == depID {
				delete(s.packages, pkgID)
			}
		}
	}
	return nil
}

func (s *Store) AddAccountApp(_ context.Context, accountID, appID string, isOwner bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountApps[accountID] == nil {
		s.accountApps[accountID] = make(map[string]bool)
	}
	s.accountApps[accountID][appID] = isOwner
	return nil
}

func (s *Store) RemoveAccountApp(_ context.Context, accountID, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accountApps[accountID][appID]; !ok {
		return fmt.Errorf("account app link: %w", storage.ErrNotFound)
	}
	delete(s.accountApps[accountID], appID)
	return nil
}

func (s *Store) SetAppOwner(_ context.Context, appID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for acctID, links := range s.accountApps {
		if _, ok := links[appID]; ok {
			links[appID] = acctID == accountID
		}
	}
	if s.accountApps[accountID] == nil {
		s.accountApps[accountID] = make(map[string]bool)
	}
	s.accountApps[accountID][appID] = true
	return nil
}

func (s *Store) GetAppOwner(_ context.Context, appID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for accountID, links := range s.accountApps {
		if isOwner, ok := links[appID]; ok && isOwner {
			return accountID, nil
		}
	}
	return "", fmt.Errorf("app %s owner: %w", appID, storage.ErrNotFound)
}

// DeploymentStore implementation ----------------------------------------------

func (s *Store) CreateDeployment(_ context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	} else if _, exists := s.deployments[d.ID]; exists {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", d.ID, storage.ErrAlreadyExists)
	}
	if _, exists := s.deploysByKey[d.Key]; exists {
		return deployment.Deployment{}, fmt.Errorf("deployment key: %w", storage.ErrAlreadyExists)
	}

	d.CreatedAt = time.Now().UTC()
	s.deployments[d.ID] = d
	s.deploysByKey[d.Key] = d.ID
	return d, nil
}

func (s *Store) GetDeployment(_ context.Context, id string) (deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deployments[id]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", id, storage.ErrNotFound)
	}
	return d, nil
}

func (s *Store) GetDeploymentByKey(_ context.Context, key string) (deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.deploysByKey[key]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment key: %w", storage.ErrNotFound)
	}
	return s.deployments[id], nil
}

func (s *Store) ListDeployments(_ context.Context, appID string) ([]deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]deployment.Deployment, 0)
	for _, d := range s.deployments {
		if d.AppID == appID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (s *Store) UpdateDeployment(_ context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.deployments[d.ID]
	if !ok {
		return deployment.Deployment{}, fmt.Errorf("deployment %s: %w", d.ID, storage.ErrNotFound)
	}

	d.AppID = original.AppID
	d.Key = original.Key
	d.CreatedAt = original.CreatedAt
	s.deployments[d.ID] = d
	return d, nil
}

func (s *Store) DeleteDeployment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s: %w", id, storage.ErrNotFound)
	}
	delete(s.deploysByKey, d.Key)
	delete(s.deployments, id)
	for pkgID, pkg := range s.packages {
		if pkg.DeploymentID == id {
			delete(s.packages, pkgID)
		}
	}
	return nil
}

// PackageStore implementation -------------------------------------------------

func (s *Store) CreatePackage(_ context.Context, pkg deployment.Package) (deployment.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	} else if _, exists := s.packages[pkg.ID]; exists {
		return deployment.Package{}, fmt.Errorf("package %s: %w", pkg.ID, storage.ErrAlreadyExists)
	}
	if pkg.UploadTime.IsZero() {
		pkg.UploadTime = time.Now().UTC()
	}

	s.packages[pkg.ID] = deployment.ClonePackage(pkg)
	return deployment.ClonePackage(pkg), nil
}

func (s *Store) GetPackage(_ context.Context, id string) (deployment.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, ok := s.packages[id]
	if !ok {
		return deployment.Package{}, fmt.Errorf("package %s: %w", id, storage.ErrNotFound)
	}
	return deployment.ClonePackage(pkg), nil
}

func (s *Store) ListPackages(_ context.Context, deploymentID string) ([]deployment.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]deployment.Package, 0)
	for _, pkg := range s.packages {
		if pkg.DeploymentID == deploymentID {
			result = append(result, deployment.ClonePackage(pkg))
		}
	}
	return result, nil
}

func (s *Store) CountPackages(_ context.Context, deploymentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pkg := range s.packages {
		if pkg.DeploymentID == deploymentID {
			count++
		}
	}
	return count, nil
}

func (s *Store) LatestPackage(_ context.Context, deploymentID string) (deployment.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest deployment.Package
		found  bool
	)
	for _, pkg := range s.packages {
		if pkg.DeploymentID != deploymentID {
			continue
		}
		if !found || pkg.UploadTime.After(latest.UploadTime) {
			latest = pkg
			found = true
		}
	}
	if !found {
		return deployment.Package{}, fmt.Errorf("deployment %s packages: %w", deploymentID, storage.ErrNotFound)
	}
	return deployment.ClonePackage(latest), nil
}

func (s *Store) UpdatePackage(_ context.Context, pkg deployment.Package) (deployment.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.packages[pkg.ID]
	if !ok {
		return deployment.Package{}, fmt.Errorf("package %s: %w", pkg.ID, storage.ErrNotFound)
	}

	pkg.DeploymentID = original.DeploymentID
	s.packages[pkg.ID] = deployment.ClonePackage(pkg)
	return deployment.ClonePackage(pkg), nil
}

func (s *Store) DeletePackages(_ context.Context, deploymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, pkg := range s.packages {
		if pkg.DeploymentID == deploymentID {
			delete(s.packages, id)
		}
	}
	return nil
}

// BlobStore implementation ----------------------------------------------------

func (s *Store) CreateBlob(_ context.Context, b blob.Blob) (blob.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[b.ID]; exists {
		return blob.Blob{}, fmt.Errorf("blob %s: %w", b.ID, storage.ErrAlreadyExists)
	}
	b.CreatedAt = time.Now().UTC()
	s.blobs[b.ID] = b
	return b, nil
}

func (s *Store) GetBlob(_ context.Context, id string) (blob.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[id]
	if !ok {
		return blob.Blob{}, fmt.Errorf("blob %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) DeleteBlob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return fmt.Errorf("blob %s: %w", id, storage.ErrNotFound)
	}
	delete(s.blobs, id)
	return nil
}

func cloneApp(app appdomain.App) appdomain.App {
	out := app
	out.Collaborators = appdomain.CloneCollaborators(app.Collaborators)
	return out
}
