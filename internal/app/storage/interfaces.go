package storage

import (
	"context"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/domain/blob"
	"github.com/updraft-io/updraft/internal/app/domain/deployment"
)

// AccountStore persists account records.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error)
}

// AccessKeyStore persists access keys and their account bindings. Deleting a
// key is the only revocation mechanism beyond expiry.
type AccessKeyStore interface {
	CreateAccessKey(ctx context.Context, accountID string, key account.AccessKey) (account.AccessKey, error)
	GetAccessKeyByName(ctx context.Context, name string) (account.AccessKey, error)
	GetKeyBinding(ctx context.Context, accessKeyID string) (account.KeyBinding, error)
	DeleteAccessKey(ctx context.Context, name string) error
}

// AppStore persists apps, the collaborator map column, and the account→app
// visibility links.
type AppStore interface {
	CreateApp(ctx context.Context, app appdomain.App) (appdomain.App, error)
	GetApp(ctx context.Context, id string) (appdomain.App, error)
	ListAppsForAccount(ctx context.Context, accountID string) ([]appdomain.App, error)
	UpdateApp(ctx context.Context, app appdomain.App) (appdomain.App, error)
	DeleteApp(ctx context.Context, id string) error

	AddAccountApp(ctx context.Context, accountID, appID string, isOwner bool) error
	RemoveAccountApp(ctx context.Context, accountID, appID string) error
	SetAppOwner(ctx context.Context, appID, accountID string) error
	GetAppOwner(ctx context.Context, appID string) (string, error)
}

// DeploymentStore persists deployment records.
type DeploymentStore interface {
	CreateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error)
	GetDeployment(ctx context.Context, id string) (deployment.Deployment, error)
	GetDeploymentByKey(ctx context.Context, key string) (deployment.Deployment, error)
	ListDeployments(ctx context.Context, appID string) ([]deployment.Deployment, error)
	UpdateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error
}

// PackageStore persists the release history under deployments.
type PackageStore interface {
	CreatePackage(ctx context.Context, pkg deployment.Package) (deployment.Package, error)
	GetPackage(ctx context.Context, id string) (deployment.Package, error)
	ListPackages(ctx context.Context, deploymentID string) ([]deployment.Package, error)
	CountPackages(ctx context.Context, deploymentID string) (int, error)
	LatestPackage(ctx context.Context, deploymentID string) (deployment.Package, error)
	UpdatePackage(ctx context.Context, pkg deployment.Package) (deployment.Package, error)
	DeletePackages(ctx context.Context, deploymentID string) error
}

// BlobStore persists blob reference rows.
type BlobStore interface {
	CreateBlob(ctx context.Context, b blob.Blob) (blob.Blob, error)
	GetBlob(ctx context.Context, id string) (blob.Blob, error)
	DeleteBlob(ctx context.Context, id string) error
}
