package app

import (
	"github.com/updraft-io/updraft/internal/app/objectstore"
	"github.com/updraft-io/updraft/internal/app/services/accounts"
	"github.com/updraft-io/updraft/internal/app/services/apps"
	"github.com/updraft-io/updraft/internal/app/services/blobs"
	"github.com/updraft-io/updraft/internal/app/services/credentials"
	"github.com/updraft-io/updraft/internal/app/services/deployments"
	"github.com/updraft-io/updraft/internal/app/services/releases"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/internal/app/storage/memory"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Stores bundles the persistence interfaces the services depend on. Any nil
// field falls back to the shared in-memory store, which keeps tests and local
// runs free of external dependencies.
type Stores struct {
	Accounts    storage.AccountStore
	AccessKeys  storage.AccessKeyStore
	Apps        storage.AppStore
	Deployments storage.DeploymentStore
	Packages    storage.PackageStore
	Blobs       storage.BlobStore
}

// Application wires the domain services over a set of stores.
type Application struct {
	Accounts    *accounts.Service
	Credentials *credentials.Service
	Apps        *apps.Service
	Deployments *deployments.Service
	Releases    *releases.Service
	Blobs       *blobs.Service
}

// New builds the application. A nil objects store defaults to in-memory.
func New(stores Stores, objects objectstore.Store, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var fallback *memory.Store
	mem := func() *memory.Store {
		if fallback == nil {
			fallback = memory.New()
		}
		return fallback
	}
	if stores.Accounts == nil {
		stores.Accounts = mem()
	}
	if stores.AccessKeys == nil {
		stores.AccessKeys = mem()
	}
	if stores.Apps == nil {
		stores.Apps = mem()
	}
	if stores.Deployments == nil {
		stores.Deployments = mem()
	}
	if stores.Packages == nil {
		stores.Packages = mem()
	}
	if stores.Blobs == nil {
		stores.Blobs = mem()
	}
	if objects == nil {
		objects = objectstore.NewMemory()
	}

	accountsSvc := accounts.New(stores.Accounts, log)
	credentialsSvc := credentials.New(stores.AccessKeys, log)
	appsSvc := apps.New(stores.Accounts, stores.Apps, log)
	deploymentsSvc := deployments.New(appsSvc, stores.Deployments, log)
	releasesSvc := releases.New(deploymentsSvc, stores.Packages, log)
	blobsSvc := blobs.New(stores.Blobs, objects, log)

	return &Application{
		Accounts:    accountsSvc,
		Credentials: credentialsSvc,
		Apps:        appsSvc,
		Deployments: deploymentsSvc,
		Releases:    releasesSvc,
		Blobs:       blobsSvc,
	}
}
