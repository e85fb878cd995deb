package releases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/updraft-io/updraft/internal/app/domain/deployment"
	"github.com/updraft-io/updraft/internal/app/metrics"
	deploymentssvc "github.com/updraft-io/updraft/internal/app/services/deployments"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service owns the ordered package history per deployment: label sequencing
// and the rollout state machine. At most one package per deployment carries
// a non-nil rollout; committing a new package clears the predecessor's.
type Service struct {
	deployments *deploymentssvc.Service
	store       storage.PackageStore
	log         *logger.Logger
}

// New constructs a release service.
func New(deployments *deploymentssvc.Service, store storage.PackageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("releases")
	}
	return &Service{deployments: deployments, store: store, log: log}
}

// CommitPackage appends a release to the deployment's history. The label is
// computed from the package count at commit time ("v" + count+1); gaps after
// out-of-order deletions are tolerated, labels are never reused within a
// sequential history.
func (s *Service) CommitPackage(ctx context.Context, accountID, appID, deploymentID string, pkg deployment.Package) (deployment.Package, error) {
	if _, err := s.deployments.GetDeployment(ctx, accountID, appID, deploymentID); err != nil {
		return deployment.Package{}, err
	}

	// A new commit fully supersedes any staged rollout of its predecessor.
	latest, err := s.store.LatestPackage(ctx, deploymentID)
	switch {
	case err == nil:
		if latest.Rollout != nil {
			latest.Rollout = nil
			if _, err := s.store.UpdatePackage(ctx, latest); err != nil {
				return deployment.Package{}, err
			}
		}
	case errors.Is(err, storage.ErrNotFound):
		// First package for the deployment.
	default:
		return deployment.Package{}, err
	}

	count, err := s.store.CountPackages(ctx, deploymentID)
	if err != nil {
		return deployment.Package{}, err
	}

	pkg.DeploymentID = deploymentID
	pkg.Label = "v" + strconv.Itoa(count+1)
	if pkg.ReleaseMethod == "" {
		pkg.ReleaseMethod = deployment.ReleaseMethodUpload
	}

	created, err := s.store.CreatePackage(ctx, pkg)
	if err != nil {
		return deployment.Package{}, err
	}

	metrics.RecordReleaseCommit()
	s.log.WithField("deployment_id", deploymentID).
		WithField("label", created.Label).
		Info("package committed")
	return created, nil
}

// GetPackageHistory lists all packages under the deployment. Ordering is not
// part of this layer's contract; callers sort by upload time when needed.
func (s *Service) GetPackageHistory(ctx context.Context, accountID, appID, deploymentID string) ([]deployment.Package, error) {
	if _, err := s.deployments.GetDeployment(ctx, accountID, appID, deploymentID); err != nil {
		return nil, err
	}
	return s.store.ListPackages(ctx, deploymentID)
}

// GetPackageHistoryFromDeploymentKey is the unauthenticated history lookup
// used by client acquisition flows.
func (s *Service) GetPackageHistoryFromDeploymentKey(ctx context.Context, deploymentKey string) ([]deployment.Package, error) {
	info, err := s.deployments.GetDeploymentInfo(ctx, deploymentKey)
	if err != nil {
		return nil, err
	}
	return s.store.ListPackages(ctx, info.DeploymentID)
}

// UpdatePackageHistory bulk-overwrites the mutable fields of each package by
// id. An empty history is rejected before any store access; clearing history
// is a separate, explicit operation.
func (s *Service) UpdatePackageHistory(ctx context.Context, accountID, appID, deploymentID string, history []deployment.Package) error {
	if len(history) == 0 {
		return fmt.Errorf("package history must not be empty: %w", storage.ErrInvalid)
	}

	if _, err := s.deployments.GetDeployment(ctx, accountID, appID, deploymentID); err != nil {
		return err
	}

	for _, pkg := range history {
		existing, err := s.store.GetPackage(ctx, pkg.ID)
		if err != nil {
			return err
		}

		existing.Label = pkg.Label
		existing.Description = pkg.Description
		existing.IsDisabled = pkg.IsDisabled
		existing.IsMandatory = pkg.IsMandatory
		existing.Rollout = pkg.Rollout
		existing.AppVersion = pkg.AppVersion
		existing.PackageHash = pkg.PackageHash
		existing.BlobID = pkg.BlobID
		existing.ManifestBlobID = pkg.ManifestBlobID
		existing.ReleaseMethod = pkg.ReleaseMethod
		existing.UploadTime = pkg.UploadTime

		if _, err := s.store.UpdatePackage(ctx, existing); err != nil {
			return err
		}
	}

	s.log.WithField("deployment_id", deploymentID).
		WithField("packages", len(history)).
		Info("package history updated")
	return nil
}

// ClearPackageHistory hard-deletes every package under the deployment.
// Irreversible; blob storage is the caller's to reconcile.
func (s *Service) ClearPackageHistory(ctx context.Context, accountID, appID, deploymentID string) error {
	if _, err := s.deployments.GetDeployment(ctx, accountID, appID, deploymentID); err != nil {
		return err
	}
	if err := s.store.DeletePackages(ctx, deploymentID); err != nil {
		return err
	}
	s.log.WithField("deployment_id", deploymentID).Info("package history cleared")
	return nil
}
