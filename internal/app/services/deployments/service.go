package deployments

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/updraft-io/updraft/internal/app/domain/deployment"
	appssvc "github.com/updraft-io/updraft/internal/app/services/apps"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service manages deployment records scoped to an app. Every account-scoped
// operation re-resolves the app through the app service before acting.
type Service struct {
	apps  *appssvc.Service
	store storage.DeploymentStore
	log   *logger.Logger
}

// New constructs a deployment service.
func New(apps *appssvc.Service, store storage.DeploymentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("deployments")
	}
	return &Service{apps: apps, store: store, log: log}
}

// Info identifies a deployment for the unauthenticated acquisition path.
type Info struct {
	AppID        string
	DeploymentID string
}

// AddDeployment creates a deployment under the app. A fresh public key is
// generated when none is supplied.
func (s *Service) AddDeployment(ctx context.Context, accountID, appID string, d deployment.Deployment) (deployment.Deployment, error) {
	if err := s.authorize(ctx, accountID, appID); err != nil {
		return deployment.Deployment{}, err
	}

	d.AppID = appID
	if d.Key == "" {
		key, err := newDeploymentKey()
		if err != nil {
			return deployment.Deployment{}, err
		}
		d.Key = key
	}

	created, err := s.store.CreateDeployment(ctx, d)
	if err != nil {
		return deployment.Deployment{}, err
	}
	s.log.WithField("deployment_id", created.ID).
		WithField("app_id", appID).
		Info("deployment created")
	return created, nil
}

// GetDeployment fetches a deployment after authorizing the app.
func (s *Service) GetDeployment(ctx context.Context, accountID, appID, deploymentID string) (deployment.Deployment, error) {
	if err := s.authorize(ctx, accountID, appID); err != nil {
		return deployment.Deployment{}, err
	}
	return s.store.GetDeployment(ctx, deploymentID)
}

// GetDeployments lists the app's deployments.
func (s *Service) GetDeployments(ctx context.Context, accountID, appID string) ([]deployment.Deployment, error) {
	if err := s.authorize(ctx, accountID, appID); err != nil {
		return nil, err
	}
	return s.store.ListDeployments(ctx, appID)
}

// UpdateDeployment renames a deployment. The key and app binding are
// immutable.
func (s *Service) UpdateDeployment(ctx context.Context, accountID, appID string, d deployment.Deployment) (deployment.Deployment, error) {
	if err := s.authorize(ctx, accountID, appID); err != nil {
		return deployment.Deployment{}, err
	}

	updated, err := s.store.UpdateDeployment(ctx, d)
	if err != nil {
		return deployment.Deployment{}, err
	}
	s.log.WithField("deployment_id", d.ID).Info("deployment updated")
	return updated, nil
}

// RemoveDeployment deletes a deployment. The fetched deployment's app id
// must match the supplied one, guarding against cross-app id confusion.
func (s *Service) RemoveDeployment(ctx context.Context, accountID, appID, deploymentID string) error {
	if err := s.authorize(ctx, accountID, appID); err != nil {
		return err
	}

	d, err := s.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return err
	}
	if d.AppID != appID {
		return fmt.Errorf("deployment %s does not belong to app %s: %w", deploymentID, appID, storage.ErrNotFound)
	}

	if err := s.store.DeleteDeployment(ctx, deploymentID); err != nil {
		return err
	}
	s.log.WithField("deployment_id", deploymentID).
		WithField("app_id", appID).
		Info("deployment removed")
	return nil
}

// GetDeploymentInfo resolves a deployment by its public key without any
// account context. This is the client-facing acquisition path.
func (s *Service) GetDeploymentInfo(ctx context.Context, deploymentKey string) (Info, error) {
	d, err := s.store.GetDeploymentByKey(ctx, deploymentKey)
	if err != nil {
		return Info{}, err
	}
	return Info{AppID: d.AppID, DeploymentID: d.ID}, nil
}

func (s *Service) authorize(ctx context.Context, accountID, appID string) error {
	if _, err := s.apps.GetApp(ctx, accountID, appID); err != nil {
		return fmt.Errorf("app validation failed: %w", err)
	}
	return nil
}

func newDeploymentKey() (string, error) {
	buf := make([]byte, 21)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
