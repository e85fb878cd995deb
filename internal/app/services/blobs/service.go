package blobs

import (
	"context"
	"io"

	blobdomain "github.com/updraft-io/updraft/internal/app/domain/blob"
	"github.com/updraft-io/updraft/internal/app/objectstore"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Service coordinates blob reference rows with the external object store.
// The reference row is written only after a successful upload, so its
// existence is the authoritative success signal. Both add and remove touch
// the object store first; a failure between the two steps leaves an orphan
// on the object-store side, which is an accepted inconsistency window.
type Service struct {
	store   storage.BlobStore
	objects objectstore.Store
	log     *logger.Logger
}

// New constructs a blob service.
func New(store storage.BlobStore, objects objectstore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("blobs")
	}
	return &Service{store: store, objects: objects, log: log}
}

// AddBlob uploads the payload and records its reference row.
func (s *Service) AddBlob(ctx context.Context, id string, content io.Reader, size int64) (blobdomain.Blob, error) {
	if err := s.objects.Put(ctx, id, content, size); err != nil {
		return blobdomain.Blob{}, err
	}

	created, err := s.store.CreateBlob(ctx, blobdomain.Blob{ID: id, URL: s.objects.URL(id)})
	if err != nil {
		return blobdomain.Blob{}, err
	}
	s.log.WithField("blob_id", id).WithField("size", size).Info("blob stored")
	return created, nil
}

// GetBlobURL returns the retrieval URL for a stored blob.
func (s *Service) GetBlobURL(ctx context.Context, id string) (string, error) {
	b, err := s.store.GetBlob(ctx, id)
	if err != nil {
		return "", err
	}
	return b.URL, nil
}

// RemoveBlob deletes the payload and then the reference row.
func (s *Service) RemoveBlob(ctx context.Context, id string) error {
	if err := s.objects.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteBlob(ctx, id); err != nil {
		return err
	}
	s.log.WithField("blob_id", id).Info("blob removed")
	return nil
}
