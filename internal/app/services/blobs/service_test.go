package blobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/updraft-io/updraft/internal/app/objectstore"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/internal/app/storage/memory"
)

func TestAddBlob(t *testing.T) {
	objects := objectstore.NewMemory()
	svc := New(memory.New(), objects, nil)
	ctx := context.Background()

	payload := "bundle-bytes"
	created, err := svc.AddBlob(ctx, "blob-1", strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("add blob: %v", err)
	}
	if created.URL == "" {
		t.Fatal("expected a retrieval URL")
	}
	if objects.Len() != 1 {
		t.Fatalf("expected one stored object, got %d", objects.Len())
	}

	url, err := svc.GetBlobURL(ctx, "blob-1")
	if err != nil {
		t.Fatalf("get url: %v", err)
	}
	if url != created.URL {
		t.Fatalf("url mismatch: %q vs %q", url, created.URL)
	}
}

func TestAddBlobUploadFailureLeavesNoRow(t *testing.T) {
	store := memory.New()
	svc := New(store, failingObjects{}, nil)
	ctx := context.Background()

	_, err := svc.AddBlob(ctx, "blob-1", strings.NewReader("x"), 1)
	if err == nil {
		t.Fatal("expected the injected upload failure")
	}
	if _, err := store.GetBlob(ctx, "blob-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("no reference row may exist after a failed upload, got %v", err)
	}
}

func TestRemoveBlob(t *testing.T) {
	objects := objectstore.NewMemory()
	svc := New(memory.New(), objects, nil)
	ctx := context.Background()

	if _, err := svc.AddBlob(ctx, "blob-1", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("add blob: %v", err)
	}
	if err := svc.RemoveBlob(ctx, "blob-1"); err != nil {
		t.Fatalf("remove blob: %v", err)
	}
	if objects.Len() != 0 {
		t.Fatalf("expected the payload deleted, got %d objects", objects.Len())
	}
	if _, err := svc.GetBlobURL(ctx, "blob-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestGetBlobURLMissing(t *testing.T) {
	svc := New(memory.New(), objectstore.NewMemory(), nil)

	_, err := svc.GetBlobURL(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type failingObjects struct{}

func (failingObjects) Put(context.Context, string, io.Reader, int64) error { return errUpload }

func (failingObjects) Get(context.Context, string) (io.ReadCloser, error) { return nil, errUpload }

func (failingObjects) Delete(context.Context, string) error { return errUpload }

func (failingObjects) URL(string) string { return "" }

var errUpload = errors.New("object store unavailable")
