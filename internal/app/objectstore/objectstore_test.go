package objectstore

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFilesystemRoundTrip(t *testing.T) {
	store, err := NewFilesystem(t.TempDir(), "http://localhost:8080/blobs/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	payload := "hello world"
	if err := store.Put(ctx, "key-1", strings.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("payload mismatch: %q", data)
	}

	if got := store.URL("key-1"); got != "http://localhost:8080/blobs/key-1" {
		t.Fatalf("unexpected url %q", got)
	}

	if err := store.Delete(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "key-1"); err == nil {
		t.Fatal("expected missing object after delete")
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir(), "http://x")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../escape", "/abs", "a/../../b", "."} {
		if err := store.Put(ctx, key, strings.NewReader("x"), 1); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestFilesystemSizeMismatch(t *testing.T) {
	store, err := NewFilesystem(t.TempDir(), "http://x")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	err = store.Put(context.Background(), "short", strings.NewReader("abc"), 99)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Put(ctx, "k", strings.NewReader("v"), 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one object, got %d", store.Len())
	}

	rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "v" {
		t.Fatalf("payload mismatch: %q", data)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatal("expected error deleting a missing object")
	}
}
