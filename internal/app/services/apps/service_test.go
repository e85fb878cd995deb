package apps

import (
	"context"
	"errors"
	"testing"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/internal/app/storage/memory"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	owner account.Account
	other account.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	owner, err := store.CreateAccount(ctx, account.Account{Name: "A", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	other, err := store.CreateAccount(ctx, account.Account{Name: "B", Email: "b@x.com"})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	return &fixture{svc: New(store, store, nil), store: store, owner: owner, other: other}
}

func ownerCount(app appdomain.App) int {
	n := 0
	for _, collab := range app.Collaborators {
		if collab.Permission == appdomain.PermissionOwner {
			n++
		}
	}
	return n
}

func TestAddApp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "mobile"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	entry, ok := app.Collaborators["a@x.com"]
	if !ok {
		t.Fatal("expected owner entry keyed by email")
	}
	if entry.Permission != appdomain.PermissionOwner {
		t.Fatalf("expected Owner permission, got %q", entry.Permission)
	}
	if !entry.IsCurrentAccount {
		t.Fatal("expected the creator's entry to be annotated")
	}
	if got := ownerCount(app); got != 1 {
		t.Fatalf("expected exactly one Owner, got %d", got)
	}

	recorded, err := f.store.GetAppOwner(ctx, app.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if recorded != f.owner.ID {
		t.Fatalf("expected recorded owner %s, got %s", f.owner.ID, recorded)
	}
}

func TestAddAppUnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddApp(context.Background(), "missing", appdomain.App{Name: "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAppsAnnotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "one"}); err != nil {
		t.Fatalf("add app: %v", err)
	}

	apps, err := f.svc.GetApps(ctx, f.owner.ID)
	if err != nil {
		t.Fatalf("get apps: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected one app, got %d", len(apps))
	}
	if !apps[0].Collaborators["a@x.com"].IsCurrentAccount {
		t.Fatal("expected caller's entry annotated")
	}
}

func TestRemoveAppRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "guarded"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	if err := f.svc.RemoveApp(ctx, f.other.ID, app.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner, got %v", err)
	}
	if err := f.svc.RemoveApp(ctx, f.owner.ID, app.ID); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	if _, err := f.store.GetApp(ctx, app.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected deleted app, got %v", err)
	}
}

func TestUpdateAppOwnerCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "before"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	app.Name = "after"
	if _, err := f.svc.UpdateApp(ctx, f.other.ID, app, true); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner update, got %v", err)
	}

	updated, err := f.svc.UpdateApp(ctx, f.owner.ID, app, true)
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Name != "after" {
		t.Fatalf("expected renamed app, got %q", updated.Name)
	}
}

func TestUpdateAppStripsAnnotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "marked"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	// The annotated entry from AddApp is passed straight back in.
	if _, err := f.svc.UpdateApp(ctx, f.owner.ID, app, false); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := f.store.GetApp(ctx, app.ID)
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	for email, collab := range stored.Collaborators {
		if collab.IsCurrentAccount {
			t.Fatalf("entry %s persisted with a request-scoped mark", email)
		}
	}
}

func TestTransferApp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "handover"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	if err := f.svc.TransferApp(ctx, f.owner.ID, app.ID, "B@X.com"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	stored, err := f.store.GetApp(ctx, app.ID)
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	if got := ownerCount(stored); got != 1 {
		t.Fatalf("expected exactly one Owner after transfer, got %d", got)
	}
	if stored.Collaborators["b@x.com"].Permission != appdomain.PermissionOwner {
		t.Fatal("expected b@x.com promoted to Owner")
	}
	if stored.Collaborators["a@x.com"].Permission != appdomain.PermissionCollaborator {
		t.Fatal("expected a@x.com demoted to Collaborator")
	}

	recorded, err := f.store.GetAppOwner(ctx, app.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if recorded != f.other.ID {
		t.Fatalf("expected recorded owner %s, got %s", f.other.ID, recorded)
	}
}

func TestTransferAppToCurrentOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "noop"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	err = f.svc.TransferApp(ctx, f.owner.ID, app.ID, "a@x.com")
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestTransferAppUnknownTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "nowhere"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	err = f.svc.TransferApp(ctx, f.owner.ID, app.ID, "ghost@x.com")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReservedEmailKeysRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "strict"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	for _, email := range []string{"__proto__", "constructor", "prototype"} {
		if err := f.svc.AddCollaborator(ctx, f.owner.ID, app.ID, email); !errors.Is(err, storage.ErrInvalid) {
			t.Fatalf("add collaborator %q: expected ErrInvalid, got %v", email, err)
		}
		if err := f.svc.TransferApp(ctx, f.owner.ID, app.ID, email); !errors.Is(err, storage.ErrInvalid) {
			t.Fatalf("transfer %q: expected ErrInvalid, got %v", email, err)
		}
	}
}

func TestAddCollaborator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "shared"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	if err := f.svc.AddCollaborator(ctx, f.owner.ID, app.ID, "b@x.com"); err != nil {
		t.Fatalf("add collaborator: %v", err)
	}
	if err := f.svc.AddCollaborator(ctx, f.owner.ID, app.ID, "B@x.com"); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	apps, err := f.svc.GetApps(ctx, f.other.ID)
	if err != nil {
		t.Fatalf("get apps: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected the shared app visible to the collaborator, got %d", len(apps))
	}
}

func TestRemoveCollaborator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.svc.AddApp(ctx, f.owner.ID, appdomain.App{Name: "shared"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}
	if err := f.svc.AddCollaborator(ctx, f.owner.ID, app.ID, "b@x.com"); err != nil {
		t.Fatalf("add collaborator: %v", err)
	}

	if err := f.svc.RemoveCollaborator(ctx, f.owner.ID, app.ID, "a@x.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("removing the owner must fail, got %v", err)
	}
	if err := f.svc.RemoveCollaborator(ctx, f.owner.ID, app.ID, "nobody@x.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("removing a stranger must fail, got %v", err)
	}
	if err := f.svc.RemoveCollaborator(ctx, f.other.ID, app.ID, "b@x.com"); err != nil {
		t.Fatalf("self-removal: %v", err)
	}

	apps, err := f.svc.GetApps(ctx, f.other.ID)
	if err != nil {
		t.Fatalf("get apps: %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("expected no visible apps after removal, got %d", len(apps))
	}
}

// failingAppStore injects a failure into SetAppOwner to observe the
// intermediate state a multi-step transfer leaves behind.
type failingAppStore struct {
	storage.AppStore
}

func (f *failingAppStore) SetAppOwner(context.Context, string, string) error {
	return errors.New("link table unavailable")
}

func TestTransferAppPartialFailure(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	owner, err := store.CreateAccount(ctx, account.Account{Email: "a@x.com"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	target, err := store.CreateAccount(ctx, account.Account{Email: "b@x.com"})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}

	svc := New(store, &failingAppStore{AppStore: store}, nil)
	app, err := svc.AddApp(ctx, owner.ID, appdomain.App{Name: "risky"})
	if err != nil {
		t.Fatalf("add app: %v", err)
	}

	if err := svc.TransferApp(ctx, owner.ID, app.ID, "b@x.com"); err == nil {
		t.Fatal("expected the injected failure")
	}

	// The transfer aborted before the collaborator map was rewritten, but the
	// target's visibility link was already inserted. The steps are not atomic
	// and the partial write is observable.
	stored, err := store.GetApp(ctx, app.ID)
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	if stored.Collaborators["a@x.com"].Permission != appdomain.PermissionOwner {
		t.Fatal("expected the stored map untouched after the aborted transfer")
	}
	visible, err := store.ListAppsForAccount(ctx, target.ID)
	if err != nil {
		t.Fatalf("list apps: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("expected the orphaned visibility link, got %d apps", len(visible))
	}
}
