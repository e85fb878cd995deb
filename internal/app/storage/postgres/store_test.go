package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/domain/deployment"
	"github.com/updraft-io/updraft/internal/app/storage"
	"github.com/updraft-io/updraft/internal/platform/migrations"
)

// Integration tests run only against a real database.
// Set TEST_POSTGRES_DSN, e.g. postgres://localhost:5432/updraft_test?sslmode=disable
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func TestPostgresAccountRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	email := uuid.NewString() + "@example.com"
	created, err := store.CreateAccount(ctx, account.Account{Name: "it", Email: email})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fetched, err := store.GetAccountByEmail(ctx, email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("lookup mismatch: %s vs %s", fetched.ID, created.ID)
	}

	if _, err := store.GetAccount(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresAppOwnerFlag(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	owner, err := store.CreateAccount(ctx, account.Account{Email: uuid.NewString() + "@example.com"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	next, err := store.CreateAccount(ctx, account.Account{Email: uuid.NewString() + "@example.com"})
	if err != nil {
		t.Fatalf("create next: %v", err)
	}

	app, err := store.CreateApp(ctx, appdomain.App{
		Name: "it-app",
		Collaborators: map[string]appdomain.Collaborator{
			owner.Email: {AccountID: owner.ID, Permission: appdomain.PermissionOwner},
		},
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	if err := store.AddAccountApp(ctx, owner.ID, app.ID, true); err != nil {
		t.Fatalf("link owner: %v", err)
	}
	if err := store.AddAccountApp(ctx, next.ID, app.ID, false); err != nil {
		t.Fatalf("link next: %v", err)
	}

	got, err := store.GetAppOwner(ctx, app.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if got != owner.ID {
		t.Fatalf("expected %s, got %s", owner.ID, got)
	}

	if err := store.SetAppOwner(ctx, app.ID, next.ID); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	got, err = store.GetAppOwner(ctx, app.ID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if got != next.ID {
		t.Fatalf("expected %s, got %s", next.ID, got)
	}

	if err := store.DeleteApp(ctx, app.ID); err != nil {
		t.Fatalf("delete app: %v", err)
	}
}

func TestPostgresPackageHistory(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	app, err := store.CreateApp(ctx, appdomain.App{Name: "history-app"})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { store.DeleteApp(ctx, app.ID) })

	d, err := store.CreateDeployment(ctx, deployment.Deployment{
		AppID: app.ID,
		Name:  "Staging",
		Key:   uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("create deployment: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	rollout := 10
	for i, label := range []string{"v1", "v2"} {
		pkg := deployment.Package{
			DeploymentID: d.ID,
			Label:        label,
			AppVersion:   "1.0.0",
			UploadTime:   base.Add(time.Duration(i) * time.Second),
		}
		if label == "v2" {
			pkg.Rollout = &rollout
		}
		if _, err := store.CreatePackage(ctx, pkg); err != nil {
			t.Fatalf("create %s: %v", label, err)
		}
	}

	count, err := store.CountPackages(ctx, d.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 packages, got %d", count)
	}

	latest, err := store.LatestPackage(ctx, d.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Label != "v2" {
		t.Fatalf("expected v2, got %s", latest.Label)
	}
	if latest.Rollout == nil || *latest.Rollout != 10 {
		t.Fatalf("expected rollout 10, got %v", latest.Rollout)
	}

	if err := store.DeletePackages(ctx, d.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.LatestPackage(ctx, d.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected empty history, got %v", err)
	}
}
