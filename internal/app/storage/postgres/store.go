package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/updraft-io/updraft/internal/app/domain/account"
	appdomain "github.com/updraft-io/updraft/internal/app/domain/app"
	"github.com/updraft-io/updraft/internal/app/domain/blob"
	"github.com/updraft-io/updraft/internal/app/domain/deployment"
	"github.com/updraft-io/updraft/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Every method
// executes a single parameterized statement; multi-statement flows in the
// services above commit each step independently.
type Store struct {
	db *sql.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.AccessKeyStore = (*Store)(nil)
var _ storage.AppStore = (*Store)(nil)
var _ storage.DeploymentStore = (*Store)(nil)
var _ storage.PackageStore = (*Store)(nil)
var _ storage.BlobStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func notFound(what, id string) error {
	if id == "" {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
}

// --- AccountStore -----------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, identity_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, acct.ID, acct.Name, acct.Email, acct.IdentityRef, acct.CreatedAt)
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, identity_ref, created_at
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row, "account", id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, identity_ref, created_at
		FROM accounts
		WHERE email = $1
	`, email)
	return scanAccount(row, "account email", email)
}

func (s *Store) UpdateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET name = $2, identity_ref = $3
		WHERE id = $1
	`, acct.ID, acct.Name, acct.IdentityRef)
	if err != nil {
		return account.Account{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return account.Account{}, notFound("account", acct.ID)
	}
	return s.GetAccount(ctx, acct.ID)
}

func scanAccount(row *sql.Row, what, id string) (account.Account, error) {
	var acct account.Account
	err := row.Scan(&acct.ID, &acct.Name, &acct.Email, &acct.IdentityRef, &acct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, notFound(what, id)
	}
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

// --- AccessKeyStore ---------------------------------------------------------

func (s *Store) CreateAccessKey(ctx context.Context, accountID string, key account.AccessKey) (account.AccessKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	key.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_keys (id, name, friendly_name, description, created_by, is_session, expires, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, key.ID, key.Name, key.FriendlyName, key.Description, key.CreatedBy, key.IsSession, toNullTime(key.Expires), key.CreatedAt)
	if err != nil {
		return account.AccessKey{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO account_access_keys (access_key_id, account_id, expires)
		VALUES ($1, $2, $3)
	`, key.ID, accountID, key.Expires.UTC())
	if err != nil {
		return account.AccessKey{}, err
	}
	return key, nil
}

func (s *Store) GetAccessKeyByName(ctx context.Context, name string) (account.AccessKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, friendly_name, description, created_by, is_session, expires, created_at
		FROM access_keys
		WHERE name = $1
	`, name)

	var (
		key     account.AccessKey
		expires sql.NullTime
	)
	err := row.Scan(&key.ID, &key.Name, &key.FriendlyName, &key.Description, &key.CreatedBy, &key.IsSession, &expires, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.AccessKey{}, notFound("access key", "")
	}
	if err != nil {
		return account.AccessKey{}, err
	}
	if expires.Valid {
		key.Expires = expires.Time.UTC()
	}
	return key, nil
}

func (s *Store) GetKeyBinding(ctx context.Context, accessKeyID string) (account.KeyBinding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT access_key_id, account_id, expires
		FROM account_access_keys
		WHERE access_key_id = $1
	`, accessKeyID)

	var binding account.KeyBinding
	err := row.Scan(&binding.AccessKeyID, &binding.AccountID, &binding.Expires)
	if errors.Is(err, sql.ErrNoRows) {
		return account.KeyBinding{}, notFound("access key binding", "")
	}
	if err != nil {
		return account.KeyBinding{}, err
	}
	binding.Expires = binding.Expires.UTC()
	return binding, nil
}

func (s *Store) DeleteAccessKey(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM access_keys WHERE name = $1
	`, name)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("access key", "")
	}
	return nil
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(ctx context.Context, app appdomain.App) (appdomain.App, error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.CreatedAt = time.Now().UTC()

	collabJSON, err := json.Marshal(app.Collaborators)
	if err != nil {
		return appdomain.App{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO apps (id, name, collaborators, created_at)
		VALUES ($1, $2, $3, $4)
	`, app.ID, app.Name, collabJSON, app.CreatedAt)
	if err != nil {
		return appdomain.App{}, err
	}
	return app, nil
}

func (s *Store) GetApp(ctx context.Context, id string) (appdomain.App, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, collaborators, created_at
		FROM apps
		WHERE id = $1
	`, id)

	var (
		app       appdomain.App
		collabRaw []byte
	)
	err := row.Scan(&app.ID, &app.Name, &collabRaw, &app.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return appdomain.App{}, notFound("app", id)
	}
	if err != nil {
		return appdomain.App{}, err
	}
	if len(collabRaw) > 0 {
		_ = json.Unmarshal(collabRaw, &app.Collaborators)
	}
	return app, nil
}

func (s *Store) ListAppsForAccount(ctx context.Context, accountID string) ([]appdomain.App, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.collaborators, a.created_at
		FROM apps a
		JOIN account_apps aa ON aa.app_id = a.id
		WHERE aa.account_id = $1
		ORDER BY a.created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []appdomain.App
	for rows.Next() {
		var (
			app       appdomain.App
			collabRaw []byte
		)
		if err := rows.Scan(&app.ID, &app.Name, &collabRaw, &app.CreatedAt); err != nil {
			return nil, err
		}
		if len(collabRaw) > 0 {
			_ = json.Unmarshal(collabRaw, &app.Collaborators)
		}
		result = append(result, app)
	}
	return result, rows.Err()
}

func (s *Store) UpdateApp(ctx context.Context, app appdomain.App) (appdomain.App, error) {
	collabJSON, err := json.Marshal(app.Collaborators)
	if err != nil {
		return appdomain.App{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE apps
		SET name = $2, collaborators = $3
		WHERE id = $1
	`, app.ID, app.Name, collabJSON)
	if err != nil {
		return appdomain.App{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appdomain.App{}, notFound("app", app.ID)
	}
	return app, nil
}

func (s *Store) DeleteApp(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM apps WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("app", id)
	}
	return nil
}

func (s *Store) AddAccountApp(ctx context.Context, accountID, appID string, isOwner bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_apps (account_id, app_id, is_owner)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, app_id) DO UPDATE SET is_owner = EXCLUDED.is_owner
	`, accountID, appID, isOwner)
	return err
}

func (s *Store) RemoveAccountApp(ctx context.Context, accountID, appID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM account_apps WHERE account_id = $1 AND app_id = $2
	`, accountID, appID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("account app link", "")
	}
	return nil
}

func (s *Store) SetAppOwner(ctx context.Context, appID, accountID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE account_apps SET is_owner = FALSE WHERE app_id = $1
	`, appID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_apps (account_id, app_id, is_owner)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (account_id, app_id) DO UPDATE SET is_owner = TRUE
	`, accountID, appID)
	return err
}

func (s *Store) GetAppOwner(ctx context.Context, appID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id FROM account_apps
		WHERE app_id = $1 AND is_owner
	`, appID)

	var accountID string
	err := row.Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("app owner", appID)
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// --- DeploymentStore --------------------------------------------------------

func (s *Store) CreateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, app_id, name, key, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.AppID, d.Name, d.Key, d.CreatedAt)
	if err != nil {
		return deployment.Deployment{}, err
	}
	return d, nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (deployment.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, name, key, created_at
		FROM deployments
		WHERE id = $1
	`, id)
	return scanDeployment(row, "deployment", id)
}

func (s *Store) GetDeploymentByKey(ctx context.Context, key string) (deployment.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, name, key, created_at
		FROM deployments
		WHERE key = $1
	`, key)
	return scanDeployment(row, "deployment key", "")
}

func (s *Store) ListDeployments(ctx context.Context, appID string) ([]deployment.Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, name, key, created_at
		FROM deployments
		WHERE app_id = $1
		ORDER BY created_at
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []deployment.Deployment
	for rows.Next() {
		var d deployment.Deployment
		if err := rows.Scan(&d.ID, &d.AppID, &d.Name, &d.Key, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) UpdateDeployment(ctx context.Context, d deployment.Deployment) (deployment.Deployment, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deployments
		SET name = $2
		WHERE id = $1
	`, d.ID, d.Name)
	if err != nil {
		return deployment.Deployment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return deployment.Deployment{}, notFound("deployment", d.ID)
	}
	return s.GetDeployment(ctx, d.ID)
}

func (s *Store) DeleteDeployment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM deployments WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("deployment", id)
	}
	return nil
}

func scanDeployment(row *sql.Row, what, id string) (deployment.Deployment, error) {
	var d deployment.Deployment
	err := row.Scan(&d.ID, &d.AppID, &d.Name, &d.Key, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return deployment.Deployment{}, notFound(what, id)
	}
	if err != nil {
		return deployment.Deployment{}, err
	}
	return d, nil
}

// --- PackageStore -----------------------------------------------------------

const packageColumns = `id, deployment_id, label, description, is_disabled, is_mandatory, rollout,
	app_version, package_hash, blob_id, manifest_blob_id, release_method, released_by,
	original_label, original_deployment, size, upload_time`

func (s *Store) CreatePackage(ctx context.Context, pkg deployment.Package) (deployment.Package, error) {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	if pkg.UploadTime.IsZero() {
		pkg.UploadTime = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packages (`+packageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, pkg.ID, pkg.DeploymentID, pkg.Label, pkg.Description, pkg.IsDisabled, pkg.IsMandatory,
		toNullInt(pkg.Rollout), pkg.AppVersion, pkg.PackageHash, pkg.BlobID, pkg.ManifestBlobID,
		pkg.ReleaseMethod, pkg.ReleasedBy, pkg.OriginalLabel, pkg.OriginalDeployment, pkg.Size, pkg.UploadTime)
	if err != nil {
		return deployment.Package{}, err
	}
	return pkg, nil
}

func (s *Store) GetPackage(ctx context.Context, id string) (deployment.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE id = $1
	`, id)

	pkg, err := scanPackage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return deployment.Package{}, notFound("package", id)
	}
	if err != nil {
		return deployment.Package{}, err
	}
	return pkg, nil
}

func (s *Store) ListPackages(ctx context.Context, deploymentID string) ([]deployment.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE deployment_id = $1
		ORDER BY upload_time
	`, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []deployment.Package
	for rows.Next() {
		pkg, err := scanPackage(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, pkg)
	}
	return result, rows.Err()
}

func (s *Store) CountPackages(ctx context.Context, deploymentID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM packages WHERE deployment_id = $1
	`, deploymentID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) LatestPackage(ctx context.Context, deploymentID string) (deployment.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE deployment_id = $1
		ORDER BY upload_time DESC
		LIMIT 1
	`, deploymentID)

	pkg, err := scanPackage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return deployment.Package{}, notFound("deployment packages", deploymentID)
	}
	if err != nil {
		return deployment.Package{}, err
	}
	return pkg, nil
}

func (s *Store) UpdatePackage(ctx context.Context, pkg deployment.Package) (deployment.Package, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE packages
		SET label = $2, description = $3, is_disabled = $4, is_mandatory = $5, rollout = $6,
			app_version = $7, package_hash = $8, blob_id = $9, manifest_blob_id = $10,
			release_method = $11, released_by = $12, original_label = $13, original_deployment = $14,
			size = $15, upload_time = $16
		WHERE id = $1
	`, pkg.ID, pkg.Label, pkg.Description, pkg.IsDisabled, pkg.IsMandatory, toNullInt(pkg.Rollout),
		pkg.AppVersion, pkg.PackageHash, pkg.BlobID, pkg.ManifestBlobID, pkg.ReleaseMethod,
		pkg.ReleasedBy, pkg.OriginalLabel, pkg.OriginalDeployment, pkg.Size, pkg.UploadTime)
	if err != nil {
		return deployment.Package{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return deployment.Package{}, notFound("package", pkg.ID)
	}
	return pkg, nil
}

func (s *Store) DeletePackages(ctx context.Context, deploymentID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM packages WHERE deployment_id = $1
	`, deploymentID)
	return err
}

func scanPackage(scan func(...any) error) (deployment.Package, error) {
	var (
		pkg     deployment.Package
		rollout sql.NullInt64
	)
	err := scan(&pkg.ID, &pkg.DeploymentID, &pkg.Label, &pkg.Description, &pkg.IsDisabled,
		&pkg.IsMandatory, &rollout, &pkg.AppVersion, &pkg.PackageHash, &pkg.BlobID,
		&pkg.ManifestBlobID, &pkg.ReleaseMethod, &pkg.ReleasedBy, &pkg.OriginalLabel,
		&pkg.OriginalDeployment, &pkg.Size, &pkg.UploadTime)
	if err != nil {
		return deployment.Package{}, err
	}
	if rollout.Valid {
		v := int(rollout.Int64)
		pkg.Rollout = &v
	}
	return pkg, nil
}

// --- BlobStore --------------------------------------------------------------

func (s *Store) CreateBlob(ctx context.Context, b blob.Blob) (blob.Blob, error) {
	b.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, url, created_at)
		VALUES ($1, $2, $3)
	`, b.ID, b.URL, b.CreatedAt)
	if err != nil {
		return blob.Blob{}, err
	}
	return b, nil
}

func (s *Store) GetBlob(ctx context.Context, id string) (blob.Blob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, created_at
		FROM blobs
		WHERE id = $1
	`, id)

	var b blob.Blob
	err := row.Scan(&b.ID, &b.URL, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return blob.Blob{}, notFound("blob", id)
	}
	if err != nil {
		return blob.Blob{}, err
	}
	return b, nil
}

func (s *Store) DeleteBlob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM blobs WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notFound("blob", id)
	}
	return nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
