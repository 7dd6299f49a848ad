package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deckline/pairing-server-go/internal/model"
)

type DeviceCredentialRepository interface {
	// Upsert inserts a credential for (user, fingerprint), or replaces the
	// existing row's hash, expiry and device identity when the same physical
	// device pairs again.
	Upsert(ctx context.Context, params model.UpsertDeviceCredentialParams) (*model.DeviceCredential, error)
	// ValidateAndTouch resolves a live credential by token hash and refreshes
	// last_used_at in the same statement. Returns nil when the hash is
	// unknown or the credential has expired.
	ValidateAndTouch(ctx context.Context, tokenHash string) (*model.DeviceIdentity, error)
	// Rotate replaces a live credential's hash and expiry in place, guarded
	// by the old hash so only one concurrent rotation can win. Returns the
	// rewritten row, or nil when the old token was not live.
	Rotate(ctx context.Context, oldTokenHash, newTokenHash string, expiresAt time.Time) (*model.DeviceCredential, error)
	// FindTokenHash returns the current token hash for (user, fingerprint),
	// or nil when that device has never paired. Used to invalidate cached
	// validations when re-pairing replaces a credential.
	FindTokenHash(ctx context.Context, userID, fingerprint string) (*string, error)
	FindByUser(ctx context.Context, userID string) ([]model.DeviceListing, error)
	// Rename updates the device label, scoped to the owning user. Returns
	// the token hash of the renamed row for cache invalidation, or nil when
	// no row matched.
	Rename(ctx context.Context, userID, deviceID, name string) (*string, error)
	// Revoke deletes the user's credential rows for a device and returns
	// their token hashes for cache invalidation.
	Revoke(ctx context.Context, userID, deviceID string) ([]string, error)
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DeviceCredentialRepository
}

type deviceRepo struct {
	db sqlxDB
}

func NewDeviceCredentialRepository(db *sqlx.DB) DeviceCredentialRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) WithTx(tx *sqlx.Tx) DeviceCredentialRepository {
	return &deviceRepo{db: tx}
}

func (r *deviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceCredentialParams) (*model.DeviceCredential, error) {
	var cred model.DeviceCredential
	err := r.db.GetContext(ctx, &cred, `
		INSERT INTO device_credentials
			(token_hash, device_id, device_fingerprint, user_id, user_email, device_name, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			device_id = EXCLUDED.device_id,
			user_email = EXCLUDED.user_email,
			device_name = CASE
				WHEN EXCLUDED.device_name <> '' THEN EXCLUDED.device_name
				ELSE device_credentials.device_name
			END,
			issued_at = NOW(),
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING *
	`, params.TokenHash, params.DeviceID, params.DeviceFingerprint,
		params.UserID, params.UserEmail, params.DeviceName, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *deviceRepo) ValidateAndTouch(ctx context.Context, tokenHash string) (*model.DeviceIdentity, error) {
	var identity model.DeviceIdentity
	err := r.db.GetContext(ctx, &identity, `
		UPDATE device_credentials SET
			last_used_at = NOW()
		WHERE token_hash = $1 AND expires_at > NOW()
		RETURNING user_id, device_id, device_name, user_email
	`, tokenHash)
	return HandleNotFound(&identity, err)
}

func (r *deviceRepo) Rotate(ctx context.Context, oldTokenHash, newTokenHash string, expiresAt time.Time) (*model.DeviceCredential, error) {
	var cred model.DeviceCredential
	err := r.db.GetContext(ctx, &cred, `
		UPDATE device_credentials SET
			token_hash = $2,
			rotation_count = rotation_count + 1,
			issued_at = NOW(),
			expires_at = $3,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE token_hash = $1 AND expires_at > NOW()
		RETURNING *
	`, oldTokenHash, newTokenHash, expiresAt)
	return HandleNotFound(&cred, err)
}

func (r *deviceRepo) FindTokenHash(ctx context.Context, userID, fingerprint string) (*string, error) {
	var tokenHash string
	err := r.db.GetContext(ctx, &tokenHash, `
		SELECT token_hash FROM device_credentials
		WHERE user_id = $1 AND device_fingerprint = $2
	`, userID, fingerprint)
	return HandleNotFound(&tokenHash, err)
}

func (r *deviceRepo) FindByUser(ctx context.Context, userID string) ([]model.DeviceListing, error) {
	var devices []model.DeviceListing
	err := r.db.SelectContext(ctx, &devices, `
		SELECT *, expires_at > NOW() AS is_active
		FROM device_credentials
		WHERE user_id = $1
		ORDER BY last_used_at DESC NULLS LAST, created_at DESC
	`, userID)
	return devices, err
}

func (r *deviceRepo) Rename(ctx context.Context, userID, deviceID, name string) (*string, error) {
	var tokenHash string
	err := r.db.GetContext(ctx, &tokenHash, `
		UPDATE device_credentials SET
			device_name = $3,
			updated_at = NOW()
		WHERE user_id = $1 AND device_id = $2
		RETURNING token_hash
	`, userID, deviceID, name)
	return HandleNotFound(&tokenHash, err)
}

func (r *deviceRepo) Revoke(ctx context.Context, userID, deviceID string) ([]string, error) {
	var hashes []string
	err := r.db.SelectContext(ctx, &hashes, `
		DELETE FROM device_credentials
		WHERE user_id = $1 AND device_id = $2
		RETURNING token_hash
	`, userID, deviceID)
	return hashes, err
}

func (r *deviceRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM device_credentials
		WHERE expires_at < NOW() - make_interval(secs => $1)
	`, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
