package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/deckline/pairing-server-go/internal/model"
)

type PairingRequestRepository interface {
	FindByCode(ctx context.Context, code string) (*model.PairingRequest, error)
	// FindForExchange returns the pairing request matching both code and
	// device id, locking the row until the surrounding transaction ends so
	// concurrent exchange polls for one code serialize. Claimed and expiry
	// state are left for the caller to interpret.
	FindForExchange(ctx context.Context, code, deviceID string) (*model.PairingRequest, error)
	Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error)
	// Claim atomically flips an unclaimed, unexpired request to claimed and
	// records the web session's identity. Returns false when no row matched
	// (missing, already claimed, or expired — indistinguishable by design).
	Claim(ctx context.Context, code, userID, userEmail string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingRequestRepository
}

type pairingRepo struct {
	db sqlxDB
}

func NewPairingRequestRepository(db *sqlx.DB) PairingRequestRepository {
	return &pairingRepo{db: db}
}

func (r *pairingRepo) WithTx(tx *sqlx.Tx) PairingRequestRepository {
	return &pairingRepo{db: tx}
}

func (r *pairingRepo) FindByCode(ctx context.Context, code string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		SELECT * FROM pairing_requests WHERE code = $1
	`, code)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) FindForExchange(ctx context.Context, code, deviceID string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		SELECT * FROM pairing_requests
		WHERE code = $1 AND device_id = $2
		FOR UPDATE
	`, code, deviceID)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		INSERT INTO pairing_requests (code, device_id, device_fingerprint, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Code, params.DeviceID, params.DeviceFingerprint, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *pairingRepo) Claim(ctx context.Context, code, userID, userEmail string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_requests SET
			claimed = true,
			user_id = $2,
			user_email = $3
		WHERE code = $1 AND claimed = false AND expires_at > NOW()
	`, code, userID, userEmail)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *pairingRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_requests WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
