package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deckline/pairing-server-go/internal/database"
	"github.com/deckline/pairing-server-go/internal/model"
	"github.com/deckline/pairing-server-go/internal/repository"
)

type mockPairingRepo struct {
	findByCodeFunc      func(ctx context.Context, code string) (*model.PairingRequest, error)
	findForExchangeFunc func(ctx context.Context, code, deviceID string) (*model.PairingRequest, error)
	createFunc          func(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error)
	claimFunc           func(ctx context.Context, code, userID, userEmail string) (bool, error)
	deleteExpiredFunc   func(ctx context.Context) (int64, error)
}

func (m *mockPairingRepo) FindByCode(ctx context.Context, code string) (*model.PairingRequest, error) {
	if m.findByCodeFunc != nil {
		return m.findByCodeFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockPairingRepo) FindForExchange(ctx context.Context, code, deviceID string) (*model.PairingRequest, error) {
	if m.findForExchangeFunc != nil {
		return m.findForExchangeFunc(ctx, code, deviceID)
	}
	return nil, nil
}

func (m *mockPairingRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	pr := model.PairingRequest{
		Code:              params.Code,
		DeviceID:          params.DeviceID,
		DeviceFingerprint: params.DeviceFingerprint,
		CreatedAt:         time.Now(),
		ExpiresAt:         params.ExpiresAt,
	}
	return &pr, nil
}

func (m *mockPairingRepo) Claim(ctx context.Context, code, userID, userEmail string) (bool, error) {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, code, userID, userEmail)
	}
	return false, nil
}

func (m *mockPairingRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx)
	}
	return 0, nil
}

func (m *mockPairingRepo) WithTx(tx *sqlx.Tx) repository.PairingRequestRepository {
	return m
}

type mockDeviceRepo struct {
	upsertFunc           func(ctx context.Context, params model.UpsertDeviceCredentialParams) (*model.DeviceCredential, error)
	validateAndTouchFunc func(ctx context.Context, tokenHash string) (*model.DeviceIdentity, error)
	rotateFunc           func(ctx context.Context, oldTokenHash, newTokenHash string, expiresAt time.Time) (*model.DeviceCredential, error)
	findTokenHashFunc    func(ctx context.Context, userID, fingerprint string) (*string, error)
	findByUserFunc       func(ctx context.Context, userID string) ([]model.DeviceListing, error)
	renameFunc           func(ctx context.Context, userID, deviceID, name string) (*string, error)
	revokeFunc           func(ctx context.Context, userID, deviceID string) ([]string, error)
	deleteExpiredFunc    func(ctx context.Context, retention time.Duration) (int64, error)
}

func (m *mockDeviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceCredentialParams) (*model.DeviceCredential, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, params)
	}
	cred := model.DeviceCredential{
		TokenHash:         params.TokenHash,
		DeviceID:          params.DeviceID,
		DeviceFingerprint: params.DeviceFingerprint,
		UserID:            params.UserID,
		UserEmail:         params.UserEmail,
		DeviceName:        params.DeviceName,
		IssuedAt:          time.Now(),
		ExpiresAt:         params.ExpiresAt,
	}
	return &cred, nil
}

func (m *mockDeviceRepo) ValidateAndTouch(ctx context.Context, tokenHash string) (*model.DeviceIdentity, error) {
	if m.validateAndTouchFunc != nil {
		return m.validateAndTouchFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockDeviceRepo) Rotate(ctx context.Context, oldTokenHash, newTokenHash string, expiresAt time.Time) (*model.DeviceCredential, error) {
	if m.rotateFunc != nil {
		return m.rotateFunc(ctx, oldTokenHash, newTokenHash, expiresAt)
	}
	return nil, nil
}

func (m *mockDeviceRepo) FindTokenHash(ctx context.Context, userID, fingerprint string) (*string, error) {
	if m.findTokenHashFunc != nil {
		return m.findTokenHashFunc(ctx, userID, fingerprint)
	}
	return nil, nil
}

func (m *mockDeviceRepo) FindByUser(ctx context.Context, userID string) ([]model.DeviceListing, error) {
	if m.findByUserFunc != nil {
		return m.findByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeviceRepo) Rename(ctx context.Context, userID, deviceID, name string) (*string, error) {
	if m.renameFunc != nil {
		return m.renameFunc(ctx, userID, deviceID, name)
	}
	return nil, nil
}

func (m *mockDeviceRepo) Revoke(ctx context.Context, userID, deviceID string) ([]string, error) {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, userID, deviceID)
	}
	return nil, nil
}

func (m *mockDeviceRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx, retention)
	}
	return 0, nil
}

func (m *mockDeviceRepo) WithTx(tx *sqlx.Tx) repository.DeviceCredentialRepository {
	return m
}

// fakeTxRunner runs the transaction function directly; the mocks above
// ignore the tx handle.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}
