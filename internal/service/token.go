package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/database"
	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
	"github.com/deckline/pairing-server-go/internal/redis"
	"github.com/deckline/pairing-server-go/internal/repository"
	"github.com/deckline/pairing-server-go/internal/util"
)

const pqUniqueViolation = "23505"

type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TxRunner runs a function inside a database transaction. *database.DB
// implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// TokenService owns the credential lifecycle: minting on exchange,
// per-request validation, and in-place rotation. It is the only code path
// that touches device_credentials.
type TokenService struct {
	db          TxRunner
	pairingRepo repository.PairingRequestRepository
	deviceRepo  repository.DeviceCredentialRepository
	cache       *redis.TokenCache
	tokenTTL    time.Duration
}

func NewTokenService(
	db TxRunner,
	pairingRepo repository.PairingRequestRepository,
	deviceRepo repository.DeviceCredentialRepository,
	cache *redis.TokenCache,
	tokenTTL time.Duration,
) *TokenService {
	return &TokenService{
		db:          db,
		pairingRepo: pairingRepo,
		deviceRepo:  deviceRepo,
		cache:       cache,
		tokenTTL:    tokenTTL,
	}
}

// Exchange upgrades a claimed pairing code into a bearer token. The device
// polls this; INVALID_CODE means the code is doomed (unknown, wrong device,
// or expired) while NOT_LINKED_YET means no web session has claimed it and
// the device should keep polling.
func (s *TokenService) Exchange(ctx context.Context, deviceID, code, deviceName string, fingerprint *string) (*TokenResult, error) {
	normalized := util.NormalizeCode(code)

	var result *TokenResult
	var staleHash *string

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		pairingRepo := s.pairingRepo.WithTx(tx)
		deviceRepo := s.deviceRepo.WithTx(tx)

		pr, err := pairingRepo.FindForExchange(ctx, normalized, deviceID)
		if err != nil {
			return apperrors.Database(err)
		}
		if pr == nil || time.Now().After(pr.ExpiresAt) {
			return apperrors.InvalidCode()
		}
		if !pr.Claimed || pr.UserID == nil || pr.UserEmail == nil {
			return apperrors.NotLinkedYet()
		}

		// The caller-supplied fingerprint wins over the one recorded at
		// registration; with neither, fall back to a hash of the device id
		// so the (user, fingerprint) uniqueness key is always satisfiable.
		resolvedFingerprint := util.FallbackFingerprint(deviceID)
		if fingerprint != nil && *fingerprint != "" {
			resolvedFingerprint = *fingerprint
		} else if pr.DeviceFingerprint != nil && *pr.DeviceFingerprint != "" {
			resolvedFingerprint = *pr.DeviceFingerprint
		}

		staleHash, err = deviceRepo.FindTokenHash(ctx, *pr.UserID, resolvedFingerprint)
		if err != nil {
			return apperrors.Database(err)
		}

		cred, token, err := s.upsertWithRetry(ctx, deviceRepo, model.UpsertDeviceCredentialParams{
			DeviceID:          deviceID,
			DeviceFingerprint: resolvedFingerprint,
			UserID:            *pr.UserID,
			UserEmail:         *pr.UserEmail,
			DeviceName:        deviceName,
			ExpiresAt:         time.Now().Add(s.tokenTTL),
		})
		if err != nil {
			return err
		}

		log.Info().
			Str("code", util.MaskCode(normalized)).
			Str("deviceId", deviceID).
			Str("userId", cred.UserID).
			Time("expiresAt", cred.ExpiresAt).
			Msg("pairing code exchanged for device token")

		result = &TokenResult{Token: token, ExpiresAt: cred.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if staleHash != nil {
		s.cache.Invalidate(ctx, *staleHash)
	}

	return result, nil
}

// upsertWithRetry mints a token, hashes it and upserts the credential,
// regenerating once if the hash collides with an existing one.
func (s *TokenService) upsertWithRetry(ctx context.Context, repo repository.DeviceCredentialRepository, params model.UpsertDeviceCredentialParams) (*model.DeviceCredential, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := util.GenerateToken()
		if err != nil {
			return nil, "", fmt.Errorf("generate token: %w", err)
		}
		params.TokenHash = util.HashToken(token)

		cred, err := repo.Upsert(ctx, params)
		if err != nil {
			if isUniqueViolation(err) && attempt == 0 {
				log.Warn().Msg("token hash collision on exchange, regenerating")
				continue
			}
			return nil, "", apperrors.Database(err)
		}
		return cred, token, nil
	}
	return nil, "", apperrors.Internal("Could not mint a device token")
}

// Validate resolves a raw bearer token to the minimal identity tuple and
// refreshes last_used_at. All failure modes collapse into INVALID_TOKEN.
func (s *TokenService) Validate(ctx context.Context, rawToken string) (*model.DeviceIdentity, error) {
	tokenHash := util.HashToken(rawToken)

	if identity := s.cache.Get(ctx, tokenHash); identity != nil {
		return identity, nil
	}

	identity, err := s.deviceRepo.ValidateAndTouch(ctx, tokenHash)
	if err != nil {
		log.Error().Err(err).Msg("token validation: database error")
		return nil, apperrors.Database(err)
	}
	if identity == nil {
		return nil, apperrors.InvalidToken()
	}

	s.cache.Set(ctx, tokenHash, identity)
	return identity, nil
}

// Rotate replaces a live credential's token in a single guarded update, so
// a concurrent validator never observes a device with zero live tokens and
// concurrent rotations of the same token cannot both win.
func (s *TokenService) Rotate(ctx context.Context, rawToken string) (*TokenResult, error) {
	oldHash := util.HashToken(rawToken)

	for attempt := 0; attempt < 2; attempt++ {
		token, err := util.GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}

		cred, err := s.deviceRepo.Rotate(ctx, oldHash, util.HashToken(token), time.Now().Add(s.tokenTTL))
		if err != nil {
			if isUniqueViolation(err) && attempt == 0 {
				log.Warn().Msg("token hash collision on rotate, regenerating")
				continue
			}
			log.Error().Err(err).Msg("token rotation: database error")
			return nil, apperrors.Database(err)
		}
		if cred == nil {
			return nil, apperrors.InvalidToken()
		}

		s.cache.Invalidate(ctx, oldHash)

		log.Info().
			Str("deviceId", cred.DeviceID).
			Str("userId", cred.UserID).
			Int("rotationCount", cred.RotationCount).
			Time("expiresAt", cred.ExpiresAt).
			Msg("device token rotated")

		return &TokenResult{Token: token, ExpiresAt: cred.ExpiresAt}, nil
	}
	return nil, apperrors.Internal("Could not mint a device token")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
