package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
)

func TestGeneratePairingCode(t *testing.T) {
	t.Run("generates code in correct format XXXX-XXXX", func(t *testing.T) {
		code := generatePairingCode()

		pattern := regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)
		assert.True(t, pattern.MatchString(code), "code should match XXXX-XXXX format, got: %s", code)
	})

	t.Run("uses only allowed characters", func(t *testing.T) {
		code := generatePairingCode()

		chars := code[:4] + code[5:]
		for _, c := range chars {
			assert.Contains(t, pairingCodeChars, string(c))
		}
	})

	t.Run("generates unique codes", func(t *testing.T) {
		codes := make(map[string]bool)
		for i := 0; i < 100; i++ {
			code := generatePairingCode()
			assert.False(t, codes[code], "duplicate code generated: %s", code)
			codes[code] = true
		}
	})

	t.Run("excludes ambiguous characters", func(t *testing.T) {
		// O, I, 0, 1 are excluded from pairingCodeChars
		for i := 0; i < 100; i++ {
			code := generatePairingCode()
			assert.NotContains(t, code, "O")
			assert.NotContains(t, code, "I")
			assert.NotContains(t, code, "0")
			assert.NotContains(t, code, "1")
		}
	})
}

func TestPairingServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates request with device id, code and TTL", func(t *testing.T) {
		var created model.CreatePairingRequestParams
		repo := &mockPairingRepo{
			createFunc: func(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
				created = params
				pr := model.PairingRequest{Code: params.Code, DeviceID: params.DeviceID, ExpiresAt: params.ExpiresAt}
				return &pr, nil
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		result, err := svc.Register(ctx, nil)
		require.NoError(t, err)

		assert.Len(t, result.DeviceID, 32)
		assert.Regexp(t, `^[A-Z2-9]{4}-[A-Z2-9]{4}$`, result.Code)
		assert.Equal(t, created.Code, result.Code)
		assert.Equal(t, created.DeviceID, result.DeviceID)
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), result.ExpiresAt, 2*time.Second)
	})

	t.Run("carries the optional fingerprint", func(t *testing.T) {
		fingerprint := "aa11"
		var created model.CreatePairingRequestParams
		repo := &mockPairingRepo{
			createFunc: func(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
				created = params
				pr := model.PairingRequest{Code: params.Code, DeviceID: params.DeviceID, ExpiresAt: params.ExpiresAt}
				return &pr, nil
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		_, err := svc.Register(ctx, &fingerprint)
		require.NoError(t, err)
		require.NotNil(t, created.DeviceFingerprint)
		assert.Equal(t, fingerprint, *created.DeviceFingerprint)
	})

	t.Run("retries on code collision", func(t *testing.T) {
		lookups := 0
		repo := &mockPairingRepo{
			findByCodeFunc: func(ctx context.Context, code string) (*model.PairingRequest, error) {
				lookups++
				if lookups == 1 {
					return &model.PairingRequest{Code: code}, nil
				}
				return nil, nil
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		result, err := svc.Register(ctx, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Code)
		assert.Equal(t, 2, lookups)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		repo := &mockPairingRepo{
			createFunc: func(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
				return nil, errors.New("insert failed")
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		_, err := svc.Register(ctx, nil)
		assert.Error(t, err)
	})
}

func TestPairingServiceClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds when the conditional update matches", func(t *testing.T) {
		var claimedCode, claimedUser, claimedEmail string
		repo := &mockPairingRepo{
			claimFunc: func(ctx context.Context, code, userID, userEmail string) (bool, error) {
				claimedCode, claimedUser, claimedEmail = code, userID, userEmail
				return true, nil
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		err := svc.Claim(ctx, "ab23-cd45", "u1", "u1@example.com")
		require.NoError(t, err)
		assert.Equal(t, "AB23-CD45", claimedCode, "code should be normalized before the update")
		assert.Equal(t, "u1", claimedUser)
		assert.Equal(t, "u1@example.com", claimedEmail)
	})

	t.Run("returns the generic error when no row matches", func(t *testing.T) {
		repo := &mockPairingRepo{
			claimFunc: func(ctx context.Context, code, userID, userEmail string) (bool, error) {
				return false, nil
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		err := svc.Claim(ctx, "AB23-CD45", "u1", "u1@example.com")
		assert.Equal(t, apperrors.ErrCodeInvalidOrExpiredCode, apperrors.GetCode(err))
	})

	t.Run("wraps database errors", func(t *testing.T) {
		repo := &mockPairingRepo{
			claimFunc: func(ctx context.Context, code, userID, userEmail string) (bool, error) {
				return false, errors.New("db down")
			},
		}
		svc := NewPairingService(repo, 10*time.Minute)

		err := svc.Claim(ctx, "AB23-CD45", "u1", "u1@example.com")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}
