package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
	"github.com/deckline/pairing-server-go/internal/repository"
	"github.com/deckline/pairing-server-go/internal/util"
)

// pairingCodeChars excludes O, I, 0 and 1 so codes survive being read
// aloud or typed from a sidebar prompt.
const pairingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeCollisionRetries = 10

type RegisterResult struct {
	DeviceID  string    `json:"deviceId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PairingService struct {
	pairingRepo repository.PairingRequestRepository
	codeTTL     time.Duration
}

func NewPairingService(pairingRepo repository.PairingRequestRepository, codeTTL time.Duration) *PairingService {
	return &PairingService{
		pairingRepo: pairingRepo,
		codeTTL:     codeTTL,
	}
}

// Register creates a fresh device id and pairing code with a fixed TTL.
// The caller is unauthenticated; nothing here grants any privilege until a
// web session claims the code.
func (s *PairingService) Register(ctx context.Context, fingerprint *string) (*RegisterResult, error) {
	deviceID, err := util.GenerateDeviceID()
	if err != nil {
		return nil, fmt.Errorf("generate device id: %w", err)
	}

	var pr *model.PairingRequest
	for attempt := 0; attempt < codeCollisionRetries; attempt++ {
		code := generatePairingCode()
		existing, err := s.pairingRepo.FindByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code collision: %w", err)
		}
		if existing != nil {
			continue
		}

		pr, err = s.pairingRepo.Create(ctx, model.CreatePairingRequestParams{
			Code:              code,
			DeviceID:          deviceID,
			DeviceFingerprint: fingerprint,
			ExpiresAt:         time.Now().Add(s.codeTTL),
		})
		if err != nil {
			return nil, fmt.Errorf("create pairing request: %w", err)
		}
		break
	}
	if pr == nil {
		return nil, apperrors.Internal("Could not allocate a pairing code")
	}

	log.Info().
		Str("code", util.MaskCode(pr.Code)).
		Str("deviceId", deviceID).
		Time("expiresAt", pr.ExpiresAt).
		Msg("pairing request registered")

	return &RegisterResult{
		DeviceID:  deviceID,
		Code:      pr.Code,
		ExpiresAt: pr.ExpiresAt,
	}, nil
}

// Claim attaches the logged-in user's identity to an unclaimed, unexpired
// code. Missing, already-claimed and expired codes all collapse into one
// generic failure so the endpoint cannot be used to enumerate codes.
func (s *PairingService) Claim(ctx context.Context, code, userID, userEmail string) error {
	normalized := util.NormalizeCode(code)

	claimed, err := s.pairingRepo.Claim(ctx, normalized, userID, userEmail)
	if err != nil {
		log.Error().Err(err).Msg("claim pairing code: database error")
		return apperrors.Database(err)
	}
	if !claimed {
		log.Warn().Str("code", util.MaskCode(normalized)).Msg("pairing claim rejected")
		return apperrors.InvalidOrExpiredCode()
	}

	log.Info().
		Str("code", util.MaskCode(normalized)).
		Str("userId", userID).
		Msg("pairing code claimed")

	return nil
}

func generatePairingCode() string {
	chars := []byte(pairingCodeChars)
	part1 := make([]byte, 4)
	part2 := make([]byte, 4)

	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part1[i] = chars[n.Int64()]
	}
	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part2[i] = chars[n.Int64()]
	}

	return fmt.Sprintf("%s-%s", string(part1), string(part2))
}
