package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
	"github.com/deckline/pairing-server-go/internal/redis"
	"github.com/deckline/pairing-server-go/internal/repository"
)

// DeviceService is the user-facing manager for paired devices. Every
// operation is scoped to the calling user's rows server-side; a caller can
// never address another user's device by guessing an id.
type DeviceService struct {
	deviceRepo repository.DeviceCredentialRepository
	cache      *redis.TokenCache
}

func NewDeviceService(deviceRepo repository.DeviceCredentialRepository, cache *redis.TokenCache) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		cache:      cache,
	}
}

func (s *DeviceService) ListDevices(ctx context.Context, userID string) ([]model.DeviceListing, error) {
	devices, err := s.deviceRepo.FindByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("list devices: database error")
		return nil, apperrors.Database(err)
	}
	return devices, nil
}

func (s *DeviceService) RenameDevice(ctx context.Context, userID, deviceID, newName string) error {
	trimmed := strings.TrimSpace(newName)

	tokenHash, err := s.deviceRepo.Rename(ctx, userID, deviceID, trimmed)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("rename device: database error")
		return apperrors.Database(err)
	}
	if tokenHash == nil {
		return apperrors.NotFound("Device")
	}

	// Validation results carry the device name; drop the cached copy.
	s.cache.Invalidate(ctx, *tokenHash)

	log.Info().
		Str("userId", userID).
		Str("deviceId", deviceID).
		Msg("device renamed")

	return nil
}

func (s *DeviceService) RevokeDevice(ctx context.Context, userID, deviceID string) error {
	hashes, err := s.deviceRepo.Revoke(ctx, userID, deviceID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("revoke device: database error")
		return apperrors.Database(err)
	}
	if len(hashes) == 0 {
		return apperrors.NotFound("Device")
	}

	s.cache.Invalidate(ctx, hashes...)

	log.Info().
		Str("userId", userID).
		Str("deviceId", deviceID).
		Int("credentials", len(hashes)).
		Msg("device revoked")

	return nil
}
