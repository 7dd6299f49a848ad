package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
)

func TestDeviceServiceListDevices(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the user's devices", func(t *testing.T) {
		var queriedUser string
		repo := &mockDeviceRepo{
			findByUserFunc: func(ctx context.Context, userID string) ([]model.DeviceListing, error) {
				queriedUser = userID
				return []model.DeviceListing{
					{DeviceCredential: model.DeviceCredential{DeviceID: "dev1", DeviceName: "Laptop", ExpiresAt: time.Now().Add(time.Hour)}, IsActive: true},
					{DeviceCredential: model.DeviceCredential{DeviceID: "dev2", DeviceName: "Old"}, IsActive: false},
				}, nil
			},
		}
		svc := NewDeviceService(repo, nil)

		devices, err := svc.ListDevices(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", queriedUser)
		require.Len(t, devices, 2)
		assert.True(t, devices[0].IsActive)
		assert.False(t, devices[1].IsActive)
	})

	t.Run("wraps database errors", func(t *testing.T) {
		repo := &mockDeviceRepo{
			findByUserFunc: func(ctx context.Context, userID string) ([]model.DeviceListing, error) {
				return nil, errors.New("db down")
			},
		}
		svc := NewDeviceService(repo, nil)

		_, err := svc.ListDevices(ctx, "user-1")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestDeviceServiceRenameDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("trims the name before writing", func(t *testing.T) {
		var gotName string
		hash := "hash1"
		repo := &mockDeviceRepo{
			renameFunc: func(ctx context.Context, userID, deviceID, name string) (*string, error) {
				gotName = name
				return &hash, nil
			},
		}
		svc := NewDeviceService(repo, nil)

		err := svc.RenameDevice(ctx, "user-1", "dev1", "  Work Laptop  ")
		require.NoError(t, err)
		assert.Equal(t, "Work Laptop", gotName)
	})

	t.Run("returns NOT_FOUND for a device the user does not own", func(t *testing.T) {
		repo := &mockDeviceRepo{
			renameFunc: func(ctx context.Context, userID, deviceID, name string) (*string, error) {
				return nil, nil
			},
		}
		svc := NewDeviceService(repo, nil)

		err := svc.RenameDevice(ctx, "user-1", "dev1", "New Name")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestDeviceServiceRevokeDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("scopes the delete to the calling user", func(t *testing.T) {
		var gotUser, gotDevice string
		repo := &mockDeviceRepo{
			revokeFunc: func(ctx context.Context, userID, deviceID string) ([]string, error) {
				gotUser, gotDevice = userID, deviceID
				return []string{"hash1"}, nil
			},
		}
		svc := NewDeviceService(repo, nil)

		err := svc.RevokeDevice(ctx, "user-1", "dev1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", gotUser)
		assert.Equal(t, "dev1", gotDevice)
	})

	t.Run("returns NOT_FOUND when nothing was deleted", func(t *testing.T) {
		svc := NewDeviceService(&mockDeviceRepo{}, nil)

		err := svc.RevokeDevice(ctx, "user-1", "dev-unknown")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("wraps database errors", func(t *testing.T) {
		repo := &mockDeviceRepo{
			revokeFunc: func(ctx context.Context, userID, deviceID string) ([]string, error) {
				return nil, errors.New("db down")
			},
		}
		svc := NewDeviceService(repo, nil)

		err := svc.RevokeDevice(ctx, "user-1", "dev1")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}
