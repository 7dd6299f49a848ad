package model

import (
	"time"
)

// DeviceCredential is the rotating bearer credential for one paired device.
// There is exactly one row per (user_id, device_fingerprint); re-pairing and
// rotation both replace the row's hash and expiry in place. Only the token
// hash is persisted, never the raw token.
type DeviceCredential struct {
	ID                string     `db:"id" json:"id"`
	TokenHash         string     `db:"token_hash" json:"-"`
	DeviceID          string     `db:"device_id" json:"deviceId"`
	DeviceFingerprint string     `db:"device_fingerprint" json:"-"`
	UserID            string     `db:"user_id" json:"userId"`
	UserEmail         string     `db:"user_email" json:"userEmail"`
	DeviceName        string     `db:"device_name" json:"deviceName"`
	RotationCount     int        `db:"rotation_count" json:"rotationCount"`
	IssuedAt          time.Time  `db:"issued_at" json:"issuedAt"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expiresAt"`
	LastUsedAt        *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// DeviceListing is a DeviceCredential row augmented with the computed
// is_active flag for the device management list.
type DeviceListing struct {
	DeviceCredential
	IsActive bool `db:"is_active" json:"isActive"`
}

type UpsertDeviceCredentialParams struct {
	TokenHash         string
	DeviceID          string
	DeviceFingerprint string
	UserID            string
	UserEmail         string
	DeviceName        string
	ExpiresAt         time.Time
}

// DeviceIdentity is the minimal identity tuple returned by token validation.
type DeviceIdentity struct {
	UserID     string `db:"user_id" json:"userId"`
	DeviceID   string `db:"device_id" json:"deviceId"`
	DeviceName string `db:"device_name" json:"deviceName"`
	UserEmail  string `db:"user_email" json:"userEmail"`
}
