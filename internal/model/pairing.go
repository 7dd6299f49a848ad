package model

import (
	"time"
)

// PairingRequest is one outstanding pairing attempt: created by an
// unauthenticated device, claimed exactly once by a logged-in web session,
// then read (never mutated again) by the token exchange.
type PairingRequest struct {
	Code              string     `db:"code" json:"code"`
	DeviceID          string     `db:"device_id" json:"deviceId"`
	DeviceFingerprint *string    `db:"device_fingerprint" json:"deviceFingerprint,omitempty"`
	Claimed           bool       `db:"claimed" json:"claimed"`
	UserID            *string    `db:"user_id" json:"userId,omitempty"`
	UserEmail         *string    `db:"user_email" json:"userEmail,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expiresAt"`
}

type CreatePairingRequestParams struct {
	Code              string
	DeviceID          string
	DeviceFingerprint *string
	ExpiresAt         time.Time
}
