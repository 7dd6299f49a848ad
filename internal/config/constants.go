package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// CredentialRetention is how long an expired device credential stays
// visible in the device list before the cleanup job removes it.
const CredentialRetention = 30 * 24 * time.Hour

// Rate limits for the unauthenticated pairing endpoints, per IP.
const (
	RegisterRateLimit = 10
	ClaimRateLimit    = 10
	ExchangeRateLimit = 60
	RateLimitWindow   = time.Minute
)
