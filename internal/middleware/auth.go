package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/audit"
	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/model"
)

type contextKey string

const DeviceIdentityContextKey contextKey = "deviceIdentity"

func GetDeviceIdentity(ctx context.Context) *model.DeviceIdentity {
	if identity, ok := ctx.Value(DeviceIdentityContextKey).(*model.DeviceIdentity); ok {
		return identity
	}
	return nil
}

// TokenValidator is the part of the token service the middleware needs.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*model.DeviceIdentity, error)
}

// DeviceAuthMiddleware authenticates device API calls by their bearer token.
// The host service mounts this in front of every sidebar-facing route.
type DeviceAuthMiddleware struct {
	tokens TokenValidator
}

func NewDeviceAuthMiddleware(tokens TokenValidator) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{tokens: tokens}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		identity, err := m.tokens.Validate(r.Context(), token)
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeInvalidToken {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Invalid token",
				})
				return
			}
			log.Error().Err(err).Msg("device auth middleware: validation error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		ctx := context.WithValue(r.Context(), DeviceIdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractBearerToken pulls the raw token from the Authorization header.
// Tokens are never accepted in query strings; they would end up in logs.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
