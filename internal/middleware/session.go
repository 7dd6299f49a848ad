package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/util"
)

// The host web app signs a session cookie with the shared SESSION_SECRET;
// this service only verifies it. Session creation, logout and renewal stay
// the web app's concern.
const WebSessionCookie = "deckline_session"

const WebSessionContextKey contextKey = "webSession"

// WebSession is the identity carried by a verified session cookie.
type WebSession struct {
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func GetWebSession(ctx context.Context) *WebSession {
	if session, ok := ctx.Value(WebSessionContextKey).(*WebSession); ok {
		return session
	}
	return nil
}

type WebSessionMiddleware struct {
	sessionSecret string
}

func NewWebSessionMiddleware(sessionSecret string) *WebSessionMiddleware {
	return &WebSessionMiddleware{sessionSecret: sessionSecret}
}

func (m *WebSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.sessionSecret == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Session verification not configured",
			})
			return
		}

		cookie, err := r.Cookie(WebSessionCookie)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		session, ok := VerifySessionValue(cookie.Value, m.sessionSecret)
		if !ok {
			log.Warn().Msg("web session middleware: bad session cookie")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		ctx := context.WithValue(r.Context(), WebSessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VerifySessionValue parses a "base64url(payload).hexsig" cookie value,
// checks the HMAC in constant time, and rejects expired sessions.
func VerifySessionValue(value, secret string) (*WebSession, bool) {
	payload, sig, found := strings.Cut(value, ".")
	if !found {
		return nil, false
	}

	expected := util.HmacSHA256(secret, payload)
	if !util.ConstantTimeEqual(sig, expected) {
		return nil, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}

	var session WebSession
	if err := json.Unmarshal(decoded, &session); err != nil {
		return nil, false
	}
	if session.UserID == "" || time.Now().After(session.ExpiresAt) {
		return nil, false
	}

	return &session, true
}

// SignSessionValue is the inverse of VerifySessionValue, used by the dev
// helper script and tests. Production cookies are minted by the web app.
func SignSessionValue(session WebSession, secret string) (string, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	return payload + "." + util.HmacSHA256(secret, payload), nil
}
