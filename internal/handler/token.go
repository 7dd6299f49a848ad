package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/audit"
	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/middleware"
	"github.com/deckline/pairing-server-go/internal/service"
)

type TokenHandler struct {
	tokenService *service.TokenService
	deviceAuth   func(http.Handler) http.Handler
}

func NewTokenHandler(tokenService *service.TokenService, deviceAuth func(http.Handler) http.Handler) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
		deviceAuth:   deviceAuth,
	}
}

func (h *TokenHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/rotate", h.Rotate)
	r.With(h.deviceAuth).Get("/me", h.Me)

	return r
}

// POST /v1/token/rotate — takes the current bearer token directly rather
// than going through the auth middleware: rotation consumes the credential
// it validates, in one statement.
func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearerToken(r)
	if token == "" {
		writeError(w, apperrors.InvalidToken())
		return
	}

	result, err := h.tokenService.Rotate(r.Context(), token)
	if err != nil {
		if code := apperrors.GetCode(err); code == apperrors.ErrCodeInternal || code == apperrors.ErrCodeDatabase {
			log.Error().Err(err).Msg("failed to rotate token")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventTokenRotate})

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/token/me — returns the identity behind the presented token;
// exercises the device auth middleware end to end and gives sidebar
// clients a cheap "is my token still good" probe.
func (h *TokenHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetDeviceIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.InvalidToken())
		return
	}

	writeJSON(w, http.StatusOK, identity)
}
