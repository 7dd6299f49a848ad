package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deckline/pairing-server-go/internal/audit"
	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/middleware"
	"github.com/deckline/pairing-server-go/internal/service"
	"github.com/deckline/pairing-server-go/internal/util"
)

type PairingHandler struct {
	pairingService *service.PairingService
	tokenService   *service.TokenService
	sessionAuth    func(http.Handler) http.Handler
	registerLimit  func(http.Handler) http.Handler
	claimLimit     func(http.Handler) http.Handler
	exchangeLimit  func(http.Handler) http.Handler
}

func NewPairingHandler(
	pairingService *service.PairingService,
	tokenService *service.TokenService,
	sessionAuth func(http.Handler) http.Handler,
	registerLimit func(http.Handler) http.Handler,
	claimLimit func(http.Handler) http.Handler,
	exchangeLimit func(http.Handler) http.Handler,
) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		tokenService:   tokenService,
		sessionAuth:    sessionAuth,
		registerLimit:  registerLimit,
		claimLimit:     claimLimit,
		exchangeLimit:  exchangeLimit,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.registerLimit).Post("/register", h.Register)
	r.With(h.sessionAuth, h.claimLimit).Post("/claim", h.Claim)
	r.With(h.exchangeLimit).Post("/exchange", h.Exchange)

	return r
}

type registerRequest struct {
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// POST /v1/pairing/register
func (h *PairingHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	// Body is optional: a bare POST registers without a fingerprint.
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.ValidationError("Malformed JSON body"))
			return
		}
	}

	var fingerprint *string
	if req.DeviceFingerprint != "" {
		if !util.IsValidFingerprint(req.DeviceFingerprint) {
			writeError(w, apperrors.InvalidInput("deviceFingerprint", "must be a 64-character hex digest"))
			return
		}
		fingerprint = &req.DeviceFingerprint
	}

	result, err := h.pairingService.Register(r.Context(), fingerprint)
	if err != nil {
		log.Error().Err(err).Msg("failed to register pairing request")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDeviceRegister,
		DeviceID: result.DeviceID,
	})

	writeJSON(w, http.StatusOK, result)
}

type claimRequest struct {
	Code string `json:"code"`
}

// POST /v1/pairing/claim — requires a verified web session; the claimed
// identity comes from the session, never from the request body.
func (h *PairingHandler) Claim(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetWebSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("Session required"))
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed JSON body"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}
	if !util.IsValidCode(util.NormalizeCode(req.Code)) {
		// Shape failures get the same generic answer as unknown codes.
		writeError(w, apperrors.InvalidOrExpiredCode())
		return
	}

	if err := h.pairingService.Claim(r.Context(), req.Code, session.UserID, session.UserEmail); err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:   audit.EventPairingClaimFail,
			UserID: session.UserID,
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventPairingClaim,
		UserID: session.UserID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type exchangeRequest struct {
	DeviceID          string `json:"deviceId"`
	Code              string `json:"code"`
	DeviceName        string `json:"deviceName,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

// POST /v1/pairing/exchange — polled by the device until the code is
// claimed. NOT_LINKED_YET means keep polling; INVALID_CODE means give up.
func (h *PairingHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed JSON body"))
		return
	}
	if req.DeviceID == "" {
		writeError(w, apperrors.MissingRequired("deviceId"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}
	if !util.IsValidDeviceID(req.DeviceID) {
		writeError(w, apperrors.InvalidInput("deviceId", "must be a 32-character hex identifier"))
		return
	}
	if !util.IsValidCode(util.NormalizeCode(req.Code)) {
		writeError(w, apperrors.InvalidCode())
		return
	}
	if req.DeviceName != "" && !util.IsValidDeviceName(req.DeviceName) {
		writeError(w, apperrors.InvalidInput("deviceName", "must be 1-100 characters"))
		return
	}
	var fingerprint *string
	if req.DeviceFingerprint != "" {
		if !util.IsValidFingerprint(req.DeviceFingerprint) {
			writeError(w, apperrors.InvalidInput("deviceFingerprint", "must be a 64-character hex digest"))
			return
		}
		fingerprint = &req.DeviceFingerprint
	}

	result, err := h.tokenService.Exchange(r.Context(), req.DeviceID, req.Code, req.DeviceName, fingerprint)
	if err != nil {
		if code := apperrors.GetCode(err); code == apperrors.ErrCodeInternal || code == apperrors.ErrCodeDatabase {
			log.Error().Err(err).Msg("failed to exchange pairing code")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventTokenExchange,
		DeviceID: req.DeviceID,
	})

	writeJSON(w, http.StatusOK, result)
}
