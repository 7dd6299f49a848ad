package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deckline/pairing-server-go/internal/audit"
	apperrors "github.com/deckline/pairing-server-go/internal/errors"
	"github.com/deckline/pairing-server-go/internal/middleware"
	"github.com/deckline/pairing-server-go/internal/service"
	"github.com/deckline/pairing-server-go/internal/util"
)

// DeviceHandler serves the user-facing device management surface. All
// routes require a verified web session; ownership scoping happens in SQL.
type DeviceHandler struct {
	deviceService *service.DeviceService
	sessionAuth   func(http.Handler) http.Handler
}

func NewDeviceHandler(deviceService *service.DeviceService, sessionAuth func(http.Handler) http.Handler) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		sessionAuth:   sessionAuth,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.sessionAuth)
	r.Get("/", h.List)
	r.Patch("/{deviceId}", h.Rename)
	r.Delete("/{deviceId}", h.Revoke)

	return r
}

// GET /v1/devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetWebSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("Session required"))
		return
	}

	devices, err := h.deviceService.ListDevices(r.Context(), session.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type renameRequest struct {
	Name string `json:"name"`
}

// PATCH /v1/devices/{deviceId}
func (h *DeviceHandler) Rename(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetWebSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("Session required"))
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	if !util.IsValidDeviceID(deviceID) {
		writeError(w, apperrors.NotFound("Device"))
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Malformed JSON body"))
		return
	}
	if !util.IsValidDeviceName(req.Name) {
		writeError(w, apperrors.InvalidInput("name", "must be 1-100 characters"))
		return
	}

	if err := h.deviceService.RenameDevice(r.Context(), session.UserID, deviceID, req.Name); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDeviceRename,
		UserID:   session.UserID,
		DeviceID: deviceID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DELETE /v1/devices/{deviceId}
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetWebSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("Session required"))
		return
	}

	deviceID := chi.URLParam(r, "deviceId")
	if !util.IsValidDeviceID(deviceID) {
		writeError(w, apperrors.NotFound("Device"))
		return
	}

	if err := h.deviceService.RevokeDevice(r.Context(), session.UserID, deviceID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDeviceRevoke,
		UserID:   session.UserID,
		DeviceID: deviceID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
