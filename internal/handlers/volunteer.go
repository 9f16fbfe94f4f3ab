package handlers

import (
	"net/http"

	"sos-bknd/internal/models"
	"sos-bknd/internal/services"

	"go.uber.org/zap"
)

type VolunteerHandler struct {
	service *services.VolunteerService
	logr    *zap.Logger
}

func NewVolunteerHandler(svc *services.VolunteerService, logr *zap.Logger) *VolunteerHandler {
	return &VolunteerHandler{service: svc, logr: logr}
}

type locationUpdate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UpdateLocation handles PUT /api/v1/volunteers/me/location
func (h *VolunteerHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req locationUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeMessage(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	loc := models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.service.UpdateLocation(r.Context(), caller, loc); err != nil {
		writeError(w, h.logr, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pushTokenUpdate struct {
	PushToken string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/volunteers/me/push-token
func (h *VolunteerHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req pushTokenUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdatePushToken(r.Context(), caller, req.PushToken); err != nil {
		writeError(w, h.logr, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
