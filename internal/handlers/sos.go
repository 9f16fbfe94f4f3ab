package handlers

import (
	"net/http"

	"sos-bknd/internal/models"
	"sos-bknd/internal/services"
	"sos-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SOSHandler struct {
	service *services.DispatchService
	logr    *zap.Logger
}

func NewSOSHandler(svc *services.DispatchService, logr *zap.Logger) *SOSHandler {
	return &SOSHandler{service: svc, logr: logr}
}

// Trigger handles POST /api/v1/sos/trigger
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	var req services.TriggerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.TriggerSOS(r.Context(), caller, req)
	if err != nil {
		writeError(w, h.logr, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    res,
	})
}

type responseUpdate struct {
	ResponseStatus string `json:"response_status"`
}

// UpdateResponse handles PUT /api/v1/sos/alerts/{alertId}/response
func (h *SOSHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	alertID, ok := alertIDParam(w, r)
	if !ok {
		return
	}

	var req responseUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	alert, err := h.service.UpdateResponse(r.Context(), caller, alertID, req.ResponseStatus)
	if err != nil {
		writeError(w, h.logr, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    alert.Redacted(),
	})
}

// VolunteerAlerts handles GET /api/v1/sos/volunteer-alerts?status=EnRoute,Assisting
func (h *SOSHandler) VolunteerAlerts(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	statuses := utils.ParseQueryList(r.URL.Query(), "status")
	alerts, err := h.service.VolunteerAlerts(r.Context(), caller, statuses)
	if err != nil {
		writeError(w, h.logr, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    redactAll(alerts),
		"count":   len(alerts),
	})
}

// CitizenAlerts handles GET /api/v1/sos/my-alerts
func (h *SOSHandler) CitizenAlerts(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}

	alerts, err := h.service.CitizenAlerts(r.Context(), caller)
	if err != nil {
		writeError(w, h.logr, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    redactAll(alerts),
		"count":   len(alerts),
	})
}

// GetAlert handles GET /api/v1/sos/alerts/{alertId}
func (h *SOSHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	alertID, ok := alertIDParam(w, r)
	if !ok {
		return
	}

	alert, err := h.service.GetAlert(r.Context(), caller, alertID)
	if err != nil {
		writeError(w, h.logr, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    alert.Redacted(),
	})
}

func alertIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "alertId"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid alert id")
		return uuid.Nil, false
	}
	return id, true
}

func redactAll(alerts []models.SOSAlert) []*models.SOSAlert {
	out := make([]*models.SOSAlert, 0, len(alerts))
	for i := range alerts {
		out = append(out, alerts[i].Redacted())
	}
	return out
}
