package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"sos-bknd/internal/middleware"
	"sos-bknd/internal/models"
	"sos-bknd/internal/services"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": msg,
	})
}

var statusByKind = map[services.ErrorKind]int{
	services.KindInvalidInput:      http.StatusBadRequest,
	services.KindNotAuthenticated:  http.StatusUnauthorized,
	services.KindNotAuthorized:     http.StatusForbidden,
	services.KindNotFound:          http.StatusNotFound,
	services.KindDependencyFailure: http.StatusBadGateway,
}

// writeError maps a service error onto its HTTP status. Dependency failures
// are logged in full and answered with the generic message only.
func writeError(w http.ResponseWriter, logr *zap.Logger, err error) {
	status, ok := http.StatusInternalServerError, false
	if kind := services.KindOf(err); kind != 0 {
		status, ok = statusByKind[kind]
	}
	if !ok {
		logr.Error("unhandled error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if status >= http.StatusInternalServerError {
		logr.Error("dependency failure", zap.Error(err))
	}
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeMessage(w, status, svcErr.Message)
		return
	}
	writeMessage(w, status, http.StatusText(status))
}

// callerOrReject reads the identity JWTAuth attached and writes 401 if missing.
func callerOrReject(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthenticated")
	}
	return identity, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
