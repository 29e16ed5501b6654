package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
}

// writeError maps domain error kinds onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message, details go to the log.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAuthenticationFailed):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, models.ErrRoleMismatch),
		errors.Is(err, models.ErrPermissionDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrProfileNotFound),
		errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, models.ErrValidationFailed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrUploadFailed):
		logger.Error.Printf("Upload failure: %v", err)
		http.Error(w, "Upload failed", http.StatusBadGateway)
	default:
		logger.Error.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// bearerToken pulls the session token out of the configured auth header.
func bearerToken(r *http.Request, header string) string {
	value := r.Header.Get(header)
	if !strings.HasPrefix(value, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(value, "Bearer ")
}

// requireSession validates the bearer token and returns the session's
// profile id.
func requireSession(r *http.Request, service *app.Service) (string, error) {
	token := bearerToken(r, service.Config.Auth.TokenHeader)
	return service.Sessions.Current(r.Context(), token)
}
