package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type AuthHandler struct {
	service *app.Service
}

func NewAuthHandler(service *app.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type loginRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || !req.Role.Valid() {
		http.Error(w, "email, password and a valid role are required", http.StatusBadRequest)
		return
	}

	token, err := h.service.Sessions.SignIn(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		logger.Debug.Printf("Login failed for %s: %v", req.Email, err)
		writeError(w, err)
		return
	}

	// resolve synchronously so the caller sees a ready state right after
	// login; the auth event feed covers everyone else
	profileID, err := h.service.Sessions.Current(r.Context(), token)
	if err == nil {
		if err := h.service.Syncer.SetUser(profileID); err != nil {
			logger.Error.Printf("Failed to resolve profile after login: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r, h.service.Config.Auth.TokenHeader)
	if err := h.service.Sessions.SignOut(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	h.service.Syncer.ClearUser()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if _, err := requireSession(r, h.service); err != nil {
		writeError(w, err)
		return
	}

	user := h.service.Syncer.User()
	if user == nil {
		writeError(w, models.ErrProfileNotFound)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
