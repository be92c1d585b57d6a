package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/core"
)

// errorBody matches the {"detail": "..."} shape the mobile client
// already parses.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeServiceError maps service errors onto the fixed status codes
// the client depends on.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
	case errors.Is(err, core.ErrGoogleNotLinked):
		writeError(w, http.StatusUnauthorized, core.ErrGoogleNotLinked.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ContactBook API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": version,
		"services": map[string]string{
			"google_contacts": "available",
			"clerk_auth":      "available",
		},
	})
}

func (s *Server) handleFetchContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}

	list, err := s.svc.Fetch(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to fetch Google contacts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCachedContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}

	list, err := s.svc.Cached(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to fetch cached contacts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}

	if err := s.svc.ClearCache(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "Failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

func (s *Server) handleGoogleLink(w http.ResponseWriter, r *http.Request) {
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}

	authURL, err := s.svc.LinkURL(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to link Google account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	if err := s.svc.CompleteLink(r.Context(), id, code, state); err != nil {
		s.logger.Warn("google link failed", zap.String("user_id", id.UserID), zap.Error(err))
		writeError(w, http.StatusBadRequest, "Failed to link Google account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Google account linked successfully"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "sync disabled")
		return
	}
	id, ok := core.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, core.ErrInvalidToken.Error())
		return
	}
	s.hub.ServeWS(w, r, id.UserID)
}
