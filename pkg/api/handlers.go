package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// errorResponse is a standard error payload. Kind is set for errors
// raised by the results package.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// errorStatus maps an error to its HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, results.ErrBuildNotFound),
		errors.Is(err, results.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, results.ErrUnsupportedFormat),
		errors.Is(err, results.ErrMalformedContent),
		errors.Is(err, results.ErrUnknownStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with the status for its kind. Internal errors are
// logged and reported without detail.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)

	if status == http.StatusInternalServerError {
		s.log.WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")

		writeJSON(w, status, errorResponse{Error: "internal error"})

		return
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  results.Kind(err),
	})
}

// parseUintParam extracts and validates a numeric URL parameter.
func parseUintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter is required", name)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return uint(id), nil
}

// parseIDParam extracts and validates the {id} URL parameter.
func parseIDParam(r *http.Request) (uint, error) {
	return parseUintParam(r, "id")
}

// --- Public handlers ---

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig returns the public server configuration.
func (s *server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"auth": map[string]any{
			"basic_enabled":  s.cfg.Auth.Basic.Enabled,
			"anonymous_read": s.cfg.Auth.AnonymousRead,
		},
		"upload": map[string]any{
			"max_bytes":        s.maxUploadBytes(),
			"archive_enabled":  s.archiver != nil,
			"supported_suffix": []string{".csv", ".json"},
		},
		"metrics_enabled": s.cfg.Server.Metrics,
	}

	ingest := map[string]any{
		"enabled":         false,
		"discovery_paths": []string{},
	}

	if s.cfg.Ingest != nil && s.cfg.Ingest.Enabled {
		paths := []string{}

		switch {
		case s.cfg.Ingest.S3 != nil:
			paths = append(paths, s.cfg.Ingest.S3.DiscoveryPaths...)
		case s.cfg.Ingest.Local != nil:
			for k := range s.cfg.Ingest.Local.DiscoveryPaths {
				paths = append(paths, k)
			}
		}

		slices.Sort(paths)

		ingest["enabled"] = true
		ingest["discovery_paths"] = paths
	}

	resp["ingest"] = ingest

	writeJSON(w, http.StatusOK, resp)
}

// --- Auth handlers ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User userResponse `json:"user"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Source   string `json:"source"`
}

// handleLogin authenticates a user with username/password and creates a session.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "invalid request body"})

		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "username and password are required"})

		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{Error: "invalid credentials"})

		return
	}

	token, err := generateSessionToken()
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	ttl := s.cfg.Auth.SessionTTL

	session := &store.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.writeError(w, r, err)

		return
	}

	http.SetCookie(w, sessionCookie(token, ttl, r.TLS != nil))

	s.log.WithField("user", user.Username).Info("User logged in")

	writeJSON(w, http.StatusOK, loginResponse{
		User: toUserResponse(user),
	})
}

// handleLogout destroys the current session.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		_ = s.store.DeleteSession(r.Context(), cookie.Value)
	}

	http.SetCookie(w, expiredSessionCookie())

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMe returns the currently authenticated user.
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{Error: "not authenticated"})

		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Source:   u.Source,
	}
}
