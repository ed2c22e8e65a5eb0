package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

var invalidRoleMessage = fmt.Sprintf(
	"role must be %q, %q or %q",
	config.RoleAdmin, config.RoleTester, config.RoleViewer,
)

// --- User management ---

// handleListUsers returns all users.
func (s *server) handleListUsers(
	w http.ResponseWriter, r *http.Request,
) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleCreateUser creates a new admin-sourced user.
func (s *server) handleCreateUser(
	w http.ResponseWriter, r *http.Request,
) {
	var req createUserRequest
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

	if !config.ValidRole(req.Role) {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: invalidRoleMessage})

		return
	}

	hash, err := bcrypt.GenerateFromPassword(
		[]byte(req.Password), bcrypt.DefaultCost,
	)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	user := &store.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         req.Role,
		Source:       store.SourceAdmin,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeJSON(w, http.StatusConflict,
			errorResponse{Error: "username already exists"})

		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type updateUserRequest struct {
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// handleUpdateUser updates a user's password and/or role.
func (s *server) handleUpdateUser(
	w http.ResponseWriter, r *http.Request,
) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: err.Error()})

		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "invalid request body"})

		return
	}

	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{Error: "user not found"})

		return
	}

	// Prevent changing own role.
	currentUser := userFromContext(r.Context())
	if currentUser != nil && currentUser.ID == user.ID && req.Role != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "cannot change your own role"})

		return
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword(
			[]byte(*req.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			s.writeError(w, r, err)

			return
		}

		user.PasswordHash = string(hash)
	}

	if req.Role != nil {
		if !config.ValidRole(*req.Role) {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{Error: invalidRoleMessage})

			return
		}

		user.Role = *req.Role
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleDeleteUser removes a user by ID and revokes their sessions.
func (s *server) handleDeleteUser(
	w http.ResponseWriter, r *http.Request,
) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: err.Error()})

		return
	}

	// Prevent self-deletion.
	currentUser := userFromContext(r.Context())
	if currentUser != nil && currentUser.ID == id {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "cannot delete yourself"})

		return
	}

	if err := s.store.DeleteSessionsByUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)

		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
