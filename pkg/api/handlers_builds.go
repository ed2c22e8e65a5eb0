package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
)

type buildRequest struct {
	Version     string `json:"version"`
	Description string `json:"description"`
}

// decodeBuildRequest reads and validates a build request body.
func decodeBuildRequest(w http.ResponseWriter, r *http.Request) (*buildRequest, bool) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "invalid request body"})

		return nil, false
	}

	req.Version = strings.TrimSpace(req.Version)
	if req.Version == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "version is required"})

		return nil, false
	}

	return &req, true
}

// handleListBuilds returns all builds.
func (s *server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := s.store.ListBuilds(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, builds)
}

// handleGetBuild returns a single build.
func (s *server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	build, err := s.store.GetBuild(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, build)
}

// handleBuildStats returns the aggregate outcome counts of a build.
func (s *server) handleBuildStats(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	stats, err := s.results.BuildStats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBuildRequest(w, r)
	if !ok {
		return
	}

	build := &store.Build{
		Version:     req.Version,
		Description: req.Description,
	}

	if err := s.store.CreateBuild(r.Context(), build); err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, build)
}

func (s *server) handleUpdateBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	req, ok := decodeBuildRequest(w, r)
	if !ok {
		return
	}

	build := &store.Build{
		ID:          id,
		Version:     req.Version,
		Description: req.Description,
	}

	if err := s.store.UpdateBuild(r.Context(), build); err != nil {
		s.writeError(w, r, err)

		return
	}

	updated, err := s.store.GetBuild(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteBuild removes a build together with its test cases and
// regression runs.
func (s *server) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if err := s.store.DeleteBuild(r.Context(), id); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.log.WithField("build_id", id).Info("Build deleted")

	w.WriteHeader(http.StatusNoContent)
}
