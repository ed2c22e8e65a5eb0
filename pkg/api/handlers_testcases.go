package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// multipartMemory is the part of a multipart upload kept in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

type testCaseRequest struct {
	Name        string   `json:"name"`
	Module      string   `json:"module"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Duration    *float64 `json:"duration"`
	BuildID     *uint    `json:"buildId"`
}

// importErrorResponse reports a failed import. Persisted counts the
// records saved before the failure.
type importErrorResponse struct {
	errorResponse
	Persisted int `json:"persisted"`
}

func decodeTestCaseRequest(w http.ResponseWriter, r *http.Request) (*testCaseRequest, bool) {
	var req testCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "invalid request body"})

		return nil, false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "name is required"})

		return nil, false
	}

	return &req, true
}

func (s *server) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	testCases, err := s.store.ListTestCases(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, testCases)
}

// handleListTestCasesByBuild returns the test cases of one build.
func (s *server) handleListTestCasesByBuild(w http.ResponseWriter, r *http.Request) {
	buildID, err := parseUintParam(r, "buildId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if _, err := s.store.GetBuild(r.Context(), buildID); err != nil {
		s.writeError(w, r, err)

		return
	}

	testCases, err := s.store.ListTestCasesByBuild(r.Context(), buildID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, testCases)
}

func (s *server) handleGetTestCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	tc, err := s.store.GetTestCase(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, tc)
}

// handleCreateTestCase stores a manually entered test case. The status
// defaults to PENDING.
func (s *server) handleCreateTestCase(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTestCaseRequest(w, r)
	if !ok {
		return
	}

	tc := &store.TestCase{
		Name:        req.Name,
		Module:      req.Module,
		Description: req.Description,
		Status:      req.Status,
		Duration:    req.Duration,
		BuildID:     req.BuildID,
	}

	if err := s.store.CreateTestCase(r.Context(), tc); err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, tc)
}

// handleUpdateTestCase replaces a test case. An empty status keeps the
// stored one.
func (s *server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	req, ok := decodeTestCaseRequest(w, r)
	if !ok {
		return
	}

	tc, err := s.store.GetTestCase(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	tc.Name = req.Name
	tc.Module = req.Module
	tc.Description = req.Description
	tc.Duration = req.Duration
	tc.BuildID = req.BuildID

	if req.Status != "" {
		tc.Status = req.Status
	}

	if err := s.store.UpdateTestCase(r.Context(), tc); err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, tc)
}

func (s *server) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if err := s.store.DeleteTestCase(r.Context(), id); err != nil {
		s.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCompareBuilds diffs the test cases of two builds by name.
func (s *server) handleCompareBuilds(w http.ResponseWriter, r *http.Request) {
	build1, err1 := strconv.ParseUint(r.URL.Query().Get("build1Id"), 10, 64)
	build2, err2 := strconv.ParseUint(r.URL.Query().Get("build2Id"), 10, 64)

	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "build1Id and build2Id must be numeric"})

		return
	}

	rows, err := s.results.CompareBuilds(r.Context(), uint(build1), uint(build2))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, rows)
}

func (s *server) maxUploadBytes() int64 {
	if s.cfg.Server.MaxUploadBytes > 0 {
		return s.cfg.Server.MaxUploadBytes
	}

	return config.DefaultMaxUploadBytes
}

// handleImport imports an uploaded CSV or JSON result file into a build.
// The upload is archived first when an archive is configured; archive
// failures do not block the import.
func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	buildID, err := parseUintParam(r, "buildId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	limit := s.maxUploadBytes()
	tooLarge := errorResponse{
		Error: "upload exceeds " + humanize.IBytes(uint64(limit)),
	}

	if r.ContentLength > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, tooLarge)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, tooLarge)

			return
		}

		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "invalid multipart form"})

		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Error: "file is required"})

		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	log := s.log.WithFields(logrus.Fields{
		"build_id": buildID,
		"file":     header.Filename,
		"size":     humanize.IBytes(uint64(len(content))),
	})

	if s.archiver != nil {
		key, err := s.archiver.Archive(r.Context(), buildID, header.Filename, content)
		if err != nil {
			log.WithError(err).Warn("Failed to archive upload")
		} else {
			log.WithField("key", key).Debug("Upload archived")
		}
	}

	records, err := s.results.Import(r.Context(), buildID, header.Filename, content)
	if err != nil {
		status := errorStatus(err)
		resp := importErrorResponse{
			errorResponse: errorResponse{
				Error: err.Error(),
				Kind:  results.Kind(err),
			},
			Persisted: len(records),
		}

		if status == http.StatusInternalServerError {
			log.WithError(err).Error("Import failed")

			resp.Error = "internal error"
		}

		writeJSON(w, status, resp)

		return
	}

	writeJSON(w, http.StatusOK, records)
}
