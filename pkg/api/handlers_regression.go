package api

import (
	"net/http"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

type dashboardStatsResponse struct {
	TotalBuilds    int64   `json:"totalBuilds"`
	TotalTestCases int64   `json:"totalTestCases"`
	PassedTests    int64   `json:"passedTests"`
	FailedTests    int64   `json:"failedTests"`
	PassPercentage float64 `json:"passPercentage"`
}

// handleListRegressionRuns returns every regression run, newest first.
func (s *server) handleListRegressionRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRegressionRuns(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleListRegressionRunsByBuild(w http.ResponseWriter, r *http.Request) {
	buildID, err := parseUintParam(r, "buildId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	if _, err := s.store.GetBuild(r.Context(), buildID); err != nil {
		s.writeError(w, r, err)

		return
	}

	runs, err := s.store.ListRegressionRunsByBuild(r.Context(), buildID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleExecuteRegressionRun snapshots the current counts of a build.
func (s *server) handleExecuteRegressionRun(w http.ResponseWriter, r *http.Request) {
	buildID, err := parseUintParam(r, "buildId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	run, err := s.results.ExecuteRegressionRun(r.Context(), buildID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// handleDashboardStats summarizes all stored builds and test cases.
func (s *server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	builds, err := s.store.CountBuilds(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	counts, err := s.store.CountTestCasesByStatus(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	stats := results.FromCounts(counts)

	writeJSON(w, http.StatusOK, dashboardStatsResponse{
		TotalBuilds:    builds,
		TotalTestCases: stats.Total,
		PassedTests:    stats.Passed,
		FailedTests:    stats.Failed,
		PassPercentage: stats.PassPercentage,
	})
}
