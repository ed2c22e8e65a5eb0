package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.Server.Metrics {
		r.Use(s.metrics.middleware)
	}

	authLimit := s.rateLimit(s.cfg.Server.RateLimit.Auth)
	apiLimit := s.rateLimit(s.cfg.Server.RateLimit.Authenticated)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)

		if s.cfg.Server.Metrics {
			r.Method(http.MethodGet, "/metrics", s.metrics.handler())
		}

		// Auth endpoints.
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimit)

			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiLimit)

			// Reads, public when anonymous read is enabled.
			r.Group(func(r chi.Router) {
				if !s.cfg.Auth.AnonymousRead {
					r.Use(s.requireAuth)
				}

				r.Get("/builds", s.handleListBuilds)
				r.Get("/builds/{id}", s.handleGetBuild)
				r.Get("/builds/{id}/stats", s.handleBuildStats)

				r.Get("/testcases", s.handleListTestCases)
				r.Get("/testcases/build/{buildId}", s.handleListTestCasesByBuild)
				r.Get("/testcases/compare", s.handleCompareBuilds)
				r.Get("/testcases/{id}", s.handleGetTestCase)

				r.Get("/regression", s.handleListRegressionRuns)
				r.Get("/regression/build/{buildId}", s.handleListRegressionRunsByBuild)

				r.Get("/dashboard/stats", s.handleDashboardStats)
			})

			// Writes.
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Use(s.requireRole(config.RoleAdmin, config.RoleTester))

				r.Post("/builds", s.handleCreateBuild)
				r.Put("/builds/{id}", s.handleUpdateBuild)

				r.Post("/testcases", s.handleCreateTestCase)
				r.Post("/testcases/import/{buildId}", s.handleImport)
				r.Put("/testcases/{id}", s.handleUpdateTestCase)
				r.Delete("/testcases/{id}", s.handleDeleteTestCase)

				r.Post("/regression/execute/{buildId}", s.handleExecuteRegressionRun)
			})

			// Admin only.
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Use(s.requireRole(config.RoleAdmin))

				r.Delete("/builds/{id}", s.handleDeleteBuild)

				r.Get("/admin/users", s.handleListUsers)
				r.Post("/admin/users", s.handleCreateUser)
				r.Put("/admin/users/{id}", s.handleUpdateUser)
				r.Delete("/admin/users/{id}", s.handleDeleteUser)
			})
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the API config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
