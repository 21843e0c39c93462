package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/dashboard"
	"github.com/rurallite/rurallite/internal/gate"
	"github.com/rurallite/rurallite/internal/lessons"
	"github.com/rurallite/rurallite/internal/observability"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/quizzes"
	"github.com/rurallite/rurallite/internal/rbac"
	"github.com/rurallite/rurallite/internal/users"
	"github.com/rurallite/rurallite/jobs"
	"github.com/rurallite/rurallite/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Gate             *gate.Gate
	Metrics          *observability.Metrics
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	LessonsHandler   *lessons.Handler
	QuizzesHandler   *quizzes.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with RuralLite defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
		Gate:    params.Gate,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			env := ""
			if params.Config != nil {
				env = params.Config.AppEnv
			}
			httpx.OK(w, http.StatusOK, "Service is healthy", map[string]string{"status": "ok", "env": env}, nil)
		})
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountAPIRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountAPIRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.UsersHandler != nil {
				params.UsersHandler.MountAdminRoutes(r)
			}
			if params.JobHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(rbac.RequireRole(auth.RoleAdmin))
					r.Route("/jobs", params.JobHandler.MountRoutes)
				})
			}
		})
		if params.LessonsHandler != nil {
			r.Route("/lessons", params.LessonsHandler.MountRoutes)
		}
		if params.QuizzesHandler != nil {
			r.Route("/quizzes", params.QuizzesHandler.MountRoutes)
			r.Route("/quiz-results", params.QuizzesHandler.MountResultRoutes)
			r.Route("/quiz-history", params.QuizzesHandler.MountHistoryRoutes)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "Route not found", nil)
		})
	})

	if params.AuthHandler != nil {
		params.AuthHandler.MountPageRoutes(r)
	}
	if params.DashboardHandler != nil {
		params.DashboardHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		params.UsersHandler.MountPageRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
