package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/shared"
	"github.com/rurallite/rurallite/internal/view"
)

// Handler renders the dashboard page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions}
}

// MountRoutes registers / and /dashboard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/dashboard", h.show)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if token, ok := h.sessions.Token(r); ok && token != "" {
		target = "/dashboard"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	rc := shared.FromRequest(r, "GET /dashboard")
	data, err := h.service.Build(r.Context(), id)
	if errors.Is(err, ErrAccountGone) {
		h.logger.Info("session for deleted account", append(rc.LogAttrs(), slog.Int64("user_id", id.ID))...)
		h.sessions.Destroy(w)
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	if err != nil {
		h.logger.Error("build dashboard", append(rc.LogAttrs(), slog.Any("error", err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	viewData := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   h.csrf.EnsureToken(w, r),
		Flash:       h.sessions.PopFlash(w, r),
		CurrentPath: r.URL.Path,
		Viewer:      auth.ViewerFor(id),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/dashboard.html", viewData); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}
