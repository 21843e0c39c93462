package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/rbac"
	"github.com/rurallite/rurallite/internal/shared"
	"github.com/rurallite/rurallite/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	responder httpx.Responder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, responder: responder}
}

// MountAPIRoutes registers /api/users routes. The gate admits every role;
// creating accounts additionally requires ADMIN.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.With(rbac.RequireRole(auth.RoleAdmin)).Post("/", h.createUser)
}

// MountAdminRoutes registers the /api/admin user management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireRole(auth.RoleAdmin))
		r.Get("/users", h.adminListUsers)
		r.Delete("/users", h.adminDeleteUser)
		r.Patch("/users", h.adminChangeRole)
		r.Get("/testdb", h.testDB)
	})
}

// MountPageRoutes registers the HTML users page.
func (h *Handler) MountPageRoutes(r chi.Router) {
	r.Get("/users", h.usersPage)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "GET /api/users")
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.responder.Error(w, rc, err, "Failed to fetch users")
		return
	}
	httpx.OK(w, http.StatusOK, "Users fetched successfully", users, map[string]any{"total": len(users)})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/users")
	var req auth.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		h.responder.Error(w, rc, err, "Failed to create user")
		return
	}
	httpx.OK(w, http.StatusCreated, "User created successfully", user, nil)
}

func (h *Handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "GET /api/admin/users")
	id, _ := auth.IdentityFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.responder.Error(w, rc, err, "Failed to fetch users")
		return
	}
	httpx.OK(w, http.StatusOK,
		fmt.Sprintf("Admin access granted. Viewing all %d users.", len(users)),
		users,
		map[string]any{"adminEmail": id.Email, "totalUsers": len(users)})
}

func (h *Handler) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "DELETE /api/admin/users")
	targetID, err := userIDParam(r)
	if err != nil {
		h.responder.Error(w, rc, err, "")
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	deleted, err := h.service.DeleteUser(r.Context(), actor, targetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found", nil)
			return
		}
		h.responder.Error(w, rc, err, "Failed to delete user")
		return
	}
	h.logger.Info("user deleted", append(rc.LogAttrs(), slog.Int64("user_id", deleted.ID), slog.String("admin", actor.Email))...)
	httpx.OK(w, http.StatusOK, "User deleted successfully", deleted, nil)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) adminChangeRole(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "PATCH /api/admin/users")
	targetID, err := userIDParam(r)
	if err != nil {
		h.responder.Error(w, rc, err, "")
		return
	}
	var req changeRoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), actor, targetID, req.Role)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found", nil)
			return
		}
		h.responder.Error(w, rc, err, "Failed to update user role")
		return
	}
	httpx.OK(w, http.StatusOK, "User role updated successfully", user, nil)
}

func (h *Handler) testDB(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "GET /api/admin/testdb")
	diag, err := h.service.Diagnostics(r.Context())
	if err != nil {
		h.responder.Error(w, rc, err, "Test DB check failed. Please verify PG_DSN, network access, and database status.")
		return
	}
	httpx.OK(w, http.StatusOK, "Database connection successful.", diag, nil)
}

func (h *Handler) usersPage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", append(shared.FromRequest(r, "GET /users").LogAttrs(), slog.Any("error", err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	viewData := view.TemplateData{
		Title:       "Users",
		CSRFToken:   h.csrf.EnsureToken(w, r),
		Flash:       h.sessions.PopFlash(w, r),
		CurrentPath: r.URL.Path,
		Viewer:      auth.ViewerFor(id),
		Data:        users,
	}
	if err := h.templates.Render(w, "pages/users.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func userIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		return 0, httpx.Validation("User ID is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.Validation("Invalid user ID")
	}
	return id, nil
}
