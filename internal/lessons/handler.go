package lessons

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/rbac"
	"github.com/rurallite/rurallite/internal/shared"
)

// Handler exposes lessons over HTTP.
type Handler struct {
	service   *Service
	responder httpx.Responder
}

// NewHandler builds the handler.
func NewHandler(service *Service, responder httpx.Responder) *Handler {
	return &Handler{service: service, responder: responder}
}

// MountRoutes registers /api/lessons. Reads are public; writes need ADMIN
// or TEACHER.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireRole(auth.RoleAdmin, auth.RoleTeacher))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.List(r.Context())
	if err != nil {
		h.responder.Error(w, shared.FromRequest(r, "GET /api/lessons"), err, "Failed to fetch lessons")
		return
	}
	httpx.OK(w, http.StatusOK, "Lessons fetched successfully", lessons, map[string]any{"count": len(lessons)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "GET /api/lessons/{id}")
	id, ok := lessonID(w, r)
	if !ok {
		return
	}
	lesson, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, rc, err, "Failed to fetch lesson")
		return
	}
	httpx.OK(w, http.StatusOK, "Lesson fetched successfully", lesson, nil)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/lessons")
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	lesson, err := h.service.Create(r.Context(), in, actor.ID)
	if err != nil {
		h.fail(w, rc, err, "Failed to create lesson")
		return
	}
	httpx.OK(w, http.StatusCreated, "Lesson created successfully", lesson, nil)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "PUT /api/lessons/{id}")
	id, ok := lessonID(w, r)
	if !ok {
		return
	}
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	lesson, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, rc, err, "Failed to update lesson")
		return
	}
	httpx.OK(w, http.StatusOK, "Lesson updated successfully", lesson, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "DELETE /api/lessons/{id}")
	id, ok := lessonID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, rc, err, "Failed to delete lesson")
		return
	}
	httpx.OK(w, http.StatusOK, "Lesson deleted successfully", nil, nil)
}

func (h *Handler) fail(w http.ResponseWriter, rc shared.RequestContext, err error, fallback string) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "Lesson not found", nil)
		return
	}
	h.responder.Error(w, rc, err, fallback)
}

func lessonID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid lesson ID", nil)
		return 0, false
	}
	return id, true
}
