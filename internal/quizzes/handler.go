package quizzes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/rbac"
	"github.com/rurallite/rurallite/internal/shared"
)

// Handler exposes quizzes, submissions and history over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	responder httpx.Responder
}

// NewHandler builds the handler.
func NewHandler(service *Service, logger *slog.Logger, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, responder: responder}
}

// MountRoutes registers /api/quizzes.
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

// MountResultRoutes registers POST /api/quiz-results.
func (h *Handler) MountResultRoutes(r chi.Router) {
	r.With(rbac.RequireRole(auth.AllRoles()...)).Post("/", h.submit)
}

// MountHistoryRoutes registers GET /api/quiz-history.
func (h *Handler) MountHistoryRoutes(r chi.Router) {
	r.With(rbac.RequireRole(auth.AllRoles()...)).Get("/", h.history)
}

func viewer(r *http.Request) *auth.Identity {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.List(r.Context(), viewer(r))
	if err != nil {
		h.responder.Error(w, shared.FromRequest(r, "GET /api/quizzes"), err, "Failed to fetch quizzes")
		return
	}
	httpx.OK(w, http.StatusOK, "Quizzes fetched successfully", quizzes, map[string]any{"count": len(quizzes)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), viewer(r))
	if err != nil {
		h.fail(w, shared.FromRequest(r, "GET /api/quizzes/{id}"), err, "Failed to fetch quiz")
		return
	}
	httpx.OK(w, http.StatusOK, "Quiz fetched successfully", quiz, nil)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/quizzes")
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	quiz, err := h.service.Create(r.Context(), in, actor)
	if err != nil {
		h.fail(w, rc, err, "Failed to create quiz")
		return
	}
	h.logger.Info("quiz created", append(rc.LogAttrs(), slog.String("quiz_id", quiz.ID), slog.Int64("author", actor.ID))...)
	httpx.OK(w, http.StatusCreated, "Quiz created successfully", quiz, nil)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "PUT /api/quizzes/{id}")
	var in Input
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	quiz, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, rc, err, "Failed to update quiz")
		return
	}
	httpx.OK(w, http.StatusOK, "Quiz updated successfully", quiz, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, shared.FromRequest(r, "DELETE /api/quizzes/{id}"), err, "Failed to delete quiz")
		return
	}
	httpx.OK(w, http.StatusOK, "Quiz deleted successfully", nil, nil)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/quiz-results")
	var sub Submission
	if err := httpx.DecodeJSON(w, r, &sub); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	caller, _ := auth.IdentityFromContext(r.Context())
	result, err := h.service.Submit(r.Context(), caller, sub)
	if err != nil {
		h.fail(w, rc, err, "Failed to submit quiz")
		return
	}
	httpx.OK(w, http.StatusCreated, "Quiz submitted successfully", result, nil)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	attempts, err := h.service.History(r.Context(), caller)
	if err != nil {
		h.responder.Error(w, shared.FromRequest(r, "GET /api/quiz-history"), err, "Failed to fetch quiz history")
		return
	}
	httpx.OK(w, http.StatusOK, "Quiz history fetched successfully", attempts, map[string]any{"count": len(attempts)})
}

func (h *Handler) fail(w http.ResponseWriter, rc shared.RequestContext, err error, fallback string) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "Quiz not found", nil)
		return
	}
	h.responder.Error(w, rc, err, fallback)
}
