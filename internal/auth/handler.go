package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/shared"
	"github.com/rurallite/rurallite/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	responder      httpx.Responder
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		responder:      responder,
	}
}

// MountAPIRoutes registers the JSON auth endpoints under /api/auth.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Get("/me", h.me)
}

// MountPageRoutes registers the HTML login form and logout action.
func (h *Handler) MountPageRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.With(h.csrfManager.Middleware).Post("/login", h.handleLogin)
	r.With(h.csrfManager.Middleware).Post("/logout", h.handleLogout)
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/auth/signup")
	var req SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	user, err := h.service.Signup(r.Context(), req)
	if err != nil {
		h.responder.Error(w, rc, err, "Signup failed")
		return
	}
	h.logger.Info("user registered", append(rc.LogAttrs(), slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))...)
	httpx.OK(w, http.StatusCreated, "User registered successfully", user, nil)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "POST /api/auth/login")
	var req LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "Invalid JSON payload", nil)
		return
	}
	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Fail(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Invalid credentials", nil)
			return
		}
		h.responder.Error(w, rc, err, "Login failed")
		return
	}
	h.sessionManager.Commit(w, result.Token)
	httpx.OK(w, http.StatusOK, "Login successful", loginResponse{Token: result.Token, User: result.User}, nil)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.Destroy(w)
	httpx.OK(w, http.StatusOK, "Logout successful", nil, nil)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	rc := shared.FromRequest(r, "GET /api/auth/me")
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Authentication required. Token missing.", nil)
		return
	}
	user, err := h.service.Me(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found", nil)
			return
		}
		h.responder.Error(w, rc, err, "Failed to load profile")
		return
	}
	httpx.OK(w, http.StatusOK, "Profile fetched successfully", user, nil)
}

type loginForm struct {
	Email    string
	Password string
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	result, err := h.service.Login(r.Context(), LoginRequest(form))
	if err == nil {
		h.sessionManager.Commit(w, result.Token)
		h.sessionManager.AddFlash(w, shared.FlashMessage{Kind: "success", Message: "Welcome back, " + result.User.Name})
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	errs := make(map[string]string)
	var domainErr *httpx.Error
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		errs["general"] = "Invalid credentials"
	case errors.As(err, &domainErr):
		errs["general"] = domainErr.Message
	default:
		h.logger.Error("page login", append(shared.FromRequest(r, "POST /login").LogAttrs(), slog.Any("error", err))...)
		errs["general"] = "Login failed"
	}
	form.Password = ""
	h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.Destroy(w)
	h.sessionManager.AddFlash(w, shared.FlashMessage{Kind: "info", Message: "You have been signed out"})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   h.csrfManager.EnsureToken(w, r),
		Flash:       h.sessionManager.PopFlash(w, r),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		if status == http.StatusOK {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// ViewerFor adapts an identity for the page chrome.
func ViewerFor(id Identity) *view.Viewer {
	return &view.Viewer{ID: id.ID, Email: id.Email, Role: string(id.Role), RoleLabel: id.Role.Label()}
}
