package lessons_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/lessons"
	"github.com/rurallite/rurallite/internal/platform/cache"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/shared"
)

type stubRepo struct {
	mu        sync.Mutex
	nextID    int64
	lessons   map[int64]lessons.Lesson
	listCalls int
}

func newStubRepo() *stubRepo {
	return &stubRepo{lessons: make(map[int64]lessons.Lesson)}
}

func (s *stubRepo) List(ctx context.Context) ([]lessons.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]lessons.Lesson, 0, len(s.lessons))
	for id := s.nextID; id > 0; id-- {
		if l, ok := s.lessons[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (*lessons.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &l, nil
}

func (s *stubRepo) Create(ctx context.Context, in lessons.Input, createdBy int64) (*lessons.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	l := lessons.Lesson{ID: s.nextID, Title: in.Title, Subject: in.Subject, Content: in.Content, CreatedBy: &createdBy, CreatedAt: now, UpdatedAt: now}
	s.lessons[l.ID] = l
	return &l, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, in lessons.Input) (*lessons.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	l.Title, l.Subject, l.Content = in.Title, in.Subject, in.Content
	s.lessons[id] = l
	return &l, nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lessons[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.lessons, id)
	return nil
}

var teacher = auth.Identity{ID: 5, Email: "tom@example.com", Role: auth.RoleTeacher}

func newRouter(t *testing.T, repo *stubRepo) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := lessons.NewService(repo, cache.NewVersioned(client, "lessons", time.Minute), nil)
	r := chi.NewRouter()
	r.Route("/api/lessons", lessons.NewHandler(svc, httpx.Responder{}).MountRoutes)
	return r
}

func call(t *testing.T, h http.Handler, who *auth.Identity, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if who != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), *who))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	var env map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	return res.Code, env
}

func TestLessonLifecycle(t *testing.T) {
	repo := newStubRepo()
	router := newRouter(t, repo)

	code, env := call(t, router, &teacher, http.MethodPost, "/api/lessons", `{"title":"Fractions","content":"Halves and quarters"}`)
	require.Equal(t, http.StatusCreated, code)
	data := env["data"].(map[string]any)
	assert.Equal(t, lessons.DefaultSubject, data["subject"])
	assert.EqualValues(t, 5, data["createdBy"])

	code, env = call(t, router, nil, http.MethodGet, "/api/lessons/1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Fractions", env["data"].(map[string]any)["title"])

	code, _ = call(t, router, &teacher, http.MethodPut, "/api/lessons/1", `{"title":"Fractions II","subject":"Math","content":"Thirds"}`)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, router, nil, http.MethodGet, "/api/lessons", "")
	require.Equal(t, http.StatusOK, code)
	list := env["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Math", list[0].(map[string]any)["subject"])

	code, _ = call(t, router, &teacher, http.MethodDelete, "/api/lessons/1", "")
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, router, nil, http.MethodGet, "/api/lessons/1", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Lesson not found", env["message"])
}

func TestLessonListIsCachedUntilMutation(t *testing.T) {
	repo := newStubRepo()
	router := newRouter(t, repo)

	call(t, router, nil, http.MethodGet, "/api/lessons", "")
	call(t, router, nil, http.MethodGet, "/api/lessons", "")
	assert.Equal(t, 1, repo.listCalls)

	call(t, router, &teacher, http.MethodPost, "/api/lessons", `{"title":"Soil","content":"Types of soil"}`)
	_, env := call(t, router, nil, http.MethodGet, "/api/lessons", "")
	assert.Equal(t, 2, repo.listCalls)
	assert.Len(t, env["data"].([]any), 1)
}

func TestLessonWritesRequireStaff(t *testing.T) {
	router := newRouter(t, newStubRepo())
	student := auth.Identity{ID: 9, Email: "s@example.com", Role: auth.RoleStudent}

	code, env := call(t, router, &student, http.MethodPost, "/api/lessons", `{"title":"x","content":"y"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied. Required role: ADMIN or TEACHER", env["message"])

	code, _ = call(t, router, nil, http.MethodDelete, "/api/lessons/1", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLessonValidation(t *testing.T) {
	router := newRouter(t, newStubRepo())

	code, env := call(t, router, &teacher, http.MethodPost, "/api/lessons", `{"title":"  ","content":"y"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, httpx.CodeValidation, env["error"].(map[string]any)["code"])

	code, env = call(t, router, nil, http.MethodGet, "/api/lessons/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid lesson ID", env["message"])
}
