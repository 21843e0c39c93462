package shared

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionCookieName is the cookie carrying the signed credential token for
// server-rendered pages.
const SessionCookieName = "token"

// FlashMessage represents a one-time notification shown on the next page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const flashCookieName = "flash"

// SessionManager writes and reads the page session cookie. The cookie value
// is the credential token itself; nothing is stored server-side.
type SessionManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(cookieName string, ttl time.Duration, secure bool) *SessionManager {
	if cookieName == "" {
		cookieName = SessionCookieName
	}
	return &SessionManager{cookieName: cookieName, ttl: ttl, secure: secure}
}

// Token returns the session token carried by the request, if any.
func (sm *SessionManager) Token(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Commit stores the token in the session cookie.
func (sm *SessionManager) Commit(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.ttl.Seconds()),
		Expires:  time.Now().Add(sm.ttl),
	})
}

// Destroy expires the session cookie.
func (sm *SessionManager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// AddFlash queues a flash message for the next rendered page.
func (sm *SessionManager) AddFlash(w http.ResponseWriter, msg FlashMessage) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg.Kind + "|" + msg.Message),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// PopFlash reads and clears the pending flash message.
func (sm *SessionManager) PopFlash(w http.ResponseWriter, r *http.Request) *FlashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(raw, "|")
	if !ok {
		return &FlashMessage{Message: raw}
	}
	return &FlashMessage{Kind: kind, Message: message}
}
