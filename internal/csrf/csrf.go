package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie the token endpoint sets; mutating requests
// must echo the same value in the HeaderName header.
const (
	CookieName = "csrftoken"
	HeaderName = "X-CSRFToken"
)

// Store keeps issued tokens in memory with an expiry.
type Store struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	done   chan struct{}
}

// NewStore creates a token store. Expired tokens are cleaned up
// periodically until Close is called.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Issue creates and records a fresh token.
func (s *Store) Issue() string {
	token := newToken()
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return token
}

// Valid reports whether the token was issued here and has not expired.
func (s *Store) Valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.tokens, token)
		return false
	}
	return true
}

// Close stops the cleanup goroutine.
func (s *Store) Close() {
	close(s.done)
}

func (s *Store) janitor() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, expiry := range s.tokens {
				if now.After(expiry) {
					delete(s.tokens, token)
				}
			}
			s.mu.Unlock()
		}
	}
}

// newToken produces a random URL-safe token, falling back to a UUID if
// the system entropy source fails.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// RegisterRoutes mounts the token issuing endpoint.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/csrf/", handleIssue(store))
}

func handleIssue(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := store.Issue()
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: false, // the browser editor reads it via document.cookie
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

// Require rejects mutating requests that lack a valid token matching the
// csrftoken cookie. Safe methods pass through.
func Require(store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(HeaderName)
			if !store.Valid(token) {
				http.Error(w, `{"error":"missing or invalid CSRF token"}`, http.StatusForbidden)
				return
			}
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value != token {
				http.Error(w, `{"error":"CSRF token does not match cookie"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
