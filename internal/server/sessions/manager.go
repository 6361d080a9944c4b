package sessions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voicedrop/internal/common"
	"github.com/dmitrijs2005/voicedrop/internal/logging"
)

type ctxKey string

const sessionKey ctxKey = "session"

// Manager binds a Store to HTTP cookies.
type Manager struct {
	store      Store
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	logger     logging.Logger
}

type ManagerOptions struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

func NewManager(store Store, opts ManagerOptions, l logging.Logger) *Manager {
	return &Manager{
		store:      store,
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		logger:     l.With("module", "sessions"),
	}
}

// Middleware loads the session named by the request cookie, creating a new
// one (and setting the cookie) when the cookie is missing, tampered with or
// points to an expired session.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s, ok := m.Resolve(r)
		if !ok {
			var err error
			s, err = m.store.Create(ctx)
			if err != nil {
				m.logger.Error(ctx, "session create failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if err := m.writeCookie(w, s.ID); err != nil {
				m.logger.Error(ctx, "session cookie signing failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, s)))
	})
}

// Resolve returns the live session referenced by the request cookie without
// creating one.
func (m *Manager) Resolve(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}

	id, err := ParseSessionID(c.Value, m.secret)
	if err != nil {
		return nil, false
	}

	s, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			m.logger.Warn(r.Context(), "session lookup failed", "error", err)
		}
		return nil, false
	}

	return s, true
}

// SetEmail binds email to the request's session and refreshes the cookie.
func (m *Manager) SetEmail(w http.ResponseWriter, r *http.Request, email string) error {
	s := FromContext(r.Context())
	if s == nil {
		return common.ErrorNotFound
	}

	updated, err := m.store.SetEmail(r.Context(), s.ID, email)
	if err != nil {
		return err
	}
	*s = *updated

	return m.writeCookie(w, s.ID)
}

// Destroy deletes the request's session and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if s := FromContext(r.Context()); s != nil {
		if err := m.store.Delete(r.Context(), s.ID); err != nil {
			return err
		}
		*s = Session{}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) writeCookie(w http.ResponseWriter, id string) error {
	token, err := SignSessionID(id, m.secret, m.ttl)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// NewContext attaches s to ctx. Handlers under test use it in place of Middleware.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}
