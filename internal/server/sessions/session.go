// Package sessions implements server-side sessions: a Store keyed by opaque
// random ids, a signed cookie codec, and HTTP middleware that attaches the
// current session to each request.
package sessions

import (
	"context"
	"time"
)

// Session is the server-side state behind a session cookie. An empty Email
// means the visitor has not signed up or logged in.
type Session struct {
	ID        string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Authenticated reports whether an email has been bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.Email != ""
}

// Store abstracts session CRUD. Expired sessions are reported as
// common.ErrorNotFound.
type Store interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	SetEmail(ctx context.Context, id, email string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
