// Package auth issues and verifies session tokens for club members.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Clark-Hu/movieclub/internal/domain"
)

// Session identifies the member behind an authenticated request.
type Session struct {
	UserID    string
	SessionID string
}

// Authenticator ties signed tokens to the session registry.
type Authenticator struct {
	tokens   *Tokens
	sessions SessionStore
	ttl      time.Duration
}

func NewAuthenticator(secret string, ttl time.Duration, sessions SessionStore) *Authenticator {
	return &Authenticator{
		tokens:   NewTokens(secret, ttl),
		sessions: sessions,
		ttl:      ttl,
	}
}

// Login starts a session for userID and returns its token.
func (a *Authenticator) Login(ctx context.Context, userID string) (Token, error) {
	token, err := a.tokens.Issue(userID)
	if err != nil {
		return Token{}, err
	}
	if err := a.sessions.Save(ctx, token.SessionID, userID, a.ttl); err != nil {
		return Token{}, err
	}
	return token, nil
}

// Authenticate resolves a bearer token to a live session. Invalid, expired or
// revoked tokens yield domain.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Session, error) {
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	userID, err := a.sessions.Lookup(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, fmt.Errorf("%w: session revoked", domain.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if userID != claims.Subject {
		return Session{}, fmt.Errorf("%w: session mismatch", domain.ErrUnauthorized)
	}
	return Session{UserID: userID, SessionID: claims.ID}, nil
}

// Logout revokes the session behind s.
func (a *Authenticator) Logout(ctx context.Context, s Session) error {
	return a.sessions.Revoke(ctx, s.SessionID)
}

type sessionKeyType struct{}

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKeyType{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKeyType{}).(Session)
	return s, ok
}
