package cartsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

// Registry hands out one Session per authenticated user and feeds each
// request's context through SwitchContext.
type Registry struct {
	opts      Options
	idleAfter time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry. Sessions unused for idleAfter are dropped on
// the next lookup; zero keeps them forever.
func NewRegistry(opts Options, idleAfter time.Duration) (*Registry, error) {
	if opts.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart remote required")
	}
	if opts.Loads == nil {
		opts.Loads = &singleflight.Group{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Registry{opts: opts, idleAfter: idleAfter, sessions: map[string]*Session{}}, nil
}

// Session returns the caller's session switched to cartCtx. A new session is
// loaded before it is returned. Acting for a household the caller may not shop
// for is FORBIDDEN and leaves any cached session untouched.
func (r *Registry) Session(ctx context.Context, cartCtx CartContext) (*Session, error) {
	key := strings.ToLower(strings.TrimSpace(cartCtx.UserEmail))
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}

	acting := cartCtx.ActingHouseholdID
	if acting != nil && *acting == uuid.Nil {
		acting = nil
	}
	if err := Authorize(ctx, r.opts.Members, cartCtx, acting); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.evictIdleLocked()
	session, ok := r.sessions[key]
	if !ok {
		var err error
		session, err = NewSession(cartCtx, r.opts)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.sessions[key] = session
	}
	r.mu.Unlock()

	if _, err := session.SwitchContext(ctx, cartCtx); err != nil {
		return nil, err
	}
	return session, nil
}

// Len reports how many sessions are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictIdleLocked() {
	if r.idleAfter <= 0 {
		return
	}
	cutoff := r.opts.Clock().Add(-r.idleAfter)
	for key, session := range r.sessions {
		if session.idleSince().Before(cutoff) {
			delete(r.sessions, key)
		}
	}
}
