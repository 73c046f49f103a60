package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/retaildesk/pkg/auth"
	"github.com/angelmondragon/retaildesk/pkg/enums"
)

// ErrNoSession is returned by stores holding no login.
var ErrNoSession = errors.New("no session stored")

// User is the authenticated operator.
type User struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	FullName string     `json:"full_name"`
	Role     enums.Role `json:"role"`
}

// Session is a bearer token plus the user it was issued to.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its exp claim. A zero ExpiresAt
// never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists the current session between process runs.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Holder is the single owner of the operator session. Login sets it, Logout
// clears it; everything else reads through Current or Token.
type Holder struct {
	mu      sync.RWMutex
	current *Session
	store   Store
	now     func() time.Time
}

// NewHolder builds a holder backed by store. A nil store keeps the session in memory only.
func NewHolder(store Store) *Holder {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Holder{store: store, now: time.Now}
}

// Restore loads a previously saved session. Expired or missing sessions leave
// the holder unauthenticated without error.
func (h *Holder) Restore(ctx context.Context) error {
	stored, err := h.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if stored == nil || stored.Token == "" || stored.Expired(h.now()) {
		return h.store.Clear(ctx)
	}
	h.mu.Lock()
	h.current = stored
	h.mu.Unlock()
	return nil
}

// Login installs a new session from a freshly issued token.
func (h *Holder) Login(ctx context.Context, token string, user User) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, fmt.Errorf("token is required")
	}
	if !user.Role.IsValid() {
		return Session{}, fmt.Errorf("invalid role %q", user.Role)
	}
	expiresAt, err := auth.ExpiryOf(token)
	if err != nil {
		return Session{}, err
	}
	s := Session{Token: token, User: user, ExpiresAt: expiresAt}
	if s.Expired(h.now()) {
		return Session{}, fmt.Errorf("token already expired")
	}
	if err := h.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	h.mu.Lock()
	h.current = &s
	h.mu.Unlock()
	return s, nil
}

// Logout drops the session locally and from the store.
func (h *Holder) Logout(ctx context.Context) error {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
	return h.store.Clear(ctx)
}

// Current returns the active session, if any.
func (h *Holder) Current() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil || h.current.Expired(h.now()) {
		return Session{}, false
	}
	return *h.current, true
}

// Token implements the backend client's token source.
func (h *Holder) Token() (string, bool) {
	s, ok := h.Current()
	if !ok {
		return "", false
	}
	return s.Token, true
}
