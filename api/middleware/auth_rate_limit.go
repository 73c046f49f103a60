package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/retaildesk/api/responses"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
)

const maxLoginBody = 1 << 16

// attemptCounter counts login attempts per key within a window. The Redis
// client satisfies it; memoryCounter stands in when Redis is not configured.
type attemptCounter interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// LoginRateLimitPolicy caps login attempts per client address and per
// username within a window. A zero limit disables that scope.
type LoginRateLimitPolicy struct {
	window    time.Duration
	ipLimit   int
	userLimit int
}

func NewLoginRateLimitPolicy(window time.Duration, ipLimit, userLimit int) LoginRateLimitPolicy {
	return LoginRateLimitPolicy{window: window, ipLimit: ipLimit, userLimit: userLimit}
}

func (p LoginRateLimitPolicy) disabled() bool {
	return p.window <= 0 || (p.ipLimit <= 0 && p.userLimit <= 0)
}

// LoginRateLimit throttles POST /auth/login. With a nil counter the attempts
// are tracked in process, which is enough for a single sandbox instance.
func LoginRateLimit(policy LoginRateLimitPolicy, counter attemptCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy.disabled() {
			return next
		}
		if counter == nil {
			counter = newMemoryCounter(time.Now)
		}
		guard := loginGuard{policy: policy, counter: counter, logg: logg}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := guard.check(ctx, "ip", clientAddr(r), policy.ipLimit); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if policy.userLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if err := guard.check(ctx, "user", usernameDigest(body), policy.userLimit); err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginGuard struct {
	policy  LoginRateLimitPolicy
	counter attemptCounter
	logg    *logger.Logger
}

// check counts one attempt for subject under scope and returns a rate limit
// error once the count passes limit. Empty subjects are not counted.
func (g loginGuard) check(ctx context.Context, scope, subject string, limit int) error {
	if limit <= 0 || subject == "" {
		return nil
	}
	count, err := g.counter.IncrWithTTL(ctx, g.counter.RateLimitKey("login", scope, subject), g.policy.window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count login attempt")
	}
	if count <= int64(limit) {
		return nil
	}
	if g.logg != nil {
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{
			"scope":    scope,
			"attempts": count,
			"limit":    limit,
		}), "login throttled")
	}
	return pkgerrors.New(pkgerrors.CodeRateLimit, fmt.Sprintf("too many login attempts, retry in %s", g.policy.window))
}

// clientAddr prefers the first valid address in X-Forwarded-For, then
// X-Real-IP, then the socket peer.
func clientAddr(r *http.Request) string {
	candidates := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	candidates = append(candidates, r.Header.Get("X-Real-IP"))
	for _, c := range candidates {
		if addr, err := netip.ParseAddr(strings.TrimSpace(c)); err == nil {
			return addr.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// usernameDigest hashes the normalized username so raw names never land in
// counter keys.
func usernameDigest(payload []byte) string {
	var body struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	name := strings.ToLower(strings.TrimSpace(body.Username))
	if name == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

type memoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]memoryWindow
}

func newMemoryCounter(now func() time.Time) *memoryCounter {
	return &memoryCounter{now: now, windows: map[string]memoryWindow{}}
}

func (m *memoryCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	win := m.windows[key]
	if !now.Before(win.resetAt) {
		win = memoryWindow{resetAt: now.Add(ttl)}
	}
	win.count++
	m.windows[key] = win
	return win.count, nil
}

func (m *memoryCounter) RateLimitKey(parts ...string) string {
	return strings.Join(parts, ":")
}
