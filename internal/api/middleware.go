package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbiterhq/arbiter/internal/store"
	"github.com/arbiterhq/arbiter/internal/violation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const actorCtxKey contextKey = iota

// actorFromContext extracts the authenticated actor from the request context.
func actorFromContext(ctx context.Context) *store.Actor {
	v, _ := ctx.Value(actorCtxKey).(*store.Actor)
	return v
}

// --- Auth cache (stale-while-revalidate) ---

type cacheEntry struct {
	actor      *store.Actor
	expiresAt  time.Time
	refreshing atomic.Bool
}

type authCache struct {
	store sync.Map // map[string]*cacheEntry (keyed by full API key)
	ttl   time.Duration
}

func newAuthCache(ttl time.Duration) *authCache {
	return &authCache{ttl: ttl}
}

func (c *authCache) get(key string) (actor *store.Actor, hit bool, needsRefresh bool) {
	v, ok := c.store.Load(key)
	if !ok {
		return nil, false, false
	}
	entry := v.(*cacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return entry.actor, true, false // fresh
	}
	// Stale — return value but signal refresh needed (only one goroutine refreshes)
	needsRefresh = entry.refreshing.CompareAndSwap(false, true)
	return entry.actor, true, needsRefresh
}

func (c *authCache) set(key string, actor *store.Actor) {
	c.store.Store(key, &cacheEntry{
		actor:     actor,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// --- Auth middleware ---

// keyPrefixForRole maps the required role onto the expected token prefix.
func keyPrefixForRole(role string) string {
	if role == store.RoleReviewer {
		return store.ReviewerKeyPrefix
	}
	return store.AgentKeyPrefix
}

// requireRole returns an http.HandlerFunc that validates Bearer tokens for
// the given actor role and injects the authenticated actor into the request
// context. Failed agent auth leaves an unregistered_agent violation record.
func (d *Dependencies) requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	wantPrefix := keyPrefixForRole(role)

	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid Authorization header"})
			return
		}
		if len(token) < 8 || !strings.HasPrefix(token, wantPrefix) {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key format"})
			return
		}

		// Cache lookup. The cache is shared across routes; role prefixes
		// keep tokens from crossing role boundaries.
		actor, hit, needsRefresh := d.auth.get(token)
		if hit && needsRefresh {
			// Stale hit — return stale immediately, refresh in background
			go d.refreshAuth(token)
		}
		if hit && actor != nil && actor.Role == role {
			next(w, r.WithContext(context.WithValue(r.Context(), actorCtxKey, actor)))
			return
		}

		// Cache miss — synchronous lookup
		actor, err := d.authenticateToken(r.Context(), token, role)
		if err != nil {
			d.Logger.Warn("auth failed", zap.String("role", role), zap.Error(err))
			if role == store.RoleAgent {
				d.Violations.Record(violation.TypeUnregisteredAgent, violation.SeverityBlocking,
					"", "agent authentication failed: "+err.Error())
			}
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid API key"})
			return
		}

		d.auth.set(token, actor)
		// A key-holding agent is a registered agent; enrollment into the
		// legitimacy registry is idempotent.
		if role == store.RoleAgent && d.Registry != nil {
			d.Registry.Register(actor.ID)
		}
		next(w, r.WithContext(context.WithValue(r.Context(), actorCtxKey, actor)))
	}
}

// authenticateToken validates an API key against the actor directory.
func (d *Dependencies) authenticateToken(ctx context.Context, token, role string) (*store.Actor, error) {
	prefix := token[:8]
	actor, err := d.Actors.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, fmt.Errorf("no actor for key prefix")
	}
	if actor.Role != role {
		return nil, fmt.Errorf("actor %s has role %s, want %s", actor.ID, actor.Role, role)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.APIKeyHash), []byte(token)); err != nil {
		return nil, err
	}
	return actor, nil
}

// refreshAuth refreshes a cache entry in the background.
func (d *Dependencies) refreshAuth(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	prefix := token[:8]
	actor, err := d.Actors.LookupByPrefix(ctx, prefix)
	if err != nil || actor == nil {
		d.Logger.Warn("background auth refresh failed", zap.Error(err))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(actor.APIKeyHash), []byte(token)) != nil {
		return
	}
	d.auth.set(token, actor)
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
