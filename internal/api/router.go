// Package api exposes the governance kernel over HTTP JSON for SDKs and the
// dashboard. The enforcement semantics live in internal/enforce; handlers
// only translate the wire contract.
package api

import (
	"net/http"
	"time"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/chread"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/enforce"
	"github.com/arbiterhq/arbiter/internal/ingress"
	"github.com/arbiterhq/arbiter/internal/ledger"
	"github.com/arbiterhq/arbiter/internal/legitimacy"
	"github.com/arbiterhq/arbiter/internal/store"
	"github.com/arbiterhq/arbiter/internal/violation"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Enforcer        *enforce.Enforcer
	Ledger          *ledger.Ledger
	Classifications *classify.Store
	Cases           *caseflow.Manager
	Violations      *violation.Tracker
	Ingress         *ingress.Validator
	Actors          store.Directory
	Registry        *legitimacy.Registry
	Reader          *chread.Reader // nil if ClickHouse unavailable
	Threshold       float64        // divergence escalation threshold
	Logger          *zap.Logger
	CacheTTL        time.Duration

	// auth is shared across routes so a key is bcrypt-verified once,
	// not once per route. Populated by NewRouter.
	auth *authCache
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	deps.auth = newAuthCache(deps.CacheTTL)
	mux := http.NewServeMux()

	// Enforced submission + classification (agent auth via Bearer agk_ key)
	mux.HandleFunc("POST /v1/events", deps.requireRole(store.RoleAgent, deps.handleSubmitEvent))
	mux.HandleFunc("POST /v1/classifications", deps.requireRole(store.RoleAgent, deps.handleSubmitClassification))

	// Human rulings (reviewer auth via Bearer ark_ key)
	mux.HandleFunc("POST /v1/cases/{case_id}/ruling", deps.requireRole(store.RoleReviewer, deps.handleApplyRuling))

	// Query surface (no auth — consumed by the dashboard)
	mux.HandleFunc("GET /v1/consensus/{event_id}", deps.handleGetConsensus)
	mux.HandleFunc("GET /v1/cases/{case_id}", deps.handleGetCase)
	mux.HandleFunc("GET /v1/chain/verify", deps.handleVerifyChain)
	mux.HandleFunc("GET /v1/violations/report", deps.handleViolationReport)
	mux.HandleFunc("GET /v1/decisions", deps.handleListDecisions)
	mux.HandleFunc("GET /v1/analytics", deps.handleGetAnalytics)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
