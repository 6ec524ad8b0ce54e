package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arbiterhq/arbiter/internal/chread"
	"go.uber.org/zap"
)

// handleVerifyChain implements GET /v1/chain/verify. A non-empty break list
// means the ledger has halted appends until operator intervention.
func (d *Dependencies) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	breaks := d.Ledger.VerifyChain()
	writeJSON(w, http.StatusOK, ChainVerifyResp{
		OK:     len(breaks) == 0,
		Length: d.Ledger.Len(),
		Breaks: breaks,
	})
}

// handleViolationReport implements GET /v1/violations/report.
func (d *Dependencies) handleViolationReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Violations.GenerateReport())
}

// handleListDecisions implements GET /v1/decisions against the analytical
// store. Unavailable when no ClickHouse reader is configured.
func (d *Dependencies) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "decision store not configured"})
		return
	}

	q := r.URL.Query()
	params := chread.ListDecisionsParams{
		Page:     parseIntParam(q.Get("page"), 1),
		PageSize: parseIntParam(q.Get("page_size"), 50),
	}
	if v := q.Get("agent_id"); v != "" {
		params.AgentID = &v
	}
	if v := q.Get("gate_decision"); v != "" {
		params.GateDecision = &v
	}
	if v := q.Get("escalated"); v != "" {
		b := v == "true"
		params.Escalated = &b
	}
	if t, ok := parseTimeParam(q.Get("start_time")); ok {
		params.StartTime = &t
	}
	if t, ok := parseTimeParam(q.Get("end_time")); ok {
		params.EndTime = &t
	}

	rows, total, err := d.Reader.ListDecisions(r.Context(), params)
	if err != nil {
		d.Logger.Error("decision query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "decision query failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": rows,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// handleGetAnalytics implements GET /v1/analytics. Defaults to the last 24
// hours when no window is given.
func (d *Dependencies) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	if d.Reader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "decision store not configured"})
		return
	}

	q := r.URL.Query()
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if t, ok := parseTimeParam(q.Get("start_time")); ok {
		start = t
	}
	if t, ok := parseTimeParam(q.Get("end_time")); ok {
		end = t
	}

	analytics, err := d.Reader.GetAnalytics(r.Context(), start, end)
	if err != nil {
		d.Logger.Error("analytics query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "analytics query failed"})
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseTimeParam(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
