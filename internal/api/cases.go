package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/classify"
)

// handleGetConsensus implements GET /v1/consensus/{event_id}.
func (d *Dependencies) handleGetConsensus(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event_id")
	if !d.Ledger.Has(eventID) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Event not found"})
		return
	}

	cs := d.Classifications.ForEvent(eventID)
	writeJSON(w, http.StatusOK, ConsensusResp{
		EventID:         eventID,
		Classifications: classificationResps(cs),
		Divergence:      divergencePtr(cs),
		Escalates:       classify.ShouldEscalate(cs, d.Threshold),
	})
}

// handleGetCase implements GET /v1/cases/{case_id}.
func (d *Dependencies) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c := d.Cases.Get(r.PathValue("case_id"))
	if c == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Case not found"})
		return
	}
	writeJSON(w, http.StatusOK, caseResp(c))
}

func caseResp(c *caseflow.Case) CaseResp {
	return CaseResp{
		ID:          c.ID,
		EventID:     c.EventID,
		Status:      string(c.Status),
		OpenedAt:    c.OpenedAt,
		EscalatedAt: c.EscalatedAt,
		ResolvedAt:  c.ResolvedAt,
		RulingID:    c.RulingID,
	}
}

// handleApplyRuling implements POST /v1/cases/{case_id}/ruling. The human
// identity comes from the authenticated reviewer key.
func (d *Dependencies) handleApplyRuling(w http.ResponseWriter, r *http.Request) {
	var req RulingRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Decision == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "decision is required"})
		return
	}

	actor := actorFromContext(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing actor context"})
		return
	}

	ruling, err := d.Cases.ApplyRuling(r.Context(), r.PathValue("case_id"), caseflow.RulingInput{
		HumanID:         actor.ID,
		Decision:        req.Decision,
		PrecedentFlag:   req.PrecedentFlag,
		PrecedentScope:  req.PrecedentScope,
		PrecedentTTL:    time.Duration(req.PrecedentTTLHours) * time.Hour,
		AgentID:         req.AgentID,
		LegitimacyDelta: req.LegitimacyDelta,
	})
	if err != nil {
		switch {
		case errors.Is(err, caseflow.ErrUnknownCase):
			writeJSON(w, http.StatusNotFound, ErrorResp{Detail: err.Error()})
		case errors.Is(err, caseflow.ErrCaseResolved):
			writeJSON(w, http.StatusConflict, ErrorResp{Detail: err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusCreated, RulingResp{
		ID:            ruling.ID,
		CaseID:        ruling.CaseID,
		HumanID:       ruling.HumanID,
		Decision:      ruling.Decision,
		PrecedentFlag: ruling.PrecedentFlag,
		CreatedAt:     ruling.CreatedAt,
	})
}
